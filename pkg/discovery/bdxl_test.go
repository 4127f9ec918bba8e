package discovery_test

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/PiccoloProcione/supersmp/pkg/discovery"
	"github.com/PiccoloProcione/supersmp/pkg/discovery/discoverytest"
	"github.com/PiccoloProcione/supersmp/pkg/identifier"
)

var testPID = identifier.ParticipantID{Scheme: "iso6523-actorid-upis", Value: "9915:test"}

func TestHashValue(t *testing.T) {
	tests := []struct {
		name  string
		value string
	}{
		{name: "peppol value", value: "9915:test"},
		{name: "gln", value: "0088:7315458756324"},
		{name: "empty", value: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			hash := discovery.HashValue(tt.value)
			if len(hash) != 52 {
				t.Errorf("hash length = %d, want 52", len(hash))
			}
			if strings.HasSuffix(hash, "=") {
				t.Error("hash should not have padding")
			}
			if hash != discovery.HashValue(strings.ToUpper(tt.value)) {
				t.Error("hash should not depend on the value case")
			}
		})
	}
}

func TestQueryDomain(t *testing.T) {
	loc := discovery.NewLocator(discovery.LocatorConfig{Zone: discovery.ZoneSMK + "."})

	got, err := loc.QueryDomain(testPID)
	if err != nil {
		t.Fatalf("QueryDomain() error = %v", err)
	}
	want := discovery.HashValue("9915:test") + ".iso6523-actorid-upis.acc.edelivery.tech.ec.europa.eu"
	if got != want {
		t.Errorf("QueryDomain() = %s, want %s", got, want)
	}

	if _, err := loc.QueryDomain(identifier.ParticipantID{}); !errors.Is(err, discovery.ErrInvalidParticipant) {
		t.Errorf("expected ErrInvalidParticipant, got %v", err)
	}

	noZone := discovery.NewLocator(discovery.LocatorConfig{})
	if _, err := noZone.QueryDomain(testPID); err == nil {
		t.Error("expected error without zone")
	}
}

type naptr struct {
	service     string
	url         string
	order, pref uint16
}

func TestLocateSMP(t *testing.T) {
	dnsServer := discoverytest.NewServer(t)
	loc := discovery.NewLocator(discovery.LocatorConfig{Zone: "sml.test", DNSServer: dnsServer.Addr})

	name, err := loc.QueryDomain(testPID)
	if err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name    string
		records []naptr
		want    string
		wantErr error
	}{
		{
			name:    "not registered",
			wantErr: discovery.ErrNoRecordsFound,
		},
		{
			name:    "single record",
			records: []naptr{{"Meta:SMP", "https://smp.example.com", 100, 10}},
			want:    "https://smp.example.com",
		},
		{
			name: "lowest order wins",
			records: []naptr{
				{"Meta:SMP", "https://second.example.com", 200, 10},
				{"Meta:SMP", "https://first.example.com", 100, 10},
			},
			want: "https://first.example.com",
		},
		{
			name: "preferred service wins over order",
			records: []naptr{
				{"oasis-bdxr-smp-2", "https://smp2.example.com", 10, 10},
				{"Meta:SMP", "https://smp1.example.com", 100, 10},
			},
			want: "https://smp1.example.com",
		},
		{
			name:    "unknown service",
			records: []naptr{{"Meta:Other", "https://smp.example.com", 100, 10}},
			wantErr: discovery.ErrServiceNotFound,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dnsServer.Remove(name)
			for _, r := range tt.records {
				if err := dnsServer.AddNAPTR(name, r.service, r.url, r.order, r.pref); err != nil {
					t.Fatal(err)
				}
			}

			got, err := loc.LocateSMP(context.Background(), testPID)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("LocateSMP() error = %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("LocateSMP() error = %v", err)
			}
			if got != tt.want {
				t.Errorf("LocateSMP() = %s, want %s", got, tt.want)
			}
		})
	}
}

func TestSameSMP(t *testing.T) {
	tests := []struct {
		a, b string
		want bool
	}{
		{"https://smp.example.com", "https://smp.example.com/", true},
		{"https://SMP.example.com/smp", "https://smp.example.com/smp/", true},
		{"https://smp.example.com", "http://smp.example.com", false},
		{"https://smp.example.com/a", "https://smp.example.com/b", false},
	}
	for _, tt := range tests {
		if got := discovery.SameSMP(tt.a, tt.b); got != tt.want {
			t.Errorf("SameSMP(%q, %q) = %v, want %v", tt.a, tt.b, got, tt.want)
		}
	}
}
