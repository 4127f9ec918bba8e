package discovery_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/PiccoloProcione/supersmp/pkg/discovery"
	"github.com/PiccoloProcione/supersmp/pkg/discovery/discoverytest"
	"github.com/PiccoloProcione/supersmp/pkg/identifier"
)

const metadataXML = `<?xml version="1.0" encoding="UTF-8"?>
<SignedServiceMetadata xmlns="http://busdox.org/serviceMetadata/publishing/1.0/">
  <ServiceMetadata>
    <ServiceInformation>
      <ParticipantIdentifier scheme="iso6523-actorid-upis">9915:test</ParticipantIdentifier>
      <DocumentIdentifier scheme="busdox-docid-qns">urn:doc</DocumentIdentifier>
      <ProcessList>
        <Process>
          <ProcessIdentifier scheme="cenbii-procid-ubl">urn:proc</ProcessIdentifier>
          <ServiceEndpointList>
            <Endpoint transportProfile="peppol-transport-as4-v2_0">
              <EndpointURI>https://ap.example.com/as4</EndpointURI>
            </Endpoint>
          </ServiceEndpointList>
        </Process>
      </ProcessList>
    </ServiceInformation>
  </ServiceMetadata>
</SignedServiceMetadata>`

func newTestResolver(t *testing.T) (*discovery.Resolver, *httptest.Server) {
	t.Helper()

	smp := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case strings.Contains(r.URL.Path, "/services/"):
			w.Write([]byte(metadataXML))
		case strings.Contains(r.URL.Path, "9915:test"):
			w.Write([]byte(`<ServiceGroup><ParticipantIdentifier scheme="iso6523-actorid-upis">9915:test</ParticipantIdentifier></ServiceGroup>`))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	t.Cleanup(smp.Close)

	dnsServer := discoverytest.NewServer(t)
	resolver := discovery.NewResolver(discovery.Config{
		Locator: discovery.LocatorConfig{Zone: "sml.test", DNSServer: dnsServer.Addr},
	})
	name, err := resolver.Locator().QueryDomain(testPID)
	if err != nil {
		t.Fatal(err)
	}
	if err := dnsServer.AddNAPTR(name, "Meta:SMP", smp.URL, 100, 10); err != nil {
		t.Fatal(err)
	}
	return resolver, smp
}

func TestResolve(t *testing.T) {
	resolver, smp := newTestResolver(t)

	res, err := resolver.Resolve(context.Background(), testPID)
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if res.SMPURL != smp.URL {
		t.Errorf("SMPURL = %s, want %s", res.SMPURL, smp.URL)
	}
	if res.ServiceGroup == nil || !res.ServiceGroup.ParticipantID.Equal(testPID) {
		t.Errorf("unexpected service group %+v", res.ServiceGroup)
	}
}

func TestResolve_NotRegistered(t *testing.T) {
	resolver, _ := newTestResolver(t)

	_, err := resolver.Resolve(context.Background(), identifier.ParticipantID{Scheme: "iso6523-actorid-upis", Value: "9915:other"})
	if !errors.Is(err, discovery.ErrNoRecordsFound) {
		t.Errorf("expected ErrNoRecordsFound, got %v", err)
	}
}

func TestResolveEndpoint(t *testing.T) {
	resolver, _ := newTestResolver(t)
	docType := identifier.DocumentTypeID{Scheme: "busdox-docid-qns", Value: "urn:doc"}
	proc := identifier.ProcessID{Scheme: "cenbii-procid-ubl", Value: "urn:proc"}

	ep, err := resolver.ResolveEndpoint(context.Background(), testPID, docType, proc, discovery.TransportPeppolAS4V2)
	if err != nil {
		t.Fatalf("ResolveEndpoint() error = %v", err)
	}
	if ep.EndpointURL != "https://ap.example.com/as4" {
		t.Errorf("EndpointURL = %s", ep.EndpointURL)
	}

	ep, err = resolver.ResolveEndpoint(context.Background(), testPID, docType, identifier.ProcessID{}, "")
	if err != nil || ep == nil {
		t.Fatalf("ResolveEndpoint() any process error = %v", err)
	}

	_, err = resolver.ResolveEndpoint(context.Background(), testPID, docType, proc, discovery.TransportAS4V1)
	if !errors.Is(err, discovery.ErrProcessNotFound) {
		t.Errorf("expected ErrProcessNotFound, got %v", err)
	}
}
