// Package discoverytest provides an in-process DNS server for BDXL lookups in tests.
package discoverytest

import (
	"fmt"
	"net"
	"strings"
	"sync"
	"testing"

	"github.com/miekg/dns"
)

// Server is a UDP DNS server answering NAPTR queries from an in-memory table.
type Server struct {
	// Addr is the "host:port" to configure as DNS server
	Addr string

	mu      sync.Mutex
	records map[string][]dns.RR
	queries int
	srv     *dns.Server
}

// NewServer starts a DNS server on 127.0.0.1. It is shut down when the test ends.
func NewServer(t testing.TB) *Server {
	t.Helper()

	pc, err := net.ListenPacket("udp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}

	s := &Server{
		Addr:    pc.LocalAddr().String(),
		records: make(map[string][]dns.RR),
	}
	started := make(chan struct{})
	s.srv = &dns.Server{
		PacketConn:        pc,
		Handler:           dns.HandlerFunc(s.serveDNS),
		NotifyStartedFunc: func() { close(started) },
	}
	go func() { _ = s.srv.ActivateAndServe() }()
	<-started

	t.Cleanup(func() { _ = s.srv.Shutdown() })
	return s
}

// AddNAPTR publishes a U-NAPTR record pointing name to smpURL
func (s *Server) AddNAPTR(name, service, smpURL string, order, preference uint16) error {
	rr, err := dns.NewRR(fmt.Sprintf(`%s 60 IN NAPTR %d %d "U" "%s" "!^.*$!%s!" .`,
		dns.Fqdn(name), order, preference, service, smpURL))
	if err != nil {
		return err
	}
	key := strings.ToLower(dns.Fqdn(name))
	s.mu.Lock()
	s.records[key] = append(s.records[key], rr)
	s.mu.Unlock()
	return nil
}

// Remove deletes all records of name
func (s *Server) Remove(name string) {
	s.mu.Lock()
	delete(s.records, strings.ToLower(dns.Fqdn(name)))
	s.mu.Unlock()
}

// Queries returns the number of queries answered so far
func (s *Server) Queries() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.queries
}

func (s *Server) serveDNS(w dns.ResponseWriter, r *dns.Msg) {
	m := new(dns.Msg)
	m.SetReply(r)

	s.mu.Lock()
	s.queries++
	if len(r.Question) > 0 {
		rrs, ok := s.records[strings.ToLower(r.Question[0].Name)]
		if !ok {
			m.Rcode = dns.RcodeNameError
		}
		for _, rr := range rrs {
			m.Answer = append(m.Answer, dns.Copy(rr))
		}
	}
	s.mu.Unlock()

	_ = w.WriteMsg(m)
}
