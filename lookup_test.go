package dnspin_test

import (
	"context"
	"errors"
	"net"
	"testing"
	"time"

	"github.com/mhersom/dnspin"
	"github.com/miekg/dns"
)

// startDNS runs a dns server on a random local UDP port and returns its
// address.
func startDNS(t *testing.T, handler dns.Handler) string {
	t.Helper()
	pc, err := net.ListenPacket("udp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("error listening: %s", err)
	}
	srv := &dns.Server{PacketConn: pc, Handler: handler}
	go srv.ActivateAndServe()
	t.Cleanup(func() { srv.Shutdown() })
	return pc.LocalAddr().String()
}

func aRecord(name, ip string) *dns.A {
	return &dns.A{
		Hdr: dns.RR_Header{Name: name, Rrtype: dns.TypeA, Class: dns.ClassINET, Ttl: 60},
		A:   net.ParseIP(ip).To4(),
	}
}

func TestLookupA(t *testing.T) {
	addr := startDNS(t, dns.HandlerFunc(func(w dns.ResponseWriter, r *dns.Msg) {
		m := new(dns.Msg)
		m.SetReply(r)
		m.Answer = append(m.Answer, aRecord(r.Question[0].Name, "93.184.216.34"))
		w.WriteMsg(m)
	}))

	lc := dnspin.NewLookupClient(addr)
	got, err := lc.LookupA(context.Background(), "host.example.com")
	if err != nil {
		t.Fatalf("LookupA failed: %s", err)
	}
	if got.String() != "93.184.216.34" {
		t.Fatalf("Expected 93.184.216.34; got %s", got)
	}
}

func TestLookupATakesLastAnswer(t *testing.T) {
	// a CNAME chain resolver appends the terminal A record last
	addr := startDNS(t, dns.HandlerFunc(func(w dns.ResponseWriter, r *dns.Msg) {
		m := new(dns.Msg)
		m.SetReply(r)
		m.Answer = append(m.Answer,
			&dns.CNAME{
				Hdr:    dns.RR_Header{Name: r.Question[0].Name, Rrtype: dns.TypeCNAME, Class: dns.ClassINET, Ttl: 60},
				Target: "origin.example.net.",
			},
			aRecord("origin.example.net.", "1.2.3.4"),
			aRecord("origin.example.net.", "5.6.7.8"),
		)
		w.WriteMsg(m)
	}))

	lc := dnspin.NewLookupClient(addr)
	got, err := lc.LookupA(context.Background(), "alias.example.com")
	if err != nil {
		t.Fatalf("LookupA failed: %s", err)
	}
	if got.String() != "5.6.7.8" {
		t.Fatalf("Expected the last answer 5.6.7.8; got %s", got)
	}
}

func TestLookupANoRecord(t *testing.T) {
	addr := startDNS(t, dns.HandlerFunc(func(w dns.ResponseWriter, r *dns.Msg) {
		m := new(dns.Msg)
		m.SetRcode(r, dns.RcodeNameError)
		w.WriteMsg(m)
	}))

	lc := dnspin.NewLookupClient(addr)
	lc.SetRetryPolicy(dnspin.Policy{MaxAttempts: 2, Timeout: time.Second, Delay: time.Millisecond})
	_, err := lc.LookupA(context.Background(), "missing.example.com")
	if !errors.Is(err, dnspin.ErrNoValidRecord) {
		t.Fatalf("Expected ErrNoValidRecord; got %v", err)
	}
}

func TestLookupAZeroValueClient(t *testing.T) {
	// a zero-value client has no servers to ask; that must surface as an
	// error, not an invalid address
	var lc dnspin.LookupClient
	got, err := lc.LookupA(context.Background(), "host.example.com")
	if !errors.Is(err, dnspin.ErrNoValidRecord) {
		t.Fatalf("Expected ErrNoValidRecord; got %v", err)
	}
	if got.IsValid() {
		t.Fatalf("Expected the zero Addr; got %s", got)
	}
}

func TestLookupARetriesThenSucceeds(t *testing.T) {
	calls := 0
	addr := startDNS(t, dns.HandlerFunc(func(w dns.ResponseWriter, r *dns.Msg) {
		calls++
		m := new(dns.Msg)
		if calls < 2 {
			m.SetRcode(r, dns.RcodeServerFailure)
		} else {
			m.SetReply(r)
			m.Answer = append(m.Answer, aRecord(r.Question[0].Name, "5.6.7.8"))
		}
		w.WriteMsg(m)
	}))

	lc := dnspin.NewLookupClient(addr)
	lc.SetRetryPolicy(dnspin.Policy{MaxAttempts: 3, Timeout: time.Second, Delay: time.Millisecond})
	got, err := lc.LookupA(context.Background(), "host.example.com")
	if err != nil {
		t.Fatalf("LookupA failed: %s", err)
	}
	if got.String() != "5.6.7.8" {
		t.Fatalf("Expected 5.6.7.8; got %s", got)
	}
}
