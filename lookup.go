package dnspin

import (
	"context"
	"fmt"
	"net/netip"

	"github.com/miekg/dns"
)

// DefaultDNSServers are the public recursive resolvers queried by the lookup
// client when none are configured.
var DefaultDNSServers = []string{
	"1.1.1.1:53",
	"8.8.8.8:53",
}

// LookupClient observes the currently published A record for a hostname by
// querying a public recursive resolver directly, bypassing the local stub
// resolver and its cache. This is deliberately independent of the provider's
// management API: during propagation the two can disagree, and the published
// answer is what actually matters for reachability.
type LookupClient struct {
	servers []string
	policy  Policy
}

// NewLookupClient returns a lookup client querying the given resolver
// addresses (host:port) in order. With no arguments, DefaultDNSServers is
// used.
func NewLookupClient(servers ...string) *LookupClient {
	if len(servers) == 0 {
		servers = DefaultDNSServers
	}
	return &LookupClient{servers: servers, policy: DefaultPolicy}
}

func (lc *LookupClient) SetRetryPolicy(p Policy) {
	lc.policy = p
}

// LookupA implements dnspin.Lookuper.
//
// If the response carries multiple answers (for example a CNAME chain ending
// in an A record), the last answer wins: resolvers append the terminal A
// record after the aliases that led to it. An empty or unusable answer is
// retried under the client's policy before failing with ErrNoValidRecord.
func (lc *LookupClient) LookupA(ctx context.Context, hostname string) (netip.Addr, error) {
	if len(lc.servers) == 0 {
		return netip.Addr{}, fmt.Errorf("%w: no DNS servers configured - construct with NewLookupClient", ErrNoValidRecord)
	}
	addr, err := retry(ctx, lc.policy, func(ctx context.Context) (netip.Addr, error) {
		return lc.query(ctx, hostname)
	})
	if err != nil {
		return netip.Addr{}, fmt.Errorf("%w: %s: %w", ErrNoValidRecord, hostname, err)
	}
	return addr, nil
}

func (lc *LookupClient) query(ctx context.Context, hostname string) (netip.Addr, error) {
	client := new(dns.Client)
	msg := new(dns.Msg)
	msg.SetQuestion(dns.Fqdn(hostname), dns.TypeA)
	msg.RecursionDesired = true

	var lastErr error
	for _, server := range lc.servers {
		resp, _, err := client.ExchangeContext(ctx, msg, server)
		if err != nil {
			lastErr = fmt.Errorf("%s: %w", server, err)
			continue
		}
		if resp.Rcode != dns.RcodeSuccess {
			lastErr = fmt.Errorf("%s: query returned %s", server, dns.RcodeToString[resp.Rcode])
			continue
		}

		var last *dns.A
		for _, rr := range resp.Answer {
			if a, ok := rr.(*dns.A); ok {
				last = a
			}
		}
		if last == nil {
			lastErr = fmt.Errorf("%s: no A records in answer", server)
			continue
		}
		addr, err := ParseIPv4(last.A.String())
		if err != nil {
			lastErr = fmt.Errorf("%s: %w", server, err)
			continue
		}
		return addr, nil
	}
	return netip.Addr{}, lastErr
}
