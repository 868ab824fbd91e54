package dnspin

import (
	"context"
	"net/netip"
)

// Resolver discovers this machine's current public IPv4 address.
type Resolver interface {
	Resolve(context.Context) (netip.Addr, error)
}

// ResolverFunc adapts a function to the Resolver interface.
type ResolverFunc func(context.Context) (netip.Addr, error)

func (f ResolverFunc) Resolve(ctx context.Context) (netip.Addr, error) {
	return f(ctx)
}

// Lookuper observes the A record the wider internet currently sees for a
// hostname, independent of the provider's own view of the record.
type Lookuper interface {
	LookupA(ctx context.Context, hostname string) (netip.Addr, error)
}

// Zone is a DNS zone as known to the provider.
type Zone struct {
	ID   string
	Name string
}

// RecordRef identifies an existing A record at the provider along with the
// provider's current idea of its content. The provider's view may lag what
// public DNS serves while a change propagates.
type RecordRef struct {
	ID      string
	Content netip.Addr
}

// Directory is the provider management API surface the Controller needs:
// credential verification, zone and record resolution, and the record update
// itself. Implementations perform their own bounded retries for the three
// read operations; UpdateRecord must be issued exactly once per call.
type Directory interface {
	VerifyIdentity(ctx context.Context) error
	ResolveZone(ctx context.Context, name string) (Zone, error)
	ResolveRecord(ctx context.Context, zone Zone, hostname string) (RecordRef, error)
	UpdateRecord(ctx context.Context, zone Zone, record RecordRef, ip netip.Addr) error
}
