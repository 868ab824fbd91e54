package dnspin

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/netip"
)

// InterfaceResolver constructs a resolver that returns the first global
// unicast IPv4 address reported by the given interfaces. If no interfaces
// are named then all interfaces are considered.
//
// This only produces a usable answer on machines whose interface carries the
// public address directly; behind NAT, use WebResolver instead.
func InterfaceResolver(iface ...string) Resolver {
	return interfaceResolver{ifaces: iface}
}

type interfaceResolver struct {
	ifaces []string
}

func (r interfaceResolver) Resolve(ctx context.Context) (netip.Addr, error) {
	addrs, err := r.interfaceAddrs()
	if err != nil {
		return netip.Addr{}, err
	}

	var errs []error
	for _, addr := range addrs {
		prefix, err := netip.ParsePrefix(addr.String())
		if err != nil {
			errs = append(errs, fmt.Errorf("error parsing local ip %s: %w", addr.String(), err))
			continue
		}
		a := prefix.Addr()
		if !a.Is4() || a.IsLoopback() || a.IsPrivate() || a.IsLinkLocalUnicast() {
			continue
		}
		return a, nil
	}
	errs = append(errs, errors.New("no interface carries a global IPv4 address"))
	return netip.Addr{}, fmt.Errorf("%w: %w", ErrNoSourceAvailable, errors.Join(errs...))
}

func (r interfaceResolver) interfaceAddrs() ([]net.Addr, error) {
	if len(r.ifaces) == 0 {
		addrs, err := net.InterfaceAddrs()
		if err != nil {
			return nil, fmt.Errorf("error getting addresses for interfaces: %w", err)
		}
		return addrs, nil
	}

	var addrs []net.Addr
	for _, name := range r.ifaces {
		iface, err := net.InterfaceByName(name)
		if err != nil {
			return nil, fmt.Errorf("error getting interface %s by name: %w", name, err)
		}
		a, err := iface.Addrs()
		if err != nil {
			return nil, fmt.Errorf("error looking up addresses for interface %s: %w", name, err)
		}
		addrs = append(addrs, a...)
	}
	return addrs, nil
}
