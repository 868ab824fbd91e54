package dnspin

import (
	"fmt"
	"net/netip"
	"strings"
)

// ParseIPv4 parses s as a strict dotted-decimal IPv4 address.
//
// Leading and trailing whitespace is trimmed (the public IP echo services
// usually terminate their response with a newline), but anything beyond the
// four decimal octets is rejected: no IPv6, no v4-mapped v6, no leading
// zeros, no trailing garbage. Anything that fails here is treated the same
// as having no data at all.
func ParseIPv4(s string) (netip.Addr, error) {
	addr, err := netip.ParseAddr(strings.TrimSpace(s))
	if err != nil {
		return netip.Addr{}, fmt.Errorf("not a valid IP address: %q", s)
	}
	if !addr.Is4() {
		return netip.Addr{}, fmt.Errorf("not an IPv4 address: %q", s)
	}
	return addr, nil
}
