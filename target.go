package dnspin

import (
	"fmt"
	"strings"
)

// Target names the DNS record to keep in sync: a fully-qualified hostname and
// the zone that contains it. Construct with NewTarget; the zero value is not
// usable.
type Target struct {
	Hostname string
	Zone     string
}

// NewTarget normalizes hostname against zone and validates the result.
//
// hostname may be given relative to the zone ("home") or fully qualified
// ("home.example.com"); both are lowercased and stripped of any trailing dot.
// A fully-qualified hostname must equal the zone or be a subdomain of it.
// Errors wrap ErrInvalidTarget.
func NewTarget(hostname, zone string) (Target, error) {
	hostname = strings.ToLower(strings.TrimSuffix(strings.TrimSpace(hostname), "."))
	zone = strings.ToLower(strings.TrimSuffix(strings.TrimSpace(zone), "."))

	if zone == "" {
		return Target{}, fmt.Errorf("%w: zone cannot be empty", ErrInvalidTarget)
	}
	if !strings.Contains(zone, ".") {
		return Target{}, fmt.Errorf("%w: zone %q must have at least one dot", ErrInvalidTarget, zone)
	}
	if hostname == "" {
		return Target{}, fmt.Errorf("%w: hostname cannot be empty", ErrInvalidTarget)
	}

	switch {
	case hostname == zone:
	case strings.HasSuffix(hostname, "."+zone):
	case !strings.Contains(hostname, "."):
		hostname = hostname + "." + zone
	default:
		return Target{}, fmt.Errorf("%w: %q is not within zone %q", ErrInvalidTarget, hostname, zone)
	}

	for _, name := range []string{hostname, zone} {
		if err := checkLabels(name); err != nil {
			return Target{}, fmt.Errorf("%w: %s", ErrInvalidTarget, err)
		}
	}

	return Target{Hostname: hostname, Zone: zone}, nil
}

func checkLabels(name string) error {
	for _, label := range strings.Split(name, ".") {
		if label == "" {
			return fmt.Errorf("%q contains an empty label", name)
		}
		if strings.HasPrefix(label, "-") || strings.HasSuffix(label, "-") {
			return fmt.Errorf("label %q may not begin or end with a hyphen", label)
		}
		for _, r := range label {
			if r >= 'a' && r <= 'z' || r >= '0' && r <= '9' || r == '-' {
				continue
			}
			return fmt.Errorf("label %q contains illegal character %q", label, r)
		}
	}
	return nil
}

func (t Target) validate() error {
	if t.Hostname == "" || t.Zone == "" {
		return fmt.Errorf("%w: target must be constructed with NewTarget", ErrInvalidTarget)
	}
	return nil
}
