package dnspin

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/netip"
	"strings"

	"github.com/cloudflare/cloudflare-go"
)

// defaultRecordTTL keeps caching short for an address that can change at any
// time.
const defaultRecordTTL = 60

func newCloudflareDirectory(token string, opts ...cloudflare.Option) (*cloudflareDirectory, error) {
	api, err := cloudflare.NewWithAPIToken(token, opts...)
	if err != nil {
		return nil, fmt.Errorf("error creating cloudflare api client: %w", err)
	}
	return &cloudflareDirectory{
		api:    api,
		policy: DefaultPolicy,
		ttl:    defaultRecordTTL,
		logger: discard,
	}, nil
}

// newCloudflareKeyDirectory uses the legacy global API key + account email
// authentication mode instead of a scoped bearer token.
func newCloudflareKeyDirectory(key, email string, opts ...cloudflare.Option) (*cloudflareDirectory, error) {
	api, err := cloudflare.New(key, email, opts...)
	if err != nil {
		return nil, fmt.Errorf("error creating cloudflare api client: %w", err)
	}
	return &cloudflareDirectory{
		api:    api,
		email:  email,
		policy: DefaultPolicy,
		ttl:    defaultRecordTTL,
		logger: discard,
	}, nil
}

// cloudflareDirectory implements dnspin.Directory against the Cloudflare v4
// API. The three read operations retry under the directory's policy; the
// update is issued exactly once because a write with an ambiguous outcome
// must not be repeated blindly.
type cloudflareDirectory struct {
	api    *cloudflare.API
	email  string // non-empty selects legacy key auth verification
	policy Policy
	ttl    int
	logger *log.Logger
}

func (cf *cloudflareDirectory) SetLogger(logger *log.Logger) {
	if logger == nil {
		logger = discard
	}
	cf.logger = logger
}

func (cf *cloudflareDirectory) SetRetryPolicy(p Policy) {
	cf.policy = p.normalized()
}

// SetRecordTTL overrides the TTL written on updates, in seconds.
func (cf *cloudflareDirectory) SetRecordTTL(seconds int) {
	if seconds > 0 {
		cf.ttl = seconds
	}
}

// VerifyIdentity implements dnspin.Directory. Token auth is verified against
// the token-verification endpoint; legacy key auth is verified by fetching
// the user, whose non-empty ID confirms the credentials.
func (cf *cloudflareDirectory) VerifyIdentity(ctx context.Context) error {
	_, err := retry(ctx, cf.policy, func(ctx context.Context) (string, error) {
		if cf.email != "" {
			user, err := cf.api.UserDetails(ctx)
			if err != nil {
				return "", fmt.Errorf("unable to fetch user details: %w", err)
			}
			if user.ID == "" {
				return "", errors.New("user details response carried no user ID")
			}
			return user.ID, nil
		}

		result, err := cf.api.VerifyAPIToken(ctx)
		if err != nil {
			return "", fmt.Errorf("unable to verify api token: %w", err)
		}
		if result.ID == "" {
			return "", errors.New("token verification response carried no token ID")
		}
		if result.Status != "active" {
			return "", fmt.Errorf("expected api token status to be \"active\"; got %q", result.Status)
		}
		return result.ID, nil
	})
	if err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidCredentials, err)
	}
	cf.logger.Println("provider credentials verified")
	return nil
}

// ResolveZone implements dnspin.Directory, matching the zone by exact name
// and active status and taking the first match.
func (cf *cloudflareDirectory) ResolveZone(ctx context.Context, name string) (Zone, error) {
	zone, err := retry(ctx, cf.policy, func(ctx context.Context) (Zone, error) {
		zones, err := cf.api.ListZones(ctx, name)
		if err != nil {
			return Zone{}, fmt.Errorf("error listing zones: %w", err)
		}
		for _, z := range zones {
			if z.Name == name && z.Status == "active" {
				return Zone{ID: z.ID, Name: z.Name}, nil
			}
		}
		return Zone{}, fmt.Errorf("no active zone named %q", name)
	})
	if err != nil {
		return Zone{}, fmt.Errorf("%w: %w", ErrZoneNotFound, err)
	}
	cf.logger.Printf("got zone ID: %s\n", zone.ID)
	return zone, nil
}

// ResolveRecord implements dnspin.Directory. Only an existing A record
// qualifies; this system updates records, it never provisions them.
func (cf *cloudflareDirectory) ResolveRecord(ctx context.Context, zone Zone, hostname string) (RecordRef, error) {
	ref, err := retry(ctx, cf.policy, func(ctx context.Context) (RecordRef, error) {
		records, _, err := cf.api.ListDNSRecords(ctx, cloudflare.ZoneIdentifier(zone.ID), cloudflare.ListDNSRecordsParams{
			Type: "A",
			Name: hostname,
		})
		if err != nil {
			return RecordRef{}, fmt.Errorf("error listing DNS records: %w", err)
		}
		if len(records) == 0 {
			return RecordRef{}, fmt.Errorf("no A record exists for %q", hostname)
		}
		record := records[0]
		content, err := ParseIPv4(record.Content)
		if err != nil {
			return RecordRef{}, fmt.Errorf("record %s content is not usable: %w", record.ID, err)
		}
		return RecordRef{ID: record.ID, Content: content}, nil
	})
	if err != nil {
		return RecordRef{}, fmt.Errorf("%w: %w", ErrRecordNotFound, err)
	}
	cf.logger.Printf("found record %s with content %s\n", ref.ID, ref.Content)
	return ref, nil
}

// UpdateRecord implements dnspin.Directory. Proxying stays disabled so the
// record reflects true host reachability. The call is never retried.
func (cf *cloudflareDirectory) UpdateRecord(ctx context.Context, zone Zone, record RecordRef, ip netip.Addr) error {
	ctx, cancel := context.WithTimeout(ctx, cf.policy.Timeout)
	defer cancel()

	_, err := cf.api.UpdateDNSRecord(ctx, cloudflare.ZoneIdentifier(zone.ID), cloudflare.UpdateDNSRecordParams{
		ID:      record.ID,
		Type:    "A",
		Content: ip.String(),
		TTL:     cf.ttl,
		Proxied: cloudflare.BoolPtr(false),
	})
	if err != nil {
		return &UpdateRejectedError{Message: providerMessage(err)}
	}
	cf.logger.Printf("record %s updated to %s\n", record.ID, ip)
	return nil
}

// providerMessage pulls the provider's own error message(s) out of a
// cloudflare-go error so they can be surfaced verbatim.
func providerMessage(err error) string {
	var withMessages interface{ ErrorMessages() []string }
	if errors.As(err, &withMessages) {
		if msgs := withMessages.ErrorMessages(); len(msgs) > 0 {
			return strings.Join(msgs, "; ")
		}
	}
	return err.Error()
}
