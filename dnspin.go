package dnspin

import (
	"fmt"
	"io"
	"log"
	"time"

	"github.com/cloudflare/cloudflare-go"
)

var discard = log.New(io.Discard, "", log.LstdFlags)

// New constructs a Controller that reconciles the target's A record on each
// call to Run. A Directory implementation is required - use UsingCloudflare
// or similar. Without UsingResolver or UsingWebResolver, public IP discovery
// uses WebResolver over DefaultIPSources; without UsingLookup, published
// lookups use NewLookupClient over DefaultDNSServers.
func New(target Target, options ...Option) (*Controller, error) {
	if err := target.validate(); err != nil {
		return nil, fmt.Errorf("dnspin.New: %w", err)
	}
	c := &Controller{
		target:         target,
		logger:         discard,
		settleDelay:    60 * time.Second,
		verifyAttempts: 5,
		verifyDelay:    30 * time.Second,
		retryPolicy:    DefaultPolicy,
	}
	for i, opt := range options {
		if err := opt(c); err != nil {
			return nil, fmt.Errorf("dnspin.New: option %d returned an error: %w", i, err)
		}
	}

	if c.directory == nil {
		return nil, fmt.Errorf("dnspin.New: no DNS provider was registered and there is no default option - use dnspin.UsingCloudflare or similar")
	}
	if c.resolver == nil {
		r, err := WebResolver()
		if err != nil {
			return nil, fmt.Errorf("dnspin.New: %w", err)
		}
		c.resolver = r
	}
	if c.lookup == nil {
		c.lookup = NewLookupClient()
	}

	// propagate settings to dependencies that use them, regardless of
	// option order
	withLogger(c.logger)(c)
	withRetryPolicy(c.retryPolicy)(c)
	if c.recordTTL > 0 {
		if d, ok := c.directory.(interface{ SetRecordTTL(int) }); ok {
			d.SetRecordTTL(c.recordTTL)
		}
	}
	return c, nil
}

// Option configures the Controller returned by New.
type Option func(*Controller) error

// UsingCloudflare registers a Cloudflare directory authenticated with a
// scoped API bearer token.
func UsingCloudflare(token string, opts ...cloudflare.Option) Option {
	return func(c *Controller) (err error) {
		if c.directory, err = newCloudflareDirectory(token, opts...); err != nil {
			return fmt.Errorf("dnspin.UsingCloudflare: %w", err)
		}
		return nil
	}
}

// UsingCloudflareKey registers a Cloudflare directory authenticated with the
// legacy global API key and account email pair.
func UsingCloudflareKey(key, email string, opts ...cloudflare.Option) Option {
	return func(c *Controller) (err error) {
		if c.directory, err = newCloudflareKeyDirectory(key, email, opts...); err != nil {
			return fmt.Errorf("dnspin.UsingCloudflareKey: %w", err)
		}
		return nil
	}
}

// UsingDirectory registers a custom Directory implementation.
func UsingDirectory(d Directory) Option {
	return func(c *Controller) error {
		if d == nil {
			return fmt.Errorf("dnspin.UsingDirectory: directory cannot be nil")
		}
		c.directory = d
		return nil
	}
}

// UsingResolver overrides public IP discovery.
func UsingResolver(resolver Resolver) Option {
	return func(c *Controller) error {
		c.resolver = resolver
		return nil
	}
}

// UsingWebResolver overrides public IP discovery with a WebResolver over the
// given service URLs.
func UsingWebResolver(serviceURL ...string) Option {
	return func(c *Controller) error {
		r, err := WebResolver(serviceURL...)
		if err != nil {
			return err
		}
		c.resolver = r
		return nil
	}
}

// UsingLookup overrides the published DNS lookup client.
func UsingLookup(lookup Lookuper) Option {
	return func(c *Controller) error {
		c.lookup = lookup
		return nil
	}
}

// WithLogger directs diagnostic output to logger. The default discards it.
func WithLogger(logger *log.Logger) Option {
	return func(c *Controller) error {
		if logger == nil {
			logger = discard
		}
		c.logger = logger
		return nil
	}
}

func withLogger(logger *log.Logger) Option {
	return func(c *Controller) error {
		type setLogger interface {
			SetLogger(*log.Logger)
		}
		if d, ok := c.directory.(setLogger); ok {
			d.SetLogger(logger)
		}
		if r, ok := c.resolver.(setLogger); ok {
			r.SetLogger(logger)
		}
		if l, ok := c.lookup.(setLogger); ok {
			l.SetLogger(logger)
		}
		return nil
	}
}

// WithRetryPolicy bounds each network step (directory reads and published
// lookups) with p.
func WithRetryPolicy(p Policy) Option {
	return func(c *Controller) error {
		c.retryPolicy = p.normalized()
		return nil
	}
}

func withRetryPolicy(p Policy) Option {
	return func(c *Controller) error {
		type setRetryPolicy interface {
			SetRetryPolicy(Policy)
		}
		if d, ok := c.directory.(setRetryPolicy); ok {
			d.SetRetryPolicy(p)
		}
		if l, ok := c.lookup.(setRetryPolicy); ok {
			l.SetRetryPolicy(p)
		}
		return nil
	}
}

// WithVerification bounds the post-update verification poll: attempts polls
// of the published lookup, delay apart, after an initial settle wait.
func WithVerification(attempts int, delay time.Duration, settle time.Duration) Option {
	return func(c *Controller) error {
		if attempts < 1 {
			return fmt.Errorf("dnspin.WithVerification: attempts must be at least 1")
		}
		c.verifyAttempts = attempts
		c.verifyDelay = delay
		c.settleDelay = settle
		return nil
	}
}

// WithRecordTTL overrides the TTL written on record updates, in seconds.
func WithRecordTTL(seconds int) Option {
	return func(c *Controller) error {
		if seconds < 1 {
			return fmt.Errorf("dnspin.WithRecordTTL: seconds must be at least 1")
		}
		c.recordTTL = seconds
		return nil
	}
}

// WithDryRun reports the update decision without issuing the update call.
func WithDryRun(enabled bool) Option {
	return func(c *Controller) error {
		c.dryRun = enabled
		return nil
	}
}
