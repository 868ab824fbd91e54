package dnspin

import (
	"context"
	"fmt"
	"log"
	"net/netip"
	"time"
)

// Outcome reports how a reconciliation run ended.
type Outcome int

const (
	// OutcomeFailed means the run stopped before converging; the returned
	// error names the stage that failed.
	OutcomeFailed Outcome = iota
	// OutcomeNoChange means the provider's record already matched the
	// discovered public address and no update was issued.
	OutcomeNoChange
	// OutcomeUpdated means the record was updated and the change was
	// confirmed via public DNS within the verification budget.
	OutcomeUpdated
	// OutcomeUpdatedUnverified means the provider accepted the update but
	// public DNS never served the new address within the verification
	// budget. The run is still a failure for exit-code purposes.
	OutcomeUpdatedUnverified
	// OutcomeWouldUpdate means a dry run found the record out of date; no
	// update was issued.
	OutcomeWouldUpdate
)

func (o Outcome) String() string {
	switch o {
	case OutcomeNoChange:
		return "no change needed"
	case OutcomeUpdated:
		return "updated and verified"
	case OutcomeUpdatedUnverified:
		return "updated but unverified"
	case OutcomeWouldUpdate:
		return "update needed"
	default:
		return "failed"
	}
}

// Controller drives one reconciliation pass over a single A record. It
// assumes it is the sole writer of that record while Run executes;
// concurrent invocations must be excluded by the caller, for example with a
// file lock around the whole process.
type Controller struct {
	target    Target
	directory Directory
	resolver  Resolver
	lookup    Lookuper
	logger    *log.Logger

	retryPolicy    Policy
	settleDelay    time.Duration
	verifyAttempts int
	verifyDelay    time.Duration
	recordTTL      int
	dryRun         bool
}

// Run executes one reconciliation pass: verify credentials, resolve the zone
// and record, discover the machine's public IPv4, compare, and converge.
//
// The comparison baseline is the provider's record content, not the
// published DNS answer: the provider's view is the value the update call
// targets, while the published answer can lag behind during propagation and
// is consulted only as a pre-check health signal and for post-update
// verification.
//
// The returned Outcome is OutcomeNoChange, OutcomeUpdated, or - on a dry
// run - OutcomeWouldUpdate on success (error == nil), anything else on
// failure (error != nil).
func (c *Controller) Run(ctx context.Context) (Outcome, error) {
	if err := c.target.validate(); err != nil {
		return OutcomeFailed, err
	}

	if err := c.directory.VerifyIdentity(ctx); err != nil {
		return OutcomeFailed, err
	}
	zone, err := c.directory.ResolveZone(ctx, c.target.Zone)
	if err != nil {
		return OutcomeFailed, err
	}
	record, err := c.directory.ResolveRecord(ctx, zone, c.target.Hostname)
	if err != nil {
		return OutcomeFailed, err
	}

	current, err := c.observe(ctx)
	if err != nil {
		return OutcomeFailed, err
	}

	if current == record.Content {
		c.logger.Printf("record %s already points at %s\n", c.target.Hostname, current)
		return OutcomeNoChange, nil
	}

	if c.dryRun {
		c.logger.Printf("dry run: would update %s from %s to %s\n", c.target.Hostname, record.Content, current)
		return OutcomeWouldUpdate, nil
	}

	c.logger.Printf("updating %s from %s to %s\n", c.target.Hostname, record.Content, current)
	if err := c.directory.UpdateRecord(ctx, zone, record, current); err != nil {
		return OutcomeFailed, err
	}

	if err := c.verify(ctx, current); err != nil {
		return OutcomeUpdatedUnverified, err
	}
	c.logger.Printf("update to %s confirmed via public DNS\n", current)
	return OutcomeUpdated, nil
}

// observe discovers the machine's public address and, concurrently, checks
// what public DNS currently serves for the hostname. Only the discovered
// address decides anything; a failed published pre-check is logged and
// otherwise ignored, because the published answer is expected to go stale
// whenever the real address changes.
func (c *Controller) observe(ctx context.Context) (netip.Addr, error) {
	lookupCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	published := make(chan netip.Addr, 1)
	go func() {
		addr, err := c.lookup.LookupA(lookupCtx, c.target.Hostname)
		if err != nil {
			c.logger.Printf("published lookup pre-check failed: %s\n", err)
		}
		published <- addr
	}()

	current, err := c.resolver.Resolve(ctx)
	if err != nil {
		// don't sit out the pre-check's retry budget when there is no
		// discovery result to compare it against
		return netip.Addr{}, fmt.Errorf("error discovering public IP: %w", err)
	}
	pub := <-published

	c.logger.Printf("discovered public IP %s; published answer is %s\n", current, addrOrNone(pub))
	return current, nil
}

// verify waits out the propagation settle delay and then polls the published
// lookup until it serves want or the attempt budget runs out.
func (c *Controller) verify(ctx context.Context, want netip.Addr) error {
	c.logger.Printf("waiting %s for the update to settle\n", c.settleDelay)
	if err := sleep(ctx, c.settleDelay); err != nil {
		return fmt.Errorf("%w: attempted %s: %w", ErrVerificationTimedOut, want, err)
	}

	var lastSeen netip.Addr
	for attempt := 1; attempt <= c.verifyAttempts; attempt++ {
		if attempt > 1 {
			if err := sleep(ctx, c.verifyDelay); err != nil {
				return fmt.Errorf("%w: attempted %s, last published %s: %w", ErrVerificationTimedOut, want, addrOrNone(lastSeen), err)
			}
		}

		addr, err := c.lookup.LookupA(ctx, c.target.Hostname)
		if err != nil {
			c.logger.Printf("verification attempt %d/%d: %s\n", attempt, c.verifyAttempts, err)
			continue
		}
		lastSeen = addr
		if addr == want {
			return nil
		}
		c.logger.Printf("verification attempt %d/%d: published %s, want %s\n", attempt, c.verifyAttempts, addr, want)
	}

	return fmt.Errorf("%w after %d attempts: attempted %s, last published %s",
		ErrVerificationTimedOut, c.verifyAttempts, want, addrOrNone(lastSeen))
}

func addrOrNone(a netip.Addr) string {
	if !a.IsValid() {
		return "(none)"
	}
	return a.String()
}
