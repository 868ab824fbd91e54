package dnspin

import (
	"context"
	"errors"
	"time"
)

// Policy bounds one network step: how many attempts to make, how long each
// attempt may take, and how long to wait between attempts.
type Policy struct {
	MaxAttempts int
	Timeout     time.Duration
	Delay       time.Duration
}

// DefaultPolicy is applied to provider directory calls and published DNS
// lookups unless overridden with WithRetryPolicy.
var DefaultPolicy = Policy{
	MaxAttempts: 3,
	Timeout:     10 * time.Second,
	Delay:       5 * time.Second,
}

func (p Policy) normalized() Policy {
	if p.MaxAttempts < 1 {
		p.MaxAttempts = 1
	}
	if p.Timeout <= 0 {
		p.Timeout = DefaultPolicy.Timeout
	}
	return p
}

// retry runs fn under p, bounding each attempt with a timeout derived from ctx
// and sleeping p.Delay between attempts. The error from the last attempt is
// returned once attempts are exhausted.
func retry[T any](ctx context.Context, p Policy, fn func(context.Context) (T, error)) (T, error) {
	p = p.normalized()

	var lastErr error
	for attempt := 0; attempt < p.MaxAttempts; attempt++ {
		if attempt > 0 {
			if err := sleep(ctx, p.Delay); err != nil {
				var zero T
				return zero, errors.Join(err, lastErr)
			}
		}

		attemptCtx, cancel := context.WithTimeout(ctx, p.Timeout)
		result, err := fn(attemptCtx)
		cancel()
		if err == nil {
			return result, nil
		}
		lastErr = err

		if ctx.Err() != nil {
			break
		}
	}

	var zero T
	return zero, lastErr
}

// sleep waits for d or until ctx is done, whichever comes first.
func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
