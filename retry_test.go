package dnspin

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestRetrySucceedsOnLaterAttempt(t *testing.T) {
	calls := 0
	p := Policy{MaxAttempts: 3, Timeout: time.Second, Delay: time.Millisecond}
	got, err := retry(context.Background(), p, func(context.Context) (string, error) {
		calls++
		if calls < 3 {
			return "", errors.New("transient")
		}
		return "ok", nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %s", err)
	}
	if got != "ok" {
		t.Fatalf("expected %q; got %q", "ok", got)
	}
	if calls != 3 {
		t.Fatalf("expected 3 calls; got %d", calls)
	}
}

func TestRetryExhaustsAttempts(t *testing.T) {
	calls := 0
	boom := errors.New("boom")
	p := Policy{MaxAttempts: 4, Timeout: time.Second, Delay: time.Millisecond}
	_, err := retry(context.Background(), p, func(context.Context) (int, error) {
		calls++
		return 0, boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("expected the last attempt's error; got %v", err)
	}
	if calls != 4 {
		t.Fatalf("expected exactly 4 calls; got %d", calls)
	}
}

func TestRetryStopsWhenContextCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	p := Policy{MaxAttempts: 10, Timeout: time.Second, Delay: time.Minute}
	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()
	_, err := retry(ctx, p, func(context.Context) (int, error) {
		calls++
		return 0, errors.New("transient")
	})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled; got %v", err)
	}
	if calls != 1 {
		t.Fatalf("expected the delay to be interrupted after 1 call; got %d", calls)
	}
}

func TestRetryBoundsAttemptDuration(t *testing.T) {
	p := Policy{MaxAttempts: 1, Timeout: 10 * time.Millisecond}
	start := time.Now()
	_, err := retry(context.Background(), p, func(ctx context.Context) (int, error) {
		<-ctx.Done()
		return 0, ctx.Err()
	})
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected context.DeadlineExceeded; got %v", err)
	}
	if elapsed := time.Since(start); elapsed > time.Second {
		t.Fatalf("attempt was not bounded by the per-attempt timeout; took %s", elapsed)
	}
}
