package alerts

import (
	"context"
	"errors"
	"fmt"
	"time"
)

var ErrFetchExhausted = errors.New("notification fetch retries exhausted")

// RetryPolicy retries a failed call MaxRetries times, waiting BaseDelay*2^(n-1) before
// the n-th retry.
type RetryPolicy struct {
	BaseDelay  time.Duration
	MaxRetries int
	Sleep      func(ctx context.Context, d time.Duration) error
}

func (p RetryPolicy) Delay(retry int) time.Duration {
	if retry < 1 {
		return 0
	}
	return p.BaseDelay * time.Duration(1<<(retry-1))
}

// Do runs fn until it succeeds, ctx ends, or the retries are used up. The final failure
// is returned wrapped in ErrFetchExhausted.
func (p RetryPolicy) Do(ctx context.Context, fn func(ctx context.Context) error) error {
	sleep := p.Sleep
	if sleep == nil {
		sleep = sleepContext
	}
	retries := max(p.MaxRetries, 0)
	var last error
	for attempt := 0; attempt <= retries; attempt++ {
		if attempt > 0 {
			if err := sleep(ctx, p.Delay(attempt)); err != nil {
				return err
			}
		}
		if last = fn(ctx); last == nil {
			return nil
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
	}
	return fmt.Errorf("%w after %d attempts: %w", ErrFetchExhausted, retries+1, last)
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
