package xfeed

import (
	"context"
	"errors"
	"time"
)

// RetryPolicy bounds a retry loop.
type RetryPolicy struct {
	Attempts int
	// Delay waits before attempt n (1-based retry count). Nil uses a fixed
	// Backoff sleep that honors ctx.
	Delay func(ctx context.Context, retry int) error
	// Backoff is the fixed wait used when Delay is nil.
	Backoff time.Duration
	// Retryable reports whether err is worth another attempt.
	Retryable func(err error) bool
}

// DefaultCaptureRetry retries a session capture while cookies are still being
// flushed to the readable store after the login redirect.
var DefaultCaptureRetry = RetryPolicy{
	Attempts:  3,
	Backoff:   800 * time.Millisecond,
	Retryable: func(err error) bool { return errors.Is(err, ErrCookieMissingRequired) },
}

func (p RetryPolicy) wait(ctx context.Context, retry int) error {
	if p.Delay != nil {
		return p.Delay(ctx, retry)
	}
	t := time.NewTimer(p.Backoff)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Retry calls fn until it succeeds, returns a non-retryable error or the
// attempts run out. The last error is returned.
func Retry[T any](ctx context.Context, p RetryPolicy, fn func(ctx context.Context) (T, error)) (T, error) {
	attempts := max(p.Attempts, 1)
	var zero T
	var lastErr error
	for attempt := range attempts {
		if attempt > 0 {
			if err := p.wait(ctx, attempt); err != nil {
				return zero, err
			}
		}
		v, err := fn(ctx)
		if err == nil {
			return v, nil
		}
		lastErr = err
		if p.Retryable == nil || !p.Retryable(err) {
			return zero, err
		}
	}
	return zero, lastErr
}
