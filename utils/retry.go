package utils

import (
	"context"
	"fmt"
	"math/rand"
	"time"
)

// RetryPolicy controls Retry. MaxAttempts of 1 means no retry.
type RetryPolicy struct {
	MaxAttempts int
	Backoff     time.Duration
	// Retryable decides whether an error is worth another attempt.
	// Nil retries every error.
	Retryable func(error) bool
}

// Retry runs fn up to MaxAttempts times.
// If fn returns nil it stops immediately. Otherwise it waits Backoff, then
// twice that, and so on, plus up to one Backoff of jitter:
//
//	attempt 1 fails → wait 2s (+jitter)
//	attempt 2 fails → wait 4s (+jitter)
//
// The last error is returned unwrapped when only one attempt was allowed.
func Retry(ctx context.Context, p RetryPolicy, fn func() error) error {
	if p.MaxAttempts < 1 {
		p.MaxAttempts = 1
	}

	var lastErr error
	for attempt := 1; attempt <= p.MaxAttempts; attempt++ {
		lastErr = fn()
		if lastErr == nil {
			return nil
		}
		if p.Retryable != nil && !p.Retryable(lastErr) {
			return lastErr
		}
		if attempt == p.MaxAttempts {
			break
		}

		wait := p.Backoff * time.Duration(1<<uint(attempt-1))
		if p.Backoff > 0 {
			wait += time.Duration(rand.Int63n(int64(p.Backoff)))
		}
		Warn("Attempt %d/%d failed: %v, retrying in %v", attempt, p.MaxAttempts, lastErr, wait.Round(time.Millisecond))

		t := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			t.Stop()
			return ctx.Err()
		case <-t.C:
		}
	}

	if p.MaxAttempts == 1 {
		return lastErr
	}
	return fmt.Errorf("all %d attempts failed: %w", p.MaxAttempts, lastErr)
}
