// Package retry provides a small retry decorator with exponential backoff,
// parameterized by a transient-error predicate.
package retry

import (
	"context"
	"fmt"
	"time"
)

// Policy bounds a retry loop. BaseDelay doubles after every failed
// attempt.
type Policy struct {
	Attempts  int
	BaseDelay time.Duration
}

// Do runs fn up to p.Attempts times, sleeping between attempts with a
// doubling delay. A non-transient error aborts immediately. Exhausting
// attempts returns the last observed error.
func Do(ctx context.Context, p Policy, transient func(error) bool, fn func() error) error {
	if p.Attempts < 1 {
		p.Attempts = 1
	}

	delay := p.BaseDelay
	var lastErr error

	for attempt := 1; attempt <= p.Attempts; attempt++ {
		lastErr = fn()
		if lastErr == nil {
			return nil
		}

		if !transient(lastErr) {
			return lastErr
		}

		if attempt == p.Attempts {
			break
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
		delay *= 2
	}

	return fmt.Errorf("retries exhausted after %d attempts: %w", p.Attempts, lastErr)
}
