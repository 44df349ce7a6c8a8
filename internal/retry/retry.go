package retry

import (
	"context"
	"fmt"
	"time"
)

// Do runs fn up to attempts times, doubling the delay between attempts
// starting from backoff. It stops early when fn succeeds or the context is
// cancelled, and returns the last error once attempts are exhausted.
func Do(ctx context.Context, attempts int, backoff time.Duration, fn func() error) error {
	if attempts < 1 {
		attempts = 1
	}

	var lastErr error
	delay := backoff
	for attempt := 1; attempt <= attempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		lastErr = fn()
		if lastErr == nil {
			return nil
		}
		if attempt == attempts {
			break
		}

		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return ctx.Err()
		}
		delay *= 2
	}
	return fmt.Errorf("giving up after %d attempts: %w", attempts, lastErr)
}
