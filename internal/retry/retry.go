// Package retry provides bounded retry helpers for transient failures.
package retry

import (
	"fmt"
	"time"
)

// Do runs fn up to attempts times with a fixed delay between attempts.
// It returns nil on the first success, or the last error wrapped with
// the attempt count once the bound is exhausted.
func Do(attempts int, delay time.Duration, fn func() error) error {
	if attempts < 1 {
		attempts = 1
	}

	var lastErr error

	for attempt := 0; attempt < attempts; attempt++ {
		if attempt > 0 {
			time.Sleep(delay)
		}

		if lastErr = fn(); lastErr == nil {
			return nil
		}
	}

	return fmt.Errorf("failed after %d attempts: %w", attempts, lastErr)
}

// DoWithBackoff is like Do but doubles the delay after each failed
// attempt, capped at 30 seconds.
func DoWithBackoff(attempts int, base time.Duration, fn func() error) error {
	if attempts < 1 {
		attempts = 1
	}

	var lastErr error

	delay := base

	for attempt := 0; attempt < attempts; attempt++ {
		if attempt > 0 {
			time.Sleep(delay)

			delay = min(delay*2, 30*time.Second)
		}

		if lastErr = fn(); lastErr == nil {
			return nil
		}
	}

	return fmt.Errorf("failed after %d attempts: %w", attempts, lastErr)
}
