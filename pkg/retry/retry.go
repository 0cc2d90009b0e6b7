// Package retry provides a small injectable retry policy for network calls.
package retry

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

// Policy retries an operation a fixed number of times with a fixed delay
// between attempts. No jitter: the policy targets transient mirror flakiness,
// not adversarial failure. A zero-delay policy keeps tests fast.
type Policy struct {
	Attempts int
	Delay    time.Duration
}

// Default is the policy used when nothing is configured.
var Default = Policy{Attempts: 3, Delay: 5 * time.Second}

// Do runs fn until it succeeds or the attempts are exhausted. The context is
// only consulted between attempts; a running attempt is never interrupted.
func (p Policy) Do(ctx context.Context, op string, fn func() error) error {
	attempts := p.Attempts
	if attempts < 1 {
		attempts = 1
	}

	var lastErr error

	for attempt := 1; attempt <= attempts; attempt++ {
		if attempt > 1 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(p.Delay):
			}
		}

		lastErr = fn()
		if lastErr == nil {
			return nil
		}

		slog.Warn("attempt failed", "op", op, "attempt", attempt, "of", attempts, "error", lastErr)
	}

	return fmt.Errorf("%s: %d attempts: %w", op, attempts, lastErr)
}
