package subscriber

import (
	"context"
	"time"
)

// maxRetryDelay bounds the backoff growth; the synchronizer retries across
// the daemon's whole lifetime and must not back off into multi-minute gaps.
const maxRetryDelay = 30 * time.Second

// withRetry runs fn up to maxRetries+1 times with exponential backoff,
// respecting context cancellation between attempts. Used for the upstream
// chain fetches (head number, log filters) in the driving loop.
func withRetry(ctx context.Context, maxRetries int, baseDelay time.Duration, fn func(context.Context) error) error {
	if maxRetries < 0 {
		maxRetries = 0
	}
	if baseDelay <= 0 {
		baseDelay = 100 * time.Millisecond
	}

	delay := baseDelay
	for attempt := 0; ; attempt++ {
		err := fn(ctx)
		if err == nil {
			return nil
		}
		if attempt >= maxRetries {
			return err
		}

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}

		delay *= 2
		if delay > maxRetryDelay {
			delay = maxRetryDelay
		}
	}
}
