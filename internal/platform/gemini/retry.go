package gemini

import (
	"context"
	"errors"
	"fmt"
	"time"

	backoff "github.com/cenkalti/backoff/v4"

	"github.com/phrazzld/gitsong/internal/generation"
)

// maxDelayDoublings caps the retry interval at baseDelay * 2^maxDelayDoublings.
const maxDelayDoublings = 5

// retryPolicy backs off exponentially from baseDelay with ±50% jitter and
// gives up after maxRetries retries or when ctx is done.
func (c *Client) retryPolicy(ctx context.Context) backoff.BackOffContext {
	expo := backoff.NewExponentialBackOff()
	expo.InitialInterval = c.baseDelay
	expo.Multiplier = 2
	expo.RandomizationFactor = 0.5
	expo.MaxInterval = c.baseDelay << maxDelayDoublings
	expo.MaxElapsedTime = 0
	return backoff.WithContext(backoff.WithMaxRetries(expo, uint64(c.maxRetries)), ctx)
}

// permanent reports errors a retry cannot fix.
func permanent(err error) bool {
	return errors.Is(err, generation.ErrContentBlocked) || errors.Is(err, generation.ErrInvalidResponse)
}

// withRetry runs fn until it succeeds, fails permanently or the retry
// budget is spent. Exhaustion and cancellation wrap ErrTransientFailure.
func (c *Client) withRetry(ctx context.Context, op string, fn func(ctx context.Context) error) error {
	attempt := 0
	var lastErr error

	operation := func() error {
		attempt++
		c.logger.DebugContext(ctx, "making Gemini API call",
			"operation", op,
			"attempt", attempt,
			"max_attempts", c.maxRetries+1)

		err := fn(ctx)
		if err == nil {
			return nil
		}
		lastErr = err
		if permanent(err) {
			c.logger.WarnContext(ctx, "permanent error occurred, not retrying",
				"operation", op,
				"error", err)
			return backoff.Permanent(err)
		}
		c.logger.ErrorContext(ctx, "Gemini API call failed",
			"operation", op,
			"attempt", attempt,
			"error", err)
		return err
	}
	notify := func(_ error, delay time.Duration) {
		c.logger.InfoContext(ctx, "retrying after delay",
			"operation", op,
			"attempt", attempt,
			"delay_ms", delay.Milliseconds())
	}

	err := backoff.RetryNotify(operation, c.retryPolicy(ctx), notify)
	switch {
	case err == nil:
		return nil
	case permanent(err):
		return err
	case ctx.Err() != nil:
		return fmt.Errorf("%w: %w", generation.ErrTransientFailure, ctx.Err())
	default:
		return fmt.Errorf("%w: exceeded maximum retry attempts (%d): %w",
			generation.ErrTransientFailure, c.maxRetries, lastErr)
	}
}
