package api

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/lepinkainen/registry-preview/pkg/stealth"
)

// RetryPolicy defines the attempt budget and the randomized waits of a scrape.
type RetryPolicy struct {
	MaxAttempts int
	// AttemptDelay is the jitter before attempt 1; attempt n waits AttemptDelay scaled by n.
	AttemptDelay stealth.Range
	// BotBackoff is waited after an attempt that was served a bot challenge.
	BotBackoff stealth.Range
	// ErrorBackoff is waited after any other failed attempt.
	ErrorBackoff stealth.Range
	// IsBlocked classifies errors that should use BotBackoff.
	IsBlocked func(error) bool
}

// DefaultRetryPolicy returns the scrape policy: three attempts, 1-3s pre-attempt jitter,
// 5-10s after bot challenges and 2-5s after other errors.
func DefaultRetryPolicy() *RetryPolicy {
	return &RetryPolicy{
		MaxAttempts:  3,
		AttemptDelay: stealth.Range{Min: 1 * time.Second, Max: 3 * time.Second},
		BotBackoff:   stealth.Range{Min: 5 * time.Second, Max: 10 * time.Second},
		ErrorBackoff: stealth.Range{Min: 2 * time.Second, Max: 5 * time.Second},
	}
}

// AttemptDelayFor returns the randomized pause before the given 1-based attempt.
func (rp *RetryPolicy) AttemptDelayFor(attempt int) time.Duration {
	if attempt <= 0 {
		return 0
	}
	return rp.AttemptDelay.Scale(attempt).Pick()
}

// BackoffFor returns the randomized pause after a failed attempt.
func (rp *RetryPolicy) BackoffFor(err error) time.Duration {
	if rp.IsBlocked != nil && rp.IsBlocked(err) {
		return rp.BotBackoff.Pick()
	}
	return rp.ErrorBackoff.Pick()
}

// HTTPError represents a non-2xx response.
type HTTPError struct {
	StatusCode int
	Message    string
}

// Error implements the error interface
func (e *HTTPError) Error() string {
	return fmt.Sprintf("HTTP %d: %s", e.StatusCode, e.Message)
}

// RetryableOperation is one attempt; attempt is 1-based.
type RetryableOperation func(ctx context.Context, attempt int) error

// ExecuteWithRetry runs operation up to MaxAttempts times, sleeping BackoffFor(err) between
// failed attempts. Attempts are strictly sequential. A cancelled context stops the loop.
func (rp *RetryPolicy) ExecuteWithRetry(ctx context.Context, operationName string, sleep stealth.SleepFunc, operation RetryableOperation) error {
	if sleep == nil {
		sleep = stealth.Sleep
	}

	maxAttempts := max(rp.MaxAttempts, 1)
	var lastErr error

	for attempt := 1; attempt <= maxAttempts; attempt++ {
		err := operation(ctx, attempt)
		if err == nil {
			if attempt > 1 {
				slog.Info("Operation succeeded after retry",
					"operation", operationName,
					"attempt", attempt)
			}
			return nil
		}
		lastErr = err

		if ctx.Err() != nil || attempt == maxAttempts {
			break
		}

		backoff := rp.BackoffFor(err)
		slog.Warn("Retrying operation",
			"operation", operationName,
			"attempt", attempt,
			"maxAttempts", maxAttempts,
			"backoff", backoff,
			"lastError", err)
		if err := sleep(ctx, backoff); err != nil {
			return fmt.Errorf("operation %s interrupted: %w", operationName, err)
		}
	}

	return fmt.Errorf("operation %s failed after %d attempts: %w", operationName, maxAttempts, lastErr)
}
