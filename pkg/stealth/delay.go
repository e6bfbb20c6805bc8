package stealth

import (
	"context"
	"math/rand/v2"
	"time"
)

// Range is an inclusive interval for a randomized delay.
type Range struct {
	Min time.Duration
	Max time.Duration
}

// Pick returns a random duration within the range.
func (r Range) Pick() time.Duration {
	return RandomBetween(r.Min, r.Max)
}

// Scale multiplies both bounds by n.
func (r Range) Scale(n int) Range {
	return Range{Min: r.Min * time.Duration(n), Max: r.Max * time.Duration(n)}
}

// RandomBetween returns a uniformly random duration in [min, max].
func RandomBetween(min, max time.Duration) time.Duration {
	if min >= max {
		return min
	}
	return min + time.Duration(rand.Int64N(int64(max-min)+1))
}

// SleepFunc pauses for d or until ctx is done.
type SleepFunc func(ctx context.Context, d time.Duration) error

// Sleep waits for d, returning early with ctx.Err() when ctx is cancelled.
func Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
