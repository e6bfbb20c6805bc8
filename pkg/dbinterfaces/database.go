// Package dbinterfaces provides shared database interface definitions.
package dbinterfaces

import (
	"context"
	"io"
	"time"
)

// Database defines the common interface for database operations
type Database interface {
	io.Closer // Close() error
}

// StatsProvider is implemented by stores that can report their record counts.
type StatsProvider interface {
	Count(ctx context.Context) (int64, error)
	CountNotExpired(ctx context.Context, now time.Time) (int64, error)
}

// CleanupProvider is implemented by stores that can sweep stale rows.
type CleanupProvider interface {
	DeleteExpiredBefore(ctx context.Context, now time.Time) (int64, error)
}
