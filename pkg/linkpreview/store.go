package linkpreview

import (
	"context"
	"time"
)

// Store persists one Record per URL.
type Store interface {
	// FindByURL returns ErrNotFound when no record exists.
	FindByURL(ctx context.Context, url string) (*Record, error)
	// Upsert inserts or replaces the record for rec.URL.
	Upsert(ctx context.Context, rec *Record) error
	DeleteByURL(ctx context.Context, url string) error
	// DeleteExpiredBefore removes records with ExpiresAt < now and returns how many.
	DeleteExpiredBefore(ctx context.Context, now time.Time) (int64, error)
	Count(ctx context.Context) (int64, error)
	// CountNotExpired counts records with ExpiresAt >= now.
	CountNotExpired(ctx context.Context, now time.Time) (int64, error)
}
