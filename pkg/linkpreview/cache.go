package linkpreview

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"time"
)

// GetCachedPreview returns the fresh record for url, or nil. An expired record is deleted
// as a side effect.
func (e *Engine) GetCachedPreview(ctx context.Context, url string) (*Record, error) {
	rec, err := e.store.FindByURL(ctx, url)
	if errors.Is(err, ErrNotFound) {
		e.misses.Add(1)
		return nil, nil
	}
	if err != nil {
		e.misses.Add(1)
		return nil, err
	}

	if rec.Expired(e.opts.Now()) {
		e.misses.Add(1)
		slog.Debug("Cached preview expired", "url", url, "expiresAt", rec.ExpiresAt)
		if err := e.store.DeleteByURL(ctx, url); err != nil {
			slog.Error("Failed to delete expired preview", "url", url, "error", err)
		}
		return nil, nil
	}

	e.hits.Add(1)
	return rec, nil
}

// CachePreview upserts preview for url with the standard cache TTL.
func (e *Engine) CachePreview(ctx context.Context, url string, preview *Result) error {
	return e.cachePreviewTTL(ctx, url, preview, e.opts.CacheTTL)
}

func (e *Engine) cachePreviewTTL(ctx context.Context, url string, preview *Result, ttl time.Duration) error {
	now := e.opts.Now()
	rec := &Record{
		URL:          url,
		Title:        preview.Title,
		Description:  preview.Description,
		ImageURL:     preview.ImageURL,
		SiteName:     preview.SiteName,
		Price:        preview.Price,
		Availability: preview.Availability,
		Strategy:     preview.Strategy,
		ExpiresAt:    now.Add(ttl),
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := e.store.Upsert(ctx, rec); err != nil {
		return fmt.Errorf("failed to cache preview for %s: %w", url, err)
	}
	return nil
}

// cacheAsync writes the preview in the background. Failures are logged only.
func (e *Engine) cacheAsync(url string, preview *Result, ttl time.Duration) {
	snapshot := preview.clone()

	e.pending.Add(1)
	go func() {
		defer e.pending.Done()

		ctx, cancel := context.WithTimeout(context.Background(), e.opts.CacheWriteTimeout)
		defer cancel()

		if err := e.cachePreviewTTL(ctx, url, snapshot, ttl); err != nil {
			slog.Error("Failed to cache preview", "url", url, "error", err)
			return
		}
		slog.Debug("Cached preview", "url", url, "strategy", snapshot.Strategy, "ttl", ttl)
	}()
}

// CleanupExpiredCache deletes every record that has expired and returns how many.
func (e *Engine) CleanupExpiredCache(ctx context.Context) (int64, error) {
	n, err := e.store.DeleteExpiredBefore(ctx, e.opts.Now())
	if err != nil {
		return 0, err
	}
	slog.Info("Cleaned up expired previews", "deleted", n)
	return n, nil
}

// InvalidateCacheForURL deletes the record for url unconditionally.
func (e *Engine) InvalidateCacheForURL(ctx context.Context, url string) error {
	if err := e.store.DeleteByURL(ctx, url); err != nil {
		return err
	}
	slog.Info("Invalidated cached preview", "url", url)
	return nil
}

// GetCacheStats reports record counts, the share of records still valid (as a percentage)
// and this process's hit and miss counters.
func (e *Engine) GetCacheStats(ctx context.Context) (*CacheStats, error) {
	total, err := e.store.Count(ctx)
	if err != nil {
		return nil, err
	}
	valid, err := e.store.CountNotExpired(ctx, e.opts.Now())
	if err != nil {
		return nil, err
	}

	stats := &CacheStats{
		TotalCached: total,
		ValidCached: valid,
		Hits:        e.hits.Load(),
		Misses:      e.misses.Load(),
	}
	if total > 0 {
		stats.CacheHitRate = math.Round(float64(valid)/float64(total)*10000) / 100
	}
	return stats, nil
}
