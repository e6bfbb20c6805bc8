package linkpreview

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestGetCachedPreview_TTL(t *testing.T) {
	clock := newFakeClock()
	engine, store := newTestEngine(t, failingFetcher(), clock)
	ctx := context.Background()
	rawURL := "https://www.target.com/p/glider"

	if err := engine.CachePreview(ctx, rawURL, &Result{URL: rawURL, Title: "Glider"}); err != nil {
		t.Fatalf("CachePreview() error = %v", err)
	}

	clock.Advance(DefaultCacheTTL - time.Nanosecond)
	rec, err := engine.GetCachedPreview(ctx, rawURL)
	if err != nil {
		t.Fatalf("GetCachedPreview() error = %v", err)
	}
	if rec == nil || rec.Title != "Glider" {
		t.Fatalf("Expected a cache hit just before expiry, got %+v", rec)
	}

	clock.Advance(time.Nanosecond)
	rec, err = engine.GetCachedPreview(ctx, rawURL)
	if err != nil {
		t.Fatalf("GetCachedPreview() error = %v", err)
	}
	if rec != nil {
		t.Fatalf("Expected a miss at expiry, got %+v", rec)
	}
	if _, err := store.FindByURL(ctx, rawURL); !errors.Is(err, ErrNotFound) {
		t.Errorf("Expected the expired record to be deleted, got %v", err)
	}
}

func TestCachePreview_Idempotent(t *testing.T) {
	clock := newFakeClock()
	engine, store := newTestEngine(t, failingFetcher(), clock)
	ctx := context.Background()
	rawURL := "https://www.walmart.com/ip/bouncer"

	if err := engine.CachePreview(ctx, rawURL, &Result{URL: rawURL, Title: "A", Price: ptr(10)}); err != nil {
		t.Fatalf("CachePreview(A) error = %v", err)
	}
	created := clock.Now()

	clock.Advance(time.Hour)
	if err := engine.CachePreview(ctx, rawURL, &Result{URL: rawURL, Title: "B", ImageURL: "https://i.walmart.com/b.jpg"}); err != nil {
		t.Fatalf("CachePreview(B) error = %v", err)
	}

	n, err := store.Count(ctx)
	if err != nil {
		t.Fatalf("Count() error = %v", err)
	}
	if n != 1 {
		t.Fatalf("Expected exactly one record, got %d", n)
	}

	rec, err := store.FindByURL(ctx, rawURL)
	if err != nil {
		t.Fatalf("FindByURL() error = %v", err)
	}
	if rec.Title != "B" || rec.ImageURL != "https://i.walmart.com/b.jpg" || rec.Price != nil {
		t.Errorf("Expected B's fields, got %+v", rec)
	}
	if want := clock.Now().Add(DefaultCacheTTL); !rec.ExpiresAt.Equal(want) {
		t.Errorf("ExpiresAt = %v, want %v", rec.ExpiresAt, want)
	}
	if !rec.CreatedAt.Equal(created) {
		t.Errorf("CreatedAt = %v, want original %v", rec.CreatedAt, created)
	}
}

func TestCleanupAndStats(t *testing.T) {
	clock := newFakeClock()
	engine, _ := newTestEngine(t, failingFetcher(), clock)
	ctx := context.Background()

	stats, err := engine.GetCacheStats(ctx)
	if err != nil {
		t.Fatalf("GetCacheStats() error = %v", err)
	}
	if stats.TotalCached != 0 || stats.CacheHitRate != 0 {
		t.Errorf("Expected empty stats, got %+v", stats)
	}

	for _, u := range []string{"https://a.example.com/1", "https://a.example.com/2", "https://a.example.com/3"} {
		if err := engine.CachePreview(ctx, u, &Result{URL: u, Title: "old"}); err != nil {
			t.Fatalf("CachePreview() error = %v", err)
		}
	}
	clock.Advance(DefaultCacheTTL + time.Minute)
	if err := engine.CachePreview(ctx, "https://a.example.com/4", &Result{Title: "fresh"}); err != nil {
		t.Fatalf("CachePreview() error = %v", err)
	}

	stats, err = engine.GetCacheStats(ctx)
	if err != nil {
		t.Fatalf("GetCacheStats() error = %v", err)
	}
	if stats.TotalCached != 4 || stats.ValidCached != 1 || stats.CacheHitRate != 25 {
		t.Errorf("Unexpected stats %+v", stats)
	}

	deleted, err := engine.CleanupExpiredCache(ctx)
	if err != nil {
		t.Fatalf("CleanupExpiredCache() error = %v", err)
	}
	if deleted != 3 {
		t.Errorf("Deleted %d records, want 3", deleted)
	}

	if err := engine.InvalidateCacheForURL(ctx, "https://a.example.com/4"); err != nil {
		t.Fatalf("InvalidateCacheForURL() error = %v", err)
	}
	stats, _ = engine.GetCacheStats(ctx)
	if stats.TotalCached != 0 {
		t.Errorf("Expected empty cache after invalidation, got %d", stats.TotalCached)
	}
}

func TestSQLiteStore_List(t *testing.T) {
	clock := newFakeClock()
	engine, store := newTestEngine(t, failingFetcher(), clock)
	ctx := context.Background()

	for _, u := range []string{"https://a.example.com/1", "https://a.example.com/2"} {
		if err := engine.CachePreview(ctx, u, &Result{Title: u, Price: ptr(9.5)}); err != nil {
			t.Fatalf("CachePreview() error = %v", err)
		}
		clock.Advance(time.Second)
	}

	records, err := store.List(ctx, 10)
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("Expected 2 records, got %d", len(records))
	}
	if records[0].URL != "https://a.example.com/2" {
		t.Errorf("Expected most recent first, got %s", records[0].URL)
	}
	if records[0].Price == nil || *records[0].Price != 9.5 {
		t.Errorf("Price not round-tripped: %v", records[0].Price)
	}
}
