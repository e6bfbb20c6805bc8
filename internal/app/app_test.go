package app

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/lepinkainen/registry-preview/internal/config"
	"github.com/lepinkainen/registry-preview/pkg/linkpreview"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	dir := t.TempDir()
	cfg, err := config.LoadConfig(filepath.Join(dir, "missing.yaml"))
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	cfg.Database.Path = filepath.Join(dir, "preview.db")
	return cfg
}

func newTestApp(t *testing.T, cfg *config.Config) *App {
	t.Helper()
	a, err := New(context.Background(), cfg)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(func() {
		if err := a.Close(); err != nil {
			t.Errorf("Close: %v", err)
		}
	})
	return a
}

func TestNew_WiresServices(t *testing.T) {
	a := newTestApp(t, testConfig(t))

	if a.Limiter == nil {
		t.Fatal("Rate limiter should be enabled by default")
	}
	if d := a.Limiter.Check(context.Background(), "203.0.113.7", "scrape-preview"); !d.Allowed || d.Limit == 0 {
		t.Errorf("Default scrape-preview rule missing, decision = %+v", d)
	}
	if a.Mail.IsEnabled() {
		t.Error("Mail should be disabled by default")
	}
}

func TestNew_RateLimitDisabled(t *testing.T) {
	cfg := testConfig(t)
	cfg.RateLimit.Enabled = false
	a := newTestApp(t, cfg)

	if a.Limiter != nil {
		t.Error("Limiter should be nil when rate limiting is disabled")
	}
	if err := a.Cleanup(context.Background()); err != nil {
		t.Errorf("Cleanup without limiter: %v", err)
	}
}

func TestHandler_CacheStats(t *testing.T) {
	a := newTestApp(t, testConfig(t))
	ctx := context.Background()

	if err := a.Engine.CachePreview(ctx, "https://www.target.com/p/monitor", &linkpreview.Result{
		URL:   "https://www.target.com/p/monitor",
		Title: "Baby Monitor",
	}); err != nil {
		t.Fatalf("CachePreview: %v", err)
	}

	rec := httptest.NewRecorder()
	a.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/preview-cache/stats", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("Status = %d: %s", rec.Code, rec.Body.String())
	}

	var stats linkpreview.CacheStats
	if err := json.Unmarshal(rec.Body.Bytes(), &stats); err != nil {
		t.Fatal(err)
	}
	if stats.TotalCached != 1 || stats.ValidCached != 1 || stats.CacheHitRate != 100 {
		t.Errorf("stats = %+v", stats)
	}
}

func TestCleanup(t *testing.T) {
	a := newTestApp(t, testConfig(t))
	ctx := context.Background()

	expired := &linkpreview.Record{
		URL:       "https://old.example.com/item",
		Title:     "Old",
		ExpiresAt: time.Now().Add(-time.Hour),
		CreatedAt: time.Now().Add(-8 * 24 * time.Hour),
		UpdatedAt: time.Now().Add(-8 * 24 * time.Hour),
	}
	if err := a.Store.Upsert(ctx, expired); err != nil {
		t.Fatalf("Upsert: %v", err)
	}

	if err := a.Cleanup(ctx); err != nil {
		t.Fatalf("Cleanup: %v", err)
	}
	n, err := a.Store.Count(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if n != 0 {
		t.Errorf("Count after cleanup = %d, want 0", n)
	}
}

func TestRunCleanup_StopsOnCancel(t *testing.T) {
	a := newTestApp(t, testConfig(t))
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() { done <- a.RunCleanup(ctx, 10*time.Millisecond) }()

	time.Sleep(30 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Errorf("RunCleanup returned %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("RunCleanup did not stop after cancel")
	}
}
