// Package app assembles the preview engine and its supporting services from configuration.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/lepinkainen/registry-preview/internal/config"
	"github.com/lepinkainen/registry-preview/internal/mail"
	"github.com/lepinkainen/registry-preview/internal/ratelimit"
	"github.com/lepinkainen/registry-preview/internal/server"
	"github.com/lepinkainen/registry-preview/pkg/api"
	siteconfig "github.com/lepinkainen/registry-preview/pkg/config"
	"github.com/lepinkainen/registry-preview/pkg/database"
	httputil "github.com/lepinkainen/registry-preview/pkg/http"
	"github.com/lepinkainen/registry-preview/pkg/linkpreview"
)

// App holds the wired services. Close releases the database after pending cache writes finish.
type App struct {
	Config  *config.Config
	DB      *database.Database
	Store   *linkpreview.SQLiteStore
	Engine  *linkpreview.Engine
	Limiter *ratelimit.Limiter
	Mail    *mail.Service
}

// New opens the database and builds the engine, limiter and mail service.
func New(ctx context.Context, cfg *config.Config) (*App, error) {
	db, err := database.Open(cfg.Database.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	rules, err := siteconfig.LoadSiteRules(ctx, &siteconfig.LoaderConfig{
		RemoteURL:         cfg.Scraper.SitesURL,
		LocalPath:         cfg.Scraper.SitesPath,
		Timeout:           10 * time.Second,
		FallbackToDefault: true,
	})
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to load site rules: %w", err)
	}

	client := httputil.NewClient(&httputil.ClientConfig{
		Timeout:      cfg.Scraper.PrimaryTimeout,
		MaxBodyBytes: cfg.Scraper.MaxBodyBytes,
		MaxRedirects: 10,
	})

	retry := api.DefaultRetryPolicy()
	retry.MaxAttempts = cfg.Scraper.MaxAttempts

	store := linkpreview.NewSQLiteStore(db)
	engine, err := linkpreview.NewEngine(store, client, linkpreview.Options{
		CacheTTL:          cfg.Scraper.CacheTTL,
		HeuristicCacheTTL: cfg.Scraper.HeuristicCacheTTL,
		PrimaryTimeout:    cfg.Scraper.PrimaryTimeout,
		FallbackTimeout:   cfg.Scraper.FallbackTimeout,
		Retry:             retry,
		Limiter: api.NewDomainRateLimiter(cfg.Scraper.DomainInterval, api.DomainRateSettings{
			Requests: cfg.Scraper.DomainRequests,
			Window:   cfg.Scraper.DomainWindow,
		}),
		Rules: rules,
	})
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to create preview engine: %w", err)
	}

	a := &App{
		Config: cfg,
		DB:     db,
		Store:  store,
		Engine: engine,
		Mail:   mail.NewService(cfg.Mail),
	}
	if cfg.RateLimit.Enabled {
		a.Limiter = ratelimit.NewLimiter(ratelimit.NewSQLiteStore(db), cfg.RateLimit.Rules)
	}

	slog.Debug("Application initialized",
		"database", db.Path(),
		"brands", len(rules.Brands),
		"rateLimit", cfg.RateLimit.Enabled,
		"mail", a.Mail.IsEnabled(),
	)
	return a, nil
}

// Handler returns the HTTP router for the configured services.
func (a *App) Handler() http.Handler {
	return server.NewRouter(server.NewHandler(a.Engine), server.RouterConfig{
		Limiter:        a.Limiter,
		AllowedOrigins: a.Config.Server.AllowedOrigins,
		AdminToken:     a.Config.Server.AdminToken,
	})
}

// Cleanup removes expired previews and stale rate limit records.
func (a *App) Cleanup(ctx context.Context) error {
	var errs []error
	if _, err := a.Engine.CleanupExpiredCache(ctx); err != nil {
		errs = append(errs, fmt.Errorf("preview cache: %w", err))
	}
	if a.Limiter != nil {
		if _, err := a.Limiter.Cleanup(ctx, a.Config.RateLimit.Retention); err != nil {
			errs = append(errs, fmt.Errorf("rate limit records: %w", err))
		}
	}
	return errors.Join(errs...)
}

// RunCleanup calls Cleanup every interval until ctx is done.
func (a *App) RunCleanup(ctx context.Context, interval time.Duration) error {
	if interval <= 0 {
		<-ctx.Done()
		return nil
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if err := a.Cleanup(ctx); err != nil {
				slog.Error("Periodic cleanup failed", "error", err)
			}
		}
	}
}

// Close waits for background cache writes, then closes the database.
func (a *App) Close() error {
	a.Engine.Wait()
	return a.DB.Close()
}
