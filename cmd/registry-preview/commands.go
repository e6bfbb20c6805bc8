package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/lepinkainen/registry-preview/internal/app"
	"github.com/lepinkainen/registry-preview/internal/config"
	"github.com/lepinkainen/registry-preview/internal/mail"
	"github.com/lepinkainen/registry-preview/internal/mcpserver"
	"github.com/lepinkainen/registry-preview/internal/server"
	"github.com/lepinkainen/registry-preview/pkg/linkpreview"
	"github.com/lepinkainen/registry-preview/pkg/preview"
	"github.com/lepinkainen/registry-preview/pkg/urlutils"
)

const shutdownTimeout = 30 * time.Second

// serve runs the HTTP server and the cleanup sweep until SIGINT or SIGTERM.
func serve(a *app.App) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	srv := server.New(a.Config.Server.Addr, a.Handler())

	g, gctx := errgroup.WithContext(ctx)
	g.Go(srv.Start)
	g.Go(func() error {
		return a.RunCleanup(gctx, a.Config.Scraper.CleanupInterval)
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	return g.Wait()
}

// previewURLs prints one preview object, or an array when several URLs are given.
// Fallback hints apply only to a single URL.
func previewURLs(a *app.App, urls []string, noCache bool) error {
	ctx := context.Background()

	if noCache {
		for _, u := range urls {
			if err := a.Engine.InvalidateCacheForURL(ctx, u); err != nil {
				return fmt.Errorf("failed to invalidate %s: %w", u, err)
			}
		}
	}

	if len(urls) == 1 {
		hints := &linkpreview.FallbackHints{
			Name:        CLI.Preview.Name,
			ImageURL:    CLI.Preview.ImageURL,
			Description: CLI.Preview.Description,
		}
		return printJSON(a.Engine.GeneratePreview(ctx, urls[0], hints))
	}

	return printJSON(a.Engine.GeneratePreviews(ctx, urls, a.Config.Scraper.BatchConcurrency))
}

func cacheStats(a *app.App) error {
	stats, err := a.Engine.GetCacheStats(context.Background())
	if err != nil {
		return err
	}
	return printJSON(stats)
}

func cacheCleanup(a *app.App) error {
	ctx := context.Background()
	deleted, err := a.Engine.CleanupExpiredCache(ctx)
	if err != nil {
		return err
	}
	if a.Limiter != nil {
		if _, err := a.Limiter.Cleanup(ctx, a.Config.RateLimit.Retention); err != nil {
			return fmt.Errorf("failed to clean up rate limit records: %w", err)
		}
	}
	if deleted > 0 {
		if err := a.DB.Vacuum(ctx); err != nil {
			return err
		}
	}

	size, err := a.DB.FileSize()
	if err != nil {
		return err
	}
	fmt.Printf("Deleted %d expired previews (database %.1f KiB)\n", deleted, float64(size)/1024)
	return nil
}

func cacheBrowse(a *app.App, limit int) error {
	records, err := a.Store.List(context.Background(), limit)
	if err != nil {
		return err
	}
	return preview.Run(records, func(url string) error {
		return a.Engine.InvalidateCacheForURL(context.Background(), url)
	})
}

// cacheReport gathers stats and recent records concurrently, then mails the report.
func cacheReport(a *app.App, to string, limit int) error {
	if !a.Mail.IsEnabled() {
		slog.Warn("Mail is disabled; the report will be logged instead of sent")
	}

	data := mail.CacheReportData{GeneratedAt: time.Now()}

	g, ctx := errgroup.WithContext(context.Background())
	g.Go(func() error {
		stats, err := a.Engine.GetCacheStats(ctx)
		data.Stats = stats
		return err
	})
	g.Go(func() error {
		recent, err := a.Store.List(ctx, limit)
		data.Recent = recent
		return err
	})
	if err := g.Wait(); err != nil {
		return fmt.Errorf("failed to gather cache report: %w", err)
	}

	return a.Mail.SendCacheReport(context.Background(), to, data)
}

func serveMCP(a *app.App) error {
	return mcpserver.Serve(a.Engine, version)
}

// initConfig writes the default configuration to path.
func initConfig(path string, force bool) {
	if err := writeDefaultConfig(path, force); err != nil {
		slog.Error("Failed to write configuration", "path", path, "error", err)
		os.Exit(1)
	}
	fmt.Printf("Wrote %s\n", path)
}

// writeDefaultConfig writes the built-in defaults to path. An existing file is replaced
// only when force is set, and its contents never leak into the result.
func writeDefaultConfig(path string, force bool) error {
	if _, err := os.Stat(path); err == nil && !force {
		return errors.New("configuration file already exists; use --force to overwrite")
	} else if err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to check configuration file: %w", err)
	}

	cfg, err := config.DefaultConfig()
	if err != nil {
		return err
	}
	return config.SaveConfig(cfg, path)
}

// checkURLs rejects arguments that are not absolute URLs before any database work starts.
func checkURLs(urls ...string) error {
	for _, u := range urls {
		if !urlutils.IsValidURL(u) {
			return fmt.Errorf("invalid URL %q: expected an absolute URL such as https://example.com/item", u)
		}
	}
	return nil
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
