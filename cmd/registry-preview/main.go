// Package main provides the CLI entry point for registry-preview.
package main

import (
	"context"
	"log/slog"
	"os"

	"github.com/alecthomas/kong"

	"github.com/lepinkainen/registry-preview/internal/app"
	"github.com/lepinkainen/registry-preview/internal/config"
	"github.com/lepinkainen/registry-preview/internal/logging"
)

var version = "dev"

// CLI structure
var CLI struct {
	Config string `help:"Configuration file path" default:"config.yaml"`
	Debug  bool   `help:"Enable debug logging" default:"false"`

	Serve struct {
		Addr string `help:"Listen address (overrides server.addr)"`
	} `cmd:"serve" help:"Serve the preview API."`

	Preview struct {
		URLs        []string `arg:"" name:"url" help:"Product page URLs"`
		Name        string   `help:"Item name used when the page cannot be scraped"`
		ImageURL    string   `help:"Image URL used when the page cannot be scraped" name:"image-url"`
		Description string   `help:"Description used when the page cannot be scraped"`
		NoCache     bool     `help:"Invalidate cached previews before generating" name:"no-cache"`
	} `cmd:"preview" help:"Generate link previews and print them as JSON."`

	Cache struct {
		Stats   struct{} `cmd:"stats" help:"Show cache statistics."`
		Cleanup struct{} `cmd:"cleanup" help:"Delete expired previews and stale rate limit records."`

		Invalidate struct {
			URL string `arg:"" help:"URL to remove from the cache"`
		} `cmd:"invalidate" help:"Remove one cached preview."`

		Browse struct {
			Limit int `help:"Maximum number of records to load" default:"200"`
		} `cmd:"browse" help:"Browse cached previews interactively."`

		Report struct {
			To    string `help:"Recipient address" required:""`
			Limit int    `help:"Number of recent previews to include" default:"20"`
		} `cmd:"report" help:"Email a cache report."`
	} `cmd:"cache" help:"Inspect and maintain the preview cache."`

	ConfigCmd struct {
		Init struct {
			Force bool `help:"Overwrite an existing file"`
		} `cmd:"init" help:"Write a configuration file with the default settings."`
	} `cmd:"config" name:"config" help:"Manage the configuration file."`

	MCP struct{} `cmd:"mcp" help:"Serve preview tools over MCP (stdio)."`
}

func main() {
	ctx := kong.Parse(&CLI,
		kong.Name("registry-preview"),
		kong.Description("Link previews for gift registry items."),
		kong.UsageOnError(),
	)

	switch ctx.Command() {
	case "config init":
		initConfig(CLI.Config, CLI.ConfigCmd.Init.Force)
		return
	case "preview <url>":
		ctx.FatalIfErrorf(checkURLs(CLI.Preview.URLs...))
	case "cache invalidate <url>":
		ctx.FatalIfErrorf(checkURLs(CLI.Cache.Invalidate.URL))
	}

	cfg, err := config.LoadConfig(CLI.Config)
	if err != nil {
		slog.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}

	// MCP owns stdout; keep stderr quiet unless debugging.
	if ctx.Command() == "mcp" {
		cfg.Log.Level = "warn"
	}

	logCloser, err := logging.Setup(cfg.Log, CLI.Debug)
	if err != nil {
		slog.Error("Failed to set up logging", "error", err)
		os.Exit(1)
	}

	if CLI.Serve.Addr != "" {
		cfg.Server.Addr = CLI.Serve.Addr
	}

	a, err := app.New(context.Background(), cfg)
	if err != nil {
		slog.Error("Failed to initialize", "error", err)
		os.Exit(1)
	}

	code := run(ctx.Command(), a)
	if err := a.Close(); err != nil {
		slog.Error("Failed to close database", "error", err)
	}
	_ = logCloser.Close()
	os.Exit(code)
}

func run(command string, a *app.App) int {
	var err error
	switch command {
	case "serve":
		err = serve(a)

	case "preview <url>":
		err = previewURLs(a, CLI.Preview.URLs, CLI.Preview.NoCache)

	case "cache stats":
		err = cacheStats(a)

	case "cache cleanup":
		err = cacheCleanup(a)

	case "cache invalidate <url>":
		err = a.Engine.InvalidateCacheForURL(context.Background(), CLI.Cache.Invalidate.URL)

	case "cache browse":
		err = cacheBrowse(a, CLI.Cache.Browse.Limit)

	case "cache report":
		err = cacheReport(a, CLI.Cache.Report.To, CLI.Cache.Report.Limit)

	case "mcp":
		err = serveMCP(a)

	default:
		panic(command)
	}

	if err != nil {
		slog.Error("Command failed", "command", command, "error", err)
		return 1
	}
	return 0
}
