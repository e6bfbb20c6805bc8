package linkpreview

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/lepinkainen/registry-preview/pkg/api"
	"github.com/lepinkainen/registry-preview/pkg/config"
	httputil "github.com/lepinkainen/registry-preview/pkg/http"
	"github.com/lepinkainen/registry-preview/pkg/stealth"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"
)

// Fetcher retrieves a page with the given headers, timeout and redirect policy.
type Fetcher interface {
	Fetch(ctx context.Context, url string, opts httputil.FetchOptions) (*httputil.Response, error)
}

// Options configures an Engine. Zero values take the defaults from DefaultOptions.
type Options struct {
	CacheTTL          time.Duration
	HeuristicCacheTTL time.Duration
	PrimaryTimeout    time.Duration
	FallbackTimeout   time.Duration
	CacheWriteTimeout time.Duration

	Retry        *api.RetryPolicy
	Limiter      api.HostLimiter
	Fingerprints *stealth.FingerprintPool
	Rules        *config.SiteRules
	Adapters     []SiteAdapter

	// Sleep performs every randomized delay; tests replace it to run instantly.
	Sleep stealth.SleepFunc
	Now   func() time.Time
}

// DefaultOptions returns the production settings: 7 day cache, 15s primary and 10s
// fallback timeouts, three attempts and a 1s per-domain interval.
func DefaultOptions() Options {
	return Options{
		CacheTTL:          DefaultCacheTTL,
		HeuristicCacheTTL: DefaultHeuristicCacheTTL,
		PrimaryTimeout:    15 * time.Second,
		FallbackTimeout:   10 * time.Second,
		CacheWriteTimeout: 10 * time.Second,
		Retry:             api.DefaultRetryPolicy(),
		Limiter:           api.NewDomainRateLimiter(time.Second, api.DomainRateSettings{}),
		Fingerprints:      stealth.NewFingerprintPool(),
		Adapters:          defaultAdapters(),
		Sleep:             stealth.Sleep,
		Now:               time.Now,
	}
}

// Engine generates and caches link previews. It is safe for concurrent use.
type Engine struct {
	store   Store
	fetcher Fetcher
	opts    Options

	bot      *BotDetector
	rules    *config.SiteRules
	adapters []SiteAdapter
	retry    *api.RetryPolicy

	group   singleflight.Group
	pending sync.WaitGroup

	hits   atomic.Int64
	misses atomic.Int64
}

// NewEngine creates an Engine. Unset options fall back to DefaultOptions; nil Rules load the
// embedded site rules.
func NewEngine(store Store, fetcher Fetcher, opts Options) (*Engine, error) {
	defaults := DefaultOptions()
	if opts.CacheTTL <= 0 {
		opts.CacheTTL = defaults.CacheTTL
	}
	if opts.HeuristicCacheTTL <= 0 {
		opts.HeuristicCacheTTL = defaults.HeuristicCacheTTL
	}
	if opts.PrimaryTimeout <= 0 {
		opts.PrimaryTimeout = defaults.PrimaryTimeout
	}
	if opts.FallbackTimeout <= 0 {
		opts.FallbackTimeout = defaults.FallbackTimeout
	}
	if opts.CacheWriteTimeout <= 0 {
		opts.CacheWriteTimeout = defaults.CacheWriteTimeout
	}
	if opts.Retry == nil {
		opts.Retry = defaults.Retry
	}
	if opts.Limiter == nil {
		opts.Limiter = defaults.Limiter
	}
	if opts.Fingerprints == nil {
		opts.Fingerprints = defaults.Fingerprints
	}
	if len(opts.Adapters) == 0 {
		opts.Adapters = defaults.Adapters
	}
	if opts.Sleep == nil {
		opts.Sleep = defaults.Sleep
	}
	if opts.Now == nil {
		opts.Now = defaults.Now
	}
	if opts.Rules == nil {
		rules, err := config.DefaultSiteRules()
		if err != nil {
			return nil, fmt.Errorf("failed to load site rules: %w", err)
		}
		opts.Rules = rules
	}

	e := &Engine{
		store:    store,
		fetcher:  fetcher,
		opts:     opts,
		bot:      NewBotDetector(opts.Rules),
		rules:    opts.Rules,
		adapters: opts.Adapters,
	}

	// Copy so IsBlocked can be set without touching a caller-owned policy.
	retry := *opts.Retry
	retry.IsBlocked = isBotError
	e.retry = &retry

	return e, nil
}

// strategy is one link in the fallback chain.
type strategy struct {
	name      string
	heuristic bool
	run       func(ctx context.Context, rawURL string, hints *FallbackHints) (*Result, error)
}

func (e *Engine) strategies() []strategy {
	return []strategy{
		{name: StrategyPrimary, run: e.scrapePrimary},
		{name: StrategyMobile, run: e.scrapeMobile},
		{name: StrategyMinimal, run: e.scrapeMinimal},
		{name: StrategyManual, heuristic: true, run: e.manualPreview},
		{name: StrategyURLPattern, heuristic: true, run: e.urlPatternPreview},
	}
}

// GeneratePreview returns a preview for rawURL. It never fails: a fresh cache entry is
// returned as-is, otherwise each strategy is tried in order and the placeholder result is
// returned when all of them fail. Successful results are cached in the background.
func (e *Engine) GeneratePreview(ctx context.Context, rawURL string, hints *FallbackHints) *Result {
	rec, err := e.GetCachedPreview(ctx, rawURL)
	if err != nil {
		slog.Warn("Cache read failed, treating as miss", "url", rawURL, "error", err)
	}
	if rec != nil {
		slog.Debug("Serving cached preview", "url", rawURL)
		return rec.Result()
	}

	// Requests for one URL share a single scrape. The scrape is detached from the caller so
	// an abandoned request does not cut short work another caller is waiting on.
	detached := context.WithoutCancel(ctx)
	v, _, _ := e.group.Do(flightKey(rawURL, hints), func() (any, error) {
		return e.generate(detached, rawURL, hints), nil
	})

	return v.(*Result).clone()
}

// GeneratePreviews runs GeneratePreview for each URL with at most limit in flight.
func (e *Engine) GeneratePreviews(ctx context.Context, urls []string, limit int) []*Result {
	results := make([]*Result, len(urls))

	var g errgroup.Group
	if limit > 0 {
		g.SetLimit(limit)
	}
	for i, u := range urls {
		g.Go(func() error {
			results[i] = e.GeneratePreview(ctx, u, nil)
			return nil
		})
	}
	_ = g.Wait()

	return results
}

func (e *Engine) generate(ctx context.Context, rawURL string, hints *FallbackHints) *Result {
	var lastErr error

	for _, s := range e.strategies() {
		result, err := s.run(ctx, rawURL, hints)
		if err != nil {
			slog.Debug("Preview strategy failed", "url", rawURL, "strategy", s.name, "error", err)
			// Report the fetch failure rather than a heuristic's reason for declining.
			if lastErr == nil || !s.heuristic {
				lastErr = err
			}
			continue
		}

		result.Strategy = s.name
		if s.name != StrategyPrimary {
			slog.Info("Preview produced by fallback strategy", "url", rawURL, "strategy", s.name)
		}

		ttl := e.opts.CacheTTL
		if s.heuristic {
			ttl = e.opts.HeuristicCacheTTL
		}
		e.cacheAsync(rawURL, result, ttl)
		return result
	}

	slog.Warn("All preview strategies failed", "url", rawURL, "error", lastErr)
	return unavailable(rawURL, lastErr)
}

// unavailable is the placeholder result. It is never cached.
func unavailable(rawURL string, cause error) *Result {
	description := "Could not fetch preview"
	if cause != nil {
		description = fmt.Sprintf("Could not fetch preview: %v", cause)
	}
	return &Result{
		URL:         rawURL,
		Title:       UnavailableTitle,
		Description: description,
	}
}

func flightKey(rawURL string, hints *FallbackHints) string {
	if hints == nil {
		return rawURL
	}
	return strings.Join([]string{rawURL, hints.Name, hints.ImageURL, hints.Description}, "\x00")
}

// Wait blocks until background cache writes have finished.
func (e *Engine) Wait() {
	e.pending.Wait()
}
