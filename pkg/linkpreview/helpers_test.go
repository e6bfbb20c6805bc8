package linkpreview

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/lepinkainen/registry-preview/pkg/api"
	httputil "github.com/lepinkainen/registry-preview/pkg/http"
	"github.com/lepinkainen/registry-preview/pkg/testutil"
)

type fetchCall struct {
	URL     string
	Headers http.Header
	Timeout time.Duration
}

// fakeFetcher serves every request through respond and records the calls.
type fakeFetcher struct {
	mu      sync.Mutex
	calls   []fetchCall
	respond func(n int, url string) (*httputil.Response, error)
}

func (f *fakeFetcher) Fetch(_ context.Context, url string, opts httputil.FetchOptions) (*httputil.Response, error) {
	f.mu.Lock()
	f.calls = append(f.calls, fetchCall{URL: url, Headers: opts.Headers.Clone(), Timeout: opts.Timeout})
	n := len(f.calls)
	f.mu.Unlock()

	return f.respond(n, url)
}

func (f *fakeFetcher) Calls() []fetchCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]fetchCall(nil), f.calls...)
}

func htmlResponse(status int, body string) *httputil.Response {
	return &httputil.Response{
		StatusCode: status,
		Status:     http.StatusText(status),
		Header:     http.Header{"Content-Type": []string{"text/html; charset=utf-8"}},
		Body:       body,
	}
}

func staticFetcher(status int, body string) *fakeFetcher {
	return &fakeFetcher{respond: func(int, string) (*httputil.Response, error) {
		return htmlResponse(status, body), nil
	}}
}

func failingFetcher() *fakeFetcher {
	return &fakeFetcher{respond: func(int, string) (*httputil.Response, error) {
		return nil, errors.New("connection refused")
	}}
}

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func noSleep(context.Context, time.Duration) error { return nil }

// newTestEngine builds an engine over a fresh sqlite cache with instant delays and no
// domain spacing.
func newTestEngine(t *testing.T, fetcher Fetcher, clock *fakeClock) (*Engine, *SQLiteStore) {
	t.Helper()

	opts := Options{
		Limiter: api.NoOpLimiter{},
		Sleep:   noSleep,
	}
	if clock != nil {
		opts.Now = clock.Now
	}
	return newTestEngineWithOptions(t, fetcher, opts)
}

func newTestEngineWithOptions(t *testing.T, fetcher Fetcher, opts Options) (*Engine, *SQLiteStore) {
	t.Helper()

	store := NewSQLiteStore(testutil.TestDB(t))
	engine, err := NewEngine(store, fetcher, opts)
	if err != nil {
		t.Fatalf("NewEngine() error = %v", err)
	}
	t.Cleanup(engine.Wait)
	return engine, store
}

// countingLimiter records every host it is asked to pace.
type countingLimiter struct {
	mu    sync.Mutex
	hosts []string
}

func (l *countingLimiter) Wait(ctx context.Context, host string) error {
	l.mu.Lock()
	l.hosts = append(l.hosts, host)
	l.mu.Unlock()
	return ctx.Err()
}

func (l *countingLimiter) Calls() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]string(nil), l.hosts...)
}

// sleepRecorder returns instantly and keeps every requested duration.
type sleepRecorder struct {
	mu     sync.Mutex
	sleeps []time.Duration
}

func (r *sleepRecorder) Sleep(ctx context.Context, d time.Duration) error {
	r.mu.Lock()
	r.sleeps = append(r.sleeps, d)
	r.mu.Unlock()
	return ctx.Err()
}

func (r *sleepRecorder) Sleeps() []time.Duration {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]time.Duration(nil), r.sleeps...)
}

func mustDoc(t *testing.T, html string) *goquery.Document {
	t.Helper()
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		t.Fatalf("Failed to parse HTML: %v", err)
	}
	return doc
}

const botPage = `<html><head><title>Robot Check</title></head>
<body><p>Enter the characters you see below</p>
<p>Sorry, we just need to make sure you're not a robot.</p></body></html>`
