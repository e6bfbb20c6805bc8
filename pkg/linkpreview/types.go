// Package linkpreview turns product URLs into previews (title, image, price, availability,
// site name). Previews come from a sqlite cache when fresh, otherwise from a chain of
// scrape strategies that degrades to URL heuristics and finally to a placeholder.
package linkpreview

import (
	"errors"
	"time"
)

// Cache lifetimes and the placeholder title.
const (
	DefaultCacheTTL          = 7 * 24 * time.Hour
	DefaultHeuristicCacheTTL = time.Hour
	UnavailableTitle         = "Preview unavailable"
)

// Strategy names recorded on results.
const (
	StrategyPrimary    = "primary"
	StrategyMobile     = "mobile"
	StrategyMinimal    = "minimal"
	StrategyManual     = "manual"
	StrategyURLPattern = "url-pattern"
)

var (
	// ErrBotDetected marks a page that served an anti-bot challenge instead of content.
	ErrBotDetected = errors.New("bot detection page")
	// ErrNoTitle marks a page from which no usable title could be extracted.
	ErrNoTitle = errors.New("no usable title")
	// ErrNotFound is returned by a Store when no record exists for a URL.
	ErrNotFound = errors.New("preview not cached")
)

// Result is the preview returned to callers.
type Result struct {
	URL          string   `json:"url"`
	Title        string   `json:"title,omitempty"`
	Description  string   `json:"description,omitempty"`
	ImageURL     string   `json:"imageUrl,omitempty"`
	SiteName     string   `json:"siteName,omitempty"`
	Price        *float64 `json:"price,omitempty"`
	Availability string   `json:"availability,omitempty"`
	Strategy     string   `json:"strategy,omitempty"`
}

// IsUnavailable reports whether r is the placeholder returned when every strategy failed.
func (r *Result) IsUnavailable() bool {
	return r == nil || r.Title == "" || r.Title == UnavailableTitle
}

// clone returns a copy of r that shares no memory with it.
func (r *Result) clone() *Result {
	c := *r
	c.Price = copyPrice(r.Price)
	return &c
}

func copyPrice(p *float64) *float64 {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

// FallbackHints are caller-supplied fields used when nothing can be scraped.
type FallbackHints struct {
	Name        string `json:"name,omitempty"`
	ImageURL    string `json:"imageUrl,omitempty"`
	Description string `json:"description,omitempty"`
}

// Record is a cached preview row.
type Record struct {
	URL          string
	Title        string
	Description  string
	ImageURL     string
	SiteName     string
	Price        *float64
	Availability string
	Strategy     string
	ExpiresAt    time.Time
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Result converts the record to the caller-facing shape.
func (r *Record) Result() *Result {
	return &Result{
		URL:          r.URL,
		Title:        r.Title,
		Description:  r.Description,
		ImageURL:     r.ImageURL,
		SiteName:     r.SiteName,
		Price:        copyPrice(r.Price),
		Availability: r.Availability,
		Strategy:     r.Strategy,
	}
}

// Expired reports whether the record is stale at now.
func (r *Record) Expired(now time.Time) bool {
	return !now.Before(r.ExpiresAt)
}

// CacheStats summarizes the preview cache.
type CacheStats struct {
	TotalCached  int64   `json:"totalCached"`
	ValidCached  int64   `json:"validCached"`
	CacheHitRate float64 `json:"cacheHitRate"`
	Hits         int64   `json:"hits"`
	Misses       int64   `json:"misses"`
}
