// Package ratelimit implements the persisted fixed-window limiter guarding abuse-prone
// endpoints such as login, registration, password reset, RSVP and preview scraping.
package ratelimit

import (
	"context"
	"log/slog"
	"time"
)

// Endpoint names with built-in rules.
const (
	EndpointLogin         = "login"
	EndpointRegister      = "register"
	EndpointPasswordReset = "password-reset"
	EndpointRSVP          = "rsvp"
	EndpointScrapePreview = "scrape-preview"
)

// Clock abstracts time for testing.
type Clock interface {
	Now() time.Time
}

type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }

// Rule limits one endpoint to MaxRequests per Window per IP. A key that exceeds it is
// blocked for BlockDuration.
type Rule struct {
	Endpoint      string        `mapstructure:"endpoint"`
	MaxRequests   int           `mapstructure:"max_requests"`
	Window        time.Duration `mapstructure:"window"`
	BlockDuration time.Duration `mapstructure:"block_duration"`
}

// DefaultRules returns the built-in endpoint rules.
func DefaultRules() []Rule {
	return []Rule{
		{Endpoint: EndpointLogin, MaxRequests: 5, Window: 15 * time.Minute, BlockDuration: 15 * time.Minute},
		{Endpoint: EndpointRegister, MaxRequests: 3, Window: time.Hour, BlockDuration: time.Hour},
		{Endpoint: EndpointPasswordReset, MaxRequests: 3, Window: time.Hour, BlockDuration: time.Hour},
		{Endpoint: EndpointRSVP, MaxRequests: 10, Window: time.Hour, BlockDuration: 30 * time.Minute},
		{Endpoint: EndpointScrapePreview, MaxRequests: 30, Window: time.Minute, BlockDuration: 5 * time.Minute},
	}
}

// Decision is the outcome of a Check.
type Decision struct {
	Allowed    bool
	Limit      int
	Remaining  int
	RetryAfter time.Duration
}

// Limiter is a fixed-window limiter whose state lives in a Store, so limits hold across
// restarts and across processes sharing the database.
type Limiter struct {
	store Store
	rules map[string]Rule
	clock Clock
}

// NewLimiter creates a Limiter with the given rules. Later rules for the same endpoint
// replace earlier ones.
func NewLimiter(store Store, rules []Rule) *Limiter {
	ruleMap := make(map[string]Rule, len(rules))
	for _, r := range rules {
		ruleMap[r.Endpoint] = r
	}
	return &Limiter{
		store: store,
		rules: ruleMap,
		clock: realClock{},
	}
}

// Check decides whether a request from ip to endpoint may proceed and records it.
// Endpoints without a rule are always allowed. Store failures allow the request.
func (l *Limiter) Check(ctx context.Context, ip, endpoint string) Decision {
	rule, ok := l.rules[endpoint]
	if !ok || rule.MaxRequests <= 0 {
		return Decision{Allowed: true}
	}

	now := l.clock.Now()
	allow := Decision{Allowed: true, Limit: rule.MaxRequests}

	blockedUntil, err := l.store.ActiveBlock(ctx, ip, endpoint, now)
	if err != nil {
		slog.Error("Rate limit lookup failed, allowing request", "endpoint", endpoint, "ip", ip, "error", err)
		return allow
	}
	if !blockedUntil.IsZero() {
		return Decision{Limit: rule.MaxRequests, RetryAfter: blockedUntil.Sub(now)}
	}

	count, err := l.store.CountRequests(ctx, ip, endpoint, now.Add(-rule.Window))
	if err != nil {
		slog.Error("Rate limit count failed, allowing request", "endpoint", endpoint, "ip", ip, "error", err)
		return allow
	}

	if count >= rule.MaxRequests {
		until := now.Add(rule.BlockDuration)
		if err := l.store.Insert(ctx, Record{IPAddress: ip, Endpoint: endpoint, Timestamp: now, IsBlocked: true, BlockedUntil: until}); err != nil {
			slog.Error("Failed to record rate limit block", "endpoint", endpoint, "ip", ip, "error", err)
		}
		slog.Warn("Rate limit exceeded", "endpoint", endpoint, "ip", ip, "count", count, "blockedUntil", until)
		return Decision{Limit: rule.MaxRequests, RetryAfter: rule.BlockDuration}
	}

	if err := l.store.Insert(ctx, Record{IPAddress: ip, Endpoint: endpoint, Timestamp: now}); err != nil {
		slog.Error("Failed to record request, allowing", "endpoint", endpoint, "ip", ip, "error", err)
		return allow
	}

	allow.Remaining = rule.MaxRequests - count - 1
	return allow
}

// Cleanup deletes records older than olderThan whose block, if any, has ended.
// Call periodically to prevent unbounded growth.
func (l *Limiter) Cleanup(ctx context.Context, olderThan time.Duration) (int64, error) {
	now := l.clock.Now()
	n, err := l.store.DeleteBefore(ctx, now.Add(-olderThan), now)
	if err != nil {
		return 0, err
	}
	if n > 0 {
		slog.Debug("Cleaned up rate limit records", "deleted", n)
	}
	return n, nil
}
