// Package api provides the request pacing and retry primitives used by the scraper.
package api

import (
	"context"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// HostLimiter paces outbound requests per host.
type HostLimiter interface {
	// Wait blocks until a request to host may be issued.
	Wait(ctx context.Context, host string) error
}

// DomainRateSettings configures the optional token bucket applied per host on top of the
// minimum interval.
type DomainRateSettings struct {
	Requests int
	Window   time.Duration
}

// DomainRateLimiter spaces consecutive requests to the same host by at least a minimum
// interval. Requests that come too early are delayed, never rejected.
type DomainRateLimiter struct {
	interval time.Duration
	rate     DomainRateSettings

	mu        sync.Mutex
	next      map[string]time.Time
	limiters  map[string]*rate.Limiter
	lastPrune time.Time

	now   func() time.Time
	sleep func(ctx context.Context, d time.Duration) error
}

var _ HostLimiter = (*DomainRateLimiter)(nil)

// pruneInterval bounds how often idle hosts are swept from the limiter's maps.
const pruneInterval = time.Minute

// NewDomainRateLimiter creates a limiter with a per-host minimum interval and an optional
// token bucket (disabled when settings.Requests or settings.Window is zero).
func NewDomainRateLimiter(interval time.Duration, settings DomainRateSettings) *DomainRateLimiter {
	l := &DomainRateLimiter{
		interval: interval,
		next:     make(map[string]time.Time),
		now:      time.Now,
		sleep:    sleepContext,
	}
	if settings.Requests > 0 && settings.Window > 0 {
		l.rate = settings
		l.limiters = make(map[string]*rate.Limiter)
	}
	return l
}

// Wait reserves the next slot for host and sleeps until it arrives.
func (l *DomainRateLimiter) Wait(ctx context.Context, host string) error {
	if l == nil || host == "" {
		return nil
	}
	host = strings.ToLower(host)

	var delay time.Duration
	var limiter *rate.Limiter

	l.mu.Lock()
	now := l.now()
	if now.Sub(l.lastPrune) >= pruneInterval {
		l.pruneLocked(now)
		l.lastPrune = now
	}
	if l.interval > 0 {
		slot := now
		if next, ok := l.next[host]; ok && next.After(now) {
			slot = next
			delay = next.Sub(now)
		}
		l.next[host] = slot.Add(l.interval)
	}
	if l.limiters != nil {
		limiter = l.limiterLocked(host)
	}
	l.mu.Unlock()

	if delay > 0 {
		if err := l.sleep(ctx, delay); err != nil {
			return err
		}
	}

	if limiter != nil {
		return limiter.Wait(ctx)
	}
	return nil
}

// pruneLocked forgets hosts whose reserved slot has passed and whose bucket has refilled.
// A forgotten host behaves exactly like one never seen before.
func (l *DomainRateLimiter) pruneLocked(now time.Time) {
	for host, next := range l.next {
		if !next.After(now) {
			delete(l.next, host)
		}
	}
	for host, limiter := range l.limiters {
		if limiter.TokensAt(now) >= float64(limiter.Burst()) {
			delete(l.limiters, host)
		}
	}
}

// tracked reports how many hosts currently hold limiter state.
func (l *DomainRateLimiter) tracked() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return max(len(l.next), len(l.limiters))
}

func (l *DomainRateLimiter) limiterLocked(host string) *rate.Limiter {
	if limiter, ok := l.limiters[host]; ok {
		return limiter
	}
	every := l.rate.Window / time.Duration(l.rate.Requests)
	if every <= 0 {
		every = time.Millisecond
	}
	limiter := rate.NewLimiter(rate.Every(every), l.rate.Requests)
	l.limiters[host] = limiter
	return limiter
}

// NoOpLimiter never delays.
type NoOpLimiter struct{}

// Wait returns immediately.
func (NoOpLimiter) Wait(ctx context.Context, _ string) error {
	return ctx.Err()
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
