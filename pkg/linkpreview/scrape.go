package linkpreview

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/lepinkainen/registry-preview/pkg/api"
	httputil "github.com/lepinkainen/registry-preview/pkg/http"
	"github.com/lepinkainen/registry-preview/pkg/stealth"
	"github.com/lepinkainen/registry-preview/pkg/urlutils"
)

// scrapePrimary fetches with a rotating desktop identity under the domain limiter, retrying
// with randomized waits.
func (e *Engine) scrapePrimary(ctx context.Context, rawURL string, _ *FallbackHints) (*Result, error) {
	host := urlutils.Hostname(rawURL)
	var result *Result

	err := e.retry.ExecuteWithRetry(ctx, "scrape "+host, e.opts.Sleep, func(ctx context.Context, attempt int) error {
		if err := e.opts.Limiter.Wait(ctx, host); err != nil {
			return fmt.Errorf("domain limiter: %w", err)
		}
		if err := e.opts.Sleep(ctx, e.retry.AttemptDelayFor(attempt)); err != nil {
			return err
		}

		fp := e.opts.Fingerprints.Random()
		slog.Debug("Scrape attempt", "url", rawURL, "attempt", attempt, "browser", fp.Family)

		res, err := e.fetchAndExtract(ctx, rawURL, fp, e.opts.PrimaryTimeout)
		if err != nil {
			if errors.Is(err, ErrBotDetected) {
				slog.Warn("Bot detection page served", "url", rawURL, "attempt", attempt, "error", err)
			}
			return err
		}
		result = res
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// scrapeMobile is a single attempt with an iPhone identity.
func (e *Engine) scrapeMobile(ctx context.Context, rawURL string, _ *FallbackHints) (*Result, error) {
	return e.fetchAndExtract(ctx, rawURL, stealth.Mobile(), e.opts.FallbackTimeout)
}

// scrapeMinimal is a single attempt with only a User-Agent and Accept header.
func (e *Engine) scrapeMinimal(ctx context.Context, rawURL string, _ *FallbackHints) (*Result, error) {
	return e.fetchAndExtract(ctx, rawURL, stealth.Minimal(), e.opts.FallbackTimeout)
}

// fetchAndExtract performs one fetch, classifies it and extracts the preview fields.
func (e *Engine) fetchAndExtract(ctx context.Context, rawURL string, fp stealth.Fingerprint, timeout time.Duration) (*Result, error) {
	resp, err := e.fetcher.Fetch(ctx, rawURL, httputil.FetchOptions{
		Headers:         fp.Header(),
		Timeout:         timeout,
		FollowRedirects: true,
	})
	if err != nil {
		return nil, err
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(resp.Body))
	if err != nil {
		return nil, fmt.Errorf("failed to parse HTML: %w", err)
	}

	pageTitle := normalizeSpace(doc.Find("title").First().Text())
	if blocked, reason := e.bot.IsBotResponse(resp.StatusCode, resp.Body, pageTitle); blocked {
		return nil, fmt.Errorf("%w: %s (HTTP %d)", ErrBotDetected, reason, resp.StatusCode)
	}
	if !resp.IsSuccess() {
		return nil, &api.HTTPError{StatusCode: resp.StatusCode, Message: resp.Status}
	}

	base, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("invalid URL: %w", err)
	}
	if resp.FinalURL != "" {
		if final, err := url.Parse(resp.FinalURL); err == nil {
			base = final
		}
	}

	result := e.extract(doc, rawURL, base)
	if result.Title == "" {
		return nil, ErrNoTitle
	}
	if e.bot.TitleMatches(result.Title) {
		return nil, fmt.Errorf("%w: extracted title %q", ErrBotDetected, result.Title)
	}
	return result, nil
}

func isBotError(err error) bool {
	return errors.Is(err, ErrBotDetected)
}
