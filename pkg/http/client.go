// Package http fetches HTML pages with caller-supplied headers, per-request timeouts and
// optional redirect following, returning a decoded UTF-8 body.
package http

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"
)

// ClientConfig represents HTTP client configuration
type ClientConfig struct {
	Timeout      time.Duration
	MaxBodyBytes int64
	MaxRedirects int
	Transport    http.RoundTripper
}

// DefaultConfig returns default HTTP client configuration
func DefaultConfig() *ClientConfig {
	return &ClientConfig{
		Timeout:      15 * time.Second,
		MaxBodyBytes: 2 << 20, // 2 MiB
		MaxRedirects: 10,
	}
}

// FetchOptions controls a single Fetch call.
type FetchOptions struct {
	Headers         http.Header
	Timeout         time.Duration
	FollowRedirects bool
}

// Response is a fetched page.
type Response struct {
	StatusCode int
	Status     string
	Header     http.Header
	Body       string
	FinalURL   string
}

// Client performs page fetches. It is safe for concurrent use.
type Client struct {
	transport http.RoundTripper
	config    *ClientConfig
}

// NewClient creates a new HTTP client with the given configuration
func NewClient(config *ClientConfig) *Client {
	if config == nil {
		config = DefaultConfig()
	}

	transport := config.Transport
	if transport == nil {
		transport = http.DefaultTransport
	}

	return &Client{
		transport: transport,
		config:    config,
	}
}

// Fetch issues a GET for url. Non-2xx responses are returned, not treated as errors.
func (c *Client) Fetch(ctx context.Context, url string, opts FetchOptions) (*Response, error) {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = c.config.Timeout
	}

	client := &http.Client{
		Transport:     c.transport,
		Timeout:       timeout,
		CheckRedirect: c.redirectPolicy(opts.FollowRedirects),
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create GET request: %w", err)
	}
	for key, values := range opts.Headers {
		for _, v := range values {
			req.Header.Add(key, v)
		}
	}

	slog.Debug("Fetching page", "url", url, "timeout", timeout, "followRedirects", opts.FollowRedirects)

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch %s: %w", url, err)
	}

	body, err := ReadDecodedBody(resp, c.config.MaxBodyBytes)
	if err != nil {
		return nil, fmt.Errorf("failed to read body of %s: %w", url, err)
	}

	return &Response{
		StatusCode: resp.StatusCode,
		Status:     resp.Status,
		Header:     resp.Header,
		Body:       body,
		FinalURL:   resp.Request.URL.String(),
	}, nil
}

func (c *Client) redirectPolicy(follow bool) func(*http.Request, []*http.Request) error {
	if !follow {
		return func(*http.Request, []*http.Request) error {
			return http.ErrUseLastResponse
		}
	}
	maxRedirects := c.config.MaxRedirects
	return func(req *http.Request, via []*http.Request) error {
		if len(via) >= maxRedirects {
			return errors.New("too many redirects")
		}
		return nil
	}
}

// IsSuccess reports whether the status code is 2xx.
func (r *Response) IsSuccess() bool {
	return r.StatusCode >= 200 && r.StatusCode < 300
}
