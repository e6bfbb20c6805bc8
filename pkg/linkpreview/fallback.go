package linkpreview

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"path"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/lepinkainen/registry-preview/pkg/urlutils"
)

var (
	errNoHints     = errors.New("no fallback name supplied")
	errNoPathTitle = errors.New("URL path has no usable segment")
)

// manualPreview builds a preview from the caller's hints; it needs at least a name.
func (e *Engine) manualPreview(_ context.Context, rawURL string, hints *FallbackHints) (*Result, error) {
	if hints == nil || strings.TrimSpace(hints.Name) == "" {
		return nil, errNoHints
	}

	result := &Result{
		URL:         rawURL,
		Title:       strings.TrimSpace(hints.Name),
		Description: strings.TrimSpace(hints.Description),
		ImageURL:    strings.TrimSpace(hints.ImageURL),
		SiteName:    e.siteNameFor(hostOf(rawURL)),
	}
	cleanupResult(result)
	return result, nil
}

// urlPatternPreview guesses a preview from the URL alone.
func (e *Engine) urlPatternPreview(_ context.Context, rawURL string, hints *FallbackHints) (*Result, error) {
	u, err := url.Parse(rawURL)
	if err != nil || u.Hostname() == "" {
		return nil, fmt.Errorf("cannot derive preview from %q: invalid URL", rawURL)
	}

	title := titleFromPath(u.Path)
	if title == "" {
		return nil, errNoPathTitle
	}

	siteName := e.siteNameFor(u.Hostname())
	result := &Result{
		URL:         rawURL,
		Title:       title,
		SiteName:    siteName,
		Description: "View this item on " + siteName,
	}
	if hints != nil {
		result.ImageURL = strings.TrimSpace(hints.ImageURL)
		if d := strings.TrimSpace(hints.Description); d != "" {
			result.Description = d
		}
	}
	cleanupResult(result)
	return result, nil
}

// siteNameFor maps a hostname to a store name: the brand table first, else the label in
// front of the public suffix capitalized ("shop.littlenest.co.uk" is "Littlenest").
func (e *Engine) siteNameFor(host string) string {
	host = strings.ToLower(host)
	if name, ok := e.rules.BrandFor(host); ok {
		return name
	}

	label := urlutils.RegistrableLabel(host)
	if label == "" {
		label, _, _ = strings.Cut(urlutils.StripWWW(host), ".")
	}
	return capitalize(label)
}

// titleFromPath turns the last non-empty path segment into words: "baby-monitor_pro" becomes
// "Baby Monitor Pro".
func titleFromPath(p string) string {
	var last string
	for _, seg := range strings.Split(p, "/") {
		if strings.TrimSpace(seg) != "" {
			last = seg
		}
	}
	if last == "" {
		return ""
	}

	switch strings.ToLower(path.Ext(last)) {
	case ".html", ".htm", ".php", ".aspx", ".jsp":
		last = strings.TrimSuffix(last, path.Ext(last))
	}

	words := strings.FieldsFunc(last, func(r rune) bool {
		return r == '-' || r == '_' || unicode.IsSpace(r)
	})
	for i, w := range words {
		words[i] = capitalize(w)
	}
	return strings.Join(words, " ")
}

func capitalize(s string) string {
	r, size := utf8.DecodeRuneInString(s)
	if r == utf8.RuneError {
		return s
	}
	return string(unicode.ToUpper(r)) + s[size:]
}

func hostOf(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	return u.Hostname()
}
