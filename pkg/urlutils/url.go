// Package urlutils provides URL validation and resolution helpers.
package urlutils

import (
	"net"
	"net/url"
	"strings"

	"golang.org/x/net/publicsuffix"
)

// IsValidURL checks if a URL is valid
func IsValidURL(urlStr string) bool {
	u, err := url.Parse(urlStr)
	return err == nil && u.Scheme != "" && u.Host != ""
}

// IsHTTPURL reports whether urlStr is an absolute http or https URL.
func IsHTTPURL(urlStr string) bool {
	u, err := url.Parse(urlStr)
	if err != nil || u.Host == "" {
		return false
	}
	return u.Scheme == "http" || u.Scheme == "https"
}

// ResolveURL resolves a relative URL against a base URL.
// Absolute URLs are returned unchanged; protocol-relative ("//cdn/x"), root-relative ("/x")
// and path-relative ("x") references take the base's scheme, host and directory as needed.
func ResolveURL(baseURL, relativeURL string) (string, error) {
	rel, err := url.Parse(strings.TrimSpace(relativeURL))
	if err != nil {
		return "", err
	}

	if rel.IsAbs() {
		return relativeURL, nil
	}

	base, err := url.Parse(baseURL)
	if err != nil {
		return "", err
	}

	return base.ResolveReference(rel).String(), nil
}

// Hostname returns the lower-cased host of urlStr without port, or "" if it cannot be parsed.
func Hostname(urlStr string) string {
	u, err := url.Parse(urlStr)
	if err != nil {
		return ""
	}
	return strings.ToLower(u.Hostname())
}

// StripWWW removes a leading "www." label.
func StripWWW(host string) string {
	return strings.TrimPrefix(host, "www.")
}

// RegistrableLabel returns the label in front of the public suffix, e.g. "amazon" for
// "smile.amazon.co.uk". IP addresses return "". A host that is itself a public suffix, such
// as "localhost", returns its first label.
func RegistrableLabel(host string) string {
	host = strings.TrimSuffix(strings.ToLower(host), ".")
	if host == "" || net.ParseIP(host) != nil {
		return ""
	}

	domain, err := publicsuffix.EffectiveTLDPlusOne(host)
	if err != nil {
		domain = host
	}
	label, _, _ := strings.Cut(domain, ".")
	return label
}

// HostInDomain reports whether host is domain itself or one of its subdomains.
func HostInDomain(host, domain string) bool {
	host = strings.TrimSuffix(strings.ToLower(host), ".")
	domain = strings.ToLower(domain)
	return domain != "" && (host == domain || strings.HasSuffix(host, "."+domain))
}
