// Package stealth provides realistic browser identities and jittered delays for page fetches.
package stealth

import (
	"math/rand/v2"
	"net/http"
)

// Browser families with distinct header shapes.
const (
	FamilyChrome  = "chrome"
	FamilyFirefox = "firefox"
	FamilySafari  = "safari"
	FamilyEdge    = "edge"
	FamilyMobile  = "mobile"
	FamilyMinimal = "minimal"
)

// Fingerprint represents a browser identity with matching UA and headers.
type Fingerprint struct {
	Family    string
	UserAgent string
	Headers   http.Header
}

// Header returns a copy of the fingerprint's headers with User-Agent set.
func (f Fingerprint) Header() http.Header {
	h := f.Headers.Clone()
	if h == nil {
		h = http.Header{}
	}
	h.Set("User-Agent", f.UserAgent)
	return h
}

// FingerprintPool rotates through a set of desktop browser fingerprints.
type FingerprintPool struct {
	fingerprints []Fingerprint
}

// NewFingerprintPool creates a pool with realistic desktop browser fingerprints.
func NewFingerprintPool() *FingerprintPool {
	return &FingerprintPool{
		fingerprints: desktopFingerprints(),
	}
}

// Random returns a uniformly chosen fingerprint.
func (fp *FingerprintPool) Random() Fingerprint {
	return fp.fingerprints[rand.IntN(len(fp.fingerprints))]
}

// Mobile returns an iPhone Safari identity.
func Mobile() Fingerprint {
	h := http.Header{}
	h.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
	h.Set("Accept-Language", "en-US,en;q=0.9")
	h.Set("Accept-Encoding", "gzip, deflate, br")
	h.Set("Sec-Fetch-Dest", "document")
	h.Set("Sec-Fetch-Mode", "navigate")
	h.Set("Sec-Fetch-Site", "none")
	return Fingerprint{
		Family:    FamilyMobile,
		UserAgent: "Mozilla/5.0 (iPhone; CPU iPhone OS 18_3 like Mac OS X) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/18.3 Mobile/15E148 Safari/604.1",
		Headers:   h,
	}
}

// Minimal returns a bare identity: a plain UA and an Accept header, nothing else.
func Minimal() Fingerprint {
	h := http.Header{}
	h.Set("Accept", "text/html")
	return Fingerprint{
		Family:    FamilyMinimal,
		UserAgent: "Mozilla/5.0 (compatible; RegistryPreview/1.0)",
		Headers:   h,
	}
}

func desktopFingerprints() []Fingerprint {
	return []Fingerprint{
		{
			Family:    FamilyChrome,
			UserAgent: "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/133.0.0.0 Safari/537.36",
			Headers:   chromeHeaders("Google Chrome", "133", "Windows"),
		},
		{
			Family:    FamilyChrome,
			UserAgent: "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/133.0.0.0 Safari/537.36",
			Headers:   chromeHeaders("Google Chrome", "133", "macOS"),
		},
		{
			Family:    FamilyFirefox,
			UserAgent: "Mozilla/5.0 (Windows NT 10.0; Win64; x64; rv:135.0) Gecko/20100101 Firefox/135.0",
			Headers:   firefoxHeaders(),
		},
		{
			Family:    FamilyFirefox,
			UserAgent: "Mozilla/5.0 (Macintosh; Intel Mac OS X 10.15; rv:135.0) Gecko/20100101 Firefox/135.0",
			Headers:   firefoxHeaders(),
		},
		{
			Family:    FamilySafari,
			UserAgent: "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/18.3 Safari/605.1.15",
			Headers:   safariHeaders(),
		},
		{
			Family:    FamilyEdge,
			UserAgent: "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/133.0.0.0 Safari/537.36 Edg/133.0.0.0",
			Headers:   chromeHeaders("Microsoft Edge", "133", "Windows"),
		},
	}
}

// chromeHeaders covers Chromium browsers, which send client hints.
func chromeHeaders(brand, version, platform string) http.Header {
	h := http.Header{}
	h.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,image/avif,image/webp,image/apng,*/*;q=0.8")
	h.Set("Accept-Language", "en-US,en;q=0.9")
	h.Set("Accept-Encoding", "gzip, deflate, br")
	h.Set("Cache-Control", "max-age=0")
	h.Set("Sec-Ch-Ua", `"Chromium";v="`+version+`", "Not(A:Brand";v="99", "`+brand+`";v="`+version+`"`)
	h.Set("Sec-Ch-Ua-Mobile", "?0")
	h.Set("Sec-Ch-Ua-Platform", `"`+platform+`"`)
	h.Set("Sec-Fetch-Dest", "document")
	h.Set("Sec-Fetch-Mode", "navigate")
	h.Set("Sec-Fetch-Site", "none")
	h.Set("Sec-Fetch-User", "?1")
	h.Set("Upgrade-Insecure-Requests", "1")
	return h
}

func firefoxHeaders() http.Header {
	h := http.Header{}
	h.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,image/avif,image/webp,*/*;q=0.8")
	h.Set("Accept-Language", "en-US,en;q=0.5")
	h.Set("Accept-Encoding", "gzip, deflate, br")
	h.Set("Sec-Fetch-Dest", "document")
	h.Set("Sec-Fetch-Mode", "navigate")
	h.Set("Sec-Fetch-Site", "none")
	h.Set("Sec-Fetch-User", "?1")
	h.Set("Upgrade-Insecure-Requests", "1")
	return h
}

func safariHeaders() http.Header {
	h := http.Header{}
	h.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
	h.Set("Accept-Language", "en-US,en;q=0.9")
	h.Set("Accept-Encoding", "gzip, deflate, br")
	h.Set("Sec-Fetch-Dest", "document")
	h.Set("Sec-Fetch-Mode", "navigate")
	h.Set("Sec-Fetch-Site", "none")
	return h
}
