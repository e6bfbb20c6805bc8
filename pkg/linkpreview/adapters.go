package linkpreview

import (
	"encoding/json"
	"net/url"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/lepinkainen/registry-preview/pkg/urlutils"
)

// page is a parsed document together with the URL it was served from.
type page struct {
	doc  *goquery.Document
	base *url.URL
	bot  *BotDetector
}

// SiteAdapter extracts the fields whose markup differs per store.
type SiteAdapter interface {
	Name() string
	Matches(u *url.URL) bool
	ExtractTitle(p *page) string
	ExtractImage(p *page) string
}

// defaultAdapters is ordered; the generic adapter matches everything and goes last.
func defaultAdapters() []SiteAdapter {
	return []SiteAdapter{amazonAdapter{}, genericAdapter{}}
}

type amazonAdapter struct{}

var (
	amazonTitleSelectors = []string{
		"#productTitle",
		"#title",
		"#btAsinTitle",
		"span.a-size-large.product-title-word-break",
		"h1.a-size-large",
		"h1 span.a-size-extra-large",
	}

	amazonImageSelectors = []string{
		"img#landingImage",
		"#imgBlkFront",
		"#ebooksImgBlkFront",
		"#main-image",
		"#imgTagWrapperId img",
	}

	amazonCDNHosts = []string{
		"m.media-amazon.com",
		"images-na.ssl-images-amazon.com",
		"images-amazon.com",
	}

	amazonTitlePrefix = regexp.MustCompile(`(?i)^amazon\.[a-z.]+\s*:\s*`)
	amazonTitleSuffix = regexp.MustCompile(`(?i)\s*[:|]\s*amazon\.[a-z.]+.*$`)
)

func (amazonAdapter) Name() string { return "amazon" }

func (amazonAdapter) Matches(u *url.URL) bool {
	switch urlutils.RegistrableLabel(u.Hostname()) {
	case "amazon", "amzn":
		return true
	}
	return false
}

func (amazonAdapter) ExtractTitle(p *page) string {
	if title := firstText(p, amazonTitleSelectors); title != "" {
		return title
	}

	title := normalizeSpace(p.doc.Find("title").First().Text())
	title = amazonTitlePrefix.ReplaceAllString(title, "")
	title = amazonTitleSuffix.ReplaceAllString(title, "")
	title = strings.TrimSpace(title)
	if title == "" || p.bot.TitleMatches(title) {
		return ""
	}
	return title
}

func (amazonAdapter) ExtractImage(p *page) string {
	for _, sel := range amazonImageSelectors {
		var found string
		p.doc.Find(sel).EachWithBreak(func(_ int, s *goquery.Selection) bool {
			if hires, ok := s.Attr("data-old-hires"); ok {
				if img := p.acceptImage(hires); img != "" {
					found = img
					return false
				}
			}
			if dynamic, ok := s.Attr("data-a-dynamic-image"); ok {
				if img := p.acceptImage(largestDynamicImage(dynamic)); img != "" {
					found = img
					return false
				}
			}
			if src, ok := s.Attr("src"); ok {
				if img := p.acceptImage(src); img != "" {
					found = img
					return false
				}
			}
			return true
		})
		if found != "" {
			return found
		}
	}

	var found string
	p.doc.Find("img").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		src, _ := s.Attr("src")
		if containsAny(strings.ToLower(src), amazonCDNHosts) {
			found = p.acceptImage(src)
		}
		return found == ""
	})
	if found != "" {
		return found
	}

	return p.metaImage()
}

// largestDynamicImage picks the widest entry of Amazon's {"url": [w, h], ...} attribute.
func largestDynamicImage(attr string) string {
	var sizes map[string][]int
	if err := json.Unmarshal([]byte(attr), &sizes); err != nil {
		return ""
	}

	best, bestArea := "", -1
	for u, dims := range sizes {
		area := 0
		if len(dims) >= 2 {
			area = dims[0] * dims[1]
		}
		if area > bestArea || (area == bestArea && u < best) {
			best, bestArea = u, area
		}
	}
	return best
}

type genericAdapter struct{}

var (
	genericTitleSelectors = []string{
		`h1[itemprop="name"]`,
		`[data-test="product-title"]`,
		`[data-testid="product-title"]`,
		`h1#main-title`,
		"h1.prod-ProductTitle",
		"h1.product-title",
		"h1.product-name",
		"h1.product_title",
		".product-title",
		".product-name",
	}

	genericImageSelectors = []string{
		`[itemprop="image"]`,
		`[data-test="product-image"] img`,
		`[data-testid="product-image"] img`,
		`img[data-testid="product-image"]`,
		"#product-image",
		"img.product-image",
		".product-image img",
		".product-photo img",
		"img.primary-image",
	}
)

func (genericAdapter) Name() string { return "generic" }

func (genericAdapter) Matches(*url.URL) bool { return true }

func (genericAdapter) ExtractTitle(p *page) string {
	if title := firstText(p, genericTitleSelectors); title != "" {
		return title
	}

	for _, key := range []string{"og:title", "twitter:title"} {
		if title := normalizeSpace(metaContent(p.doc, key)); title != "" && !p.bot.TitleMatches(title) {
			return title
		}
	}

	title := normalizeSpace(p.doc.Find("title").First().Text())
	if title != "" && !p.bot.TitleMatches(title) {
		return title
	}
	return ""
}

func (genericAdapter) ExtractImage(p *page) string {
	for _, sel := range genericImageSelectors {
		var found string
		p.doc.Find(sel).EachWithBreak(func(_ int, s *goquery.Selection) bool {
			for _, attr := range []string{"src", "data-src", "content", "href"} {
				if v, ok := s.Attr(attr); ok {
					if img := p.acceptImage(v); img != "" {
						found = img
						return false
					}
				}
			}
			return true
		})
		if found != "" {
			return found
		}
	}

	if img := p.metaImage(); img != "" {
		return img
	}
	return p.largeImage()
}

// firstText returns the first non-empty selector text that is not a challenge phrase.
func firstText(p *page, selectors []string) string {
	for _, sel := range selectors {
		var found string
		p.doc.Find(sel).EachWithBreak(func(_ int, s *goquery.Selection) bool {
			text := normalizeSpace(s.Text())
			if text != "" && !p.bot.TitleMatches(text) {
				found = text
				return false
			}
			return true
		})
		if found != "" {
			return found
		}
	}
	return ""
}
