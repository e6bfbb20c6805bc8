package linkpreview

import (
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"
)

const (
	maxTitleLength        = 200
	maxDescriptionLength  = 500
	maxAvailabilityLength = 50
)

var (
	priceSelectors = []string{
		".a-price .a-offscreen",
		"#corePrice_feature_div .a-offscreen",
		"#priceblock_ourprice",
		"#priceblock_dealprice",
		"#priceblock_saleprice",
		"#price_inside_buybox",
		`[data-test="product-price"]`,
		`[data-testid="product-price"]`,
		`[itemprop="price"]`,
		`[data-automation-id="product-price"]`,
		".product-price",
		".sale-price",
		".current-price",
		".price",
	}

	priceMetaKeys = []string{"product:price:amount", "og:price:amount", "price"}

	availabilitySelectors = []string{
		"#availability span",
		"#availability",
		`[data-test="fulfillment-cell-shipping"]`,
		`[itemprop="availability"]`,
		`[data-testid="availability"]`,
		".product-availability",
		".availability",
		".stock-status",
		".in-stock",
		".out-of-stock",
	}

	// The leftmost "$<digits>[.<digits>]" in a text wins.
	dollarPattern = regexp.MustCompile(`\$\s*(\d[\d,]*(?:\.\d+)?)`)
	numberPattern = regexp.MustCompile(`\d[\d,]*(?:\.\d+)?`)
)

// extract builds a Result from a parsed page using the first adapter matching base.
func (e *Engine) extract(doc *goquery.Document, rawURL string, base *url.URL) *Result {
	p := &page{doc: doc, base: base, bot: e.bot}
	adapter := e.adapterFor(base)

	result := &Result{
		URL:          rawURL,
		Title:        adapter.ExtractTitle(p),
		ImageURL:     adapter.ExtractImage(p),
		Description:  extractDescription(doc),
		SiteName:     extractSiteName(doc),
		Price:        extractPrice(doc),
		Availability: extractAvailability(doc),
	}
	if result.SiteName == "" {
		result.SiteName = e.siteNameFor(base.Hostname())
	}

	cleanupResult(result)
	return result
}

func (e *Engine) adapterFor(u *url.URL) SiteAdapter {
	for _, a := range e.adapters {
		if a.Matches(u) {
			return a
		}
	}
	return genericAdapter{}
}

func extractDescription(doc *goquery.Document) string {
	for _, key := range []string{"og:description", "twitter:description", "description"} {
		if d := normalizeSpace(metaContent(doc, key)); d != "" {
			return d
		}
	}
	return ""
}

func extractSiteName(doc *goquery.Document) string {
	if name := normalizeSpace(metaContent(doc, "og:site_name")); name != "" {
		return name
	}
	return strings.TrimPrefix(normalizeSpace(metaContent(doc, "twitter:site")), "@")
}

// extractPrice returns the first selector text containing a dollar amount, else a numeric
// price meta tag.
func extractPrice(doc *goquery.Document) *float64 {
	for _, sel := range priceSelectors {
		var price *float64
		doc.Find(sel).EachWithBreak(func(_ int, s *goquery.Selection) bool {
			price = parseDollarPrice(s.Text())
			return price == nil
		})
		if price != nil {
			return price
		}
	}

	for _, key := range priceMetaKeys {
		if v := metaContent(doc, key); v != "" {
			if price := parseNumber(v); price != nil {
				return price
			}
		}
	}
	return nil
}

// parseDollarPrice extracts the leftmost "$<number>" value from text.
func parseDollarPrice(text string) *float64 {
	m := dollarPattern.FindStringSubmatch(text)
	if m == nil {
		return nil
	}
	return parseFloat(m[1])
}

func parseNumber(text string) *float64 {
	m := numberPattern.FindString(text)
	if m == "" {
		return nil
	}
	return parseFloat(m)
}

func parseFloat(s string) *float64 {
	v, err := strconv.ParseFloat(strings.ReplaceAll(s, ",", ""), 64)
	if err != nil {
		return nil
	}
	return &v
}

func extractAvailability(doc *goquery.Document) string {
	for _, sel := range availabilitySelectors {
		var found string
		doc.Find(sel).EachWithBreak(func(_ int, s *goquery.Selection) bool {
			text := normalizeSpace(s.Text())
			if text != "" && utf8.RuneCountInString(text) < maxAvailabilityLength {
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

// metaContent returns the content of the first meta tag whose property, name or itemprop
// equals key.
func metaContent(doc *goquery.Document, key string) string {
	for _, attr := range []string{"property", "name", "itemprop"} {
		if v, ok := doc.Find(`meta[` + attr + `="` + key + `"]`).First().Attr("content"); ok {
			if v = strings.TrimSpace(v); v != "" {
				return v
			}
		}
	}
	return ""
}

func normalizeSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// Truncate caps s at limit runes, ending with "..." when something was cut. Limits too
// small to fit the ellipsis cut without one.
func Truncate(s string, limit int) string {
	if utf8.RuneCountInString(s) <= limit {
		return s
	}
	if limit <= 0 {
		return ""
	}
	runes := []rune(s)
	if limit <= 3 {
		return string(runes[:limit])
	}
	return string(runes[:limit-3]) + "..."
}

// cleanupResult trims whitespace, strips NUL bytes and caps field lengths.
func cleanupResult(r *Result) {
	clean := func(s string) string {
		return strings.TrimSpace(strings.ReplaceAll(s, "\x00", ""))
	}
	r.Title = Truncate(clean(r.Title), maxTitleLength)
	r.Description = Truncate(clean(r.Description), maxDescriptionLength)
	r.SiteName = clean(r.SiteName)
	r.Availability = clean(r.Availability)
}
