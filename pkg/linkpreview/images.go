package linkpreview

import (
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/lepinkainen/registry-preview/pkg/urlutils"
)

// minProductImageSize is the smallest width or height accepted for an unlabelled <img>.
const minProductImageSize = 200

var (
	invalidImageKeywords = []string{
		"logo", "icon", "favicon", "sprite", "badge", "avatar",
		"facebook", "twitter", "pinterest", "instagram", "social",
		"/ads/", "advert", "doubleclick", "banner-ad",
		"pixel", "tracking", "spacer", "blank.gif", "transparent.gif", "placeholder",
	}

	brandKeywords = []string{"logo", "brand", "header", "footer", "nav", "icon"}
)

// isValidProductImage rejects data URIs and URLs that look like logos, icons, social
// buttons, ads or tracking pixels.
func isValidProductImage(imageURL string) bool {
	lower := strings.ToLower(strings.TrimSpace(imageURL))
	if lower == "" || strings.HasPrefix(lower, "data:") || strings.HasPrefix(lower, "javascript:") {
		return false
	}
	return !containsAny(lower, invalidImageKeywords)
}

// acceptImage validates raw and resolves it against the page URL; "" means rejected.
func (p *page) acceptImage(raw string) string {
	raw = strings.TrimSpace(raw)
	if !isValidProductImage(raw) {
		return ""
	}
	resolved, err := urlutils.ResolveURL(p.base.String(), raw)
	if err != nil || !urlutils.IsHTTPURL(resolved) {
		return ""
	}
	return resolved
}

func (p *page) metaImage() string {
	for _, key := range []string{"og:image", "og:image:secure_url", "og:image:url", "twitter:image", "twitter:image:src"} {
		if img := p.acceptImage(metaContent(p.doc, key)); img != "" {
			return img
		}
	}
	return ""
}

// largeImage returns the first <img> declared larger than minProductImageSize that does not
// look like site chrome.
func (p *page) largeImage() string {
	var found string
	p.doc.Find("img").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		if dimension(s, "width") <= minProductImageSize && dimension(s, "height") <= minProductImageSize {
			return true
		}

		alt, _ := s.Attr("alt")
		class, _ := s.Attr("class")
		src, _ := s.Attr("src")
		if src == "" {
			src, _ = s.Attr("data-src")
		}
		if containsAny(strings.ToLower(alt+" "+class+" "+src), brandKeywords) {
			return true
		}

		found = p.acceptImage(src)
		return found == ""
	})
	return found
}

func dimension(s *goquery.Selection, attr string) int {
	v, ok := s.Attr(attr)
	if !ok {
		return 0
	}
	n, err := strconv.Atoi(strings.TrimSuffix(strings.TrimSpace(v), "px"))
	if err != nil {
		return 0
	}
	return n
}
