package linkpreview

import (
	"net/http"
	"strings"

	"github.com/lepinkainen/registry-preview/pkg/config"
)

// BotDetector recognizes anti-bot interstitials by phrase.
type BotDetector struct {
	bodyPhrases  []string
	titlePhrases []string
}

// NewBotDetector builds a detector from the site rules' phrase lists.
func NewBotDetector(rules *config.SiteRules) *BotDetector {
	d := &BotDetector{}
	for _, p := range rules.BotPhrases {
		d.bodyPhrases = append(d.bodyPhrases, strings.ToLower(p))
	}
	for _, p := range rules.BotTitlePhrases {
		d.titlePhrases = append(d.titlePhrases, strings.ToLower(p))
	}
	return d
}

// IsBotResponse reports whether a fetched page is a challenge rather than content, and why.
func (d *BotDetector) IsBotResponse(status int, body, pageTitle string) (bool, string) {
	bodyHit := d.BodyMatches(body)

	if (status == http.StatusForbidden || status == http.StatusTooManyRequests) && bodyHit {
		return true, "blocked status with challenge body"
	}
	if bodyHit {
		return true, "challenge phrase in body"
	}
	if d.TitleMatches(pageTitle) {
		return true, "challenge phrase in title"
	}
	return false, ""
}

// BodyMatches reports whether body contains any body phrase.
func (d *BotDetector) BodyMatches(body string) bool {
	return containsAny(strings.ToLower(body), d.bodyPhrases)
}

// TitleMatches reports whether title contains a title or body phrase.
func (d *BotDetector) TitleMatches(title string) bool {
	if title == "" {
		return false
	}
	lower := strings.ToLower(title)
	return containsAny(lower, d.titlePhrases) || containsAny(lower, d.bodyPhrases)
}

func containsAny(s string, phrases []string) bool {
	for _, p := range phrases {
		if p != "" && strings.Contains(s, p) {
			return true
		}
	}
	return false
}
