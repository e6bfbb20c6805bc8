package config

import (
	"context"
	"fmt"
	"strings"

	"github.com/lepinkainen/registry-preview/configs"
	"github.com/lepinkainen/registry-preview/pkg/urlutils"
	"gopkg.in/yaml.v3"
)

// BrandRule maps a store to its display name. Match is either a bare label compared with the
// label in front of the public suffix ("amazon" matches amazon.com and amazon.co.uk), or a
// domain with a dot that matches itself and its subdomains ("amzn.to").
type BrandRule struct {
	Match string `yaml:"match" json:"match"`
	Name  string `yaml:"name" json:"name"`
}

// SiteRules holds the hostname brand table and the bot-challenge phrase lists.
type SiteRules struct {
	Brands          []BrandRule `yaml:"brands" json:"brands"`
	BotPhrases      []string    `yaml:"bot_phrases" json:"bot_phrases"`
	BotTitlePhrases []string    `yaml:"bot_title_phrases" json:"bot_title_phrases"`
}

// BrandFor returns the display name of the first rule matching host on whole labels.
func (r *SiteRules) BrandFor(host string) (string, bool) {
	label := urlutils.RegistrableLabel(host)
	for _, rule := range r.Brands {
		match := strings.ToLower(strings.TrimSpace(rule.Match))
		switch {
		case match == "":
			continue
		case strings.Contains(match, "."):
			if urlutils.HostInDomain(host, match) {
				return rule.Name, true
			}
		case match == label:
			return rule.Name, true
		}
	}
	return "", false
}

// Merge appends other's entries to r, skipping phrases r already has.
func (r *SiteRules) Merge(other *SiteRules) {
	if other == nil {
		return
	}
	r.Brands = append(other.Brands, r.Brands...)
	r.BotPhrases = appendMissing(r.BotPhrases, other.BotPhrases)
	r.BotTitlePhrases = appendMissing(r.BotTitlePhrases, other.BotTitlePhrases)
}

func appendMissing(dst, src []string) []string {
	seen := make(map[string]bool, len(dst))
	for _, s := range dst {
		seen[strings.ToLower(s)] = true
	}
	for _, s := range src {
		if !seen[strings.ToLower(s)] {
			dst = append(dst, s)
			seen[strings.ToLower(s)] = true
		}
	}
	return dst
}

// DefaultSiteRules returns the rules embedded in the binary.
func DefaultSiteRules() (*SiteRules, error) {
	data, err := configs.EmbeddedConfigs.ReadFile("sites.yaml")
	if err != nil {
		return nil, fmt.Errorf("failed to read embedded site rules: %w", err)
	}

	var rules SiteRules
	if err := yaml.Unmarshal(data, &rules); err != nil {
		return nil, fmt.Errorf("failed to parse embedded site rules: %w", err)
	}
	return &rules, nil
}

// LoadSiteRules returns the embedded rules extended with any rules found at the remote URL
// or local path. Overrides take precedence for brand matches.
func LoadSiteRules(ctx context.Context, loader *LoaderConfig) (*SiteRules, error) {
	rules, err := DefaultSiteRules()
	if err != nil {
		return nil, err
	}
	if loader == nil || (loader.RemoteURL == "" && loader.LocalPath == "") {
		return rules, nil
	}

	var override SiteRules
	source, err := LoadFromURLWithFallback(ctx, loader, &override)
	if err != nil {
		return nil, err
	}
	if source != "default" {
		rules.Merge(&override)
	}
	return rules, nil
}
