package config

import (
	"context"
	"os"
	"path/filepath"
	"testing"
)

func TestDefaultSiteRules(t *testing.T) {
	rules, err := DefaultSiteRules()
	if err != nil {
		t.Fatalf("DefaultSiteRules() error = %v", err)
	}

	if len(rules.BotPhrases) == 0 || len(rules.BotTitlePhrases) == 0 {
		t.Error("embedded rules should include bot phrases")
	}

	tests := []struct {
		host   string
		want   string
		wantOK bool
	}{
		{"www.amazon.com", "Amazon", true},
		{"amazon.co.uk", "Amazon", true},
		{"www.walmart.com", "Walmart", true},
		{"www.target.com", "Target", true},
		{"www.buybuybaby.com", "buybuy BABY", true},
		{"www.babylist.com", "Babylist", true},
		{"WWW.TARGET.COM", "Target", true},
		{"www.etsy.com", "", false},
		{"www.notamazon.com", "", false},
		{"shop.mytarget.net", "", false},
		{"target.example.org", "", false},
		{"amazon.example.com", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.host, func(t *testing.T) {
			got, ok := rules.BrandFor(tt.host)
			if got != tt.want || ok != tt.wantOK {
				t.Errorf("BrandFor(%q) = (%q, %v), want (%q, %v)", tt.host, got, ok, tt.want, tt.wantOK)
			}
		})
	}
}

func TestSiteRules_Merge(t *testing.T) {
	rules := &SiteRules{
		Brands:     []BrandRule{{Match: "etsy", Name: "Etsy"}},
		BotPhrases: []string{"are you a robot"},
	}

	rules.Merge(&SiteRules{
		Brands:     []BrandRule{{Match: "etsy", Name: "Etsy Marketplace"}},
		BotPhrases: []string{"Are You A Robot", "slide to verify"},
	})

	if got, _ := rules.BrandFor("www.etsy.com"); got != "Etsy Marketplace" {
		t.Errorf("override brand = %q, want Etsy Marketplace", got)
	}
	if len(rules.BotPhrases) != 2 {
		t.Errorf("BotPhrases = %v, want de-duplicated merge", rules.BotPhrases)
	}

	rules.Merge(nil)
}

func TestLoadSiteRules_LocalOverride(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sites.yaml")
	content := "brands:\n  - match: crateandbarrel\n    name: Crate & Barrel\n"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	rules, err := LoadSiteRules(context.Background(), &LoaderConfig{LocalPath: path, FallbackToDefault: true})
	if err != nil {
		t.Fatalf("LoadSiteRules() error = %v", err)
	}

	if got, ok := rules.BrandFor("www.crateandbarrel.com"); !ok || got != "Crate & Barrel" {
		t.Errorf("BrandFor(crateandbarrel) = (%q, %v)", got, ok)
	}
	if got, _ := rules.BrandFor("www.amazon.com"); got != "Amazon" {
		t.Errorf("embedded brands lost after override, got %q", got)
	}
}

func TestBrandFor_DomainRule(t *testing.T) {
	rules := &SiteRules{Brands: []BrandRule{{Match: "go.registry.example", Name: "Registry Links"}}}

	tests := []struct {
		host   string
		wantOK bool
	}{
		{"go.registry.example", true},
		{"eu.go.registry.example", true},
		{"notgo.registry.example", false},
		{"go.registry.example.net", false},
	}
	for _, tt := range tests {
		if _, ok := rules.BrandFor(tt.host); ok != tt.wantOK {
			t.Errorf("BrandFor(%q) ok = %v, want %v", tt.host, ok, tt.wantOK)
		}
	}
}
