package linkpreview

import (
	"context"
	"errors"
	"testing"
)

func TestTitleFromPath(t *testing.T) {
	tests := []struct {
		path string
		want string
	}{
		{"/products/baby-monitor_pro", "Baby Monitor Pro"},
		{"/products/baby-monitor/", "Baby Monitor"},
		{"/shop/swaddle-set.html", "Swaddle Set"},
		{"/ip/Graco-Stroller/12345", "12345"},
		{"/", ""},
		{"", ""},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			if got := titleFromPath(tt.path); got != tt.want {
				t.Errorf("titleFromPath(%q) = %q, want %q", tt.path, got, tt.want)
			}
		})
	}
}

func TestSiteNameFor(t *testing.T) {
	engine, _ := newTestEngine(t, failingFetcher(), nil)

	tests := []struct {
		host string
		want string
	}{
		{"www.amazon.com", "Amazon"},
		{"smile.amazon.co.uk", "Amazon"},
		{"amzn.to", "Amazon"},
		{"www.walmart.com", "Walmart"},
		{"www.target.com", "Target"},
		{"www.buybuybaby.com", "buybuy BABY"},
		{"www.babylist.com", "Babylist"},
		{"www.crateandbarrel.com", "Crateandbarrel"},
		{"shop.example.com", "Example"},
		{"WWW.Etsy.com", "Etsy"},
		{"www.notamazon.com", "Notamazon"},
		{"shop.mytarget.net", "Mytarget"},
		{"target.example.org", "Example"},
		{"amazon.example.com", "Example"},
		{"www.littlenest.co.uk", "Littlenest"},
		{"127.0.0.1", "127"},
	}

	for _, tt := range tests {
		t.Run(tt.host, func(t *testing.T) {
			if got := engine.siteNameFor(tt.host); got != tt.want {
				t.Errorf("siteNameFor(%q) = %q, want %q", tt.host, got, tt.want)
			}
		})
	}
}

func TestURLPatternPreview(t *testing.T) {
	engine, _ := newTestEngine(t, failingFetcher(), nil)
	ctx := context.Background()

	result, err := engine.urlPatternPreview(ctx, "https://www.babylist.com/gp/ergo-baby-carrier", nil)
	if err != nil {
		t.Fatalf("urlPatternPreview() error = %v", err)
	}
	if result.Title != "Ergo Baby Carrier" || result.SiteName != "Babylist" {
		t.Errorf("Unexpected preview %+v", result)
	}
	if result.Description != "View this item on Babylist" {
		t.Errorf("Description = %q", result.Description)
	}

	if _, err := engine.urlPatternPreview(ctx, "https://www.babylist.com/", nil); !errors.Is(err, errNoPathTitle) {
		t.Errorf("Expected errNoPathTitle for a bare host, got %v", err)
	}
}

func TestURLPatternPreview_LookalikeHost(t *testing.T) {
	engine, _ := newTestEngine(t, failingFetcher(), nil)

	result := engine.GeneratePreview(context.Background(), "https://www.notamazon.com/products/wooden-rattle", nil)
	if result.Strategy != StrategyURLPattern {
		t.Fatalf("Strategy = %q, want %q", result.Strategy, StrategyURLPattern)
	}
	if result.SiteName != "Notamazon" || result.Title != "Wooden Rattle" {
		t.Errorf("Unexpected preview %+v", result)
	}
}

func TestManualPreview(t *testing.T) {
	engine, _ := newTestEngine(t, failingFetcher(), nil)
	ctx := context.Background()

	if _, err := engine.manualPreview(ctx, "https://www.target.com/p/x", nil); !errors.Is(err, errNoHints) {
		t.Errorf("Expected errNoHints without hints, got %v", err)
	}
	if _, err := engine.manualPreview(ctx, "https://www.target.com/p/x", &FallbackHints{ImageURL: "https://i/x.jpg"}); !errors.Is(err, errNoHints) {
		t.Errorf("Expected errNoHints without a name, got %v", err)
	}

	result, err := engine.manualPreview(ctx, "https://www.target.com/p/x", &FallbackHints{Name: " High Chair "})
	if err != nil {
		t.Fatalf("manualPreview() error = %v", err)
	}
	if result.Title != "High Chair" || result.SiteName != "Target" {
		t.Errorf("Unexpected preview %+v", result)
	}
}
