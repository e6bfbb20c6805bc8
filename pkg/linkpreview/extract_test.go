package linkpreview

import (
	"net/url"
	"testing"

	"github.com/lepinkainen/registry-preview/pkg/config"
)

func testBot(t *testing.T) *BotDetector {
	t.Helper()
	rules, err := config.DefaultSiteRules()
	if err != nil {
		t.Fatalf("DefaultSiteRules() error = %v", err)
	}
	return NewBotDetector(rules)
}

func testPage(t *testing.T, rawURL, html string) *page {
	t.Helper()
	base, err := url.Parse(rawURL)
	if err != nil {
		t.Fatalf("Failed to parse %s: %v", rawURL, err)
	}
	return &page{doc: mustDoc(t, html), base: base, bot: testBot(t)}
}

func TestParseDollarPrice(t *testing.T) {
	tests := []struct {
		text string
		want float64
		ok   bool
	}{
		{"$12.99 was $19.99", 12.99, true},
		{"Now $ 1,299.00", 1299, true},
		{"Sale: $5", 5, true},
		{"List price 19.99", 0, false},
		{"", 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.text, func(t *testing.T) {
			got := parseDollarPrice(tt.text)
			if !tt.ok {
				if got != nil {
					t.Errorf("parseDollarPrice(%q) = %v, want nil", tt.text, *got)
				}
				return
			}
			if got == nil || *got != tt.want {
				t.Errorf("parseDollarPrice(%q) = %v, want %v", tt.text, got, tt.want)
			}
		})
	}
}

func TestExtractPrice(t *testing.T) {
	tests := []struct {
		name string
		html string
		want *float64
	}{
		{
			name: "leftmost dollar amount wins",
			html: `<span class="price">$12.99 was $19.99</span>`,
			want: ptr(12.99),
		},
		{
			name: "amazon offscreen price before generic",
			html: `<span class="price">$40.00</span><span class="a-price"><span class="a-offscreen">$34.50</span></span>`,
			want: ptr(34.50),
		},
		{
			name: "selector without dollar amount falls through to meta",
			html: `<head><meta property="product:price:amount" content="18.25"></head><span class="price">Call for price</span>`,
			want: ptr(18.25),
		},
		{
			name: "no price",
			html: `<p>Nothing here</p>`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := extractPrice(mustDoc(t, tt.html))
			switch {
			case tt.want == nil && got != nil:
				t.Errorf("extractPrice() = %v, want nil", *got)
			case tt.want != nil && (got == nil || *got != *tt.want):
				t.Errorf("extractPrice() = %v, want %v", got, *tt.want)
			}
		})
	}
}

func TestExtractAvailability(t *testing.T) {
	long := "Usually ships within 4 to 5 weeks from the date the order is placed online"
	doc := mustDoc(t, `<div id="availability"><span>`+long+`</span></div><p class="stock-status"> Only 3 left </p>`)

	if got := extractAvailability(doc); got != "Only 3 left" {
		t.Errorf("extractAvailability() = %q, want %q", got, "Only 3 left")
	}
}

func TestAcceptImage_Resolution(t *testing.T) {
	p := testPage(t, "https://x.com/a/b/product", "<html></html>")

	tests := []struct {
		raw  string
		want string
	}{
		{"//cdn.x.com/i.jpg", "https://cdn.x.com/i.jpg"},
		{"/img/i.jpg", "https://x.com/img/i.jpg"},
		{"i.jpg", "https://x.com/a/b/i.jpg"},
		{"https://other.com/full.jpg", "https://other.com/full.jpg"},
		{"/static/logo.png", ""},
		{"data:image/png;base64,AAAA", ""},
		{"https://x.com/social/facebook-share.png", ""},
		{"", ""},
	}

	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			if got := p.acceptImage(tt.raw); got != tt.want {
				t.Errorf("acceptImage(%q) = %q, want %q", tt.raw, got, tt.want)
			}
		})
	}
}

func TestAmazonAdapter(t *testing.T) {
	html := `<html><head><title>Amazon.com: Graco Pack n Play : Baby</title></head><body>
<span id="productTitle">
   Graco Pack 'n Play Playard
</span>
<div id="imgTagWrapperId">
<img id="landingImage" src="https://m.media-amazon.com/images/I/small.jpg"
 data-a-dynamic-image='{"https://m.media-amazon.com/images/I/small.jpg":[160,160],"https://m.media-amazon.com/images/I/large.jpg":[1000,1000]}'>
</div></body></html>`
	p := testPage(t, "https://www.amazon.com/dp/B00ABC", html)
	adapter := amazonAdapter{}

	if !adapter.Matches(p.base) {
		t.Fatal("amazon adapter should match amazon.com")
	}
	if got := adapter.ExtractTitle(p); got != "Graco Pack 'n Play Playard" {
		t.Errorf("ExtractTitle() = %q", got)
	}
	if got := adapter.ExtractImage(p); got != "https://m.media-amazon.com/images/I/large.jpg" {
		t.Errorf("ExtractImage() = %q", got)
	}
}

func TestAdapterFor(t *testing.T) {
	engine, _ := newTestEngine(t, failingFetcher(), nil)

	tests := []struct {
		rawURL string
		want   string
	}{
		{"https://www.amazon.com/dp/B00ABC", "amazon"},
		{"https://smile.amazon.co.uk/dp/B00ABC", "amazon"},
		{"https://amzn.to/3xYz", "amazon"},
		{"https://www.notamazon.com/products/rattle", "generic"},
		{"https://shop.mytarget.net/p/monitor", "generic"},
		{"https://target.example.org/p/monitor", "generic"},
		{"https://amazon.example.com/dp/B00ABC", "generic"},
	}

	for _, tt := range tests {
		t.Run(tt.rawURL, func(t *testing.T) {
			u, err := url.Parse(tt.rawURL)
			if err != nil {
				t.Fatal(err)
			}
			if got := engine.adapterFor(u).Name(); got != tt.want {
				t.Errorf("adapterFor(%q) = %q, want %q", tt.rawURL, got, tt.want)
			}
		})
	}
}

func TestAmazonAdapter_Fallbacks(t *testing.T) {
	tests := []struct {
		name      string
		html      string
		wantTitle string
		wantImage string
	}{
		{
			name:      "title suffix stripped",
			html:      `<title>Graco Pack n Play : Amazon.com : Baby</title>`,
			wantTitle: "Graco Pack n Play",
		},
		{
			name:      "title prefix stripped",
			html:      `<title>Amazon.com: Halo Bassinest Swivel Sleeper</title>`,
			wantTitle: "Halo Bassinest Swivel Sleeper",
		},
		{
			name:      "robot check title rejected",
			html:      `<title>Amazon.com - Robot Check</title>`,
			wantTitle: "",
		},
		{
			name:      "hi-res attribute",
			html:      `<img id="landingImage" data-old-hires="https://m.media-amazon.com/images/I/hires.jpg" src="https://m.media-amazon.com/images/I/lo.jpg">`,
			wantImage: "https://m.media-amazon.com/images/I/hires.jpg",
		},
		{
			name:      "any CDN image",
			html:      `<img src="/nav/sprite.png"><img src="https://images-na.ssl-images-amazon.com/images/I/product.jpg">`,
			wantImage: "https://images-na.ssl-images-amazon.com/images/I/product.jpg",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := testPage(t, "https://www.amazon.com/dp/B00ABC", tt.html)
			if got := (amazonAdapter{}).ExtractTitle(p); got != tt.wantTitle {
				t.Errorf("ExtractTitle() = %q, want %q", got, tt.wantTitle)
			}
			if got := (amazonAdapter{}).ExtractImage(p); got != tt.wantImage {
				t.Errorf("ExtractImage() = %q, want %q", got, tt.wantImage)
			}
		})
	}
}

func TestGenericAdapter(t *testing.T) {
	tests := []struct {
		name      string
		html      string
		wantTitle string
		wantImage string
	}{
		{
			name:      "product selector",
			html:      `<h1 itemprop="name">Wooden Stacking Rings</h1><img itemprop="image" src="/p/rings.jpg">`,
			wantTitle: "Wooden Stacking Rings",
			wantImage: "https://shop.example.com/p/rings.jpg",
		},
		{
			name:      "open graph",
			html:      `<head><meta property="og:title" content="Play Mat"><meta name="twitter:image" content="https://cdn.example.com/mat.jpg"></head>`,
			wantTitle: "Play Mat",
			wantImage: "https://cdn.example.com/mat.jpg",
		},
		{
			name:      "challenge og title skipped for page title",
			html:      `<head><meta property="og:title" content="Just a moment..."><title>Rocking Chair</title></head>`,
			wantTitle: "Rocking Chair",
		},
		{
			name:      "large image skips brand chrome",
			html:      `<img src="/header-banner.jpg" class="site-header" width="1200"><img src="/p/chair.jpg" width="640" height="480">`,
			wantImage: "https://shop.example.com/p/chair.jpg",
		},
		{
			name: "small images ignored",
			html: `<img src="/p/thumb.jpg" width="120" height="120">`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := testPage(t, "https://shop.example.com/item/42", tt.html)
			if got := (genericAdapter{}).ExtractTitle(p); got != tt.wantTitle {
				t.Errorf("ExtractTitle() = %q, want %q", got, tt.wantTitle)
			}
			if got := (genericAdapter{}).ExtractImage(p); got != tt.wantImage {
				t.Errorf("ExtractImage() = %q, want %q", got, tt.wantImage)
			}
		})
	}
}

func TestTruncate(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		limit    int
		expected string
	}{
		{"fits", "Rattle", 10, "Rattle"},
		{"exact", "Rattle", 6, "Rattle"},
		{"cut with ellipsis", "Wooden Rattle", 9, "Wooden..."},
		{"multibyte", "Käsinneulottu peitto", 8, "Käsin..."},
		{"limit fits only ellipsis", "Wooden Rattle", 3, "Woo"},
		{"limit one", "Wooden Rattle", 1, "W"},
		{"limit zero", "Wooden Rattle", 0, ""},
		{"negative limit", "Wooden Rattle", -5, ""},
		{"empty", "", 0, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Truncate(tt.input, tt.limit); got != tt.expected {
				t.Errorf("Truncate(%q, %d) = %q, want %q", tt.input, tt.limit, got, tt.expected)
			}
		})
	}
}

func TestCleanupResult(t *testing.T) {
	long := make([]rune, 300)
	for i := range long {
		long[i] = 'a'
	}
	r := &Result{Title: "  " + string(long) + "\x00 ", SiteName: " Shop\x00 "}
	cleanupResult(r)

	if n := len([]rune(r.Title)); n != maxTitleLength {
		t.Errorf("Title length = %d, want %d", n, maxTitleLength)
	}
	if r.SiteName != "Shop" {
		t.Errorf("SiteName = %q, want %q", r.SiteName, "Shop")
	}
}

func ptr(f float64) *float64 { return &f }
