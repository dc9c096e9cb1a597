package parser

import (
	"errors"
	"net/url"
	"strings"
	"testing"

	"github.com/PuerkitoBio/goquery"
)

func mustDoc(t *testing.T, html string) *goquery.Document {
	t.Helper()
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		t.Fatalf("parse html: %v", err)
	}
	return doc
}

func mustURL(t *testing.T, raw string) *url.URL {
	t.Helper()
	u, err := url.Parse(raw)
	if err != nil {
		t.Fatalf("parse url: %v", err)
	}
	return u
}

func TestParsePrice(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected float64
		wantErr  bool
	}{
		{
			name:     "with currency symbol",
			input:    "£51.77",
			expected: 51.77,
		},
		{
			name:     "with encoding artifact",
			input:    "Â£10.50",
			expected: 10.50,
		},
		{
			name:     "with whitespace",
			input:    "  £25.99  ",
			expected: 25.99,
		},
		{
			name:     "already clean",
			input:    "12.00",
			expected: 12.00,
		},
		{
			name:    "empty string",
			input:   "",
			wantErr: true,
		},
		{
			name:    "not a number",
			input:   "£abc",
			wantErr: true,
		},
		{
			name:    "negative",
			input:   "-5.00",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			price, err := ParsePrice(tt.input)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParsePrice(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			}
			if err == nil && price != tt.expected {
				t.Errorf("ParsePrice(%q) = %v, want %v", tt.input, price, tt.expected)
			}
		})
	}
}

func TestRatingToNumeric(t *testing.T) {
	tests := []struct {
		input    string
		expected int
	}{
		{input: "One", expected: 1},
		{input: "Two", expected: 2},
		{input: "Three", expected: 3},
		{input: "Four", expected: 4},
		{input: "Five", expected: 5},
		{input: "Zero", expected: 0},
		{input: "Invalid", expected: 0},
		{input: "three", expected: 0},
		{input: "", expected: 0},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			if got := RatingToNumeric(tt.input); got != tt.expected {
				t.Errorf("RatingToNumeric(%q) = %d, want %d", tt.input, got, tt.expected)
			}
		})
	}
}

func TestParseAvailability(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected int
	}{
		{
			name:     "in stock with count",
			input:    "In stock (22 available)",
			expected: 22,
		},
		{
			name:     "no number defaults to zero",
			input:    "Out of stock",
			expected: 0,
		},
		{
			name:     "empty string",
			input:    "",
			expected: 0,
		},
		{
			name:     "padded text",
			input:    "\n  In stock (3 available)\n  ",
			expected: 3,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ParseAvailability(tt.input); got != tt.expected {
				t.Errorf("ParseAvailability(%q) = %d, want %d", tt.input, got, tt.expected)
			}
		})
	}
}

const listPageHTML = `<html><body><section>
<article class="product_pod">
  <h3><a href="book-1/index.html" title="Harry Potter">Harry Potter</a></h3>
  <p class="price_color">£10.00</p>
  <p class="star-rating Five"></p>
</article>
<article class="product_pod">
  <h3><a href="book-2/index.html" title="Broken Price">Broken Price</a></h3>
  <p class="price_color">not-a-price</p>
  <p class="star-rating Two"></p>
</article>
<article class="product_pod">
  <h3><a href="book-3/index.html" title="The Hobbit">The Hobbit</a></h3>
  <p class="price_color">£20.50</p>
  <p class="star-rating Wat"></p>
</article>
<li class="next"><a href="page-2.html">next</a></li>
</section></body></html>`

func TestParseListPage(t *testing.T) {
	doc := mustDoc(t, listPageHTML)
	pageURL := mustURL(t, "http://example.test/catalogue/page-1.html")

	page := ParseListPage(doc, pageURL)

	if len(page.Items) != 2 {
		t.Fatalf("items = %d, want 2 (skipped: %v)", len(page.Items), page.Skipped)
	}
	if len(page.Skipped) != 1 {
		t.Fatalf("skipped = %d, want 1", len(page.Skipped))
	}

	first := page.Items[0]
	if first.Title != "Harry Potter" {
		t.Errorf("title = %q, want %q", first.Title, "Harry Potter")
	}
	if first.Price != 10.00 {
		t.Errorf("price = %v, want 10.00", first.Price)
	}
	if first.Rating != 5 {
		t.Errorf("rating = %d, want 5", first.Rating)
	}
	if first.URL != "http://example.test/catalogue/book-1/index.html" {
		t.Errorf("url = %q", first.URL)
	}

	// Unrecognized rating labels map to the 0 sentinel rather than
	// failing the item.
	if page.Items[1].Rating != 0 {
		t.Errorf("unknown rating = %d, want 0", page.Items[1].Rating)
	}

	if page.NextURL != "http://example.test/catalogue/page-2.html" {
		t.Errorf("next = %q", page.NextURL)
	}
}

func TestParseListPageLastPage(t *testing.T) {
	doc := mustDoc(t, `<html><body>
<article class="product_pod">
  <h3><a href="book-1/index.html" title="Only Book"></a></h3>
  <p class="price_color">£5.00</p>
  <p class="star-rating One"></p>
</article>
</body></html>`)

	page := ParseListPage(doc, mustURL(t, "http://example.test/catalogue/page-50.html"))
	if page.NextURL != "" {
		t.Errorf("next = %q, want empty on final page", page.NextURL)
	}
	if len(page.Items) != 1 {
		t.Fatalf("items = %d, want 1", len(page.Items))
	}
}

func TestParseListPageEmpty(t *testing.T) {
	page := ParseListPage(mustDoc(t, "<html><body></body></html>"), mustURL(t, "http://example.test/"))
	if len(page.Items) != 0 || len(page.Skipped) != 0 || page.NextURL != "" {
		t.Fatalf("empty page should yield nothing, got %+v", page)
	}
}

const detailPageHTML = `<html><body>
<ul class="breadcrumb">
  <li><a href="../../index.html">Home</a></li>
  <li><a href="../category/books_1/index.html">Books</a></li>
  <li><a href="../category/books/fiction_10/index.html">Fiction</a></li>
  <li class="active">Harry Potter</li>
</ul>
<div id="product_gallery">
  <div class="item active"><img src="../../media/cache/ab/cd/harry.jpg"/></div>
</div>
<p class="instock availability"><i class="icon-ok"></i> In stock (19 available)</p>
</body></html>`

func TestParseDetailPage(t *testing.T) {
	doc := mustDoc(t, detailPageHTML)
	pageURL := mustURL(t, "http://example.test/catalogue/harry-potter_1/index.html")

	detail, err := ParseDetailPage(doc, pageURL)
	if err != nil {
		t.Fatalf("ParseDetailPage: %v", err)
	}

	if detail.Category != "Fiction" {
		t.Errorf("category = %q, want %q", detail.Category, "Fiction")
	}
	if detail.ImageURL != "http://example.test/media/cache/ab/cd/harry.jpg" {
		t.Errorf("image = %q", detail.ImageURL)
	}
	if detail.Availability != 19 {
		t.Errorf("availability = %d, want 19", detail.Availability)
	}
}

func TestParseDetailPageMissingBreadcrumb(t *testing.T) {
	doc := mustDoc(t, `<html><body>
<div class="item active"><img src="x.jpg"/></div>
<p class="instock availability">In stock</p>
</body></html>`)

	_, err := ParseDetailPage(doc, mustURL(t, "http://example.test/catalogue/x/index.html"))
	if err == nil {
		t.Fatal("expected error for missing breadcrumb")
	}
	var parseErr ParseError
	if !errors.As(err, &parseErr) {
		t.Fatalf("error %v is not a ParseError", err)
	}
}

func TestParseDetailPageNoStockNumber(t *testing.T) {
	doc := mustDoc(t, `<html><body>
<ul class="breadcrumb">
  <li><a>Home</a></li><li><a>Books</a></li><li><a>Poetry</a></li><li class="active">X</li>
</ul>
<div class="item active"><img src="x.jpg"/></div>
<p class="instock availability">In stock</p>
</body></html>`)

	detail, err := ParseDetailPage(doc, mustURL(t, "http://example.test/catalogue/x/index.html"))
	if err != nil {
		t.Fatalf("ParseDetailPage: %v", err)
	}
	if detail.Availability != 0 {
		t.Errorf("availability = %d, want 0 when no count present", detail.Availability)
	}
}
