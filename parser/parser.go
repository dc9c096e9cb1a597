// Package parser holds the extraction rules for catalog list and detail
// pages. Everything here is a pure function over a parsed document so the
// rules can be tested without a collector.
package parser

import (
	"fmt"
	"net/url"
	"regexp"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// ParseError indicates an expected structure was absent or malformed.
type ParseError struct {
	Field string
	Err   error
}

func (e ParseError) Error() string {
	return fmt.Sprintf("parse %s: %v", e.Field, e.Err)
}

func (e ParseError) Unwrap() error {
	return e.Err
}

// ListItem is a partial record extracted from a list page. Category, image
// and availability are filled by the detail page.
type ListItem struct {
	Title  string
	Price  float64
	Rating int
	URL    string // absolute detail page URL
}

// ListPage is the result of parsing one catalog page.
type ListPage struct {
	Items   []ListItem
	NextURL string // absolute, empty on the final page
	Skipped []error
}

var digitsRe = regexp.MustCompile(`\d+`)

// ParseListPage extracts the item summaries and the next-page link from a
// catalog page. Items that fail to parse are reported in Skipped and do not
// abort the page; a page with zero items is valid and ends pagination.
func ParseListPage(doc *goquery.Document, pageURL *url.URL) *ListPage {
	page := &ListPage{}

	doc.Find("article.product_pod").Each(func(i int, sel *goquery.Selection) {
		item, err := parseListItem(sel, pageURL)
		if err != nil {
			page.Skipped = append(page.Skipped, fmt.Errorf("item %d: %w", i, err))
			return
		}
		page.Items = append(page.Items, *item)
	})

	if href, ok := doc.Find("li.next a").Attr("href"); ok {
		page.NextURL = absoluteURL(pageURL, href)
	}

	return page
}

func parseListItem(sel *goquery.Selection, pageURL *url.URL) (*ListItem, error) {
	link := sel.Find("h3 a")

	title := strings.TrimSpace(link.AttrOr("title", ""))
	if title == "" {
		title = strings.TrimSpace(link.Text())
	}
	if title == "" {
		return nil, ParseError{Field: "title", Err: fmt.Errorf("missing")}
	}

	href, ok := link.Attr("href")
	if !ok || strings.TrimSpace(href) == "" {
		return nil, ParseError{Field: "url", Err: fmt.Errorf("missing detail link for %q", title)}
	}

	price, err := ParsePrice(sel.Find("p.price_color").Text())
	if err != nil {
		return nil, ParseError{Field: "price", Err: fmt.Errorf("%q: %w", title, err)}
	}

	return &ListItem{
		Title:  title,
		Price:  price,
		Rating: RatingToNumeric(ratingLabel(sel)),
		URL:    absoluteURL(pageURL, href),
	}, nil
}

// Detail carries the fields only present on a book's own page.
type Detail struct {
	Category     string
	ImageURL     string
	Availability int
}

// ParseDetailPage extracts category, image and stock count from a book page.
func ParseDetailPage(doc *goquery.Document, pageURL *url.URL) (*Detail, error) {
	// The category is the immediate parent of the leaf breadcrumb:
	// Home / Books / <category> / <title>.
	category := strings.TrimSpace(doc.Find("ul.breadcrumb li").Eq(2).Find("a").Text())
	if category == "" {
		return nil, ParseError{Field: "category", Err: fmt.Errorf("breadcrumb segment missing")}
	}

	src, ok := doc.Find("div.item.active img").Attr("src")
	if !ok {
		src, ok = doc.Find("#product_gallery img").Attr("src")
	}
	if !ok || strings.TrimSpace(src) == "" {
		return nil, ParseError{Field: "image", Err: fmt.Errorf("image source missing")}
	}

	stock := doc.Find("p.instock.availability").Text()
	if strings.TrimSpace(stock) == "" {
		stock = doc.Find("p.availability").Text()
	}

	return &Detail{
		Category:     category,
		ImageURL:     absoluteURL(pageURL, src),
		Availability: ParseAvailability(stock),
	}, nil
}

// ParsePrice strips currency decoration and parses a non-negative amount.
func ParsePrice(text string) (float64, error) {
	cleaned := strings.TrimSpace(text)
	cleaned = strings.ReplaceAll(cleaned, "£", "")
	cleaned = strings.ReplaceAll(cleaned, "Â", "")
	cleaned = strings.TrimSpace(cleaned)
	if cleaned == "" {
		return 0, fmt.Errorf("empty price")
	}

	price, err := strconv.ParseFloat(cleaned, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid price %q", text)
	}
	if price < 0 {
		return 0, fmt.Errorf("negative price %q", text)
	}
	return price, nil
}

// ParseAvailability pulls the stock count out of a free-text status string
// such as "In stock (22 available)". No number means zero in stock.
func ParseAvailability(text string) int {
	match := digitsRe.FindString(text)
	if match == "" {
		return 0
	}
	n, err := strconv.Atoi(match)
	if err != nil {
		return 0
	}
	return n
}

// RatingToNumeric converts the textual rating to a numeric scale.
// Unrecognized labels map to 0 ("no rating").
func RatingToNumeric(rating string) int {
	switch strings.TrimSpace(rating) {
	case "One":
		return 1
	case "Two":
		return 2
	case "Three":
		return 3
	case "Four":
		return 4
	case "Five":
		return 5
	default:
		return 0
	}
}

// ratingLabel reads the second class of the star-rating element, e.g.
// "star-rating Three" -> "Three".
func ratingLabel(sel *goquery.Selection) string {
	class := sel.Find("p.star-rating").AttrOr("class", "")
	parts := strings.Fields(class)
	if len(parts) < 2 {
		return ""
	}
	return parts[1]
}

func absoluteURL(base *url.URL, ref string) string {
	if base == nil {
		return ref
	}
	parsed, err := url.Parse(strings.TrimSpace(ref))
	if err != nil {
		return ""
	}
	return base.ResolveReference(parsed).String()
}
