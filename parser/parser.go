// Package parser extracts catalog records from listing page markup.
package parser

import (
	"log/slog"
	"net/url"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"bookscraper/models"
)

// Selectors for the catalog listing convention used by the target site.
const (
	// ItemSelector matches one catalog entry on a listing page.
	ItemSelector = "article.product_pod"
	// NextSelector matches the pagination link to the following page.
	NextSelector = "li.next a"
)

// ratingWords maps the site's textual rating class tokens to 1..5, checked
// in ascending order. Matching is a case-insensitive substring test, so an
// unrelated class containing one of these words would match; this mirrors
// the site convention where the token is always the second class.
var ratingWords = []struct {
	word  string
	value int
}{
	{"one", 1},
	{"two", 2},
	{"three", 3},
	{"four", 4},
	{"five", 5},
}

// ParsePrice strips the currency symbol from a price cell and parses the
// remainder as a decimal amount. Returns nil when the text is empty or not
// a number. Both the pound sign and its common mojibake form are handled.
func ParsePrice(text string) *float64 {
	cleaned := strings.ReplaceAll(text, "Â£", "")
	cleaned = strings.ReplaceAll(cleaned, "£", "")
	cleaned = strings.TrimSpace(cleaned)
	if cleaned == "" {
		return nil
	}
	value, err := strconv.ParseFloat(cleaned, 64)
	if err != nil {
		return nil
	}
	return &value
}

// RatingFromClass derives the 1..5 rating from a rating indicator's class
// attribute. Returns nil when no recognized word appears.
func RatingFromClass(classAttr string) *int {
	lowered := strings.ToLower(classAttr)
	for _, entry := range ratingWords {
		if strings.Contains(lowered, entry.word) {
			value := entry.value
			return &value
		}
	}
	return nil
}

// NormalizeAvailability maps recognized availability text to exactly
// "In stock" or "Out of stock"; unrecognized text is returned trimmed.
func NormalizeAvailability(text string) string {
	trimmed := strings.TrimSpace(text)
	lowered := strings.ToLower(trimmed)
	switch {
	case strings.Contains(trimmed, "In stock") || strings.Contains(lowered, "instock"):
		return "In stock"
	case strings.Contains(trimmed, "Out of stock") || strings.Contains(lowered, "outofstock"):
		return "Out of stock"
	default:
		return trimmed
	}
}

// ExtractBook builds one record from an item container selection. Relative
// links are resolved against base, the URL of the page being parsed. An
// item without a readable title yields no record; every other field
// degrades independently to its zero value.
func ExtractBook(sel *goquery.Selection, base *url.URL) *models.Book {
	link := sel.Find("h3 a")
	title := strings.TrimSpace(link.AttrOr("title", ""))
	if title == "" {
		slog.Warn("title not found for item, skipping", slog.String("page", urlString(base)))
		return nil
	}

	book := &models.Book{Title: title}

	if priceNode := sel.Find("p.price_color"); priceNode.Length() > 0 {
		priceText := strings.TrimSpace(priceNode.First().Text())
		book.Price = ParsePrice(priceText)
		if book.Price == nil {
			slog.Warn("invalid price format",
				slog.String("title", title),
				slog.String("price", priceText),
			)
		}
	} else {
		slog.Warn("price not found", slog.String("title", title))
	}

	if ratingNode := sel.Find("p.star-rating"); ratingNode.Length() > 0 {
		book.Rating = RatingFromClass(ratingNode.First().AttrOr("class", ""))
	} else {
		slog.Warn("rating not found", slog.String("title", title))
	}

	availabilityNode := sel.Find("p.instock")
	if availabilityNode.Length() == 0 {
		availabilityNode = sel.Find("p.outofstock")
	}
	if availabilityNode.Length() > 0 {
		book.Availability = NormalizeAvailability(availabilityNode.First().Text())
	} else {
		slog.Warn("availability not found", slog.String("title", title))
	}

	if href, ok := link.Attr("href"); ok {
		book.URL = resolveURL(base, href)
	} else {
		slog.Warn("url not found", slog.String("title", title))
	}

	return book
}

// ExtractBooks extracts every successfully-titled record from a listing
// page, in page order.
func ExtractBooks(doc *goquery.Document, base *url.URL) []*models.Book {
	var books []*models.Book
	doc.Find(ItemSelector).Each(func(_ int, sel *goquery.Selection) {
		if book := ExtractBook(sel, base); book != nil {
			books = append(books, book)
		}
	})
	return books
}

// NextPageURL returns the absolute URL of the next listing page, or ""
// when the page carries no next indicator.
func NextPageURL(doc *goquery.Document, base *url.URL) string {
	href, ok := doc.Find(NextSelector).First().Attr("href")
	if !ok {
		return ""
	}
	return resolveURL(base, href)
}

func resolveURL(base *url.URL, href string) string {
	href = strings.TrimSpace(href)
	if href == "" {
		return ""
	}
	ref, err := url.Parse(href)
	if err != nil {
		slog.Warn("unparsable link", slog.String("href", href))
		return ""
	}
	if base == nil {
		return ref.String()
	}
	return base.ResolveReference(ref).String()
}

func urlString(u *url.URL) string {
	if u == nil {
		return ""
	}
	return u.String()
}
