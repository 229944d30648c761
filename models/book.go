// Package models defines data structures for the scraper.
package models

import (
	"strconv"
	"time"
)

// Book represents one catalog item extracted from a listing page.
//
// Title is the only required field; an item whose title cannot be read is
// never materialized. Price and Rating are nil when the corresponding
// markup is missing or unparsable, Availability and URL are empty in the
// same cases. Field failures are independent of each other.
type Book struct {
	Title        string   `json:"title"`
	Price        *float64 `json:"price"`
	Rating       *int     `json:"rating"`
	Availability string   `json:"availability,omitempty"`
	URL          string   `json:"url,omitempty"`
}

// PriceString renders the price for delimited output, empty when unset.
func (b *Book) PriceString() string {
	if b.Price == nil {
		return ""
	}
	return strconv.FormatFloat(*b.Price, 'f', -1, 64)
}

// RatingString renders the rating for delimited output, empty when unset.
func (b *Book) RatingString() string {
	if b.Rating == nil {
		return ""
	}
	return strconv.Itoa(*b.Rating)
}

// Result holds the outcome of one crawl. Books preserve page order and
// inter-page order. The slice is owned by the caller; the scraper never
// retains it across runs.
type Result struct {
	Books        []*Book
	StartTime    time.Time
	EndTime      time.Time
	PageCount    int
	RequestCount int
	ErrorCount   int
	FailedURLs   []string
	ErrorsByType map[string]int
}
