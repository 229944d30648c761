package pipeline

import (
	"fmt"

	lru "github.com/hashicorp/golang-lru/v2"

	"bookscraper/models"
)

// Deduper filters records whose URL was already seen, with bounded memory.
// Records without a URL carry no identity and always pass through. The
// default configuration leaves dedupe off; it exists for catalogs that
// repeat entries across listing pages.
type Deduper struct {
	seen *lru.Cache[string, struct{}]
}

// NewDeduper builds a deduper tracking at most maxSize URLs.
func NewDeduper(maxSize int) (*Deduper, error) {
	seen, err := lru.New[string, struct{}](maxSize)
	if err != nil {
		return nil, fmt.Errorf("create dedupe cache: %w", err)
	}
	return &Deduper{seen: seen}, nil
}

// Filter returns the records not seen before, preserving input order.
func (d *Deduper) Filter(books []*models.Book) []*models.Book {
	out := make([]*models.Book, 0, len(books))
	for _, book := range books {
		if book == nil {
			continue
		}
		if book.URL == "" {
			out = append(out, book)
			continue
		}
		if _, dup := d.seen.Get(book.URL); dup {
			continue
		}
		d.seen.Add(book.URL, struct{}{})
		out = append(out, book)
	}
	return out
}
