package pipeline

import (
	"strconv"
	"testing"

	"bookscraper/models"
)

func TestDeduperFiltersRepeatedURLs(t *testing.T) {
	d, err := NewDeduper(100)
	if err != nil {
		t.Fatalf("new deduper: %v", err)
	}

	first := sampleBook(1)
	second := sampleBook(2)
	repeat := sampleBook(1)

	out := d.Filter([]*models.Book{first, second, repeat})
	if len(out) != 2 {
		t.Fatalf("records = %d, want 2", len(out))
	}
	if out[0] != first || out[1] != second {
		t.Fatalf("dedupe must preserve input order")
	}

	// Duplicates are tracked across calls too.
	if out := d.Filter([]*models.Book{sampleBook(2), sampleBook(3)}); len(out) != 1 || out[0].Title != "Test Book 3" {
		t.Fatalf("expected only the unseen record, got %d", len(out))
	}
}

func TestDeduperKeepsRecordsWithoutURL(t *testing.T) {
	d, err := NewDeduper(10)
	if err != nil {
		t.Fatalf("new deduper: %v", err)
	}

	books := []*models.Book{
		{Title: "No Link A"},
		{Title: "No Link B"},
	}
	if out := d.Filter(books); len(out) != 2 {
		t.Fatalf("records = %d, want 2 (no URL means no identity)", len(out))
	}
}

func TestDeduperBoundedMemory(t *testing.T) {
	d, err := NewDeduper(5)
	if err != nil {
		t.Fatalf("new deduper: %v", err)
	}

	var books []*models.Book
	for i := 0; i < 50; i++ {
		books = append(books, &models.Book{
			Title: "Book " + strconv.Itoa(i),
			URL:   "http://example.test/book/" + strconv.Itoa(i),
		})
	}
	if out := d.Filter(books); len(out) != 50 {
		t.Fatalf("records = %d, want all 50 distinct URLs kept", len(out))
	}
	if got := d.seen.Len(); got > 5 {
		t.Fatalf("seen cache size = %d, want <= 5", got)
	}
}
