package scraper

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/jarcoal/httpmock"

	"bookscraper/config"
)

func TestClassifyError(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		statusCode int
		expected   string
	}{
		{name: "nil", err: nil, statusCode: 0, expected: "unknown"},
		{name: "context timeout", err: context.DeadlineExceeded, statusCode: 0, expected: "timeout"},
		{name: "net timeout", err: &net.DNSError{IsTimeout: true}, statusCode: 0, expected: "timeout"},
		{name: "connection", err: &net.OpError{Op: "dial", Net: "tcp", Err: errors.New("connection refused")}, statusCode: 0, expected: "connection"},
		{name: "forbidden", err: nil, statusCode: http.StatusForbidden, expected: "forbidden"},
		{name: "not found", err: nil, statusCode: http.StatusNotFound, expected: "not_found"},
		{name: "rate limited", err: nil, statusCode: http.StatusTooManyRequests, expected: "rate_limited"},
		{name: "server error", err: nil, statusCode: http.StatusInternalServerError, expected: "http_status"},
		{name: "bad gateway", err: nil, statusCode: http.StatusBadGateway, expected: "http_status"},
		{name: "other", err: errors.New("some other error"), statusCode: 0, expected: "other"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := errorTypeLabel(classifyError(tt.err, tt.statusCode)); got != tt.expected {
				t.Fatalf("classifyError(%v, %d) = %q, want %q", tt.err, tt.statusCode, got, tt.expected)
			}
		})
	}
}

func TestScraperHTTPStatusClassification(t *testing.T) {
	tests := []struct {
		status   int
		expected string
	}{
		{status: http.StatusTooManyRequests, expected: "rate_limited"},
		{status: http.StatusForbidden, expected: "forbidden"},
		{status: http.StatusNotFound, expected: "not_found"},
		{status: http.StatusInternalServerError, expected: "http_status"},
	}

	for _, tt := range tests {
		t.Run(fmt.Sprintf("status_%d", tt.status), func(t *testing.T) {
			cfg := testConfig()

			transport := httpmock.NewMockTransport()
			responder := httpmock.NewStringResponder(tt.status, "")
			transport.RegisterResponder("GET", cfg.BaseURL, responder)
			transport.RegisterResponder("GET", strings.TrimSuffix(cfg.BaseURL, "/"), responder)

			s := newTestScraper(t, cfg, transport)

			result, err := s.Run(context.Background())
			if err != nil {
				t.Fatalf("run: %v", err)
			}
			if len(result.Books) != 0 {
				t.Fatalf("books = %d, want 0", len(result.Books))
			}
			if got := result.ErrorsByType[tt.expected]; got == 0 {
				t.Fatalf("expected %q classification for status %d, got %v", tt.expected, tt.status, result.ErrorsByType)
			}
		})
	}
}

func TestScraperFullCrawl(t *testing.T) {
	cfg := testConfig()
	cfg.MaxPages = 5

	transport := httpmock.NewMockTransport()
	registerPage(transport, cfg.BaseURL, buildCatalogPage(1, true))
	registerPage(transport, cfg.BaseURL+"page-2.html", buildCatalogPage(2, true))
	registerPage(transport, cfg.BaseURL+"page-3.html", buildCatalogPage(3, false))

	s := newTestScraper(t, cfg, transport)

	result, err := s.Run(context.Background())
	if err != nil {
		t.Fatalf("run: %v", err)
	}

	if got := len(result.Books); got != 60 {
		t.Fatalf("books = %d, want 60 (requests=%d errors=%d failed=%v)", got, result.RequestCount, result.ErrorCount, result.FailedURLs)
	}
	if result.PageCount != 3 {
		t.Fatalf("pages = %d, want 3", result.PageCount)
	}
	if result.ErrorCount != 0 {
		t.Fatalf("errors = %d, want 0", result.ErrorCount)
	}

	// Records keep page order and inter-page order.
	for i, book := range result.Books {
		want := fmt.Sprintf("Book %d", i+1)
		if book.Title != want {
			t.Fatalf("record %d title = %q, want %q", i, book.Title, want)
		}
	}

	sample := result.Books[0]
	if sample.URL != "http://example.test/catalogue/book-1/index.html" {
		t.Fatalf("url = %q, want absolute catalogue link", sample.URL)
	}
	if sample.Price == nil || *sample.Price != 1.00 {
		t.Fatalf("price = %v, want 1.00", sample.Price)
	}
	if sample.Rating == nil || *sample.Rating != 2 {
		t.Fatalf("rating = %v, want 2", sample.Rating)
	}
	if sample.Availability != "In stock" {
		t.Fatalf("availability = %q, want In stock", sample.Availability)
	}
}

func TestScraperSinglePageModeMatchesFullCrawlOnLastPage(t *testing.T) {
	cfg := testConfig()

	page := buildCatalogPage(1, false)
	transport := httpmock.NewMockTransport()
	registerPage(transport, cfg.BaseURL, page)

	full := newTestScraper(t, cfg, transport)
	fullResult, err := full.Run(context.Background())
	if err != nil {
		t.Fatalf("full run: %v", err)
	}

	single := newTestScraper(t, cfg, transport)
	singleResult, err := single.RunPage(context.Background(), cfg.BaseURL)
	if err != nil {
		t.Fatalf("single page run: %v", err)
	}

	if len(fullResult.Books) != 20 || len(singleResult.Books) != 20 {
		t.Fatalf("books full=%d single=%d, want 20 each", len(fullResult.Books), len(singleResult.Books))
	}
	for _, book := range singleResult.Books {
		if book.Title == "" || book.Price == nil || book.Rating == nil || book.URL == "" {
			t.Fatalf("expected all fields populated, got %+v", book)
		}
		if book.Availability != "In stock" && book.Availability != "Out of stock" {
			t.Fatalf("availability = %q, want normalized value", book.Availability)
		}
	}
}

func TestScraperSinglePageIgnoresNextLink(t *testing.T) {
	cfg := testConfig()

	transport := httpmock.NewMockTransport()
	registerPage(transport, cfg.BaseURL, buildCatalogPage(1, true))

	s := newTestScraper(t, cfg, transport)
	result, err := s.RunPage(context.Background(), cfg.BaseURL)
	if err != nil {
		t.Fatalf("run page: %v", err)
	}
	if len(result.Books) != 20 {
		t.Fatalf("books = %d, want 20", len(result.Books))
	}
	if result.RequestCount != 1 {
		t.Fatalf("requests = %d, want 1", result.RequestCount)
	}
}

func TestScraperRunSinglePageConfigIgnoresNextLink(t *testing.T) {
	cfg := testConfig()
	cfg.MaxPages = 10
	cfg.SinglePage = true

	transport := httpmock.NewMockTransport()
	registerPage(transport, cfg.BaseURL, buildCatalogPage(1, true))

	s := newTestScraper(t, cfg, transport)
	result, err := s.Run(context.Background())
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if len(result.Books) != 20 {
		t.Fatalf("books = %d, want 20", len(result.Books))
	}
	if result.RequestCount != 1 || result.PageCount != 1 {
		t.Fatalf("requests = %d pages = %d, want 1 each", result.RequestCount, result.PageCount)
	}
}

func TestScraperHaltsOnMissingNextIndicator(t *testing.T) {
	cfg := testConfig()

	transport := httpmock.NewMockTransport()
	registerPage(transport, cfg.BaseURL, buildCatalogPage(1, false))

	s := newTestScraper(t, cfg, transport)
	result, err := s.Run(context.Background())
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if result.RequestCount != 1 || result.PageCount != 1 {
		t.Fatalf("requests=%d pages=%d, want 1/1", result.RequestCount, result.PageCount)
	}
	if len(result.Books) != 20 {
		t.Fatalf("books = %d, want 20", len(result.Books))
	}
}

func TestScraperConnectionRefusedReturnsEmpty(t *testing.T) {
	cfg := testConfig()

	refused := &net.OpError{Op: "dial", Net: "tcp", Err: errors.New("connection refused")}
	transport := httpmock.NewMockTransport()
	transport.RegisterResponder("GET", cfg.BaseURL, httpmock.NewErrorResponder(refused))
	transport.RegisterResponder("GET", strings.TrimSuffix(cfg.BaseURL, "/"), httpmock.NewErrorResponder(refused))

	s := newTestScraper(t, cfg, transport)
	result, err := s.Run(context.Background())
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if len(result.Books) != 0 {
		t.Fatalf("books = %d, want 0", len(result.Books))
	}
	if result.ErrorsByType["connection"] == 0 {
		t.Fatalf("expected connection classification, got %v", result.ErrorsByType)
	}
	if len(result.FailedURLs) == 0 {
		t.Fatalf("expected failing URL to be recorded")
	}
}

func TestScraperKeepsRecordsWhenLaterFetchFails(t *testing.T) {
	cfg := testConfig()
	cfg.MaxPages = 5

	transport := httpmock.NewMockTransport()
	registerPage(transport, cfg.BaseURL, buildCatalogPage(1, true))
	transport.RegisterResponder("GET", cfg.BaseURL+"page-2.html", httpmock.NewStringResponder(http.StatusNotFound, ""))

	s := newTestScraper(t, cfg, transport)
	result, err := s.Run(context.Background())
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if len(result.Books) != 20 {
		t.Fatalf("books = %d, want the 20 accumulated before the failure", len(result.Books))
	}
	if result.ErrorsByType["not_found"] == 0 {
		t.Fatalf("expected not_found classification, got %v", result.ErrorsByType)
	}
	if result.PageCount != 1 {
		t.Fatalf("pages = %d, want 1", result.PageCount)
	}
}

func TestScraperRespectsPageCap(t *testing.T) {
	cfg := testConfig()
	cfg.MaxPages = 2

	transport := httpmock.NewMockTransport()
	registerPage(transport, cfg.BaseURL, buildCatalogPage(1, true))
	registerPage(transport, cfg.BaseURL+"page-2.html", buildCatalogPage(2, true))
	registerPage(transport, cfg.BaseURL+"page-3.html", buildCatalogPage(3, true))

	s := newTestScraper(t, cfg, transport)
	result, err := s.Run(context.Background())
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if result.PageCount != 2 {
		t.Fatalf("pages = %d, want 2", result.PageCount)
	}
	if len(result.Books) != 40 {
		t.Fatalf("books = %d, want 40", len(result.Books))
	}
}

func TestScraperCancelledContextStopsPagination(t *testing.T) {
	cfg := testConfig()
	cfg.MaxPages = 5
	cfg.Delay = 50 * time.Millisecond

	transport := httpmock.NewMockTransport()
	registerPage(transport, cfg.BaseURL, buildCatalogPage(1, true))
	registerPage(transport, cfg.BaseURL+"page-2.html", buildCatalogPage(2, false))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	s := newTestScraper(t, cfg, transport)
	result, err := s.Run(ctx)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if result.PageCount != 1 {
		t.Fatalf("pages = %d, want 1 (delay wait should observe cancellation)", result.PageCount)
	}
	if len(result.Books) != 20 {
		t.Fatalf("books = %d, want 20", len(result.Books))
	}
}

func testConfig() *config.Config {
	cfg := config.DefaultConfig()
	cfg.BaseURL = "http://example.test/"
	cfg.MaxPages = 1
	cfg.Delay = 0
	return cfg
}

func newTestScraper(t *testing.T, cfg *config.Config, transport http.RoundTripper) *Scraper {
	t.Helper()
	s, err := NewScraper(cfg)
	if err != nil {
		t.Fatalf("new scraper: %v", err)
	}
	s.transport = transport
	return s
}

func registerPage(transport *httpmock.MockTransport, url, body string) {
	transport.RegisterResponder("GET", url, htmlResponder(body))
	if trimmed := strings.TrimSuffix(url, "/"); trimmed != url {
		transport.RegisterResponder("GET", trimmed, htmlResponder(body))
	}
}

func htmlResponder(body string) httpmock.Responder {
	resp := httpmock.NewStringResponse(200, body)
	resp.Header.Set("Content-Type", "text/html")
	return httpmock.ResponderFromResponse(resp)
}

func buildCatalogPage(page int, hasNext bool) string {
	var builder strings.Builder
	builder.WriteString("<html><body><section class=\"products\">")

	for i := 1; i <= 20; i++ {
		id := (page-1)*20 + i
		fmt.Fprintf(&builder, "<article class=\"product_pod\">")
		fmt.Fprintf(&builder, "<h3><a href=\"catalogue/book-%d/index.html\" title=\"Book %d\">Book %d</a></h3>", id, id, id)
		fmt.Fprintf(&builder, "<p class=\"price_color\">&pound;%0.2f</p>", float64(id))
		builder.WriteString("<p class=\"star-rating Two\"></p>")
		builder.WriteString("<p class=\"instock availability\">In stock</p>")
		builder.WriteString("</article>")
	}

	if hasNext {
		next := page + 1
		fmt.Fprintf(&builder, "<li class=\"next\"><a href=\"page-%d.html\">next</a></li>", next)
	}

	builder.WriteString("</section></body></html>")
	return builder.String()
}
