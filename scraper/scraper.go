// Package scraper drives the page-by-page crawl of a paginated catalog.
package scraper

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"time"

	"github.com/gocolly/colly/v2"

	"bookscraper/config"
	"bookscraper/models"
	"bookscraper/parser"
)

// Scraper crawls listing pages sequentially: fetch, extract, follow the
// next link, repeat. A fetch failure of any kind halts the crawl and the
// records accumulated so far are returned. No request is ever retried.
type Scraper struct {
	cfg     *config.Config
	Metrics *Metrics

	// transport overrides the collector's HTTP transport; used by tests.
	transport http.RoundTripper
}

// NewScraper builds a scraper instance configured from cfg.
func NewScraper(cfg *config.Config) (*Scraper, error) {
	parsed, err := url.Parse(cfg.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse base url: %w", err)
	}
	if parsed.Host == "" {
		return nil, fmt.Errorf("base url must include a host")
	}

	return &Scraper{
		cfg:     cfg,
		Metrics: NewMetrics(),
	}, nil
}

// Run crawls from the configured base URL, following next links until no
// next indicator remains, the page cap is reached, or a fetch fails. When
// the configuration requests single-page mode, pagination is skipped.
func (s *Scraper) Run(ctx context.Context) (*models.Result, error) {
	return s.run(ctx, s.cfg.BaseURL, !s.cfg.SinglePage)
}

// RunPage scrapes exactly one page and never follows pagination.
func (s *Scraper) RunPage(ctx context.Context, pageURL string) (*models.Result, error) {
	return s.run(ctx, pageURL, false)
}

// crawlState accumulates one run's output. The crawl is single-threaded,
// so plain fields suffice; the state never outlives the run that owns it.
type crawlState struct {
	books        []*models.Book
	pages        int
	requests     int
	errorCount   int
	failedURLs   []string
	errorsByType map[string]int
}

func (s *Scraper) run(ctx context.Context, startURL string, followNext bool) (*models.Result, error) {
	if ctx == nil {
		ctx = context.Background()
	}

	parsed, err := url.Parse(startURL)
	if err != nil {
		return nil, fmt.Errorf("parse start url: %w", err)
	}
	if parsed.Host == "" {
		return nil, fmt.Errorf("start url must include a host")
	}

	c := s.newCollector(parsed.Host)
	st := &crawlState{errorsByType: make(map[string]int)}

	c.OnRequest(func(r *colly.Request) {
		r.Ctx.Put("start", time.Now())
		st.requests++
		s.Metrics.IncRequest("started")
		slog.Info("fetching page", slog.String("url", r.URL.String()))
	})

	c.OnResponse(func(r *colly.Response) {
		st.pages++
		s.Metrics.IncPages()
		if start, ok := r.Request.Ctx.GetAny("start").(time.Time); ok {
			s.Metrics.ObserveDuration(time.Since(start))
		}
	})

	c.OnError(func(r *colly.Response, err error) {
		st.errorCount++
		statusCode := 0
		pageURL := ""
		if r != nil {
			statusCode = r.StatusCode
			if r.Request != nil && r.Request.URL != nil {
				pageURL = r.Request.URL.String()
			}
		}
		category := errorTypeLabel(classifyError(err, statusCode))
		st.errorsByType[category]++
		st.failedURLs = append(st.failedURLs, pageURL)
		s.Metrics.IncError(category)
		slog.Error("fetch failed, halting crawl",
			slog.String("url", pageURL),
			slog.String("category", category),
			slog.Any("error", err),
		)
	})

	c.OnHTML(parser.ItemSelector, func(e *colly.HTMLElement) {
		book := parser.ExtractBook(e.DOM, e.Request.URL)
		if book == nil {
			return
		}
		st.books = append(st.books, book)
		s.Metrics.IncItems()
	})

	c.OnHTML(parser.NextSelector, func(e *colly.HTMLElement) {
		if !followNext {
			return
		}
		if st.pages >= s.cfg.MaxPages {
			slog.Info("page cap reached", slog.Int("pages", st.pages))
			return
		}
		next := e.Request.AbsoluteURL(e.Attr("href"))
		if next == "" {
			return
		}
		if !sleepCtx(ctx, s.cfg.Delay) {
			slog.Info("crawl cancelled", slog.String("next", next))
			return
		}
		if err := c.Visit(next); err != nil {
			slog.Debug("next page visit ended", slog.String("url", next), slog.Any("error", err))
		}
	})

	start := time.Now()
	if err := c.Visit(startURL); err != nil && st.requests == 0 {
		// The visit was rejected before a request went out (forbidden
		// domain, already-visited URL); transport failures are already
		// accounted for by the error handler.
		return nil, fmt.Errorf("initial visit: %w", err)
	}

	slog.Info("crawl finished",
		slog.Int("pages", st.pages),
		slog.Int("records", len(st.books)),
		slog.Int("errors", st.errorCount),
	)

	return &models.Result{
		Books:        st.books,
		StartTime:    start,
		EndTime:      time.Now(),
		PageCount:    st.pages,
		RequestCount: st.requests,
		ErrorCount:   st.errorCount,
		FailedURLs:   st.failedURLs,
		ErrorsByType: st.errorsByType,
	}, nil
}

// newCollector builds a synchronous collector. Pagination depends on the
// next-link handler issuing the following visit, so requests stay strictly
// ordered and the one in-memory accumulator is only ever touched from the
// calling goroutine.
func (s *Scraper) newCollector(host string) *colly.Collector {
	c := colly.NewCollector(
		colly.AllowedDomains(host),
		colly.UserAgent(s.cfg.UserAgent),
	)
	c.SetRequestTimeout(s.cfg.Timeout)
	c.IgnoreRobotsTxt = true

	if s.transport != nil {
		c.WithTransport(s.transport)
		return c
	}

	c.WithTransport(&http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   s.cfg.Timeout,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		MaxIdleConns:        100,
		IdleConnTimeout:     90 * time.Second,
		TLSHandshakeTimeout: 10 * time.Second,
	})
	return c
}

// sleepCtx observes the polite inter-page delay, returning false when the
// context is cancelled first.
func sleepCtx(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}

func classifyError(err error, statusCode int) error {
	if err == nil && statusCode == 0 {
		return nil
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return ErrTimeout{Err: err}
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return ErrTimeout{Err: err}
	}
	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return ErrConnection{Err: err}
	}

	if statusCode != 0 {
		wrapped := err
		if wrapped == nil {
			wrapped = fmt.Errorf("http status %d", statusCode)
		}
		switch statusCode {
		case http.StatusForbidden:
			return ErrForbidden{Err: wrapped}
		case http.StatusNotFound:
			return ErrNotFound{Err: wrapped}
		case http.StatusTooManyRequests:
			return ErrRateLimited{Err: wrapped}
		default:
			if statusCode >= http.StatusMultipleChoices {
				return ErrHTTPStatus{Code: statusCode, Err: wrapped}
			}
		}
	}

	if err == nil {
		return nil
	}
	return err
}
