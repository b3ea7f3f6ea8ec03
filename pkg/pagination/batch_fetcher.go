package pagination

import (
	"context"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

const (
	// DefaultPerPage is the page size used for full-list fetches, the largest
	// the API accepts.
	DefaultPerPage = 100

	// DefaultMaxConcurrency bounds pages in flight. The throttle still gates
	// every request start.
	DefaultMaxConcurrency = 10
)

var pagesFetchedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "cms_pages_fetched_total",
	Help: "Total list pages fetched by result",
}, []string{"result"})

// Config holds batch fetcher configuration.
type Config struct {
	// MaxConcurrency is the maximum number of parallel page requests
	MaxConcurrency int `yaml:"max_concurrency"`

	// PerPage is the page size requested for every page
	PerPage int `yaml:"per_page"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() Config {
	return Config{
		MaxConcurrency: DefaultMaxConcurrency,
		PerPage:        DefaultPerPage,
	}
}

// PageFetcher fetches a single page.
type PageFetcher interface {
	// FetchPage returns the items of page (1-based) and the total item count
	// of the list.
	FetchPage(ctx context.Context, page, perPage int) (items []any, total int, err error)
}

// PageFetcherFunc adapts a function to PageFetcher.
type PageFetcherFunc func(ctx context.Context, page, perPage int) ([]any, int, error)

// FetchPage calls f.
func (f PageFetcherFunc) FetchPage(ctx context.Context, page, perPage int) ([]any, int, error) {
	return f(ctx, page, perPage)
}

// BatchFetcher fetches all pages of a list.
type BatchFetcher struct {
	config Config
	logger zerolog.Logger
}

// NewBatchFetcher creates a new batch fetcher.
func NewBatchFetcher(config Config, logger zerolog.Logger) *BatchFetcher {
	if config.MaxConcurrency <= 0 {
		config.MaxConcurrency = DefaultMaxConcurrency
	}
	if config.PerPage <= 0 {
		config.PerPage = DefaultPerPage
	}

	return &BatchFetcher{
		config: config,
		logger: logger,
	}
}

// PageCount returns the number of pages needed for total items.
func PageCount(total, perPage int) int {
	if total <= 0 || perPage <= 0 {
		return 1
	}
	return (total + perPage - 1) / perPage
}

// FetchAll fetches every page and returns the items in page order.
func (bf *BatchFetcher) FetchAll(ctx context.Context, fetcher PageFetcher) ([]any, error) {
	start := time.Now()

	first, total, err := fetcher.FetchPage(ctx, 1, bf.config.PerPage)
	if err != nil {
		pagesFetchedTotal.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("fetch page 1: %w", err)
	}
	pagesFetchedTotal.WithLabelValues("success").Inc()

	pages := PageCount(total, bf.config.PerPage)
	if pages == 1 {
		return first, nil
	}

	bf.logger.Debug().
		Int("total", total).
		Int("pages", pages).
		Msg("Starting parallel page fetch")

	results := make([][]any, pages)
	results[0] = first

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(bf.config.MaxConcurrency)
	for page := 2; page <= pages; page++ {
		g.Go(func() error {
			items, _, err := fetcher.FetchPage(gctx, page, bf.config.PerPage)
			if err != nil {
				pagesFetchedTotal.WithLabelValues("error").Inc()
				return fmt.Errorf("fetch page %d/%d: %w", page, pages, err)
			}
			pagesFetchedTotal.WithLabelValues("success").Inc()
			results[page-1] = items
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		bf.logger.Warn().
			Err(err).
			Int("pages", pages).
			Msg("Page fetch failed")
		return nil, err
	}

	all := make([]any, 0, total)
	for _, items := range results {
		all = append(all, items...)
	}

	bf.logger.Debug().
		Int("pages", pages).
		Int("items", len(all)).
		Dur("duration", time.Since(start)).
		Msg("Fetch complete")

	return all, nil
}
