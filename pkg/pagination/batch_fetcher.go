// Package pagination provides parallel batch fetching of a query's result pages
package pagination

import (
	"context"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/Sternrassler/tutti-client/pkg/listing"
	"github.com/Sternrassler/tutti-client/pkg/logging"
)

// Prometheus metrics for batch fetching.
var (
	pagesFetchedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "tutti_pages_fetched_total",
		Help: "Total page fetches by result (ok, or the error class)",
	}, []string{"result"})

	pageFetchDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "tutti_page_fetch_duration_seconds",
		Help:    "Duration of a single page fetch in seconds",
		Buckets: []float64{0.1, 0.25, 0.5, 1, 2, 5, 10, 30},
	})

	batchPages = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "tutti_batch_pages",
		Help:    "Number of pages attempted per batch",
		Buckets: []float64{1, 2, 3, 5, 10, 20, 50},
	})
)

// Config holds batch fetcher configuration
type Config struct {
	// MaxPages caps the number of pages fetched regardless of the reported total.
	// Zero or negative means unbounded.
	MaxPages int
	// Timeout per page fetch
	Timeout time.Duration
}

// DefaultTimeout is used when Config.Timeout is not positive.
const DefaultTimeout = 60 * time.Second

// DefaultConfig returns the zero-config behaviour: every page, generous timeout.
func DefaultConfig() Config {
	return Config{
		MaxPages: 0,
		Timeout:  DefaultTimeout,
	}
}

// PageFetcher fetches the page of query starting at offset.
type PageFetcher interface {
	FetchPage(ctx context.Context, query string, offset int) (*listing.Page, error)
}

// PageFetcherFunc adapts a function to PageFetcher.
type PageFetcherFunc func(ctx context.Context, query string, offset int) (*listing.Page, error)

// FetchPage calls f.
func (f PageFetcherFunc) FetchPage(ctx context.Context, query string, offset int) (*listing.Page, error) {
	return f(ctx, query, offset)
}

// BatchFetcher fetches every page of a query and aggregates them in page order.
type BatchFetcher struct {
	fetcher PageFetcher
	config  Config
	logger  zerolog.Logger
}

// NewBatchFetcher creates a new batch fetcher
func NewBatchFetcher(fetcher PageFetcher, config Config) *BatchFetcher {
	if config.Timeout <= 0 {
		config.Timeout = DefaultTimeout
	}

	return &BatchFetcher{
		fetcher: fetcher,
		config:  config,
		logger:  logging.NewLogger(logging.ComponentPagination),
	}
}

// pageSlot holds the outcome of one launched page task.
type pageSlot struct {
	listings []listing.Listing
	err      error
}

// FetchAll fetches page 0 to learn the total count, then fetches the remaining
// pages concurrently and returns all listings in ascending page order.
//
// Failure is all-or-nothing: if any page fails the error of the lowest failed
// page index is returned together with a nil slice. Siblings of a failed page
// are not cancelled; they finish or time out on their own and are discarded.
func (bf *BatchFetcher) FetchAll(ctx context.Context, query string) ([]listing.Listing, error) {
	start := time.Now()

	// Fetch first page to get total count
	first, err := bf.fetchPage(ctx, query, 0)
	if err != nil {
		bf.logger.Warn().
			Err(err).
			Str("query", query).
			Msg("First page fetch failed")
		return nil, err
	}

	totalPages := listing.PageCount(first.TotalCount, bf.config.MaxPages)
	batchPages.Observe(float64(max(totalPages, 1)))

	bf.logger.Info().
		Str("query", query).
		Int("total_count", first.TotalCount).
		Int("total_pages", totalPages).
		Msg("Starting parallel page fetch")

	// Single page optimization
	if totalPages <= 1 {
		bf.logger.Info().
			Str("query", query).
			Int("pages", 1).
			Int("listings", len(first.Listings)).
			Dur("duration", time.Since(start)).
			Msg("Fetch complete (single page)")
		return first.Listings, nil
	}

	// Slot i holds page i; slot 0 is already filled.
	slots := make([]pageSlot, totalPages)
	slots[0] = pageSlot{listings: first.Listings}

	var g errgroup.Group
	for page := 1; page < totalPages; page++ {
		offset := page * listing.PageSize
		g.Go(func() error {
			result, err := bf.fetchPage(ctx, query, offset)
			if err != nil {
				bf.logger.Warn().
					Err(err).
					Int("page", page).
					Int("offset", offset).
					Msg("Page fetch failed")
				slots[page] = pageSlot{err: err}
				return err
			}
			slots[page] = pageSlot{listings: result.Listings}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		// Report the lowest-indexed failure so the outcome does not depend on timing.
		for page, slot := range slots {
			if slot.err != nil {
				bf.logger.Warn().
					Err(slot.err).
					Int("failed_page", page).
					Int("total_pages", totalPages).
					Msg("Discarding results after page failure")
				return nil, slot.err
			}
		}
		return nil, err
	}

	total := 0
	for _, slot := range slots {
		total += len(slot.listings)
	}
	all := make([]listing.Listing, 0, total)
	for _, slot := range slots {
		all = append(all, slot.listings...)
	}

	bf.logger.Info().
		Str("query", query).
		Int("pages", totalPages).
		Int("listings", len(all)).
		Dur("duration", time.Since(start)).
		Msg("Fetch complete")

	return all, nil
}

// fetchPage runs one page fetch bounded by the configured timeout. The fetch
// runs in its own goroutine so a fetcher that ignores ctx still yields a
// timeout at the deadline; its late result is dropped.
func (bf *BatchFetcher) fetchPage(ctx context.Context, query string, offset int) (*listing.Page, error) {
	pageCtx, cancel := context.WithTimeout(ctx, bf.config.Timeout)
	defer cancel()

	type outcome struct {
		page *listing.Page
		err  error
	}
	done := make(chan outcome, 1)

	start := time.Now()
	go func() {
		page, err := bf.fetcher.FetchPage(pageCtx, query, offset)
		done <- outcome{page: page, err: err}
	}()

	select {
	case o := <-done:
		pageFetchDuration.Observe(time.Since(start).Seconds())
		if o.err != nil {
			return nil, bf.fail(pageCtx, offset, o.err)
		}
		if o.page == nil {
			return nil, bf.fail(pageCtx, offset, listing.NewParseError("no page returned", nil))
		}
		pagesFetchedTotal.WithLabelValues("ok").Inc()
		return o.page, nil
	case <-pageCtx.Done():
		pageFetchDuration.Observe(time.Since(start).Seconds())
		return nil, bf.fail(pageCtx, offset, pageCtx.Err())
	}
}

// fail maps err onto the taxonomy and counts it. Errors the fetcher already
// classified pass through; an expired page deadline is a timeout.
func (bf *BatchFetcher) fail(pageCtx context.Context, offset int, err error) *listing.Error {
	var classified *listing.Error
	switch {
	case listing.ClassOf(err) != "":
		classified = listing.Classify(err)
	case pageCtx.Err() == context.DeadlineExceeded:
		classified = listing.NewTimeoutError(fmt.Sprintf("page at offset %d exceeded %s", offset, bf.config.Timeout))
	default:
		classified = listing.Classify(err)
	}
	pagesFetchedTotal.WithLabelValues(string(classified.Class)).Inc()
	return classified
}
