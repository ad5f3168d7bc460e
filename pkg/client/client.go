// Package client provides the tutti.ch listing search client: anonymous
// session bootstrap, page requests against the GraphQL query API, and the
// all-or-nothing retrieval of a query's full result set.
package client

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"

	"github.com/Sternrassler/tutti-client/pkg/history"
	"github.com/Sternrassler/tutti-client/pkg/listing"
	"github.com/Sternrassler/tutti-client/pkg/logging"
	"github.com/Sternrassler/tutti-client/pkg/pagination"
)

// Prometheus metrics for client operations.
var (
	requestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "tutti_requests_total",
		Help: "Total tutti requests by operation and status",
	}, []string{"operation", "status"})

	requestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "tutti_request_duration_seconds",
		Help:    "tutti request duration in seconds by operation",
		Buckets: []float64{0.1, 0.5, 1, 2, 5, 10},
	}, []string{"operation"})

	errorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "tutti_errors_total",
		Help: "Total failed retrievals by error class",
	}, []string{"class"})

	retrievalsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "tutti_retrievals_total",
		Help: "Total retrieval calls by outcome",
	}, []string{"outcome"})
)

// DefaultBaseURL is the marketplace origin.
const DefaultBaseURL = "https://www.tutti.ch"

// SearchRecorder receives a summary of every retrieval call.
type SearchRecorder interface {
	Record(ctx context.Context, entry history.Entry) error
}

// Client runs retrieval calls. It holds no session state of its own; every
// call bootstraps a fresh Session.
type Client struct {
	baseURL *url.URL
	config  Config
	logger  zerolog.Logger
}

// Config holds the client configuration.
type Config struct {
	// BaseURL is the marketplace origin (tests point it at a mock server).
	BaseURL string

	// HTTPTimeout bounds the session handshake. Page requests are bounded only
	// by pagination.Config.Timeout.
	HTTPTimeout time.Duration

	// Transport overrides the HTTP transport (nil uses http.DefaultTransport).
	Transport http.RoundTripper

	// Fingerprinter supplies per-request identifiers (nil draws random ones).
	Fingerprinter Fingerprinter

	// History, if set, records each retrieval. Recording failures are logged
	// and never fail the retrieval.
	History SearchRecorder

	// Logger overrides the component logger.
	Logger *zerolog.Logger
}

// DefaultConfig returns a configuration for the live marketplace.
func DefaultConfig() Config {
	return Config{
		BaseURL:     DefaultBaseURL,
		HTTPTimeout: 30 * time.Second,
	}
}

// New creates a new tutti client.
func New(cfg Config) (*Client, error) {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}

	base, err := url.Parse(cfg.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse base url: %w", err)
	}
	if base.Scheme != "http" && base.Scheme != "https" {
		return nil, fmt.Errorf("base url must be http or https (got %q)", cfg.BaseURL)
	}
	if base.Host == "" {
		return nil, fmt.Errorf("base url must have a host (got %q)", cfg.BaseURL)
	}

	if cfg.HTTPTimeout < 0 {
		return nil, fmt.Errorf("http_timeout must be >= 0 (got %s)", cfg.HTTPTimeout)
	}
	if cfg.Fingerprinter == nil {
		cfg.Fingerprinter = RandomFingerprinter{}
	}

	logger := logging.NewLogger(logging.ComponentClient)
	if cfg.Logger != nil {
		logger = *cfg.Logger
	}

	return &Client{
		baseURL: base,
		config:  cfg,
		logger:  logger,
	}, nil
}

// NewSession creates an un-bootstrapped Session owned by the caller.
func (c *Client) NewSession() (*Session, error) {
	return newSession(c.baseURL, c.config.Transport, c.config.HTTPTimeout, c.config.Fingerprinter, c.logger)
}

// Fetch retrieves every listing for query with DefaultConfig limits.
func (c *Client) Fetch(ctx context.Context, query string) ([]listing.Listing, error) {
	return c.FetchListings(ctx, query, pagination.DefaultConfig())
}

// FetchListings retrieves the complete, ordered listing set for query.
//
// The call bootstraps its own session, fetches page 0, then fetches the
// remaining pages (capped at cfg.MaxPages) concurrently. It returns either
// every listing in page order or a single *listing.Error; never both.
func (c *Client) FetchListings(ctx context.Context, query string, cfg pagination.Config) ([]listing.Listing, error) {
	startTime := time.Now()

	listings, err := c.fetchListings(ctx, query, cfg)

	entry := history.Entry{
		Query:     query,
		Listings:  len(listings),
		Duration:  time.Since(startTime),
		Timestamp: startTime,
	}
	if err != nil {
		class := listing.ClassOf(err)
		entry.ErrorClass = string(class)
		errorsTotal.WithLabelValues(string(class)).Inc()
		retrievalsTotal.WithLabelValues("failed").Inc()

		c.logger.Warn().
			Err(err).
			Str("query", query).
			Str("error_class", string(class)).
			Dur("duration", entry.Duration).
			Msg("Retrieval failed")
	} else {
		retrievalsTotal.WithLabelValues("succeeded").Inc()

		c.logger.Info().
			Str("query", query).
			Int("listings", len(listings)).
			Dur("duration", entry.Duration).
			Msg("Retrieval succeeded")
	}

	if c.config.History != nil {
		if recErr := c.config.History.Record(ctx, entry); recErr != nil {
			c.logger.Warn().Err(recErr).Str("query", query).Msg("Failed to record search history")
		}
	}

	return listings, err
}

func (c *Client) fetchListings(ctx context.Context, query string, cfg pagination.Config) ([]listing.Listing, error) {
	session, err := c.NewSession()
	if err != nil {
		return nil, listing.NewRequestError("create session", err)
	}

	if err := session.Bootstrap(ctx); err != nil {
		return nil, err
	}

	listings, err := pagination.NewBatchFetcher(session, cfg).FetchAll(ctx, query)
	if err != nil {
		return nil, err
	}
	return listings, nil
}

// Close releases idle connections held by the configured transport.
func (c *Client) Close() error {
	if t, ok := c.config.Transport.(interface{ CloseIdleConnections() }); ok {
		t.CloseIdleConnections()
	}
	return nil
}
