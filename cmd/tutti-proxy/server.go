package main

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"github.com/Sternrassler/tutti-client/pkg/history"
	"github.com/Sternrassler/tutti-client/pkg/listing"
	"github.com/Sternrassler/tutti-client/pkg/logging"
	"github.com/Sternrassler/tutti-client/pkg/metrics"
	"github.com/Sternrassler/tutti-client/pkg/pagination"
)

// Searcher runs one retrieval call. *client.Client satisfies it.
type Searcher interface {
	FetchListings(ctx context.Context, query string, cfg pagination.Config) ([]listing.Listing, error)
}

// HistoryReader lists recent searches. *history.Store satisfies it.
type HistoryReader interface {
	Recent(ctx context.Context, n int) ([]history.Entry, error)
}

// Server wires HTTP handlers to the tutti client.
type Server struct {
	router   chi.Router
	searcher Searcher
	history  HistoryReader
	paging   pagination.Config
	logger   zerolog.Logger
}

// NewServer constructs a Server with middleware and routes. hist may be nil.
func NewServer(searcher Searcher, hist HistoryReader, paging pagination.Config) *Server {
	s := &Server{
		searcher: searcher,
		history:  hist,
		paging:   paging,
		logger:   logging.NewLogger(logging.ComponentProxy),
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(s.accessLog)

	r.Get("/health", s.health)
	r.Method(http.MethodGet, "/metrics", metrics.Handler())
	r.Get("/search", s.search)
	r.Get("/stats", s.stats)
	r.Get("/history", s.recent)

	s.router = r
	return s
}

// Handler returns the Router for use with http.Server.
func (s *Server) Handler() http.Handler {
	return s.router
}

type listingView struct {
	listing.Listing
	Price  *float64 `json:"price"`
	WebURL string   `json:"web_url"`
}

// searchResponse carries the sorted listings. FocusIndex is the position of
// the listing named by ?focus= (-1 if absent) and is omitted without it.
type searchResponse struct {
	Query      string        `json:"query"`
	Sort       string        `json:"sort"`
	NextSort   string        `json:"next_sort"`
	Count      int           `json:"count"`
	FocusIndex *int          `json:"focus_index,omitempty"`
	Listings   []listingView `json:"listings"`
}

type statsResponse struct {
	Query string             `json:"query"`
	Count int                `json:"count"`
	Stats listing.PriceStats `json:"stats"`
}

type errorResponse struct {
	Error string `json:"error"`
	Class string `json:"class,omitempty"`
}

func (s *Server) health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) search(w http.ResponseWriter, r *http.Request) {
	query, paging, ok := s.searchParams(w, r)
	if !ok {
		return
	}
	mode := listing.ParseSortMode(r.URL.Query().Get("sort"))

	listings, err := s.searcher.FetchListings(r.Context(), query, paging)
	if err != nil {
		s.writeRetrievalError(w, query, err)
		return
	}

	sorted := listing.Sorted(listings, mode)
	views := make([]listingView, len(sorted))
	for i, l := range sorted {
		views[i] = listingView{Listing: l, WebURL: l.WebURL()}
		if p, ok := l.Price(); ok {
			views[i].Price = &p
		}
	}

	resp := searchResponse{
		Query:    query,
		Sort:     string(mode),
		NextSort: string(mode.Next()),
		Count:    len(views),
		Listings: views,
	}
	if focus := r.URL.Query().Get("focus"); focus != "" {
		idx := listing.IndexOf(sorted, focus)
		resp.FocusIndex = &idx
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) stats(w http.ResponseWriter, r *http.Request) {
	query, paging, ok := s.searchParams(w, r)
	if !ok {
		return
	}

	listings, err := s.searcher.FetchListings(r.Context(), query, paging)
	if err != nil {
		s.writeRetrievalError(w, query, err)
		return
	}

	writeJSON(w, http.StatusOK, statsResponse{
		Query: query,
		Count: len(listings),
		Stats: listing.ComputePriceStats(listings),
	})
}

func (s *Server) recent(w http.ResponseWriter, r *http.Request) {
	if s.history == nil {
		writeError(w, http.StatusServiceUnavailable, "search history disabled")
		return
	}

	n := 20
	if raw := r.URL.Query().Get("n"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			writeError(w, http.StatusBadRequest, "n must be a positive integer")
			return
		}
		n = parsed
	}

	entries, err := s.history.Recent(r.Context(), n)
	if err != nil {
		s.logger.Error().Err(err).Msg("Failed to read search history")
		writeError(w, http.StatusInternalServerError, "history unavailable")
		return
	}
	if entries == nil {
		entries = []history.Entry{}
	}
	writeJSON(w, http.StatusOK, entries)
}

// searchParams reads q and max_pages, writing a 400 and returning false on bad input.
func (s *Server) searchParams(w http.ResponseWriter, r *http.Request) (string, pagination.Config, bool) {
	paging := s.paging
	query := strings.TrimSpace(r.URL.Query().Get("q"))
	if query == "" {
		writeError(w, http.StatusBadRequest, "missing query parameter q")
		return "", paging, false
	}
	if raw := r.URL.Query().Get("max_pages"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			writeError(w, http.StatusBadRequest, "max_pages must be a non-negative integer")
			return "", paging, false
		}
		paging.MaxPages = n
	}
	return query, paging, true
}

func (s *Server) writeRetrievalError(w http.ResponseWriter, query string, err error) {
	class := listing.ClassOf(err)
	status := statusForClass(class)
	s.logger.Warn().
		Err(err).
		Str("query", query).
		Str("error_class", string(class)).
		Int("status", status).
		Msg("Search failed")
	writeJSON(w, status, errorResponse{Error: err.Error(), Class: string(class)})
}

// statusForClass maps an error class onto the proxy's HTTP status.
func statusForClass(class listing.ErrorClass) int {
	switch class {
	case listing.ErrorClassTimeout:
		return http.StatusGatewayTimeout
	case listing.ErrorClassCsrfToken, listing.ErrorClassRequest, listing.ErrorClassParse:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) accessLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		s.logger.Debug().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", ww.Status()).
			Str("request_id", middleware.GetReqID(r.Context())).
			Dur("duration", time.Since(start)).
			Msg("Request handled")
	})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil && !errors.Is(err, http.ErrHandlerTimeout) {
		logger := logging.NewLogger(logging.ComponentProxy)
		logger.Error().Err(err).Msg("write JSON failed")
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}
