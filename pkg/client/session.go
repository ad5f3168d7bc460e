package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/net/publicsuffix"

	"github.com/Sternrassler/tutti-client/pkg/listing"
)

// CsrfCookieName is the cookie the handshake must set.
const CsrfCookieName = "tutti_csrftoken"

// graphQLPath is the query endpoint relative to the marketplace origin.
const graphQLPath = "/api/v10/graphql"

// Session is the per-retrieval context: an HTTP client bound to its own cookie
// jar plus the CSRF token obtained by Bootstrap. A Session is never shared
// between retrieval calls. After Bootstrap it is safe for concurrent FetchPage
// calls; nothing mutates it afterwards.
type Session struct {
	httpClient    *http.Client
	jar           *cookiejar.Jar
	baseURL       *url.URL
	headers       http.Header
	fingerprinter Fingerprinter
	logger        zerolog.Logger

	// handshakeTimeout bounds Bootstrap. Page requests carry no client-level
	// timeout; their deadline is the caller's context.
	handshakeTimeout time.Duration

	token string
}

func newSession(baseURL *url.URL, transport http.RoundTripper, handshakeTimeout time.Duration, fp Fingerprinter, logger zerolog.Logger) (*Session, error) {
	jar, err := cookiejar.New(&cookiejar.Options{PublicSuffixList: publicsuffix.List})
	if err != nil {
		return nil, fmt.Errorf("create cookie jar: %w", err)
	}

	return &Session{
		httpClient: &http.Client{
			Jar:       jar,
			Transport: transport,
		},
		jar:              jar,
		baseURL:          baseURL,
		headers:          browserHeaders(origin(baseURL)),
		fingerprinter:    fp,
		logger:           logger,
		handshakeTimeout: handshakeTimeout,
	}, nil
}

// Token returns the CSRF token, empty before Bootstrap.
func (s *Session) Token() string {
	return s.token
}

// Bootstrap performs the anonymous handshake against the marketplace origin
// and extracts the CSRF token from the session cookies.
func (s *Session) Bootstrap(ctx context.Context) error {
	startTime := time.Now()
	defer func() {
		requestDuration.WithLabelValues("bootstrap").Observe(time.Since(startTime).Seconds())
	}()

	if s.handshakeTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.handshakeTimeout)
		defer cancel()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.baseURL.String(), nil)
	if err != nil {
		return listing.NewCsrfTokenError("create handshake request", err)
	}
	applyHeaders(req, s.headers)

	resp, err := s.httpClient.Do(req)
	if err != nil {
		requestsTotal.WithLabelValues("bootstrap", "network_error").Inc()
		s.logger.Error().Err(err).Msg("Session handshake failed")
		return listing.NewCsrfTokenError("failed to initialize session", err)
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	resp.Body.Close()
	requestsTotal.WithLabelValues("bootstrap", fmt.Sprintf("%d", resp.StatusCode)).Inc()

	for _, c := range s.jar.Cookies(s.baseURL) {
		if c.Name == CsrfCookieName && c.Value != "" {
			s.token = c.Value
			s.logger.Debug().
				Int("status", resp.StatusCode).
				Msg("Session bootstrapped")
			return nil
		}
	}

	s.logger.Warn().
		Int("status", resp.StatusCode).
		Str("cookie", CsrfCookieName).
		Msg("CSRF cookie missing after handshake")
	return listing.NewCsrfTokenError("failed to obtain CSRF token", nil)
}

// FetchPage sends one query request for the window starting at offset and
// returns the parsed page or a classified error. It implements
// pagination.PageFetcher.
func (s *Session) FetchPage(ctx context.Context, query string, offset int) (*listing.Page, error) {
	startTime := time.Now()
	defer func() {
		requestDuration.WithLabelValues("page").Observe(time.Since(startTime).Seconds())
	}()

	req, err := s.newPageRequest(ctx, query, offset)
	if err != nil {
		return nil, listing.NewRequestError("build page request", err)
	}

	s.logger.Debug().
		Str("query", query).
		Int("offset", offset).
		Str("hash", req.Header.Get(headerHash)).
		Msg("Executing page request")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		requestsTotal.WithLabelValues("page", "network_error").Inc()
		return nil, classifyTransport(ctx, offset, err)
	}
	requestsTotal.WithLabelValues("page", fmt.Sprintf("%d", resp.StatusCode)).Inc()

	body, err := readBody(resp)
	if err != nil {
		return nil, classifyTransport(ctx, offset, err)
	}

	var envelope graphQLResponse
	if err := json.Unmarshal(body, &envelope); err != nil {
		return nil, listing.NewRequestError(
			fmt.Sprintf("decode response (status %d)", resp.StatusCode), err)
	}

	if msg := envelope.serverErrors(); msg != "" {
		s.logger.Warn().
			Str("query", query).
			Int("offset", offset).
			Str("errors", msg).
			Msg("Query API returned errors")
		return nil, listing.NewParseError("API returned errors: "+msg, nil)
	}

	if envelope.Data == nil {
		return nil, listing.NewParseError("empty data in response", nil)
	}

	return envelope.Data.page(), nil
}

// newPageRequest builds the POST for one page. Fingerprint values are drawn
// fresh on every call; the token and static headers are reused.
func (s *Session) newPageRequest(ctx context.Context, query string, offset int) (*http.Request, error) {
	payload, err := json.Marshal(newSearchRequest(query, offset))
	if err != nil {
		return nil, fmt.Errorf("marshal payload: %w", err)
	}

	endpoint := s.baseURL.JoinPath(graphQLPath)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint.String(), bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	fp := s.fingerprinter.Next()

	applyHeaders(req, s.headers)
	req.Header.Set("Referer", s.refererURL(fp.RefererHash, query))
	req.Header.Set(headerHash, fp.Hash)
	req.Header.Set(headerSource, fp.sourceHeader())
	req.Header.Set(headerClientIdentifier, fp.clientIdentifier())
	req.Header.Set(headerCsrfToken, s.token)
	req.Header.Set("Content-Type", "application/json")

	return req, nil
}

// refererURL mimics the search page the browser would be on.
func (s *Session) refererURL(hash, query string) string {
	return fmt.Sprintf("%s/de/q/suche/%s?sorting=newest&page=1&query=%s",
		origin(s.baseURL), hash, encodeQuery(query))
}

// encodeQuery percent-encodes everything but unreserved characters, with
// spaces as %20.
func encodeQuery(q string) string {
	return strings.ReplaceAll(url.QueryEscape(q), "+", "%20")
}

func origin(u *url.URL) string {
	return u.Scheme + "://" + u.Host
}

// classifyTransport maps a failure while sending or reading a page request.
func classifyTransport(ctx context.Context, offset int, err error) error {
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return listing.NewTimeoutError(fmt.Sprintf("page at offset %d: %v", offset, err))
	}
	var urlErr *url.Error
	if errors.As(err, &urlErr) && urlErr.Timeout() {
		return listing.NewTimeoutError(fmt.Sprintf("page at offset %d: %v", offset, err))
	}
	return listing.NewRequestError(fmt.Sprintf("page at offset %d", offset), err)
}
