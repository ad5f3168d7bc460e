// Package testutil provides testing utilities for the tutti client.
package testutil

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sort"
	"sync"
	"time"

	"github.com/andybalholm/brotli"
	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zlib"
	"github.com/klauspost/compress/zstd"
)

// DefaultToken is the CSRF token the mock hands out.
const DefaultToken = "mock-csrf-token"

// PageResponse overrides the mock's answer for one page offset.
type PageResponse struct {
	// StatusCode defaults to 200.
	StatusCode int
	// Body, if set, is written verbatim instead of a generated page.
	Body string
	// Errors, if set, is returned as the envelope's errors list.
	Errors []string
	// Delay is slept before answering.
	Delay time.Duration
}

// MockTutti is a configurable mock of the tutti.ch origin and query API.
type MockTutti struct {
	server *httptest.Server
	mu     sync.RWMutex

	// Behaviour
	TotalCount      int
	Token           string
	OmitCsrfCookie  bool
	ContentEncoding string
	OriginDelay     time.Duration // slept before answering the handshake
	pages           map[int]PageResponse

	// Tracking
	BootstrapCount int
	offsets        []int
	LastPageHeader http.Header
	LastVariables  map[string]any
}

// NewMockTutti creates a new mock server serving totalCount listings.
func NewMockTutti(totalCount int) *MockTutti {
	mock := &MockTutti{
		TotalCount: totalCount,
		Token:      DefaultToken,
		pages:      make(map[int]PageResponse),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /{$}", mock.handleOrigin)
	mux.HandleFunc("POST /api/v10/graphql", mock.handleGraphQL)
	mock.server = httptest.NewServer(mux)

	return mock
}

// URL returns the mock server URL.
func (m *MockTutti) URL() string {
	return m.server.URL
}

// Close shuts down the mock server.
func (m *MockTutti) Close() {
	m.server.Close()
}

// SetPage configures the response for the page starting at offset.
func (m *MockTutti) SetPage(offset int, resp PageResponse) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.pages[offset] = resp
}

// Configure mutates the mock's behaviour fields under its lock.
func (m *MockTutti) Configure(fn func(m *MockTutti)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	fn(m)
}

// Offsets returns the requested page offsets, sorted.
func (m *MockTutti) Offsets() []int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := append([]int(nil), m.offsets...)
	sort.Ints(out)
	return out
}

// PageRequestCount returns the number of page requests received.
func (m *MockTutti) PageRequestCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.offsets)
}

// GetBootstrapCount returns the number of handshakes received.
func (m *MockTutti) GetBootstrapCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.BootstrapCount
}

// GetLastPageHeader returns the headers of the most recent page request.
func (m *MockTutti) GetLastPageHeader() http.Header {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.LastPageHeader.Clone()
}

// GetLastVariables returns the GraphQL variables of the most recent page request.
func (m *MockTutti) GetLastVariables() map[string]any {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.LastVariables
}

// ListingID is the id the mock assigns to the listing at absolute position i.
func ListingID(i int) string {
	return fmt.Sprintf("listing-%d", i)
}

func (m *MockTutti) handleOrigin(w http.ResponseWriter, r *http.Request) {
	m.mu.Lock()
	m.BootstrapCount++
	omit, token, delay := m.OmitCsrfCookie, m.Token, m.OriginDelay
	m.mu.Unlock()

	if delay > 0 {
		select {
		case <-time.After(delay):
		case <-r.Context().Done():
			return
		}
	}

	http.SetCookie(w, &http.Cookie{Name: "session", Value: "anon", Path: "/"})
	if !omit {
		http.SetCookie(w, &http.Cookie{Name: "tutti_csrftoken", Value: token, Path: "/"})
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("<html><body>tutti</body></html>"))
}

type graphQLBody struct {
	Query     string         `json:"query"`
	Variables map[string]any `json:"variables"`
}

func (m *MockTutti) handleGraphQL(w http.ResponseWriter, r *http.Request) {
	var body graphQLBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, "bad request body", http.StatusBadRequest)
		return
	}
	offset := 0
	if v, ok := body.Variables["offset"].(float64); ok {
		offset = int(v)
	}

	m.mu.Lock()
	m.offsets = append(m.offsets, offset)
	m.LastPageHeader = r.Header.Clone()
	m.LastVariables = body.Variables
	override, hasOverride := m.pages[offset]
	total, token, encoding := m.TotalCount, m.Token, m.ContentEncoding
	m.mu.Unlock()

	if hasOverride && override.Delay > 0 {
		select {
		case <-time.After(override.Delay):
		case <-r.Context().Done():
			return
		}
	}

	if r.Header.Get("X-Csrf-Token") != token {
		m.writeJSON(w, http.StatusForbidden, encoding, map[string]any{
			"data":   nil,
			"errors": []map[string]string{{"message": "CSRF token missing or incorrect"}},
		})
		return
	}

	status := http.StatusOK
	if hasOverride && override.StatusCode != 0 {
		status = override.StatusCode
	}

	switch {
	case hasOverride && override.Body != "":
		m.write(w, status, encoding, []byte(override.Body))
	case hasOverride && len(override.Errors) > 0:
		errs := make([]map[string]string, len(override.Errors))
		for i, msg := range override.Errors {
			errs[i] = map[string]string{"message": msg}
		}
		m.writeJSON(w, status, encoding, map[string]any{"data": nil, "errors": errs})
	default:
		m.writeJSON(w, status, encoding, PageEnvelope(total, offset, 30))
	}
}

// PageEnvelope builds a well-formed response for the window [offset, offset+first).
func PageEnvelope(totalCount, offset, first int) map[string]any {
	edges := []map[string]any{}
	for i := offset; i < offset+first && i < totalCount; i++ {
		node := map[string]any{
			"listingID":      ListingID(i),
			"title":          fmt.Sprintf("Listing %d", i),
			"body":           fmt.Sprintf("Body of listing %d", i),
			"timestamp":      time.Unix(int64(1700000000-i*60), 0).UTC().Format(time.RFC3339),
			"formattedPrice": nil,
			"sellerInfo":     map[string]any{"alias": fmt.Sprintf("seller%d", i%7)},
			"thumbnail":      nil,
		}
		if i%2 == 0 {
			node["formattedPrice"] = fmt.Sprintf("CHF %d.–", 10+i)
			node["thumbnail"] = map[string]any{
				"normalRendition": map[string]any{"src": fmt.Sprintf("https://c.tutti.ch/images/%d.jpg", i)},
			}
		}
		edges = append(edges, map[string]any{"node": node})
	}

	return map[string]any{
		"data": map[string]any{
			"searchListingsByQuery": map[string]any{
				"listings": map[string]any{
					"totalCount": totalCount,
					"edges":      edges,
				},
			},
		},
	}
}

func (m *MockTutti) writeJSON(w http.ResponseWriter, status int, encoding string, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	m.write(w, status, encoding, data)
}

func (m *MockTutti) write(w http.ResponseWriter, status int, encoding string, data []byte) {
	encoded, err := Encode(encoding, data)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	if encoding != "" {
		w.Header().Set("Content-Encoding", encoding)
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	w.Write(encoded)
}

// Encode compresses data with the given Content-Encoding ("" leaves it as is).
func Encode(encoding string, data []byte) ([]byte, error) {
	var buf bytes.Buffer
	switch encoding {
	case "":
		return data, nil
	case "gzip":
		zw := gzip.NewWriter(&buf)
		if _, err := zw.Write(data); err != nil {
			return nil, err
		}
		if err := zw.Close(); err != nil {
			return nil, err
		}
	case "deflate":
		zw := zlib.NewWriter(&buf)
		if _, err := zw.Write(data); err != nil {
			return nil, err
		}
		if err := zw.Close(); err != nil {
			return nil, err
		}
	case "br":
		bw := brotli.NewWriter(&buf)
		if _, err := bw.Write(data); err != nil {
			return nil, err
		}
		if err := bw.Close(); err != nil {
			return nil, err
		}
	case "zstd":
		enc, err := zstd.NewWriter(nil)
		if err != nil {
			return nil, err
		}
		defer enc.Close()
		return enc.EncodeAll(data, nil), nil
	default:
		return nil, fmt.Errorf("unsupported encoding %q", encoding)
	}
	return buf.Bytes(), nil
}
