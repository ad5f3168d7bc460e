package client

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/klauspost/compress/flate"
	"github.com/rs/zerolog"

	"github.com/Sternrassler/tutti-client/internal/testutil"
	"github.com/Sternrassler/tutti-client/pkg/listing"
)

var testFingerprint = StaticFingerprinter{
	Hash:        "123e4567-e89b-12d3-a456-426614174000",
	RefererHash: "9f8e7d6c5b4a39281706f5e4d3c2b1a0",
	Time:        time.Date(2024, 3, 5, 14, 7, 59, 0, time.UTC),
}

func newTestSession(t *testing.T, mock *testutil.MockTutti) *Session {
	t.Helper()

	c, err := New(Config{BaseURL: mock.URL(), Fingerprinter: testFingerprint})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	s, err := c.NewSession()
	if err != nil {
		t.Fatalf("NewSession() error = %v", err)
	}
	return s
}

func TestSession_Bootstrap(t *testing.T) {
	mock := testutil.NewMockTutti(1)
	defer mock.Close()
	mock.Configure(func(m *testutil.MockTutti) { m.Token = "abc123" })

	s := newTestSession(t, mock)
	if s.Token() != "" {
		t.Errorf("Token() before Bootstrap = %q, want empty", s.Token())
	}
	if err := s.Bootstrap(context.Background()); err != nil {
		t.Fatalf("Bootstrap() error = %v", err)
	}
	if s.Token() != "abc123" {
		t.Errorf("Token() = %q, want abc123", s.Token())
	}
}

func TestSession_BootstrapMissingCookie(t *testing.T) {
	mock := testutil.NewMockTutti(1)
	defer mock.Close()
	mock.Configure(func(m *testutil.MockTutti) { m.OmitCsrfCookie = true })

	err := newTestSession(t, mock).Bootstrap(context.Background())
	if !errors.Is(err, listing.ErrCsrfToken) {
		t.Fatalf("error = %v, want csrf_token class", err)
	}
	if !strings.Contains(err.Error(), "failed to obtain CSRF token") {
		t.Errorf("error = %q", err.Error())
	}
}

func TestSession_PageRequestHeaders(t *testing.T) {
	mock := testutil.NewMockTutti(5)
	defer mock.Close()

	s := newTestSession(t, mock)
	if err := s.Bootstrap(context.Background()); err != nil {
		t.Fatalf("Bootstrap() error = %v", err)
	}
	if _, err := s.FetchPage(context.Background(), "red pencil", 0); err != nil {
		t.Fatalf("FetchPage() error = %v", err)
	}

	h := mock.GetLastPageHeader()
	tests := []struct {
		header string
		want   string
	}{
		{"X-Csrf-Token", testutil.DefaultToken},
		{"X-Tutti-Hash", "123e4567-e89b-12d3-a456-426614174000"},
		{"X-Tutti-Source", "web r1.0-2024-03-05-14-07"},
		{"X-Tutti-Client-Identifier", "web/1.0.0+env-live.git-123e4567"},
		{"Content-Type", "application/json"},
		{"User-Agent", "Mozilla/5.0"},
		{"Accept", "*/*"},
		{"Accept-Language", "de,en-US;q=0.7,en;q=0.3"},
		{"Accept-Encoding", "gzip, deflate, br, zstd"},
		{"Origin", mock.URL()},
		{"Referer", mock.URL() + "/de/q/suche/9f8e7d6c5b4a39281706f5e4d3c2b1a0?sorting=newest&page=1&query=red%20pencil"},
	}
	for _, tt := range tests {
		if got := h.Get(tt.header); got != tt.want {
			t.Errorf("%s = %q, want %q", tt.header, got, tt.want)
		}
	}
}

func TestSession_PageRequestVariables(t *testing.T) {
	mock := testutil.NewMockTutti(100)
	defer mock.Close()

	s := newTestSession(t, mock)
	if err := s.Bootstrap(context.Background()); err != nil {
		t.Fatalf("Bootstrap() error = %v", err)
	}
	page, err := s.FetchPage(context.Background(), "pencil", 60)
	if err != nil {
		t.Fatalf("FetchPage() error = %v", err)
	}
	if page.TotalCount != 100 || len(page.Listings) != 30 {
		t.Errorf("page = total %d, %d listings; want 100, 30", page.TotalCount, len(page.Listings))
	}
	if page.Listings[0].ID != testutil.ListingID(60) {
		t.Errorf("first listing = %q, want %q", page.Listings[0].ID, testutil.ListingID(60))
	}

	vars := mock.GetLastVariables()
	want := map[string]any{
		"query":     "pencil",
		"first":     float64(30),
		"offset":    float64(60),
		"direction": "DESCENDING",
		"sort":      "TIMESTAMP",
	}
	for k, v := range want {
		if vars[k] != v {
			t.Errorf("variables[%q] = %v, want %v", k, vars[k], v)
		}
	}
	for _, k := range []string{"constraints", "category"} {
		v, ok := vars[k]
		if !ok || v != nil {
			t.Errorf("variables[%q] = %v (present %v), want explicit null", k, v, ok)
		}
	}
}

func TestSession_FetchPageWithoutToken(t *testing.T) {
	mock := testutil.NewMockTutti(5)
	defer mock.Close()

	_, err := newTestSession(t, mock).FetchPage(context.Background(), "pencil", 0)
	if !errors.Is(err, listing.ErrParse) {
		t.Fatalf("error = %v, want parse class for rejected request", err)
	}
}

func TestSession_FetchPageCancelled(t *testing.T) {
	mock := testutil.NewMockTutti(5)
	defer mock.Close()
	mock.SetPage(0, testutil.PageResponse{Delay: time.Second})

	s := newTestSession(t, mock)
	if err := s.Bootstrap(context.Background()); err != nil {
		t.Fatalf("Bootstrap() error = %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()
	_, err := s.FetchPage(ctx, "pencil", 0)
	if !errors.Is(err, listing.ErrTimeout) {
		t.Fatalf("error = %v, want timeout class", err)
	}
}

func TestEncodeQuery(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"pencil", "pencil"},
		{"red pencil", "red%20pencil"},
		{"a&b=c", "a%26b%3Dc"},
		{"velo 26\"", "velo%2026%22"},
		{"größe", "gr%C3%B6%C3%9Fe"},
		{"", ""},
	}

	for _, tt := range tests {
		if got := encodeQuery(tt.in); got != tt.want {
			t.Errorf("encodeQuery(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestServerErrors(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want string
	}{
		{"absent", ``, ""},
		{"null", `null`, ""},
		{"empty list", `[]`, ""},
		{"one message", `[{"message":"boom"}]`, "boom"},
		{"two messages", `[{"message":"a"},{"message":"b"}]`, "a; b"},
		{"unknown shape", `{"code":42}`, `{"code":42}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := graphQLResponse{Errors: []byte(tt.raw)}
			if got := r.serverErrors(); got != tt.want {
				t.Errorf("serverErrors() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestReadBody(t *testing.T) {
	payload := []byte(`{"data":null}`)

	zlibbed, err := testutil.Encode("deflate", payload)
	if err != nil {
		t.Fatalf("Encode() error = %v", err)
	}

	var rawDeflate bytes.Buffer
	fw, _ := flate.NewWriter(&rawDeflate, flate.DefaultCompression)
	fw.Write(payload)
	fw.Close()

	tests := []struct {
		name     string
		encoding string
		body     []byte
		wantErr  bool
	}{
		{name: "identity", encoding: "", body: payload},
		{name: "deflate", encoding: "deflate", body: zlibbed},
		{name: "raw deflate", encoding: "deflate", body: rawDeflate.Bytes()},
		{name: "corrupt deflate", encoding: "deflate", body: []byte{0x78, 0x9c, 0xff, 0xff}, wantErr: true},
		{name: "unsupported", encoding: "compress", body: payload, wantErr: true},
		{name: "corrupt gzip", encoding: "gzip", body: payload, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := &http.Response{
				Header: http.Header{},
				Body:   io.NopCloser(bytes.NewReader(tt.body)),
			}
			if tt.encoding != "" {
				resp.Header.Set("Content-Encoding", tt.encoding)
			}

			got, err := readBody(resp)
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected error, got nil")
				}
				return
			}
			if err != nil {
				t.Fatalf("readBody() error = %v", err)
			}
			if !bytes.Equal(got, payload) {
				t.Errorf("readBody() = %q, want %q", got, payload)
			}
		})
	}
}

func TestIsZlibHeader(t *testing.T) {
	tests := []struct {
		name string
		head []byte
		want bool
	}{
		{"default compression", []byte{0x78, 0x9c}, true},
		{"best compression", []byte{0x78, 0xda}, true},
		{"bad check bits", []byte{0x78, 0x9d}, false},
		{"raw deflate", []byte{0xab, 0x56}, false},
		{"short", []byte{0x78}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := isZlibHeader(tt.head); got != tt.want {
				t.Errorf("isZlibHeader(%x) = %v, want %v", tt.head, got, tt.want)
			}
		})
	}
}

func TestRandomFingerprinter(t *testing.T) {
	fixed := time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC)
	fp := RandomFingerprinter{Now: func() time.Time { return fixed }}

	a, b := fp.Next(), fp.Next()
	if a.Hash == b.Hash {
		t.Error("consecutive fingerprints share a hash")
	}
	if len(a.Hash) != 36 {
		t.Errorf("Hash = %q, want canonical UUID", a.Hash)
	}
	if len(a.RefererHash) != 32 || strings.Contains(a.RefererHash, "-") {
		t.Errorf("RefererHash = %q, want 32 hex chars", a.RefererHash)
	}
	if a.sourceHeader() != "web r1.0-2025-01-02-03-04" {
		t.Errorf("sourceHeader() = %q", a.sourceHeader())
	}
	if !strings.HasPrefix(a.clientIdentifier(), "web/1.0.0+env-live.git-") || len(a.clientIdentifier()) != len("web/1.0.0+env-live.git-")+8 {
		t.Errorf("clientIdentifier() = %q", a.clientIdentifier())
	}
}

func TestClassifyTransport(t *testing.T) {
	expired, cancel := context.WithDeadline(context.Background(), time.Now().Add(-time.Second))
	defer cancel()

	tests := []struct {
		name string
		ctx  context.Context
		err  error
		want listing.ErrorClass
	}{
		{"deadline", expired, errors.New("conn reset"), listing.ErrorClassTimeout},
		{"client timeout", context.Background(), &url.Error{Op: "Post", URL: "x", Err: timeoutErr{}}, listing.ErrorClassTimeout},
		{"refused", context.Background(), errors.New("connection refused"), listing.ErrorClassRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := listing.ClassOf(classifyTransport(tt.ctx, 30, tt.err)); got != tt.want {
				t.Errorf("class = %q, want %q", got, tt.want)
			}
		})
	}
}

type timeoutErr struct{}

func (timeoutErr) Error() string   { return "i/o timeout" }
func (timeoutErr) Timeout() bool   { return true }
func (timeoutErr) Temporary() bool { return true }

func TestNewSession_IsolatedJars(t *testing.T) {
	base, _ := url.Parse("https://www.tutti.ch")
	a, err := newSession(base, nil, 0, testFingerprint, zerolog.Nop())
	if err != nil {
		t.Fatalf("newSession() error = %v", err)
	}
	b, err := newSession(base, nil, 0, testFingerprint, zerolog.Nop())
	if err != nil {
		t.Fatalf("newSession() error = %v", err)
	}

	a.jar.SetCookies(base, []*http.Cookie{{Name: CsrfCookieName, Value: "a"}})
	if len(b.jar.Cookies(base)) != 0 {
		t.Error("sessions share a cookie jar")
	}
}
