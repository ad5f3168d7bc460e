package client

import "net/http"

// Header names used by the tutti.ch query API.
const (
	headerCsrfToken        = "X-Csrf-Token"
	headerHash             = "X-Tutti-Hash"
	headerSource           = "X-Tutti-Source"
	headerClientIdentifier = "X-Tutti-Client-Identifier"
)

// acceptEncoding is advertised on every request. Setting it by hand turns off
// net/http's transparent gzip, so bodies are decoded in decode.go.
const acceptEncoding = "gzip, deflate, br, zstd"

// browserHeaders returns the static browser-emulating header set shared by the
// handshake and every page request of a session.
func browserHeaders(origin string) http.Header {
	h := make(http.Header, 6)
	h.Set("User-Agent", "Mozilla/5.0")
	h.Set("Accept", "*/*")
	h.Set("Accept-Language", "de,en-US;q=0.7,en;q=0.3")
	h.Set("Accept-Encoding", acceptEncoding)
	h.Set("Origin", origin)
	h.Set("Connection", "keep-alive")
	return h
}

func applyHeaders(req *http.Request, h http.Header) {
	for key, values := range h {
		for _, v := range values {
			req.Header.Add(key, v)
		}
	}
}
