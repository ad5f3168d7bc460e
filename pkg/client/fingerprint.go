package client

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// Fingerprint holds the ephemeral identifiers attached to one page request.
type Fingerprint struct {
	// Hash is the per-request correlation id sent as X-Tutti-Hash.
	Hash string
	// RefererHash is the random path segment of the Referer URL.
	RefererHash string
	// Time stamps X-Tutti-Source.
	Time time.Time
}

// Fingerprinter produces a fresh Fingerprint for every page request.
type Fingerprinter interface {
	Next() Fingerprint
}

// RandomFingerprinter draws UUIDv4 values and reads the wall clock.
type RandomFingerprinter struct {
	// Now defaults to time.Now.
	Now func() time.Time
}

// Next implements Fingerprinter.
func (r RandomFingerprinter) Next() Fingerprint {
	now := time.Now
	if r.Now != nil {
		now = r.Now
	}
	return Fingerprint{
		Hash:        uuid.NewString(),
		RefererHash: strings.ReplaceAll(uuid.NewString(), "-", ""),
		Time:        now(),
	}
}

// StaticFingerprinter always returns the same Fingerprint (tests, replay).
type StaticFingerprinter Fingerprint

// Next implements Fingerprinter.
func (s StaticFingerprinter) Next() Fingerprint {
	return Fingerprint(s)
}

// sourceHeader formats X-Tutti-Source.
func (f Fingerprint) sourceHeader() string {
	return "web r1.0-" + f.Time.UTC().Format("2006-01-02-15-04")
}

// clientIdentifier formats X-Tutti-Client-Identifier from the first eight
// hex characters of the correlation hash.
func (f Fingerprint) clientIdentifier() string {
	compact := strings.ReplaceAll(f.Hash, "-", "")
	if len(compact) > 8 {
		compact = compact[:8]
	}
	return "web/1.0.0+env-live.git-" + compact
}
