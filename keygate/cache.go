package keygate

import (
	"crypto/ed25519"
	"time"
)

// CacheRecord is an authenticated offline cache entry. It stores exactly
// the response fields the verification pipeline consumes, so the same
// cryptographic proof can be re-derived and re-checked on every load.
// Records are only ever written after a successful live verification and
// are never mutated in place.
//
// Unknown extra fields in a stored record are ignored on load, keeping the
// format forward-compatible.
type CacheRecord struct {
	// Date is the original Date header value.
	Date string `json:"date"`

	// Signature is the original Keygen-Signature header value.
	Signature string `json:"signature"`

	// Digest is the original Digest header value, empty if the response
	// carried none.
	Digest string `json:"digest,omitempty"`

	// Body is the original response body.
	Body string `json:"body"`

	// CachedAt is when the record was written, in UTC.
	CachedAt time.Time `json:"cached_at"`

	// RequestPath is the request path, needed to rebuild the signing
	// string.
	RequestPath string `json:"request_path"`

	// Host is the request host, needed to rebuild the signing string.
	Host string `json:"host"`
}

// newCacheRecord captures a freshly verified response into a cache record.
func newCacheRecord(resp *CapturedResponse, clock Clock) *CacheRecord {
	return &CacheRecord{
		Date:        resp.Date,
		Signature:   resp.Signature,
		Digest:      resp.Digest,
		Body:        string(resp.Body),
		CachedAt:    clock.Now().UTC(),
		RequestPath: resp.RequestPath,
		Host:        resp.Host,
	}
}

// Verify re-checks the record's cryptographic proof and temporal validity:
//
//  1. The body digest is recomputed and, when a digest was stored,
//     compared; the signing string is rebuilt from the stored fields and
//     the Ed25519 signature re-verified. Any mismatch is ErrCacheTampered,
//     deliberately distinct from the live ErrSignatureInvalid so callers
//     can tell "cache corrupted" from "network untrusted".
//  2. A CachedAt in the future relative to the clock is ErrCacheTampered.
//  3. An age beyond the offline grace is ErrCacheExpired — an expected,
//     non-adversarial condition, never conflated with tampering. The
//     boundary is inclusive: age == grace still passes.
//
// The live freshness window is intentionally not applied here; offline
// grace is the cache's own temporal policy.
func (r *CacheRecord) Verify(key ed25519.PublicKey, grace time.Duration, clock Clock) error {
	v := &verifier{key: key, clock: clock}
	if _, err := v.verifySignature(&CapturedResponse{
		Date:        r.Date,
		Signature:   r.Signature,
		Digest:      r.Digest,
		Body:        []byte(r.Body),
		RequestPath: r.RequestPath,
		Host:        r.Host,
	}); err != nil {
		return ErrCacheTampered
	}

	age := clock.Now().Sub(r.CachedAt)
	if age < 0 {
		return ErrCacheTampered
	}
	if age > grace {
		return ErrCacheExpired
	}
	return nil
}
