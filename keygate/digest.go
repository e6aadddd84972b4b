package keygate

import (
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"strings"
)

const digestPrefix = "sha-256="

// computeDigest returns the base64-encoded SHA-256 digest of body,
// matching the provider's Digest header value format.
func computeDigest(body []byte) string {
	sum := sha256.Sum256(body)
	return base64.StdEncoding.EncodeToString(sum[:])
}

// formatDigestHeader formats a body digest as an HTTP Digest header value.
func formatDigestHeader(body []byte) string {
	return digestPrefix + computeDigest(body)
}

// parseDigestHeader extracts the base64 value from a "sha-256=<base64>"
// header. Returns "" for any other algorithm or shape.
func parseDigestHeader(header string) string {
	header = strings.TrimSpace(header)
	if v, ok := strings.CutPrefix(header, digestPrefix); ok {
		return v
	}
	if v, ok := strings.CutPrefix(header, "SHA-256="); ok {
		return v
	}
	return ""
}

// verifyDigest compares the computed body digest against a Digest header.
// An absent header passes (documented reduced guarantee); a present header
// that is malformed or does not match fails with ErrDigestMismatch. The
// comparison is constant-time.
func verifyDigest(body []byte, digestHeader string) error {
	if digestHeader == "" {
		return nil
	}
	expected := parseDigestHeader(digestHeader)
	if expected == "" {
		return ErrDigestMismatch
	}
	computed := computeDigest(body)
	if subtle.ConstantTimeCompare([]byte(computed), []byte(expected)) != 1 {
		return ErrDigestMismatch
	}
	return nil
}
