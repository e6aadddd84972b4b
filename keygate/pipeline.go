package keygate

import (
	"crypto/ed25519"
	"encoding/base64"
	"fmt"
)

// verifier runs the fail-closed authentication pipeline over captured
// responses. The Ed25519 verify key is decoded once, at construction, and
// shared by reference thereafter.
type verifier struct {
	key   ed25519.PublicKey
	clock Clock
}

func newVerifier(publicKeyHex string, clock Clock) (*verifier, error) {
	key, err := decodePublicKey(publicKeyHex)
	if err != nil {
		return nil, err
	}
	return &verifier{key: key, clock: clock}, nil
}

// verifyLive authenticates a live provider response and returns the
// verified body bytes. The checks run in a fixed order and short-circuit
// on the first failure; there is no path past a failed step:
//
//  1. Signature and Date headers must both be present (ErrSignatureMissing).
//  2. The signature header must parse with a supported algorithm
//     (ErrSignatureInvalid, wrapping the parse failure).
//  3. The body digest must match the Digest header when one is present
//     (ErrDigestMismatch); an absent header is a reduced guarantee, not an
//     error.
//  4. The Ed25519 signature must verify over the rebuilt signing string
//     (ErrSignatureInvalid).
//  5. The Date must fall inside the live freshness window
//     (ErrResponseTooOld / ErrResponseFromFuture).
func (v *verifier) verifyLive(resp *CapturedResponse) ([]byte, error) {
	if _, err := v.verifySignature(resp); err != nil {
		return nil, err
	}
	if _, err := checkDateFreshness(resp.Date, v.clock); err != nil {
		return nil, err
	}
	return resp.Body, nil
}

// verifySignature runs steps 1-4 of the pipeline: header presence, header
// parse, digest comparison, and Ed25519 verification. It is shared with
// the cache layer, which applies its own grace policy instead of the live
// freshness window.
func (v *verifier) verifySignature(resp *CapturedResponse) (*signatureHeader, error) {
	// Fail closed: either header absent rejects the response outright,
	// even if the other is present.
	if resp.Signature == "" || resp.Date == "" {
		return nil, ErrSignatureMissing
	}

	parsed, err := parseSignatureHeader(resp.Signature)
	if err != nil {
		// The parse failure stays inspectable underneath the umbrella
		// signature error.
		return nil, fmt.Errorf("%w: %w", ErrSignatureInvalid, err)
	}

	if err := verifyDigest(resp.Body, resp.Digest); err != nil {
		return nil, err
	}

	signingString := buildSigningString("post", resp.RequestPath, resp.Host, resp.Date, resp.Digest)
	if err := verifyEd25519(parsed.signature, signingString, v.key); err != nil {
		return nil, err
	}
	return parsed, nil
}

// verifyEd25519 verifies a base64 signature over a signing string. All
// failure modes (bad encoding, wrong length, wrong signature) collapse to
// ErrSignatureInvalid so timing cannot distinguish them; the underlying
// ed25519.Verify is itself constant-time.
func verifyEd25519(signatureB64, signingString string, key ed25519.PublicKey) error {
	sig, err := base64.StdEncoding.DecodeString(signatureB64)
	if err != nil {
		return ErrSignatureInvalid
	}
	if len(sig) != ed25519.SignatureSize {
		return ErrSignatureInvalid
	}
	if !ed25519.Verify(key, []byte(signingString), sig) {
		return ErrSignatureInvalid
	}
	return nil
}
