package keygate

import (
	"crypto/ed25519"
	"encoding/hex"
	"fmt"
	"strings"
)

// signatureAlgorithm is the single supported signing scheme. Any other
// algorithm value is rejected before verification is attempted.
const signatureAlgorithm = "ed25519"

// signatureHeader holds the parsed components of a Keygen-Signature header:
//
//	keyid="...", algorithm="ed25519", signature="<base64>", headers="..."
type signatureHeader struct {
	keyID     string
	algorithm string
	signature string // base64
	headers   []string
}

// parseSignatureHeader parses a Keygen-Signature header value into its
// components. A missing algorithm or signature field yields
// ErrHeaderMalformed; any algorithm other than ed25519 yields
// ErrAlgorithmUnsupported.
func parseSignatureHeader(header string) (*signatureHeader, error) {
	params := make(map[string]string)
	for _, part := range strings.Split(header, ",") {
		part = strings.TrimSpace(part)
		key, value, ok := strings.Cut(part, "=")
		if !ok {
			continue
		}
		key = strings.ToLower(strings.TrimSpace(key))
		value = strings.TrimSpace(value)
		if len(value) >= 2 && strings.HasPrefix(value, `"`) && strings.HasSuffix(value, `"`) {
			value = value[1 : len(value)-1]
		}
		params[key] = value
	}

	algorithm, ok := params["algorithm"]
	if !ok {
		return nil, fmt.Errorf("%w: missing algorithm", ErrHeaderMalformed)
	}
	if algorithm != signatureAlgorithm {
		return nil, fmt.Errorf("%w: %q", ErrAlgorithmUnsupported, algorithm)
	}
	signature, ok := params["signature"]
	if !ok {
		return nil, fmt.Errorf("%w: missing signature", ErrHeaderMalformed)
	}

	return &signatureHeader{
		keyID:     params["keyid"],
		algorithm: algorithm,
		signature: signature,
		headers:   strings.Fields(params["headers"]),
	}, nil
}

// decodePublicKey decodes a hex-encoded Ed25519 verify key. It is called
// exactly once, at Manager construction; malformed hex or a wrong-length
// key is a configuration error, never a per-call verification failure.
func decodePublicKey(hexKey string) (ed25519.PublicKey, error) {
	raw, err := hex.DecodeString(hexKey)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid public key hex: %v", ErrConfig, err)
	}
	if len(raw) != ed25519.PublicKeySize {
		return nil, fmt.Errorf("%w: public key must be %d bytes, got %d", ErrConfig, ed25519.PublicKeySize, len(raw))
	}
	return ed25519.PublicKey(raw), nil
}
