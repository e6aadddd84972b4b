package keygate

// CapturedResponse is a provider HTTP response captured verbatim for
// verification: status, the headers covered by the signature, and the raw
// body. The HTTP status is never treated as a trust signal on its own.
//
// Empty header fields mean the header was absent.
type CapturedResponse struct {
	// Status is the HTTP status code.
	Status int

	// Date is the Date header value.
	Date string

	// Signature is the Keygen-Signature header value.
	Signature string

	// Digest is the Digest header value.
	Digest string

	// Body is the raw response body.
	Body []byte

	// RequestPath is the path the request was sent to, needed to rebuild
	// the signing string.
	RequestPath string

	// Host is the host the request was sent to, needed to rebuild the
	// signing string.
	Host string
}
