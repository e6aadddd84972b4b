package keygate

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"golang.org/x/time/rate"
)

const (
	defaultBaseURL   = "https://api.keygen.sh"
	defaultTimeout   = 30 * time.Second
	maxResponseBytes = 1 << 20 // 1 MB
	sdkVersion       = "1.0.0"
)

// OnlineClient performs the validate-key call against the license server
// and captures the headers the verification pipeline needs. It never
// interprets the response itself; authentication is the pipeline's job.
type OnlineClient struct {
	accountID  string
	baseURL    string
	host       string
	httpClient *http.Client
	timeout    time.Duration // applied after all options
	userAgent  string
	limiter    *rate.Limiter
}

// ValidateKeyRequest describes one validate-key call.
type ValidateKeyRequest struct {
	// LicenseKey is the key to validate.
	LicenseKey string

	// Entitlements are the entitlement codes to assert in the request
	// scope. The provider echoes asserted codes back in the response,
	// which is what makes entitlement-based access control possible.
	Entitlements []string

	// Fingerprint optionally scopes validation to this machine.
	Fingerprint string
}

// validateKeyBody is the wire shape of the validate-key request.
type validateKeyBody struct {
	Meta struct {
		Key   string `json:"key"`
		Scope *struct {
			Entitlements []string `json:"entitlements,omitempty"`
			Fingerprint  string   `json:"fingerprint,omitempty"`
		} `json:"scope,omitempty"`
	} `json:"meta"`
}

// NewOnlineClient creates a client for the given provider account.
func NewOnlineClient(accountID string, opts ...ClientOption) (*OnlineClient, error) {
	c := &OnlineClient{
		accountID: accountID,
		baseURL:   defaultBaseURL,
		timeout:   defaultTimeout,
		userAgent: fmt.Sprintf("keygate-sdk-go/%s", sdkVersion),
	}
	for _, opt := range opts {
		opt(c)
	}

	u, err := url.Parse(c.baseURL)
	if err != nil || u.Host == "" {
		return nil, fmt.Errorf("%w: invalid base URL %q", ErrConfig, c.baseURL)
	}
	c.host = u.Host

	// Apply timeout after all options so ordering doesn't matter.
	if c.httpClient == nil {
		c.httpClient = &http.Client{}
	}
	c.httpClient.Timeout = c.timeout
	return c, nil
}

// Host returns the host validation requests are sent to.
func (c *OnlineClient) Host() string {
	return c.host
}

// ValidateKey POSTs the validate-key action and returns the captured
// response: status, Date / Keygen-Signature / Digest headers, and the raw
// body, all verbatim. Transport failures wrap ErrTransport so the caller
// can distinguish "network broken" from "response untrusted".
func (c *OnlineClient) ValidateKey(ctx context.Context, req ValidateKeyRequest) (*CapturedResponse, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("%w: rate limit wait: %v", ErrTransport, err)
		}
	}

	var body validateKeyBody
	body.Meta.Key = req.LicenseKey
	if len(req.Entitlements) > 0 || req.Fingerprint != "" {
		body.Meta.Scope = &struct {
			Entitlements []string `json:"entitlements,omitempty"`
			Fingerprint  string   `json:"fingerprint,omitempty"`
		}{
			Entitlements: req.Entitlements,
			Fingerprint:  req.Fingerprint,
		}
	}
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("%w: marshal request: %v", ErrProtocol, err)
	}

	path := fmt.Sprintf("/v1/accounts/%s/licenses/actions/validate-key", c.accountID)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("%w: create request: %v", ErrTransport, err)
	}
	httpReq.Header.Set("Content-Type", "application/vnd.api+json")
	httpReq.Header.Set("Accept", "application/vnd.api+json")
	httpReq.Header.Set("User-Agent", c.userAgent)
	httpReq.Header.Set("Digest", formatDigestHeader(payload))

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrTransport, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, fmt.Errorf("%w: read response: %v", ErrTransport, err)
	}

	return &CapturedResponse{
		Status:      resp.StatusCode,
		Date:        resp.Header.Get("Date"),
		Signature:   resp.Header.Get("Keygen-Signature"),
		Digest:      resp.Header.Get("Digest"),
		Body:        raw,
		RequestPath: path,
		Host:        c.host,
	}, nil
}
