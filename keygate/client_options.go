package keygate

import (
	"net/http"
	"time"

	"golang.org/x/time/rate"
)

// ClientOption configures an OnlineClient.
type ClientOption func(*OnlineClient)

// WithHTTPClient sets a custom HTTP client. The client's Timeout will be
// overridden by WithTimeout (or the 30-second default).
func WithHTTPClient(c *http.Client) ClientOption {
	return func(o *OnlineClient) {
		o.httpClient = c
	}
}

// WithTimeout sets the HTTP client timeout. Default is 30 seconds.
// Option ordering does not matter: the timeout is always applied after all
// options.
func WithTimeout(d time.Duration) ClientOption {
	return func(o *OnlineClient) {
		o.timeout = d
	}
}

// WithUserAgent sets the User-Agent header sent with requests.
func WithUserAgent(ua string) ClientOption {
	return func(o *OnlineClient) {
		o.userAgent = ua
	}
}

// WithBaseURL overrides the license server base URL. Intended for tests
// and self-hosted provider deployments.
func WithBaseURL(u string) ClientOption {
	return func(o *OnlineClient) {
		o.baseURL = u
	}
}

// WithRateLimit throttles outbound validation calls so a hot loop in the
// embedding application cannot hammer the provider.
func WithRateLimit(limit rate.Limit, burst int) ClientOption {
	return func(o *OnlineClient) {
		o.limiter = rate.NewLimiter(limit, burst)
	}
}
