package keygate

import (
	"errors"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Prometheus metrics for embedding applications that already scrape the
// default registry. Labels are low-cardinality by construction: outcomes
// and reasons come from fixed sets, never from license keys or details.
var (
	metricValidations = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "keygate",
		Name:      "validations_total",
		Help:      "License validations by outcome (online, offline, denied, error).",
	}, []string{"outcome"})

	metricCacheLoads = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "keygate",
		Name:      "cache_loads_total",
		Help:      "Offline cache loads by result (hit, miss, expired, tampered).",
	}, []string{"result"})

	metricTrustFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "keygate",
		Name:      "trust_failures_total",
		Help:      "Response verification failures by reason.",
	}, []string{"reason"})
)

// trustFailureReason maps a verification error to a fixed label value.
func trustFailureReason(err error) string {
	switch {
	case errors.Is(err, ErrSignatureMissing):
		return "signature_missing"
	case errors.Is(err, ErrAlgorithmUnsupported):
		return "algorithm_unsupported"
	case errors.Is(err, ErrHeaderMalformed):
		return "header_malformed"
	case errors.Is(err, ErrDigestMismatch):
		return "digest_mismatch"
	case errors.Is(err, ErrSignatureInvalid):
		return "signature_invalid"
	case errors.Is(err, ErrResponseTooOld):
		return "response_too_old"
	case errors.Is(err, ErrResponseFromFuture):
		return "response_from_future"
	case errors.Is(err, ErrDateInvalid):
		return "date_invalid"
	default:
		return "other"
	}
}
