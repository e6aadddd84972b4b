package keygate

import (
	"errors"
	"fmt"
	"time"
)

// ErrConfig indicates a malformed configuration. It is fatal at
// construction time and never surfaces from a validation call.
var ErrConfig = errors.New("invalid configuration")

// ErrMissingLicense indicates no license key was provided.
var ErrMissingLicense = errors.New("no license key provided")

// Live trust failures. These are always reported and never downgraded:
// no verification step has a default-allow branch.
var (
	ErrSignatureMissing     = errors.New("response signature or date header missing")
	ErrSignatureInvalid     = errors.New("response signature verification failed")
	ErrDigestMismatch       = errors.New("response digest mismatch")
	ErrResponseTooOld       = errors.New("response too old, possible replay")
	ErrResponseFromFuture   = errors.New("response date is in the future, possible clock tampering")
	ErrDateInvalid          = errors.New("invalid date header")
	ErrAlgorithmUnsupported = errors.New("unsupported signature algorithm")
	ErrHeaderMalformed      = errors.New("malformed signature header")
)

// ErrProtocol indicates a malformed provider payload. It is deliberately
// distinct from the trust failures above so callers can separate a format
// problem from a trust problem.
var ErrProtocol = errors.New("malformed provider response")

// Cache failures. ErrCacheTampered is distinguishable from ErrCacheExpired
// so a caller can alert on tampering but silently retry online on expiry.
var (
	ErrCacheTampered = errors.New("cache tampering detected")
	ErrCacheExpired  = errors.New("cache expired, offline grace exceeded")
	ErrCacheIO       = errors.New("cache i/o failure")
)

// Policy denials. Each carries a user-actionable reason; access is never
// denied with a bare boolean.
var (
	ErrInvalidLicense     = errors.New("license is invalid or expired")
	ErrEntitlementMissing = errors.New("required entitlement missing")
	ErrUsageLimitExceeded = errors.New("usage limit exceeded")
	ErrSeatLimitExceeded  = errors.New("seat limit exceeded")
)

// Infrastructure failures, retryable by the caller.
var (
	ErrTransport = errors.New("license server transport failure")
	ErrMeterIO   = errors.New("usage meter i/o failure")
)

// ResponseTooOldError reports how stale a live response was when it was
// rejected. errors.Is(err, ErrResponseTooOld) matches it.
type ResponseTooOldError struct {
	Age time.Duration
}

func (e *ResponseTooOldError) Error() string {
	return fmt.Sprintf("response too old (%s), possible replay", e.Age)
}

// Is reports whether target is the ErrResponseTooOld sentinel.
func (e *ResponseTooOldError) Is(target error) bool {
	return target == ErrResponseTooOld
}

// EntitlementMissingError identifies which required entitlement code the
// license lacks. errors.Is(err, ErrEntitlementMissing) matches it.
type EntitlementMissingError struct {
	Code string
}

func (e *EntitlementMissingError) Error() string {
	return fmt.Sprintf("required entitlement missing: %s", e.Code)
}

// Is reports whether target is the ErrEntitlementMissing sentinel.
func (e *EntitlementMissingError) Is(target error) bool {
	return target == ErrEntitlementMissing
}
