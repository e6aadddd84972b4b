package keygate

import (
	"fmt"
	"net/http"
	"time"
)

// Live freshness window. A response older than maxResponseAge is treated
// as a possible replay; one dated more than maxFutureTolerance ahead of
// the local clock indicates clock tampering. Both bounds are inclusive.
// Cached records are governed by the offline grace check instead.
const (
	maxResponseAge     = 5 * time.Minute
	maxFutureTolerance = 60 * time.Second
)

// parseHTTPDate parses an HTTP Date header (RFC 2822 / RFC 1123 style,
// e.g. "Wed, 09 Jun 2021 16:08:15 GMT") to a UTC instant.
func parseHTTPDate(value string) (time.Time, error) {
	if t, err := http.ParseTime(value); err == nil {
		return t.UTC(), nil
	}
	if t, err := time.Parse(time.RFC1123Z, value); err == nil {
		return t.UTC(), nil
	}
	return time.Time{}, fmt.Errorf("%w: %q", ErrDateInvalid, value)
}

// checkFreshness enforces the live window against a parsed response date.
func checkFreshness(responseDate time.Time, clock Clock) error {
	age := clock.Now().Sub(responseDate)
	if age > maxResponseAge {
		return &ResponseTooOldError{Age: age}
	}
	if age < -maxFutureTolerance {
		return ErrResponseFromFuture
	}
	return nil
}

// checkDateFreshness parses a Date header and enforces the live window.
func checkDateFreshness(dateHeader string, clock Clock) (time.Time, error) {
	responseDate, err := parseHTTPDate(dateHeader)
	if err != nil {
		return time.Time{}, err
	}
	if err := checkFreshness(responseDate, clock); err != nil {
		return time.Time{}, err
	}
	return responseDate, nil
}
