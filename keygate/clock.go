package keygate

import "time"

// Clock supplies the current time. Freshness windows, cache grace checks,
// and usage rollover all read time through this interface so they can be
// driven deterministically in tests.
type Clock interface {
	Now() time.Time
}

// SystemClock reads the wall clock in UTC.
type SystemClock struct{}

// Now returns the current UTC time.
func (SystemClock) Now() time.Time {
	return time.Now().UTC()
}
