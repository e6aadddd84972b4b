// Package seatregistry provides interfaces and implementations for
// coordinating floating-license seats across machines.
//
// Seats are keyed by a one-way hash of the license key plus the machine
// fingerprint; raw license keys are never stored. Acquisition is atomic
// against the seat limit, so two machines racing for the last seat cannot
// both win.
package seatregistry

import (
	"context"
	"errors"
	"time"
)

// ErrSeatsExhausted is returned by Acquire when the seat limit is reached
// and the fingerprint does not already hold a seat.
var ErrSeatsExhausted = errors.New("all license seats are taken")

// SeatInfo represents one occupied seat.
type SeatInfo struct {
	// LicenseHash identifies the license. It is a SHA-256 hex digest,
	// never the raw key.
	LicenseHash string `json:"license_hash" bson:"license_hash"`

	Fingerprint string    `json:"fingerprint" bson:"fingerprint"`
	Hostname    string    `json:"hostname" bson:"hostname"`
	AppVersion  string    `json:"app_version" bson:"app_version"`
	AcquiredAt  time.Time `json:"acquired_at" bson:"acquired_at"`
	LastSeenAt  time.Time `json:"last_seen_at" bson:"last_seen_at"`
}

// SeatRegistry coordinates seat claims for floating licenses.
type SeatRegistry interface {
	// Acquire claims a seat, atomically enforcing the limit. A fingerprint
	// that already holds a seat re-acquires it (refreshing last_seen_at)
	// regardless of the limit. limit <= 0 means unlimited.
	// Returns ErrSeatsExhausted when the license is full.
	Acquire(ctx context.Context, seat SeatInfo, limit int) (*SeatInfo, error)

	// Release frees the seat held by a fingerprint (for graceful shutdown).
	Release(ctx context.Context, licenseHash, fingerprint string) error

	// Count returns the number of occupied seats for a license.
	Count(ctx context.Context, licenseHash string) (int, error)

	// List returns all occupied seats for a license.
	List(ctx context.Context, licenseHash string) ([]SeatInfo, error)

	// Touch updates the last_seen_at timestamp for a held seat.
	Touch(ctx context.Context, licenseHash, fingerprint string) error

	// Prune releases seats not seen since olderThan ago. Returns the
	// number of seats released.
	Prune(ctx context.Context, licenseHash string, olderThan time.Duration) (int, error)

	// Close releases any resources held by the registry.
	Close(ctx context.Context) error
}
