package seatregistry

import (
	"context"
	"sync"
	"time"
)

// MemoryRegistry implements SeatRegistry in process memory. It is intended
// for tests and single-process deployments; it provides no cross-machine
// coordination.
type MemoryRegistry struct {
	mu    sync.Mutex
	seats map[string]map[string]SeatInfo // license_hash -> fingerprint -> seat
}

// NewMemoryRegistry creates an empty in-memory seat registry.
func NewMemoryRegistry() *MemoryRegistry {
	return &MemoryRegistry{seats: make(map[string]map[string]SeatInfo)}
}

func (r *MemoryRegistry) Acquire(_ context.Context, seat SeatInfo, limit int) (*SeatInfo, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := time.Now()
	byFP := r.seats[seat.LicenseHash]
	if byFP == nil {
		byFP = make(map[string]SeatInfo)
		r.seats[seat.LicenseHash] = byFP
	}

	if existing, held := byFP[seat.Fingerprint]; held {
		existing.Hostname = seat.Hostname
		existing.AppVersion = seat.AppVersion
		existing.LastSeenAt = now
		byFP[seat.Fingerprint] = existing
		return &existing, nil
	}
	if limit > 0 && len(byFP) >= limit {
		return nil, ErrSeatsExhausted
	}

	seat.AcquiredAt = now
	seat.LastSeenAt = now
	byFP[seat.Fingerprint] = seat
	return &seat, nil
}

func (r *MemoryRegistry) Release(_ context.Context, licenseHash, fingerprint string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.seats[licenseHash], fingerprint)
	return nil
}

func (r *MemoryRegistry) Count(_ context.Context, licenseHash string) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.seats[licenseHash]), nil
}

func (r *MemoryRegistry) List(_ context.Context, licenseHash string) ([]SeatInfo, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var seats []SeatInfo
	for _, s := range r.seats[licenseHash] {
		seats = append(seats, s)
	}
	return seats, nil
}

func (r *MemoryRegistry) Touch(_ context.Context, licenseHash, fingerprint string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if seat, held := r.seats[licenseHash][fingerprint]; held {
		seat.LastSeenAt = time.Now()
		r.seats[licenseHash][fingerprint] = seat
	}
	return nil
}

func (r *MemoryRegistry) Prune(_ context.Context, licenseHash string, olderThan time.Duration) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	cutoff := time.Now().Add(-olderThan)
	pruned := 0
	for fp, seat := range r.seats[licenseHash] {
		if seat.LastSeenAt.Before(cutoff) {
			delete(r.seats[licenseHash], fp)
			pruned++
		}
	}
	return pruned, nil
}

func (r *MemoryRegistry) Close(_ context.Context) error {
	return nil
}
