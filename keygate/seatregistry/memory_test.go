package seatregistry

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryRegistryAcquireLimit(t *testing.T) {
	ctx := context.Background()
	reg := NewMemoryRegistry()

	seat := func(fp string) SeatInfo {
		return SeatInfo{LicenseHash: "hash-1", Fingerprint: fp, Hostname: fp + "-host"}
	}

	_, err := reg.Acquire(ctx, seat("a"), 2)
	require.NoError(t, err)
	_, err = reg.Acquire(ctx, seat("b"), 2)
	require.NoError(t, err)

	// Third machine is over the limit.
	_, err = reg.Acquire(ctx, seat("c"), 2)
	assert.ErrorIs(t, err, ErrSeatsExhausted)

	// A holder re-acquires freely.
	got, err := reg.Acquire(ctx, seat("a"), 2)
	require.NoError(t, err)
	assert.Equal(t, "a", got.Fingerprint)

	count, err := reg.Count(ctx, "hash-1")
	require.NoError(t, err)
	assert.Equal(t, 2, count)

	// Releasing frees the seat for the waiting machine.
	require.NoError(t, reg.Release(ctx, "hash-1", "a"))
	_, err = reg.Acquire(ctx, seat("c"), 2)
	require.NoError(t, err)
}

func TestMemoryRegistryUnlimited(t *testing.T) {
	ctx := context.Background()
	reg := NewMemoryRegistry()

	for _, fp := range []string{"a", "b", "c", "d"} {
		_, err := reg.Acquire(ctx, SeatInfo{LicenseHash: "h", Fingerprint: fp}, 0)
		require.NoError(t, err)
	}
	count, err := reg.Count(ctx, "h")
	require.NoError(t, err)
	assert.Equal(t, 4, count)
}

func TestMemoryRegistryLicensesIsolated(t *testing.T) {
	ctx := context.Background()
	reg := NewMemoryRegistry()

	_, err := reg.Acquire(ctx, SeatInfo{LicenseHash: "h1", Fingerprint: "a"}, 1)
	require.NoError(t, err)

	// A different license has its own seat pool.
	_, err = reg.Acquire(ctx, SeatInfo{LicenseHash: "h2", Fingerprint: "b"}, 1)
	require.NoError(t, err)
}

func TestMemoryRegistryPrune(t *testing.T) {
	ctx := context.Background()
	reg := NewMemoryRegistry()

	_, err := reg.Acquire(ctx, SeatInfo{LicenseHash: "h", Fingerprint: "stale"}, 0)
	require.NoError(t, err)

	// Backdate the stale seat, then acquire a fresh one.
	reg.seats["h"]["stale"] = SeatInfo{
		LicenseHash: "h", Fingerprint: "stale",
		LastSeenAt: time.Now().Add(-2 * time.Hour),
	}
	_, err = reg.Acquire(ctx, SeatInfo{LicenseHash: "h", Fingerprint: "fresh"}, 0)
	require.NoError(t, err)

	pruned, err := reg.Prune(ctx, "h", time.Hour)
	require.NoError(t, err)
	assert.Equal(t, 1, pruned)

	count, err := reg.Count(ctx, "h")
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestMemoryRegistryTouch(t *testing.T) {
	ctx := context.Background()
	reg := NewMemoryRegistry()

	acquired, err := reg.Acquire(ctx, SeatInfo{LicenseHash: "h", Fingerprint: "a"}, 0)
	require.NoError(t, err)

	time.Sleep(time.Millisecond)
	require.NoError(t, reg.Touch(ctx, "h", "a"))

	seats, err := reg.List(ctx, "h")
	require.NoError(t, err)
	require.Len(t, seats, 1)
	assert.True(t, seats[0].LastSeenAt.After(acquired.LastSeenAt))
}
