package keygate

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCheckAccess(t *testing.T) {
	valid := func() *LicenseState {
		return &LicenseState{Valid: true, Code: "VALID", Entitlements: []string{"PRO", "TEAM"}}
	}

	t.Run("valid license, no requirements", func(t *testing.T) {
		d := checkAccess(valid(), nil, UsageStats{}, nil)
		assert.True(t, d.Allowed)
		assert.NoError(t, d.Reason)
	})

	t.Run("invalid license denied with detail", func(t *testing.T) {
		state := &LicenseState{Valid: false, Code: "EXPIRED", Detail: "is expired"}
		d := checkAccess(state, nil, UsageStats{}, nil)
		assert.False(t, d.Allowed)
		assert.ErrorIs(t, d.Reason, ErrInvalidLicense)
		assert.Contains(t, d.Reason.Error(), "is expired")
	})

	t.Run("all required entitlements present", func(t *testing.T) {
		d := checkAccess(valid(), []string{"PRO", "TEAM"}, UsageStats{}, nil)
		assert.True(t, d.Allowed)
	})

	t.Run("one missing entitlement denies and names it", func(t *testing.T) {
		d := checkAccess(valid(), []string{"PRO", "ENTERPRISE"}, UsageStats{}, nil)
		assert.False(t, d.Allowed)
		assert.ErrorIs(t, d.Reason, ErrEntitlementMissing)

		var missing *EntitlementMissingError
		require.True(t, errors.As(d.Reason, &missing))
		assert.Equal(t, "ENTERPRISE", missing.Code)
	})

	t.Run("validity checked before entitlements", func(t *testing.T) {
		state := &LicenseState{Valid: false, Code: "SUSPENDED"}
		d := checkAccess(state, []string{"MISSING"}, UsageStats{}, nil)
		assert.ErrorIs(t, d.Reason, ErrInvalidLicense)
	})

	t.Run("provider cap exhausted", func(t *testing.T) {
		state := valid()
		state.MaxUses = 10
		state.Uses = 10
		d := checkAccess(state, nil, UsageStats{}, nil)
		assert.False(t, d.Allowed)
		assert.ErrorIs(t, d.Reason, ErrUsageLimitExceeded)
	})

	t.Run("provider cap zero means unlimited", func(t *testing.T) {
		state := valid()
		state.Uses = 1000000
		d := checkAccess(state, nil, UsageStats{}, nil)
		assert.True(t, d.Allowed)
	})

	t.Run("local daily cap reached", func(t *testing.T) {
		cap := &UsageCap{Period: PeriodDaily, Limit: 100}
		d := checkAccess(valid(), nil, UsageStats{DailyCount: 100}, cap)
		assert.False(t, d.Allowed)
		assert.ErrorIs(t, d.Reason, ErrUsageLimitExceeded)
	})

	t.Run("local cap checks only its own period", func(t *testing.T) {
		cap := &UsageCap{Period: PeriodDaily, Limit: 100}
		d := checkAccess(valid(), nil, UsageStats{DailyCount: 99, MonthlyCount: 5000}, cap)
		assert.True(t, d.Allowed)
	})

	t.Run("local lifetime cap", func(t *testing.T) {
		cap := &UsageCap{Period: PeriodLifetime, Limit: 500}
		d := checkAccess(valid(), nil, UsageStats{LifetimeCount: 500}, cap)
		assert.False(t, d.Allowed)
	})

	t.Run("zero-limit local cap means no cap", func(t *testing.T) {
		cap := &UsageCap{Period: PeriodDaily, Limit: 0}
		d := checkAccess(valid(), nil, UsageStats{DailyCount: 12345}, cap)
		assert.True(t, d.Allowed)
	})
}
