package keygate

import "fmt"

// CapPeriod selects which usage window a local cap applies to.
type CapPeriod string

const (
	PeriodDaily    CapPeriod = "daily"
	PeriodMonthly  CapPeriod = "monthly"
	PeriodLifetime CapPeriod = "lifetime"
)

// UsageCap is a locally enforced usage limit, checked against the meter
// in addition to any provider-side cap. Limit 0 means no local cap.
type UsageCap struct {
	Period CapPeriod
	Limit  uint64
}

// AccessDecision is the outcome of an access check. Denials always carry
// a reason; there is no bare-boolean deny.
type AccessDecision struct {
	// Allowed reports whether access is granted.
	Allowed bool

	// Reason is nil when Allowed, otherwise the specific denial. It
	// wraps one of ErrInvalidLicense, ErrEntitlementMissing or
	// ErrUsageLimitExceeded.
	Reason error
}

func allow() AccessDecision {
	return AccessDecision{Allowed: true}
}

func deny(reason error) AccessDecision {
	return AccessDecision{Allowed: false, Reason: reason}
}

// checkAccess evaluates a verified license state against the required
// entitlements and usage caps. Checks run in a fixed order and stop at
// the first failure:
//
//  1. provider validity
//  2. required entitlements, in the order configured
//  3. provider-side use cap (maxUses vs uses)
//  4. local cap against the usage meter
//
// Expiry is not re-checked here: the provider already folds expiry into
// its validity verdict, and second-guessing it with the local clock would
// reintroduce the clock as a trust input.
func checkAccess(state *LicenseState, required []string, stats UsageStats, localCap *UsageCap) AccessDecision {
	if !state.Valid {
		if state.Detail != "" {
			return deny(fmt.Errorf("%w: %s", ErrInvalidLicense, state.Detail))
		}
		return deny(ErrInvalidLicense)
	}

	for _, code := range required {
		if !state.HasEntitlement(code) {
			return deny(&EntitlementMissingError{Code: code})
		}
	}

	if state.MaxUses > 0 && state.Uses >= state.MaxUses {
		return deny(fmt.Errorf("%w: %d of %d uses consumed", ErrUsageLimitExceeded, state.Uses, state.MaxUses))
	}

	if localCap != nil && localCap.Limit > 0 {
		if count := stats.Count(localCap.Period); count >= localCap.Limit {
			return deny(fmt.Errorf("%w: %s cap of %d reached", ErrUsageLimitExceeded, localCap.Period, localCap.Limit))
		}
	}

	return allow()
}
