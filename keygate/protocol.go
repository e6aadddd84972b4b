package keygate

import (
	"encoding/json"
	"fmt"
	"time"
)

// validateResponse is the raw shape of the provider's validate-key body.
type validateResponse struct {
	Meta validateMeta         `json:"meta"`
	Data *validateLicenseData `json:"data"`
}

type validateMeta struct {
	Valid  bool           `json:"valid"`
	Code   string         `json:"code"`
	Detail string         `json:"detail"`
	Scope  *validateScope `json:"scope"`
}

type validateScope struct {
	Entitlements []string `json:"entitlements"`
}

type validateLicenseData struct {
	ID         string             `json:"id"`
	Type       string             `json:"type"`
	Attributes validateAttributes `json:"attributes"`
}

type validateAttributes struct {
	Name        string `json:"name"`
	Expiry      string `json:"expiry"`
	MaxUses     uint64 `json:"maxUses"`
	Uses        uint64 `json:"uses"`
	MaxMachines int    `json:"maxMachines"`
}

// LicenseState is the normalized license state extracted from a verified
// provider response. It is only ever constructed by parseLicenseState;
// nothing else in the SDK builds one by hand.
type LicenseState struct {
	// Valid reports whether the provider considers the license valid.
	Valid bool `json:"valid"`

	// Entitlements holds the entitlement codes echoed back by the
	// provider. The provider only echoes codes that were asserted in the
	// request scope, so this is empty when no scope was requested; that is
	// a provider limitation, not an SDK bug.
	Entitlements []string `json:"entitlements"`

	// ExpiresAt is the license expiry in UTC, nil if the license does not
	// expire.
	ExpiresAt *time.Time `json:"expires_at,omitempty"`

	// MaxUses is the provider-side usage cap; 0 means unlimited.
	MaxUses uint64 `json:"max_uses,omitempty"`

	// Uses is the provider-side use count.
	Uses uint64 `json:"uses,omitempty"`

	// MaxMachines is the seat cap for floating licenses; 0 means
	// unlimited.
	MaxMachines int `json:"max_machines,omitempty"`

	// Code is the provider's validation code (e.g. "VALID", "EXPIRED"),
	// preserved for diagnostics.
	Code string `json:"code"`

	// Detail is the provider's human-readable detail message.
	Detail string `json:"detail,omitempty"`
}

// parseLicenseState strictly deserializes a verified response body into a
// normalized LicenseState. A body that does not carry the expected
// top-level structure yields ErrProtocol, which is deliberately distinct
// from the trust errors: a caller can tell a format problem from a trust
// problem.
func parseLicenseState(body []byte) (*LicenseState, error) {
	var resp validateResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrProtocol, err)
	}
	if resp.Meta.Code == "" && resp.Data == nil {
		return nil, fmt.Errorf("%w: missing meta", ErrProtocol)
	}

	state := &LicenseState{
		Valid:  resp.Meta.Valid,
		Code:   resp.Meta.Code,
		Detail: resp.Meta.Detail,
	}
	if resp.Meta.Scope != nil {
		state.Entitlements = resp.Meta.Scope.Entitlements
	}
	if resp.Data != nil {
		attrs := resp.Data.Attributes
		state.MaxUses = attrs.MaxUses
		state.Uses = attrs.Uses
		state.MaxMachines = attrs.MaxMachines
		if attrs.Expiry != "" {
			expiry, err := time.Parse(time.RFC3339, attrs.Expiry)
			if err != nil {
				return nil, fmt.Errorf("%w: invalid expiry %q: %v", ErrProtocol, attrs.Expiry, err)
			}
			utc := expiry.UTC()
			state.ExpiresAt = &utc
		}
	}
	return state, nil
}

// HasEntitlement reports whether the license carries the given code.
func (s *LicenseState) HasEntitlement(code string) bool {
	for _, e := range s.Entitlements {
		if e == code {
			return true
		}
	}
	return false
}
