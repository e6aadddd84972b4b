package keygate

import (
	"context"
	"crypto/ed25519"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/singleflight"

	"github.com/keygate-io/keygate-sdk/keygate/seatregistry"
)

// Manager is the top-level entry point: it validates license keys online,
// maintains the authenticated offline cache, meters local usage, and
// evaluates access policy. A single Manager is safe for concurrent use.
type Manager struct {
	cfg         Config
	key         ed25519.PublicKey
	clock       Clock
	client      *OnlineClient
	cache       *FileCache
	meter       *UsageMeter
	seats       seatregistry.SeatRegistry
	localCap    *UsageCap
	fingerprint string
	log         logrus.FieldLogger
	group       singleflight.Group

	// heldSeat remembers the license hash of an acquired seat so Shutdown
	// can release it.
	seatMu   sync.Mutex
	heldSeat string
}

// ManagerOption configures a Manager.
type ManagerOption func(*Manager)

// WithClock substitutes the time source. Intended for tests.
func WithClock(clock Clock) ManagerOption {
	return func(m *Manager) {
		m.clock = clock
	}
}

// WithLogger sets the logger. Defaults to the logrus standard logger.
func WithLogger(log logrus.FieldLogger) ManagerOption {
	return func(m *Manager) {
		m.log = log
	}
}

// WithOnlineClient substitutes the validation client, e.g. one pointed at
// a test server or a self-hosted provider.
func WithOnlineClient(client *OnlineClient) ManagerOption {
	return func(m *Manager) {
		m.client = client
	}
}

// WithSeatRegistry enables floating-seat enforcement through the given
// registry. Without one, the provider's maxMachines cap is not enforced
// locally.
func WithSeatRegistry(reg seatregistry.SeatRegistry) ManagerOption {
	return func(m *Manager) {
		m.seats = reg
	}
}

// WithUsageCap sets a locally enforced usage cap in addition to any
// provider-side cap.
func WithUsageCap(cap UsageCap) ManagerOption {
	return func(m *Manager) {
		m.localCap = &cap
	}
}

// WithFingerprint overrides machine fingerprint derivation.
func WithFingerprint(fp string) ManagerOption {
	return func(m *Manager) {
		m.fingerprint = fp
	}
}

// ValidationResult is the outcome of a key validation.
type ValidationResult struct {
	// State is the verified, normalized license state.
	State *LicenseState

	// Decision is the access policy verdict for the configured
	// entitlements and caps.
	Decision AccessDecision

	// FromCache reports whether the result was served from the
	// authenticated offline cache rather than a live response.
	FromCache bool
}

// NewManager builds a Manager from the given configuration. The public key
// is decoded once here; a malformed key is a construction error, never a
// runtime denial.
func NewManager(cfg Config, opts ...ManagerOption) (*Manager, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	key, err := decodePublicKey(cfg.PublicKeyHex)
	if err != nil {
		return nil, err
	}

	m := &Manager{cfg: cfg, key: key}
	for _, opt := range opts {
		opt(m)
	}

	if m.clock == nil {
		m.clock = SystemClock{}
	}
	if m.log == nil {
		m.log = logrus.StandardLogger()
	}
	if m.fingerprint == "" {
		m.fingerprint = Fingerprint()
	}
	if m.client == nil {
		ua := cfg.UserAgentProduct
		if ua == "" {
			ua = cfg.AppName
		}
		m.client, err = NewOnlineClient(cfg.AccountID,
			WithUserAgent(fmt.Sprintf("%s keygate-sdk-go/%s", ua, sdkVersion)))
		if err != nil {
			return nil, err
		}
	}

	if cfg.CacheDir != "" {
		m.cache, err = NewFileCacheAt(cfg.CacheDir)
	} else {
		m.cache, err = NewFileCache(cfg.CacheNamespace)
	}
	if err != nil {
		return nil, err
	}

	m.meter, err = NewUsageMeter(filepath.Join(m.cache.Dir(), "usage.json"))
	if err != nil {
		return nil, err
	}
	return m, nil
}

// ValidateKey validates a license key, online when possible and against
// the authenticated offline cache when the server is unreachable. The
// offline fallback triggers only on transport failure: a response that
// arrives but fails verification is rejected outright, never papered over
// with cached state.
//
// Concurrent validations of the same key are coalesced into one network
// call.
func (m *Manager) ValidateKey(ctx context.Context, licenseKey string) (*ValidationResult, error) {
	if licenseKey == "" {
		return nil, ErrMissingLicense
	}

	key := cacheKey(m.cfg.AccountID, m.cfg.Product, licenseKey)
	v, err, _ := m.group.Do(key, func() (interface{}, error) {
		return m.validate(ctx, licenseKey, key)
	})
	if err != nil {
		return nil, err
	}
	return v.(*ValidationResult), nil
}

func (m *Manager) validate(ctx context.Context, licenseKey, key string) (*ValidationResult, error) {
	resp, err := m.client.ValidateKey(ctx, ValidateKeyRequest{
		LicenseKey:   licenseKey,
		Entitlements: m.cfg.RequiredEntitlements,
		Fingerprint:  m.fingerprint,
	})
	if err != nil {
		if errors.Is(err, ErrTransport) {
			m.log.WithError(err).Warn("license server unreachable, trying offline cache")
			return m.validateOffline(ctx, key)
		}
		metricValidations.WithLabelValues("error").Inc()
		return nil, err
	}

	v := &verifier{key: m.key, clock: m.clock}
	body, err := v.verifyLive(resp)
	if err != nil {
		metricValidations.WithLabelValues("error").Inc()
		metricTrustFailures.WithLabelValues(trustFailureReason(err)).Inc()
		m.log.WithError(err).Error("response verification failed")
		return nil, err
	}

	state, err := parseLicenseState(body)
	if err != nil {
		metricValidations.WithLabelValues("error").Inc()
		return nil, err
	}

	// Cache before policy: a verified "invalid" verdict is still worth
	// caching, so offline checks reflect the provider's latest word.
	if err := m.cache.Save(key, newCacheRecord(resp, m.clock)); err != nil {
		m.log.WithError(err).Warn("could not persist offline cache record")
	}

	result := &ValidationResult{State: state}
	result.Decision = m.decide(ctx, state, key)
	if result.Decision.Allowed {
		metricValidations.WithLabelValues("online").Inc()
	} else {
		metricValidations.WithLabelValues("denied").Inc()
	}
	return result, nil
}

// validateOffline serves a validation from the authenticated cache. Every
// load re-runs the full cryptographic check; a tampered record is
// quarantined and reported, never silently dropped.
func (m *Manager) validateOffline(ctx context.Context, key string) (*ValidationResult, error) {
	record, err := m.cache.Load(key)
	if err != nil {
		metricCacheLoads.WithLabelValues("tampered").Inc()
		if qerr := m.cache.Quarantine(key); qerr != nil {
			m.log.WithError(qerr).Warn("could not quarantine unreadable cache record")
		}
		return nil, ErrCacheTampered
	}
	if record == nil {
		metricCacheLoads.WithLabelValues("miss").Inc()
		metricValidations.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("%w: server unreachable and no offline cache", ErrTransport)
	}

	if err := record.Verify(m.key, m.cfg.OfflineGrace, m.clock); err != nil {
		if errors.Is(err, ErrCacheExpired) {
			metricCacheLoads.WithLabelValues("expired").Inc()
			return nil, err
		}
		metricCacheLoads.WithLabelValues("tampered").Inc()
		m.log.Error("offline cache record failed verification, quarantining")
		if qerr := m.cache.Quarantine(key); qerr != nil {
			m.log.WithError(qerr).Warn("could not quarantine tampered cache record")
		}
		return nil, err
	}
	metricCacheLoads.WithLabelValues("hit").Inc()

	state, err := parseLicenseState([]byte(record.Body))
	if err != nil {
		return nil, err
	}

	result := &ValidationResult{State: state, FromCache: true}
	result.Decision = m.decide(ctx, state, key)
	if result.Decision.Allowed {
		metricValidations.WithLabelValues("offline").Inc()
	} else {
		metricValidations.WithLabelValues("denied").Inc()
	}
	return result, nil
}

// decide runs the access policy, including seat acquisition when a seat
// registry is configured and the license carries a machine cap.
func (m *Manager) decide(ctx context.Context, state *LicenseState, key string) AccessDecision {
	decision := checkAccess(state, m.cfg.RequiredEntitlements, m.meter.Stats(m.clock), m.localCap)
	if !decision.Allowed {
		return decision
	}

	if m.seats != nil && state.MaxMachines > 0 {
		hostname, _ := os.Hostname()
		_, err := m.seats.Acquire(ctx, seatregistry.SeatInfo{
			LicenseHash: key,
			Fingerprint: m.fingerprint,
			Hostname:    hostname,
			AppVersion:  m.cfg.AppName,
		}, state.MaxMachines)
		if errors.Is(err, seatregistry.ErrSeatsExhausted) {
			return deny(fmt.Errorf("%w: all %d seats taken", ErrSeatLimitExceeded, state.MaxMachines))
		}
		if err != nil {
			// Fail closed: an unreachable registry cannot hand out seats.
			return deny(fmt.Errorf("%w: seat registry: %v", ErrSeatLimitExceeded, err))
		}
		m.seatMu.Lock()
		m.heldSeat = key
		m.seatMu.Unlock()
	}
	return decision
}

// CheckAccess evaluates access using only the offline cache, with no
// network traffic and no usage increment. Useful for fast startup gating
// between periodic online validations.
func (m *Manager) CheckAccess(licenseKey string) (AccessDecision, error) {
	if licenseKey == "" {
		return deny(ErrMissingLicense), ErrMissingLicense
	}

	key := cacheKey(m.cfg.AccountID, m.cfg.Product, licenseKey)
	record, err := m.cache.Load(key)
	if err != nil {
		return deny(ErrCacheTampered), ErrCacheTampered
	}
	if record == nil {
		err := fmt.Errorf("%w: no offline cache record", ErrTransport)
		return deny(err), err
	}
	if err := record.Verify(m.key, m.cfg.OfflineGrace, m.clock); err != nil {
		return deny(err), err
	}

	state, err := parseLicenseState([]byte(record.Body))
	if err != nil {
		return deny(err), err
	}
	return checkAccess(state, m.cfg.RequiredEntitlements, m.meter.Stats(m.clock), m.localCap), nil
}

// RecordUsage counts one metered access. The local cap is checked before
// incrementing, so the unit of work that would exceed the cap is denied
// rather than counted.
func (m *Manager) RecordUsage() error {
	if m.localCap != nil && m.localCap.Limit > 0 {
		stats := m.meter.Stats(m.clock)
		if stats.Count(m.localCap.Period) >= m.localCap.Limit {
			return fmt.Errorf("%w: %s cap of %d reached", ErrUsageLimitExceeded, m.localCap.Period, m.localCap.Limit)
		}
	}
	return m.meter.Increment(m.clock)
}

// Usage returns the current usage statistics.
func (m *Manager) Usage() UsageStats {
	return m.meter.Stats(m.clock)
}

// ClearCache removes all offline cache records for this namespace.
func (m *Manager) ClearCache() error {
	return m.cache.Clear()
}

// Shutdown releases the held seat, if any, and closes the seat registry.
func (m *Manager) Shutdown(ctx context.Context) error {
	if m.seats == nil {
		return nil
	}
	m.seatMu.Lock()
	held := m.heldSeat
	m.seatMu.Unlock()
	if held != "" {
		if err := m.seats.Release(ctx, held, m.fingerprint); err != nil {
			m.log.WithError(err).Warn("could not release seat")
		}
	}
	return m.seats.Close(ctx)
}
