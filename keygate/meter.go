package keygate

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// UsageStats tracks usage against independent daily and monthly windows.
// Each {count, reset_at} pair is monotonic: ResetAt only ever advances to
// the start of a later UTC period, never regresses, so rolling the system
// clock back cannot grant a fresh quota.
type UsageStats struct {
	DailyCount     uint64    `json:"daily_count"`
	DailyResetAt   time.Time `json:"daily_reset_at"`
	MonthlyCount   uint64    `json:"monthly_count"`
	MonthlyResetAt time.Time `json:"monthly_reset_at"`
	LifetimeCount  uint64    `json:"lifetime_count"`
}

// startOfNextDay returns midnight UTC of the day after t.
func startOfNextDay(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day()+1, 0, 0, 0, 0, time.UTC)
}

// startOfNextMonth returns the first instant of the month after t, UTC.
func startOfNextMonth(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month()+1, 1, 0, 0, 0, 0, time.UTC)
}

// rollover applies any pending period resets before an increment or read.
// A reset fires only when now has reached ResetAt; a clock that regresses
// below ResetAt leaves the pair untouched.
func (s *UsageStats) rollover(now time.Time) {
	now = now.UTC()
	if s.DailyResetAt.IsZero() {
		s.DailyResetAt = startOfNextDay(now)
	} else if !now.Before(s.DailyResetAt) {
		s.DailyCount = 0
		s.DailyResetAt = startOfNextDay(now)
	}
	if s.MonthlyResetAt.IsZero() {
		s.MonthlyResetAt = startOfNextMonth(now)
	} else if !now.Before(s.MonthlyResetAt) {
		s.MonthlyCount = 0
		s.MonthlyResetAt = startOfNextMonth(now)
	}
}

// Count returns the counter for the given cap period.
func (s *UsageStats) Count(period CapPeriod) uint64 {
	switch period {
	case PeriodDaily:
		return s.DailyCount
	case PeriodMonthly:
		return s.MonthlyCount
	default:
		return s.LifetimeCount
	}
}

// UsageMeter persists UsageStats under a cache namespace. Updates are a
// read-modify-write sequence serialized by an internal mutex and written
// atomically (temp + rename), so concurrent callers in one process never
// lose increments.
type UsageMeter struct {
	mu    sync.Mutex
	path  string
	stats UsageStats
}

// NewUsageMeter opens (or initializes) the usage meter at path.
func NewUsageMeter(path string) (*UsageMeter, error) {
	m := &UsageMeter{path: path}

	raw, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return m, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%w: read meter: %v", ErrMeterIO, err)
	}
	if err := json.Unmarshal(raw, &m.stats); err != nil {
		return nil, fmt.Errorf("%w: decode meter: %v", ErrMeterIO, err)
	}
	return m, nil
}

// Increment applies one counted access: pending rollovers fire first, then
// every counter advances by one, then the stats are persisted.
func (m *UsageMeter) Increment(clock Clock) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.stats.rollover(clock.Now())
	m.stats.DailyCount++
	m.stats.MonthlyCount++
	m.stats.LifetimeCount++
	return m.save()
}

// Stats returns a rollover-adjusted snapshot of the current stats. The
// persisted state is not modified; adjustments are applied to the copy.
func (m *UsageMeter) Stats(clock Clock) UsageStats {
	m.mu.Lock()
	defer m.mu.Unlock()

	snapshot := m.stats
	snapshot.rollover(clock.Now())
	return snapshot
}

func (m *UsageMeter) save() error {
	if err := os.MkdirAll(filepath.Dir(m.path), 0o700); err != nil {
		return fmt.Errorf("%w: create meter dir: %v", ErrMeterIO, err)
	}
	raw, err := json.MarshalIndent(&m.stats, "", "  ")
	if err != nil {
		return fmt.Errorf("%w: serialize meter: %v", ErrMeterIO, err)
	}
	tmp := m.path + ".tmp"
	if err := os.WriteFile(tmp, raw, 0o600); err != nil {
		return fmt.Errorf("%w: write temp meter: %v", ErrMeterIO, err)
	}
	if err := os.Rename(tmp, m.path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("%w: rename meter: %v", ErrMeterIO, err)
	}
	return nil
}
