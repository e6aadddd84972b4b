package seatregistry

import (
	"context"
	"fmt"
	"regexp"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const defaultPostgresTable = "keygate_license_seats"

// validIdentifier matches safe PostgreSQL identifiers (letters, digits, underscores).
var validIdentifier = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

// PostgresOption configures a PostgresRegistry.
type PostgresOption func(*PostgresRegistry)

// WithTableName sets the PostgreSQL table name. Default: "keygate_license_seats".
func WithTableName(name string) PostgresOption {
	return func(r *PostgresRegistry) {
		r.tableName = name
	}
}

// PostgresRegistry implements SeatRegistry using PostgreSQL. Seat limits
// are enforced inside a transaction holding an advisory lock on the
// license hash, so concurrent claims for the last seat serialize.
type PostgresRegistry struct {
	pool      *pgxpool.Pool
	tableName string
}

// NewPostgresRegistry creates a new PostgreSQL-backed seat registry.
// It auto-creates the table and indexes on initialization.
func NewPostgresRegistry(ctx context.Context, pool *pgxpool.Pool, opts ...PostgresOption) (*PostgresRegistry, error) {
	r := &PostgresRegistry{
		pool:      pool,
		tableName: defaultPostgresTable,
	}
	for _, opt := range opts {
		opt(r)
	}
	if !validIdentifier.MatchString(r.tableName) {
		return nil, fmt.Errorf("invalid table name %q: must match [a-zA-Z_][a-zA-Z0-9_]*", r.tableName)
	}
	if err := r.ensureTable(ctx); err != nil {
		return nil, fmt.Errorf("create table: %w", err)
	}
	return r, nil
}

func (r *PostgresRegistry) ensureTable(ctx context.Context) error {
	query := fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			license_hash TEXT NOT NULL,
			fingerprint  TEXT NOT NULL,
			hostname     TEXT NOT NULL DEFAULT '',
			app_version  TEXT NOT NULL DEFAULT '',
			acquired_at  TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			last_seen_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			PRIMARY KEY (license_hash, fingerprint)
		);
		CREATE INDEX IF NOT EXISTS idx_%s_last_seen
			ON %s (license_hash, last_seen_at);
	`, r.tableName, r.tableName, r.tableName)
	_, err := r.pool.Exec(ctx, query)
	return err
}

func (r *PostgresRegistry) Acquire(ctx context.Context, seat SeatInfo, limit int) (*SeatInfo, error) {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return nil, fmt.Errorf("begin acquire: %w", err)
	}
	defer tx.Rollback(ctx)

	// Serialize claims per license so the count-then-insert below is safe.
	if _, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock(hashtext($1))`, seat.LicenseHash); err != nil {
		return nil, fmt.Errorf("lock license: %w", err)
	}

	now := time.Now()

	// Re-acquisition by the same fingerprint always succeeds.
	var held bool
	existsQuery := fmt.Sprintf(`SELECT EXISTS (SELECT 1 FROM %s WHERE license_hash = $1 AND fingerprint = $2)`, r.tableName)
	if err := tx.QueryRow(ctx, existsQuery, seat.LicenseHash, seat.Fingerprint).Scan(&held); err != nil {
		return nil, fmt.Errorf("check seat: %w", err)
	}

	if !held && limit > 0 {
		var count int
		countQuery := fmt.Sprintf(`SELECT COUNT(*) FROM %s WHERE license_hash = $1`, r.tableName)
		if err := tx.QueryRow(ctx, countQuery, seat.LicenseHash).Scan(&count); err != nil {
			return nil, fmt.Errorf("count seats: %w", err)
		}
		if count >= limit {
			return nil, ErrSeatsExhausted
		}
	}

	upsert := fmt.Sprintf(`
		INSERT INTO %s (license_hash, fingerprint, hostname, app_version, acquired_at, last_seen_at)
		VALUES ($1, $2, $3, $4, $5, $5)
		ON CONFLICT (license_hash, fingerprint) DO UPDATE SET
			hostname = EXCLUDED.hostname,
			app_version = EXCLUDED.app_version,
			last_seen_at = EXCLUDED.last_seen_at
		RETURNING acquired_at, last_seen_at
	`, r.tableName)
	err = tx.QueryRow(ctx, upsert,
		seat.LicenseHash, seat.Fingerprint, seat.Hostname, seat.AppVersion, now,
	).Scan(&seat.AcquiredAt, &seat.LastSeenAt)
	if err != nil {
		return nil, fmt.Errorf("acquire seat: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit acquire: %w", err)
	}
	return &seat, nil
}

func (r *PostgresRegistry) Release(ctx context.Context, licenseHash, fingerprint string) error {
	query := fmt.Sprintf(`DELETE FROM %s WHERE license_hash = $1 AND fingerprint = $2`, r.tableName)
	if _, err := r.pool.Exec(ctx, query, licenseHash, fingerprint); err != nil {
		return fmt.Errorf("release seat: %w", err)
	}
	return nil
}

func (r *PostgresRegistry) Count(ctx context.Context, licenseHash string) (int, error) {
	query := fmt.Sprintf(`SELECT COUNT(*) FROM %s WHERE license_hash = $1`, r.tableName)
	var count int
	if err := r.pool.QueryRow(ctx, query, licenseHash).Scan(&count); err != nil {
		return 0, fmt.Errorf("count seats: %w", err)
	}
	return count, nil
}

func (r *PostgresRegistry) List(ctx context.Context, licenseHash string) ([]SeatInfo, error) {
	query := fmt.Sprintf(`
		SELECT license_hash, fingerprint, hostname, app_version, acquired_at, last_seen_at
		FROM %s WHERE license_hash = $1 ORDER BY acquired_at
	`, r.tableName)

	rows, err := r.pool.Query(ctx, query, licenseHash)
	if err != nil {
		return nil, fmt.Errorf("list seats: %w", err)
	}
	defer rows.Close()

	var seats []SeatInfo
	for rows.Next() {
		var s SeatInfo
		if err := rows.Scan(&s.LicenseHash, &s.Fingerprint, &s.Hostname,
			&s.AppVersion, &s.AcquiredAt, &s.LastSeenAt); err != nil {
			return nil, fmt.Errorf("scan seat: %w", err)
		}
		seats = append(seats, s)
	}
	return seats, rows.Err()
}

func (r *PostgresRegistry) Touch(ctx context.Context, licenseHash, fingerprint string) error {
	query := fmt.Sprintf(`UPDATE %s SET last_seen_at = NOW() WHERE license_hash = $1 AND fingerprint = $2`, r.tableName)
	if _, err := r.pool.Exec(ctx, query, licenseHash, fingerprint); err != nil {
		return fmt.Errorf("touch seat: %w", err)
	}
	return nil
}

func (r *PostgresRegistry) Prune(ctx context.Context, licenseHash string, olderThan time.Duration) (int, error) {
	cutoff := time.Now().Add(-olderThan)
	query := fmt.Sprintf(`DELETE FROM %s WHERE license_hash = $1 AND last_seen_at < $2`, r.tableName)
	tag, err := r.pool.Exec(ctx, query, licenseHash, cutoff)
	if err != nil {
		return 0, fmt.Errorf("prune seats: %w", err)
	}
	return int(tag.RowsAffected()), nil
}

func (r *PostgresRegistry) Close(_ context.Context) error {
	return nil // caller manages the pgxpool.Pool lifecycle
}
