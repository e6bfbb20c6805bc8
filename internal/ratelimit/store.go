package ratelimit

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/lepinkainen/registry-preview/pkg/database"
	"github.com/oklog/ulid/v2"
)

// Record is one counted request or one block.
type Record struct {
	ID           string
	IPAddress    string
	Endpoint     string
	Timestamp    time.Time
	IsBlocked    bool
	BlockedUntil time.Time
}

// Store persists rate limit records.
type Store interface {
	// ActiveBlock returns the latest blockedUntil after now for the key, or the zero time.
	ActiveBlock(ctx context.Context, ip, endpoint string, now time.Time) (time.Time, error)
	// CountRequests counts non-blocking records for the key at or after since.
	CountRequests(ctx context.Context, ip, endpoint string, since time.Time) (int, error)
	Insert(ctx context.Context, rec Record) error
	// DeleteBefore removes records older than cutoff unless they still block at now.
	DeleteBefore(ctx context.Context, cutoff, now time.Time) (int64, error)
}

// SQLiteStore keeps records in the rate_limit_records table.
type SQLiteStore struct {
	db *database.Database
}

var _ Store = (*SQLiteStore)(nil)

// NewSQLiteStore wraps a migrated database.
func NewSQLiteStore(db *database.Database) *SQLiteStore {
	return &SQLiteStore{db: db}
}

func (s *SQLiteStore) ActiveBlock(ctx context.Context, ip, endpoint string, now time.Time) (time.Time, error) {
	var until sql.NullString
	err := s.db.DB().QueryRowContext(ctx, `
		SELECT MAX(blocked_until) FROM rate_limit_records
		WHERE ip_address = ? AND endpoint = ? AND is_blocked = 1 AND blocked_until > ?`,
		ip, endpoint, database.FormatTime(now)).Scan(&until)
	if errors.Is(err, sql.ErrNoRows) || (err == nil && !until.Valid) {
		return time.Time{}, nil
	}
	if err != nil {
		return time.Time{}, fmt.Errorf("failed to query active block: %w", err)
	}

	t, err := database.ParseTime(until.String)
	if err != nil {
		return time.Time{}, fmt.Errorf("failed to parse blocked_until: %w", err)
	}
	return t, nil
}

func (s *SQLiteStore) CountRequests(ctx context.Context, ip, endpoint string, since time.Time) (int, error) {
	var n int
	err := s.db.DB().QueryRowContext(ctx, `
		SELECT COUNT(*) FROM rate_limit_records
		WHERE ip_address = ? AND endpoint = ? AND is_blocked = 0 AND timestamp >= ?`,
		ip, endpoint, database.FormatTime(since)).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("failed to count requests: %w", err)
	}
	return n, nil
}

func (s *SQLiteStore) Insert(ctx context.Context, rec Record) error {
	if rec.ID == "" {
		rec.ID = ulid.Make().String()
	}

	var blockedUntil sql.NullString
	if !rec.BlockedUntil.IsZero() {
		blockedUntil = sql.NullString{String: database.FormatTime(rec.BlockedUntil), Valid: true}
	}

	_, err := s.db.DB().ExecContext(ctx, `
		INSERT INTO rate_limit_records (id, ip_address, endpoint, timestamp, is_blocked, blocked_until)
		VALUES (?, ?, ?, ?, ?, ?)`,
		rec.ID, rec.IPAddress, rec.Endpoint, database.FormatTime(rec.Timestamp), rec.IsBlocked, blockedUntil)
	if err != nil {
		return fmt.Errorf("failed to insert rate limit record: %w", err)
	}
	return nil
}

func (s *SQLiteStore) DeleteBefore(ctx context.Context, cutoff, now time.Time) (int64, error) {
	result, err := s.db.DB().ExecContext(ctx, `
		DELETE FROM rate_limit_records
		WHERE timestamp < ? AND (is_blocked = 0 OR blocked_until IS NULL OR blocked_until <= ?)`,
		database.FormatTime(cutoff), database.FormatTime(now))
	if err != nil {
		return 0, fmt.Errorf("failed to delete rate limit records: %w", err)
	}
	return result.RowsAffected()
}
