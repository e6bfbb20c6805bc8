package linkpreview

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/lepinkainen/registry-preview/pkg/database"
	"github.com/lepinkainen/registry-preview/pkg/dbinterfaces"
)

// SQLiteStore is the Store backed by the preview_cache table.
type SQLiteStore struct {
	db *database.Database
}

// Ensure SQLiteStore implements interfaces
var _ Store = (*SQLiteStore)(nil)
var _ dbinterfaces.StatsProvider = (*SQLiteStore)(nil)
var _ dbinterfaces.CleanupProvider = (*SQLiteStore)(nil)

// NewSQLiteStore wraps a migrated database.
func NewSQLiteStore(db *database.Database) *SQLiteStore {
	return &SQLiteStore{db: db}
}

const recordColumns = `url, title, description, image_url, site_name, price, availability, strategy, expires_at, created_at, updated_at`

// FindByURL returns the cached record for url regardless of expiry.
func (s *SQLiteStore) FindByURL(ctx context.Context, url string) (*Record, error) {
	row := s.db.DB().QueryRowContext(ctx,
		`SELECT `+recordColumns+` FROM preview_cache WHERE url = ?`, url)

	rec, err := scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query cached preview: %w", err)
	}
	return rec, nil
}

// Upsert writes rec, keeping the original created_at when the URL already exists.
func (s *SQLiteStore) Upsert(ctx context.Context, rec *Record) error {
	query := `
	INSERT INTO preview_cache (` + recordColumns + `)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT(url) DO UPDATE SET
		title = excluded.title,
		description = excluded.description,
		image_url = excluded.image_url,
		site_name = excluded.site_name,
		price = excluded.price,
		availability = excluded.availability,
		strategy = excluded.strategy,
		expires_at = excluded.expires_at,
		updated_at = excluded.updated_at
	`

	_, err := s.db.DB().ExecContext(ctx, query,
		rec.URL,
		nullString(rec.Title),
		nullString(rec.Description),
		nullString(rec.ImageURL),
		nullString(rec.SiteName),
		nullFloat(rec.Price),
		nullString(rec.Availability),
		rec.Strategy,
		database.FormatTime(rec.ExpiresAt),
		database.FormatTime(rec.CreatedAt),
		database.FormatTime(rec.UpdatedAt),
	)
	if err != nil {
		return fmt.Errorf("failed to save cached preview: %w", err)
	}
	return nil
}

// DeleteByURL removes the record for url, if any.
func (s *SQLiteStore) DeleteByURL(ctx context.Context, url string) error {
	if _, err := s.db.DB().ExecContext(ctx, `DELETE FROM preview_cache WHERE url = ?`, url); err != nil {
		return fmt.Errorf("failed to delete cached preview: %w", err)
	}
	return nil
}

// DeleteExpiredBefore removes expired cache entries
func (s *SQLiteStore) DeleteExpiredBefore(ctx context.Context, now time.Time) (int64, error) {
	result, err := s.db.DB().ExecContext(ctx,
		`DELETE FROM preview_cache WHERE expires_at < ?`, database.FormatTime(now))
	if err != nil {
		return 0, fmt.Errorf("failed to cleanup expired entries: %w", err)
	}

	rowsAffected, _ := result.RowsAffected()
	if rowsAffected > 0 {
		slog.Debug("Cleaned up expired preview cache entries", "count", rowsAffected)
	}
	return rowsAffected, nil
}

// Count returns the number of cached records.
func (s *SQLiteStore) Count(ctx context.Context) (int64, error) {
	var n int64
	if err := s.db.DB().QueryRowContext(ctx, `SELECT COUNT(*) FROM preview_cache`).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count cached previews: %w", err)
	}
	return n, nil
}

// CountNotExpired returns the number of records still valid at now.
func (s *SQLiteStore) CountNotExpired(ctx context.Context, now time.Time) (int64, error) {
	var n int64
	err := s.db.DB().QueryRowContext(ctx,
		`SELECT COUNT(*) FROM preview_cache WHERE expires_at >= ?`, database.FormatTime(now)).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("failed to count valid previews: %w", err)
	}
	return n, nil
}

// List returns up to limit records, most recently updated first.
func (s *SQLiteStore) List(ctx context.Context, limit int) ([]*Record, error) {
	rows, err := s.db.DB().QueryContext(ctx,
		`SELECT `+recordColumns+` FROM preview_cache ORDER BY updated_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list cached previews: %w", err)
	}
	defer rows.Close()

	var records []*Record
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan cached preview: %w", err)
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRecord(row rowScanner) (*Record, error) {
	var rec Record
	var title, description, imageURL, siteName, availability sql.NullString
	var price sql.NullFloat64
	var expiresAt, createdAt, updatedAt string

	err := row.Scan(&rec.URL, &title, &description, &imageURL, &siteName, &price,
		&availability, &rec.Strategy, &expiresAt, &createdAt, &updatedAt)
	if err != nil {
		return nil, err
	}

	rec.Title = title.String
	rec.Description = description.String
	rec.ImageURL = imageURL.String
	rec.SiteName = siteName.String
	rec.Availability = availability.String
	if price.Valid {
		p := price.Float64
		rec.Price = &p
	}

	if rec.ExpiresAt, err = database.ParseTime(expiresAt); err != nil {
		return nil, fmt.Errorf("invalid expires_at %q: %w", expiresAt, err)
	}
	if rec.CreatedAt, err = database.ParseTime(createdAt); err != nil {
		return nil, fmt.Errorf("invalid created_at %q: %w", createdAt, err)
	}
	if rec.UpdatedAt, err = database.ParseTime(updatedAt); err != nil {
		return nil, fmt.Errorf("invalid updated_at %q: %w", updatedAt, err)
	}
	return &rec, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func nullFloat(f *float64) sql.NullFloat64 {
	if f == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: *f, Valid: true}
}
