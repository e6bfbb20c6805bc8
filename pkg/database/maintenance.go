package database

import (
	"context"
	"fmt"
	"os"
)

// Vacuum runs VACUUM to reclaim space after large cleanups.
func (db *Database) Vacuum(ctx context.Context) error {
	if _, err := db.DB().ExecContext(ctx, "VACUUM"); err != nil {
		return fmt.Errorf("failed to vacuum database: %w", err)
	}
	return nil
}

// FileSize returns the size of the database file in bytes
func (db *Database) FileSize() (int64, error) {
	info, err := os.Stat(db.dbPath)
	if err != nil {
		return 0, fmt.Errorf("failed to get database file info: %w", err)
	}
	return info.Size(), nil
}
