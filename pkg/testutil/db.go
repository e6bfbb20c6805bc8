package testutil

import (
	"path/filepath"
	"testing"

	"github.com/lepinkainen/registry-preview/pkg/database"
)

// TestDB opens a migrated sqlite database in a temporary directory.
// The database is closed when the test finishes.
func TestDB(t *testing.T) *database.Database {
	t.Helper()

	db, err := database.Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("Failed to open test database: %v", err)
	}
	t.Cleanup(func() {
		if err := db.Close(); err != nil {
			t.Errorf("Failed to close test database: %v", err)
		}
	})
	return db
}
