// Package testing provides testing utilities and helpers for the screener project.
package testing

import (
	"fmt"
	"path/filepath"
	"testing"

	"github.com/aristath/screener/internal/database"
)

// NewTestDB creates a temporary SQLite database for testing with automatic schema migration.
// Returns the database instance and a cleanup function that closes the connection.
// The file lives in t.TempDir() and is removed by the testing package.
//
// Supported schema names:
//   - "screener" - applies screener_schema.sql
//   - Unknown names - creates empty database (no schema applied)
func NewTestDB(t *testing.T, name string) (*database.DB, func()) {
	t.Helper()

	tmpPath := filepath.Join(t.TempDir(), fmt.Sprintf("test_%s.db", name))

	db, err := database.New(database.Config{
		Path:    tmpPath,
		Profile: database.ProfileStandard,
		Name:    name,
	})
	if err != nil {
		t.Fatalf("Failed to create test database %s: %v", name, err)
	}

	if err := db.Migrate(); err != nil {
		_ = db.Close()
		t.Fatalf("Failed to migrate test database %s: %v", name, err)
	}

	return db, func() {
		if err := db.Close(); err != nil {
			// cleanup should be idempotent
			t.Logf("Warning: Failed to close test database %s: %v", name, err)
		}
	}
}
