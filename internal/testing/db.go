// Package testing provides testing utilities and helpers shared by the
// package tests.
package testing

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/best-seungwoo/MOSQ-ICCD/internal/database"
)

// NewTestDB creates a file-backed SQLite database in a temporary directory
// and applies schemas/<name>_schema.sql. The database is closed when the test
// ends; the returned cleanup function may be called earlier and is idempotent.
func NewTestDB(t *testing.T, name string) (*database.DB, func()) {
	t.Helper()

	path := filepath.Join(t.TempDir(), name+".db")
	db, err := database.New(database.Config{
		Path:    path,
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

	closed := false
	cleanup := func() {
		if !closed {
			closed = true
			_ = db.Close()
		}
	}
	t.Cleanup(cleanup)
	return db, cleanup
}

// CreateTempDBFile returns a path for a database file that does not exist yet.
func CreateTempDBFile(t *testing.T, name string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name+".db")
	if _, err := os.Stat(path); err == nil {
		t.Fatalf("Temporary database path %s already exists", path)
	}
	return path
}
