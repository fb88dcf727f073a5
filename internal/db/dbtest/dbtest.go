// Package dbtest opens migrated throwaway databases for tests.
package dbtest

import (
	"path/filepath"
	"testing"

	"github.com/buildtall-systems/panelbot/internal/db"
)

// Open returns a migrated database in a per-test temp directory.
// A file is used rather than :memory: so concurrent tests share one database.
func Open(t *testing.T) *db.DB {
	t.Helper()

	database, err := db.Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("opening test db: %v", err)
	}

	if err := database.Migrate(); err != nil {
		_ = database.Close()
		t.Fatalf("migrating test db: %v", err)
	}

	t.Cleanup(func() { _ = database.Close() })

	return database
}
