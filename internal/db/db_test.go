package db

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/shopspring/decimal"
)

func setupTestDB(t *testing.T) *DB {
	t.Helper()

	db, err := Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("failed to open db: %v", err)
	}

	if err := db.Migrate(); err != nil {
		_ = db.Close()
		t.Fatalf("failed to migrate: %v", err)
	}

	t.Cleanup(func() { _ = db.Close() })

	return db
}

func TestMigrationStatus(t *testing.T) {
	db := setupTestDB(t)

	version, err := db.MigrationStatus()
	if err != nil {
		t.Fatalf("MigrationStatus() error: %v", err)
	}
	if version < 1 {
		t.Errorf("schema version = %d, want >= 1", version)
	}

	// Migrating twice is a no-op
	if err := db.Migrate(); err != nil {
		t.Fatalf("second Migrate() error: %v", err)
	}
}

func TestInTx_RollbackOnError(t *testing.T) {
	ctx := context.Background()
	db := setupTestDB(t)

	errBoom := errors.New("boom")
	err := db.InTx(ctx, func(tx *Tx) error {
		if err := tx.InsertStockRecord(ctx, "glue", "glue", decimal.NewFromInt(5)); err != nil {
			t.Fatalf("InsertStockRecord: %v", err)
		}
		return errBoom
	})
	if !errors.Is(err, errBoom) {
		t.Fatalf("InTx() error = %v, want %v", err, errBoom)
	}

	_, found, err := db.GetStockRecord(ctx, "glue")
	if err != nil {
		t.Fatalf("GetStockRecord: %v", err)
	}
	if found {
		t.Error("record should not exist after rollback")
	}
}

func TestInTx_Commit(t *testing.T) {
	ctx := context.Background()
	db := setupTestDB(t)

	err := db.InTx(ctx, func(tx *Tx) error {
		return tx.InsertStockRecord(ctx, "glue", "glue", decimal.NewFromInt(5))
	})
	if err != nil {
		t.Fatalf("InTx() error: %v", err)
	}

	rec, found, err := db.GetStockRecord(ctx, "glue")
	if err != nil {
		t.Fatalf("GetStockRecord: %v", err)
	}
	if !found {
		t.Fatal("record should exist after commit")
	}
	if !rec.Quantity.Equal(decimal.NewFromInt(5)) {
		t.Errorf("quantity = %s, want 5", rec.Quantity)
	}
}

func TestClassify(t *testing.T) {
	tests := []struct {
		name  string
		err   error
		stale bool
	}{
		{"nil", nil, false},
		{"busy", errors.New("database is locked (5) (SQLITE_BUSY)"), true},
		{"locked", errors.New("database is locked"), true},
		{"other", errors.New("no such table: x"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := classify(tt.err)
			if errors.Is(got, ErrStaleRecord) != tt.stale {
				t.Errorf("classify(%v) stale = %v, want %v", tt.err, !tt.stale, tt.stale)
			}
		})
	}
}
