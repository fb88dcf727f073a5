package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// StockRecord is one fungible inventory bucket.
type StockRecord struct {
	Key       string
	Kind      string
	Quantity  decimal.Decimal
	Version   int64
	CreatedAt time.Time
	UpdatedAt time.Time
}

// GetStockRecord returns the record for key, or found=false if it does not exist.
func (db *DB) GetStockRecord(ctx context.Context, key string) (*StockRecord, bool, error) {
	return getStockRecord(ctx, db.DB, key)
}

// ListStockRecords returns every stock record ordered by key.
// An empty kind lists all kinds.
func (db *DB) ListStockRecords(ctx context.Context, kind string) ([]StockRecord, error) {
	query := `
		SELECT resource_key, kind, quantity, version, created_at, updated_at
		FROM stock_records`
	var args []any
	if kind != "" {
		query += ` WHERE kind = ?`
		args = append(args, kind)
	}
	query += ` ORDER BY resource_key ASC`

	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying stock records: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var records []StockRecord
	for rows.Next() {
		var r StockRecord
		if err := rows.Scan(&r.Key, &r.Kind, &r.Quantity, &r.Version, &r.CreatedAt, &r.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scanning stock record: %w", err)
		}
		records = append(records, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating stock records: %w", err)
	}
	return records, nil
}

// GetStockRecord reads a record inside the transaction.
func (t *Tx) GetStockRecord(ctx context.Context, key string) (*StockRecord, bool, error) {
	return getStockRecord(ctx, t.tx, key)
}

// InsertStockRecord creates a record at version 0. Returns ErrStaleRecord if
// another writer created the key first.
func (t *Tx) InsertStockRecord(ctx context.Context, key, kind string, quantity decimal.Decimal) error {
	_, err := t.tx.ExecContext(ctx, `
		INSERT INTO stock_records (resource_key, kind, quantity, version)
		VALUES (?, ?, ?, 0)
	`, key, kind, quantity)
	if isUniqueViolation(err) {
		return fmt.Errorf("%w: %s created concurrently", ErrStaleRecord, key)
	}
	if err != nil {
		return classify(fmt.Errorf("inserting stock record: %w", err))
	}
	return nil
}

// UpdateStockQuantity writes a new quantity if the record is still at version.
// The version is bumped on success; ErrStaleRecord is returned otherwise.
func (t *Tx) UpdateStockQuantity(ctx context.Context, key string, quantity decimal.Decimal, version int64) error {
	result, err := t.tx.ExecContext(ctx, `
		UPDATE stock_records
		SET quantity = ?, version = version + 1, updated_at = CURRENT_TIMESTAMP
		WHERE resource_key = ? AND version = ?
	`, quantity, key, version)
	if err != nil {
		return classify(fmt.Errorf("updating stock record: %w", err))
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("%w: %s changed since version %d", ErrStaleRecord, key, version)
	}
	return nil
}

// DeleteStockRecord removes a record if it is still at version.
func (t *Tx) DeleteStockRecord(ctx context.Context, key string, version int64) error {
	result, err := t.tx.ExecContext(ctx, `
		DELETE FROM stock_records WHERE resource_key = ? AND version = ?
	`, key, version)
	if err != nil {
		return classify(fmt.Errorf("deleting stock record: %w", err))
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("%w: %s changed since version %d", ErrStaleRecord, key, version)
	}
	return nil
}

func getStockRecord(ctx context.Context, q querier, key string) (*StockRecord, bool, error) {
	var r StockRecord
	err := q.QueryRowContext(ctx, `
		SELECT resource_key, kind, quantity, version, created_at, updated_at
		FROM stock_records WHERE resource_key = ?
	`, key).Scan(&r.Key, &r.Kind, &r.Quantity, &r.Version, &r.CreatedAt, &r.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, classify(fmt.Errorf("querying stock record: %w", err))
	}
	return &r, true, nil
}
