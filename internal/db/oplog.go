package db

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// Operation is one append-only audit entry for a single stock mutation.
type Operation struct {
	ID           int64
	BatchID      string
	ResourceKey  string
	Delta        decimal.Decimal
	BalanceAfter decimal.Decimal
	Actor        string
	Reason       string
	CreatedAt    time.Time
}

// AppendOperation writes an audit entry as part of the transaction.
func (t *Tx) AppendOperation(ctx context.Context, op Operation) error {
	_, err := t.tx.ExecContext(ctx, `
		INSERT INTO operation_log (batch_id, resource_key, delta, balance_after, actor, reason)
		VALUES (?, ?, ?, ?, ?, ?)
	`, op.BatchID, op.ResourceKey, op.Delta, op.BalanceAfter, op.Actor, op.Reason)
	if err != nil {
		return classify(fmt.Errorf("appending operation: %w", err))
	}
	return nil
}

// ListOperations returns the most recent audit entries first.
// An empty key lists entries for every resource.
func (db *DB) ListOperations(ctx context.Context, key string, limit int) ([]Operation, error) {
	query := `
		SELECT id, batch_id, resource_key, delta, balance_after, actor, reason, created_at
		FROM operation_log`
	var args []any
	if key != "" {
		query += ` WHERE resource_key = ?`
		args = append(args, key)
	}
	query += ` ORDER BY id DESC LIMIT ?`
	args = append(args, limit)

	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying operations: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var ops []Operation
	for rows.Next() {
		var op Operation
		if err := rows.Scan(&op.ID, &op.BatchID, &op.ResourceKey, &op.Delta, &op.BalanceAfter, &op.Actor, &op.Reason, &op.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning operation: %w", err)
		}
		ops = append(ops, op)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating operations: %w", err)
	}
	return ops, nil
}

// CountOperations returns the total number of audit entries.
func (db *DB) CountOperations(ctx context.Context) (int, error) {
	var n int
	if err := db.QueryRowContext(ctx, `SELECT COUNT(*) FROM operation_log`).Scan(&n); err != nil {
		return 0, fmt.Errorf("counting operations: %w", err)
	}
	return n, nil
}
