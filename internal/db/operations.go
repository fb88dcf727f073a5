package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"
)

// ErrOrderNotFound indicates order does not exist.
var ErrOrderNotFound = errors.New("order not found")

// ErrCompletedOrderNotFound indicates the completed-order archive entry does not exist.
var ErrCompletedOrderNotFound = errors.New("completed order not found")

// OrderLine is the stored form of one line item. Kind selects which of
// Color, JointType and Thickness are meaningful.
type OrderLine struct {
	Position  int
	Kind      string
	Color     string
	JointType string
	Thickness string
	Quantity  int64
}

// Order represents an open (or closed) customer order.
type Order struct {
	ID        int64
	Status    string
	CreatedBy string
	CreatedAt time.Time
	UpdatedAt time.Time
	Lines     []OrderLine
}

// CompletedOrder is the immutable archive entry written at fulfillment.
type CompletedOrder struct {
	ID             int64
	OrderID        int64
	Status         string
	CompletedBy    string
	OrderCreatedAt time.Time
	CompletedAt    time.Time
	UpdatedAt      time.Time
	Lines          []OrderLine
}

// CreateOrder inserts an order in the 'new' state together with its lines.
func (db *DB) CreateOrder(ctx context.Context, createdBy string, lines []OrderLine) (*Order, error) {
	var order *Order
	err := db.InTx(ctx, func(tx *Tx) error {
		result, err := tx.tx.ExecContext(ctx, `
			INSERT INTO orders (status, created_by) VALUES ('new', ?)
		`, createdBy)
		if err != nil {
			return fmt.Errorf("creating order: %w", err)
		}

		id, err := result.LastInsertId()
		if err != nil {
			return fmt.Errorf("getting order id: %w", err)
		}

		for i, l := range lines {
			_, err := tx.tx.ExecContext(ctx, `
				INSERT INTO order_lines (order_id, position, kind, color, joint_type, thickness, quantity)
				VALUES (?, ?, ?, ?, ?, ?, ?)
			`, id, i, l.Kind, l.Color, l.JointType, l.Thickness, l.Quantity)
			if err != nil {
				return fmt.Errorf("creating order line %d: %w", i, err)
			}
		}

		order, err = getOrder(ctx, tx.tx, id)
		return err
	})
	if err != nil {
		return nil, err
	}
	return order, nil
}

// GetOrder returns an order with its lines.
func (db *DB) GetOrder(ctx context.Context, id int64) (*Order, error) {
	return getOrder(ctx, db.DB, id)
}

// GetOrder reads an order inside the transaction.
func (t *Tx) GetOrder(ctx context.Context, id int64) (*Order, error) {
	return getOrder(ctx, t.tx, id)
}

// ListOrders returns orders in any of statuses, oldest first.
// No statuses lists every order.
func (db *DB) ListOrders(ctx context.Context, statuses []string, limit int) ([]Order, error) {
	query := `SELECT id, status, created_by, created_at, updated_at FROM orders`
	args := make([]any, 0, len(statuses)+1)
	if len(statuses) > 0 {
		query += ` WHERE status IN (` + placeholders(len(statuses)) + `)`
		for _, s := range statuses {
			args = append(args, s)
		}
	}
	query += ` ORDER BY id ASC LIMIT ?`
	args = append(args, limit)

	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying orders: %w", err)
	}

	var orders []Order
	for rows.Next() {
		var o Order
		if err := rows.Scan(&o.ID, &o.Status, &o.CreatedBy, &o.CreatedAt, &o.UpdatedAt); err != nil {
			_ = rows.Close()
			return nil, fmt.Errorf("scanning order: %w", err)
		}
		orders = append(orders, o)
	}
	if err := rows.Err(); err != nil {
		_ = rows.Close()
		return nil, fmt.Errorf("iterating orders: %w", err)
	}
	_ = rows.Close()

	for i := range orders {
		lines, err := listLines(ctx, db.DB, "order_lines", "order_id", orders[i].ID)
		if err != nil {
			return nil, err
		}
		orders[i].Lines = lines
	}
	return orders, nil
}

// SetOrderStatus moves an order from one status to another. The atomic WHERE
// clause makes a concurrent change surface as ErrStaleRecord.
func (db *DB) SetOrderStatus(ctx context.Context, id int64, from, to string) error {
	return setStatus(ctx, db.DB, "orders", id, from, to, ErrOrderNotFound)
}

// ArchiveOrder closes an order as 'completed' and copies its lines into a new
// completed_orders entry. The open order keeps no lines afterwards.
func (t *Tx) ArchiveOrder(ctx context.Context, orderID int64, from, completedBy string) (int64, error) {
	if err := setStatus(ctx, t.tx, "orders", orderID, from, "completed", ErrOrderNotFound); err != nil {
		return 0, err
	}

	result, err := t.tx.ExecContext(ctx, `
		INSERT INTO completed_orders (order_id, status, completed_by, order_created_at)
		SELECT id, 'completed', ?, created_at FROM orders WHERE id = ?
	`, completedBy, orderID)
	if err != nil {
		return 0, classify(fmt.Errorf("archiving order: %w", err))
	}

	id, err := result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("getting completed order id: %w", err)
	}

	if _, err := t.tx.ExecContext(ctx, `
		INSERT INTO completed_order_lines (completed_order_id, position, kind, color, joint_type, thickness, quantity)
		SELECT ?, position, kind, color, joint_type, thickness, quantity
		FROM order_lines WHERE order_id = ?
	`, id, orderID); err != nil {
		return 0, classify(fmt.Errorf("archiving order lines: %w", err))
	}

	if _, err := t.tx.ExecContext(ctx, `DELETE FROM order_lines WHERE order_id = ?`, orderID); err != nil {
		return 0, classify(fmt.Errorf("closing order lines: %w", err))
	}

	return id, nil
}

// GetCompletedOrder returns an archive entry with its line snapshot.
func (db *DB) GetCompletedOrder(ctx context.Context, id int64) (*CompletedOrder, error) {
	return getCompletedOrder(ctx, db.DB, id)
}

// GetCompletedOrder reads an archive entry inside the transaction.
func (t *Tx) GetCompletedOrder(ctx context.Context, id int64) (*CompletedOrder, error) {
	return getCompletedOrder(ctx, t.tx, id)
}

// ListCompletedOrders returns archive entries, most recent first.
func (db *DB) ListCompletedOrders(ctx context.Context, statuses []string, limit int) ([]CompletedOrder, error) {
	query := `
		SELECT id, order_id, status, completed_by, order_created_at, completed_at, updated_at
		FROM completed_orders`
	args := make([]any, 0, len(statuses)+1)
	if len(statuses) > 0 {
		query += ` WHERE status IN (` + placeholders(len(statuses)) + `)`
		for _, s := range statuses {
			args = append(args, s)
		}
	}
	query += ` ORDER BY id DESC LIMIT ?`
	args = append(args, limit)

	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying completed orders: %w", err)
	}

	var completed []CompletedOrder
	for rows.Next() {
		var c CompletedOrder
		if err := rows.Scan(&c.ID, &c.OrderID, &c.Status, &c.CompletedBy, &c.OrderCreatedAt, &c.CompletedAt, &c.UpdatedAt); err != nil {
			_ = rows.Close()
			return nil, fmt.Errorf("scanning completed order: %w", err)
		}
		completed = append(completed, c)
	}
	if err := rows.Err(); err != nil {
		_ = rows.Close()
		return nil, fmt.Errorf("iterating completed orders: %w", err)
	}
	_ = rows.Close()

	for i := range completed {
		lines, err := listLines(ctx, db.DB, "completed_order_lines", "completed_order_id", completed[i].ID)
		if err != nil {
			return nil, err
		}
		completed[i].Lines = lines
	}
	return completed, nil
}

// SetCompletedOrderStatus moves an archive entry through the return workflow.
func (db *DB) SetCompletedOrderStatus(ctx context.Context, id int64, from, to string) error {
	return setStatus(ctx, db.DB, "completed_orders", id, from, to, ErrCompletedOrderNotFound)
}

// SetCompletedOrderStatus is the transactional form used when stock moves too.
func (t *Tx) SetCompletedOrderStatus(ctx context.Context, id int64, from, to string) error {
	return setStatus(ctx, t.tx, "completed_orders", id, from, to, ErrCompletedOrderNotFound)
}

func getOrder(ctx context.Context, q querier, id int64) (*Order, error) {
	var o Order
	err := q.QueryRowContext(ctx, `
		SELECT id, status, created_by, created_at, updated_at
		FROM orders WHERE id = ?
	`, id).Scan(&o.ID, &o.Status, &o.CreatedBy, &o.CreatedAt, &o.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrOrderNotFound
	}
	if err != nil {
		return nil, classify(fmt.Errorf("querying order: %w", err))
	}

	o.Lines, err = listLines(ctx, q, "order_lines", "order_id", id)
	if err != nil {
		return nil, err
	}
	return &o, nil
}

func getCompletedOrder(ctx context.Context, q querier, id int64) (*CompletedOrder, error) {
	var c CompletedOrder
	err := q.QueryRowContext(ctx, `
		SELECT id, order_id, status, completed_by, order_created_at, completed_at, updated_at
		FROM completed_orders WHERE id = ?
	`, id).Scan(&c.ID, &c.OrderID, &c.Status, &c.CompletedBy, &c.OrderCreatedAt, &c.CompletedAt, &c.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrCompletedOrderNotFound
	}
	if err != nil {
		return nil, classify(fmt.Errorf("querying completed order: %w", err))
	}

	c.Lines, err = listLines(ctx, q, "completed_order_lines", "completed_order_id", id)
	if err != nil {
		return nil, err
	}
	return &c, nil
}

// listLines reads the lines of an order or archive entry. table and column
// are package constants, never caller input.
func listLines(ctx context.Context, q querier, table, column string, id int64) ([]OrderLine, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT position, kind, color, joint_type, thickness, quantity
		FROM `+table+` WHERE `+column+` = ? ORDER BY position ASC
	`, id)
	if err != nil {
		return nil, classify(fmt.Errorf("querying %s: %w", table, err))
	}
	defer func() { _ = rows.Close() }()

	var lines []OrderLine
	for rows.Next() {
		var l OrderLine
		if err := rows.Scan(&l.Position, &l.Kind, &l.Color, &l.JointType, &l.Thickness, &l.Quantity); err != nil {
			return nil, fmt.Errorf("scanning %s: %w", table, err)
		}
		lines = append(lines, l)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating %s: %w", table, err)
	}
	return lines, nil
}

func setStatus(ctx context.Context, q querier, table string, id int64, from, to string, notFound error) error {
	result, err := q.ExecContext(ctx, `
		UPDATE `+table+` SET status = ?, updated_at = CURRENT_TIMESTAMP
		WHERE id = ? AND status = ?
	`, to, id, from)
	if err != nil {
		return classify(fmt.Errorf("updating %s status: %w", table, err))
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking rows affected: %w", err)
	}
	if rows > 0 {
		return nil
	}

	var exists bool
	if err := q.QueryRowContext(ctx, `SELECT EXISTS(SELECT 1 FROM `+table+` WHERE id = ?)`, id).Scan(&exists); err != nil {
		return classify(fmt.Errorf("checking %s: %w", table, err))
	}
	if !exists {
		return notFound
	}
	return fmt.Errorf("%w: %s %d is no longer %s", ErrStaleRecord, table, id, from)
}

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?,", n), ",")
}
