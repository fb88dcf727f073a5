package orders

import (
	"errors"
	"fmt"
	"time"

	"github.com/buildtall-systems/panelbot/internal/db"
	"github.com/buildtall-systems/panelbot/internal/inventory"
)

var (
	ErrOrderNotFound          = db.ErrOrderNotFound
	ErrCompletedOrderNotFound = db.ErrCompletedOrderNotFound

	// ErrInvalidStateTransition is matched by every *TransitionError.
	ErrInvalidStateTransition = errors.New("invalid state transition")
)

// TransitionError reports an event that is not allowed from the entity's
// current status. Nothing was changed.
type TransitionError struct {
	Entity string
	ID     int64
	Status string
	Event  string
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("%s #%d: cannot %s from %s", e.Entity, e.ID, e.Event, e.Status)
}

func (e *TransitionError) Is(target error) bool {
	return target == ErrInvalidStateTransition
}

// Order is an open order. Once fulfilled it is closed with status
// completed, its lines move to the CompletedOrder, and it leaves every
// open-order listing.
type Order struct {
	ID        int64
	Status    string
	CreatedBy string
	CreatedAt time.Time
	UpdatedAt time.Time
	Lines     []Line
}

// Amounts is what fulfilling the order takes from the ledger.
func (o *Order) Amounts() []inventory.Amount {
	return Amounts(o.Lines)
}

// CompletedOrder is the immutable record of a fulfilled order. Only Status
// changes after creation.
type CompletedOrder struct {
	ID             int64
	OrderID        int64
	Status         string
	CompletedBy    string
	OrderCreatedAt time.Time
	CompletedAt    time.Time
	UpdatedAt      time.Time
	Lines          []Line
}

// Amounts is what the order took from the ledger, and what a confirmed
// return puts back.
func (c *CompletedOrder) Amounts() []inventory.Amount {
	return Amounts(c.Lines)
}

// FromRow converts a stored order.
func FromRow(r *db.Order) (*Order, error) {
	lines, err := linesFromRows(r.Lines)
	if err != nil {
		return nil, fmt.Errorf("order #%d: %w", r.ID, err)
	}
	return &Order{
		ID:        r.ID,
		Status:    r.Status,
		CreatedBy: r.CreatedBy,
		CreatedAt: r.CreatedAt,
		UpdatedAt: r.UpdatedAt,
		Lines:     lines,
	}, nil
}

// CompletedFromRow converts a stored completed order.
func CompletedFromRow(r *db.CompletedOrder) (*CompletedOrder, error) {
	lines, err := linesFromRows(r.Lines)
	if err != nil {
		return nil, fmt.Errorf("completed order #%d: %w", r.ID, err)
	}
	return &CompletedOrder{
		ID:             r.ID,
		OrderID:        r.OrderID,
		Status:         r.Status,
		CompletedBy:    r.CompletedBy,
		OrderCreatedAt: r.OrderCreatedAt,
		CompletedAt:    r.CompletedAt,
		UpdatedAt:      r.UpdatedAt,
		Lines:          lines,
	}, nil
}
