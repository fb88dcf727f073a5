package orders

import (
	"context"
	"errors"
	"fmt"

	"github.com/buildtall-systems/panelbot/internal/db"
	"github.com/buildtall-systems/panelbot/internal/fsm"
	"github.com/buildtall-systems/panelbot/internal/inventory"
	"github.com/buildtall-systems/panelbot/internal/metrics"
	"go.uber.org/zap"
)

// OpenStatuses are the statuses of orders that still await fulfillment or
// cancellation.
var OpenStatuses = []string{fsm.OrderStateNew, fsm.OrderStateReserved, fsm.OrderStatePending}

const maxStatusAttempts = 3

// Ledger owns orders before fulfillment. None of its operations touch stock.
type Ledger struct {
	db      *db.DB
	machine *fsm.OrderStateMachine
	logger  *zap.Logger
}

func NewLedger(database *db.DB, logger *zap.Logger) *Ledger {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Ledger{db: database, machine: fsm.NewOrderStateMachine(), logger: logger}
}

// Create validates lines and stores a new order. The actor attached to ctx
// is recorded as its creator.
func (l *Ledger) Create(ctx context.Context, lines []Line) (*Order, error) {
	if err := ValidateLines(lines); err != nil {
		return nil, err
	}

	rows := make([]db.OrderLine, 0, len(lines))
	for _, line := range lines {
		row, err := toRow(line)
		if err != nil {
			return nil, &ValidationError{Problems: []string{err.Error()}}
		}
		rows = append(rows, row)
	}

	stored, err := l.db.CreateOrder(ctx, inventory.ActorFrom(ctx), rows)
	if err != nil {
		return nil, fmt.Errorf("creating order: %w", err)
	}

	order, err := FromRow(stored)
	if err != nil {
		return nil, err
	}

	l.logger.Info("order created",
		zap.Int64("order_id", order.ID),
		zap.String("created_by", order.CreatedBy),
		zap.Int("lines", len(order.Lines)))
	return order, nil
}

func (l *Ledger) Get(ctx context.Context, id int64) (*Order, error) {
	stored, err := l.db.GetOrder(ctx, id)
	if err != nil {
		return nil, err
	}
	return FromRow(stored)
}

// List returns orders in any of statuses, oldest first.
func (l *Ledger) List(ctx context.Context, statuses []string, limit int) ([]*Order, error) {
	stored, err := l.db.ListOrders(ctx, statuses, limit)
	if err != nil {
		return nil, err
	}
	out := make([]*Order, 0, len(stored))
	for i := range stored {
		o, err := FromRow(&stored[i])
		if err != nil {
			return nil, err
		}
		out = append(out, o)
	}
	return out, nil
}

// Reserve places a soft hold on a new order. Reserving an order that is
// already reserved succeeds without changing anything.
func (l *Ledger) Reserve(ctx context.Context, id int64) (*Order, error) {
	return l.transition(ctx, id, fsm.OrderEventReserve)
}

// Confirm moves a reserved order to pending.
func (l *Ledger) Confirm(ctx context.Context, id int64) (*Order, error) {
	return l.transition(ctx, id, fsm.OrderEventConfirm)
}

// Cancel drops an order that has not been fulfilled.
func (l *Ledger) Cancel(ctx context.Context, id int64) (*Order, error) {
	return l.transition(ctx, id, fsm.OrderEventCancel)
}

func (l *Ledger) transition(ctx context.Context, id int64, event string) (*Order, error) {
	for attempt := 1; ; attempt++ {
		order, err := l.Get(ctx, id)
		if err != nil {
			return nil, err
		}

		if event == fsm.OrderEventReserve && order.Status == fsm.OrderStateReserved {
			return order, nil
		}

		if !l.machine.CanTransition(order.Status, event) {
			return nil, &TransitionError{Entity: "order", ID: id, Status: order.Status, Event: event}
		}

		next, err := l.machine.Transition(ctx, order.Status, event)
		if err != nil {
			return nil, fmt.Errorf("order #%d: %w", id, err)
		}

		err = l.db.SetOrderStatus(ctx, id, order.Status, next)
		if errors.Is(err, db.ErrStaleRecord) && attempt < maxStatusAttempts {
			// Status moved underneath us; re-evaluate against the new one.
			continue
		}
		if errors.Is(err, db.ErrStaleRecord) {
			return nil, fmt.Errorf("%w: order #%d", inventory.ErrConcurrencyConflict, id)
		}
		if err != nil {
			return nil, err
		}

		metrics.OrderTransitions.WithLabelValues(event).Inc()
		l.logger.Info("order status changed",
			zap.Int64("order_id", id),
			zap.String("from", order.Status),
			zap.String("to", next),
			zap.String("actor", inventory.ActorFrom(ctx)))

		order.Status = next
		return order, nil
	}
}

func (l *Ledger) GetCompleted(ctx context.Context, id int64) (*CompletedOrder, error) {
	stored, err := l.db.GetCompletedOrder(ctx, id)
	if err != nil {
		return nil, err
	}
	return CompletedFromRow(stored)
}

// ListCompleted returns completed orders in any of statuses, newest first.
func (l *Ledger) ListCompleted(ctx context.Context, statuses []string, limit int) ([]*CompletedOrder, error) {
	stored, err := l.db.ListCompletedOrders(ctx, statuses, limit)
	if err != nil {
		return nil, err
	}
	out := make([]*CompletedOrder, 0, len(stored))
	for i := range stored {
		c, err := CompletedFromRow(&stored[i])
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, nil
}
