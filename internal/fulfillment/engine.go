// Package fulfillment commits orders against the stock ledger.
package fulfillment

import (
	"context"
	"fmt"

	"github.com/buildtall-systems/panelbot/internal/fsm"
	"github.com/buildtall-systems/panelbot/internal/inventory"
	"github.com/buildtall-systems/panelbot/internal/metrics"
	"github.com/buildtall-systems/panelbot/internal/orders"
	"go.uber.org/zap"
)

type Engine struct {
	ledger  *inventory.Ledger
	orders  *orders.Ledger
	machine *fsm.OrderStateMachine
	logger  *zap.Logger
}

func NewEngine(ledger *inventory.Ledger, orderLedger *orders.Ledger, logger *zap.Logger) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{
		ledger:  ledger,
		orders:  orderLedger,
		machine: fsm.NewOrderStateMachine(),
		logger:  logger,
	}
}

// Fulfill deducts every line of a new or pending order and archives it as a
// CompletedOrder, all in one transaction. If any line is short the ledger is
// left untouched and a *inventory.ShortfallError lists every short key.
func (e *Engine) Fulfill(ctx context.Context, orderID int64) (*orders.CompletedOrder, error) {
	order, err := e.orders.Get(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if err := e.checkFulfillable(order); err != nil {
		return nil, err
	}

	amounts, err := inventory.Merge(order.Amounts())
	if err != nil {
		return nil, fmt.Errorf("order #%d: %w", orderID, err)
	}

	var completed *orders.CompletedOrder
	reason := fmt.Sprintf("fulfill order #%d", orderID)

	err = e.ledger.Update(ctx, inventory.KeysOf(amounts), reason, func(tx *inventory.Tx) error {
		// Status may have changed while we waited for the locks.
		row, err := tx.DB().GetOrder(ctx, orderID)
		if err != nil {
			return err
		}
		current, err := orders.FromRow(row)
		if err != nil {
			return err
		}
		if err := e.checkFulfillable(current); err != nil {
			return err
		}

		shorts, err := tx.Shortfalls(ctx, amounts)
		if err != nil {
			return err
		}
		if len(shorts) > 0 {
			return &inventory.ShortfallError{Shortfalls: shorts}
		}

		if err := tx.DeductMany(ctx, amounts); err != nil {
			return err
		}

		completedID, err := tx.DB().ArchiveOrder(ctx, orderID, current.Status, inventory.ActorFrom(ctx))
		if err != nil {
			return err
		}

		archived, err := tx.DB().GetCompletedOrder(ctx, completedID)
		if err != nil {
			return err
		}
		completed, err = orders.CompletedFromRow(archived)
		return err
	})
	if err != nil {
		return nil, err
	}

	metrics.OrderTransitions.WithLabelValues(fsm.OrderEventFulfill).Inc()
	e.logger.Info("order fulfilled",
		zap.Int64("order_id", orderID),
		zap.Int64("completed_order_id", completed.ID),
		zap.Int("lines", len(completed.Lines)),
		zap.String("actor", inventory.ActorFrom(ctx)))
	return completed, nil
}

func (e *Engine) checkFulfillable(o *orders.Order) error {
	if !e.machine.CanTransition(o.Status, fsm.OrderEventFulfill) {
		return &orders.TransitionError{Entity: "order", ID: o.ID, Status: o.Status, Event: fsm.OrderEventFulfill}
	}
	if len(o.Lines) == 0 {
		return &orders.ValidationError{Problems: []string{fmt.Sprintf("order #%d has no lines", o.ID)}}
	}
	return nil
}
