// Package returns runs the return workflow of completed orders.
package returns

import (
	"context"
	"errors"
	"fmt"

	"github.com/buildtall-systems/panelbot/internal/db"
	"github.com/buildtall-systems/panelbot/internal/fsm"
	"github.com/buildtall-systems/panelbot/internal/inventory"
	"github.com/buildtall-systems/panelbot/internal/metrics"
	"github.com/buildtall-systems/panelbot/internal/orders"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// AnomalyWarning flags a confirmed return that had to recreate a stock
// record, usually because the variant was discontinued. It never fails the
// return.
type AnomalyWarning struct {
	Key      inventory.Key
	Quantity decimal.Decimal
}

func (a AnomalyWarning) String() string {
	return fmt.Sprintf("%s recreated with %s", a.Key, a.Quantity)
}

// Confirmation is the outcome of a confirmed return.
type Confirmation struct {
	Order     *orders.CompletedOrder
	Restored  []inventory.Amount
	Anomalies []AnomalyWarning
}

type Processor struct {
	db      *db.DB
	ledger  *inventory.Ledger
	machine *fsm.ReturnStateMachine
	logger  *zap.Logger
}

func NewProcessor(database *db.DB, ledger *inventory.Ledger, logger *zap.Logger) *Processor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Processor{
		db:      database,
		ledger:  ledger,
		machine: fsm.NewReturnStateMachine(),
		logger:  logger,
	}
}

// RequestReturn opens a return on a completed order. No stock moves.
func (p *Processor) RequestReturn(ctx context.Context, completedID int64) (*orders.CompletedOrder, error) {
	return p.setStatus(ctx, completedID, fsm.ReturnEventRequest)
}

// RejectReturn closes a requested return without moving stock. A rejected
// return is final.
func (p *Processor) RejectReturn(ctx context.Context, completedID int64) (*orders.CompletedOrder, error) {
	return p.setStatus(ctx, completedID, fsm.ReturnEventReject)
}

// ConfirmReturn credits back every line of the order snapshot and marks it
// returned, in one transaction.
func (p *Processor) ConfirmReturn(ctx context.Context, completedID int64) (*Confirmation, error) {
	c, err := p.get(ctx, completedID)
	if err != nil {
		return nil, err
	}
	if _, err := p.next(ctx, c, fsm.ReturnEventConfirm); err != nil {
		return nil, err
	}

	amounts, err := inventory.Merge(c.Amounts())
	if err != nil {
		return nil, fmt.Errorf("completed order #%d: %w", completedID, err)
	}

	var created []inventory.Key
	reason := fmt.Sprintf("return #%d", c.OrderID)

	err = p.ledger.Update(ctx, inventory.KeysOf(amounts), reason, func(tx *inventory.Tx) error {
		row, err := tx.DB().GetCompletedOrder(ctx, completedID)
		if err != nil {
			return err
		}
		next, err := p.next(ctx, &orders.CompletedOrder{ID: row.ID, Status: row.Status}, fsm.ReturnEventConfirm)
		if err != nil {
			return err
		}

		created, err = tx.CreditMany(ctx, amounts)
		if err != nil {
			return err
		}
		return tx.DB().SetCompletedOrderStatus(ctx, completedID, row.Status, next)
	})
	if err != nil {
		return nil, err
	}

	c.Status = fsm.ReturnStateReturned
	result := &Confirmation{Order: c, Restored: amounts}

	for _, key := range created {
		for _, a := range amounts {
			if a.Key == key {
				result.Anomalies = append(result.Anomalies, AnomalyWarning{Key: key, Quantity: a.Quantity})
				p.logger.Warn("anomaly: return recreated missing stock record",
					zap.Int64("completed_order_id", completedID),
					zap.Stringer("key", key),
					zap.Stringer("quantity", a.Quantity))
			}
		}
	}

	metrics.OrderTransitions.WithLabelValues(fsm.ReturnEventConfirm).Inc()
	p.logger.Info("return confirmed",
		zap.Int64("completed_order_id", completedID),
		zap.Int64("order_id", c.OrderID),
		zap.Int("restored", len(amounts)),
		zap.Int("anomalies", len(result.Anomalies)))
	return result, nil
}

func (p *Processor) setStatus(ctx context.Context, completedID int64, event string) (*orders.CompletedOrder, error) {
	c, err := p.get(ctx, completedID)
	if err != nil {
		return nil, err
	}
	next, err := p.next(ctx, c, event)
	if err != nil {
		return nil, err
	}

	err = p.db.SetCompletedOrderStatus(ctx, completedID, c.Status, next)
	if errors.Is(err, db.ErrStaleRecord) {
		// Lost a race; report against the status that won.
		if latest, gerr := p.get(ctx, completedID); gerr == nil {
			return nil, &orders.TransitionError{Entity: "completed order", ID: completedID, Status: latest.Status, Event: event}
		}
	}
	if err != nil {
		return nil, fmt.Errorf("completed order #%d: %w", completedID, err)
	}

	metrics.OrderTransitions.WithLabelValues(event).Inc()
	p.logger.Info("completed order status changed",
		zap.Int64("completed_order_id", completedID),
		zap.String("from", c.Status),
		zap.String("to", next),
		zap.String("actor", inventory.ActorFrom(ctx)))

	c.Status = next
	return c, nil
}

func (p *Processor) next(ctx context.Context, c *orders.CompletedOrder, event string) (string, error) {
	if !p.machine.CanTransition(c.Status, event) {
		return "", &orders.TransitionError{Entity: "completed order", ID: c.ID, Status: c.Status, Event: event}
	}
	return p.machine.Transition(ctx, c.Status, event)
}

func (p *Processor) get(ctx context.Context, completedID int64) (*orders.CompletedOrder, error) {
	row, err := p.db.GetCompletedOrder(ctx, completedID)
	if err != nil {
		return nil, err
	}
	return orders.CompletedFromRow(row)
}
