// Package service wires the ledger, orders, production, fulfillment and
// returns into one facade and publishes an event after every state change.
package service

import (
	"context"
	"errors"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/buildtall-systems/panelbot/internal/db"
	"github.com/buildtall-systems/panelbot/internal/events"
	"github.com/buildtall-systems/panelbot/internal/fulfillment"
	"github.com/buildtall-systems/panelbot/internal/inventory"
	"github.com/buildtall-systems/panelbot/internal/lock"
	"github.com/buildtall-systems/panelbot/internal/orders"
	"github.com/buildtall-systems/panelbot/internal/production"
	"github.com/buildtall-systems/panelbot/internal/returns"
)

// Options configures the core components.
type Options struct {
	Ledger      inventory.Options
	DefaultRate decimal.Decimal
}

// Core is the only entry point callers use. Every method takes the actor
// from ctx (see inventory.WithActor).
type Core struct {
	ledger    *inventory.Ledger
	orders    *orders.Ledger
	rates     *production.Rates
	converter *production.Converter
	engine    *fulfillment.Engine
	returns   *returns.Processor
	events    events.Publisher
	logger    *zap.Logger
}

// New builds the core on an open, migrated database. A nil locker uses an
// in-process locker; a nil publisher discards events.
func New(database *db.DB, locker lock.Locker, pub events.Publisher, logger *zap.Logger, opts Options) *Core {
	if logger == nil {
		logger = zap.NewNop()
	}
	if pub == nil {
		pub = events.Nop{}
	}

	ledger := inventory.NewLedger(database, locker, logger.Named("ledger"), opts.Ledger)
	orderLedger := orders.NewLedger(database, logger.Named("orders"))
	rates := production.NewRates(database, opts.DefaultRate)

	return &Core{
		ledger:    ledger,
		orders:    orderLedger,
		rates:     rates,
		converter: production.NewConverter(ledger, rates, logger.Named("production")),
		engine:    fulfillment.NewEngine(ledger, orderLedger, logger.Named("fulfillment")),
		returns:   returns.NewProcessor(database, ledger, logger.Named("returns")),
		events:    pub,
		logger:    logger,
	}
}

// Stock

func (c *Core) QueryStock(ctx context.Context, key inventory.Key) (decimal.Decimal, error) {
	return c.ledger.Get(ctx, key)
}

// StockRecords lists records of one kind, or all when kind is empty.
func (c *Core) StockRecords(ctx context.Context, kind inventory.Kind) ([]inventory.Record, error) {
	return c.ledger.Records(ctx, kind)
}

// Receive credits incoming stock. created reports a new record.
func (c *Core) Receive(ctx context.Context, key inventory.Key, qty decimal.Decimal) (bool, error) {
	return c.ledger.Credit(ctx, key, qty, "receive")
}

func (c *Core) Discontinue(ctx context.Context, key inventory.Key) error {
	return c.ledger.Discontinue(ctx, key)
}

// OperationLog returns the newest entries first, optionally for one key.
func (c *Core) OperationLog(ctx context.Context, key *inventory.Key, limit int) ([]db.Operation, error) {
	return c.ledger.Operations(ctx, key, limit)
}

// Production

func (c *Core) SetRate(ctx context.Context, filmCode string, metersPerPanel decimal.Decimal) error {
	return c.rates.Set(ctx, filmCode, metersPerPanel)
}

func (c *Core) Rate(ctx context.Context, filmCode string) (decimal.Decimal, error) {
	return c.rates.Rate(ctx, filmCode)
}

func (c *Core) Rates(ctx context.Context) ([]db.FilmRate, error) {
	return c.rates.List(ctx)
}

func (c *Core) Convert(ctx context.Context, filmCode string, thickness decimal.Decimal, panelCount int64) (*production.Result, error) {
	res, err := c.converter.Convert(ctx, filmCode, thickness, panelCount)
	if err != nil {
		return nil, err
	}

	e := events.New(events.StockConverted, inventory.ActorFrom(ctx))
	e.Items = items([]inventory.Amount{res.Produced, res.FilmUsed, res.BlanksUsed})
	c.events.Publish(e)
	return res, nil
}

// Orders

func (c *Core) CreateOrder(ctx context.Context, lines []orders.Line) (*orders.Order, error) {
	o, err := c.orders.Create(ctx, lines)
	if err != nil {
		return nil, err
	}

	e := events.New(events.OrderCreated, o.CreatedBy)
	e.OrderID = o.ID
	e.Items = items(o.Amounts())
	c.events.Publish(e)
	return o, nil
}

func (c *Core) GetOrder(ctx context.Context, id int64) (*orders.Order, error) {
	return c.orders.Get(ctx, id)
}

// ListOrders lists orders oldest first. No statuses means every open order.
func (c *Core) ListOrders(ctx context.Context, statuses []string, limit int) ([]*orders.Order, error) {
	if len(statuses) == 0 {
		statuses = orders.OpenStatuses
	}
	return c.orders.List(ctx, statuses, limit)
}

func (c *Core) Reserve(ctx context.Context, id int64) (*orders.Order, error) {
	return c.orders.Reserve(ctx, id)
}

func (c *Core) Confirm(ctx context.Context, id int64) (*orders.Order, error) {
	return c.orders.Confirm(ctx, id)
}

func (c *Core) Cancel(ctx context.Context, id int64) (*orders.Order, error) {
	o, err := c.orders.Cancel(ctx, id)
	if err != nil {
		return nil, err
	}

	e := events.New(events.OrderCancelled, inventory.ActorFrom(ctx))
	e.OrderID = o.ID
	c.events.Publish(e)
	return o, nil
}

// Fulfill deducts every line and archives the order. A shortfall is also
// published so operators learn which stock to replenish.
func (c *Core) Fulfill(ctx context.Context, id int64) (*orders.CompletedOrder, error) {
	completed, err := c.engine.Fulfill(ctx, id)
	if err != nil {
		var short *inventory.ShortfallError
		if errors.As(err, &short) {
			e := events.New(events.OrderInsufficientStock, inventory.ActorFrom(ctx))
			e.OrderID = id
			e.Items = shortfallItems(short.Shortfalls)
			c.events.Publish(e)
		}
		return nil, err
	}

	e := events.New(events.OrderFulfilled, inventory.ActorFrom(ctx))
	e.OrderID = completed.OrderID
	e.CompletedOrderID = completed.ID
	e.Items = items(completed.Amounts())
	c.events.Publish(e)
	return completed, nil
}

func (c *Core) GetCompletedOrder(ctx context.Context, id int64) (*orders.CompletedOrder, error) {
	return c.orders.GetCompleted(ctx, id)
}

// ListCompletedOrders lists completed orders newest first, in any status.
func (c *Core) ListCompletedOrders(ctx context.Context, limit int) ([]*orders.CompletedOrder, error) {
	return c.orders.ListCompleted(ctx, nil, limit)
}

// Returns

func (c *Core) RequestReturn(ctx context.Context, completedID int64) (*orders.CompletedOrder, error) {
	co, err := c.returns.RequestReturn(ctx, completedID)
	if err != nil {
		return nil, err
	}
	c.publishReturn(ctx, events.ReturnRequested, co)
	return co, nil
}

func (c *Core) ConfirmReturn(ctx context.Context, completedID int64) (*returns.Confirmation, error) {
	conf, err := c.returns.ConfirmReturn(ctx, completedID)
	if err != nil {
		return nil, err
	}

	e := events.New(events.ReturnConfirmed, inventory.ActorFrom(ctx))
	e.OrderID = conf.Order.OrderID
	e.CompletedOrderID = conf.Order.ID
	e.Items = items(conf.Restored)
	for _, a := range conf.Anomalies {
		e.Anomalies = append(e.Anomalies, events.Item{Key: a.Key.String(), Quantity: a.Quantity.String()})
	}
	c.events.Publish(e)
	return conf, nil
}

func (c *Core) RejectReturn(ctx context.Context, completedID int64) (*orders.CompletedOrder, error) {
	co, err := c.returns.RejectReturn(ctx, completedID)
	if err != nil {
		return nil, err
	}
	c.publishReturn(ctx, events.ReturnRejected, co)
	return co, nil
}

func (c *Core) publishReturn(ctx context.Context, t events.Type, co *orders.CompletedOrder) {
	e := events.New(t, inventory.ActorFrom(ctx))
	e.OrderID = co.OrderID
	e.CompletedOrderID = co.ID
	c.events.Publish(e)
}

func items(amounts []inventory.Amount) []events.Item {
	out := make([]events.Item, 0, len(amounts))
	for _, a := range amounts {
		out = append(out, events.Item{Key: a.Key.String(), Quantity: a.Quantity.String()})
	}
	return out
}

func shortfallItems(shorts []inventory.Shortfall) []events.Item {
	out := make([]events.Item, 0, len(shorts))
	for _, s := range shorts {
		out = append(out, events.Item{
			Key:       s.Key.String(),
			Quantity:  s.Requested.String(),
			Available: s.Available.String(),
		})
	}
	return out
}
