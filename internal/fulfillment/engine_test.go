package fulfillment

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/buildtall-systems/panelbot/internal/db"
	"github.com/buildtall-systems/panelbot/internal/db/dbtest"
	"github.com/buildtall-systems/panelbot/internal/fsm"
	"github.com/buildtall-systems/panelbot/internal/inventory"
	"github.com/buildtall-systems/panelbot/internal/orders"
	"github.com/shopspring/decimal"
)

var half = decimal.RequireFromString("0.5")

type fixture struct {
	db     *db.DB
	ledger *inventory.Ledger
	orders *orders.Ledger
	engine *Engine
}

func setup(t *testing.T) *fixture {
	t.Helper()
	database := dbtest.Open(t)
	ledger := inventory.NewLedger(database, nil, nil, inventory.DefaultOptions())
	orderLedger := orders.NewLedger(database, nil)
	return &fixture{
		db:     database,
		ledger: ledger,
		orders: orderLedger,
		engine: NewEngine(ledger, orderLedger, nil),
	}
}

func (f *fixture) stock(t *testing.T, key inventory.Key, qty int64) {
	t.Helper()
	if _, err := f.ledger.Credit(context.Background(), key, decimal.NewFromInt(qty), "receive"); err != nil {
		t.Fatalf("Credit(%s): %v", key, err)
	}
}

func (f *fixture) expect(t *testing.T, key inventory.Key, want int64) {
	t.Helper()
	got, err := f.ledger.Get(context.Background(), key)
	if err != nil {
		t.Fatalf("Get(%s): %v", key, err)
	}
	if !got.Equal(decimal.NewFromInt(want)) {
		t.Errorf("%s = %s, want %d", key, got, want)
	}
}

func (f *fixture) order(t *testing.T, lines ...orders.Line) *orders.Order {
	t.Helper()
	o, err := f.orders.Create(context.Background(), lines)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	return o
}

func panels(qty int64) orders.Line {
	return orders.FinishedGoodLine{Color: "A1", Thickness: half, Quantity: qty}
}

var panelKey = inventory.FinishedGood("A1", half)

// FinishedGood[A1,0.5]=10, order for 4: stock becomes 6, one completed
// order with one line of 4, and the order leaves the open listing.
func TestFulfill_CompletesOrder(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	f.stock(t, panelKey, 10)
	o := f.order(t, panels(4))

	completed, err := f.engine.Fulfill(ctx, o.ID)
	if err != nil {
		t.Fatalf("Fulfill: %v", err)
	}

	f.expect(t, panelKey, 6)

	if completed.OrderID != o.ID {
		t.Errorf("completed.OrderID = %d, want %d", completed.OrderID, o.ID)
	}
	if completed.Status != fsm.ReturnStateCompleted {
		t.Errorf("completed.Status = %s", completed.Status)
	}
	if len(completed.Lines) != 1 {
		t.Fatalf("expected 1 line, got %d", len(completed.Lines))
	}
	line, ok := completed.Lines[0].(orders.FinishedGoodLine)
	if !ok || line.Quantity != 4 {
		t.Errorf("line = %#v, want 4 panels", completed.Lines[0])
	}

	open, err := f.orders.List(ctx, orders.OpenStatuses, 10)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(open) != 0 {
		t.Errorf("fulfilled order still open: %v", open)
	}

	// A completed order cannot be cancelled and nothing changes
	if _, err := f.orders.Cancel(ctx, o.ID); !errors.Is(err, orders.ErrInvalidStateTransition) {
		t.Errorf("Cancel after fulfill: expected ErrInvalidStateTransition, got %v", err)
	}
	f.expect(t, panelKey, 6)
}

func TestFulfill_MixedLines(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	joint := orders.JointLine{JointType: "T", Color: "A1", Thickness: half, Quantity: 2}
	f.stock(t, panelKey, 10)
	f.stock(t, joint.Key(), 5)
	f.stock(t, inventory.Adhesive(), 3)

	o := f.order(t, panels(4), joint, orders.AdhesiveLine{Quantity: 1}, panels(1))
	if _, err := f.engine.Fulfill(ctx, o.ID); err != nil {
		t.Fatalf("Fulfill: %v", err)
	}

	f.expect(t, panelKey, 5)
	f.expect(t, joint.Key(), 3)
	f.expect(t, inventory.Adhesive(), 2)

	// One log entry per resource mutated
	ops, err := f.ledger.Operations(ctx, nil, 100)
	if err != nil {
		t.Fatalf("Operations: %v", err)
	}
	var fulfillOps []db.Operation
	for _, op := range ops {
		if op.Reason == "fulfill order #1" {
			fulfillOps = append(fulfillOps, op)
		}
	}
	if len(fulfillOps) != 3 {
		t.Errorf("expected 3 fulfillment log entries, got %d", len(fulfillOps))
	}
	for _, op := range fulfillOps[1:] {
		if op.BatchID != fulfillOps[0].BatchID {
			t.Error("fulfillment entries should share one batch id")
		}
	}
}

// One satisfiable line and one short line: nothing moves.
func TestFulfill_ShortfallLeavesLedgerUnchanged(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	f.stock(t, panelKey, 10)
	f.stock(t, inventory.Adhesive(), 1)
	o := f.order(t, panels(4), orders.AdhesiveLine{Quantity: 3})

	before, _ := f.db.CountOperations(ctx)

	_, err := f.engine.Fulfill(ctx, o.ID)
	if !errors.Is(err, inventory.ErrInsufficientStock) {
		t.Fatalf("expected ErrInsufficientStock, got %v", err)
	}
	var se *inventory.ShortfallError
	if !errors.As(err, &se) {
		t.Fatalf("expected *ShortfallError, got %T", err)
	}
	if len(se.Shortfalls) != 1 || se.Shortfalls[0].Key != inventory.Adhesive() {
		t.Errorf("shortfalls = %v, want glue only", se.Shortfalls)
	}
	if se.Shortfalls[0].Missing().IntPart() != 2 {
		t.Errorf("missing = %s, want 2", se.Shortfalls[0].Missing())
	}

	f.expect(t, panelKey, 10)
	f.expect(t, inventory.Adhesive(), 1)

	after, _ := f.db.CountOperations(ctx)
	if after != before {
		t.Errorf("failed fulfillment wrote %d log entries", after-before)
	}

	got, err := f.orders.Get(ctx, o.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.Status != fsm.OrderStateNew {
		t.Errorf("order status = %s, want new", got.Status)
	}
	completed, _ := f.orders.ListCompleted(ctx, nil, 10)
	if len(completed) != 0 {
		t.Errorf("no completed order should exist, got %d", len(completed))
	}
}

func TestFulfill_ReportsEveryShortLine(t *testing.T) {
	f := setup(t)
	joint := orders.JointLine{JointType: "L", Color: "B2", Thickness: half, Quantity: 2}
	o := f.order(t, panels(4), joint, orders.AdhesiveLine{Quantity: 1})

	_, err := f.engine.Fulfill(context.Background(), o.ID)
	var se *inventory.ShortfallError
	if !errors.As(err, &se) {
		t.Fatalf("expected *ShortfallError, got %v", err)
	}
	if len(se.Shortfalls) != 3 {
		t.Errorf("expected 3 shortfalls, got %v", se.Shortfalls)
	}
}

func TestFulfill_States(t *testing.T) {
	tests := []struct {
		name    string
		prepare func(*orders.Ledger, context.Context, int64) error
		wantErr bool
	}{
		{"new", func(*orders.Ledger, context.Context, int64) error { return nil }, false},
		{"pending", func(l *orders.Ledger, ctx context.Context, id int64) error {
			if _, err := l.Reserve(ctx, id); err != nil {
				return err
			}
			_, err := l.Confirm(ctx, id)
			return err
		}, false},
		{"reserved", func(l *orders.Ledger, ctx context.Context, id int64) error {
			_, err := l.Reserve(ctx, id)
			return err
		}, true},
		{"cancelled", func(l *orders.Ledger, ctx context.Context, id int64) error {
			_, err := l.Cancel(ctx, id)
			return err
		}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := setup(t)
			ctx := context.Background()
			f.stock(t, panelKey, 10)
			o := f.order(t, panels(4))
			if err := tt.prepare(f.orders, ctx, o.ID); err != nil {
				t.Fatalf("prepare: %v", err)
			}

			_, err := f.engine.Fulfill(ctx, o.ID)
			if tt.wantErr {
				if !errors.Is(err, orders.ErrInvalidStateTransition) {
					t.Fatalf("expected ErrInvalidStateTransition, got %v", err)
				}
				f.expect(t, panelKey, 10)
				return
			}
			if err != nil {
				t.Fatalf("Fulfill: %v", err)
			}
			f.expect(t, panelKey, 6)
		})
	}
}

func TestFulfill_Twice(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	f.stock(t, panelKey, 10)
	o := f.order(t, panels(4))

	if _, err := f.engine.Fulfill(ctx, o.ID); err != nil {
		t.Fatalf("Fulfill: %v", err)
	}
	if _, err := f.engine.Fulfill(ctx, o.ID); !errors.Is(err, orders.ErrInvalidStateTransition) {
		t.Fatalf("second Fulfill: expected ErrInvalidStateTransition, got %v", err)
	}
	f.expect(t, panelKey, 6)
}

func TestFulfill_NotFound(t *testing.T) {
	f := setup(t)
	_, err := f.engine.Fulfill(context.Background(), 404)
	if !errors.Is(err, orders.ErrOrderNotFound) {
		t.Errorf("expected ErrOrderNotFound, got %v", err)
	}
}

// Two orders of 6 against 10: exactly one wins, the loser sees 4 available.
func TestFulfill_ConcurrentOrdersNeverDoubleSpend(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	f.stock(t, panelKey, 10)

	a := f.order(t, panels(6))
	b := f.order(t, panels(6))

	var wg sync.WaitGroup
	errs := make([]error, 2)
	for i, id := range []int64{a.ID, b.ID} {
		wg.Add(1)
		go func(i int, id int64) {
			defer wg.Done()
			_, errs[i] = f.engine.Fulfill(ctx, id)
		}(i, id)
	}
	wg.Wait()

	var succeeded int
	var shortErr *inventory.ShortfallError
	for _, err := range errs {
		switch {
		case err == nil:
			succeeded++
		case errors.As(err, &shortErr):
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}

	if succeeded != 1 {
		t.Fatalf("succeeded = %d, want exactly 1", succeeded)
	}
	if shortErr == nil {
		t.Fatal("expected the other fulfillment to fail with a shortfall")
	}
	if !shortErr.Shortfalls[0].Available.Equal(decimal.NewFromInt(4)) {
		t.Errorf("loser saw %s available, want 4", shortErr.Shortfalls[0].Available)
	}
	f.expect(t, panelKey, 4)
}

func TestFulfill_ConcurrentSameOrder(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	f.stock(t, panelKey, 10)
	o := f.order(t, panels(3))

	var wg sync.WaitGroup
	errs := make([]error, 5)
	for i := range errs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = f.engine.Fulfill(ctx, o.ID)
		}(i)
	}
	wg.Wait()

	var succeeded int
	for _, err := range errs {
		if err == nil {
			succeeded++
		} else if !errors.Is(err, orders.ErrInvalidStateTransition) {
			t.Errorf("unexpected error: %v", err)
		}
	}
	if succeeded != 1 {
		t.Errorf("succeeded = %d, want 1", succeeded)
	}
	f.expect(t, panelKey, 7)
}
