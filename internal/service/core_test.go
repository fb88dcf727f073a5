package service

import (
	"context"
	"errors"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/buildtall-systems/panelbot/internal/db/dbtest"
	"github.com/buildtall-systems/panelbot/internal/events"
	"github.com/buildtall-systems/panelbot/internal/fsm"
	"github.com/buildtall-systems/panelbot/internal/inventory"
	"github.com/buildtall-systems/panelbot/internal/orders"
)

var half = decimal.RequireFromString("0.5")

type recording struct {
	events []events.Event
}

func (r *recording) Publish(e events.Event) { r.events = append(r.events, e) }

func (r *recording) types() []events.Type {
	out := make([]events.Type, 0, len(r.events))
	for _, e := range r.events {
		out = append(out, e.Type)
	}
	return out
}

func (r *recording) last() events.Event {
	return r.events[len(r.events)-1]
}

func setupCore(t *testing.T) (*Core, *recording) {
	t.Helper()
	rec := &recording{}
	c := New(dbtest.Open(t), nil, rec, nil, Options{Ledger: inventory.DefaultOptions()})
	return c, rec
}

func receive(t *testing.T, c *Core, key inventory.Key, qty int64) {
	t.Helper()
	if _, err := c.Receive(context.Background(), key, decimal.NewFromInt(qty)); err != nil {
		t.Fatalf("receive %s: %v", key, err)
	}
}

func TestCore_OrderLifecycleEvents(t *testing.T) {
	ctx := inventory.WithActor(context.Background(), "alice")
	c, rec := setupCore(t)
	receive(t, c, inventory.FinishedGood("A1", half), 10)

	o, err := c.CreateOrder(ctx, []orders.Line{orders.FinishedGoodLine{Color: "A1", Thickness: half, Quantity: 6}})
	if err != nil {
		t.Fatalf("CreateOrder() error = %v", err)
	}
	if _, err := c.Reserve(ctx, o.ID); err != nil {
		t.Fatalf("Reserve() error = %v", err)
	}
	if _, err := c.Confirm(ctx, o.ID); err != nil {
		t.Fatalf("Confirm() error = %v", err)
	}
	completed, err := c.Fulfill(ctx, o.ID)
	if err != nil {
		t.Fatalf("Fulfill() error = %v", err)
	}

	want := []events.Type{events.OrderCreated, events.OrderFulfilled}
	got := rec.types()
	if len(got) != len(want) {
		t.Fatalf("events = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("event %d = %s, want %s", i, got[i], want[i])
		}
	}

	fulfilled := rec.last()
	if fulfilled.OrderID != o.ID || fulfilled.CompletedOrderID != completed.ID {
		t.Errorf("fulfilled event ids = %d/%d", fulfilled.OrderID, fulfilled.CompletedOrderID)
	}
	if fulfilled.Actor != "alice" {
		t.Errorf("Actor = %q", fulfilled.Actor)
	}

	qty, _ := c.QueryStock(ctx, inventory.FinishedGood("A1", half))
	if !qty.Equal(decimal.NewFromInt(4)) {
		t.Errorf("stock = %s, want 4", qty)
	}
}

func TestCore_FulfillShortfallPublishesItems(t *testing.T) {
	ctx := context.Background()
	c, rec := setupCore(t)
	receive(t, c, inventory.FinishedGood("A1", half), 4)

	o, err := c.CreateOrder(ctx, []orders.Line{
		orders.FinishedGoodLine{Color: "A1", Thickness: half, Quantity: 6},
		orders.AdhesiveLine{Quantity: 2},
	})
	if err != nil {
		t.Fatal(err)
	}

	_, err = c.Fulfill(ctx, o.ID)
	if !errors.Is(err, inventory.ErrInsufficientStock) {
		t.Fatalf("Fulfill() error = %v, want ErrInsufficientStock", err)
	}

	e := rec.last()
	if e.Type != events.OrderInsufficientStock {
		t.Fatalf("last event = %s", e.Type)
	}
	if len(e.Items) != 2 {
		t.Fatalf("items = %+v, want 2", e.Items)
	}
	byKey := map[string]events.Item{}
	for _, it := range e.Items {
		byKey[it.Key] = it
	}
	if it := byKey["panel:A1:0.5"]; it.Quantity != "6" || it.Available != "4" {
		t.Errorf("panel item = %+v", it)
	}
	if it := byKey["glue"]; it.Quantity != "2" || it.Available != "0" {
		t.Errorf("glue item = %+v", it)
	}

	got, _ := c.GetOrder(ctx, o.ID)
	if got.Status != fsm.OrderStateNew {
		t.Errorf("order status = %s, want new", got.Status)
	}
}

func TestCore_ReturnEvents(t *testing.T) {
	ctx := context.Background()
	c, rec := setupCore(t)
	key := inventory.JointProfile("T", "A1", half)
	receive(t, c, key, 5)

	o, _ := c.CreateOrder(ctx, []orders.Line{orders.JointLine{JointType: "T", Color: "A1", Thickness: half, Quantity: 5}})
	completed, err := c.Fulfill(ctx, o.ID)
	if err != nil {
		t.Fatal(err)
	}
	if err := c.Discontinue(ctx, key); err != nil {
		t.Fatalf("Discontinue() error = %v", err)
	}

	if _, err := c.RequestReturn(ctx, completed.ID); err != nil {
		t.Fatalf("RequestReturn() error = %v", err)
	}
	if rec.last().Type != events.ReturnRequested {
		t.Errorf("last event = %s", rec.last().Type)
	}

	conf, err := c.ConfirmReturn(ctx, completed.ID)
	if err != nil {
		t.Fatalf("ConfirmReturn() error = %v", err)
	}
	if len(conf.Anomalies) != 1 {
		t.Fatalf("anomalies = %v", conf.Anomalies)
	}

	e := rec.last()
	if e.Type != events.ReturnConfirmed {
		t.Fatalf("last event = %s", e.Type)
	}
	if len(e.Anomalies) != 1 || e.Anomalies[0].Key != key.String() || e.Anomalies[0].Quantity != "5" {
		t.Errorf("anomalies = %+v", e.Anomalies)
	}
	if e.CompletedOrderID != completed.ID || e.OrderID != o.ID {
		t.Errorf("ids = %d/%d", e.OrderID, e.CompletedOrderID)
	}
}

func TestCore_FailuresPublishNothing(t *testing.T) {
	ctx := context.Background()
	c, rec := setupCore(t)

	if _, err := c.CreateOrder(ctx, nil); !errors.Is(err, orders.ErrValidation) {
		t.Errorf("CreateOrder(nil) error = %v", err)
	}
	if _, err := c.Cancel(ctx, 99); !errors.Is(err, orders.ErrOrderNotFound) {
		t.Errorf("Cancel(99) error = %v", err)
	}
	if _, err := c.RejectReturn(ctx, 99); !errors.Is(err, orders.ErrCompletedOrderNotFound) {
		t.Errorf("RejectReturn(99) error = %v", err)
	}
	if _, err := c.Convert(ctx, "A1", half, 1); err == nil {
		t.Error("Convert without rate succeeded")
	}

	if len(rec.events) != 0 {
		t.Errorf("published %v", rec.types())
	}
}

func TestCore_ConvertPublishes(t *testing.T) {
	ctx := context.Background()
	c, rec := setupCore(t)
	receive(t, c, inventory.RawFilm("A1"), 10)
	receive(t, c, inventory.BlankPanel(half), 4)
	if err := c.SetRate(ctx, "A1", decimal.RequireFromString("2.5")); err != nil {
		t.Fatal(err)
	}

	res, err := c.Convert(ctx, "A1", half, 4)
	if err != nil {
		t.Fatalf("Convert() error = %v", err)
	}
	if !res.Produced.Quantity.Equal(decimal.NewFromInt(4)) {
		t.Errorf("Produced = %s", res.Produced)
	}
	if rec.last().Type != events.StockConverted || len(rec.last().Items) != 3 {
		t.Errorf("event = %+v", rec.last())
	}

	rates, err := c.Rates(ctx)
	if err != nil || len(rates) != 1 {
		t.Errorf("Rates() = %v, %v", rates, err)
	}
}

func TestCore_Listings(t *testing.T) {
	ctx := context.Background()
	c, _ := setupCore(t)
	receive(t, c, inventory.Adhesive(), 10)

	a, _ := c.CreateOrder(ctx, []orders.Line{orders.AdhesiveLine{Quantity: 1}})
	b, _ := c.CreateOrder(ctx, []orders.Line{orders.AdhesiveLine{Quantity: 2}})
	if _, err := c.Cancel(ctx, b.ID); err != nil {
		t.Fatal(err)
	}
	if _, err := c.Fulfill(ctx, a.ID); err != nil {
		t.Fatal(err)
	}

	open, err := c.ListOrders(ctx, nil, 10)
	if err != nil || len(open) != 0 {
		t.Errorf("open orders = %v, %v", open, err)
	}
	cancelled, _ := c.ListOrders(ctx, []string{fsm.OrderStateCancelled}, 10)
	if len(cancelled) != 1 || cancelled[0].ID != b.ID {
		t.Errorf("cancelled = %v", cancelled)
	}
	completed, _ := c.ListCompletedOrders(ctx, 10)
	if len(completed) != 1 || completed[0].OrderID != a.ID {
		t.Errorf("completed = %v", completed)
	}

	records, err := c.StockRecords(ctx, "")
	if err != nil || len(records) != 1 {
		t.Errorf("records = %v, %v", records, err)
	}
	log, err := c.OperationLog(ctx, nil, 10)
	if err != nil || len(log) != 2 {
		t.Errorf("log = %d entries, %v", len(log), err)
	}
	if log[0].Reason != "fulfill order #1" {
		t.Errorf("newest entry reason = %q", log[0].Reason)
	}
}
