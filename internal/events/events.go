// Package events carries state-change notifications from the core to
// notifiers. Publishing never blocks the caller.
package events

import (
	"time"

	"github.com/google/uuid"
)

type Type string

const (
	OrderCreated           Type = "order.created"
	OrderInsufficientStock Type = "order.insufficient_stock"
	OrderFulfilled         Type = "order.fulfilled"
	OrderCancelled         Type = "order.cancelled"
	ReturnRequested        Type = "return.requested"
	ReturnConfirmed        Type = "return.confirmed"
	ReturnRejected         Type = "return.rejected"
	StockConverted         Type = "stock.converted"
)

// Item is one resource line of an event. Available is set for shortfalls.
type Item struct {
	Key       string `json:"key"`
	Quantity  string `json:"quantity"`
	Available string `json:"available,omitempty"`
}

type Event struct {
	ID               string    `json:"id"`
	Type             Type      `json:"type"`
	OrderID          int64     `json:"order_id,omitempty"`
	CompletedOrderID int64     `json:"completed_order_id,omitempty"`
	Actor            string    `json:"actor"`
	Items            []Item    `json:"items,omitempty"`
	Anomalies        []Item    `json:"anomalies,omitempty"`
	OccurredAt       time.Time `json:"occurred_at"`
}

// New stamps an event with an id and the current time.
func New(t Type, actor string) Event {
	return Event{
		ID:         uuid.NewString(),
		Type:       t,
		Actor:      actor,
		OccurredAt: time.Now().UTC(),
	}
}
