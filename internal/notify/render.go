// Package notify turns events into human-readable messages and delivers
// them over Nostr DMs or Telegram.
package notify

import (
	"fmt"
	"strings"

	"github.com/buildtall-systems/panelbot/internal/events"
)

// Render formats an event as a short plain-text message.
func Render(e events.Event) string {
	var b strings.Builder

	switch e.Type {
	case events.OrderCreated:
		fmt.Fprintf(&b, "Order #%d created by %s", e.OrderID, e.Actor)
		writeItems(&b, e.Items)
	case events.OrderInsufficientStock:
		fmt.Fprintf(&b, "Order #%d cannot be fulfilled: insufficient stock", e.OrderID)
		for _, it := range e.Items {
			fmt.Fprintf(&b, "\n- %s: need %s, have %s", it.Key, it.Quantity, it.Available)
		}
	case events.OrderFulfilled:
		fmt.Fprintf(&b, "Order #%d fulfilled by %s (completed #%d)", e.OrderID, e.Actor, e.CompletedOrderID)
		writeItems(&b, e.Items)
	case events.OrderCancelled:
		fmt.Fprintf(&b, "Order #%d cancelled by %s", e.OrderID, e.Actor)
	case events.ReturnRequested:
		fmt.Fprintf(&b, "Return requested for completed order #%d", e.CompletedOrderID)
	case events.ReturnConfirmed:
		fmt.Fprintf(&b, "Return of completed order #%d confirmed by %s", e.CompletedOrderID, e.Actor)
		writeItems(&b, e.Items)
		for _, a := range e.Anomalies {
			fmt.Fprintf(&b, "\n! %s recreated with %s (variant no longer stocked)", a.Key, a.Quantity)
		}
	case events.ReturnRejected:
		fmt.Fprintf(&b, "Return of completed order #%d rejected by %s", e.CompletedOrderID, e.Actor)
	case events.StockConverted:
		fmt.Fprintf(&b, "Production run by %s", e.Actor)
		writeItems(&b, e.Items)
	default:
		fmt.Fprintf(&b, "%s by %s", e.Type, e.Actor)
	}

	return b.String()
}

func writeItems(b *strings.Builder, items []events.Item) {
	for _, it := range items {
		fmt.Fprintf(b, "\n- %s x %s", it.Key, it.Quantity)
	}
}
