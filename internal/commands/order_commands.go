package commands

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/buildtall-systems/panelbot/internal/orders"
	"github.com/buildtall-systems/panelbot/internal/service"
)

const listLimit = 20

func parseID(args []string, usage string) (int64, error) {
	if len(args) != 1 {
		return 0, errors.New("usage: " + usage)
	}
	id, err := strconv.ParseInt(strings.TrimPrefix(args[0], "#"), 10, 64)
	if err != nil || id < 1 {
		return 0, errors.New("id must be a positive number")
	}
	return id, nil
}

// OrderCmd creates an order from one or more lines.
// Args: <line>...
func OrderCmd(ctx context.Context, core *service.Core, args []string) Result {
	if len(args) == 0 {
		return Result{Error: errors.New("usage: order <line>... (panel:<color>:<thickness>:<qty>, joint:<type>:<color>:<thickness>:<qty>, glue:<qty>)")}
	}
	lines, err := ParseLines(args)
	if err != nil {
		return Result{Error: err}
	}

	o, err := core.CreateOrder(ctx, lines)
	if err != nil {
		return Result{Error: err}
	}
	return Result{Message: fmt.Sprintf("Order #%d created:\n%s", o.ID, describeLines(o.Lines))}
}

// TransitionCmd reserves, confirms or cancels an order.
// Args: <order_id>
func TransitionCmd(ctx context.Context, core *service.Core, name string, args []string) Result {
	id, err := parseID(args, name+" <order_id>")
	if err != nil {
		return Result{Error: err}
	}

	var o *orders.Order
	switch name {
	case CmdReserve:
		o, err = core.Reserve(ctx, id)
	case CmdConfirm:
		o, err = core.Confirm(ctx, id)
	case CmdCancel:
		o, err = core.Cancel(ctx, id)
	default:
		return Result{Error: fmt.Errorf("unknown transition %q", name)}
	}
	if err != nil {
		return Result{Error: err}
	}
	return Result{Message: fmt.Sprintf("Order #%d is now %s.", o.ID, o.Status)}
}

// FulfillCmd deducts an order's lines and archives it.
// Args: <order_id>
func FulfillCmd(ctx context.Context, core *service.Core, args []string) Result {
	id, err := parseID(args, "fulfill <order_id>")
	if err != nil {
		return Result{Error: err}
	}

	completed, err := core.Fulfill(ctx, id)
	if err != nil {
		return Result{Error: err}
	}
	return Result{Message: fmt.Sprintf("Order #%d fulfilled as completed order #%d:\n%s",
		completed.OrderID, completed.ID, describeLines(completed.Lines))}
}

// OrdersCmd lists open orders, or orders in one status.
// Args: [status]
func OrdersCmd(ctx context.Context, core *service.Core, args []string) Result {
	var statuses []string
	if len(args) > 0 {
		statuses = []string{strings.ToLower(args[0])}
	}

	list, err := core.ListOrders(ctx, statuses, listLimit)
	if err != nil {
		return Result{Error: fmt.Errorf("listing orders: %w", err)}
	}
	if len(list) == 0 {
		return Result{Message: "No orders."}
	}

	var b strings.Builder
	for i, o := range list {
		if i > 0 {
			b.WriteString("\n")
		}
		fmt.Fprintf(&b, "#%d %s (%s): %s", o.ID, o.Status, o.CreatedBy, joinLines(o.Lines))
	}
	return Result{Message: b.String()}
}

// CompletedCmd lists the most recent completed orders.
func CompletedCmd(ctx context.Context, core *service.Core, args []string) Result {
	list, err := core.ListCompletedOrders(ctx, listLimit)
	if err != nil {
		return Result{Error: fmt.Errorf("listing completed orders: %w", err)}
	}
	if len(list) == 0 {
		return Result{Message: "No completed orders."}
	}

	var b strings.Builder
	for i, c := range list {
		if i > 0 {
			b.WriteString("\n")
		}
		fmt.Fprintf(&b, "#%d order #%d %s %s: %s",
			c.ID, c.OrderID, c.Status, c.CompletedAt.Format("2006-01-02"), joinLines(c.Lines))
	}
	return Result{Message: b.String()}
}

// ReturnCmd requests, accepts or rejects the return of a completed order.
// Args: <completed_order_id>
func ReturnCmd(ctx context.Context, core *service.Core, name string, args []string) Result {
	id, err := parseID(args, name+" <completed_order_id>")
	if err != nil {
		return Result{Error: err}
	}

	switch name {
	case CmdReturn:
		c, err := core.RequestReturn(ctx, id)
		if err != nil {
			return Result{Error: err}
		}
		return Result{Message: fmt.Sprintf("Return requested for completed order #%d.", c.ID)}

	case CmdAccept:
		conf, err := core.ConfirmReturn(ctx, id)
		if err != nil {
			return Result{Error: err}
		}
		msg := fmt.Sprintf("Return of completed order #%d accepted, stock restored.", conf.Order.ID)
		for _, a := range conf.Anomalies {
			msg += "\nWarning: " + a.String()
		}
		return Result{Message: msg}

	case CmdReject:
		c, err := core.RejectReturn(ctx, id)
		if err != nil {
			return Result{Error: err}
		}
		return Result{Message: fmt.Sprintf("Return of completed order #%d rejected.", c.ID)}
	}
	return Result{Error: fmt.Errorf("unknown return action %q", name)}
}

func describeLines(lines []orders.Line) string {
	parts := make([]string, len(lines))
	for i, l := range lines {
		parts[i] = "- " + l.String()
	}
	return strings.Join(parts, "\n")
}

func joinLines(lines []orders.Line) string {
	parts := make([]string, len(lines))
	for i, l := range lines {
		parts[i] = l.String()
	}
	return strings.Join(parts, ", ")
}

// HelpCmd returns available commands for the sender.
func HelpCmd(isAdmin bool) Result {
	msg := `Available commands:
• stock [kind|key] - Show stock
• rates - List film consumption rates
• order <line>... - Create an order (panel:A1:0.5:6 joint:T:A1:0.5:4 glue:2)
• reserve|confirm|cancel <order_id> - Move an order along
• fulfill <order_id> - Ship an order from stock
• orders [status] - List open orders
• completed - List completed orders
• return <completed_id> - Request a return
• log [n] - Show recent stock operations
• help - Show this message`

	if isAdmin {
		msg += `

Admin commands:
• add <key> <qty> - Receive stock (film:A1 12.5, blank:0.5 20)
• discontinue <key> - Remove an empty stock record
• rate <film> [m] - Show or set meters of film per panel
• convert <film> <thickness> <count> - Laminate blanks into panels
• accept <completed_id> - Confirm a return and restock
• reject <completed_id> - Reject a return`
	}

	return Result{Message: msg}
}
