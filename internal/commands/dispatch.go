package commands

import (
	"context"

	"github.com/buildtall-systems/panelbot/internal/service"
)

// Result holds the response from a command execution.
type Result struct {
	Message string
	Error   error
}

// Text is what the sender sees.
func (r Result) Text() string {
	if r.Error != nil {
		return "Error: " + r.Error.Error()
	}
	return r.Message
}

// Execute runs a permitted command against the core. The caller checks
// CanExecute first and attaches the sender as actor.
func Execute(ctx context.Context, core *service.Core, cmd *Command, role Role) Result {
	switch cmd.Name {
	// Stock
	case CmdStock:
		return StockCmd(ctx, core, cmd.Args)
	case CmdAdd:
		return AddCmd(ctx, core, cmd.Args)
	case CmdDiscontinue:
		return DiscontinueCmd(ctx, core, cmd.Args)
	case CmdLog:
		return LogCmd(ctx, core, cmd.Args)

	// Production
	case CmdRate:
		return RateCmd(ctx, core, cmd.Args)
	case CmdRates:
		return RatesCmd(ctx, core)
	case CmdConvert:
		return ConvertCmd(ctx, core, cmd.Args)

	// Orders
	case CmdOrder:
		return OrderCmd(ctx, core, cmd.Args)
	case CmdReserve, CmdConfirm, CmdCancel:
		return TransitionCmd(ctx, core, cmd.Name, cmd.Args)
	case CmdFulfill:
		return FulfillCmd(ctx, core, cmd.Args)
	case CmdOrders:
		return OrdersCmd(ctx, core, cmd.Args)
	case CmdCompleted:
		return CompletedCmd(ctx, core, cmd.Args)

	// Returns
	case CmdReturn, CmdAccept, CmdReject:
		return ReturnCmd(ctx, core, cmd.Name, cmd.Args)

	case CmdHelp:
		return HelpCmd(role == RoleAdmin)
	default:
		return HelpCmd(role == RoleAdmin)
	}
}
