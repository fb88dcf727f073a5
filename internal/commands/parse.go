package commands

import (
	"strings"
)

// Command represents a parsed operator command.
type Command struct {
	Name string   // Command name (lowercase)
	Args []string // Arguments after the command name
}

// Known command names
const (
	// Operator commands
	CmdStock     = "stock"
	CmdRates     = "rates"
	CmdOrder     = "order"
	CmdReserve   = "reserve"
	CmdConfirm   = "confirm"
	CmdCancel    = "cancel"
	CmdFulfill   = "fulfill"
	CmdOrders    = "orders"
	CmdCompleted = "completed"
	CmdReturn    = "return"
	CmdLog       = "log"
	CmdHelp      = "help"

	// Admin commands
	CmdAdd         = "add"
	CmdDiscontinue = "discontinue"
	CmdRate        = "rate"
	CmdConvert     = "convert"
	CmdAccept      = "accept"
	CmdReject      = "reject"
)

// Parse extracts a command from message content.
// Returns nil if the message is empty or contains only whitespace.
func Parse(content string) *Command {
	parts := strings.Fields(content)
	if len(parts) == 0 {
		return nil
	}

	return &Command{
		Name: strings.ToLower(parts[0]),
		Args: parts[1:],
	}
}

func (c *Command) IsOperatorCommand() bool {
	switch c.Name {
	case CmdStock, CmdRates, CmdOrder, CmdReserve, CmdConfirm, CmdCancel, CmdFulfill,
		CmdOrders, CmdCompleted, CmdReturn, CmdLog, CmdHelp:
		return true
	default:
		return false
	}
}

// IsAdminCommand returns true if the command requires admin privileges.
func (c *Command) IsAdminCommand() bool {
	switch c.Name {
	case CmdAdd, CmdDiscontinue, CmdRate, CmdConvert, CmdAccept, CmdReject:
		return true
	default:
		return false
	}
}

// IsValid returns true if the command name is recognized.
func (c *Command) IsValid() bool {
	return c.IsOperatorCommand() || c.IsAdminCommand()
}

func (c *Command) String() string {
	return strings.TrimSpace(c.Name + " " + strings.Join(c.Args, " "))
}
