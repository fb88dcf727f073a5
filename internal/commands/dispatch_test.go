package commands

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/buildtall-systems/panelbot/internal/db/dbtest"
	"github.com/buildtall-systems/panelbot/internal/inventory"
	"github.com/buildtall-systems/panelbot/internal/orders"
	"github.com/buildtall-systems/panelbot/internal/service"
)

func setupCore(t *testing.T) *service.Core {
	t.Helper()
	return service.New(dbtest.Open(t), nil, nil, nil, service.Options{Ledger: inventory.DefaultOptions()})
}

func run(t *testing.T, ctx context.Context, core *service.Core, line string) Result {
	t.Helper()
	cmd := Parse(line)
	if cmd == nil {
		t.Fatalf("Parse(%q) = nil", line)
	}
	return Execute(ctx, core, cmd, RoleAdmin)
}

func mustRun(t *testing.T, ctx context.Context, core *service.Core, line string) string {
	t.Helper()
	res := run(t, ctx, core, line)
	if res.Error != nil {
		t.Fatalf("%q: %v", line, res.Error)
	}
	return res.Message
}

func TestExecute(t *testing.T) {
	ctx := inventory.WithActor(context.Background(), "admin")
	core := setupCore(t)
	mustRun(t, ctx, core, "add panel:A1:0.5 10")
	mustRun(t, ctx, core, "add glue 5")

	tests := []struct {
		name        string
		line        string
		wantErr     bool
		msgContains string
	}{
		{name: "stock all", line: "stock", msgContains: "panel:A1:0.5: 10"},
		{name: "stock kind", line: "stock panel", msgContains: "panel:A1:0.5: 10"},
		{name: "stock key", line: "stock glue", msgContains: "glue: 5"},
		{name: "stock absent key", line: "stock film:B2", msgContains: "film:B2: 0"},
		{name: "stock bad key", line: "stock panel:A1", wantErr: true},
		{name: "add fractional panel", line: "add panel:A1:0.5 1.5", wantErr: true},
		{name: "add usage", line: "add glue", wantErr: true},
		{name: "order", line: "order panel:A1:0.5:2 glue:1", msgContains: "Order #1 created"},
		{name: "order bad line", line: "order panel:A1:0.5:0", wantErr: true},
		{name: "order no lines", line: "order", wantErr: true},
		{name: "reserve", line: "reserve 1", msgContains: "now reserved"},
		{name: "reserve again", line: "reserve 1", msgContains: "now reserved"},
		{name: "confirm", line: "confirm #1", msgContains: "now pending"},
		{name: "orders", line: "orders", msgContains: "#1 pending"},
		{name: "fulfill", line: "fulfill 1", msgContains: "completed order #1"},
		{name: "cancel after fulfill", line: "cancel 1", wantErr: true},
		{name: "fulfill unknown", line: "fulfill 99", wantErr: true},
		{name: "completed", line: "completed", msgContains: "order #1 completed"},
		{name: "return", line: "return 1", msgContains: "Return requested"},
		{name: "accept", line: "accept 1", msgContains: "accepted"},
		{name: "reject after accept", line: "reject 1", wantErr: true},
		{name: "log", line: "log 3", msgContains: "return #1"},
		{name: "log bad n", line: "log zero", wantErr: true},
		{name: "rate unset", line: "rate A1", msgContains: "No rate set"},
		{name: "rate set", line: "rate A1 2.5", msgContains: "2.5 m per panel"},
		{name: "rates", line: "rates", msgContains: "A1: 2.5 m/panel"},
		{name: "convert short", line: "convert A1 0.5 2", wantErr: true},
		{name: "discontinue non-empty", line: "discontinue glue", wantErr: true},
		{name: "help admin", line: "help", msgContains: "Admin commands"},
		{name: "unknown falls back to help", line: "sell 5", msgContains: "Available commands"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := run(t, ctx, core, tt.line)
			if tt.wantErr {
				if res.Error == nil {
					t.Errorf("%q: expected error, got %q", tt.line, res.Message)
				}
				return
			}
			if res.Error != nil {
				t.Fatalf("%q: unexpected error: %v", tt.line, res.Error)
			}
			if !strings.Contains(res.Message, tt.msgContains) {
				t.Errorf("%q: message %q missing %q", tt.line, res.Message, tt.msgContains)
			}
		})
	}
}

func TestExecute_HelpForOperator(t *testing.T) {
	res := Execute(context.Background(), setupCore(t), &Command{Name: CmdHelp}, RoleOperator)
	if strings.Contains(res.Message, "Admin commands") {
		t.Error("operator help lists admin commands")
	}
}

func TestExecute_ShortfallListsEveryLine(t *testing.T) {
	ctx := context.Background()
	core := setupCore(t)
	mustRun(t, ctx, core, "add panel:A1:0.5 4")
	mustRun(t, ctx, core, "order panel:A1:0.5:6 joint:T:A1:0.5:2")

	res := run(t, ctx, core, "fulfill 1")
	if !errors.Is(res.Error, inventory.ErrInsufficientStock) {
		t.Fatalf("error = %v, want insufficient stock", res.Error)
	}
	text := res.Text()
	for _, want := range []string{"panel:A1:0.5: need 6, have 4", "joint:T:A1:0.5: need 2, have 0"} {
		if !strings.Contains(text, want) {
			t.Errorf("Text() = %q, missing %q", text, want)
		}
	}
}

func TestExecute_ConvertThenFulfill(t *testing.T) {
	ctx := context.Background()
	core := setupCore(t)
	mustRun(t, ctx, core, "add film:A1 10")
	mustRun(t, ctx, core, "add blank:0.5 4")
	mustRun(t, ctx, core, "rate A1 2.5")

	msg := mustRun(t, ctx, core, "convert A1 0.5 4")
	if !strings.Contains(msg, "panel:A1:0.5 x4") {
		t.Errorf("convert message = %q", msg)
	}

	mustRun(t, ctx, core, "order panel:A1:0.5:4")
	mustRun(t, ctx, core, "fulfill 1")

	stock := mustRun(t, ctx, core, "stock")
	for _, want := range []string{"blank:0.5: 0", "film:A1: 0", "panel:A1:0.5: 0"} {
		if !strings.Contains(stock, want) {
			t.Errorf("stock = %q, missing %q", stock, want)
		}
	}
}

func TestExecute_CancelledOrderCannotBeFulfilled(t *testing.T) {
	ctx := context.Background()
	core := setupCore(t)
	mustRun(t, ctx, core, "add glue 5")
	mustRun(t, ctx, core, "order glue:1")
	mustRun(t, ctx, core, "cancel 1")

	res := run(t, ctx, core, "fulfill 1")
	if !errors.Is(res.Error, orders.ErrInvalidStateTransition) {
		t.Errorf("error = %v, want invalid transition", res.Error)
	}
}

func TestResultText(t *testing.T) {
	if got := (Result{Message: "ok"}).Text(); got != "ok" {
		t.Errorf("Text() = %q", got)
	}
	if got := (Result{Error: errors.New("boom")}).Text(); got != "Error: boom" {
		t.Errorf("Text() = %q", got)
	}
}
