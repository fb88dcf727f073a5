package commands

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/buildtall-systems/panelbot/internal/inventory"
	"github.com/buildtall-systems/panelbot/internal/production"
	"github.com/buildtall-systems/panelbot/internal/service"
)

const defaultLogLimit = 10

// StockCmd lists every stock record, the records of one kind, or one key.
// Args: [kind|key]
func StockCmd(ctx context.Context, core *service.Core, args []string) Result {
	if len(args) > 1 {
		return Result{Error: errors.New("usage: stock [kind|key]")}
	}

	var kind inventory.Kind
	if len(args) == 1 {
		k := inventory.Kind(strings.ToLower(args[0]))
		if !k.Valid() || k == inventory.KindAdhesive {
			return stockOf(ctx, core, args[0])
		}
		kind = k
	}

	records, err := core.StockRecords(ctx, kind)
	if err != nil {
		return Result{Error: fmt.Errorf("listing stock: %w", err)}
	}
	if len(records) == 0 {
		return Result{Message: "No stock records."}
	}

	var b strings.Builder
	for i, r := range records {
		if i > 0 {
			b.WriteString("\n")
		}
		fmt.Fprintf(&b, "%s: %s", r.Key, r.Quantity)
	}
	return Result{Message: b.String()}
}

func stockOf(ctx context.Context, core *service.Core, s string) Result {
	key, err := inventory.ParseKey(s)
	if err != nil {
		return Result{Error: err}
	}
	qty, err := core.QueryStock(ctx, key)
	if err != nil {
		return Result{Error: fmt.Errorf("checking stock: %w", err)}
	}
	return Result{Message: fmt.Sprintf("%s: %s", key, qty)}
}

// AddCmd receives stock.
// Args: <key> <qty>
func AddCmd(ctx context.Context, core *service.Core, args []string) Result {
	if len(args) != 2 {
		return Result{Error: errors.New("usage: add <key> <qty>")}
	}

	key, err := inventory.ParseKey(args[0])
	if err != nil {
		return Result{Error: err}
	}
	qty, err := decimal.NewFromString(args[1])
	if err != nil {
		return Result{Error: errors.New("quantity must be a number")}
	}

	created, err := core.Receive(ctx, key, qty)
	if err != nil {
		return Result{Error: fmt.Errorf("adding stock: %w", err)}
	}

	total, err := core.QueryStock(ctx, key)
	if err != nil {
		return Result{Message: fmt.Sprintf("Added %s to %s.", qty, key)}
	}
	msg := fmt.Sprintf("Added %s to %s. Total: %s", qty, key, total)
	if created {
		msg += " (new record)"
	}
	return Result{Message: msg}
}

// DiscontinueCmd removes an empty stock record.
// Args: <key>
func DiscontinueCmd(ctx context.Context, core *service.Core, args []string) Result {
	if len(args) != 1 {
		return Result{Error: errors.New("usage: discontinue <key>")}
	}
	key, err := inventory.ParseKey(args[0])
	if err != nil {
		return Result{Error: err}
	}

	if err := core.Discontinue(ctx, key); err != nil {
		return Result{Error: fmt.Errorf("discontinuing %s: %w", key, err)}
	}
	return Result{Message: fmt.Sprintf("Discontinued %s.", key)}
}

// LogCmd shows the newest operation log entries.
// Args: [n]
func LogCmd(ctx context.Context, core *service.Core, args []string) Result {
	limit := defaultLogLimit
	if len(args) > 0 {
		n, err := strconv.Atoi(args[0])
		if err != nil || n < 1 {
			return Result{Error: errors.New("n must be a positive number")}
		}
		limit = n
	}

	ops, err := core.OperationLog(ctx, nil, limit)
	if err != nil {
		return Result{Error: fmt.Errorf("reading log: %w", err)}
	}
	if len(ops) == 0 {
		return Result{Message: "No operations yet."}
	}

	var b strings.Builder
	for i, op := range ops {
		if i > 0 {
			b.WriteString("\n")
		}
		fmt.Fprintf(&b, "%s %s %s -> %s (%s, %s)",
			op.CreatedAt.Format("2006-01-02 15:04"), op.ResourceKey, signed(op.Delta), op.BalanceAfter, op.Reason, op.Actor)
	}
	return Result{Message: b.String()}
}

func signed(d decimal.Decimal) string {
	if d.IsPositive() {
		return "+" + d.String()
	}
	return d.String()
}

// RateCmd shows or sets a film consumption rate.
// Args: <film> [meters_per_panel]
func RateCmd(ctx context.Context, core *service.Core, args []string) Result {
	if len(args) < 1 || len(args) > 2 {
		return Result{Error: errors.New("usage: rate <film> [meters_per_panel]")}
	}
	film := args[0]

	if len(args) == 1 {
		rate, err := core.Rate(ctx, film)
		if errors.Is(err, production.ErrNoRate) {
			return Result{Message: fmt.Sprintf("No rate set for film %s.", film)}
		}
		if err != nil {
			return Result{Error: fmt.Errorf("looking up rate: %w", err)}
		}
		return Result{Message: fmt.Sprintf("Film %s: %s m per panel", film, rate)}
	}

	rate, err := decimal.NewFromString(args[1])
	if err != nil {
		return Result{Error: errors.New("rate must be a number")}
	}
	if err := core.SetRate(ctx, film, rate); err != nil {
		return Result{Error: fmt.Errorf("setting rate: %w", err)}
	}
	return Result{Message: fmt.Sprintf("Film %s now uses %s m per panel.", film, rate)}
}

func RatesCmd(ctx context.Context, core *service.Core) Result {
	rates, err := core.Rates(ctx)
	if err != nil {
		return Result{Error: fmt.Errorf("listing rates: %w", err)}
	}
	if len(rates) == 0 {
		return Result{Message: "No rates set."}
	}

	var b strings.Builder
	for i, r := range rates {
		if i > 0 {
			b.WriteString("\n")
		}
		fmt.Fprintf(&b, "%s: %s m/panel", r.FilmCode, r.MetersPerPanel)
	}
	return Result{Message: b.String()}
}

// ConvertCmd runs a production batch.
// Args: <film> <thickness> <count>
func ConvertCmd(ctx context.Context, core *service.Core, args []string) Result {
	if len(args) != 3 {
		return Result{Error: errors.New("usage: convert <film> <thickness> <count>")}
	}
	thickness, err := inventory.ParseThickness(args[1])
	if err != nil {
		return Result{Error: err}
	}
	count, err := strconv.ParseInt(args[2], 10, 64)
	if err != nil || count < 1 {
		return Result{Error: errors.New("count must be a positive number")}
	}

	res, err := core.Convert(ctx, args[0], thickness, count)
	if err != nil {
		return Result{Error: err}
	}
	return Result{Message: fmt.Sprintf("Produced %s from %s and %s.", res.Produced, res.FilmUsed, res.BlanksUsed)}
}
