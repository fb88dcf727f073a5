package production

import (
	"context"
	"errors"
	"testing"

	"github.com/buildtall-systems/panelbot/internal/db"
	"github.com/buildtall-systems/panelbot/internal/db/dbtest"
	"github.com/buildtall-systems/panelbot/internal/inventory"
	"github.com/shopspring/decimal"
)

var half = decimal.RequireFromString("0.5")

func setup(t *testing.T, fallback string) (*Converter, *inventory.Ledger, *Rates, *db.DB) {
	t.Helper()
	database := dbtest.Open(t)
	ledger := inventory.NewLedger(database, nil, nil, inventory.DefaultOptions())
	rates := NewRates(database, decimal.RequireFromString(fallback))
	return NewConverter(ledger, rates, nil), ledger, rates, database
}

func stock(t *testing.T, l *inventory.Ledger, key inventory.Key, qty string) {
	t.Helper()
	if _, err := l.Credit(context.Background(), key, decimal.RequireFromString(qty), "receive"); err != nil {
		t.Fatalf("Credit(%s): %v", key, err)
	}
}

func expect(t *testing.T, l *inventory.Ledger, key inventory.Key, want string) {
	t.Helper()
	got, err := l.Get(context.Background(), key)
	if err != nil {
		t.Fatalf("Get(%s): %v", key, err)
	}
	if !got.Equal(decimal.RequireFromString(want)) {
		t.Errorf("%s = %s, want %s", key, got, want)
	}
}

func TestConvert_Success(t *testing.T) {
	c, l, rates, _ := setup(t, "0")
	ctx := context.Background()

	if err := rates.Set(ctx, "A1", decimal.RequireFromString("2.5")); err != nil {
		t.Fatalf("Set: %v", err)
	}
	stock(t, l, inventory.RawFilm("A1"), "20")
	stock(t, l, inventory.BlankPanel(half), "6")

	res, err := c.Convert(ctx, "A1", half, 4)
	if err != nil {
		t.Fatalf("Convert: %v", err)
	}
	if !res.FilmUsed.Quantity.Equal(decimal.NewFromInt(10)) {
		t.Errorf("film used = %s, want 10", res.FilmUsed.Quantity)
	}
	if res.BatchID == "" {
		t.Error("expected a batch id")
	}

	expect(t, l, inventory.RawFilm("A1"), "10")
	expect(t, l, inventory.BlankPanel(half), "2")
	expect(t, l, inventory.FinishedGood("A1", half), "4")
}

// Film 10m at 2.5m/panel, 3 blanks, 5 panels requested: both materials are
// short and nothing moves.
func TestConvert_InsufficientMaterial(t *testing.T) {
	c, l, rates, database := setup(t, "0")
	ctx := context.Background()

	if err := rates.Set(ctx, "A1", decimal.RequireFromString("2.5")); err != nil {
		t.Fatalf("Set: %v", err)
	}
	stock(t, l, inventory.RawFilm("A1"), "10")
	stock(t, l, inventory.BlankPanel(half), "3")
	before, _ := database.CountOperations(ctx)

	_, err := c.Convert(ctx, "A1", half, 5)
	if !errors.Is(err, ErrInsufficientMaterial) {
		t.Fatalf("expected ErrInsufficientMaterial, got %v", err)
	}

	var mse *MaterialShortageError
	if !errors.As(err, &mse) {
		t.Fatalf("expected *MaterialShortageError, got %T", err)
	}
	want := "insufficient material: blank:0.5: need 5, have 3; film:A1: need 12.5, have 10"
	if mse.Error() != want {
		t.Errorf("Error() = %q, want %q", mse.Error(), want)
	}

	expect(t, l, inventory.RawFilm("A1"), "10")
	expect(t, l, inventory.BlankPanel(half), "3")
	expect(t, l, inventory.FinishedGood("A1", half), "0")

	after, _ := database.CountOperations(ctx)
	if after != before {
		t.Errorf("failed conversion wrote %d log entries", after-before)
	}
}

func TestConvert_OnlyBlanksShort(t *testing.T) {
	c, l, rates, _ := setup(t, "0")
	ctx := context.Background()

	_ = rates.Set(ctx, "A1", decimal.RequireFromString("2.5"))
	stock(t, l, inventory.RawFilm("A1"), "100")
	stock(t, l, inventory.BlankPanel(half), "3")

	_, err := c.Convert(ctx, "A1", half, 5)
	var mse *MaterialShortageError
	if !errors.As(err, &mse) {
		t.Fatalf("expected *MaterialShortageError, got %v", err)
	}
	if len(mse.Shortfalls) != 1 || mse.Shortfalls[0].Key != inventory.BlankPanel(half) {
		t.Errorf("shortfalls = %v, want only blanks", mse.Shortfalls)
	}
}

func TestConvert_FilmToleranceClampsToZero(t *testing.T) {
	c, l, rates, _ := setup(t, "0")
	ctx := context.Background()

	// 3 x 3.3333333 = 9.9999999, 3 x 3.3333334 = 10.0000002
	_ = rates.Set(ctx, "B2", decimal.RequireFromString("3.3333334"))
	stock(t, l, inventory.RawFilm("B2"), "10")
	stock(t, l, inventory.BlankPanel(half), "3")

	if _, err := c.Convert(ctx, "B2", half, 3); err != nil {
		t.Fatalf("Convert within tolerance: %v", err)
	}
	expect(t, l, inventory.RawFilm("B2"), "0")
	expect(t, l, inventory.FinishedGood("B2", half), "3")
}

func TestConvert_Rates(t *testing.T) {
	tests := []struct {
		name     string
		fallback string
		wantErr  error
	}{
		{"no rate and no default", "0", ErrNoRate},
		{"default rate", "1", nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, l, _, _ := setup(t, tt.fallback)
			stock(t, l, inventory.RawFilm("C3"), "5")
			stock(t, l, inventory.BlankPanel(half), "5")

			_, err := c.Convert(context.Background(), "C3", half, 2)
			if tt.wantErr == nil && err != nil {
				t.Fatalf("Convert: %v", err)
			}
			if tt.wantErr != nil && !errors.Is(err, tt.wantErr) {
				t.Fatalf("error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestConvert_InvalidInput(t *testing.T) {
	c, _, _, _ := setup(t, "1")
	ctx := context.Background()

	if _, err := c.Convert(ctx, "A1", half, 0); !errors.Is(err, inventory.ErrInvalidAmount) {
		t.Errorf("zero count: expected ErrInvalidAmount, got %v", err)
	}
	if _, err := c.Convert(ctx, "", half, 1); !errors.Is(err, inventory.ErrInvalidKey) {
		t.Errorf("empty film: expected ErrInvalidKey, got %v", err)
	}
	if _, err := c.Convert(ctx, "A1", decimal.Zero, 1); !errors.Is(err, inventory.ErrInvalidKey) {
		t.Errorf("zero thickness: expected ErrInvalidKey, got %v", err)
	}
}

func TestRates(t *testing.T) {
	_, _, rates, _ := setup(t, "0")
	ctx := context.Background()

	if err := rates.Set(ctx, "A1", decimal.Zero); !errors.Is(err, inventory.ErrInvalidAmount) {
		t.Errorf("expected ErrInvalidAmount for zero rate, got %v", err)
	}
	if err := rates.Set(ctx, "A1", decimal.RequireFromString("2.5")); err != nil {
		t.Fatalf("Set: %v", err)
	}

	got, err := rates.Rate(ctx, "A1")
	if err != nil {
		t.Fatalf("Rate: %v", err)
	}
	if !got.Equal(decimal.RequireFromString("2.5")) {
		t.Errorf("rate = %s, want 2.5", got)
	}

	list, err := rates.List(ctx)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(list) != 1 {
		t.Errorf("expected 1 rate, got %d", len(list))
	}
}
