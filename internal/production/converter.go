package production

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/buildtall-systems/panelbot/internal/inventory"
	"github.com/buildtall-systems/panelbot/internal/metrics"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// ErrInsufficientMaterial is matched by every *MaterialShortageError.
var ErrInsufficientMaterial = errors.New("insufficient material")

// MaterialShortageError names every raw material a conversion lacks.
type MaterialShortageError struct {
	Shortfalls []inventory.Shortfall
}

func (e *MaterialShortageError) Error() string {
	items := make([]string, len(e.Shortfalls))
	for i, s := range e.Shortfalls {
		items[i] = s.String()
	}
	return "insufficient material: " + strings.Join(items, "; ")
}

func (e *MaterialShortageError) Is(target error) bool {
	return target == ErrInsufficientMaterial
}

// Result describes a committed conversion.
type Result struct {
	Produced   inventory.Amount
	FilmUsed   inventory.Amount
	BlanksUsed inventory.Amount
	BatchID    string
}

type Converter struct {
	ledger *inventory.Ledger
	rates  *Rates
	logger *zap.Logger
}

func NewConverter(ledger *inventory.Ledger, rates *Rates, logger *zap.Logger) *Converter {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Converter{ledger: ledger, rates: rates, logger: logger}
}

// Convert consumes panelCount x rate meters of film and panelCount blank
// panels and credits panelCount finished panels of that film and thickness.
// Consumption and production commit in one transaction; on any shortage
// nothing is changed.
func (c *Converter) Convert(ctx context.Context, filmCode string, thickness decimal.Decimal, panelCount int64) (*Result, error) {
	if panelCount <= 0 {
		return nil, fmt.Errorf("%w: panel count must be positive, got %d", inventory.ErrInvalidAmount, panelCount)
	}

	film := inventory.RawFilm(filmCode)
	blank := inventory.BlankPanel(thickness)
	product := inventory.FinishedGood(filmCode, thickness)
	for _, k := range []inventory.Key{film, blank, product} {
		if err := k.Validate(); err != nil {
			return nil, err
		}
	}

	rate, err := c.rates.Rate(ctx, filmCode)
	if err != nil {
		return nil, err
	}

	count := decimal.NewFromInt(panelCount)
	result := &Result{
		Produced:   inventory.Amount{Key: product, Quantity: count},
		FilmUsed:   inventory.Amount{Key: film, Quantity: rate.Mul(count)},
		BlanksUsed: inventory.Amount{Key: blank, Quantity: count},
	}
	consume := []inventory.Amount{result.FilmUsed, result.BlanksUsed}

	reason := fmt.Sprintf("convert %s/%s", filmCode, thickness)
	err = c.ledger.Update(ctx, []inventory.Key{film, blank, product}, reason, func(tx *inventory.Tx) error {
		shorts, err := tx.Shortfalls(ctx, consume)
		if err != nil {
			return err
		}
		if len(shorts) > 0 {
			return &MaterialShortageError{Shortfalls: shorts}
		}

		if err := tx.DeductMany(ctx, consume); err != nil {
			return err
		}
		if _, err := tx.Credit(ctx, product, count); err != nil {
			return err
		}
		result.BatchID = tx.BatchID()
		return nil
	})
	if err != nil {
		if errors.Is(err, ErrInsufficientMaterial) {
			metrics.LedgerShortfalls.Inc()
		}
		return nil, err
	}

	c.logger.Info("converted panels",
		zap.String("film", filmCode),
		zap.Stringer("thickness", thickness),
		zap.Int64("panels", panelCount),
		zap.Stringer("film_used", result.FilmUsed.Quantity))
	return result, nil
}
