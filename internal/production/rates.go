// Package production turns raw film and blank panels into finished panels.
package production

import (
	"context"
	"errors"
	"fmt"

	"github.com/buildtall-systems/panelbot/internal/db"
	"github.com/buildtall-systems/panelbot/internal/inventory"
	"github.com/shopspring/decimal"
)

// ErrNoRate indicates a film code has no consumption rate and no default
// is configured.
var ErrNoRate = errors.New("no consumption rate")

// Rates is the film consumption table: meters of film per produced panel.
type Rates struct {
	db       *db.DB
	fallback decimal.Decimal
}

// NewRates builds the table. A positive fallback is used for film codes
// without their own rate.
func NewRates(database *db.DB, fallback decimal.Decimal) *Rates {
	return &Rates{db: database, fallback: fallback}
}

func (r *Rates) Set(ctx context.Context, filmCode string, metersPerPanel decimal.Decimal) error {
	if err := inventory.RawFilm(filmCode).Validate(); err != nil {
		return err
	}
	if !metersPerPanel.IsPositive() {
		return fmt.Errorf("%w: rate must be positive, got %s", inventory.ErrInvalidAmount, metersPerPanel)
	}
	return r.db.UpsertFilmRate(ctx, filmCode, metersPerPanel)
}

// Rate returns the meters of filmCode one panel consumes.
func (r *Rates) Rate(ctx context.Context, filmCode string) (decimal.Decimal, error) {
	rate, err := r.db.GetFilmRate(ctx, filmCode)
	if err != nil {
		return decimal.Zero, err
	}
	if rate != nil {
		return rate.MetersPerPanel, nil
	}
	if r.fallback.IsPositive() {
		return r.fallback, nil
	}
	return decimal.Zero, fmt.Errorf("%w for film %s", ErrNoRate, filmCode)
}

func (r *Rates) List(ctx context.Context) ([]db.FilmRate, error) {
	return r.db.ListFilmRates(ctx)
}
