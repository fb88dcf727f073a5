package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// FilmRate is the film consumed, in meters, per produced panel.
type FilmRate struct {
	FilmCode       string
	MetersPerPanel decimal.Decimal
	UpdatedAt      time.Time
}

// UpsertFilmRate creates or replaces the consumption rate of a film code.
func (db *DB) UpsertFilmRate(ctx context.Context, filmCode string, metersPerPanel decimal.Decimal) error {
	_, err := db.ExecContext(ctx, `
		INSERT INTO film_rates (film_code, meters_per_panel)
		VALUES (?, ?)
		ON CONFLICT(film_code) DO UPDATE SET
			meters_per_panel = excluded.meters_per_panel,
			updated_at = CURRENT_TIMESTAMP
	`, filmCode, metersPerPanel)
	if err != nil {
		return fmt.Errorf("upserting film rate: %w", err)
	}
	return nil
}

// GetFilmRate returns the rate for filmCode, or nil if none is set.
func (db *DB) GetFilmRate(ctx context.Context, filmCode string) (*FilmRate, error) {
	var r FilmRate
	err := db.QueryRowContext(ctx, `
		SELECT film_code, meters_per_panel, updated_at
		FROM film_rates WHERE film_code = ?
	`, filmCode).Scan(&r.FilmCode, &r.MetersPerPanel, &r.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("querying film rate: %w", err)
	}
	return &r, nil
}

// ListFilmRates returns all configured rates ordered by film code.
func (db *DB) ListFilmRates(ctx context.Context) ([]FilmRate, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT film_code, meters_per_panel, updated_at
		FROM film_rates ORDER BY film_code ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("querying film rates: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var rates []FilmRate
	for rows.Next() {
		var r FilmRate
		if err := rows.Scan(&r.FilmCode, &r.MetersPerPanel, &r.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scanning film rate: %w", err)
		}
		rates = append(rates, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating film rates: %w", err)
	}
	return rates, nil
}
