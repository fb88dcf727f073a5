package inventory

import (
	"context"
	"fmt"

	"github.com/buildtall-systems/panelbot/internal/db"
	"github.com/shopspring/decimal"
)

// Tx is the view of the ledger inside one Update. Every read and write goes
// through the same store transaction, and every write appends an operation
// log entry to it.
type Tx struct {
	dtx       *db.Tx
	tolerance decimal.Decimal
	locked    map[string]struct{}
	batchID   string
	actor     string
	reason    string
	mutations []mutation
}

type mutation struct {
	kind      Kind
	direction string
}

// DB exposes the underlying store transaction for writes that must commit
// with the stock changes, such as archiving an order.
func (t *Tx) DB() *db.Tx {
	return t.dtx
}

// BatchID groups the operation log entries written by this Update.
func (t *Tx) BatchID() string {
	return t.batchID
}

// Get returns the quantity held under key, zero if absent.
func (t *Tx) Get(ctx context.Context, key Key) (decimal.Decimal, error) {
	rec, found, err := t.dtx.GetStockRecord(ctx, key.String())
	if err != nil {
		return decimal.Zero, err
	}
	if !found {
		return decimal.Zero, nil
	}
	return rec.Quantity, nil
}

// Shortfalls returns every key among amounts that cannot cover its merged
// request. Continuous kinds are allowed to undershoot by the film tolerance.
func (t *Tx) Shortfalls(ctx context.Context, amounts []Amount) ([]Shortfall, error) {
	merged, err := Merge(amounts)
	if err != nil {
		return nil, err
	}
	return t.shortfalls(ctx, merged)
}

func (t *Tx) shortfalls(ctx context.Context, merged []Amount) ([]Shortfall, error) {
	var shorts []Shortfall
	for _, a := range merged {
		avail, err := t.Get(ctx, a.Key)
		if err != nil {
			return nil, err
		}
		need := a.Quantity
		if a.Key.Kind.Continuous() {
			need = need.Sub(t.tolerance)
		}
		if need.GreaterThan(avail) {
			shorts = append(shorts, Shortfall{Key: a.Key, Requested: a.Quantity, Available: avail})
		}
	}
	return shorts, nil
}

// Deduct removes amount from key or fails with a *ShortfallError.
func (t *Tx) Deduct(ctx context.Context, key Key, amount decimal.Decimal) error {
	return t.DeductMany(ctx, []Amount{{Key: key, Quantity: amount}})
}

// DeductMany applies every deduction or none. All shortfalls are reported
// together before anything is written.
func (t *Tx) DeductMany(ctx context.Context, amounts []Amount) error {
	merged, err := Merge(amounts)
	if err != nil {
		return err
	}
	if err := t.checkLocked(merged); err != nil {
		return err
	}

	shorts, err := t.shortfalls(ctx, merged)
	if err != nil {
		return err
	}
	if len(shorts) > 0 {
		return &ShortfallError{Shortfalls: shorts}
	}

	for _, a := range merged {
		key := a.Key.String()
		rec, found, err := t.dtx.GetStockRecord(ctx, key)
		if err != nil {
			return err
		}
		if !found {
			return &ShortfallError{Shortfalls: []Shortfall{{Key: a.Key, Requested: a.Quantity, Available: decimal.Zero}}}
		}

		next := rec.Quantity.Sub(a.Quantity)
		if next.IsNegative() {
			// Within tolerance, otherwise shortfalls would have caught it.
			next = decimal.Zero
		}

		if err := t.dtx.UpdateStockQuantity(ctx, key, next, rec.Version); err != nil {
			return err
		}
		if err := t.log(ctx, key, next.Sub(rec.Quantity), next); err != nil {
			return err
		}
		t.mutations = append(t.mutations, mutation{kind: a.Key.Kind, direction: "deduct"})
	}
	return nil
}

// Credit adds amount to key, creating the record if absent.
func (t *Tx) Credit(ctx context.Context, key Key, amount decimal.Decimal) (created bool, err error) {
	keys, err := t.CreditMany(ctx, []Amount{{Key: key, Quantity: amount}})
	return len(keys) > 0, err
}

// CreditMany adds every amount and returns the keys whose records had to be
// created.
func (t *Tx) CreditMany(ctx context.Context, amounts []Amount) ([]Key, error) {
	merged, err := Merge(amounts)
	if err != nil {
		return nil, err
	}
	if err := t.checkLocked(merged); err != nil {
		return nil, err
	}

	var created []Key
	for _, a := range merged {
		key := a.Key.String()
		rec, found, err := t.dtx.GetStockRecord(ctx, key)
		if err != nil {
			return nil, err
		}

		var next decimal.Decimal
		if found {
			next = rec.Quantity.Add(a.Quantity)
			err = t.dtx.UpdateStockQuantity(ctx, key, next, rec.Version)
		} else {
			next = a.Quantity
			err = t.dtx.InsertStockRecord(ctx, key, string(a.Key.Kind), next)
			created = append(created, a.Key)
		}
		if err != nil {
			return nil, err
		}

		if err := t.log(ctx, key, a.Quantity, next); err != nil {
			return nil, err
		}
		t.mutations = append(t.mutations, mutation{kind: a.Key.Kind, direction: "credit"})
	}
	return created, nil
}

// Remove deletes an empty record.
func (t *Tx) Remove(ctx context.Context, key Key) error {
	if err := t.checkLocked([]Amount{{Key: key}}); err != nil {
		return err
	}

	s := key.String()
	rec, found, err := t.dtx.GetStockRecord(ctx, s)
	if err != nil {
		return err
	}
	if !found {
		return fmt.Errorf("%w: %s", ErrUnknownKey, s)
	}
	if !rec.Quantity.IsZero() {
		return fmt.Errorf("%w: %s holds %s", ErrNotEmpty, s, rec.Quantity)
	}

	if err := t.dtx.DeleteStockRecord(ctx, s, rec.Version); err != nil {
		return err
	}
	t.mutations = append(t.mutations, mutation{kind: key.Kind, direction: "remove"})
	return t.log(ctx, s, decimal.Zero, decimal.Zero)
}

func (t *Tx) checkLocked(amounts []Amount) error {
	for _, a := range amounts {
		if _, ok := t.locked[a.Key.String()]; !ok {
			return fmt.Errorf("%w: %s", ErrKeyNotLocked, a.Key)
		}
	}
	return nil
}

func (t *Tx) log(ctx context.Context, key string, delta, balance decimal.Decimal) error {
	return t.dtx.AppendOperation(ctx, db.Operation{
		BatchID:      t.batchID,
		ResourceKey:  key,
		Delta:        delta,
		BalanceAfter: balance,
		Actor:        t.actor,
		Reason:       t.reason,
	})
}
