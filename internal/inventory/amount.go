package inventory

import (
	"fmt"
	"sort"

	"github.com/shopspring/decimal"
)

// Amount pairs a key with a positive quantity.
type Amount struct {
	Key      Key
	Quantity decimal.Decimal
}

func (a Amount) String() string {
	return fmt.Sprintf("%s x%s", a.Key, a.Quantity)
}

// Validate checks the key and that the quantity is positive. Only continuous
// kinds accept fractional quantities.
func (a Amount) Validate() error {
	if err := a.Key.Validate(); err != nil {
		return err
	}
	if !a.Quantity.IsPositive() {
		return fmt.Errorf("%w: %s: quantity must be positive, got %s", ErrInvalidAmount, a.Key, a.Quantity)
	}
	if !a.Key.Kind.Continuous() && !a.Quantity.IsInteger() {
		return fmt.Errorf("%w: %s: quantity must be a whole number, got %s", ErrInvalidAmount, a.Key, a.Quantity)
	}
	return nil
}

// Merge validates amounts and sums those sharing a key. The result is sorted
// by key so mutations happen in lock order.
func Merge(amounts []Amount) ([]Amount, error) {
	byKey := make(map[string]Amount, len(amounts))
	for _, a := range amounts {
		if err := a.Validate(); err != nil {
			return nil, err
		}
		s := a.Key.String()
		if prev, ok := byKey[s]; ok {
			prev.Quantity = prev.Quantity.Add(a.Quantity)
			byKey[s] = prev
			continue
		}
		byKey[s] = a
	}

	merged := make([]Amount, 0, len(byKey))
	for _, a := range byKey {
		merged = append(merged, a)
	}
	sort.Slice(merged, func(i, j int) bool {
		return merged[i].Key.String() < merged[j].Key.String()
	})
	return merged, nil
}

// KeysOf returns the keys of amounts in input order.
func KeysOf(amounts []Amount) []Key {
	keys := make([]Key, len(amounts))
	for i, a := range amounts {
		keys[i] = a.Key
	}
	return keys
}
