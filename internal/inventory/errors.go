package inventory

import (
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

var (
	// ErrInsufficientStock is matched by every *ShortfallError.
	ErrInsufficientStock = errors.New("insufficient stock")

	// ErrConcurrencyConflict is surfaced once the write-conflict retry budget
	// is exhausted.
	ErrConcurrencyConflict = errors.New("concurrency conflict")

	ErrInvalidAmount = errors.New("invalid amount")
	ErrInvalidKey    = errors.New("invalid resource key")
	ErrNotEmpty      = errors.New("stock record not empty")
	ErrUnknownKey    = errors.New("unknown resource key")

	// ErrKeyNotLocked is returned when a transaction mutates a key it did not
	// declare up front.
	ErrKeyNotLocked = errors.New("key not locked by this update")
)

// Shortfall describes one key that cannot cover a requested amount.
type Shortfall struct {
	Key       Key
	Requested decimal.Decimal
	Available decimal.Decimal
}

// Missing is how much more stock the request needs.
func (s Shortfall) Missing() decimal.Decimal {
	return s.Requested.Sub(s.Available)
}

func (s Shortfall) String() string {
	return fmt.Sprintf("%s: need %s, have %s", s.Key, s.Requested, s.Available)
}

// ShortfallError itemizes every short key of a rejected operation.
type ShortfallError struct {
	Shortfalls []Shortfall
}

func (e *ShortfallError) Error() string {
	items := make([]string, len(e.Shortfalls))
	for i, s := range e.Shortfalls {
		items[i] = s.String()
	}
	return "insufficient stock: " + strings.Join(items, "; ")
}

func (e *ShortfallError) Is(target error) bool {
	return target == ErrInsufficientStock
}
