package inventory

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/buildtall-systems/panelbot/internal/db"
	"github.com/buildtall-systems/panelbot/internal/lock"
	"github.com/buildtall-systems/panelbot/internal/metrics"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// Options tune conflict handling and the film rounding tolerance.
type Options struct {
	// FilmTolerance is how far a film deduction may undershoot and still
	// succeed, leaving the balance at exactly zero.
	FilmTolerance decimal.Decimal
	MaxRetries    int
	RetryBackoff  time.Duration
}

func DefaultOptions() Options {
	return Options{
		FilmTolerance: decimal.New(1, -6),
		MaxRetries:    3,
		RetryBackoff:  10 * time.Millisecond,
	}
}

// Ledger is the only writer of stock records.
type Ledger struct {
	db     *db.DB
	locker lock.Locker
	logger *zap.Logger
	opts   Options
}

// NewLedger builds a ledger over database. A nil locker serializes keys
// within this process only.
func NewLedger(database *db.DB, locker lock.Locker, logger *zap.Logger, opts Options) *Ledger {
	if locker == nil {
		locker = lock.NewLocalLocker()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.MaxRetries < 0 {
		opts.MaxRetries = 0
	}
	return &Ledger{db: database, locker: locker, logger: logger, opts: opts}
}

// Get returns the quantity held under key. Absent keys read as zero.
func (l *Ledger) Get(ctx context.Context, key Key) (decimal.Decimal, error) {
	if err := key.Validate(); err != nil {
		return decimal.Zero, err
	}
	rec, found, err := l.db.GetStockRecord(ctx, key.String())
	if err != nil {
		return decimal.Zero, fmt.Errorf("reading %s: %w", key, err)
	}
	if !found {
		return decimal.Zero, nil
	}
	return rec.Quantity, nil
}

// Record is a stock record as seen by callers.
type Record struct {
	Key       Key
	Quantity  decimal.Decimal
	UpdatedAt time.Time
}

// Records lists stock records ordered by key. An empty kind lists all kinds.
func (l *Ledger) Records(ctx context.Context, kind Kind) ([]Record, error) {
	rows, err := l.db.ListStockRecords(ctx, string(kind))
	if err != nil {
		return nil, err
	}

	records := make([]Record, 0, len(rows))
	for _, r := range rows {
		key, err := ParseKey(r.Key)
		if err != nil {
			l.logger.Warn("skipping unparseable stock record", zap.String("key", r.Key), zap.Error(err))
			continue
		}
		records = append(records, Record{Key: key, Quantity: r.Quantity, UpdatedAt: r.UpdatedAt})
	}
	return records, nil
}

// Operations returns the most recent operation log entries, optionally
// restricted to one key.
func (l *Ledger) Operations(ctx context.Context, key *Key, limit int) ([]db.Operation, error) {
	var filter string
	if key != nil {
		filter = key.String()
	}
	return l.db.ListOperations(ctx, filter, limit)
}

// Update locks keys in lexicographic order, then runs fn in a single store
// transaction. fn may only mutate the declared keys. Write conflicts are
// retried up to MaxRetries times before ErrConcurrencyConflict is returned.
// Any other error from fn rolls back every write it made.
func (l *Ledger) Update(ctx context.Context, keys []Key, reason string, fn func(*Tx) error) error {
	locked := make(map[string]struct{}, len(keys))
	names := make([]string, 0, len(keys))
	for _, k := range keys {
		if err := k.Validate(); err != nil {
			return err
		}
		s := k.String()
		locked[s] = struct{}{}
		names = append(names, s)
	}

	release, err := l.locker.Acquire(ctx, names)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrConcurrencyConflict, err)
	}
	defer release()

	actor := ActorFrom(ctx)

	for attempt := 0; ; attempt++ {
		tx := &Tx{
			tolerance: l.opts.FilmTolerance,
			locked:    locked,
			batchID:   uuid.NewString(),
			actor:     actor,
			reason:    reason,
		}

		err := l.db.InTx(ctx, func(dtx *db.Tx) error {
			tx.dtx = dtx
			return fn(tx)
		})
		if err == nil {
			for _, m := range tx.mutations {
				metrics.LedgerMutations.WithLabelValues(string(m.kind), m.direction).Inc()
			}
			if len(tx.mutations) > 0 {
				l.logger.Debug("ledger update committed",
					zap.String("batch", tx.batchID),
					zap.String("reason", reason),
					zap.String("actor", actor),
					zap.Int("mutations", len(tx.mutations)))
			}
			return nil
		}

		if errors.Is(err, ErrInsufficientStock) {
			metrics.LedgerShortfalls.Inc()
		}
		if !isConflict(err) {
			return err
		}

		metrics.LedgerConflicts.Inc()
		if attempt >= l.opts.MaxRetries {
			return fmt.Errorf("%w: %s: gave up after %d attempts: %v", ErrConcurrencyConflict, reason, attempt+1, err)
		}

		l.logger.Debug("retrying ledger update",
			zap.String("reason", reason),
			zap.Int("attempt", attempt+1),
			zap.Error(err))

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(l.opts.RetryBackoff * time.Duration(attempt+1)):
		}
	}
}

func isConflict(err error) bool {
	return errors.Is(err, db.ErrStaleRecord) || errors.Is(err, ErrConcurrencyConflict)
}

// Deduct atomically removes amount from key.
func (l *Ledger) Deduct(ctx context.Context, key Key, amount decimal.Decimal, reason string) error {
	return l.DeductMany(ctx, []Amount{{Key: key, Quantity: amount}}, reason)
}

// Credit atomically adds amount to key and reports whether the record was
// created.
func (l *Ledger) Credit(ctx context.Context, key Key, amount decimal.Decimal, reason string) (bool, error) {
	created, err := l.CreditMany(ctx, []Amount{{Key: key, Quantity: amount}}, reason)
	return len(created) > 0, err
}

// DeductMany applies every deduction or none of them.
func (l *Ledger) DeductMany(ctx context.Context, amounts []Amount, reason string) error {
	merged, err := Merge(amounts)
	if err != nil {
		return err
	}
	return l.Update(ctx, KeysOf(merged), reason, func(tx *Tx) error {
		return tx.DeductMany(ctx, merged)
	})
}

// CreditMany applies every credit atomically and returns the keys that had
// no record before.
func (l *Ledger) CreditMany(ctx context.Context, amounts []Amount, reason string) ([]Key, error) {
	merged, err := Merge(amounts)
	if err != nil {
		return nil, err
	}

	var created []Key
	err = l.Update(ctx, KeysOf(merged), reason, func(tx *Tx) error {
		var err error
		created, err = tx.CreditMany(ctx, merged)
		return err
	})
	if err != nil {
		return nil, err
	}
	return created, nil
}

// Discontinue removes an empty record. Records holding stock are refused
// with ErrNotEmpty.
func (l *Ledger) Discontinue(ctx context.Context, key Key) error {
	return l.Update(ctx, []Key{key}, "discontinue", func(tx *Tx) error {
		return tx.Remove(ctx, key)
	})
}
