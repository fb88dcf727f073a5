// Package lock serializes access to ledger keys across concurrent callers.
package lock

import (
	"context"
	"errors"
	"sort"
)

// ErrNotObtained indicates a key lock could not be acquired before the
// context expired or the retry budget ran out.
var ErrNotObtained = errors.New("lock not obtained")

// Locker acquires exclusive locks on a set of keys. Keys are always locked in
// lexicographic order so two overlapping multi-key calls cannot deadlock.
// The returned release func must be called exactly once.
type Locker interface {
	Acquire(ctx context.Context, keys []string) (release func(), err error)
}

// Sorted returns keys deduplicated and in acquisition order.
func Sorted(keys []string) []string {
	seen := make(map[string]struct{}, len(keys))
	out := make([]string, 0, len(keys))
	for _, k := range keys {
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
