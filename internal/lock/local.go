package lock

import (
	"context"
	"fmt"
	"sync"
)

// LocalLocker locks keys within a single process.
type LocalLocker struct {
	mu    sync.Mutex
	slots map[string]chan struct{}
}

func NewLocalLocker() *LocalLocker {
	return &LocalLocker{slots: make(map[string]chan struct{})}
}

func (l *LocalLocker) slot(key string) chan struct{} {
	l.mu.Lock()
	defer l.mu.Unlock()

	ch, ok := l.slots[key]
	if !ok {
		ch = make(chan struct{}, 1)
		l.slots[key] = ch
	}
	return ch
}

// Acquire blocks until every key is held or ctx is done. On failure no key
// remains held.
func (l *LocalLocker) Acquire(ctx context.Context, keys []string) (func(), error) {
	ordered := Sorted(keys)
	held := make([]chan struct{}, 0, len(ordered))

	release := func() {
		for i := len(held) - 1; i >= 0; i-- {
			<-held[i]
		}
	}

	for _, key := range ordered {
		ch := l.slot(key)
		select {
		case ch <- struct{}{}:
			held = append(held, ch)
		case <-ctx.Done():
			release()
			return nil, fmt.Errorf("%w: %s: %v", ErrNotObtained, key, ctx.Err())
		}
	}

	var once sync.Once
	return func() { once.Do(release) }, nil
}
