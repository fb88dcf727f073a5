package nostr

import (
	"sync"
	"time"

	"github.com/nbd-wtf/go-nostr"
)

// Deduplicator drops events already seen by ID. Entries expire after ttl
// so memory stays bounded on long runs.
type Deduplicator struct {
	mu   sync.Mutex
	seen map[string]time.Time
	ttl  time.Duration
	now  func() time.Time
}

func NewDeduplicator(ttl time.Duration) *Deduplicator {
	return &Deduplicator{
		seen: make(map[string]time.Time),
		ttl:  ttl,
		now:  time.Now,
	}
}

// Seen reports whether the event was seen before and marks it seen.
func (d *Deduplicator) Seen(event *nostr.Event) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	if _, ok := d.seen[event.ID]; ok {
		return true
	}
	d.seen[event.ID] = d.now()
	return false
}

// Cleanup forgets entries older than ttl.
func (d *Deduplicator) Cleanup() {
	d.mu.Lock()
	defer d.mu.Unlock()

	cutoff := d.now().Add(-d.ttl)
	for id, at := range d.seen {
		if at.Before(cutoff) {
			delete(d.seen, id)
		}
	}
}

func (d *Deduplicator) Len() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.seen)
}

// Run calls Cleanup every interval until done is closed.
func (d *Deduplicator) Run(done <-chan struct{}, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-done:
			return
		case <-ticker.C:
			d.Cleanup()
		}
	}
}
