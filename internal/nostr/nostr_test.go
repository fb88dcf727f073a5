package nostr

import (
	"context"
	"testing"
	"time"

	"github.com/nbd-wtf/go-nostr"
)

func TestDeduplicator_Seen(t *testing.T) {
	d := NewDeduplicator(time.Minute)

	a := &nostr.Event{ID: "a"}
	if d.Seen(a) {
		t.Error("first sighting reported as duplicate")
	}
	if !d.Seen(a) {
		t.Error("second sighting not reported as duplicate")
	}
	if d.Seen(&nostr.Event{ID: "b"}) {
		t.Error("different id reported as duplicate")
	}
}

func TestDeduplicator_Cleanup(t *testing.T) {
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	d := NewDeduplicator(time.Minute)
	d.now = func() time.Time { return now }

	d.Seen(&nostr.Event{ID: "old"})
	now = now.Add(2 * time.Minute)
	d.Seen(&nostr.Event{ID: "fresh"})

	d.Cleanup()

	if d.Len() != 1 {
		t.Fatalf("Len() = %d, want 1", d.Len())
	}
	if d.Seen(&nostr.Event{ID: "old"}) {
		t.Error("expired id still remembered")
	}
	if !d.Seen(&nostr.Event{ID: "fresh"}) {
		t.Error("fresh id forgotten")
	}
}

func TestRelayManager_Route(t *testing.T) {
	rm := NewRelayManager(nil, "abc", nil)

	tests := []struct {
		kind   int
		routed bool
	}{
		{nostr.KindGiftWrap, true},
		{nostr.KindEncryptedDirectMessage, true},
		{nostr.KindTextNote, false},
		{9735, false},
	}

	for _, tt := range tests {
		rm.route(&nostr.Event{ID: "x", Kind: tt.kind})
		select {
		case <-rm.DMEvents():
			if !tt.routed {
				t.Errorf("kind %d routed to DMs", tt.kind)
			}
		default:
			if tt.routed {
				t.Errorf("kind %d not routed", tt.kind)
			}
		}
	}
}

func TestRelayManager_Filters(t *testing.T) {
	rm := NewRelayManager(nil, "abc", nil)
	f := rm.Filters()
	if len(f) != 1 {
		t.Fatalf("got %d filters", len(f))
	}
	if got := f[0].Tags["p"]; len(got) != 1 || got[0] != "abc" {
		t.Errorf("p tag filter = %v", got)
	}
	if len(f[0].Kinds) != 2 {
		t.Errorf("kinds = %v", f[0].Kinds)
	}
}

func TestRelayManager_PublishWithoutRelays(t *testing.T) {
	rm := NewRelayManager(nil, "abc", nil)
	if err := rm.Publish(context.Background(), &nostr.Event{}); err == nil {
		t.Error("expected error with no relays")
	}
}
