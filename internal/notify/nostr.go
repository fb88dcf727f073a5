package notify

import (
	"context"
	"errors"
	"fmt"

	"github.com/buildtall-systems/panelbot/internal/dm"
	"github.com/buildtall-systems/panelbot/internal/events"
	"github.com/nbd-wtf/go-nostr"
)

// EventPublisher publishes a signed event to relays.
type EventPublisher interface {
	Publish(ctx context.Context, event *nostr.Event) error
}

// NostrSink sends every event as a gift-wrapped DM to each recipient.
type NostrSink struct {
	kr         nostr.Keyer
	pubkeyHex  string
	publisher  EventPublisher
	recipients []string // hex pubkeys
}

func NewNostrSink(kr nostr.Keyer, botPubkeyHex string, publisher EventPublisher, recipients []string) *NostrSink {
	return &NostrSink{
		kr:         kr,
		pubkeyHex:  botPubkeyHex,
		publisher:  publisher,
		recipients: recipients,
	}
}

func (s *NostrSink) Name() string { return "nostr" }

// Deliver attempts every recipient and joins the failures.
func (s *NostrSink) Deliver(ctx context.Context, e events.Event) error {
	msg := Render(e)

	var errs []error
	for _, to := range s.recipients {
		wrapped, err := dm.WrapResponse(ctx, s.kr, s.pubkeyHex, to, msg)
		if err != nil {
			errs = append(errs, fmt.Errorf("wrapping for %s: %w", short(to), err))
			continue
		}
		if err := s.publisher.Publish(ctx, wrapped); err != nil {
			errs = append(errs, fmt.Errorf("publishing to %s: %w", short(to), err))
		}
	}
	return errors.Join(errs...)
}

func short(hex string) string {
	if len(hex) > 8 {
		return hex[:8]
	}
	return hex
}
