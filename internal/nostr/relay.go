// Package nostr manages relay connections for the operator DM channel and
// outgoing notifications.
package nostr

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/nbd-wtf/go-nostr"
	"go.uber.org/zap"
)

const (
	dmBuffer   = 100
	minBackoff = time.Second
	maxBackoff = 30 * time.Second
)

// RelayManager connects to a set of relays, subscribes to DMs addressed to
// the bot and publishes signed events.
type RelayManager struct {
	relayURLs    []string
	botPubkeyHex string
	logger       *zap.Logger

	mu     sync.RWMutex
	relays []*nostr.Relay

	dmEvents chan *nostr.Event

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func NewRelayManager(relayURLs []string, botPubkeyHex string, logger *zap.Logger) *RelayManager {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RelayManager{
		relayURLs:    relayURLs,
		botPubkeyHex: botPubkeyHex,
		logger:       logger,
		dmEvents:     make(chan *nostr.Event, dmBuffer),
	}
}

// Connect dials every relay and starts a subscription per relay. It fails
// only if no relay could be reached.
func (rm *RelayManager) Connect(ctx context.Context) error {
	rm.ctx, rm.cancel = context.WithCancel(ctx)

	var connected int
	for _, url := range rm.relayURLs {
		relay, err := nostr.RelayConnect(rm.ctx, url)
		if err != nil {
			rm.logger.Warn("relay connect failed", zap.String("relay", url), zap.Error(err))
			continue
		}

		rm.mu.Lock()
		rm.relays = append(rm.relays, relay)
		rm.mu.Unlock()
		connected++

		rm.wg.Add(1)
		go rm.subscribeRelay(relay)
	}

	if connected == 0 {
		return fmt.Errorf("failed to connect to any relays")
	}
	rm.logger.Info("relays connected", zap.Int("connected", connected), zap.Int("configured", len(rm.relayURLs)))
	return nil
}

// Filters returns the subscription filters: gift wraps and legacy DMs
// tagged with the bot's pubkey.
func (rm *RelayManager) Filters() nostr.Filters {
	return nostr.Filters{{
		Kinds: []int{nostr.KindGiftWrap, nostr.KindEncryptedDirectMessage},
		Tags:  nostr.TagMap{"p": []string{rm.botPubkeyHex}},
	}}
}

func (rm *RelayManager) subscribeRelay(relay *nostr.Relay) {
	defer rm.wg.Done()

	backoff := minBackoff
	for {
		if rm.ctx.Err() != nil {
			return
		}

		sub, err := relay.Subscribe(rm.ctx, rm.Filters())
		if err != nil {
			rm.logger.Warn("subscribe failed", zap.String("relay", relay.URL), zap.Error(err))
			if !rm.reconnect(relay, &backoff) {
				return
			}
			continue
		}
		backoff = minBackoff
		rm.logger.Debug("subscribed", zap.String("relay", relay.URL))

	events:
		for {
			select {
			case <-rm.ctx.Done():
				sub.Unsub()
				return
			case event, ok := <-sub.Events:
				if !ok {
					rm.logger.Info("subscription closed, reconnecting", zap.String("relay", relay.URL))
					if !rm.reconnect(relay, &backoff) {
						return
					}
					break events
				}
				rm.route(event)
			}
		}
	}
}

// reconnect waits out the backoff and redials. It returns false once the
// manager is shutting down.
func (rm *RelayManager) reconnect(relay *nostr.Relay, backoff *time.Duration) bool {
	select {
	case <-rm.ctx.Done():
		return false
	case <-time.After(*backoff):
	}

	if err := relay.Connect(rm.ctx); err != nil {
		rm.logger.Warn("reconnect failed", zap.String("relay", relay.URL), zap.Duration("backoff", *backoff), zap.Error(err))
		*backoff *= 2
		if *backoff > maxBackoff {
			*backoff = maxBackoff
		}
		return true
	}

	rm.logger.Info("reconnected", zap.String("relay", relay.URL))
	*backoff = minBackoff
	return true
}

func (rm *RelayManager) route(event *nostr.Event) {
	switch event.Kind {
	case nostr.KindGiftWrap, nostr.KindEncryptedDirectMessage:
		select {
		case rm.dmEvents <- event:
		default:
			rm.logger.Warn("dm channel full, dropping event", zap.String("event", event.ID))
		}
	default:
		rm.logger.Debug("ignoring event", zap.Int("kind", event.Kind))
	}
}

// DMEvents yields encrypted DMs from every relay. The same event may
// arrive once per relay; see Deduplicator.
func (rm *RelayManager) DMEvents() <-chan *nostr.Event {
	return rm.dmEvents
}

// Publish sends an event to every connected relay and succeeds if at least
// one accepted it.
func (rm *RelayManager) Publish(ctx context.Context, event *nostr.Event) error {
	rm.mu.RLock()
	relays := make([]*nostr.Relay, len(rm.relays))
	copy(relays, rm.relays)
	rm.mu.RUnlock()

	var lastErr error
	var published int
	for _, relay := range relays {
		if err := relay.Publish(ctx, *event); err != nil {
			lastErr = err
			rm.logger.Warn("publish failed", zap.String("relay", relay.URL), zap.Error(err))
			continue
		}
		published++
	}

	if published == 0 {
		if lastErr == nil {
			return fmt.Errorf("no relays connected")
		}
		return fmt.Errorf("failed to publish to any relay: %w", lastErr)
	}

	rm.logger.Debug("published", zap.String("event", event.ID), zap.Int("relays", published))
	return nil
}

// Close stops subscriptions and disconnects. DMEvents is closed afterwards.
func (rm *RelayManager) Close() {
	if rm.cancel != nil {
		rm.cancel()
	}
	rm.wg.Wait()

	rm.mu.Lock()
	for _, relay := range rm.relays {
		_ = relay.Close()
	}
	rm.relays = nil
	rm.mu.Unlock()

	close(rm.dmEvents)
	rm.logger.Info("relay manager closed")
}
