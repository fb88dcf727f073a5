// Package dm opens incoming encrypted direct messages and builds replies.
// Gift-wrapped (NIP-17) is preferred; legacy kind:4 (NIP-04) is still
// answered in kind so older clients keep working.
package dm

import (
	"context"
	"errors"
	"fmt"

	"github.com/nbd-wtf/go-nostr"
	"github.com/nbd-wtf/go-nostr/nip04"
	"github.com/nbd-wtf/go-nostr/nip59"
)

// Protocol is the DM flavour a message arrived with.
type Protocol int

const (
	ProtocolNIP04 Protocol = Protocol(nostr.KindEncryptedDirectMessage)
	ProtocolNIP17 Protocol = Protocol(nostr.KindGiftWrap)
)

func (p Protocol) String() string {
	switch p {
	case ProtocolNIP04:
		return "nip04"
	case ProtocolNIP17:
		return "nip17"
	default:
		return fmt.Sprintf("kind:%d", int(p))
	}
}

var ErrUnsupportedKind = errors.New("unsupported dm kind")

// Message is a decrypted DM.
type Message struct {
	EventID  string
	Sender   string // hex pubkey
	Content  string
	Protocol Protocol
}

// Keys bundles what the bot needs to open and answer DMs.
type Keys struct {
	Keyer     nostr.Keyer
	SecretHex string
	PubkeyHex string
}

// Open decrypts a kind:1059 gift wrap or a kind:4 legacy DM.
func Open(ctx context.Context, k Keys, event *nostr.Event) (Message, error) {
	switch event.Kind {
	case nostr.KindGiftWrap:
		rumor, err := nip59.GiftUnwrap(*event, func(pubkey, ciphertext string) (string, error) {
			return k.Keyer.Decrypt(ctx, ciphertext, pubkey)
		})
		if err != nil {
			return Message{}, fmt.Errorf("unwrapping gift: %w", err)
		}
		if rumor.Kind != nostr.KindDirectMessage {
			return Message{}, fmt.Errorf("%w: rumor kind %d", ErrUnsupportedKind, rumor.Kind)
		}
		return Message{EventID: event.ID, Sender: rumor.PubKey, Content: rumor.Content, Protocol: ProtocolNIP17}, nil

	case nostr.KindEncryptedDirectMessage:
		shared, err := nip04.ComputeSharedSecret(event.PubKey, k.SecretHex)
		if err != nil {
			return Message{}, fmt.Errorf("computing shared secret: %w", err)
		}
		plain, err := nip04.Decrypt(event.Content, shared)
		if err != nil {
			return Message{}, fmt.Errorf("decrypting message: %w", err)
		}
		return Message{EventID: event.ID, Sender: event.PubKey, Content: plain, Protocol: ProtocolNIP04}, nil

	default:
		return Message{}, fmt.Errorf("%w: %d", ErrUnsupportedKind, event.Kind)
	}
}

// Reply answers m using the protocol it arrived with.
func Reply(ctx context.Context, k Keys, m Message, text string) (*nostr.Event, error) {
	if m.Protocol == ProtocolNIP04 {
		return WrapLegacyResponse(ctx, k.Keyer, k.SecretHex, k.PubkeyHex, m.Sender, text)
	}
	return WrapResponse(ctx, k.Keyer, k.PubkeyHex, m.Sender, text)
}

// WrapResponse builds a kind:1059 gift wrap around a kind:14 rumor.
func WrapResponse(ctx context.Context, kr nostr.Keyer, botPubkeyHex, recipientPubkeyHex, message string) (*nostr.Event, error) {
	rumor := nostr.Event{
		PubKey:    botPubkeyHex,
		CreatedAt: nostr.Now(),
		Kind:      nostr.KindDirectMessage,
		Tags:      nostr.Tags{nostr.Tag{"p", recipientPubkeyHex}},
		Content:   message,
	}

	wrapped, err := nip59.GiftWrap(
		rumor,
		recipientPubkeyHex,
		func(plaintext string) (string, error) {
			return kr.Encrypt(ctx, plaintext, recipientPubkeyHex)
		},
		func(event *nostr.Event) error {
			return kr.SignEvent(ctx, event)
		},
		nil,
	)
	if err != nil {
		return nil, fmt.Errorf("gift wrapping response: %w", err)
	}
	return &wrapped, nil
}

// WrapLegacyResponse builds a signed kind:4 DM.
func WrapLegacyResponse(ctx context.Context, kr nostr.Keyer, botSecretHex, botPubkeyHex, recipientPubkeyHex, message string) (*nostr.Event, error) {
	shared, err := nip04.ComputeSharedSecret(recipientPubkeyHex, botSecretHex)
	if err != nil {
		return nil, fmt.Errorf("computing shared secret: %w", err)
	}
	ciphertext, err := nip04.Encrypt(message, shared)
	if err != nil {
		return nil, fmt.Errorf("encrypting message: %w", err)
	}

	event := &nostr.Event{
		PubKey:    botPubkeyHex,
		CreatedAt: nostr.Now(),
		Kind:      nostr.KindEncryptedDirectMessage,
		Tags:      nostr.Tags{nostr.Tag{"p", recipientPubkeyHex}},
		Content:   ciphertext,
	}
	if err := kr.SignEvent(ctx, event); err != nil {
		return nil, fmt.Errorf("signing event: %w", err)
	}
	return event, nil
}
