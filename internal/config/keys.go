package config

import (
	"fmt"

	"github.com/nbd-wtf/go-nostr/nip19"
)

// NpubToHex decodes a bech32 npub into a hex pubkey.
func NpubToHex(npub string) (string, error) {
	return decode("npub", npub)
}

// NsecToHex decodes a bech32 nsec into a hex secret key.
func NsecToHex(nsec string) (string, error) {
	return decode("nsec", nsec)
}

func decode(want, s string) (string, error) {
	prefix, value, err := nip19.Decode(s)
	if err != nil {
		return "", fmt.Errorf("decoding %s: %w", want, err)
	}
	if prefix != want {
		return "", fmt.Errorf("expected %s, got %s", want, prefix)
	}
	hex, ok := value.(string)
	if !ok {
		return "", fmt.Errorf("unexpected %s payload %T", want, value)
	}
	return hex, nil
}

// PubkeysHex decodes every npub in the list.
func PubkeysHex(npubs []string) ([]string, error) {
	out := make([]string, 0, len(npubs))
	for _, n := range npubs {
		h, err := NpubToHex(n)
		if err != nil {
			return nil, err
		}
		out = append(out, h)
	}
	return out, nil
}
