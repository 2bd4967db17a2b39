package receipt

import (
	"errors"
	"fmt"

	"github.com/nbd-wtf/go-nostr"
	"go.uber.org/zap"

	"github.com/FedericoLuque/lightning-server-Nostr-zaps/internal/store"
)

// ErrSelfVerification means a freshly signed receipt failed its own
// signature check. That is a bug in the signing path, not a transient
// condition, so callers must discard the receipt instead of retrying.
var ErrSelfVerification = errors.New("zap receipt failed self-verification")

// Builder constructs and signs zap receipts (NIP-57 kind 9735) with the
// server identity key.
type Builder struct {
	privateKey string
	publicKey  string
	logger     *zap.Logger
}

func NewBuilder(privateKey string, logger *zap.Logger) (*Builder, error) {
	publicKey, err := nostr.GetPublicKey(privateKey)
	if err != nil {
		return nil, fmt.Errorf("invalid server private key: %w", err)
	}
	return &Builder{
		privateKey: privateKey,
		publicKey:  publicKey,
		logger:     logger,
	}, nil
}

// PublicKey returns the server identity public key, hex-encoded
func (b *Builder) PublicKey() string {
	return b.publicKey
}

// Build assembles the receipt for a settled pending zap, signs it and
// verifies the resulting signature before releasing it. The description
// tag carries the original request JSON exactly as received so that
// downstream verifiers can recompute the amount/recipient binding.
func (b *Builder) Build(pending *store.PendingZap, preimage string) (*nostr.Event, error) {
	recipient := ""
	if pending.Facts != nil {
		recipient = pending.Facts.RecipientPubkey
	}
	if recipient == "" {
		// No recipient in the request; address the receipt to ourselves
		// rather than emitting an unaddressed event
		recipient = b.publicKey
	}

	tags := nostr.Tags{
		nostr.Tag{"bolt11", pending.Bolt11},
		nostr.Tag{"description", pending.RawRequest},
		nostr.Tag{"preimage", preimage},
		nostr.Tag{"p", recipient},
	}
	if pending.Facts != nil && pending.Facts.EventID != "" {
		tags = append(tags, nostr.Tag{"e", pending.Facts.EventID})
	}

	event := nostr.Event{
		Kind:      nostr.KindZap,
		CreatedAt: nostr.Now(),
		Content:   "",
		Tags:      tags,
		PubKey:    b.publicKey,
	}

	if err := event.Sign(b.privateKey); err != nil {
		return nil, fmt.Errorf("failed to sign zap receipt: %w", err)
	}

	if ok, err := event.CheckSignature(); err != nil || !ok {
		b.logger.Error("Signed zap receipt failed self-verification, not publishing",
			zap.String("payment_hash", pending.PaymentHash),
			zap.Error(err),
		)
		return nil, ErrSelfVerification
	}

	return &event, nil
}
