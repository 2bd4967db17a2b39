package nostrzap

import (
	"testing"

	"github.com/nbd-wtf/go-nostr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func signedZapRequest(t *testing.T, tags nostr.Tags) *nostr.Event {
	t.Helper()

	event := nostr.Event{
		Kind:      nostr.KindZapRequest,
		CreatedAt: nostr.Now(),
		Content:   "zap!",
		Tags:      tags,
	}
	require.NoError(t, event.Sign(nostr.GeneratePrivateKey()))
	return &event
}

func reasonOf(t *testing.T, err error) Reason {
	t.Helper()

	var validationErr *ValidationError
	require.ErrorAs(t, err, &validationErr)
	return validationErr.Reason
}

func TestValidate_AcceptsWellFormedRequest(t *testing.T) {
	event := signedZapRequest(t, nostr.Tags{
		{"p", "abc123"},
		{"e", "def456"},
		{"relays", "wss://relay.one", "wss://relay.two"},
		{"amount", "21000"},
	})

	facts, err := Validate(event)
	require.NoError(t, err)

	assert.Equal(t, "abc123", facts.RecipientPubkey)
	assert.Equal(t, "def456", facts.EventID)
	assert.Equal(t, []string{"wss://relay.one", "wss://relay.two"}, facts.Relays)
	assert.Equal(t, int64(21000), facts.AmountMsat)
}

func TestValidate_OptionalTagsMayBeAbsent(t *testing.T) {
	event := signedZapRequest(t, nostr.Tags{{"p", "abc123"}})

	facts, err := Validate(event)
	require.NoError(t, err)

	assert.Equal(t, "abc123", facts.RecipientPubkey)
	assert.Empty(t, facts.EventID)
	assert.Empty(t, facts.Relays)
	assert.Zero(t, facts.AmountMsat)
}

func TestValidate_IncompleteEvent(t *testing.T) {
	event := &nostr.Event{
		Kind: nostr.KindZapRequest,
		Tags: nostr.Tags{{"p", "abc123"}},
	}

	_, err := Validate(event)
	assert.Equal(t, ReasonIncompleteEvent, reasonOf(t, err))
}

func TestValidate_TamperedSignature(t *testing.T) {
	event := signedZapRequest(t, nostr.Tags{{"p", "abc123"}})
	event.Content = "tampered after signing"

	_, err := Validate(event)
	assert.Equal(t, ReasonInvalidSignature, reasonOf(t, err))
}

func TestValidate_GarbageSignature(t *testing.T) {
	event := signedZapRequest(t, nostr.Tags{{"p", "abc123"}})
	event.Sig = "not-a-signature"

	_, err := Validate(event)
	assert.Equal(t, ReasonInvalidSignature, reasonOf(t, err))
}

func TestValidate_WrongKind(t *testing.T) {
	event := nostr.Event{
		Kind:      nostr.KindTextNote,
		CreatedAt: nostr.Now(),
		Tags:      nostr.Tags{{"p", "abc123"}},
	}
	require.NoError(t, event.Sign(nostr.GeneratePrivateKey()))

	_, err := Validate(&event)
	assert.Equal(t, ReasonWrongKind, reasonOf(t, err))
}

func TestValidate_MissingRecipient(t *testing.T) {
	event := signedZapRequest(t, nostr.Tags{{"relays", "wss://relay.one"}})

	_, err := Validate(event)
	assert.Equal(t, ReasonMissingRecipient, reasonOf(t, err))
}

func TestValidate_IgnoresMalformedAmount(t *testing.T) {
	event := signedZapRequest(t, nostr.Tags{
		{"p", "abc123"},
		{"amount", "not-a-number"},
	})

	facts, err := Validate(event)
	require.NoError(t, err)
	assert.Zero(t, facts.AmountMsat)
}
