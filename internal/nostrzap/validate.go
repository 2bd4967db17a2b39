package nostrzap

import (
	"strconv"

	"github.com/nbd-wtf/go-nostr"
)

// Reason identifies why a zap request was rejected
type Reason string

const (
	ReasonIncompleteEvent  Reason = "Incomplete zap event"
	ReasonInvalidSignature Reason = "Invalid signature"
	ReasonWrongKind        Reason = "Not a zap request event"
	ReasonMissingRecipient Reason = "Missing p tag"
)

// ValidationError is returned for zap requests that fail validation.
// The reason is safe to surface to the payer verbatim.
type ValidationError struct {
	Reason Reason
}

func (e *ValidationError) Error() string {
	return string(e.Reason)
}

// Facts holds the fields extracted from a zap request. Only trust these
// after Validate has accepted the event.
type Facts struct {
	RecipientPubkey string
	EventID         string
	Relays          []string
	AmountMsat      int64
}

// Validate checks a candidate zap request event (NIP-57 kind 9734) and
// extracts its facts. Checks run in order and stop at the first failure:
// required fields, signature, kind, recipient tag. The optional e, relays
// and amount tags are extracted permissively; their absence is not an error.
func Validate(ev *nostr.Event) (*Facts, error) {
	if ev.PubKey == "" || ev.Kind == 0 || ev.CreatedAt == 0 || ev.Tags == nil {
		return nil, &ValidationError{Reason: ReasonIncompleteEvent}
	}

	if ok, err := ev.CheckSignature(); err != nil || !ok {
		return nil, &ValidationError{Reason: ReasonInvalidSignature}
	}

	if ev.Kind != nostr.KindZapRequest {
		return nil, &ValidationError{Reason: ReasonWrongKind}
	}

	pTag := ev.Tags.GetFirst([]string{"p"})
	if pTag == nil {
		return nil, &ValidationError{Reason: ReasonMissingRecipient}
	}

	facts := &Facts{
		RecipientPubkey: pTag.Value(),
	}

	if eTag := ev.Tags.GetFirst([]string{"e"}); eTag != nil {
		facts.EventID = eTag.Value()
	}

	for _, tag := range ev.Tags {
		if len(tag) > 1 && tag[0] == "relays" {
			facts.Relays = tag[1:]
			break
		}
	}

	if amountTag := ev.Tags.GetFirst([]string{"amount"}); amountTag != nil {
		if amount, err := strconv.ParseInt(amountTag.Value(), 10, 64); err == nil {
			facts.AmountMsat = amount
		}
	}

	return facts, nil
}
