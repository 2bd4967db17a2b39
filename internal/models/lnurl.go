package models

import "encoding/json"

// LNURL-pay limits, millisats (LUD-06)
const (
	MinSendableMsat = 1_000
	MaxSendableMsat = 100_000_000

	// MaxCommentLength is the comment length advertised via commentAllowed (LUD-12)
	MaxCommentLength = 100

	// InvoiceExpirySeconds is the lifetime requested for every issued invoice
	InvoiceExpirySeconds = 600
)

// placeholder 1x1 PNG shown by wallets that render the descriptor image
const metadataImageBase64 = "iVBORw0KGgoAAAANSUhEUgAAAAEAAAABCAQAAAC1HAwCAAAAC0lEQVR42mNkYAAAAAYAAjCB0C8AAAAASUVORK5CYII="

// PayParams is the LNURL-pay descriptor returned from /.well-known/lnurlp/{name}
type PayParams struct {
	Callback       string `json:"callback"`
	MaxSendable    int64  `json:"maxSendable"`
	MinSendable    int64  `json:"minSendable"`
	Metadata       string `json:"metadata"`
	Tag            string `json:"tag"`
	CommentAllowed int    `json:"commentAllowed"`
	AllowsNostr    bool   `json:"allowsNostr"`
	NostrPubkey    string `json:"nostrPubkey"`
}

// InvoiceResponse is the success payload of the LNURL-pay callback
type InvoiceResponse struct {
	PR     string   `json:"pr"`
	Routes []string `json:"routes"`
}

// ErrorResponse is the LNURL error payload ({"status":"ERROR","reason":...})
type ErrorResponse struct {
	Status string `json:"status"`
	Reason string `json:"reason"`
}

func NewErrorResponse(reason string) ErrorResponse {
	return ErrorResponse{Status: "ERROR", Reason: reason}
}

// EncodeMetadata serializes the LNURL metadata array for the given address
// and display text. The encoded form is also what payers hash when verifying
// invoice descriptions, so it must stay stable between calls.
func EncodeMetadata(address, description string) (string, error) {
	entries := [][]string{
		{"text/identifier", address},
		{"text/plain", description},
		{"image/png;base64", metadataImageBase64},
	}
	encoded, err := json.Marshal(entries)
	if err != nil {
		return "", err
	}
	return string(encoded), nil
}

// DecodeMetadata parses an encoded metadata string back into its entries
func DecodeMetadata(encoded string) ([][]string, error) {
	var entries [][]string
	if err := json.Unmarshal([]byte(encoded), &entries); err != nil {
		return nil, err
	}
	return entries, nil
}
