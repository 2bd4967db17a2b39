package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http/httptest"
	"net/url"
	"sync"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/nbd-wtf/go-nostr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/FedericoLuque/lightning-server-Nostr-zaps/internal/config"
	"github.com/FedericoLuque/lightning-server-Nostr-zaps/internal/lnbits"
	"github.com/FedericoLuque/lightning-server-Nostr-zaps/internal/models"
	"github.com/FedericoLuque/lightning-server-Nostr-zaps/internal/store"
)

type fakeInvoiceCreator struct {
	mu    sync.Mutex
	calls int
	memos []string
	err   error
}

func (f *fakeInvoiceCreator) CreateInvoice(ctx context.Context, amountMsat int64, memo string) (*lnbits.Invoice, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.calls++
	f.memos = append(f.memos, memo)
	if f.err != nil {
		return nil, f.err
	}
	return &lnbits.Invoice{
		PaymentHash: "deadbeefcafe",
		Bolt11:      "lnbc210n1fake",
	}, nil
}

func newTestApp(t *testing.T, backend *fakeInvoiceCreator) (*fiber.App, *store.Store, *config.Config) {
	t.Helper()

	privateKey := nostr.GeneratePrivateKey()
	publicKey, err := nostr.GetPublicKey(privateKey)
	require.NoError(t, err)

	cfg := &config.Config{
		Nostr: config.NostrConfig{
			PrivateKey: privateKey,
			PublicKey:  publicKey,
			Relays:     config.DefaultRelays,
		},
		LNURL: config.LNURLConfig{
			Domain: "example.com",
			Name:   "satoshi",
		},
	}

	st := store.New()
	handler := NewLNURLHandler(cfg, st, backend, zap.NewNop())

	app := fiber.New()
	app.Get("/.well-known/lnurlp/:name", handler.PayParams)
	app.Get("/lnurl-pay/callback", handler.Callback)

	return app, st, cfg
}

func decodeBody[T any](t *testing.T, body io.Reader) T {
	t.Helper()

	var decoded T
	require.NoError(t, json.NewDecoder(body).Decode(&decoded))
	return decoded
}

func signedZapRequestJSON(t *testing.T, tags nostr.Tags) string {
	t.Helper()

	event := nostr.Event{
		Kind:      nostr.KindZapRequest,
		CreatedAt: nostr.Now(),
		Tags:      tags,
	}
	require.NoError(t, event.Sign(nostr.GeneratePrivateKey()))

	raw, err := json.Marshal(event)
	require.NoError(t, err)
	return string(raw)
}

func TestPayParams(t *testing.T) {
	app, _, cfg := newTestApp(t, &fakeInvoiceCreator{})

	resp, err := app.Test(httptest.NewRequest("GET", "/.well-known/lnurlp/satoshi", nil))
	require.NoError(t, err)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	params := decodeBody[models.PayParams](t, resp.Body)
	assert.Equal(t, "https://example.com/lnurl-pay/callback", params.Callback)
	assert.Equal(t, int64(models.MinSendableMsat), params.MinSendable)
	assert.Equal(t, int64(models.MaxSendableMsat), params.MaxSendable)
	assert.Equal(t, "payRequest", params.Tag)
	assert.Equal(t, models.MaxCommentLength, params.CommentAllowed)
	assert.True(t, params.AllowsNostr)
	assert.Equal(t, cfg.Nostr.PublicKey, params.NostrPubkey)
}

func TestPayParams_MetadataRoundTrip(t *testing.T) {
	app, _, _ := newTestApp(t, &fakeInvoiceCreator{})

	resp, err := app.Test(httptest.NewRequest("GET", "/.well-known/lnurlp/satoshi", nil))
	require.NoError(t, err)

	params := decodeBody[models.PayParams](t, resp.Body)
	entries, err := models.DecodeMetadata(params.Metadata)
	require.NoError(t, err)

	byType := map[string]string{}
	for _, entry := range entries {
		require.Len(t, entry, 2)
		byType[entry[0]] = entry[1]
	}
	assert.Equal(t, "satoshi@example.com", byType["text/identifier"])
	assert.Equal(t, "Pay to satoshi Lightning Address", byType["text/plain"])
}

func TestPayParams_UnknownName(t *testing.T) {
	app, _, _ := newTestApp(t, &fakeInvoiceCreator{})

	resp, err := app.Test(httptest.NewRequest("GET", "/.well-known/lnurlp/mallory", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusNotFound, resp.StatusCode)
}

func TestCallback_PlainPaymentIsNotTracked(t *testing.T) {
	backend := &fakeInvoiceCreator{}
	app, st, _ := newTestApp(t, backend)

	resp, err := app.Test(httptest.NewRequest("GET", "/lnurl-pay/callback?amount=5000", nil))
	require.NoError(t, err)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.JSONEq(t, `{"pr":"lnbc210n1fake","routes":[]}`, string(body))

	assert.Equal(t, 1, backend.calls)
	assert.Zero(t, st.Len(), "plain address payments are not tracked")
}

func TestCallback_AmountOutOfRange(t *testing.T) {
	for _, amount := range []string{"", "abc", "999", "100000001", "-21"} {
		t.Run(fmt.Sprintf("amount=%q", amount), func(t *testing.T) {
			backend := &fakeInvoiceCreator{}
			app, st, _ := newTestApp(t, backend)

			target := "/lnurl-pay/callback"
			if amount != "" {
				target += "?amount=" + amount
			}
			resp, err := app.Test(httptest.NewRequest("GET", target, nil))
			require.NoError(t, err)

			assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
			errResp := decodeBody[models.ErrorResponse](t, resp.Body)
			assert.Equal(t, "ERROR", errResp.Status)
			assert.Zero(t, backend.calls, "backend must not be called for bad amounts")
			assert.Zero(t, st.Len())
		})
	}
}

func TestCallback_ZapRequestIsTracked(t *testing.T) {
	backend := &fakeInvoiceCreator{}
	app, st, _ := newTestApp(t, backend)

	raw := signedZapRequestJSON(t, nostr.Tags{
		{"p", "abc123"},
		{"e", "def456"},
		{"relays", "wss://relay.one", "wss://relay.two"},
		{"amount", "21000"},
	})

	target := "/lnurl-pay/callback?amount=21000&nostr=" + url.QueryEscape(raw)
	resp, err := app.Test(httptest.NewRequest("GET", target, nil))
	require.NoError(t, err)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	invoice := decodeBody[models.InvoiceResponse](t, resp.Body)
	assert.Equal(t, "lnbc210n1fake", invoice.PR)

	pending, ok := st.Get("deadbeefcafe")
	require.True(t, ok, "expected pending zap keyed by payment hash")
	assert.Equal(t, raw, pending.RawRequest, "stored request must be the wire bytes, verbatim")
	assert.Equal(t, "abc123", pending.Facts.RecipientPubkey)
	assert.Equal(t, "def456", pending.Facts.EventID)
	assert.Equal(t, []string{"wss://relay.one", "wss://relay.two"}, pending.Facts.Relays)
	assert.Equal(t, int64(21000), pending.AmountMsat)
	assert.Equal(t, "lnbc210n1fake", pending.Bolt11)

	// Memo identifies the zapper
	require.Len(t, backend.memos, 1)
	assert.Contains(t, backend.memos[0], "Zap from ")
}

func TestCallback_InvalidNostrParameter(t *testing.T) {
	backend := &fakeInvoiceCreator{}
	app, st, _ := newTestApp(t, backend)

	target := "/lnurl-pay/callback?amount=21000&nostr=" + url.QueryEscape("{not json")
	resp, err := app.Test(httptest.NewRequest("GET", target, nil))
	require.NoError(t, err)

	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
	errResp := decodeBody[models.ErrorResponse](t, resp.Body)
	assert.Equal(t, "Invalid nostr parameter", errResp.Reason)
	assert.Zero(t, backend.calls)
	assert.Zero(t, st.Len())
}

func TestCallback_TamperedZapRequest(t *testing.T) {
	backend := &fakeInvoiceCreator{}
	app, st, _ := newTestApp(t, backend)

	raw := signedZapRequestJSON(t, nostr.Tags{{"p", "abc123"}})
	var event nostr.Event
	require.NoError(t, json.Unmarshal([]byte(raw), &event))
	event.Content = "tampered"
	tampered, err := json.Marshal(event)
	require.NoError(t, err)

	target := "/lnurl-pay/callback?amount=21000&nostr=" + url.QueryEscape(string(tampered))
	resp, err := app.Test(httptest.NewRequest("GET", target, nil))
	require.NoError(t, err)

	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
	errResp := decodeBody[models.ErrorResponse](t, resp.Body)
	assert.Equal(t, "Invalid zap event: Invalid signature", errResp.Reason)
	assert.Zero(t, backend.calls, "no invoice may be minted for an unsigned request")
	assert.Zero(t, st.Len())
}

func TestCallback_ZapRequestWithoutRecipient(t *testing.T) {
	backend := &fakeInvoiceCreator{}
	app, st, _ := newTestApp(t, backend)

	raw := signedZapRequestJSON(t, nostr.Tags{{"relays", "wss://relay.one"}})

	target := "/lnurl-pay/callback?amount=21000&nostr=" + url.QueryEscape(raw)
	resp, err := app.Test(httptest.NewRequest("GET", target, nil))
	require.NoError(t, err)

	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
	errResp := decodeBody[models.ErrorResponse](t, resp.Body)
	assert.Equal(t, "Invalid zap event: Missing p tag", errResp.Reason)
	assert.Zero(t, st.Len())
}

func TestCallback_BackendFailure(t *testing.T) {
	backend := &fakeInvoiceCreator{err: fmt.Errorf("lnbits unreachable")}
	app, st, _ := newTestApp(t, backend)

	resp, err := app.Test(httptest.NewRequest("GET", "/lnurl-pay/callback?amount=21000", nil))
	require.NoError(t, err)

	assert.Equal(t, fiber.StatusInternalServerError, resp.StatusCode)
	errResp := decodeBody[models.ErrorResponse](t, resp.Body)
	assert.Equal(t, "Failed to create invoice", errResp.Reason)
	assert.Zero(t, st.Len(), "a failed invoice must not be tracked")
}

func TestCallback_CommentMemo(t *testing.T) {
	backend := &fakeInvoiceCreator{}
	app, _, _ := newTestApp(t, backend)

	resp, err := app.Test(httptest.NewRequest("GET", "/lnurl-pay/callback?amount=5000&comment=thanks", nil))
	require.NoError(t, err)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	require.Len(t, backend.memos, 1)
	assert.Equal(t, "Lightning Address: thanks", backend.memos[0])
}
