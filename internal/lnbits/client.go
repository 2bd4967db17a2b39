package lnbits

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/net/proxy"

	"github.com/FedericoLuque/lightning-server-Nostr-zaps/internal/config"
	"github.com/FedericoLuque/lightning-server-Nostr-zaps/internal/models"
)

// ErrAmountOutOfRange is returned for amounts outside the advertised
// sendable bounds. No backend call is made in that case.
var ErrAmountOutOfRange = errors.New("amount outside range: 1-100000 sats")

// Invoice is the LNBits response to a successful invoice creation
type Invoice struct {
	PaymentHash string `json:"payment_hash"`
	Bolt11      string `json:"bolt11"`
}

// PaymentStatus is the LNBits response to a payment status lookup
type PaymentStatus struct {
	Paid     bool   `json:"paid"`
	Preimage string `json:"preimage"`
}

// Client talks to the LNBits wallet API. When the backend is a Tor hidden
// service, requests are routed through the configured SOCKS5 proxy.
type Client struct {
	baseURL    string
	invoiceKey string
	httpClient *http.Client
	logger     *zap.Logger
}

func New(cfg *config.LNBitsConfig, logger *zap.Logger) (*Client, error) {
	httpClient := &http.Client{
		Timeout: 60 * time.Second,
	}

	if cfg.UsesTor() {
		if cfg.TorProxyURL == "" {
			return nil, fmt.Errorf("LNBITS_API_URL is an onion service but TOR_PROXY_URL is not set")
		}
		transport, err := torTransport(cfg.TorProxyURL)
		if err != nil {
			return nil, fmt.Errorf("failed to configure tor proxy: %w", err)
		}
		httpClient.Transport = transport
	}

	return &Client{
		baseURL:    strings.TrimRight(cfg.APIURL, "/"),
		invoiceKey: cfg.InvoiceKey,
		httpClient: httpClient,
		logger:     logger,
	}, nil
}

// torTransport builds an HTTP transport that dials through a SOCKS5 proxy.
// Hostname resolution happens on the proxy side, which is required for
// .onion addresses.
func torTransport(proxyURL string) (*http.Transport, error) {
	parsed, err := url.Parse(proxyURL)
	if err != nil {
		return nil, fmt.Errorf("invalid proxy URL %q: %w", proxyURL, err)
	}

	dialer, err := proxy.SOCKS5("tcp", parsed.Host, nil, proxy.Direct)
	if err != nil {
		return nil, err
	}

	contextDialer, ok := dialer.(proxy.ContextDialer)
	if !ok {
		return nil, fmt.Errorf("socks5 dialer does not support context dialing")
	}

	return &http.Transport{
		DialContext: func(ctx context.Context, network, addr string) (net.Conn, error) {
			return contextDialer.DialContext(ctx, network, addr)
		},
	}, nil
}

// CreateInvoice asks LNBits to mint an invoice for the given amount.
// Amounts are bounded before any external call; LNBits takes whole sats,
// so the millisat amount is floored.
func (c *Client) CreateInvoice(ctx context.Context, amountMsat int64, memo string) (*Invoice, error) {
	if amountMsat < models.MinSendableMsat || amountMsat > models.MaxSendableMsat {
		return nil, ErrAmountOutOfRange
	}

	payload := map[string]interface{}{
		"out":    false,
		"amount": amountMsat / 1000,
		"memo":   memo,
		"expiry": models.InvoiceExpirySeconds,
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal invoice request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/v1/payments", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create invoice request: %w", err)
	}
	req.Header.Set("X-Api-Key", c.invoiceKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("invoice request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		c.logger.Warn("LNBits rejected invoice creation",
			zap.Int("status", resp.StatusCode),
			zap.String("response", string(snippet)),
		)
		return nil, fmt.Errorf("invoice creation returned status %d", resp.StatusCode)
	}

	var invoice Invoice
	if err := json.NewDecoder(resp.Body).Decode(&invoice); err != nil {
		return nil, fmt.Errorf("failed to decode invoice response: %w", err)
	}
	if invoice.PaymentHash == "" || invoice.Bolt11 == "" {
		return nil, fmt.Errorf("invoice response missing payment_hash or bolt11")
	}

	return &invoice, nil
}

// PaymentStatus looks up whether an invoice has settled
func (c *Client) PaymentStatus(ctx context.Context, paymentHash string) (*PaymentStatus, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/api/v1/payments/"+paymentHash, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create status request: %w", err)
	}
	req.Header.Set("X-Api-Key", c.invoiceKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("status request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("payment status returned status %d", resp.StatusCode)
	}

	var status PaymentStatus
	if err := json.NewDecoder(resp.Body).Decode(&status); err != nil {
		return nil, fmt.Errorf("failed to decode status response: %w", err)
	}

	return &status, nil
}
