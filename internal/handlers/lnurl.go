package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/nbd-wtf/go-nostr"
	"go.uber.org/zap"

	"github.com/FedericoLuque/lightning-server-Nostr-zaps/internal/config"
	"github.com/FedericoLuque/lightning-server-Nostr-zaps/internal/lnbits"
	"github.com/FedericoLuque/lightning-server-Nostr-zaps/internal/metrics"
	"github.com/FedericoLuque/lightning-server-Nostr-zaps/internal/models"
	"github.com/FedericoLuque/lightning-server-Nostr-zaps/internal/nostrzap"
	"github.com/FedericoLuque/lightning-server-Nostr-zaps/internal/store"
)

const createInvoiceTimeout = 60 * time.Second

// invoiceCreator is the slice of the LNBits client the handler needs
type invoiceCreator interface {
	CreateInvoice(ctx context.Context, amountMsat int64, memo string) (*lnbits.Invoice, error)
}

// LNURLHandler serves the LNURL-pay descriptor and the invoice callback
type LNURLHandler struct {
	cfg     *config.Config
	store   *store.Store
	backend invoiceCreator
	logger  *zap.Logger
}

func NewLNURLHandler(cfg *config.Config, st *store.Store, backend invoiceCreator, logger *zap.Logger) *LNURLHandler {
	return &LNURLHandler{
		cfg:     cfg,
		store:   st,
		backend: backend,
		logger:  logger,
	}
}

// PayParams handles GET /.well-known/lnurlp/:name
func (h *LNURLHandler) PayParams(c *fiber.Ctx) error {
	if c.Params("name") != h.cfg.LNURL.Name {
		return c.Status(fiber.StatusNotFound).JSON(models.NewErrorResponse("Unknown lightning address"))
	}

	address := h.cfg.LNURL.Address()
	metadata, err := models.EncodeMetadata(address, fmt.Sprintf("Pay to %s Lightning Address", h.cfg.LNURL.Name))
	if err != nil {
		h.logger.Error("Failed to encode LNURL metadata", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(models.NewErrorResponse("Internal error"))
	}

	return c.JSON(models.PayParams{
		Callback:       h.cfg.LNURL.CallbackURL(),
		MaxSendable:    models.MaxSendableMsat,
		MinSendable:    models.MinSendableMsat,
		Metadata:       metadata,
		Tag:            "payRequest",
		CommentAllowed: models.MaxCommentLength,
		AllowsNostr:    true,
		NostrPubkey:    h.cfg.Nostr.PublicKey,
	})
}

// Callback handles GET /lnurl-pay/callback. A nostr query parameter turns
// the payment into a zap: the request is validated, an invoice is minted
// and the zap is tracked until the poller sees it settle.
func (h *LNURLHandler) Callback(c *fiber.Ctx) error {
	rawRequest := c.Query("nostr")

	var zapRequest *nostr.Event
	var facts *nostrzap.Facts

	if rawRequest != "" {
		var event nostr.Event
		if err := json.Unmarshal([]byte(rawRequest), &event); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(models.NewErrorResponse("Invalid nostr parameter"))
		}

		extracted, err := nostrzap.Validate(&event)
		if err != nil {
			var validationErr *nostrzap.ValidationError
			if errors.As(err, &validationErr) {
				return c.Status(fiber.StatusBadRequest).JSON(
					models.NewErrorResponse(fmt.Sprintf("Invalid zap event: %s", validationErr.Reason)))
			}
			return c.Status(fiber.StatusBadRequest).JSON(models.NewErrorResponse("Invalid zap event"))
		}

		zapRequest = &event
		facts = extracted
	}

	amountMsat, err := strconv.ParseInt(c.Query("amount"), 10, 64)
	if err != nil || amountMsat < models.MinSendableMsat || amountMsat > models.MaxSendableMsat {
		return c.Status(fiber.StatusBadRequest).JSON(
			models.NewErrorResponse("Amount outside range: 1-100000 sats"))
	}

	memo := h.memoFor(zapRequest, c.Query("comment"))

	ctx, cancel := context.WithTimeout(c.UserContext(), createInvoiceTimeout)
	defer cancel()

	invoice, err := h.backend.CreateInvoice(ctx, amountMsat, memo)
	if err != nil {
		if errors.Is(err, lnbits.ErrAmountOutOfRange) {
			return c.Status(fiber.StatusBadRequest).JSON(
				models.NewErrorResponse("Amount outside range: 1-100000 sats"))
		}
		h.logger.Error("Failed to create invoice",
			zap.Int64("amount_msat", amountMsat),
			zap.Error(err),
		)
		return c.Status(fiber.StatusInternalServerError).JSON(
			models.NewErrorResponse("Failed to create invoice"))
	}

	isZap := zapRequest != nil
	if isZap {
		inserted := h.store.Put(&store.PendingZap{
			PaymentHash: invoice.PaymentHash,
			Request:     zapRequest,
			RawRequest:  rawRequest,
			Facts:       facts,
			AmountMsat:  amountMsat,
			Bolt11:      invoice.Bolt11,
		})
		if !inserted {
			h.logger.Warn("Payment hash already tracked, keeping existing pending zap",
				zap.String("payment_hash", invoice.PaymentHash),
			)
		} else {
			h.logger.Info("Tracking pending zap",
				zap.String("payment_hash", invoice.PaymentHash),
				zap.Int64("amount_msat", amountMsat),
				zap.String("recipient", facts.RecipientPubkey),
			)
		}
	}

	metrics.InvoicesCreated.WithLabelValues(strconv.FormatBool(isZap)).Inc()

	return c.JSON(models.InvoiceResponse{
		PR:     invoice.Bolt11,
		Routes: []string{},
	})
}

// memoFor derives the invoice memo: zap sender, payer comment, or the
// plain address, in that order of preference
func (h *LNURLHandler) memoFor(zapRequest *nostr.Event, comment string) string {
	switch {
	case zapRequest != nil:
		sender := zapRequest.PubKey
		if len(sender) > 8 {
			sender = sender[:8]
		}
		return fmt.Sprintf("Zap from %s...", sender)
	case comment != "":
		return fmt.Sprintf("Lightning Address: %s", comment)
	default:
		return h.cfg.LNURL.Address()
	}
}
