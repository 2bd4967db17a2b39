package poller

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/nbd-wtf/go-nostr"
	"go.uber.org/zap"

	"github.com/FedericoLuque/lightning-server-Nostr-zaps/internal/lnbits"
	"github.com/FedericoLuque/lightning-server-Nostr-zaps/internal/metrics"
	"github.com/FedericoLuque/lightning-server-Nostr-zaps/internal/receipt"
	"github.com/FedericoLuque/lightning-server-Nostr-zaps/internal/store"
)

const (
	pollInterval  = 10 * time.Second
	sweepInterval = 10 * time.Minute
	pendingTTL    = 10 * time.Minute

	statusTimeout = 30 * time.Second
)

// settlementChecker is the slice of the LNBits client the poller needs
type settlementChecker interface {
	PaymentStatus(ctx context.Context, paymentHash string) (*lnbits.PaymentStatus, error)
}

// receiptBuilder builds and signs a receipt for a settled pending zap
type receiptBuilder interface {
	Build(pending *store.PendingZap, preimage string) (*nostr.Event, error)
}

// receiptPublisher dispatches a signed receipt to relays, best-effort
type receiptPublisher interface {
	Publish(event *nostr.Event, requested []string)
}

// Poller drives settlement detection and store expiry. One goroutine runs
// the 10 second settlement sweep, another the 10 minute expiry sweep; each
// tick finishes before the next starts, so sweeps never overlap.
type Poller struct {
	store     *store.Store
	backend   settlementChecker
	builder   receiptBuilder
	publisher receiptPublisher
	logger    *zap.Logger
	ctx       context.Context
	cancel    context.CancelFunc
	started   bool
}

func New(
	st *store.Store,
	backend settlementChecker,
	builder receiptBuilder,
	publisher receiptPublisher,
	logger *zap.Logger,
) *Poller {
	ctx, cancel := context.WithCancel(context.Background())
	return &Poller{
		store:     st,
		backend:   backend,
		builder:   builder,
		publisher: publisher,
		logger:    logger,
		ctx:       ctx,
		cancel:    cancel,
	}
}

// Start launches the settlement and expiry loops
func (p *Poller) Start() error {
	if p.started {
		return fmt.Errorf("poller already started")
	}
	p.started = true

	go p.runSettlementLoop()
	go p.runExpiryLoop()

	p.logger.Info("Settlement poller started",
		zap.Duration("poll_interval", pollInterval),
		zap.Duration("pending_ttl", pendingTTL),
	)
	return nil
}

// Stop cancels both loops
func (p *Poller) Stop() {
	p.logger.Info("Stopping settlement poller")
	p.cancel()
}

func (p *Poller) runSettlementLoop() {
	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-p.ctx.Done():
			return
		case <-ticker.C:
			p.checkPendingPayments()
		}
	}
}

func (p *Poller) runExpiryLoop() {
	ticker := time.NewTicker(sweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-p.ctx.Done():
			return
		case <-ticker.C:
			if removed := p.store.Sweep(pendingTTL); removed > 0 {
				metrics.ZapsExpired.Add(float64(removed))
				p.logger.Info("Evicted expired pending zaps",
					zap.Int("removed", removed),
				)
			}
		}
	}
}

// checkPendingPayments runs one settlement sweep over a snapshot of the
// store. A failed status lookup keeps the entry for the next tick; an
// empty store makes no external call.
func (p *Poller) checkPendingPayments() {
	keys := p.store.Keys()
	if len(keys) == 0 {
		return
	}

	for _, paymentHash := range keys {
		ctx, cancel := context.WithTimeout(p.ctx, statusTimeout)
		status, err := p.backend.PaymentStatus(ctx, paymentHash)
		cancel()

		if err != nil {
			p.logger.Warn("Failed to check payment status",
				zap.String("payment_hash", paymentHash),
				zap.Error(err),
			)
			continue
		}

		if status.Paid {
			p.settle(paymentHash, status.Preimage)
		}
	}
}

// settle emits the zap receipt for a paid invoice. The entry is taken out
// of the store first, so at most one receipt is ever built per payment
// hash no matter how often settlement is observed.
func (p *Poller) settle(paymentHash, preimage string) {
	pending, ok := p.store.Take(paymentHash)
	if !ok {
		return
	}

	metrics.ZapsSettled.Inc()
	p.logger.Info("Pending zap settled",
		zap.String("payment_hash", paymentHash),
		zap.Int64("amount_msat", pending.AmountMsat),
	)

	event, err := p.builder.Build(pending, preimage)
	if err != nil {
		metrics.ReceiptsFailed.Inc()
		if errors.Is(err, receipt.ErrSelfVerification) {
			// Already logged at error severity by the builder. The payer
			// has been paid; dropping the receipt is the only safe move.
			return
		}
		p.logger.Error("Failed to build zap receipt",
			zap.String("payment_hash", paymentHash),
			zap.Error(err),
		)
		return
	}

	var requested []string
	if pending.Facts != nil {
		requested = pending.Facts.Relays
	}
	p.publisher.Publish(event, requested)
}
