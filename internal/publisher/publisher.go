package publisher

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/nbd-wtf/go-nostr"
	"go.uber.org/zap"

	"github.com/FedericoLuque/lightning-server-Nostr-zaps/internal/metrics"
)

const defaultRelayTimeout = 10 * time.Second

// Publisher sends signed zap receipts to relays. Every relay is attempted
// independently on its own goroutine; delivery is best-effort and failures
// are only logged. Relay availability is outside our control, so there is
// no retry and no success quorum.
type Publisher struct {
	fallbackRelays []string
	timeout        time.Duration
	logger         *zap.Logger
}

func New(fallbackRelays []string, logger *zap.Logger) *Publisher {
	return &Publisher{
		fallbackRelays: fallbackRelays,
		timeout:        defaultRelayTimeout,
		logger:         logger,
	}
}

// RelaySet returns the relays a receipt should go to: the requester's
// declared relays when present, otherwise the fallback set.
func (p *Publisher) RelaySet(requested []string) []string {
	if len(requested) > 0 {
		return requested
	}
	return p.fallbackRelays
}

// Publish dispatches the receipt to every target relay and returns
// immediately. The per-relay goroutines outlive the call; they are joined
// only by their own connection cleanup.
func (p *Publisher) Publish(event *nostr.Event, requested []string) {
	relays := p.RelaySet(requested)
	batchID := uuid.NewString()

	p.logger.Info("Publishing zap receipt",
		zap.String("event_id", event.ID),
		zap.Int("relay_count", len(relays)),
		zap.String("batch_id", batchID),
	)

	for _, relayURL := range relays {
		go p.publishToRelay(relayURL, event, batchID)
	}
}

func (p *Publisher) publishToRelay(relayURL string, event *nostr.Event, batchID string) {
	ctx, cancel := context.WithTimeout(context.Background(), p.timeout)
	defer cancel()

	relay, err := nostr.RelayConnect(ctx, relayURL)
	if err != nil {
		metrics.RelayPublishes.WithLabelValues("error").Inc()
		p.logger.Warn("Failed to connect to relay",
			zap.String("relay", relayURL),
			zap.String("batch_id", batchID),
			zap.Error(err),
		)
		return
	}
	defer relay.Close()

	if err := relay.Publish(ctx, *event); err != nil {
		metrics.RelayPublishes.WithLabelValues("error").Inc()
		p.logger.Warn("Failed to publish zap receipt to relay",
			zap.String("relay", relayURL),
			zap.String("batch_id", batchID),
			zap.Error(err),
		)
		return
	}

	metrics.RelayPublishes.WithLabelValues("ok").Inc()
	p.logger.Info("Published zap receipt to relay",
		zap.String("relay", relayURL),
		zap.String("event_id", event.ID),
		zap.String("batch_id", batchID),
	)
}
