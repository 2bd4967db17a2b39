package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// InvoicesCreated counts invoices minted through the LNURL callback,
	// partitioned by whether the request was a tracked zap
	InvoicesCreated = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "lnurl_invoices_created_total",
		Help: "Number of invoices issued via the LNURL-pay callback",
	}, []string{"zap"})

	// ZapsSettled counts pending zaps the poller observed as paid
	ZapsSettled = promauto.NewCounter(prometheus.CounterOpts{
		Name: "zaps_settled_total",
		Help: "Number of pending zaps detected as settled",
	})

	// ReceiptsFailed counts receipts discarded before publication
	ReceiptsFailed = promauto.NewCounter(prometheus.CounterOpts{
		Name: "zap_receipts_failed_total",
		Help: "Number of zap receipts that could not be built or signed",
	})

	// RelayPublishes counts per-relay delivery attempts by outcome
	RelayPublishes = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "relay_publishes_total",
		Help: "Number of per-relay zap receipt delivery attempts",
	}, []string{"result"})

	// ZapsExpired counts pending zaps evicted without ever settling
	ZapsExpired = promauto.NewCounter(prometheus.CounterOpts{
		Name: "zaps_expired_total",
		Help: "Number of pending zaps evicted by the expiry sweeper",
	})
)

// RegisterPendingGauge exposes the current pending zap count as a gauge.
// The callback is read at scrape time.
func RegisterPendingGauge(pendingCount func() int) {
	promauto.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "pending_zaps",
		Help: "Number of invoices currently awaiting settlement",
	}, func() float64 {
		return float64(pendingCount())
	})
}
