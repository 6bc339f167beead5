package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// LedgerMetrics tracks balance mutations and the moderation backlog.
type LedgerMetrics struct {
	mutations    *prometheus.CounterVec
	movedCents   *prometheus.CounterVec
	stalePending prometheus.Gauge
}

// NewLedgerMetrics registers the ledger metrics on reg. A nil registerer
// yields a no-op recorder.
func NewLedgerMetrics(reg prometheus.Registerer) *LedgerMetrics {
	if reg == nil {
		return &LedgerMetrics{}
	}
	mutations := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "ledger_mutations_total",
		Help: "Ledger mutations by action and outcome.",
	}, []string{"action", "outcome"})
	moved := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "ledger_moved_cents_total",
		Help: "Cents moved by successful ledger mutations.",
	}, []string{"action"})
	stale := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "ledger_stale_pending_requests",
		Help: "Moderated requests pending longer than the configured threshold.",
	})
	reg.MustRegister(mutations, moved, stale)
	return &LedgerMetrics{
		mutations:    mutations,
		movedCents:   moved,
		stalePending: stale,
	}
}

// ObserveMutation records one ledger mutation.
func (l *LedgerMetrics) ObserveMutation(action string, amountCents int64, err error) {
	if l == nil || l.mutations == nil {
		return
	}
	action = normalizeLabel(action)
	if err != nil {
		l.mutations.WithLabelValues(action, "failure").Inc()
		return
	}
	l.mutations.WithLabelValues(action, "success").Inc()
	if amountCents > 0 {
		l.movedCents.WithLabelValues(action).Add(float64(amountCents))
	}
}

// SetStalePending publishes the current stale backlog size.
func (l *LedgerMetrics) SetStalePending(count int64) {
	if l == nil || l.stalePending == nil {
		return
	}
	l.stalePending.Set(float64(count))
}
