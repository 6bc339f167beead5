package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// SweepMetrics covers the cron worker's maintenance sweeps.
type SweepMetrics struct {
	duration    *prometheus.HistogramVec
	runs        *prometheus.CounterVec
	lastSuccess *prometheus.GaugeVec
	now         func() time.Time
}

// NewSweepMetrics registers the sweep metrics on reg. A nil registerer
// yields a no-op recorder.
func NewSweepMetrics(reg prometheus.Registerer) *SweepMetrics {
	if reg == nil {
		return &SweepMetrics{}
	}
	m := &SweepMetrics{
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "medledger_sweep_duration_seconds",
			Help:    "Wall time of each maintenance sweep.",
			Buckets: []float64{0.05, 0.25, 1, 5, 30, 120, 600},
		}, []string{"job"}),
		runs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "medledger_sweep_runs_total",
			Help: "Maintenance sweeps by job and outcome.",
		}, []string{"job", "outcome"}),
		lastSuccess: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "medledger_sweep_last_success_timestamp_seconds",
			Help: "Unix time of the last sweep that finished without error.",
		}, []string{"job"}),
		now: time.Now,
	}
	reg.MustRegister(m.duration, m.runs, m.lastSuccess)
	return m
}

// ObserveRun records one finished sweep.
func (m *SweepMetrics) ObserveRun(job string, took time.Duration, err error) {
	if m == nil || m.runs == nil {
		return
	}
	job = normalizeLabel(job)
	m.duration.WithLabelValues(job).Observe(took.Seconds())
	if err != nil {
		m.runs.WithLabelValues(job, "failure").Inc()
		return
	}
	m.runs.WithLabelValues(job, "success").Inc()
	m.lastSuccess.WithLabelValues(job).Set(float64(m.now().Unix()))
}

func normalizeLabel(label string) string {
	if label == "" {
		return "unknown"
	}
	return label
}
