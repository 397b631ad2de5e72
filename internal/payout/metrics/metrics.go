package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics for payout validation. All methods are nil-safe.
type Metrics struct {
	Outcomes *prometheus.CounterVec
	Flags    *prometheus.CounterVec
	Duration prometheus.Histogram
}

func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		Outcomes: f.NewCounterVec(prometheus.CounterOpts{
			Name: "riskgate_payout_validations_total",
			Help: "Payout validations by outcome and rejection reason",
		}, []string{"outcome", "reason"}),
		Flags: f.NewCounterVec(prometheus.CounterOpts{
			Name: "riskgate_payout_review_flags_total",
			Help: "Review flags raised on payouts",
		}, []string{"flag"}),
		Duration: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "riskgate_payout_validation_duration_seconds",
			Help:    "Time spent validating a payout",
			Buckets: prometheus.DefBuckets,
		}),
	}
}

func (m *Metrics) IncrementOutcome(outcome, reason string) {
	if m != nil {
		m.Outcomes.WithLabelValues(outcome, reason).Inc()
	}
}

func (m *Metrics) IncrementFlag(flag string) {
	if m != nil {
		m.Flags.WithLabelValues(flag).Inc()
	}
}

func (m *Metrics) ObserveDuration(d time.Duration) {
	if m != nil {
		m.Duration.Observe(d.Seconds())
	}
}
