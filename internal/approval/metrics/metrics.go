package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics tracks the approval queue. All methods are nil-safe.
type Metrics struct {
	Enqueued           *prometheus.CounterVec
	Resolved           *prometheus.CounterVec
	Conflicts          prometheus.Counter
	ProcessingFailures prometheus.Counter
}

func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		Enqueued: f.NewCounterVec(prometheus.CounterOpts{
			Name: "riskgate_approvals_enqueued_total",
			Help: "Payouts suspended for review by primary flag",
		}, []string{"flag"}),
		Resolved: f.NewCounterVec(prometheus.CounterOpts{
			Name: "riskgate_approvals_resolved_total",
			Help: "Approval resolutions by terminal status",
		}, []string{"status"}),
		Conflicts: f.NewCounter(prometheus.CounterOpts{
			Name: "riskgate_approval_conflicts_total",
			Help: "Resolution attempts on records that were no longer pending",
		}),
		ProcessingFailures: f.NewCounter(prometheus.CounterOpts{
			Name: "riskgate_approval_processing_failures_total",
			Help: "Resolved approvals whose payout release or failure call errored",
		}),
	}
}

func (m *Metrics) IncrementEnqueued(flag string) {
	if m != nil {
		m.Enqueued.WithLabelValues(flag).Inc()
	}
}

func (m *Metrics) IncrementResolved(status string) {
	if m != nil {
		m.Resolved.WithLabelValues(status).Inc()
	}
}

func (m *Metrics) IncrementConflict() {
	if m != nil {
		m.Conflicts.Inc()
	}
}

func (m *Metrics) IncrementProcessingFailure() {
	if m != nil {
		m.ProcessingFailures.Inc()
	}
}
