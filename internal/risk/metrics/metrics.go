package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for risk assessment. All methods are nil-safe.
type Metrics struct {
	// Signal evaluation latencies by category
	SignalLatency *prometheus.HistogramVec

	// Signals that degraded to neutral
	SignalUnavailable *prometheus.CounterVec

	// Assessment outcomes by action and level
	Assessments *prometheus.CounterVec

	// Failed writes of assessment records
	PersistFailures prometheus.Counter

	AssessLatency prometheus.Histogram
}

func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		SignalLatency: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "riskgate_signal_duration_seconds",
			Help:    "Duration of signal provider evaluation by category",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
		}, []string{"category"}),

		SignalUnavailable: f.NewCounterVec(prometheus.CounterOpts{
			Name: "riskgate_signal_unavailable_total",
			Help: "Signal evaluations that fell back to the neutral score",
		}, []string{"category"}),

		Assessments: f.NewCounterVec(prometheus.CounterOpts{
			Name: "riskgate_assessments_total",
			Help: "Risk assessments by action and level",
		}, []string{"action", "level"}),

		PersistFailures: f.NewCounter(prometheus.CounterOpts{
			Name: "riskgate_assessment_persist_failures_total",
			Help: "Assessments that could not be recorded and were failed",
		}),

		AssessLatency: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "riskgate_assess_duration_seconds",
			Help:    "Duration of a full assessment including persistence",
			Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		}),
	}
}

func (m *Metrics) ObserveSignalLatency(category string, d time.Duration) {
	if m != nil {
		m.SignalLatency.WithLabelValues(category).Observe(d.Seconds())
	}
}

func (m *Metrics) IncrementSignalUnavailable(category string) {
	if m != nil {
		m.SignalUnavailable.WithLabelValues(category).Inc()
	}
}

func (m *Metrics) IncrementAssessment(action, level string) {
	if m != nil {
		m.Assessments.WithLabelValues(action, level).Inc()
	}
}

func (m *Metrics) IncrementPersistFailure() {
	if m != nil {
		m.PersistFailures.Inc()
	}
}

func (m *Metrics) ObserveAssessLatency(d time.Duration) {
	if m != nil {
		m.AssessLatency.Observe(d.Seconds())
	}
}
