package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for the rate limiter. All methods are nil-safe.
type Metrics struct {
	Checks       *prometheus.CounterVec
	StoreErrors  *prometheus.CounterVec
	Bypasses     *prometheus.CounterVec
	BreakerState *prometheus.GaugeVec
}

// New registers the rate limiter metrics with reg.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		Checks: f.NewCounterVec(prometheus.CounterOpts{
			Name: "riskgate_ratelimit_checks_total",
			Help: "Rate limit checks by limiter and outcome",
		}, []string{"limiter", "outcome"}), // outcome: allowed, denied, degraded_open, degraded_closed
		StoreErrors: f.NewCounterVec(prometheus.CounterOpts{
			Name: "riskgate_ratelimit_store_errors_total",
			Help: "Counter store failures by limiter",
		}, []string{"limiter"}),
		Bypasses: f.NewCounterVec(prometheus.CounterOpts{
			Name: "riskgate_ratelimit_allowlist_bypass_total",
			Help: "Checks skipped because the key is allowlisted",
		}, []string{"limiter"}),
		BreakerState: f.NewGaugeVec(prometheus.GaugeOpts{
			Name: "riskgate_ratelimit_breaker_open",
			Help: "1 when the counter store circuit breaker is open",
		}, []string{"store"}),
	}
}

func (m *Metrics) IncrementCheck(limiter, outcome string) {
	if m != nil {
		m.Checks.WithLabelValues(limiter, outcome).Inc()
	}
}

func (m *Metrics) IncrementStoreError(limiter string) {
	if m != nil {
		m.StoreErrors.WithLabelValues(limiter).Inc()
	}
}

func (m *Metrics) IncrementBypass(limiter string) {
	if m != nil {
		m.Bypasses.WithLabelValues(limiter).Inc()
	}
}

func (m *Metrics) SetBreakerOpen(store string, open bool) {
	if m == nil {
		return
	}
	v := 0.0
	if open {
		v = 1
	}
	m.BreakerState.WithLabelValues(store).Set(v)
}
