package vaccination

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for verifications. A nil *Metrics records
// nothing.
type Metrics struct {
	// Verification outcomes by outcome and verdict color
	Outcomes *prometheus.CounterVec

	// Full verification latency, decode through classification
	VerifyLatency prometheus.Histogram
}

// NewMetrics registers the verification metrics with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		Outcomes: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "vaxcheck_verifications_total",
			Help: "Total verifications by outcome and verdict color",
		}, []string{"outcome", "color"}), // color is empty unless verified

		VerifyLatency: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "vaxcheck_verify_duration_seconds",
			Help:    "Duration of credential verification including key lookup",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
		}),
	}
}

// ObserveVerification records one finished verification.
func (m *Metrics) ObserveVerification(ev *VerificationEvent, d time.Duration) {
	if m == nil {
		return
	}
	color := ""
	if ev.Color != nil {
		color = string(*ev.Color)
	}
	m.Outcomes.WithLabelValues(string(ev.Outcome), color).Inc()
	m.VerifyLatency.Observe(d.Seconds())
}
