package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for the policy module.
type Metrics struct {
	Decisions        *prometheus.CounterVec
	EvaluateDuration prometheus.Histogram
}

// New creates a new Metrics instance with all policy module metrics registered.
func New() *Metrics {
	return &Metrics{
		Decisions: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "sentra_access_decisions_total",
			Help: "Total access decisions rendered, by outcome and reason",
		}, []string{"decision", "reason"}),
		EvaluateDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "sentra_access_evaluate_duration_seconds",
			Help:    "Duration of access evaluation including transport decode",
			Buckets: []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05},
		}),
	}
}

// ObserveDecision records one rendered decision.
func (m *Metrics) ObserveDecision(decision, reason string, start time.Time) {
	m.Decisions.WithLabelValues(decision, reason).Inc()
	m.EvaluateDuration.Observe(time.Since(start).Seconds())
}
