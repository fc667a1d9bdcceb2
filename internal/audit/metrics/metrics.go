package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for the audit module. Write failures are the
// signal to watch: persistence is best-effort, so they surface nowhere else.
type Metrics struct {
	Recorded      *prometheus.CounterVec
	Dropped       prometheus.Counter
	WriteFailures prometheus.Counter
}

// New creates a new Metrics instance with all audit module metrics registered.
func New() *Metrics {
	return &Metrics{
		Recorded: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "sentra_audit_events_recorded_total",
			Help: "Total audit events persisted, by decision",
		}, []string{"decision"}),
		Dropped: promauto.NewCounter(prometheus.CounterOpts{
			Name: "sentra_audit_events_dropped_total",
			Help: "Audit events dropped for missing required fields",
		}),
		WriteFailures: promauto.NewCounter(prometheus.CounterOpts{
			Name: "sentra_audit_write_failures_total",
			Help: "Audit events lost to store write failures",
		}),
	}
}
