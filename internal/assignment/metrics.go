package assignment

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for the assignment module.
type Metrics struct {
	Outcomes *prometheus.CounterVec
}

// NewMetrics registers the assignment metrics.
func NewMetrics() *Metrics {
	return &Metrics{
		Outcomes: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "verilink_assignment_outcomes_total",
			Help: "Assignment attempts by outcome",
		}, []string{"outcome"}), // outcome: "assigned", "no_eligible", "lost_race"
	}
}

// IncrementOutcome records one assignment attempt outcome.
func (m *Metrics) IncrementOutcome(outcome string) {
	if m != nil {
		m.Outcomes.WithLabelValues(outcome).Inc()
	}
}
