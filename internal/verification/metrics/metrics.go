package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for the verification lifecycle engine.
type Metrics struct {
	Created           prometheus.Counter
	Transitions       *prometheus.CounterVec
	AuthorizeOutcomes *prometheus.CounterVec
	GeofenceFailures  prometheus.Counter
}

// New creates a new Metrics instance with all lifecycle metrics registered.
func New() *Metrics {
	return &Metrics{
		Created: promauto.NewCounter(prometheus.CounterOpts{
			Name: "verilink_verifications_created_total",
			Help: "Total verifications created",
		}),
		Transitions: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "verilink_verification_transitions_total",
			Help: "Status transitions by resulting status",
		}, []string{"to"}),
		AuthorizeOutcomes: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "verilink_link_authorize_total",
			Help: "Link access attempts by outcome",
		}, []string{"outcome"}), // outcome: "ok", "not_found", "expired", "completed", "cancelled"
		GeofenceFailures: promauto.NewCounter(prometheus.CounterOpts{
			Name: "verilink_geofence_failures_total",
			Help: "Photo evidence refused for leaving the geofence",
		}),
	}
}

// IncrementCreated records one created verification.
func (m *Metrics) IncrementCreated() {
	if m != nil {
		m.Created.Inc()
	}
}

// IncrementTransition records a transition into a status.
func (m *Metrics) IncrementTransition(to string) {
	if m != nil {
		m.Transitions.WithLabelValues(to).Inc()
	}
}

// IncrementAuthorize records one authorize outcome.
func (m *Metrics) IncrementAuthorize(outcome string) {
	if m != nil {
		m.AuthorizeOutcomes.WithLabelValues(outcome).Inc()
	}
}

// IncrementGeofenceFailure records one refused evidence upload.
func (m *Metrics) IncrementGeofenceFailure() {
	if m != nil {
		m.GeofenceFailures.Inc()
	}
}
