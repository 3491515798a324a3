// Package metrics provides prometheus instrumentation for the workflow
// engine and a query service for per-project aggregates.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

//nolint:gochecknoglobals // Prometheus collectors are package-level by convention
var (
	// PhaseTransitions counts workflow step transitions.
	PhaseTransitions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "designflow_phase_transitions_total",
		Help: "Workflow phase transitions by origin and destination step.",
	}, []string{"from", "to"})

	// SignalsReceived counts accepted signals by type.
	SignalsReceived = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "designflow_signals_total",
		Help: "Signals accepted into project inboxes, by signal type.",
	}, []string{"type"})

	// ActivityDuration observes wall time per activity call.
	ActivityDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "designflow_activity_duration_seconds",
		Help:    "Activity call duration in seconds.",
		Buckets: prometheus.ExponentialBuckets(0.5, 2, 10),
	}, []string{"project_id", "activity"})

	// ActivityFailures counts failed activity calls by classification.
	ActivityFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "designflow_activity_failures_total",
		Help: "Failed activity calls by activity and error type.",
	}, []string{"project_id", "activity", "error_type"})

	// ProjectsAbandoned counts projects that hit the inactivity timeout.
	ProjectsAbandoned = promauto.NewCounter(prometheus.CounterOpts{
		Name: "designflow_projects_abandoned_total",
		Help: "Projects terminated by the 48h inactivity timeout.",
	})

	// ProjectsCompleted counts projects that reached the completed step.
	ProjectsCompleted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "designflow_projects_completed_total",
		Help: "Projects that produced an approved design and shopping list.",
	})
)
