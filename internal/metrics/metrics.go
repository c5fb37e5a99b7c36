package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Reservations counts reserve attempts by result (ok, seats_unavailable, error).
	Reservations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "booking",
			Name:      "reservations_total",
			Help:      "The total number of reservation attempts",
		},
		[]string{"result"},
	)

	// Finalizations counts hold-window checks by outcome (confirmed, released, error).
	Finalizations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "booking",
			Name:      "finalize_total",
			Help:      "The total number of hold window checks",
		},
		[]string{"outcome"},
	)

	// TasksProcessed The total number of processed deferred tasks (counter)
	TasksProcessed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "tasks",
			Name:      "processed_total",
			Help:      "The total number of processed tasks",
		},
		[]string{"kind"},
	)

	// TasksFailed total number of task processing failures (counter)
	TasksFailed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "tasks",
			Name:      "failed_total",
			Help:      "The total number of task processing failures",
		},
		[]string{"kind"},
	)

	// TaskDuration The time spent processing tasks (summary with quantiles 0.5, 0.9, and 0.99)
	TaskDuration = promauto.NewSummaryVec(
		prometheus.SummaryOpts{
			Namespace:  "tasks",
			Name:       "processing_duration_seconds",
			Help:       "The time spent processing tasks",
			Objectives: map[float64]float64{0.5: 0.05, 0.9: 0.01, 0.99: 0.001},
		},
		[]string{"kind"},
	)

	// EmailsSent counts email deliveries by template and result (sent, failed).
	EmailsSent = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "emails",
			Name:      "sent_total",
			Help:      "The total number of email deliveries",
		},
		[]string{"template", "result"},
	)
)
