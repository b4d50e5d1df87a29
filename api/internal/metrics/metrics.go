// Package metrics holds the service's Prometheus collectors.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Validations counts finished product validations by final status.
	Validations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "labelcheck_validations_total",
			Help: "Product validations by final status",
		},
		[]string{"status"},
	)

	// CollaboratorFailures counts degraded OCR and AI calls.
	CollaboratorFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "labelcheck_collaborator_failures_total",
			Help: "Failed or degraded collaborator calls by collaborator and kind",
		},
		[]string{"collaborator", "kind"},
	)

	// CallSeconds tracks collaborator latency.
	CallSeconds = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "labelcheck_collaborator_call_seconds",
			Help:    "Collaborator call latency in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"collaborator"},
	)

	// EntityRefreshes counts aggregation runs by result.
	EntityRefreshes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "labelcheck_entity_refresh_total",
			Help: "Entity aggregation runs by result",
		},
		[]string{"result"},
	)

	// Entities is the entity count of the last successful refresh per type.
	Entities = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "labelcheck_entities",
			Help: "Entities from the last refresh by type",
		},
		[]string{"type"},
	)
)

// ObserveCall records one collaborator call started at start.
func ObserveCall(collaborator string, start time.Time) {
	CallSeconds.WithLabelValues(collaborator).Observe(time.Since(start).Seconds())
}
