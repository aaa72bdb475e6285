// Package metrics instruments the aggregation server with Prometheus
// counters and histograms, mounted at /metrics alongside the JSON API.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Registry bundles the aggregation server's Prometheus collectors.
type Registry struct {
	RoundsCompleted     prometheus.Counter
	SubmissionsTotal    prometheus.Counter
	SubmissionsRejected *prometheus.CounterVec
	AggregationSeconds  prometheus.Histogram

	gatherer prometheus.Gatherer
}

// New registers and returns the aggregation server's metric collectors
// against reg. Callers own reg's lifetime; pass a fresh
// prometheus.NewRegistry() per Server instance rather than
// prometheus.DefaultRegisterer so that constructing more than one Server
// in the same process (e.g. in tests) doesn't panic on duplicate
// registration.
func New(reg prometheus.Registerer) *Registry {
	factory := promauto.With(reg)

	r := &Registry{
		RoundsCompleted: factory.NewCounter(prometheus.CounterOpts{
			Name: "secureagg_rounds_completed_total",
			Help: "Number of training rounds aggregated and advanced.",
		}),
		SubmissionsTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: "secureagg_submissions_total",
			Help: "Number of accepted masked update submissions.",
		}),
		SubmissionsRejected: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "secureagg_submissions_rejected_total",
			Help: "Number of rejected submission attempts, labeled by rejection kind.",
		}, []string{"kind"}),
		AggregationSeconds: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "secureagg_aggregation_seconds",
			Help:    "Time spent in the aggregate-and-advance critical section.",
			Buckets: prometheus.DefBuckets,
		}),
	}

	if g, ok := reg.(prometheus.Gatherer); ok {
		r.gatherer = g
	}
	return r
}

// Gatherer returns the Gatherer backing this Registry's collectors, for
// mounting a scrape endpoint. Falls back to the global default gatherer
// if reg was not also a Gatherer (e.g. a bare prometheus.Registerer).
func (r *Registry) Gatherer() prometheus.Gatherer {
	if r.gatherer != nil {
		return r.gatherer
	}
	return prometheus.DefaultGatherer
}
