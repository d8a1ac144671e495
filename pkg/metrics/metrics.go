// Copyright 2025 Certen Protocol
//
// Package metrics registers the Prometheus collectors exposed at /metrics,
// grounded on the shape of the pack's luxfi-consensus/metrics package
// (a struct wrapping a prometheus.Registerer plus named collectors), wired
// here to the mutation pipeline and HTTP surface instead of consensus
// polling.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds every collector the hosting service reports.
type Metrics struct {
	Registry prometheus.Registerer

	MutationsTotal   *prometheus.CounterVec
	MutationDuration *prometheus.HistogramVec
	HTTPRequests     *prometheus.CounterVec
	HTTPDuration     *prometheus.HistogramVec
	ResourcesTotal   prometheus.Counter
	TailsBytesStored prometheus.Counter
	WitnessRejects   prometheus.Counter
}

// New registers and returns the service's collectors against reg. Passing
// nil uses prometheus.DefaultRegisterer.
func New(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)
	return &Metrics{
		Registry: reg,
		MutationsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "webvh",
			Name:      "mutations_total",
			Help:      "Count of coordinator mutations by kind (create/update/deactivate) and outcome.",
		}, []string{"kind", "outcome"}),
		MutationDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "webvh",
			Name:      "mutation_duration_seconds",
			Help:      "Latency of coordinator mutations.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"kind"}),
		HTTPRequests: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "webvh",
			Name:      "http_requests_total",
			Help:      "Count of HTTP requests by route and status class.",
		}, []string{"route", "status"}),
		HTTPDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "webvh",
			Name:      "http_request_duration_seconds",
			Help:      "Latency of HTTP requests by route.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"route"}),
		ResourcesTotal: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "webvh",
			Name:      "resources_admitted_total",
			Help:      "Count of attested resources admitted.",
		}),
		TailsBytesStored: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "webvh",
			Name:      "tails_bytes_stored_total",
			Help:      "Total bytes accepted into the tails store.",
		}),
		WitnessRejects: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "webvh",
			Name:      "witness_threshold_rejects_total",
			Help:      "Count of mutations rejected for failing the witness threshold.",
		}),
	}
}

// Handler returns the http.Handler to mount at /metrics.
func (m *Metrics) Handler() http.Handler {
	return promhttp.Handler()
}

// ObserveMutation records the outcome and latency of a coordinator mutation.
func (m *Metrics) ObserveMutation(kind, outcome string, d time.Duration) {
	m.MutationsTotal.WithLabelValues(kind, outcome).Inc()
	m.MutationDuration.WithLabelValues(kind).Observe(d.Seconds())
}

// ObserveHTTP records the outcome and latency of an HTTP request.
func (m *Metrics) ObserveHTTP(route, statusClass string, d time.Duration) {
	m.HTTPRequests.WithLabelValues(route, statusClass).Inc()
	m.HTTPDuration.WithLabelValues(route).Observe(d.Seconds())
}
