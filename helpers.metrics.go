package main

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const metricsNamespace = "books"

// Metrics holds the prometheus collectors of the service.
// A nil *Metrics records nothing.
type Metrics struct {
	registry      *prometheus.Registry
	httpRequests  *prometheus.CounterVec
	httpDuration  *prometheus.HistogramVec
	storeCalls    *prometheus.CounterVec
	replicaEvents *prometheus.CounterVec
}

// NewMetrics registers all collectors on a dedicated registry.
func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of http requests by method and status code.",
		}, []string{"method", "code"}),
		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: metricsNamespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "Http request processing duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method"}),
		storeCalls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: "store",
			Name:      "calls_total",
			Help:      "Total number of book store calls by operation and outcome.",
		}, []string{"operation", "outcome"}),
		replicaEvents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: "replica",
			Name:      "events_total",
			Help:      "Total number of replica events applied by queue and outcome.",
		}, []string{"queue", "outcome"}),
	}
	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.httpRequests,
		m.httpDuration,
		m.storeCalls,
		m.replicaEvents,
	)
	return m
}

// Handler exposes the registry in the prometheus text format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// ObserveRequest records a served http request.
func (m *Metrics) ObserveRequest(method string, code int, d time.Duration) {
	if m == nil {
		return
	}
	m.httpRequests.WithLabelValues(method, strconv.Itoa(code)).Inc()
	m.httpDuration.WithLabelValues(method).Observe(d.Seconds())
}

// ObserveStoreCall records the outcome of a single book store call.
func (m *Metrics) ObserveStoreCall(operation string, err error) {
	if m == nil {
		return
	}
	m.storeCalls.WithLabelValues(operation, outcome(err)).Inc()
}

// ObserveReplicaEvent records the outcome of an event applied to the replica.
func (m *Metrics) ObserveReplicaEvent(qid string, err error) {
	if m == nil {
		return
	}
	m.replicaEvents.WithLabelValues(qid, outcome(err)).Inc()
}

func outcome(err error) string {
	switch {
	case err == nil:
		return "success"
	case errors.Is(err, ErrBookNotFound):
		return "not_found"
	default:
		return "error"
	}
}
