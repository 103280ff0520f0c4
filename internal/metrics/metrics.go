// Package metrics holds the Prometheus collectors for juicescan.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "juicescan"

// Metrics groups the collectors registered on one registry.
type Metrics struct {
	Registry *prometheus.Registry

	httpInFlight prometheus.Gauge
	httpRequests *prometheus.CounterVec
	httpDuration *prometheus.HistogramVec

	rpcCalls    *prometheus.CounterVec
	rpcDuration *prometheus.HistogramVec

	metadataLookups *prometheus.CounterVec
	indexRefreshes  *prometheus.CounterVec
	indexProjects   prometheus.Gauge

	fieldResolutions *prometheus.CounterVec
	txSubmissions    *prometheus.CounterVec
}

// New creates a Metrics with its own registry.
func New() *Metrics {
	m := &Metrics{
		Registry: prometheus.NewRegistry(),
		httpInFlight: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "inflight_requests",
			Help:      "Current number of in-flight HTTP requests.",
		}),
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests handled.",
		}, []string{"method", "path", "status"}),
		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "Duration of HTTP requests.",
			Buckets:   prometheus.ExponentialBuckets(0.005, 2, 10), // 5ms to ~5s
		}, []string{"method", "path"}),
		rpcCalls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "rpc",
			Name:      "calls_total",
			Help:      "Total number of JSON-RPC calls to the chain provider.",
		}, []string{"method", "outcome"}),
		rpcDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "rpc",
			Name:      "call_duration_seconds",
			Help:      "Duration of JSON-RPC calls.",
			Buckets:   prometheus.ExponentialBuckets(0.01, 2, 10),
		}, []string{"method"}),
		metadataLookups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "metadata",
			Name:      "lookups_total",
			Help:      "Project metadata lookups by result (memory_hit, redis_hit, fetched, failed).",
		}, []string{"result"}),
		indexRefreshes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "index",
			Name:      "refreshes_total",
			Help:      "Subgraph project index refreshes by outcome.",
		}, []string{"outcome"}),
		indexProjects: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "index",
			Name:      "projects",
			Help:      "Number of projects in the last successful index refresh.",
		}),
		fieldResolutions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "project",
			Name:      "field_resolutions_total",
			Help:      "Aggregated project fields by name and outcome.",
		}, []string{"field", "outcome"}),
		txSubmissions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "tx",
			Name:      "submissions_total",
			Help:      "Transactions built or submitted, by action and status.",
		}, []string{"action", "status"}),
	}

	m.Registry.MustRegister(
		m.httpInFlight,
		m.httpRequests,
		m.httpDuration,
		m.rpcCalls,
		m.rpcDuration,
		m.metadataLookups,
		m.indexRefreshes,
		m.indexProjects,
		m.fieldResolutions,
		m.txSubmissions,
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		collectors.NewGoCollector(),
	)
	return m
}

// Handler exposes the registry.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.Registry, promhttp.HandlerOpts{})
}

// IncrementInFlight and DecrementInFlight track in-flight HTTP requests.
func (m *Metrics) IncrementInFlight() {
	if m != nil {
		m.httpInFlight.Inc()
	}
}

func (m *Metrics) DecrementInFlight() {
	if m != nil {
		m.httpInFlight.Dec()
	}
}

// RecordHTTPRequest records one served request.
func (m *Metrics) RecordHTTPRequest(method, path, status string, duration time.Duration) {
	if m == nil {
		return
	}
	m.httpRequests.WithLabelValues(method, path, status).Inc()
	m.httpDuration.WithLabelValues(method, path).Observe(duration.Seconds())
}

// RecordRPCCall records one JSON-RPC call.
func (m *Metrics) RecordRPCCall(method string, duration time.Duration, err error) {
	if m == nil {
		return
	}
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	m.rpcCalls.WithLabelValues(method, outcome).Inc()
	m.rpcDuration.WithLabelValues(method).Observe(duration.Seconds())
}

// RecordMetadataLookup records a metadata cache or fetch result.
func (m *Metrics) RecordMetadataLookup(result string) {
	if m != nil {
		m.metadataLookups.WithLabelValues(result).Inc()
	}
}

// RecordIndexRefresh records a subgraph refresh and the resulting size.
func (m *Metrics) RecordIndexRefresh(projects int, err error) {
	if m == nil {
		return
	}
	if err != nil {
		m.indexRefreshes.WithLabelValues("error").Inc()
		return
	}
	m.indexRefreshes.WithLabelValues("ok").Inc()
	m.indexProjects.Set(float64(projects))
}

// RecordField records whether an aggregated field resolved.
func (m *Metrics) RecordField(field string, err error) {
	if m == nil {
		return
	}
	outcome := "resolved"
	if err != nil {
		outcome = "unresolved"
	}
	m.fieldResolutions.WithLabelValues(field, outcome).Inc()
}

// RecordTx records a transaction build or submission.
func (m *Metrics) RecordTx(action, status string) {
	if m != nil {
		m.txSubmissions.WithLabelValues(action, status).Inc()
	}
}
