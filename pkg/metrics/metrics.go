// Package metrics holds the ledger's Prometheus collectors. Every method is
// safe on a nil *Metrics, so components can take metrics as an optional field.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "condo_ledger"

// DefaultBuckets are latency buckets in seconds.
var DefaultBuckets = []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30}

// Metrics owns a private registry and the collectors registered on it.
type Metrics struct {
	reg *prometheus.Registry

	queries      *prometheus.CounterVec
	misses       *prometheus.CounterVec
	queryLatency *prometheus.HistogramVec
	fallbacks    *prometheus.CounterVec
	chunks       *prometheus.CounterVec
	rebuilds     *prometheus.CounterVec
	breaker      *prometheus.GaugeVec
	httpRequests *prometheus.CounterVec
	httpLatency  *prometheus.HistogramVec
}

// New registers all collectors plus the Go and process collectors.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	m := &Metrics{
		reg: reg,
		queries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "queries_total",
			Help: "Routed questions by strategy.",
		}, []string{"strategy"}),
		misses: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "routing_misses_total",
			Help: "Routing misses by kind.",
		}, []string{"kind"}),
		queryLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace, Name: "query_duration_seconds",
			Help: "Time to route a question.", Buckets: DefaultBuckets,
		}, []string{"strategy"}),
		fallbacks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "completion_fallbacks_total",
			Help: "Answers rendered locally after a completion failure.",
		}, []string{"reason"}),
		chunks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "chunks_total",
			Help: "Chunks processed by index builds.",
		}, []string{"outcome"}),
		rebuilds: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "index_rebuilds_total",
			Help: "Index rebuilds by trigger and result.",
		}, []string{"trigger", "result"}),
		breaker: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace, Name: "breaker_state",
			Help: "Circuit breaker state: 0 closed, 1 open, 2 half-open.",
		}, []string{"name"}),
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "http_requests_total",
			Help: "HTTP requests by route and status code.",
		}, []string{"route", "code"}),
		httpLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace, Name: "http_request_duration_seconds",
			Help: "HTTP request latency by route.", Buckets: DefaultBuckets,
		}, []string{"route"}),
	}
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.queries, m.misses, m.queryLatency, m.fallbacks, m.chunks,
		m.rebuilds, m.breaker, m.httpRequests, m.httpLatency,
	)
	return m
}

// Registry exposes the underlying registry, mainly for tests.
func (m *Metrics) Registry() *prometheus.Registry { return m.reg }

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.reg, promhttp.HandlerOpts{Registry: m.reg})
}

// ObserveQuery records one routed question. miss is "" for a hit.
func (m *Metrics) ObserveQuery(strategy, miss string, d time.Duration) {
	if m == nil {
		return
	}
	m.queries.WithLabelValues(strategy).Inc()
	m.queryLatency.WithLabelValues(strategy).Observe(d.Seconds())
	if miss != "" {
		m.misses.WithLabelValues(miss).Inc()
	}
}

// CompletionFallback counts a locally formatted answer after a completion error.
func (m *Metrics) CompletionFallback(reason string) {
	if m == nil {
		return
	}
	m.fallbacks.WithLabelValues(reason).Inc()
}

// ObserveIndex records the outcome of one index build.
func (m *Metrics) ObserveIndex(trigger string, indexed, skipped int, err error) {
	if m == nil {
		return
	}
	m.chunks.WithLabelValues("indexed").Add(float64(indexed))
	m.chunks.WithLabelValues("skipped").Add(float64(skipped))
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.rebuilds.WithLabelValues(trigger, result).Inc()
}

// SetBreakerState publishes a breaker's numeric state.
func (m *Metrics) SetBreakerState(name string, state int) {
	if m == nil {
		return
	}
	m.breaker.WithLabelValues(name).Set(float64(state))
}

// ObserveHTTP records one HTTP request.
func (m *Metrics) ObserveHTTP(route string, code int, d time.Duration) {
	if m == nil {
		return
	}
	m.httpRequests.WithLabelValues(route, strconv.Itoa(code)).Inc()
	m.httpLatency.WithLabelValues(route).Observe(d.Seconds())
}
