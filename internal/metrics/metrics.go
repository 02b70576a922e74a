// Package metrics exposes Prometheus instruments for the service.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "salone"

// Metrics holds every instrument on a private registry.
type Metrics struct {
	registry *prometheus.Registry

	uploads          *prometheus.CounterVec
	filesDecoded     *prometheus.CounterVec
	decodeDuration   prometheus.Histogram
	aggregations     prometheus.Counter
	aggregateSeconds prometheus.Histogram
	suggestions      *prometheus.CounterVec
	suggestSeconds   prometheus.Histogram
	httpRequests     *prometheus.CounterVec
	httpDuration     *prometheus.HistogramVec
	sessions         prometheus.Gauge
	published        *prometheus.CounterVec
}

func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		uploads: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "batches_total",
			Help: "Batches received, by source and result.",
		}, []string{"source", "result"}),
		filesDecoded: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "files_decoded_total",
			Help: "Spreadsheet files decoded, by result.",
		}, []string{"result"}),
		decodeDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace, Name: "file_decode_seconds",
			Help:    "Time spent decoding one spreadsheet file.",
			Buckets: prometheus.DefBuckets,
		}),
		aggregations: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "aggregations_total",
			Help: "Aggregation engine runs.",
		}),
		aggregateSeconds: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace, Name: "aggregation_seconds",
			Help:    "Aggregation engine run time.",
			Buckets: prometheus.ExponentialBuckets(0.0001, 4, 8),
		}),
		suggestions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "suggestions_total",
			Help: "LLM suggestion requests, by result.",
		}, []string{"result"}),
		suggestSeconds: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace, Name: "suggestion_seconds",
			Help:    "LLM suggestion round-trip time.",
			Buckets: []float64{0.5, 1, 2, 5, 10, 20, 40, 60},
		}),
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "http_requests_total",
			Help: "HTTP requests, by route pattern, method and status code.",
		}, []string{"route", "method", "code"}),
		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace, Name: "http_request_seconds",
			Help:    "HTTP request latency by route pattern.",
			Buckets: prometheus.DefBuckets,
		}, []string{"route"}),
		sessions: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Name: "sessions_active",
			Help: "Analysis sessions held in memory.",
		}),
		published: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "events_published_total",
			Help: "AMQP events published, by result.",
		}, []string{"result"}),
	}

	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.uploads, m.filesDecoded, m.decodeDuration,
		m.aggregations, m.aggregateSeconds,
		m.suggestions, m.suggestSeconds,
		m.httpRequests, m.httpDuration,
		m.sessions, m.published,
	)
	return m
}

func result(ok bool) string {
	if ok {
		return "ok"
	}
	return "error"
}

// Batch counts a received batch.
func (m *Metrics) Batch(source string, ok bool) {
	m.uploads.WithLabelValues(source, result(ok)).Inc()
}

// FileDecoded records one decoded file.
func (m *Metrics) FileDecoded(ok bool, d time.Duration) {
	m.filesDecoded.WithLabelValues(result(ok)).Inc()
	m.decodeDuration.Observe(d.Seconds())
}

// Aggregated records one engine run.
func (m *Metrics) Aggregated(d time.Duration) {
	m.aggregations.Inc()
	m.aggregateSeconds.Observe(d.Seconds())
}

// Suggested records one LLM call.
func (m *Metrics) Suggested(ok bool, d time.Duration) {
	m.suggestions.WithLabelValues(result(ok)).Inc()
	m.suggestSeconds.Observe(d.Seconds())
}

// Published records one AMQP publish attempt.
func (m *Metrics) Published(ok bool) {
	m.published.WithLabelValues(result(ok)).Inc()
}

// SessionsActive sets the live session gauge.
func (m *Metrics) SessionsActive(n int) {
	m.sessions.Set(float64(n))
}

// HTTPRequest records one served request.
func (m *Metrics) HTTPRequest(route, method string, status int, d time.Duration) {
	if route == "" {
		route = "unmatched"
	}
	m.httpRequests.WithLabelValues(route, method, strconv.Itoa(status)).Inc()
	m.httpDuration.WithLabelValues(route).Observe(d.Seconds())
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// Registry returns the private registry.
func (m *Metrics) Registry() *prometheus.Registry { return m.registry }
