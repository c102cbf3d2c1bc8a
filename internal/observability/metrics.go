package observability

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Metrics struct {
	registry *prometheus.Registry

	httpRequestsTotal     *prometheus.CounterVec
	httpRequestDuration   *prometheus.HistogramVec
	upstreamRequestsTotal *prometheus.CounterVec
	upstreamDuration      *prometheus.HistogramVec
	optimizationsTotal    *prometheus.CounterVec
	streamsCancelled      prometheus.Counter
	historyFailures       prometheus.Counter
}

func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()

	m := &Metrics{
		registry: registry,
		httpRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "promptlab_http_requests_total",
				Help: "Total number of HTTP requests handled.",
			},
			[]string{"route", "method", "status"},
		),
		httpRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "promptlab_http_request_duration_seconds",
				Help:    "HTTP request duration in seconds.",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"route", "method", "status"},
		),
		upstreamRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "promptlab_upstream_requests_total",
				Help: "Total upstream Gemini API requests.",
			},
			[]string{"endpoint", "status"},
		),
		upstreamDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "promptlab_upstream_request_duration_seconds",
				Help:    "Upstream request duration in seconds.",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"endpoint", "status"},
		),
		optimizationsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "promptlab_optimizations_total",
				Help: "Completed prompt optimizations by mode.",
			},
			[]string{"mode"},
		),
		streamsCancelled: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "promptlab_stream_cancelled_total",
				Help: "Optimization streams abandoned before the full text was emitted.",
			},
		),
		historyFailures: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "promptlab_history_write_failures_total",
				Help: "Completed optimizations that could not be written to history.",
			},
		),
	}

	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.httpRequestsTotal,
		m.httpRequestDuration,
		m.upstreamRequestsTotal,
		m.upstreamDuration,
		m.optimizationsTotal,
		m.streamsCancelled,
		m.historyFailures,
	)

	return m
}

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) ObserveHTTP(route, method string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	if route == "" {
		route = "unknown"
	}
	if method == "" {
		method = "UNKNOWN"
	}
	statusLabel := strconv.Itoa(status)
	m.httpRequestsTotal.WithLabelValues(route, method, statusLabel).Inc()
	m.httpRequestDuration.WithLabelValues(route, method, statusLabel).Observe(duration.Seconds())
}

func (m *Metrics) ObserveUpstream(endpoint string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	if endpoint == "" {
		endpoint = "unknown"
	}
	statusLabel := strconv.Itoa(status)
	m.upstreamRequestsTotal.WithLabelValues(endpoint, statusLabel).Inc()
	m.upstreamDuration.WithLabelValues(endpoint, statusLabel).Observe(duration.Seconds())
}

func (m *Metrics) IncOptimization(mode string) {
	if m == nil {
		return
	}
	if mode == "" {
		mode = "unknown"
	}
	m.optimizationsTotal.WithLabelValues(mode).Inc()
}

func (m *Metrics) IncStreamCancelled() {
	if m == nil {
		return
	}
	m.streamsCancelled.Inc()
}

func (m *Metrics) IncHistoryFailure() {
	if m == nil {
		return
	}
	m.historyFailures.Inc()
}
