package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/valyala/fasthttp"
	"github.com/valyala/fasthttp/fasthttpadaptor"
	"go.uber.org/zap"
)

// PrometheusMetrics holds the worker's Prometheus series
type PrometheusMetrics struct {
	// Request metrics
	requestsTotal   *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	activeRequests  prometheus.Gauge

	// Routing and policy
	routeMissesTotal      *prometheus.CounterVec
	policyRejectionsTotal *prometheus.CounterVec

	// Outbound
	probeTotal          *prometheus.CounterVec
	upstreamErrorsTotal *prometheus.CounterVec

	logger      *zap.Logger
	httpHandler func(*fasthttp.RequestCtx)
}

// NewPrometheusMetrics registers on the default registry
func NewPrometheusMetrics(namespace string, logger *zap.Logger) *PrometheusMetrics {
	return NewPrometheusMetricsWithRegistry(namespace, prometheus.DefaultRegisterer, logger)
}

// NewPrometheusMetricsWithRegistry registers on registerer. When registerer
// is also a Gatherer, ServeHTTP exposes exactly what it gathers.
func NewPrometheusMetricsWithRegistry(namespace string, registerer prometheus.Registerer, logger *zap.Logger) *PrometheusMetrics {
	pm := &PrometheusMetrics{
		logger: logger,
	}

	pm.requestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "requests_total",
			Help:      "Total number of requests by app, handler and status class",
		},
		[]string{"app", "handler", "status"},
	)

	pm.requestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "request_duration_seconds",
			Help:      "Time taken to serve requests",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"app", "handler"},
	)

	pm.activeRequests = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "active_requests",
			Help:      "Number of requests currently being served",
		},
	)

	pm.routeMissesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "route_misses_total",
			Help:      "Requests that matched no route, by host",
		},
		[]string{"host"},
	)

	pm.policyRejectionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "policy_rejections_total",
			Help:      "Requests refused by the origin policy",
		},
		[]string{"handler"},
	)

	pm.probeTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "probe_total",
			Help:      "HTTPS upgrade probe outcomes",
		},
		[]string{"result"},
	)

	pm.upstreamErrorsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "upstream_errors_total",
			Help:      "Outbound requests that failed at the transport level",
		},
		[]string{"handler"},
	)

	registerer.MustRegister(
		pm.requestsTotal,
		pm.requestDuration,
		pm.activeRequests,
		pm.routeMissesTotal,
		pm.policyRejectionsTotal,
		pm.probeTotal,
		pm.upstreamErrorsTotal,
	)

	gatherer, ok := registerer.(prometheus.Gatherer)
	if !ok {
		gatherer = prometheus.DefaultGatherer
	}
	pm.httpHandler = fasthttpadaptor.NewFastHTTPHandler(promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))

	logger.Debug("Prometheus metrics initialized")
	return pm
}

// RecordRequest records a finished request
func (pm *PrometheusMetrics) RecordRequest(app, handler string, statusCode int, duration time.Duration) {
	pm.requestsTotal.WithLabelValues(app, handler, getStatusCodeRange(statusCode)).Inc()
	pm.requestDuration.WithLabelValues(app, handler).Observe(duration.Seconds())
}

// getStatusCodeRange converts a status code to a range label (2xx, 3xx, 4xx, 5xx)
func getStatusCodeRange(statusCode int) string {
	switch {
	case statusCode >= 200 && statusCode < 300:
		return "2xx"
	case statusCode >= 300 && statusCode < 400:
		return "3xx"
	case statusCode >= 400 && statusCode < 500:
		return "4xx"
	case statusCode >= 500 && statusCode < 600:
		return "5xx"
	default:
		return "unknown"
	}
}

func (pm *PrometheusMetrics) RecordRouteMiss(host string) {
	pm.routeMissesTotal.WithLabelValues(host).Inc()
}

func (pm *PrometheusMetrics) RecordPolicyRejection(handler string) {
	pm.policyRejectionsTotal.WithLabelValues(handler).Inc()
}

func (pm *PrometheusMetrics) RecordProbe(result string) {
	pm.probeTotal.WithLabelValues(result).Inc()
}

func (pm *PrometheusMetrics) RecordUpstreamError(handler string) {
	pm.upstreamErrorsTotal.WithLabelValues(handler).Inc()
}

// IncActiveRequests increments active request gauge
func (pm *PrometheusMetrics) IncActiveRequests() {
	pm.activeRequests.Inc()
}

// DecActiveRequests decrements active request gauge
func (pm *PrometheusMetrics) DecActiveRequests() {
	pm.activeRequests.Dec()
}

// ServeHTTP serves Prometheus metrics via HTTP
func (pm *PrometheusMetrics) ServeHTTP(ctx *fasthttp.RequestCtx) {
	pm.httpHandler(ctx)
}
