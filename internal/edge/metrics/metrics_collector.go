package metrics

import (
	"github.com/valyala/fasthttp"
	"go.uber.org/zap"

	"github.com/toeverything/edge-workers/internal/edge/edgectx"
)

// unroutedHandler labels requests no app claimed
const unroutedHandler = "none"

// MetricsCollector turns request outcomes into metric updates. It observes
// the prober and the route table, so neither imports Prometheus.
type MetricsCollector struct {
	prometheus *PrometheusMetrics
	logger     *zap.Logger
}

// NewMetricsCollector wraps pm
func NewMetricsCollector(pm *PrometheusMetrics, logger *zap.Logger) *MetricsCollector {
	return &MetricsCollector{
		prometheus: pm,
		logger:     logger,
	}
}

// RequestStarted marks a request in flight
func (mc *MetricsCollector) RequestStarted() {
	mc.prometheus.IncActiveRequests()
}

// RequestFinished records the outcome annotated on rc
func (mc *MetricsCollector) RequestFinished(rc *edgectx.RequestContext, statusCode int) {
	mc.prometheus.DecActiveRequests()

	app, handler := rc.App, rc.Handler
	if app == "" {
		app = unroutedHandler
	}
	if handler == "" {
		handler = unroutedHandler
	}

	mc.prometheus.RecordRequest(app, handler, statusCode, rc.Elapsed())
	if rc.PolicyRejected {
		mc.prometheus.RecordPolicyRejection(handler)
	}
	if rc.UpstreamFailed {
		mc.prometheus.RecordUpstreamError(handler)
	}

	mc.logger.Debug("Recorded request metric",
		zap.String("app", app),
		zap.String("handler", handler),
		zap.Int("status_code", statusCode),
		zap.Duration("duration", rc.Elapsed()))
}

// RouteMiss implements router.MissObserver
func (mc *MetricsCollector) RouteMiss(host string) {
	mc.prometheus.RecordRouteMiss(host)
}

// ProbeResult implements probe.Observer
func (mc *MetricsCollector) ProbeResult(result string) {
	mc.prometheus.RecordProbe(result)
}

// ServeHTTP serves Prometheus metrics via HTTP
func (mc *MetricsCollector) ServeHTTP(ctx *fasthttp.RequestCtx) {
	mc.prometheus.ServeHTTP(ctx)
}
