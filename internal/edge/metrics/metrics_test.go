package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/valyala/fasthttp"
	"go.uber.org/zap"

	"github.com/toeverything/edge-workers/internal/edge/edgectx"
)

// gathered returns the value of the series matching name and labels
func gathered(t *testing.T, registry *prometheus.Registry, name string, labels map[string]string) float64 {
	t.Helper()
	families, err := registry.Gather()
	require.NoError(t, err)

	for _, mf := range families {
		if mf.GetName() != name {
			continue
		}
		for _, m := range mf.GetMetric() {
			if matches(m, labels) {
				switch mf.GetType() {
				case dto.MetricType_COUNTER:
					return m.GetCounter().GetValue()
				case dto.MetricType_GAUGE:
					return m.GetGauge().GetValue()
				case dto.MetricType_HISTOGRAM:
					return float64(m.GetHistogram().GetSampleCount())
				}
			}
		}
	}
	return 0
}

func matches(m *dto.Metric, labels map[string]string) bool {
	found := 0
	for _, lp := range m.GetLabel() {
		if v, ok := labels[lp.GetName()]; ok {
			if v != lp.GetValue() {
				return false
			}
			found++
		}
	}
	return found == len(labels)
}

func newCollector(t *testing.T) (*MetricsCollector, *prometheus.Registry) {
	t.Helper()
	registry := prometheus.NewRegistry()
	pm := NewPrometheusMetricsWithRegistry("edge_worker", registry, zap.NewNop())
	return NewMetricsCollector(pm, zap.NewNop()), registry
}

func TestCollector_RequestFinished(t *testing.T) {
	mc, registry := newCollector(t)

	rc := edgectx.New(&fasthttp.RequestCtx{}, "id", nil, 0)
	rc.WithApp("affine").WithHandler("link_preview")
	rc.RejectPolicy()

	mc.RequestStarted()
	assert.Equal(t, 1.0, gathered(t, registry, "edge_worker_active_requests", nil))
	mc.RequestFinished(rc, fasthttp.StatusNotFound)

	assert.Equal(t, 0.0, gathered(t, registry, "edge_worker_active_requests", nil))
	assert.Equal(t, 1.0, gathered(t, registry, "edge_worker_requests_total",
		map[string]string{"app": "affine", "handler": "link_preview", "status": "4xx"}))
	assert.Equal(t, 1.0, gathered(t, registry, "edge_worker_request_duration_seconds",
		map[string]string{"app": "affine", "handler": "link_preview"}))
	assert.Equal(t, 1.0, gathered(t, registry, "edge_worker_policy_rejections_total",
		map[string]string{"handler": "link_preview"}))
	assert.Equal(t, 0.0, gathered(t, registry, "edge_worker_upstream_errors_total",
		map[string]string{"handler": "link_preview"}))
}

func TestCollector_UnroutedAndUpstream(t *testing.T) {
	mc, registry := newCollector(t)

	rc := edgectx.New(&fasthttp.RequestCtx{}, "id", nil, 0)
	mc.RequestStarted()
	mc.RequestFinished(rc, fasthttp.StatusNotFound)
	assert.Equal(t, 1.0, gathered(t, registry, "edge_worker_requests_total",
		map[string]string{"app": "none", "handler": "none"}))

	rc = edgectx.New(&fasthttp.RequestCtx{}, "id", nil, 0)
	rc.WithApp("telemetry").WithHandler("telemetry")
	rc.FailUpstream()
	mc.RequestStarted()
	mc.RequestFinished(rc, fasthttp.StatusInternalServerError)
	assert.Equal(t, 1.0, gathered(t, registry, "edge_worker_upstream_errors_total",
		map[string]string{"handler": "telemetry"}))
	assert.Equal(t, 1.0, gathered(t, registry, "edge_worker_requests_total",
		map[string]string{"app": "telemetry", "status": "5xx"}))
}

func TestCollector_Observers(t *testing.T) {
	mc, registry := newCollector(t)

	mc.RouteMiss("unknown.example")
	mc.RouteMiss("unknown.example")
	mc.ProbeResult("cached")
	mc.ProbeResult("unreachable")

	assert.Equal(t, 2.0, gathered(t, registry, "edge_worker_route_misses_total",
		map[string]string{"host": "unknown.example"}))
	assert.Equal(t, 1.0, gathered(t, registry, "edge_worker_probe_total",
		map[string]string{"result": "cached"}))
	assert.Equal(t, 1.0, gathered(t, registry, "edge_worker_probe_total",
		map[string]string{"result": "unreachable"}))
}

func TestGetStatusCodeRange(t *testing.T) {
	assert.Equal(t, "2xx", getStatusCodeRange(204))
	assert.Equal(t, "3xx", getStatusCodeRange(302))
	assert.Equal(t, "4xx", getStatusCodeRange(405))
	assert.Equal(t, "5xx", getStatusCodeRange(500))
	assert.Equal(t, "unknown", getStatusCodeRange(0))
}

func TestPrometheusMetrics_HTTPEndpoint(t *testing.T) {
	registry := prometheus.NewRegistry()
	pm := NewPrometheusMetricsWithRegistry("edge_worker", registry, zap.NewNop())
	pm.RecordRequest("affine", "image_proxy", 200, 15*time.Millisecond)
	pm.RecordProbe("reachable")

	ctx := &fasthttp.RequestCtx{}
	ctx.Request.SetRequestURI("/metrics")
	ctx.Request.Header.SetMethod("GET")
	pm.ServeHTTP(ctx)

	assert.Equal(t, fasthttp.StatusOK, ctx.Response.StatusCode())
	assert.Contains(t, string(ctx.Response.Header.Peek("Content-Type")), "text/plain")

	body := string(ctx.Response.Body())
	assert.Contains(t, body, "edge_worker_requests_total")
	assert.Contains(t, body, "edge_worker_probe_total")
	assert.Contains(t, body, "# HELP")
	assert.Contains(t, body, "# TYPE")
}
