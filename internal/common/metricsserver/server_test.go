package metricsserver

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/valyala/fasthttp"
	"go.uber.org/zap"

	"github.com/toeverything/edge-workers/internal/common/configtypes"
)

type mockMetricsHandler struct {
	called bool
}

func (m *mockMetricsHandler) ServeHTTP(ctx *fasthttp.RequestCtx) {
	m.called = true
	ctx.SetStatusCode(fasthttp.StatusOK)
	ctx.SetBodyString("# HELP test_metric A test metric\n# TYPE test_metric counter\ntest_metric 42\n")
}

func shutdown(t *testing.T, server *fasthttp.Server) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	assert.NoError(t, server.ShutdownWithContext(ctx))
}

func TestStartMetricsServer_Disabled(t *testing.T) {
	handler := &mockMetricsHandler{}

	server, err := StartMetricsServer(configtypes.MetricsConfig{Enabled: false, Listen: ":10079", Path: "/metrics"}, handler, zap.NewNop())

	require.NoError(t, err)
	assert.Nil(t, server, "Should return nil when metrics disabled")
	assert.False(t, handler.called)
}

func TestStartMetricsServer_Serves(t *testing.T) {
	handler := &mockMetricsHandler{}

	server, err := StartMetricsServer(configtypes.MetricsConfig{Enabled: true, Listen: "127.0.0.1:19191", Path: "/metrics"}, handler, zap.NewNop())
	require.NoError(t, err)
	require.NotNil(t, server)

	req := fasthttp.AcquireRequest()
	defer fasthttp.ReleaseRequest(req)
	resp := fasthttp.AcquireResponse()
	defer fasthttp.ReleaseResponse(resp)

	req.SetRequestURI("http://127.0.0.1:19191/metrics")
	// Avoid keep-alive to prevent shutdown/read data race in fasthttp internals
	req.Header.SetConnectionClose()

	client := &fasthttp.Client{}
	require.NoError(t, client.DoTimeout(req, resp, 5*time.Second))
	assert.Equal(t, fasthttp.StatusOK, resp.StatusCode())
	assert.True(t, handler.called)
	assert.Contains(t, string(resp.Body()), "test_metric 42")

	shutdown(t, server)

	resp2 := fasthttp.AcquireResponse()
	defer fasthttp.ReleaseResponse(resp2)
	assert.Error(t, client.DoTimeout(req, resp2, time.Second), "Should fail to connect after shutdown")
}

func TestStartMetricsServer_PortConflict(t *testing.T) {
	cfg := configtypes.MetricsConfig{Enabled: true, Listen: "127.0.0.1:19193", Path: "/metrics"}

	server1, err := StartMetricsServer(cfg, &mockMetricsHandler{}, zap.NewNop())
	require.NoError(t, err)
	defer shutdown(t, server1)

	server2, err := StartMetricsServer(cfg, &mockMetricsHandler{}, zap.NewNop())
	assert.Error(t, err)
	assert.Nil(t, server2)
}

func TestMetricsHandler_Paths(t *testing.T) {
	testCases := []struct {
		name   string
		path   string
		served bool
	}{
		{"metrics path", "/metrics", true},
		{"root path", "/", false},
		{"wrong metrics path", "/metric", false},
		{"nested path", "/metrics/detailed", false},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			mockHandler := &mockMetricsHandler{}
			handler := createMetricsHandler("/metrics", mockHandler)

			ctx := &fasthttp.RequestCtx{}
			ctx.Request.SetRequestURI(tc.path)
			handler(ctx)

			assert.Equal(t, tc.served, mockHandler.called)
			if !tc.served {
				assert.Equal(t, fasthttp.StatusNotFound, ctx.Response.StatusCode())
				assert.Equal(t, "Not Found", string(ctx.Response.Body()))
			}
		})
	}
}

func TestMetricsServerConfiguration(t *testing.T) {
	server := newServer(createMetricsHandler("/metrics", &mockMetricsHandler{}))

	assert.Equal(t, "edge-worker-metrics", server.Name)
	assert.Equal(t, 10*time.Second, server.ReadTimeout)
	assert.Equal(t, 10*time.Second, server.WriteTimeout)
	assert.Equal(t, 1*1024, server.MaxRequestBodySize)
	assert.True(t, server.TCPKeepalive)
	assert.Equal(t, 100, server.Concurrency)
}
