package config

import (
	"time"

	"github.com/toeverything/edge-workers/internal/common/configtypes"
)

const (
	DefaultListen         = ":8080"
	DefaultServerTimeout  = 30 * time.Second
	DefaultFetchTimeout   = 10 * time.Second
	DefaultMaxRedirects   = 5
	DefaultMaxBodySize    = 8 * 1024 * 1024
	DefaultProbeTimeout   = 3 * time.Second
	DefaultRedisKeyPrefix = "https_support:"
	DefaultImageProxyPath = "/api/worker/image-proxy"
	DefaultTelemetryURL   = "https://api-eu.mixpanel.com"
	DefaultMetricsListen  = ":9090"
	DefaultMetricsPath    = "/metrics"
	DefaultNamespace      = "edge_worker"
)

// DefaultRoutes mirrors the production worker deployment
var DefaultRoutes = []configtypes.RouteConfig{
	{Host: "localhost", Prefix: "/api/", App: configtypes.AppAffine},
	{Host: "affine-worker.toeverything.workers.dev", Prefix: "/api/", App: configtypes.AppAffine},
}

// ApplyDefaults fills zero values with defaults. Explicit values are never overwritten.
func ApplyDefaults(cfg *WorkerConfig) {
	if !cfg.Log.Console.Enabled && !cfg.Log.File.Enabled {
		cfg.Log.Console.Enabled = true
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = configtypes.LogLevelInfo
	}
	if cfg.Log.Console.Format == "" {
		cfg.Log.Console.Format = configtypes.LogFormatConsole
	}
	if cfg.Log.File.Format == "" {
		cfg.Log.File.Format = configtypes.LogFormatText
	}

	if cfg.Server.Listen == "" {
		cfg.Server.Listen = DefaultListen
	}
	if cfg.Server.Timeout == 0 {
		cfg.Server.Timeout = configtypes.Duration(DefaultServerTimeout)
	}

	if len(cfg.Routes) == 0 {
		cfg.Routes = append([]configtypes.RouteConfig(nil), DefaultRoutes...)
	}

	if cfg.Fetch.Timeout == 0 {
		cfg.Fetch.Timeout = configtypes.Duration(DefaultFetchTimeout)
	}
	if cfg.Fetch.MaxRedirects == 0 {
		cfg.Fetch.MaxRedirects = DefaultMaxRedirects
	}
	if cfg.Fetch.MaxBodySize == 0 {
		cfg.Fetch.MaxBodySize = DefaultMaxBodySize
	}

	if cfg.Probe.Timeout == 0 {
		cfg.Probe.Timeout = configtypes.Duration(DefaultProbeTimeout)
	}
	if cfg.Probe.Store == "" {
		cfg.Probe.Store = configtypes.ProbeStoreMemory
	}
	if cfg.Redis.KeyPrefix == "" {
		cfg.Redis.KeyPrefix = DefaultRedisKeyPrefix
	}

	if cfg.LinkPreview.ImageProxyPath == "" {
		cfg.LinkPreview.ImageProxyPath = DefaultImageProxyPath
	}
	if cfg.Telemetry.Upstream == "" {
		cfg.Telemetry.Upstream = DefaultTelemetryURL
	}

	if cfg.Metrics.Listen == "" {
		cfg.Metrics.Listen = DefaultMetricsListen
	}
	if cfg.Metrics.Path == "" {
		cfg.Metrics.Path = DefaultMetricsPath
	}
	if cfg.Metrics.Namespace == "" {
		cfg.Metrics.Namespace = DefaultNamespace
	}

	if cfg.WorkerID == "" {
		cfg.WorkerID = "default"
	}
}
