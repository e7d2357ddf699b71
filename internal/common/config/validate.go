package config

import (
	"fmt"
	"net"
	"net/url"
	"strconv"
	"strings"

	"github.com/toeverything/edge-workers/internal/common/configtypes"
	"github.com/toeverything/edge-workers/internal/edge/events"
	"github.com/toeverything/edge-workers/internal/edge/origin"
)

// Validate checks a defaulted configuration and returns every problem found
func Validate(cfg *WorkerConfig) []error {
	var errs []error

	if err := validateListen(cfg.Server.Listen); err != nil {
		errs = append(errs, fmt.Errorf("server.listen: %w", err))
	}
	if cfg.Server.Timeout < 0 {
		errs = append(errs, fmt.Errorf("server.timeout must not be negative"))
	}

	if tlsCfg := cfg.Server.TLS; tlsCfg.Enabled {
		if err := validateListen(tlsCfg.Listen); err != nil {
			errs = append(errs, fmt.Errorf("server.tls.listen: %w", err))
		} else if tlsCfg.Listen == cfg.Server.Listen {
			errs = append(errs, fmt.Errorf("server.tls.listen must differ from server.listen"))
		}
		if tlsCfg.CertFile == "" || tlsCfg.KeyFile == "" {
			errs = append(errs, fmt.Errorf("server.tls.cert_file and server.tls.key_file are required when TLS is enabled"))
		}
	}

	if cfg.Metrics.Enabled {
		if err := validateListen(cfg.Metrics.Listen); err != nil {
			errs = append(errs, fmt.Errorf("metrics.listen: %w", err))
		} else if cfg.Metrics.Listen == cfg.Server.Listen {
			errs = append(errs, fmt.Errorf("metrics.listen must differ from server.listen"))
		}
		if !strings.HasPrefix(cfg.Metrics.Path, "/") {
			errs = append(errs, fmt.Errorf("metrics.path must start with '/'"))
		}
	}

	if _, err := origin.ParseRules(cfg.Origins.Allow); err != nil {
		errs = append(errs, fmt.Errorf("origins.allow: %w", err))
	}

	errs = append(errs, validateRoutes(cfg.Routes)...)

	if cfg.Fetch.MaxRedirects < 0 {
		errs = append(errs, fmt.Errorf("fetch.max_redirects must not be negative"))
	}
	if cfg.Fetch.MaxBodySize < 0 {
		errs = append(errs, fmt.Errorf("fetch.max_body_size must not be negative"))
	}

	switch cfg.Probe.Store {
	case configtypes.ProbeStoreMemory:
	case configtypes.ProbeStoreRedis:
		if cfg.Redis.Addr == "" {
			errs = append(errs, fmt.Errorf("redis.addr is required when probe.store is %q", configtypes.ProbeStoreRedis))
		}
	default:
		errs = append(errs, fmt.Errorf("probe.store: unknown store %q", cfg.Probe.Store))
	}

	if !strings.HasPrefix(cfg.LinkPreview.ImageProxyPath, "/") {
		errs = append(errs, fmt.Errorf("link_preview.image_proxy_path must start with '/'"))
	}

	if u, err := url.Parse(cfg.Telemetry.Upstream); err != nil || u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") {
		errs = append(errs, fmt.Errorf("telemetry.upstream must be an absolute http(s) URL, got %q", cfg.Telemetry.Upstream))
	}

	if cfg.EventLogging != nil && cfg.EventLogging.File.Enabled {
		file := cfg.EventLogging.File
		if file.Path == "" {
			errs = append(errs, fmt.Errorf("event_logging.file.path is required when file event logging is enabled"))
		}
		if file.Template != "" {
			if _, err := events.NewTemplateFormatter(file.Template); err != nil {
				errs = append(errs, fmt.Errorf("event_logging.file.template: %w", err))
			}
		}
	}
	if cfg.Log.File.Enabled && cfg.Log.File.Path == "" {
		errs = append(errs, fmt.Errorf("log.file.path is required when file logging is enabled"))
	}

	return errs
}

func validateRoutes(routes []RouteConfig) []error {
	var errs []error
	seen := make(map[string]bool, len(routes))

	for i, route := range routes {
		field := fmt.Sprintf("routes[%d]", i)
		if route.Host == "" {
			errs = append(errs, fmt.Errorf("%s.host is required", field))
		}
		if !strings.HasPrefix(route.Prefix, "/") {
			errs = append(errs, fmt.Errorf("%s.prefix must start with '/', got %q", field, route.Prefix))
		}
		switch route.App {
		case configtypes.AppAffine, configtypes.AppTelemetry:
		default:
			errs = append(errs, fmt.Errorf("%s.app: unknown app %q", field, route.App))
		}

		key := strings.ToLower(route.Host) + route.Prefix
		if seen[key] {
			errs = append(errs, fmt.Errorf("%s: duplicate route %s%s", field, route.Host, route.Prefix))
		}
		seen[key] = true
	}
	return errs
}

func validateListen(listen string) error {
	if listen == "" {
		return fmt.Errorf("listen address is empty")
	}
	_, portStr, err := net.SplitHostPort(listen)
	if err != nil {
		return fmt.Errorf("invalid listen address %q: %w", listen, err)
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		return fmt.Errorf("invalid port in listen address %q", listen)
	}
	if port < 1 || port > 65535 {
		return fmt.Errorf("port must be between 1 and 65535, got %d", port)
	}
	return nil
}
