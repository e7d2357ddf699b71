package server

import (
	"fmt"
	"time"

	"github.com/valyala/fasthttp"
	"go.uber.org/zap"

	"github.com/toeverything/edge-workers/internal/common/config"
	"github.com/toeverything/edge-workers/internal/common/configtypes"
	"github.com/toeverything/edge-workers/internal/edge/clientip"
	"github.com/toeverything/edge-workers/internal/edge/edgectx"
	"github.com/toeverything/edge-workers/internal/edge/events"
	"github.com/toeverything/edge-workers/internal/edge/fetch"
	"github.com/toeverything/edge-workers/internal/edge/imageproxy"
	"github.com/toeverything/edge-workers/internal/edge/linkpreview"
	"github.com/toeverything/edge-workers/internal/edge/metrics"
	"github.com/toeverything/edge-workers/internal/edge/origin"
	"github.com/toeverything/edge-workers/internal/edge/probe"
	"github.com/toeverything/edge-workers/internal/edge/router"
	"github.com/toeverything/edge-workers/internal/edge/telemetry"
)

// Paths served by the affine app
const (
	LinkPreviewPath           = "/api/worker/link-preview"
	DeprecatedLinkPreviewPath = "/api/worker/linkPreview"
)

// Dependencies are the collaborators a Server is assembled from.
// Nil fields are built from the configuration.
type Dependencies struct {
	Fetcher   fetch.Fetcher
	Store     probe.SupportStore
	Checker   probe.Checker
	Collector *metrics.MetricsCollector
	Emitter   events.EventEmitter
}

// Server is the assembled edge worker: route table, apps and the
// instrumentation around them
type Server struct {
	cfg       *config.WorkerConfig
	logger    *zap.Logger
	table     *router.Table
	prober    *probe.Prober
	collector *metrics.MetricsCollector
	emitter   events.EventEmitter
	handler   fasthttp.RequestHandler
}

func NewServer(cfg *config.WorkerConfig, deps Dependencies, logger *zap.Logger) (*Server, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	rules, err := origin.ParseRules(cfg.Origins.Allow)
	if err != nil {
		return nil, fmt.Errorf("invalid origin rules: %w", err)
	}

	fetcher := deps.Fetcher
	if fetcher == nil {
		fetcher = fetch.NewClient(fetch.OptionsFromConfig(cfg.Fetch), logger.Named("fetch"))
	}
	store := deps.Store
	if store == nil {
		store = probe.NewMemoryStore()
	}
	checker := deps.Checker
	if checker == nil {
		checker = probe.NewHTTPChecker(fetcher, cfg.Probe.Timeout.ToDuration(), logger)
	}
	emitter := deps.Emitter
	if emitter == nil {
		emitter = &events.NoopEmitter{}
	}

	s := &Server{
		cfg:       cfg,
		logger:    logger,
		prober:    probe.NewProber(store, checker, logger),
		collector: deps.Collector,
		emitter:   emitter,
	}
	if s.collector != nil {
		s.prober.WithObserver(s.collector)
	}

	apps, err := s.buildApps(rules, fetcher)
	if err != nil {
		return nil, err
	}

	builder := router.NewBuilder()
	for _, route := range cfg.Routes {
		app, ok := apps[route.App]
		if !ok {
			return nil, fmt.Errorf("route %s%s: unknown app %q", route.Host, route.Prefix, route.App)
		}
		builder.Add(route.Host, route.Prefix, app)
	}
	if s.collector != nil {
		builder.ObserveMisses(s.collector)
	}
	s.table = builder.Build()

	ipHeaders := clientip.DefaultHeaders
	if cfg.ClientIP != nil && len(cfg.ClientIP.Headers) > 0 {
		ipHeaders = cfg.ClientIP.Headers
	}

	s.handler = router.Boundary(s.table, logger, router.BoundaryOptions{
		Timeout:         cfg.Server.Timeout.ToDuration(),
		ClientIPHeaders: ipHeaders,
		OnComplete:      s.requestFinished,
	})
	return s, nil
}

// buildApps creates one handler per app name usable in routes
func (s *Server) buildApps(rules origin.RuleSet, fetcher fetch.Fetcher) (map[string]router.Handler, error) {
	preview := linkpreview.NewHandler(rules, fetcher, s.prober, s.cfg.LinkPreview.ImageProxyPath)
	images := imageproxy.NewHandler(rules, fetcher)

	affine := router.NewMux().
		Post(LinkPreviewPath, router.HandlerFunc(preview.Preview)).
		Options(LinkPreviewPath, router.HandlerFunc(preview.Options)).
		Post(DeprecatedLinkPreviewPath, router.HandlerFunc(preview.Preview)).
		Options(DeprecatedLinkPreviewPath, router.HandlerFunc(preview.Options)).
		Get(s.cfg.LinkPreview.ImageProxyPath, images)

	relay, err := telemetry.NewRelay(s.cfg.Telemetry.Upstream, rules, fetcher)
	if err != nil {
		return nil, fmt.Errorf("invalid telemetry upstream %q: %w", s.cfg.Telemetry.Upstream, err)
	}

	return map[string]router.Handler{
		configtypes.AppAffine:    withApp(configtypes.AppAffine, affine),
		configtypes.AppTelemetry: withApp(configtypes.AppTelemetry, relay),
	}, nil
}

// withApp labels the request context before handing over to h
func withApp(app string, h router.Handler) router.Handler {
	return router.HandlerFunc(func(ctx *fasthttp.RequestCtx) error {
		edgectx.From(ctx).WithApp(app)
		return h.Serve(ctx)
	})
}

// HandleRequest is the fasthttp entry point
func (s *Server) HandleRequest(ctx *fasthttp.RequestCtx) {
	if s.collector != nil {
		s.collector.RequestStarted()
	}
	s.handler(ctx)
}

func (s *Server) requestFinished(rc *edgectx.RequestContext, status int) {
	if s.collector != nil {
		s.collector.RequestFinished(rc, status)
	}
	s.emitter.Emit(events.BuildRequestEvent(rc, status, s.cfg.WorkerID))

	rc.Logger.Debug("Request completed",
		zap.Int("status_code", status),
		zap.Duration("duration", rc.Elapsed()))
}

// Table returns the route table
func (s *Server) Table() *router.Table {
	return s.table
}

const serverName = "EdgeWorker/1.0"

// NewFastHTTPServer wraps handler in a fasthttp server with the worker defaults
func NewFastHTTPServer(handler fasthttp.RequestHandler, timeout time.Duration) *fasthttp.Server {
	return &fasthttp.Server{
		Handler:                      handler,
		Name:                         serverName,
		ReadTimeout:                  timeout,
		WriteTimeout:                 timeout,
		IdleTimeout:                  timeout,
		DisablePreParseMultipartForm: true,
		NoDefaultServerHeader:        true,
		NoDefaultDate:                true,
	}
}
