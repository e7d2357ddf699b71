package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log"
	"net"
	"os"
	"os/signal"
	"path/filepath"
	"sync"
	"syscall"
	"time"

	"github.com/valyala/fasthttp"
	"go.uber.org/zap"

	"github.com/toeverything/edge-workers/internal/common/config"
	"github.com/toeverything/edge-workers/internal/common/configtypes"
	"github.com/toeverything/edge-workers/internal/common/logger"
	"github.com/toeverything/edge-workers/internal/common/metricsserver"
	"github.com/toeverything/edge-workers/internal/common/redis"
	"github.com/toeverything/edge-workers/internal/edge/configtest"
	"github.com/toeverything/edge-workers/internal/edge/events"
	"github.com/toeverything/edge-workers/internal/edge/metrics"
	"github.com/toeverything/edge-workers/internal/edge/probe"
	"github.com/toeverything/edge-workers/internal/edge/server"
	edgetls "github.com/toeverything/edge-workers/internal/edge/tls"
	"github.com/toeverything/edge-workers/internal/edge/validate"
)

func main() {
	configPath := flag.String("c", "configs/edge-worker.yaml", "path to configuration file")
	testMode := flag.Bool("t", false, "test configuration and exit")
	flag.Parse()

	if *testMode {
		var testURL string
		if flag.NArg() > 0 {
			testURL = flag.Arg(0)
		}
		os.Exit(runConfigTest(os.Stdout, *configPath, testURL))
	}

	initialLogger, err := logger.NewDefaultLogger()
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}

	initialLogger.Info("Starting Edge Worker", zap.String("config_path", *configPath))

	configManager, err := config.NewManager(*configPath, initialLogger.Logger)
	if err != nil {
		initialLogger.Fatal("Failed to load configuration", zap.Error(err))
	}
	cfg := configManager.GetConfig()

	dynamicLogger, err := logger.NewLoggerWithStartupOverride(cfg.Log)
	if err != nil {
		initialLogger.Fatal("Failed to create configured logger", zap.Error(err))
	}
	defer dynamicLogger.Sync()

	workerLogger := dynamicLogger.ForWorker(cfg.WorkerID)

	var store probe.SupportStore
	var redisClient *redis.Client
	if cfg.Probe.Store == configtypes.ProbeStoreRedis {
		redisClient, err = redis.NewClient(&cfg.Redis, workerLogger)
		if err != nil {
			workerLogger.Fatal("Failed to connect to Redis", zap.Error(err))
		}
		defer redisClient.Close()
		store = probe.NewRedisStore(redisClient, workerLogger)
		workerLogger.Info("HTTPS support store initialized", zap.String("store", "redis"), zap.String("addr", cfg.Redis.Addr))
	} else {
		store = probe.NewMemoryStore()
		workerLogger.Info("HTTPS support store initialized", zap.String("store", "memory"))
	}

	var metricsCollector *metrics.MetricsCollector
	if cfg.Metrics.Enabled {
		pm := metrics.NewPrometheusMetrics(cfg.Metrics.Namespace, workerLogger)
		metricsCollector = metrics.NewMetricsCollector(pm, workerLogger)
	}

	var eventEmitter events.EventEmitter
	if cfg.EventLogging != nil && cfg.EventLogging.File.Enabled {
		fileEmitter, err := events.NewFileEmitter(cfg.EventLogging.File, workerLogger)
		if err != nil {
			workerLogger.Fatal("Failed to create file emitter", zap.Error(err))
		}
		eventEmitter = events.NewMultiEmitter(fileEmitter)
		workerLogger.Info("Event logging initialized", zap.String("path", cfg.EventLogging.File.Path))
	}

	srv, err := server.NewServer(cfg, server.Dependencies{
		Store:     store,
		Collector: metricsCollector,
		Emitter:   eventEmitter,
	}, workerLogger)
	if err != nil {
		workerLogger.Fatal("Failed to assemble worker", zap.Error(err))
	}

	var metricsServer *fasthttp.Server
	if metricsCollector != nil {
		metricsServer, err = metricsserver.StartMetricsServer(cfg.Metrics, metricsCollector, workerLogger)
		if err != nil {
			workerLogger.Fatal("Failed to start metrics server", zap.Error(err))
		}
	}

	// Bind the TLS listener before starting public servers to fail fast
	var tlsListener net.Listener
	if cfg.Server.TLS.Enabled {
		tlsListener, err = edgetls.ListenerFromConfig(cfg.Server.TLS, filepath.Dir(*configPath))
		if err != nil {
			workerLogger.Fatal("Failed to create TLS listener", zap.Error(err))
		}
	}

	serverErrors := make(chan error, 2)
	timeout := cfg.Server.Timeout.ToDuration()

	lifecycles := []*serverLifecycle{{
		server:  server.NewFastHTTPServer(srv.HandleRequest, timeout),
		name:    "HTTP",
		address: cfg.Server.Listen,
		logger:  workerLogger,
	}}
	if tlsListener != nil {
		lifecycles = append(lifecycles, &serverLifecycle{
			server:   server.NewFastHTTPServer(srv.HandleRequest, timeout),
			listener: tlsListener,
			name:     "HTTPS",
			address:  cfg.Server.TLS.Listen,
			logger:   workerLogger,
		})
	}
	for _, lc := range lifecycles {
		lc.StartWithErrorChan(serverErrors)
	}

	// Wait briefly for the listener to come up and check for immediate failures
	time.Sleep(100 * time.Millisecond)
	select {
	case err := <-serverErrors:
		workerLogger.Fatal("Server failed to start", zap.Error(err))
	default:
	}

	workerLogger.Info("Edge Worker started",
		zap.String("http_addr", cfg.Server.Listen),
		zap.Bool("tls", tlsListener != nil),
		zap.Strings("hosts", srv.Table().Hosts()))

	dynamicLogger.SwitchToConfiguredLevel()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-quit:
		dynamicLogger.EnsureInfoLevelForShutdown()
		workerLogger.Info("Shutting down Edge Worker...")
	case err := <-serverErrors:
		dynamicLogger.EnsureInfoLevelForShutdown()
		workerLogger.Error("Server failed, initiating shutdown", zap.Error(err))
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if metricsServer != nil {
		workerLogger.Info("Shutting down metrics server")
		if err := metricsServer.ShutdownWithContext(shutdownCtx); err != nil {
			workerLogger.Error("Metrics server shutdown error", zap.Error(err))
		}
	}

	var wg sync.WaitGroup
	for _, lc := range lifecycles {
		wg.Add(1)
		go func(lc *serverLifecycle) {
			defer wg.Done()
			_ = lc.Shutdown(shutdownCtx)
		}(lc)
	}
	wg.Wait()
	workerLogger.Info("Public servers shutdown complete")

	if eventEmitter != nil {
		if err := eventEmitter.Close(); err != nil {
			workerLogger.Error("Failed to close event emitter", zap.Error(err))
		}
		workerLogger.Info("Event emitter shutdown complete")
	}

	workerLogger.Info("Edge Worker stopped")
}

type serverLifecycle struct {
	server   *fasthttp.Server
	listener net.Listener // nil for HTTP (uses ListenAndServe), set for HTTPS
	name     string
	address  string
	logger   *zap.Logger
}

func (s *serverLifecycle) StartWithErrorChan(errChan chan<- error) {
	go func() {
		var err error
		if s.listener != nil {
			err = s.server.Serve(s.listener)
		} else {
			err = s.server.ListenAndServe(s.address)
		}
		if err != nil {
			s.logger.Error("Server error", zap.String("name", s.name), zap.Error(err))
			if errChan != nil {
				errChan <- fmt.Errorf("%s server failed: %w", s.name, err)
			}
		}
	}()
	s.logger.Info("Server started", zap.String("name", s.name), zap.String("address", s.address))
}

func (s *serverLifecycle) Shutdown(ctx context.Context) error {
	s.logger.Info("Shutting down server", zap.String("name", s.name))
	err := s.server.ShutdownWithContext(ctx)
	if err != nil {
		s.logger.Error("Server shutdown error", zap.String("name", s.name), zap.Error(err))
	}
	return err
}

// runConfigTest validates the configuration and optionally reports how a URL is handled
func runConfigTest(w io.Writer, configPath string, testURL string) int {
	result, err := validate.ValidateConfiguration(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Validation error: %v\n", err)
		return 1
	}

	if !result.Valid {
		fmt.Fprintln(w, "Configuration validation FAILED:")
		for _, e := range result.Errors {
			fmt.Fprintf(w, "- %s\n", e)
		}
		return 1
	}

	fmt.Fprintf(w, "configuration file %s syntax is ok\n", result.ConfigPath)

	if len(result.Warnings) > 0 {
		fmt.Fprintln(w)
		fmt.Fprintf(w, "Configuration warnings (%d):\n", len(result.Warnings))
		for _, warning := range result.Warnings {
			fmt.Fprintf(w, "- %s\n", warning)
		}
		fmt.Fprintln(w)
	}

	fmt.Fprintln(w, "configuration test is successful")

	if testURL != "" {
		urlResult, err := configtest.TestURL(testURL, result)
		if err != nil {
			fmt.Fprintf(os.Stderr, "\nURL test error: %v\n", err)
			return 1
		}
		configtest.PrintURLTestResult(w, urlResult)
	}

	return 0
}
