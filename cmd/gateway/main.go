// Package main is the entry point for the revgate reverse proxy.
package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/avolkhin/revgate/internal/config"
	"github.com/avolkhin/revgate/internal/gateway"
	"github.com/avolkhin/revgate/internal/health"
	"github.com/avolkhin/revgate/internal/middleware"
	"github.com/avolkhin/revgate/internal/observability"
	"github.com/avolkhin/revgate/internal/proxy"
	"github.com/avolkhin/revgate/internal/retry"
	"github.com/avolkhin/revgate/internal/telemetry"
	"github.com/avolkhin/revgate/internal/upstream"
)

// Version information (set at build time).
var (
	version   = "dev"
	buildTime = "unknown"
	gitCommit = "unknown"
)

// cliFlags holds command line flags.
type cliFlags struct {
	configPath  string
	logLevel    string
	logFormat   string
	showVersion bool
}

func main() {
	flags := parseFlags()

	if flags.showVersion {
		printVersion()
		return
	}

	logger := initLogger(flags)
	defer func() { _ = logger.Sync() }()

	cfg := loadAndValidateConfig(flags.configPath, logger)
	app := initApplication(cfg, logger)

	runGateway(app, flags.configPath, logger)
}

// parseFlags parses command line flags.
func parseFlags() cliFlags {
	configPath := flag.String("config", getEnvOrDefault("REVGATE_CONFIG_PATH", "configs/gateway.yaml"),
		"Path to configuration file")
	logLevel := flag.String("log-level", getEnvOrDefault("REVGATE_LOG_LEVEL", "info"),
		"Log level (debug, info, warn, error)")
	logFormat := flag.String("log-format", getEnvOrDefault("REVGATE_LOG_FORMAT", "json"),
		"Log format (json, console)")
	showVersion := flag.Bool("version", false, "Show version information")
	flag.Parse()

	return cliFlags{
		configPath:  *configPath,
		logLevel:    *logLevel,
		logFormat:   *logFormat,
		showVersion: *showVersion,
	}
}

// printVersion prints version information and exits.
func printVersion() {
	fmt.Printf("revgate version %s\n", version)
	fmt.Printf("  Build time: %s\n", buildTime)
	fmt.Printf("  Git commit: %s\n", gitCommit)
}

// getEnvOrDefault returns the environment variable value or a default.
func getEnvOrDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

// initLogger initializes the logger.
func initLogger(flags cliFlags) observability.Logger {
	logger, err := observability.NewLogger(observability.LogConfig{
		Level:  flags.logLevel,
		Format: flags.logFormat,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialize logger: %v\n", err)
		os.Exit(1)
	}

	observability.SetGlobalLogger(logger)
	return logger
}

// loadAndValidateConfig loads and validates the configuration.
func loadAndValidateConfig(configPath string, logger observability.Logger) *config.GatewayConfig {
	logger.Info("starting revgate",
		observability.String("version", version),
		observability.String("config", configPath),
	)

	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		logger.Fatal("failed to load configuration", observability.Error(err))
	}

	if err := config.ValidateConfig(cfg); err != nil {
		logger.Fatal("invalid configuration", observability.Error(err))
	}

	logger.Info("configuration loaded",
		observability.String("listen", cfg.Server.ListenAddress),
		observability.Int("routes", len(cfg.Routes)),
		observability.Int("upstreams", len(cfg.Upstreams)),
		observability.Bool("telemetry", cfg.Telemetry.Enabled),
	)

	return cfg
}

// application holds all application components.
type application struct {
	gateway       *gateway.Gateway
	server        *gateway.Server
	emitter       *telemetry.Emitter
	healthChecker *health.Checker
	metrics       *observability.Metrics
	tracer        *observability.Tracer
	config        *config.GatewayConfig
}

// initApplication initializes all application components.
func initApplication(cfg *config.GatewayConfig, logger observability.Logger) *application {
	metrics := observability.NewMetrics(cfg.Metrics.Namespace)
	tracer := initTracer(cfg, logger)
	healthChecker := health.NewChecker(version)

	emitter := initEmitter(cfg, metrics, logger)

	transport := upstream.NewTransport(upstream.DefaultTransportConfig())
	forwarder := proxy.NewForwarder(transport,
		proxy.WithLogger(logger),
		proxy.WithMetrics(metrics),
	)

	gwOpts := []gateway.Option{gateway.WithLogger(logger)}
	if emitter != nil {
		gwOpts = append(gwOpts, gateway.WithEmitter(emitter))
	}

	gw, err := gateway.New(cfg, forwarder, gwOpts...)
	if err != nil {
		logger.Fatal("failed to create gateway", observability.Error(err))
	}

	registerUpstreamChecks(healthChecker, gw)

	handler := buildMiddlewareChain(gw, cfg, logger, metrics, tracer)
	server := gateway.NewServer(cfg.Server, handler, logger)

	return &application{
		gateway:       gw,
		server:        server,
		emitter:       emitter,
		healthChecker: healthChecker,
		metrics:       metrics,
		tracer:        tracer,
		config:        cfg,
	}
}

// initEmitter initializes the telemetry emitter, or returns nil when
// telemetry is disabled.
func initEmitter(cfg *config.GatewayConfig, metrics *observability.Metrics, logger observability.Logger) *telemetry.Emitter {
	if !cfg.Telemetry.Enabled {
		return nil
	}

	sink := telemetry.NewHTTPIndexer(telemetry.IndexerConfig{
		Endpoint: cfg.Telemetry.Indexer.Endpoint,
		Index:    cfg.Telemetry.Indexer.Index,
		Username: cfg.Telemetry.Indexer.Username,
		Password: cfg.Telemetry.Indexer.Password,
		Timeout:  cfg.Telemetry.Indexer.Timeout.Duration(),
	})

	emitter := telemetry.NewEmitter(sink,
		telemetry.WithQueueCapacity(cfg.Telemetry.QueueCapacity),
		telemetry.WithBatchSize(cfg.Telemetry.BatchSize),
		telemetry.WithFlushInterval(cfg.Telemetry.FlushInterval.Duration()),
		telemetry.WithRetryConfig(&retry.Config{
			MaxRetries:     cfg.Telemetry.MaxRetries,
			InitialBackoff: cfg.Telemetry.InitialBackoff.Duration(),
			MaxBackoff:     cfg.Telemetry.MaxBackoff.Duration(),
		}),
		telemetry.WithEmitterLogger(logger),
	)

	for _, c := range telemetry.Collectors(cfg.Metrics.Namespace, emitter) {
		metrics.MustRegisterCollector(c)
	}

	return emitter
}

// initTracer initializes the tracer.
func initTracer(cfg *config.GatewayConfig, logger observability.Logger) *observability.Tracer {
	tracer, err := observability.NewTracer(observability.TracerConfig{
		ServiceName:  cfg.Tracing.ServiceName,
		OTLPEndpoint: cfg.Tracing.OTLPEndpoint,
		SamplingRate: cfg.Tracing.SamplingRate,
		Enabled:      cfg.Tracing.Enabled,
	})
	if err != nil {
		logger.Fatal("failed to initialize tracer", observability.Error(err))
	}

	return tracer
}

// registerUpstreamChecks registers a readiness check per upstream pool.
func registerUpstreamChecks(checker *health.Checker, gw *gateway.Gateway) {
	for name := range gw.Upstreams().Pools() {
		poolName := name
		checker.RegisterCheck("upstream:"+poolName, func() health.Check {
			pool, ok := gw.Upstreams().Get(poolName)
			if !ok {
				// Pool removed by reload.
				return health.Check{Status: health.StatusHealthy}
			}
			if pool.AvailableCount() == 0 {
				return health.Check{
					Status:  health.StatusDegraded,
					Message: "no available endpoints",
				}
			}
			return health.Check{Status: health.StatusHealthy}
		})
	}
}

// buildMiddlewareChain builds the middleware chain around the gateway
// handler. Recovery is outermost; rate limiting and the circuit
// breaker sit closest to the forwarder.
func buildMiddlewareChain(
	handler http.Handler,
	cfg *config.GatewayConfig,
	logger observability.Logger,
	metrics *observability.Metrics,
	tracer *observability.Tracer,
) http.Handler {
	h := handler

	if cfg.RateLimit != nil && cfg.RateLimit.Enabled {
		limiter := middleware.NewRateLimiter(
			cfg.RateLimit.RequestsPerSecond,
			cfg.RateLimit.Burst,
			true,
			middleware.WithRateLimiterLogger(logger),
			middleware.WithRateLimitHitCallback(metrics.RecordRateLimitHit),
		)
		h = middleware.RateLimit(limiter)(h)
	}

	if cfg.CircuitBreaker != nil && cfg.CircuitBreaker.Enabled {
		cb := middleware.NewCircuitBreaker("gateway",
			cfg.CircuitBreaker.MaxRequests,
			cfg.CircuitBreaker.Interval.Duration(),
			cfg.CircuitBreaker.Timeout.Duration(),
			middleware.WithCircuitBreakerLogger(logger),
		)
		h = cb.Middleware()(h)
	}

	h = observability.MetricsMiddleware(metrics)(h)
	if cfg.Tracing.Enabled {
		h = observability.TracingMiddleware(tracer)(h)
	}
	h = middleware.Logging(logger)(h)
	h = middleware.RequestID()(h)
	h = middleware.Recovery(logger)(h)

	return h
}

// runGateway runs the gateway and handles shutdown.
func runGateway(app *application, configPath string, logger observability.Logger) {
	if app.emitter != nil {
		app.emitter.Start()
	}

	app.server.Start()

	startMetricsServerIfEnabled(app, logger)
	watcher := startConfigWatcher(app, configPath, logger)

	waitForShutdown(app, watcher, logger)
}

// startMetricsServerIfEnabled starts the metrics server if enabled.
func startMetricsServerIfEnabled(app *application, logger observability.Logger) {
	if !app.config.Metrics.Enabled {
		return
	}

	go startMetricsServer(app.config.Metrics.ListenAddress, app.metrics, app.healthChecker, logger)
}

// startMetricsServer starts the metrics and health HTTP server.
func startMetricsServer(
	addr string,
	metrics *observability.Metrics,
	healthChecker *health.Checker,
	logger observability.Logger,
) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler())
	mux.HandleFunc("/health", healthChecker.HealthHandler())
	mux.HandleFunc("/ready", healthChecker.ReadinessHandler())

	logger.Info("starting metrics server",
		observability.String("address", addr),
	)

	server := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadTimeout:       10 * time.Second,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      10 * time.Second,
	}

	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Error("metrics server failed", observability.Error(err))
	}
}

// startConfigWatcher starts the configuration watcher and wires SIGHUP
// to an explicit reload.
func startConfigWatcher(
	app *application,
	configPath string,
	logger observability.Logger,
) *config.Watcher {
	watcher, err := config.NewWatcher(configPath, func(newCfg *config.GatewayConfig) {
		logger.Info("configuration changed, reloading")
		if reloadErr := app.gateway.Reload(newCfg); reloadErr != nil {
			logger.Error("failed to reload configuration", observability.Error(reloadErr))
		}
	}, config.WithLogger(logger))

	if err != nil {
		logger.Warn("failed to create config watcher", observability.Error(err))
		return nil
	}

	if err := watcher.Start(context.Background()); err != nil {
		logger.Warn("failed to start config watcher", observability.Error(err))
	}

	hupCh := make(chan os.Signal, 1)
	signal.Notify(hupCh, syscall.SIGHUP)
	go func() {
		for range hupCh {
			logger.Info("received SIGHUP, reloading configuration")
			if err := watcher.ForceReload(); err != nil {
				logger.Error("reload failed", observability.Error(err))
			}
		}
	}()

	return watcher
}

// waitForShutdown waits for a shutdown signal and performs graceful
// shutdown: stop accepting, drain in-flight requests, flush telemetry.
func waitForShutdown(app *application, watcher *config.Watcher, logger observability.Logger) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigCh
	logger.Info("received shutdown signal", observability.String("signal", sig.String()))

	app.healthChecker.SetDraining(true)

	shutdownCtx, cancel := context.WithTimeout(
		context.Background(),
		app.config.Server.ShutdownTimeout.Duration(),
	)
	defer cancel()

	if watcher != nil {
		_ = watcher.Stop()
	}

	if err := app.server.Stop(shutdownCtx); err != nil {
		logger.Error("failed to stop gateway gracefully", observability.Error(err))
	}

	if app.emitter != nil {
		if err := app.emitter.Close(shutdownCtx); err != nil {
			logger.Error("failed to flush telemetry", observability.Error(err))
		}
	}

	if err := app.tracer.Shutdown(shutdownCtx); err != nil {
		logger.Error("failed to shutdown tracer", observability.Error(err))
	}

	logger.Info("gateway stopped")
}
