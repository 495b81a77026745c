package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sellerlink/gateway/internal/application/gateway"
	"github.com/sellerlink/gateway/internal/domain/marketplace"
	"github.com/sellerlink/gateway/internal/infrastructure/auth"
	"github.com/sellerlink/gateway/internal/infrastructure/cache"
	"github.com/sellerlink/gateway/internal/infrastructure/config"
	"github.com/sellerlink/gateway/internal/infrastructure/ebay"
	"github.com/sellerlink/gateway/internal/infrastructure/logger"
	"github.com/sellerlink/gateway/internal/infrastructure/persistence"
	"github.com/sellerlink/gateway/internal/infrastructure/telemetry"
	"github.com/sellerlink/gateway/internal/interfaces/http/handler"
	"github.com/sellerlink/gateway/internal/interfaces/http/middleware"
	"github.com/sellerlink/gateway/internal/interfaces/http/router"
	"go.opentelemetry.io/otel"
	"go.uber.org/zap"
)

var version = "dev"

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		panic("Failed to load configuration: " + err.Error())
	}

	logCfg := &logger.Config{
		Level:      cfg.Log.Level,
		Format:     cfg.Log.Format,
		Output:     cfg.Log.Output,
		TimeFormat: "2006-01-02T15:04:05.000Z07:00",
	}
	bootLog, err := logger.New(logCfg)
	if err != nil {
		panic("Failed to initialize logger: " + err.Error())
	}

	// Telemetry comes first so the final logger can tee into the OTLP log pipeline
	providers, err := telemetry.Setup(context.Background(), telemetry.Config{
		Enabled:           cfg.Telemetry.Enabled,
		CollectorEndpoint: cfg.Telemetry.CollectorEndpoint,
		SamplingRatio:     cfg.Telemetry.SamplingRatio,
		ServiceName:       cfg.Telemetry.ServiceName,
		ServiceVersion:    version,
		Insecure:          cfg.Telemetry.Insecure,
		MetricsInterval:   cfg.Telemetry.MetricsInterval,
		LogsEnabled:       cfg.Telemetry.LogsEnabled,
	}, bootLog)
	if err != nil {
		bootLog.Fatal("Failed to initialize telemetry", zap.Error(err))
	}
	defer func() {
		_ = providers.Shutdown(context.Background())
	}()

	log, err := logger.New(logCfg, logger.WithCore(providers.ZapCore(logger.ParseLevel(cfg.Log.Level))))
	if err != nil {
		bootLog.Fatal("Failed to initialize logger", zap.Error(err))
	}
	defer func() {
		_ = logger.Sync(log)
	}()

	log.Info("Starting marketplace gateway",
		zap.String("app", cfg.App.Name),
		zap.String("env", cfg.App.Env),
		zap.String("port", cfg.App.Port),
		zap.String("version", version),
	)

	// Database
	gormLog := logger.NewGormLogger(log, logger.MapGormLogLevel(cfg.Log.Level))
	db, err := persistence.NewDatabase(&cfg.Database, gormLog)
	if err != nil {
		log.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer func() {
		if err := db.Close(); err != nil {
			log.Error("Error closing database", zap.Error(err))
		}
	}()
	if err := telemetry.RegisterDBTracing(db.DB, telemetry.DBTracingConfig{
		Enabled:    cfg.Telemetry.DBTraceEnabled,
		LogFullSQL: cfg.Telemetry.DBLogFullSQL,
	}, log); err != nil {
		log.Fatal("Failed to register database tracing", zap.Error(err))
	}
	log.Info("Database connected successfully")

	// Shared state for authorization requests and refresh locking
	stores, err := cache.NewStoreFactory(cfg.Redis,
		cache.WithLogger(log),
		cache.WithInMemoryFallback(cfg.App.Env != "production"),
	).Create(context.Background())
	if err != nil {
		log.Fatal("Failed to initialize stores", zap.Error(err))
	}
	defer func() {
		if err := stores.Close(); err != nil {
			log.Error("Error closing stores", zap.Error(err))
		}
	}()

	cipher, err := persistence.NewTokenCipher(cfg.Marketplace.TokenEncryptionKey)
	if err != nil {
		log.Fatal("Invalid token encryption key", zap.Error(err))
	}
	if cfg.Marketplace.TokenEncryptionKey == "" {
		log.Warn("Token encryption key not set, marketplace tokens are stored unencrypted")
	}
	credentials := persistence.NewGormCredentialStore(db.DB, cipher)

	metrics, err := telemetry.NewGatewayMetrics(otel.GetMeterProvider().Meter(telemetry.TracerName))
	if err != nil {
		log.Fatal("Failed to create gateway metrics", zap.Error(err))
	}

	// Marketplace adapters
	ebayCfg := ebay.NewConfig(cfg.Marketplace)
	if err := ebayCfg.Validate(); err != nil {
		log.Fatal("Invalid marketplace configuration", zap.Error(err))
	}
	adapterOpts := []ebay.Option{ebay.WithLogger(log), ebay.WithMetrics(metrics)}
	oauthClient := ebay.NewOAuthClient(ebayCfg, adapterOpts...)

	tokens := gateway.NewTokenManager(credentials, stores.Authorizations, stores.RefreshLock, oauthClient,
		gateway.TokenManagerConfig{
			DefaultEnvironment: marketplace.Environment(cfg.Marketplace.DefaultEnvironment),
			Scopes:             cfg.Marketplace.Scopes,
			TokenSkew:          cfg.Marketplace.TokenSkew,
			AuthRequestTTL:     cfg.Marketplace.AuthRequestTTL,
			RedirectURIs: map[marketplace.Environment]string{
				marketplace.EnvironmentSandbox:    cfg.Marketplace.Sandbox.RuName,
				marketplace.EnvironmentProduction: cfg.Marketplace.Production.RuName,
			},
		},
		gateway.WithLogger(log),
		gateway.WithMetrics(metrics),
	)

	rest := ebay.NewRestAPI(ebayCfg, tokens, adapterOpts...)
	trading := ebay.NewTradingAPI(ebayCfg, tokens, adapterOpts...)

	orchestrator := gateway.NewOrchestrator(gateway.Upstreams{
		Inventory:         rest,
		Listings:          trading,
		Orders:            rest,
		LegacyOrders:      trading,
		OrderList:         rest,
		Fulfillment:       rest,
		LegacyFulfillment: trading,
		Messages:          trading,
		Returns:           rest,
		Inquiries:         rest,
		Cancellations:     rest,
	},
		gateway.WithLogger(log),
		gateway.WithMetrics(metrics),
		gateway.WithMaxConcurrentItems(cfg.Marketplace.MaxConcurrentItems),
	)

	// HTTP
	if cfg.App.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	middleware.SetupValidator()

	engine := gin.New()
	if len(cfg.HTTP.TrustedProxies) > 0 {
		if err := engine.SetTrustedProxies(cfg.HTTP.TrustedProxies); err != nil {
			log.Warn("Failed to set trusted proxies", zap.Error(err))
		}
	}

	httpMetrics, err := middleware.HTTPMetrics(nil)
	if err != nil {
		log.Fatal("Failed to create HTTP metrics", zap.Error(err))
	}

	// Middleware order matters:
	// 1. Recovery - catch panics
	// 2. RequestID - generate/propagate request ID
	// 3. Tracing - server span, then request attributes and 5xx status
	// 4. Metrics and access log
	// 5. BodyLimit and Timeout
	tracingCfg := middleware.DefaultTracingConfig()
	tracingCfg.ServiceName = cfg.Telemetry.ServiceName
	tracingCfg.Enabled = cfg.Telemetry.Enabled
	engine.Use(logger.Recovery(log))
	engine.Use(middleware.RequestID())
	engine.Use(middleware.Tracing(tracingCfg))
	engine.Use(middleware.SpanErrorMarker())
	engine.Use(httpMetrics)
	engine.Use(logger.GinMiddleware(log))
	engine.Use(middleware.BodyLimit(cfg.HTTP.MaxBodySize))
	engine.Use(middleware.Timeout(cfg.HTTP.RequestTimeout))

	session := middleware.SessionAuth(middleware.SessionConfig{
		Verifier: auth.NewSessionVerifier(cfg.JWT),
		Logger:   log,
	})

	router.Mount(engine, router.Handlers{
		Accounts: handler.NewAccountHandler(tokens),
		Orders:   handler.NewOrderHandler(tokens, orchestrator),
		System: handler.NewSystemHandler(map[string]handler.ReadinessCheck{
			"database": func(context.Context) error { return db.Ping() },
			"redis":    stores.Ping,
		}),
	}, session)

	srv := &http.Server{
		Addr:           ":" + cfg.App.Port,
		Handler:        engine,
		ReadTimeout:    cfg.HTTP.ReadTimeout,
		WriteTimeout:   cfg.HTTP.WriteTimeout,
		IdleTimeout:    cfg.HTTP.IdleTimeout,
		MaxHeaderBytes: cfg.HTTP.MaxHeaderBytes,
	}

	// Start server in goroutine
	go func() {
		log.Info("Server starting", zap.String("addr", srv.Addr), zap.Bool("distributed_stores", stores.Distributed()))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Error("Server forced to shutdown", zap.Error(err))
		return
	}

	log.Info("Server exited gracefully")
}
