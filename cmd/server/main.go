package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"
	financeapp "github.com/vidkid7/SchoolManagementSystem-sub013/internal/application/finance"
	"github.com/vidkid7/SchoolManagementSystem-sub013/internal/infrastructure/auth"
	"github.com/vidkid7/SchoolManagementSystem-sub013/internal/infrastructure/cache"
	"github.com/vidkid7/SchoolManagementSystem-sub013/internal/infrastructure/config"
	"github.com/vidkid7/SchoolManagementSystem-sub013/internal/infrastructure/event"
	"github.com/vidkid7/SchoolManagementSystem-sub013/internal/infrastructure/logger"
	"github.com/vidkid7/SchoolManagementSystem-sub013/internal/infrastructure/migration"
	"github.com/vidkid7/SchoolManagementSystem-sub013/internal/infrastructure/persistence"
	"github.com/vidkid7/SchoolManagementSystem-sub013/internal/infrastructure/telemetry"
	"github.com/vidkid7/SchoolManagementSystem-sub013/internal/interfaces/http/handler"
	"github.com/vidkid7/SchoolManagementSystem-sub013/internal/interfaces/http/middleware"
	"github.com/vidkid7/SchoolManagementSystem-sub013/internal/interfaces/http/router"
	"go.uber.org/zap"

	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	_ "github.com/vidkid7/SchoolManagementSystem-sub013/docs"
)

//	@title			School Billing API
//	@version		1.0
//	@description	Invoices, payments and refund workflow for the school billing ledger.

//	@host		localhost:8080
//	@BasePath	/api/v1

//	@securityDefinitions.apikey	BearerAuth
//	@in							header
//	@name						Authorization
//	@description				Bearer token authentication. Format: "Bearer {token}"

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic("Failed to load configuration: " + err.Error())
	}

	log, err := logger.New(&logger.Config{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
		Output: cfg.Log.Output,
	}, cfg.App.Name)
	if err != nil {
		panic("Failed to initialize logger: " + err.Error())
	}
	defer func() {
		_ = logger.Sync(log)
	}()

	ctx := context.Background()
	tel := setupTelemetry(ctx, cfg, log)
	log = tel.logs.Bridge(log, logger.ParseLevel(cfg.Log.Level))

	log.Info("Starting school billing service",
		zap.String("env", cfg.App.Env),
		zap.String("port", cfg.App.Port),
		zap.String("version", cfg.App.Version),
	)

	db, err := persistence.NewDatabase(&cfg.Database, log)
	if err != nil {
		log.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer func() {
		if err := db.Close(); err != nil {
			log.Error("Error closing database", zap.Error(err))
		}
	}()
	log.Info("Database connected successfully")

	if err := ensureSchema(cfg.Database, log); err != nil {
		log.Fatal("Database schema is not ready", zap.Error(err))
	}

	dbTracing := telemetry.NewDBTracingPlugin(telemetry.DBTracingConfig{
		Enabled:         cfg.Telemetry.Enabled && cfg.Telemetry.DBTraceEnabled,
		LogFullSQL:      cfg.Telemetry.DBLogFullSQL,
		SlowQueryThresh: cfg.Telemetry.DBSlowQueryThresh,
		DBSystem:        "postgresql",
	}, log)
	if err := dbTracing.Register(db.DB); err != nil {
		log.Fatal("Failed to register database tracing", zap.Error(err))
	}

	ledgerMetrics, err := telemetry.NewLedgerMetrics(tel.meter.Meter("school-billing/ledger"))
	if err != nil {
		log.Fatal("Failed to create ledger metrics", zap.Error(err))
	}

	// Events are published after commit; the audit trail hangs off the bus
	eventBus := event.NewInMemoryEventBus(log.Named("events"))
	if err := eventBus.Start(ctx); err != nil {
		log.Fatal("Failed to start event bus", zap.Error(err))
	}
	eventBus.Subscribe(event.NewAuditLogHandler(persistence.NewGormAuditLogRepository(db.DB)))

	idempotencyStore, err := cache.NewIdempotencyStoreFactory(cfg, cache.WithLogger(log)).CreateStore(ctx)
	if err != nil {
		log.Fatal("Failed to create payment reference store", zap.Error(err))
	}
	defer func() {
		if err := idempotencyStore.Close(); err != nil {
			log.Error("Error closing payment reference store", zap.Error(err))
		}
	}()

	txScope := persistence.NewGormLedgerTransactionScope(db.DB)
	serviceOpts := []financeapp.Option{
		financeapp.WithLogger(log),
		financeapp.WithEventPublisher(eventBus),
		financeapp.WithMetrics(ledgerMetrics),
		financeapp.WithIdempotencyStore(idempotencyStore, cfg.Ledger.IdempotencyTTL),
	}
	invoiceService := financeapp.NewInvoiceService(persistence.NewGormInvoiceRepository(db.DB), txScope, serviceOpts...)
	paymentService := financeapp.NewPaymentService(persistence.NewGormPaymentRepository(db.DB), txScope, serviceOpts...)
	refundService := financeapp.NewRefundService(persistence.NewGormRefundRepository(db.DB), txScope, serviceOpts...)

	var sweeper *financeapp.OverdueSweeper
	if cfg.Ledger.OverdueSweepEnabled {
		sweeper = financeapp.NewOverdueSweeper(invoiceService, cfg.Ledger.OverdueSweepInterval,
			cfg.Ledger.OverdueBatchSize, log.Named("overdue"))
		sweeper.Start(ctx)
		log.Info("Overdue sweeper started", zap.Duration("interval", cfg.Ledger.OverdueSweepInterval))
	}

	if cfg.App.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}
	middleware.SetupValidator()

	engine := gin.New()
	if len(cfg.HTTP.TrustedProxies) > 0 {
		if err := engine.SetTrustedProxies(cfg.HTTP.TrustedProxies); err != nil {
			log.Warn("Failed to set trusted proxies", zap.Error(err))
		}
	}

	httpMetrics, err := middleware.HTTPMetrics(tel.meter.Meter("school-billing/http"))
	if err != nil {
		log.Fatal("Failed to create HTTP metrics", zap.Error(err))
	}

	// Order matters: the request id must exist before anything logs
	engine.Use(logger.GinMiddleware(log))
	engine.Use(logger.Recovery(log))
	engine.Use(middleware.Tracing(cfg.Telemetry.ServiceName, nil))
	engine.Use(httpMetrics)
	engine.Use(middleware.SecureWithConfig(middleware.SecurityConfig{
		HSTSEnabled: cfg.App.IsProduction(),
		HSTSMaxAge:  31536000,
	}))
	corsConfig := middleware.DefaultCORSConfig()
	corsConfig.AllowOrigins = cfg.HTTP.CORSAllowOrigins
	corsConfig.AllowMethods = cfg.HTTP.CORSAllowMethods
	corsConfig.AllowHeaders = cfg.HTTP.CORSAllowHeaders
	engine.Use(middleware.CORSWithConfig(corsConfig))
	engine.Use(middleware.BodyLimit(cfg.HTTP.MaxBodySize))

	healthChecks := map[string]handler.HealthCheck{"database": db.Ping}
	if pinger, ok := idempotencyStore.(interface{ Ping(context.Context) error }); ok {
		healthChecks["redis"] = pinger.Ping
	}
	engine.GET("/health", handler.NewHealthHandler(cfg.App.Version, healthChecks).Health)
	if !cfg.App.IsProduction() {
		engine.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	r := router.NewRouter(engine, "v1")
	r.Use(
		middleware.Authenticate(middleware.AuthConfig{
			Verifier:            auth.NewTokenVerifier(cfg.JWT),
			AllowHeaderIdentity: cfg.JWT.AllowHeaderIdentity,
			Logger:              log,
		}),
		middleware.SpanAttributes(),
		middleware.ProfileLabels(),
	)
	billing := router.NewBillingGroup(router.BillingHandlers{
		Invoice: handler.NewInvoiceHandler(invoiceService),
		Payment: handler.NewPaymentHandler(paymentService),
		Refund:  handler.NewRefundHandler(refundService),
	})
	r.Register(billing).Setup()
	log.Info("Billing routes mounted",
		zap.String("prefix", r.APIPrefix()),
		zap.Int("routes", len(billing.Routes())),
	)

	srv := &http.Server{
		Addr:           ":" + cfg.App.Port,
		Handler:        engine,
		ReadTimeout:    cfg.HTTP.ReadTimeout,
		WriteTimeout:   cfg.HTTP.WriteTimeout,
		IdleTimeout:    cfg.HTTP.IdleTimeout,
		MaxHeaderBytes: cfg.HTTP.MaxHeaderBytes,
	}

	go func() {
		log.Info("Server starting", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("Server forced to shutdown", zap.Error(err))
	}
	if sweeper != nil {
		sweeper.Stop()
	}
	if err := eventBus.Stop(shutdownCtx); err != nil {
		log.Error("Event bus did not drain", zap.Error(err))
	}
	tel.shutdown(shutdownCtx)

	log.Info("Server exited gracefully")
}

// ensureSchema migrates the database when auto-migration is on, otherwise
// refuses to serve against a schema older than the migrations on disk.
func ensureSchema(cfg config.DatabaseConfig, log *zap.Logger) error {
	migrator, err := migration.NewFromURL(cfg.DSN(), cfg.MigrationsPath, log.Named("migrate"))
	if err != nil {
		return err
	}
	defer func() {
		if err := migrator.Close(); err != nil {
			log.Warn("Error closing migrator", zap.Error(err))
		}
	}()

	if cfg.AutoMigrate {
		return migrator.Up()
	}
	return migrator.RequireCurrent()
}

type telemetryProviders struct {
	tracer   *telemetry.TracerProvider
	meter    *telemetry.MeterProvider
	logs     *telemetry.LoggerProvider
	profiler *telemetry.Profiler
	log      *zap.Logger
}

// setupTelemetry starts the trace, metric, log and profile pipelines. A
// pipeline that fails to start is logged and replaced by its no-op version.
func setupTelemetry(ctx context.Context, cfg *config.Config, log *zap.Logger) *telemetryProviders {
	tc := cfg.Telemetry
	providers := &telemetryProviders{log: log}

	export := telemetry.ExportConfig{
		CollectorEndpoint: tc.CollectorEndpoint,
		ServiceName:       tc.ServiceName,
		ServiceVersion:    cfg.App.Version,
		Insecure:          tc.Insecure,
	}

	var err error
	providers.tracer, err = telemetry.NewTracerProvider(ctx, telemetry.Config{
		ExportConfig:  export,
		Enabled:       tc.Enabled,
		SamplingRatio: tc.SamplingRatio,
	}, log)
	if err != nil {
		log.Error("Tracing unavailable", zap.Error(err))
		providers.tracer, _ = telemetry.NewTracerProvider(ctx, telemetry.Config{}, log)
	}

	providers.meter, err = telemetry.NewMeterProvider(ctx, telemetry.MetricsConfig{
		ExportConfig:   export,
		Enabled:        tc.Enabled && tc.MetricsEnabled,
		ExportInterval: tc.MetricsExportInterval,
	}, log)
	if err != nil {
		log.Error("Metrics unavailable", zap.Error(err))
		providers.meter, _ = telemetry.NewMeterProvider(ctx, telemetry.MetricsConfig{}, log)
	}

	providers.logs, err = telemetry.NewLoggerProvider(ctx, telemetry.LogsConfig{
		ExportConfig: export,
		Enabled:      tc.Enabled && tc.LogsEnabled,
	}, log)
	if err != nil {
		log.Error("Log export unavailable", zap.Error(err))
		providers.logs, _ = telemetry.NewLoggerProvider(ctx, telemetry.LogsConfig{}, log)
	}

	providers.profiler, err = telemetry.NewProfiler(telemetry.ProfilerConfig{
		Enabled:         tc.ProfilingEnabled,
		ServerAddress:   tc.ProfilingAddress,
		ApplicationName: tc.ServiceName,
		ProfileTypes:    tc.ProfilingTypes,
	}, log)
	if err != nil {
		log.Error("Profiling unavailable", zap.Error(err))
		providers.profiler, _ = telemetry.NewProfiler(telemetry.ProfilerConfig{}, log)
	}
	if providers.profiler.IsEnabled() {
		providers.tracer.EnableSpanProfiles()
	}

	return providers
}

func (p *telemetryProviders) shutdown(ctx context.Context) {
	if err := p.profiler.Stop(); err != nil {
		p.log.Error("Error stopping profiler", zap.Error(err))
	}
	if err := p.tracer.Shutdown(ctx); err != nil {
		p.log.Error("Error shutting down tracer provider", zap.Error(err))
	}
	if err := p.meter.Shutdown(ctx); err != nil {
		p.log.Error("Error shutting down meter provider", zap.Error(err))
	}
	if err := p.logs.Shutdown(ctx); err != nil {
		p.log.Error("Error shutting down logger provider", zap.Error(err))
	}
}
