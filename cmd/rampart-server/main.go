package main

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib" // Register pgx as database/sql driver
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/rampart-ai/rampart/internal/api"
	"github.com/rampart-ai/rampart/internal/auth"
	"github.com/rampart-ai/rampart/internal/config"
	"github.com/rampart-ai/rampart/internal/education"
	"github.com/rampart-ai/rampart/internal/engine"
	"github.com/rampart-ai/rampart/internal/engine/detectors"
	"github.com/rampart-ai/rampart/internal/events"
	"github.com/rampart-ai/rampart/internal/normalize"
	"github.com/rampart-ai/rampart/internal/response"
	"github.com/rampart-ai/rampart/internal/storage"
	"github.com/rampart-ai/rampart/internal/store"
)

func main() {
	cfg, err := config.FromEnv()
	if err != nil {
		fmt.Fprintf(os.Stderr, "invalid configuration: %v\n", err)
		os.Exit(1)
	}

	logger := mustBuildLogger(cfg.LogLevel)
	defer logger.Sync() //nolint:errcheck // best-effort flush

	logger.Info("starting rampart server",
		zap.String("http_port", cfg.HTTPPort),
		zap.Bool("enabled", cfg.Enabled),
		zap.Bool("parallel_detection", cfg.ParallelDetection),
		zap.Duration("max_validation_time", cfg.MaxValidationTime),
		zap.Float64("block_threshold", cfg.BlockThreshold),
		zap.Float64("flag_threshold", cfg.FlagThreshold),
	)

	// Root context for background loops, cancelled on shutdown.
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Storage: ClickHouse or LogWriter fallback
	var writer storage.EventWriter
	var metricsWriter storage.MetricsWriter
	if cfg.ClickHouseDSN != "" {
		chWriter, err := storage.NewClickHouseWriter(cfg.ClickHouseDSN, logger)
		if err != nil {
			logger.Warn("clickhouse connection failed, falling back to log writer",
				zap.Error(err),
			)
			lw := storage.NewLogWriter(logger)
			writer, metricsWriter = lw, lw
		} else {
			writer, metricsWriter = chWriter, chWriter
			logger.Info("clickhouse writer connected")
		}
	} else {
		lw := storage.NewLogWriter(logger)
		writer, metricsWriter = lw, lw
		logger.Info("no CLICKHOUSE_DSN set, using log writer")
	}
	defer writer.Close()

	// Progressive response manager with periodic history cleanup
	responses := response.NewManager(logger)
	go responses.Run(ctx, cfg.CleanupInterval)

	// Event logger: metrics, persistence, alerts, progressive response
	metrics := events.NewMetrics()
	eventLogger := events.NewLogger(events.Options{
		LogAllDetections: cfg.LogAllDetections,
		AlertOnAttacks:   cfg.AlertOnAttacks,
		AlertBufferSize:  cfg.RecentAlertsSize,
	}, writer, metricsWriter, metrics, responses, logger)
	go eventLogger.RunSnapshots(ctx, cfg.SnapshotInterval)

	// Detector result cache with periodic expiry sweeps
	var optimizer engine.Optimizer
	if cfg.CacheSize > 0 {
		cache := engine.NewResultCache(cfg.CacheSize, cfg.CacheTTL)
		go cache.Run(ctx, cfg.CacheTTL)
		optimizer = cache
	}

	var guidance engine.GuidanceProvider
	if cfg.ProvideUserGuidance {
		guidance = education.NewProvider()
	}

	orch := engine.NewOrchestrator(engine.Options{
		Enabled:             cfg.Enabled,
		Parallel:            cfg.ParallelDetection,
		Budget:              cfg.MaxValidationTime,
		WorkerPool:          cfg.WorkerPoolSize,
		Decision:            engine.DecisionConfig{BlockThreshold: cfg.BlockThreshold, FlagThreshold: cfg.FlagThreshold},
		ConfidenceThreshold: cfg.DetectionConfidenceThreshold,
		DetectorEnabled:     cfg.DetectorEnabled,
		ProvideGuidance:     cfg.ProvideUserGuidance,
	},
		detectors.All(),
		normalize.New(cfg.SuspiciousLinkKeywords),
		engine.NewSanitizer(cfg.SanitizePhrases),
		optimizer,
		eventLogger,
		guidance,
		logger,
	)

	// Postgres pool (client CRUD + API key auth)
	var pgStore *store.Store
	var authenticator auth.Authenticator
	if cfg.PostgresDSN != "" {
		db, err := sql.Open("pgx", cfg.PostgresDSN)
		if err != nil {
			logger.Fatal("failed to open postgres", zap.Error(err))
		}
		defer func() { _ = db.Close() }()
		db.SetMaxOpenConns(10)
		db.SetMaxIdleConns(5)
		db.SetConnMaxLifetime(5 * time.Minute)
		if err := db.PingContext(ctx); err != nil {
			logger.Fatal("failed to ping postgres", zap.Error(err))
		}
		pgStore = store.NewStore(db)
		authenticator = auth.NewPostgresAuthenticator(auth.PostgresAuthConfig{
			DB:       db,
			CacheTTL: cfg.AuthCacheTTL,
			Logger:   logger,
		})
		logger.Info("postgres connected")
	} else {
		authenticator = auth.NewStaticAuthenticator()
		logger.Warn("no POSTGRES_DSN set, using format-only auth and no client CRUD")
	}

	// ClickHouse reader (events API) with periodic retention purge
	var chReader *storage.Reader
	if cfg.ClickHouseDSN != "" {
		chReader, err = storage.NewReader(cfg.ClickHouseDSN, logger)
		if err != nil {
			logger.Warn("clickhouse reader connection failed", zap.Error(err))
			chReader = nil
		} else {
			defer func() { _ = chReader.Close() }()
			go runRetentionPurge(ctx, chReader, cfg.MetricsRetentionDays, logger)
			logger.Info("clickhouse reader connected")
		}
	}

	deps := &api.Dependencies{
		Store:        pgStore,
		Orchestrator: orch,
		Auth:         authenticator,
		EventLogger:  eventLogger,
		Responses:    responses,
		Reader:       chReader,
		Logger:       logger,
	}
	httpServer := &http.Server{
		Addr:         ":" + cfg.HTTPPort,
		Handler:      api.NewRouter(deps),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	go func() {
		logger.Info("http server listening", zap.String("addr", httpServer.Addr))
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("http server failed", zap.Error(err))
		}
	}()

	// Block until shutdown signal
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigCh
	logger.Info("received signal, shutting down", zap.String("signal", sig.String()))

	// Graceful shutdown
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown error", zap.Error(err))
	}
	cancel()

	logger.Info("rampart server stopped")
}

// runRetentionPurge deletes expired events once a day.
func runRetentionPurge(ctx context.Context, reader *storage.Reader, retentionDays int, logger *zap.Logger) {
	ticker := time.NewTicker(24 * time.Hour)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			purgeCtx, cancel := context.WithTimeout(ctx, time.Minute)
			if err := reader.PurgeExpired(purgeCtx, retentionDays); err != nil {
				logger.Warn("event retention purge failed", zap.Error(err))
			}
			cancel()
		}
	}
}

func mustBuildLogger(level string) *zap.Logger {
	var zapLevel zapcore.Level
	switch level {
	case "debug":
		zapLevel = zapcore.DebugLevel
	case "warn":
		zapLevel = zapcore.WarnLevel
	case "error":
		zapLevel = zapcore.ErrorLevel
	default:
		zapLevel = zapcore.InfoLevel
	}

	cfg := zap.Config{
		Level:            zap.NewAtomicLevelAt(zapLevel),
		Development:      false,
		Encoding:         "json",
		EncoderConfig:    zap.NewProductionEncoderConfig(),
		OutputPaths:      []string{"stdout"},
		ErrorOutputPaths: []string{"stderr"},
	}

	logger, err := cfg.Build()
	if err != nil {
		panic(fmt.Sprintf("failed to build logger: %v", err))
	}
	return logger
}
