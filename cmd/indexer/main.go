package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/stablepay/vault-indexer/internal/application/services"
	"github.com/stablepay/vault-indexer/internal/config"
	"github.com/stablepay/vault-indexer/internal/infrastructure/database"
	"github.com/stablepay/vault-indexer/internal/infrastructure/notify"
	"github.com/stablepay/vault-indexer/internal/infrastructure/source"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	// Setup logger
	logger := setupLogger(cfg.Log.Level)
	defer logger.Sync()

	targets, err := cfg.Indexer.Targets()
	if err != nil {
		logger.Fatal("Invalid watch targets", zap.Error(err))
	}

	logger.Info("Starting vault-indexer",
		zap.Strings("targets", cfg.Indexer.WatchTargets),
	)

	// Setup context with cancellation
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Connect to database and apply schema
	db, err := database.NewPostgresDB(cfg.Database, logger)
	if err != nil {
		logger.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer db.Close()

	if err := db.Migrate(ctx); err != nil {
		logger.Fatal("Failed to apply schema", zap.Error(err))
	}

	// Create repositories
	cursorRepo := database.NewCursorRepo(db.DB())
	orderRepo := database.NewOrderRepo(db.DB())
	ledger := database.NewSettlementLedger(db.DB(), logger)

	// Build one event source and scanner per watch target
	health := services.NewHealthRegistry()
	scanners := make([]*services.Scanner, 0, len(targets))
	for _, target := range targets {
		src, err := source.New(target, cfg.Indexer, logger)
		if err != nil {
			logger.Fatal("Failed to create event source",
				zap.String("chain_id", target.ChainID),
				zap.Error(err),
			)
		}
		defer src.Close()

		scanners = append(scanners, services.NewScanner(
			src, ledger, cursorRepo, cfg.Indexer, health, logger,
		))
	}

	// Create supervision services
	reconciler := services.NewReconcilerService(ledger, cfg.Indexer, logger)
	indexerService := services.NewIndexerService(scanners, reconciler, cfg.Indexer, logger)

	// Create notification dispatcher
	webhook, err := notify.NewWebhookNotifier(cfg.Notify, logger)
	if err != nil {
		logger.Fatal("Failed to create notifier", zap.Error(err))
	}
	notifierService := services.NewNotifierService(orderRepo, webhook, cfg.Notify, logger)

	// Start everything
	indexerService.Start(ctx)
	notifierService.Start(ctx)

	// Start metrics server
	go startMetricsServer(cfg.Indexer.MetricsPort, health, logger)

	// Wait for shutdown signal
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	logger.Info("Received shutdown signal, stopping indexer...")

	// Graceful shutdown
	notifierService.Stop()
	indexerService.Stop()

	logger.Info("Indexer stopped")
}

func setupLogger(level string) *zap.Logger {
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

	config := zap.Config{
		Level:            zap.NewAtomicLevelAt(zapLevel),
		Development:      false,
		Encoding:         "json",
		EncoderConfig:    zap.NewProductionEncoderConfig(),
		OutputPaths:      []string{"stdout"},
		ErrorOutputPaths: []string{"stderr"},
	}

	logger, _ := config.Build()
	return logger
}

func startMetricsServer(port int, health *services.HealthRegistry, logger *zap.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/health", func(w http.ResponseWriter, _ *http.Request) {
		for _, chain := range health.Snapshot() {
			if !chain.Healthy {
				w.WriteHeader(http.StatusServiceUnavailable)
				_, _ = fmt.Fprintf(w, "degraded: %s/%s", chain.ChainID, chain.ContractAddress)
				return
			}
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})

	addr := fmt.Sprintf(":%d", port)
	logger.Info("Starting metrics server", zap.String("addr", addr))

	server := &http.Server{
		Addr:         addr,
		Handler:      mux,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
	}

	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Error("Metrics server error", zap.Error(err))
	}
}
