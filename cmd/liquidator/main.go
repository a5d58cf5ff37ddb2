// Package main provides the liquidation service entry point: the sell
// instruction consumer, the periodic position scan, and the status API.
package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/trust-engine/internal/adapter"
	"github.com/trust-engine/internal/api"
	"github.com/trust-engine/internal/config"
	"github.com/trust-engine/internal/logging"
	"github.com/trust-engine/internal/queue"
	"github.com/trust-engine/internal/service"
	"github.com/trust-engine/internal/storage"
	"github.com/trust-engine/internal/worker"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	logging.InitGlobalLogger(
		logging.ParseLogLevel(cfg.Logging.Level),
		logging.ParseLogFormat(cfg.Logging.Format),
	)
	logger := logging.GetGlobalLogger()
	ctx := logging.WithLogger(context.Background(), logger)

	logger.Info("Trust engine liquidator starting")

	postgres, err := storage.NewPostgresDB(&cfg.Database.Postgres)
	if err != nil {
		logger.WithError(err).Fatal("Failed to connect to Postgres")
	}
	defer postgres.Close()

	clickhouse, err := storage.NewClickHouseDB(&cfg.Database.ClickHouse)
	if err != nil {
		logger.WithError(err).Fatal("Failed to connect to ClickHouse")
	}
	defer clickhouse.Close()

	redis, err := storage.NewRedisCache(&cfg.Database.Redis)
	if err != nil {
		logger.WithError(err).Fatal("Failed to connect to Redis")
	}
	defer redis.Close()

	logger.Info("Database connections established")

	perfRepo := storage.NewTokenPerformanceRepository(postgres)
	metricsRepo := storage.NewRecommenderMetricsRepository(postgres)
	tradeRepo := storage.NewTradeRepository(postgres)
	txRepo := storage.NewTransactionRepository(clickhouse)

	cache := storage.Layered(
		storage.NewMemoryCache(),
		storage.NewRedisTier(redis),
		cfg.Cache.MemoryTTL,
		cfg.Cache.RedisTTL,
	)
	guard := storage.NewRunningGuard(redis, 10*time.Minute)

	vendorClient := adapter.NewVendorClient(cfg.Vendor.APIKey, cfg.Vendor.DataBaseURL, cfg.Vendor.RequestsPerSec)
	dexClient := adapter.NewDexClient(cfg.Vendor.DexBaseURL)
	backendClient := adapter.NewBackendClient(cfg.Backend.BaseURL, cfg.Backend.Token, cfg.Backend.Username)
	processClient := adapter.NewProcessControlClient(cfg.ProcessControl.BaseURL, cfg.ProcessControl.APIKey)

	chainClient, err := adapter.NewChainClient(ctx, cfg.Chain.RPCURL)
	if err != nil {
		logger.WithError(err).Fatal("Failed to connect to chain RPC")
	}
	defer chainClient.Close()

	gateway := service.NewMarketDataGateway(vendorClient, dexClient, cache)
	trustService := service.NewTrustService(
		gateway, perfRepo, metricsRepo, tradeRepo,
		backendClient, processClient, chainClient,
		cfg.Worker.IsSimulation,
	)

	sellQueue, err := queue.NewSellQueue(&cfg.Queue)
	if err != nil {
		logger.WithError(err).Fatal("Failed to connect to message broker")
	}
	defer sellQueue.Close()

	liquidator, err := worker.NewLiquidationService(&worker.LiquidationServiceConfig{
		Consumer:     sellQueue,
		Market:       gateway,
		Scorer:       trustService,
		PerfStore:    perfRepo,
		TradeLedger:  tradeRepo,
		TxLedger:     txRepo,
		Guard:        guard,
		Backend:      backendClient,
		Process:      processClient,
		ScanInterval: cfg.Worker.ScanInterval,
		IsSimulation: cfg.Worker.IsSimulation,
	})
	if err != nil {
		logger.WithError(err).Fatal("Failed to create liquidation service")
	}

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	if err := liquidator.Start(runCtx); err != nil {
		logger.WithError(err).Fatal("Failed to start liquidation service")
	}

	server := api.NewServer(&api.ServerConfig{
		Host:         cfg.Server.Host,
		Port:         cfg.Server.Port,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}, trustService, perfRepo)

	go func() {
		if err := server.Start(); err != nil {
			logger.WithError(err).Error("Status API server stopped")
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh
	logger.Info("Shutdown signal received")

	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := liquidator.Stop(shutdownCtx); err != nil {
		logger.WithError(err).Error("Error stopping liquidation service")
	}
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.WithError(err).Error("Error shutting down status API server")
	}

	logger.Info("Trust engine liquidator stopped")
}
