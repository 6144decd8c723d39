package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/mportillo/dealerd/internal/config"
	"github.com/mportillo/dealerd/internal/logging"
	"github.com/mportillo/dealerd/internal/server"
	"github.com/mportillo/dealerd/pkg/events"
	"github.com/mportillo/dealerd/pkg/repositories/ledger"
	"github.com/mportillo/dealerd/pkg/scheduler"
	"github.com/mportillo/dealerd/pkg/services/registry"
	"github.com/mportillo/dealerd/pkg/services/reward"
	"github.com/mportillo/dealerd/pkg/token"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Error loading configuration: %v", err)
	}

	logger := logging.NewLogger(logging.ParseLevel(cfg.LogLevel))
	logger.Info("Starting dealerd (env=%s network=%s storage=%s)", cfg.Environment, cfg.Network, cfg.StorageType)

	// Ledger repository
	var repo ledger.Repository
	if cfg.StorageType == "sqlite" {
		dbPath := filepath.Join(cfg.DataDir, "dealerd.db")
		sqliteRepo, err := ledger.NewSQLiteRepository(dbPath)
		if err != nil {
			logger.Error("Failed to initialize SQLite ledger: %v", err)
			logger.Info("Falling back to in-memory ledger")
			repo = ledger.NewMemoryRepository()
		} else {
			defer sqliteRepo.Close()
			repo = sqliteRepo
			logger.Info("Using SQLite ledger at %s", dbPath)
		}
	} else {
		repo = ledger.NewMemoryRepository()
		logger.Info("Using in-memory ledger (state is lost on restart)")
	}

	// Optional event publisher
	var publisher *events.Publisher
	if cfg.NatsURL != "" {
		publisher, err = events.Connect(cfg.NatsURL, logger)
		if err != nil {
			logger.Error("NATS connect failed, events disabled: %v", err)
		} else {
			defer publisher.Close()
			logger.Info("Publishing events to %s", cfg.NatsURL)
		}
	}

	// Token transfer service. The real network client is provisioned
	// outside this process; development mode settles transfers locally.
	transfer := token.NewDevTransferService(cfg.Network, logger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Reward coordinator
	coordinator := reward.NewCoordinator(repo, transfer, cfg.TreasuryAccount, cfg.RewardAmount, logger,
		reward.WithPublisher(publisher))

	// Session registry, handing completions to the coordinator
	reg := registry.New(coordinator, cfg.EntryFee, cfg.ReleaseDelay, logger)
	coordinator.AttachSessions(reg)
	coordinator.Start(ctx)
	defer coordinator.Stop()

	// Optional archiver feeding Elasticsearch before purge
	var archiver *ledger.Archiver
	if cfg.ElasticsearchURL != "" {
		archiverCfg := ledger.DefaultArchiverConfig()
		archiverCfg.URL = cfg.ElasticsearchURL
		archiver, err = ledger.NewArchiver(archiverCfg)
		if err != nil {
			logger.Error("Archiver init failed, archiving disabled: %v", err)
			archiver = nil
		}
	}

	// Retention sweeper
	sweeper := scheduler.NewRetentionSweeper(repo, archiver, scheduler.RetentionConfig{
		CompletedWindow:   cfg.CompletedRetention,
		DedupWindow:       cfg.DedupRetention,
		CompletedInterval: cfg.CompletedSweepInterval,
		DedupInterval:     cfg.DedupSweepInterval,
	}, logger)
	sweeper.Start(ctx)
	defer sweeper.Stop()

	// HTTP server
	srv := server.New(cfg, reg, repo, logger)
	go func() {
		if err := srv.Run(ctx); err != nil {
			logger.Error("HTTP server error: %v", err)
			cancel()
		}
	}()

	// Wait for interrupt signal to gracefully shutdown
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-stop:
	case <-ctx.Done():
	}

	logger.Info("Shutting down...")
	cancel()
}
