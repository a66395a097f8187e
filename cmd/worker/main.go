package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/openfloor/market-indexer/internal/adapter"
	"github.com/openfloor/market-indexer/internal/config"
	"github.com/openfloor/market-indexer/internal/dispatch"
	"github.com/openfloor/market-indexer/internal/indexer"
	"github.com/openfloor/market-indexer/internal/logger"
	"github.com/openfloor/market-indexer/internal/providers/jetstream"
	"github.com/openfloor/market-indexer/internal/store"
	"github.com/openfloor/market-indexer/internal/worker"
)

var (
	configFile = flag.String("config", "", "Path to configuration file")
	envPath    = flag.String("env", "config/", "Path to environment files")
)

func main() {
	flag.Parse()

	// Load configuration
	config.ChdirRepoRoot()
	cfg, err := config.LoadWorkerConfig(*configFile, *envPath)
	if err != nil {
		panic(fmt.Sprintf("Failed to load config: %v", err))
	}

	// Create shutdown context
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Initialize logger with sentry integration
	err = logger.Initialize(logger.Config{
		Debug:           cfg.Debug,
		SentryDSN:       cfg.SentryDSN,
		BreadcrumbLevel: zapcore.InfoLevel,
		Tags: map[string]string{
			"service": "metadata-worker",
		},
	})
	if err != nil {
		panic(fmt.Sprintf("Failed to initialize logger: %v", err))
	}
	defer logger.Flush(2 * time.Second)
	logger.InfoCtx(ctx, "Starting metadata worker")

	// Connect to database
	db, err := gorm.Open(postgres.Open(cfg.Database.DSN()), &gorm.Config{})
	if err != nil {
		logger.FatalCtx(ctx, "Failed to connect to database", zap.Error(err))
	}

	// Configure connection pool
	if err := store.ConfigureConnectionPool(db, cfg.Database.MaxOpenConns, cfg.Database.MaxIdleConns, cfg.Database.ConnMaxLifetime, cfg.Database.ConnMaxIdleTime); err != nil {
		logger.FatalCtx(ctx, "Failed to configure connection pool", zap.Error(err))
	}
	logger.InfoCtx(ctx, "Connected to database")

	// Initialize store and adapters
	dataStore := store.NewPGStore(db)
	natsJS := adapter.NewNatsJetStream()
	jsonAdapter := adapter.NewJSON()

	// Connect the recount publisher; the worker dispatches recount jobs for
	// attribute pairs removed during re-indexing
	publisher, err := jetstream.NewPublisher(jetstream.Config{
		URL:            cfg.NATS.URL,
		StreamName:     cfg.NATS.StreamName,
		MaxReconnects:  cfg.NATS.MaxReconnects,
		ReconnectWait:  cfg.NATS.ReconnectWait,
		ConnectionName: fmt.Sprintf("%s-publisher", cfg.NATS.ConnectionName),
	}, natsJS, jsonAdapter)
	if err != nil {
		logger.FatalCtx(ctx, "Failed to connect NATS publisher", zap.Error(err))
	}
	defer publisher.Close()

	dispatcher := dispatch.NewDispatcher(publisher)
	ix := indexer.New(dataStore, dispatcher)

	// Redis holds the parked-job set for jobs that exhausted their deliveries
	redisClient := adapter.NewRedisClient(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)

	// Create the metadata worker
	w, err := worker.New(worker.Config{
		URL:            cfg.NATS.URL,
		StreamName:     cfg.NATS.StreamName,
		ConsumerName:   cfg.NATS.ConsumerName,
		MaxReconnects:  cfg.NATS.MaxReconnects,
		ReconnectWait:  cfg.NATS.ReconnectWait,
		ConnectionName: cfg.NATS.ConnectionName,
		AckWaitTimeout: cfg.NATS.AckWait,
		MaxDeliver:     cfg.NATS.MaxDeliver,
		Concurrency:    cfg.Worker.WorkerPoolSize,
	}, natsJS, ix, redisClient, jsonAdapter)
	if err != nil {
		logger.FatalCtx(ctx, "Failed to create worker", zap.Error(err))
	}
	defer w.Close()

	logger.InfoCtx(ctx, "Worker configured",
		zap.String("stream", cfg.NATS.StreamName),
		zap.String("consumer", cfg.NATS.ConsumerName),
		zap.Int("concurrency", cfg.Worker.WorkerPoolSize),
	)

	// Run the worker in a goroutine
	errChan := make(chan error, 1)
	go func() {
		if err := w.Run(ctx); err != nil {
			errChan <- err
		}
	}()

	// Wait for interrupt signal or worker error
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		logger.InfoCtx(ctx, "Received shutdown signal", zap.String("signal", sig.String()))
	case err := <-errChan:
		logger.ErrorCtx(ctx, err)
	}

	// Cancel context to stop consuming
	cancel()

	logger.Info("Metadata worker stopped")
}
