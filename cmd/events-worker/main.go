package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"golang.org/x/sync/errgroup"

	"coinly/internal/amqp"
	"coinly/internal/config"
	"coinly/internal/log"
	"coinly/internal/storage"
	"coinly/internal/worker"
)

const repairInterval = time.Hour

// events-worker consumes transaction.posted events and keeps recurring
// rule bookkeeping in step with the ledger.
func main() {
	// Load .env file for local development (ignore errors in production/docker)
	_ = godotenv.Load()

	cfg := config.Load()

	logger := log.New(log.Config{
		Level:     log.ParseLevel(cfg.LogLevel),
		Format:    cfg.LogFormat,
		Component: log.ComponentAMQP,
	})
	log.SetDefault(logger)

	logger.Info("Starting events-worker")

	if err := cfg.Validate(); err != nil {
		logger.Error("Configuration validation failed", log.FieldError, err)
		os.Exit(1)
	}
	if cfg.AMQPURL == "" {
		logger.Error("AMQP_URL is required for the events worker")
		os.Exit(1)
	}

	repo, err := storage.NewSQLiteRepository(cfg.SQLiteDBPath)
	if err != nil {
		logger.Error("Failed to initialize SQLite repository", log.FieldError, err, "path", cfg.SQLiteDBPath)
		os.Exit(1)
	}
	defer repo.Close()

	client, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
	if err != nil {
		logger.Error("Failed to initialize AMQP client", log.FieldError, err)
		os.Exit(1)
	}
	defer client.Close()

	w := worker.NewBookkeepingWorker(repo)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Catch up on anything posted while the worker was down.
	if err := w.CatchUp(ctx); err != nil {
		logger.Error("Startup bookkeeping check failed", log.FieldError, err)
		// Don't exit - continue with normal operation
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		err := client.Consume(gctx, w.HandleTransactionPosted)
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	})

	g.Go(func() error {
		ticker := time.NewTicker(repairInterval)
		defer ticker.Stop()
		for {
			select {
			case <-gctx.Done():
				return nil
			case <-ticker.C:
				if err := w.CatchUp(gctx); err != nil {
					logger.Error("Periodic bookkeeping check failed", log.FieldError, err)
				}
				stats := w.Stats()
				logger.Info("Events worker stats",
					"received", stats.Received,
					"advanced", stats.Advanced,
					"failed", stats.Failed)
			}
		}
	})

	if err := g.Wait(); err != nil {
		logger.Error("events-worker stopped with error", log.FieldError, err)
		os.Exit(1)
	}
	logger.Info("events-worker stopped")
}
