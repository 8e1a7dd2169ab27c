package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"coinly/internal/amqp"
	"coinly/internal/config"
	"coinly/internal/log"
	"coinly/internal/scheduler"
	"coinly/internal/services"
	"coinly/internal/storage"
)

// recurring-worker runs the daily pass without the HTTP API.
func main() {
	// Load .env file for local development (ignore errors in production/docker)
	_ = godotenv.Load()

	cfg := config.Load()

	logger := log.New(log.Config{
		Level:     log.ParseLevel(cfg.LogLevel),
		Format:    cfg.LogFormat,
		Component: log.ComponentScheduler,
	})
	log.SetDefault(logger)

	logger.Info("Starting recurring-worker")

	if err := cfg.Validate(); err != nil {
		logger.Error("Configuration validation failed", log.FieldError, err)
		os.Exit(1)
	}

	hour, minute, err := cfg.RunAtClock()
	if err != nil {
		logger.Error("Invalid scheduler run time", log.FieldError, err)
		os.Exit(1)
	}
	loc, err := cfg.Location()
	if err != nil {
		logger.Error("Invalid scheduler timezone", log.FieldError, err)
		os.Exit(1)
	}

	repo, err := storage.NewSQLiteRepository(cfg.SQLiteDBPath)
	if err != nil {
		logger.Error("Failed to initialize SQLite repository", log.FieldError, err, "path", cfg.SQLiteDBPath)
		os.Exit(1)
	}
	defer repo.Close()

	var publisher services.EventPublisher
	if cfg.AMQPURL != "" {
		client, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
		if err != nil {
			logger.Warn("Failed to initialize AMQP client, continuing in SQLite-only mode", log.FieldError, err)
		} else {
			defer client.Close()
			publisher = client
		}
	}

	processor := services.NewRecurringProcessor(repo, services.NewTransactionService(repo, publisher))
	daily := scheduler.NewDaily(processor, scheduler.Config{
		Hour:       hour,
		Minute:     minute,
		Location:   loc,
		RunOnStart: cfg.SchedulerRunOnStart,
	}, logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// SIGHUP forces an immediate pass, useful after a missed day.
	hup := make(chan os.Signal, 1)
	signal.Notify(hup, syscall.SIGHUP)
	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case <-hup:
				logger.Info("SIGHUP received, triggering run")
				daily.Trigger()
			}
		}
	}()

	if err := daily.Start(ctx); err != nil {
		logger.Error("Scheduler stopped with error", log.FieldError, err)
		os.Exit(1)
	}
	logger.Info("recurring-worker stopped")
}
