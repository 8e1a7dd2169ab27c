package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"golang.org/x/sync/errgroup"

	"coinly/internal/amqp"
	"coinly/internal/config"
	"coinly/internal/core"
	httpserver "coinly/internal/http"
	"coinly/internal/log"
	"coinly/internal/middleware/auth"
	"coinly/internal/scheduler"
	"coinly/internal/services"
	"coinly/internal/storage"
)

func main() {
	// Load .env file for local development (ignore errors in production/docker)
	_ = godotenv.Load()

	cfg := config.Load()

	logger := log.New(log.Config{
		Level:     log.ParseLevel(cfg.LogLevel),
		Format:    cfg.LogFormat,
		Component: log.ComponentApp,
	})
	log.SetDefault(logger)

	if err := cfg.ValidateServer(); err != nil {
		logger.Error("Configuration validation failed", log.FieldError, err)
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

	// Events are optional: postings commit to SQLite either way.
	var publisher services.EventPublisher
	if cfg.AMQPURL != "" {
		client, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
		if err != nil {
			logger.Warn("Failed to initialize AMQP client, continuing without events", log.FieldError, err)
		} else {
			defer client.Close()
			publisher = client
			logger.Info("AMQP client initialized", "exchange", cfg.AMQPExchange)
		}
	} else {
		logger.Info("AMQP disabled - transaction events will not be published")
	}

	txService := services.NewTransactionService(repo, publisher)
	processor := services.NewRecurringProcessor(repo, txService)

	deps := httpserver.Deps{
		Store:     repo,
		Poster:    txService,
		Previewer: processor,
		Runner:    processor,
		Today:     func() core.Date { return core.DateOf(time.Now().In(loc)) },
	}

	var daily *scheduler.Daily
	if cfg.SchedulerEnabled {
		hour, minute, err := cfg.RunAtClock()
		if err != nil {
			logger.Error("Invalid scheduler run time", log.FieldError, err)
			os.Exit(1)
		}
		daily = scheduler.NewDaily(processor, scheduler.Config{
			Hour:       hour,
			Minute:     minute,
			Location:   loc,
			RunOnStart: cfg.SchedulerRunOnStart,
		}, logger.WithComponent(log.ComponentScheduler))
		// Manual runs share the scheduler's lock so they never overlap a timed pass.
		deps.Runner = daily
		deps.Today = daily.Today
	}

	srv, err := httpserver.NewServer(":"+cfg.Port, deps, httpserver.Options{
		Verifier:           auth.NewVerifier(cfg.JWTSecret),
		Logger:             logger.WithComponent(log.ComponentHTTP),
		RateLimitPerMinute: cfg.RateLimitPerMinute,
		TrustedProxies:     cfg.TrustedProxies,
		DefaultCurrency:    cfg.DefaultCurrency,
	})
	if err != nil {
		logger.Error("Failed to create HTTP server", log.FieldError, err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info("Starting server", "addr", srv.Addr, "scheduler", cfg.SchedulerEnabled)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	if daily != nil {
		g.Go(func() error { return daily.Start(gctx) })
	}

	g.Go(func() error {
		<-gctx.Done()
		logger.Info("Shutting down", log.FieldOperation, log.OpShutdown)

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		logger.Error("Server stopped with error", log.FieldError, err)
		os.Exit(1)
	}
	logger.Info("Server stopped")
}
