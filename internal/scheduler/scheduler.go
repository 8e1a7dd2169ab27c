// Package scheduler fires the recurring transaction pass once a day.
package scheduler

import (
	"context"
	"sync"
	"time"

	"coinly/internal/core"
	"coinly/internal/log"
	"coinly/internal/services"
)

// Runner executes one pass for a calendar date.
type Runner interface {
	Run(ctx context.Context, today core.Date) (services.Summary, error)
}

// Config holds the daily schedule.
type Config struct {
	Hour       int
	Minute     int
	Location   *time.Location
	RunOnStart bool
}

// Daily runs a Runner at a fixed local time every day, at startup when
// configured, and whenever Trigger is called. Passes never overlap.
type Daily struct {
	runner Runner
	cfg    Config
	logger *log.Logger

	mu       sync.Mutex
	notifyCh chan struct{}
	now      func() time.Time
}

func NewDaily(runner Runner, cfg Config, logger *log.Logger) *Daily {
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	return &Daily{
		runner:   runner,
		cfg:      cfg,
		logger:   logger,
		notifyCh: make(chan struct{}, 1),
		now:      time.Now,
	}
}

// Trigger requests an immediate pass. Non-blocking if one is already pending.
func (d *Daily) Trigger() {
	select {
	case d.notifyCh <- struct{}{}:
	default:
	}
}

// Today is the current calendar date in the scheduler's time zone.
func (d *Daily) Today() core.Date {
	return core.DateOf(d.now().In(d.cfg.Location))
}

// Run executes one pass for today, serialized with the timer loop.
func (d *Daily) Run(ctx context.Context, today core.Date) (services.Summary, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.runner.Run(ctx, today)
}

// Start blocks until ctx is cancelled.
func (d *Daily) Start(ctx context.Context) error {
	d.logger.InfoContext(ctx, "Scheduler started",
		"run_at", time.Date(0, 1, 1, d.cfg.Hour, d.cfg.Minute, 0, 0, time.UTC).Format("15:04"),
		"timezone", d.cfg.Location.String(),
		"run_on_start", d.cfg.RunOnStart)

	if d.cfg.RunOnStart {
		d.runOnce(ctx, "startup")
	}

	for {
		next := d.nextRun(d.now())
		d.logger.DebugContext(ctx, "Next scheduled run", "at", next.Format(time.RFC3339))

		timer := time.NewTimer(time.Until(next))
		select {
		case <-ctx.Done():
			timer.Stop()
			d.logger.InfoContext(ctx, "Scheduler stopped")
			return nil
		case <-timer.C:
			d.runOnce(ctx, "timer")
		case <-d.notifyCh:
			timer.Stop()
			d.runOnce(ctx, "trigger")
		}
	}
}

func (d *Daily) runOnce(ctx context.Context, reason string) {
	today := d.Today()
	summary, err := d.Run(ctx, today)
	if err != nil {
		d.logger.ErrorContext(ctx, "Scheduled run failed",
			"reason", reason,
			log.FieldDate, today.String(),
			log.FieldError, err)
		return
	}
	d.logger.InfoContext(ctx, "Scheduled run complete",
		"reason", reason,
		log.FieldDate, today.String(),
		"executed", summary.Executed,
		"skipped", summary.Skipped,
		"already_executed", summary.AlreadyExecuted)
}

// nextRun is the first configured wall-clock time strictly after now.
func (d *Daily) nextRun(now time.Time) time.Time {
	local := now.In(d.cfg.Location)
	next := time.Date(local.Year(), local.Month(), local.Day(), d.cfg.Hour, d.cfg.Minute, 0, 0, d.cfg.Location)
	if !next.After(local) {
		next = time.Date(local.Year(), local.Month(), local.Day()+1, d.cfg.Hour, d.cfg.Minute, 0, 0, d.cfg.Location)
	}
	return next
}
