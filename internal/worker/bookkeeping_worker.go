// Package worker consumes transaction events published by the API and the scheduler.
package worker

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"

	"coinly/internal/amqp"
	"coinly/internal/core"
)

// BookkeepingStore keeps rule bookkeeping in step with posted transactions.
type BookkeepingStore interface {
	AdvanceLastExecution(ctx context.Context, ruleID int64, date core.Date) (bool, error)
	RepairLastExecutions(ctx context.Context) (int64, error)
}

// Stats counts what the worker has handled since it started.
type Stats struct {
	Received int64
	Advanced int64
	Failed   int64
}

// BookkeepingWorker advances a rule's last execution date from transaction.posted
// events. The scheduler only logs a failed bookkeeping update, so this closes the
// gap without touching balances.
type BookkeepingWorker struct {
	store BookkeepingStore

	received atomic.Int64
	advanced atomic.Int64
	failed   atomic.Int64
}

func NewBookkeepingWorker(store BookkeepingStore) *BookkeepingWorker {
	return &BookkeepingWorker{store: store}
}

// HandleTransactionPosted matches amqp.Handler. Returning an error requeues the event.
func (w *BookkeepingWorker) HandleTransactionPosted(ctx context.Context, msg *amqp.TransactionPostedMessage) error {
	w.received.Add(1)

	if msg.RecurringID == nil {
		slog.DebugContext(ctx, "Manual transaction event",
			"transaction_id", msg.TransactionID,
			"user_id", msg.UserID,
			"type", msg.Kind)
		return nil
	}

	changed, err := w.store.AdvanceLastExecution(ctx, *msg.RecurringID, msg.Date)
	if err != nil {
		w.failed.Add(1)
		return fmt.Errorf("advance rule %d: %w", *msg.RecurringID, err)
	}
	if changed {
		w.advanced.Add(1)
		slog.InfoContext(ctx, "Advanced last execution from event",
			"recurring_id", *msg.RecurringID,
			"transaction_id", msg.TransactionID,
			"date", msg.Date.String())
	}
	return nil
}

// CatchUp repairs rules whose bookkeeping lags their postings. Run at startup
// and periodically, it covers events lost while the worker was down.
func (w *BookkeepingWorker) CatchUp(ctx context.Context) error {
	fixed, err := w.store.RepairLastExecutions(ctx)
	if err != nil {
		return fmt.Errorf("bookkeeping catch-up: %w", err)
	}
	if fixed == 0 {
		slog.InfoContext(ctx, "No lagging recurring rules found")
		return nil
	}
	slog.InfoContext(ctx, "Repaired recurring rule bookkeeping", "rules", fixed)
	return nil
}

func (w *BookkeepingWorker) Stats() Stats {
	return Stats{
		Received: w.received.Load(),
		Advanced: w.advanced.Load(),
		Failed:   w.failed.Load(),
	}
}
