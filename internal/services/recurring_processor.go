package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/shopspring/decimal"

	"coinly/internal/core"
)

// RuleStore is the persistence the scheduler pass needs.
type RuleStore interface {
	// ListDueCandidateRules returns active rules whose range contains today, by ascending id.
	ListDueCandidateRules(ctx context.Context, today core.Date) ([]core.RecurringRule, error)
	// CountExecutionsOnDate counts transactions already posted for the rule on date.
	CountExecutionsOnDate(ctx context.Context, ruleID int64, date core.Date) (int, error)
	UpdateLastExecution(ctx context.Context, ruleID int64, date core.Date) error
}

// Applier posts the transaction produced by a rule on a date.
type Applier interface {
	PostForRule(ctx context.Context, rule core.RecurringRule, date core.Date) (int64, error)
}

// Summary is the outcome of one scheduler pass.
type Summary struct {
	Date            core.Date   `json:"date"`
	Candidates      int         `json:"candidates"`
	Executed        int         `json:"executed_count"`
	Skipped         int         `json:"skipped_count"`
	AlreadyExecuted int         `json:"already_executed_count"`
	Errors          []RuleError `json:"errors,omitempty"`
}

// RuleError records why a rule was skipped.
type RuleError struct {
	RuleID int64  `json:"recurring_id"`
	Error  string `json:"error"`
}

// PreviewItem describes a rule that would fire.
type PreviewItem struct {
	RuleID       int64                `json:"recurring_id"`
	UserID       int64                `json:"user_id"`
	Description  string               `json:"description"`
	Amount       decimal.Decimal      `json:"amount"`
	Kind         core.TransactionKind `json:"type"`
	Frequency    core.Frequency       `json:"frequency"`
	AccountName  string               `json:"account_name"`
	CategoryName string               `json:"category_name"`
}

// RecurringProcessor runs the daily recurring transaction pass.
// It holds no state between passes; the date is always explicit.
type RecurringProcessor struct {
	store   RuleStore
	applier Applier
}

func NewRecurringProcessor(store RuleStore, applier Applier) *RecurringProcessor {
	return &RecurringProcessor{
		store:   store,
		applier: applier,
	}
}

// Run posts every rule due on today exactly once. A failing rule is
// counted as skipped and does not stop the pass. A failure to fetch
// candidates or a cancelled ctx aborts it with an empty Summary; rules
// already posted stay guarded by their execution date.
func (p *RecurringProcessor) Run(ctx context.Context, today core.Date) (Summary, error) {
	if p.store == nil || p.applier == nil {
		return Summary{}, errors.New("processor not properly initialized")
	}

	rules, err := p.store.ListDueCandidateRules(ctx, today)
	if err != nil {
		return Summary{}, fmt.Errorf("list candidate rules: %w", err)
	}

	summary := Summary{Date: today, Candidates: len(rules)}
	slog.InfoContext(ctx, "Processing recurring transactions",
		"candidates", len(rules),
		"date", today.String())

	for _, rule := range rules {
		if err := ctx.Err(); err != nil {
			slog.WarnContext(ctx, "Recurring processing interrupted",
				"executed", summary.Executed,
				"skipped", summary.Skipped,
				"error", err)
			return Summary{}, err
		}

		if !IsDueToday(rule, today) {
			continue
		}

		executed, err := p.alreadyExecuted(ctx, rule.ID, today)
		if err != nil {
			summary.skip(ctx, rule, err)
			continue
		}
		if executed {
			summary.AlreadyExecuted++
			slog.DebugContext(ctx, "Recurring rule already executed",
				"recurring_id", rule.ID,
				"date", today.String())
			continue
		}

		txID, err := p.applier.PostForRule(ctx, rule, today)
		if err != nil {
			summary.skip(ctx, rule, err)
			continue
		}

		if err := p.store.UpdateLastExecution(ctx, rule.ID, today); err != nil {
			// the transaction is posted; the guard still prevents a second one
			slog.ErrorContext(ctx, "Failed to update last execution date",
				"recurring_id", rule.ID,
				"error", err)
		}

		summary.Executed++
		slog.InfoContext(ctx, "Executed recurring rule",
			"recurring_id", rule.ID,
			"transaction_id", txID,
			"amount", rule.Amount.StringFixed(2),
			"type", rule.Kind,
			"frequency", rule.Frequency)
	}

	slog.InfoContext(ctx, "Recurring transaction processing complete",
		"executed", summary.Executed,
		"skipped", summary.Skipped,
		"already_executed", summary.AlreadyExecuted,
		"candidates", summary.Candidates)

	return summary, nil
}

// Preview lists the rules Run would post on today without side effects.
func (p *RecurringProcessor) Preview(ctx context.Context, today core.Date) ([]PreviewItem, error) {
	if p.store == nil {
		return nil, errors.New("processor not properly initialized")
	}

	rules, err := p.store.ListDueCandidateRules(ctx, today)
	if err != nil {
		return nil, fmt.Errorf("list candidate rules: %w", err)
	}

	items := make([]PreviewItem, 0, len(rules))
	for _, rule := range rules {
		if !IsDueToday(rule, today) {
			continue
		}
		executed, err := p.alreadyExecuted(ctx, rule.ID, today)
		if err != nil {
			slog.WarnContext(ctx, "Duplicate check failed during preview",
				"recurring_id", rule.ID,
				"error", err)
			continue
		}
		if executed {
			continue
		}
		items = append(items, PreviewItem{
			RuleID:       rule.ID,
			UserID:       rule.UserID,
			Description:  rule.Description,
			Amount:       rule.Amount,
			Kind:         rule.Kind,
			Frequency:    rule.Frequency,
			AccountName:  rule.AccountName,
			CategoryName: rule.CategoryName,
		})
	}
	return items, nil
}

func (p *RecurringProcessor) alreadyExecuted(ctx context.Context, ruleID int64, date core.Date) (bool, error) {
	n, err := p.store.CountExecutionsOnDate(ctx, ruleID, date)
	if err != nil {
		return false, fmt.Errorf("check executions: %w", err)
	}
	return n > 0, nil
}

func (s *Summary) skip(ctx context.Context, rule core.RecurringRule, err error) {
	s.Skipped++
	s.Errors = append(s.Errors, RuleError{RuleID: rule.ID, Error: err.Error()})
	slog.ErrorContext(ctx, "Failed to execute recurring rule",
		"recurring_id", rule.ID,
		"description", rule.Description,
		"error", err)
}
