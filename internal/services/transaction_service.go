package services

import (
	"context"
	"fmt"
	"log/slog"

	"coinly/internal/amqp"
	"coinly/internal/core"
)

// TransactionStore persists a transaction together with its balance effect.
type TransactionStore interface {
	PostTransaction(ctx context.Context, tx core.Transaction) (int64, error)
}

// EventPublisher announces committed transactions.
type EventPublisher interface {
	PublishTransactionPosted(ctx context.Context, msg *amqp.TransactionPostedMessage) error
}

// TransactionService orchestrates postings across SQLite and AMQP.
type TransactionService struct {
	store     TransactionStore
	publisher EventPublisher
}

// NewTransactionService creates the service. publisher may be nil.
func NewTransactionService(store TransactionStore, publisher EventPublisher) *TransactionService {
	return &TransactionService{
		store:     store,
		publisher: publisher,
	}
}

// PostForRule posts the transaction a recurring rule produces on date and
// returns the id of the stored row, which already carries the rule id.
func (s *TransactionService) PostForRule(ctx context.Context, rule core.RecurringRule, date core.Date) (int64, error) {
	ruleID := rule.ID
	tx := core.Transaction{
		UserID:          rule.UserID,
		AccountID:       rule.AccountID,
		CategoryID:      rule.CategoryID,
		Amount:          rule.Amount,
		Kind:            rule.Kind,
		TargetAccountID: rule.TargetAccountID,
		Description:     rule.AutoDescription(),
		PaymentMethod:   core.AutoPaymentMethod,
		Date:            date,
		RecurringRuleID: &ruleID,
	}
	return s.Post(ctx, tx)
}

// Post validates and stores a transaction, then publishes a posted event.
// Publishing is best effort: the transaction is committed either way.
func (s *TransactionService) Post(ctx context.Context, tx core.Transaction) (int64, error) {
	if err := tx.Validate(); err != nil {
		return 0, err
	}

	id, err := s.store.PostTransaction(ctx, tx)
	if err != nil {
		return 0, fmt.Errorf("post transaction: %w", err)
	}
	tx.ID = id

	if s.publisher == nil {
		return id, nil
	}
	if err := s.publisher.PublishTransactionPosted(ctx, amqp.NewTransactionPostedMessage(tx)); err != nil {
		slog.WarnContext(ctx, "Failed to publish transaction event",
			"transaction_id", id,
			"error", err)
	}
	return id, nil
}
