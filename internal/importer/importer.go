package importer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"coinly/internal/core"
	"coinly/internal/storage"
)

// CategoryFinder resolves a category name of one kind for a user.
type CategoryFinder interface {
	FindCategoryByName(ctx context.Context, userID int64, name string, kind core.TransactionKind) (int64, error)
}

// AccountResolver maps an account name to an id, creating the account when missing.
type AccountResolver interface {
	FindOrCreateAccount(ctx context.Context, userID int64, name, currency string) (int64, error)
}

// Poster stores a transaction with its balance effect.
type Poster interface {
	Post(ctx context.Context, tx core.Transaction) (int64, error)
}

// DefaultAccountName receives rows that name no account when the caller gave no account id.
const DefaultAccountName = "Imported"

// Report summarizes an import.
type Report struct {
	Imported       int      `json:"imported"`
	Failed         int      `json:"failed"`
	Errors         []string `json:"errors"`
	TransactionIDs []int64  `json:"transaction_ids"`
}

type Importer struct {
	categories CategoryFinder
	accounts   AccountResolver
	poster     Poster
	currency   string
}

// New builds an Importer. Accounts created on the fly use currency.
func New(categories CategoryFinder, accounts AccountResolver, poster Poster, currency string) *Importer {
	return &Importer{categories: categories, accounts: accounts, poster: poster, currency: currency}
}

// Import posts rows one by one. A row's account column wins; rows without
// one go to accountID, or to the DefaultAccountName account when accountID
// is zero. A failing row is reported and does not stop the others.
func (i *Importer) Import(ctx context.Context, userID, accountID int64, rows []Row) Report {
	report := Report{Errors: []string{}, TransactionIDs: []int64{}}
	resolved := make(map[string]int64)

	for _, row := range rows {
		id, err := i.importRow(ctx, userID, accountID, row, resolved)
		if err != nil {
			report.Failed++
			report.Errors = append(report.Errors, fmt.Sprintf("Row %d: %v", row.Line, err))
			continue
		}
		report.Imported++
		report.TransactionIDs = append(report.TransactionIDs, id)
	}

	slog.InfoContext(ctx, "Import finished",
		"user_id", userID,
		"account_id", accountID,
		"imported", report.Imported,
		"failed", report.Failed)
	return report
}

func (i *Importer) importRow(ctx context.Context, userID, accountID int64, row Row, resolved map[string]int64) (int64, error) {
	tx := core.Transaction{
		UserID:        userID,
		Amount:        row.Amount,
		Kind:          row.Kind,
		Description:   row.Description,
		PaymentMethod: row.PaymentMethod,
		Date:          row.Date,
	}

	switch {
	case row.Account != "":
		id, err := i.account(ctx, userID, row.Account, resolved)
		if err != nil {
			return 0, err
		}
		tx.AccountID = id
	case accountID > 0:
		tx.AccountID = accountID
	default:
		id, err := i.account(ctx, userID, DefaultAccountName, resolved)
		if err != nil {
			return 0, err
		}
		tx.AccountID = id
	}

	if row.Kind == core.Transfer {
		if row.TargetAccount == "" {
			return 0, core.ErrMissingTarget
		}
		id, err := i.account(ctx, userID, row.TargetAccount, resolved)
		if err != nil {
			return 0, err
		}
		tx.TargetAccountID = &id
	}

	if row.Category != "" && row.Kind != core.Transfer {
		id, err := i.categories.FindCategoryByName(ctx, userID, row.Category, row.Kind)
		switch {
		case err == nil:
			tx.CategoryID = &id
		case errors.Is(err, storage.ErrNotFound):
			// unknown categories import uncategorized
		default:
			return 0, fmt.Errorf("resolve category: %w", err)
		}
	}

	return i.poster.Post(ctx, tx)
}

func (i *Importer) account(ctx context.Context, userID int64, name string, resolved map[string]int64) (int64, error) {
	key := strings.ToLower(strings.TrimSpace(name))
	if id, ok := resolved[key]; ok {
		return id, nil
	}
	id, err := i.accounts.FindOrCreateAccount(ctx, userID, name, i.currency)
	if err != nil {
		return 0, fmt.Errorf("resolve account %q: %w", name, err)
	}
	resolved[key] = id
	return id, nil
}
