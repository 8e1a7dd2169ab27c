package http

import (
	"time"

	"github.com/shopspring/decimal"

	"coinly/internal/core"
)

type recurringView struct {
	ID              int64                `json:"recurring_id"`
	AccountID       int64                `json:"account_id"`
	AccountName     string               `json:"account_name"`
	CategoryID      *int64               `json:"category_id"`
	CategoryName    string               `json:"category_name"`
	Amount          decimal.Decimal      `json:"amount"`
	Kind            core.TransactionKind `json:"type"`
	TargetAccountID *int64               `json:"target_account_id"`
	Description     string               `json:"description"`
	Frequency       core.Frequency       `json:"frequency"`
	StartDate       core.Date            `json:"start_date"`
	EndDate         *core.Date           `json:"end_date"`
	Active          bool                 `json:"is_active"`
	LastExecution   *core.Date           `json:"last_execution"`
	CreatedAt       time.Time            `json:"created_at"`
}

func newRecurringView(r core.RecurringRule) recurringView {
	return recurringView{
		ID:              r.ID,
		AccountID:       r.AccountID,
		AccountName:     r.AccountName,
		CategoryID:      r.CategoryID,
		CategoryName:    r.CategoryName,
		Amount:          r.Amount,
		Kind:            r.Kind,
		TargetAccountID: r.TargetAccountID,
		Description:     r.Description,
		Frequency:       r.Frequency,
		StartDate:       r.StartDate,
		EndDate:         r.EndDate,
		Active:          r.Active,
		LastExecution:   r.LastExecution,
		CreatedAt:       r.CreatedAt,
	}
}

type transactionView struct {
	ID              int64                `json:"transaction_id"`
	AccountID       int64                `json:"account_id"`
	CategoryID      *int64               `json:"category_id"`
	Amount          decimal.Decimal      `json:"amount"`
	Kind            core.TransactionKind `json:"type"`
	TargetAccountID *int64               `json:"target_account_id"`
	Description     string               `json:"description"`
	PaymentMethod   string               `json:"payment_method"`
	Date            core.Date            `json:"date"`
	RecurringID     *int64               `json:"recurring_transaction_id"`
	CreatedAt       time.Time            `json:"created_at"`
}

func newTransactionView(t core.Transaction) transactionView {
	return transactionView{
		ID:              t.ID,
		AccountID:       t.AccountID,
		CategoryID:      t.CategoryID,
		Amount:          t.Amount,
		Kind:            t.Kind,
		TargetAccountID: t.TargetAccountID,
		Description:     t.Description,
		PaymentMethod:   t.PaymentMethod,
		Date:            t.Date,
		RecurringID:     t.RecurringRuleID,
		CreatedAt:       t.CreatedAt,
	}
}

type accountView struct {
	ID        int64           `json:"account_id"`
	Name      string          `json:"name"`
	Balance   decimal.Decimal `json:"balance"`
	Currency  string          `json:"currency"`
	CreatedAt time.Time       `json:"created_at"`
}

type categoryView struct {
	ID    int64                `json:"category_id"`
	Name  string               `json:"name"`
	Kind  core.TransactionKind `json:"type"`
	Color string               `json:"color"`
}

type transactionRequest struct {
	AccountID       int64                `json:"account_id"`
	CategoryID      *int64               `json:"category_id"`
	Amount          decimal.Decimal      `json:"amount"`
	Kind            core.TransactionKind `json:"type"`
	TargetAccountID *int64               `json:"target_account_id"`
	Description     string               `json:"description"`
	PaymentMethod   string               `json:"payment_method"`
	Date            core.Date            `json:"date"`
}

type accountRequest struct {
	Name     string          `json:"name"`
	Balance  decimal.Decimal `json:"balance"`
	Currency string          `json:"currency"`
}

type categoryRequest struct {
	Name  string               `json:"name"`
	Kind  core.TransactionKind `json:"type"`
	Color string               `json:"color"`
}

type toggleRequest struct {
	Active *bool `json:"is_active"`
}

type upcomingView struct {
	RecurringID int64       `json:"recurring_id"`
	Dates       []core.Date `json:"dates"`
}

func newAccountView(a core.Account) accountView {
	return accountView{ID: a.ID, Name: a.Name, Balance: a.Balance, Currency: a.Currency, CreatedAt: a.CreatedAt}
}

type budgetView struct {
	ID            int64           `json:"budget_id"`
	CategoryID    int64           `json:"category_id"`
	CategoryName  string          `json:"category_name"`
	CategoryColor string          `json:"category_color"`
	Amount        decimal.Decimal `json:"amount"`
	Period        core.Frequency  `json:"period"`
	StartDate     core.Date       `json:"start_date"`
	EndDate       core.Date       `json:"end_date"`
	CreatedAt     time.Time       `json:"created_at"`
}

func newBudgetView(b core.Budget) budgetView {
	return budgetView{
		ID:            b.ID,
		CategoryID:    b.CategoryID,
		CategoryName:  b.CategoryName,
		CategoryColor: b.CategoryColor,
		Amount:        b.Amount,
		Period:        b.Period,
		StartDate:     b.StartDate,
		EndDate:       b.EndDate,
		CreatedAt:     b.CreatedAt,
	}
}

type budgetStatusView struct {
	budgetView
	Spent       decimal.Decimal `json:"spent"`
	Remaining   decimal.Decimal `json:"remaining"`
	PercentUsed decimal.Decimal `json:"percentage_used"`
	Exceeded    bool            `json:"exceeded"`
}

type budgetRequest struct {
	CategoryID int64           `json:"category_id"`
	Amount     decimal.Decimal `json:"amount"`
	Period     core.Frequency  `json:"period"`
	StartDate  core.Date       `json:"start_date"`
	EndDate    core.Date       `json:"end_date"`
}

type goalView struct {
	ID            int64           `json:"goal_id"`
	Name          string          `json:"name"`
	TargetAmount  decimal.Decimal `json:"target_amount"`
	CurrentAmount decimal.Decimal `json:"current_amount"`
	TargetDate    *core.Date      `json:"target_date"`
	Status        core.GoalStatus `json:"status"`
	Progress      decimal.Decimal `json:"progress_percentage"`
	DaysRemaining *int            `json:"days_remaining"`
	CreatedAt     time.Time       `json:"created_at"`
}

func newGoalView(g core.SavingsGoal, today core.Date) goalView {
	return goalView{
		ID:            g.ID,
		Name:          g.Name,
		TargetAmount:  g.TargetAmount,
		CurrentAmount: g.CurrentAmount,
		TargetDate:    g.TargetDate,
		Status:        g.Status,
		Progress:      g.Progress(),
		DaysRemaining: g.DaysRemaining(today),
		CreatedAt:     g.CreatedAt,
	}
}

type goalRequest struct {
	Name          string          `json:"name"`
	TargetAmount  decimal.Decimal `json:"target_amount"`
	CurrentAmount decimal.Decimal `json:"current_amount"`
	TargetDate    *core.Date      `json:"target_date"`
	Status        core.GoalStatus `json:"status"`
}

type depositRequest struct {
	Amount decimal.Decimal `json:"amount"`
}
