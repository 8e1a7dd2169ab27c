package core

import "github.com/shopspring/decimal"

// Totals sums income and expenses. Transfers move money between the
// user's own accounts and are left out.
type Totals struct {
	Income       decimal.Decimal `json:"total_income"`
	Expenses     decimal.Decimal `json:"total_expenses"`
	IncomeCount  int             `json:"income_count"`
	ExpenseCount int             `json:"expense_count"`
}

// CategoryTotal aggregates one category and kind. Uncategorized postings
// have a nil CategoryID and an empty name.
type CategoryTotal struct {
	CategoryID *int64          `json:"category_id"`
	Name       string          `json:"name"`
	Color      string          `json:"color"`
	Kind       TransactionKind `json:"type"`
	Total      decimal.Decimal `json:"total"`
	Count      int             `json:"count"`
	Average    decimal.Decimal `json:"average"`
}

type MonthTotals struct {
	Month    int             `json:"month"`
	Income   decimal.Decimal `json:"income"`
	Expenses decimal.Decimal `json:"expenses"`
}

// PeriodBalance is one YYYY-MM bucket of the income versus expenses report.
type PeriodBalance struct {
	Period   string          `json:"period"`
	Income   decimal.Decimal `json:"income"`
	Expenses decimal.Decimal `json:"expenses"`
	Balance  decimal.Decimal `json:"balance"`
}

type ReportPeriod struct {
	Year  int  `json:"year"`
	Month int  `json:"month,omitempty"`
	Start Date `json:"start"`
	End   Date `json:"end"`
}

type MonthlyReport struct {
	Period     ReportPeriod    `json:"period"`
	Summary    Totals          `json:"summary"`
	ByCategory []CategoryTotal `json:"by_category"`
}

type YearlyReport struct {
	Period  ReportPeriod  `json:"period"`
	Summary Totals        `json:"summary"`
	ByMonth []MonthTotals `json:"by_month"`
}

type TransactionStats struct {
	Totals
	TotalTransactions int `json:"total_transactions"`
}

// MonthRange returns the first and last day of a calendar month.
func MonthRange(year, month int) (Date, Date) {
	start := NewDate(year, month, 1)
	return start, Date{Time: start.AddDate(0, 1, -1)}
}
