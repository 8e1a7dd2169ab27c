package storage

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/shopspring/decimal"

	"coinly/internal/core"
)

// Transfers move money between the caller's own accounts, so every report
// below counts only income and expense rows.

const totalsSelect = `SELECT
		COALESCE(SUM(CASE WHEN type = 'income' THEN amount_cents END), 0),
		COALESCE(SUM(CASE WHEN type = 'expense' THEN amount_cents END), 0),
		COUNT(CASE WHEN type = 'income' THEN 1 END),
		COUNT(CASE WHEN type = 'expense' THEN 1 END)
	FROM transactions`

func (r *SQLiteRepository) totals(ctx context.Context, userID int64, start, end core.Date) (core.Totals, error) {
	var (
		t                     core.Totals
		incomeCents, expCents int64
	)
	err := r.db.QueryRowContext(ctx, totalsSelect+` WHERE user_id = ? AND date BETWEEN ? AND ?`,
		userID, start.String(), end.String()).
		Scan(&incomeCents, &expCents, &t.IncomeCount, &t.ExpenseCount)
	if err != nil {
		return t, fmt.Errorf("query totals: %w", err)
	}
	t.Income = core.FromCents(incomeCents)
	t.Expenses = core.FromCents(expCents)
	return t, nil
}

// MonthlyReport summarizes one calendar month, broken down by category.
func (r *SQLiteRepository) MonthlyReport(ctx context.Context, userID int64, year, month int) (*core.MonthlyReport, error) {
	start, end := core.MonthRange(year, month)
	summary, err := r.totals(ctx, userID, start, end)
	if err != nil {
		return nil, err
	}
	byCategory, err := r.CategoryReport(ctx, userID, start, end, "")
	if err != nil {
		return nil, err
	}
	return &core.MonthlyReport{
		Period:     core.ReportPeriod{Year: year, Month: month, Start: start, End: end},
		Summary:    summary,
		ByCategory: byCategory,
	}, nil
}

// YearlyReport summarizes one calendar year, broken down by month. Months
// without postings are omitted.
func (r *SQLiteRepository) YearlyReport(ctx context.Context, userID int64, year int) (*core.YearlyReport, error) {
	start, end := core.NewDate(year, 1, 1), core.NewDate(year, 12, 31)
	summary, err := r.totals(ctx, userID, start, end)
	if err != nil {
		return nil, err
	}

	rows, err := r.db.QueryContext(ctx,
		`SELECT CAST(substr(date, 6, 2) AS INTEGER) AS month,
			COALESCE(SUM(CASE WHEN type = 'income' THEN amount_cents END), 0),
			COALESCE(SUM(CASE WHEN type = 'expense' THEN amount_cents END), 0)
		 FROM transactions
		 WHERE user_id = ? AND date BETWEEN ? AND ? AND type != 'transfer'
		 GROUP BY month ORDER BY month`,
		userID, start.String(), end.String())
	if err != nil {
		return nil, fmt.Errorf("query monthly totals: %w", err)
	}
	defer rows.Close()

	byMonth := []core.MonthTotals{}
	for rows.Next() {
		var (
			m                     core.MonthTotals
			incomeCents, expCents int64
		)
		if err := rows.Scan(&m.Month, &incomeCents, &expCents); err != nil {
			return nil, fmt.Errorf("scan monthly totals: %w", err)
		}
		m.Income = core.FromCents(incomeCents)
		m.Expenses = core.FromCents(expCents)
		byMonth = append(byMonth, m)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return &core.YearlyReport{
		Period:  core.ReportPeriod{Year: year, Start: start, End: end},
		Summary: summary,
		ByMonth: byMonth,
	}, nil
}

// CategoryReport groups postings between start and end by category and kind,
// largest total first. An empty kind means both income and expense.
func (r *SQLiteRepository) CategoryReport(ctx context.Context, userID int64, start, end core.Date, kind core.TransactionKind) ([]core.CategoryTotal, error) {
	query := `SELECT t.category_id, COALESCE(c.name, ''), COALESCE(c.color, ''), t.type,
			SUM(t.amount_cents) AS total, COUNT(*)
		 FROM transactions t
		 LEFT JOIN categories c ON c.category_id = t.category_id
		 WHERE t.user_id = ? AND t.date BETWEEN ? AND ? AND t.type != 'transfer'`
	args := []any{userID, start.String(), end.String()}
	if kind != "" {
		query += ` AND t.type = ?`
		args = append(args, string(kind))
	}
	query += ` GROUP BY t.category_id, t.type ORDER BY total DESC, t.category_id`

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query category totals: %w", err)
	}
	defer rows.Close()

	totals := []core.CategoryTotal{}
	for rows.Next() {
		var (
			ct         core.CategoryTotal
			categoryID sql.NullInt64
			kindStr    string
			cents      int64
		)
		if err := rows.Scan(&categoryID, &ct.Name, &ct.Color, &kindStr, &cents, &ct.Count); err != nil {
			return nil, fmt.Errorf("scan category total: %w", err)
		}
		ct.CategoryID = nullableID(categoryID)
		ct.Kind = core.TransactionKind(kindStr)
		ct.Total = core.FromCents(cents)
		if ct.Count > 0 {
			ct.Average = ct.Total.Div(decimal.NewFromInt(int64(ct.Count))).Round(2)
		}
		totals = append(totals, ct)
	}
	return totals, rows.Err()
}

// IncomeVsExpenses buckets postings between start and end by YYYY-MM.
func (r *SQLiteRepository) IncomeVsExpenses(ctx context.Context, userID int64, start, end core.Date) ([]core.PeriodBalance, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT substr(date, 1, 7) AS period,
			COALESCE(SUM(CASE WHEN type = 'income' THEN amount_cents END), 0),
			COALESCE(SUM(CASE WHEN type = 'expense' THEN amount_cents END), 0)
		 FROM transactions
		 WHERE user_id = ? AND date BETWEEN ? AND ? AND type != 'transfer'
		 GROUP BY period ORDER BY period`,
		userID, start.String(), end.String())
	if err != nil {
		return nil, fmt.Errorf("query income vs expenses: %w", err)
	}
	defer rows.Close()

	periods := []core.PeriodBalance{}
	for rows.Next() {
		var (
			p                     core.PeriodBalance
			incomeCents, expCents int64
		)
		if err := rows.Scan(&p.Period, &incomeCents, &expCents); err != nil {
			return nil, fmt.Errorf("scan income vs expenses: %w", err)
		}
		p.Income = core.FromCents(incomeCents)
		p.Expenses = core.FromCents(expCents)
		p.Balance = core.FromCents(incomeCents - expCents)
		periods = append(periods, p)
	}
	return periods, rows.Err()
}

// TransactionStats counts and sums postings, optionally limited to a date range.
func (r *SQLiteRepository) TransactionStats(ctx context.Context, userID int64, start, end *core.Date) (*core.TransactionStats, error) {
	query := `SELECT COUNT(*),
			COALESCE(SUM(CASE WHEN type = 'income' THEN amount_cents END), 0),
			COALESCE(SUM(CASE WHEN type = 'expense' THEN amount_cents END), 0),
			COUNT(CASE WHEN type = 'income' THEN 1 END),
			COUNT(CASE WHEN type = 'expense' THEN 1 END)
		 FROM transactions WHERE user_id = ?`
	args := []any{userID}
	if start != nil {
		query += ` AND date >= ?`
		args = append(args, start.String())
	}
	if end != nil {
		query += ` AND date <= ?`
		args = append(args, end.String())
	}

	var (
		s                     core.TransactionStats
		incomeCents, expCents int64
	)
	err := r.db.QueryRowContext(ctx, query, args...).
		Scan(&s.TotalTransactions, &incomeCents, &expCents, &s.IncomeCount, &s.ExpenseCount)
	if err != nil {
		return nil, fmt.Errorf("query transaction stats: %w", err)
	}
	s.Income = core.FromCents(incomeCents)
	s.Expenses = core.FromCents(expCents)
	return &s, nil
}
