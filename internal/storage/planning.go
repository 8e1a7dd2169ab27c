package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/shopspring/decimal"

	"coinly/internal/core"
)

// ---- budgets ----

const budgetSelect = `SELECT b.budget_id, b.user_id, b.category_id, b.amount_cents, b.period,
		b.start_date, b.end_date, b.created_at, COALESCE(c.name, ''), COALESCE(c.color, '')
	FROM budgets b
	LEFT JOIN categories c ON c.category_id = b.category_id`

func scanBudget(s scanner) (core.Budget, error) {
	var (
		b                   core.Budget
		cents               int64
		period              string
		start, end, created string
	)
	err := s.Scan(&b.ID, &b.UserID, &b.CategoryID, &cents, &period,
		&start, &end, &created, &b.CategoryName, &b.CategoryColor)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return b, ErrNotFound
		}
		return b, fmt.Errorf("scan budget: %w", err)
	}
	b.Amount = core.FromCents(cents)
	b.Period = core.Frequency(period)
	b.CreatedAt = parseTimestamp(created)
	if b.StartDate, err = core.ParseDate(start); err != nil {
		return b, fmt.Errorf("budget %d start_date: %w", b.ID, err)
	}
	if b.EndDate, err = core.ParseDate(end); err != nil {
		return b, fmt.Errorf("budget %d end_date: %w", b.ID, err)
	}
	return b, nil
}

func (r *SQLiteRepository) ListBudgets(ctx context.Context, userID int64) ([]core.Budget, error) {
	rows, err := r.db.QueryContext(ctx,
		budgetSelect+` WHERE b.user_id = ? ORDER BY b.start_date DESC, b.budget_id`, userID)
	if err != nil {
		return nil, fmt.Errorf("query budgets: %w", err)
	}
	defer rows.Close()

	budgets := []core.Budget{}
	for rows.Next() {
		b, err := scanBudget(rows)
		if err != nil {
			return nil, err
		}
		budgets = append(budgets, b)
	}
	return budgets, rows.Err()
}

func (r *SQLiteRepository) GetBudget(ctx context.Context, id, userID int64) (*core.Budget, error) {
	b, err := scanBudget(r.db.QueryRowContext(ctx,
		budgetSelect+` WHERE b.budget_id = ? AND b.user_id = ?`, id, userID))
	if err != nil {
		return nil, err
	}
	return &b, nil
}

func (r *SQLiteRepository) CreateBudget(ctx context.Context, b core.Budget) (int64, error) {
	if err := ensureCategory(ctx, r.db, &b.CategoryID, b.UserID); err != nil {
		return 0, err
	}
	res, err := r.db.ExecContext(ctx,
		`INSERT INTO budgets (user_id, category_id, amount_cents, period, start_date, end_date)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		b.UserID, b.CategoryID, core.ToCents(b.Amount), string(b.Period),
		b.StartDate.String(), b.EndDate.String())
	if err != nil {
		return 0, fmt.Errorf("insert budget: %w", err)
	}
	return res.LastInsertId()
}

func (r *SQLiteRepository) UpdateBudget(ctx context.Context, b core.Budget) error {
	if err := ensureCategory(ctx, r.db, &b.CategoryID, b.UserID); err != nil {
		return err
	}
	res, err := r.db.ExecContext(ctx,
		`UPDATE budgets SET category_id = ?, amount_cents = ?, period = ?, start_date = ?, end_date = ?
		 WHERE budget_id = ? AND user_id = ?`,
		b.CategoryID, core.ToCents(b.Amount), string(b.Period),
		b.StartDate.String(), b.EndDate.String(), b.ID, b.UserID)
	if err != nil {
		return fmt.Errorf("update budget: %w", err)
	}
	return affectedOrNotFound(res)
}

func (r *SQLiteRepository) DeleteBudget(ctx context.Context, id, userID int64) error {
	res, err := r.db.ExecContext(ctx,
		`DELETE FROM budgets WHERE budget_id = ? AND user_id = ?`, id, userID)
	if err != nil {
		return fmt.Errorf("delete budget: %w", err)
	}
	return affectedOrNotFound(res)
}

// BudgetSpent sums the expenses booked in the budget's category inside its window.
func (r *SQLiteRepository) BudgetSpent(ctx context.Context, b core.Budget) (decimal.Decimal, error) {
	var cents int64
	err := r.db.QueryRowContext(ctx,
		`SELECT COALESCE(SUM(amount_cents), 0) FROM transactions
		 WHERE user_id = ? AND category_id = ? AND type = 'expense' AND date BETWEEN ? AND ?`,
		b.UserID, b.CategoryID, b.StartDate.String(), b.EndDate.String()).Scan(&cents)
	if err != nil {
		return decimal.Zero, fmt.Errorf("sum budget spending: %w", err)
	}
	return core.FromCents(cents), nil
}

// ---- savings goals ----

const goalSelect = `SELECT goal_id, user_id, name, target_amount_cents, current_amount_cents,
		target_date, status, created_at
	FROM savings_goals`

func scanGoal(s scanner) (core.SavingsGoal, error) {
	var (
		g                 core.SavingsGoal
		target, current   int64
		targetDate        sql.NullString
		status, createdAt string
	)
	err := s.Scan(&g.ID, &g.UserID, &g.Name, &target, &current, &targetDate, &status, &createdAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return g, ErrNotFound
		}
		return g, fmt.Errorf("scan savings goal: %w", err)
	}
	g.TargetAmount = core.FromCents(target)
	g.CurrentAmount = core.FromCents(current)
	g.Status = core.GoalStatus(status)
	g.CreatedAt = parseTimestamp(createdAt)
	if g.TargetDate, err = nullableDate(targetDate); err != nil {
		return g, fmt.Errorf("savings goal %d target_date: %w", g.ID, err)
	}
	return g, nil
}

func (r *SQLiteRepository) ListSavingsGoals(ctx context.Context, userID int64) ([]core.SavingsGoal, error) {
	rows, err := r.db.QueryContext(ctx,
		goalSelect+` WHERE user_id = ? ORDER BY created_at DESC, goal_id DESC`, userID)
	if err != nil {
		return nil, fmt.Errorf("query savings goals: %w", err)
	}
	defer rows.Close()

	goals := []core.SavingsGoal{}
	for rows.Next() {
		g, err := scanGoal(rows)
		if err != nil {
			return nil, err
		}
		goals = append(goals, g)
	}
	return goals, rows.Err()
}

func (r *SQLiteRepository) GetSavingsGoal(ctx context.Context, id, userID int64) (*core.SavingsGoal, error) {
	g, err := scanGoal(r.db.QueryRowContext(ctx,
		goalSelect+` WHERE goal_id = ? AND user_id = ?`, id, userID))
	if err != nil {
		return nil, err
	}
	return &g, nil
}

func (r *SQLiteRepository) CreateSavingsGoal(ctx context.Context, g core.SavingsGoal) (int64, error) {
	status := g.Status
	if status == "" {
		status = core.GoalActive
	}
	res, err := r.db.ExecContext(ctx,
		`INSERT INTO savings_goals (user_id, name, target_amount_cents, current_amount_cents, target_date, status)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		g.UserID, strings.TrimSpace(g.Name), core.ToCents(g.TargetAmount), core.ToCents(g.CurrentAmount),
		dateArg(g.TargetDate), string(status))
	if err != nil {
		return 0, fmt.Errorf("insert savings goal: %w", err)
	}
	return res.LastInsertId()
}

func (r *SQLiteRepository) UpdateSavingsGoal(ctx context.Context, g core.SavingsGoal) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE savings_goals SET name = ?, target_amount_cents = ?, current_amount_cents = ?,
		 target_date = ?, status = ?
		 WHERE goal_id = ? AND user_id = ?`,
		strings.TrimSpace(g.Name), core.ToCents(g.TargetAmount), core.ToCents(g.CurrentAmount),
		dateArg(g.TargetDate), string(g.Status), g.ID, g.UserID)
	if err != nil {
		return fmt.Errorf("update savings goal: %w", err)
	}
	return affectedOrNotFound(res)
}

func (r *SQLiteRepository) DeleteSavingsGoal(ctx context.Context, id, userID int64) error {
	res, err := r.db.ExecContext(ctx,
		`DELETE FROM savings_goals WHERE goal_id = ? AND user_id = ?`, id, userID)
	if err != nil {
		return fmt.Errorf("delete savings goal: %w", err)
	}
	return affectedOrNotFound(res)
}

// DepositToSavingsGoal adds amount to an active goal, completing it when the
// target is reached, and returns the updated goal.
func (r *SQLiteRepository) DepositToSavingsGoal(ctx context.Context, id, userID int64, amount decimal.Decimal) (goal *core.SavingsGoal, err error) {
	dbtx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin transaction: %w", err)
	}
	defer func() {
		if err != nil {
			_ = dbtx.Rollback()
		}
	}()

	g, err := scanGoal(dbtx.QueryRowContext(ctx,
		goalSelect+` WHERE goal_id = ? AND user_id = ?`, id, userID))
	if err != nil {
		return nil, err
	}
	if err = g.Deposit(amount); err != nil {
		return nil, err
	}
	if _, err = dbtx.ExecContext(ctx,
		`UPDATE savings_goals SET current_amount_cents = ?, status = ? WHERE goal_id = ?`,
		core.ToCents(g.CurrentAmount), string(g.Status), g.ID); err != nil {
		return nil, fmt.Errorf("deposit to savings goal: %w", err)
	}
	if err = dbtx.Commit(); err != nil {
		return nil, fmt.Errorf("commit transaction: %w", err)
	}
	slog.InfoContext(ctx, "Savings deposit recorded",
		"goal_id", g.ID,
		"amount", amount.StringFixed(2),
		"status", g.Status)
	return &g, nil
}
