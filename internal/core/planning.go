package core

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

type GoalStatus string

const (
	GoalActive    GoalStatus = "active"
	GoalCompleted GoalStatus = "completed"
	GoalCancelled GoalStatus = "cancelled"
)

func (s GoalStatus) Valid() bool {
	switch s {
	case GoalActive, GoalCompleted, GoalCancelled:
		return true
	}
	return false
}

// Budget caps spending in one category for a period between two dates.
type Budget struct {
	ID         int64
	UserID     int64
	CategoryID int64
	Amount     decimal.Decimal
	Period     Frequency
	StartDate  Date
	EndDate    Date
	CreatedAt  time.Time

	// Joined for display, never written.
	CategoryName  string
	CategoryColor string
}

func (b Budget) Validate() error {
	if b.CategoryID <= 0 {
		return ErrMissingCategory
	}
	if err := ValidateAmount(b.Amount); err != nil {
		return err
	}
	if !b.Period.Valid() {
		return ErrInvalidPeriod
	}
	if b.StartDate.IsZero() || b.EndDate.IsZero() {
		return ErrInvalidDate
	}
	if b.EndDate.Before(b.StartDate) {
		return ErrEndBeforeStart
	}
	return nil
}

// BudgetStatus compares a budget with the expenses booked against it.
type BudgetStatus struct {
	Budget    Budget
	Spent     decimal.Decimal
	Remaining decimal.Decimal
	// PercentUsed is rounded to two places.
	PercentUsed decimal.Decimal
	Exceeded    bool
}

// NewBudgetStatus derives the status of b given what was spent in its window.
func NewBudgetStatus(b Budget, spent decimal.Decimal) BudgetStatus {
	st := BudgetStatus{Budget: b, Spent: spent, Remaining: b.Amount.Sub(spent)}
	if b.Amount.IsPositive() {
		st.PercentUsed = spent.Mul(decimal.NewFromInt(100)).Div(b.Amount).Round(2)
	}
	st.Exceeded = spent.GreaterThan(b.Amount)
	return st
}

// SavingsGoal tracks progress towards a target amount.
type SavingsGoal struct {
	ID            int64
	UserID        int64
	Name          string
	TargetAmount  decimal.Decimal
	CurrentAmount decimal.Decimal
	TargetDate    *Date
	Status        GoalStatus
	CreatedAt     time.Time
}

func (g SavingsGoal) Validate() error {
	if strings.TrimSpace(g.Name) == "" {
		return ErrEmptyName
	}
	if err := ValidateAmount(g.TargetAmount); err != nil {
		return err
	}
	if g.CurrentAmount.IsNegative() {
		return ErrInvalidAmount
	}
	if err := ValidateBalance(g.CurrentAmount); err != nil {
		return err
	}
	if !g.Status.Valid() {
		return ErrInvalidStatus
	}
	return nil
}

// Progress is the saved share of the target in percent, rounded to two places.
func (g SavingsGoal) Progress() decimal.Decimal {
	if !g.TargetAmount.IsPositive() {
		return decimal.Zero
	}
	return g.CurrentAmount.Mul(decimal.NewFromInt(100)).Div(g.TargetAmount).Round(2)
}

// DaysRemaining counts days from today to the target date. Nil without a target date.
func (g SavingsGoal) DaysRemaining(today Date) *int {
	if g.TargetDate == nil {
		return nil
	}
	days := g.TargetDate.DaysSince(today)
	return &days
}

// Deposit adds amount to the goal and completes it once the target is reached.
func (g *SavingsGoal) Deposit(amount decimal.Decimal) error {
	if g.Status != GoalActive {
		return ErrGoalNotActive
	}
	if err := ValidateAmount(amount); err != nil {
		return err
	}
	next := g.CurrentAmount.Add(amount)
	if err := ValidateBalance(next); err != nil {
		return err
	}
	g.CurrentAmount = next
	if !g.CurrentAmount.LessThan(g.TargetAmount) {
		g.Status = GoalCompleted
	}
	return nil
}
