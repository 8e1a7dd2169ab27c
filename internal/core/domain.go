package core

import (
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/shopspring/decimal"
)

const (
	Daily   Frequency = "daily"
	Weekly  Frequency = "weekly"
	Monthly Frequency = "monthly"
	Yearly  Frequency = "yearly"
)

const (
	Income   TransactionKind = "income"
	Expense  TransactionKind = "expense"
	Transfer TransactionKind = "transfer"
)

// AutoDescriptionPrefix marks transactions posted by the scheduler.
const AutoDescriptionPrefix = "[AUTO] "

// AutoPaymentMethod is the payment method recorded on scheduler postings.
const AutoPaymentMethod = "auto"

// DefaultAutoDescription is used when a rule carries no description.
const DefaultAutoDescription = "Recurring transaction"

const (
	dateLayout        = "2006-01-02"
	maxDescriptionLen = 255
)

type (
	Frequency string

	TransactionKind string

	// Date is a calendar date. The wrapped time is always midnight UTC.
	Date struct {
		time.Time
	}

	RecurringRule struct {
		ID              int64
		UserID          int64
		AccountID       int64
		CategoryID      *int64
		Amount          decimal.Decimal
		Kind            TransactionKind
		TargetAccountID *int64
		Description     string
		Frequency       Frequency
		StartDate       Date
		EndDate         *Date
		Active          bool
		LastExecution   *Date
		CreatedAt       time.Time

		// Joined for display, never written.
		AccountName  string
		CategoryName string
	}

	Transaction struct {
		ID              int64
		UserID          int64
		AccountID       int64
		CategoryID      *int64
		Amount          decimal.Decimal
		Kind            TransactionKind
		TargetAccountID *int64
		Description     string
		PaymentMethod   string
		Date            Date
		RecurringRuleID *int64
		CreatedAt       time.Time
	}

	Account struct {
		ID        int64
		UserID    int64
		Name      string
		Balance   decimal.Decimal
		Currency  string
		CreatedAt time.Time
	}

	Category struct {
		ID     int64
		UserID int64
		Name   string
		Kind   TransactionKind
		Color  string
	}
)

var (
	ErrInvalidDate       = errors.New("invalid date")
	ErrInvalidAmount     = errors.New("invalid amount")
	ErrInvalidFrequency  = errors.New("invalid frequency")
	ErrInvalidKind       = errors.New("invalid transaction type")
	ErrMissingAccount    = errors.New("account is required")
	ErrMissingTarget     = errors.New("transfer requires a target account")
	ErrSameAccount       = errors.New("transfer target must differ from source account")
	ErrEndBeforeStart    = errors.New("end date must be on or after start date")
	ErrDescriptionLength = errors.New("description too long (max 255 characters)")
	ErrEmptyName         = errors.New("name is required")
	ErrInvalidCurrency   = errors.New("currency must be a 3-letter code")
	ErrMissingCategory   = errors.New("category is required")
	ErrInvalidPeriod     = errors.New("invalid period")
	ErrInvalidStatus     = errors.New("invalid status")
	ErrGoalNotActive     = errors.New("savings goal is not active")
)

// NewDate creates a Date from year, month, day.
func NewDate(year, month, day int) Date {
	return Date{Time: time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)}
}

// DateOf truncates t to its calendar date in t's own location.
func DateOf(t time.Time) Date {
	y, m, d := t.Date()
	return NewDate(y, int(m), d)
}

// ParseDate parses a YYYY-MM-DD string.
func ParseDate(s string) (Date, error) {
	t, err := time.Parse(dateLayout, strings.TrimSpace(s))
	if err != nil {
		return Date{}, fmt.Errorf("%w: %q", ErrInvalidDate, s)
	}
	return Date{Time: t}, nil
}

func (d Date) String() string {
	return d.Format(dateLayout)
}

// DaysSince returns the number of whole days from other to d. Negative when d is earlier.
func (d Date) DaysSince(other Date) int {
	return int(d.Sub(other.Time).Hours() / 24)
}

func (d Date) Before(other Date) bool { return d.Time.Before(other.Time) }

func (d Date) After(other Date) bool { return d.Time.After(other.Time) }

func (d Date) Equal(other Date) bool { return d.Time.Equal(other.Time) }

func (d Date) MarshalJSON() ([]byte, error) {
	if d.IsZero() {
		return []byte("null"), nil
	}
	return []byte(`"` + d.String() + `"`), nil
}

func (d *Date) UnmarshalJSON(b []byte) error {
	s := strings.Trim(string(b), `"`)
	if s == "" || s == "null" {
		*d = Date{}
		return nil
	}
	// Accept full timestamps as sent by browsers; keep the date part.
	if len(s) > len(dateLayout) && s[len(dateLayout)] == 'T' {
		s = s[:len(dateLayout)]
	}
	parsed, err := ParseDate(s)
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

func (f Frequency) Valid() bool {
	switch f {
	case Daily, Weekly, Monthly, Yearly:
		return true
	}
	return false
}

func (k TransactionKind) Valid() bool {
	switch k {
	case Income, Expense, Transfer:
		return true
	}
	return false
}

// InRange reports whether today lies within [StartDate, EndDate].
func (r RecurringRule) InRange(today Date) bool {
	if today.Before(r.StartDate) {
		return false
	}
	if r.EndDate != nil && today.After(*r.EndDate) {
		return false
	}
	return true
}

func (r RecurringRule) Validate() error {
	if r.AccountID <= 0 {
		return ErrMissingAccount
	}
	if err := ValidateAmount(r.Amount); err != nil {
		return err
	}
	if !r.Kind.Valid() {
		return ErrInvalidKind
	}
	if r.Kind == Transfer {
		if r.TargetAccountID == nil || *r.TargetAccountID <= 0 {
			return ErrMissingTarget
		}
		if *r.TargetAccountID == r.AccountID {
			return ErrSameAccount
		}
	}
	if !r.Frequency.Valid() {
		return ErrInvalidFrequency
	}
	if r.StartDate.IsZero() {
		return fmt.Errorf("%w: start date is required", ErrInvalidDate)
	}
	if r.EndDate != nil && r.EndDate.Before(r.StartDate) {
		return ErrEndBeforeStart
	}
	if len(r.Description) > maxDescriptionLen {
		return ErrDescriptionLength
	}
	return nil
}

// AutoDescription is the description given to transactions posted for this rule.
func (r RecurringRule) AutoDescription() string {
	desc := strings.TrimSpace(r.Description)
	if desc == "" {
		desc = DefaultAutoDescription
	}
	out := AutoDescriptionPrefix + desc
	for len(out) > maxDescriptionLen {
		_, size := utf8.DecodeLastRuneInString(out)
		out = out[:len(out)-size]
	}
	return out
}

func (t Transaction) Validate() error {
	if t.AccountID <= 0 {
		return ErrMissingAccount
	}
	if err := ValidateAmount(t.Amount); err != nil {
		return err
	}
	if !t.Kind.Valid() {
		return ErrInvalidKind
	}
	if t.Kind == Transfer {
		if t.TargetAccountID == nil || *t.TargetAccountID <= 0 {
			return ErrMissingTarget
		}
		if *t.TargetAccountID == t.AccountID {
			return ErrSameAccount
		}
	}
	if t.Date.IsZero() {
		return fmt.Errorf("%w: date is required", ErrInvalidDate)
	}
	if len(t.Description) > maxDescriptionLen {
		return ErrDescriptionLength
	}
	return nil
}

func (a Account) Validate() error {
	if strings.TrimSpace(a.Name) == "" {
		return ErrEmptyName
	}
	if err := ValidateBalance(a.Balance); err != nil {
		return fmt.Errorf("balance: %w", err)
	}
	if len(a.Currency) != 3 {
		return ErrInvalidCurrency
	}
	return nil
}

func (c Category) Validate() error {
	if strings.TrimSpace(c.Name) == "" {
		return ErrEmptyName
	}
	if c.Kind != Income && c.Kind != Expense {
		return ErrInvalidKind
	}
	return nil
}

// IsValidationError reports whether err comes from domain validation.
func IsValidationError(err error) bool {
	for _, target := range []error{
		ErrInvalidDate, ErrInvalidAmount, ErrInvalidFrequency, ErrInvalidKind,
		ErrMissingAccount, ErrMissingTarget, ErrSameAccount, ErrEndBeforeStart,
		ErrDescriptionLength, ErrEmptyName, ErrInvalidCurrency, ErrMissingCategory,
		ErrInvalidPeriod, ErrInvalidStatus, ErrGoalNotActive,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}
