package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"coinly/internal/core"

	_ "modernc.org/sqlite"
)

var (
	// ErrNotFound is returned when a row does not exist or is not owned by the caller.
	ErrNotFound = errors.New("not found")
	// ErrConflict is returned when a write would break a uniqueness rule.
	ErrConflict = errors.New("conflict")
)

// querier is satisfied by both *sql.DB and *sql.Tx.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

type SQLiteRepository struct {
	db *sql.DB
}

func NewSQLiteRepository(dbPath string) (*SQLiteRepository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	// Run migrations first so the pool never sees a half-built schema.
	if err := RunMigrations(dbPath); err != nil {
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	db, err := sql.Open("sqlite", dsn(dbPath))
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	return &SQLiteRepository{db: db}, nil
}

func dsn(dbPath string) string {
	return "file:" + dbPath +
		"?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&_txlock=immediate"
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

// Ping reports whether the database is reachable.
func (r *SQLiteRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

// ---- accounts ----

func (r *SQLiteRepository) CreateAccount(ctx context.Context, a core.Account) (int64, error) {
	if err := core.ValidateBalance(a.Balance); err != nil {
		return 0, err
	}
	currency := a.Currency
	if currency == "" {
		currency = "PLN"
	}
	res, err := r.db.ExecContext(ctx,
		`INSERT INTO accounts (user_id, name, balance_cents, currency) VALUES (?, ?, ?, ?)`,
		a.UserID, strings.TrimSpace(a.Name), core.ToCents(a.Balance), currency)
	if err != nil {
		return 0, fmt.Errorf("insert account: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("account id: %w", err)
	}
	slog.InfoContext(ctx, "Account created", "account_id", id, "user_id", a.UserID)
	return id, nil
}

func (r *SQLiteRepository) ListAccounts(ctx context.Context, userID int64) ([]core.Account, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT account_id, user_id, name, balance_cents, currency, created_at
		 FROM accounts WHERE user_id = ? ORDER BY name, account_id`, userID)
	if err != nil {
		return nil, fmt.Errorf("query accounts: %w", err)
	}
	defer rows.Close()

	var accounts []core.Account
	for rows.Next() {
		a, err := scanAccount(rows)
		if err != nil {
			return nil, err
		}
		accounts = append(accounts, a)
	}
	return accounts, rows.Err()
}

func (r *SQLiteRepository) GetAccount(ctx context.Context, id, userID int64) (*core.Account, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT account_id, user_id, name, balance_cents, currency, created_at
		 FROM accounts WHERE account_id = ? AND user_id = ?`, id, userID)
	a, err := scanAccount(row)
	if err != nil {
		return nil, err
	}
	return &a, nil
}

// UpdateAccount replaces the account's name, balance and currency.
func (r *SQLiteRepository) UpdateAccount(ctx context.Context, a core.Account) error {
	if err := core.ValidateBalance(a.Balance); err != nil {
		return err
	}
	res, err := r.db.ExecContext(ctx,
		`UPDATE accounts SET name = ?, balance_cents = ?, currency = ?
		 WHERE account_id = ? AND user_id = ?`,
		strings.TrimSpace(a.Name), core.ToCents(a.Balance), a.Currency, a.ID, a.UserID)
	if err != nil {
		return fmt.Errorf("update account: %w", err)
	}
	return affectedOrNotFound(res)
}

// DeleteAccount removes the account. Its transactions and rules go with it.
func (r *SQLiteRepository) DeleteAccount(ctx context.Context, id, userID int64) error {
	res, err := r.db.ExecContext(ctx,
		`DELETE FROM accounts WHERE account_id = ? AND user_id = ?`, id, userID)
	if err != nil {
		return fmt.Errorf("delete account: %w", err)
	}
	return affectedOrNotFound(res)
}

// FindOrCreateAccount resolves an account by case-insensitive name, creating
// an empty one in currency when none matches.
func (r *SQLiteRepository) FindOrCreateAccount(ctx context.Context, userID int64, name, currency string) (int64, error) {
	name = strings.TrimSpace(name)
	var id int64
	err := r.db.QueryRowContext(ctx,
		`SELECT account_id FROM accounts WHERE user_id = ? AND lower(name) = lower(?)
		 ORDER BY account_id LIMIT 1`, userID, name).Scan(&id)
	if err == nil {
		return id, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return 0, fmt.Errorf("find account: %w", err)
	}
	return r.CreateAccount(ctx, core.Account{UserID: userID, Name: name, Currency: currency})
}

type scanner interface {
	Scan(dest ...any) error
}

func scanAccount(s scanner) (core.Account, error) {
	var (
		a         core.Account
		cents     int64
		createdAt string
	)
	if err := s.Scan(&a.ID, &a.UserID, &a.Name, &cents, &a.Currency, &createdAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return a, ErrNotFound
		}
		return a, fmt.Errorf("scan account: %w", err)
	}
	a.Balance = core.FromCents(cents)
	a.CreatedAt = parseTimestamp(createdAt)
	return a, nil
}

func ensureAccount(ctx context.Context, q querier, id, userID int64) error {
	var one int
	err := q.QueryRowContext(ctx,
		`SELECT 1 FROM accounts WHERE account_id = ? AND user_id = ?`, id, userID).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("account %d: %w", id, ErrNotFound)
	}
	if err != nil {
		return fmt.Errorf("check account %d: %w", id, err)
	}
	return nil
}

func ensureCategory(ctx context.Context, q querier, id *int64, userID int64) error {
	if id == nil {
		return nil
	}
	var one int
	err := q.QueryRowContext(ctx,
		`SELECT 1 FROM categories WHERE category_id = ? AND user_id = ?`, *id, userID).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("category %d: %w", *id, ErrNotFound)
	}
	if err != nil {
		return fmt.Errorf("check category %d: %w", *id, err)
	}
	return nil
}

// ---- categories ----

func (r *SQLiteRepository) CreateCategory(ctx context.Context, c core.Category) (int64, error) {
	res, err := r.db.ExecContext(ctx,
		`INSERT INTO categories (user_id, name, type, color) VALUES (?, ?, ?, ?)`,
		c.UserID, strings.TrimSpace(c.Name), string(c.Kind), c.Color)
	if IsUniqueViolation(err) {
		return 0, fmt.Errorf("category %q (%s) already exists: %w", c.Name, c.Kind, ErrConflict)
	}
	if err != nil {
		return 0, fmt.Errorf("insert category: %w", err)
	}
	return res.LastInsertId()
}

func (r *SQLiteRepository) ListCategories(ctx context.Context, userID int64) ([]core.Category, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT category_id, user_id, name, type, color FROM categories
		 WHERE user_id = ? ORDER BY type, name`, userID)
	if err != nil {
		return nil, fmt.Errorf("query categories: %w", err)
	}
	defer rows.Close()

	var categories []core.Category
	for rows.Next() {
		var (
			c    core.Category
			kind string
		)
		if err := rows.Scan(&c.ID, &c.UserID, &c.Name, &kind, &c.Color); err != nil {
			return nil, fmt.Errorf("scan category: %w", err)
		}
		c.Kind = core.TransactionKind(kind)
		categories = append(categories, c)
	}
	return categories, rows.Err()
}

func (r *SQLiteRepository) GetCategory(ctx context.Context, id, userID int64) (*core.Category, error) {
	var (
		c    core.Category
		kind string
	)
	err := r.db.QueryRowContext(ctx,
		`SELECT category_id, user_id, name, type, color FROM categories
		 WHERE category_id = ? AND user_id = ?`, id, userID).Scan(&c.ID, &c.UserID, &c.Name, &kind, &c.Color)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get category: %w", err)
	}
	c.Kind = core.TransactionKind(kind)
	return &c, nil
}

func (r *SQLiteRepository) UpdateCategory(ctx context.Context, c core.Category) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE categories SET name = ?, type = ?, color = ? WHERE category_id = ? AND user_id = ?`,
		strings.TrimSpace(c.Name), string(c.Kind), c.Color, c.ID, c.UserID)
	if IsUniqueViolation(err) {
		return fmt.Errorf("category %q (%s) already exists: %w", c.Name, c.Kind, ErrConflict)
	}
	if err != nil {
		return fmt.Errorf("update category: %w", err)
	}
	return affectedOrNotFound(res)
}

// DeleteCategory removes the category. Transactions and rules keep their rows
// with the category cleared; budgets on it are dropped.
func (r *SQLiteRepository) DeleteCategory(ctx context.Context, id, userID int64) error {
	res, err := r.db.ExecContext(ctx,
		`DELETE FROM categories WHERE category_id = ? AND user_id = ?`, id, userID)
	if err != nil {
		return fmt.Errorf("delete category: %w", err)
	}
	return affectedOrNotFound(res)
}

// FindCategoryByName looks up a category of the given kind case-insensitively.
// ErrNotFound when absent.
func (r *SQLiteRepository) FindCategoryByName(ctx context.Context, userID int64, name string, kind core.TransactionKind) (int64, error) {
	var id int64
	err := r.db.QueryRowContext(ctx,
		`SELECT category_id FROM categories WHERE user_id = ? AND lower(name) = lower(?) AND type = ?
		 ORDER BY category_id LIMIT 1`, userID, strings.TrimSpace(name), string(kind)).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, ErrNotFound
	}
	if err != nil {
		return 0, fmt.Errorf("find category: %w", err)
	}
	return id, nil
}

// ---- recurring rules ----

const recurringColumns = `r.recurring_id, r.user_id, r.account_id, r.category_id, r.amount_cents, r.type,
	r.target_account_id, r.description, r.frequency, r.start_date, r.end_date, r.is_active,
	r.last_execution, r.created_at, COALESCE(a.name, ''), COALESCE(c.name, '')`

const recurringFrom = `FROM recurring_transactions r
	LEFT JOIN accounts a ON r.account_id = a.account_id
	LEFT JOIN categories c ON r.category_id = c.category_id`

func scanRule(s scanner) (core.RecurringRule, error) {
	var (
		rule          core.RecurringRule
		categoryID    sql.NullInt64
		targetID      sql.NullInt64
		description   sql.NullString
		cents         int64
		kind, freq    string
		start         string
		end, lastExec sql.NullString
		createdAt     string
	)
	err := s.Scan(&rule.ID, &rule.UserID, &rule.AccountID, &categoryID, &cents, &kind,
		&targetID, &description, &freq, &start, &end, &rule.Active,
		&lastExec, &createdAt, &rule.AccountName, &rule.CategoryName)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return rule, ErrNotFound
		}
		return rule, fmt.Errorf("scan recurring rule: %w", err)
	}

	rule.CategoryID = nullableID(categoryID)
	rule.TargetAccountID = nullableID(targetID)
	rule.Description = description.String
	rule.Amount = core.FromCents(cents)
	rule.Kind = core.TransactionKind(kind)
	rule.Frequency = core.Frequency(freq)
	rule.CreatedAt = parseTimestamp(createdAt)

	if rule.StartDate, err = core.ParseDate(start); err != nil {
		return rule, fmt.Errorf("recurring %d start_date: %w", rule.ID, err)
	}
	if rule.EndDate, err = nullableDate(end); err != nil {
		return rule, fmt.Errorf("recurring %d end_date: %w", rule.ID, err)
	}
	if rule.LastExecution, err = nullableDate(lastExec); err != nil {
		return rule, fmt.Errorf("recurring %d last_execution: %w", rule.ID, err)
	}
	return rule, nil
}

func (r *SQLiteRepository) queryRules(ctx context.Context, query string, args ...any) ([]core.RecurringRule, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query recurring rules: %w", err)
	}
	defer rows.Close()

	var rules []core.RecurringRule
	for rows.Next() {
		rule, err := scanRule(rows)
		if err != nil {
			return nil, err
		}
		rules = append(rules, rule)
	}
	return rules, rows.Err()
}

func (r *SQLiteRepository) ListRecurring(ctx context.Context, userID int64) ([]core.RecurringRule, error) {
	return r.queryRules(ctx,
		`SELECT `+recurringColumns+` `+recurringFrom+`
		 WHERE r.user_id = ? ORDER BY r.created_at DESC, r.recurring_id DESC`, userID)
}

func (r *SQLiteRepository) GetRecurring(ctx context.Context, id, userID int64) (*core.RecurringRule, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+recurringColumns+` `+recurringFrom+`
		 WHERE r.recurring_id = ? AND r.user_id = ?`, id, userID)
	rule, err := scanRule(row)
	if err != nil {
		return nil, err
	}
	return &rule, nil
}

func (r *SQLiteRepository) CreateRecurring(ctx context.Context, rule core.RecurringRule) (int64, error) {
	if err := r.ensureRuleRefs(ctx, rule); err != nil {
		return 0, err
	}

	res, err := r.db.ExecContext(ctx,
		`INSERT INTO recurring_transactions
		 (user_id, account_id, category_id, amount_cents, type, target_account_id, description,
		  frequency, start_date, end_date, is_active)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rule.UserID, rule.AccountID, rule.CategoryID, core.ToCents(rule.Amount), string(rule.Kind),
		rule.TargetAccountID, nullableString(rule.Description), string(rule.Frequency),
		rule.StartDate.String(), dateArg(rule.EndDate), rule.Active)
	if err != nil {
		return 0, fmt.Errorf("insert recurring rule: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("recurring rule id: %w", err)
	}

	slog.InfoContext(ctx, "Recurring rule created",
		"recurring_id", id,
		"user_id", rule.UserID,
		"frequency", rule.Frequency,
		"amount", rule.Amount.StringFixed(2))
	return id, nil
}

// UpdateRecurring overwrites the user editable columns of an existing rule.
func (r *SQLiteRepository) UpdateRecurring(ctx context.Context, rule core.RecurringRule) error {
	if err := r.ensureRuleRefs(ctx, rule); err != nil {
		return err
	}

	res, err := r.db.ExecContext(ctx,
		`UPDATE recurring_transactions SET account_id = ?, category_id = ?, amount_cents = ?, type = ?,
		 target_account_id = ?, description = ?, frequency = ?, start_date = ?, end_date = ?, is_active = ?
		 WHERE recurring_id = ? AND user_id = ?`,
		rule.AccountID, rule.CategoryID, core.ToCents(rule.Amount), string(rule.Kind),
		rule.TargetAccountID, nullableString(rule.Description), string(rule.Frequency),
		rule.StartDate.String(), dateArg(rule.EndDate), rule.Active, rule.ID, rule.UserID)
	if err != nil {
		return fmt.Errorf("update recurring rule: %w", err)
	}
	return affectedOrNotFound(res)
}

func (r *SQLiteRepository) DeleteRecurring(ctx context.Context, id, userID int64) error {
	res, err := r.db.ExecContext(ctx,
		`DELETE FROM recurring_transactions WHERE recurring_id = ? AND user_id = ?`, id, userID)
	if err != nil {
		return fmt.Errorf("delete recurring rule: %w", err)
	}
	return affectedOrNotFound(res)
}

func (r *SQLiteRepository) SetRecurringActive(ctx context.Context, id, userID int64, active bool) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE recurring_transactions SET is_active = ? WHERE recurring_id = ? AND user_id = ?`,
		active, id, userID)
	if err != nil {
		return fmt.Errorf("toggle recurring rule: %w", err)
	}
	return affectedOrNotFound(res)
}

// ensureRuleRefs checks that every account and category the rule points at
// belongs to the rule's owner.
func (r *SQLiteRepository) ensureRuleRefs(ctx context.Context, rule core.RecurringRule) error {
	return ensureRefs(ctx, r.db, rule.UserID, rule.AccountID, rule.TargetAccountID, rule.CategoryID)
}

func ensureRefs(ctx context.Context, q querier, userID, accountID int64, targetID, categoryID *int64) error {
	if err := ensureAccount(ctx, q, accountID, userID); err != nil {
		return err
	}
	if targetID != nil {
		if err := ensureAccount(ctx, q, *targetID, userID); err != nil {
			return err
		}
	}
	return ensureCategory(ctx, q, categoryID, userID)
}

// ---- scheduler boundary ----

// ListDueCandidateRules returns active rules whose date range includes today, by ascending id.
func (r *SQLiteRepository) ListDueCandidateRules(ctx context.Context, today core.Date) ([]core.RecurringRule, error) {
	day := today.String()
	return r.queryRules(ctx,
		`SELECT `+recurringColumns+` `+recurringFrom+`
		 WHERE r.is_active = 1
		   AND r.start_date <= ?
		   AND (r.end_date IS NULL OR r.end_date >= ?)
		 ORDER BY r.recurring_id`, day, day)
}

// CountExecutionsOnDate counts transactions attributed to ruleID and dated date.
func (r *SQLiteRepository) CountExecutionsOnDate(ctx context.Context, ruleID int64, date core.Date) (int, error) {
	var count int
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM transactions WHERE recurring_transaction_id = ? AND date = ?`,
		ruleID, date.String()).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count executions: %w", err)
	}
	return count, nil
}

func (r *SQLiteRepository) UpdateLastExecution(ctx context.Context, ruleID int64, date core.Date) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE recurring_transactions SET last_execution = ? WHERE recurring_id = ?`,
		date.String(), ruleID)
	if err != nil {
		return fmt.Errorf("update last execution: %w", err)
	}
	return affectedOrNotFound(res)
}

// PostTransaction inserts tx and applies its balance effect in one database transaction.
// The rule attribution, when present, is written by the same INSERT.
func (r *SQLiteRepository) PostTransaction(ctx context.Context, tx core.Transaction) (id int64, err error) {
	dbtx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin transaction: %w", err)
	}
	defer func() {
		if err != nil {
			_ = dbtx.Rollback()
		}
	}()

	if err = ensureRefs(ctx, dbtx, tx.UserID, tx.AccountID, tx.TargetAccountID, tx.CategoryID); err != nil {
		return 0, err
	}

	cents := core.ToCents(tx.Amount)
	res, err := dbtx.ExecContext(ctx,
		`INSERT INTO transactions
		 (user_id, account_id, category_id, amount_cents, type, target_account_id, description,
		  payment_method, date, recurring_transaction_id)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		tx.UserID, tx.AccountID, tx.CategoryID, cents, string(tx.Kind), tx.TargetAccountID,
		tx.Description, nullableString(tx.PaymentMethod), tx.Date.String(), tx.RecurringRuleID)
	if err != nil {
		return 0, fmt.Errorf("insert transaction: %w", err)
	}
	if id, err = res.LastInsertId(); err != nil {
		return 0, fmt.Errorf("transaction id: %w", err)
	}
	if err = applyBalanceEffect(ctx, dbtx, tx, 1); err != nil {
		return 0, err
	}

	if err = dbtx.Commit(); err != nil {
		return 0, fmt.Errorf("commit transaction: %w", err)
	}

	slog.InfoContext(ctx, "Transaction posted",
		"transaction_id", id,
		"account_id", tx.AccountID,
		"type", tx.Kind,
		"amount", tx.Amount.StringFixed(2),
		"date", tx.Date.String())
	return id, nil
}

// applyBalanceEffect books tx against its accounts. sign -1 reverses a previous booking.
func applyBalanceEffect(ctx context.Context, q querier, tx core.Transaction, sign int64) error {
	cents := core.ToCents(tx.Amount) * sign
	delta := cents
	if tx.Kind != core.Income {
		delta = -cents
	}
	if err := adjustBalance(ctx, q, tx.AccountID, delta); err != nil {
		return err
	}
	if tx.Kind == core.Transfer && tx.TargetAccountID != nil {
		if err := adjustBalance(ctx, q, *tx.TargetAccountID, cents); err != nil {
			return err
		}
	}
	return nil
}

func adjustBalance(ctx context.Context, q querier, accountID, deltaCents int64) error {
	res, err := q.ExecContext(ctx,
		`UPDATE accounts SET balance_cents = balance_cents + ? WHERE account_id = ?`,
		deltaCents, accountID)
	if err != nil {
		return fmt.Errorf("adjust balance of account %d: %w", accountID, err)
	}
	if err := affectedOrNotFound(res); err != nil {
		return err
	}

	// deltas and stored balances are bounded, so the sum cannot wrap
	var balance int64
	if err := q.QueryRowContext(ctx,
		`SELECT balance_cents FROM accounts WHERE account_id = ?`, accountID).Scan(&balance); err != nil {
		return fmt.Errorf("read balance of account %d: %w", accountID, err)
	}
	if err := core.ValidateBalance(core.FromCents(balance)); err != nil {
		return fmt.Errorf("balance of account %d out of range: %w", accountID, err)
	}
	return nil
}

// AdvanceLastExecution moves last_execution forward to date. It never moves
// it back, so replayed or out-of-order events are harmless. Reports whether
// the row changed.
func (r *SQLiteRepository) AdvanceLastExecution(ctx context.Context, ruleID int64, date core.Date) (bool, error) {
	res, err := r.db.ExecContext(ctx,
		`UPDATE recurring_transactions SET last_execution = ?
		 WHERE recurring_id = ? AND (last_execution IS NULL OR last_execution < ?)`,
		date.String(), ruleID, date.String())
	if err != nil {
		return false, fmt.Errorf("advance last execution: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return n > 0, nil
}

// RepairLastExecutions sets last_execution to the newest attributed posting
// for every rule that lags behind it. Returns the number of rules fixed.
func (r *SQLiteRepository) RepairLastExecutions(ctx context.Context) (int64, error) {
	res, err := r.db.ExecContext(ctx,
		`UPDATE recurring_transactions
		 SET last_execution = (
		     SELECT MAX(t.date) FROM transactions t
		     WHERE t.recurring_transaction_id = recurring_transactions.recurring_id)
		 WHERE EXISTS (
		     SELECT 1 FROM transactions t
		     WHERE t.recurring_transaction_id = recurring_transactions.recurring_id
		       AND (recurring_transactions.last_execution IS NULL
		            OR t.date > recurring_transactions.last_execution))`)
	if err != nil {
		return 0, fmt.Errorf("repair last executions: %w", err)
	}
	return res.RowsAffected()
}

// AttributeTransaction stamps a known transaction id with the rule that produced it.
func (r *SQLiteRepository) AttributeTransaction(ctx context.Context, txID, ruleID int64) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE transactions SET recurring_transaction_id = ?
		 WHERE transaction_id = ? AND recurring_transaction_id IS NULL`, ruleID, txID)
	if err != nil {
		return fmt.Errorf("attribute transaction: %w", err)
	}
	return affectedOrNotFound(res)
}

// IsUniqueViolation reports whether err is a SQLite UNIQUE constraint failure.
func IsUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}

// ---- transactions ----

// TransactionFilter narrows ListTransactions. Zero values are ignored.
type TransactionFilter struct {
	StartDate   *core.Date
	EndDate     *core.Date
	Kind        core.TransactionKind
	AccountID   int64
	CategoryID  int64
	RecurringID int64
	Limit       int
}

func (r *SQLiteRepository) ListTransactions(ctx context.Context, userID int64, f TransactionFilter) ([]core.Transaction, error) {
	var (
		sb   strings.Builder
		args = []any{userID}
	)
	sb.WriteString(`SELECT ` + transactionColumns + ` FROM transactions WHERE user_id = ?`)

	if f.StartDate != nil {
		sb.WriteString(` AND date >= ?`)
		args = append(args, f.StartDate.String())
	}
	if f.EndDate != nil {
		sb.WriteString(` AND date <= ?`)
		args = append(args, f.EndDate.String())
	}
	if f.Kind != "" {
		sb.WriteString(` AND type = ?`)
		args = append(args, string(f.Kind))
	}
	if f.AccountID > 0 {
		sb.WriteString(` AND (account_id = ? OR target_account_id = ?)`)
		args = append(args, f.AccountID, f.AccountID)
	}
	if f.CategoryID > 0 {
		sb.WriteString(` AND category_id = ?`)
		args = append(args, f.CategoryID)
	}
	if f.RecurringID > 0 {
		sb.WriteString(` AND recurring_transaction_id = ?`)
		args = append(args, f.RecurringID)
	}
	sb.WriteString(` ORDER BY date DESC, created_at DESC, transaction_id DESC`)
	if f.Limit > 0 {
		sb.WriteString(` LIMIT ?`)
		args = append(args, f.Limit)
	}

	rows, err := r.db.QueryContext(ctx, sb.String(), args...)
	if err != nil {
		return nil, fmt.Errorf("query transactions: %w", err)
	}
	defer rows.Close()

	var txs []core.Transaction
	for rows.Next() {
		tx, err := scanTransaction(rows)
		if err != nil {
			return nil, err
		}
		txs = append(txs, tx)
	}
	return txs, rows.Err()
}

func (r *SQLiteRepository) GetTransaction(ctx context.Context, id, userID int64) (*core.Transaction, error) {
	tx, err := getTransaction(ctx, r.db, id, userID)
	if err != nil {
		return nil, err
	}
	return &tx, nil
}

func getTransaction(ctx context.Context, q querier, id, userID int64) (core.Transaction, error) {
	row := q.QueryRowContext(ctx,
		`SELECT `+transactionColumns+` FROM transactions WHERE transaction_id = ? AND user_id = ?`,
		id, userID)
	return scanTransaction(row)
}

// UpdateTransaction rewrites tx in place. The old balance effect is reversed
// and the new one applied in the same database transaction. The rule
// attribution of the stored row is kept.
func (r *SQLiteRepository) UpdateTransaction(ctx context.Context, tx core.Transaction) (err error) {
	dbtx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() {
		if err != nil {
			_ = dbtx.Rollback()
		}
	}()

	old, err := getTransaction(ctx, dbtx, tx.ID, tx.UserID)
	if err != nil {
		return err
	}
	if err = ensureRefs(ctx, dbtx, tx.UserID, tx.AccountID, tx.TargetAccountID, tx.CategoryID); err != nil {
		return err
	}
	if err = applyBalanceEffect(ctx, dbtx, old, -1); err != nil {
		return err
	}

	_, err = dbtx.ExecContext(ctx,
		`UPDATE transactions SET account_id = ?, category_id = ?, amount_cents = ?, type = ?,
		 target_account_id = ?, description = ?, payment_method = ?, date = ?
		 WHERE transaction_id = ? AND user_id = ?`,
		tx.AccountID, tx.CategoryID, core.ToCents(tx.Amount), string(tx.Kind), tx.TargetAccountID,
		tx.Description, nullableString(tx.PaymentMethod), tx.Date.String(), tx.ID, tx.UserID)
	if IsUniqueViolation(err) {
		return fmt.Errorf("rule %d already posted on %s: %w", *old.RecurringRuleID, tx.Date, ErrConflict)
	}
	if err != nil {
		return fmt.Errorf("update transaction: %w", err)
	}
	if err = applyBalanceEffect(ctx, dbtx, tx, 1); err != nil {
		return err
	}
	if err = dbtx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	slog.InfoContext(ctx, "Transaction updated", "transaction_id", tx.ID, "user_id", tx.UserID)
	return nil
}

// DeleteTransaction removes the transaction and reverses its balance effect.
func (r *SQLiteRepository) DeleteTransaction(ctx context.Context, id, userID int64) (err error) {
	dbtx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() {
		if err != nil {
			_ = dbtx.Rollback()
		}
	}()

	old, err := getTransaction(ctx, dbtx, id, userID)
	if err != nil {
		return err
	}
	if _, err = dbtx.ExecContext(ctx,
		`DELETE FROM transactions WHERE transaction_id = ? AND user_id = ?`, id, userID); err != nil {
		return fmt.Errorf("delete transaction: %w", err)
	}
	if err = applyBalanceEffect(ctx, dbtx, old, -1); err != nil {
		return err
	}
	if err = dbtx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	slog.InfoContext(ctx, "Transaction deleted", "transaction_id", id, "user_id", userID)
	return nil
}

const transactionColumns = `transaction_id, user_id, account_id, category_id, amount_cents, type,
	target_account_id, description, payment_method, date, recurring_transaction_id, created_at`

func scanTransaction(s scanner) (core.Transaction, error) {
	var (
		tx          core.Transaction
		categoryID  sql.NullInt64
		targetID    sql.NullInt64
		recurringID sql.NullInt64
		method      sql.NullString
		cents       int64
		kind, date  string
		createdAt   string
	)
	err := s.Scan(&tx.ID, &tx.UserID, &tx.AccountID, &categoryID, &cents, &kind,
		&targetID, &tx.Description, &method, &date, &recurringID, &createdAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return tx, ErrNotFound
		}
		return tx, fmt.Errorf("scan transaction: %w", err)
	}
	tx.CategoryID = nullableID(categoryID)
	tx.TargetAccountID = nullableID(targetID)
	tx.RecurringRuleID = nullableID(recurringID)
	tx.PaymentMethod = method.String
	tx.Amount = core.FromCents(cents)
	tx.Kind = core.TransactionKind(kind)
	tx.CreatedAt = parseTimestamp(createdAt)
	if tx.Date, err = core.ParseDate(date); err != nil {
		return tx, fmt.Errorf("transaction %d date: %w", tx.ID, err)
	}
	return tx, nil
}

// ---- helpers ----

func affectedOrNotFound(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func nullableID(v sql.NullInt64) *int64 {
	if !v.Valid {
		return nil
	}
	id := v.Int64
	return &id
}

func nullableDate(v sql.NullString) (*core.Date, error) {
	if !v.Valid || v.String == "" {
		return nil, nil
	}
	d, err := core.ParseDate(v.String)
	if err != nil {
		return nil, err
	}
	return &d, nil
}

func nullableString(s string) any {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	return s
}

func dateArg(d *core.Date) any {
	if d == nil || d.IsZero() {
		return nil
	}
	return d.String()
}

func parseTimestamp(s string) time.Time {
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}
	}
	return t
}
