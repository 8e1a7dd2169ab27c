package storage

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"coinly/internal/core"
)

const testUser = int64(7)

func newTestRepo(t *testing.T) *SQLiteRepository {
	t.Helper()
	repo, err := NewSQLiteRepository(filepath.Join(t.TempDir(), "coinly.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = repo.Close() })
	return repo
}

func mustAccount(t *testing.T, repo *SQLiteRepository, name, balance string) int64 {
	t.Helper()
	id, err := repo.CreateAccount(context.Background(), core.Account{
		UserID:  testUser,
		Name:    name,
		Balance: decimal.RequireFromString(balance),
	})
	require.NoError(t, err)
	return id
}

func ptr[T any](v T) *T { return &v }

func TestMigrationsAreIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "coinly.db")
	require.NoError(t, RunMigrations(path))
	require.NoError(t, RunMigrations(path))
}

func TestRecurringCRUD(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)
	accountID := mustAccount(t, repo, "Checking", "100")
	catID, err := repo.CreateCategory(ctx, core.Category{UserID: testUser, Name: "Rent", Kind: core.Expense})
	require.NoError(t, err)

	rule := core.RecurringRule{
		UserID:      testUser,
		AccountID:   accountID,
		CategoryID:  &catID,
		Amount:      decimal.RequireFromString("1200.50"),
		Kind:        core.Expense,
		Description: "Flat",
		Frequency:   core.Monthly,
		StartDate:   core.NewDate(2024, 1, 1),
		Active:      true,
	}
	id, err := repo.CreateRecurring(ctx, rule)
	require.NoError(t, err)

	got, err := repo.GetRecurring(ctx, id, testUser)
	require.NoError(t, err)
	assert.Equal(t, "Checking", got.AccountName)
	assert.Equal(t, "Rent", got.CategoryName)
	assert.True(t, got.Amount.Equal(rule.Amount))
	assert.Nil(t, got.EndDate)
	assert.Nil(t, got.LastExecution)
	assert.True(t, got.StartDate.Equal(rule.StartDate))

	_, err = repo.GetRecurring(ctx, id, testUser+1)
	assert.ErrorIs(t, err, ErrNotFound)

	got.EndDate = ptr(core.NewDate(2024, 12, 31))
	got.Description = "Flat rent"
	require.NoError(t, repo.UpdateRecurring(ctx, *got))

	updated, err := repo.GetRecurring(ctx, id, testUser)
	require.NoError(t, err)
	require.NotNil(t, updated.EndDate)
	assert.Equal(t, "2024-12-31", updated.EndDate.String())
	assert.Equal(t, "Flat rent", updated.Description)

	require.NoError(t, repo.SetRecurringActive(ctx, id, testUser, false))
	updated, err = repo.GetRecurring(ctx, id, testUser)
	require.NoError(t, err)
	assert.False(t, updated.Active)

	list, err := repo.ListRecurring(ctx, testUser)
	require.NoError(t, err)
	assert.Len(t, list, 1)

	require.NoError(t, repo.DeleteRecurring(ctx, id, testUser))
	assert.ErrorIs(t, repo.DeleteRecurring(ctx, id, testUser), ErrNotFound)
}

func TestCreateRecurringRejectsForeignAccount(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)
	other, err := repo.CreateAccount(ctx, core.Account{UserID: testUser + 1, Name: "Theirs"})
	require.NoError(t, err)

	_, err = repo.CreateRecurring(ctx, core.RecurringRule{
		UserID:    testUser,
		AccountID: other,
		Amount:    decimal.NewFromInt(5),
		Kind:      core.Expense,
		Frequency: core.Daily,
		StartDate: core.NewDate(2024, 1, 1),
		Active:    true,
	})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestListDueCandidateRules(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)
	accountID := mustAccount(t, repo, "Main", "0")
	today := core.NewDate(2024, 6, 15)

	base := core.RecurringRule{
		UserID:    testUser,
		AccountID: accountID,
		Amount:    decimal.NewFromInt(10),
		Kind:      core.Expense,
		Frequency: core.Daily,
		Active:    true,
	}

	create := func(mutate func(r *core.RecurringRule)) int64 {
		r := base
		mutate(&r)
		id, err := repo.CreateRecurring(ctx, r)
		require.NoError(t, err)
		return id
	}

	open := create(func(r *core.RecurringRule) { r.StartDate = core.NewDate(2024, 1, 1) })
	endsToday := create(func(r *core.RecurringRule) {
		r.StartDate = core.NewDate(2024, 1, 1)
		r.EndDate = ptr(today)
	})
	create(func(r *core.RecurringRule) { // expired
		r.StartDate = core.NewDate(2024, 1, 1)
		r.EndDate = ptr(core.NewDate(2024, 6, 14))
	})
	create(func(r *core.RecurringRule) { r.StartDate = core.NewDate(2024, 6, 16) }) // future
	create(func(r *core.RecurringRule) { // inactive
		r.StartDate = core.NewDate(2024, 1, 1)
		r.Active = false
	})
	startsToday := create(func(r *core.RecurringRule) { r.StartDate = today })

	rules, err := repo.ListDueCandidateRules(ctx, today)
	require.NoError(t, err)

	var ids []int64
	for _, r := range rules {
		ids = append(ids, r.ID)
	}
	assert.Equal(t, []int64{open, endsToday, startsToday}, ids)
}

func TestPostTransactionBalances(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)
	checking := mustAccount(t, repo, "Checking", "100.00")
	savings := mustAccount(t, repo, "Savings", "0")
	day := core.NewDate(2024, 3, 1)

	post := func(kind core.TransactionKind, amount string, target *int64) {
		_, err := repo.PostTransaction(ctx, core.Transaction{
			UserID:          testUser,
			AccountID:       checking,
			Amount:          decimal.RequireFromString(amount),
			Kind:            kind,
			TargetAccountID: target,
			Date:            day,
		})
		require.NoError(t, err)
	}

	post(core.Income, "50.25", nil)
	post(core.Expense, "20.00", nil)
	post(core.Transfer, "30.00", &savings)

	a, err := repo.GetAccount(ctx, checking, testUser)
	require.NoError(t, err)
	assert.Equal(t, "100.25", a.Balance.StringFixed(2))

	s, err := repo.GetAccount(ctx, savings, testUser)
	require.NoError(t, err)
	assert.Equal(t, "30.00", s.Balance.StringFixed(2))

	txs, err := repo.ListTransactions(ctx, testUser, TransactionFilter{Kind: core.Transfer})
	require.NoError(t, err)
	require.Len(t, txs, 1)
	assert.Equal(t, savings, *txs[0].TargetAccountID)
}

func TestPostTransactionRollsBackOnUnknownTarget(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)
	checking := mustAccount(t, repo, "Checking", "10")

	_, err := repo.PostTransaction(ctx, core.Transaction{
		UserID:          testUser,
		AccountID:       checking,
		Amount:          decimal.NewFromInt(5),
		Kind:            core.Transfer,
		TargetAccountID: ptr(int64(9999)),
		Date:            core.NewDate(2024, 3, 1),
	})
	require.ErrorIs(t, err, ErrNotFound)

	a, err := repo.GetAccount(ctx, checking, testUser)
	require.NoError(t, err)
	assert.Equal(t, "10.00", a.Balance.StringFixed(2))

	txs, err := repo.ListTransactions(ctx, testUser, TransactionFilter{})
	require.NoError(t, err)
	assert.Empty(t, txs)
}

func TestBalancesStayWithinBounds(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)

	_, err := repo.CreateAccount(ctx, core.Account{UserID: testUser, Name: "Huge", Balance: decimal.RequireFromString("1e17")})
	require.ErrorIs(t, err, core.ErrInvalidAmount)

	nearMax := mustAccount(t, repo, "Near max", "999999999990.00")
	_, err = repo.PostTransaction(ctx, core.Transaction{
		UserID: testUser, AccountID: nearMax, Amount: decimal.NewFromInt(100),
		Kind: core.Income, Date: core.NewDate(2024, 3, 1),
	})
	require.ErrorIs(t, err, core.ErrInvalidAmount)

	a, err := repo.GetAccount(ctx, nearMax, testUser)
	require.NoError(t, err)
	assert.Equal(t, "999999999990.00", a.Balance.StringFixed(2))

	a.Balance = decimal.RequireFromString("-184467440737095516.16")
	assert.ErrorIs(t, repo.UpdateAccount(ctx, *a), core.ErrInvalidAmount)

	txs, err := repo.ListTransactions(ctx, testUser, TransactionFilter{})
	require.NoError(t, err)
	assert.Empty(t, txs)
}

func TestRuleAttributionAndDuplicateIndex(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)
	accountID := mustAccount(t, repo, "Main", "0")
	day := core.NewDate(2024, 2, 1)

	ruleID, err := repo.CreateRecurring(ctx, core.RecurringRule{
		UserID:    testUser,
		AccountID: accountID,
		Amount:    decimal.NewFromInt(15),
		Kind:      core.Income,
		Frequency: core.Monthly,
		StartDate: core.NewDate(2024, 1, 1),
		Active:    true,
	})
	require.NoError(t, err)

	count, err := repo.CountExecutionsOnDate(ctx, ruleID, day)
	require.NoError(t, err)
	assert.Zero(t, count)

	tx := core.Transaction{
		UserID:          testUser,
		AccountID:       accountID,
		Amount:          decimal.NewFromInt(15),
		Kind:            core.Income,
		Description:     "[AUTO] Salary",
		PaymentMethod:   core.AutoPaymentMethod,
		Date:            day,
		RecurringRuleID: &ruleID,
	}
	txID, err := repo.PostTransaction(ctx, tx)
	require.NoError(t, err)

	count, err = repo.CountExecutionsOnDate(ctx, ruleID, day)
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	_, err = repo.PostTransaction(ctx, tx)
	require.Error(t, err)
	assert.True(t, IsUniqueViolation(err), "expected unique violation, got %v", err)

	// The failed duplicate must not have touched the balance.
	a, err := repo.GetAccount(ctx, accountID, testUser)
	require.NoError(t, err)
	assert.Equal(t, "15.00", a.Balance.StringFixed(2))

	txs, err := repo.ListTransactions(ctx, testUser, TransactionFilter{RecurringID: ruleID})
	require.NoError(t, err)
	require.Len(t, txs, 1)
	assert.Equal(t, txID, txs[0].ID)
	assert.Equal(t, core.AutoPaymentMethod, txs[0].PaymentMethod)

	// Already attributed rows are never re-stamped.
	assert.ErrorIs(t, repo.AttributeTransaction(ctx, txID, ruleID), ErrNotFound)

	require.NoError(t, repo.UpdateLastExecution(ctx, ruleID, day))
	rule, err := repo.GetRecurring(ctx, ruleID, testUser)
	require.NoError(t, err)
	require.NotNil(t, rule.LastExecution)
	assert.Equal(t, "2024-02-01", rule.LastExecution.String())
}

func TestAttributeTransactionExactID(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)
	accountID := mustAccount(t, repo, "Main", "0")
	day := core.NewDate(2024, 2, 1)

	ruleID, err := repo.CreateRecurring(ctx, core.RecurringRule{
		UserID: testUser, AccountID: accountID, Amount: decimal.NewFromInt(3),
		Kind: core.Expense, Frequency: core.Daily, StartDate: day, Active: true,
	})
	require.NoError(t, err)

	// Two identical rows: only the stamped id may carry the rule.
	first, err := repo.PostTransaction(ctx, core.Transaction{
		UserID: testUser, AccountID: accountID, Amount: decimal.NewFromInt(3), Kind: core.Expense, Date: day,
	})
	require.NoError(t, err)
	second, err := repo.PostTransaction(ctx, core.Transaction{
		UserID: testUser, AccountID: accountID, Amount: decimal.NewFromInt(3), Kind: core.Expense, Date: day,
	})
	require.NoError(t, err)

	require.NoError(t, repo.AttributeTransaction(ctx, first, ruleID))

	txs, err := repo.ListTransactions(ctx, testUser, TransactionFilter{RecurringID: ruleID})
	require.NoError(t, err)
	require.Len(t, txs, 1)
	assert.Equal(t, first, txs[0].ID)
	assert.NotEqual(t, second, txs[0].ID)
}

func TestFindCategoryByName(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)
	expense, err := repo.CreateCategory(ctx, core.Category{UserID: testUser, Name: "Groceries", Kind: core.Expense})
	require.NoError(t, err)
	income, err := repo.CreateCategory(ctx, core.Category{UserID: testUser, Name: "Groceries", Kind: core.Income})
	require.NoError(t, err)

	got, err := repo.FindCategoryByName(ctx, testUser, " groceries ", core.Expense)
	require.NoError(t, err)
	assert.Equal(t, expense, got)

	got, err = repo.FindCategoryByName(ctx, testUser, "GROCERIES", core.Income)
	require.NoError(t, err)
	assert.Equal(t, income, got)

	_, err = repo.FindCategoryByName(ctx, testUser, "Travel", core.Expense)
	assert.True(t, errors.Is(err, ErrNotFound))
}

func TestForeignCategoryIsRejected(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)
	accountID := mustAccount(t, repo, "Main", "10")
	theirs, err := repo.CreateCategory(ctx, core.Category{UserID: testUser + 1, Name: "Theirs", Kind: core.Expense})
	require.NoError(t, err)

	rule := core.RecurringRule{
		UserID:     testUser,
		AccountID:  accountID,
		CategoryID: &theirs,
		Amount:     decimal.NewFromInt(5),
		Kind:       core.Expense,
		Frequency:  core.Monthly,
		StartDate:  core.NewDate(2024, 1, 1),
		Active:     true,
	}
	_, err = repo.CreateRecurring(ctx, rule)
	assert.ErrorIs(t, err, ErrNotFound)

	rule.CategoryID = nil
	ruleID, err := repo.CreateRecurring(ctx, rule)
	require.NoError(t, err)
	rule.ID = ruleID
	rule.CategoryID = &theirs
	assert.ErrorIs(t, repo.UpdateRecurring(ctx, rule), ErrNotFound)

	_, err = repo.PostTransaction(ctx, core.Transaction{
		UserID:     testUser,
		AccountID:  accountID,
		CategoryID: &theirs,
		Amount:     decimal.NewFromInt(5),
		Kind:       core.Expense,
		Date:       core.NewDate(2024, 1, 1),
	})
	assert.ErrorIs(t, err, ErrNotFound)

	a, err := repo.GetAccount(ctx, accountID, testUser)
	require.NoError(t, err)
	assert.Equal(t, "10.00", a.Balance.StringFixed(2))
}

func TestUpdateTransactionRebooksBalances(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)
	checking := mustAccount(t, repo, "Checking", "100")
	savings := mustAccount(t, repo, "Savings", "0")

	id, err := repo.PostTransaction(ctx, core.Transaction{
		UserID: testUser, AccountID: checking, Amount: decimal.NewFromInt(40),
		Kind: core.Expense, Description: "Shoes", Date: core.NewDate(2024, 3, 1),
	})
	require.NoError(t, err)

	tx, err := repo.GetTransaction(ctx, id, testUser)
	require.NoError(t, err)
	assert.Equal(t, "Shoes", tx.Description)

	tx.Kind = core.Transfer
	tx.Amount = decimal.NewFromInt(25)
	tx.TargetAccountID = &savings
	require.NoError(t, repo.UpdateTransaction(ctx, *tx))

	balance := func(id int64) string {
		a, err := repo.GetAccount(ctx, id, testUser)
		require.NoError(t, err)
		return a.Balance.StringFixed(2)
	}
	assert.Equal(t, "75.00", balance(checking))
	assert.Equal(t, "25.00", balance(savings))

	require.NoError(t, repo.DeleteTransaction(ctx, id, testUser))
	assert.Equal(t, "100.00", balance(checking))
	assert.Equal(t, "0.00", balance(savings))

	_, err = repo.GetTransaction(ctx, id, testUser)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.ErrorIs(t, repo.DeleteTransaction(ctx, id, testUser), ErrNotFound)
}

func TestUpdateTransactionIsOwnerScoped(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)
	checking := mustAccount(t, repo, "Checking", "100")

	id, err := repo.PostTransaction(ctx, core.Transaction{
		UserID: testUser, AccountID: checking, Amount: decimal.NewFromInt(10),
		Kind: core.Income, Date: core.NewDate(2024, 3, 1),
	})
	require.NoError(t, err)

	err = repo.UpdateTransaction(ctx, core.Transaction{
		ID: id, UserID: testUser + 1, AccountID: checking, Amount: decimal.NewFromInt(1),
		Kind: core.Income, Date: core.NewDate(2024, 3, 1),
	})
	assert.ErrorIs(t, err, ErrNotFound)
	assert.ErrorIs(t, repo.DeleteTransaction(ctx, id, testUser+1), ErrNotFound)

	a, err := repo.GetAccount(ctx, checking, testUser)
	require.NoError(t, err)
	assert.Equal(t, "110.00", a.Balance.StringFixed(2))
}

func TestUpdateTransactionKeepsRuleDateUnique(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)
	accountID := mustAccount(t, repo, "Main", "0")
	ruleID, err := repo.CreateRecurring(ctx, core.RecurringRule{
		UserID: testUser, AccountID: accountID, Amount: decimal.NewFromInt(2),
		Kind: core.Expense, Frequency: core.Daily, StartDate: core.NewDate(2024, 1, 1), Active: true,
	})
	require.NoError(t, err)

	for _, day := range []int{1, 2} {
		_, err := repo.PostTransaction(ctx, core.Transaction{
			UserID: testUser, AccountID: accountID, Amount: decimal.NewFromInt(2),
			Kind: core.Expense, Date: core.NewDate(2024, 1, day), RecurringRuleID: &ruleID,
		})
		require.NoError(t, err)
	}
	txs, err := repo.ListTransactions(ctx, testUser, TransactionFilter{RecurringID: ruleID})
	require.NoError(t, err)
	require.Len(t, txs, 2)

	moved := txs[0]
	moved.Date = txs[1].Date
	assert.ErrorIs(t, repo.UpdateTransaction(ctx, moved), ErrConflict)

	a, err := repo.GetAccount(ctx, accountID, testUser)
	require.NoError(t, err)
	assert.Equal(t, "-4.00", a.Balance.StringFixed(2))
}

func TestAccountAndCategoryMaintenance(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)
	accountID := mustAccount(t, repo, "Wallet", "5")

	require.NoError(t, repo.UpdateAccount(ctx, core.Account{
		ID: accountID, UserID: testUser, Name: "Cash", Balance: decimal.NewFromInt(7), Currency: "EUR",
	}))
	a, err := repo.GetAccount(ctx, accountID, testUser)
	require.NoError(t, err)
	assert.Equal(t, "Cash", a.Name)
	assert.Equal(t, "EUR", a.Currency)
	assert.Equal(t, "7.00", a.Balance.StringFixed(2))
	assert.ErrorIs(t, repo.UpdateAccount(ctx, core.Account{ID: accountID, UserID: testUser + 1, Name: "x", Currency: "EUR"}), ErrNotFound)

	found, err := repo.FindOrCreateAccount(ctx, testUser, " cash ", "PLN")
	require.NoError(t, err)
	assert.Equal(t, accountID, found)
	created, err := repo.FindOrCreateAccount(ctx, testUser, "Card", "PLN")
	require.NoError(t, err)
	assert.NotEqual(t, accountID, created)

	catID, err := repo.CreateCategory(ctx, core.Category{UserID: testUser, Name: "Food", Kind: core.Expense})
	require.NoError(t, err)
	_, err = repo.CreateCategory(ctx, core.Category{UserID: testUser, Name: "Food", Kind: core.Expense})
	assert.ErrorIs(t, err, ErrConflict)
	otherID, err := repo.CreateCategory(ctx, core.Category{UserID: testUser, Name: "Fun", Kind: core.Expense})
	require.NoError(t, err)
	assert.ErrorIs(t, repo.UpdateCategory(ctx, core.Category{ID: otherID, UserID: testUser, Name: "Food", Kind: core.Expense}), ErrConflict)
	require.NoError(t, repo.UpdateCategory(ctx, core.Category{ID: otherID, UserID: testUser, Name: "Games", Kind: core.Expense, Color: "#00ff00"}))
	games, err := repo.GetCategory(ctx, otherID, testUser)
	require.NoError(t, err)
	assert.Equal(t, "Games", games.Name)
	assert.Equal(t, "#00ff00", games.Color)
	_, err = repo.GetCategory(ctx, otherID, testUser+1)
	assert.ErrorIs(t, err, ErrNotFound)

	txID, err := repo.PostTransaction(ctx, core.Transaction{
		UserID: testUser, AccountID: accountID, CategoryID: &catID, Amount: decimal.NewFromInt(1),
		Kind: core.Expense, Date: core.NewDate(2024, 1, 1),
	})
	require.NoError(t, err)
	require.NoError(t, repo.DeleteCategory(ctx, catID, testUser))
	tx, err := repo.GetTransaction(ctx, txID, testUser)
	require.NoError(t, err)
	assert.Nil(t, tx.CategoryID)
	assert.ErrorIs(t, repo.DeleteCategory(ctx, catID, testUser), ErrNotFound)

	require.NoError(t, repo.DeleteAccount(ctx, accountID, testUser))
	_, err = repo.GetTransaction(ctx, txID, testUser)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.ErrorIs(t, repo.DeleteAccount(ctx, accountID, testUser), ErrNotFound)
}

func TestLastExecutionRepair(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)
	accountID := mustAccount(t, repo, "Main", "0")

	newRule := func() int64 {
		id, err := repo.CreateRecurring(ctx, core.RecurringRule{
			UserID: testUser, AccountID: accountID, Amount: decimal.NewFromInt(1),
			Kind: core.Expense, Frequency: core.Daily, StartDate: core.NewDate(2024, 1, 1), Active: true,
		})
		require.NoError(t, err)
		return id
	}
	post := func(ruleID int64, date core.Date) {
		_, err := repo.PostTransaction(ctx, core.Transaction{
			UserID: testUser, AccountID: accountID, Amount: decimal.NewFromInt(1),
			Kind: core.Expense, Date: date, RecurringRuleID: &ruleID,
		})
		require.NoError(t, err)
	}
	lastExecution := func(ruleID int64) string {
		rule, err := repo.GetRecurring(ctx, ruleID, testUser)
		require.NoError(t, err)
		if rule.LastExecution == nil {
			return ""
		}
		return rule.LastExecution.String()
	}

	lagging := newRule()
	post(lagging, core.NewDate(2024, 1, 1))
	post(lagging, core.NewDate(2024, 1, 2))

	current := newRule()
	post(current, core.NewDate(2024, 1, 2))
	require.NoError(t, repo.UpdateLastExecution(ctx, current, core.NewDate(2024, 1, 2)))

	idle := newRule()

	fixed, err := repo.RepairLastExecutions(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), fixed)
	assert.Equal(t, "2024-01-02", lastExecution(lagging))
	assert.Equal(t, "2024-01-02", lastExecution(current))
	assert.Empty(t, lastExecution(idle))

	changed, err := repo.AdvanceLastExecution(ctx, lagging, core.NewDate(2024, 1, 1))
	require.NoError(t, err)
	assert.False(t, changed, "older dates never move last_execution back")

	changed, err = repo.AdvanceLastExecution(ctx, idle, core.NewDate(2024, 1, 5))
	require.NoError(t, err)
	assert.True(t, changed)
	assert.Equal(t, "2024-01-05", lastExecution(idle))

	changed, err = repo.AdvanceLastExecution(ctx, 9999, core.NewDate(2024, 1, 5))
	require.NoError(t, err)
	assert.False(t, changed)
}
