package http

import (
	"context"
	"strings"
	"sync"

	"github.com/shopspring/decimal"

	"coinly/internal/core"
	"coinly/internal/services"
	"coinly/internal/storage"
)

type fakeStore struct {
	mu           sync.Mutex
	pingErr      error
	nextID       int64
	accounts     map[int64]core.Account
	categories   []core.Category
	rules        map[int64]core.RecurringRule
	transactions map[int64]core.Transaction
	budgets      map[int64]core.Budget
	goals        map[int64]core.SavingsGoal
	lastFilter   storage.TransactionFilter
	lastRange    [2]core.Date
	lastKind     core.TransactionKind
	categoryHits int
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		nextID: 100,
		accounts: map[int64]core.Account{
			1: {ID: 1, UserID: caller, Name: "Checking", Currency: "PLN"},
			2: {ID: 2, UserID: caller, Name: "Savings", Currency: "PLN"},
			9: {ID: 9, UserID: 8, Name: "Someone else", Currency: "PLN"},
		},
		categories: []core.Category{
			{ID: 3, UserID: caller, Name: "Food", Kind: core.Expense},
			{ID: 4, UserID: 8, Name: "Theirs", Kind: core.Expense},
		},
		rules:        map[int64]core.RecurringRule{},
		transactions: map[int64]core.Transaction{},
		budgets:      map[int64]core.Budget{},
		goals:        map[int64]core.SavingsGoal{},
	}
}

func (f *fakeStore) id() int64 {
	f.nextID++
	return f.nextID
}

func (f *fakeStore) owns(accountID, userID int64) bool {
	a, ok := f.accounts[accountID]
	return ok && a.UserID == userID
}

func (f *fakeStore) ownsCategory(id *int64, userID int64) bool {
	if id == nil {
		return true
	}
	for _, c := range f.categories {
		if c.ID == *id {
			return c.UserID == userID
		}
	}
	return false
}

func (f *fakeStore) Ping(context.Context) error { return f.pingErr }

// ---- accounts ----

func (f *fakeStore) CreateAccount(_ context.Context, a core.Account) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	a.ID = f.id()
	f.accounts[a.ID] = a
	return a.ID, nil
}

func (f *fakeStore) ListAccounts(_ context.Context, userID int64) ([]core.Account, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []core.Account
	for _, a := range f.accounts {
		if a.UserID == userID {
			out = append(out, a)
		}
	}
	return out, nil
}

func (f *fakeStore) GetAccount(_ context.Context, id, userID int64) (*core.Account, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.owns(id, userID) {
		return nil, storage.ErrNotFound
	}
	a := f.accounts[id]
	return &a, nil
}

func (f *fakeStore) UpdateAccount(_ context.Context, a core.Account) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.owns(a.ID, a.UserID) {
		return storage.ErrNotFound
	}
	f.accounts[a.ID] = a
	return nil
}

func (f *fakeStore) DeleteAccount(_ context.Context, id, userID int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.owns(id, userID) {
		return storage.ErrNotFound
	}
	delete(f.accounts, id)
	return nil
}

func (f *fakeStore) FindOrCreateAccount(_ context.Context, userID int64, name, currency string) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, a := range f.accounts {
		if a.UserID == userID && strings.EqualFold(a.Name, strings.TrimSpace(name)) {
			return a.ID, nil
		}
	}
	a := core.Account{ID: f.id(), UserID: userID, Name: strings.TrimSpace(name), Currency: currency}
	f.accounts[a.ID] = a
	return a.ID, nil
}

func (f *fakeStore) accountByName(name string) (core.Account, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, a := range f.accounts {
		if a.Name == name {
			return a, true
		}
	}
	return core.Account{}, false
}

// ---- categories ----

func (f *fakeStore) CreateCategory(_ context.Context, c core.Category) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, existing := range f.categories {
		if existing.UserID == c.UserID && existing.Kind == c.Kind && strings.EqualFold(existing.Name, c.Name) {
			return 0, storage.ErrConflict
		}
	}
	c.ID = f.id()
	f.categories = append(f.categories, c)
	return c.ID, nil
}

func (f *fakeStore) ListCategories(_ context.Context, userID int64) ([]core.Category, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []core.Category
	for _, c := range f.categories {
		if c.UserID == userID {
			out = append(out, c)
		}
	}
	return out, nil
}

func (f *fakeStore) GetCategory(_ context.Context, id, userID int64) (*core.Category, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, c := range f.categories {
		if c.ID == id && c.UserID == userID {
			return &c, nil
		}
	}
	return nil, storage.ErrNotFound
}

func (f *fakeStore) UpdateCategory(_ context.Context, c core.Category) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i, existing := range f.categories {
		if existing.ID == c.ID && existing.UserID == c.UserID {
			f.categories[i] = c
			return nil
		}
	}
	return storage.ErrNotFound
}

func (f *fakeStore) DeleteCategory(_ context.Context, id, userID int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i, c := range f.categories {
		if c.ID == id && c.UserID == userID {
			f.categories = append(f.categories[:i], f.categories[i+1:]...)
			return nil
		}
	}
	return storage.ErrNotFound
}

func (f *fakeStore) FindCategoryByName(_ context.Context, userID int64, name string, kind core.TransactionKind) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.categoryHits++
	for _, c := range f.categories {
		if c.UserID == userID && c.Kind == kind && strings.EqualFold(c.Name, strings.TrimSpace(name)) {
			return c.ID, nil
		}
	}
	return 0, storage.ErrNotFound
}

// ---- recurring rules ----

func (f *fakeStore) ListRecurring(_ context.Context, userID int64) ([]core.RecurringRule, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []core.RecurringRule
	for _, r := range f.rules {
		if r.UserID == userID {
			out = append(out, r)
		}
	}
	return out, nil
}

func (f *fakeStore) GetRecurring(_ context.Context, id, userID int64) (*core.RecurringRule, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	r, ok := f.rules[id]
	if !ok || r.UserID != userID {
		return nil, storage.ErrNotFound
	}
	r.AccountName = f.accounts[r.AccountID].Name
	return &r, nil
}

func (f *fakeStore) CreateRecurring(_ context.Context, rule core.RecurringRule) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.owns(rule.AccountID, rule.UserID) || !f.ownsCategory(rule.CategoryID, rule.UserID) {
		return 0, storage.ErrNotFound
	}
	rule.ID = f.id()
	f.rules[rule.ID] = rule
	return rule.ID, nil
}

func (f *fakeStore) UpdateRecurring(_ context.Context, rule core.RecurringRule) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if existing, ok := f.rules[rule.ID]; !ok || existing.UserID != rule.UserID {
		return storage.ErrNotFound
	}
	if !f.ownsCategory(rule.CategoryID, rule.UserID) {
		return storage.ErrNotFound
	}
	f.rules[rule.ID] = rule
	return nil
}

func (f *fakeStore) DeleteRecurring(_ context.Context, id, userID int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if r, ok := f.rules[id]; !ok || r.UserID != userID {
		return storage.ErrNotFound
	}
	delete(f.rules, id)
	return nil
}

func (f *fakeStore) SetRecurringActive(_ context.Context, id, userID int64, active bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	r, ok := f.rules[id]
	if !ok || r.UserID != userID {
		return storage.ErrNotFound
	}
	r.Active = active
	f.rules[id] = r
	return nil
}

func (f *fakeStore) rule(id int64) core.RecurringRule {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.rules[id]
}

// ---- transactions ----

func (f *fakeStore) ListTransactions(_ context.Context, _ int64, filter storage.TransactionFilter) ([]core.Transaction, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lastFilter = filter
	return nil, nil
}

func (f *fakeStore) GetTransaction(_ context.Context, id, userID int64) (*core.Transaction, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	tx, ok := f.transactions[id]
	if !ok || tx.UserID != userID {
		return nil, storage.ErrNotFound
	}
	return &tx, nil
}

func (f *fakeStore) UpdateTransaction(_ context.Context, tx core.Transaction) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if existing, ok := f.transactions[tx.ID]; !ok || existing.UserID != tx.UserID {
		return storage.ErrNotFound
	}
	if !f.owns(tx.AccountID, tx.UserID) || !f.ownsCategory(tx.CategoryID, tx.UserID) {
		return storage.ErrNotFound
	}
	f.transactions[tx.ID] = tx
	return nil
}

func (f *fakeStore) DeleteTransaction(_ context.Context, id, userID int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if tx, ok := f.transactions[id]; !ok || tx.UserID != userID {
		return storage.ErrNotFound
	}
	delete(f.transactions, id)
	return nil
}

func (f *fakeStore) seedTransaction(tx core.Transaction) int64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	tx.ID = f.id()
	if tx.UserID == 0 {
		tx.UserID = caller
	}
	f.transactions[tx.ID] = tx
	return tx.ID
}

func (f *fakeStore) TransactionStats(_ context.Context, _ int64, start, end *core.Date) (*core.TransactionStats, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lastFilter = storage.TransactionFilter{StartDate: start, EndDate: end}
	return &core.TransactionStats{TotalTransactions: len(f.transactions)}, nil
}

// ---- reports ----

func (f *fakeStore) MonthlyReport(_ context.Context, _ int64, year, month int) (*core.MonthlyReport, error) {
	start, end := core.MonthRange(year, month)
	return &core.MonthlyReport{
		Period:     core.ReportPeriod{Year: year, Month: month, Start: start, End: end},
		ByCategory: []core.CategoryTotal{},
	}, nil
}

func (f *fakeStore) YearlyReport(_ context.Context, _ int64, year int) (*core.YearlyReport, error) {
	return &core.YearlyReport{
		Period:  core.ReportPeriod{Year: year, Start: core.NewDate(year, 1, 1), End: core.NewDate(year, 12, 31)},
		ByMonth: []core.MonthTotals{},
	}, nil
}

func (f *fakeStore) CategoryReport(_ context.Context, _ int64, start, end core.Date, kind core.TransactionKind) ([]core.CategoryTotal, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lastRange = [2]core.Date{start, end}
	f.lastKind = kind
	return []core.CategoryTotal{}, nil
}

func (f *fakeStore) IncomeVsExpenses(_ context.Context, _ int64, start, end core.Date) ([]core.PeriodBalance, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lastRange = [2]core.Date{start, end}
	return []core.PeriodBalance{{Period: start.Format("2006-01")}}, nil
}

// ---- budgets ----

func (f *fakeStore) ListBudgets(_ context.Context, userID int64) ([]core.Budget, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []core.Budget
	for _, b := range f.budgets {
		if b.UserID == userID {
			out = append(out, b)
		}
	}
	return out, nil
}

func (f *fakeStore) GetBudget(_ context.Context, id, userID int64) (*core.Budget, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	b, ok := f.budgets[id]
	if !ok || b.UserID != userID {
		return nil, storage.ErrNotFound
	}
	return &b, nil
}

func (f *fakeStore) CreateBudget(_ context.Context, b core.Budget) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.ownsCategory(&b.CategoryID, b.UserID) {
		return 0, storage.ErrNotFound
	}
	b.ID = f.id()
	f.budgets[b.ID] = b
	return b.ID, nil
}

func (f *fakeStore) UpdateBudget(_ context.Context, b core.Budget) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if existing, ok := f.budgets[b.ID]; !ok || existing.UserID != b.UserID {
		return storage.ErrNotFound
	}
	if !f.ownsCategory(&b.CategoryID, b.UserID) {
		return storage.ErrNotFound
	}
	f.budgets[b.ID] = b
	return nil
}

func (f *fakeStore) DeleteBudget(_ context.Context, id, userID int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if b, ok := f.budgets[id]; !ok || b.UserID != userID {
		return storage.ErrNotFound
	}
	delete(f.budgets, id)
	return nil
}

func (f *fakeStore) BudgetSpent(context.Context, core.Budget) (decimal.Decimal, error) {
	return decimal.RequireFromString("75.50"), nil
}

// ---- savings goals ----

func (f *fakeStore) ListSavingsGoals(_ context.Context, userID int64) ([]core.SavingsGoal, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []core.SavingsGoal
	for _, g := range f.goals {
		if g.UserID == userID {
			out = append(out, g)
		}
	}
	return out, nil
}

func (f *fakeStore) GetSavingsGoal(_ context.Context, id, userID int64) (*core.SavingsGoal, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	g, ok := f.goals[id]
	if !ok || g.UserID != userID {
		return nil, storage.ErrNotFound
	}
	return &g, nil
}

func (f *fakeStore) CreateSavingsGoal(_ context.Context, g core.SavingsGoal) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	g.ID = f.id()
	f.goals[g.ID] = g
	return g.ID, nil
}

func (f *fakeStore) UpdateSavingsGoal(_ context.Context, g core.SavingsGoal) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if existing, ok := f.goals[g.ID]; !ok || existing.UserID != g.UserID {
		return storage.ErrNotFound
	}
	f.goals[g.ID] = g
	return nil
}

func (f *fakeStore) DeleteSavingsGoal(_ context.Context, id, userID int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if g, ok := f.goals[id]; !ok || g.UserID != userID {
		return storage.ErrNotFound
	}
	delete(f.goals, id)
	return nil
}

func (f *fakeStore) DepositToSavingsGoal(_ context.Context, id, userID int64, amount decimal.Decimal) (*core.SavingsGoal, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	g, ok := f.goals[id]
	if !ok || g.UserID != userID {
		return nil, storage.ErrNotFound
	}
	if err := g.Deposit(amount); err != nil {
		return nil, err
	}
	f.goals[id] = g
	return &g, nil
}

// ---- services ----

type fakePoster struct {
	mu     sync.Mutex
	posted []core.Transaction
}

func (p *fakePoster) Post(_ context.Context, tx core.Transaction) (int64, error) {
	if err := tx.Validate(); err != nil {
		return 0, err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.posted = append(p.posted, tx)
	return int64(500 + len(p.posted)), nil
}

type fakeScheduler struct {
	items   []services.PreviewItem
	summary services.Summary
	err     error
	runs    int
}

func (f *fakeScheduler) Preview(context.Context, core.Date) ([]services.PreviewItem, error) {
	return f.items, f.err
}

func (f *fakeScheduler) Run(_ context.Context, today core.Date) (services.Summary, error) {
	f.runs++
	f.summary.Date = today
	return f.summary, f.err
}
