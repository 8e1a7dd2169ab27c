package http

import (
	"net/http"
	"strings"

	"coinly/internal/core"
	"coinly/internal/storage"
)

const maxTransactionLimit = 1000

func (s *Server) handleListAccounts(w http.ResponseWriter, r *http.Request) {
	accounts, err := s.store.ListAccounts(r.Context(), userID(r))
	if err != nil {
		respondErr(w, r, err)
		return
	}
	views := make([]accountView, 0, len(accounts))
	for _, a := range accounts {
		views = append(views, newAccountView(a))
	}
	respondData(w, http.StatusOK, views)
}

func (s *Server) handleCreateAccount(w http.ResponseWriter, r *http.Request) {
	var req accountRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondErr(w, r, err)
		return
	}

	account := core.Account{
		UserID:   userID(r),
		Name:     strings.TrimSpace(req.Name),
		Balance:  req.Balance.Round(2),
		Currency: strings.ToUpper(strings.TrimSpace(req.Currency)),
	}
	if account.Currency == "" {
		account.Currency = s.defaultCurrency
	}
	if err := account.Validate(); err != nil {
		respondErr(w, r, err)
		return
	}

	id, err := s.store.CreateAccount(r.Context(), account)
	if err != nil {
		respondErr(w, r, err)
		return
	}
	created, err := s.store.GetAccount(r.Context(), id, account.UserID)
	if err != nil {
		respondErr(w, r, err)
		return
	}
	respondMessage(w, http.StatusCreated, "Account created", newAccountView(*created))
}

func (s *Server) handleGetAccount(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		respondErr(w, r, err)
		return
	}
	account, err := s.store.GetAccount(r.Context(), id, userID(r))
	if err != nil {
		respondErr(w, r, err)
		return
	}
	respondData(w, http.StatusOK, newAccountView(*account))
}

// handleUpdateAccount overwrites the fields present in the body.
func (s *Server) handleUpdateAccount(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		respondErr(w, r, err)
		return
	}
	account, err := s.store.GetAccount(r.Context(), id, userID(r))
	if err != nil {
		respondErr(w, r, err)
		return
	}

	req := accountRequest{Name: account.Name, Balance: account.Balance, Currency: account.Currency}
	if err := decodeJSON(w, r, &req); err != nil {
		respondErr(w, r, err)
		return
	}
	account.Name = strings.TrimSpace(req.Name)
	account.Balance = req.Balance.Round(2)
	account.Currency = strings.ToUpper(strings.TrimSpace(req.Currency))
	if err := account.Validate(); err != nil {
		respondErr(w, r, err)
		return
	}

	if err := s.store.UpdateAccount(r.Context(), *account); err != nil {
		respondErr(w, r, err)
		return
	}
	respondMessage(w, http.StatusOK, "Account updated", newAccountView(*account))
}

// handleDeleteAccount removes the account with its transactions and rules.
func (s *Server) handleDeleteAccount(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		respondErr(w, r, err)
		return
	}
	if err := s.store.DeleteAccount(r.Context(), id, userID(r)); err != nil {
		respondErr(w, r, err)
		return
	}
	respondMessage(w, http.StatusOK, "Account deleted", nil)
}

func (s *Server) handleListCategories(w http.ResponseWriter, r *http.Request) {
	categories, err := s.store.ListCategories(r.Context(), userID(r))
	if err != nil {
		respondErr(w, r, err)
		return
	}
	views := make([]categoryView, 0, len(categories))
	for _, c := range categories {
		views = append(views, categoryView{ID: c.ID, Name: c.Name, Kind: c.Kind, Color: c.Color})
	}
	respondData(w, http.StatusOK, views)
}

func (s *Server) handleCreateCategory(w http.ResponseWriter, r *http.Request) {
	var req categoryRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondErr(w, r, err)
		return
	}

	category := core.Category{
		UserID: userID(r),
		Name:   strings.TrimSpace(req.Name),
		Kind:   req.Kind,
		Color:  strings.TrimSpace(req.Color),
	}
	if err := category.Validate(); err != nil {
		respondErr(w, r, err)
		return
	}

	id, err := s.store.CreateCategory(r.Context(), category)
	if err != nil {
		respondErr(w, r, err)
		return
	}
	respondMessage(w, http.StatusCreated, "Category created", categoryView{
		ID: id, Name: category.Name, Kind: category.Kind, Color: category.Color,
	})
}

// handleUpdateCategory overwrites the fields present in the body.
func (s *Server) handleUpdateCategory(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		respondErr(w, r, err)
		return
	}
	category, err := s.store.GetCategory(r.Context(), id, userID(r))
	if err != nil {
		respondErr(w, r, err)
		return
	}

	req := categoryRequest{Name: category.Name, Kind: category.Kind, Color: category.Color}
	if err := decodeJSON(w, r, &req); err != nil {
		respondErr(w, r, err)
		return
	}
	category.Name = strings.TrimSpace(req.Name)
	category.Kind = req.Kind
	category.Color = strings.TrimSpace(req.Color)
	if err := category.Validate(); err != nil {
		respondErr(w, r, err)
		return
	}

	if err := s.store.UpdateCategory(r.Context(), *category); err != nil {
		respondErr(w, r, err)
		return
	}
	s.categories.Forget(category.UserID)
	respondMessage(w, http.StatusOK, "Category updated", categoryView{
		ID: category.ID, Name: category.Name, Kind: category.Kind, Color: category.Color,
	})
}

// handleDeleteCategory removes the category. Its transactions stay, uncategorized.
func (s *Server) handleDeleteCategory(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		respondErr(w, r, err)
		return
	}
	if err := s.store.DeleteCategory(r.Context(), id, userID(r)); err != nil {
		respondErr(w, r, err)
		return
	}
	s.categories.Forget(userID(r))
	respondMessage(w, http.StatusOK, "Category deleted", nil)
}

// handleListTransactions supports start_date, end_date, type, account_id,
// category_id, recurring_id and limit query filters.
func (s *Server) handleListTransactions(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	var (
		f   storage.TransactionFilter
		err error
	)
	if f.StartDate, err = queryDate(q, "start_date"); err != nil {
		respondErr(w, r, err)
		return
	}
	if f.EndDate, err = queryDate(q, "end_date"); err != nil {
		respondErr(w, r, err)
		return
	}
	if f.StartDate != nil && f.EndDate != nil && f.EndDate.Before(*f.StartDate) {
		respondErr(w, r, core.ErrEndBeforeStart)
		return
	}
	if v := strings.ToLower(strings.TrimSpace(q.Get("type"))); v != "" {
		f.Kind = core.TransactionKind(v)
		if !f.Kind.Valid() {
			respondErr(w, r, core.ErrInvalidKind)
			return
		}
	}
	if f.AccountID, err = queryInt64(q, "account_id"); err != nil {
		respondErr(w, r, err)
		return
	}
	if f.CategoryID, err = queryInt64(q, "category_id"); err != nil {
		respondErr(w, r, err)
		return
	}
	if f.RecurringID, err = queryInt64(q, "recurring_id"); err != nil {
		respondErr(w, r, err)
		return
	}
	limit, err := queryInt64(q, "limit")
	if err != nil {
		respondErr(w, r, err)
		return
	}
	f.Limit = int(min(limit, maxTransactionLimit))

	txs, err := s.store.ListTransactions(r.Context(), userID(r), f)
	if err != nil {
		respondErr(w, r, err)
		return
	}
	views := make([]transactionView, 0, len(txs))
	for _, tx := range txs {
		views = append(views, newTransactionView(tx))
	}
	respondData(w, http.StatusOK, views)
}

// handleCreateTransaction posts a manual transaction. The date defaults to today.
func (s *Server) handleCreateTransaction(w http.ResponseWriter, r *http.Request) {
	var req transactionRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondErr(w, r, err)
		return
	}

	tx := core.Transaction{
		UserID:          userID(r),
		AccountID:       req.AccountID,
		CategoryID:      req.CategoryID,
		Amount:          req.Amount,
		Kind:            req.Kind,
		TargetAccountID: req.TargetAccountID,
		Description:     strings.TrimSpace(req.Description),
		PaymentMethod:   strings.TrimSpace(req.PaymentMethod),
		Date:            req.Date,
	}
	if tx.Date.IsZero() {
		tx.Date = s.today()
	}

	id, err := s.poster.Post(r.Context(), tx)
	if err != nil {
		respondErr(w, r, err)
		return
	}
	tx.ID = id
	respondMessage(w, http.StatusCreated, "Transaction created", newTransactionView(tx))
}

func (s *Server) handleGetTransaction(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		respondErr(w, r, err)
		return
	}
	tx, err := s.store.GetTransaction(r.Context(), id, userID(r))
	if err != nil {
		respondErr(w, r, err)
		return
	}
	respondData(w, http.StatusOK, newTransactionView(*tx))
}

// handleUpdateTransaction overwrites the fields present in the body and
// rebooks the balances. An explicit null clears category_id or target_account_id.
func (s *Server) handleUpdateTransaction(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		respondErr(w, r, err)
		return
	}
	tx, err := s.store.GetTransaction(r.Context(), id, userID(r))
	if err != nil {
		respondErr(w, r, err)
		return
	}

	req := transactionRequest{
		AccountID:       tx.AccountID,
		CategoryID:      tx.CategoryID,
		Amount:          tx.Amount,
		Kind:            tx.Kind,
		TargetAccountID: tx.TargetAccountID,
		Description:     tx.Description,
		PaymentMethod:   tx.PaymentMethod,
		Date:            tx.Date,
	}
	if err := decodeJSON(w, r, &req); err != nil {
		respondErr(w, r, err)
		return
	}
	tx.AccountID = req.AccountID
	tx.CategoryID = req.CategoryID
	tx.Amount = req.Amount
	tx.Kind = req.Kind
	tx.TargetAccountID = req.TargetAccountID
	tx.Description = strings.TrimSpace(req.Description)
	tx.PaymentMethod = strings.TrimSpace(req.PaymentMethod)
	tx.Date = req.Date
	if tx.Kind != core.Transfer {
		tx.TargetAccountID = nil
	}
	if err := tx.Validate(); err != nil {
		respondErr(w, r, err)
		return
	}

	if err := s.store.UpdateTransaction(r.Context(), *tx); err != nil {
		respondErr(w, r, err)
		return
	}
	respondMessage(w, http.StatusOK, "Transaction updated", newTransactionView(*tx))
}

// handleDeleteTransaction removes the transaction and reverses its balance effect.
func (s *Server) handleDeleteTransaction(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		respondErr(w, r, err)
		return
	}
	if err := s.store.DeleteTransaction(r.Context(), id, userID(r)); err != nil {
		respondErr(w, r, err)
		return
	}
	respondMessage(w, http.StatusOK, "Transaction deleted", nil)
}

// handleTransactionStats supports optional start_date and end_date filters.
func (s *Server) handleTransactionStats(w http.ResponseWriter, r *http.Request) {
	start, end, err := optionalRange(r.URL.Query())
	if err != nil {
		respondErr(w, r, err)
		return
	}
	stats, err := s.store.TransactionStats(r.Context(), userID(r), start, end)
	if err != nil {
		respondErr(w, r, err)
		return
	}
	respondData(w, http.StatusOK, stats)
}
