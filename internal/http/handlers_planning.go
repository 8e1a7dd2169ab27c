package http

import (
	"net/http"
	"strings"

	"coinly/internal/core"
)

// ---- budgets ----

func (s *Server) handleListBudgets(w http.ResponseWriter, r *http.Request) {
	budgets, err := s.store.ListBudgets(r.Context(), userID(r))
	if err != nil {
		respondErr(w, r, err)
		return
	}
	views := make([]budgetView, 0, len(budgets))
	for _, b := range budgets {
		views = append(views, newBudgetView(b))
	}
	respondData(w, http.StatusOK, views)
}

func (s *Server) handleGetBudget(w http.ResponseWriter, r *http.Request) {
	budget, ok := s.loadBudget(w, r)
	if !ok {
		return
	}
	respondData(w, http.StatusOK, newBudgetView(*budget))
}

func (s *Server) handleCreateBudget(w http.ResponseWriter, r *http.Request) {
	var req budgetRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondErr(w, r, err)
		return
	}
	budget := core.Budget{UserID: userID(r)}
	req.applyTo(&budget)
	if err := budget.Validate(); err != nil {
		respondErr(w, r, err)
		return
	}

	id, err := s.store.CreateBudget(r.Context(), budget)
	if err != nil {
		respondErr(w, r, err)
		return
	}
	created, err := s.store.GetBudget(r.Context(), id, budget.UserID)
	if err != nil {
		respondErr(w, r, err)
		return
	}
	respondMessage(w, http.StatusCreated, "Budget created", newBudgetView(*created))
}

// handleUpdateBudget overwrites the fields present in the body.
func (s *Server) handleUpdateBudget(w http.ResponseWriter, r *http.Request) {
	budget, ok := s.loadBudget(w, r)
	if !ok {
		return
	}
	req := budgetRequest{
		CategoryID: budget.CategoryID,
		Amount:     budget.Amount,
		Period:     budget.Period,
		StartDate:  budget.StartDate,
		EndDate:    budget.EndDate,
	}
	if err := decodeJSON(w, r, &req); err != nil {
		respondErr(w, r, err)
		return
	}
	req.applyTo(budget)
	if err := budget.Validate(); err != nil {
		respondErr(w, r, err)
		return
	}

	if err := s.store.UpdateBudget(r.Context(), *budget); err != nil {
		respondErr(w, r, err)
		return
	}
	updated, err := s.store.GetBudget(r.Context(), budget.ID, budget.UserID)
	if err != nil {
		respondErr(w, r, err)
		return
	}
	respondMessage(w, http.StatusOK, "Budget updated", newBudgetView(*updated))
}

func (s *Server) handleDeleteBudget(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		respondErr(w, r, err)
		return
	}
	if err := s.store.DeleteBudget(r.Context(), id, userID(r)); err != nil {
		respondErr(w, r, err)
		return
	}
	respondMessage(w, http.StatusOK, "Budget deleted", nil)
}

// handleBudgetStatus reports how much of the budget its category has used.
func (s *Server) handleBudgetStatus(w http.ResponseWriter, r *http.Request) {
	budget, ok := s.loadBudget(w, r)
	if !ok {
		return
	}
	spent, err := s.store.BudgetSpent(r.Context(), *budget)
	if err != nil {
		respondErr(w, r, err)
		return
	}
	st := core.NewBudgetStatus(*budget, spent)
	respondData(w, http.StatusOK, budgetStatusView{
		budgetView:  newBudgetView(st.Budget),
		Spent:       st.Spent,
		Remaining:   st.Remaining,
		PercentUsed: st.PercentUsed,
		Exceeded:    st.Exceeded,
	})
}

func (s *Server) loadBudget(w http.ResponseWriter, r *http.Request) (*core.Budget, bool) {
	id, err := pathID(r, "id")
	if err != nil {
		respondErr(w, r, err)
		return nil, false
	}
	budget, err := s.store.GetBudget(r.Context(), id, userID(r))
	if err != nil {
		respondErr(w, r, err)
		return nil, false
	}
	return budget, true
}

func (req budgetRequest) applyTo(b *core.Budget) {
	b.CategoryID = req.CategoryID
	b.Amount = req.Amount
	b.Period = core.Frequency(strings.ToLower(string(req.Period)))
	b.StartDate = req.StartDate
	b.EndDate = req.EndDate
}

// ---- savings goals ----

func (s *Server) handleListGoals(w http.ResponseWriter, r *http.Request) {
	goals, err := s.store.ListSavingsGoals(r.Context(), userID(r))
	if err != nil {
		respondErr(w, r, err)
		return
	}
	today := s.today()
	views := make([]goalView, 0, len(goals))
	for _, g := range goals {
		views = append(views, newGoalView(g, today))
	}
	respondData(w, http.StatusOK, views)
}

func (s *Server) handleGetGoal(w http.ResponseWriter, r *http.Request) {
	goal, ok := s.loadGoal(w, r)
	if !ok {
		return
	}
	respondData(w, http.StatusOK, newGoalView(*goal, s.today()))
}

func (s *Server) handleCreateGoal(w http.ResponseWriter, r *http.Request) {
	req := goalRequest{Status: core.GoalActive}
	if err := decodeJSON(w, r, &req); err != nil {
		respondErr(w, r, err)
		return
	}
	goal := core.SavingsGoal{UserID: userID(r)}
	req.applyTo(&goal)
	if err := goal.Validate(); err != nil {
		respondErr(w, r, err)
		return
	}

	id, err := s.store.CreateSavingsGoal(r.Context(), goal)
	if err != nil {
		respondErr(w, r, err)
		return
	}
	created, err := s.store.GetSavingsGoal(r.Context(), id, goal.UserID)
	if err != nil {
		respondErr(w, r, err)
		return
	}
	respondMessage(w, http.StatusCreated, "Savings goal created", newGoalView(*created, s.today()))
}

// handleUpdateGoal overwrites the fields present in the body. A null
// target_date clears it.
func (s *Server) handleUpdateGoal(w http.ResponseWriter, r *http.Request) {
	goal, ok := s.loadGoal(w, r)
	if !ok {
		return
	}
	req := goalRequest{
		Name:          goal.Name,
		TargetAmount:  goal.TargetAmount,
		CurrentAmount: goal.CurrentAmount,
		TargetDate:    goal.TargetDate,
		Status:        goal.Status,
	}
	if err := decodeJSON(w, r, &req); err != nil {
		respondErr(w, r, err)
		return
	}
	req.applyTo(goal)
	if err := goal.Validate(); err != nil {
		respondErr(w, r, err)
		return
	}

	if err := s.store.UpdateSavingsGoal(r.Context(), *goal); err != nil {
		respondErr(w, r, err)
		return
	}
	respondMessage(w, http.StatusOK, "Savings goal updated", newGoalView(*goal, s.today()))
}

func (s *Server) handleDeleteGoal(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		respondErr(w, r, err)
		return
	}
	if err := s.store.DeleteSavingsGoal(r.Context(), id, userID(r)); err != nil {
		respondErr(w, r, err)
		return
	}
	respondMessage(w, http.StatusOK, "Savings goal deleted", nil)
}

// handleDepositToGoal adds to an active goal; reaching the target completes it.
func (s *Server) handleDepositToGoal(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		respondErr(w, r, err)
		return
	}
	var req depositRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondErr(w, r, err)
		return
	}
	goal, err := s.store.DepositToSavingsGoal(r.Context(), id, userID(r), req.Amount)
	if err != nil {
		respondErr(w, r, err)
		return
	}
	respondMessage(w, http.StatusOK, "Deposit recorded", newGoalView(*goal, s.today()))
}

func (s *Server) loadGoal(w http.ResponseWriter, r *http.Request) (*core.SavingsGoal, bool) {
	id, err := pathID(r, "id")
	if err != nil {
		respondErr(w, r, err)
		return nil, false
	}
	goal, err := s.store.GetSavingsGoal(r.Context(), id, userID(r))
	if err != nil {
		respondErr(w, r, err)
		return nil, false
	}
	return goal, true
}

func (req goalRequest) applyTo(g *core.SavingsGoal) {
	g.Name = strings.TrimSpace(req.Name)
	g.TargetAmount = req.TargetAmount
	g.CurrentAmount = req.CurrentAmount
	g.TargetDate = req.TargetDate
	if g.TargetDate != nil && g.TargetDate.IsZero() {
		g.TargetDate = nil
	}
	g.Status = core.GoalStatus(strings.ToLower(string(req.Status)))
}
