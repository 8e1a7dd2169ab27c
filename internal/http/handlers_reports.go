package http

import (
	"net/http"
	"strings"

	"coinly/internal/core"
)

const (
	minReportYear = 1900
	maxReportYear = 9999
)

// handleMonthlyReport requires year and month.
func (s *Server) handleMonthlyReport(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	year, err := queryIntIn(q, "year", minReportYear, maxReportYear)
	if err != nil {
		respondErr(w, r, err)
		return
	}
	month, err := queryIntIn(q, "month", 1, 12)
	if err != nil {
		respondErr(w, r, err)
		return
	}

	report, err := s.store.MonthlyReport(r.Context(), userID(r), year, month)
	if err != nil {
		respondErr(w, r, err)
		return
	}
	respondData(w, http.StatusOK, report)
}

func (s *Server) handleYearlyReport(w http.ResponseWriter, r *http.Request) {
	year, err := queryIntIn(r.URL.Query(), "year", minReportYear, maxReportYear)
	if err != nil {
		respondErr(w, r, err)
		return
	}
	report, err := s.store.YearlyReport(r.Context(), userID(r), year)
	if err != nil {
		respondErr(w, r, err)
		return
	}
	respondData(w, http.StatusOK, report)
}

// handleCategoryReport requires start_date and end_date; type narrows to
// income or expense.
func (s *Server) handleCategoryReport(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	start, end, err := requiredRange(q)
	if err != nil {
		respondErr(w, r, err)
		return
	}
	var kind core.TransactionKind
	if v := strings.ToLower(strings.TrimSpace(q.Get("type"))); v != "" {
		kind = core.TransactionKind(v)
		if kind != core.Income && kind != core.Expense {
			respondErr(w, r, core.ErrInvalidKind)
			return
		}
	}
	s.respondCategoryReport(w, r, start, end, kind)
}

// handleExpensesByPeriod is the expense half of the category report.
func (s *Server) handleExpensesByPeriod(w http.ResponseWriter, r *http.Request) {
	start, end, err := requiredRange(r.URL.Query())
	if err != nil {
		respondErr(w, r, err)
		return
	}
	s.respondCategoryReport(w, r, start, end, core.Expense)
}

func (s *Server) respondCategoryReport(w http.ResponseWriter, r *http.Request, start, end core.Date, kind core.TransactionKind) {
	totals, err := s.store.CategoryReport(r.Context(), userID(r), start, end, kind)
	if err != nil {
		respondErr(w, r, err)
		return
	}
	respondData(w, http.StatusOK, totals)
}

func (s *Server) handleIncomeVsExpenses(w http.ResponseWriter, r *http.Request) {
	start, end, err := requiredRange(r.URL.Query())
	if err != nil {
		respondErr(w, r, err)
		return
	}
	periods, err := s.store.IncomeVsExpenses(r.Context(), userID(r), start, end)
	if err != nil {
		respondErr(w, r, err)
		return
	}
	respondData(w, http.StatusOK, periods)
}
