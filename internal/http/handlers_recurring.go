package http

import (
	"net/http"
	"strconv"
	"strings"

	"coinly/internal/core"
	"coinly/internal/log"
	"coinly/internal/services"
)

const defaultUpcoming = 5

func (s *Server) handleListRecurring(w http.ResponseWriter, r *http.Request) {
	rules, err := s.store.ListRecurring(r.Context(), userID(r))
	if err != nil {
		respondErr(w, r, err)
		return
	}
	views := make([]recurringView, 0, len(rules))
	for _, rule := range rules {
		views = append(views, newRecurringView(rule))
	}
	respondData(w, http.StatusOK, views)
}

func (s *Server) handleGetRecurring(w http.ResponseWriter, r *http.Request) {
	rule, ok := s.loadRule(w, r)
	if !ok {
		return
	}
	respondData(w, http.StatusOK, newRecurringView(*rule))
}

func (s *Server) handleCreateRecurring(w http.ResponseWriter, r *http.Request) {
	patch, err := decodeRecurringPatch(w, r)
	if err != nil {
		respondErr(w, r, err)
		return
	}

	rule := core.RecurringRule{UserID: userID(r), Active: true}
	if err := patch.apply(&rule); err != nil {
		respondErr(w, r, err)
		return
	}
	if err := rule.Validate(); err != nil {
		respondErr(w, r, err)
		return
	}

	id, err := s.store.CreateRecurring(r.Context(), rule)
	if err != nil {
		respondErr(w, r, err)
		return
	}
	s.respondRule(w, r, id, http.StatusCreated, "Recurring transaction created")
}

// handleUpdateRecurring applies only the supplied fields, then revalidates the whole rule.
func (s *Server) handleUpdateRecurring(w http.ResponseWriter, r *http.Request) {
	rule, ok := s.loadRule(w, r)
	if !ok {
		return
	}
	patch, err := decodeRecurringPatch(w, r)
	if err != nil {
		respondErr(w, r, err)
		return
	}
	if len(patch) == 0 {
		respondError(w, r, http.StatusBadRequest, "no fields to update")
		return
	}
	if err := patch.apply(rule); err != nil {
		respondErr(w, r, err)
		return
	}
	if err := rule.Validate(); err != nil {
		respondErr(w, r, err)
		return
	}

	if err := s.store.UpdateRecurring(r.Context(), *rule); err != nil {
		respondErr(w, r, err)
		return
	}
	s.respondRule(w, r, rule.ID, http.StatusOK, "Recurring transaction updated")
}

func (s *Server) handleDeleteRecurring(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		respondErr(w, r, err)
		return
	}
	if err := s.store.DeleteRecurring(r.Context(), id, userID(r)); err != nil {
		respondErr(w, r, err)
		return
	}
	log.FromContext(r.Context()).InfoContext(r.Context(), "Recurring rule deleted",
		log.FieldRecurringID, id,
		log.FieldUserID, userID(r))
	respondMessage(w, http.StatusOK, "Recurring transaction deleted", nil)
}

// handleToggleRecurring sets is_active from the body, or flips it when the body is empty.
func (s *Server) handleToggleRecurring(w http.ResponseWriter, r *http.Request) {
	rule, ok := s.loadRule(w, r)
	if !ok {
		return
	}

	active := !rule.Active
	if r.ContentLength != 0 {
		var req toggleRequest
		if err := decodeJSON(w, r, &req); err != nil {
			respondErr(w, r, err)
			return
		}
		if req.Active != nil {
			active = *req.Active
		}
	}

	if err := s.store.SetRecurringActive(r.Context(), rule.ID, rule.UserID, active); err != nil {
		respondErr(w, r, err)
		return
	}
	message := "Recurring transaction deactivated"
	if active {
		message = "Recurring transaction activated"
	}
	s.respondRule(w, r, rule.ID, http.StatusOK, message)
}

func (s *Server) handleUpcoming(w http.ResponseWriter, r *http.Request) {
	rule, ok := s.loadRule(w, r)
	if !ok {
		return
	}

	count := defaultUpcoming
	if v := strings.TrimSpace(r.URL.Query().Get("count")); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 || n > services.MaxUpcoming {
			respondError(w, r, http.StatusBadRequest,
				"count must be between 1 and "+strconv.Itoa(services.MaxUpcoming))
			return
		}
		count = n
	}

	dates, err := services.UpcomingOccurrences(*rule, s.today(), count)
	if err != nil {
		respondErr(w, r, err)
		return
	}
	respondData(w, http.StatusOK, upcomingView{RecurringID: rule.ID, Dates: dates})
}

// loadRule fetches the {id} rule owned by the caller, writing the error response itself.
func (s *Server) loadRule(w http.ResponseWriter, r *http.Request) (*core.RecurringRule, bool) {
	id, err := pathID(r, "id")
	if err != nil {
		respondErr(w, r, err)
		return nil, false
	}
	rule, err := s.store.GetRecurring(r.Context(), id, userID(r))
	if err != nil {
		respondErr(w, r, err)
		return nil, false
	}
	return rule, true
}

// respondRule re-reads the rule so the response carries joined names.
func (s *Server) respondRule(w http.ResponseWriter, r *http.Request, id int64, status int, message string) {
	rule, err := s.store.GetRecurring(r.Context(), id, userID(r))
	if err != nil {
		respondErr(w, r, err)
		return
	}
	respondMessage(w, status, message, newRecurringView(*rule))
}
