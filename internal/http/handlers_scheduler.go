package http

import (
	"net/http"

	"coinly/internal/log"
	"coinly/internal/services"
)

// handlePreview lists the caller's rules that fire today and have not been posted yet.
func (s *Server) handlePreview(w http.ResponseWriter, r *http.Request) {
	if s.previewer == nil {
		respondError(w, r, http.StatusServiceUnavailable, "scheduler is not available")
		return
	}

	today := s.today()
	items, err := s.previewer.Preview(r.Context(), today)
	if err != nil {
		respondErr(w, r, err)
		return
	}

	caller := userID(r)
	mine := make([]services.PreviewItem, 0, len(items))
	for _, item := range items {
		if item.UserID == caller {
			mine = append(mine, item)
		}
	}
	respondData(w, http.StatusOK, map[string]any{
		"date":  today,
		"count": len(mine),
		"items": mine,
	})
}

// handleExecute runs the daily pass now. Already posted rules are not posted again,
// so this is safe to use for recovery after a missed run.
func (s *Server) handleExecute(w http.ResponseWriter, r *http.Request) {
	if s.runner == nil {
		respondError(w, r, http.StatusServiceUnavailable, "scheduler is not available")
		return
	}

	logger := log.FromContext(r.Context())
	logger.InfoContext(r.Context(), "Manual recurring execution requested",
		log.FieldUserID, userID(r),
		log.FieldOperation, log.OpExecute)

	summary, err := s.runner.Run(r.Context(), s.today())
	if err != nil {
		respondErr(w, r, err)
		return
	}
	respondMessage(w, http.StatusOK, "Recurring transactions processed", summary)
}
