package http

import (
	"encoding/json"
	"errors"
	"net/http"

	"coinly/internal/core"
	"coinly/internal/importer"
	"coinly/internal/log"
	"coinly/internal/storage"
)

// envelope is the body of every API response.
type envelope struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
	Data    any    `json:"data,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, body envelope) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func respondData(w http.ResponseWriter, status int, data any) {
	writeJSON(w, status, envelope{Success: true, Data: data})
}

func respondMessage(w http.ResponseWriter, status int, message string, data any) {
	writeJSON(w, status, envelope{Success: true, Message: message, Data: data})
}

// respondError matches auth.ErrorFunc.
func respondError(w http.ResponseWriter, _ *http.Request, status int, message string) {
	writeJSON(w, status, envelope{Success: false, Message: message})
}

// respondErr maps domain and storage errors to a status. Anything unexpected
// is logged and hidden behind a generic message.
func respondErr(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case core.IsValidationError(err), errors.Is(err, errBadRequest), errors.Is(err, importer.ErrEmptyFile):
		respondError(w, r, http.StatusBadRequest, err.Error())
	case errors.Is(err, storage.ErrNotFound):
		respondError(w, r, http.StatusNotFound, "resource not found")
	case errors.Is(err, storage.ErrConflict):
		respondError(w, r, http.StatusConflict, err.Error())
	default:
		log.FromContext(r.Context()).ErrorContext(r.Context(), "Request failed",
			log.FieldError, err,
			log.FieldMethod, r.Method,
			log.FieldPath, r.URL.Path)
		respondError(w, r, http.StatusInternalServerError, "internal server error")
	}
}
