package http

import (
	"errors"
	"net/http"
	"strings"

	"coinly/internal/importer"
	"coinly/internal/log"
)

const maxImportBody = 5 << 20

// importReport merges parse and posting outcomes.
type importReport struct {
	DryRun         bool           `json:"dry_run"`
	Imported       int            `json:"imported"`
	Failed         int            `json:"failed"`
	Errors         []string       `json:"errors"`
	TransactionIDs []int64        `json:"transaction_ids,omitempty"`
	Rows           []importer.Row `json:"rows,omitempty"`
}

// handleImport reads a raw CSV or JSON export from the body. Rows naming an
// account are booked there, creating it when missing; the rest go to the
// optional account_id, or to the "Imported" account. With dry_run=true the
// rows are only normalized and returned.
func (s *Server) handleImport(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	accountID, err := queryInt64(q, "account_id")
	if err != nil {
		respondErr(w, r, err)
		return
	}
	if accountID > 0 {
		if _, err := s.store.GetAccount(r.Context(), accountID, userID(r)); err != nil {
			respondErr(w, r, err)
			return
		}
	}

	format := strings.ToLower(strings.TrimSpace(q.Get("format")))
	if format == "" {
		format = "csv"
		if strings.Contains(r.Header.Get("Content-Type"), "json") {
			format = "json"
		}
	}
	if format != "csv" && format != "json" {
		respondError(w, r, http.StatusBadRequest, "format must be csv or json")
		return
	}

	parsed, err := importer.Parse(format, http.MaxBytesReader(w, r.Body, maxImportBody))
	if err != nil {
		var tooLarge *http.MaxBytesError
		switch {
		case errors.As(err, &tooLarge):
			respondError(w, r, http.StatusRequestEntityTooLarge, "import file is too large")
		case errors.Is(err, importer.ErrEmptyFile):
			respondErr(w, r, err)
		default:
			respondError(w, r, http.StatusBadRequest, err.Error())
		}
		return
	}

	report := importReport{
		DryRun: queryBool(q, "dry_run"),
		Failed: len(parsed.Errors),
		Errors: parsed.Errors,
	}
	if report.DryRun {
		report.Rows = parsed.Rows
		respondData(w, http.StatusOK, report)
		return
	}

	result := s.importer.Import(r.Context(), userID(r), accountID, parsed.Rows)
	report.Imported = result.Imported
	report.Failed += result.Failed
	report.Errors = append(report.Errors, result.Errors...)
	report.TransactionIDs = result.TransactionIDs

	log.FromContext(r.Context()).InfoContext(r.Context(), "Import completed",
		log.FieldUserID, userID(r),
		log.FieldOperation, log.OpImport,
		"format", format,
		"imported", report.Imported,
		"failed", report.Failed)

	status := http.StatusOK
	if report.Imported > 0 {
		status = http.StatusCreated
	}
	respondData(w, status, report)
}
