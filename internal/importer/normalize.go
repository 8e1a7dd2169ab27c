// Package importer reads transaction exports (CSV or JSON) into rows ready
// to be posted.
package importer

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"coinly/internal/core"
)

// Row is one normalized transaction from an import file.
type Row struct {
	Line          int                  `json:"line"`
	Date          core.Date            `json:"date"`
	Kind          core.TransactionKind `json:"type"`
	Amount        decimal.Decimal      `json:"amount"`
	Description   string               `json:"description"`
	Category      string               `json:"category"`
	Account       string               `json:"account"`
	TargetAccount string               `json:"target_account,omitempty"`
	PaymentMethod string               `json:"payment_method"`
}

// Result holds the rows that passed normalization and a message per rejected row.
type Result struct {
	Rows   []Row    `json:"rows"`
	Errors []string `json:"errors"`
}

var ErrEmptyFile = errors.New("file is empty or has no data rows")

// Column aliases, matched case-insensitively after trimming.
var aliases = map[string][]string{
	"date":           {"date", "transaction_date"},
	"type":           {"type", "transaction_type"},
	"amount":         {"amount"},
	"description":    {"description", "desc"},
	"category":       {"category", "category_name"},
	"account":        {"account", "account_name"},
	"target_account": {"target_account", "target_account_name", "to_account"},
	"payment_method": {"payment_method", "payment method", "paymentmethod", "method"},
}

// excelEpoch is day zero of spreadsheet serial dates.
var excelEpoch = time.Date(1899, 12, 30, 0, 0, 0, 0, time.UTC)

// ParseCSV reads a CSV export with a header row.
func ParseCSV(r io.Reader) (Result, error) {
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true
	reader.FieldsPerRecord = -1

	records, err := reader.ReadAll()
	if err != nil {
		return Result{}, fmt.Errorf("read CSV: %w", err)
	}
	if len(records) < 2 {
		return Result{}, ErrEmptyFile
	}

	headers := make([]string, len(records[0]))
	for i, h := range records[0] {
		headers[i] = strings.ToLower(strings.TrimSpace(strings.TrimPrefix(h, "\ufeff")))
	}

	raw := make([]rawRow, 0, len(records)-1)
	for i, record := range records[1:] {
		fields := make(map[string]string, len(headers))
		blank := true
		for j, h := range headers {
			if j < len(record) {
				v := strings.TrimSpace(record[j])
				fields[h] = v
				if v != "" {
					blank = false
				}
			}
		}
		if blank {
			continue
		}
		raw = append(raw, rawRow{line: i + 2, fields: fields})
	}
	return normalize(raw), nil
}

// ParseJSON reads a JSON array of objects.
func ParseJSON(r io.Reader) (Result, error) {
	dec := json.NewDecoder(r)
	dec.UseNumber()

	var objects []map[string]any
	if err := dec.Decode(&objects); err != nil {
		return Result{}, fmt.Errorf("invalid JSON format: %w", err)
	}
	if len(objects) == 0 {
		return Result{}, ErrEmptyFile
	}

	raw := make([]rawRow, 0, len(objects))
	for i, obj := range objects {
		fields := make(map[string]string, len(obj))
		for k, v := range obj {
			fields[strings.ToLower(strings.TrimSpace(k))] = stringify(v)
		}
		raw = append(raw, rawRow{line: i + 1, fields: fields})
	}
	return normalize(raw), nil
}

// Parse dispatches on format ("csv" or "json").
func Parse(format string, r io.Reader) (Result, error) {
	switch strings.ToLower(format) {
	case "csv":
		return ParseCSV(r)
	case "json":
		return ParseJSON(r)
	default:
		return Result{}, fmt.Errorf("unsupported import format %q", format)
	}
}

type rawRow struct {
	line   int
	fields map[string]string
}

func (r rawRow) get(field string) string {
	for _, key := range aliases[field] {
		if v := strings.TrimSpace(r.fields[key]); v != "" && v != "null" {
			return v
		}
	}
	return ""
}

func normalize(raw []rawRow) Result {
	res := Result{Rows: []Row{}, Errors: []string{}}

	for _, r := range raw {
		kind := strings.ToLower(r.get("type"))
		if kind == "total" {
			continue
		}

		var problems []string
		for _, field := range []string{"date", "type", "amount"} {
			if r.get(field) == "" {
				problems = append(problems, "missing "+field)
			}
		}

		row := Row{
			Line:          r.line,
			Kind:          core.TransactionKind(kind),
			Description:   cleanDescription(r.get("description")),
			Category:      r.get("category"),
			Account:       r.get("account"),
			TargetAccount: r.get("target_account"),
			PaymentMethod: r.get("payment_method"),
		}

		if v := r.get("date"); v != "" {
			d, err := parseDate(v)
			if err != nil {
				problems = append(problems, fmt.Sprintf("invalid date '%s', use YYYY-MM-DD", v))
			}
			row.Date = d
		}
		if kind != "" && !row.Kind.Valid() {
			problems = append(problems, fmt.Sprintf("invalid type '%s', must be income, expense or transfer", kind))
		}
		if row.Kind == core.Transfer && row.TargetAccount == "" {
			problems = append(problems, "transfer requires a target_account column")
		}
		if v := r.get("amount"); v != "" {
			amount, err := core.ParseAmount(v)
			if err != nil {
				problems = append(problems, fmt.Sprintf("invalid amount '%s', must be a positive number", v))
			}
			row.Amount = amount
		}

		if len(problems) > 0 {
			res.Errors = append(res.Errors, fmt.Sprintf("Row %d: %s", r.line, strings.Join(problems, "; ")))
			continue
		}
		res.Rows = append(res.Rows, row)
	}
	return res
}

// cleanDescription drops the marker added to scheduler postings so
// re-imported exports do not look auto-generated.
func cleanDescription(s string) string {
	s = strings.TrimPrefix(s, core.AutoDescriptionPrefix)
	return strings.TrimSpace(s)
}

func parseDate(s string) (core.Date, error) {
	s = strings.TrimSpace(s)

	if serial, err := strconv.ParseFloat(s, 64); err == nil && !strings.Contains(s, "-") {
		if serial < 1 || serial > 2958465 {
			return core.Date{}, core.ErrInvalidDate
		}
		return core.DateOf(excelEpoch.AddDate(0, 0, int(serial))), nil
	}

	// Date.toString() output: "Mon Nov 24 2025 00:00:00 GMT+0100 (...)"
	if strings.Contains(s, "GMT") {
		parts := strings.Fields(s)
		if len(parts) >= 4 {
			if t, err := time.Parse("Jan 2 2006", strings.Join(parts[1:4], " ")); err == nil {
				return core.DateOf(t), nil
			}
		}
		return core.Date{}, core.ErrInvalidDate
	}

	if date, _, ok := strings.Cut(s, "T"); ok {
		s = date
	} else if date, _, ok := strings.Cut(s, " "); ok {
		s = date
	}
	return core.ParseDate(s)
}

func stringify(v any) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	case json.Number:
		return val.String()
	case bool:
		return strconv.FormatBool(val)
	default:
		b, _ := json.Marshal(val)
		return string(bytes.Trim(b, `"`))
	}
}
