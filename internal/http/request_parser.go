package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"coinly/internal/core"
	"coinly/internal/middleware/auth"
)

const maxJSONBody = 1 << 20

var errBadRequest = errors.New("invalid request")

// requestError is a client mistake that is not a domain validation error.
type requestError struct {
	msg string
}

func (e *requestError) Error() string { return e.msg }

func (e *requestError) Unwrap() error { return errBadRequest }

func badRequest(format string, args ...any) error {
	return &requestError{msg: fmt.Sprintf(format, args...)}
}

// decodeJSON reads a single JSON object from the body, rejecting unknown fields.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxJSONBody))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return badRequest("request body is empty")
		}
		return badRequest("invalid JSON body: %v", err)
	}
	if dec.More() {
		return badRequest("request body must contain a single JSON object")
	}
	return nil
}

// pathID parses a positive integer path value.
func pathID(r *http.Request, name string) (int64, error) {
	id, err := strconv.ParseInt(r.PathValue(name), 10, 64)
	if err != nil || id <= 0 {
		return 0, badRequest("invalid %s '%s'", name, r.PathValue(name))
	}
	return id, nil
}

// queryInt64 returns 0 when the parameter is absent.
func queryInt64(q url.Values, name string) (int64, error) {
	v := strings.TrimSpace(q.Get(name))
	if v == "" {
		return 0, nil
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil || n < 0 {
		return 0, badRequest("invalid %s '%s'", name, v)
	}
	return n, nil
}

// queryDate returns nil when the parameter is absent.
func queryDate(q url.Values, name string) (*core.Date, error) {
	v := strings.TrimSpace(q.Get(name))
	if v == "" {
		return nil, nil
	}
	d, err := core.ParseDate(v)
	if err != nil {
		return nil, badRequest("invalid %s '%s', use YYYY-MM-DD", name, v)
	}
	return &d, nil
}

func queryBool(q url.Values, name string) bool {
	b, _ := strconv.ParseBool(strings.TrimSpace(q.Get(name)))
	return b
}

// userID returns the authenticated caller. The auth middleware guarantees one on /api/.
func userID(r *http.Request) int64 {
	return auth.UserIDFromContext(r.Context())
}

// recurringPatch holds the fields of a create or update request. Keys that
// are present overwrite the rule, so an explicit null clears an optional field.
type recurringPatch map[string]json.RawMessage

var recurringFields = map[string]bool{
	"account_id": true, "category_id": true, "amount": true, "type": true,
	"target_account_id": true, "description": true, "frequency": true,
	"start_date": true, "end_date": true, "is_active": true,
}

func decodeRecurringPatch(w http.ResponseWriter, r *http.Request) (recurringPatch, error) {
	var patch recurringPatch
	if err := decodeJSON(w, r, &patch); err != nil {
		return nil, err
	}
	for key := range patch {
		if !recurringFields[key] {
			return nil, badRequest("unknown field '%s'", key)
		}
	}
	return patch, nil
}

// apply writes the present fields onto rule. Validation is left to the rule.
func (p recurringPatch) apply(rule *core.RecurringRule) error {
	for key, raw := range p {
		var err error
		switch key {
		case "account_id":
			err = json.Unmarshal(raw, &rule.AccountID)
		case "category_id":
			rule.CategoryID, err = optionalID(raw)
		case "target_account_id":
			rule.TargetAccountID, err = optionalID(raw)
		case "amount":
			err = json.Unmarshal(raw, &rule.Amount)
			if err != nil {
				err = core.ErrInvalidAmount
			}
		case "type":
			err = json.Unmarshal(raw, &rule.Kind)
		case "description":
			var s *string
			err = json.Unmarshal(raw, &s)
			rule.Description = ""
			if s != nil {
				rule.Description = strings.TrimSpace(*s)
			}
		case "frequency":
			err = json.Unmarshal(raw, &rule.Frequency)
		case "start_date":
			err = json.Unmarshal(raw, &rule.StartDate)
		case "end_date":
			var d core.Date
			if err = json.Unmarshal(raw, &d); err == nil {
				rule.EndDate = nil
				if !d.IsZero() {
					rule.EndDate = &d
				}
			}
		case "is_active":
			err = json.Unmarshal(raw, &rule.Active)
		}
		if err != nil {
			if core.IsValidationError(err) {
				return fmt.Errorf("%s: %w", key, err)
			}
			return badRequest("invalid %s: %v", key, err)
		}
	}
	return nil
}

func optionalID(raw json.RawMessage) (*int64, error) {
	var id *int64
	if err := json.Unmarshal(raw, &id); err != nil {
		return nil, err
	}
	if id != nil && *id <= 0 {
		return nil, nil
	}
	return id, nil
}

// optionalRange reads start_date and end_date, either of which may be absent.
func optionalRange(q url.Values) (*core.Date, *core.Date, error) {
	start, err := queryDate(q, "start_date")
	if err != nil {
		return nil, nil, err
	}
	end, err := queryDate(q, "end_date")
	if err != nil {
		return nil, nil, err
	}
	if start != nil && end != nil && end.Before(*start) {
		return nil, nil, core.ErrEndBeforeStart
	}
	return start, end, nil
}

// requiredRange is optionalRange with both bounds mandatory.
func requiredRange(q url.Values) (core.Date, core.Date, error) {
	start, end, err := optionalRange(q)
	if err != nil {
		return core.Date{}, core.Date{}, err
	}
	if start == nil || end == nil {
		return core.Date{}, core.Date{}, badRequest("start_date and end_date are required")
	}
	return *start, *end, nil
}

// queryIntIn reads a mandatory integer within [lo, hi].
func queryIntIn(q url.Values, name string, lo, hi int) (int, error) {
	v := strings.TrimSpace(q.Get(name))
	if v == "" {
		return 0, badRequest("%s is required", name)
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < lo || n > hi {
		return 0, badRequest("invalid %s '%s'", name, v)
	}
	return n, nil
}
