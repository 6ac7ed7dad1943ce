package http

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"moneyplan/internal/accounts"
	"moneyplan/internal/core"
	"moneyplan/internal/services"
)

type errorResponse struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if body != nil {
		_ = json.NewEncoder(w).Encode(body)
	}
}

// writeError maps domain errors onto HTTP status codes: missing things are
// 404, state conflicts are 409, rule violations are 422 and malformed input
// is 400.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusForError(err)
	if status >= 500 {
		slog.ErrorContext(r.Context(), "Request failed",
			"method", r.Method, "url", r.URL.Path, "error", err)
		writeJSON(w, status, errorResponse{Error: "internal error"})
		return
	}
	writeJSON(w, status, errorResponse{Error: err.Error()})
}

func statusForError(err error) int {
	switch {
	case errors.Is(err, services.ErrPlanNotFound),
		errors.Is(err, core.ErrAccountNotFound),
		errors.Is(err, core.ErrBucketNotFound),
		errors.Is(err, accounts.ErrAccountNotFound):
		return http.StatusNotFound
	case errors.Is(err, core.ErrPlanArchived),
		errors.Is(err, core.ErrPlanAlreadyCommitted),
		errors.Is(err, core.ErrAccountStateMatch),
		errors.Is(err, core.ErrDuplicateAccount),
		errors.Is(err, services.ErrDraftPlanExists),
		errors.Is(err, services.ErrPlanNotCommitted):
		return http.StatusConflict
	case errors.Is(err, core.ErrInsufficientFunds),
		errors.Is(err, core.ErrInvalidPlanState),
		errors.Is(err, core.ErrInvalidAmount),
		errors.Is(err, core.ErrEmptyBucketName),
		errors.Is(err, core.ErrDuplicateBucket):
		return http.StatusUnprocessableEntity
	case errors.Is(err, errBadRequest):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

var errBadRequest = errors.New("bad request")

func badRequest(msg string) error {
	return &badRequestError{msg: msg}
}

type badRequestError struct {
	msg string
}

func (e *badRequestError) Error() string { return e.msg }

func (e *badRequestError) Is(target error) bool { return target == errBadRequest }

// decodeJSON parses the request body into dst, rejecting unknown fields.
func decodeJSON(r *http.Request, dst any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return badRequest("invalid JSON body: " + err.Error())
	}
	return nil
}

// parseMoney converts a decimal string from a request into Money.
func parseMoney(field, value string) (core.Money, error) {
	if value == "" {
		return core.Money{}, badRequest(field + " is required")
	}
	m, err := core.MoneyFromString(value)
	if err != nil {
		return core.Money{}, badRequest("invalid " + field + ": " + value)
	}
	return m, nil
}

// parseDate parses a plan date in YYYY-MM-DD form.
func parseDate(field, value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, badRequest(field + " is required")
	}
	t, err := time.Parse("2006-01-02", value)
	if err != nil {
		return time.Time{}, badRequest("invalid " + field + ": expected YYYY-MM-DD")
	}
	return t, nil
}
