package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"opsdesk/internal/core"
	applog "opsdesk/internal/log"
	"opsdesk/internal/services"
	"opsdesk/internal/units"
)

const maxBodyBytes = 1 << 20

// envelope is the body of every successful JSON response. Warnings carry
// persistence failures; alerts carry budget thresholds crossed by the request.
type envelope struct {
	Data     any                 `json:"data"`
	Warnings []string            `json:"warnings,omitempty"`
	Alerts   []core.BudgetStatus `json:"alerts,omitempty"`
}

type errorBody struct {
	Error     string `json:"error"`
	RequestID string `json:"requestId,omitempty"`
}

func writeJSON(w http.ResponseWriter, r *http.Request, status int, data any) {
	body := envelope{Data: data}
	if c := services.CollectorFrom(r.Context()); c != nil {
		body.Warnings = c.Warnings()
		body.Alerts = c.Alerts()
	}
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		applog.FromContext(r.Context()).ErrorContext(r.Context(), "Encode response failed", applog.FieldError, err)
	}
}

func writeError(w http.ResponseWriter, r *http.Request, status int, msg string) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(errorBody{Error: msg, RequestID: RequestID(r.Context())})
}

var validationErrors = []error{
	core.ErrInvalidDate,
	core.ErrInvalidAmount,
	core.ErrInvalidQuantity,
	core.ErrEmptyName,
	core.ErrEmptyCategory,
	core.ErrEmptyReference,
	core.ErrInvalidRecurring,
	units.ErrUnknownPack,
	units.ErrUnknownUnit,
	units.ErrInvalidPack,
}

// statusFor maps domain errors to HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, core.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, core.ErrDuplicate), errors.Is(err, core.ErrPackInUse):
		return http.StatusConflict
	}
	for _, v := range validationErrors {
		if errors.Is(err, v) {
			return http.StatusUnprocessableEntity
		}
	}
	return http.StatusInternalServerError
}

func (s *Server) fail(w http.ResponseWriter, r *http.Request, op string, err error) {
	status := statusFor(err)
	msg := err.Error()
	if status == http.StatusInternalServerError {
		applog.FromContext(r.Context()).ErrorContext(r.Context(), "Request failed",
			applog.FieldOperation, op, applog.FieldError, err)
		msg = "internal error"
	}
	writeError(w, r, status, msg)
}

// decodeJSON reads a single JSON object into v, rejecting unknown fields.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		writeError(w, r, http.StatusBadRequest, fmt.Sprintf("invalid request body: %v", err))
		return false
	}
	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		writeError(w, r, http.StatusBadRequest, "invalid request body: trailing data")
		return false
	}
	return true
}

// confirmDelete returns the confirmation for a DELETE, or writes 428 and
// returns nil when the caller did not pass confirm=true.
func confirmDelete(w http.ResponseWriter, r *http.Request) core.Confirm {
	if r.URL.Query().Get("confirm") != "true" {
		writeError(w, r, http.StatusPreconditionRequired, "deletion requires confirm=true")
		return nil
	}
	return core.AlwaysConfirm
}

func (s *Server) deleted(w http.ResponseWriter, r *http.Request, op string, ok bool, err error) {
	if err != nil {
		s.fail(w, r, op, err)
		return
	}
	writeJSON(w, r, http.StatusOK, map[string]bool{"deleted": ok})
}

// queryDate parses an optional YYYY-MM-DD query parameter.
func queryDate(r *http.Request, name string) (core.Date, error) {
	v := strings.TrimSpace(r.URL.Query().Get(name))
	if v == "" {
		return "", nil
	}
	d, err := core.ParseDate(v)
	if err != nil {
		return "", fmt.Errorf("%s: %w", name, err)
	}
	return d, nil
}

func queryFilter(r *http.Request, entityParam string) (services.Filter, error) {
	from, err := queryDate(r, "from")
	if err != nil {
		return services.Filter{}, err
	}
	to, err := queryDate(r, "to")
	if err != nil {
		return services.Filter{}, err
	}
	return services.Filter{From: from, To: to, EntityID: r.URL.Query().Get(entityParam)}, nil
}

// sanitizeInput removes control characters except tab, newline and carriage
// return, and trims whitespace.
func sanitizeInput(fields ...*string) {
	for _, f := range fields {
		*f = strings.Map(func(r rune) rune {
			if r < 32 && r != 9 && r != 10 && r != 13 {
				return -1
			}
			return r
		}, strings.TrimSpace(*f))
	}
}
