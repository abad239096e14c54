// Package handler implements the JSON HTTP API over the inventory,
// lifecycle, settings, form and media services.
package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/pkg/errors"

	"github.com/matthewbaird/assetdesk/internal/access"
	"github.com/matthewbaird/assetdesk/internal/domain"
	"github.com/matthewbaird/assetdesk/internal/fields"
	"github.com/matthewbaird/assetdesk/internal/form"
	"github.com/matthewbaird/assetdesk/internal/guard"
	"github.com/matthewbaird/assetdesk/internal/lifecycle"
	"github.com/matthewbaird/assetdesk/internal/media"
	"github.com/matthewbaird/assetdesk/internal/rates"
	"github.com/matthewbaird/assetdesk/internal/settings"
	"github.com/matthewbaird/assetdesk/internal/store"
)

// writeJSON marshals v as JSON and writes it with the given status code.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("writeJSON encode error", "error", err)
	}
}

// writeError writes a structured JSON error response.
func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, map[string]string{
		"error": message,
		"code":  code,
	})
}

// decodeJSON decodes the request body into v.
func decodeJSON(r *http.Request, v any) error {
	defer r.Body.Close()
	return json.NewDecoder(r.Body).Decode(v)
}

// decodeBody decodes the body into v and answers 400 when it is malformed.
func decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := decodeJSON(r, v); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_JSON", err.Error())
		return false
	}
	return true
}

// Pagination holds parsed pagination parameters.
type Pagination struct {
	Limit  int
	Offset int
}

// parsePagination extracts page_size and offset from query params.
func parsePagination(r *http.Request) Pagination {
	p := Pagination{Limit: 50, Offset: 0}
	if v := r.URL.Query().Get("page_size"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			p.Limit = n
		}
	}
	if p.Limit > 500 {
		p.Limit = 500
	}
	if v := r.URL.Query().Get("offset"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			p.Offset = n
		}
	}
	return p
}

// listResponse is the envelope of every list endpoint.
type listResponse[T any] struct {
	Items      []T `json:"items"`
	TotalCount int `json:"total_count"`
}

// page slices items according to the request's pagination.
func page[T any](r *http.Request, items []T) listResponse[T] {
	p := parsePagination(r)
	total := len(items)
	start := min(p.Offset, total)
	end := min(start+p.Limit, total)
	out := items[start:end]
	if out == nil {
		out = []T{}
	}
	return listResponse[T]{Items: out, TotalCount: total}
}

// actor returns the caller recorded by the access middleware. Routes
// mounted without it fall back to the X-Actor header.
func actor(r *http.Request) domain.Actor {
	if a, ok := access.ActorFrom(r.Context()); ok {
		return a
	}
	if name := r.Header.Get("X-Actor"); name != "" {
		source := r.Header.Get("X-Source")
		if source == "" {
			source = "user"
		}
		return domain.Actor{Name: name, Source: source, CorrelationID: r.Header.Get("X-Correlation-ID")}
	}
	return domain.System
}

// errorToHTTP maps service errors to HTTP responses.
func errorToHTTP(w http.ResponseWriter, r *http.Request, err error) {
	var verr *domain.ValidationError
	switch {
	case errors.As(err, &verr):
		writeJSON(w, http.StatusBadRequest, map[string]any{
			"error":  err.Error(),
			"code":   "VALIDATION_ERROR",
			"fields": verr.Fields,
		})
	case errors.Is(err, store.ErrNotFound), errors.Is(err, form.ErrSessionNotFound):
		writeError(w, http.StatusNotFound, "NOT_FOUND", err.Error())
	case errors.Is(err, store.ErrConflict):
		writeError(w, http.StatusConflict, "CONSTRAINT_ERROR", err.Error())
	case errors.Is(err, lifecycle.ErrInvalidTransition):
		writeError(w, http.StatusConflict, "INVALID_TRANSITION", err.Error())
	case errors.Is(err, guard.ErrBusy):
		writeError(w, http.StatusConflict, "BUSY", err.Error())
	case errors.Is(err, form.ErrClosed):
		writeError(w, http.StatusConflict, "SESSION_CLOSED", err.Error())
	case errors.Is(err, media.ErrUnsupportedType):
		writeError(w, http.StatusUnsupportedMediaType, "UNSUPPORTED_MEDIA_TYPE", err.Error())
	case errors.Is(err, settings.ErrUnknownKind),
		errors.Is(err, settings.ErrUnknownContext),
		errors.Is(err, settings.ErrInvalidScheme),
		errors.Is(err, form.ErrNoSuchTab),
		errors.Is(err, form.ErrEmptyDraft),
		errors.Is(err, fields.ErrNotApplicable),
		errors.Is(err, fields.ErrReadOnly),
		errors.Is(err, fields.ErrInvalidValue),
		errors.Is(err, rates.ErrUnknownCurrency),
		errors.Is(err, media.ErrInvalidName):
		writeError(w, http.StatusBadRequest, "BAD_REQUEST", err.Error())
	default:
		slog.ErrorContext(r.Context(), "internal error", "method", r.Method, "path", r.URL.Path, "error", err)
		writeError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "internal server error")
	}
}

// param returns a path parameter.
func param(r *http.Request, name string) string { return chi.URLParam(r, name) }
