package handler

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/matthewbaird/assetdesk/internal/fields"
	"github.com/matthewbaird/assetdesk/internal/form"
	"github.com/matthewbaird/assetdesk/internal/layout"
	"github.com/matthewbaird/assetdesk/internal/metrics"
)

// FormHandler exposes form sessions: open a draft under a layout context,
// switch tabs, edit fields one at a time, then submit or cancel.
type FormHandler struct {
	forms *form.Manager
}

// NewFormHandler creates a new FormHandler.
func NewFormHandler(forms *form.Manager) *FormHandler {
	return &FormHandler{forms: forms}
}

type openFormRequest struct {
	Context layout.Context `json:"context"`
	Draft   fields.Draft   `json:"draft"`
}

// Open starts a session and returns its first view.
// POST /v1/forms
func (h *FormHandler) Open(w http.ResponseWriter, r *http.Request) {
	var req openFormRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if !req.Context.Valid() {
		writeError(w, http.StatusBadRequest, "UNKNOWN_CONTEXT", "unknown layout context: "+string(req.Context))
		return
	}
	v, err := h.forms.Open(r.Context(), req.Context, req.Draft)
	if err != nil {
		errorToHTTP(w, r, err)
		return
	}
	metrics.FormSessions.Set(float64(h.forms.Len()))
	writeJSON(w, http.StatusCreated, v)
}

// GET /v1/forms/{id}
func (h *FormHandler) View(w http.ResponseWriter, r *http.Request) {
	v, err := h.forms.View(r.Context(), param(r, "id"))
	if err != nil {
		errorToHTTP(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, v)
}

// POST /v1/forms/{id}/tabs/{index}
func (h *FormHandler) SelectTab(w http.ResponseWriter, r *http.Request) {
	index, err := strconv.Atoi(param(r, "index"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_INDEX", "tab index must be an integer")
		return
	}
	v, err := h.forms.SelectTab(r.Context(), param(r, "id"), index)
	if err != nil {
		errorToHTTP(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, v)
}

// Edit applies the request body as the new value of one field. The body
// is the raw JSON value, e.g. "Laptop" or ["u1","u2"].
// PUT /v1/forms/{id}/fields/{key}
func (h *FormHandler) Edit(w http.ResponseWriter, r *http.Request) {
	var raw json.RawMessage
	if !decodeBody(w, r, &raw) {
		return
	}
	v, err := h.forms.Edit(r.Context(), param(r, "id"), param(r, "key"), raw)
	if err != nil {
		errorToHTTP(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, v)
}

// Submit persists the draft and closes the session. A failed submit keeps
// the session open.
// POST /v1/forms/{id}/submit
func (h *FormHandler) Submit(w http.ResponseWriter, r *http.Request) {
	committed, err := h.forms.Submit(r.Context(), param(r, "id"), actor(r))
	if err != nil {
		errorToHTTP(w, r, err)
		return
	}
	metrics.FormSessions.Set(float64(h.forms.Len()))
	writeJSON(w, http.StatusOK, committed)
}

// DELETE /v1/forms/{id}
func (h *FormHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	if err := h.forms.Cancel(param(r, "id")); err != nil {
		errorToHTTP(w, r, err)
		return
	}
	metrics.FormSessions.Set(float64(h.forms.Len()))
	w.WriteHeader(http.StatusNoContent)
}
