package handler

import (
	"net/http"
	"strings"

	"github.com/matthewbaird/assetdesk/internal/domain"
	"github.com/matthewbaird/assetdesk/internal/layout"
	"github.com/matthewbaird/assetdesk/internal/settings"
)

// SettingsHandler implements HTTP handlers for categories, the asset id
// scheme, form layouts and reference lists.
type SettingsHandler struct {
	svc *settings.Service
}

// NewSettingsHandler creates a new SettingsHandler.
func NewSettingsHandler(svc *settings.Service) *SettingsHandler {
	return &SettingsHandler{svc: svc}
}

// GetSettings returns every configuration value in one document.
// GET /v1/settings
func (h *SettingsHandler) GetSettings(w http.ResponseWriter, r *http.Request) {
	snap, err := h.svc.Snapshot(r.Context())
	if err != nil {
		errorToHTTP(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

// PUT /v1/settings/categories/{kind}
func (h *SettingsHandler) SetCategories(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Categories []string `json:"categories"`
	}
	if !decodeBody(w, r, &req) {
		return
	}
	kind := settings.CategoryKind(param(r, "kind"))
	values, err := h.svc.SetCategories(r.Context(), kind, req.Categories, actor(r))
	if err != nil {
		errorToHTTP(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"kind": kind, "categories": values})
}

// PUT /v1/settings/id-scheme
func (h *SettingsHandler) SetIDScheme(w http.ResponseWriter, r *http.Request) {
	var scheme domain.IDScheme
	if !decodeBody(w, r, &scheme) {
		return
	}
	saved, err := h.svc.SetIDScheme(r.Context(), scheme, actor(r))
	if err != nil {
		errorToHTTP(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, saved)
}

// ── Layouts ──────────────────────────────────────────────────────────────────

// GET /v1/settings/layouts
func (h *SettingsHandler) ListLayouts(w http.ResponseWriter, r *http.Request) {
	layouts, err := h.svc.Layouts(r.Context())
	if err != nil {
		errorToHTTP(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, layouts)
}

// GetLayout returns the effective layout of a context along with the field
// keys that are not placed in it yet.
// GET /v1/settings/layouts/{context}
func (h *SettingsHandler) GetLayout(w http.ResponseWriter, r *http.Request) {
	c := layout.Context(param(r, "context"))
	l, err := h.svc.Layout(r.Context(), c)
	if err != nil {
		errorToHTTP(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, layoutResponse{Context: c, Layout: l, Unplaced: layout.Unplaced(c, l)})
}

type layoutResponse struct {
	Context  layout.Context `json:"context"`
	Layout   layout.Layout  `json:"layout"`
	Unplaced []string       `json:"unplaced"`
}

// PutLayout replaces the layout of a context.
// PUT /v1/settings/layouts/{context}
func (h *SettingsHandler) PutLayout(w http.ResponseWriter, r *http.Request) {
	var l layout.Layout
	if !decodeBody(w, r, &l) {
		return
	}
	c := layout.Context(param(r, "context"))
	saved, err := h.svc.SaveLayout(r.Context(), c, l, actor(r))
	if err != nil {
		errorToHTTP(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, layoutResponse{Context: c, Layout: saved, Unplaced: layout.Unplaced(c, saved)})
}

// EditLayout applies a list of editing ops to the stored layout.
// POST /v1/settings/layouts/{context}/ops
func (h *SettingsHandler) EditLayout(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Ops []layout.Op `json:"ops"`
	}
	if !decodeBody(w, r, &req) {
		return
	}
	c := layout.Context(param(r, "context"))
	saved, err := h.svc.EditLayout(r.Context(), c, req.Ops, actor(r))
	if err != nil {
		errorToHTTP(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, layoutResponse{Context: c, Layout: saved, Unplaced: layout.Unplaced(c, saved)})
}

// DELETE /v1/settings/layouts/{context}
func (h *SettingsHandler) ResetLayout(w http.ResponseWriter, r *http.Request) {
	c := layout.Context(param(r, "context"))
	l, err := h.svc.ResetLayout(r.Context(), c, actor(r))
	if err != nil {
		errorToHTTP(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, layoutResponse{Context: c, Layout: l, Unplaced: layout.Unplaced(c, l)})
}

// ── Reference lists ──────────────────────────────────────────────────────────

// GET /v1/reference/{kind}
func (h *SettingsHandler) ListReferences(w http.ResponseWriter, r *http.Request) {
	names, err := h.svc.References(r.Context(), domain.ReferenceKind(param(r, "kind")))
	if err != nil {
		errorToHTTP(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, page(r, names))
}

// POST /v1/reference/{kind}
func (h *SettingsHandler) AddReference(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name string `json:"name"`
	}
	if !decodeBody(w, r, &req) {
		return
	}
	ref, err := h.svc.AddReference(r.Context(), domain.ReferenceKind(param(r, "kind")), req.Name, actor(r))
	if err != nil {
		errorToHTTP(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, ref)
}

// DELETE /v1/reference/{kind}/{name}
func (h *SettingsHandler) DeleteReference(w http.ResponseWriter, r *http.Request) {
	name := strings.TrimSpace(param(r, "name"))
	if err := h.svc.DeleteReference(r.Context(), domain.ReferenceKind(param(r, "kind")), name, actor(r)); err != nil {
		errorToHTTP(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
