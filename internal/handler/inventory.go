package handler

import (
	"net/http"
	"slices"

	"github.com/matthewbaird/assetdesk/internal/domain"
	"github.com/matthewbaird/assetdesk/internal/inventory"
)

// InventoryHandler implements HTTP handlers for families, assets and users.
type InventoryHandler struct {
	svc *inventory.Service
}

// NewInventoryHandler creates a new InventoryHandler.
func NewInventoryHandler(svc *inventory.Service) *InventoryHandler {
	return &InventoryHandler{svc: svc}
}

// ---------------------------------------------------------------------------
// Families
// ---------------------------------------------------------------------------

func (h *InventoryHandler) ListFamilies(w http.ResponseWriter, r *http.Request) {
	families, err := h.svc.ListFamilies(r.Context())
	if err != nil {
		errorToHTTP(w, r, err)
		return
	}
	if t := r.URL.Query().Get("type"); t != "" {
		filtered := families[:0]
		for _, f := range families {
			if string(f.AssetType) == t {
				filtered = append(filtered, f)
			}
		}
		families = filtered
	}
	writeJSON(w, http.StatusOK, page(r, families))
}

func (h *InventoryHandler) GetFamily(w http.ResponseWriter, r *http.Request) {
	f, err := h.svc.GetFamily(r.Context(), param(r, "id"))
	if err != nil {
		errorToHTTP(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, f)
}

func (h *InventoryHandler) CreateFamily(w http.ResponseWriter, r *http.Request) {
	var f domain.AssetFamily
	if !decodeBody(w, r, &f) {
		return
	}
	created, err := h.svc.CreateFamily(r.Context(), f, actor(r))
	if err != nil {
		errorToHTTP(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

func (h *InventoryHandler) UpdateFamily(w http.ResponseWriter, r *http.Request) {
	var f domain.AssetFamily
	if !decodeBody(w, r, &f) {
		return
	}
	f.ID = param(r, "id")
	updated, err := h.svc.UpdateFamily(r.Context(), f, actor(r))
	if err != nil {
		errorToHTTP(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

// BulkCreate issues Count new instances of a family.
// POST /v1/families/{id}/assets:bulk
func (h *InventoryHandler) BulkCreate(w http.ResponseWriter, r *http.Request) {
	var spec inventory.BulkSpec
	if !decodeBody(w, r, &spec) {
		return
	}
	created, err := h.svc.BulkCreate(r.Context(), param(r, "id"), spec, actor(r))
	if err != nil {
		errorToHTTP(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, listResponse[domain.Asset]{Items: created, TotalCount: len(created)})
}

// ---------------------------------------------------------------------------
// Assets
// ---------------------------------------------------------------------------

func (h *InventoryHandler) ListAssets(w http.ResponseWriter, r *http.Request) {
	assets, err := h.svc.ListAssets(r.Context())
	if err != nil {
		errorToHTTP(w, r, err)
		return
	}
	q := r.URL.Query()
	famID, status, owner := q.Get("family_id"), q.Get("status"), q.Get("owner")
	filtered := make([]domain.Asset, 0, len(assets))
	for _, a := range assets {
		if famID != "" && a.FamilyID != famID {
			continue
		}
		if status != "" && string(a.Status) != status {
			continue
		}
		if owner != "" && !slices.Contains(a.Owners(), owner) {
			continue
		}
		filtered = append(filtered, a)
	}
	writeJSON(w, http.StatusOK, page(r, filtered))
}

func (h *InventoryHandler) GetAsset(w http.ResponseWriter, r *http.Request) {
	a, err := h.svc.GetAsset(r.Context(), param(r, "id"))
	if err != nil {
		errorToHTTP(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, a)
}

func (h *InventoryHandler) CreateAsset(w http.ResponseWriter, r *http.Request) {
	var a domain.Asset
	if !decodeBody(w, r, &a) {
		return
	}
	res, err := h.svc.CreateAsset(r.Context(), a, actor(r))
	if err != nil {
		errorToHTTP(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, res)
}

type updateAssetRequest struct {
	Asset domain.Asset `json:"asset"`
	inventory.EditOptions
}

// UpdateAsset saves an edited asset and fans the resulting history out to
// every affected user.
func (h *InventoryHandler) UpdateAsset(w http.ResponseWriter, r *http.Request) {
	var req updateAssetRequest
	if !decodeBody(w, r, &req) {
		return
	}
	req.Asset.ID = param(r, "id")
	res, err := h.svc.UpdateAsset(r.Context(), req.Asset, req.EditOptions, actor(r))
	if err != nil {
		errorToHTTP(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// UnlockAssetID replaces the generated asset id.
// POST /v1/assets/{id}/unlock-id
func (h *InventoryHandler) UnlockAssetID(w http.ResponseWriter, r *http.Request) {
	var req struct {
		AssetID string `json:"asset_id"`
	}
	if !decodeBody(w, r, &req) {
		return
	}
	a, err := h.svc.UnlockAssetID(r.Context(), param(r, "id"), req.AssetID, actor(r))
	if err != nil {
		errorToHTTP(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, a)
}

func (h *InventoryHandler) AssetHistory(w http.ResponseWriter, r *http.Request) {
	log, err := h.svc.AssetHistory(r.Context(), param(r, "id"))
	if err != nil {
		errorToHTTP(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, log)
}

// ---------------------------------------------------------------------------
// Users
// ---------------------------------------------------------------------------

func (h *InventoryHandler) ListUsers(w http.ResponseWriter, r *http.Request) {
	users, err := h.svc.ListUsers(r.Context())
	if err != nil {
		errorToHTTP(w, r, err)
		return
	}
	if dept := r.URL.Query().Get("department"); dept != "" {
		filtered := users[:0]
		for _, u := range users {
			if u.Department == dept {
				filtered = append(filtered, u)
			}
		}
		users = filtered
	}
	writeJSON(w, http.StatusOK, page(r, users))
}

func (h *InventoryHandler) GetUser(w http.ResponseWriter, r *http.Request) {
	u, err := h.svc.GetUser(r.Context(), param(r, "id"))
	if err != nil {
		errorToHTTP(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, u)
}

func (h *InventoryHandler) UserHistory(w http.ResponseWriter, r *http.Request) {
	log, err := h.svc.UserHistory(r.Context(), param(r, "id"))
	if err != nil {
		errorToHTTP(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, log)
}

func (h *InventoryHandler) CreateUser(w http.ResponseWriter, r *http.Request) {
	var u domain.User
	if !decodeBody(w, r, &u) {
		return
	}
	created, err := h.svc.CreateUser(r.Context(), u, actor(r))
	if err != nil {
		errorToHTTP(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

func (h *InventoryHandler) UpdateUser(w http.ResponseWriter, r *http.Request) {
	var u domain.User
	if !decodeBody(w, r, &u) {
		return
	}
	u.ID = param(r, "id")
	updated, err := h.svc.UpdateUser(r.Context(), u, actor(r))
	if err != nil {
		errorToHTTP(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

// DeleteUser removes a user without touching their assets and reports the
// assets left pointing at them.
func (h *InventoryHandler) DeleteUser(w http.ResponseWriter, r *http.Request) {
	report, err := h.svc.DeleteUser(r.Context(), param(r, "id"), actor(r))
	if err != nil {
		errorToHTTP(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}
