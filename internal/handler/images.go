package handler

import (
	"net/http"

	"github.com/matthewbaird/assetdesk/internal/media"
)

const maxUploadBytes = 10 << 20

// ImageHandler implements HTTP handlers for the per-folder image library.
type ImageHandler struct {
	store media.Store
}

// NewImageHandler creates a new ImageHandler.
func NewImageHandler(store media.Store) *ImageHandler {
	return &ImageHandler{store: store}
}

// Upload stores the multipart "file" part in the folder.
// POST /v1/images/{folder}
func (h *ImageHandler) Upload(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_UPLOAD", err.Error())
		return
	}
	file, hdr, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_UPLOAD", "multipart field \"file\" is required")
		return
	}
	defer file.Close()

	url, err := h.store.Upload(r.Context(), param(r, "folder"), hdr.Filename, file, hdr.Header.Get("Content-Type"))
	if err != nil {
		errorToHTTP(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{"url": url})
}

// List returns the URL of every image in the folder.
// GET /v1/images/{folder}
func (h *ImageHandler) List(w http.ResponseWriter, r *http.Request) {
	urls, err := h.store.List(r.Context(), param(r, "folder"))
	if err != nil {
		errorToHTTP(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"urls": urls})
}
