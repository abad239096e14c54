package handler

import (
	"net/http"

	"github.com/matthewbaird/assetdesk/internal/domain"
	"github.com/matthewbaird/assetdesk/internal/lifecycle"
)

// RequestHandler implements HTTP handlers for requests and tasks. Every
// transition goes through the lifecycle engine.
type RequestHandler struct {
	engine *lifecycle.Engine
}

// NewRequestHandler creates a new RequestHandler.
func NewRequestHandler(engine *lifecycle.Engine) *RequestHandler {
	return &RequestHandler{engine: engine}
}

func (h *RequestHandler) ListRequests(w http.ResponseWriter, r *http.Request) {
	reqs, err := h.engine.ListRequests(r.Context())
	if err != nil {
		errorToHTTP(w, r, err)
		return
	}
	q := r.URL.Query()
	status, by := q.Get("status"), q.Get("requested_by")
	filtered := make([]domain.Request, 0, len(reqs))
	for _, req := range reqs {
		if status != "" && string(req.Status) != status {
			continue
		}
		if by != "" && req.RequestedBy != by {
			continue
		}
		filtered = append(filtered, req)
	}
	writeJSON(w, http.StatusOK, page(r, filtered))
}

func (h *RequestHandler) GetRequest(w http.ResponseWriter, r *http.Request) {
	req, err := h.engine.GetRequest(r.Context(), param(r, "id"))
	if err != nil {
		errorToHTTP(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, req)
}

func (h *RequestHandler) CreateRequest(w http.ResponseWriter, r *http.Request) {
	var req domain.Request
	if !decodeBody(w, r, &req) {
		return
	}
	created, err := h.engine.CreateRequest(r.Context(), req, actor(r))
	if err != nil {
		errorToHTTP(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

// Approve returns the task draft for a Pending request. The request is not
// changed until the draft is posted back to confirm-task.
// POST /v1/requests/{id}/approve
func (h *RequestHandler) Approve(w http.ResponseWriter, r *http.Request) {
	task, err := h.engine.BeginApproval(r.Context(), param(r, "id"))
	if err != nil {
		errorToHTTP(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, task)
}

// ConfirmTask creates the task, approves the request and fulfills it.
// With ?fulfill=later the request is left In-Progress for /fulfill.
// POST /v1/requests/{id}/confirm-task
func (h *RequestHandler) ConfirmTask(w http.ResponseWriter, r *http.Request) {
	var task domain.Task
	if !decodeBody(w, r, &task) {
		return
	}
	confirm := h.engine.ConfirmTask
	if r.URL.Query().Get("fulfill") == "later" {
		confirm = h.engine.DeferTask
	}
	out, err := confirm(r.Context(), param(r, "id"), task, actor(r))
	if err != nil {
		errorToHTTP(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *RequestHandler) Reject(w http.ResponseWriter, r *http.Request) {
	out, err := h.engine.Reject(r.Context(), param(r, "id"), actor(r))
	if err != nil {
		errorToHTTP(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

// Fulfill completes an Approved or In-Progress request that was never
// fulfilled.
// POST /v1/requests/{id}/fulfill
func (h *RequestHandler) Fulfill(w http.ResponseWriter, r *http.Request) {
	out, err := h.engine.MarkFulfilled(r.Context(), param(r, "id"), actor(r))
	if err != nil {
		errorToHTTP(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *RequestHandler) ListTasks(w http.ResponseWriter, r *http.Request) {
	tasks, err := h.engine.ListTasks(r.Context())
	if err != nil {
		errorToHTTP(w, r, err)
		return
	}
	if assignee := r.URL.Query().Get("assigned_to"); assignee != "" {
		filtered := tasks[:0]
		for _, t := range tasks {
			if t.AssignedTo == assignee {
				filtered = append(filtered, t)
			}
		}
		tasks = filtered
	}
	writeJSON(w, http.StatusOK, page(r, tasks))
}
