// Package lifecycle moves requests through approval and fulfillment. Every
// transition runs inside a single store transaction; a failure at any step
// leaves no trace and the caller retries the whole transition.
package lifecycle

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/matthewbaird/assetdesk/internal/domain"
	"github.com/matthewbaird/assetdesk/internal/event"
	"github.com/matthewbaird/assetdesk/internal/guard"
	"github.com/matthewbaird/assetdesk/internal/metrics"
	"github.com/matthewbaird/assetdesk/internal/store"
)

const (
	defaultLockTTL = 30 * time.Second
	defaultDueIn   = 7 * 24 * time.Hour
)

// Engine runs request transitions against a store.
type Engine struct {
	store   store.Store
	guard   guard.Guard
	rec     event.Recorder
	schemes domain.IDSchemeSource
	log     *slog.Logger
	now     func() time.Time
	lockTTL time.Duration
}

// New creates an Engine. A nil guard falls back to a process-local one.
func New(st store.Store, g guard.Guard, logger *slog.Logger) *Engine {
	if g == nil {
		g = guard.NewMemoryGuard()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{store: st, guard: g, log: logger, now: time.Now, lockTTL: defaultLockTTL}
}

// SetRecorder sets the recorder that receives events after each commit.
func (e *Engine) SetRecorder(r event.Recorder) { e.rec = r }

// SetIDScheme sets where the asset id scheme is read from.
func (e *Engine) SetIDScheme(s domain.IDSchemeSource) { e.schemes = s }

// scheme reads the id scheme through the root store, so it must be called
// before a transaction opens: the SQLite pool holds a single connection.
func (e *Engine) scheme(ctx context.Context) (domain.IDScheme, error) {
	if e.schemes == nil {
		return domain.DefaultIDScheme, nil
	}
	s, err := e.schemes.IDScheme(ctx)
	if err != nil {
		return domain.IDScheme{}, errors.Wrap(err, "loading id scheme")
	}
	return s, nil
}

// Outcome reports every record a transition wrote.
type Outcome struct {
	Request domain.Request      `json:"request"`
	Task    *domain.Task        `json:"task,omitempty"`
	Asset   *domain.Asset       `json:"asset,omitempty"`
	Family  *domain.AssetFamily `json:"family,omitempty"`
	Users   []domain.User       `json:"users,omitempty"`
	// Created is true when fulfillment issued a new asset instead of
	// reusing an Available one.
	Created bool `json:"created"`

	history int
	events  []event.DomainEvent
}

// ListRequests returns every request with In-Progress derived for approved
// requests that already carry a task.
func (e *Engine) ListRequests(ctx context.Context) ([]domain.Request, error) {
	reqs, err := e.store.ListRequests(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "listing requests")
	}
	for i := range reqs {
		reqs[i].Status = reqs[i].EffectiveStatus()
	}
	return reqs, nil
}

func (e *Engine) GetRequest(ctx context.Context, id string) (domain.Request, error) {
	r, err := e.store.GetRequest(ctx, id)
	if err != nil {
		return domain.Request{}, errors.Wrapf(err, "request %s", id)
	}
	r.Status = r.EffectiveStatus()
	return r, nil
}

func (e *Engine) ListTasks(ctx context.Context) ([]domain.Task, error) {
	tasks, err := e.store.ListTasks(ctx)
	return tasks, errors.Wrap(err, "listing tasks")
}

// ── Transitions ──────────────────────────────────────────────────────────────

// CreateRequest records a new Pending request.
func (e *Engine) CreateRequest(ctx context.Context, req domain.Request, by domain.Actor) (domain.Request, error) {
	if err := domain.Validate(req); err != nil {
		return domain.Request{}, err
	}
	if _, err := e.store.GetAssetFamily(ctx, req.FamilyID); err != nil {
		return domain.Request{}, errors.Wrapf(err, "family %s", req.FamilyID)
	}
	if _, err := e.store.GetUser(ctx, req.RequestedBy); err != nil {
		return domain.Request{}, errors.Wrapf(err, "requester %s", req.RequestedBy)
	}

	now := e.now()
	req.ID = uuid.NewString()
	req.Status = domain.RequestPending
	req.LinkedTaskID = ""
	req.FulfilledAssetID = ""
	if req.RequestDate == "" {
		req.RequestDate = domain.Today(now)
	}
	req.Audit = domain.Audit{}
	req.Stamp(by, now)

	if err := e.store.CreateRequest(ctx, req); err != nil {
		return domain.Request{}, errors.Wrap(err, "creating request")
	}
	event.Emit(ctx, e.rec, event.NewRequestSubmitted(requestPayload(req, ""), by))
	return req, nil
}

// BeginApproval returns the task draft shown when an admin approves a
// request. Nothing is written: the request stays Pending until the task is
// confirmed.
func (e *Engine) BeginApproval(ctx context.Context, requestID string) (domain.Task, error) {
	req, err := e.store.GetRequest(ctx, requestID)
	if err != nil {
		return domain.Task{}, errors.Wrapf(err, "request %s", requestID)
	}
	if err := validateRequest(req, domain.RequestApproved); err != nil {
		return domain.Task{}, err
	}

	desc := "Fulfill request " + req.ID
	if f, err := e.store.GetAssetFamily(ctx, req.FamilyID); err == nil {
		desc = fmt.Sprintf("Provision %s for request %s", f.Name, req.ID)
	}
	return domain.Task{
		RequestID:   req.ID,
		Priority:    domain.PriorityMedium,
		Status:      domain.TaskTodo,
		DueDate:     domain.Today(e.now().Add(defaultDueIn)),
		Description: desc,
	}, nil
}

// ConfirmTask approves the request, creates its task and fulfills it in
// one transaction: an Available instance of the family is reused when one
// exists, otherwise a new instance is issued.
func (e *Engine) ConfirmTask(ctx context.Context, requestID string, task domain.Task, by domain.Actor) (Outcome, error) {
	scheme, err := e.scheme(ctx)
	if err != nil {
		return Outcome{}, err
	}
	return e.transition(ctx, "confirm_task", requestID, by, func(tx store.Store, req domain.Request) (Outcome, error) {
		approved, err := e.approve(ctx, tx, req, task, by)
		if err != nil {
			return Outcome{}, err
		}
		target, err := firstAvailable(ctx, tx, req.FamilyID)
		if err != nil {
			return Outcome{}, err
		}
		out, err := e.fulfill(ctx, tx, scheme, approved.Request, target, by)
		if err != nil {
			return Outcome{}, err
		}
		out.Task = approved.Task
		out.events = append(approved.events, out.events...)
		return out, nil
	})
}

// DeferTask approves the request and creates its task but leaves
// fulfillment for later. The request reads as In-Progress until
// MarkFulfilled completes it.
func (e *Engine) DeferTask(ctx context.Context, requestID string, task domain.Task, by domain.Actor) (Outcome, error) {
	return e.transition(ctx, "defer_task", requestID, by, func(tx store.Store, req domain.Request) (Outcome, error) {
		out, err := e.approve(ctx, tx, req, task, by)
		if err != nil {
			return Outcome{}, err
		}
		out.Request.Status = out.Request.EffectiveStatus()
		return out, nil
	})
}

// approve validates task, creates it and links it to the now Approved
// request.
func (e *Engine) approve(ctx context.Context, tx store.Store, req domain.Request, task domain.Task, by domain.Actor) (Outcome, error) {
	if err := validateRequest(req, domain.RequestApproved); err != nil {
		return Outcome{}, err
	}
	if err := domain.Validate(task); err != nil {
		return Outcome{}, err
	}

	from := req.Status
	now := e.now()
	task.ID = uuid.NewString()
	task.RequestID = req.ID
	task.Status = domain.TaskTodo
	task.Audit = domain.Audit{}
	task.Stamp(by, now)
	if err := tx.CreateTask(ctx, task); err != nil {
		return Outcome{}, errors.Wrap(err, "creating task")
	}

	req.Status = domain.RequestApproved
	req.LinkedTaskID = task.ID
	req.Stamp(by, now)
	if err := tx.UpdateRequest(ctx, req); err != nil {
		return Outcome{}, errors.Wrap(err, "approving request")
	}

	p := requestPayload(req, "")
	p.From = from
	return Outcome{
		Request: req,
		Task:    &task,
		events:  []event.DomainEvent{event.NewRequestApproved(p, by)},
	}, nil
}

// Reject moves a Pending request to Rejected.
func (e *Engine) Reject(ctx context.Context, requestID string, by domain.Actor) (Outcome, error) {
	return e.transition(ctx, "reject", requestID, by, func(tx store.Store, req domain.Request) (Outcome, error) {
		if err := validateRequest(req, domain.RequestRejected); err != nil {
			return Outcome{}, err
		}
		from := req.Status
		req.Status = domain.RequestRejected
		req.Stamp(by, e.now())
		if err := tx.UpdateRequest(ctx, req); err != nil {
			return Outcome{}, errors.Wrap(err, "rejecting request")
		}
		p := requestPayload(req, "")
		p.From = from
		return Outcome{Request: req, events: []event.DomainEvent{event.NewRequestRejected(p, by)}}, nil
	})
}

// MarkFulfilled fulfills an approved or In-Progress request directly with
// a new asset.
func (e *Engine) MarkFulfilled(ctx context.Context, requestID string, by domain.Actor) (Outcome, error) {
	scheme, err := e.scheme(ctx)
	if err != nil {
		return Outcome{}, err
	}
	return e.transition(ctx, "mark_fulfilled", requestID, by, func(tx store.Store, req domain.Request) (Outcome, error) {
		return e.fulfill(ctx, tx, scheme, req, nil, by)
	})
}

// transition holds the request's guard, loads it inside a transaction and
// runs fn. Events are recorded only after the commit.
func (e *Engine) transition(ctx context.Context, name, requestID string, by domain.Actor,
	fn func(tx store.Store, req domain.Request) (Outcome, error)) (out Outcome, err error) {
	defer func() {
		metrics.TransitionsTotal.WithLabelValues(name, metrics.Outcome(err)).Inc()
	}()

	release, err := e.guard.Acquire(ctx, "request:"+requestID, e.lockTTL)
	if err != nil {
		return Outcome{}, errors.Wrapf(err, "request %s", requestID)
	}
	defer release()

	err = e.store.InTx(ctx, func(tx store.Store) error {
		req, err := tx.GetRequest(ctx, requestID)
		if err != nil {
			return errors.Wrapf(err, "request %s", requestID)
		}
		out, err = fn(tx, req)
		return err
	})
	if err != nil {
		e.log.Warn("request transition failed", "transition", name, "request_id", requestID, "error", err)
		return Outcome{}, err
	}

	metrics.HistoryEntriesWritten.Add(float64(out.history))
	event.Emit(ctx, e.rec, out.events...)
	e.log.Info("request transition", "transition", name, "request_id", requestID,
		"status", out.Request.Status, "actor", by.Name)
	return out, nil
}

func firstAvailable(ctx context.Context, tx store.Store, familyID string) (*domain.Asset, error) {
	assets, err := tx.ListAssets(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "listing assets")
	}
	for _, a := range store.FamilyAssets(assets, familyID) {
		if a.Status == domain.StatusAvailable {
			a := a.Clone()
			return &a, nil
		}
	}
	return nil, nil
}

func requestPayload(r domain.Request, assetID string) event.RequestPayload {
	return event.RequestPayload{
		RequestID:   r.ID,
		FamilyID:    r.FamilyID,
		RequestedBy: r.RequestedBy,
		From:        r.Status,
		TaskID:      r.LinkedTaskID,
		AssetID:     assetID,
	}
}
