// Package form runs editing sessions over a layout: a session is opened on
// a draft record, moves between tabs on request, applies field edits through
// the field registry and ends in Submit or Cancel.
package form

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/matthewbaird/assetdesk/internal/domain"
	"github.com/matthewbaird/assetdesk/internal/fields"
	"github.com/matthewbaird/assetdesk/internal/layout"
)

// State is the coarse state of a session.
type State string

const (
	StateClosed State = "closed"
	StateOpen   State = "open"
)

var (
	// ErrSessionNotFound is returned for unknown, expired or idle sessions.
	ErrSessionNotFound = errors.New("form session not found")
	// ErrNoSuchTab is returned when selecting a tab index the layout lacks.
	ErrNoSuchTab = errors.New("no such tab")
	// ErrClosed is returned when acting on a session that already ended.
	ErrClosed = errors.New("form session is closed")
	// ErrEmptyDraft is returned when opening a session without a record.
	ErrEmptyDraft = errors.New("draft has no record")
)

// LayoutSource supplies the current layout of a context.
type LayoutSource interface {
	Layout(ctx context.Context, c layout.Context) (layout.Layout, error)
}

// EnvSource supplies the read-only data a draft is resolved against.
type EnvSource interface {
	Env(ctx context.Context, c layout.Context, d fields.Draft) (fields.Env, error)
}

// Submission is what a session hands over on submit.
type Submission struct {
	Context  layout.Context
	Draft    fields.Draft
	Original fields.Draft
	Actor    domain.Actor
}

// Submitter persists a submitted draft and returns the committed record.
type Submitter interface {
	Submit(ctx context.Context, s Submission) (fields.Draft, error)
}

// Session holds one open editor.
type Session struct {
	ID        string         `json:"id"`
	Context   layout.Context `json:"context"`
	State     State          `json:"state"`
	Tab       int            `json:"tab"`
	Draft     fields.Draft   `json:"draft"`
	CreatedAt time.Time      `json:"created_at"`

	// lastActive is read by cleanup without taking mu.
	lastActive atomic.Int64

	mu       sync.Mutex
	layout   layout.Layout
	original fields.Draft
}

func (s *Session) touch() { s.lastActive.Store(time.Now().UnixNano()) }

// LastActiveAt is the time of the last action on the session.
func (s *Session) LastActiveAt() time.Time { return time.Unix(0, s.lastActive.Load()) }

// IsExpired returns true if the session has exceeded the given max age.
func (s *Session) IsExpired(maxAge time.Duration) bool {
	return time.Since(s.CreatedAt) > maxAge
}

// IsIdle returns true if the session has been idle longer than the timeout.
func (s *Session) IsIdle(timeout time.Duration) bool {
	return time.Since(s.LastActiveAt()) > timeout
}

// Manager handles session creation, lookup and cleanup, and drives every
// session transition.
type Manager struct {
	layouts LayoutSource
	envs    EnvSource
	submit  Submitter
	log     *slog.Logger

	mu          sync.RWMutex
	sessions    map[string]*Session
	maxAge      time.Duration
	idleTimeout time.Duration
}

// NewManager creates a session manager with the given timeouts.
func NewManager(layouts LayoutSource, envs EnvSource, submit Submitter, maxAge, idleTimeout time.Duration, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{
		layouts:     layouts,
		envs:        envs,
		submit:      submit,
		log:         logger,
		sessions:    make(map[string]*Session),
		maxAge:      maxAge,
		idleTimeout: idleTimeout,
	}
}

// Open starts a session on a copy of d and selects the first tab that has
// sections.
func (m *Manager) Open(ctx context.Context, c layout.Context, d fields.Draft) (View, error) {
	if !c.Valid() {
		return View{}, errors.Errorf("unknown layout context %q", c)
	}
	if d.Family == nil && d.Asset == nil && d.User == nil {
		return View{}, ErrEmptyDraft
	}
	l, err := m.layouts.Layout(ctx, c)
	if err != nil {
		return View{}, errors.Wrapf(err, "loading %s layout", c)
	}
	now := time.Now()
	s := &Session{
		ID:        uuid.NewString(),
		Context:   c,
		State:     StateOpen,
		Tab:       firstEnterable(l),
		Draft:     d.Clone(),
		CreatedAt: now,
		layout:    l,
		original:  d.Clone(),
	}
	s.touch()
	m.mu.Lock()
	m.sessions[s.ID] = s
	m.mu.Unlock()

	m.log.Debug("form opened", "session", s.ID, "context", c)
	s.mu.Lock()
	defer s.mu.Unlock()
	return m.view(ctx, s)
}

// Get retrieves a session by ID. Returns nil if not found or expired.
func (m *Manager) Get(id string) *Session {
	m.mu.RLock()
	s, ok := m.sessions[id]
	m.mu.RUnlock()
	if !ok {
		return nil
	}
	if s.IsExpired(m.maxAge) || s.IsIdle(m.idleTimeout) {
		m.Remove(id)
		return nil
	}
	return s
}

// Remove deletes a session.
func (m *Manager) Remove(id string) {
	m.mu.Lock()
	delete(m.sessions, id)
	m.mu.Unlock()
}

// Len reports the number of live sessions.
func (m *Manager) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

// Cleanup removes all expired and idle sessions.
func (m *Manager) Cleanup() {
	m.mu.Lock()
	defer m.mu.Unlock()
	for id, s := range m.sessions {
		if s.IsExpired(m.maxAge) || s.IsIdle(m.idleTimeout) {
			delete(m.sessions, id)
		}
	}
}

// Run calls Cleanup every interval until ctx is done.
func (m *Manager) Run(ctx context.Context, interval time.Duration) {
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			m.Cleanup()
		}
	}
}

// with locks the session and runs fn on it while it is open.
func (m *Manager) with(id string, fn func(s *Session) error) error {
	s := m.Get(id)
	if s == nil {
		return errors.Wrapf(ErrSessionNotFound, "session %s", id)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.State != StateOpen {
		return ErrClosed
	}
	s.touch()
	return fn(s)
}

// View renders the active tab of a session.
func (m *Manager) View(ctx context.Context, id string) (View, error) {
	var v View
	err := m.with(id, func(s *Session) error {
		var err error
		v, err = m.view(ctx, s)
		return err
	})
	return v, err
}

// SelectTab moves to tab index. Tabs without sections cannot be entered;
// selecting one leaves the session where it was.
func (m *Manager) SelectTab(ctx context.Context, id string, index int) (View, error) {
	var v View
	err := m.with(id, func(s *Session) error {
		if index < 0 || index >= len(s.layout.Tabs) {
			return errors.Wrapf(ErrNoSuchTab, "tab %d", index)
		}
		if len(s.layout.Tabs[index].Sections) > 0 {
			s.Tab = index
		}
		var err error
		v, err = m.view(ctx, s)
		return err
	})
	return v, err
}

// Edit applies one field edit to the session draft. A failed edit leaves
// the draft unchanged.
func (m *Manager) Edit(ctx context.Context, id, key string, raw json.RawMessage) (View, error) {
	var v View
	err := m.with(id, func(s *Session) error {
		env, err := m.envs.Env(ctx, s.Context, s.Draft)
		if err != nil {
			return err
		}
		next := s.Draft.Clone()
		if err := fields.Apply(ctx, key, &next, env, raw); err != nil {
			return err
		}
		s.Draft = next
		v, err = m.view(ctx, s)
		return err
	})
	return v, err
}

// Submit hands the draft to the submitter and closes the session. When the
// submitter fails the session stays open with its draft intact.
func (m *Manager) Submit(ctx context.Context, id string, actor domain.Actor) (fields.Draft, error) {
	var committed fields.Draft
	err := m.with(id, func(s *Session) error {
		var err error
		committed, err = m.submit.Submit(ctx, Submission{
			Context:  s.Context,
			Draft:    s.Draft.Clone(),
			Original: s.original.Clone(),
			Actor:    actor,
		})
		if err != nil {
			return err
		}
		s.State = StateClosed
		return nil
	})
	if err != nil {
		return fields.Draft{}, err
	}
	m.Remove(id)
	m.log.Debug("form submitted", "session", id)
	return committed, nil
}

// Cancel discards the session and its draft.
func (m *Manager) Cancel(id string) error {
	err := m.with(id, func(s *Session) error {
		s.State = StateClosed
		return nil
	})
	if err != nil {
		return err
	}
	m.Remove(id)
	return nil
}

// firstEnterable is the index of the first tab with sections, or 0 when
// no tab has any.
func firstEnterable(l layout.Layout) int {
	for i, t := range l.Tabs {
		if len(t.Sections) > 0 {
			return i
		}
	}
	return 0
}

func (m *Manager) view(ctx context.Context, s *Session) (View, error) {
	env, err := m.envs.Env(ctx, s.Context, s.Draft)
	if err != nil {
		return View{}, err
	}
	return View{
		SessionID: s.ID,
		Context:   s.Context,
		State:     s.State,
		ActiveTab: s.Tab,
		Tabs:      Tabs(s.layout),
		Sections:  Render(s.layout, s.Tab, s.Draft, env),
	}, nil
}
