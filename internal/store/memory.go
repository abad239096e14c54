package store

import (
	"context"
	"maps"
	"slices"
	"strings"
	"sync"

	"github.com/pkg/errors"

	"github.com/matthewbaird/assetdesk/internal/domain"
)

// MemoryStore implements Store using in-memory maps.
// Intended for demos and testing; no database required.
type MemoryStore struct {
	mu   sync.RWMutex
	txMu sync.Mutex
	st   state
}

type state struct {
	families   []domain.AssetFamily
	assets     []domain.Asset
	users      []domain.User
	requests   []domain.Request
	tasks      []domain.Task
	references []domain.Reference
	named      map[string][]string
	layouts    map[string][]byte
}

func (s state) clone() state {
	c := state{
		named:   make(map[string][]string, len(s.named)),
		layouts: maps.Clone(s.layouts),
	}
	for _, f := range s.families {
		c.families = append(c.families, f.Clone())
	}
	for _, a := range s.assets {
		c.assets = append(c.assets, a.Clone())
	}
	for _, u := range s.users {
		c.users = append(c.users, u.Clone())
	}
	c.requests = slices.Clone(s.requests)
	c.tasks = slices.Clone(s.tasks)
	c.references = slices.Clone(s.references)
	for k, v := range s.named {
		c.named[k] = slices.Clone(v)
	}
	if c.layouts == nil {
		c.layouts = make(map[string][]byte)
	}
	return c
}

// NewMemoryStore creates a new empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{st: state{
		named:   make(map[string][]string),
		layouts: make(map[string][]byte),
	}}
}

// InTx serialises transactions and records which records fn writes. When
// fn fails only those records are restored from the snapshot, so writes
// made outside the transaction in the meantime survive.
func (s *MemoryStore) InTx(ctx context.Context, fn func(tx Store) error) error {
	s.txMu.Lock()
	defer s.txMu.Unlock()

	s.mu.RLock()
	snapshot := s.st.clone()
	s.mu.RUnlock()

	tx := &memTx{MemoryStore: s}
	if err := fn(tx); err != nil {
		s.mu.Lock()
		for _, k := range tx.written {
			s.st.restore(snapshot, k)
		}
		s.mu.Unlock()
		return err
	}
	return nil
}

type recordKind int

const (
	kindFamily recordKind = iota
	kindAsset
	kindUser
	kindRequest
	kindTask
	kindReference
	kindNamed
	kindLayout
)

type recordKey struct {
	kind recordKind
	id   string
	// name qualifies reference keys, whose id is the reference kind.
	name string
}

// restore puts the record identified by k back to its value in prev, or
// removes it when prev did not hold it.
func (s *state) restore(prev state, k recordKey) {
	switch k.kind {
	case kindFamily:
		s.families = restoreRecord(s.families, prev.families, func(f domain.AssetFamily) bool { return f.ID == k.id })
	case kindAsset:
		s.assets = restoreRecord(s.assets, prev.assets, func(a domain.Asset) bool { return a.ID == k.id })
	case kindUser:
		s.users = restoreRecord(s.users, prev.users, func(u domain.User) bool { return u.ID == k.id })
	case kindRequest:
		s.requests = restoreRecord(s.requests, prev.requests, func(r domain.Request) bool { return r.ID == k.id })
	case kindTask:
		s.tasks = restoreRecord(s.tasks, prev.tasks, func(t domain.Task) bool { return t.ID == k.id })
	case kindReference:
		s.references = restoreRecord(s.references, prev.references, func(r domain.Reference) bool {
			return string(r.Kind) == k.id && r.Name == k.name
		})
	case kindNamed:
		if v, ok := prev.named[k.id]; ok {
			s.named[k.id] = v
		} else {
			delete(s.named, k.id)
		}
	case kindLayout:
		if v, ok := prev.layouts[k.id]; ok {
			s.layouts[k.id] = v
		} else {
			delete(s.layouts, k.id)
		}
	}
}

func restoreRecord[T any](cur, prev []T, match func(T) bool) []T {
	i := slices.IndexFunc(cur, match)
	j := slices.IndexFunc(prev, match)
	switch {
	case j < 0 && i >= 0:
		return slices.Delete(cur, i, i+1)
	case j >= 0 && i >= 0:
		cur[i] = prev[j]
	case j >= 0:
		return slices.Insert(cur, min(j, len(cur)), prev[j])
	}
	return cur
}

// memTx is the store handed to an InTx callback. It notes every record it
// writes; nested InTx calls join the running transaction.
type memTx struct {
	*MemoryStore
	written []recordKey
}

func (t *memTx) InTx(_ context.Context, fn func(tx Store) error) error { return fn(t) }

func (t *memTx) note(kind recordKind, id string) {
	t.written = append(t.written, recordKey{kind: kind, id: id})
}

func (t *memTx) CreateAssetFamily(ctx context.Context, f domain.AssetFamily) error {
	t.note(kindFamily, f.ID)
	return t.MemoryStore.CreateAssetFamily(ctx, f)
}

func (t *memTx) UpdateAssetFamily(ctx context.Context, f domain.AssetFamily) error {
	t.note(kindFamily, f.ID)
	return t.MemoryStore.UpdateAssetFamily(ctx, f)
}

func (t *memTx) CreateAsset(ctx context.Context, a domain.Asset) error {
	return t.CreateAssetsBulk(ctx, []domain.Asset{a})
}

func (t *memTx) CreateAssetsBulk(ctx context.Context, assets []domain.Asset) error {
	for _, a := range assets {
		t.note(kindAsset, a.ID)
	}
	return t.MemoryStore.CreateAssetsBulk(ctx, assets)
}

func (t *memTx) UpdateAsset(ctx context.Context, a domain.Asset) error {
	t.note(kindAsset, a.ID)
	return t.MemoryStore.UpdateAsset(ctx, a)
}

func (t *memTx) CreateUser(ctx context.Context, u domain.User) error {
	t.note(kindUser, u.ID)
	return t.MemoryStore.CreateUser(ctx, u)
}

func (t *memTx) UpdateUser(ctx context.Context, u domain.User) error {
	t.note(kindUser, u.ID)
	return t.MemoryStore.UpdateUser(ctx, u)
}

func (t *memTx) DeleteUser(ctx context.Context, id string) error {
	t.note(kindUser, id)
	return t.MemoryStore.DeleteUser(ctx, id)
}

func (t *memTx) CreateRequest(ctx context.Context, r domain.Request) error {
	t.note(kindRequest, r.ID)
	return t.MemoryStore.CreateRequest(ctx, r)
}

func (t *memTx) UpdateRequest(ctx context.Context, r domain.Request) error {
	t.note(kindRequest, r.ID)
	return t.MemoryStore.UpdateRequest(ctx, r)
}

func (t *memTx) CreateTask(ctx context.Context, task domain.Task) error {
	t.note(kindTask, task.ID)
	return t.MemoryStore.CreateTask(ctx, task)
}

func (t *memTx) AddReference(ctx context.Context, ref domain.Reference) error {
	t.written = append(t.written, recordKey{kind: kindReference, id: string(ref.Kind), name: ref.Name})
	return t.MemoryStore.AddReference(ctx, ref)
}

func (t *memTx) DeleteReference(ctx context.Context, kind domain.ReferenceKind, name string) error {
	t.written = append(t.written, recordKey{kind: kindReference, id: string(kind), name: name})
	return t.MemoryStore.DeleteReference(ctx, kind, name)
}

func (t *memTx) SetNamedConfiguration(ctx context.Context, key string, values []string) error {
	t.note(kindNamed, key)
	return t.MemoryStore.SetNamedConfiguration(ctx, key, values)
}

func (t *memTx) SetLayout(ctx context.Context, key string, blob []byte) error {
	t.note(kindLayout, key)
	return t.MemoryStore.SetLayout(ctx, key, blob)
}

// ── families ────────────────────────────────────────────────────────────────

func (s *MemoryStore) ListAssetFamilies(_ context.Context) ([]domain.AssetFamily, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.AssetFamily, 0, len(s.st.families))
	for _, f := range s.st.families {
		out = append(out, f.Clone())
	}
	return out, nil
}

func (s *MemoryStore) GetAssetFamily(_ context.Context, id string) (domain.AssetFamily, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	i := slices.IndexFunc(s.st.families, func(f domain.AssetFamily) bool { return f.ID == id })
	if i < 0 {
		return domain.AssetFamily{}, errors.Wrapf(ErrNotFound, "family %s", id)
	}
	return s.st.families[i].Clone(), nil
}

func (s *MemoryStore) CreateAssetFamily(_ context.Context, f domain.AssetFamily) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.st.families {
		if existing.ID == f.ID {
			return errors.Wrapf(ErrConflict, "family %s", f.ID)
		}
	}
	s.st.families = append(s.st.families, f.Clone())
	return nil
}

func (s *MemoryStore) UpdateAssetFamily(_ context.Context, f domain.AssetFamily) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := slices.IndexFunc(s.st.families, func(x domain.AssetFamily) bool { return x.ID == f.ID })
	if i < 0 {
		return errors.Wrapf(ErrNotFound, "family %s", f.ID)
	}
	s.st.families[i] = f.Clone()
	return nil
}

// ── assets ──────────────────────────────────────────────────────────────────

func (s *MemoryStore) ListAssets(_ context.Context) ([]domain.Asset, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.Asset, 0, len(s.st.assets))
	for _, a := range s.st.assets {
		out = append(out, a.Clone())
	}
	return out, nil
}

func (s *MemoryStore) GetAsset(_ context.Context, id string) (domain.Asset, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	i := slices.IndexFunc(s.st.assets, func(a domain.Asset) bool { return a.ID == id })
	if i < 0 {
		return domain.Asset{}, errors.Wrapf(ErrNotFound, "asset %s", id)
	}
	return s.st.assets[i].Clone(), nil
}

func (s *MemoryStore) CreateAsset(ctx context.Context, a domain.Asset) error {
	return s.CreateAssetsBulk(ctx, []domain.Asset{a})
}

// CreateAssetsBulk inserts all assets or none of them.
func (s *MemoryStore) CreateAssetsBulk(_ context.Context, assets []domain.Asset) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	seen := make(map[string]bool)
	for _, a := range s.st.assets {
		seen["id:"+a.ID] = true
		seen["aid:"+strings.ToUpper(a.AssetID)] = true
	}
	for _, a := range assets {
		aid := "aid:" + strings.ToUpper(a.AssetID)
		if seen["id:"+a.ID] || (a.AssetID != "" && seen[aid]) {
			return errors.Wrapf(ErrConflict, "asset %s (%s)", a.ID, a.AssetID)
		}
		seen["id:"+a.ID] = true
		seen[aid] = true
	}
	for _, a := range assets {
		s.st.assets = append(s.st.assets, a.Clone())
	}
	return nil
}

func (s *MemoryStore) UpdateAsset(_ context.Context, a domain.Asset) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := slices.IndexFunc(s.st.assets, func(x domain.Asset) bool { return x.ID == a.ID })
	if i < 0 {
		return errors.Wrapf(ErrNotFound, "asset %s", a.ID)
	}
	for j, other := range s.st.assets {
		if j != i && a.AssetID != "" && strings.EqualFold(other.AssetID, a.AssetID) {
			return errors.Wrapf(ErrConflict, "asset id %s", a.AssetID)
		}
	}
	s.st.assets[i] = a.Clone()
	return nil
}

// ── users ───────────────────────────────────────────────────────────────────

func (s *MemoryStore) ListUsers(_ context.Context) ([]domain.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.User, 0, len(s.st.users))
	for _, u := range s.st.users {
		out = append(out, u.Clone())
	}
	return out, nil
}

func (s *MemoryStore) GetUser(_ context.Context, id string) (domain.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	i := slices.IndexFunc(s.st.users, func(u domain.User) bool { return u.ID == id })
	if i < 0 {
		return domain.User{}, errors.Wrapf(ErrNotFound, "user %s", id)
	}
	return s.st.users[i].Clone(), nil
}

func (s *MemoryStore) CreateUser(_ context.Context, u domain.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.st.users {
		if existing.ID == u.ID || existing.Email == u.Email {
			return errors.Wrapf(ErrConflict, "user %s <%s>", u.ID, u.Email)
		}
	}
	s.st.users = append(s.st.users, u.Clone())
	return nil
}

func (s *MemoryStore) UpdateUser(_ context.Context, u domain.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := slices.IndexFunc(s.st.users, func(x domain.User) bool { return x.ID == u.ID })
	if i < 0 {
		return errors.Wrapf(ErrNotFound, "user %s", u.ID)
	}
	s.st.users[i] = u.Clone()
	return nil
}

func (s *MemoryStore) DeleteUser(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := slices.IndexFunc(s.st.users, func(u domain.User) bool { return u.ID == id })
	if i < 0 {
		return errors.Wrapf(ErrNotFound, "user %s", id)
	}
	s.st.users = slices.Delete(s.st.users, i, i+1)
	return nil
}

// ── requests and tasks ──────────────────────────────────────────────────────

func (s *MemoryStore) ListRequests(_ context.Context) ([]domain.Request, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.st.requests), nil
}

func (s *MemoryStore) GetRequest(_ context.Context, id string) (domain.Request, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	i := slices.IndexFunc(s.st.requests, func(r domain.Request) bool { return r.ID == id })
	if i < 0 {
		return domain.Request{}, errors.Wrapf(ErrNotFound, "request %s", id)
	}
	return s.st.requests[i], nil
}

func (s *MemoryStore) CreateRequest(_ context.Context, r domain.Request) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if slices.ContainsFunc(s.st.requests, func(x domain.Request) bool { return x.ID == r.ID }) {
		return errors.Wrapf(ErrConflict, "request %s", r.ID)
	}
	s.st.requests = append(s.st.requests, r)
	return nil
}

func (s *MemoryStore) UpdateRequest(_ context.Context, r domain.Request) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := slices.IndexFunc(s.st.requests, func(x domain.Request) bool { return x.ID == r.ID })
	if i < 0 {
		return errors.Wrapf(ErrNotFound, "request %s", r.ID)
	}
	s.st.requests[i] = r
	return nil
}

func (s *MemoryStore) ListTasks(_ context.Context) ([]domain.Task, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.st.tasks), nil
}

func (s *MemoryStore) CreateTask(_ context.Context, t domain.Task) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, x := range s.st.tasks {
		if x.ID == t.ID || (t.RequestID != "" && x.RequestID == t.RequestID) {
			return errors.Wrapf(ErrConflict, "task for request %s", t.RequestID)
		}
	}
	s.st.tasks = append(s.st.tasks, t)
	return nil
}

// ── reference data ──────────────────────────────────────────────────────────

func (s *MemoryStore) ListReferences(_ context.Context, kind domain.ReferenceKind) ([]domain.Reference, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []domain.Reference
	for _, r := range s.st.references {
		if r.Kind == kind {
			out = append(out, r)
		}
	}
	return out, nil
}

func (s *MemoryStore) AddReference(_ context.Context, ref domain.Reference) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, r := range s.st.references {
		if r.Kind == ref.Kind && r.Name == ref.Name {
			return errors.Wrapf(ErrConflict, "%s %q", ref.Kind, ref.Name)
		}
	}
	s.st.references = append(s.st.references, ref)
	return nil
}

func (s *MemoryStore) DeleteReference(_ context.Context, kind domain.ReferenceKind, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := slices.IndexFunc(s.st.references, func(r domain.Reference) bool { return r.Kind == kind && r.Name == name })
	if i < 0 {
		return errors.Wrapf(ErrNotFound, "%s %q", kind, name)
	}
	s.st.references = slices.Delete(s.st.references, i, i+1)
	return nil
}

// ── configuration ───────────────────────────────────────────────────────────

func (s *MemoryStore) GetNamedConfiguration(_ context.Context, key string) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.st.named[key]), nil
}

func (s *MemoryStore) SetNamedConfiguration(_ context.Context, key string, values []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.st.named[key] = slices.Clone(values)
	return nil
}

func (s *MemoryStore) GetLayout(_ context.Context, key string) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	b, ok := s.st.layouts[key]
	if !ok {
		return nil, errors.Wrapf(ErrNotFound, "layout %s", key)
	}
	return slices.Clone(b), nil
}

func (s *MemoryStore) SetLayout(_ context.Context, key string, blob []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.st.layouts[key] = slices.Clone(blob)
	return nil
}
