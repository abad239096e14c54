package access

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/matthewbaird/assetdesk/internal/domain"
	"github.com/matthewbaird/assetdesk/internal/event"
	"github.com/matthewbaird/assetdesk/internal/store"
)

func newAuthorizer(t *testing.T) (*Authorizer, *store.MemoryStore) {
	t.Helper()
	st := store.NewMemoryStore()
	ctx := context.Background()
	require.NoError(t, st.CreateUser(ctx, domain.User{ID: "u-admin", FullName: "Ada Admin", Email: "ada@example.com", Role: domain.RoleAdmin}))
	require.NoError(t, st.CreateUser(ctx, domain.User{ID: "u-bob", FullName: "Bob User", Email: "bob@example.com", Role: domain.RoleUser}))
	a, err := New(st, "", nil)
	require.NoError(t, err)
	return a, st
}

func TestAllowed(t *testing.T) {
	a, _ := newAuthorizer(t)
	tests := []struct {
		role   domain.Role
		path   string
		method string
		want   bool
	}{
		{domain.RoleUser, "/v1/families", http.MethodGet, true},
		{domain.RoleUser, "/v1/requests", http.MethodPost, true},
		{domain.RoleUser, "/v1/families", http.MethodPost, false},
		{domain.RoleUser, "/v1/requests/r1/reject", http.MethodPost, false},
		{domain.RoleUser, "/v1/users/u1", http.MethodDelete, false},
		{domain.RoleAdmin, "/v1/users/u1", http.MethodDelete, true},
		{domain.RoleAdmin, "/v1/requests/r1/reject", http.MethodPost, true},
		{domain.RoleAdmin, "/v1/families", http.MethodGet, true},
	}
	for _, tt := range tests {
		t.Run(string(tt.role)+" "+tt.method+" "+tt.path, func(t *testing.T) {
			got, err := a.Allowed(tt.role, tt.path, tt.method)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestMiddleware(t *testing.T) {
	a, _ := newAuthorizer(t)
	var seen domain.Actor
	h := a.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen, _ = ActorFrom(r.Context())
		w.WriteHeader(http.StatusNoContent)
	}))

	do := func(method, path, actor string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(method, path, nil)
		if actor != "" {
			req.Header.Set("X-Actor", actor)
		}
		req.Header.Set("X-Correlation-ID", "corr-1")
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		return rec
	}

	assert.Equal(t, http.StatusUnauthorized, do(http.MethodGet, "/v1/families", "").Code)
	assert.Equal(t, http.StatusForbidden, do(http.MethodGet, "/v1/families", "nobody@example.com").Code)

	rec := do(http.MethodPost, "/v1/families", "bob@example.com")
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Contains(t, rec.Body.String(), "FORBIDDEN")

	rec = do(http.MethodPost, "/v1/families", "u-admin")
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "ada@example.com", seen.Name)
	assert.Equal(t, "user", seen.Source)
	assert.Equal(t, "corr-1", seen.CorrelationID)
}

func TestHandleEvent_PurgesCache(t *testing.T) {
	a, st := newAuthorizer(t)
	ctx := context.Background()

	u, ok, err := a.Resolve(ctx, "bob@example.com")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, domain.RoleUser, u.Role)

	u.Role = domain.RoleAdmin
	require.NoError(t, st.UpdateUser(ctx, u))

	u, _, _ = a.Resolve(ctx, "bob@example.com")
	assert.Equal(t, domain.RoleUser, u.Role, "cached until a user event arrives")

	require.NoError(t, a.HandleEvent(ctx, event.DomainEvent{Category: "user"}))
	u, _, _ = a.Resolve(ctx, "bob@example.com")
	assert.Equal(t, domain.RoleAdmin, u.Role)
}

func TestActorOnly(t *testing.T) {
	h := ActorOnly(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		a, ok := ActorFrom(r.Context())
		assert.True(t, ok)
		assert.Equal(t, "import", a.Source)
		w.WriteHeader(http.StatusOK)
	}))
	req := httptest.NewRequest(http.MethodDelete, "/v1/users/x", nil)
	req.Header.Set("X-Actor", "script")
	req.Header.Set("X-Source", "import")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
}
