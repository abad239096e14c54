package handler

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/matthewbaird/assetdesk/internal/access"
	"github.com/matthewbaird/assetdesk/internal/domain"
	"github.com/matthewbaird/assetdesk/internal/form"
	"github.com/matthewbaird/assetdesk/internal/guard"
	"github.com/matthewbaird/assetdesk/internal/lifecycle"
	"github.com/matthewbaird/assetdesk/internal/media"
	"github.com/matthewbaird/assetdesk/internal/settings"
	"github.com/matthewbaird/assetdesk/internal/store"
)

func TestErrorToHTTP(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
		code   string
	}{
		{"validation", &domain.ValidationError{Fields: map[string]string{"name": "is required"}}, http.StatusBadRequest, "VALIDATION_ERROR"},
		{"not found", errors.Wrap(store.ErrNotFound, "asset x"), http.StatusNotFound, "NOT_FOUND"},
		{"session", errors.Wrap(form.ErrSessionNotFound, "session y"), http.StatusNotFound, "NOT_FOUND"},
		{"conflict", errors.Wrap(store.ErrConflict, "asset id"), http.StatusConflict, "CONSTRAINT_ERROR"},
		{"transition", errors.Wrap(lifecycle.ErrInvalidTransition, "Rejected to Approved"), http.StatusConflict, "INVALID_TRANSITION"},
		{"busy", errors.Wrap(guard.ErrBusy, "request:r1"), http.StatusConflict, "BUSY"},
		{"media", errors.Wrap(media.ErrUnsupportedType, "text/plain"), http.StatusUnsupportedMediaType, "UNSUPPORTED_MEDIA_TYPE"},
		{"kind", errors.Wrap(settings.ErrUnknownKind, "colours"), http.StatusBadRequest, "BAD_REQUEST"},
		{"other", errors.New("disk on fire"), http.StatusInternalServerError, "INTERNAL_ERROR"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			errorToHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/x", nil), tt.err)
			assert.Equal(t, tt.status, rec.Code)
			var body map[string]any
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
			assert.Equal(t, tt.code, body["code"])
		})
	}
}

func TestErrorToHTTP_ValidationFields(t *testing.T) {
	rec := httptest.NewRecorder()
	err := errors.Wrap(&domain.ValidationError{Fields: map[string]string{"product_code": "is invalid"}}, "creating family")
	errorToHTTP(rec, httptest.NewRequest(http.MethodPost, "/v1/families", nil), err)
	var body struct {
		Fields map[string]string `json:"fields"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "is invalid", body.Fields["product_code"])
}

func TestPage(t *testing.T) {
	items := []int{1, 2, 3, 4, 5}
	got := page(httptest.NewRequest(http.MethodGet, "/?page_size=2&offset=3", nil), items)
	assert.Equal(t, []int{4, 5}, got.Items)
	assert.Equal(t, 5, got.TotalCount)

	got = page(httptest.NewRequest(http.MethodGet, "/?offset=9", nil), items)
	assert.Equal(t, []int{}, got.Items)

	got = page(httptest.NewRequest(http.MethodGet, "/", nil), []int(nil))
	assert.NotNil(t, got.Items)
}

func TestActor(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	assert.Equal(t, domain.System, actor(r))

	r.Header.Set("X-Actor", "ops@example.com")
	assert.Equal(t, "ops@example.com", actor(r).Name)
	assert.Equal(t, "user", actor(r).Source)

	want := domain.Actor{Name: "ada@example.com", Source: "import"}
	r = r.WithContext(access.WithActor(r.Context(), want))
	assert.Equal(t, want, actor(r))
}
