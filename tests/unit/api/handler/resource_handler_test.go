package handler_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/opsboard/opsboard/internal/api/handler"
	"github.com/opsboard/opsboard/internal/api/middleware"
	"github.com/opsboard/opsboard/internal/audit"
	"github.com/opsboard/opsboard/internal/auth"
	"github.com/opsboard/opsboard/internal/resource"
)

// --- Mock resource store ---

type mockResourceStore struct {
	listFn   func(ctx context.Context, s *resource.Schema) ([]resource.Row, error)
	insertFn func(ctx context.Context, s *resource.Schema, fields resource.Row) (resource.Row, error)
	updateFn func(ctx context.Context, s *resource.Schema, id any, patch resource.Row) (resource.Row, resource.Row, error)
	deleteFn func(ctx context.Context, s *resource.Schema, id any) (resource.Row, error)
}

func (m *mockResourceStore) List(ctx context.Context, s *resource.Schema) ([]resource.Row, error) {
	if m.listFn != nil {
		return m.listFn(ctx, s)
	}
	return []resource.Row{}, nil
}

func (m *mockResourceStore) Insert(ctx context.Context, s *resource.Schema, fields resource.Row) (resource.Row, error) {
	if m.insertFn != nil {
		return m.insertFn(ctx, s, fields)
	}
	return fields, nil
}

func (m *mockResourceStore) Update(ctx context.Context, s *resource.Schema, id any, patch resource.Row) (resource.Row, resource.Row, error) {
	if m.updateFn != nil {
		return m.updateFn(ctx, s, id, patch)
	}
	return resource.Row{}, patch, nil
}

func (m *mockResourceStore) Delete(ctx context.Context, s *resource.Schema, id any) (resource.Row, error) {
	if m.deleteFn != nil {
		return m.deleteFn(ctx, s, id)
	}
	return resource.Row{}, nil
}

// --- Mock audit recorder ---

type mockRecorder struct {
	entries []audit.Entry
}

func (m *mockRecorder) Record(_ context.Context, e audit.Entry) {
	m.entries = append(m.entries, e)
}

// --- Helpers ---

func makeChiRequest(method, path string, body []byte, params map[string]string) (*http.Request, *httptest.ResponseRecorder) {
	var req *http.Request
	if body != nil {
		req = httptest.NewRequest(method, path, bytes.NewReader(body))
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	req.Header.Set("Content-Type", "application/json")

	w := httptest.NewRecorder()

	if len(params) > 0 {
		rctx := chi.NewRouteContext()
		for k, v := range params {
			rctx.URLParams.Add(k, v)
		}
		req = req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, rctx))
	}

	return req, w
}

func withEditor(req *http.Request) *http.Request {
	identity := &auth.Identity{Email: "editor@example.org", Role: auth.RoleEditor}
	return req.WithContext(middleware.WithIdentity(req.Context(), identity))
}

func parseEnvelope(t *testing.T, w *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var env map[string]interface{}
	err := json.Unmarshal(w.Body.Bytes(), &env)
	require.NoError(t, err, "failed to parse response body")
	return env
}

func issuesSchema(t *testing.T) *resource.Schema {
	t.Helper()
	s, ok := resource.Lookup("issues")
	require.True(t, ok)
	return s
}

func racesSchema(t *testing.T) *resource.Schema {
	t.Helper()
	s, ok := resource.Lookup("races")
	require.True(t, ok)
	return s
}

// ===== GET /api/{table} =====

func TestResourceList_Success(t *testing.T) {
	t.Parallel()

	store := &mockResourceStore{
		listFn: func(_ context.Context, s *resource.Schema) ([]resource.Row, error) {
			assert.Equal(t, "issues", s.Table)
			return []resource.Row{
				{"id": int64(1), "title": "road blocked"},
				{"id": int64(2), "title": "generator down"},
			}, nil
		},
	}
	rec := &mockRecorder{}
	h := handler.NewResourceHandler(issuesSchema(t), store, rec)

	req, w := makeChiRequest(http.MethodGet, "/api/issues", nil, nil)
	h.List(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	env := parseEnvelope(t, w)
	assert.Nil(t, env["error"])
	data := env["data"].([]interface{})
	assert.Len(t, data, 2)
	assert.Empty(t, rec.entries, "list must not audit")
}

// ===== POST /api/{table} =====

func TestResourceCreate_Success(t *testing.T) {
	t.Parallel()

	store := &mockResourceStore{
		insertFn: func(_ context.Context, s *resource.Schema, fields resource.Row) (resource.Row, error) {
			assert.Equal(t, "races", s.Table)
			assert.Equal(t, "Slalom", fields["name"])
			created := resource.Row{"id": int64(7), "updated_at": "2026-02-10T08:00:00Z"}
			for k, v := range fields {
				created[k] = v
			}
			return created, nil
		},
	}
	rec := &mockRecorder{}
	h := handler.NewResourceHandler(racesSchema(t), store, rec)

	body, _ := json.Marshal(map[string]interface{}{
		"day":       "2026-02-10",
		"name":      "Slalom",
		"starts_at": "2026-02-10T09:00:00",
	})
	req, w := makeChiRequest(http.MethodPost, "/api/races", body, nil)
	h.Create(w, withEditor(req))

	assert.Equal(t, http.StatusCreated, w.Code)
	env := parseEnvelope(t, w)
	data := env["data"].(map[string]interface{})
	assert.Equal(t, "Slalom", data["name"])
	assert.NotEmpty(t, data["id"])
	assert.NotEmpty(t, data["updated_at"])

	require.Len(t, rec.entries, 1)
	entry := rec.entries[0]
	assert.Equal(t, audit.ActionCreate, entry.Action)
	assert.Equal(t, "race", entry.EntityKind)
	assert.Equal(t, "editor@example.org", entry.ActorEmail)
	assert.Nil(t, entry.Before)
	assert.Equal(t, "Slalom", entry.After["name"])
}

func TestResourceCreate_EmptyPayload(t *testing.T) {
	t.Parallel()

	store := &mockResourceStore{
		insertFn: func(_ context.Context, s *resource.Schema, fields resource.Row) (resource.Row, error) {
			return nil, resource.ErrEmptyPayload
		},
	}
	rec := &mockRecorder{}
	h := handler.NewResourceHandler(issuesSchema(t), store, rec)

	req, w := makeChiRequest(http.MethodPost, "/api/issues", []byte(`{}`), nil)
	h.Create(w, withEditor(req))

	assert.Equal(t, http.StatusBadRequest, w.Code)
	env := parseEnvelope(t, w)
	apiErr := env["error"].(map[string]interface{})
	assert.Equal(t, "VALIDATION_ERROR", apiErr["code"])
	assert.Empty(t, rec.entries, "failed create must not audit")
}

func TestResourceCreate_UnknownColumnRejected(t *testing.T) {
	t.Parallel()

	store := &mockResourceStore{
		insertFn: func(_ context.Context, s *resource.Schema, fields resource.Row) (resource.Row, error) {
			return nil, &resource.UnknownColumnError{Column: "evil; DROP TABLE"}
		},
	}
	rec := &mockRecorder{}
	h := handler.NewResourceHandler(issuesSchema(t), store, rec)

	body := []byte(`{"evil; DROP TABLE": 1}`)
	req, w := makeChiRequest(http.MethodPost, "/api/issues", body, nil)
	h.Create(w, withEditor(req))

	assert.Equal(t, http.StatusBadRequest, w.Code)
	env := parseEnvelope(t, w)
	apiErr := env["error"].(map[string]interface{})
	assert.Equal(t, "VALIDATION_ERROR", apiErr["code"])
}

func TestResourceCreate_InvalidJSON(t *testing.T) {
	t.Parallel()

	h := handler.NewResourceHandler(issuesSchema(t), &mockResourceStore{}, &mockRecorder{})

	req, w := makeChiRequest(http.MethodPost, "/api/issues", []byte(`not json`), nil)
	h.Create(w, withEditor(req))

	assert.Equal(t, http.StatusBadRequest, w.Code)
	env := parseEnvelope(t, w)
	apiErr := env["error"].(map[string]interface{})
	assert.Equal(t, "INVALID_JSON", apiErr["code"])
}

func TestResourceCreate_Conflict(t *testing.T) {
	t.Parallel()

	store := &mockResourceStore{
		insertFn: func(_ context.Context, _ *resource.Schema, _ resource.Row) (resource.Row, error) {
			return nil, resource.ErrConflict
		},
	}
	h := handler.NewResourceHandler(issuesSchema(t), store, &mockRecorder{})

	req, w := makeChiRequest(http.MethodPost, "/api/issues", []byte(`{"title":"dup"}`), nil)
	h.Create(w, withEditor(req))

	assert.Equal(t, http.StatusConflict, w.Code)
}

// ===== PATCH /api/{table}/{id} =====

func TestResourceUpdate_Success(t *testing.T) {
	t.Parallel()

	store := &mockResourceStore{
		updateFn: func(_ context.Context, s *resource.Schema, id any, patch resource.Row) (resource.Row, resource.Row, error) {
			assert.Equal(t, int64(3), id)
			before := resource.Row{"id": int64(3), "status": "open"}
			after := resource.Row{"id": int64(3), "status": "closed"}
			return before, after, nil
		},
	}
	rec := &mockRecorder{}
	h := handler.NewResourceHandler(issuesSchema(t), store, rec)

	req, w := makeChiRequest(http.MethodPatch, "/api/issues/3", []byte(`{"status":"closed"}`),
		map[string]string{"id": "3"})
	h.Update(w, withEditor(req))

	assert.Equal(t, http.StatusOK, w.Code)
	env := parseEnvelope(t, w)
	data := env["data"].(map[string]interface{})
	assert.Equal(t, "closed", data["status"])

	require.Len(t, rec.entries, 1)
	entry := rec.entries[0]
	assert.Equal(t, audit.ActionUpdate, entry.Action)
	assert.Equal(t, "open", entry.Before["status"])
	assert.Equal(t, "closed", entry.After["status"])
}

func TestResourceUpdate_NotFound(t *testing.T) {
	t.Parallel()

	store := &mockResourceStore{
		updateFn: func(_ context.Context, _ *resource.Schema, _ any, _ resource.Row) (resource.Row, resource.Row, error) {
			return nil, nil, resource.ErrNotFound
		},
	}
	rec := &mockRecorder{}
	h := handler.NewResourceHandler(issuesSchema(t), store, rec)

	req, w := makeChiRequest(http.MethodPatch, "/api/issues/99", []byte(`{"status":"closed"}`),
		map[string]string{"id": "99"})
	h.Update(w, withEditor(req))

	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Empty(t, rec.entries)
}

func TestResourceUpdate_ImmutableID(t *testing.T) {
	t.Parallel()

	store := &mockResourceStore{
		updateFn: func(_ context.Context, _ *resource.Schema, _ any, _ resource.Row) (resource.Row, resource.Row, error) {
			return nil, nil, resource.ErrImmutableID
		},
	}
	rec := &mockRecorder{}
	s, ok := resource.Lookup("map_features")
	require.True(t, ok)
	h := handler.NewResourceHandler(s, store, rec)

	req, w := makeChiRequest(http.MethodPatch, "/api/map_features/pin_tent-1", []byte(`{"id":"pin_tent-2"}`),
		map[string]string{"id": "pin_tent-1"})
	h.Update(w, withEditor(req))

	assert.Equal(t, http.StatusBadRequest, w.Code)
	env := parseEnvelope(t, w)
	apiErr := env["error"].(map[string]interface{})
	assert.Equal(t, "VALIDATION_ERROR", apiErr["code"])
	assert.Empty(t, rec.entries, "rejected rename must not audit")
}

func TestResourceUpdate_InvalidID(t *testing.T) {
	t.Parallel()

	h := handler.NewResourceHandler(issuesSchema(t), &mockResourceStore{}, &mockRecorder{})

	req, w := makeChiRequest(http.MethodPatch, "/api/issues/abc", []byte(`{"status":"closed"}`),
		map[string]string{"id": "abc"})
	h.Update(w, withEditor(req))

	assert.Equal(t, http.StatusBadRequest, w.Code)
	env := parseEnvelope(t, w)
	apiErr := env["error"].(map[string]interface{})
	assert.Equal(t, "INVALID_ID", apiErr["code"])
}

// ===== DELETE /api/{table}/{id} =====

func TestResourceDelete_Success(t *testing.T) {
	t.Parallel()

	store := &mockResourceStore{
		deleteFn: func(_ context.Context, _ *resource.Schema, id any) (resource.Row, error) {
			assert.Equal(t, int64(5), id)
			return resource.Row{"id": int64(5), "title": "stale"}, nil
		},
	}
	rec := &mockRecorder{}
	h := handler.NewResourceHandler(issuesSchema(t), store, rec)

	req, w := makeChiRequest(http.MethodDelete, "/api/issues/5", nil, map[string]string{"id": "5"})
	h.Delete(w, withEditor(req))

	assert.Equal(t, http.StatusNoContent, w.Code)

	require.Len(t, rec.entries, 1)
	entry := rec.entries[0]
	assert.Equal(t, audit.ActionDelete, entry.Action)
	assert.Equal(t, "stale", entry.Before["title"])
	assert.Nil(t, entry.After)
}

func TestResourceDelete_NotFound(t *testing.T) {
	t.Parallel()

	store := &mockResourceStore{
		deleteFn: func(_ context.Context, _ *resource.Schema, _ any) (resource.Row, error) {
			return nil, resource.ErrNotFound
		},
	}
	h := handler.NewResourceHandler(issuesSchema(t), store, &mockRecorder{})

	req, w := makeChiRequest(http.MethodDelete, "/api/issues/99", nil, map[string]string{"id": "99"})
	h.Delete(w, withEditor(req))

	assert.Equal(t, http.StatusNotFound, w.Code)
}
