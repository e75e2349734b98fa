package middleware_test

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/opsboard/opsboard/internal/api/middleware"
	"github.com/opsboard/opsboard/internal/auth"
)

func doWithRole(t *testing.T, gate func(http.Handler) http.Handler, role string) *httptest.ResponseRecorder {
	t.Helper()

	handler := gate(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/issues", nil)
	if role != "" {
		req = req.WithContext(middleware.WithIdentity(req.Context(),
			&auth.Identity{Email: role + "@example.org", Role: role}))
	}
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)
	return w
}

func TestRequireRole_Allowed(t *testing.T) {
	t.Parallel()

	gate := middleware.RequireRole(auth.RoleAdmin, auth.RoleEditor)

	assert.Equal(t, http.StatusOK, doWithRole(t, gate, auth.RoleAdmin).Code)
	assert.Equal(t, http.StatusOK, doWithRole(t, gate, auth.RoleEditor).Code)
}

func TestRequireRole_WrongRole(t *testing.T) {
	t.Parallel()

	gate := middleware.RequireRole(auth.RoleAdmin)

	w := doWithRole(t, gate, auth.RoleViewer)
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Equal(t, "FORBIDDEN", errorCode(t, w))
}

func TestRequireRole_NoIdentity(t *testing.T) {
	t.Parallel()

	gate := middleware.RequireRole(auth.RoleViewer)

	w := doWithRole(t, gate, "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, "UNAUTHORIZED", errorCode(t, w))
}

func TestRequireRole_ViewerCannotWrite(t *testing.T) {
	t.Parallel()

	canWrite := middleware.RequireRole(auth.RoleAdmin, auth.RoleEditor)
	adminOnly := middleware.RequireRole(auth.RoleAdmin)

	assert.Equal(t, http.StatusForbidden, doWithRole(t, canWrite, auth.RoleViewer).Code)
	assert.Equal(t, http.StatusForbidden, doWithRole(t, adminOnly, auth.RoleEditor).Code)
}
