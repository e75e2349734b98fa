package response_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/opsboard/opsboard/internal/api/response"
)

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var env map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env))
	return env
}

func TestSuccess_EnvelopeShape(t *testing.T) {
	t.Parallel()

	w := httptest.NewRecorder()
	response.Success(w, http.StatusOK, map[string]string{"name": "Bormio"}, "req-123")

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"))

	env := decode(t, w)
	data := env["data"].(map[string]interface{})
	assert.Equal(t, "Bormio", data["name"])
	assert.Nil(t, env["error"])

	meta := env["meta"].(map[string]interface{})
	assert.Equal(t, "req-123", meta["requestId"])
	assert.NotEmpty(t, meta["timestamp"])
}

func TestSuccess_GeneratesRequestID(t *testing.T) {
	t.Parallel()

	w := httptest.NewRecorder()
	response.Success(w, http.StatusOK, nil, "")

	env := decode(t, w)
	meta := env["meta"].(map[string]interface{})
	assert.NotEmpty(t, meta["requestId"])
}

func TestErr_EnvelopeShape(t *testing.T) {
	t.Parallel()

	w := httptest.NewRecorder()
	response.Err(w, http.StatusNotFound, "NOT_FOUND", "No such issue", "req-456")

	assert.Equal(t, http.StatusNotFound, w.Code)

	env := decode(t, w)
	assert.Nil(t, env["data"])
	apiErr := env["error"].(map[string]interface{})
	assert.Equal(t, "NOT_FOUND", apiErr["code"])
	assert.Equal(t, "No such issue", apiErr["message"])
	_, hasDetails := apiErr["details"]
	assert.False(t, hasDetails, "details should be omitted when empty")
}

func TestErrWithDetails_CarriesFieldErrors(t *testing.T) {
	t.Parallel()

	details := []map[string]string{{"field": "email", "message": "Email is required"}}

	w := httptest.NewRecorder()
	response.ErrWithDetails(w, http.StatusBadRequest, "VALIDATION_ERROR", "Input validation failed", details, "req-789")

	env := decode(t, w)
	apiErr := env["error"].(map[string]interface{})
	got := apiErr["details"].([]interface{})
	require.Len(t, got, 1)
	first := got[0].(map[string]interface{})
	assert.Equal(t, "email", first["field"])
}

func TestNoContent(t *testing.T) {
	t.Parallel()

	w := httptest.NewRecorder()
	response.NoContent(w)

	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Empty(t, w.Body.String())
}
