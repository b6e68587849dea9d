package response_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kubarr/kubarr/internal/api/response"
)

func TestSuccess_GeneratesRequestID(t *testing.T) {
	w := httptest.NewRecorder()

	response.Success(w, http.StatusOK, nil, "")

	var env response.Envelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env))
	_, err := uuid.Parse(env.Meta.RequestID)
	assert.NoError(t, err, "requestId should be a valid UUID")
	_, err = time.Parse(time.RFC3339, env.Meta.Timestamp)
	assert.NoError(t, err, "timestamp should be valid RFC3339")
	assert.Nil(t, env.Meta.Total)
}

func TestSuccess_WritesEnvelope(t *testing.T) {
	w := httptest.NewRecorder()

	response.Success(w, http.StatusCreated, map[string]string{"key": "value"}, "req-1")

	assert.Equal(t, http.StatusCreated, w.Code)
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"))

	var env map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env))
	assert.Equal(t, "value", env["data"].(map[string]any)["key"])
	assert.Nil(t, env["error"])
	assert.Equal(t, "req-1", env["meta"].(map[string]any)["requestId"])
}

func TestSuccessList_IncludesTotal(t *testing.T) {
	w := httptest.NewRecorder()

	response.SuccessList(w, http.StatusOK, []string{"a", "b"}, 2, "req-2")

	var env map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env))
	assert.Len(t, env["data"], 2)
	assert.Equal(t, 2.0, env["meta"].(map[string]any)["total"])
}

func TestErrWithDetails(t *testing.T) {
	w := httptest.NewRecorder()

	response.ErrWithDetails(w, http.StatusBadRequest, "VALIDATION_ERROR", "Input validation failed",
		[]map[string]string{{"field": "name"}}, "req-3")

	assert.Equal(t, http.StatusBadRequest, w.Code)
	var env map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env))
	assert.Nil(t, env["data"])
	apiErr := env["error"].(map[string]any)
	assert.Equal(t, "VALIDATION_ERROR", apiErr["code"])
	assert.NotNil(t, apiErr["details"])
}

func TestValidationFailed(t *testing.T) {
	w := httptest.NewRecorder()

	response.ValidationFailed(w, []map[string]string{{"field": "password", "message": "too short"}}, "req-4")

	assert.Equal(t, http.StatusBadRequest, w.Code)
	var env map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env))
	apiErr := env["error"].(map[string]any)
	assert.Equal(t, "VALIDATION_ERROR", apiErr["code"])
	assert.Equal(t, "Input validation failed", apiErr["message"])
	assert.Len(t, apiErr["details"], 1)
	assert.NotContains(t, env["meta"].(map[string]any), "total")
}

func TestNoContent(t *testing.T) {
	w := httptest.NewRecorder()
	response.NoContent(w)
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Empty(t, w.Body.Bytes())
}

func TestOAuthErr_NoStore(t *testing.T) {
	w := httptest.NewRecorder()

	response.OAuthErr(w, http.StatusBadRequest, response.OAuthInvalidGrant, "Invalid or expired authorization code")

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "no-store", w.Header().Get("Cache-Control"))
	assert.JSONEq(t, `{"error":"invalid_grant","error_description":"Invalid or expired authorization code"}`, w.Body.String())
}

func TestOAuthUnauthorized_Challenge(t *testing.T) {
	w := httptest.NewRecorder()

	response.OAuthUnauthorized(w, response.OAuthInvalidClient, "Client authentication failed")

	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, `Bearer error="invalid_client"`, w.Header().Get("WWW-Authenticate"))
	assert.Equal(t, "no-store", w.Header().Get("Cache-Control"))
}
