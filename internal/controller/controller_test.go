package controller_test

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/michaelschiller-mdm-solutions/content-scheduler/internal/controller"
	"github.com/michaelschiller-mdm-solutions/content-scheduler/internal/service"
)

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   string          `json:"error"`
	Message string          `json:"message"`
}

func doRequest(t *testing.T, r http.Handler, method, path string, body any) (*httptest.ResponseRecorder, envelope) {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	var env envelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
	return rec, env
}

func TestEmergencyValidateEndpoint(t *testing.T) {
	emergency := &controller.EmergencyController{Emergency: &service.EmergencyService{}}
	r := chi.NewRouter()
	r.Post("/emergency-content/validate", emergency.Validate)

	rec, env := doRequest(t, r, http.MethodPost, "/emergency-content/validate", map[string]any{
		"emergency_content": map[string]any{
			"file_path":    "/content/breaking.jpg",
			"file_name":    "breaking.jpg",
			"content_type": "story",
			"priority":     "high",
		},
	})

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, env.Success)

	var validation struct {
		Valid  bool     `json:"valid"`
		Errors []string `json:"errors"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &validation))
	assert.True(t, validation.Valid)
	assert.Empty(t, validation.Errors)
}

func TestEmergencyValidateEndpointReportsErrors(t *testing.T) {
	emergency := &controller.EmergencyController{Emergency: &service.EmergencyService{}}
	r := chi.NewRouter()
	r.Post("/emergency-content/validate", emergency.Validate)

	rec, env := doRequest(t, r, http.MethodPost, "/emergency-content/validate", map[string]any{
		"emergency_content": map[string]any{
			"file_path": "not-absolute.jpg",
			"priority":  "urgent",
		},
	})

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, env.Success)

	var validation struct {
		Valid  bool     `json:"valid"`
		Errors []string `json:"errors"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &validation))
	assert.False(t, validation.Valid)
	assert.NotEmpty(t, validation.Errors)
}

func TestCleanupRejectsBadRetention(t *testing.T) {
	queueController := &controller.QueueController{Control: &service.QueueControlService{}}
	r := chi.NewRouter()
	r.Post("/content-queue/cleanup", queueController.Cleanup)

	rec, env := doRequest(t, r, http.MethodPost, "/content-queue/cleanup", map[string]any{"days_old": 0})

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.False(t, env.Success)
	assert.Contains(t, env.Error, "days_old")
}

func TestBulkUpdateRejectsForbiddenStatus(t *testing.T) {
	queueController := &controller.QueueController{Control: &service.QueueControlService{}}
	r := chi.NewRouter()
	r.Put("/content-queue/bulk-update", queueController.BulkUpdate)

	rec, env := doRequest(t, r, http.MethodPut, "/content-queue/bulk-update", map[string]any{
		"updates": []map[string]any{
			{"item_id": 1, "status": "posted"},
		},
	})

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.False(t, env.Success)
	assert.Contains(t, env.Error, "status")
}

func TestBulkUpdateRequiresUpdates(t *testing.T) {
	queueController := &controller.QueueController{Control: &service.QueueControlService{}}
	r := chi.NewRouter()
	r.Put("/content-queue/bulk-update", queueController.BulkUpdate)

	rec, env := doRequest(t, r, http.MethodPut, "/content-queue/bulk-update", map[string]any{"updates": []any{}})

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.False(t, env.Success)
}

func TestInvalidIDReturnsBadRequest(t *testing.T) {
	queueController := &controller.QueueController{Control: &service.QueueControlService{}}
	r := chi.NewRouter()
	r.Post("/content-queue/{id}/retry", queueController.Retry)

	rec, env := doRequest(t, r, http.MethodPost, "/content-queue/abc/retry", nil)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.False(t, env.Success)
}
