package ops

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHealthz(t *testing.T) {
	checker := NewHealthChecker(nil, nil, "0.1.0", "test-commit")

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	w := httptest.NewRecorder()

	checker.Healthz().ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"))

	var response statusResponse
	require.NoError(t, json.NewDecoder(w.Body).Decode(&response))
	assert.Equal(t, "ok", response.Status)
}

func TestReadyzWithoutDatabase(t *testing.T) {
	checker := NewHealthChecker(nil, nil, "0.1.0", "test-commit")

	req := httptest.NewRequest(http.MethodGet, "/readyz", nil)
	w := httptest.NewRecorder()

	checker.Readyz().ServeHTTP(w, req)

	assert.Equal(t, http.StatusServiceUnavailable, w.Code)

	var response statusResponse
	require.NoError(t, json.NewDecoder(w.Body).Decode(&response))
	assert.Equal(t, "unready", response.Status)
}

func TestHealthDatabaseFailure(t *testing.T) {
	checker := NewHealthChecker(nil, nil, "0.1.0", "test-commit")

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	w := httptest.NewRecorder()

	checker.Health().ServeHTTP(w, req)

	assert.Equal(t, http.StatusServiceUnavailable, w.Code)

	var response HealthCheck
	require.NoError(t, json.NewDecoder(w.Body).Decode(&response))

	assert.Equal(t, "unhealthy", response.Status)
	assert.Equal(t, "0.1.0", response.Version)
	assert.Equal(t, "test-commit", response.GitCommit)

	_, err := time.Parse(time.RFC3339, response.Timestamp)
	assert.NoError(t, err, "timestamp should be valid RFC3339")

	dbCheck, ok := response.Checks["database"]
	require.True(t, ok, "database check should be present")
	assert.Equal(t, "fail", dbCheck.Status)

	for _, name := range []string{"database", "migrations", "job_queue", "append_lag"} {
		check, ok := response.Checks[name]
		assert.True(t, ok, "check %s should be present", name)
		assert.NotEmpty(t, check.Status, "check %s should have status", name)
	}
}

func TestHealthAppendLagWithoutLedger(t *testing.T) {
	checker := NewHealthChecker(nil, nil, "0.1.0", "test-commit")

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	w := httptest.NewRecorder()

	checker.Health().ServeHTTP(w, req)

	var response HealthCheck
	require.NoError(t, json.NewDecoder(w.Body).Decode(&response))

	lagCheck, ok := response.Checks["append_lag"]
	require.True(t, ok)
	assert.Equal(t, "warn", lagCheck.Status)
}

func TestHandlerServesMetrics(t *testing.T) {
	checker := NewHealthChecker(nil, nil, "0.1.0", "test-commit")
	handler := checker.Handler()

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	w := httptest.NewRecorder()

	handler.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "praktika_health_status")
}

func TestStatusLevels(t *testing.T) {
	assert.InDelta(t, 2.0, statusLevel("pass"), 1e-9)
	assert.InDelta(t, 1.0, statusLevel("warn"), 1e-9)
	assert.InDelta(t, 0.0, statusLevel("fail"), 1e-9)
	assert.InDelta(t, 0.0, statusLevel("unknown"), 1e-9)
}
