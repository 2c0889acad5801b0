package worker_test

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/smartrunning/smartrunning/internal/events"
	"github.com/smartrunning/smartrunning/internal/worker"
)

func getHealth(t *testing.T, h http.Handler) map[string]any {
	t.Helper()
	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", http.NoBody))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"))

	var body map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	return body
}

func TestHealthHandler(t *testing.T) {
	tracks := &stubTracks{}
	b := newBuilder(tracks, nil, worker.Config{})
	h := worker.NewHealthHandler(worker.HealthConfig{Version: "1.2.3", Builder: b})

	body := getHealth(t, h)
	assert.Equal(t, "healthy", body["status"])
	assert.Equal(t, "1.2.3", body["version"])

	tracks.rebuildErr = errors.New("boom")
	_ = b.Handle(t.Context(), events.New(events.ActivityCreated, "act_1", "usr_1"))

	body = getHealth(t, h)
	assert.Equal(t, "degraded", body["status"])
	jobs, ok := body["jobs"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, float64(1), jobs["failed"])
	assert.Equal(t, "boom", jobs["last_error"])
}

func TestHealthHandler_Metrics(t *testing.T) {
	metrics := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("worker_jobs_total 1\n"))
	})
	h := worker.NewHealthHandler(worker.HealthConfig{Metrics: metrics})

	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", http.NoBody))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "worker_jobs_total")
}
