package middleware_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/smartrunning/smartrunning/internal/api/middleware"
)

func logLine(t *testing.T, buf *bytes.Buffer) map[string]any {
	t.Helper()
	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry), buf.String())
	return entry
}

func TestLogger_LevelByStatus(t *testing.T) {
	tests := []struct {
		name   string
		path   string
		status int
		level  string
	}{
		{"ok", "/api/activity", http.StatusOK, "info"},
		{"implicit ok", "/api/activity", 0, "info"},
		{"client error", "/api/activity/act_1", http.StatusNotFound, "warn"},
		{"server error", "/api/activity/generate", http.StatusInternalServerError, "error"},
		{"probe", "/api/ops/health", http.StatusOK, "debug"},
		{"failing probe", "/api/ops/ready", http.StatusServiceUnavailable, "error"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			handler := middleware.Logger(zerolog.New(&buf))(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				if tt.status != 0 {
					w.WriteHeader(tt.status)
				}
				_, _ = w.Write([]byte("route"))
			}))

			req := httptest.NewRequest(http.MethodGet, tt.path, http.NoBody)
			req.Header.Set("User-Agent", "smartrun-cli")
			handler.ServeHTTP(httptest.NewRecorder(), req)

			entry := logLine(t, &buf)
			want := tt.status
			if want == 0 {
				want = http.StatusOK
			}
			assert.Equal(t, tt.level, entry["level"])
			assert.Equal(t, "request completed", entry["message"])
			assert.Equal(t, tt.path, entry["path"])
			assert.Equal(t, float64(want), entry["status"])
			assert.Equal(t, float64(5), entry["bytes"])
			assert.Equal(t, "smartrun-cli", entry["user_agent"])
			assert.Contains(t, entry, "duration")
			assert.NotContains(t, entry, "user_id")
		})
	}
}

func TestLogger_RoutePatternAndRequestID(t *testing.T) {
	var buf bytes.Buffer
	r := chi.NewRouter()
	r.Use(middleware.RequestID, middleware.Logger(zerolog.New(&buf)))
	r.Get("/api/activity/{id}", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})

	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/api/activity/act_42", http.NoBody))

	entry := logLine(t, &buf)
	assert.Equal(t, "/api/activity/{id}", entry["route"])
	assert.Equal(t, "/api/activity/act_42", entry["path"])
	assert.Equal(t, float64(http.StatusNoContent), entry["status"])
	id, ok := entry["request_id"].(string)
	require.True(t, ok)
	assert.Contains(t, id, "req_")
}

func TestLogger_IncludesUserID(t *testing.T) {
	authService := newTestAuthService()
	tokens := registerTestUser(t, authService)

	var buf bytes.Buffer
	handler := middleware.Auth(authService)(middleware.Logger(zerolog.New(&buf))(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})))

	req := httptest.NewRequest(http.MethodGet, "/api/auth/profile", http.NoBody)
	req.Header.Set("Authorization", "Bearer "+tokens.AccessToken)
	handler.ServeHTTP(httptest.NewRecorder(), req)

	assert.Equal(t, tokens.User.ID, logLine(t, &buf)["user_id"])
}

func TestLogger_IncludesTraceID(t *testing.T) {
	sr := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(sr))
	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.TraceContext{})
	defer func() { _ = tp.Shutdown(context.Background()) }()

	var buf bytes.Buffer
	handler := middleware.Tracing("smartrunning-api")(
		middleware.Logger(zerolog.New(&buf))(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusOK)
		})),
	)
	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", http.NoBody))

	entry := logLine(t, &buf)
	assert.Len(t, entry["trace_id"], 32)
	assert.Len(t, entry["span_id"], 16)
}
