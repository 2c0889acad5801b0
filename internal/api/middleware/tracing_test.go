package middleware_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.opentelemetry.io/otel/trace"

	"github.com/smartrunning/smartrunning/internal/api/middleware"
)

func recordSpans(t *testing.T) *tracetest.SpanRecorder {
	t.Helper()
	sr := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(sr))
	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))
	t.Cleanup(func() { _ = tp.Shutdown(context.Background()) })
	return sr
}

func spanAttr(span sdktrace.ReadOnlySpan, key attribute.Key) (attribute.Value, bool) {
	for _, kv := range span.Attributes() {
		if kv.Key == key {
			return kv.Value, true
		}
	}
	return attribute.Value{}, false
}

func tracedRouter(status int) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID, middleware.Tracing("smartrunning-api"))
	r.Get("/api/activity/{id}/gpx", func(w http.ResponseWriter, r *http.Request) {
		if trace.SpanFromContext(r.Context()).SpanContext().IsValid() {
			w.Header().Set("X-Traced", "1")
		}
		w.WriteHeader(status)
	})
	return r
}

func TestTracing_SpanPerRoute(t *testing.T) {
	sr := recordSpans(t)

	rec := httptest.NewRecorder()
	tracedRouter(http.StatusOK).ServeHTTP(rec,
		httptest.NewRequest(http.MethodGet, "/api/activity/act_9/gpx?download=1", http.NoBody))
	assert.Equal(t, "1", rec.Header().Get("X-Traced"))

	spans := sr.Ended()
	require.Len(t, spans, 1)
	span := spans[0]
	assert.Equal(t, "GET /api/activity/{id}/gpx", span.Name())
	assert.Equal(t, trace.SpanKindServer, span.SpanKind())

	route, ok := spanAttr(span, "http.route")
	require.True(t, ok)
	assert.Equal(t, "/api/activity/{id}/gpx", route.AsString())

	query, _ := spanAttr(span, "url.query")
	assert.Equal(t, "download=1", query.AsString())

	id, ok := spanAttr(span, "request.id")
	require.True(t, ok)
	assert.Contains(t, id.AsString(), "req_")

	svc, _ := spanAttr(span, "service.name")
	assert.Equal(t, "smartrunning-api", svc.AsString())
}

func TestTracing_Status(t *testing.T) {
	tests := []struct {
		status int
		code   codes.Code
	}{
		{http.StatusOK, codes.Unset},
		{http.StatusNotFound, codes.Unset},
		{http.StatusServiceUnavailable, codes.Error},
	}
	for _, tt := range tests {
		t.Run(http.StatusText(tt.status), func(t *testing.T) {
			sr := recordSpans(t)
			tracedRouter(tt.status).ServeHTTP(httptest.NewRecorder(),
				httptest.NewRequest(http.MethodGet, "/api/activity/act_1/gpx", http.NoBody))

			spans := sr.Ended()
			require.Len(t, spans, 1)
			got, ok := spanAttr(spans[0], "http.response.status_code")
			require.True(t, ok)
			assert.Equal(t, int64(tt.status), got.AsInt64())
			assert.Equal(t, tt.code, spans[0].Status().Code)
		})
	}
}

func TestTracing_PropagatesContext(t *testing.T) {
	sr := recordSpans(t)

	req := httptest.NewRequest(http.MethodGet, "/api/activity/act_1/gpx", http.NoBody)
	req.Header.Set("traceparent", "00-0af7651916cd43dd8448eb211c80319c-b7ad6b7169203331-01")
	tracedRouter(http.StatusOK).ServeHTTP(httptest.NewRecorder(), req)

	spans := sr.Ended()
	require.Len(t, spans, 1)
	assert.Equal(t, "0af7651916cd43dd8448eb211c80319c", spans[0].SpanContext().TraceID().String())
	assert.Equal(t, "b7ad6b7169203331", spans[0].Parent().SpanID().String())
}
