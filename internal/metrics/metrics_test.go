package metrics_test

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/smartrunning/smartrunning/internal/metrics"
	"github.com/smartrunning/smartrunning/internal/routing"
)

func TestRecorder_Counters(t *testing.T) {
	rec := metrics.New()

	rec.ObserveSynthesis(routing.OutcomeSimplified, routing.SurfaceTrail)
	rec.ObserveSynthesis(routing.OutcomeSimplified, routing.SurfaceTrail)
	rec.ObserveSynthesis(routing.OutcomeFallback, routing.SurfaceAny)
	rec.ObserveExport("ok")
	rec.ObserveGeocodeCache(true)
	rec.ObserveGeocodeCache(false)
	rec.ObserveGeocodeCache(false)
	rec.ObserveJob("activity.created", "ok", 0.02)

	assert.Equal(t, 2.0, testutil.ToFloat64(rec.RouteSyntheses.WithLabelValues("simplified", "Trail")))
	assert.Equal(t, 1.0, testutil.ToFloat64(rec.RouteSyntheses.WithLabelValues("fallback", "Any")))
	assert.Equal(t, 1.0, testutil.ToFloat64(rec.TrackExports.WithLabelValues("ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(rec.GeocodeCache.WithLabelValues("hit")))
	assert.Equal(t, 2.0, testutil.ToFloat64(rec.GeocodeCache.WithLabelValues("miss")))
	assert.Equal(t, 1.0, testutil.ToFloat64(rec.WorkerJobs.WithLabelValues("activity.created", "ok")))
}

func TestRecorder_IndependentRegistries(t *testing.T) {
	a := metrics.New()
	b := metrics.New()

	a.ObserveExport("error")

	assert.Equal(t, 1.0, testutil.ToFloat64(a.TrackExports.WithLabelValues("error")))
	assert.Equal(t, 0.0, testutil.ToFloat64(b.TrackExports.WithLabelValues("error")))
}

func TestRecorder_Handler(t *testing.T) {
	rec := metrics.New()
	rec.ObserveRequest(http.MethodGet, http.StatusOK)

	w := httptest.NewRecorder()
	rec.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", http.NoBody))

	require.Equal(t, http.StatusOK, w.Code)
	body, _ := io.ReadAll(w.Body)
	assert.Contains(t, string(body), `smartrunning_http_requests_total{method="GET",status="200"} 1`)
	assert.Contains(t, string(body), "go_goroutines")
}
