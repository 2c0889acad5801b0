package middleware

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/smartrunning/smartrunning/internal/telemetry"
)

// unmatchedRoute labels requests chi did not route.
const unmatchedRoute = "unmatched"

// RequestObserver receives one call per completed request.
// *metrics.Recorder satisfies it.
type RequestObserver interface {
	ObserveRequest(method string, status int)
}

// Metrics records HTTP server instruments on the global meter provider.
type Metrics struct {
	duration  metric.Float64Histogram
	total     metric.Int64Counter
	inFlight  metric.Int64UpDownCounter
	size      metric.Int64Histogram
	observers []RequestObserver
}

// NewMetrics creates the instruments. Observers hear about every request as
// well.
func NewMetrics(observers ...RequestObserver) (*Metrics, error) {
	meter := otel.Meter(telemetry.ScopeName)
	m := &Metrics{observers: observers}

	var errs [4]error
	m.duration, errs[0] = meter.Float64Histogram("http.server.request.duration",
		metric.WithDescription("HTTP request latency"), metric.WithUnit("s"))
	m.total, errs[1] = meter.Int64Counter("http.server.request.total",
		metric.WithDescription("HTTP requests served"), metric.WithUnit("{request}"))
	m.inFlight, errs[2] = meter.Int64UpDownCounter("http.server.requests_in_flight",
		metric.WithDescription("HTTP requests being served"), metric.WithUnit("{request}"))
	m.size, errs[3] = meter.Int64Histogram("http.server.response.size",
		metric.WithDescription("HTTP response body size"), metric.WithUnit("By"))
	if err := errors.Join(errs[:]...); err != nil {
		return nil, err
	}
	return m, nil
}

// Middleware labels each request with its method, chi route pattern and
// status.
func (m *Metrics) Middleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			began := time.Now()
			method := attribute.String("http.method", r.Method)

			m.inFlight.Add(ctx, 1, metric.WithAttributes(method))
			defer m.inFlight.Add(ctx, -1, metric.WithAttributes(method))

			ww := chimw.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)

			status := ww.Status()
			if status == 0 {
				status = http.StatusOK
			}
			labels := metric.WithAttributes(method,
				attribute.String("http.route", routePattern(r)),
				attribute.String("http.status_code", strconv.Itoa(status)),
				attribute.Bool("error", status >= http.StatusBadRequest),
			)
			m.duration.Record(ctx, time.Since(began).Seconds(), labels)
			m.total.Add(ctx, 1, labels)
			m.size.Record(ctx, int64(ww.BytesWritten()), labels)

			for _, o := range m.observers {
				o.ObserveRequest(r.Method, status)
			}
		})
	}
}

// routePattern is the matched chi pattern, e.g. /api/activity/{id}, or
// unmatchedRoute.
func routePattern(r *http.Request) string {
	if rctx := chi.RouteContext(r.Context()); rctx != nil {
		if p := rctx.RoutePattern(); p != "" {
			return p
		}
	}
	return unmatchedRoute
}
