// Package metrics exposes SmartRunning domain counters in Prometheus format.
package metrics

import (
	"net/http"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/smartrunning/smartrunning/internal/routing"
)

// Namespace prefixes every metric name.
const Namespace = "smartrunning"

// Recorder holds the domain counters. It satisfies routing.Observer,
// geocode.CacheObserver and track.Observer.
type Recorder struct {
	gatherer prometheus.Gatherer

	RouteSyntheses *prometheus.CounterVec
	TrackExports   *prometheus.CounterVec
	GeocodeCache   *prometheus.CounterVec
	WorkerJobs     *prometheus.CounterVec
	WorkerDuration *prometheus.HistogramVec
	HTTPRequests   *prometheus.CounterVec
}

// New registers the counters on a fresh registry together with the Go and
// process collectors.
func New() *Recorder {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return NewWithRegistry(reg, reg)
}

// NewWithRegistry registers the counters on reg and serves g from Handler.
func NewWithRegistry(reg prometheus.Registerer, g prometheus.Gatherer) *Recorder {
	factory := promauto.With(reg)
	return &Recorder{
		gatherer: g,
		RouteSyntheses: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Subsystem: "routing",
			Name:      "syntheses_total",
			Help:      "Total route syntheses by outcome and surface",
		}, []string{"outcome", "surface"}),
		TrackExports: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Subsystem: "track",
			Name:      "exports_total",
			Help:      "Total GPX exports by result",
		}, []string{"result"}),
		GeocodeCache: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Subsystem: "geocode",
			Name:      "cache_lookups_total",
			Help:      "Geocode cache lookups by result",
		}, []string{"result"}),
		WorkerJobs: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Subsystem: "worker",
			Name:      "jobs_total",
			Help:      "Track builder jobs by event type and result",
		}, []string{"event_type", "result"}),
		WorkerDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: Namespace,
			Subsystem: "worker",
			Name:      "job_duration_seconds",
			Help:      "Track builder job latency in seconds",
			Buckets:   []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		}, []string{"event_type"}),
		HTTPRequests: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total HTTP requests processed",
		}, []string{"method", "status"}),
	}
}

// ObserveSynthesis counts one route synthesis.
func (r *Recorder) ObserveSynthesis(outcome routing.Outcome, surface routing.Surface) {
	r.RouteSyntheses.WithLabelValues(string(outcome), string(surface)).Inc()
}

// ObserveExport counts one GPX export attempt.
func (r *Recorder) ObserveExport(result string) {
	r.TrackExports.WithLabelValues(result).Inc()
}

// ObserveGeocodeCache counts one cache lookup.
func (r *Recorder) ObserveGeocodeCache(hit bool) {
	result := "miss"
	if hit {
		result = "hit"
	}
	r.GeocodeCache.WithLabelValues(result).Inc()
}

// ObserveJob counts one worker job and its duration.
func (r *Recorder) ObserveJob(eventType, result string, seconds float64) {
	r.WorkerJobs.WithLabelValues(eventType, result).Inc()
	r.WorkerDuration.WithLabelValues(eventType).Observe(seconds)
}

// ObserveRequest counts one HTTP response.
func (r *Recorder) ObserveRequest(method string, status int) {
	r.HTTPRequests.WithLabelValues(method, strconv.Itoa(status)).Inc()
}

// Handler serves the registry in the Prometheus exposition format.
func (r *Recorder) Handler() http.Handler {
	return promhttp.HandlerFor(r.gatherer, promhttp.HandlerOpts{})
}
