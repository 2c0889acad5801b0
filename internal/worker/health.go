package worker

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
)

// HealthConfig configures the worker's health endpoint.
type HealthConfig struct {
	Version string
	Builder *TrackBuilder
	// Metrics serves GET /metrics (optional).
	Metrics http.Handler
}

// NewHealthHandler serves GET /health with the builder's job statistics.
// The status is "degraded" once every processed job so far has failed.
func NewHealthHandler(cfg HealthConfig) http.Handler {
	r := chi.NewRouter()

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		status := "healthy"
		body := map[string]any{"version": cfg.Version}
		if cfg.Builder != nil {
			stats := cfg.Builder.GetStats()
			if stats.Processed > 0 && stats.Failed == stats.Processed {
				status = "degraded"
			}
			body["jobs"] = cfg.Builder.StatsSnapshot()
		}
		body["status"] = status

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_ = json.NewEncoder(w).Encode(body)
	})
	if cfg.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", cfg.Metrics)
	}

	return r
}
