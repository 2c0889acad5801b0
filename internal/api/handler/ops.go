// Package handler provides HTTP handlers for the SmartRunning API.
package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/smartrunning/smartrunning/internal/api/models"
	"github.com/smartrunning/smartrunning/internal/api/response"
	"github.com/smartrunning/smartrunning/internal/provider/resilience"
	"github.com/smartrunning/smartrunning/internal/routing"
)

// readyTimeout bounds each dependency ping in readiness and status checks.
const readyTimeout = 2 * time.Second

// Pinger is a dependency that can report whether it is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Subsystem is a named dependency checked by readiness probes.
type Subsystem struct {
	Name   string
	Pinger Pinger
}

// OpsConfig holds configuration for the ops handler.
type OpsConfig struct {
	Version      string
	BuildTime    string
	Capabilities routing.Capabilities
	Subsystems   []Subsystem
	Registry     *resilience.Registry
}

// OpsHandler handles operational endpoints.
type OpsHandler struct {
	version      string
	buildTime    string
	capabilities routing.Capabilities
	subsystems   []Subsystem
	registry     *resilience.Registry
}

// NewOpsHandler creates a new OpsHandler.
func NewOpsHandler(cfg OpsConfig) *OpsHandler {
	return &OpsHandler{
		version:      cfg.Version,
		buildTime:    cfg.BuildTime,
		capabilities: cfg.Capabilities,
		subsystems:   cfg.Subsystems,
		registry:     cfg.Registry,
	}
}

// HealthCheck handles GET /api/ops/health - liveness check.
func (h *OpsHandler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	health := models.Health{
		Status: models.HealthStatusOK,
		Time:   models.Timestamp(time.Now()),
		Details: map[string]any{
			"version":   h.version,
			"buildTime": h.buildTime,
		},
	}
	response.JSON(w, r, http.StatusOK, health)
}

// ReadinessCheck handles GET /api/ops/ready. Any failing subsystem makes it 503.
func (h *OpsHandler) ReadinessCheck(w http.ResponseWriter, r *http.Request) {
	subsystems := h.checkSubsystems(r.Context())

	health := models.Health{
		Status: models.HealthStatusOK,
		Time:   models.Timestamp(time.Now()),
	}
	status := http.StatusOK
	for _, s := range subsystems {
		if s.Status != models.HealthStatusOK {
			health.Status = models.HealthStatusFail
			status = http.StatusServiceUnavailable
			if health.Details == nil {
				health.Details = map[string]any{}
			}
			health.Details[s.Name] = *s.Detail
		}
	}
	response.JSON(w, r, status, health)
}

// SystemStatus handles GET /api/ops/status - capabilities, subsystems and
// provider circuit states.
func (h *OpsHandler) SystemStatus(w http.ResponseWriter, r *http.Request) {
	status := models.SystemStatus{
		Status:  models.HealthStatusOK,
		Time:    models.Timestamp(time.Now()),
		Version: h.version,
		Capabilities: models.Capabilities{
			Geocoding:     h.capabilities.Geocoding,
			StreetNetwork: h.capabilities.StreetNetwork,
			TrackEncoding: h.capabilities.TrackEncoding,
		},
		Subsystems: h.checkSubsystems(r.Context()),
		Providers:  h.providerStatuses(),
	}

	for _, s := range status.Subsystems {
		if s.Status == models.HealthStatusFail {
			status.Status = models.HealthStatusFail
		}
	}
	if status.Status == models.HealthStatusOK {
		for _, p := range status.Providers {
			if p.Status != models.HealthStatusOK {
				status.Status = models.HealthStatusDegraded
				break
			}
		}
	}

	response.JSON(w, r, http.StatusOK, status)
}

func (h *OpsHandler) checkSubsystems(ctx context.Context) []models.SubsystemStatus {
	out := make([]models.SubsystemStatus, 0, len(h.subsystems))
	for _, s := range h.subsystems {
		pingCtx, cancel := context.WithTimeout(ctx, readyTimeout)
		err := s.Pinger.Ping(pingCtx)
		cancel()

		st := models.SubsystemStatus{Name: s.Name, Status: models.HealthStatusOK}
		if err != nil {
			detail := err.Error()
			st.Status = models.HealthStatusFail
			st.Detail = &detail
		}
		out = append(out, st)
	}
	return out
}

func (h *OpsHandler) providerStatuses() []models.ProviderStatus {
	if h.registry == nil {
		return []models.ProviderStatus{}
	}

	all := h.registry.GetAllHealth()
	out := make([]models.ProviderStatus, 0, len(all))
	for _, p := range all {
		ps := models.ProviderStatus{
			Provider:     p.Name,
			Status:       models.HealthStatusOK,
			CircuitState: p.CircuitState.String(),
		}
		switch {
		case p.IsUnhealthy():
			ps.Status = models.HealthStatusFail
		case p.IsDegraded():
			ps.Status = models.HealthStatusDegraded
		}
		if p.LastSuccessAt != nil {
			ts := models.Timestamp(*p.LastSuccessAt)
			ps.LastSuccessAt = &ts
		}
		if p.LastFailureAt != nil {
			ts := models.Timestamp(*p.LastFailureAt)
			ps.LastFailureAt = &ts
		}
		if p.LastError != "" {
			msg := p.LastError
			ps.Message = &msg
		}
		out = append(out, ps)
	}
	return out
}
