package handler

import (
	"errors"
	"net/http"

	"github.com/rs/zerolog"

	"github.com/smartrunning/smartrunning/internal/activity"
	"github.com/smartrunning/smartrunning/internal/api/models"
	"github.com/smartrunning/smartrunning/internal/api/response"
	"github.com/smartrunning/smartrunning/internal/routing"
	"github.com/smartrunning/smartrunning/internal/track"
)

const msgGPXUnavailable = "GPX export unavailable"

// RouteHandler handles route generation endpoints.
type RouteHandler struct {
	activities *activity.Service
	exporter   *track.Exporter
	logger     zerolog.Logger
}

// NewRouteHandler creates a new RouteHandler.
func NewRouteHandler(activities *activity.Service, exporter *track.Exporter, logger zerolog.Logger) *RouteHandler {
	return &RouteHandler{
		activities: activities,
		exporter:   exporter,
		logger:     logger,
	}
}

// Generate handles POST /api/activity/generate.
// A degraded route is still a 200; the advisory is carried in the error field.
func (h *RouteHandler) Generate(w http.ResponseWriter, r *http.Request) {
	var req activity.GenerateRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	res, ok := h.generate(w, r, &req)
	if !ok {
		return
	}
	response.JSON(w, r, http.StatusOK, models.NewRouteResponse(res, req.StartLocation, req.Distance, h.exporter.Enabled()))
}

// gpxRequest accepts either a route the client already holds or the
// parameters to generate a fresh one.
type gpxRequest struct {
	Route *models.RouteResponse `json:"route,omitempty"`
	activity.GenerateRequest
}

// GenerateGPX handles POST /api/activity/generate/gpx.
func (h *RouteHandler) GenerateGPX(w http.ResponseWriter, r *http.Request) {
	if !h.exporter.Enabled() {
		response.CapabilityUnavailable(w, r, msgGPXUnavailable)
		return
	}

	var req gpxRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	var (
		res           *routing.Result
		startLocation = req.StartLocation
	)
	if req.Route != nil {
		var err error
		res, err = req.Route.Result()
		if err != nil {
			response.BadRequest(w, r, "invalid route", []models.FieldError{
				{Field: "route.surfaceType", Message: err.Error(), Code: "INVALID_VALUE"},
			})
			return
		}
		if len(res.Coordinates) == 0 {
			response.BadRequest(w, r, "invalid route", []models.FieldError{
				{Field: "route.coordinates", Message: "is required", Code: "REQUIRED"},
			})
			return
		}
		if req.Route.StartLocation != "" {
			startLocation = req.Route.StartLocation
		}
	} else {
		var ok bool
		res, ok = h.generate(w, r, &req.GenerateRequest)
		if !ok {
			return
		}
	}

	data, err := h.exporter.Export(res)
	if err != nil {
		if errors.Is(err, track.ErrCapabilityUnavailable) {
			response.CapabilityUnavailable(w, r, msgGPXUnavailable)
			return
		}
		h.logger.Error().Err(err).Msg("gpx export failed")
		response.InternalError(w, r, msgServerError)
		return
	}

	response.Attachment(w, r, track.ContentType, track.Filename(startLocation), data)
}

func (h *RouteHandler) generate(w http.ResponseWriter, r *http.Request, req *activity.GenerateRequest) (*routing.Result, bool) {
	res, err := h.activities.Generate(r.Context(), GetUserID(r.Context()), req)
	if err != nil {
		var valErr *activity.ValidationError
		if errors.As(err, &valErr) {
			response.BadRequest(w, r, "Please provide a start location and a distance", valErr.Errors)
			return nil, false
		}
		h.logger.Error().Err(err).Msg("route generation failed")
		response.InternalError(w, r, msgServerError)
		return nil, false
	}
	return res, true
}
