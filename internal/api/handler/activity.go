package handler

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/smartrunning/smartrunning/internal/activity"
	"github.com/smartrunning/smartrunning/internal/api/models"
	"github.com/smartrunning/smartrunning/internal/api/response"
	"github.com/smartrunning/smartrunning/internal/track"
)

// ActivityList is the body of GET /api/activity.
type ActivityList struct {
	Items []*activity.Activity     `json:"items"`
	Meta  models.PagedResponseMeta `json:"meta"`
}

// ActivityHandler handles saved activity endpoints.
type ActivityHandler struct {
	activities *activity.Service
	tracks     *activity.Tracks
	logger     zerolog.Logger
}

// NewActivityHandler creates a new ActivityHandler.
func NewActivityHandler(activities *activity.Service, tracks *activity.Tracks, logger zerolog.Logger) *ActivityHandler {
	return &ActivityHandler{
		activities: activities,
		tracks:     tracks,
		logger:     logger,
	}
}

// List handles GET /api/activity.
func (h *ActivityHandler) List(w http.ResponseWriter, r *http.Request) {
	opts := activity.ListOptions{Cursor: r.URL.Query().Get("cursor")}
	if raw := r.URL.Query().Get("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil || limit < 1 {
			response.BadRequest(w, r, "invalid limit", []models.FieldError{
				{Field: "limit", Message: "must be a positive integer", Code: "INVALID_VALUE"},
			})
			return
		}
		opts.Limit = limit
	}

	result, err := h.activities.List(r.Context(), GetUserID(r.Context()), opts)
	if err != nil {
		h.fail(w, r, err, "list activities failed")
		return
	}

	items := result.Items
	if items == nil {
		items = []*activity.Activity{}
	}
	list := ActivityList{
		Items: items,
		Meta:  models.PagedResponseMeta{Limit: activity.ClampLimit(opts.Limit)},
	}
	if result.NextCursor != "" {
		list.Meta.NextCursor = &result.NextCursor
	}
	response.JSON(w, r, http.StatusOK, list)
}

// Create handles POST /api/activity.
func (h *ActivityHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req activity.CreateRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	a, err := h.activities.Create(r.Context(), GetUserID(r.Context()), &req)
	if err != nil {
		h.fail(w, r, err, "create activity failed")
		return
	}
	response.Created(w, r, "/api/activity/"+a.ID, a)
}

// Get handles GET /api/activity/{id}.
func (h *ActivityHandler) Get(w http.ResponseWriter, r *http.Request) {
	a, err := h.activities.Get(r.Context(), GetUserID(r.Context()), chi.URLParam(r, "id"))
	if err != nil {
		h.fail(w, r, err, "get activity failed")
		return
	}
	response.JSON(w, r, http.StatusOK, a)
}

// Update handles PUT /api/activity/{id}.
func (h *ActivityHandler) Update(w http.ResponseWriter, r *http.Request) {
	var req activity.UpdateRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	a, err := h.activities.Update(r.Context(), GetUserID(r.Context()), chi.URLParam(r, "id"), &req)
	if err != nil {
		h.fail(w, r, err, "update activity failed")
		return
	}
	response.JSON(w, r, http.StatusOK, a)
}

// Delete handles DELETE /api/activity/{id}.
func (h *ActivityHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if err := h.activities.Delete(r.Context(), GetUserID(r.Context()), chi.URLParam(r, "id")); err != nil {
		h.fail(w, r, err, "delete activity failed")
		return
	}
	response.NoContent(w, r)
}

// GPX handles GET /api/activity/{id}/gpx.
func (h *ActivityHandler) GPX(w http.ResponseWriter, r *http.Request) {
	data, a, err := h.tracks.Get(r.Context(), GetUserID(r.Context()), chi.URLParam(r, "id"))
	if err != nil {
		h.fail(w, r, err, "activity gpx failed")
		return
	}
	response.Attachment(w, r, track.ContentType, track.Filename(a.StartLocation), data)
}

func (h *ActivityHandler) fail(w http.ResponseWriter, r *http.Request, err error, msg string) {
	var valErr *activity.ValidationError
	switch {
	case errors.As(err, &valErr):
		response.BadRequest(w, r, "validation error", valErr.Errors)
	case errors.Is(err, activity.ErrActivityNotFound):
		response.NotFound(w, r, "Activity not found")
	case errors.Is(err, activity.ErrInvalidCursor):
		response.BadRequest(w, r, "invalid cursor", []models.FieldError{
			{Field: "cursor", Message: "does not match an activity", Code: "INVALID_VALUE"},
		})
	case errors.Is(err, activity.ErrNoTrack):
		response.NotFound(w, r, "Activity has no route to export")
	case errors.Is(err, track.ErrCapabilityUnavailable):
		response.CapabilityUnavailable(w, r, msgGPXUnavailable)
	default:
		h.logger.Error().Err(err).Str("user_id", GetUserID(r.Context())).Msg(msg)
		response.InternalError(w, r, msgServerError)
	}
}
