// Package activity stores runs and generates new route suggestions.
package activity

import (
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/paulmach/orb/geojson"
)

// Repository errors.
var (
	ErrActivityNotFound = errors.New("activity not found")
	ErrInvalidCursor    = errors.New("invalid pagination cursor")
)

// Type is the kind of activity.
type Type string

// Activity types.
const (
	TypeRun   Type = "run"
	TypeWalk  Type = "walk"
	TypeHike  Type = "hike"
	TypeCycle Type = "cycle"
)

// typeAliases maps client spellings onto canonical types.
var typeAliases = map[string]Type{
	"run":     TypeRun,
	"running": TypeRun,
	"walk":    TypeWalk,
	"walking": TypeWalk,
	"hike":    TypeHike,
	"hiking":  TypeHike,
	"cycle":   TypeCycle,
	"cycling": TypeCycle,
}

// ParseType normalizes an activity type. Empty input means run.
func ParseType(s string) (Type, bool) {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return TypeRun, true
	}
	t, ok := typeAliases[s]
	return t, ok
}

// Activity is a recorded or planned run.
type Activity struct {
	ID              string            `json:"id"`
	UserID          string            `json:"userId"`
	Name            string            `json:"name"`
	ActivityType    Type              `json:"activityType"`
	DistanceKm      float64           `json:"distance"`
	DurationSeconds float64           `json:"duration"`
	StartTime       time.Time         `json:"startTime"`
	EndTime         time.Time         `json:"endTime"`
	AveragePace     float64           `json:"averagePace"`
	Calories        float64           `json:"calories"`
	StartLocation   string            `json:"startLocation,omitempty"`
	Location        *geojson.Geometry `json:"location,omitempty"`
	ElevationGain   float64           `json:"elevationGain"`
	Surface         string            `json:"surfaceType,omitempty"`
	Notes           string            `json:"notes"`
	RouteData       json.RawMessage   `json:"routeData,omitempty"`
	CreatedAt       time.Time         `json:"createdAt"`
	UpdatedAt       time.Time         `json:"updatedAt"`
}

// clone returns a deep enough copy for repository isolation.
func (a *Activity) clone() *Activity {
	cpy := *a
	if a.Location != nil {
		loc := *a.Location
		cpy.Location = &loc
	}
	if a.RouteData != nil {
		cpy.RouteData = append(json.RawMessage(nil), a.RouteData...)
	}
	return &cpy
}

// CreateRequest is the body of POST /activity.
type CreateRequest struct {
	Name          string            `json:"name"`
	ActivityType  string            `json:"activityType"`
	Distance      float64           `json:"distance"`
	Duration      float64           `json:"duration"`
	StartTime     *time.Time        `json:"startTime,omitempty"`
	EndTime       *time.Time        `json:"endTime,omitempty"`
	AveragePace   *float64          `json:"averagePace,omitempty"`
	Calories      float64           `json:"calories"`
	StartLocation string            `json:"startLocation"`
	Location      *geojson.Geometry `json:"location,omitempty"`
	ElevationGain float64           `json:"elevationGain"`
	SurfaceType   string            `json:"surfaceType,omitempty"`
	Notes         string            `json:"notes"`
	RouteData     json.RawMessage   `json:"routeData,omitempty"`
}

// UpdateRequest is the body of PUT /activity/{id}. Nil fields are left unchanged.
type UpdateRequest struct {
	Name          *string           `json:"name,omitempty"`
	ActivityType  *string           `json:"activityType,omitempty"`
	Distance      *float64          `json:"distance,omitempty"`
	Duration      *float64          `json:"duration,omitempty"`
	StartTime     *time.Time        `json:"startTime,omitempty"`
	EndTime       *time.Time        `json:"endTime,omitempty"`
	AveragePace   *float64          `json:"averagePace,omitempty"`
	Calories      *float64          `json:"calories,omitempty"`
	Location      *geojson.Geometry `json:"location,omitempty"`
	ElevationGain *float64          `json:"elevationGain,omitempty"`
	Notes         *string           `json:"notes,omitempty"`
}

// GenerateRequest is the body of POST /activity/generate.
type GenerateRequest struct {
	StartLocation     string  `json:"startLocation"`
	Distance          float64 `json:"distance"`
	SurfacePreference string  `json:"surfacePreference"`
}

// ListOptions contains options for listing activities.
type ListOptions struct {
	Limit  int
	Cursor string
}

// ListResult contains the results of listing activities.
type ListResult struct {
	Items      []*Activity
	NextCursor string
}
