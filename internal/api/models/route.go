package models

import (
	"github.com/smartrunning/smartrunning/internal/geo"
	"github.com/smartrunning/smartrunning/internal/routing"
	"github.com/smartrunning/smartrunning/pkg/polyline"
)

// RouteResponse is the body of POST /api/activity/generate. The same shape is
// stored as an activity's routeData.
type RouteResponse struct {
	Coordinates    []LatLon `json:"coordinates"`
	StartPoint     LatLon   `json:"startPoint"`
	StartLocation  string   `json:"startLocation"`
	Distance       float64  `json:"distance"`
	TargetDistance float64  `json:"targetDistance"`
	SurfaceType    string   `json:"surfaceType"`
	ElevationGain  float64  `json:"elevationGain"`
	EstimatedTime  float64  `json:"estimatedTime"`
	Polyline       string   `json:"polyline"`
	Error          string   `json:"error,omitempty"`
	GPXAvailable   bool     `json:"gpxAvailable"`
}

// NewRouteResponse converts a synthesized route for the wire.
func NewRouteResponse(res *routing.Result, startLocation string, target float64, gpxAvailable bool) *RouteResponse {
	coords := make([]LatLon, len(res.Coordinates))
	points := make([]polyline.Coordinate, len(res.Coordinates))
	for i, c := range res.Coordinates {
		coords[i] = LatLon{c.Lat, c.Lon}
		points[i] = polyline.Coordinate(c)
	}
	return &RouteResponse{
		Coordinates:    coords,
		StartPoint:     LatLon{res.StartPoint.Lat, res.StartPoint.Lon},
		StartLocation:  startLocation,
		Distance:       res.ActualDistanceKm,
		TargetDistance: target,
		SurfaceType:    string(res.Surface),
		ElevationGain:  res.ElevationGainMeters,
		EstimatedTime:  res.EstimatedDurationMinutes,
		Polyline:       polyline.Encode(points),
		Error:          res.Error,
		GPXAvailable:   gpxAvailable,
	}
}

// Result converts the wire shape back into a routing.Result, e.g. for GPX
// export of a route the client already holds.
func (r *RouteResponse) Result() (*routing.Result, error) {
	surface, err := routing.ParseSurface(r.SurfaceType)
	if err != nil {
		return nil, err
	}
	coords := make([]geo.Coordinate, len(r.Coordinates))
	for i, c := range r.Coordinates {
		coords[i] = geo.Coordinate{Lat: c[0], Lon: c[1]}
	}
	return &routing.Result{
		Coordinates:              coords,
		StartPoint:               geo.Coordinate{Lat: r.StartPoint[0], Lon: r.StartPoint[1]},
		ActualDistanceKm:         r.Distance,
		Surface:                  surface,
		ElevationGainMeters:      r.ElevationGain,
		EstimatedDurationMinutes: r.EstimatedTime,
		Error:                    r.Error,
	}, nil
}
