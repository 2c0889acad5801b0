package activity

import (
	"encoding/json"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"

	"github.com/smartrunning/smartrunning/internal/geo"
)

// LineString converts a coordinate path to a GeoJSON LineString geometry.
// GeoJSON positions are [lon, lat].
func LineString(path []geo.Coordinate) *geojson.Geometry {
	ls := make(orb.LineString, len(path))
	for i, c := range path {
		ls[i] = orb.Point{c.Lon, c.Lat}
	}
	return geojson.NewGeometry(ls)
}

// Path returns the activity's coordinates, or nil when it has no LineString.
func (a *Activity) Path() []geo.Coordinate {
	if a.Location == nil {
		return nil
	}
	ls, ok := a.Location.Geometry().(orb.LineString)
	if !ok {
		return nil
	}
	path := make([]geo.Coordinate, len(ls))
	for i, p := range ls {
		path[i] = geo.Coordinate{Lat: p.Lat(), Lon: p.Lon()}
	}
	return path
}

// routeCoordinates extracts the [[lat, lon], ...] coordinates a client stored
// in routeData when saving a generated route.
func routeCoordinates(raw json.RawMessage) []geo.Coordinate {
	if len(raw) == 0 {
		return nil
	}
	var data struct {
		Coordinates [][]float64 `json:"coordinates"`
	}
	if err := json.Unmarshal(raw, &data); err != nil {
		return nil
	}
	path := make([]geo.Coordinate, 0, len(data.Coordinates))
	for _, c := range data.Coordinates {
		if len(c) < 2 {
			return nil
		}
		path = append(path, geo.Coordinate{Lat: c[0], Lon: c[1]})
	}
	return path
}

// routeStartPoint extracts the [lat, lon] startPoint stored in routeData.
func routeStartPoint(raw json.RawMessage) (geo.Coordinate, bool) {
	if len(raw) == 0 {
		return geo.Coordinate{}, false
	}
	var data struct {
		StartPoint []float64 `json:"startPoint"`
	}
	if err := json.Unmarshal(raw, &data); err != nil || len(data.StartPoint) < 2 {
		return geo.Coordinate{}, false
	}
	return geo.Coordinate{Lat: data.StartPoint[0], Lon: data.StartPoint[1]}, true
}

// routeSurface extracts surfaceType from stored route data.
func routeSurface(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var data struct {
		Surface string `json:"surfaceType"`
	}
	if err := json.Unmarshal(raw, &data); err != nil {
		return ""
	}
	return data.Surface
}

func isLineString(g *geojson.Geometry) bool {
	if g == nil {
		return false
	}
	_, ok := g.Geometry().(orb.LineString)
	return ok
}
