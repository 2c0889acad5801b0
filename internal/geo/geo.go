// Package geo holds coordinate types and great-circle distance helpers.
package geo

import "math"

// EarthRadiusKm is the mean Earth radius used for haversine distances.
const EarthRadiusKm = 6371.0

// KmPerDegreeLat is the approximate length of one degree of latitude.
const KmPerDegreeLat = 111.32

// Coordinate is a point in decimal degrees. Values are not range checked.
type Coordinate struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// Haversine returns the great-circle distance between a and b in kilometers.
func Haversine(a, b Coordinate) float64 {
	lat1 := toRad(a.Lat)
	lat2 := toRad(b.Lat)
	dLat := lat2 - lat1
	dLon := toRad(b.Lon - a.Lon)

	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1)*math.Cos(lat2)*math.Sin(dLon/2)*math.Sin(dLon/2)

	return 2 * EarthRadiusKm * math.Asin(math.Sqrt(h))
}

// PathLengthKm sums the haversine distance over consecutive pairs.
func PathLengthKm(path []Coordinate) float64 {
	total := 0.0
	for i := 1; i < len(path); i++ {
		total += Haversine(path[i-1], path[i])
	}
	return total
}

// Offset moves origin by northKm and eastKm using a flat local approximation.
func Offset(origin Coordinate, northKm, eastKm float64) Coordinate {
	return Coordinate{
		Lat: origin.Lat + northKm/KmPerDegreeLat,
		Lon: origin.Lon + eastKm/(KmPerDegreeLat*math.Cos(toRad(origin.Lat))),
	}
}

// IsClosed reports whether the path starts and ends at the same point.
// Empty paths are not closed; a single point is.
func IsClosed(path []Coordinate) bool {
	if len(path) == 0 {
		return false
	}
	return path[0] == path[len(path)-1]
}

// Round rounds v to the given number of decimal places.
func Round(v float64, places int) float64 {
	p := math.Pow(10, float64(places))
	return math.Round(v*p) / p
}

func toRad(deg float64) float64 {
	return deg * math.Pi / 180
}
