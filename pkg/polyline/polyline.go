// Package polyline implements the encoded polyline algorithm format used by
// Google Maps and OpenRouteService geometries.
// See https://developers.google.com/maps/documentation/utilities/polylinealgorithm
package polyline

import (
	"errors"
	"math"
	"strings"
)

// DefaultPrecision is the number of decimal places used by Google and ORS.
const DefaultPrecision = 5

// ErrMalformed is returned when an encoded string ends mid-value or has an odd number of values.
var ErrMalformed = errors.New("polyline: malformed input")

// Coordinate is a latitude/longitude pair in decimal degrees.
type Coordinate struct {
	Lat float64
	Lon float64
}

// Encode encodes coords at DefaultPrecision.
func Encode(coords []Coordinate) string {
	return EncodePrecision(coords, DefaultPrecision)
}

// EncodePrecision encodes coords with the given number of decimal places.
func EncodePrecision(coords []Coordinate, precision int) string {
	if len(coords) == 0 {
		return ""
	}

	factor := math.Pow10(precision)
	var sb strings.Builder
	sb.Grow(len(coords) * 8)

	var prevLat, prevLon int64
	for _, c := range coords {
		lat := int64(math.Round(c.Lat * factor))
		lon := int64(math.Round(c.Lon * factor))
		writeValue(&sb, lat-prevLat)
		writeValue(&sb, lon-prevLon)
		prevLat, prevLon = lat, lon
	}
	return sb.String()
}

// Decode decodes s at DefaultPrecision.
func Decode(s string) ([]Coordinate, error) {
	return DecodePrecision(s, DefaultPrecision)
}

// DecodePrecision decodes s with the given number of decimal places.
func DecodePrecision(s string, precision int) ([]Coordinate, error) {
	if s == "" {
		return nil, nil
	}

	factor := math.Pow10(precision)
	coords := make([]Coordinate, 0, len(s)/4)

	var lat, lon int64
	for i := 0; i < len(s); {
		dLat, next, err := readValue(s, i)
		if err != nil {
			return nil, err
		}
		dLon, next, err := readValue(s, next)
		if err != nil {
			return nil, err
		}
		i = next

		lat += dLat
		lon += dLon
		coords = append(coords, Coordinate{Lat: float64(lat) / factor, Lon: float64(lon) / factor})
	}
	return coords, nil
}

func writeValue(sb *strings.Builder, v int64) {
	u := uint64(v) << 1
	if v < 0 {
		u = ^u
	}
	for u >= 0x20 {
		sb.WriteByte(byte((u&0x1f)|0x20) + 63)
		u >>= 5
	}
	sb.WriteByte(byte(u) + 63)
}

func readValue(s string, i int) (int64, int, error) {
	var result uint64
	var shift uint
	for {
		if i >= len(s) {
			return 0, i, ErrMalformed
		}
		b := int64(s[i]) - 63
		i++
		if b < 0 || b > 0x3f || shift > 60 {
			return 0, i, ErrMalformed
		}
		result |= uint64(b&0x1f) << shift
		shift += 5
		if b < 0x20 {
			break
		}
	}

	v := int64(result >> 1)
	if result&1 != 0 {
		v = ^v
	}
	return v, i, nil
}
