package routing

import "slices"

// Surface tag values assigned to ways that carry no explicit surface tag.
const (
	TagPaved   = "paved"
	TagUnpaved = "unpaved"
	TagUnknown = "unknown"
)

var (
	roadHighways  = []string{"primary", "secondary", "tertiary", "residential", "service"}
	trailHighways = []string{"path", "footway", "track"}
)

// SurfaceFilter selects the OSM highway categories a loop may use and how
// untagged ways are classified.
type SurfaceFilter struct {
	Surface  Surface
	Highways []string
}

// SurfaceFilterFor returns the highway filter for a preference.
// Unknown preferences are treated as Any.
func SurfaceFilterFor(s Surface) SurfaceFilter {
	switch s {
	case SurfaceRoad:
		return SurfaceFilter{Surface: SurfaceRoad, Highways: slices.Clone(roadHighways)}
	case SurfaceTrail:
		return SurfaceFilter{Surface: SurfaceTrail, Highways: slices.Clone(trailHighways)}
	case SurfaceMixed:
		return SurfaceFilter{Surface: SurfaceMixed, Highways: slices.Concat(roadHighways, trailHighways)}
	default:
		return SurfaceFilter{Surface: SurfaceAny, Highways: slices.Concat(roadHighways, trailHighways)}
	}
}

// Allows reports whether ways of the given highway category are permitted.
func (f SurfaceFilter) Allows(highway string) bool {
	return slices.Contains(f.Highways, highway)
}

// DefaultSurfaceTag returns the surface assumed for a way of the given
// highway category that lacks a "surface" tag.
func (f SurfaceFilter) DefaultSurfaceTag(highway string) string {
	switch f.Surface {
	case SurfaceRoad:
		return TagPaved
	case SurfaceTrail:
		return TagUnpaved
	case SurfaceMixed:
		if slices.Contains(roadHighways, highway) {
			return TagPaved
		}
		if slices.Contains(trailHighways, highway) {
			return TagUnpaved
		}
		return TagUnknown
	default:
		return TagUnknown
	}
}
