package openrouteservice

// Wire types for POST /v2/directions/{profile} with round_trip options.
// Coordinates are [lon, lat].

type orsRequest struct {
	Coordinates  [][]float64 `json:"coordinates"`
	Options      orsOptions  `json:"options"`
	Instructions bool        `json:"instructions"`
	Elevation    bool        `json:"elevation"`
	Units        string      `json:"units"`
}

type orsOptions struct {
	RoundTrip     roundTripOpts `json:"round_trip"`
	AvoidFeatures []string      `json:"avoid_features,omitempty"`
}

type roundTripOpts struct {
	Length float64 `json:"length"` // meters
	Points int     `json:"points"`
	Seed   int     `json:"seed"`
}

type orsResponse struct {
	Routes []struct {
		Summary struct {
			Distance float64 `json:"distance"`
			Duration float64 `json:"duration"`
		} `json:"summary"`
		Geometry string `json:"geometry"`
	} `json:"routes"`
}

type orsErrorResponse struct {
	Error struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

const (
	orsErrorCodeRouteNotFound = 2009
	orsErrorCodePointNotFound = 2010
)
