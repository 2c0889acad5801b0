// Package routing synthesizes closed running loops around a start location.
package routing

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/smartrunning/smartrunning/internal/geo"
)

// Sentinel errors for street network providers.
var (
	// ErrProviderUnavailable indicates the network provider is down or its circuit is open.
	ErrProviderUnavailable = errors.New("street network provider unavailable")
	// ErrNoRouteFound indicates the provider could not build a loop.
	ErrNoRouteFound = errors.New("no loop route found")
	// ErrRateLimitExceeded indicates the provider quota has been exceeded.
	ErrRateLimitExceeded = errors.New("rate limit exceeded")
	// ErrInvalidCoordinates indicates the provider rejected the start coordinate.
	ErrInvalidCoordinates = errors.New("invalid coordinates")
	// ErrInvalidSurface is returned by ParseSurface for unknown preferences.
	ErrInvalidSurface = errors.New("invalid surface preference")
)

// Surface is the runner's surface preference.
type Surface string

// Surface preferences.
const (
	SurfaceAny   Surface = "Any"
	SurfaceRoad  Surface = "Road"
	SurfaceTrail Surface = "Trail"
	SurfaceMixed Surface = "Mixed"
)

// Surfaces lists every accepted preference in display order.
var Surfaces = []Surface{SurfaceAny, SurfaceRoad, SurfaceTrail, SurfaceMixed}

// ParseSurface parses a preference case-insensitively. Empty input means Any.
func ParseSurface(s string) (Surface, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return SurfaceAny, nil
	}
	for _, v := range Surfaces {
		if strings.EqualFold(s, string(v)) {
			return v, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidSurface, s)
}

// Request asks for a loop of roughly TargetDistanceKm starting at StartLocation.
type Request struct {
	StartLocation    string
	TargetDistanceKm float64
	Surface          Surface
}

// Result is a synthesized route. Error is advisory: a populated Result is
// returned on every degraded path.
type Result struct {
	Coordinates              []geo.Coordinate `json:"coordinates"`
	StartPoint               geo.Coordinate   `json:"startPoint"`
	ActualDistanceKm         float64          `json:"distance"`
	Surface                  Surface          `json:"surfaceType"`
	ElevationGainMeters      float64          `json:"elevationGain"`
	EstimatedDurationMinutes float64          `json:"estimatedTime"`
	Error                    string           `json:"error,omitempty"`
}

// Degraded reports whether the result carries an advisory error.
func (r *Result) Degraded() bool {
	return r.Error != ""
}

// Outcome classifies how a Result was produced.
type Outcome string

// Synthesis outcomes.
const (
	// OutcomeNetwork is a loop built by the street network provider.
	OutcomeNetwork Outcome = "network"
	// OutcomeSimplified is the synthetic circle.
	OutcomeSimplified Outcome = "simplified"
	// OutcomeDegraded is the single-point result after a geocoding failure.
	OutcomeDegraded Outcome = "degraded"
	// OutcomeFallback is the fixed triangle after an internal failure.
	OutcomeFallback Outcome = "fallback"
)

// Capabilities declares which optional dependencies are usable.
// It is fixed at construction time.
type Capabilities struct {
	Geocoding     bool `json:"geocoding"`
	StreetNetwork bool `json:"streetNetwork"`
	TrackEncoding bool `json:"trackEncoding"`
}

// LoopRequest is passed to a StreetNetwork provider.
type LoopRequest struct {
	Start      geo.Coordinate
	DistanceKm float64
	Filter     SurfaceFilter
}

// StreetNetwork builds loops over a real street graph.
type StreetNetwork interface {
	// LoopRoute returns an ordered coordinate path starting at req.Start.
	LoopRoute(ctx context.Context, req LoopRequest) ([]geo.Coordinate, error)
	// Name returns the provider identifier for logging and metrics.
	Name() string
}

// RandSource yields uniform values in [0, 1). *math/rand.Rand satisfies it.
type RandSource interface {
	Float64() float64
}

// Observer is notified once per synthesis.
type Observer interface {
	ObserveSynthesis(outcome Outcome, surface Surface)
}

// Error provides detailed error information from a street network provider.
type Error struct {
	Provider string // Provider that generated the error
	Code     string // Error code from the provider
	Message  string // Human-readable error message
	Err      error  // Underlying error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

// IsRetryable returns true if the error is transient and the request can be retried.
func (e *Error) IsRetryable() bool {
	return errors.Is(e.Err, ErrProviderUnavailable) || errors.Is(e.Err, ErrRateLimitExceeded)
}
