package routing

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/rand"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/smartrunning/smartrunning/internal/geo"
	"github.com/smartrunning/smartrunning/internal/geocode"
)

// Synthesis constants.
const (
	// PaceMinutesPerKm is the fixed running pace used for duration estimates.
	PaceMinutesPerKm = 6.0
	// PointsPerKm controls the density of the synthetic circle.
	PointsPerKm = 10
	// MinElevationPerKm and MaxElevationPerKm bound the placeholder elevation gain.
	MinElevationPerKm = 5.0
	MaxElevationPerKm = 20.0
)

// DefaultStartName is the place used when the start location cannot be resolved.
const DefaultStartName = "Odense C, Denmark"

// DefaultStart is the coordinate of DefaultStartName.
var DefaultStart = geo.Coordinate{Lat: 55.3960, Lon: 10.3883}

// fallbackTriangle is returned when synthesis fails outright.
var fallbackTriangle = []geo.Coordinate{
	{Lat: 55.3960, Lon: 10.3883},
	{Lat: 55.3961, Lon: 10.3884},
	{Lat: 55.3960, Lon: 10.3883},
}

// Advisory messages surfaced on degraded results.
const (
	msgGeocoderUnavailable = "Geocoding service not available. Using default location (" + DefaultStartName + ")."
	msgNetworkUnavailable  = "Street network provider not available. Using a simplified circular route."
)

// ServiceConfig holds configuration for the route synthesizer.
type ServiceConfig struct {
	// Capabilities gates the optional dependencies below.
	Capabilities Capabilities

	// Geocoder resolves the start location (optional).
	Geocoder geocode.Geocoder

	// Network builds street-following loops (optional).
	Network StreetNetwork

	// Rand drives the placeholder elevation gain. Defaults to a time-seeded source.
	Rand RandSource

	// Observer is notified of every synthesis outcome (optional).
	Observer Observer

	// Logger for service operations.
	Logger zerolog.Logger
}

// Service synthesizes running loops. It is safe for concurrent use.
type Service struct {
	caps     Capabilities
	geocoder geocode.Geocoder
	network  StreetNetwork
	observer Observer
	logger   zerolog.Logger

	randMu sync.Mutex
	rand   RandSource
}

// NewService creates a new route synthesizer.
func NewService(cfg ServiceConfig) *Service {
	src := cfg.Rand
	if src == nil {
		src = rand.New(rand.NewSource(time.Now().UnixNano())) //nolint:gosec // placeholder statistic, not security sensitive
	}

	return &Service{
		caps:     cfg.Capabilities,
		geocoder: cfg.Geocoder,
		network:  cfg.Network,
		observer: cfg.Observer,
		logger:   cfg.Logger,
		rand:     src,
	}
}

// Capabilities returns the capabilities the service was built with.
func (s *Service) Capabilities() Capabilities {
	return s.caps
}

// ResolveStart geocodes text. It never fails: any unavailability, miss,
// error or panic yields DefaultStart with degraded set and a reason.
func (s *Service) ResolveStart(ctx context.Context, text string) (coord geo.Coordinate, reason string, degraded bool) {
	if !s.caps.Geocoding || s.geocoder == nil {
		return DefaultStart, msgGeocoderUnavailable, true
	}

	defer func() {
		if r := recover(); r != nil {
			s.logger.Error().
				Interface("panic", r).
				Str("location", text).
				Msg("geocoder panicked")
			coord, reason, degraded = DefaultStart, geocodeFailedMessage(text), true
		}
	}()

	res, err := s.geocoder.Geocode(ctx, text)
	switch {
	case errors.Is(err, geocode.ErrNotFound):
		s.logger.Info().Str("location", text).Msg("start location not found")
		return DefaultStart, fmt.Sprintf("Could not find location: %s. Please enter a valid location.", text), true
	case err != nil:
		s.logger.Warn().Err(err).
			Str("location", text).
			Str("provider", s.geocoder.Name()).
			Msg("geocoding failed")
		return DefaultStart, geocodeFailedMessage(text), true
	case res == nil:
		return DefaultStart, fmt.Sprintf("Could not find location: %s. Please enter a valid location.", text), true
	}

	return res.Coordinate, "", false
}

func geocodeFailedMessage(text string) string {
	return fmt.Sprintf("Error geocoding location: %s. Please check the input.", text)
}

// Synthesize builds a closed loop for req. It never fails; degraded paths are
// reported through Result.Error.
func (s *Service) Synthesize(ctx context.Context, req Request) (res *Result) {
	if req.Surface == "" {
		req.Surface = SurfaceAny
	}
	outcome := OutcomeFallback

	defer func() {
		if r := recover(); r != nil {
			s.logger.Error().
				Interface("panic", r).
				Float64("target_km", req.TargetDistanceKm).
				Msg("route synthesis panicked")
			res = fallbackResult(req, fmt.Sprint(r))
			outcome = OutcomeFallback
		}
		if s.observer != nil {
			s.observer.ObserveSynthesis(outcome, req.Surface)
		}
	}()

	start, reason, degraded := s.ResolveStart(ctx, req.StartLocation)
	if degraded {
		outcome = OutcomeDegraded
		return &Result{
			Coordinates:              []geo.Coordinate{start},
			StartPoint:               start,
			ActualDistanceKm:         req.TargetDistanceKm,
			Surface:                  req.Surface,
			ElevationGainMeters:      0,
			EstimatedDurationMinutes: EstimatedDuration(req.TargetDistanceKm),
			Error:                    reason,
		}
	}

	coords, advisory, loopOutcome, err := s.buildLoop(ctx, start, req)
	if err != nil {
		s.logger.Warn().Err(err).
			Float64("target_km", req.TargetDistanceKm).
			Msg("route synthesis failed, returning fallback route")
		return fallbackResult(req, err.Error())
	}
	outcome = loopOutcome

	res = &Result{
		Coordinates:              coords,
		StartPoint:               start,
		ActualDistanceKm:         geo.Round(geo.PathLengthKm(coords), 2),
		Surface:                  req.Surface,
		ElevationGainMeters:      math.RoundToEven(s.uniform(req.TargetDistanceKm*MinElevationPerKm, req.TargetDistanceKm*MaxElevationPerKm)),
		EstimatedDurationMinutes: EstimatedDuration(req.TargetDistanceKm),
		Error:                    advisory,
	}

	s.logger.Debug().
		Str("outcome", string(outcome)).
		Int("points", len(coords)).
		Float64("target_km", req.TargetDistanceKm).
		Float64("actual_km", res.ActualDistanceKm).
		Msg("route synthesized")

	return res
}

// buildLoop prefers the street network provider and falls back to the circle.
func (s *Service) buildLoop(ctx context.Context, start geo.Coordinate, req Request) ([]geo.Coordinate, string, Outcome, error) {
	if !s.caps.StreetNetwork || s.network == nil {
		coords, err := CircleLoop(start, req.TargetDistanceKm)
		return coords, msgNetworkUnavailable, OutcomeSimplified, err
	}

	path, err := s.network.LoopRoute(ctx, LoopRequest{
		Start:      start,
		DistanceKm: req.TargetDistanceKm,
		Filter:     SurfaceFilterFor(req.Surface),
	})
	if err == nil && len(path) < 2 {
		err = ErrNoRouteFound
	}
	if err != nil {
		s.logger.Warn().Err(err).
			Str("provider", s.network.Name()).
			Msg("street network loop failed, using circle")
		coords, circleErr := CircleLoop(start, req.TargetDistanceKm)
		advisory := fmt.Sprintf("Street network routing failed (%s). Using a simplified circular route.", err.Error())
		return coords, advisory, OutcomeSimplified, circleErr
	}

	if !geo.IsClosed(path) {
		path = append(path, path[0])
	}
	return path, "", OutcomeNetwork, nil
}

// CircleLoop returns floor(distanceKm*10) points evenly spaced on a circle of
// circumference distanceKm around center, followed by the first point again.
func CircleLoop(center geo.Coordinate, distanceKm float64) ([]geo.Coordinate, error) {
	if math.IsNaN(distanceKm) || math.IsInf(distanceKm, 0) || distanceKm <= 0 {
		return nil, fmt.Errorf("invalid target distance %v km", distanceKm)
	}

	n := int(math.Floor(distanceKm * PointsPerKm))
	if n == 0 {
		return nil, fmt.Errorf("target distance %v km is too short to form a loop", distanceKm)
	}

	radius := distanceKm / (2 * math.Pi)
	coords := make([]geo.Coordinate, 0, n+1)
	for i := 0; i < n; i++ {
		angle := 2 * math.Pi * float64(i) / float64(n)
		coords = append(coords, geo.Offset(center, radius*math.Cos(angle), radius*math.Sin(angle)))
	}
	coords = append(coords, coords[0])

	return coords, nil
}

// EstimatedDuration returns the running time in whole minutes at the fixed
// pace. Halves round to even.
func EstimatedDuration(distanceKm float64) float64 {
	return math.RoundToEven(distanceKm * PaceMinutesPerKm)
}

func fallbackResult(req Request, msg string) *Result {
	coords := make([]geo.Coordinate, len(fallbackTriangle))
	copy(coords, fallbackTriangle)

	return &Result{
		Coordinates:              coords,
		StartPoint:               coords[0],
		ActualDistanceKm:         req.TargetDistanceKm,
		Surface:                  req.Surface,
		ElevationGainMeters:      0,
		EstimatedDurationMinutes: EstimatedDuration(req.TargetDistanceKm),
		Error:                    "Error generating route: " + msg,
	}
}

func (s *Service) uniform(lo, hi float64) float64 {
	s.randMu.Lock()
	defer s.randMu.Unlock()
	return lo + (hi-lo)*s.rand.Float64()
}
