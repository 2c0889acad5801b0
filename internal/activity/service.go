package activity

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/attribute"

	"github.com/smartrunning/smartrunning/internal/api/models"
	"github.com/smartrunning/smartrunning/internal/events"
	"github.com/smartrunning/smartrunning/internal/routing"
	"github.com/smartrunning/smartrunning/internal/telemetry"
)

// Validation constants.
const (
	MaxNameLength  = 120
	MaxNotesLength = 2000
	// MaxGenerateDistanceKm bounds route generation requests.
	MaxGenerateDistanceKm = 100.0
)

// Synthesizer builds route suggestions. *routing.Service satisfies it.
type Synthesizer interface {
	Synthesize(ctx context.Context, req routing.Request) *routing.Result
}

// ServiceConfig holds configuration for the activity service.
type ServiceConfig struct {
	Repo        Repository
	Synthesizer Synthesizer
	// Publisher receives lifecycle events (optional).
	Publisher events.Publisher
	Logger    zerolog.Logger
}

// Service provides activity operations.
type Service struct {
	repo        Repository
	synthesizer Synthesizer
	publisher   events.Publisher
	logger      zerolog.Logger
	now         func() time.Time
}

// NewService creates a new activity service.
func NewService(cfg ServiceConfig) *Service {
	pub := cfg.Publisher
	if pub == nil {
		pub = events.Nop{}
	}
	return &Service{
		repo:        cfg.Repo,
		synthesizer: cfg.Synthesizer,
		publisher:   pub,
		logger:      cfg.Logger,
		now:         time.Now,
	}
}

// Generate synthesizes a route for the request. The route is not persisted.
func (s *Service) Generate(ctx context.Context, userID string, req *GenerateRequest) (*routing.Result, error) {
	var errs []models.FieldError
	if strings.TrimSpace(req.StartLocation) == "" {
		errs = append(errs, models.FieldError{Field: "startLocation", Message: "is required", Code: "REQUIRED"})
	}
	if math.IsNaN(req.Distance) || req.Distance <= 0 || req.Distance > MaxGenerateDistanceKm {
		errs = append(errs, models.FieldError{Field: "distance", Message: "must be greater than 0 and at most 100 km", Code: "OUT_OF_RANGE"})
	}
	surface, err := routing.ParseSurface(req.SurfacePreference)
	if err != nil {
		errs = append(errs, models.FieldError{Field: "surfacePreference", Message: "must be one of Any, Road, Trail, Mixed", Code: "INVALID_VALUE"})
	}
	if len(errs) > 0 {
		return nil, &ValidationError{Errors: errs}
	}

	ctx, span := telemetry.StartSpan(ctx, "activity.generate",
		attribute.Float64("route.target_km", req.Distance),
		attribute.String("route.surface", string(surface)),
	)
	res := s.synthesizer.Synthesize(ctx, routing.Request{
		StartLocation:    strings.TrimSpace(req.StartLocation),
		TargetDistanceKm: req.Distance,
		Surface:          surface,
	})
	span.SetAttributes(
		attribute.Float64("route.actual_km", res.ActualDistanceKm),
		attribute.Bool("route.degraded", res.Degraded()),
	)
	telemetry.EndSpan(span, nil)

	s.logger.Info().
		Str("user_id", userID).
		Float64("target_km", req.Distance).
		Float64("actual_km", res.ActualDistanceKm).
		Str("surface", string(surface)).
		Bool("degraded", res.Degraded()).
		Msg("route generated")

	return res, nil
}

// List retrieves a page of the user's activities.
func (s *Service) List(ctx context.Context, userID string, opts ListOptions) (*ListResult, error) {
	opts.Limit = ClampLimit(opts.Limit)
	return s.repo.List(ctx, userID, opts)
}

// Get retrieves one of the user's activities.
func (s *Service) Get(ctx context.Context, userID, id string) (*Activity, error) {
	return s.repo.Get(ctx, userID, id)
}

// Create stores a new activity for the user.
func (s *Service) Create(ctx context.Context, userID string, input *CreateRequest) (*Activity, error) {
	if fieldErrors := validateCreate(input); len(fieldErrors) > 0 {
		return nil, &ValidationError{Errors: fieldErrors}
	}

	now := s.now().UTC()
	actType, _ := ParseType(input.ActivityType)

	name := strings.TrimSpace(input.Name)
	if name == "" {
		name = "Route from " + orDefault(input.StartLocation, "Unknown")
	}

	a := &Activity{
		ID:              "act_" + uuid.New().String()[:22],
		UserID:          userID,
		Name:            name,
		ActivityType:    actType,
		DistanceKm:      input.Distance,
		DurationSeconds: input.Duration,
		Calories:        input.Calories,
		StartLocation:   input.StartLocation,
		Location:        input.Location,
		ElevationGain:   input.ElevationGain,
		Surface:         input.SurfaceType,
		Notes:           input.Notes,
		RouteData:       input.RouteData,
		CreatedAt:       now,
		UpdatedAt:       now,
	}

	a.StartTime = now
	if input.StartTime != nil {
		a.StartTime = input.StartTime.UTC()
	}
	a.EndTime = a.StartTime.Add(time.Duration(a.DurationSeconds * float64(time.Second)))
	if input.EndTime != nil {
		a.EndTime = input.EndTime.UTC()
	}

	if input.AveragePace != nil {
		a.AveragePace = *input.AveragePace
	} else {
		a.AveragePace = Pace(a.DistanceKm, a.DurationSeconds)
	}

	if a.Location == nil {
		if path := routeCoordinates(input.RouteData); len(path) > 0 {
			a.Location = LineString(path)
		}
	}
	if a.Surface == "" {
		a.Surface = routeSurface(input.RouteData)
	}

	if err := s.repo.Create(ctx, a); err != nil {
		return nil, fmt.Errorf("creating activity: %w", err)
	}

	s.publish(ctx, events.ActivityCreated, a)
	return a, nil
}

// Update applies input to one of the user's activities.
func (s *Service) Update(ctx context.Context, userID, id string, input *UpdateRequest) (*Activity, error) {
	a, err := s.repo.Get(ctx, userID, id)
	if err != nil {
		return nil, err
	}

	if fieldErrors := validateUpdate(input); len(fieldErrors) > 0 {
		return nil, &ValidationError{Errors: fieldErrors}
	}

	if input.Name != nil {
		a.Name = strings.TrimSpace(*input.Name)
	}
	if input.ActivityType != nil {
		a.ActivityType, _ = ParseType(*input.ActivityType)
	}
	if input.Distance != nil {
		a.DistanceKm = *input.Distance
	}
	if input.Duration != nil {
		a.DurationSeconds = *input.Duration
	}
	if input.StartTime != nil {
		a.StartTime = input.StartTime.UTC()
	}
	if input.EndTime != nil {
		a.EndTime = input.EndTime.UTC()
	}
	if input.AveragePace != nil {
		a.AveragePace = *input.AveragePace
	} else if input.Distance != nil || input.Duration != nil {
		a.AveragePace = Pace(a.DistanceKm, a.DurationSeconds)
	}
	if input.Calories != nil {
		a.Calories = *input.Calories
	}
	if input.Location != nil {
		a.Location = input.Location
	}
	if input.ElevationGain != nil {
		a.ElevationGain = *input.ElevationGain
	}
	if input.Notes != nil {
		a.Notes = *input.Notes
	}
	if a.EndTime.Before(a.StartTime) {
		return nil, &ValidationError{Errors: []models.FieldError{{Field: "endTime", Message: "must not be before startTime", Code: "OUT_OF_RANGE"}}}
	}
	a.UpdatedAt = s.now().UTC()

	if err := s.repo.Update(ctx, a); err != nil {
		if errors.Is(err, ErrActivityNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("updating activity: %w", err)
	}

	s.publish(ctx, events.ActivityUpdated, a)
	return a, nil
}

// Delete removes one of the user's activities.
func (s *Service) Delete(ctx context.Context, userID, id string) error {
	if err := s.repo.Delete(ctx, userID, id); err != nil {
		return err
	}
	s.publish(ctx, events.ActivityDeleted, &Activity{ID: id, UserID: userID})
	return nil
}

// publish logs and swallows transport failures.
func (s *Service) publish(ctx context.Context, t events.Type, a *Activity) {
	if err := s.publisher.Publish(ctx, events.New(t, a.ID, a.UserID)); err != nil {
		s.logger.Warn().Err(err).
			Str("event_type", string(t)).
			Str("activity_id", a.ID).
			Msg("failed to publish activity event")
	}
}

// Pace returns minutes per km, or 0 when distance is not positive.
func Pace(distanceKm, durationSeconds float64) float64 {
	if distanceKm <= 0 {
		return 0
	}
	return math.Round(durationSeconds/60/distanceKm*100) / 100
}

func orDefault(s, def string) string {
	if strings.TrimSpace(s) == "" {
		return def
	}
	return s
}

func validateCreate(input *CreateRequest) []models.FieldError {
	var errs []models.FieldError

	if len(input.Name) > MaxNameLength {
		errs = append(errs, models.FieldError{Field: "name", Message: "must be at most 120 characters"})
	}
	if _, ok := ParseType(input.ActivityType); !ok {
		errs = append(errs, models.FieldError{Field: "activityType", Message: "must be one of run, walk, hike, cycle", Code: "INVALID_VALUE"})
	}
	errs = append(errs, validateNonNegative("distance", input.Distance)...)
	errs = append(errs, validateNonNegative("duration", input.Duration)...)
	errs = append(errs, validateNonNegative("calories", input.Calories)...)
	errs = append(errs, validateNonNegative("elevationGain", input.ElevationGain)...)
	if input.AveragePace != nil {
		errs = append(errs, validateNonNegative("averagePace", *input.AveragePace)...)
	}
	if input.StartTime != nil && input.EndTime != nil && input.EndTime.Before(*input.StartTime) {
		errs = append(errs, models.FieldError{Field: "endTime", Message: "must not be before startTime", Code: "OUT_OF_RANGE"})
	}
	if input.Location != nil && !isLineString(input.Location) {
		errs = append(errs, models.FieldError{Field: "location", Message: "must be a GeoJSON LineString", Code: "INVALID_VALUE"})
	}
	if len(input.Notes) > MaxNotesLength {
		errs = append(errs, models.FieldError{Field: "notes", Message: "must be at most 2000 characters"})
	}

	return errs
}

func validateUpdate(input *UpdateRequest) []models.FieldError {
	var errs []models.FieldError

	if input.Name != nil {
		if strings.TrimSpace(*input.Name) == "" {
			errs = append(errs, models.FieldError{Field: "name", Message: "cannot be empty"})
		} else if len(*input.Name) > MaxNameLength {
			errs = append(errs, models.FieldError{Field: "name", Message: "must be at most 120 characters"})
		}
	}
	if input.ActivityType != nil {
		if _, ok := ParseType(*input.ActivityType); !ok {
			errs = append(errs, models.FieldError{Field: "activityType", Message: "must be one of run, walk, hike, cycle", Code: "INVALID_VALUE"})
		}
	}
	for _, f := range []struct {
		name string
		v    *float64
	}{
		{"distance", input.Distance},
		{"duration", input.Duration},
		{"averagePace", input.AveragePace},
		{"calories", input.Calories},
		{"elevationGain", input.ElevationGain},
	} {
		if f.v != nil {
			errs = append(errs, validateNonNegative(f.name, *f.v)...)
		}
	}
	if input.Location != nil && !isLineString(input.Location) {
		errs = append(errs, models.FieldError{Field: "location", Message: "must be a GeoJSON LineString", Code: "INVALID_VALUE"})
	}
	if input.Notes != nil && len(*input.Notes) > MaxNotesLength {
		errs = append(errs, models.FieldError{Field: "notes", Message: "must be at most 2000 characters"})
	}

	return errs
}

func validateNonNegative(field string, v float64) []models.FieldError {
	if math.IsNaN(v) || math.IsInf(v, 0) || v < 0 {
		return []models.FieldError{{Field: field, Message: "must be a non-negative number", Code: "OUT_OF_RANGE"}}
	}
	return nil
}

// ValidationError represents validation errors.
type ValidationError struct {
	Errors []models.FieldError
}

func (e *ValidationError) Error() string {
	return "validation failed"
}
