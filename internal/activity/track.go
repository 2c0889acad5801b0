package activity

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/smartrunning/smartrunning/internal/cache"
	"github.com/smartrunning/smartrunning/internal/routing"
	"github.com/smartrunning/smartrunning/internal/track"
)

// ErrNoTrack is returned for activities without a stored path.
var ErrNoTrack = errors.New("activity has no route to export")

// DefaultTrackTTL is how long rendered tracks stay cached.
const DefaultTrackTTL = 7 * 24 * time.Hour

// TrackKey is the cache key of an activity's rendered GPX track.
func TrackKey(activityID string) string {
	return "track:" + activityID
}

// Route rebuilds a routing.Result from the stored path so it can be exported.
// The start point comes from routeData and defaults to the first path point.
func (a *Activity) Route() (*routing.Result, error) {
	path := a.Path()
	if len(path) == 0 {
		return nil, ErrNoTrack
	}
	start, ok := routeStartPoint(a.RouteData)
	if !ok {
		start = path[0]
	}
	surface, err := routing.ParseSurface(a.Surface)
	if err != nil {
		surface = routing.SurfaceAny
	}
	return &routing.Result{
		Coordinates:              path,
		StartPoint:               start,
		ActualDistanceKm:         a.DistanceKm,
		Surface:                  surface,
		ElevationGainMeters:      a.ElevationGain,
		EstimatedDurationMinutes: a.DurationSeconds / 60,
	}, nil
}

// TracksConfig configures Tracks.
type TracksConfig struct {
	Repo     Repository
	Exporter *track.Exporter
	Store    cache.Store
	TTL      time.Duration
	Logger   zerolog.Logger
}

// Tracks renders GPX tracks for saved activities and keeps them in a cache.
// The API reads through it and the worker warms it from activity events.
type Tracks struct {
	repo     Repository
	exporter *track.Exporter
	store    cache.Store
	ttl      time.Duration
	logger   zerolog.Logger
}

// NewTracks creates a new Tracks.
func NewTracks(cfg TracksConfig) *Tracks {
	ttl := cfg.TTL
	if ttl <= 0 {
		ttl = DefaultTrackTTL
	}
	return &Tracks{
		repo:     cfg.Repo,
		exporter: cfg.Exporter,
		store:    cfg.Store,
		ttl:      ttl,
		logger:   cfg.Logger,
	}
}

// Get returns the GPX track of one of the user's activities, rendering and
// caching it on a miss. Ownership is always checked against the repository.
func (t *Tracks) Get(ctx context.Context, userID, id string) ([]byte, *Activity, error) {
	if !t.exporter.Enabled() {
		return nil, nil, track.ErrCapabilityUnavailable
	}

	a, err := t.repo.Get(ctx, userID, id)
	if err != nil {
		return nil, nil, err
	}

	data, err := t.store.Get(ctx, TrackKey(id))
	if err == nil {
		return data, a, nil
	}
	if !errors.Is(err, cache.ErrMiss) {
		t.logger.Warn().Err(err).Str("activity_id", id).Msg("track cache read failed")
	}

	data, err = t.render(ctx, a)
	if err != nil {
		return nil, nil, err
	}
	return data, a, nil
}

// Rebuild renders the activity's track and stores it, replacing any cached copy.
func (t *Tracks) Rebuild(ctx context.Context, userID, id string) error {
	a, err := t.repo.Get(ctx, userID, id)
	if err != nil {
		return err
	}
	_, err = t.render(ctx, a)
	return err
}

// Evict drops the cached track.
func (t *Tracks) Evict(ctx context.Context, id string) error {
	return t.store.Delete(ctx, TrackKey(id))
}

func (t *Tracks) render(ctx context.Context, a *Activity) ([]byte, error) {
	res, err := a.Route()
	if err != nil {
		return nil, err
	}
	data, err := t.exporter.Export(res)
	if err != nil {
		return nil, fmt.Errorf("exporting track for %s: %w", a.ID, err)
	}
	if err := t.store.Set(ctx, TrackKey(a.ID), data, t.ttl); err != nil {
		t.logger.Warn().Err(err).Str("activity_id", a.ID).Msg("track cache write failed")
	}
	return data, nil
}
