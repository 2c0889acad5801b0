package worker

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/attribute"

	"github.com/smartrunning/smartrunning/internal/activity"
	"github.com/smartrunning/smartrunning/internal/events"
	"github.com/smartrunning/smartrunning/internal/telemetry"
	"github.com/smartrunning/smartrunning/internal/track"
)

// Job results reported to the Observer.
const (
	ResultOK      = "ok"
	ResultSkipped = "skipped"
	ResultError   = "error"
)

// Tracks is the track cache the builder maintains. *activity.Tracks satisfies it.
type Tracks interface {
	Rebuild(ctx context.Context, userID, id string) error
	Evict(ctx context.Context, id string) error
}

// Observer is notified after every job.
type Observer interface {
	ObserveJob(eventType, result string, seconds float64)
}

// BuilderConfig holds configuration for creating a TrackBuilder.
type BuilderConfig struct {
	Config   Config
	Tracks   Tracks
	Observer Observer
	Logger   zerolog.Logger
}

// TrackBuilder renders and evicts cached GPX tracks in response to activity events.
type TrackBuilder struct {
	config   Config
	tracks   Tracks
	observer Observer
	logger   zerolog.Logger
	sem      chan struct{}
	stats    *Stats
}

// Stats tracks job statistics.
type Stats struct {
	mu sync.RWMutex

	Processed int64
	Rebuilt   int64
	Evicted   int64
	Skipped   int64
	Failed    int64

	LastJobAt       time.Time
	LastJobDuration time.Duration
	LastError       string
}

// NewTrackBuilder creates a new track builder.
func NewTrackBuilder(cfg BuilderConfig) *TrackBuilder {
	config := cfg.Config.withDefaults()
	return &TrackBuilder{
		config:   config,
		tracks:   cfg.Tracks,
		observer: cfg.Observer,
		logger:   cfg.Logger,
		sem:      make(chan struct{}, config.Concurrency),
		stats:    &Stats{},
	}
}

// Run consumes events from sub until ctx is done.
func (b *TrackBuilder) Run(ctx context.Context, sub events.Subscriber) error {
	b.logger.Info().
		Int("concurrency", b.config.Concurrency).
		Dur("job_timeout", b.config.JobTimeout).
		Msg("starting track builder")

	if err := sub.Receive(ctx, b.Handle); err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("receiving events: %w", err)
	}
	return nil
}

// Handle processes one event. At most Config.Concurrency calls run at once;
// the rest wait for a slot or for ctx. A returned error requests redelivery.
func (b *TrackBuilder) Handle(ctx context.Context, e events.Event) error {
	select {
	case b.sem <- struct{}{}:
	case <-ctx.Done():
		return ctx.Err()
	}
	defer func() { <-b.sem }()

	start := time.Now()
	jobCtx, cancel := context.WithTimeout(ctx, b.config.JobTimeout)
	defer cancel()

	jobCtx, span := telemetry.StartSpan(jobCtx, "worker.track",
		attribute.String("event.type", string(e.Type)),
		attribute.String("activity.id", e.ActivityID),
	)
	result, err := b.process(jobCtx, e)
	telemetry.EndSpan(span, err)

	duration := time.Since(start)
	b.record(e.Type, result, duration, err)

	logger := b.logger.With().
		Str("event_id", e.ID).
		Str("event_type", string(e.Type)).
		Str("activity_id", e.ActivityID).
		Str("result", result).
		Dur("duration", duration).
		Logger()
	if err != nil {
		logger.Error().Err(err).Msg("track job failed")
		return err
	}
	logger.Debug().Msg("track job completed")
	return nil
}

func (b *TrackBuilder) process(ctx context.Context, e events.Event) (string, error) {
	switch e.Type {
	case events.ActivityCreated, events.ActivityUpdated:
		err := b.tracks.Rebuild(ctx, e.UserID, e.ActivityID)
		switch {
		case err == nil:
			return ResultOK, nil
		case errors.Is(err, activity.ErrActivityNotFound),
			errors.Is(err, activity.ErrNoTrack),
			errors.Is(err, track.ErrCapabilityUnavailable):
			// Nothing to render; redelivery would not change that.
			return ResultSkipped, nil
		default:
			return ResultError, err
		}
	case events.ActivityDeleted:
		if err := b.tracks.Evict(ctx, e.ActivityID); err != nil {
			return ResultError, err
		}
		return ResultOK, nil
	default:
		return ResultSkipped, nil
	}
}

func (b *TrackBuilder) record(t events.Type, result string, duration time.Duration, err error) {
	if b.observer != nil {
		b.observer.ObserveJob(string(t), result, duration.Seconds())
	}

	b.stats.mu.Lock()
	defer b.stats.mu.Unlock()

	b.stats.Processed++
	switch {
	case result == ResultError:
		b.stats.Failed++
		b.stats.LastError = err.Error()
	case result == ResultSkipped:
		b.stats.Skipped++
	case t == events.ActivityDeleted:
		b.stats.Evicted++
	default:
		b.stats.Rebuilt++
	}
	b.stats.LastJobAt = time.Now()
	b.stats.LastJobDuration = duration
}

// GetStats returns a copy of the current statistics.
func (b *TrackBuilder) GetStats() Stats {
	b.stats.mu.RLock()
	defer b.stats.mu.RUnlock()

	return Stats{
		Processed:       b.stats.Processed,
		Rebuilt:         b.stats.Rebuilt,
		Evicted:         b.stats.Evicted,
		Skipped:         b.stats.Skipped,
		Failed:          b.stats.Failed,
		LastJobAt:       b.stats.LastJobAt,
		LastJobDuration: b.stats.LastJobDuration,
		LastError:       b.stats.LastError,
	}
}

// StatsSnapshot returns the current statistics as a map.
func (b *TrackBuilder) StatsSnapshot() map[string]any {
	s := b.GetStats()
	snap := map[string]any{
		"processed":         s.Processed,
		"rebuilt":           s.Rebuilt,
		"evicted":           s.Evicted,
		"skipped":           s.Skipped,
		"failed":            s.Failed,
		"last_job_duration": s.LastJobDuration.String(),
	}
	if !s.LastJobAt.IsZero() {
		snap["last_job_at"] = s.LastJobAt.UTC().Format(time.RFC3339)
	}
	if s.LastError != "" {
		snap["last_error"] = s.LastError
	}
	return snap
}
