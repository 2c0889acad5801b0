package worker_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/smartrunning/smartrunning/internal/activity"
	"github.com/smartrunning/smartrunning/internal/cache"
	"github.com/smartrunning/smartrunning/internal/events"
	"github.com/smartrunning/smartrunning/internal/routing"
	"github.com/smartrunning/smartrunning/internal/track"
	"github.com/smartrunning/smartrunning/internal/worker"
)

type stubTracks struct {
	rebuildErr error
	evictErr   error
	block      chan struct{}

	mu       sync.Mutex
	rebuilt  []string
	evicted  []string
	inFlight int32
	maxSeen  int32
}

func (s *stubTracks) Rebuild(ctx context.Context, _, id string) error {
	n := atomic.AddInt32(&s.inFlight, 1)
	defer atomic.AddInt32(&s.inFlight, -1)
	for {
		old := atomic.LoadInt32(&s.maxSeen)
		if n <= old || atomic.CompareAndSwapInt32(&s.maxSeen, old, n) {
			break
		}
	}
	if s.block != nil {
		select {
		case <-s.block:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	s.mu.Lock()
	s.rebuilt = append(s.rebuilt, id)
	s.mu.Unlock()
	return s.rebuildErr
}

func (s *stubTracks) Evict(_ context.Context, id string) error {
	s.mu.Lock()
	s.evicted = append(s.evicted, id)
	s.mu.Unlock()
	return s.evictErr
}

type jobRecord struct {
	eventType string
	result    string
}

type recordingObserver struct {
	mu   sync.Mutex
	jobs []jobRecord
}

func (o *recordingObserver) ObserveJob(eventType, result string, _ float64) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.jobs = append(o.jobs, jobRecord{eventType, result})
}

func newBuilder(tracks worker.Tracks, obs worker.Observer, cfg worker.Config) *worker.TrackBuilder {
	return worker.NewTrackBuilder(worker.BuilderConfig{
		Config:   cfg,
		Tracks:   tracks,
		Observer: obs,
		Logger:   zerolog.Nop(),
	})
}

func TestDefaultConfig(t *testing.T) {
	cfg := worker.DefaultConfig()

	assert.Equal(t, 4, cfg.Concurrency)
	assert.Equal(t, 30*time.Second, cfg.JobTimeout)
}

func TestTrackBuilder_Handle(t *testing.T) {
	tests := []struct {
		name       string
		event      events.Type
		rebuildErr error
		evictErr   error
		wantResult string
		wantErr    bool
	}{
		{"created rebuilds", events.ActivityCreated, nil, nil, worker.ResultOK, false},
		{"updated rebuilds", events.ActivityUpdated, nil, nil, worker.ResultOK, false},
		{"deleted evicts", events.ActivityDeleted, nil, nil, worker.ResultOK, false},
		{"gone activity is skipped", events.ActivityUpdated, activity.ErrActivityNotFound, nil, worker.ResultSkipped, false},
		{"no path is skipped", events.ActivityCreated, activity.ErrNoTrack, nil, worker.ResultSkipped, false},
		{"export disabled is skipped", events.ActivityCreated, track.ErrCapabilityUnavailable, nil, worker.ResultSkipped, false},
		{"rebuild failure", events.ActivityCreated, errors.New("cache down"), nil, worker.ResultError, true},
		{"evict failure", events.ActivityDeleted, nil, errors.New("cache down"), worker.ResultError, true},
		{"unknown type is skipped", events.Type("activity.renamed"), nil, nil, worker.ResultSkipped, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tracks := &stubTracks{rebuildErr: tt.rebuildErr, evictErr: tt.evictErr}
			obs := &recordingObserver{}
			b := newBuilder(tracks, obs, worker.Config{})

			err := b.Handle(context.Background(), events.New(tt.event, "act_1", "usr_1"))
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}

			require.Len(t, obs.jobs, 1)
			assert.Equal(t, string(tt.event), obs.jobs[0].eventType)
			assert.Equal(t, tt.wantResult, obs.jobs[0].result)

			stats := b.GetStats()
			assert.Equal(t, int64(1), stats.Processed)
			if tt.wantErr {
				assert.Equal(t, int64(1), stats.Failed)
				assert.Equal(t, "cache down", stats.LastError)
			}
		})
	}
}

func TestTrackBuilder_BoundedConcurrency(t *testing.T) {
	tracks := &stubTracks{block: make(chan struct{})}
	b := newBuilder(tracks, nil, worker.Config{Concurrency: 2, JobTimeout: 5 * time.Second})

	var wg sync.WaitGroup
	for i := 0; i < 6; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = b.Handle(context.Background(), events.New(events.ActivityCreated, "act_x", "usr_1"))
		}()
	}

	require.Eventually(t, func() bool { return atomic.LoadInt32(&tracks.inFlight) == 2 }, time.Second, 5*time.Millisecond)
	close(tracks.block)
	wg.Wait()

	assert.Equal(t, int32(2), atomic.LoadInt32(&tracks.maxSeen))
	assert.Len(t, tracks.rebuilt, 6)
	assert.Equal(t, int64(6), b.GetStats().Rebuilt)
}

func TestTrackBuilder_JobTimeout(t *testing.T) {
	tracks := &stubTracks{block: make(chan struct{})}
	b := newBuilder(tracks, nil, worker.Config{Concurrency: 1, JobTimeout: 20 * time.Millisecond})

	err := b.Handle(context.Background(), events.New(events.ActivityCreated, "act_slow", "usr_1"))
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Equal(t, int64(1), b.GetStats().Failed)
}

func TestTrackBuilder_RunWarmsCache(t *testing.T) {
	repo := activity.NewInMemoryRepository()
	bus := events.NewMemory(8)
	svc := activity.NewService(activity.ServiceConfig{Repo: repo, Publisher: bus, Logger: zerolog.Nop()})
	store := cache.NewMemory()
	tracks := activity.NewTracks(activity.TracksConfig{
		Repo:     repo,
		Exporter: track.NewExporter(track.ExporterConfig{Enabled: true, Logger: zerolog.Nop()}),
		Store:    store,
		Logger:   zerolog.Nop(),
	})
	b := newBuilder(tracks, nil, worker.Config{})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- b.Run(ctx, bus) }()

	coords, err := routing.CircleLoop(routing.DefaultStart, 2)
	require.NoError(t, err)
	a, err := svc.Create(ctx, "usr_1", &activity.CreateRequest{
		Distance: 2,
		Duration: 720,
		Location: activity.LineString(coords),
	})
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		_, err := store.Get(ctx, activity.TrackKey(a.ID))
		return err == nil
	}, time.Second, 5*time.Millisecond)

	require.NoError(t, svc.Delete(ctx, "usr_1", a.ID))
	require.Eventually(t, func() bool {
		_, err := store.Get(ctx, activity.TrackKey(a.ID))
		return errors.Is(err, cache.ErrMiss)
	}, time.Second, 5*time.Millisecond)

	cancel()
	assert.NoError(t, <-done)

	snap := b.StatsSnapshot()
	assert.Equal(t, int64(1), snap["rebuilt"])
	assert.Equal(t, int64(1), snap["evicted"])
}
