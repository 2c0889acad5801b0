// Command worker consumes activity events and keeps the GPX track cache warm.
// It also serves /health and /metrics for the platform's probes.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/smartrunning/smartrunning/internal/app"
	"github.com/smartrunning/smartrunning/internal/config"
	"github.com/smartrunning/smartrunning/internal/events"
	"github.com/smartrunning/smartrunning/internal/metrics"
	"github.com/smartrunning/smartrunning/internal/worker"
)

// Set with -ldflags "-X main.Version=... -X main.BuildTime=...".
var (
	Version   = "dev"
	BuildTime = "unknown"
)

const (
	probeTimeout = 15 * time.Second
	drainTimeout = 10 * time.Second
)

func main() {
	build := app.Build{Service: "smartrunning-worker", Version: Version, Time: BuildTime}
	log := build.Logger()
	log.Info().Str("build_time", BuildTime).Msg("starting")

	if err := run(build, log); err != nil {
		log.Error().Err(err).Msg("worker exited")
		os.Exit(1)
	}
}

func run(build app.Build, log zerolog.Logger) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading configuration: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	flush, err := build.StartTelemetry(ctx, cfg, log)
	if err != nil {
		return fmt.Errorf("starting telemetry: %w", err)
	}
	defer flush()

	recorder := metrics.New()
	deps, err := app.Open(ctx, cfg, recorder, log)
	if err != nil {
		return err
	}
	defer deps.Close()

	builder := worker.NewTrackBuilder(worker.BuilderConfig{
		Config: worker.Config{
			Concurrency: cfg.Worker.Concurrency,
			JobTimeout:  cfg.Worker.JobTimeout,
		},
		Tracks:   deps.Tracks,
		Observer: recorder,
		Logger:   log,
	})

	probes := &http.Server{
		Addr: ":" + strconv.Itoa(cfg.Worker.HealthPort),
		Handler: worker.NewHealthHandler(worker.HealthConfig{
			Version: build.Version,
			Builder: builder,
			Metrics: recorder.Handler(),
		}),
		ReadTimeout:  probeTimeout,
		WriteTimeout: probeTimeout,
	}
	go func() {
		log.Info().Str("addr", probes.Addr).Msg("health server listening")
		if err := probes.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error().Err(err).Msg("health server failed")
			stop()
		}
	}()

	err = consume(ctx, cfg, builder, log)

	log.Info().Interface("stats", builder.StatsSnapshot()).Msg("shutting down")
	drainCtx, cancel := context.WithTimeout(context.Background(), drainTimeout)
	defer cancel()
	if shutdownErr := probes.Shutdown(drainCtx); shutdownErr != nil {
		log.Error().Err(shutdownErr).Msg("health server shutdown")
	}
	return err
}

// consume runs the builder until ctx ends. Without a transport it only waits.
func consume(ctx context.Context, cfg *config.Config, builder *worker.TrackBuilder, log zerolog.Logger) error {
	sub, err := events.OpenSubscriber(ctx, cfg.Events.Transport(log))
	if errors.Is(err, events.ErrNoTransport) {
		log.Warn().Msg("no event transport configured, serving health only")
		<-ctx.Done()
		return nil
	}
	if err != nil {
		return fmt.Errorf("opening event subscriber: %w", err)
	}
	defer func() {
		if err := sub.Close(); err != nil {
			log.Error().Err(err).Msg("closing event subscriber")
		}
	}()
	return builder.Run(ctx, sub)
}
