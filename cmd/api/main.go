// Command api serves the SmartRunning HTTP API.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/smartrunning/smartrunning/internal/api"
	"github.com/smartrunning/smartrunning/internal/api/handler"
	"github.com/smartrunning/smartrunning/internal/api/middleware"
	"github.com/smartrunning/smartrunning/internal/app"
	"github.com/smartrunning/smartrunning/internal/config"
	"github.com/smartrunning/smartrunning/internal/events"
	"github.com/smartrunning/smartrunning/internal/metrics"
)

// Set with -ldflags "-X main.Version=... -X main.BuildTime=...".
var (
	Version   = "dev"
	BuildTime = "unknown"
)

const drainTimeout = 30 * time.Second

func main() {
	build := app.Build{Service: "smartrunning-api", Version: Version, Time: BuildTime}
	log := build.Logger()
	log.Info().Str("build_time", BuildTime).Msg("starting")

	if err := run(build, log); err != nil {
		log.Error().Err(err).Msg("api exited")
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
	httpMetrics, err := middleware.NewMetrics(recorder)
	if err != nil {
		return fmt.Errorf("creating HTTP instruments: %w", err)
	}

	deps, err := app.Open(ctx, cfg, recorder, log)
	if err != nil {
		return err
	}
	defer deps.Close()

	synth, err := deps.Synthesizer()
	if err != nil {
		return fmt.Errorf("building route synthesizer: %w", err)
	}

	publisher, err := events.OpenPublisher(ctx, cfg.Events.Transport(log))
	if err != nil {
		return fmt.Errorf("opening event publisher: %w", err)
	}
	defer func() {
		if err := publisher.Close(); err != nil {
			log.Error().Err(err).Msg("closing event publisher")
		}
	}()

	server := &http.Server{
		Addr: cfg.Server.Addr(),
		Handler: api.NewRouter(api.RouterConfig{
			Logger:         log,
			ServiceName:    build.Service,
			RequireTLS:     cfg.Server.RequireTLS,
			Metrics:        httpMetrics,
			MetricsHandler: recorder.Handler(),
			AuthService:    deps.AuthService(),
			Activities:     deps.Activities(synth, publisher),
			Tracks:         deps.Tracks,
			Exporter:       deps.Exporter,
			Ops: handler.OpsConfig{
				Version:      build.Version,
				BuildTime:    build.Time,
				Capabilities: deps.Capabilities,
				Subsystems:   deps.Subsystems(),
				Registry:     deps.Registry,
			},
		}),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	serveErr := make(chan error, 1)
	go func() {
		log.Info().Str("addr", server.Addr).Str("events", cfg.Events.Provider).Msg("listening")
		serveErr <- server.ListenAndServe()
	}()

	select {
	case err := <-serveErr:
		if !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case <-ctx.Done():
	}

	log.Info().Msg("draining connections")
	drainCtx, cancel := context.WithTimeout(context.Background(), drainTimeout)
	defer cancel()
	if err := server.Shutdown(drainCtx); err != nil {
		return fmt.Errorf("shutting down: %w", err)
	}
	log.Info().Msg("stopped")
	return nil
}
