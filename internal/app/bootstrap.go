package app

import (
	"context"
	"os"
	"time"

	"github.com/rs/zerolog"

	"github.com/smartrunning/smartrunning/internal/config"
	"github.com/smartrunning/smartrunning/internal/telemetry"
)

const telemetryFlushTimeout = 5 * time.Second

// Build identifies a binary in logs, traces and /api/ops/status.
type Build struct {
	Service string
	Version string
	Time    string
}

// Logger is the JSON process logger on stdout, tagged with the build.
func (b Build) Logger() zerolog.Logger {
	return zerolog.New(os.Stdout).With().
		Timestamp().
		Str("service", b.Service).
		Str("version", b.Version).
		Logger()
}

// StartTelemetry installs the OTLP exporters selected by cfg.Telemetry. The
// returned func flushes them and is safe to defer when telemetry is off.
func (b Build) StartTelemetry(ctx context.Context, cfg *config.Config, log zerolog.Logger) (func(), error) {
	exp, err := telemetry.Init(ctx, telemetry.Config{
		Service:     b.Service,
		Version:     b.Version,
		Environment: cfg.Environment,
		Endpoint:    cfg.Telemetry.OTLPEndpoint,
		Enabled:     cfg.Telemetry.Enabled,
		SampleRatio: cfg.Telemetry.SampleRatio,
	})
	if err != nil {
		return nil, err
	}
	if exp.Enabled() {
		log.Info().Str("otlp_endpoint", cfg.Telemetry.OTLPEndpoint).Msg("telemetry exporting")
	}
	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), telemetryFlushTimeout)
		defer cancel()
		if err := exp.Shutdown(ctx); err != nil {
			log.Error().Err(err).Msg("telemetry flush failed")
		}
	}, nil
}
