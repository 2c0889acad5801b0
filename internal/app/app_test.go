package app

import (
	"context"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/smartrunning/smartrunning/internal/activity"
	"github.com/smartrunning/smartrunning/internal/auth"
	"github.com/smartrunning/smartrunning/internal/cache"
	"github.com/smartrunning/smartrunning/internal/config"
	"github.com/smartrunning/smartrunning/internal/events"
	"github.com/smartrunning/smartrunning/internal/routing"
)

func offlineConfig() *config.Config {
	return &config.Config{
		Auth: config.AuthConfig{
			SigningKey: "app-test-signing-key",
			Issuer:     "smartrunning",
			Audience:   "smartrunning-api",
		},
		Geocoder:     config.GeocoderConfig{Provider: config.GeocoderNone},
		Capabilities: config.CapabilitiesConfig{Geocoding: true, StreetNetwork: true, TrackEncoding: true},
	}
}

func TestOpen_InMemory(t *testing.T) {
	d, err := Open(context.Background(), offlineConfig(), nil, zerolog.Nop())
	require.NoError(t, err)
	defer d.Close()

	assert.Nil(t, d.Pool)
	assert.IsType(t, &cache.Memory{}, d.Store)
	assert.IsType(t, &activity.InMemoryRepository{}, d.ActivityRepo)
	assert.NotNil(t, d.Recorder)
	assert.True(t, d.Exporter.Enabled())

	// No geocoder provider and no ORS key.
	assert.Equal(t, routing.Capabilities{TrackEncoding: true}, d.Capabilities)

	subs := d.Subsystems()
	require.Len(t, subs, 1)
	assert.Equal(t, "cache", subs[0].Name)
	assert.NoError(t, subs[0].Pinger.Ping(context.Background()))
}

func TestDeps_GenerateAndExport(t *testing.T) {
	ctx := context.Background()
	d, err := Open(ctx, offlineConfig(), nil, zerolog.Nop())
	require.NoError(t, err)
	defer d.Close()

	tokens, err := d.AuthService().Register(ctx, &auth.RegisterRequest{
		Name:     "Runner",
		Email:    "runner@example.com",
		Password: "correct-horse",
	})
	require.NoError(t, err)
	require.NotNil(t, tokens.User)

	synth, err := d.Synthesizer()
	require.NoError(t, err)

	pub := events.NewMemory(4)
	svc := d.Activities(synth, pub)

	// Without a geocoder the route degrades to the default start.
	res, err := svc.Generate(ctx, tokens.User.ID, &activity.GenerateRequest{StartLocation: "Odense", Distance: 3})
	require.NoError(t, err)
	assert.Contains(t, res.Error, "Geocoding service not available")
	assert.Equal(t, routing.DefaultStart, res.StartPoint)

	data, err := d.Exporter.Export(res)
	require.NoError(t, err)
	assert.Contains(t, string(data), "<gpx")
}

func TestSynthesizer_NominatimWrappedInCache(t *testing.T) {
	cfg := offlineConfig()
	cfg.Geocoder.Provider = config.GeocoderNominatim
	cfg.Geocoder.BaseURL = "http://127.0.0.1:1"

	d, err := Open(context.Background(), cfg, nil, zerolog.Nop())
	require.NoError(t, err)
	defer d.Close()

	assert.True(t, d.Capabilities.Geocoding)
	_, err = d.Synthesizer()
	require.NoError(t, err)
	assert.Len(t, d.Registry.GetAllHealth(), 1)
}

func TestBuild_StartTelemetryDisabled(t *testing.T) {
	build := Build{Service: "smartrunning-test", Version: "v0.0.0"}

	flush, err := build.StartTelemetry(context.Background(), offlineConfig(), zerolog.Nop())
	require.NoError(t, err)
	require.NotNil(t, flush)
	flush()
}
