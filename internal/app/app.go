// Package app assembles the services shared by the API server and the worker
// from a loaded configuration.
package app

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"

	"github.com/smartrunning/smartrunning/internal/activity"
	"github.com/smartrunning/smartrunning/internal/api/handler"
	"github.com/smartrunning/smartrunning/internal/auth"
	"github.com/smartrunning/smartrunning/internal/cache"
	"github.com/smartrunning/smartrunning/internal/config"
	"github.com/smartrunning/smartrunning/internal/database"
	"github.com/smartrunning/smartrunning/internal/events"
	"github.com/smartrunning/smartrunning/internal/geocode"
	"github.com/smartrunning/smartrunning/internal/geocode/googlemaps"
	"github.com/smartrunning/smartrunning/internal/geocode/nominatim"
	"github.com/smartrunning/smartrunning/internal/metrics"
	"github.com/smartrunning/smartrunning/internal/provider/resilience"
	"github.com/smartrunning/smartrunning/internal/routing"
	"github.com/smartrunning/smartrunning/internal/routing/openrouteservice"
	"github.com/smartrunning/smartrunning/internal/track"
)

// cachePrefix namespaces every Valkey key.
const cachePrefix = "smartrun:"

// Deps holds the shared infrastructure. Close releases it.
type Deps struct {
	Config       *config.Config
	Capabilities routing.Capabilities
	Logger       zerolog.Logger

	Pool     *pgxpool.Pool
	Store    cache.Store
	Registry *resilience.Registry
	Recorder *metrics.Recorder
	Exporter *track.Exporter

	ActivityRepo activity.Repository
	Tracks       *activity.Tracks

	closers []func()
}

// Open connects the database (when enabled) and the cache, and builds the track
// exporter and cache. Passing a nil recorder creates a fresh one.
func Open(ctx context.Context, cfg *config.Config, recorder *metrics.Recorder, logger zerolog.Logger) (*Deps, error) {
	if recorder == nil {
		recorder = metrics.New()
	}
	d := &Deps{
		Config:       cfg,
		Capabilities: cfg.ResolvedCapabilities(),
		Logger:       logger,
		Registry:     resilience.NewRegistry(),
		Recorder:     recorder,
	}

	if cfg.Database.Enabled {
		pool, err := database.Connect(ctx, cfg.Database.Pool())
		if err != nil {
			return nil, fmt.Errorf("connecting database: %w", err)
		}
		d.Pool = pool
		d.closers = append(d.closers, pool.Close)
		logger.Info().
			Str("host", cfg.Database.Host).
			Int("port", cfg.Database.Port).
			Str("database", cfg.Database.Name).
			Msg("database connected")

		if cfg.Database.Migrate {
			if err := database.Migrate(ctx, pool); err != nil {
				d.Close()
				return nil, fmt.Errorf("migrating database: %w", err)
			}
			logger.Info().Msg("database schema applied")
		}
		d.ActivityRepo = activity.NewPostgresRepository(pool)
	} else {
		logger.Warn().Msg("database disabled, using in-memory repositories")
		d.ActivityRepo = activity.NewInMemoryRepository()
	}

	if cfg.Cache.Addr != "" {
		store, err := cache.NewValkey(cfg.Cache.Addr, cachePrefix)
		if err != nil {
			d.Close()
			return nil, err
		}
		d.Store = store
		d.closers = append(d.closers, store.Close)
		logger.Info().Str("addr", cfg.Cache.Addr).Msg("valkey cache connected")
	} else {
		d.Store = cache.NewMemory()
	}

	d.Exporter = track.NewExporter(track.ExporterConfig{
		Enabled:  d.Capabilities.TrackEncoding,
		Observer: recorder,
		Logger:   logger,
	})
	d.Tracks = activity.NewTracks(activity.TracksConfig{
		Repo:     d.ActivityRepo,
		Exporter: d.Exporter,
		Store:    d.Store,
		TTL:      cfg.Cache.TrackTTL,
		Logger:   logger,
	})

	return d, nil
}

// Close releases connections in reverse order of opening.
func (d *Deps) Close() {
	for i := len(d.closers) - 1; i >= 0; i-- {
		d.closers[i]()
	}
	d.closers = nil
}

// AuthService builds the account service on the configured repositories.
func (d *Deps) AuthService() *auth.Service {
	jwtService := auth.NewJWTService(auth.JWTConfig{
		SigningKey:        d.Config.Auth.SigningKey,
		Issuer:            d.Config.Auth.Issuer,
		Audience:          d.Config.Auth.Audience,
		AccessTokenExpiry: d.Config.Auth.TokenExpiry,
	})

	var (
		users    auth.UserRepository
		refreshs auth.RefreshTokenRepository
	)
	if d.Pool != nil {
		users = auth.NewPostgresUserRepository(d.Pool)
		refreshs = auth.NewPostgresRefreshTokenRepository(d.Pool)
	} else {
		users = auth.NewInMemoryUserRepository()
		refreshs = auth.NewInMemoryRefreshTokenRepository()
	}

	return auth.NewService(auth.ServiceConfig{
		JWTService:  jwtService,
		UserRepo:    users,
		RefreshRepo: refreshs,
		Logger:      d.Logger,
	})
}

// Synthesizer builds the route synthesizer with whichever providers the
// resolved capabilities allow.
func (d *Deps) Synthesizer() (*routing.Service, error) {
	cfg := d.Config

	var geocoder geocode.Geocoder
	if d.Capabilities.Geocoding {
		switch cfg.Geocoder.Provider {
		case config.GeocoderNominatim:
			geocoder = nominatim.NewClient(nominatim.ClientConfig{
				BaseURL:   cfg.Geocoder.BaseURL,
				UserAgent: cfg.Geocoder.UserAgent,
				Timeout:   cfg.Geocoder.Timeout,
				Registry:  d.Registry,
				Logger:    d.Logger,
			})
		case config.GeocoderGoogle:
			g, err := googlemaps.NewClient(googlemaps.ClientConfig{
				APIKey:   cfg.Geocoder.GoogleAPIKey,
				Timeout:  cfg.Geocoder.Timeout,
				Registry: d.Registry,
				Logger:   d.Logger,
			})
			if err != nil {
				return nil, err
			}
			geocoder = g
		}
		if geocoder != nil {
			geocoder = geocode.NewCached(geocode.CachedConfig{
				Geocoder: geocoder,
				Store:    d.Store,
				TTL:      cfg.Geocoder.CacheTTL,
				Observer: d.Recorder,
				Logger:   d.Logger,
			})
		}
	}

	var network routing.StreetNetwork
	if d.Capabilities.StreetNetwork {
		network = openrouteservice.NewClient(openrouteservice.ClientConfig{
			APIKey:   cfg.Routing.ORSAPIKey,
			BaseURL:  cfg.Routing.ORSBaseURL,
			Timeout:  cfg.Routing.Timeout,
			Seed:     int(cfg.Routing.Seed),
			Registry: d.Registry,
			Logger:   d.Logger,
		})
	}

	d.Logger.Info().
		Bool("geocoding", d.Capabilities.Geocoding && geocoder != nil).
		Bool("street_network", network != nil).
		Bool("track_encoding", d.Capabilities.TrackEncoding).
		Msg("route capabilities resolved")

	return routing.NewService(routing.ServiceConfig{
		Capabilities: d.Capabilities,
		Geocoder:     geocoder,
		Network:      network,
		Observer:     d.Recorder,
		Logger:       d.Logger,
	}), nil
}

// Activities builds the activity service publishing to pub.
func (d *Deps) Activities(synth activity.Synthesizer, pub events.Publisher) *activity.Service {
	return activity.NewService(activity.ServiceConfig{
		Repo:        d.ActivityRepo,
		Synthesizer: synth,
		Publisher:   pub,
		Logger:      d.Logger,
	})
}

// Subsystems lists the dependencies checked by readiness probes.
func (d *Deps) Subsystems() []handler.Subsystem {
	subs := []handler.Subsystem{{Name: "cache", Pinger: d.Store}}
	if d.Pool != nil {
		subs = append(subs, handler.Subsystem{Name: "postgres", Pinger: d.Pool})
	}
	return subs
}
