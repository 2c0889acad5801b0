// Package config loads SmartRunning configuration from defaults, an optional
// config.yaml and SMARTRUN_* environment variables.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/viper"

	"github.com/smartrunning/smartrunning/internal/database"
	"github.com/smartrunning/smartrunning/internal/events"
	"github.com/smartrunning/smartrunning/internal/routing"
)

// EnvPrefix is prepended to every environment variable.
const EnvPrefix = "SMARTRUN"

// Geocoder providers.
const (
	GeocoderNominatim = "nominatim"
	GeocoderGoogle    = "google"
	GeocoderNone      = "none"
)

// Event providers.
const (
	EventsPubSub = events.ProviderPubSub
	EventsNATS   = events.ProviderNATS
	EventsNone   = events.ProviderNone
)

// Config holds all application configuration.
type Config struct {
	Environment  string             `mapstructure:"environment"`
	Server       ServerConfig       `mapstructure:"server"`
	Database     DatabaseConfig     `mapstructure:"database"`
	Auth         AuthConfig         `mapstructure:"auth"`
	Geocoder     GeocoderConfig     `mapstructure:"geocoder"`
	Routing      RoutingConfig      `mapstructure:"routing"`
	Capabilities CapabilitiesConfig `mapstructure:"capabilities"`
	Cache        CacheConfig        `mapstructure:"cache"`
	Events       EventsConfig       `mapstructure:"events"`
	Telemetry    TelemetryConfig    `mapstructure:"telemetry"`
	Worker       WorkerConfig       `mapstructure:"worker"`
}

type ServerConfig struct {
	Port         int           `mapstructure:"port"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	IdleTimeout  time.Duration `mapstructure:"idle_timeout"`
	RequireTLS   bool          `mapstructure:"require_tls"`
}

// Addr returns the listen address.
func (s ServerConfig) Addr() string {
	return fmt.Sprintf(":%d", s.Port)
}

type DatabaseConfig struct {
	Enabled         bool          `mapstructure:"enabled"`
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	User            string        `mapstructure:"user"`
	Password        string        `mapstructure:"password"`
	Name            string        `mapstructure:"name"`
	SSLMode         string        `mapstructure:"sslmode"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	Migrate         bool          `mapstructure:"migrate"`
}

// Pool converts the section into a database.Config.
func (d DatabaseConfig) Pool() database.Config {
	return database.Config{
		Host:            d.Host,
		Port:            d.Port,
		User:            d.User,
		Password:        d.Password,
		Database:        d.Name,
		SSLMode:         d.SSLMode,
		MaxOpenConns:    d.MaxOpenConns,
		MaxIdleConns:    d.MaxIdleConns,
		ConnMaxLifetime: d.ConnMaxLifetime,
	}
}

type AuthConfig struct {
	SigningKey  string        `mapstructure:"signing_key"`
	Issuer      string        `mapstructure:"issuer"`
	Audience    string        `mapstructure:"audience"`
	TokenExpiry time.Duration `mapstructure:"token_expiry"`
}

type GeocoderConfig struct {
	Provider     string        `mapstructure:"provider"`
	BaseURL      string        `mapstructure:"base_url"`
	UserAgent    string        `mapstructure:"user_agent"`
	Timeout      time.Duration `mapstructure:"timeout"`
	GoogleAPIKey string        `mapstructure:"google_api_key"`
	CacheTTL     time.Duration `mapstructure:"cache_ttl"`
}

type RoutingConfig struct {
	ORSAPIKey  string        `mapstructure:"ors_api_key"`
	ORSBaseURL string        `mapstructure:"ors_base_url"`
	Timeout    time.Duration `mapstructure:"timeout"`
	Seed       int64         `mapstructure:"seed"`
}

type CapabilitiesConfig struct {
	Geocoding     bool `mapstructure:"geocoding"`
	StreetNetwork bool `mapstructure:"street_network"`
	TrackEncoding bool `mapstructure:"track_encoding"`
}

type CacheConfig struct {
	// Addr is the Valkey address. Empty selects the in-memory store.
	Addr     string        `mapstructure:"addr"`
	TrackTTL time.Duration `mapstructure:"track_ttl"`
}

type EventsConfig struct {
	Provider     string `mapstructure:"provider"`
	ProjectID    string `mapstructure:"project_id"`
	Topic        string `mapstructure:"topic"`
	Subscription string `mapstructure:"subscription"`
	NATSURL      string `mapstructure:"nats_url"`
}

// Transport converts the section for events.OpenPublisher and events.OpenSubscriber.
func (c EventsConfig) Transport(logger zerolog.Logger) events.TransportConfig {
	return events.TransportConfig{
		Provider:     c.Provider,
		ProjectID:    c.ProjectID,
		Topic:        c.Topic,
		Subscription: c.Subscription,
		NATSURL:      c.NATSURL,
		Logger:       logger,
	}
}

type TelemetryConfig struct {
	Enabled      bool    `mapstructure:"enabled"`
	OTLPEndpoint string  `mapstructure:"otlp_endpoint"`
	SampleRatio  float64 `mapstructure:"sample_ratio"`
}

type WorkerConfig struct {
	Concurrency int           `mapstructure:"concurrency"`
	JobTimeout  time.Duration `mapstructure:"job_timeout"`
	HealthPort  int           `mapstructure:"health_port"`
}

// ResolvedCapabilities resolves the declared capabilities against what is actually
// configured. The street network needs an ORS key and geocoding needs a
// provider.
func (c *Config) ResolvedCapabilities() routing.Capabilities {
	return routing.Capabilities{
		Geocoding:     c.Capabilities.Geocoding && c.Geocoder.Provider != GeocoderNone,
		StreetNetwork: c.Capabilities.StreetNetwork && c.Routing.ORSAPIKey != "",
		TrackEncoding: c.Capabilities.TrackEncoding,
	}
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("environment", "development")

	v.SetDefault("server.port", 3000)
	v.SetDefault("server.read_timeout", 15*time.Second)
	v.SetDefault("server.write_timeout", 30*time.Second)
	v.SetDefault("server.idle_timeout", 60*time.Second)
	v.SetDefault("server.require_tls", false)

	v.SetDefault("database.enabled", false)
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "smartrunning")
	v.SetDefault("database.password", "localdev")
	v.SetDefault("database.name", "smartrunning")
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("database.max_open_conns", 10)
	v.SetDefault("database.max_idle_conns", 2)
	v.SetDefault("database.conn_max_lifetime", 5*time.Minute)
	v.SetDefault("database.migrate", true)

	v.SetDefault("auth.signing_key", "")
	v.SetDefault("auth.issuer", "smartrunning")
	v.SetDefault("auth.audience", "smartrunning-api")
	v.SetDefault("auth.token_expiry", 7*24*time.Hour)

	v.SetDefault("geocoder.provider", GeocoderNominatim)
	v.SetDefault("geocoder.base_url", "https://nominatim.openstreetmap.org")
	v.SetDefault("geocoder.user_agent", "smartrunning_app")
	v.SetDefault("geocoder.timeout", 10*time.Second)
	v.SetDefault("geocoder.google_api_key", "")
	v.SetDefault("geocoder.cache_ttl", 24*time.Hour)

	v.SetDefault("routing.ors_api_key", "")
	v.SetDefault("routing.ors_base_url", "https://api.openrouteservice.org")
	v.SetDefault("routing.timeout", 15*time.Second)
	v.SetDefault("routing.seed", 0)

	v.SetDefault("capabilities.geocoding", true)
	v.SetDefault("capabilities.street_network", true)
	v.SetDefault("capabilities.track_encoding", true)

	v.SetDefault("cache.addr", "")
	v.SetDefault("cache.track_ttl", 7*24*time.Hour)

	v.SetDefault("events.provider", EventsNone)
	v.SetDefault("events.project_id", "")
	v.SetDefault("events.topic", "activity-events")
	v.SetDefault("events.subscription", "activity-events-track-builder")
	v.SetDefault("events.nats_url", "nats://localhost:4222")

	v.SetDefault("telemetry.enabled", false)
	v.SetDefault("telemetry.otlp_endpoint", "localhost:4317")
	v.SetDefault("telemetry.sample_ratio", 1.0)

	v.SetDefault("worker.concurrency", 4)
	v.SetDefault("worker.job_timeout", 30*time.Second)
	v.SetDefault("worker.health_port", 8081)
}

// Load reads configuration. Paths are searched for config.yaml in order;
// when none are given "." and "./configs" are used.
func Load(paths ...string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	if len(paths) == 0 {
		paths = []string{".", "./configs"}
	}
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	for _, p := range paths {
		v.AddConfigPath(p)
	}
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	// SMARTRUN_DATABASE_HOST -> database.host
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks that required configuration fields are present and sane.
func (c *Config) Validate() error {
	var errs []string

	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Sprintf("server.port must be 1-65535, got %d", c.Server.Port))
	}
	if c.Server.ReadTimeout <= 0 {
		errs = append(errs, "server.read_timeout must be positive")
	}
	if c.Server.WriteTimeout <= 0 {
		errs = append(errs, "server.write_timeout must be positive")
	}

	if c.Database.Enabled {
		if c.Database.Host == "" {
			errs = append(errs, "database.host is required")
		}
		if c.Database.Port <= 0 || c.Database.Port > 65535 {
			errs = append(errs, fmt.Sprintf("database.port must be 1-65535, got %d", c.Database.Port))
		}
		if c.Database.User == "" {
			errs = append(errs, "database.user is required")
		}
		if c.Database.Name == "" {
			errs = append(errs, "database.name is required")
		}
		if c.Database.MaxOpenConns <= 0 || c.Database.MaxOpenConns > 1000 {
			errs = append(errs, "database.max_open_conns must be 1-1000")
		}
		if c.Database.MaxIdleConns < 0 || c.Database.MaxIdleConns > c.Database.MaxOpenConns {
			errs = append(errs, "database.max_idle_conns must be between 0 and max_open_conns")
		}
	}

	if c.Environment == "production" && len(c.Auth.SigningKey) < 32 {
		errs = append(errs, "auth.signing_key must be at least 32 bytes in production")
	}
	if c.Auth.TokenExpiry <= 0 {
		errs = append(errs, "auth.token_expiry must be positive")
	}

	switch c.Geocoder.Provider {
	case GeocoderNominatim, GeocoderNone:
	case GeocoderGoogle:
		if c.Geocoder.GoogleAPIKey == "" {
			errs = append(errs, "geocoder.google_api_key is required for the google provider")
		}
	default:
		errs = append(errs, fmt.Sprintf("geocoder.provider must be nominatim, google or none, got %q", c.Geocoder.Provider))
	}

	switch c.Events.Provider {
	case EventsNone:
	case EventsPubSub:
		if c.Events.ProjectID == "" {
			errs = append(errs, "events.project_id is required for pubsub")
		}
	case EventsNATS:
		if c.Events.NATSURL == "" {
			errs = append(errs, "events.nats_url is required for nats")
		}
	default:
		errs = append(errs, fmt.Sprintf("events.provider must be pubsub, nats or none, got %q", c.Events.Provider))
	}

	if c.Telemetry.SampleRatio < 0 || c.Telemetry.SampleRatio > 1 {
		errs = append(errs, "telemetry.sample_ratio must be between 0 and 1")
	}
	if c.Worker.Concurrency <= 0 {
		errs = append(errs, "worker.concurrency must be positive")
	}
	if c.Worker.JobTimeout <= 0 {
		errs = append(errs, "worker.job_timeout must be positive")
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}
