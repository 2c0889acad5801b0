// Package googlemaps provides a geocoder backed by the Google Maps Geocoding API.
package googlemaps

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/sony/gobreaker/v2"
	"googlemaps.github.io/maps"

	"github.com/smartrunning/smartrunning/internal/geo"
	"github.com/smartrunning/smartrunning/internal/geocode"
	"github.com/smartrunning/smartrunning/internal/provider/resilience"
)

const (
	// ProviderName identifies this geocoding provider.
	ProviderName = "googlemaps"

	// DefaultTimeout is the default request timeout.
	DefaultTimeout = 5 * time.Second
)

// ClientConfig holds configuration for the Google geocoder.
type ClientConfig struct {
	// APIKey is the Google Maps API key (required).
	APIKey string

	// BaseURL overrides the API host, used in tests (optional).
	BaseURL string

	// HTTPClient is the HTTP client to use (optional).
	HTTPClient *http.Client

	// Timeout is the request timeout (optional).
	Timeout time.Duration

	// Registry receives the breaker and call outcomes (optional).
	Registry *resilience.Registry

	// Logger for client operations.
	Logger zerolog.Logger
}

// Client geocodes through googlemaps.github.io/maps guarded by a circuit breaker.
type Client struct {
	maps     *maps.Client
	breaker  *gobreaker.CircuitBreaker[[]maps.GeocodingResult]
	registry *resilience.Registry
	logger   zerolog.Logger
}

var _ geocode.Geocoder = (*Client)(nil)

// NewClient creates a Google geocoder.
func NewClient(cfg ClientConfig) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("googlemaps: API key is required")
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		timeout := cfg.Timeout
		if timeout == 0 {
			timeout = DefaultTimeout
		}
		httpClient = &http.Client{Timeout: timeout}
	}

	opts := []maps.ClientOption{
		maps.WithAPIKey(cfg.APIKey),
		maps.WithHTTPClient(httpClient),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, maps.WithBaseURL(cfg.BaseURL))
	}

	mc, err := maps.NewClient(opts...)
	if err != nil {
		return nil, fmt.Errorf("creating maps client: %w", err)
	}

	c := &Client{
		maps:     mc,
		breaker:  resilience.NewCircuitBreaker[[]maps.GeocodingResult](resilience.DefaultCircuitBreakerConfig(ProviderName), cfg.Logger),
		registry: cfg.Registry,
		logger:   cfg.Logger,
	}
	if c.registry != nil {
		c.registry.Register(ProviderName, c.breaker)
	}
	return c, nil
}

// Name returns the provider name.
func (c *Client) Name() string {
	return ProviderName
}

// Geocode returns the first Google match for query.
func (c *Client) Geocode(ctx context.Context, query string) (*geocode.Result, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, geocode.ErrNotFound
	}

	results, err := c.breaker.Execute(func() ([]maps.GeocodingResult, error) {
		res, err := c.maps.Geocode(ctx, &maps.GeocodingRequest{Address: query})
		if err != nil && isZeroResults(err) {
			return nil, nil
		}
		return res, err
	})
	if c.registry != nil {
		if err != nil {
			c.registry.RecordFailure(ProviderName, err)
		} else {
			c.registry.RecordSuccess(ProviderName)
		}
	}
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return nil, &geocode.Error{
				Provider: ProviderName,
				Code:     "CIRCUIT_OPEN",
				Message:  "geocoding provider temporarily disabled",
				Err:      geocode.ErrProviderUnavailable,
			}
		}
		c.logger.Debug().Err(err).Str("query", query).Msg("google geocode failed")
		if strings.Contains(err.Error(), "OVER_QUERY_LIMIT") {
			return nil, &geocode.Error{
				Provider: ProviderName,
				Code:     "RATE_LIMIT",
				Message:  "geocoding rate limit exceeded",
				Err:      geocode.ErrRateLimitExceeded,
			}
		}
		return nil, &geocode.Error{
			Provider: ProviderName,
			Code:     "REQUEST_FAILED",
			Message:  "geocoding request failed",
			Err:      fmt.Errorf("%w: %s", geocode.ErrProviderUnavailable, err.Error()),
		}
	}
	if len(results) == 0 {
		return nil, geocode.ErrNotFound
	}

	loc := results[0].Geometry.Location
	return &geocode.Result{
		Coordinate:  geo.Coordinate{Lat: loc.Lat, Lon: loc.Lng},
		DisplayName: results[0].FormattedAddress,
		Provider:    ProviderName,
	}, nil
}

func isZeroResults(err error) bool {
	return strings.Contains(err.Error(), "ZERO_RESULTS")
}
