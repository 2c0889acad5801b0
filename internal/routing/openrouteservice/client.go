// Package openrouteservice builds street-following running loops with the
// OpenRouteService round-trip directions API.
package openrouteservice

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/smartrunning/smartrunning/internal/geo"
	"github.com/smartrunning/smartrunning/internal/provider/resilience"
	"github.com/smartrunning/smartrunning/internal/routing"
	"github.com/smartrunning/smartrunning/pkg/polyline"
)

const (
	ProviderName   = "openrouteservice"
	DefaultBaseURL = "https://api.openrouteservice.org"
	DefaultTimeout = 10 * time.Second

	// DefaultLoopPoints is how many waypoints ORS spreads around a loop.
	DefaultLoopPoints = 5

	maxResponseBytes = 4 << 20
)

// Routing profiles.
const (
	ProfileWalking = "foot-walking"
	ProfileHiking  = "foot-hiking"
)

// HTTPDoer executes HTTP requests. *resilience.Client and *http.Client both
// satisfy it.
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// ClientConfig configures a Client. Only APIKey is required.
type ClientConfig struct {
	APIKey  string
	BaseURL string

	// HTTPClient overrides the resilient client built from Timeout and Registry.
	HTTPClient HTTPDoer
	Timeout    time.Duration
	Registry   *resilience.Registry

	// Seed varies the generated loop shape.
	Seed int

	Logger zerolog.Logger
}

// Client is a routing.StreetNetwork backed by ORS round trips.
type Client struct {
	apiKey  string
	baseURL string
	seed    int
	doer    HTTPDoer
	log     zerolog.Logger
}

var _ routing.StreetNetwork = (*Client)(nil)

func NewClient(cfg ClientConfig) *Client {
	c := &Client{
		apiKey:  cfg.APIKey,
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		seed:    cfg.Seed,
		doer:    cfg.HTTPClient,
		log:     cfg.Logger.With().Str("provider", ProviderName).Logger(),
	}
	if c.baseURL == "" {
		c.baseURL = DefaultBaseURL
	}
	if c.doer == nil {
		rc := resilience.DefaultClientConfig(ProviderName)
		if cfg.Timeout > 0 {
			rc.Timeout = cfg.Timeout
		} else {
			rc.Timeout = DefaultTimeout
		}
		rc.Registry = cfg.Registry
		rc.Logger = cfg.Logger
		c.doer = resilience.NewClient(rc)
	}
	return c
}

func (c *Client) Name() string { return ProviderName }

// ProfileFor picks the ORS profile for a surface preference.
func ProfileFor(s routing.Surface) string {
	if s == routing.SurfaceTrail {
		return ProfileHiking
	}
	return ProfileWalking
}

// LoopRoute requests a round trip of req.DistanceKm starting and ending at
// req.Start.
func (c *Client) LoopRoute(ctx context.Context, req routing.LoopRequest) ([]geo.Coordinate, error) {
	if !inRange(req.Start) {
		return nil, fail("INVALID_START", "invalid start coordinates", routing.ErrInvalidCoordinates)
	}

	profile := ProfileFor(req.Filter.Surface)
	body, err := json.Marshal(c.roundTrip(req))
	if err != nil {
		return nil, fmt.Errorf("encoding round trip request: %w", err)
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v2/directions/"+profile, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("building round trip request: %w", err)
	}
	httpReq.Header.Set("Authorization", c.apiKey)
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/json")

	c.log.Debug().
		Str("profile", profile).
		Float64("lat", req.Start.Lat).
		Float64("lon", req.Start.Lon).
		Float64("length_km", req.DistanceKm).
		Msg("requesting round trip")

	resp, err := c.doer.Do(httpReq)
	if err != nil {
		c.log.Warn().Err(err).Msg("round trip request failed")
		return nil, fail("REQUEST_FAILED", "failed to reach routing provider", routing.ErrProviderUnavailable)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, fmt.Errorf("reading round trip response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, statusError(resp.StatusCode, raw)
	}

	var out orsResponse
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("decoding round trip response: %w", err)
	}
	if len(out.Routes) == 0 || out.Routes[0].Geometry == "" {
		return nil, fail("NO_ROUTE", "routing provider returned no geometry", routing.ErrNoRouteFound)
	}
	route := out.Routes[0]

	points, err := polyline.Decode(route.Geometry)
	if err != nil {
		return nil, fmt.Errorf("decoding round trip geometry: %w", err)
	}
	path := make([]geo.Coordinate, len(points))
	for i, p := range points {
		path[i] = geo.Coordinate(p)
	}

	c.log.Debug().
		Int("points", len(path)).
		Float64("distance_m", route.Summary.Distance).
		Msg("round trip received")
	return path, nil
}

func (c *Client) roundTrip(req routing.LoopRequest) orsRequest {
	r := orsRequest{
		Coordinates: [][]float64{{req.Start.Lon, req.Start.Lat}},
		Units:       "m",
	}
	r.Options.RoundTrip = roundTripOpts{
		Length: req.DistanceKm * 1000,
		Points: DefaultLoopPoints,
		Seed:   c.seed,
	}
	if req.Filter.Surface == routing.SurfaceRoad {
		r.Options.AvoidFeatures = []string{"fords", "steps"}
	}
	return r
}

func fail(code, msg string, err error) *routing.Error {
	return &routing.Error{Provider: ProviderName, Code: code, Message: msg, Err: err}
}

// statusError maps a non-200 ORS reply onto a routing error. ORS reports
// unroutable starts as 400 or 404 with codes 2009 and 2010.
func statusError(status int, body []byte) error {
	var e orsErrorResponse
	_ = json.Unmarshal(body, &e)

	switch {
	case status == http.StatusTooManyRequests:
		return fail("RATE_LIMIT", "API rate limit exceeded, please try again later", routing.ErrRateLimitExceeded)
	case status == http.StatusUnauthorized, status == http.StatusForbidden:
		return fail("FORBIDDEN", "API access denied, check the API key", routing.ErrProviderUnavailable)
	case status == http.StatusNotFound, e.Error.Code == orsErrorCodeRouteNotFound, e.Error.Code == orsErrorCodePointNotFound:
		msg := e.Error.Message
		if msg == "" {
			msg = "no loop route found from the start point"
		}
		return fail("NO_ROUTE", msg, routing.ErrNoRouteFound)
	case status == http.StatusBadRequest:
		return fail("BAD_REQUEST", e.Error.Message, routing.ErrInvalidCoordinates)
	case status >= http.StatusInternalServerError:
		return fail(fmt.Sprintf("SERVER_%d", status), "routing provider is temporarily unavailable", routing.ErrProviderUnavailable)
	default:
		return fail(fmt.Sprintf("HTTP_%d", status), fmt.Sprintf("routing provider returned status %d", status), routing.ErrProviderUnavailable)
	}
}

func inRange(c geo.Coordinate) bool {
	return c.Lat >= -90 && c.Lat <= 90 && c.Lon >= -180 && c.Lon <= 180
}
