// Package nominatim geocodes free-text start locations with the OpenStreetMap
// Nominatim search API.
package nominatim

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/smartrunning/smartrunning/internal/geo"
	"github.com/smartrunning/smartrunning/internal/geocode"
	"github.com/smartrunning/smartrunning/internal/provider/resilience"
)

const (
	ProviderName   = "nominatim"
	DefaultBaseURL = "https://nominatim.openstreetmap.org"
	DefaultTimeout = 5 * time.Second

	// DefaultUserAgent identifies the app; Nominatim rejects anonymous clients.
	DefaultUserAgent = "smartrunning_app"

	maxResponseBytes = 1 << 20
)

// HTTPDoer executes HTTP requests.
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// ClientConfig configures NewClient. Everything is optional; HTTPClient
// defaults to a resilience.Client registered with Registry.
type ClientConfig struct {
	BaseURL    string
	UserAgent  string
	HTTPClient HTTPDoer
	Timeout    time.Duration
	Registry   *resilience.Registry
	Logger     zerolog.Logger
}

// Client is a geocode.Geocoder over Nominatim /search.
type Client struct {
	search string
	agent  string
	doer   HTTPDoer
	log    zerolog.Logger
}

var _ geocode.Geocoder = (*Client)(nil)

func NewClient(cfg ClientConfig) *Client {
	base := strings.TrimRight(cfg.BaseURL, "/")
	if base == "" {
		base = DefaultBaseURL
	}
	agent := cfg.UserAgent
	if agent == "" {
		agent = DefaultUserAgent
	}

	doer := cfg.HTTPClient
	if doer == nil {
		rc := resilience.DefaultClientConfig(ProviderName)
		rc.Timeout = cfg.Timeout
		if rc.Timeout <= 0 {
			rc.Timeout = DefaultTimeout
		}
		rc.UserAgent = agent
		rc.Registry = cfg.Registry
		rc.Logger = cfg.Logger
		doer = resilience.NewClient(rc)
	}

	return &Client{
		search: base + "/search",
		agent:  agent,
		doer:   doer,
		log:    cfg.Logger.With().Str("provider", ProviderName).Logger(),
	}
}

func (c *Client) Name() string { return ProviderName }

type place struct {
	Lat         string `json:"lat"`
	Lon         string `json:"lon"`
	DisplayName string `json:"display_name"`
}

// Geocode resolves query to its best match. Blank queries and empty result
// sets are geocode.ErrNotFound.
func (c *Client) Geocode(ctx context.Context, query string) (*geocode.Result, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, geocode.ErrNotFound
	}

	q := url.Values{"q": {query}, "format": {"jsonv2"}, "limit": {"1"}}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.search+"?"+q.Encode(), http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("User-Agent", c.agent)
	req.Header.Set("Accept", "application/json")

	c.log.Debug().Str("query", query).Msg("geocoding")
	resp, err := c.doer.Do(req)
	if err != nil {
		c.log.Debug().Err(err).Msg("geocoder unreachable")
		return nil, fail("REQUEST_FAILED", "failed to reach geocoding provider", geocode.ErrProviderUnavailable)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, fmt.Errorf("reading response body: %w", err)
	}
	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusTooManyRequests:
		return nil, fail("RATE_LIMIT", "geocoding rate limit exceeded", geocode.ErrRateLimitExceeded)
	default:
		return nil, fail("HTTP_"+strconv.Itoa(resp.StatusCode),
			"geocoding provider returned status "+strconv.Itoa(resp.StatusCode), geocode.ErrProviderUnavailable)
	}

	var places []place
	if err := json.Unmarshal(body, &places); err != nil {
		return nil, fmt.Errorf("decoding response: %w", err)
	}
	if len(places) == 0 {
		return nil, geocode.ErrNotFound
	}
	return toResult(places[0])
}

func toResult(p place) (*geocode.Result, error) {
	lat, err := strconv.ParseFloat(p.Lat, 64)
	if err != nil {
		return nil, fmt.Errorf("parsing latitude %q: %w", p.Lat, err)
	}
	lon, err := strconv.ParseFloat(p.Lon, 64)
	if err != nil {
		return nil, fmt.Errorf("parsing longitude %q: %w", p.Lon, err)
	}
	return &geocode.Result{
		Coordinate:  geo.Coordinate{Lat: lat, Lon: lon},
		DisplayName: p.DisplayName,
		Provider:    ProviderName,
	}, nil
}

func fail(code, msg string, err error) *geocode.Error {
	return &geocode.Error{Provider: ProviderName, Code: code, Message: msg, Err: err}
}
