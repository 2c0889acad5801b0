// Package apiclient is a Go client for the SmartRunning API.
//
// Every call returns a Result instead of an error so callers can print the
// server's message directly, the way the dashboard does.
package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/smartrunning/smartrunning/internal/activity"
	"github.com/smartrunning/smartrunning/internal/api/handler"
	"github.com/smartrunning/smartrunning/internal/api/models"
	"github.com/smartrunning/smartrunning/internal/auth"
	"github.com/smartrunning/smartrunning/internal/provider/resilience"
	"github.com/smartrunning/smartrunning/internal/track"
)

// DefaultBaseURL is the API root of a locally running server.
const DefaultBaseURL = "http://localhost:3000/api"

// ProviderName identifies the API in the resilience registry.
const ProviderName = "smartrunning-api"

// Session carries the caller's base URL and bearer token between calls.
type Session struct {
	BaseURL string
	Token   string
	User    *auth.User
}

// NewSession returns a session for baseURL, or DefaultBaseURL when empty.
func NewSession(baseURL string) *Session {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &Session{BaseURL: strings.TrimRight(baseURL, "/")}
}

// Authenticated reports whether the session holds a token.
func (s *Session) Authenticated() bool {
	return s.Token != ""
}

// Result is the uniform outcome of every call. Message is set when OK is false.
type Result[T any] struct {
	OK      bool
	Data    T
	Message string
	// Status is the HTTP status, or 0 when no response was received.
	Status int
}

// Unavailable reports whether the server declined because an optional
// capability is disabled.
func (r Result[T]) Unavailable() bool {
	return r.Status == http.StatusServiceUnavailable
}

func failure[T any](status int, format string, args ...any) Result[T] {
	return Result[T]{Status: status, Message: fmt.Sprintf(format, args...)}
}

// GPXFile is a downloaded track.
type GPXFile struct {
	Filename string
	Data     []byte
}

// Config holds configuration for the client.
type Config struct {
	// HTTP overrides the resilient transport (optional).
	HTTP *resilience.Client
	// Registry receives the default transport's health (optional).
	Registry *resilience.Registry
	Timeout  time.Duration
	Logger   zerolog.Logger
}

// Client talks to the SmartRunning API.
type Client struct {
	http   *resilience.Client
	logger zerolog.Logger
}

// New creates a client. The default transport retries once.
func New(cfg Config) *Client {
	httpClient := cfg.HTTP
	if httpClient == nil {
		rc := resilience.DefaultClientConfig(ProviderName)
		rc.MaxRetries = 1
		rc.Registry = cfg.Registry
		rc.Logger = cfg.Logger
		if cfg.Timeout > 0 {
			rc.Timeout = cfg.Timeout
		}
		httpClient = resilience.NewClient(rc)
	}
	return &Client{http: httpClient, logger: cfg.Logger}
}

// Login authenticates and stores the token in s.
func (c *Client) Login(ctx context.Context, s *Session, email, password string) Result[*auth.User] {
	res := call[auth.TokenResponse](ctx, c, s, http.MethodPost, "/auth/login", auth.LoginRequest{
		Email:    email,
		Password: password,
	})
	return c.storeToken(s, res, "Authentication failed: No token received")
}

// Register creates an account and stores the token in s.
func (c *Client) Register(ctx context.Context, s *Session, name, email, password string) Result[*auth.User] {
	res := call[auth.TokenResponse](ctx, c, s, http.MethodPost, "/auth/register", auth.RegisterRequest{
		Name:     name,
		Email:    email,
		Password: password,
	})
	return c.storeToken(s, res, "Registration failed: No token received")
}

func (c *Client) storeToken(s *Session, res Result[auth.TokenResponse], noToken string) Result[*auth.User] {
	if !res.OK {
		return Result[*auth.User]{Status: res.Status, Message: res.Message}
	}
	token := res.Data.Token
	if token == "" {
		token = res.Data.AccessToken
	}
	if token == "" {
		return failure[*auth.User](res.Status, "%s", noToken)
	}
	s.Token = token
	s.User = res.Data.User
	return Result[*auth.User]{OK: true, Data: res.Data.User, Status: res.Status}
}

// Logout forgets the session's credentials. The server is not contacted.
func (c *Client) Logout(s *Session) {
	s.Token = ""
	s.User = nil
}

// GetProfile fetches the signed-in user.
func (c *Client) GetProfile(ctx context.Context, s *Session) Result[*auth.User] {
	res := call[models.ProfileResponse](ctx, c, s, http.MethodGet, "/auth/profile", nil)
	return profile(s, res)
}

// UpdateProfile changes the signed-in user and refreshes s.User.
func (c *Client) UpdateProfile(ctx context.Context, s *Session, req auth.ProfileUpdateRequest) Result[*auth.User] {
	res := call[models.ProfileResponse](ctx, c, s, http.MethodPut, "/auth/profile", req)
	return profile(s, res)
}

func profile(s *Session, res Result[models.ProfileResponse]) Result[*auth.User] {
	if !res.OK {
		return Result[*auth.User]{Status: res.Status, Message: res.Message}
	}
	if res.Data.User != nil {
		s.User = res.Data.User
	}
	return Result[*auth.User]{OK: true, Data: res.Data.User, Status: res.Status}
}

// GenerateRoute asks the server for a loop. A degraded route is still OK;
// its advisory is in Data.Error.
func (c *Client) GenerateRoute(ctx context.Context, s *Session, startLocation string, distanceKm float64, surface string) Result[*models.RouteResponse] {
	return call[*models.RouteResponse](ctx, c, s, http.MethodPost, "/activity/generate", activity.GenerateRequest{
		StartLocation:     startLocation,
		Distance:          distanceKm,
		SurfacePreference: surface,
	})
}

// DownloadGPX exports a route the caller already holds.
func (c *Client) DownloadGPX(ctx context.Context, s *Session, route *models.RouteResponse) Result[*GPXFile] {
	body := map[string]any{"route": route}
	return c.download(ctx, s, http.MethodPost, "/activity/generate/gpx", body, route.StartLocation)
}

// ActivityGPX downloads the track of a saved activity.
func (c *Client) ActivityGPX(ctx context.Context, s *Session, id string) Result[*GPXFile] {
	return c.download(ctx, s, http.MethodGet, "/activity/"+url.PathEscape(id)+"/gpx", nil, id)
}

// SaveActivity stores a generated route. An empty name becomes
// "Route from <start>"; the duration is the route's estimate in seconds.
func (c *Client) SaveActivity(ctx context.Context, s *Session, route *models.RouteResponse, name string) Result[*activity.Activity] {
	raw, err := json.Marshal(route)
	if err != nil {
		return failure[*activity.Activity](0, "API request failed: %v", err)
	}
	if name == "" {
		start := route.StartLocation
		if start == "" {
			start = "Unknown"
		}
		name = "Route from " + start
	}
	return call[*activity.Activity](ctx, c, s, http.MethodPost, "/activity", activity.CreateRequest{
		Name:          name,
		ActivityType:  "running",
		Distance:      route.Distance,
		Duration:      route.EstimatedTime * 60,
		StartLocation: route.StartLocation,
		SurfaceType:   route.SurfaceType,
		ElevationGain: route.ElevationGain,
		RouteData:     raw,
	})
}

// ListActivities returns one page of the user's activities.
func (c *Client) ListActivities(ctx context.Context, s *Session, limit int, cursor string) Result[*handler.ActivityList] {
	q := url.Values{}
	if limit > 0 {
		q.Set("limit", strconv.Itoa(limit))
	}
	if cursor != "" {
		q.Set("cursor", cursor)
	}
	path := "/activity"
	if len(q) > 0 {
		path += "?" + q.Encode()
	}
	return call[*handler.ActivityList](ctx, c, s, http.MethodGet, path, nil)
}

// GetActivity fetches one activity.
func (c *Client) GetActivity(ctx context.Context, s *Session, id string) Result[*activity.Activity] {
	return call[*activity.Activity](ctx, c, s, http.MethodGet, "/activity/"+url.PathEscape(id), nil)
}

// UpdateActivity changes one activity.
func (c *Client) UpdateActivity(ctx context.Context, s *Session, id string, req activity.UpdateRequest) Result[*activity.Activity] {
	return call[*activity.Activity](ctx, c, s, http.MethodPut, "/activity/"+url.PathEscape(id), req)
}

// DeleteActivity removes one activity.
func (c *Client) DeleteActivity(ctx context.Context, s *Session, id string) Result[struct{}] {
	return call[struct{}](ctx, c, s, http.MethodDelete, "/activity/"+url.PathEscape(id), nil)
}

func (c *Client) download(ctx context.Context, s *Session, method, path string, body any, fallbackName string) Result[*GPXFile] {
	resp, err := c.do(ctx, s, method, path, body)
	if err != nil {
		return failure[*GPXFile](0, "API request failed: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		return Result[*GPXFile]{Status: resp.StatusCode, Message: errorMessage(resp)}
	}
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return failure[*GPXFile](resp.StatusCode, "API request failed: %v", err)
	}

	filename := track.Filename(fallbackName)
	if _, params, err := mime.ParseMediaType(resp.Header.Get("Content-Disposition")); err == nil && params["filename"] != "" {
		filename = params["filename"]
	}
	return Result[*GPXFile]{OK: true, Status: resp.StatusCode, Data: &GPXFile{Filename: filename, Data: data}}
}

// call sends a JSON request and decodes a JSON reply into T. A 204 yields the zero T.
func call[T any](ctx context.Context, c *Client, s *Session, method, path string, body any) Result[T] {
	resp, err := c.do(ctx, s, method, path, body)
	if err != nil {
		return failure[T](0, "API request failed: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		return Result[T]{Status: resp.StatusCode, Message: errorMessage(resp)}
	}

	out := Result[T]{OK: true, Status: resp.StatusCode}
	if resp.StatusCode == http.StatusNoContent {
		return out
	}
	if err := json.NewDecoder(resp.Body).Decode(&out.Data); err != nil {
		if errors.Is(err, io.EOF) {
			return out
		}
		return failure[T](resp.StatusCode, "Invalid response format from API")
	}
	return out
}

func (c *Client) do(ctx context.Context, s *Session, method, path string, body any) (*http.Response, error) {
	var (
		reader  io.Reader
		payload []byte
	)
	if body != nil {
		var err error
		payload, err = json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("encoding request: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, s.BaseURL+path, reader)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if s.Token != "" {
		req.Header.Set("Authorization", "Bearer "+s.Token)
	}

	c.logger.Debug().Str("method", method).Str("path", path).Msg("api request")
	return c.http.Do(req)
}

// errorMessage reads the server's message, falling back to detail, then the status text.
func errorMessage(resp *http.Response) string {
	var body struct {
		Message string `json:"message"`
		Detail  string `json:"detail"`
		Error   string `json:"error"`
	}
	data, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	if err := json.Unmarshal(data, &body); err == nil {
		for _, m := range []string{body.Message, body.Detail, body.Error} {
			if m != "" {
				return m
			}
		}
	}
	return fmt.Sprintf("%d %s", resp.StatusCode, http.StatusText(resp.StatusCode))
}
