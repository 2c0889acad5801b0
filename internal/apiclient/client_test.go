package apiclient_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/smartrunning/smartrunning/internal/activity"
	"github.com/smartrunning/smartrunning/internal/api"
	"github.com/smartrunning/smartrunning/internal/apiclient"
	"github.com/smartrunning/smartrunning/internal/auth"
	"github.com/smartrunning/smartrunning/internal/cache"
	"github.com/smartrunning/smartrunning/internal/geocode"
	"github.com/smartrunning/smartrunning/internal/routing"
	"github.com/smartrunning/smartrunning/internal/track"
)

type fixedGeocoder struct{}

func (fixedGeocoder) Geocode(context.Context, string) (*geocode.Result, error) {
	return &geocode.Result{Coordinate: routing.DefaultStart, Provider: "fixed"}, nil
}

func (fixedGeocoder) Name() string { return "fixed" }

func newServer(t *testing.T, gpx bool) *httptest.Server {
	t.Helper()
	logger := zerolog.Nop()

	authService := auth.NewService(auth.ServiceConfig{
		JWTService: auth.NewJWTService(auth.JWTConfig{
			SigningKey: "client-test-signing-key",
			Issuer:     "https://api.smartrunning.app",
			Audience:   "smartrunning-api",
		}),
		UserRepo:    auth.NewInMemoryUserRepository(),
		RefreshRepo: auth.NewInMemoryRefreshTokenRepository(),
		Logger:      logger,
	})

	caps := routing.Capabilities{Geocoding: true, TrackEncoding: gpx}
	repo := activity.NewInMemoryRepository()
	activities := activity.NewService(activity.ServiceConfig{
		Repo:        repo,
		Synthesizer: routing.NewService(routing.ServiceConfig{
			Capabilities: caps,
			Geocoder:     fixedGeocoder{},
			Logger:       logger,
		}),
		Logger:      logger,
	})
	exporter := track.NewExporter(track.ExporterConfig{Enabled: gpx, Logger: logger})

	srv := httptest.NewServer(api.NewRouter(api.RouterConfig{
		Logger:      logger,
		AuthService: authService,
		Activities:  activities,
		Tracks: activity.NewTracks(activity.TracksConfig{
			Repo:     repo,
			Exporter: exporter,
			Store:    cache.NewMemory(),
			Logger:   logger,
		}),
		Exporter: exporter,
	}))
	t.Cleanup(srv.Close)
	return srv
}

func newClient() *apiclient.Client {
	return apiclient.New(apiclient.Config{Logger: zerolog.Nop()})
}

func TestNewSession(t *testing.T) {
	assert.Equal(t, apiclient.DefaultBaseURL, apiclient.NewSession("").BaseURL)
	assert.Equal(t, "http://example.test/api", apiclient.NewSession("http://example.test/api/").BaseURL)
	assert.False(t, apiclient.NewSession("").Authenticated())
}

func TestClient_AccountFlow(t *testing.T) {
	srv := newServer(t, true)
	c := newClient()
	ctx := context.Background()
	s := apiclient.NewSession(srv.URL + "/api")

	res := c.Register(ctx, s, "Ada", "ada@example.com", "correct-horse")
	require.True(t, res.OK, res.Message)
	assert.True(t, s.Authenticated())
	assert.Equal(t, "ada@example.com", res.Data.Email)

	dup := c.Register(ctx, apiclient.NewSession(s.BaseURL), "Ada", "ada@example.com", "correct-horse")
	assert.False(t, dup.OK)
	assert.Equal(t, http.StatusConflict, dup.Status)
	assert.Equal(t, "User with this email already exists", dup.Message)

	profile := c.GetProfile(ctx, s)
	require.True(t, profile.OK, profile.Message)
	assert.Equal(t, "Ada", profile.Data.Name)

	name := "Ada L."
	updated := c.UpdateProfile(ctx, s, auth.ProfileUpdateRequest{Name: &name})
	require.True(t, updated.OK, updated.Message)
	assert.Equal(t, "Ada L.", s.User.Name)

	c.Logout(s)
	assert.False(t, s.Authenticated())
	assert.Nil(t, s.User)

	denied := c.GetProfile(ctx, s)
	assert.False(t, denied.OK)
	assert.Equal(t, http.StatusUnauthorized, denied.Status)

	bad := c.Login(ctx, s, "ada@example.com", "wrong-horse")
	assert.False(t, bad.OK)
	assert.Equal(t, "Invalid credentials", bad.Message)

	ok := c.Login(ctx, s, "ada@example.com", "correct-horse")
	require.True(t, ok.OK, ok.Message)
	assert.True(t, s.Authenticated())
}

func TestClient_RouteAndActivities(t *testing.T) {
	srv := newServer(t, true)
	c := newClient()
	ctx := context.Background()
	s := apiclient.NewSession(srv.URL + "/api")
	require.True(t, c.Register(ctx, s, "Runner", "runner@example.com", "correct-horse").OK)

	route := c.GenerateRoute(ctx, s, "Odense", 3, "Trail")
	require.True(t, route.OK, route.Message)
	assert.Len(t, route.Data.Coordinates, 31)
	assert.NotEmpty(t, route.Data.Error)
	assert.Equal(t, "Trail", route.Data.SurfaceType)

	invalid := c.GenerateRoute(ctx, s, "", 3, "Any")
	assert.False(t, invalid.OK)
	assert.Equal(t, http.StatusBadRequest, invalid.Status)

	gpx := c.DownloadGPX(ctx, s, route.Data)
	require.True(t, gpx.OK, gpx.Message)
	assert.Equal(t, track.Filename("Odense"), gpx.Data.Filename)
	assert.Contains(t, string(gpx.Data.Data), "<gpx")

	saved := c.SaveActivity(ctx, s, route.Data, "")
	require.True(t, saved.OK, saved.Message)
	assert.Equal(t, "Route from Odense", saved.Data.Name)
	assert.Equal(t, activity.TypeRun, saved.Data.ActivityType)
	assert.InDelta(t, route.Data.EstimatedTime*60, saved.Data.DurationSeconds, 1e-9)
	assert.NotNil(t, saved.Data.Location, "location is derived from routeData")

	list := c.ListActivities(ctx, s, 10, "")
	require.True(t, list.OK, list.Message)
	require.Len(t, list.Data.Items, 1)

	got := c.GetActivity(ctx, s, saved.Data.ID)
	require.True(t, got.OK, got.Message)
	assert.Equal(t, saved.Data.ID, got.Data.ID)

	notes := "felt good"
	upd := c.UpdateActivity(ctx, s, saved.Data.ID, activity.UpdateRequest{Notes: &notes})
	require.True(t, upd.OK, upd.Message)
	assert.Equal(t, "felt good", upd.Data.Notes)

	actGPX := c.ActivityGPX(ctx, s, saved.Data.ID)
	require.True(t, actGPX.OK, actGPX.Message)
	assert.Equal(t, track.Filename("Odense"), actGPX.Data.Filename)

	del := c.DeleteActivity(ctx, s, saved.Data.ID)
	require.True(t, del.OK, del.Message)
	assert.Equal(t, http.StatusNoContent, del.Status)

	missing := c.GetActivity(ctx, s, saved.Data.ID)
	assert.False(t, missing.OK)
	assert.Equal(t, "Activity not found", missing.Message)
}

func TestClient_GPXUnavailable(t *testing.T) {
	srv := newServer(t, false)
	c := newClient()
	ctx := context.Background()
	s := apiclient.NewSession(srv.URL + "/api")
	require.True(t, c.Register(ctx, s, "Runner", "runner@example.com", "correct-horse").OK)

	route := c.GenerateRoute(ctx, s, "Odense", 2, "Any")
	require.True(t, route.OK, route.Message)
	assert.False(t, route.Data.GPXAvailable)

	gpx := c.DownloadGPX(ctx, s, route.Data)
	assert.False(t, gpx.OK)
	assert.True(t, gpx.Unavailable())
	assert.Equal(t, "GPX export unavailable", gpx.Message)
}

func TestClient_TransportError(t *testing.T) {
	c := newClient()
	s := apiclient.NewSession("http://127.0.0.1:1/api")

	res := c.GetProfile(context.Background(), s)

	assert.False(t, res.OK)
	assert.Zero(t, res.Status)
	assert.Contains(t, res.Message, "API request failed")
}

func TestClient_NonJSONError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "nope", http.StatusTeapot)
	}))
	defer srv.Close()

	res := newClient().GetActivity(context.Background(), apiclient.NewSession(srv.URL), "act_1")

	assert.False(t, res.OK)
	assert.Equal(t, http.StatusTeapot, res.Status)
	assert.Equal(t, "418 I'm a teapot", res.Message)
}
