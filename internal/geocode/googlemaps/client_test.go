package googlemaps

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/smartrunning/smartrunning/internal/geocode"
	"github.com/smartrunning/smartrunning/internal/provider/resilience"
)

func newTestClient(t *testing.T, body string) *Client {
	t.Helper()
	return newRegisteredClient(t, body, nil)
}

func newRegisteredClient(t *testing.T, body string, registry *resilience.Registry) *Client {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/maps/api/geocode/json", r.URL.Path)
		assert.Equal(t, "test-key", r.URL.Query().Get("key"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(server.Close)

	c, err := NewClient(ClientConfig{
		APIKey:     "test-key",
		BaseURL:    server.URL,
		HTTPClient: server.Client(),
		Registry:   registry,
		Logger:     zerolog.Nop(),
	})
	require.NoError(t, err)
	return c
}

func TestNewClient_RequiresKey(t *testing.T) {
	_, err := NewClient(ClientConfig{})
	assert.Error(t, err)
}

func TestClient_Geocode_Success(t *testing.T) {
	c := newTestClient(t, `{
		"status": "OK",
		"results": [{
			"formatted_address": "Odense C, Denmark",
			"geometry": {"location": {"lat": 55.3959, "lng": 10.3883}}
		}]
	}`)

	res, err := c.Geocode(context.Background(), "Odense C")
	require.NoError(t, err)
	assert.Equal(t, 55.3959, res.Coordinate.Lat)
	assert.Equal(t, 10.3883, res.Coordinate.Lon)
	assert.Equal(t, "Odense C, Denmark", res.DisplayName)
	assert.Equal(t, ProviderName, res.Provider)
}

func TestClient_Geocode_ZeroResults(t *testing.T) {
	c := newTestClient(t, `{"status": "ZERO_RESULTS", "results": []}`)

	_, err := c.Geocode(context.Background(), "nowhere")
	assert.True(t, errors.Is(err, geocode.ErrNotFound), "got %v", err)
}

func TestClient_Geocode_Denied(t *testing.T) {
	c := newTestClient(t, `{"status": "REQUEST_DENIED", "error_message": "bad key", "results": []}`)

	_, err := c.Geocode(context.Background(), "Odense")
	assert.True(t, errors.Is(err, geocode.ErrProviderUnavailable), "got %v", err)
}

func TestClient_ReportsToRegistry(t *testing.T) {
	registry := resilience.NewRegistry()
	c := newRegisteredClient(t, `{"status": "REQUEST_DENIED", "error_message": "bad key", "results": []}`, registry)

	health := registry.GetHealth(ProviderName)
	require.NotNil(t, health)
	assert.Nil(t, health.LastFailureAt)

	_, _ = c.Geocode(context.Background(), "Odense")

	health = registry.GetHealth(ProviderName)
	assert.NotNil(t, health.LastFailureAt)
	assert.NotEmpty(t, health.LastError)
}
