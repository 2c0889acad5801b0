// Package geocode resolves free-text place names to coordinates.
package geocode

import (
	"context"
	"errors"
	"strings"

	"github.com/smartrunning/smartrunning/internal/geo"
)

// Sentinel errors for geocoding providers.
var (
	// ErrNotFound means the provider answered but had no match.
	ErrNotFound = errors.New("location not found")
	// ErrProviderUnavailable means the provider could not be reached or its circuit is open.
	ErrProviderUnavailable = errors.New("geocoding provider unavailable")
	// ErrRateLimitExceeded means the provider quota has been exceeded.
	ErrRateLimitExceeded = errors.New("geocoding rate limit exceeded")
)

// Result is a resolved place.
type Result struct {
	Coordinate  geo.Coordinate `json:"coordinate"`
	DisplayName string         `json:"displayName,omitempty"`
	Provider    string         `json:"provider"`
}

// Geocoder resolves a query to a single best match.
type Geocoder interface {
	Geocode(ctx context.Context, query string) (*Result, error)
	Name() string
}

// Error provides detailed error information from a geocoding provider.
type Error struct {
	Provider string
	Code     string
	Message  string
	Err      error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

// NormalizeQuery lower-cases and collapses whitespace so equivalent queries share a cache key.
func NormalizeQuery(q string) string {
	return strings.Join(strings.Fields(strings.ToLower(q)), " ")
}
