package geocode

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/rs/zerolog"

	"github.com/smartrunning/smartrunning/internal/cache"
)

// DefaultCacheTTL is how long resolved places are kept.
const DefaultCacheTTL = 24 * time.Hour

const cacheKeyPrefix = "geocode:"

// CacheObserver is told about every cache lookup.
type CacheObserver interface {
	ObserveGeocodeCache(hit bool)
}

// CachedConfig configures a Cached geocoder.
type CachedConfig struct {
	Geocoder Geocoder
	Store    cache.Store
	TTL      time.Duration
	Observer CacheObserver
	Logger   zerolog.Logger
}

// Cached memoizes successful lookups of the wrapped geocoder.
// Misses and errors are never cached.
type Cached struct {
	next     Geocoder
	store    cache.Store
	ttl      time.Duration
	observer CacheObserver
	logger   zerolog.Logger
}

var _ Geocoder = (*Cached)(nil)

// NewCached wraps cfg.Geocoder with cfg.Store.
func NewCached(cfg CachedConfig) *Cached {
	ttl := cfg.TTL
	if ttl == 0 {
		ttl = DefaultCacheTTL
	}
	return &Cached{
		next:     cfg.Geocoder,
		store:    cfg.Store,
		ttl:      ttl,
		observer: cfg.Observer,
		logger:   cfg.Logger,
	}
}

// Name returns the wrapped provider name.
func (c *Cached) Name() string {
	return c.next.Name()
}

// Geocode serves from cache when possible. Cache failures fall through to the provider.
func (c *Cached) Geocode(ctx context.Context, query string) (*Result, error) {
	key := cacheKeyPrefix + c.next.Name() + ":" + NormalizeQuery(query)

	data, err := c.store.Get(ctx, key)
	switch {
	case err == nil:
		var res Result
		if jsonErr := json.Unmarshal(data, &res); jsonErr == nil {
			c.observe(true)
			return &res, nil
		}
		c.logger.Warn().Str("cache_key", key).Msg("discarding undecodable geocode cache entry")
	case !errors.Is(err, cache.ErrMiss):
		c.logger.Warn().Err(err).Str("cache_key", key).Msg("geocode cache read failed")
	}
	c.observe(false)

	res, err := c.next.Geocode(ctx, query)
	if err != nil {
		return nil, err
	}

	if encoded, jsonErr := json.Marshal(res); jsonErr == nil {
		if setErr := c.store.Set(ctx, key, encoded, c.ttl); setErr != nil {
			c.logger.Warn().Err(setErr).Str("cache_key", key).Msg("geocode cache write failed")
		}
	}
	return res, nil
}

func (c *Cached) observe(hit bool) {
	if c.observer != nil {
		c.observer.ObserveGeocodeCache(hit)
	}
}
