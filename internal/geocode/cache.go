package geocode

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"golang.org/x/sync/singleflight"
	"golang.org/x/time/rate"

	"github.com/AgileSeagull/DIAS/internal/observability"
)

// CachedGeocoder wraps a Geocoder with a TTL cache keyed by coordinates
// rounded to three decimals, and spaces upstream calls with a global limiter.
// Only cache misses wait on the limiter.
type CachedGeocoder struct {
	inner   Geocoder
	limiter *rate.Limiter
	ttl     time.Duration
	clock   clockwork.Clock
	metrics *observability.Metrics

	group   singleflight.Group
	mu      sync.Mutex
	entries map[string]cacheEntry
}

type cacheEntry struct {
	country   string
	fetchedAt time.Time
}

// NewCachedGeocoder allows one upstream request per minInterval. A
// non-positive minInterval disables limiting.
func NewCachedGeocoder(inner Geocoder, ttl, minInterval time.Duration, clock clockwork.Clock, metrics *observability.Metrics) *CachedGeocoder {
	limit := rate.Inf
	if minInterval > 0 {
		limit = rate.Every(minInterval)
	}
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	if metrics == nil {
		metrics = observability.NewMetricsForTesting()
	}
	return &CachedGeocoder{
		inner:   inner,
		limiter: rate.NewLimiter(limit, 1),
		ttl:     ttl,
		clock:   clock,
		metrics: metrics,
		entries: make(map[string]cacheEntry),
	}
}

func cacheKey(lat, lng float64) string {
	return fmt.Sprintf("%.3f,%.3f", lat, lng)
}

func (c *CachedGeocoder) ReverseCountry(ctx context.Context, lat, lng float64) (string, error) {
	key := cacheKey(lat, lng)
	if country, ok := c.get(key); ok {
		c.metrics.GeocodeCache.WithLabelValues("hit").Inc()
		return country, nil
	}
	c.metrics.GeocodeCache.WithLabelValues("miss").Inc()

	v, err, _ := c.group.Do(key, func() (any, error) {
		if err := c.limiter.Wait(ctx); err != nil {
			return "", fmt.Errorf("geocode rate limiter: %w", err)
		}
		country, err := c.inner.ReverseCountry(ctx, lat, lng)
		switch {
		case err == nil:
			c.metrics.GeocodeRequests.WithLabelValues("success").Inc()
			c.put(key, country)
		case errors.Is(err, ErrNoResult):
			c.metrics.GeocodeRequests.WithLabelValues("empty").Inc()
		default:
			c.metrics.GeocodeRequests.WithLabelValues("error").Inc()
		}
		return country, err
	})
	if err != nil {
		return "", err
	}
	return v.(string), nil
}

func (c *CachedGeocoder) get(key string) (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[key]
	if !ok {
		return "", false
	}
	if c.clock.Since(e.fetchedAt) >= c.ttl {
		delete(c.entries, key)
		return "", false
	}
	return e.country, true
}

func (c *CachedGeocoder) put(key, country string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = cacheEntry{country: country, fetchedAt: c.clock.Now()}
}

// Len returns the number of unexpired entries.
func (c *CachedGeocoder) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	for k, e := range c.entries {
		if c.clock.Since(e.fetchedAt) >= c.ttl {
			delete(c.entries, k)
		}
	}
	return len(c.entries)
}

func (c *CachedGeocoder) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[string]cacheEntry)
}
