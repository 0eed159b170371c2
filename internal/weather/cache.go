package weather

import (
	"context"
	"sync"
	"time"

	"github.com/blackwell-systems/homepilot/internal/model"
)

// DefaultCacheTTL is how long a successful reading is reused.
const DefaultCacheTTL = 10 * time.Minute

// Cache wraps a Provider and reuses its last successful answer until the TTL
// expires. Failures are not cached.
type Cache struct {
	provider Provider
	ttl      time.Duration
	now      func() time.Time

	mu        sync.Mutex
	value     model.Weather
	fetchedAt time.Time
	valid     bool
}

// NewCache creates a cache around provider. A non-positive ttl uses
// DefaultCacheTTL.
func NewCache(provider Provider, ttl time.Duration) *Cache {
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	return &Cache{provider: provider, ttl: ttl, now: time.Now}
}

// SetClock replaces the time source.
func (c *Cache) SetClock(now func() time.Time) {
	c.mu.Lock()
	c.now = now
	c.mu.Unlock()
}

// Current implements Provider.
func (c *Cache) Current(ctx context.Context) (model.Weather, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.valid && c.now().Sub(c.fetchedAt) < c.ttl {
		return c.value, nil
	}
	w, err := c.provider.Current(ctx)
	if err != nil {
		return model.Weather{}, err
	}
	c.value = w
	c.fetchedAt = c.now()
	c.valid = true
	return w, nil
}

// Invalidate drops the cached reading.
func (c *Cache) Invalidate() {
	c.mu.Lock()
	c.valid = false
	c.mu.Unlock()
}
