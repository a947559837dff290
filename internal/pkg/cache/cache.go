package cache

import (
	"context"
	"time"

	gocache "github.com/patrickmn/go-cache"
)

// Cache is a TTL cache owned by whoever constructs it. Entries are dropped
// on expiry or through Invalidate/Flush; there is no process-wide instance.
type Cache[V any] struct {
	store *gocache.Cache
}

// New returns an empty cache. A non-positive ttl keeps entries until they
// are invalidated.
func New[V any](ttl time.Duration) *Cache[V] {
	expiration := ttl
	cleanup := ttl
	if ttl <= 0 {
		expiration = gocache.NoExpiration
		cleanup = 0
	}
	return &Cache[V]{
		store: gocache.New(expiration, cleanup),
	}
}

func (c *Cache[V]) Get(key string) (V, bool) {
	var zero V
	raw, ok := c.store.Get(key)
	if !ok {
		return zero, false
	}
	v, ok := raw.(V)
	if !ok {
		return zero, false
	}
	return v, true
}

func (c *Cache[V]) Set(key string, value V) {
	c.store.Set(key, value, gocache.DefaultExpiration)
}

// Invalidate removes key so the next read reloads it.
func (c *Cache[V]) Invalidate(key string) {
	c.store.Delete(key)
}

// Flush removes every entry.
func (c *Cache[V]) Flush() {
	c.store.Flush()
}

// GetOrLoad returns the cached value or calls load and caches its result.
// Load errors are returned as-is and nothing is cached.
func (c *Cache[V]) GetOrLoad(ctx context.Context, key string, load func(ctx context.Context) (V, error)) (V, error) {
	if v, ok := c.Get(key); ok {
		return v, nil
	}
	v, err := load(ctx)
	if err != nil {
		var zero V
		return zero, err
	}
	c.Set(key, v)
	return v, nil
}
