// Package reqcache is a memoized, deduplicated async request executor.
// Concurrent callers with the same key share one in-flight call; successful
// results are cached for the process lifetime, failures are never cached.
package reqcache

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	gocache "github.com/patrickmn/go-cache"
	"golang.org/x/sync/singleflight"
)

// Cache coalesces and memoizes request executions by key.
type Cache struct {
	mu         sync.Mutex
	group      *singleflight.Group
	values     *gocache.Cache
	generation uint64
}

// New creates an empty Cache.
func New() *Cache {
	return &Cache{
		group:  &singleflight.Group{},
		values: gocache.New(gocache.NoExpiration, 0),
	}
}

// Key derives a deterministic cache key from an operation name and its
// arguments. Serialization is order-sensitive: differently-ordered but
// semantically-equal argument sets do not collide.
func Key(op string, args ...any) string {
	parts := make([]string, 0, len(args)+1)
	parts = append(parts, op)
	for _, a := range args {
		b, err := json.Marshal(a)
		if err != nil {
			parts = append(parts, fmt.Sprintf("%v", a))
			continue
		}
		parts = append(parts, string(b))
	}
	return strings.Join(parts, "|")
}

// Execute returns the cached value for key, joins an in-flight call for key,
// or invokes producer. A producer failure propagates to every waiter and
// leaves no cache entry behind, so a later call retries from scratch.
func Execute[T any](ctx context.Context, c *Cache, key string, producer func(context.Context) (T, error)) (T, error) {
	c.mu.Lock()
	group, values, gen := c.group, c.values, c.generation
	c.mu.Unlock()

	if v, ok := values.Get(key); ok {
		return v.(T), nil
	}

	v, err, _ := group.Do(key, func() (any, error) {
		if v, ok := values.Get(key); ok {
			return v, nil
		}
		out, err := producer(ctx)
		if err != nil {
			return nil, err
		}
		c.mu.Lock()
		// a reset that happened mid-flight invalidates this result
		if c.generation == gen {
			values.Set(key, out, gocache.NoExpiration)
		}
		c.mu.Unlock()
		return out, nil
	})
	if err != nil {
		var zero T
		return zero, err
	}
	return v.(T), nil
}

// Reset drops every cached value and detaches all in-flight calls, so work
// started before the reset can no longer populate the cache. Invoked on
// wallet disconnect or account switch.
func (c *Cache) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.generation++
	c.group = &singleflight.Group{}
	c.values.Flush()
}

// Len reports the number of settled entries, for tests and diagnostics.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.values.ItemCount()
}
