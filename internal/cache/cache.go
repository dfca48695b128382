// Package cache provides a bounded read-through cache whose entries expire a
// fixed time after they were stored. Writes to the underlying data never
// invalidate it; readers accept staleness up to the TTL.
package cache

import (
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
)

type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

// SystemClock reads the wall clock.
var SystemClock Clock = systemClock{}

type entry[V any] struct {
	value     V
	expiresAt time.Time
}

// TTL is safe for concurrent use. A TTL of zero or less disables caching:
// every Get misses and Set is a no-op.
type TTL[K comparable, V any] struct {
	entries *lru.Cache[K, entry[V]]
	ttl     time.Duration
	clock   Clock
}

func New[K comparable, V any](size int, ttl time.Duration, clock Clock) (*TTL[K, V], error) {
	if size <= 0 {
		size = 1
	}
	if clock == nil {
		clock = SystemClock
	}
	entries, err := lru.New[K, entry[V]](size)
	if err != nil {
		return nil, err
	}
	return &TTL[K, V]{entries: entries, ttl: ttl, clock: clock}, nil
}

func (c *TTL[K, V]) Get(key K) (V, bool) {
	var zero V
	if c.ttl <= 0 {
		return zero, false
	}
	e, ok := c.entries.Get(key)
	if !ok {
		return zero, false
	}
	if !c.clock.Now().Before(e.expiresAt) {
		c.entries.Remove(key)
		return zero, false
	}
	return e.value, true
}

func (c *TTL[K, V]) Set(key K, value V) {
	if c.ttl <= 0 {
		return
	}
	c.entries.Add(key, entry[V]{value: value, expiresAt: c.clock.Now().Add(c.ttl)})
}

// GetOrLoad returns the cached value for key, calling load on a miss and
// caching its result when it succeeds. Concurrent misses may each call load.
func (c *TTL[K, V]) GetOrLoad(key K, load func() (V, error)) (V, error) {
	if v, ok := c.Get(key); ok {
		return v, nil
	}
	v, err := load()
	if err != nil {
		return v, err
	}
	c.Set(key, v)
	return v, nil
}

func (c *TTL[K, V]) Len() int {
	return c.entries.Len()
}
