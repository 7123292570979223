// Package cache memoises expensive fetches under composite keys with a
// freshness window, a retention window, single-flight loading and brief
// negative caching of failures.
package cache

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
)

// ErrTypeMismatch means a key held a value of a different type than the
// caller asked for: two callers are sharing a key they should not share.
var ErrTypeMismatch = errors.New("cache: value type mismatch")

// Defaults chosen to match the dashboard's staleness budget: data an hour
// old is still useful, data two hours old is not.
const (
	DefaultFreshTTL    = 60 * time.Minute
	DefaultRetainTTL   = 120 * time.Minute
	DefaultNegativeTTL = 5 * time.Second
)

// Loader produces the value for a key.
type Loader func(ctx context.Context) (any, error)

type entry struct {
	value    any
	err      error
	hasValue bool
	storedAt time.Time
	failedAt time.Time
}

// Cache is a keyed staleness-aware cache. Entries inside the freshness
// window are served without refetching; entries between freshness and
// retention are refetched on access but keep serving the stale value if
// the refetch fails; entries past retention are evicted. Concurrent
// callers for the same missing key share one in-flight load.
type Cache struct {
	mu      sync.Mutex
	entries map[string]*entry
	group   singleflight.Group

	fresh    time.Duration
	retain   time.Duration
	negative time.Duration

	now func() time.Time
}

// Option customises a Cache.
type Option func(*Cache)

// WithNegativeTTL sets how long a failure is cached to prevent stampedes.
func WithNegativeTTL(d time.Duration) Option {
	return func(c *Cache) { c.negative = d }
}

// WithClock replaces the time source (tests).
func WithClock(now func() time.Time) Option {
	return func(c *Cache) { c.now = now }
}

// New creates a cache with the given freshness and retention windows.
func New(fresh, retain time.Duration, opts ...Option) *Cache {
	if fresh <= 0 {
		fresh = DefaultFreshTTL
	}
	if retain <= 0 {
		retain = DefaultRetainTTL
	}
	c := &Cache{
		entries:  make(map[string]*entry),
		fresh:    fresh,
		retain:   retain,
		negative: DefaultNegativeTTL,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Key builds a composite cache key from its parts.
func Key(parts ...string) string {
	return strings.Join(parts, "|")
}

// Get returns the cached value for key, loading it if missing or stale.
func (c *Cache) Get(ctx context.Context, key string, load Loader) (any, error) {
	c.mu.Lock()
	now := c.now()
	e := c.entries[key]
	if e != nil {
		age := now.Sub(e.storedAt)
		switch {
		case !e.hasValue && e.err != nil:
			// Negative entry: keep surfacing the failure briefly.
			if age < c.negative {
				err := e.err
				c.mu.Unlock()
				return nil, err
			}
			delete(c.entries, key)
			e = nil
		case e.hasValue && age < c.fresh:
			v := e.value
			c.mu.Unlock()
			return v, nil
		case e.hasValue && age >= c.retain:
			delete(c.entries, key)
			e = nil
		case e.hasValue && !e.failedAt.IsZero() && now.Sub(e.failedAt) < c.negative:
			// A refetch just failed; keep serving stale without hammering.
			v := e.value
			c.mu.Unlock()
			return v, nil
		}
	}
	c.mu.Unlock()

	v, err, _ := c.group.Do(key, func() (any, error) {
		return load(ctx)
	})

	c.mu.Lock()
	defer c.mu.Unlock()
	now = c.now()
	if err != nil {
		// Stale value still inside retention keeps driving the caller.
		if e != nil && e.hasValue && now.Sub(e.storedAt) < c.retain {
			e.failedAt = now
			return e.value, nil
		}
		c.entries[key] = &entry{err: err, storedAt: now}
		return nil, err
	}
	c.entries[key] = &entry{value: v, hasValue: true, storedAt: now}
	return v, nil
}

// Invalidate evicts every entry whose key starts with prefix and returns
// the number of entries removed. The next access refetches.
func (c *Cache) Invalidate(prefix string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	removed := 0
	for k := range c.entries {
		if strings.HasPrefix(k, prefix) {
			delete(c.entries, k)
			removed++
		}
	}
	return removed
}

// Size returns the number of live entries.
func (c *Cache) Size() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// GetTyped is a typed convenience wrapper over Cache.Get.
func GetTyped[T any](ctx context.Context, c *Cache, key string, load func(ctx context.Context) (T, error)) (T, error) {
	var zero T
	v, err := c.Get(ctx, key, func(ctx context.Context) (any, error) {
		return load(ctx)
	})
	if err != nil {
		return zero, err
	}
	typed, ok := v.(T)
	if !ok {
		return zero, fmt.Errorf("%w: key %s holds %T", ErrTypeMismatch, key, v)
	}
	return typed, nil
}
