// Package cache provides a bounded, time-to-live keyed cache.
//
// Entries expire after the configured TTL. When a Put would exceed the
// capacity, expired entries are purged first and then the entry with the
// earliest expiry is evicted. Reads never extend an entry's lifetime.
//
// Thread-safety: all methods are safe for concurrent use.
package cache

import (
	"maps"
	"sync"
	"time"
)

// Defaults used by the engine and orchestrator.
const (
	DefaultTTL      = 30 * time.Minute
	DefaultCapacity = 100
)

type entry[V any] struct {
	value   V
	expires time.Time
}

// Cache is a TTL + capacity bounded map.
type Cache[K comparable, V any] struct {
	mu       sync.Mutex
	entries  map[K]entry[V]
	ttl      time.Duration
	capacity int
	now      func() time.Time
}

// Option configures a Cache.
type Option func(*options)

type options struct {
	ttl      time.Duration
	capacity int
	now      func() time.Time
}

// WithTTL sets the entry lifetime. Non-positive values keep the default.
func WithTTL(ttl time.Duration) Option {
	return func(o *options) {
		if ttl > 0 {
			o.ttl = ttl
		}
	}
}

// WithCapacity sets the maximum number of live entries. Non-positive values
// keep the default.
func WithCapacity(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.capacity = n
		}
	}
}

// WithNow injects the time source.
func WithNow(now func() time.Time) Option {
	return func(o *options) {
		if now != nil {
			o.now = now
		}
	}
}

// New creates an empty cache.
func New[K comparable, V any](opts ...Option) *Cache[K, V] {
	o := options{ttl: DefaultTTL, capacity: DefaultCapacity, now: time.Now}
	for _, opt := range opts {
		opt(&o)
	}
	return &Cache[K, V]{
		entries:  make(map[K]entry[V]),
		ttl:      o.ttl,
		capacity: o.capacity,
		now:      o.now,
	}
}

// Get returns the value for key if present and unexpired. An expired entry is
// removed on access.
func (c *Cache[K, V]) Get(key K) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[key]
	if !ok {
		var zero V
		return zero, false
	}
	if !c.now().Before(e.expires) {
		delete(c.entries, key)
		var zero V
		return zero, false
	}
	return e.value, true
}

// Put stores value under key with a fresh expiry.
func (c *Cache[K, V]) Put(key K, value V) {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	if _, exists := c.entries[key]; !exists && len(c.entries) >= c.capacity {
		c.purgeExpiredLocked(now)
		for len(c.entries) >= c.capacity {
			c.evictEarliestLocked()
		}
	}
	c.entries[key] = entry[V]{value: value, expires: now.Add(c.ttl)}
}

// Delete removes key.
func (c *Cache[K, V]) Delete(key K) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, key)
}

// DeleteFunc removes every entry whose key satisfies del.
func (c *Cache[K, V]) DeleteFunc(del func(K) bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	maps.DeleteFunc(c.entries, func(k K, _ entry[V]) bool { return del(k) })
}

// Clear removes every entry.
func (c *Cache[K, V]) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[K]entry[V])
}

// Len returns the number of stored entries, expired ones included until they
// are purged.
func (c *Cache[K, V]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// Capacity returns the configured bound.
func (c *Cache[K, V]) Capacity() int { return c.capacity }

func (c *Cache[K, V]) purgeExpiredLocked(now time.Time) {
	for k, e := range c.entries {
		if !now.Before(e.expires) {
			delete(c.entries, k)
		}
	}
}

func (c *Cache[K, V]) evictEarliestLocked() {
	var (
		victim K
		oldest time.Time
		found  bool
	)
	for k, e := range c.entries {
		if !found || e.expires.Before(oldest) {
			victim, oldest, found = k, e.expires, true
		}
	}
	if found {
		delete(c.entries, victim)
	}
}
