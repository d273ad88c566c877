// Package cache provides the read-path caching primitives for Phenotrack:
// a generic TTL+LRU container and the canonical cache key codec.
package cache

import (
	"container/list"
	"fmt"
	"sync"
	"time"
)

// entry wraps a cached value with its key and absolute expiry.
// The key is carried so eviction from the list tail can delete the map slot.
type entry[K comparable, V any] struct {
	key       K
	value     V
	expiresAt time.Time
}

// TTLLRU is a concurrency-safe bounded map combining two independent
// eviction forces: a fixed time-to-live per entry and a maximum entry
// count enforced by least-recently-used eviction.
//
// TTL bounds staleness independent of traffic; LRU bounds memory
// independent of TTL. Expiry is enforced lazily on read -- there is no
// background sweeper, so an expired-but-untouched entry may hold a
// capacity slot until it is read or evicted. maxSize still bounds
// worst-case memory.
type TTLLRU[K comparable, V any] struct {
	mu      sync.Mutex
	maxSize int
	ttl     time.Duration
	order   *list.List                 // front = most recently used
	items   map[K]*list.Element        // element value: *entry[K, V]
	now     func() time.Time           // swappable clock for tests
	onEvict func(key K, expired bool)  // optional hook, called under mu
}

// Option configures a TTLLRU.
type Option[K comparable, V any] func(*TTLLRU[K, V])

// WithClock replaces the time source. Tests use this to drive expiry
// deterministically.
func WithClock[K comparable, V any](now func() time.Time) Option[K, V] {
	return func(c *TTLLRU[K, V]) { c.now = now }
}

// WithEvictionHook registers a callback invoked whenever an entry is
// dropped, either by capacity eviction or on discovery of an expired
// entry during a read. The hook runs under the cache lock and must not
// call back into the cache.
func WithEvictionHook[K comparable, V any](fn func(key K, expired bool)) Option[K, V] {
	return func(c *TTLLRU[K, V]) { c.onEvict = fn }
}

// New creates a TTLLRU holding at most maxSize entries, each live for ttl
// after its most recent Set.
func New[K comparable, V any](maxSize int, ttl time.Duration, opts ...Option[K, V]) (*TTLLRU[K, V], error) {
	if maxSize <= 0 {
		return nil, fmt.Errorf("cache: maxSize must be > 0, got %d", maxSize)
	}
	if ttl <= 0 {
		return nil, fmt.Errorf("cache: ttl must be > 0, got %v", ttl)
	}
	c := &TTLLRU[K, V]{
		maxSize: maxSize,
		ttl:     ttl,
		order:   list.New(),
		items:   make(map[K]*list.Element),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Get returns the live value for key. An entry whose expiry is at or
// before the current time is treated as absent and discarded. A hit
// marks the entry most recently used.
func (c *TTLLRU[K, V]) Get(key K) (V, bool) {
	var zero V
	c.mu.Lock()
	defer c.mu.Unlock()

	el, ok := c.items[key]
	if !ok {
		return zero, false
	}
	e := el.Value.(*entry[K, V])
	if !e.expiresAt.After(c.now()) {
		c.removeLocked(el, true)
		return zero, false
	}
	c.order.MoveToFront(el)
	return e.value, true
}

// Set inserts or overwrites the entry for key. The expiry becomes
// now + ttl regardless of any prior expiry, the entry is marked most
// recently used, and least-recently-used entries are evicted until the
// count is within bound.
func (c *TTLLRU[K, V]) Set(key K, value V) {
	expiresAt := c.now().Add(c.ttl)
	c.mu.Lock()
	defer c.mu.Unlock()

	if el, ok := c.items[key]; ok {
		e := el.Value.(*entry[K, V])
		e.value = value
		e.expiresAt = expiresAt
		c.order.MoveToFront(el)
		return
	}

	el := c.order.PushFront(&entry[K, V]{key: key, value: value, expiresAt: expiresAt})
	c.items[key] = el

	for c.order.Len() > c.maxSize {
		c.removeLocked(c.order.Back(), false)
	}
}

// Delete removes the entry for key if present.
func (c *TTLLRU[K, V]) Delete(key K) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if el, ok := c.items[key]; ok {
		delete(c.items, key)
		c.order.Remove(el)
	}
}

// Purge removes all entries.
func (c *TTLLRU[K, V]) Purge() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.order.Init()
	clear(c.items)
}

// Len reports the number of entries currently held, including entries
// that have expired but not yet been discovered by a read.
func (c *TTLLRU[K, V]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.order.Len()
}

func (c *TTLLRU[K, V]) removeLocked(el *list.Element, expired bool) {
	e := el.Value.(*entry[K, V])
	delete(c.items, e.key)
	c.order.Remove(el)
	if c.onEvict != nil {
		c.onEvict(e.key, expired)
	}
}
