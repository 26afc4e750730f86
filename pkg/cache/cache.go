package cache

import (
	"container/list"
	"sync"
	"time"

	"github.com/5g-empower/empower-runtime-sub001/errors"
	"github.com/5g-empower/empower-runtime-sub001/metric"
)

// EvictCallback is called with each entry dropped for size or age.
type EvictCallback[V any] func(key string, value V)

// Stats is a snapshot of cache counters.
type Stats struct {
	Hits      int64 `json:"hits"`
	Misses    int64 `json:"misses"`
	Evictions int64 `json:"evictions"`
	Size      int   `json:"size"`
}

// HitRatio returns hits over lookups, or 0 before the first lookup.
func (s Stats) HitRatio() float64 {
	if s.Hits+s.Misses == 0 {
		return 0
	}
	return float64(s.Hits) / float64(s.Hits+s.Misses)
}

// Option configures a Cache.
type Option[V any] func(*Cache[V])

// WithMetrics exports the counters under component name. A nil registry is
// ignored.
func WithMetrics[V any](registry *metric.MetricsRegistry, name string) Option[V] {
	return func(c *Cache[V]) {
		if registry != nil && name != "" {
			c.registry, c.name = registry, name
		}
	}
}

// WithEvictionCallback sets fn to observe evictions. Explicit deletes are
// not reported.
func WithEvictionCallback[V any](fn EvictCallback[V]) Option[V] {
	return func(c *Cache[V]) { c.evictFn = fn }
}

// WithClock replaces time.Now.
func WithClock[V any](now func() time.Time) Option[V] {
	return func(c *Cache[V]) {
		if now != nil {
			c.now = now
		}
	}
}

type entry[V any] struct {
	key       string
	value     V
	expiresAt time.Time
}

// Cache is safe for concurrent use.
type Cache[V any] struct {
	mu      sync.Mutex
	maxSize int
	ttl     time.Duration
	items   map[string]*list.Element
	order   *list.List
	now     func() time.Time
	evictFn EvictCallback[V]
	stats   Stats

	registry *metric.MetricsRegistry
	name     string
	metrics  *cacheMetrics
}

// New creates a cache holding at most maxSize entries for ttl each.
func New[V any](maxSize int, ttl time.Duration, opts ...Option[V]) (*Cache[V], error) {
	if maxSize <= 0 {
		return nil, errors.WrapInvalid(errors.ErrInvalidConfig, "cache", "New", "max size must be positive")
	}
	if ttl <= 0 {
		return nil, errors.WrapInvalid(errors.ErrInvalidConfig, "cache", "New", "ttl must be positive")
	}
	c := &Cache[V]{
		maxSize: maxSize,
		ttl:     ttl,
		items:   make(map[string]*list.Element),
		order:   list.New(),
		now:     time.Now,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(c)
		}
	}
	if c.registry != nil {
		m, err := newCacheMetrics(c.registry, c.name)
		if err != nil {
			return nil, errors.WrapTransient(err, "cache", "New", "metrics registration")
		}
		c.metrics = m
	}
	return c, nil
}

// Get returns the live value of key and marks it recently used.
func (c *Cache[V]) Get(key string) (V, bool) {
	c.mu.Lock()
	var evicted *entry[V]
	el, ok := c.items[key]
	if ok {
		e := el.Value.(*entry[V])
		if c.now().Before(e.expiresAt) {
			c.order.MoveToFront(el)
			c.stats.Hits++
			c.mu.Unlock()
			c.metrics.hit()
			return e.value, true
		}
		c.removeElement(el)
		c.stats.Evictions++
		evicted = e
	}
	c.stats.Misses++
	size := len(c.items)
	c.mu.Unlock()

	c.metrics.miss()
	if evicted != nil {
		c.evicted(evicted, size)
	}
	var zero V
	return zero, false
}

// Set stores value under key with a fresh ttl. It reports whether key was
// new.
func (c *Cache[V]) Set(key string, value V) (bool, error) {
	if key == "" {
		return false, errors.WrapInvalid(errors.ErrInvalidData, "cache", "Set", "key cannot be empty")
	}
	c.mu.Lock()
	expiresAt := c.now().Add(c.ttl)
	if el, ok := c.items[key]; ok {
		e := el.Value.(*entry[V])
		e.value, e.expiresAt = value, expiresAt
		c.order.MoveToFront(el)
		c.mu.Unlock()
		return false, nil
	}
	c.items[key] = c.order.PushFront(&entry[V]{key: key, value: value, expiresAt: expiresAt})
	var evicted *entry[V]
	if c.order.Len() > c.maxSize {
		oldest := c.order.Back()
		evicted = oldest.Value.(*entry[V])
		c.removeElement(oldest)
		c.stats.Evictions++
	}
	size := len(c.items)
	c.mu.Unlock()

	c.metrics.setSize(size)
	if evicted != nil {
		c.evicted(evicted, size)
	}
	return true, nil
}

// Delete removes key and reports whether it was present.
func (c *Cache[V]) Delete(key string) bool {
	c.mu.Lock()
	el, ok := c.items[key]
	if ok {
		c.removeElement(el)
	}
	size := len(c.items)
	c.mu.Unlock()
	c.metrics.setSize(size)
	return ok
}

// DeleteFunc removes every entry for which match returns true and returns
// how many were removed.
func (c *Cache[V]) DeleteFunc(match func(key string, value V) bool) int {
	c.mu.Lock()
	n := 0
	for el := c.order.Front(); el != nil; {
		next := el.Next()
		if e := el.Value.(*entry[V]); match(e.key, e.value) {
			c.removeElement(el)
			n++
		}
		el = next
	}
	size := len(c.items)
	c.mu.Unlock()
	c.metrics.setSize(size)
	return n
}

// Clear drops every entry.
func (c *Cache[V]) Clear() {
	c.mu.Lock()
	c.items = make(map[string]*list.Element)
	c.order.Init()
	c.mu.Unlock()
	c.metrics.setSize(0)
}

// Len returns the number of stored entries, expired or not.
func (c *Cache[V]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.items)
}

// Stats returns a snapshot of the counters.
func (c *Cache[V]) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()
	s := c.stats
	s.Size = len(c.items)
	return s
}

// removeElement must be called with mu held.
func (c *Cache[V]) removeElement(el *list.Element) {
	c.order.Remove(el)
	delete(c.items, el.Value.(*entry[V]).key)
}

func (c *Cache[V]) evicted(e *entry[V], size int) {
	c.metrics.eviction()
	c.metrics.setSize(size)
	if c.evictFn != nil {
		c.evictFn(e.key, e.value)
	}
}
