// Package cache provides a generic, capacity-bounded cache whose eviction
// policy weighs both access frequency and recency. Capacity is supplied
// externally (typically by the performance governor) and may shrink at any
// time between operations.
package cache

import (
	"context"
	"sort"
	"sync"
	"time"

	logging "github.com/ipfs/go-log/v2"
	metrics "github.com/ipfs/go-metrics-interface"
)

var log = logging.Logger("adaptivegov/cache")

type entry[V any] struct {
	value       V
	cost        int64
	lastAccess  time.Time
	accessCount uint64
}

// Cache is a cost-and-recency-aware cache with serialized access. All
// operations are safe for concurrent use; each operation observes and
// produces a consistent state.
type Cache[K comparable, V any] struct {
	mu        sync.Mutex
	entries   map[K]*entry[V]
	itemLimit int
	byteLimit int64
	totalCost int64
	hits      uint64
	misses    uint64

	itemsGauge     metrics.Gauge
	costGauge      metrics.Gauge
	evictedCounter metrics.Counter
}

// Stats is a snapshot of cache occupancy and effectiveness.
type Stats struct {
	Items     int
	TotalCost int64
	Hits      uint64
	Misses    uint64
	HitRate   float64
}

// New creates a cache bounded by itemLimit entries and, when byteLimit is
// positive, byteLimit total cost. The context is used only to scope
// metrics instruments.
func New[K comparable, V any](ctx context.Context, itemLimit int, byteLimit int64) *Cache[K, V] {
	if ctx == nil {
		ctx = context.Background()
	}
	if itemLimit < 1 {
		itemLimit = 1
	}

	c := &Cache[K, V]{
		entries:   make(map[K]*entry[V]),
		itemLimit: itemLimit,
		byteLimit: byteLimit,
	}

	if metrics.Active() {
		c.itemsGauge = metrics.NewCtx(ctx, "adaptive_cache_items",
			"Number of entries currently cached").Gauge()
		c.costGauge = metrics.NewCtx(ctx, "adaptive_cache_total_cost",
			"Sum of entry costs currently cached").Gauge()
		c.evictedCounter = metrics.NewCtx(ctx, "adaptive_cache_evictions_total",
			"Total number of entries evicted under capacity pressure").Counter()
	}

	return c
}

// Put inserts or replaces an entry with the default cost of 1.
func (c *Cache[K, V]) Put(key K, value V) {
	c.PutCost(key, value, 1)
}

// PutCost inserts or replaces an entry with an explicit cost. Replacing an
// existing key resets its access bookkeeping to just-accessed. When the
// cache is at its item limit, a batch of victims is evicted before the
// insert so sustained pressure does not re-trigger eviction on every put.
func (c *Cache[K, V]) PutCost(key K, value V, cost int64) {
	if cost < 1 {
		cost = 1
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	now := time.Now()

	if e, ok := c.entries[key]; ok {
		c.totalCost += cost - e.cost
		e.value = value
		e.cost = cost
		e.lastAccess = now
		e.accessCount = 0
		c.enforceByteLimitLocked(&key)
		c.updateGaugesLocked()
		return
	}

	if len(c.entries) >= c.itemLimit {
		need := len(c.entries) - c.itemLimit + 1
		batch := c.itemLimit / 10
		if need > batch {
			batch = need
		}
		c.evictLocked(batch, nil)
	}

	c.entries[key] = &entry[V]{
		value:       value,
		cost:        cost,
		lastAccess:  now,
		accessCount: 0,
	}
	c.totalCost += cost
	c.enforceByteLimitLocked(&key)
	c.updateGaugesLocked()
}

// Get returns the cached value for key. A hit refreshes the entry's
// recency and increments its access count.
func (c *Cache[K, V]) Get(key K) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[key]
	if !ok {
		c.misses++
		var zero V
		return zero, false
	}

	e.lastAccess = time.Now()
	e.accessCount++
	c.hits++
	return e.value, true
}

// Remove deletes the entry for key and reports whether it was present.
func (c *Cache[K, V]) Remove(key K) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[key]
	if !ok {
		return false
	}
	c.totalCost -= e.cost
	delete(c.entries, key)
	c.updateGaugesLocked()
	return true
}

// Clear removes all entries. Hit/miss counters survive so HitRate stays
// meaningful over the cache's lifetime.
func (c *Cache[K, V]) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries = make(map[K]*entry[V])
	c.totalCost = 0
	c.updateGaugesLocked()
}

// Resize replaces the cache's capacity limits. When the new item limit is
// below the current occupancy the cache evicts down to the new limit
// immediately, so a shrink requested by the governor takes effect without
// waiting for the next insert.
func (c *Cache[K, V]) Resize(itemLimit int, byteLimit int64) {
	if itemLimit < 1 {
		itemLimit = 1
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	c.itemLimit = itemLimit
	c.byteLimit = byteLimit

	if over := len(c.entries) - c.itemLimit; over > 0 {
		log.Debugw("capacity shrunk below occupancy, evicting",
			"item_limit", itemLimit, "items", len(c.entries))
		c.evictLocked(over, nil)
	}
	c.enforceByteLimitLocked(nil)
	c.updateGaugesLocked()
}

// Stats returns a consistent snapshot of cache statistics.
func (c *Cache[K, V]) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()

	s := Stats{
		Items:     len(c.entries),
		TotalCost: c.totalCost,
		Hits:      c.hits,
		Misses:    c.misses,
	}
	if total := c.hits + c.misses; total > 0 {
		s.HitRate = float64(c.hits) / float64(total)
	}
	return s
}

// Len returns the current number of entries.
func (c *Cache[K, V]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// evictLocked removes up to n victims, least-used first with ties broken
// by oldest access. keep, when non-nil, pins a key (the entry being
// inserted) so byte-limit pressure cannot evict it.
func (c *Cache[K, V]) evictLocked(n int, keep *K) {
	if n <= 0 || len(c.entries) == 0 {
		return
	}

	type victim struct {
		key K
		e   *entry[V]
	}
	candidates := make([]victim, 0, len(c.entries))
	for k, e := range c.entries {
		if keep != nil && k == *keep {
			continue
		}
		candidates = append(candidates, victim{key: k, e: e})
	}

	sort.Slice(candidates, func(i, j int) bool {
		a, b := candidates[i].e, candidates[j].e
		if a.accessCount != b.accessCount {
			return a.accessCount < b.accessCount
		}
		return a.lastAccess.Before(b.lastAccess)
	})

	if n > len(candidates) {
		n = len(candidates)
	}
	for _, v := range candidates[:n] {
		c.totalCost -= v.e.cost
		delete(c.entries, v.key)
		if c.evictedCounter != nil {
			c.evictedCounter.Inc()
		}
	}
}

// enforceByteLimitLocked evicts batches until total cost fits the byte
// limit. The entry named by keep is never chosen as a victim.
func (c *Cache[K, V]) enforceByteLimitLocked(keep *K) {
	if c.byteLimit <= 0 {
		return
	}
	batch := c.itemLimit / 10
	if batch < 1 {
		batch = 1
	}
	for c.totalCost > c.byteLimit {
		before := len(c.entries)
		c.evictLocked(batch, keep)
		if len(c.entries) == before {
			return
		}
	}
}

func (c *Cache[K, V]) updateGaugesLocked() {
	if c.itemsGauge != nil {
		c.itemsGauge.Set(float64(len(c.entries)))
	}
	if c.costGauge != nil {
		c.costGauge.Set(float64(c.totalCost))
	}
}
