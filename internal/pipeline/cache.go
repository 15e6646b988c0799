package pipeline

import (
	"strings"
	"sync"
	"time"
)

const (
	defaultCacheEntries = 1024
	defaultCacheTTL     = 24 * time.Hour
)

// resultCache is a concurrent-safe LRU cache with TTL expiration, keyed by
// derived idempotency keys. It detects duplicate triggers for the same
// operation and serves the prior result instead of re-executing. Lifecycle
// is tied to the owning Orchestrator; there is no global instance.
type resultCache struct {
	mu         sync.Mutex
	entries    map[string]*cacheEntry
	order      []string // LRU order: front=oldest, back=newest
	maxEntries int
	ttl        time.Duration
}

type cacheEntry struct {
	value     any
	createdAt time.Time
}

func newResultCache(maxEntries int, ttl time.Duration) *resultCache {
	if maxEntries <= 0 {
		maxEntries = defaultCacheEntries
	}
	if ttl <= 0 {
		ttl = defaultCacheTTL
	}
	return &resultCache{
		entries:    make(map[string]*cacheEntry),
		maxEntries: maxEntries,
		ttl:        ttl,
	}
}

// idempotencyKey derives the cache key for one trigger.
func idempotencyKey(operation, businessID, caller string) string {
	return strings.Join([]string{operation, businessID, caller}, "|")
}

// get retrieves a cached result. Returns (nil, false) on miss or expiry.
func (c *resultCache) get(key string) (any, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.entries[key]
	if !ok {
		return nil, false
	}

	if time.Since(entry.createdAt) > c.ttl {
		delete(c.entries, key)
		c.removeFromOrder(key)
		return nil, false
	}

	// Move to back (most recently used).
	c.removeFromOrder(key)
	c.order = append(c.order, key)
	return entry.value, true
}

// put stores a result, evicting the oldest entry if at capacity.
func (c *resultCache) put(key string, value any) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.entries[key]; ok {
		c.entries[key] = &cacheEntry{value: value, createdAt: time.Now()}
		c.removeFromOrder(key)
		c.order = append(c.order, key)
		return
	}

	for len(c.entries) >= c.maxEntries && len(c.order) > 0 {
		oldest := c.order[0]
		c.order = c.order[1:]
		delete(c.entries, oldest)
	}

	c.entries[key] = &cacheEntry{value: value, createdAt: time.Now()}
	c.order = append(c.order, key)
}

// invalidate drops all cached results for a business.
func (c *resultCache) invalidate(businessID string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var remaining []string
	for _, key := range c.order {
		parts := strings.SplitN(key, "|", 3)
		if len(parts) >= 2 && parts[1] == businessID {
			delete(c.entries, key)
		} else {
			remaining = append(remaining, key)
		}
	}
	c.order = remaining
}

func (c *resultCache) removeFromOrder(key string) {
	for i, k := range c.order {
		if k == key {
			c.order = append(c.order[:i], c.order[i+1:]...)
			return
		}
	}
}
