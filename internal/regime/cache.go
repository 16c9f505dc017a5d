package regime

import (
	"fmt"
	"sync"
	"time"

	"trading-signal-engine/internal/market"
)

// Cache is an in-memory TTL cache for regime classifications keyed by
// (symbol, timeframe). Writes are last-write-wins; the cache is owned by
// the engine host, not by the classifier.
type Cache struct {
	mu      sync.RWMutex
	entries map[string]cacheEntry
	ttl     time.Duration
}

type cacheEntry struct {
	classification *Classification
	expiresAt      time.Time
}

// DefaultCacheTTL matches the 5-minute refresh window used upstream
const DefaultCacheTTL = 5 * time.Minute

// NewCache creates a regime cache with the given TTL (DefaultCacheTTL when
// ttl <= 0)
func NewCache(ttl time.Duration) *Cache {
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	return &Cache{
		entries: make(map[string]cacheEntry),
		ttl:     ttl,
	}
}

func cacheKey(symbol string, tf market.Timeframe) string {
	return fmt.Sprintf("%s:%s", symbol, tf)
}

// Get returns the cached classification if present and not expired
func (c *Cache) Get(symbol string, tf market.Timeframe) (*Classification, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	entry, ok := c.entries[cacheKey(symbol, tf)]
	if !ok || time.Now().After(entry.expiresAt) {
		return nil, false
	}
	return entry.classification, true
}

// Set stores a classification, replacing any previous entry
func (c *Cache) Set(symbol string, tf market.Timeframe, cls *Classification) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries[cacheKey(symbol, tf)] = cacheEntry{
		classification: cls,
		expiresAt:      time.Now().Add(c.ttl),
	}
}

// Purge removes expired entries
func (c *Cache) Purge() {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := time.Now()
	for key, entry := range c.entries {
		if now.After(entry.expiresAt) {
			delete(c.entries, key)
		}
	}
}

// Len returns the number of entries, expired included
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}
