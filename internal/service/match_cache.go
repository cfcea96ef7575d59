package service

import (
	"sync"
	"time"

	"github.com/jcalderon/inventory-import-service/internal/domain"
)

// Default cache bounds for product match lookups.
const (
	DefaultMatchCacheTTL  = 5 * time.Minute
	DefaultMatchCacheSize = 500
)

type matchCacheEntry struct {
	matches  []domain.ProductMatch
	storedAt time.Time
}

// MatchCache is a bounded TTL cache for catalog match results. Entries
// older than the TTL are treated as absent; when capacity is exceeded
// the globally oldest entry is evicted. The cache is safe for
// concurrent use and must be cleared explicitly after catalog mutations.
type MatchCache struct {
	mu       sync.Mutex
	entries  map[string]matchCacheEntry
	ttl      time.Duration
	capacity int
	now      func() time.Time
}

// NewMatchCache creates a match cache. A nil clock uses time.Now.
func NewMatchCache(ttl time.Duration, capacity int, clock func() time.Time) *MatchCache {
	if ttl <= 0 {
		ttl = DefaultMatchCacheTTL
	}
	if capacity <= 0 {
		capacity = DefaultMatchCacheSize
	}
	if clock == nil {
		clock = time.Now
	}
	return &MatchCache{
		entries:  make(map[string]matchCacheEntry),
		ttl:      ttl,
		capacity: capacity,
		now:      clock,
	}
}

// Get returns the cached matches for key, or false when the key is
// absent or expired. Expired entries are removed on lookup.
func (c *MatchCache) Get(key string) ([]domain.ProductMatch, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.entries[key]
	if !ok {
		return nil, false
	}
	if c.now().Sub(entry.storedAt) >= c.ttl {
		delete(c.entries, key)
		return nil, false
	}
	return entry.matches, true
}

// Set stores matches for key, evicting the oldest entry when the cache
// is full.
func (c *MatchCache) Set(key string, matches []domain.ProductMatch) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.entries[key]; !exists && len(c.entries) >= c.capacity {
		c.evictOldestLocked()
	}

	c.entries[key] = matchCacheEntry{matches: matches, storedAt: c.now()}
}

// Clear empties the cache. Callers must invoke this after any catalog
// mutation so stale matches are never served.
func (c *MatchCache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[string]matchCacheEntry)
}

// Len returns the number of entries currently held, including any not
// yet expired-on-read.
func (c *MatchCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

func (c *MatchCache) evictOldestLocked() {
	var oldestKey string
	var oldestAt time.Time
	first := true
	for key, entry := range c.entries {
		if first || entry.storedAt.Before(oldestAt) {
			oldestKey = key
			oldestAt = entry.storedAt
			first = false
		}
	}
	if oldestKey != "" {
		delete(c.entries, oldestKey)
	}
}
