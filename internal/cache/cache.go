// Package cache provides time-boxed result caches for tool calls.
//
// Each named cache deduplicates identical external tool invocations
// within its TTL window. Entries expire lazily on lookup; hit and miss
// counters are monotonic for the process lifetime and survive Clear.
package cache

import (
	"log/slog"
	"sync"
	"time"
)

// entry is a cached value with its storage timestamp.
type entry struct {
	value     string
	timestamp time.Time
}

// Stats holds cache performance counters.
type Stats struct {
	Hits    int64   `json:"hits"`
	Misses  int64   `json:"misses"`
	Size    int     `json:"size"`
	HitRate float64 `json:"hit_rate_percent"`
}

// TTLCache is a time-to-live cache for string results. Safe for
// concurrent use from multiple agent loops.
type TTLCache struct {
	name   string
	ttl    time.Duration
	logger *slog.Logger

	mu      sync.Mutex
	entries map[string]entry
	hits    int64
	misses  int64

	// now is swappable for expiry tests.
	now func() time.Time
}

// New creates a named TTL cache.
func New(name string, ttl time.Duration, logger *slog.Logger) *TTLCache {
	c := &TTLCache{
		name:    name,
		ttl:     ttl,
		logger:  logger,
		entries: make(map[string]entry),
		now:     time.Now,
	}
	logger.Info("cache initialized", "cache", name, "ttl", ttl)
	return c
}

// Name returns the cache's name.
func (c *TTLCache) Name() string { return c.name }

// Get returns the cached value for key if it is younger than the TTL.
// Stale entries are removed and counted as misses.
func (c *TTLCache) Get(key string) (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if e, ok := c.entries[key]; ok {
		age := c.now().Sub(e.timestamp)
		if age < c.ttl {
			c.hits++
			c.logger.Debug("cache hit", "cache", c.name, "key", key, "age", age)
			return e.value, true
		}
		delete(c.entries, key)
		c.logger.Debug("cache expired", "cache", c.name, "key", key, "age", age)
	}

	c.misses++
	c.logger.Debug("cache miss", "cache", c.name, "key", key)
	return "", false
}

// Set stores value under key with the current timestamp, overwriting
// any previous entry.
func (c *TTLCache) Set(key, value string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries[key] = entry{value: value, timestamp: c.now()}
	c.logger.Debug("cache set", "cache", c.name, "key", key, "bytes", len(value))
}

// Clear removes all entries. Hit/miss counters are preserved; they
// describe the process lifetime, not the current contents.
func (c *TTLCache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries = make(map[string]entry)
	c.logger.Info("cache cleared", "cache", c.name)
}

// Stats returns a snapshot of the cache counters.
func (c *TTLCache) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()

	total := c.hits + c.misses
	var rate float64
	if total > 0 {
		rate = float64(c.hits) / float64(total) * 100
	}
	return Stats{
		Hits:    c.hits,
		Misses:  c.misses,
		Size:    len(c.entries),
		HitRate: rate,
	}
}
