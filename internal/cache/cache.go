// Package cache provides an in-memory TTL cache for raw upstream responses.
package cache

import (
	"sync"
	"time"
)

type entry struct {
	data      []byte
	fetchedAt time.Time
	expiresAt time.Time
}

// Cache is a thread-safe in-memory TTL cache. A zero TTL disables it.
type Cache struct {
	mu      sync.RWMutex
	entries map[string]entry
	ttl     time.Duration
	now     func() time.Time
}

// New creates a cache whose entries live for ttl.
func New(ttl time.Duration) *Cache {
	return &Cache{
		entries: make(map[string]entry),
		ttl:     ttl,
		now:     time.Now,
	}
}

// Enabled reports whether the cache stores anything.
func (c *Cache) Enabled() bool { return c != nil && c.ttl > 0 }

// Get returns the cached data for key and when it was stored.
func (c *Cache) Get(key string) (data []byte, fetchedAt time.Time, ok bool) {
	if !c.Enabled() {
		return nil, time.Time{}, false
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	e, exists := c.entries[key]
	if !exists || !c.now().Before(e.expiresAt) {
		return nil, time.Time{}, false
	}
	return e.data, e.fetchedAt, true
}

// Set stores data under key. Expired entries are evicted on write.
func (c *Cache) Set(key string, data []byte) {
	if !c.Enabled() {
		return
	}
	now := c.now()
	c.mu.Lock()
	defer c.mu.Unlock()
	for k, e := range c.entries {
		if !now.Before(e.expiresAt) {
			delete(c.entries, k)
		}
	}
	c.entries[key] = entry{
		data:      data,
		fetchedAt: now,
		expiresAt: now.Add(c.ttl),
	}
}

// Stats returns cache statistics.
func (c *Cache) Stats() map[string]interface{} {
	if c == nil {
		return map[string]interface{}{"enabled": false}
	}
	c.mu.RLock()
	defer c.mu.RUnlock()

	active := 0
	now := c.now()
	for _, e := range c.entries {
		if now.Before(e.expiresAt) {
			active++
		}
	}
	return map[string]interface{}{
		"enabled":      c.Enabled(),
		"ttl":          c.ttl.String(),
		"total_keys":   len(c.entries),
		"active_keys":  active,
		"expired_keys": len(c.entries) - active,
	}
}
