package ratelimit

import (
	"sync"
	"time"
)

type ttlEntry struct {
	insertedAt time.Time
}

// ttlCache tracks when keys were inserted, expiring them after a fixed TTL.
// The trading limiter uses it to compute order age for cancel penalties.
type ttlCache struct {
	mu      sync.Mutex
	entries map[string]ttlEntry
	ttl     time.Duration
}

func newTTLCache(ttl time.Duration) *ttlCache {
	return &ttlCache{
		entries: make(map[string]ttlEntry),
		ttl:     ttl,
	}
}

func (c *ttlCache) Put(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.purgeLocked(time.Now())
	c.entries[key] = ttlEntry{insertedAt: time.Now()}
}

// RemoveWithAge removes the key and returns how long it had been present.
// The second return is false when the key was absent or already expired.
func (c *ttlCache) RemoveWithAge(key string) (time.Duration, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := time.Now()
	c.purgeLocked(now)

	e, ok := c.entries[key]
	if !ok {
		return 0, false
	}
	delete(c.entries, key)
	return now.Sub(e.insertedAt), true
}

// Rename moves an entry to a new key, preserving its insertion time.
func (c *ttlCache) Rename(oldKey, newKey string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[oldKey]
	if !ok {
		return
	}
	delete(c.entries, oldKey)
	c.entries[newKey] = e
}

func (c *ttlCache) Remove(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, key)
}

func (c *ttlCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.purgeLocked(time.Now())
	return len(c.entries)
}

func (c *ttlCache) purgeLocked(now time.Time) {
	for k, e := range c.entries {
		if now.Sub(e.insertedAt) > c.ttl {
			delete(c.entries, k)
		}
	}
}
