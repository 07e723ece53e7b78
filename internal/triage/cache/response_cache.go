package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"sync"
	"time"
)

type responseEntry struct {
	value    string
	storedAt time.Time
}

// ResponseCache memoizes model completions for identical requests within a
// TTL window. An entry older than the TTL is treated as absent. The cap is
// soft: inserting past it sweeps expired entries first rather than evicting
// live ones.
type ResponseCache struct {
	mu      sync.Mutex
	entries map[string]responseEntry
	ttl     time.Duration
	cap     int
	now     func() time.Time
}

func NewResponseCache(ttl time.Duration, softCap int) *ResponseCache {
	return &ResponseCache{
		entries: make(map[string]responseEntry),
		ttl:     ttl,
		cap:     softCap,
		now:     time.Now,
	}
}

// Key derives the cache key from everything that shapes the completion.
func Key(model, system, prompt string) string {
	h := sha256.New()
	h.Write([]byte(model))
	h.Write([]byte{0})
	h.Write([]byte(system))
	h.Write([]byte{0})
	h.Write([]byte(prompt))
	return hex.EncodeToString(h.Sum(nil))
}

func (c *ResponseCache) Get(key string) (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.entries[key]
	if !ok {
		return "", false
	}
	if c.now().Sub(entry.storedAt) > c.ttl {
		delete(c.entries, key)
		return "", false
	}
	return entry.value, true
}

func (c *ResponseCache) Put(key, value string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if len(c.entries) >= c.cap {
		c.sweepLocked()
	}
	c.entries[key] = responseEntry{value: value, storedAt: c.now()}
}

// sweepLocked removes expired entries. Caller holds the lock.
func (c *ResponseCache) sweepLocked() {
	cutoff := c.now().Add(-c.ttl)
	for key, entry := range c.entries {
		if entry.storedAt.Before(cutoff) {
			delete(c.entries, key)
		}
	}
}

// Len reports the number of stored entries, expired or not.
func (c *ResponseCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}
