package storage

import (
	"sync"
	"time"
)

// ExpiringCache is a thread-safe, capacity-bounded map whose entries carry
// their own expiry. Live entries are never evicted to make room.
type ExpiringCache struct {
	mu       sync.Mutex
	capacity int
	items    map[string]time.Time
	now      func() time.Time
}

// NewExpiringCache creates a cache holding at most capacity live entries
func NewExpiringCache(capacity int) *ExpiringCache {
	if capacity <= 0 {
		capacity = 1
	}
	return &ExpiringCache{
		capacity: capacity,
		items:    make(map[string]time.Time),
		now:      time.Now,
	}
}

// Contains reports whether key is present and not yet expired
func (c *ExpiringCache) Contains(key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	expiresAt, found := c.items[key]
	if !found {
		return false
	}
	if c.now().After(expiresAt) {
		delete(c.items, key)
		return false
	}
	return true
}

// Add stores key until ttl elapses. An existing key gets the later of its
// two expiries. When the cache is full, expired entries are swept first; if
// none were, the key is not stored and false is returned.
func (c *ExpiringCache) Add(key string, ttl time.Duration) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	expiresAt := now.Add(ttl)

	if current, found := c.items[key]; found {
		if expiresAt.After(current) {
			c.items[key] = expiresAt
		}
		return true
	}

	if len(c.items) >= c.capacity && c.removeExpired(now) == 0 {
		return false
	}

	c.items[key] = expiresAt
	return true
}

func (c *ExpiringCache) removeExpired(now time.Time) int {
	removed := 0
	for key, expiresAt := range c.items {
		if now.After(expiresAt) {
			delete(c.items, key)
			removed++
		}
	}
	return removed
}
