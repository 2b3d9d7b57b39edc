package cache

import (
	"sync"
	"time"
)

// sweepAfter is how many Set calls may pass before expired entries are
// collected. Response bodies are small but keys vary per entity, so
// the map needs periodic pruning when Redis is not configured.
const sweepAfter = 512

type entry struct {
	b   []byte
	exp time.Time
}

// TTLCache is the in-process fallback for response caching. Values are
// copied on write so callers may reuse their buffers.
type TTLCache struct {
	mu     sync.RWMutex
	m      map[string]entry
	writes int
}

func NewTTLCache() *TTLCache {
	return &TTLCache{m: make(map[string]entry)}
}

func (c *TTLCache) GetBytes(key string) ([]byte, bool, error) {
	c.mu.RLock()
	e, ok := c.m[key]
	c.mu.RUnlock()
	if !ok {
		return nil, false, nil
	}
	if !e.exp.IsZero() && time.Now().After(e.exp) {
		c.mu.Lock()
		delete(c.m, key)
		c.mu.Unlock()
		return nil, false, nil
	}
	return e.b, true, nil
}

func (c *TTLCache) SetBytes(key string, value []byte, ttl time.Duration) error {
	var exp time.Time
	if ttl > 0 {
		exp = time.Now().Add(ttl)
	}
	b := make([]byte, len(value))
	copy(b, value)

	c.mu.Lock()
	c.m[key] = entry{b: b, exp: exp}
	c.writes++
	if c.writes >= sweepAfter {
		c.sweepLocked(time.Now())
		c.writes = 0
	}
	c.mu.Unlock()
	return nil
}

// sweepLocked removes expired entries. Callers must hold mu.
func (c *TTLCache) sweepLocked(now time.Time) {
	for k, e := range c.m {
		if !e.exp.IsZero() && now.After(e.exp) {
			delete(c.m, k)
		}
	}
}
