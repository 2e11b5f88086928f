package priority

import (
	"sync"
	"time"
)

const overrideTTL = 5 * time.Minute

type cacheEntry struct {
	value   int
	fetched time.Time
}

// overrideCache memoizes base-score lookups in-process for five minutes.
type overrideCache struct {
	mu      sync.RWMutex
	entries map[string]cacheEntry
}

func newOverrideCache() *overrideCache {
	return &overrideCache{entries: make(map[string]cacheEntry)}
}

func (c *overrideCache) get(key string) (int, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	e, ok := c.entries[key]
	if !ok || time.Since(e.fetched) > overrideTTL {
		return 0, false
	}
	return e.value, true
}

func (c *overrideCache) put(key string, value int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = cacheEntry{value: value, fetched: time.Now()}
}
