package speaker

import (
	"strings"
	"sync"
	"time"
)

// DefaultCacheTTL is how long a lookup result is reused
const DefaultCacheTTL = 7 * 24 * time.Hour

// Cache keeps lookup results per speaker name with a TTL.
// Safe for concurrent use.
type Cache struct {
	mu       sync.Mutex
	results  map[string]Result
	cachedAt map[string]time.Time
	ttl      time.Duration
	now      func() time.Time
}

// NewCache creates a cache; a non-positive ttl selects DefaultCacheTTL.
func NewCache(ttl time.Duration) *Cache {
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	return &Cache{
		results:  make(map[string]Result),
		cachedAt: make(map[string]time.Time),
		ttl:      ttl,
		now:      time.Now,
	}
}

// Get returns the cached result for name if present and not expired.
func (c *Cache) Get(name string) (Result, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	key := cacheKey(name)
	result, exists := c.results[key]
	if !exists {
		return Result{}, false
	}

	if c.now().Sub(c.cachedAt[key]) > c.ttl {
		delete(c.results, key)
		delete(c.cachedAt, key)
		return Result{}, false
	}
	return result, true
}

// Set stores result for name
func (c *Cache) Set(name string, result Result) {
	c.mu.Lock()
	defer c.mu.Unlock()

	key := cacheKey(name)
	c.results[key] = result
	c.cachedAt[key] = c.now()
}

// CleanExpired removes expired entries and returns how many were dropped.
func (c *Cache) CleanExpired() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	removed := 0
	now := c.now()
	for key, cachedTime := range c.cachedAt {
		if now.Sub(cachedTime) > c.ttl {
			delete(c.results, key)
			delete(c.cachedAt, key)
			removed++
		}
	}
	return removed
}

// Size returns the number of cached entries
func (c *Cache) Size() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.results)
}

func cacheKey(name string) string {
	return strings.ToLower(strings.Join(strings.Fields(name), " "))
}
