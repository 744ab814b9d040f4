package store

import (
	"sync"
	"time"
)

// DefaultCacheTTL is how long a cached response stays valid.
const DefaultCacheTTL = 2 * time.Second

type cacheEntry struct {
	saved time.Time
	body  []byte
}

// URLCache holds recent GET responses keyed by URL. It is cleared at the
// start of every command and after every write, so it only ever spares
// repeated reads within one command cycle.
type URLCache struct {
	mu      sync.Mutex
	ttl     time.Duration
	now     func() time.Time
	entries map[string]cacheEntry
}

// NewURLCache creates a cache with the given TTL; zero uses DefaultCacheTTL.
func NewURLCache(ttl time.Duration) *URLCache {
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	return &URLCache{
		ttl:     ttl,
		now:     time.Now,
		entries: make(map[string]cacheEntry),
	}
}

// Get returns the cached body for url. An expired entry is dropped.
func (c *URLCache) Get(url string) ([]byte, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[url]
	if !ok {
		return nil, false
	}
	if c.now().Sub(e.saved) > c.ttl {
		delete(c.entries, url)
		return nil, false
	}
	return e.body, true
}

// Put saves body for url.
func (c *URLCache) Put(url string, body []byte) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[url] = cacheEntry{saved: c.now(), body: body}
}

// Clear drops every entry.
func (c *URLCache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[string]cacheEntry)
}

// Len returns the number of entries, expired or not.
func (c *URLCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}
