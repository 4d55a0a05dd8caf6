package sentiment

import (
	"strings"
	"sync"
	"time"

	"stockcast/internal/domain"
)

// Default cache parameters.
const (
	DefaultTTL        = time.Hour
	DefaultMaxEntries = 100
)

type cacheEntry struct {
	result     domain.SentimentResult
	insertedAt time.Time
}

// Cache holds the latest sentiment result per symbol. Entries expire ttl
// after insertion and are evicted lazily when read. When full, inserting a new
// symbol evicts expired entries and then the oldest one.
type Cache struct {
	ttl        time.Duration
	maxEntries int
	now        func() time.Time

	mu      sync.Mutex
	entries map[string]cacheEntry
	changed chan struct{}
}

// NewCache creates a Cache. Non-positive arguments select the defaults.
func NewCache(ttl time.Duration, maxEntries int) *Cache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if maxEntries <= 0 {
		maxEntries = DefaultMaxEntries
	}
	return &Cache{
		ttl:        ttl,
		maxEntries: maxEntries,
		now:        time.Now,
		entries:    make(map[string]cacheEntry),
		changed:    make(chan struct{}),
	}
}

// WithClock replaces the clock used for expiry. It must be called before the
// cache is shared.
func (c *Cache) WithClock(now func() time.Time) *Cache {
	c.now = now
	return c
}

func cacheKey(symbol string) string { return strings.ToUpper(strings.TrimSpace(symbol)) }

// Get returns a copy of the live result for symbol.
func (c *Cache) Get(symbol string) (*domain.SentimentResult, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.liveLocked(cacheKey(symbol))
	if !ok {
		return nil, false
	}
	r := e.result
	return &r, true
}

// Has reports whether a live result exists for symbol.
func (c *Cache) Has(symbol string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.liveLocked(cacheKey(symbol))
	return ok
}

// Set stores result for symbol and wakes every goroutine waiting on Changed.
func (c *Cache) Set(symbol string, result domain.SentimentResult) {
	key := cacheKey(symbol)

	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.entries[key]; !exists && len(c.entries) >= c.maxEntries {
		c.evictLocked()
	}
	c.entries[key] = cacheEntry{result: result, insertedAt: c.now()}

	close(c.changed)
	c.changed = make(chan struct{})
}

// Changed returns a channel that is closed by the next Set.
func (c *Cache) Changed() <-chan struct{} {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.changed
}

// Len returns the number of live entries.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.expireLocked()
	return len(c.entries)
}

// Purge removes all entries.
func (c *Cache) Purge() {
	c.mu.Lock()
	defer c.mu.Unlock()
	clear(c.entries)
}

func (c *Cache) liveLocked(key string) (cacheEntry, bool) {
	e, ok := c.entries[key]
	if !ok {
		return cacheEntry{}, false
	}
	if c.now().Sub(e.insertedAt) >= c.ttl {
		delete(c.entries, key)
		return cacheEntry{}, false
	}
	return e, true
}

func (c *Cache) expireLocked() {
	now := c.now()
	for k, e := range c.entries {
		if now.Sub(e.insertedAt) >= c.ttl {
			delete(c.entries, k)
		}
	}
}

func (c *Cache) evictLocked() {
	c.expireLocked()
	if len(c.entries) < c.maxEntries {
		return
	}
	var (
		oldestKey string
		oldestAt  time.Time
	)
	for k, e := range c.entries {
		if oldestKey == "" || e.insertedAt.Before(oldestAt) {
			oldestKey, oldestAt = k, e.insertedAt
		}
	}
	delete(c.entries, oldestKey)
}
