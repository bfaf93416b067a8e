package cache

import (
	"strings"
	"sync"
	"time"

	"divtracker/internal/provider"
)

// DefaultTTL is how long a quote counts as fresh.
const DefaultTTL = 5 * time.Minute

// entry stores one cached quote with its storage time.
type entry struct {
	quote    provider.Quote
	storedAt time.Time
}

// Cache keeps quotes per symbol for a TTL. Expired entries are invisible
// to Get but stay in the map until overwritten or cleared, so callers
// can fall back to them when every live source is down.
type Cache struct {
	ttl time.Duration

	mu    sync.RWMutex
	items map[string]entry // key: symbol, upper-cased
}

func New(ttl time.Duration) *Cache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Cache{ttl: ttl, items: make(map[string]entry)}
}

// Get returns the cached quote for symbol if it is still fresh.
func (c *Cache) Get(symbol string) (provider.Quote, bool) {
	key := keyFor(symbol)
	now := time.Now()

	c.mu.RLock()
	defer c.mu.RUnlock()
	e, ok := c.items[key]
	if !ok || now.Sub(e.storedAt) > c.ttl {
		return provider.Quote{}, false
	}
	return e.quote, true
}

// GetStale returns the cached quote for symbol regardless of age.
func (c *Cache) GetStale(symbol string) (provider.Quote, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	e, ok := c.items[keyFor(symbol)]
	if !ok {
		return provider.Quote{}, false
	}
	return e.quote, true
}

// Put stores a quote keyed by its symbol. Last writer wins.
func (c *Cache) Put(q provider.Quote) {
	key := keyFor(q.Symbol)
	if key == "" {
		return
	}
	c.mu.Lock()
	c.items[key] = entry{quote: q, storedAt: time.Now()}
	c.mu.Unlock()
}

// Clear drops all entries, fresh and expired alike.
func (c *Cache) Clear() {
	c.mu.Lock()
	c.items = make(map[string]entry)
	c.mu.Unlock()
}

// Len reports how many entries are held, including expired ones.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.items)
}

func keyFor(symbol string) string {
	return strings.ToUpper(strings.TrimSpace(symbol))
}
