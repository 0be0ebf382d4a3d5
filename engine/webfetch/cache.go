package webfetch

import (
	"sync"
	"time"

	"github.com/InfraSageAI/infrasage-mvp/engine/domain"
)

// cacheEntry pairs a fetched document with its insertion time.
type cacheEntry struct {
	doc      domain.WebDocument
	storedAt time.Time
}

// docCache is a process-lifetime TTL cache keyed by locator value. Safe for
// concurrent use; entries expire lazily on read.
type docCache struct {
	mu      sync.Mutex
	ttl     time.Duration
	entries map[string]cacheEntry
}

func newDocCache(ttl time.Duration) *docCache {
	return &docCache{
		ttl:     ttl,
		entries: make(map[string]cacheEntry),
	}
}

func (c *docCache) get(key string) (domain.WebDocument, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[key]
	if !ok {
		return domain.WebDocument{}, false
	}
	if time.Since(e.storedAt) > c.ttl {
		delete(c.entries, key)
		return domain.WebDocument{}, false
	}
	return e.doc, true
}

func (c *docCache) put(key string, doc domain.WebDocument) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = cacheEntry{doc: doc, storedAt: time.Now()}
}

// Clear drops every cached document.
func (c *docCache) clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[string]cacheEntry)
}

func (c *docCache) len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}
