package llm

import (
	"strings"
	"sync"
	"time"
)

type cacheEntry struct {
	expiry time.Time
	label  string
}

// labelCache remembers oracle answers for the lifetime of a run.
type labelCache struct {
	entries map[string]cacheEntry
	now     func() time.Time
	ttl     time.Duration
	mu      sync.RWMutex
}

func newLabelCache(ttl time.Duration) *labelCache {
	if ttl == 0 {
		ttl = 15 * time.Minute
	}
	return &labelCache{
		entries: make(map[string]cacheEntry),
		ttl:     ttl,
		now:     time.Now,
	}
}

// cacheKey identifies a query by description, amount and vocabulary.
func cacheKey(description, amount string, vocabulary []string) string {
	return strings.ToLower(strings.TrimSpace(description)) + "|" + amount + "|" + strings.Join(vocabulary, ",")
}

func (c *labelCache) get(key string) (string, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	entry, ok := c.entries[key]
	if !ok || c.now().After(entry.expiry) {
		return "", false
	}
	return entry.label, true
}

func (c *labelCache) set(key, label string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	for k, e := range c.entries {
		if now.After(e.expiry) {
			delete(c.entries, k)
		}
	}
	c.entries[key] = cacheEntry{label: label, expiry: now.Add(c.ttl)}
}

func (c *labelCache) size() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}
