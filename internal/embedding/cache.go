package embedding

import (
	"crypto/sha256"
	"encoding/hex"
	"sync"
)

// DefaultCacheSize is the default maximum number of cached vectors.
const DefaultCacheSize = 1024

// Cache maps a content hash to a previously computed vector, bounded by a
// maximum entry count. When full it evicts the oldest-inserted entry, not the
// least recently used one; callers must not assume LRU semantics.
type Cache struct {
	mu      sync.Mutex
	max     int
	entries map[string]Vector
	order   []string
}

// NewCache creates a cache holding at most max vectors.
func NewCache(max int) *Cache {
	if max <= 0 {
		max = DefaultCacheSize
	}
	return &Cache{
		max:     max,
		entries: make(map[string]Vector, max),
	}
}

// Get returns the cached vector for text, if present.
func (c *Cache) Get(text string) (Vector, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := c.entries[hashKey(text)]
	return v, ok
}

// Put stores the vector for text, evicting the oldest entry when full.
func (c *Cache) Put(text string, v Vector) {
	key := hashKey(text)

	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.entries[key]; ok {
		c.entries[key] = v
		return
	}
	if len(c.entries) >= c.max && len(c.order) > 0 {
		oldest := c.order[0]
		c.order = c.order[1:]
		delete(c.entries, oldest)
	}
	c.entries[key] = v
	c.order = append(c.order, key)
}

// Len returns the number of cached vectors.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

func hashKey(text string) string {
	sum := sha256.Sum256([]byte(text))
	return hex.EncodeToString(sum[:])
}
