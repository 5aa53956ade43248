package sets

import (
	"sync"

	"github.com/roach88/keycond/internal/ir"
)

// Cache shares equal sets between compiled conditions.
type Cache struct {
	mu     sync.Mutex
	sets   map[string]*Set
	hits   int64
	misses int64
}

// NewCache returns an empty cache.
func NewCache() *Cache {
	return &Cache{sets: make(map[string]*Set)}
}

// GetOrBuild builds the set for rows and returns the shared instance when an
// equal set is already cached.
func (c *Cache) GetOrBuild(types []ir.Type, rows [][]ir.Value) (*Set, error) {
	s, err := Build(types, rows)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if existing, ok := c.sets[s.fingerprint]; ok {
		c.hits++
		return existing, nil
	}
	c.misses++
	c.sets[s.fingerprint] = s
	return s, nil
}

// Len is the number of distinct cached sets.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.sets)
}

// Stats returns hit and miss counts.
func (c *Cache) Stats() (hits, misses int64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.hits, c.misses
}
