package formula

import (
	"sync"
	"time"
)

// InMemoryFormulaCache implements FormulaCache with a guarded slice.
type InMemoryFormulaCache struct {
	formulas []*Formula
	cachedAt time.Time
	config   CacheConfig
	valid    bool
	mu       sync.RWMutex
}

func NewInMemoryFormulaCache(config CacheConfig) *InMemoryFormulaCache {
	return &InMemoryFormulaCache{config: config}
}

func (c *InMemoryFormulaCache) Get() []*Formula {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if !c.valid || c.expired() {
		return nil
	}

	out := make([]*Formula, len(c.formulas))
	copy(out, c.formulas)
	return out
}

func (c *InMemoryFormulaCache) Set(formulas []*Formula) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.formulas = make([]*Formula, len(formulas))
	copy(c.formulas, formulas)
	c.cachedAt = time.Now()
	c.valid = true
}

func (c *InMemoryFormulaCache) Invalidate() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.valid = false
	c.formulas = nil
}

func (c *InMemoryFormulaCache) IsValid() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.valid && !c.expired()
}

// expired is called with a lock held.
func (c *InMemoryFormulaCache) expired() bool {
	return c.config.TTL > 0 && time.Since(c.cachedAt) > c.config.TTL
}
