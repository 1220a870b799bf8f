package bridge

import (
	"sync"

	"spacebot/internal/spaceapi"
)

// Cache holds the last observed state.
type Cache struct {
	mu    sync.Mutex
	state spaceapi.State
}

func NewCache(seed spaceapi.State) *Cache {
	return &Cache{state: seed.Clone()}
}

// Evaluate stores next if it differs from the cached state and reports
// whether it did. The lock covers only the compare-and-replace.
func (c *Cache) Evaluate(next spaceapi.State) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state.Equal(next) {
		return false
	}
	c.state = next.Clone()
	return true
}

func (c *Cache) Current() spaceapi.State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state.Clone()
}
