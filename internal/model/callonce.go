package model

import (
	"sync"

	"github.com/blackcoderx/talon/internal/value"
)

// CallOnceCache deduplicates `callonce` results keyed by the verbatim
// call text, scoped to one feature's lifetime.
// Lookups take a fast path under the read lock; a miss falls through to a
// double-checked path under the lock so the computation (the called
// scenario's execution) runs at most once per key.
type CallOnceCache struct {
	mu      sync.RWMutex
	entries map[string]value.Value
}

func NewCallOnceCache() *CallOnceCache {
	return &CallOnceCache{entries: make(map[string]value.Value)}
}

// GetOrCompute returns a deep copy of the cached result for key, calling
// compute to populate the cache on a miss. compute runs with the cache's
// write lock held, so concurrent callers for the same key block on the
// first computation rather than racing to run it twice. The cached
// result may be a map (single call) or a list of maps (loop call).
func (c *CallOnceCache) GetOrCompute(key string, compute func() (value.Value, error)) (value.Value, error) {
	c.mu.RLock()
	if v, ok := c.entries[key]; ok {
		c.mu.RUnlock()
		return v.DeepCopy(), nil
	}
	c.mu.RUnlock()

	c.mu.Lock()
	defer c.mu.Unlock()
	if v, ok := c.entries[key]; ok {
		return v.DeepCopy(), nil
	}
	result, err := compute()
	if err != nil {
		return value.Null(), err
	}
	c.entries[key] = result.DeepCopy()
	return result.DeepCopy(), nil
}
