package vm

import (
	"sync"
	"weak"
)

// CompilationCache maps functions to optimized code produced for them.
// Keys are weak, so the cache never keeps a function alive; Prune drops
// entries whose function was reclaimed.
type CompilationCache struct {
	mu      sync.RWMutex
	entries map[weak.Pointer[FunctionInfo]]*Code
}

// NewCompilationCache creates an empty cache.
func NewCompilationCache() *CompilationCache {
	return &CompilationCache{entries: make(map[weak.Pointer[FunctionInfo]]*Code)}
}

// Insert caches code for fi and sets fi's cached-code hint.
func (c *CompilationCache) Insert(fi *FunctionInfo, code *Code) {
	c.mu.Lock()
	c.entries[weak.Make(fi)] = code
	c.mu.Unlock()
	fi.SetMayHaveCachedCode(true)
}

// Lookup returns the cached code for fi.
func (c *CompilationCache) Lookup(fi *FunctionInfo) (*Code, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	code, ok := c.entries[weak.Make(fi)]
	return code, ok
}

// Remove drops fi's entry and clears its hint.
func (c *CompilationCache) Remove(fi *FunctionInfo) {
	c.mu.Lock()
	delete(c.entries, weak.Make(fi))
	c.mu.Unlock()
	fi.SetMayHaveCachedCode(false)
}

// Len returns the number of entries, live or not.
func (c *CompilationCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// Prune removes entries whose function was reclaimed and returns how many
// it removed.
func (c *CompilationCache) Prune() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for k := range c.entries {
		if k.Value() == nil {
			delete(c.entries, k)
			n++
		}
	}
	return n
}
