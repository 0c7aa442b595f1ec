package vm

// Entry caching for call sites
//
// A call site that calls through a FunctionInfo remembers the entry point
// it resolved last time. Entries are keyed by the record and validated
// against the payload cell that produced them, so installing a new payload
// (compiling, discarding, instantiating a module) invalidates every cached
// entry for that record without touching the caches.

// EntryCacheState represents the current state of an entry cache.
type EntryCacheState uint8

const (
	EntryCacheEmpty       EntryCacheState = iota // Nothing cached yet
	EntryCacheMonomorphic                        // One record cached
	EntryCachePolymorphic                        // 2..MaxEntryCacheEntries records
	EntryCacheMegamorphic                        // Too many records, always resolve
)

func (s EntryCacheState) String() string {
	switch s {
	case EntryCacheEmpty:
		return "empty"
	case EntryCacheMonomorphic:
		return "monomorphic"
	case EntryCachePolymorphic:
		return "polymorphic"
	case EntryCacheMegamorphic:
		return "megamorphic"
	}
	return "unknown"
}

// MaxEntryCacheEntries is the polymorphic cache capacity.
const MaxEntryCacheEntries = 4

type entryCacheEntry struct {
	fn   *FunctionInfo
	cell *payloadCell
	code *Code
}

// EntryCache is the per-call-site cache. It is owned by one call site and
// not safe for concurrent use.
type EntryCache struct {
	State   EntryCacheState
	entries [MaxEntryCacheEntries]entryCacheEntry
	count   int

	Hits   uint64
	Misses uint64
}

// EntryPoint returns the entry point for fi, from the cache when the cached
// entry was resolved against fi's current payload.
func (c *EntryCache) EntryPoint(fi *FunctionInfo) *Code {
	cell := fi.payload.Load()
	for i := 0; i < c.count; i++ {
		e := &c.entries[i]
		if e.fn != fi {
			continue
		}
		if e.cell == cell {
			c.Hits++
			return e.code
		}
		// Payload changed since this entry was filled.
		c.Misses++
		e.cell = cell
		e.code = FastEntryPoint(fi.iso.Builtins, cell.p)
		return e.code
	}

	c.Misses++
	code := FastEntryPoint(fi.iso.Builtins, cell.p)
	c.update(fi, cell, code)
	return code
}

func (c *EntryCache) update(fi *FunctionInfo, cell *payloadCell, code *Code) {
	switch c.State {
	case EntryCacheEmpty:
		c.State = EntryCacheMonomorphic
		c.entries[0] = entryCacheEntry{fn: fi, cell: cell, code: code}
		c.count = 1

	case EntryCacheMonomorphic, EntryCachePolymorphic:
		if c.count < MaxEntryCacheEntries {
			c.entries[c.count] = entryCacheEntry{fn: fi, cell: cell, code: code}
			c.count++
			c.State = EntryCachePolymorphic
			return
		}
		c.State = EntryCacheMegamorphic
		for i := range c.entries {
			c.entries[i] = entryCacheEntry{}
		}
		c.count = 0

	case EntryCacheMegamorphic:
	}
}

// HitRate returns the hit rate as a percentage (0-100).
func (c *EntryCache) HitRate() float64 {
	total := c.Hits + c.Misses
	if total == 0 {
		return 0
	}
	return float64(c.Hits) * 100 / float64(total)
}

// Reset clears the cache back to the empty state.
func (c *EntryCache) Reset() {
	*c = EntryCache{}
}
