package engine

// EvalCache memoizes raw NNUE evaluations by zobrist key. Each thread owns
// one, so there is no synchronization; a stale or torn entry is impossible.
type EvalCache struct {
	entries []evalCacheEntry
	mask    uint64
}

type evalCacheEntry struct {
	key  uint64
	eval int32
	ok   bool
}

const evalCacheEntries = 1 << 17

// NewEvalCache allocates the fixed-size cache.
func NewEvalCache() *EvalCache {
	return &EvalCache{
		entries: make([]evalCacheEntry, evalCacheEntries),
		mask:    evalCacheEntries - 1,
	}
}

// Probe returns the cached evaluation for the key, if present.
func (c *EvalCache) Probe(key uint64) (int, bool) {
	e := &c.entries[key&c.mask]
	if e.ok && e.key == key {
		return int(e.eval), true
	}
	return 0, false
}

// Store records an evaluation, always replacing.
func (c *EvalCache) Store(key uint64, eval int) {
	c.entries[key&c.mask] = evalCacheEntry{key: key, eval: int32(eval), ok: true}
}

// Clear wipes the cache, for ucinewgame.
func (c *EvalCache) Clear() {
	for i := range c.entries {
		c.entries[i] = evalCacheEntry{}
	}
}
