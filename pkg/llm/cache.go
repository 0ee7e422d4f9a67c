package llm

import (
	"crypto/sha256"
	"encoding/hex"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/go-kratos/kratos/v2/log"
)

// fallbackKeySeed is hashed in place of a missing prompt so a contract error
// degrades to a shared cache slot instead of a crash.
const fallbackKeySeed = "invalid:empty-prompt"

// cacheEntry is one cached invocation result.
type cacheEntry struct {
	value     ResponseResult
	expiresAt time.Time
}

// pendingComputation is the exclusive per-key computation guard. At most one
// in-flight computation exists per key; callers for the same key block on the
// mutex and then find the stored entry instead of recomputing.
type pendingComputation struct {
	mu sync.Mutex
}

// ResponseCache is a time-bounded, size-bounded, key-deduplicating cache in
// front of the retrying invoker. Concurrent identical requests are serialized
// per key ("thundering herd" protection) while unrelated keys never block each
// other: the structural lock is only held for map access, never across a
// computation.
type ResponseCache struct {
	ttl        time.Duration
	maxEntries int

	// mu guards structural mutation of both maps. Computation exclusivity is
	// per-key via the guards.
	mu      sync.RWMutex
	entries map[string]*cacheEntry
	guards  map[string]*pendingComputation

	logger *log.Helper
}

// NewResponseCache creates a cache with the given TTL and entry cap.
func NewResponseCache(ttl time.Duration, maxEntries int, logger log.Logger) *ResponseCache {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	if maxEntries <= 0 {
		maxEntries = 1000
	}

	return &ResponseCache{
		ttl:        ttl,
		maxEntries: maxEntries,
		entries:    make(map[string]*cacheEntry),
		guards:     make(map[string]*pendingComputation),
		logger:     log.NewHelper(logger),
	}
}

// Key derives a deterministic cache key from the normalized prompt plus the
// effective provider/model identity and any extra interpolated fields.
// A missing prompt produces a stable fallback key with a warning rather than
// an error, keeping the conversation alive over strict input validation.
func (c *ResponseCache) Key(providerName, model, prompt string, extra ...string) string {
	normalized := strings.TrimSpace(prompt)
	if normalized == "" {
		c.logger.Warnw("msg", "cache key requested for empty prompt, using fallback key", "type", "cache")
		normalized = fallbackKeySeed
	}

	h := sha256.New()
	h.Write([]byte(providerName))
	h.Write([]byte{0x1f})
	h.Write([]byte(model))
	h.Write([]byte{0x1f})
	h.Write([]byte(normalized))
	for _, e := range extra {
		h.Write([]byte{0x1f})
		h.Write([]byte(e))
	}

	return hex.EncodeToString(h.Sum(nil))
}

// GetOrCompute returns the live cached value for key, or runs compute exactly
// once among all concurrent callers of that key and caches its result.
func (c *ResponseCache) GetOrCompute(key string, compute func() ResponseResult) ResponseResult {
	// Fast path: a live entry is served without touching any exclusive guard.
	if v, ok := c.lookup(key); ok {
		return v
	}

	// Slow path: acquire the per-key guard, creating it if absent.
	guard := c.guard(key)
	guard.mu.Lock()
	defer guard.mu.Unlock()

	// Re-check under the guard: another caller may have populated the entry
	// while this one waited.
	if v, ok := c.lookup(key); ok {
		return v
	}

	value := compute()

	c.mu.Lock()
	c.entries[key] = &cacheEntry{
		value:     value,
		expiresAt: time.Now().Add(c.ttl),
	}
	c.evictLocked()
	c.mu.Unlock()

	return value
}

// lookup returns the entry for key if present and not expired.
func (c *ResponseCache) lookup(key string) (ResponseResult, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	entry, ok := c.entries[key]
	if !ok || time.Now().After(entry.expiresAt) {
		return ResponseResult{}, false
	}
	return entry.value, true
}

// guard returns the pending-computation guard for key, creating it lazily.
func (c *ResponseCache) guard(key string) *pendingComputation {
	c.mu.Lock()
	defer c.mu.Unlock()

	g, ok := c.guards[key]
	if !ok {
		g = &pendingComputation{}
		c.guards[key] = g
	}
	return g
}

// evictLocked removes the soonest-expiring entries until the cache is back
// under its cap. An evicted entry's guard is discarded too when idle, so the
// guard map cannot grow unboundedly. Caller must hold c.mu.
func (c *ResponseCache) evictLocked() {
	if len(c.entries) <= c.maxEntries {
		return
	}

	type keyed struct {
		key       string
		expiresAt time.Time
	}
	all := make([]keyed, 0, len(c.entries))
	for k, e := range c.entries {
		all = append(all, keyed{key: k, expiresAt: e.expiresAt})
	}
	sort.Slice(all, func(i, j int) bool { return all[i].expiresAt.Before(all[j].expiresAt) })

	evicted := 0
	for _, ke := range all {
		if len(c.entries) <= c.maxEntries {
			break
		}
		delete(c.entries, ke.key)
		c.dropIdleGuardLocked(ke.key)
		evicted++
	}

	c.logger.Debugw("msg", "cache capacity eviction",
		"type", "cache",
		"evicted", evicted,
		"size", len(c.entries))
}

// dropIdleGuardLocked removes the guard for key if no computation holds it.
func (c *ResponseCache) dropIdleGuardLocked(key string) {
	g, ok := c.guards[key]
	if !ok {
		return
	}
	if g.mu.TryLock() {
		g.mu.Unlock()
		delete(c.guards, key)
	}
}

// SweepExpired removes all expired entries and their idle guards. Called
// periodically by the maintenance cron. Returns the number removed.
func (c *ResponseCache) SweepExpired() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := time.Now()
	removed := 0
	for k, e := range c.entries {
		if now.After(e.expiresAt) {
			delete(c.entries, k)
			c.dropIdleGuardLocked(k)
			removed++
		}
	}

	// Guards left over from computations that never stored an entry (or whose
	// entry already expired) are reclaimed in the same pass.
	for k, g := range c.guards {
		if _, live := c.entries[k]; live {
			continue
		}
		if g.mu.TryLock() {
			g.mu.Unlock()
			delete(c.guards, k)
		}
	}

	return removed
}

// Len returns the current number of cached entries.
func (c *ResponseCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}
