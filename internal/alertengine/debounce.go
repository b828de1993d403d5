package alertengine

import (
	"sync"
	"time"
)

// debounceCache matches the original's HIGH_FREQ_DEBOUNCE_CACHE /
// DEBOUNCE_WINDOW_SECONDS: a short wall-clock window keyed by host:type.
// processFailure consults it before touching the state store at all — a
// key inside the window is a duplicate burst and gets only a low-cost
// duplicate notice. It is independent of the PERSISTING classification,
// which is silent regardless of timing once the pre-check has passed.
type debounceCache struct {
	mu     sync.Mutex
	window time.Duration
	seen   map[string]time.Time
	nowFn  func() time.Time
}

func newDebounceCache(window time.Duration) *debounceCache {
	return &debounceCache{
		window: window,
		seen:   make(map[string]time.Time),
		nowFn:  time.Now,
	}
}

// allow reports whether a dispatch for key should proceed, recording the
// time only when it returns true. A second call for the same key within the
// window returns false. Stale entries are evicted lazily on allowed calls.
func (c *debounceCache) allow(key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.nowFn()
	if last, ok := c.seen[key]; ok && now.Sub(last) < c.window {
		return false
	}
	c.seen[key] = now
	c.evictLocked(now)
	return true
}

// peek reports whether key is currently within the debounce window, without
// marking it seen. Used by the failure pre-check (§4.G), which must decide
// duplicate-vs-fresh *before* touching the state store, independent of
// whether the eventual transition is one that sets the cache.
func (c *debounceCache) peek(key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.nowFn()
	last, ok := c.seen[key]
	if !ok {
		return false
	}
	if now.Sub(last) >= c.window {
		delete(c.seen, key)
		return false
	}
	return true
}

// set records key as seen at the current time, (re)starting its window.
func (c *debounceCache) set(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.nowFn()
	c.seen[key] = now
	c.evictLocked(now)
}

func (c *debounceCache) evictLocked(now time.Time) {
	for k, t := range c.seen {
		if now.Sub(t) >= c.window {
			delete(c.seen, k)
		}
	}
}
