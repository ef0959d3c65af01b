package httpbase

import "sync"

// DefaultMaxIdle is the number of released handles a HandleCache keeps.
const DefaultMaxIdle = 4

// HandleCache is a free list of reusable handles. A handle taken with
// Acquire belongs to exactly one caller until it is released, so
// concurrent calls never share one.
type HandleCache[H any] struct {
	mu      sync.Mutex
	free    []H
	evictFn func(H)
	maxIdle int
}

// NewHandleCache returns an empty cache. evictFn, if non-nil, is called
// for handles dropped because the cache is full or closed.
func NewHandleCache[H any](evictFn func(H)) *HandleCache[H] {
	return &HandleCache[H]{
		evictFn: evictFn,
		maxIdle: DefaultMaxIdle,
	}
}

// Acquire takes an idle handle. ok is false when none is idle and the
// caller must create one.
func (c *HandleCache[H]) Acquire() (h H, ok bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	n := len(c.free)
	if n == 0 {
		return h, false
	}

	h = c.free[n-1]
	var zero H
	c.free[n-1] = zero
	c.free = c.free[:n-1]

	return h, true
}

// Release returns h to the cache.
func (c *HandleCache[H]) Release(h H) {
	c.mu.Lock()
	if len(c.free) < c.maxIdle {
		c.free = append(c.free, h)
		c.mu.Unlock()
		return
	}
	c.mu.Unlock()

	if c.evictFn != nil {
		c.evictFn(h)
	}
}

// Idle returns the number of handles waiting to be reused.
func (c *HandleCache[H]) Idle() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.free)
}

// Close evicts every idle handle.
func (c *HandleCache[H]) Close() {
	c.mu.Lock()
	free := c.free
	c.free = nil
	c.mu.Unlock()

	if c.evictFn == nil {
		return
	}
	for _, h := range free {
		c.evictFn(h)
	}
}
