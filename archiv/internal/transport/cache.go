package transport

import (
	"errors"
	"sync"

	"golang.org/x/sync/singleflight"
)

// RunCache holds the results of one acquisition run, keyed by method and
// normalized locator. Create one per run and Close it when the run ends.
// Cached bodies are shared between consumers and must not be modified.
type RunCache struct {
	mu      sync.Mutex
	entries map[string]cacheEntry
	group   singleflight.Group
}

type cacheEntry struct {
	resp *Response
	err  error
}

// NewRunCache creates an empty run-scoped cache.
func NewRunCache() *RunCache {
	return &RunCache{entries: make(map[string]cacheEntry)}
}

func (c *RunCache) lookup(key string) (*Response, error, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[key]
	return e.resp, e.err, ok
}

// store keeps successes and permanent failures. Transient failures and
// cancellations are not remembered so a later consumer may try again.
func (c *RunCache) store(key string, resp *Response, err error) {
	if err != nil {
		var pe *PermanentError
		if !errors.As(err, &pe) {
			return
		}
	}
	c.mu.Lock()
	c.entries[key] = cacheEntry{resp: resp, err: err}
	c.mu.Unlock()
}

// Len returns the number of cached results.
func (c *RunCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// Close drops every entry.
func (c *RunCache) Close() {
	c.mu.Lock()
	c.entries = make(map[string]cacheEntry)
	c.mu.Unlock()
}
