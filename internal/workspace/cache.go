// Package workspace implements the in-memory engine behind the project
// workspace: an optimistic cache over the remote store, a tool-call
// dispatcher for assistant messages, a diff-review lifecycle for proposed
// document edits, and session rehydration from flat chat history.
package workspace

import (
	"context"
	"sync"
)

// Cache is a keyed store of remote resources with mutate-then-reconcile
// semantics. The local write happens before the remote call, so readers
// see the change with zero latency; a failed remote call rolls the key
// back to its pre-mutation snapshot.
type Cache struct {
	mu       sync.Mutex
	entries  map[string]*cacheEntry
	onChange []func(key string)
}

type cacheEntry struct {
	value any
	// gen increments on every write to the key. A mutation only rolls
	// back or reconciles if no later write has landed on the key since
	// its own optimistic write; snapshots are tracked per call, never
	// globally.
	gen uint64
}

func NewCache() *Cache {
	return &Cache{entries: make(map[string]*cacheEntry)}
}

// OnChange registers a hook invoked (outside the cache lock) after any
// committed write to a key. Used for dependent re-reads such as re-sorting
// the session list after a pin change.
func (c *Cache) OnChange(hook func(key string)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onChange = append(c.onChange, hook)
}

// Read returns the cached value for key.
func (c *Cache) Read(key string) (any, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[key]
	if !ok {
		return nil, false
	}
	return e.value, true
}

// ReadAs reads key and type-asserts the value.
func ReadAs[T any](c *Cache, key string) (T, bool) {
	var zero T
	v, ok := c.Read(key)
	if !ok {
		return zero, false
	}
	t, ok := v.(T)
	if !ok {
		return zero, false
	}
	return t, true
}

// Put stores a value without any remote call, e.g. when seeding the cache
// from an initial fetch.
func (c *Cache) Put(key string, value any) {
	c.mu.Lock()
	if c.entries[key] == nil {
		c.entries[key] = &cacheEntry{}
	}
	c.entries[key].value = value
	c.entries[key].gen++
	c.mu.Unlock()
	c.notify(key)
}

// Invalidate drops a key so the next reader refetches it.
func (c *Cache) Invalidate(key string) {
	c.mu.Lock()
	delete(c.entries, key)
	c.mu.Unlock()
	c.notify(key)
}

// Mutate applies updater to the cached value immediately, then runs remote.
// On remote success the key is reconciled with the canonical value remote
// returned (when non-nil). On failure the pre-mutation snapshot is
// restored and the error returned to the caller.
//
// A mutation that finds a newer write on the key at settlement time leaves
// the key alone: the later write supersedes both its rollback and its
// reconciliation.
func (c *Cache) Mutate(ctx context.Context, key string, updater func(old any) any, remote func(ctx context.Context) (any, error)) error {
	c.mu.Lock()
	if c.entries[key] == nil {
		c.entries[key] = &cacheEntry{}
	}
	e := c.entries[key]
	snapshot := e.value
	e.value = updater(e.value)
	e.gen++
	myGen := e.gen
	c.mu.Unlock()
	c.notify(key)

	canonical, err := remote(ctx)

	c.mu.Lock()
	e, ok := c.entries[key]
	superseded := !ok || e.gen != myGen
	if err != nil {
		if !superseded {
			e.value = snapshot
			e.gen++
		}
		c.mu.Unlock()
		if !superseded {
			c.notify(key)
		}
		return err
	}
	if canonical != nil && !superseded {
		e.value = canonical
		e.gen++
	}
	c.mu.Unlock()
	if canonical != nil && !superseded {
		c.notify(key)
	}
	return nil
}

func (c *Cache) notify(key string) {
	c.mu.Lock()
	hooks := make([]func(string), len(c.onChange))
	copy(hooks, c.onChange)
	c.mu.Unlock()
	for _, hook := range hooks {
		hook(key)
	}
}
