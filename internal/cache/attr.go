// Package cache provides the server-wide attribute cache and the
// badger-backed content cache.
package cache

import (
	"sync"
	"time"

	"github.com/blburns/simple-nfsd-sub001/internal/vfs"
)

// AttrTTL is the lifetime of a cached attribute entry before a GETATTR must
// re-stat the underlying file.
const AttrTTL = 30 * time.Second

type attrEntry struct {
	attr     vfs.Attr
	cachedAt time.Time
}

// AttrCache holds the most recently observed vfs.Attr for a path, keyed by
// its canonical path, so repeated GETATTRs on a hot file skip the stat
// syscall until the entry ages out or a mutation on this server invalidates
// it directly.
type AttrCache struct {
	mu      sync.Mutex
	entries map[string]attrEntry
	ttl     time.Duration
}

// NewAttrCache returns an empty cache using ttl (AttrTTL if ttl <= 0).
func NewAttrCache(ttl time.Duration) *AttrCache {
	if ttl <= 0 {
		ttl = AttrTTL
	}
	return &AttrCache{entries: make(map[string]attrEntry), ttl: ttl}
}

// Get returns the cached attributes for path and true, or zero/false if
// absent or expired. An expired entry is dropped on the way out.
func (c *AttrCache) Get(path string) (vfs.Attr, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[path]
	if !ok {
		return vfs.Attr{}, false
	}
	if time.Since(e.cachedAt) > c.ttl {
		delete(c.entries, path)
		return vfs.Attr{}, false
	}
	return e.attr, true
}

// Put records attr for path.
func (c *AttrCache) Put(path string, attr vfs.Attr) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[path] = attrEntry{attr: attr, cachedAt: time.Now()}
}

// Invalidate drops any cached entry for path -- called after any mutation
// of that path through this server (SETATTR, WRITE, CREATE, REMOVE, ...).
func (c *AttrCache) Invalidate(path string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, path)
}

// Rename moves a cached entry from oldPath to newPath, if present, so a
// RENAME doesn't force an extra stat on the next GETATTR of the new name.
func (c *AttrCache) Rename(oldPath, newPath string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[oldPath]
	delete(c.entries, oldPath)
	if ok {
		c.entries[newPath] = e
	} else {
		delete(c.entries, newPath)
	}
}

// Len reports the number of live (not necessarily unexpired) entries, for
// the cache_size metric.
func (c *AttrCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}
