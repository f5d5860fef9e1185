package cache

import (
	"fmt"
	"sync/atomic"
	"time"

	badger "github.com/dgraph-io/badger/v4"
)

// ContentTTL is the lifetime of a cached READ/WRITE payload before badger
// expires the key on its own; entries self-expire.
const ContentTTL = 60 * time.Second

// DefaultMaxEntries bounds the cache when no explicit size is configured.
const DefaultMaxEntries = 1024

// ContentCache caches recently read or written file data keyed by
// "path\x00offset", backed by an embedded badger store so expiry is
// badger's native per-key TTL rather than a hand-rolled sweep goroutine.
// Size is bounded by maxEntries: once reached, further Puts are dropped
// rather than evicting -- the existing entries simply age out via TTL to
// make room, so a hot working set that fits within maxEntries never thrashes.
type ContentCache struct {
	db         *badger.DB
	ttl        time.Duration
	maxEntries int64
	count      int64
}

// OpenContentCache opens (creating if absent) a badger database at dir,
// holding at most maxEntries live entries (DefaultMaxEntries if <= 0).
// An empty dir opens badger's in-memory mode, useful for tests and for a
// server run with content caching enabled but no dedicated cache volume.
func OpenContentCache(dir string, ttl time.Duration, maxEntries int) (*ContentCache, error) {
	if ttl <= 0 {
		ttl = ContentTTL
	}
	if maxEntries <= 0 {
		maxEntries = DefaultMaxEntries
	}
	opts := badger.DefaultOptions(dir).WithLogger(nil)
	if dir == "" {
		opts = opts.WithInMemory(true)
	}
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("cache: open badger: %w", err)
	}
	return &ContentCache{db: db, ttl: ttl, maxEntries: int64(maxEntries)}, nil
}

// Close releases the underlying badger database.
func (c *ContentCache) Close() error {
	return c.db.Close()
}

func contentKey(path string, offset int64) []byte {
	return []byte(fmt.Sprintf("%s\x00%d", path, offset))
}

// Get returns the cached bytes for (path, offset) and true, or nil/false if
// absent or already expired -- badger itself enforces the TTL, so a miss
// here is indistinguishable from one that aged out.
func (c *ContentCache) Get(path string, offset int64) ([]byte, bool) {
	var data []byte
	err := c.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(contentKey(path, offset))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			data = append([]byte(nil), val...)
			return nil
		})
	})
	if err != nil {
		return nil, false
	}
	return data, true
}

// Put stores data for (path, offset), expiring after the cache's TTL. Once
// the cache holds maxEntries live entries, further Puts for new keys are
// silently dropped; an update to an already-cached key always succeeds.
func (c *ContentCache) Put(path string, offset int64, data []byte) error {
	key := contentKey(path, offset)
	return c.db.Update(func(txn *badger.Txn) error {
		_, err := txn.Get(key)
		isNew := err == badger.ErrKeyNotFound
		if isNew && atomic.LoadInt64(&c.count) >= c.maxEntries {
			// The counter still includes keys badger has since expired;
			// recount the live keys before refusing the new one.
			it := txn.NewIterator(badger.IteratorOptions{})
			var live int64
			for it.Rewind(); it.Valid(); it.Next() {
				live++
			}
			it.Close()
			atomic.StoreInt64(&c.count, live)
			if live >= c.maxEntries {
				return nil
			}
		}
		entry := badger.NewEntry(key, data).WithTTL(c.ttl)
		if err := txn.SetEntry(entry); err != nil {
			return err
		}
		if isNew {
			atomic.AddInt64(&c.count, 1)
		}
		return nil
	})
}

// Len reports the number of entries Put has admitted. It can include
// entries that have since expired until a Put at capacity recounts the live
// keys -- badger's own TTL, not this counter, is authoritative for what a Get
// actually returns.
func (c *ContentCache) Len() int {
	return int(atomic.LoadInt64(&c.count))
}

// InvalidatePath drops every cached entry for path, regardless of offset --
// called after a WRITE so a subsequent READ never serves data some other
// write has since overtaken at an overlapping offset.
func (c *ContentCache) InvalidatePath(path string) error {
	prefix := []byte(path + "\x00")
	return c.db.Update(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		var keys [][]byte
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			keys = append(keys, it.Item().KeyCopy(nil))
		}
		it.Close()
		for _, k := range keys {
			if err := txn.Delete(k); err != nil {
				return err
			}
			atomic.AddInt64(&c.count, -1)
		}
		return nil
	})
}
