// Package quota implements an in-memory quota table: a
// {path, uid, soft, hard, used} record per (path, uid), consulted on WRITE
// to reject growth past the hard limit. There is no persistence and no
// enforcement beyond this process is out of scope.
package quota

import "sync"

// Record is one quota entry. Soft is advisory (callers may warn, this
// server does not act on it); Hard of 0 means unbounded.
type Record struct {
	Path string
	UID  uint32
	Soft uint64
	Hard uint64
	Used uint64
}

type key struct {
	path string
	uid  uint32
}

// Table is a thread-safe in-memory quota store keyed by (path, uid).
type Table struct {
	mu      sync.Mutex
	records map[key]Record
}

// NewTable returns an empty quota table.
func NewTable() *Table {
	return &Table{records: make(map[key]Record)}
}

// Set installs or replaces the quota limits for (path, uid), preserving
// any usage already tracked for that key.
func (t *Table) Set(path string, uid uint32, soft, hard uint64) {
	k := key{path, uid}
	t.mu.Lock()
	defer t.mu.Unlock()
	rec := t.records[k]
	rec.Path, rec.UID, rec.Soft, rec.Hard = path, uid, soft, hard
	t.records[k] = rec
}

// Get returns the quota record for (path, uid) and whether one exists.
func (t *Table) Get(path string, uid uint32) (Record, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	rec, ok := t.records[key{path, uid}]
	return rec, ok
}

// Reserve checks whether growing usage by delta bytes would exceed the
// hard limit for (path, uid) and, if not, applies the growth. No record
// for the key means unbounded: delta is still tracked (in case a Set call
// later installs limits), but the call always succeeds.
func (t *Table) Reserve(path string, uid uint32, delta int64) bool {
	k := key{path, uid}
	t.mu.Lock()
	defer t.mu.Unlock()
	rec, ok := t.records[k]
	if !ok {
		rec = Record{Path: path, UID: uid}
	}
	newUsed := addDelta(rec.Used, delta)
	if rec.Hard != 0 && newUsed > rec.Hard {
		return false
	}
	rec.Used = newUsed
	t.records[k] = rec
	return true
}

func addDelta(used uint64, delta int64) uint64 {
	if delta < 0 {
		d := uint64(-delta)
		if d >= used {
			return 0
		}
		return used - d
	}
	return used + uint64(delta)
}

// Remove deletes the quota record for (path, uid).
func (t *Table) Remove(path string, uid uint32) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.records, key{path, uid})
}

// All returns every quota record, in no particular order.
func (t *Table) All() []Record {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]Record, 0, len(t.records))
	for _, rec := range t.records {
		out = append(out, rec)
	}
	return out
}
