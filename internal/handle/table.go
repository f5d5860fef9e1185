// Package handle implements the file-handle table: a
// bidirectional, concurrency-safe mapping between stable opaque handle
// bytes and filesystem paths. Handles never encode the path in cleartext;
// they carry only a monotonic server-assigned id, so a client can never
// forge a handle for a path it was never issued.
package handle

import (
	"encoding/binary"
	"sync"
)

// Version selects the on-wire handle encoding. Layouts are frozen bit-exact
// across NFSv2/v3/v4.
type Version int

const (
	V2 Version = iota
	V3
	V4
)

const (
	v2Size = 32
	v3Size = 64
	// v4 body (unpadded) is version_tag(4) + id(8) + reserved(16) = 28 bytes.
	v4BodySize = 28
)

// ErrStale is returned by PathFor when the handle decodes structurally but
// its id is not (or no longer) present in the table.
var ErrStale = staleError{}

type staleError struct{}

func (staleError) Error() string { return "handle: stale file handle" }

// ErrMalformed is returned by PathFor when the handle bytes cannot even be
// parsed as a handle of the requested version (a non-32/64 byte NFSv2/v3
// handle, a too-short NFSv4 body, or an unrecognized NFSv4 version tag).
var ErrMalformed = malformedError{}

type malformedError struct{}

func (malformedError) Error() string { return "handle: malformed file handle" }

// Table is the bidirectional path<->id map. It is safe for concurrent use;
// every operation holds the lock only across the map mutation, never across
// I/O.
type Table struct {
	mu      sync.RWMutex
	byPath  map[string]uint64
	byID    map[uint64]string
	nextID  uint64
}

// NewTable returns an empty handle table. Id 0 is never assigned so that a
// zero-valued handle is always recognizably invalid.
func NewTable() *Table {
	return &Table{
		byPath: make(map[string]uint64),
		byID:   make(map[uint64]string),
		nextID: 1,
	}
}

// IDFor returns the stable numeric id for path, assigning a fresh one on
// first use. Handle creation is idempotent: repeated calls for the same
// path within a process return the same id.
func (t *Table) IDFor(path string) uint64 {
	t.mu.RLock()
	if id, ok := t.byPath[path]; ok {
		t.mu.RUnlock()
		return id
	}
	t.mu.RUnlock()

	t.mu.Lock()
	defer t.mu.Unlock()
	if id, ok := t.byPath[path]; ok {
		return id
	}
	id := t.nextID
	t.nextID++
	t.byPath[path] = id
	t.byID[id] = path
	return id
}

// PathForID returns the path for a previously issued id, or ("", false) if
// the id was never issued or has been forgotten (deleted paths are
// never recycled, they report STALE on subsequent lookups, which Forget
// implements by removing the byID entry while intentionally leaving the
// byPath entry absent so a fresh handle_for() on a recreated path mints a
// new id rather than resurrecting the old one).
func (t *Table) PathForID(id uint64) (string, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	p, ok := t.byID[id]
	return p, ok
}

// Forget removes path's handle, so future operations against its old handle
// bytes observe STALE. It does not reassign the id; per spec, ids are never
// recycled within a process lifetime.
func (t *Table) Forget(path string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	id, ok := t.byPath[path]
	if !ok {
		return
	}
	delete(t.byPath, path)
	delete(t.byID, id)
}

// Rename moves the handle registered for oldPath (if any) to newPath,
// preserving its id so in-flight clients holding the old handle continue to
// resolve to the renamed file rather than going STALE.
func (t *Table) Rename(oldPath, newPath string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	id, ok := t.byPath[oldPath]
	if !ok {
		return
	}
	delete(t.byPath, oldPath)
	t.byPath[newPath] = id
	t.byID[id] = newPath
}

// Encode renders id as the wire bytes for the given protocol version.
func Encode(v Version, id uint64) []byte {
	switch v {
	case V2:
		b := make([]byte, v2Size)
		binary.BigEndian.PutUint32(b[0:4], uint32(id))
		return b
	case V3:
		b := make([]byte, v3Size)
		binary.BigEndian.PutUint64(b[0:8], id)
		return b
	default: // V4
		b := make([]byte, v4BodySize)
		binary.BigEndian.PutUint32(b[0:4], 1) // version_tag
		binary.BigEndian.PutUint64(b[4:12], id)
		return b // bytes [12:28) remain zero (reserved)
	}
}

// Decode parses wire bytes of the given version back into an id. It returns
// ErrStale for a zero-length NFSv4 handle (a client presenting an empty
// filehandle after that file was removed elsewhere, not a malformed one --
// RFC 7530's "handle of length 0 is stale" boundary case), ErrMalformed for
// any other structurally invalid input (wrong length, unknown version tag).
func Decode(v Version, wire []byte) (uint64, error) {
	switch v {
	case V2:
		if len(wire) != v2Size {
			return 0, ErrMalformed
		}
		return uint64(binary.BigEndian.Uint32(wire[0:4])), nil
	case V3:
		if len(wire) != v3Size {
			return 0, ErrMalformed
		}
		return binary.BigEndian.Uint64(wire[0:8]), nil
	default: // V4
		if len(wire) == 0 {
			return 0, ErrStale
		}
		if len(wire) < v4BodySize {
			return 0, ErrMalformed
		}
		tag := binary.BigEndian.Uint32(wire[0:4])
		if tag != 1 {
			return 0, ErrMalformed
		}
		return binary.BigEndian.Uint64(wire[4:12]), nil
	}
}

// HandleFor returns the canonical wire handle for path under version v,
// minting a fresh id on first use.
func (t *Table) HandleFor(v Version, path string) []byte {
	return Encode(v, t.IDFor(path))
}

// PathFor decodes wire and resolves it to a path. It returns ErrMalformed
// for structurally bad input and ErrStale for a well-formed but unknown (or
// forgotten) id -- the table never returns a path for a handle this process
// did not itself mint.
func (t *Table) PathFor(v Version, wire []byte) (string, error) {
	id, err := Decode(v, wire)
	if err != nil {
		return "", err
	}
	p, ok := t.PathForID(id)
	if !ok {
		return "", ErrStale
	}
	return p, nil
}
