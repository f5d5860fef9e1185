// Package common holds the pieces every version-specific NFS procedure
// handler shares: the per-call context, attribute conversion between the
// VFS's version-agnostic Attr and the wire fattr shapes, and WCC helpers
// for NFSv3/v4 mutating replies.
package common

import (
	"net"

	"github.com/blburns/simple-nfsd-sub001/internal/auth"
	"github.com/blburns/simple-nfsd-sub001/internal/cache"
	"github.com/blburns/simple-nfsd-sub001/internal/export"
	"github.com/blburns/simple-nfsd-sub001/internal/handle"
	"github.com/blburns/simple-nfsd-sub001/internal/nfserr"
	"github.com/blburns/simple-nfsd-sub001/internal/quota"
	"github.com/blburns/simple-nfsd-sub001/internal/vfs"
)

// Context carries everything a procedure handler needs beyond its own
// decoded arguments: identity, addressing, and the shared subsystems.
// Cache and Quota may be nil -- a server run with caching or quota
// enforcement disabled simply never allocates them, and Stat/Reserve fall
// straight through to the VFS when so.
type Context struct {
	ClientIP      net.IP
	ClientPort    int
	Principal     *auth.Principal
	Handles       *handle.Table
	Gate          *export.Gate
	FS            vfs.VFS
	Version       handle.Version
	WriteVerifier [8]byte
	Cache         *cache.AttrCache
	Content       *cache.ContentCache
	Quota         *quota.Table
}

// ReadContent returns cached bytes previously cached for an exact
// (path, offset) read or write, when a content cache is configured.
func (c *Context) ReadContent(path string, offset int64) ([]byte, bool) {
	if c.Content == nil {
		return nil, false
	}
	return c.Content.Get(path, offset)
}

// CacheContent stores data read from or written to (path, offset) for reuse
// by a later READ at the same offset. Failures are not fatal to the call
// that triggered them -- a cache write failure just means the next read
// misses and falls through to the VFS.
func (c *Context) CacheContent(path string, offset int64, data []byte) {
	if c.Content != nil {
		_ = c.Content.Put(path, offset, data)
	}
}

// InvalidateContent drops every cached content entry for path. Every
// procedure that changes a file's bytes calls this after the VFS write
// succeeds, so a subsequent READ never serves data a write has overtaken.
func (c *Context) InvalidateContent(path string) {
	if c.Content != nil {
		_ = c.Content.InvalidatePath(path)
	}
}

// Stat returns path's attributes, consulting the attribute cache first when
// one is configured and populating it on a cache miss.
func (c *Context) Stat(path string) (vfs.Attr, error) {
	if c.Cache != nil {
		if attr, ok := c.Cache.Get(path); ok {
			return attr, nil
		}
	}
	attr, err := c.FS.Stat(path)
	if err == nil && c.Cache != nil {
		c.Cache.Put(path, attr)
	}
	return attr, err
}

// InvalidateAttr drops any cached attributes for path. Every procedure that
// mutates a path's metadata, size, or linkage calls this after the VFS
// operation succeeds.
func (c *Context) InvalidateAttr(path string) {
	if c.Cache != nil {
		c.Cache.Invalidate(path)
	}
}

// RenameAttr moves a cached attribute entry along with the file it
// describes, so a RENAME doesn't force an extra stat under the new name.
func (c *Context) RenameAttr(oldPath, newPath string) {
	if c.Cache != nil {
		c.Cache.Rename(oldPath, newPath)
	}
}

// ReserveQuota grows the calling principal's usage under path by delta
// bytes, rejecting the call if that would exceed a configured hard limit.
// With no quota table configured, every reservation succeeds.
func (c *Context) ReserveQuota(path string, delta int64) bool {
	if c.Quota == nil || c.Principal == nil {
		return true
	}
	return c.Quota.Reserve(path, c.Principal.UID, delta)
}

// ResolveHandle decodes wire into a path, translating table errors into the
// version-appropriate NFS status. ok is false when status should be
// returned to the client without attempting the operation.
func (c *Context) ResolveHandle(v3 bool, wire []byte) (string, uint32, bool) {
	path, err := c.Handles.PathFor(c.Version, wire)
	if err == nil {
		return path, 0, true
	}
	if err == handle.ErrStale {
		return "", pick(v3, nfserr.NFS3ErrStale, nfserr.NFS4ErrStale), false
	}
	return "", pick(v3, nfserr.NFS3ErrBadHandle, nfserr.NFS4ErrBadHandle), false
}

// CheckAccess runs the export/access gate for path and returns the
// effective (possibly squashed) principal on success, or the NFS status to
// return on denial.
func (c *Context) CheckAccess(v3 bool, path string, wantWrite bool) (*export.Export, *auth.Principal, uint32, bool) {
	exp, eff, err := c.Gate.Check(c.Principal, c.ClientIP, c.ClientPort, path, wantWrite)
	if err == nil {
		return exp, eff, 0, true
	}
	denied, _ := err.(*export.Denied)
	status := pick(v3, nfserr.NFS3ErrAcces, nfserr.NFS4ErrAccess)
	if denied != nil && denied.Kind == export.KindReadOnly {
		status = pick(v3, nfserr.NFS3ErrROFS, nfserr.NFS4ErrROFS)
	}
	return nil, nil, status, false
}

// StatusFromErr maps a VFS/filesystem error to the version-appropriate NFS
// status, for use after a VFS call fails.
func StatusFromErr(v3 bool, err error) uint32 {
	return nfserr.FromPathError(v3, err)
}

func pick(v3 bool, a, b uint32) uint32 {
	if v3 {
		return a
	}
	return b
}
