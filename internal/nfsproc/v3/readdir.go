package v3

import (
	"bytes"
	"encoding/binary"

	"github.com/blburns/simple-nfsd-sub001/internal/nfserr"
	"github.com/blburns/simple-nfsd-sub001/internal/nfsproc/common"
	"github.com/blburns/simple-nfsd-sub001/internal/vfs"
	"github.com/blburns/simple-nfsd-sub001/internal/xdr"
)

// dirVerifier derives an 8-byte cookieverf from the directory's mtime, so a
// verifier presented against an unmodified directory always matches and one
// presented after a modification never does (RFC 1813 §3.3.16).
func dirVerifier(attr vfs.Attr) [8]byte {
	var v [8]byte
	binary.BigEndian.PutUint64(v[:], uint64(attr.Mtime.UnixNano()))
	return v
}

// handleReaddir implements NFSPROC3_READDIR.
func handleReaddir(ctx *common.Context, args []byte) ([]byte, error) {
	r := bytes.NewReader(args)
	handle, err := xdr.GetOpaque(r)
	if err != nil {
		return statusOnly(nfserr.NFS3ErrInval)
	}
	cookie, err := xdr.GetUint64(r)
	if err != nil {
		return statusOnly(nfserr.NFS3ErrInval)
	}
	clientVerf, err := xdr.GetFixedOpaque(r, 8)
	if err != nil {
		return statusOnly(nfserr.NFS3ErrInval)
	}
	count, err := xdr.GetUint32(r)
	if err != nil {
		return statusOnly(nfserr.NFS3ErrInval)
	}

	path, status, ok := ctx.ResolveHandle(true, handle)
	if !ok {
		return statusOnly(status)
	}
	if _, _, status, ok := ctx.CheckAccess(true, path, false); !ok {
		return statusOnly(status)
	}

	attr, err := ctx.FS.Stat(path)
	if err != nil {
		return statusOnly(common.StatusFromErr(true, err))
	}
	verf := dirVerifier(attr)
	if cookie != 0 && !bytes.Equal(clientVerf, verf[:]) {
		return statusOnly(nfserr.NFS3ErrBadCookie)
	}

	maxEntries := int(count / 32)
	if maxEntries < 1 {
		maxEntries = 1
	}
	entries, eof, err := ctx.FS.Readdir(path, cookie, maxEntries)
	if err != nil {
		return statusOnly(nfserr.NFS3ErrBadCookie)
	}

	buf := new(bytes.Buffer)
	if e := xdr.PutUint32(buf, nfserr.NFS3OK); e != nil {
		return nil, e
	}
	if e := common.PutPostOpAttr(buf, &attr); e != nil {
		return nil, e
	}
	if e := xdr.PutFixedOpaque(buf, verf[:]); e != nil {
		return nil, e
	}
	for _, ent := range entries {
		if e := xdr.PutBool(buf, true); e != nil { // value_follows
			return nil, e
		}
		if e := xdr.PutUint64(buf, ent.Fileid); e != nil {
			return nil, e
		}
		if e := xdr.PutString(buf, ent.Name); e != nil {
			return nil, e
		}
		if e := xdr.PutUint64(buf, ent.Cookie); e != nil {
			return nil, e
		}
	}
	if e := xdr.PutBool(buf, false); e != nil { // end of list
		return nil, e
	}
	if e := xdr.PutBool(buf, eof); e != nil {
		return nil, e
	}
	return buf.Bytes(), nil
}

// handleReaddirplus implements NFSPROC3_READDIRPLUS, adding per-entry
// attributes and handles to the READDIR stream.
func handleReaddirplus(ctx *common.Context, args []byte) ([]byte, error) {
	r := bytes.NewReader(args)
	handle, err := xdr.GetOpaque(r)
	if err != nil {
		return statusOnly(nfserr.NFS3ErrInval)
	}
	cookie, err := xdr.GetUint64(r)
	if err != nil {
		return statusOnly(nfserr.NFS3ErrInval)
	}
	clientVerf, err := xdr.GetFixedOpaque(r, 8)
	if err != nil {
		return statusOnly(nfserr.NFS3ErrInval)
	}
	if _, err := xdr.GetUint32(r); err != nil { // dircount
		return statusOnly(nfserr.NFS3ErrInval)
	}
	maxcount, err := xdr.GetUint32(r)
	if err != nil {
		return statusOnly(nfserr.NFS3ErrInval)
	}

	path, status, ok := ctx.ResolveHandle(true, handle)
	if !ok {
		return statusOnly(status)
	}
	if _, _, status, ok := ctx.CheckAccess(true, path, false); !ok {
		return statusOnly(status)
	}

	attr, err := ctx.FS.Stat(path)
	if err != nil {
		return statusOnly(common.StatusFromErr(true, err))
	}
	verf := dirVerifier(attr)
	if cookie != 0 && !bytes.Equal(clientVerf, verf[:]) {
		return statusOnly(nfserr.NFS3ErrBadCookie)
	}

	maxEntries := int(maxcount / 128)
	if maxEntries < 1 {
		maxEntries = 1
	}
	entries, eof, err := ctx.FS.Readdir(path, cookie, maxEntries)
	if err != nil {
		return statusOnly(nfserr.NFS3ErrBadCookie)
	}

	buf := new(bytes.Buffer)
	if e := xdr.PutUint32(buf, nfserr.NFS3OK); e != nil {
		return nil, e
	}
	if e := common.PutPostOpAttr(buf, &attr); e != nil {
		return nil, e
	}
	if e := xdr.PutFixedOpaque(buf, verf[:]); e != nil {
		return nil, e
	}
	for _, ent := range entries {
		if e := xdr.PutBool(buf, true); e != nil {
			return nil, e
		}
		if e := xdr.PutUint64(buf, ent.Fileid); e != nil {
			return nil, e
		}
		if e := xdr.PutString(buf, ent.Name); e != nil {
			return nil, e
		}
		if e := xdr.PutUint64(buf, ent.Cookie); e != nil {
			return nil, e
		}

		childAttr, childErr := ctx.FS.Stat(childPathOf(path, ent.Name))
		if childErr == nil {
			if e := common.PutPostOpAttr(buf, &childAttr); e != nil {
				return nil, e
			}
			childHandle := ctx.Handles.HandleFor(ctx.Version, childPathOf(path, ent.Name))
			if e := xdr.PutBool(buf, true); e != nil { // handle_follows
				return nil, e
			}
			if e := xdr.PutOpaque(buf, childHandle); e != nil {
				return nil, e
			}
		} else {
			if e := common.PutPostOpAttr(buf, nil); e != nil {
				return nil, e
			}
			if e := xdr.PutBool(buf, false); e != nil {
				return nil, e
			}
		}
	}
	if e := xdr.PutBool(buf, false); e != nil {
		return nil, e
	}
	if e := xdr.PutBool(buf, eof); e != nil {
		return nil, e
	}
	return buf.Bytes(), nil
}

func childPathOf(dir, name string) string {
	if name == "." {
		return dir
	}
	if name == ".." {
		return dir
	}
	return dir + "/" + name
}
