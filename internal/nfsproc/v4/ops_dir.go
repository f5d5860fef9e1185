package v4

import (
	"bytes"
	"path/filepath"

	"github.com/blburns/simple-nfsd-sub001/internal/nfserr"
	"github.com/blburns/simple-nfsd-sub001/internal/nfsproc/common"
	"github.com/blburns/simple-nfsd-sub001/internal/vfs"
	"github.com/blburns/simple-nfsd-sub001/internal/xdr"
)

// putChangeInfo4 writes a change_info4: this server does not track a
// directory's pre/post change counter, so atomic is reported false and
// both counters zero -- a client that cares will always fall back to a
// fresh GETATTR rather than trusting the hint, which is the protocol's
// documented escape hatch for servers that can't supply real values.
func putChangeInfo4(w *bytes.Buffer) error {
	if err := xdr.PutBool(w, false); err != nil {
		return err
	}
	if err := xdr.PutUint64(w, 0); err != nil {
		return err
	}
	return xdr.PutUint64(w, 0)
}

// opLookup implements LOOKUP.
func opLookup(ctx *common.Context, st *state, r *bytes.Reader) (uint32, []byte, error) {
	name, err := xdr.GetString(r)
	if err != nil {
		return nfserr.NFS4ErrBadXDR, nil, nil
	}
	if !st.hasCur {
		return nfserr.NFS4ErrNoFileHandle, nil, nil
	}
	if _, _, status, ok := ctx.CheckAccess(false, st.curPath, false); !ok {
		return status, nil, nil
	}
	childPath, _, err := ctx.FS.Lookup(st.curPath, name)
	if err != nil {
		return common.StatusFromErr(false, err), nil, nil
	}
	st.curPath = childPath
	return nfserr.NFS4OK, nil, nil
}

// opLookupp implements LOOKUPP, moving the current filehandle to its
// parent directory.
func opLookupp(ctx *common.Context, st *state, r *bytes.Reader) (uint32, []byte, error) {
	if !st.hasCur {
		return nfserr.NFS4ErrNoFileHandle, nil, nil
	}
	parent := filepath.Dir(st.curPath)
	if _, err := ctx.FS.Stat(parent); err != nil {
		return common.StatusFromErr(false, err), nil, nil
	}
	st.curPath = parent
	return nfserr.NFS4OK, nil, nil
}

// opReadlink implements READLINK.
func opReadlink(ctx *common.Context, st *state, r *bytes.Reader) (uint32, []byte, error) {
	if !st.hasCur {
		return nfserr.NFS4ErrNoFileHandle, nil, nil
	}
	if _, _, status, ok := ctx.CheckAccess(false, st.curPath, false); !ok {
		return status, nil, nil
	}
	target, err := ctx.FS.Readlink(st.curPath)
	if err != nil {
		return common.StatusFromErr(false, err), nil, nil
	}
	buf := new(bytes.Buffer)
	if err := xdr.PutString(buf, target); err != nil {
		return 0, nil, err
	}
	return nfserr.NFS4OK, buf.Bytes(), nil
}

// NF4* type discriminants (RFC 7530 §2.5.5/§14.2.4).
const (
	nf4Dir = 2
	nf4Lnk = 5
)

// opCreate implements CREATE for regular directories and symlinks; device
// and FIFO special files are not supported by the local-directory VFS.
func opCreate(ctx *common.Context, st *state, r *bytes.Reader) (uint32, []byte, error) {
	objType, err := xdr.GetUint32(r)
	if err != nil {
		return nfserr.NFS4ErrBadXDR, nil, nil
	}
	var linkText string
	if objType == nf4Lnk {
		linkText, err = xdr.GetString(r)
		if err != nil {
			return nfserr.NFS4ErrBadXDR, nil, nil
		}
	} else if objType != nf4Dir {
		return nfserr.NFS4ErrNotSupp, nil, nil
	}
	name, err := xdr.GetString(r)
	if err != nil {
		return nfserr.NFS4ErrBadXDR, nil, nil
	}
	bitmap, err := decodeBitmap4(r)
	if err != nil {
		return nfserr.NFS4ErrBadXDR, nil, nil
	}
	vals, err := xdr.GetOpaque(r)
	if err != nil {
		return nfserr.NFS4ErrBadXDR, nil, nil
	}
	mode := uint32(0755)
	if objType == nf4Lnk {
		mode = 0777
	}
	if bitmap[fattr4Mode] {
		vr := bytes.NewReader(vals)
		if m, err := xdr.GetUint32(vr); err == nil {
			mode = m
		}
	}

	if !st.hasCur {
		return nfserr.NFS4ErrNoFileHandle, nil, nil
	}
	if _, _, status, ok := ctx.CheckAccess(false, st.curPath, true); !ok {
		return status, nil, nil
	}

	var childPath string
	if objType == nf4Dir {
		childPath, _, err = ctx.FS.Mkdir(st.curPath, name, mode)
	} else {
		childPath, _, err = ctx.FS.Symlink(st.curPath, name, linkText, mode)
	}
	if err != nil {
		return common.StatusFromErr(false, err), nil, nil
	}
	st.curPath = childPath

	buf := new(bytes.Buffer)
	if err := putChangeInfo4(buf); err != nil {
		return 0, nil, err
	}
	if err := encodeBitmap4(buf, nil); err != nil {
		return 0, nil, err
	}
	return nfserr.NFS4OK, buf.Bytes(), nil
}

// opRemove implements REMOVE.
func opRemove(ctx *common.Context, st *state, r *bytes.Reader) (uint32, []byte, error) {
	name, err := xdr.GetString(r)
	if err != nil {
		return nfserr.NFS4ErrBadXDR, nil, nil
	}
	if !st.hasCur {
		return nfserr.NFS4ErrNoFileHandle, nil, nil
	}
	if _, _, status, ok := ctx.CheckAccess(false, st.curPath, true); !ok {
		return status, nil, nil
	}
	childPath := filepath.Join(st.curPath, name)
	attr, statErr := ctx.FS.Stat(childPath)
	var rmErr error
	if statErr == nil && attr.Type == vfs.TypeDirectory {
		rmErr = ctx.FS.Rmdir(st.curPath, name)
	} else {
		rmErr = ctx.FS.Remove(st.curPath, name)
	}
	if rmErr != nil {
		return common.StatusFromErr(false, rmErr), nil, nil
	}
	ctx.Handles.Forget(childPath)

	buf := new(bytes.Buffer)
	if err := putChangeInfo4(buf); err != nil {
		return 0, nil, err
	}
	return nfserr.NFS4OK, buf.Bytes(), nil
}

// opRename implements RENAME: the saved filehandle names the source
// directory, the current filehandle the target directory (RFC 7530
// §14.2.14).
func opRename(ctx *common.Context, st *state, r *bytes.Reader) (uint32, []byte, error) {
	oldName, err := xdr.GetString(r)
	if err != nil {
		return nfserr.NFS4ErrBadXDR, nil, nil
	}
	newName, err := xdr.GetString(r)
	if err != nil {
		return nfserr.NFS4ErrBadXDR, nil, nil
	}
	if !st.hasSaved || !st.hasCur {
		return nfserr.NFS4ErrNoFileHandle, nil, nil
	}
	if _, _, status, ok := ctx.CheckAccess(false, st.savedPath, true); !ok {
		return status, nil, nil
	}
	if _, _, status, ok := ctx.CheckAccess(false, st.curPath, true); !ok {
		return status, nil, nil
	}
	if err := ctx.FS.Rename(st.savedPath, oldName, st.curPath, newName); err != nil {
		return common.StatusFromErr(false, err), nil, nil
	}
	ctx.Handles.Rename(filepath.Join(st.savedPath, oldName), filepath.Join(st.curPath, newName))

	buf := new(bytes.Buffer)
	if err := putChangeInfo4(buf); err != nil { // source cinfo
		return 0, nil, err
	}
	if err := putChangeInfo4(buf); err != nil { // target cinfo
		return 0, nil, err
	}
	return nfserr.NFS4OK, buf.Bytes(), nil
}

// opLink implements LINK: the saved filehandle names the source file, the
// current filehandle the target directory.
func opLink(ctx *common.Context, st *state, r *bytes.Reader) (uint32, []byte, error) {
	name, err := xdr.GetString(r)
	if err != nil {
		return nfserr.NFS4ErrBadXDR, nil, nil
	}
	if !st.hasSaved || !st.hasCur {
		return nfserr.NFS4ErrNoFileHandle, nil, nil
	}
	if _, _, status, ok := ctx.CheckAccess(false, st.curPath, true); !ok {
		return status, nil, nil
	}
	if err := ctx.FS.Link(st.savedPath, st.curPath, name); err != nil {
		return common.StatusFromErr(false, err), nil, nil
	}

	buf := new(bytes.Buffer)
	if err := putChangeInfo4(buf); err != nil {
		return 0, nil, err
	}
	return nfserr.NFS4OK, buf.Bytes(), nil
}

// opReaddir implements READDIR.
func opReaddir(ctx *common.Context, st *state, r *bytes.Reader) (uint32, []byte, error) {
	cookie, err := xdr.GetUint64(r)
	if err != nil {
		return nfserr.NFS4ErrBadXDR, nil, nil
	}
	if _, err := xdr.GetFixedOpaque(r, 8); err != nil { // cookieverf
		return nfserr.NFS4ErrBadXDR, nil, nil
	}
	if _, err := xdr.GetUint32(r); err != nil { // dircount
		return nfserr.NFS4ErrBadXDR, nil, nil
	}
	maxcount, err := xdr.GetUint32(r)
	if err != nil {
		return nfserr.NFS4ErrBadXDR, nil, nil
	}
	requested, err := decodeBitmap4(r)
	if err != nil {
		return nfserr.NFS4ErrBadXDR, nil, nil
	}

	if !st.hasCur {
		return nfserr.NFS4ErrNoFileHandle, nil, nil
	}
	if _, _, status, ok := ctx.CheckAccess(false, st.curPath, false); !ok {
		return status, nil, nil
	}

	maxEntries := int(maxcount / 128)
	if maxEntries < 1 {
		maxEntries = 1
	}
	entries, eof, err := ctx.FS.Readdir(st.curPath, cookie, maxEntries)
	if err != nil {
		return common.StatusFromErr(false, err), nil, nil
	}

	buf := new(bytes.Buffer)
	if err := xdr.PutFixedOpaque(buf, []byte{0, 0, 0, 0, 0, 0, 0, 0}); err != nil { // cookieverf
		return 0, nil, err
	}
	for _, ent := range entries {
		if err := xdr.PutBool(buf, true); err != nil {
			return 0, nil, err
		}
		if err := xdr.PutUint64(buf, ent.Cookie); err != nil {
			return 0, nil, err
		}
		if err := xdr.PutString(buf, ent.Name); err != nil {
			return 0, nil, err
		}
		childAttr, childErr := ctx.FS.Stat(filepath.Join(st.curPath, ent.Name))
		if childErr != nil {
			childAttr.Fileid = ent.Fileid
		}
		if err := encodeFattr4(buf, childAttr, requested); err != nil {
			return 0, nil, err
		}
	}
	if err := xdr.PutBool(buf, false); err != nil {
		return 0, nil, err
	}
	if err := xdr.PutBool(buf, eof); err != nil {
		return 0, nil, err
	}
	return nfserr.NFS4OK, buf.Bytes(), nil
}
