package v3

import (
	"bytes"

	"github.com/blburns/simple-nfsd-sub001/internal/nfserr"
	"github.com/blburns/simple-nfsd-sub001/internal/nfsproc/common"
	"github.com/blburns/simple-nfsd-sub001/internal/vfs"
	"github.com/blburns/simple-nfsd-sub001/internal/xdr"
)

// createhow3 discriminants (RFC 1813 §3.3.8).
const (
	CreateUnchecked = 0
	CreateGuarded   = 1
	CreateExclusive = 2
)

// handleCreate implements NFSPROC3_CREATE.
func handleCreate(ctx *common.Context, args []byte) ([]byte, error) {
	r := bytes.NewReader(args)
	dirHandle, err := xdr.GetOpaque(r)
	if err != nil {
		return statusOnly(nfserr.NFS3ErrInval)
	}
	name, err := xdr.GetString(r)
	if err != nil {
		return statusOnly(nfserr.NFS3ErrInval)
	}
	how, err := xdr.GetUint32(r)
	if err != nil {
		return statusOnly(nfserr.NFS3ErrInval)
	}

	mode := uint32(0644)
	exclusive := how == CreateExclusive
	if exclusive {
		if _, err := xdr.GetFixedOpaque(r, 8); err != nil { // verifier
			return statusOnly(nfserr.NFS3ErrInval)
		}
	} else {
		sa, err := decodeSetAttr3(r)
		if err != nil {
			return statusOnly(nfserr.NFS3ErrInval)
		}
		if sa.Mode != nil {
			mode = *sa.Mode
		}
		if how == CreateGuarded {
			exclusive = true
		}
	}

	return createInDir(ctx, dirHandle, name, func(dir string) (string, vfs.Attr, error) {
		return ctx.FS.Create(dir, name, mode, exclusive)
	})
}

// handleMkdir implements NFSPROC3_MKDIR.
func handleMkdir(ctx *common.Context, args []byte) ([]byte, error) {
	r := bytes.NewReader(args)
	dirHandle, err := xdr.GetOpaque(r)
	if err != nil {
		return statusOnly(nfserr.NFS3ErrInval)
	}
	name, err := xdr.GetString(r)
	if err != nil {
		return statusOnly(nfserr.NFS3ErrInval)
	}
	sa, err := decodeSetAttr3(r)
	if err != nil {
		return statusOnly(nfserr.NFS3ErrInval)
	}
	mode := uint32(0755)
	if sa.Mode != nil {
		mode = *sa.Mode
	}

	return createInDir(ctx, dirHandle, name, func(dir string) (string, vfs.Attr, error) {
		return ctx.FS.Mkdir(dir, name, mode)
	})
}

// handleSymlink implements NFSPROC3_SYMLINK.
func handleSymlink(ctx *common.Context, args []byte) ([]byte, error) {
	r := bytes.NewReader(args)
	dirHandle, err := xdr.GetOpaque(r)
	if err != nil {
		return statusOnly(nfserr.NFS3ErrInval)
	}
	name, err := xdr.GetString(r)
	if err != nil {
		return statusOnly(nfserr.NFS3ErrInval)
	}
	sa, err := decodeSetAttr3(r)
	if err != nil {
		return statusOnly(nfserr.NFS3ErrInval)
	}
	target, err := xdr.GetString(r)
	if err != nil {
		return statusOnly(nfserr.NFS3ErrInval)
	}
	mode := uint32(0777)
	if sa.Mode != nil {
		mode = *sa.Mode
	}

	return createInDir(ctx, dirHandle, name, func(dir string) (string, vfs.Attr, error) {
		return ctx.FS.Symlink(dir, name, target, mode)
	})
}

// handleMknod implements NFSPROC3_MKNOD. Device and FIFO special files are
// not supported by the local-directory VFS adapter.
func handleMknod(ctx *common.Context, args []byte) ([]byte, error) {
	return statusOnly(nfserr.NFS3ErrNotSupp)
}

// createInDir shares the dir-resolve, access-check, WCC-reply plumbing
// across CREATE/MKDIR/SYMLINK.
func createInDir(ctx *common.Context, dirHandle []byte, name string, do func(dir string) (string, vfs.Attr, error)) ([]byte, error) {
	dirPath, status, ok := ctx.ResolveHandle(true, dirHandle)
	if !ok {
		return statusOnly(status)
	}

	dirPre, preErr := ctx.FS.Stat(dirPath)

	_, _, status, ok = ctx.CheckAccess(true, dirPath, true)
	if !ok {
		return replyCreate(status, nil, nil, dirPre, preErr, nil)
	}

	childPath, childAttr, err := do(dirPath)
	if err != nil {
		dirPost, postErr := ctx.FS.Stat(dirPath)
		var post *vfs.Attr
		if postErr == nil {
			post = &dirPost
		}
		return replyCreate(common.StatusFromErr(true, err), nil, nil, dirPre, preErr, post)
	}

	handleBytes := ctx.Handles.HandleFor(ctx.Version, childPath)
	ctx.InvalidateAttr(dirPath)
	dirPost, postErr := ctx.FS.Stat(dirPath)
	var post *vfs.Attr
	if postErr == nil {
		post = &dirPost
	}
	return replyCreate(nfserr.NFS3OK, handleBytes, &childAttr, dirPre, preErr, post)
}

func replyCreate(status uint32, handleBytes []byte, childAttr *vfs.Attr, dirPre vfs.Attr, preErr error, dirPost *vfs.Attr) ([]byte, error) {
	buf := new(bytes.Buffer)
	if err := xdr.PutUint32(buf, status); err != nil {
		return nil, err
	}
	if status == nfserr.NFS3OK {
		if err := xdr.PutBool(buf, true); err != nil { // handle_follows
			return nil, err
		}
		if err := xdr.PutOpaque(buf, handleBytes); err != nil {
			return nil, err
		}
		if err := common.PutPostOpAttr(buf, childAttr); err != nil {
			return nil, err
		}
	}
	var preAttr *common.WCCAttr
	if preErr == nil {
		preAttr = common.WCCFromAttr(dirPre)
	}
	if err := common.PutWCCData(buf, preAttr, dirPost); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
