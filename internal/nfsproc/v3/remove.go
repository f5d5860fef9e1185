package v3

import (
	"bytes"

	"github.com/blburns/simple-nfsd-sub001/internal/nfserr"
	"github.com/blburns/simple-nfsd-sub001/internal/nfsproc/common"
	"github.com/blburns/simple-nfsd-sub001/internal/vfs"
	"github.com/blburns/simple-nfsd-sub001/internal/xdr"
)

// handleRemove implements NFSPROC3_REMOVE.
func handleRemove(ctx *common.Context, args []byte) ([]byte, error) {
	return removeInDir(ctx, args, func(dir, name string) error {
		return ctx.FS.Remove(dir, name)
	})
}

// handleRmdir implements NFSPROC3_RMDIR.
func handleRmdir(ctx *common.Context, args []byte) ([]byte, error) {
	return removeInDir(ctx, args, func(dir, name string) error {
		return ctx.FS.Rmdir(dir, name)
	})
}

func removeInDir(ctx *common.Context, args []byte, do func(dir, name string) error) ([]byte, error) {
	r := bytes.NewReader(args)
	dirHandle, err := xdr.GetOpaque(r)
	if err != nil {
		return statusOnly(nfserr.NFS3ErrInval)
	}
	name, err := xdr.GetString(r)
	if err != nil {
		return statusOnly(nfserr.NFS3ErrInval)
	}

	dirPath, status, ok := ctx.ResolveHandle(true, dirHandle)
	if !ok {
		return statusOnly(status)
	}

	dirPre, preErr := ctx.FS.Stat(dirPath)

	_, _, status, ok = ctx.CheckAccess(true, dirPath, true)
	if !ok {
		return replyWCC(status, dirPre, preErr, nil)
	}

	err = do(dirPath, name)
	var post *vfs.Attr
	if dirPost, postErr := ctx.FS.Stat(dirPath); postErr == nil {
		post = &dirPost
	}
	if err != nil {
		return replyWCC(common.StatusFromErr(true, err), dirPre, preErr, post)
	}
	ctx.Handles.Forget(dirPath + "/" + name)
	ctx.InvalidateAttr(dirPath + "/" + name)
	ctx.InvalidateAttr(dirPath)
	return replyWCC(nfserr.NFS3OK, dirPre, preErr, post)
}
