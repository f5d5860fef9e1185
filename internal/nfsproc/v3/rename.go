package v3

import (
	"bytes"

	"github.com/blburns/simple-nfsd-sub001/internal/nfserr"
	"github.com/blburns/simple-nfsd-sub001/internal/nfsproc/common"
	"github.com/blburns/simple-nfsd-sub001/internal/vfs"
	"github.com/blburns/simple-nfsd-sub001/internal/xdr"
)

// handleRename implements NFSPROC3_RENAME.
func handleRename(ctx *common.Context, args []byte) ([]byte, error) {
	r := bytes.NewReader(args)
	fromHandle, err := xdr.GetOpaque(r)
	if err != nil {
		return statusOnly(nfserr.NFS3ErrInval)
	}
	fromName, err := xdr.GetString(r)
	if err != nil {
		return statusOnly(nfserr.NFS3ErrInval)
	}
	toHandle, err := xdr.GetOpaque(r)
	if err != nil {
		return statusOnly(nfserr.NFS3ErrInval)
	}
	toName, err := xdr.GetString(r)
	if err != nil {
		return statusOnly(nfserr.NFS3ErrInval)
	}

	fromDir, status, ok := ctx.ResolveHandle(true, fromHandle)
	if !ok {
		return replyRename(status, vfs.Attr{}, false, vfs.Attr{}, false, nil, nil)
	}
	toDir, status, ok := ctx.ResolveHandle(true, toHandle)
	if !ok {
		return replyRename(status, vfs.Attr{}, false, vfs.Attr{}, false, nil, nil)
	}

	fromPre, fromPreErr := ctx.FS.Stat(fromDir)
	toPre, toPreErr := ctx.FS.Stat(toDir)

	if _, _, status, ok := ctx.CheckAccess(true, fromDir, true); !ok {
		return replyRename(status, fromPre, fromPreErr == nil, toPre, toPreErr == nil, nil, nil)
	}
	if _, _, status, ok := ctx.CheckAccess(true, toDir, true); !ok {
		return replyRename(status, fromPre, fromPreErr == nil, toPre, toPreErr == nil, nil, nil)
	}

	err = ctx.FS.Rename(fromDir, fromName, toDir, toName)

	var fromPost, toPost *vfs.Attr
	if p, e := ctx.FS.Stat(fromDir); e == nil {
		fromPost = &p
	}
	if p, e := ctx.FS.Stat(toDir); e == nil {
		toPost = &p
	}

	if err != nil {
		return replyRename(common.StatusFromErr(true, err), fromPre, fromPreErr == nil, toPre, toPreErr == nil, fromPost, toPost)
	}

	ctx.Handles.Rename(fromDir+"/"+fromName, toDir+"/"+toName)
	ctx.RenameAttr(fromDir+"/"+fromName, toDir+"/"+toName)
	ctx.InvalidateAttr(fromDir)
	ctx.InvalidateAttr(toDir)
	return replyRename(nfserr.NFS3OK, fromPre, fromPreErr == nil, toPre, toPreErr == nil, fromPost, toPost)
}

func replyRename(status uint32, fromPre vfs.Attr, fromPreOK bool, toPre vfs.Attr, toPreOK bool, fromPost, toPost *vfs.Attr) ([]byte, error) {
	buf := new(bytes.Buffer)
	if err := xdr.PutUint32(buf, status); err != nil {
		return nil, err
	}
	var fromPreAttr, toPreAttr *common.WCCAttr
	if fromPreOK {
		fromPreAttr = common.WCCFromAttr(fromPre)
	}
	if toPreOK {
		toPreAttr = common.WCCFromAttr(toPre)
	}
	if err := common.PutWCCData(buf, fromPreAttr, fromPost); err != nil {
		return nil, err
	}
	if err := common.PutWCCData(buf, toPreAttr, toPost); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
