package v3

import (
	"bytes"

	"github.com/blburns/simple-nfsd-sub001/internal/nfserr"
	"github.com/blburns/simple-nfsd-sub001/internal/nfsproc/common"
	"github.com/blburns/simple-nfsd-sub001/internal/vfs"
	"github.com/blburns/simple-nfsd-sub001/internal/xdr"
)

// handleLink implements NFSPROC3_LINK.
func handleLink(ctx *common.Context, args []byte) ([]byte, error) {
	r := bytes.NewReader(args)
	fileHandle, err := xdr.GetOpaque(r)
	if err != nil {
		return statusOnly(nfserr.NFS3ErrInval)
	}
	dirHandle, err := xdr.GetOpaque(r)
	if err != nil {
		return statusOnly(nfserr.NFS3ErrInval)
	}
	name, err := xdr.GetString(r)
	if err != nil {
		return statusOnly(nfserr.NFS3ErrInval)
	}

	filePath, status, ok := ctx.ResolveHandle(true, fileHandle)
	if !ok {
		return replyLink(status, nil, false, vfs.Attr{}, false, nil)
	}
	dirPath, status, ok := ctx.ResolveHandle(true, dirHandle)
	if !ok {
		return replyLink(status, nil, false, vfs.Attr{}, false, nil)
	}

	fileAttr, fileErr := ctx.FS.Stat(filePath)
	dirPre, dirPreErr := ctx.FS.Stat(dirPath)

	if _, _, status, ok := ctx.CheckAccess(true, dirPath, true); !ok {
		return replyLink(status, &fileAttr, fileErr == nil, dirPre, dirPreErr == nil, nil)
	}

	err = ctx.FS.Link(filePath, dirPath, name)
	if err != nil {
		var dirPost *vfs.Attr
		if p, e := ctx.FS.Stat(dirPath); e == nil {
			dirPost = &p
		}
		return replyLink(common.StatusFromErr(true, err), &fileAttr, fileErr == nil, dirPre, dirPreErr == nil, dirPost)
	}
	ctx.InvalidateAttr(filePath)
	ctx.InvalidateAttr(dirPath)
	var dirPost *vfs.Attr
	if p, e := ctx.FS.Stat(dirPath); e == nil {
		dirPost = &p
	}

	postFileAttr, postErr := ctx.FS.Stat(filePath)
	if postErr == nil {
		fileAttr = postFileAttr
	}
	return replyLink(nfserr.NFS3OK, &fileAttr, fileErr == nil || postErr == nil, dirPre, dirPreErr == nil, dirPost)
}

func replyLink(status uint32, fileAttr *vfs.Attr, fileAttrOK bool, dirPre vfs.Attr, dirPreOK bool, dirPost *vfs.Attr) ([]byte, error) {
	buf := new(bytes.Buffer)
	if err := xdr.PutUint32(buf, status); err != nil {
		return nil, err
	}
	if fileAttrOK {
		if err := common.PutPostOpAttr(buf, fileAttr); err != nil {
			return nil, err
		}
	} else {
		if err := common.PutPostOpAttr(buf, nil); err != nil {
			return nil, err
		}
	}
	var dirPreAttr *common.WCCAttr
	if dirPreOK {
		dirPreAttr = common.WCCFromAttr(dirPre)
	}
	if err := common.PutWCCData(buf, dirPreAttr, dirPost); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
