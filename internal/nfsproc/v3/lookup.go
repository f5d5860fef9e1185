package v3

import (
	"bytes"

	"github.com/blburns/simple-nfsd-sub001/internal/nfserr"
	"github.com/blburns/simple-nfsd-sub001/internal/nfsproc/common"
	"github.com/blburns/simple-nfsd-sub001/internal/vfs"
	"github.com/blburns/simple-nfsd-sub001/internal/xdr"
)

// handleLookup implements NFSPROC3_LOOKUP (RFC 1813 §3.3.3).
func handleLookup(ctx *common.Context, args []byte) ([]byte, error) {
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
	if _, _, status, ok := ctx.CheckAccess(true, dirPath, false); !ok {
		return statusOnly(status)
	}

	dirAttr, dirErr := ctx.FS.Stat(dirPath)

	childPath, childAttr, err := ctx.FS.Lookup(dirPath, name)
	if err != nil {
		return replyLookup(common.StatusFromErr(true, err), nil, nil, dirErr, dirAttr)
	}

	handleBytes := ctx.Handles.HandleFor(ctx.Version, childPath)
	return replyLookup(nfserr.NFS3OK, handleBytes, &childAttr, dirErr, dirAttr)
}

func replyLookup(status uint32, handleBytes []byte, childAttr *vfs.Attr, dirErr error, dirAttr vfs.Attr) ([]byte, error) {
	buf := new(bytes.Buffer)
	if err := xdr.PutUint32(buf, status); err != nil {
		return nil, err
	}
	if status == nfserr.NFS3OK {
		if err := xdr.PutOpaque(buf, handleBytes); err != nil {
			return nil, err
		}
		if err := common.PutPostOpAttr(buf, childAttr); err != nil {
			return nil, err
		}
	}
	if dirErr == nil {
		if err := common.PutPostOpAttr(buf, &dirAttr); err != nil {
			return nil, err
		}
	} else {
		if err := common.PutPostOpAttr(buf, nil); err != nil {
			return nil, err
		}
	}
	return buf.Bytes(), nil
}
