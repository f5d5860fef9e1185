package v3

import (
	"bytes"

	"github.com/blburns/simple-nfsd-sub001/internal/nfserr"
	"github.com/blburns/simple-nfsd-sub001/internal/nfsproc/common"
	"github.com/blburns/simple-nfsd-sub001/internal/xdr"
)

// handleReadlink implements NFSPROC3_READLINK (RFC 1813 §3.3.5).
func handleReadlink(ctx *common.Context, args []byte) ([]byte, error) {
	r := bytes.NewReader(args)
	handle, err := xdr.GetOpaque(r)
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

	attr, statErr := ctx.FS.Stat(path)

	target, err := ctx.FS.Readlink(path)
	buf := new(bytes.Buffer)
	if err != nil {
		if err := xdr.PutUint32(buf, common.StatusFromErr(true, err)); err != nil {
			return nil, err
		}
		if err := common.PutPostOpAttr(buf, nil); err != nil {
			return nil, err
		}
		return buf.Bytes(), nil
	}

	if err := xdr.PutUint32(buf, nfserr.NFS3OK); err != nil {
		return nil, err
	}
	if statErr == nil {
		if err := common.PutPostOpAttr(buf, &attr); err != nil {
			return nil, err
		}
	} else {
		if err := common.PutPostOpAttr(buf, nil); err != nil {
			return nil, err
		}
	}
	if err := xdr.PutString(buf, target); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
