package v3

import (
	"bytes"

	"github.com/blburns/simple-nfsd-sub001/internal/nfserr"
	"github.com/blburns/simple-nfsd-sub001/internal/nfsproc/common"
	"github.com/blburns/simple-nfsd-sub001/internal/xdr"
)

// MaxReadCount bounds a single READ reply's data, matching the rtmax this
// server advertises via FSINFO.
const MaxReadCount = 1024 * 1024

// handleRead implements NFSPROC3_READ (RFC 1813 §3.3.6).
func handleRead(ctx *common.Context, args []byte) ([]byte, error) {
	r := bytes.NewReader(args)
	handle, err := xdr.GetOpaque(r)
	if err != nil {
		return statusOnly(nfserr.NFS3ErrInval)
	}
	offset, err := xdr.GetUint64(r)
	if err != nil {
		return statusOnly(nfserr.NFS3ErrInval)
	}
	count, err := xdr.GetUint32(r)
	if err != nil {
		return statusOnly(nfserr.NFS3ErrInval)
	}
	if count > MaxReadCount {
		count = MaxReadCount
	}

	path, status, ok := ctx.ResolveHandle(true, handle)
	if !ok {
		return statusOnly(status)
	}
	if _, _, status, ok := ctx.CheckAccess(true, path, false); !ok {
		return statusOnly(status)
	}

	attr, statErr := ctx.FS.Stat(path)

	var data []byte
	var eof bool
	if cached, hit := ctx.ReadContent(path, int64(offset)); hit && len(cached) >= int(count) {
		data = cached[:count]
		eof = statErr == nil && attr.Size <= offset+uint64(count)
	} else {
		data, eof, err = ctx.FS.Read(path, int64(offset), int(count))
		if err == nil {
			ctx.CacheContent(path, int64(offset), data)
		}
	}
	buf := new(bytes.Buffer)
	if err != nil {
		if e := xdr.PutUint32(buf, common.StatusFromErr(true, err)); e != nil {
			return nil, e
		}
		if e := common.PutPostOpAttr(buf, nil); e != nil {
			return nil, e
		}
		return buf.Bytes(), nil
	}

	if e := xdr.PutUint32(buf, nfserr.NFS3OK); e != nil {
		return nil, e
	}
	if statErr == nil {
		if e := common.PutPostOpAttr(buf, &attr); e != nil {
			return nil, e
		}
	} else {
		if e := common.PutPostOpAttr(buf, nil); e != nil {
			return nil, e
		}
	}
	if e := xdr.PutUint32(buf, uint32(len(data))); e != nil {
		return nil, e
	}
	if e := xdr.PutBool(buf, eof); e != nil {
		return nil, e
	}
	if e := xdr.PutOpaque(buf, data); e != nil {
		return nil, e
	}
	return buf.Bytes(), nil
}
