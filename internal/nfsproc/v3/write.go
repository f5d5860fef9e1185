package v3

import (
	"bytes"

	"github.com/blburns/simple-nfsd-sub001/internal/nfserr"
	"github.com/blburns/simple-nfsd-sub001/internal/nfsproc/common"
	"github.com/blburns/simple-nfsd-sub001/internal/xdr"
)

// Stability levels (RFC 1813 §3.3.7).
const (
	Unstable  = 0
	DataSync  = 1
	FileSync  = 2
)

// handleWrite implements NFSPROC3_WRITE.
func handleWrite(ctx *common.Context, args []byte) ([]byte, error) {
	r := bytes.NewReader(args)
	handle, err := xdr.GetOpaque(r)
	if err != nil {
		return statusOnly(nfserr.NFS3ErrInval)
	}
	offset, err := xdr.GetUint64(r)
	if err != nil {
		return statusOnly(nfserr.NFS3ErrInval)
	}
	if _, err := xdr.GetUint32(r); err != nil { // count (redundant with len(data))
		return statusOnly(nfserr.NFS3ErrInval)
	}
	stability, err := xdr.GetUint32(r)
	if err != nil {
		return statusOnly(nfserr.NFS3ErrInval)
	}
	data, err := xdr.GetOpaque(r)
	if err != nil {
		return statusOnly(nfserr.NFS3ErrInval)
	}

	path, status, ok := ctx.ResolveHandle(true, handle)
	if !ok {
		return statusOnly(status)
	}

	pre, preErr := ctx.FS.Stat(path)

	_, _, status, ok = ctx.CheckAccess(true, path, true)
	if !ok {
		return replyWCC(status, pre, preErr, nil)
	}
	if !ctx.ReserveQuota(path, int64(len(data))) {
		return replyWCC(nfserr.NFS3ErrDQuot, pre, preErr, nil)
	}

	// The local VFS only exposes whole-file fsync, not range/data-only sync,
	// so DataSync is promoted to a full sync here too -- anything we report
	// as committed at DataSync or FileSync must actually have been flushed.
	n, err := ctx.FS.Write(path, int64(offset), data, stability != Unstable)
	if err != nil {
		ctx.ReserveQuota(path, -int64(len(data)))
		return replyWCC(common.StatusFromErr(true, err), pre, preErr, nil)
	}
	ctx.InvalidateAttr(path)
	ctx.InvalidateContent(path)
	ctx.CacheContent(path, int64(offset), data)
	post, postErr := ctx.Stat(path)

	committed := stability
	if stability == DataSync {
		committed = FileSync
	}

	buf := new(bytes.Buffer)
	if e := xdr.PutUint32(buf, nfserr.NFS3OK); e != nil {
		return nil, e
	}
	var preAttr *common.WCCAttr
	if preErr == nil {
		preAttr = common.WCCFromAttr(pre)
	}
	if postErr == nil {
		if e := common.PutWCCData(buf, preAttr, &post); e != nil {
			return nil, e
		}
	} else {
		if e := common.PutWCCData(buf, preAttr, nil); e != nil {
			return nil, e
		}
	}
	if e := xdr.PutUint32(buf, uint32(n)); e != nil {
		return nil, e
	}
	if e := xdr.PutUint32(buf, committed); e != nil {
		return nil, e
	}
	if e := xdr.PutFixedOpaque(buf, ctx.WriteVerifier[:]); e != nil {
		return nil, e
	}
	return buf.Bytes(), nil
}
