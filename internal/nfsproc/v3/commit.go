package v3

import (
	"bytes"

	"github.com/blburns/simple-nfsd-sub001/internal/nfserr"
	"github.com/blburns/simple-nfsd-sub001/internal/nfsproc/common"
	"github.com/blburns/simple-nfsd-sub001/internal/vfs"
	"github.com/blburns/simple-nfsd-sub001/internal/xdr"
)

// handleCommit implements NFSPROC3_COMMIT, flushing previously-written
// UNSTABLE data to stable storage for the given byte range.
func handleCommit(ctx *common.Context, args []byte) ([]byte, error) {
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

	path, status, ok := ctx.ResolveHandle(true, handle)
	if !ok {
		return statusOnly(status)
	}

	pre, preErr := ctx.FS.Stat(path)
	if _, _, status, ok := ctx.CheckAccess(true, path, true); !ok {
		return replyCommit(status, pre, preErr, nil, ctx.WriteVerifier)
	}

	err = ctx.FS.Commit(path, int64(offset), int(count))
	var post *vfs.Attr
	if p, e := ctx.FS.Stat(path); e == nil {
		post = &p
	}
	if err != nil {
		return replyCommit(common.StatusFromErr(true, err), pre, preErr, post, ctx.WriteVerifier)
	}
	return replyCommit(nfserr.NFS3OK, pre, preErr, post, ctx.WriteVerifier)
}

func replyCommit(status uint32, pre vfs.Attr, preErr error, post *vfs.Attr, verf [8]byte) ([]byte, error) {
	buf := new(bytes.Buffer)
	if err := xdr.PutUint32(buf, status); err != nil {
		return nil, err
	}
	var preAttr *common.WCCAttr
	if preErr == nil {
		preAttr = common.WCCFromAttr(pre)
	}
	if err := common.PutWCCData(buf, preAttr, post); err != nil {
		return nil, err
	}
	if status != nfserr.NFS3OK {
		return buf.Bytes(), nil
	}
	if err := xdr.PutFixedOpaque(buf, verf[:]); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
