package v4

import (
	"bytes"

	"github.com/blburns/simple-nfsd-sub001/internal/nfserr"
	"github.com/blburns/simple-nfsd-sub001/internal/nfsproc/common"
	"github.com/blburns/simple-nfsd-sub001/internal/xdr"
)

// MaxReadCount bounds a single READ's returned payload, matching v3's cap.
const MaxReadCount = 1024 * 1024

// opRead implements READ.
func opRead(ctx *common.Context, st *state, r *bytes.Reader) (uint32, []byte, error) {
	if err := skipStateid4(r); err != nil {
		return nfserr.NFS4ErrBadXDR, nil, nil
	}
	offset, err := xdr.GetUint64(r)
	if err != nil {
		return nfserr.NFS4ErrBadXDR, nil, nil
	}
	count, err := xdr.GetUint32(r)
	if err != nil {
		return nfserr.NFS4ErrBadXDR, nil, nil
	}
	if count > MaxReadCount {
		count = MaxReadCount
	}

	if !st.hasCur {
		return nfserr.NFS4ErrNoFileHandle, nil, nil
	}
	if _, _, status, ok := ctx.CheckAccess(false, st.curPath, false); !ok {
		return status, nil, nil
	}
	data, eof, err := ctx.FS.Read(st.curPath, int64(offset), int(count))
	if err != nil {
		return common.StatusFromErr(false, err), nil, nil
	}

	buf := new(bytes.Buffer)
	if err := xdr.PutBool(buf, eof); err != nil {
		return 0, nil, err
	}
	if err := xdr.PutOpaque(buf, data); err != nil {
		return 0, nil, err
	}
	return nfserr.NFS4OK, buf.Bytes(), nil
}

// stable4 values (RFC 7530 §14.2.33), shared numbering with v3's stable_how.
const (
	unstable4 = 0
	dataSync4 = 1
	fileSync4 = 2
)

// opWrite implements WRITE.
func opWrite(ctx *common.Context, st *state, r *bytes.Reader) (uint32, []byte, error) {
	if err := skipStateid4(r); err != nil {
		return nfserr.NFS4ErrBadXDR, nil, nil
	}
	offset, err := xdr.GetUint64(r)
	if err != nil {
		return nfserr.NFS4ErrBadXDR, nil, nil
	}
	stable, err := xdr.GetUint32(r)
	if err != nil {
		return nfserr.NFS4ErrBadXDR, nil, nil
	}
	data, err := xdr.GetOpaque(r)
	if err != nil {
		return nfserr.NFS4ErrBadXDR, nil, nil
	}

	if !st.hasCur {
		return nfserr.NFS4ErrNoFileHandle, nil, nil
	}
	if _, _, status, ok := ctx.CheckAccess(false, st.curPath, true); !ok {
		return status, nil, nil
	}
	n, err := ctx.FS.Write(st.curPath, int64(offset), data, stable != unstable4)
	if err != nil {
		return common.StatusFromErr(false, err), nil, nil
	}

	committed := uint32(stable)
	if stable == dataSync4 {
		committed = fileSync4 // the VFS has no data-only sync, only a full fsync
	}

	buf := new(bytes.Buffer)
	if err := xdr.PutUint32(buf, uint32(n)); err != nil {
		return 0, nil, err
	}
	if err := xdr.PutUint32(buf, committed); err != nil {
		return 0, nil, err
	}
	if err := xdr.PutFixedOpaque(buf, ctx.WriteVerifier[:]); err != nil {
		return 0, nil, err
	}
	return nfserr.NFS4OK, buf.Bytes(), nil
}

// opCommit implements COMMIT.
func opCommit(ctx *common.Context, st *state, r *bytes.Reader) (uint32, []byte, error) {
	offset, err := xdr.GetUint64(r)
	if err != nil {
		return nfserr.NFS4ErrBadXDR, nil, nil
	}
	count, err := xdr.GetUint32(r)
	if err != nil {
		return nfserr.NFS4ErrBadXDR, nil, nil
	}
	if !st.hasCur {
		return nfserr.NFS4ErrNoFileHandle, nil, nil
	}
	if _, _, status, ok := ctx.CheckAccess(false, st.curPath, true); !ok {
		return status, nil, nil
	}
	if err := ctx.FS.Commit(st.curPath, int64(offset), int(count)); err != nil {
		return common.StatusFromErr(false, err), nil, nil
	}

	buf := new(bytes.Buffer)
	if err := xdr.PutFixedOpaque(buf, ctx.WriteVerifier[:]); err != nil {
		return 0, nil, err
	}
	return nfserr.NFS4OK, buf.Bytes(), nil
}
