package v4

import (
	"bytes"

	"github.com/blburns/simple-nfsd-sub001/internal/nfserr"
	"github.com/blburns/simple-nfsd-sub001/internal/nfsproc/common"
	"github.com/blburns/simple-nfsd-sub001/internal/xdr"
)

// opPutrootfh implements PUTROOTFH. This server exposes a single export as
// the v4 pseudo-filesystem root rather than unifying every export under a
// synthetic namespace; with more than one export configured, the first one
// registered is used.
func opPutrootfh(ctx *common.Context, st *state, r *bytes.Reader) (uint32, []byte, error) {
	all := ctx.Gate.Table.All()
	if len(all) == 0 {
		return nfserr.NFS4ErrNoFileHandle, nil, nil
	}
	st.curPath = all[0].Path
	st.hasCur = true
	return nfserr.NFS4OK, nil, nil
}

// opPutfh implements PUTFH.
func opPutfh(ctx *common.Context, st *state, r *bytes.Reader) (uint32, []byte, error) {
	wire, err := xdr.GetOpaque(r)
	if err != nil {
		return nfserr.NFS4ErrBadXDR, nil, nil
	}
	path, status, ok := ctx.ResolveHandle(false, wire)
	if !ok {
		return status, nil, nil
	}
	st.curPath = path
	st.hasCur = true
	return nfserr.NFS4OK, nil, nil
}

// opGetfh implements GETFH.
func opGetfh(ctx *common.Context, st *state, r *bytes.Reader) (uint32, []byte, error) {
	if !st.hasCur {
		return nfserr.NFS4ErrNoFileHandle, nil, nil
	}
	handleBytes := ctx.Handles.HandleFor(ctx.Version, st.curPath)
	buf := new(bytes.Buffer)
	if err := xdr.PutOpaque(buf, handleBytes); err != nil {
		return 0, nil, err
	}
	return nfserr.NFS4OK, buf.Bytes(), nil
}

// opSavefh implements SAVEFH.
func opSavefh(ctx *common.Context, st *state, r *bytes.Reader) (uint32, []byte, error) {
	if !st.hasCur {
		return nfserr.NFS4ErrNoFileHandle, nil, nil
	}
	st.savedPath = st.curPath
	st.hasSaved = true
	return nfserr.NFS4OK, nil, nil
}

// opRestorefh implements RESTOREFH.
func opRestorefh(ctx *common.Context, st *state, r *bytes.Reader) (uint32, []byte, error) {
	if !st.hasSaved {
		return nfserr.NFS4ErrNoFileHandle, nil, nil
	}
	st.curPath = st.savedPath
	st.hasCur = true
	return nfserr.NFS4OK, nil, nil
}
