package v3

import (
	"bytes"

	"github.com/blburns/simple-nfsd-sub001/internal/nfserr"
	"github.com/blburns/simple-nfsd-sub001/internal/nfsproc/common"
	"github.com/blburns/simple-nfsd-sub001/internal/xdr"
)

// handleGetattr implements NFSPROC3_GETATTR (RFC 1813 §3.3.1).
func handleGetattr(ctx *common.Context, args []byte) ([]byte, error) {
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

	attr, err := ctx.Stat(path)
	if err != nil {
		return statusOnly(common.StatusFromErr(true, err))
	}

	buf := new(bytes.Buffer)
	if err := xdr.PutUint32(buf, nfserr.NFS3OK); err != nil {
		return nil, err
	}
	if err := common.PutFattr3(buf, attr); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
