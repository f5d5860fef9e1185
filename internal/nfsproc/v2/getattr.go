package v2

import (
	"bytes"

	"github.com/blburns/simple-nfsd-sub001/internal/nfsproc/common"
	"github.com/blburns/simple-nfsd-sub001/internal/xdr"
)

func handleGetattr(ctx *common.Context, args []byte) ([]byte, error) {
	r := bytes.NewReader(args)
	handle, err := xdr.GetFixedOpaque(r, 32)
	if err != nil {
		return encodeStatus(nfsErrInval)
	}
	path, status, ok := ctx.ResolveHandle(true, handle)
	if !ok {
		return encodeStatus(status)
	}
	if _, _, status, ok := ctx.CheckAccess(true, path, false); !ok {
		return encodeStatus(status)
	}
	attr, err := ctx.FS.Stat(path)
	if err != nil {
		return encodeStatus(common.StatusFromErr(true, err))
	}
	return encodeAttrStat(nfsOK, &attr)
}
