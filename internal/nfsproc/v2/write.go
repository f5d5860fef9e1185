package v2

import (
	"bytes"

	"github.com/blburns/simple-nfsd-sub001/internal/nfsproc/common"
	"github.com/blburns/simple-nfsd-sub001/internal/xdr"
)

func handleWrite(ctx *common.Context, args []byte) ([]byte, error) {
	r := bytes.NewReader(args)
	handle, err := xdr.GetFixedOpaque(r, 32)
	if err != nil {
		return encodeStatus(nfsErrInval)
	}
	if _, err := xdr.GetUint32(r); err != nil { // beginoffset, unused
		return encodeStatus(nfsErrInval)
	}
	offset, err := xdr.GetUint32(r)
	if err != nil {
		return encodeStatus(nfsErrInval)
	}
	if _, err := xdr.GetUint32(r); err != nil { // totalcount, unused
		return encodeStatus(nfsErrInval)
	}
	data, err := xdr.GetOpaque(r)
	if err != nil {
		return encodeStatus(nfsErrInval)
	}

	path, status, ok := ctx.ResolveHandle(true, handle)
	if !ok {
		return encodeStatus(status)
	}
	if _, _, status, ok := ctx.CheckAccess(true, path, true); !ok {
		return encodeStatus(status)
	}

	if _, err := ctx.FS.Write(path, int64(offset), data, true); err != nil {
		return encodeStatus(common.StatusFromErr(true, err))
	}
	attr, err := ctx.FS.Stat(path)
	if err != nil {
		return encodeStatus(common.StatusFromErr(true, err))
	}
	return encodeAttrStat(nfsOK, &attr)
}
