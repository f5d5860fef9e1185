package v2

import (
	"bytes"

	"github.com/blburns/simple-nfsd-sub001/internal/nfsproc/common"
	"github.com/blburns/simple-nfsd-sub001/internal/xdr"
)

func handleRead(ctx *common.Context, args []byte) ([]byte, error) {
	r := bytes.NewReader(args)
	handle, err := xdr.GetFixedOpaque(r, 32)
	if err != nil {
		return encodeStatus(nfsErrInval)
	}
	offset, err := xdr.GetUint32(r)
	if err != nil {
		return encodeStatus(nfsErrInval)
	}
	count, err := xdr.GetUint32(r)
	if err != nil {
		return encodeStatus(nfsErrInval)
	}
	if _, err := xdr.GetUint32(r); err != nil { // totalcount, unused
		return encodeStatus(nfsErrInval)
	}
	if count > MaxTransferSize {
		count = MaxTransferSize
	}

	path, status, ok := ctx.ResolveHandle(true, handle)
	if !ok {
		return encodeStatus(status)
	}
	if _, _, status, ok := ctx.CheckAccess(true, path, false); !ok {
		return encodeStatus(status)
	}

	attr, attrErr := ctx.FS.Stat(path)
	data, _, err := ctx.FS.Read(path, int64(offset), int(count))
	if err != nil {
		return encodeStatus(common.StatusFromErr(true, err))
	}

	buf := new(bytes.Buffer)
	if err := xdr.PutUint32(buf, nfsOK); err != nil {
		return nil, err
	}
	if attrErr != nil {
		attr = zeroAttr()
	}
	if err := PutFattr2(buf, attr); err != nil {
		return nil, err
	}
	if err := xdr.PutOpaque(buf, data); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
