package v2

import (
	"bytes"

	"github.com/blburns/simple-nfsd-sub001/internal/nfsproc/common"
	"github.com/blburns/simple-nfsd-sub001/internal/xdr"
)

func handleReadlink(ctx *common.Context, args []byte) ([]byte, error) {
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

	target, err := ctx.FS.Readlink(path)
	if err != nil {
		return encodeStatus(common.StatusFromErr(true, err))
	}

	buf := new(bytes.Buffer)
	if err := xdr.PutUint32(buf, nfsOK); err != nil {
		return nil, err
	}
	if err := xdr.PutString(buf, target); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
