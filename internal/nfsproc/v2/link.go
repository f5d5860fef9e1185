package v2

import (
	"bytes"

	"github.com/blburns/simple-nfsd-sub001/internal/nfsproc/common"
	"github.com/blburns/simple-nfsd-sub001/internal/xdr"
)

func handleLink(ctx *common.Context, args []byte) ([]byte, error) {
	r := bytes.NewReader(args)
	fileHandle, err := xdr.GetFixedOpaque(r, 32)
	if err != nil {
		return encodeStatus(nfsErrInval)
	}
	dirHandle, name, err := decodeDirop(r)
	if err != nil {
		return encodeStatus(nfsErrInval)
	}

	filePath, status, ok := ctx.ResolveHandle(true, fileHandle)
	if !ok {
		return encodeStatus(status)
	}
	dirPath, status, ok := ctx.ResolveHandle(true, dirHandle)
	if !ok {
		return encodeStatus(status)
	}
	if _, _, status, ok := ctx.CheckAccess(true, dirPath, true); !ok {
		return encodeStatus(status)
	}

	if err := ctx.FS.Link(filePath, dirPath, name); err != nil {
		return encodeStatus(common.StatusFromErr(true, err))
	}
	return encodeStatus(nfsOK)
}
