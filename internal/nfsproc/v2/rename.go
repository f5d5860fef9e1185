package v2

import (
	"bytes"

	"github.com/blburns/simple-nfsd-sub001/internal/nfsproc/common"
)

func handleRename(ctx *common.Context, args []byte) ([]byte, error) {
	r := bytes.NewReader(args)
	fromDirHandle, fromName, err := decodeDirop(r)
	if err != nil {
		return encodeStatus(nfsErrInval)
	}
	toDirHandle, toName, err := decodeDirop(r)
	if err != nil {
		return encodeStatus(nfsErrInval)
	}

	fromDir, status, ok := ctx.ResolveHandle(true, fromDirHandle)
	if !ok {
		return encodeStatus(status)
	}
	toDir, status, ok := ctx.ResolveHandle(true, toDirHandle)
	if !ok {
		return encodeStatus(status)
	}
	if _, _, status, ok := ctx.CheckAccess(true, fromDir, true); !ok {
		return encodeStatus(status)
	}
	if _, _, status, ok := ctx.CheckAccess(true, toDir, true); !ok {
		return encodeStatus(status)
	}

	if err := ctx.FS.Rename(fromDir, fromName, toDir, toName); err != nil {
		return encodeStatus(common.StatusFromErr(true, err))
	}
	ctx.Handles.Rename(fromDir+"/"+fromName, toDir+"/"+toName)
	return encodeStatus(nfsOK)
}
