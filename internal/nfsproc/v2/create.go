package v2

import (
	"bytes"

	"github.com/blburns/simple-nfsd-sub001/internal/nfsproc/common"
	"github.com/blburns/simple-nfsd-sub001/internal/xdr"
)

func handleCreate(ctx *common.Context, args []byte) ([]byte, error) {
	r := bytes.NewReader(args)
	dirHandle, name, err := decodeDirop(r)
	if err != nil {
		return encodeStatus(nfsErrInval)
	}
	sa, err := decodeSattr2(r)
	if err != nil {
		return encodeStatus(nfsErrInval)
	}
	mode := uint32(0644)
	if sa.Mode != nil {
		mode = *sa.Mode
	}

	dirPath, status, ok := ctx.ResolveHandle(true, dirHandle)
	if !ok {
		return encodeStatus(status)
	}
	if _, _, status, ok := ctx.CheckAccess(true, dirPath, true); !ok {
		return encodeStatus(status)
	}

	childPath, attr, err := ctx.FS.Create(dirPath, name, mode, false)
	if err != nil {
		return encodeStatus(common.StatusFromErr(true, err))
	}
	return replyDirop(nfsOK, ctx.Handles.HandleFor(ctx.Version, childPath), &attr)
}

func handleMkdir(ctx *common.Context, args []byte) ([]byte, error) {
	r := bytes.NewReader(args)
	dirHandle, name, err := decodeDirop(r)
	if err != nil {
		return encodeStatus(nfsErrInval)
	}
	sa, err := decodeSattr2(r)
	if err != nil {
		return encodeStatus(nfsErrInval)
	}
	mode := uint32(0755)
	if sa.Mode != nil {
		mode = *sa.Mode
	}

	dirPath, status, ok := ctx.ResolveHandle(true, dirHandle)
	if !ok {
		return encodeStatus(status)
	}
	if _, _, status, ok := ctx.CheckAccess(true, dirPath, true); !ok {
		return encodeStatus(status)
	}

	childPath, attr, err := ctx.FS.Mkdir(dirPath, name, mode)
	if err != nil {
		return encodeStatus(common.StatusFromErr(true, err))
	}
	return replyDirop(nfsOK, ctx.Handles.HandleFor(ctx.Version, childPath), &attr)
}

func handleSymlink(ctx *common.Context, args []byte) ([]byte, error) {
	r := bytes.NewReader(args)
	dirHandle, name, err := decodeDirop(r)
	if err != nil {
		return encodeStatus(nfsErrInval)
	}
	target, err := xdr.GetString(r)
	if err != nil {
		return encodeStatus(nfsErrInval)
	}
	sa, err := decodeSattr2(r)
	if err != nil {
		return encodeStatus(nfsErrInval)
	}
	mode := uint32(0777)
	if sa.Mode != nil {
		mode = *sa.Mode
	}

	dirPath, status, ok := ctx.ResolveHandle(true, dirHandle)
	if !ok {
		return encodeStatus(status)
	}
	if _, _, status, ok := ctx.CheckAccess(true, dirPath, true); !ok {
		return encodeStatus(status)
	}

	if _, _, err := ctx.FS.Symlink(dirPath, name, target, mode); err != nil {
		return encodeStatus(common.StatusFromErr(true, err))
	}
	// SYMLINK2 has no handle/attrs in its reply (RFC 1094 §2.2.14): bare status.
	return encodeStatus(nfsOK)
}
