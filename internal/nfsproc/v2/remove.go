package v2

import (
	"bytes"

	"github.com/blburns/simple-nfsd-sub001/internal/nfsproc/common"
)

func handleRemove(ctx *common.Context, args []byte) ([]byte, error) {
	return removeInDir(ctx, args, func(dir, name string) error {
		return ctx.FS.Remove(dir, name)
	})
}

func handleRmdir(ctx *common.Context, args []byte) ([]byte, error) {
	return removeInDir(ctx, args, func(dir, name string) error {
		return ctx.FS.Rmdir(dir, name)
	})
}

func removeInDir(ctx *common.Context, args []byte, do func(dir, name string) error) ([]byte, error) {
	r := bytes.NewReader(args)
	dirHandle, name, err := decodeDirop(r)
	if err != nil {
		return encodeStatus(nfsErrInval)
	}

	dirPath, status, ok := ctx.ResolveHandle(true, dirHandle)
	if !ok {
		return encodeStatus(status)
	}
	if _, _, status, ok := ctx.CheckAccess(true, dirPath, true); !ok {
		return encodeStatus(status)
	}

	if err := do(dirPath, name); err != nil {
		return encodeStatus(common.StatusFromErr(true, err))
	}
	ctx.Handles.Forget(dirPath + "/" + name)
	return encodeStatus(nfsOK)
}
