package v2

import (
	"bytes"

	"github.com/blburns/simple-nfsd-sub001/internal/nfsproc/common"
	"github.com/blburns/simple-nfsd-sub001/internal/xdr"
)

const statfsBlockSize = 4096

func handleStatfs(ctx *common.Context, args []byte) ([]byte, error) {
	r := bytes.NewReader(args)
	handle, err := xdr.GetFixedOpaque(r, 32)
	if err != nil {
		return encodeStatus(nfsErrInval)
	}

	path, status, ok := ctx.ResolveHandle(true, handle)
	if !ok {
		return encodeStatus(status)
	}

	fs, err := ctx.FS.StatFS(path)
	if err != nil {
		return encodeStatus(common.StatusFromErr(true, err))
	}

	buf := new(bytes.Buffer)
	if err := xdr.PutUint32(buf, nfsOK); err != nil {
		return nil, err
	}
	vals := []uint32{
		MaxTransferSize,
		statfsBlockSize,
		uint32(fs.TotalBytes / statfsBlockSize),
		uint32(fs.FreeBytes / statfsBlockSize),
		uint32(fs.AvailBytes / statfsBlockSize),
	}
	for _, v := range vals {
		if err := xdr.PutUint32(buf, v); err != nil {
			return nil, err
		}
	}
	return buf.Bytes(), nil
}
