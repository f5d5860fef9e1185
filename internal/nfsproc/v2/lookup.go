package v2

import (
	"bytes"

	"github.com/blburns/simple-nfsd-sub001/internal/nfsproc/common"
	"github.com/blburns/simple-nfsd-sub001/internal/vfs"
	"github.com/blburns/simple-nfsd-sub001/internal/xdr"
)

// decodeDirop decodes a diropargs2: a directory handle plus an entry name.
func decodeDirop(r *bytes.Reader) ([]byte, string, error) {
	dirHandle, err := xdr.GetFixedOpaque(r, 32)
	if err != nil {
		return nil, "", err
	}
	name, err := xdr.GetString(r)
	if err != nil {
		return nil, "", err
	}
	return dirHandle, name, nil
}

func handleLookup(ctx *common.Context, args []byte) ([]byte, error) {
	r := bytes.NewReader(args)
	dirHandle, name, err := decodeDirop(r)
	if err != nil {
		return encodeStatus(nfsErrInval)
	}

	dirPath, status, ok := ctx.ResolveHandle(true, dirHandle)
	if !ok {
		return encodeStatus(status)
	}
	if _, _, status, ok := ctx.CheckAccess(true, dirPath, false); !ok {
		return encodeStatus(status)
	}

	childPath, attr, err := ctx.FS.Lookup(dirPath, name)
	if err != nil {
		return encodeStatus(common.StatusFromErr(true, err))
	}
	return replyDirop(nfsOK, ctx.Handles.HandleFor(ctx.Version, childPath), &attr)
}

func replyDirop(status uint32, handleBytes []byte, attr *vfs.Attr) ([]byte, error) {
	buf := new(bytes.Buffer)
	if err := xdr.PutUint32(buf, status); err != nil {
		return nil, err
	}
	if status != nfsOK {
		return buf.Bytes(), nil
	}
	if err := xdr.PutFixedOpaque(buf, handleBytes); err != nil {
		return nil, err
	}
	if err := PutFattr2(buf, *attr); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
