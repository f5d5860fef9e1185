package v2

import (
	"bytes"

	"github.com/blburns/simple-nfsd-sub001/internal/nfsproc/common"
	"github.com/blburns/simple-nfsd-sub001/internal/xdr"
)

func handleReaddir(ctx *common.Context, args []byte) ([]byte, error) {
	r := bytes.NewReader(args)
	handle, err := xdr.GetFixedOpaque(r, 32)
	if err != nil {
		return encodeStatus(nfsErrInval)
	}
	cookie, err := xdr.GetUint32(r)
	if err != nil {
		return encodeStatus(nfsErrInval)
	}
	count, err := xdr.GetUint32(r)
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

	maxEntries := int(count / 32)
	if maxEntries < 1 {
		maxEntries = 1
	}
	entries, eof, err := ctx.FS.Readdir(path, uint64(cookie), maxEntries)
	if err != nil {
		return encodeStatus(common.StatusFromErr(true, err))
	}

	buf := new(bytes.Buffer)
	if err := xdr.PutUint32(buf, nfsOK); err != nil {
		return nil, err
	}
	for _, ent := range entries {
		if err := xdr.PutBool(buf, true); err != nil {
			return nil, err
		}
		if err := xdr.PutUint32(buf, uint32(ent.Fileid)); err != nil {
			return nil, err
		}
		if err := xdr.PutString(buf, ent.Name); err != nil {
			return nil, err
		}
		if err := xdr.PutUint32(buf, uint32(ent.Cookie)); err != nil {
			return nil, err
		}
	}
	if err := xdr.PutBool(buf, false); err != nil {
		return nil, err
	}
	if err := xdr.PutBool(buf, eof); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
