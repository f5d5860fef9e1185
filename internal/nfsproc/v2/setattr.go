package v2

import (
	"bytes"

	"github.com/blburns/simple-nfsd-sub001/internal/nfsproc/common"
	"github.com/blburns/simple-nfsd-sub001/internal/vfs"
	"github.com/blburns/simple-nfsd-sub001/internal/xdr"
)

const unchanged32 = 0xFFFFFFFF

// decodeSattr2 decodes the fixed NFSv2 sattr structure, where a field value
// of all-ones means "leave unchanged" (RFC 1094 §2.3.4) -- unlike v3's
// explicit optional unions, v2 has no discriminant.
func decodeSattr2(r *bytes.Reader) (vfs.SetAttr, error) {
	var sa vfs.SetAttr
	mode, err := xdr.GetUint32(r)
	if err != nil {
		return sa, err
	}
	uid, err := xdr.GetUint32(r)
	if err != nil {
		return sa, err
	}
	gid, err := xdr.GetUint32(r)
	if err != nil {
		return sa, err
	}
	size, err := xdr.GetUint32(r)
	if err != nil {
		return sa, err
	}
	atimeSec, err := xdr.GetUint32(r)
	if err != nil {
		return sa, err
	}
	if _, err := xdr.GetUint32(r); err != nil { // atime useconds, unused
		return sa, err
	}
	mtimeSec, err := xdr.GetUint32(r)
	if err != nil {
		return sa, err
	}
	if _, err := xdr.GetUint32(r); err != nil { // mtime useconds, unused
		return sa, err
	}

	if mode != unchanged32 {
		sa.Mode = &mode
	}
	if uid != unchanged32 {
		sa.UID = &uid
	}
	if gid != unchanged32 {
		sa.GID = &gid
	}
	if size != unchanged32 {
		s := uint64(size)
		sa.Size = &s
	}
	if atimeSec != unchanged32 {
		t := secondsToTime(atimeSec)
		sa.Atime = &t
	}
	if mtimeSec != unchanged32 {
		t := secondsToTime(mtimeSec)
		sa.Mtime = &t
	}
	return sa, nil
}

func handleSetattr(ctx *common.Context, args []byte) ([]byte, error) {
	r := bytes.NewReader(args)
	handle, err := xdr.GetFixedOpaque(r, 32)
	if err != nil {
		return encodeStatus(nfsErrInval)
	}
	sa, err := decodeSattr2(r)
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

	attr, err := ctx.FS.SetAttr(path, sa)
	if err != nil {
		return encodeStatus(common.StatusFromErr(true, err))
	}
	return encodeAttrStat(nfsOK, &attr)
}
