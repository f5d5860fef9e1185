package v4

import (
	"bytes"

	"github.com/blburns/simple-nfsd-sub001/internal/nfserr"
	"github.com/blburns/simple-nfsd-sub001/internal/nfsproc/common"
	"github.com/blburns/simple-nfsd-sub001/internal/vfs"
	"github.com/blburns/simple-nfsd-sub001/internal/xdr"
)

// opGetattr implements GETATTR.
func opGetattr(ctx *common.Context, st *state, r *bytes.Reader) (uint32, []byte, error) {
	requested, err := decodeBitmap4(r)
	if err != nil {
		return nfserr.NFS4ErrBadXDR, nil, nil
	}
	if !st.hasCur {
		return nfserr.NFS4ErrNoFileHandle, nil, nil
	}
	attr, err := ctx.FS.Stat(st.curPath)
	if err != nil {
		return common.StatusFromErr(false, err), nil, nil
	}

	buf := new(bytes.Buffer)
	if err := encodeFattr4(buf, attr, requested); err != nil {
		return 0, nil, err
	}
	return nfserr.NFS4OK, buf.Bytes(), nil
}

// stateid4 is always a fixed 16-byte opaque (4-byte seqid, 12-byte other)
// on the wire; this server keeps no open/lock state, so it is decoded only
// to stay aligned with the stream and otherwise discarded.
func skipStateid4(r *bytes.Reader) error {
	_, err := xdr.GetFixedOpaque(r, 16)
	return err
}

// opSetattr implements SETATTR for the subset of attributes a stateless
// server can apply directly: MODE and SIZE. Any other bit in the client's
// attrmask yields NFS4ERR_ATTRNOTSUPP for the whole fattr4.
func opSetattr(ctx *common.Context, st *state, r *bytes.Reader) (uint32, []byte, error) {
	if err := skipStateid4(r); err != nil {
		return nfserr.NFS4ErrBadXDR, nil, nil
	}
	bitmap, err := decodeBitmap4(r)
	if err != nil {
		return nfserr.NFS4ErrBadXDR, nil, nil
	}
	vals, err := xdr.GetOpaque(r)
	if err != nil {
		return nfserr.NFS4ErrBadXDR, nil, nil
	}
	if !st.hasCur {
		return nfserr.NFS4ErrNoFileHandle, nil, nil
	}

	var sa vfs.SetAttr
	applied := map[int]bool{}
	vr := bytes.NewReader(vals)
	for _, b := range []int{fattr4Size, fattr4Mode} {
		if !bitmap[b] {
			continue
		}
		switch b {
		case fattr4Size:
			size, err := xdr.GetUint64(vr)
			if err != nil {
				return nfserr.NFS4ErrBadXDR, nil, nil
			}
			sa.Size = &size
			applied[b] = true
		case fattr4Mode:
			mode, err := xdr.GetUint32(vr)
			if err != nil {
				return nfserr.NFS4ErrBadXDR, nil, nil
			}
			sa.Mode = &mode
			applied[b] = true
		}
		delete(bitmap, b)
	}
	if len(bitmap) > 0 {
		const nfs4ErrAttrNotSupp = 10032 // NFS4ERR_ATTRNOTSUPP
		return nfs4ErrAttrNotSupp, nil, nil
	}

	if _, _, status, ok := ctx.CheckAccess(false, st.curPath, true); !ok {
		return status, nil, nil
	}
	if _, err := ctx.FS.SetAttr(st.curPath, sa); err != nil {
		return common.StatusFromErr(false, err), nil, nil
	}

	var set []int
	for b := range applied {
		set = append(set, b)
	}
	buf := new(bytes.Buffer)
	if err := encodeBitmap4(buf, set); err != nil {
		return 0, nil, err
	}
	return nfserr.NFS4OK, buf.Bytes(), nil
}

// opAccess implements ACCESS, reusing v3's bit layout (RFC 7530 §14.2.3
// defines the same ACCESS3/ACCESS4 bits).
func opAccess(ctx *common.Context, st *state, r *bytes.Reader) (uint32, []byte, error) {
	requested, err := xdr.GetUint32(r)
	if err != nil {
		return nfserr.NFS4ErrBadXDR, nil, nil
	}
	if !st.hasCur {
		return nfserr.NFS4ErrNoFileHandle, nil, nil
	}

	const (
		accessRead    = 0x0001
		accessLookup  = 0x0002
		accessModify  = 0x0004
		accessExtend  = 0x0008
		accessDelete  = 0x0010
		accessExecute = 0x0020
	)
	const all = accessRead | accessLookup | accessModify | accessExtend | accessDelete | accessExecute

	var granted uint32
	if _, _, _, ok := ctx.CheckAccess(false, st.curPath, false); ok {
		granted |= requested & (accessRead | accessLookup | accessExecute)
	}
	if _, _, _, ok := ctx.CheckAccess(false, st.curPath, true); ok {
		granted |= requested & (accessModify | accessExtend | accessDelete)
	}

	buf := new(bytes.Buffer)
	if err := xdr.PutUint32(buf, all); err != nil {
		return 0, nil, err
	}
	if err := xdr.PutUint32(buf, granted); err != nil {
		return 0, nil, err
	}
	return nfserr.NFS4OK, buf.Bytes(), nil
}
