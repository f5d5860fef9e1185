package common

import (
	"io"

	"github.com/blburns/simple-nfsd-sub001/internal/vfs"
	"github.com/blburns/simple-nfsd-sub001/internal/xdr"
)

// NFSv3 ftype3 values (RFC 1813 §2.5).
const (
	NF3Reg  = 1
	NF3Dir  = 2
	NF3Blk  = 3
	NF3Chr  = 4
	NF3Lnk  = 5
	NF3Sock = 6
	NF3Fifo = 7
)

func ftype3(t vfs.FileType) uint32 {
	switch t {
	case vfs.TypeDirectory:
		return NF3Dir
	case vfs.TypeSymlink:
		return NF3Lnk
	case vfs.TypeBlockDev:
		return NF3Blk
	case vfs.TypeCharDev:
		return NF3Chr
	case vfs.TypeSocket:
		return NF3Sock
	case vfs.TypeFIFO:
		return NF3Fifo
	default:
		return NF3Reg
	}
}

// PutFattr3 encodes the fixed fattr3 structure (RFC 1813 §2.6).
func PutFattr3(w io.Writer, a vfs.Attr) error {
	puts := []func() error{
		func() error { return xdr.PutUint32(w, ftype3(a.Type)) },
		func() error { return xdr.PutUint32(w, a.Mode) },
		func() error { return xdr.PutUint32(w, a.Nlink) },
		func() error { return xdr.PutUint32(w, a.UID) },
		func() error { return xdr.PutUint32(w, a.GID) },
		func() error { return xdr.PutUint64(w, a.Size) },
		func() error { return xdr.PutUint64(w, a.Used) },
		func() error { return xdr.PutUint64(w, a.Rdev) }, // specdata collapsed to one u64 here
		func() error { return xdr.PutUint64(w, a.Fsid) },
		func() error { return xdr.PutUint64(w, a.Fileid) },
		func() error { return putNfsTime3(w, a.Atime) },
		func() error { return putNfsTime3(w, a.Mtime) },
		func() error { return putNfsTime3(w, a.Ctime) },
	}
	for _, p := range puts {
		if err := p(); err != nil {
			return err
		}
	}
	return nil
}

func putNfsTime3(w io.Writer, t attrTime) error {
	sec, nsec := t.Unix(), int64(t.Nanosecond())
	if err := xdr.PutUint32(w, uint32(sec)); err != nil {
		return err
	}
	return xdr.PutUint32(w, uint32(nsec))
}

// attrTime is satisfied by time.Time; kept narrow so this file only depends
// on the two methods it actually uses.
type attrTime interface {
	Unix() int64
	Nanosecond() int
}

// PutPostOpAttr writes the NFSv3 post_op_attr optional: present=true then
// the full fattr3, or present=false.
func PutPostOpAttr(w io.Writer, a *vfs.Attr) error {
	if a == nil {
		return xdr.PutBool(w, false)
	}
	if err := xdr.PutBool(w, true); err != nil {
		return err
	}
	return PutFattr3(w, *a)
}

// WCCAttr is the pre-operation subset of fattr3 used for weak cache
// consistency (RFC 1813 §2.6 wcc_attr).
type WCCAttr struct {
	Size  uint64
	Mtime attrTime
	Ctime attrTime
}

// PutPreOpAttr writes the NFSv3 pre_op_attr optional.
func PutPreOpAttr(w io.Writer, a *WCCAttr) error {
	if a == nil {
		return xdr.PutBool(w, false)
	}
	if err := xdr.PutBool(w, true); err != nil {
		return err
	}
	if err := xdr.PutUint64(w, a.Size); err != nil {
		return err
	}
	if err := putNfsTime3(w, a.Mtime); err != nil {
		return err
	}
	return putNfsTime3(w, a.Ctime)
}

// WCCFromAttr extracts the pre_op_attr subset from a full Attr snapshot.
func WCCFromAttr(a vfs.Attr) *WCCAttr {
	return &WCCAttr{Size: a.Size, Mtime: a.Mtime, Ctime: a.Ctime}
}

// PutWCCData writes a full wcc_data: pre_op_attr then post_op_attr.
func PutWCCData(w io.Writer, pre *WCCAttr, post *vfs.Attr) error {
	if err := PutPreOpAttr(w, pre); err != nil {
		return err
	}
	return PutPostOpAttr(w, post)
}
