package v2

import (
	"bytes"
	"io"
	"time"

	"github.com/blburns/simple-nfsd-sub001/internal/nfserr"
	"github.com/blburns/simple-nfsd-sub001/internal/vfs"
	"github.com/blburns/simple-nfsd-sub001/internal/xdr"
)

func secondsToTime(sec uint32) time.Time {
	return time.Unix(int64(sec), 0)
}

// zeroAttr is the fallback fattr2 encoded when a stat that should have
// succeeded races with a concurrent removal; all fields report zero rather
// than leaving the reply malformed.
func zeroAttr() vfs.Attr {
	epoch := time.Unix(0, 0)
	return vfs.Attr{Atime: epoch, Mtime: epoch, Ctime: epoch}
}

// NFSv2 reuses the NFSv3 integer status codes: the two protocols share the
// same small error-number space for everything but STALE/BADHANDLE
// distinctions, which v2 never makes (a bad handle and a stale handle are
// both just NFSERR_STALE on the wire).
const (
	nfsOK         = nfserr.NFS3OK
	nfsErrNotSupp = nfserr.NFS3ErrNotSupp
	nfsErrInval   = nfserr.NFS3ErrInval
)

// ftype2 values (RFC 1094 §2.3.3). v2 has no socket or FIFO type; both
// collapse to NFNON, matching what a v2-only server would report.
const (
	nfNon = 0
	nfReg = 1
	nfDir = 2
	nfBlk = 3
	nfChr = 4
	nfLnk = 5
)

func ftype2(t vfs.FileType) uint32 {
	switch t {
	case vfs.TypeRegular:
		return nfReg
	case vfs.TypeDirectory:
		return nfDir
	case vfs.TypeSymlink:
		return nfLnk
	case vfs.TypeBlockDev:
		return nfBlk
	case vfs.TypeCharDev:
		return nfChr
	default:
		return nfNon
	}
}

// PutFattr2 encodes the fixed 68-byte NFSv2 fattr structure.
func PutFattr2(w io.Writer, a vfs.Attr) error {
	u32s := []uint32{
		ftype2(a.Type), a.Mode, a.Nlink, a.UID, a.GID,
		uint32(a.Size), 4096, uint32(a.Rdev), uint32((a.Used + 511) / 512),
		uint32(a.Fsid), uint32(a.Fileid),
	}
	for _, v := range u32s {
		if err := xdr.PutUint32(w, v); err != nil {
			return err
		}
	}
	for _, t := range []timeSource{a.Atime, a.Mtime, a.Ctime} {
		if err := xdr.PutUint32(w, uint32(t.Unix())); err != nil {
			return err
		}
		if err := xdr.PutUint32(w, uint32(t.Nanosecond()/1000)); err != nil {
			return err
		}
	}
	return nil
}

type timeSource interface {
	Unix() int64
	Nanosecond() int
}

// PutAttrStat encodes the attrstat union: status followed by fattr2 when
// status is OK, nothing otherwise.
func PutAttrStat(w io.Writer, status uint32, a *vfs.Attr) error {
	if err := xdr.PutUint32(w, status); err != nil {
		return err
	}
	if status != nfsOK || a == nil {
		return nil
	}
	return PutFattr2(w, *a)
}

func encodeStatus(status uint32) ([]byte, error) {
	buf := new(bytes.Buffer)
	if err := xdr.PutUint32(buf, status); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func encodeAttrStat(status uint32, a *vfs.Attr) ([]byte, error) {
	buf := new(bytes.Buffer)
	if err := PutAttrStat(buf, status, a); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
