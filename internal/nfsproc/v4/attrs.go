package v4

import (
	"bytes"
	"io"

	"github.com/blburns/simple-nfsd-sub001/internal/vfs"
	"github.com/blburns/simple-nfsd-sub001/internal/xdr"
)

// Supported FATTR4_* bit numbers (RFC 7530 §5.8), in ascending order -- the
// order attr_vals must be written in. Only a read-mostly subset is
// implemented: no ACL, owner/owner_group (string-to-uid mapping is out of
// scope), or quota attributes.
const (
	fattr4Type         = 1
	fattr4Change       = 3
	fattr4Size         = 4
	fattr4Fsid         = 8
	fattr4Fileid       = 20
	fattr4Mode         = 33
	fattr4Numlinks     = 35
	fattr4TimeAccess   = 47
	fattr4TimeMetadata = 52
	fattr4TimeModify   = 53
)

var supportedBits = []int{
	fattr4Type, fattr4Change, fattr4Size, fattr4Fsid, fattr4Fileid,
	fattr4Mode, fattr4Numlinks, fattr4TimeAccess, fattr4TimeMetadata, fattr4TimeModify,
}

// decodeBitmap4 reads a bitmap4: a variable-length array of uint32 words,
// bit i of the logical bitmap living in word i/32, bit i%32 (LSB first).
func decodeBitmap4(r *bytes.Reader) (map[int]bool, error) {
	n, err := xdr.GetUint32(r)
	if err != nil {
		return nil, err
	}
	set := make(map[int]bool)
	for w := uint32(0); w < n; w++ {
		word, err := xdr.GetUint32(r)
		if err != nil {
			return nil, err
		}
		for bit := 0; bit < 32; bit++ {
			if word&(1<<uint(bit)) != 0 {
				set[int(w)*32+bit] = true
			}
		}
	}
	return set, nil
}

// encodeBitmap4 writes the minimal bitmap4 covering bits.
func encodeBitmap4(w io.Writer, bits []int) error {
	if len(bits) == 0 {
		return xdr.PutUint32(w, 0)
	}
	maxBit := 0
	for _, b := range bits {
		if b > maxBit {
			maxBit = b
		}
	}
	words := make([]uint32, maxBit/32+1)
	for _, b := range bits {
		words[b/32] |= 1 << uint(b%32)
	}
	if err := xdr.PutUint32(w, uint32(len(words))); err != nil {
		return err
	}
	for _, word := range words {
		if err := xdr.PutUint32(w, word); err != nil {
			return err
		}
	}
	return nil
}

func ftype4(t vfs.FileType) uint32 {
	switch t {
	case vfs.TypeRegular:
		return 1
	case vfs.TypeDirectory:
		return 2
	case vfs.TypeSymlink:
		return 5
	case vfs.TypeBlockDev:
		return 3
	case vfs.TypeCharDev:
		return 4
	case vfs.TypeSocket:
		return 6
	case vfs.TypeFIFO:
		return 7
	default:
		return 1
	}
}

// encodeFattr4 writes the bitmap+attr_vals pair for the bits in requested
// that this server supports, in ascending bit order.
func encodeFattr4(w io.Writer, attr vfs.Attr, requested map[int]bool) error {
	var present []int
	for _, b := range supportedBits {
		if requested == nil || requested[b] {
			present = append(present, b)
		}
	}
	if err := encodeBitmap4(w, present); err != nil {
		return err
	}

	vals := new(bytes.Buffer)
	for _, b := range present {
		switch b {
		case fattr4Type:
			if err := xdr.PutUint32(vals, ftype4(attr.Type)); err != nil {
				return err
			}
		case fattr4Change:
			if err := xdr.PutUint64(vals, uint64(attr.Mtime.UnixNano())); err != nil {
				return err
			}
		case fattr4Size:
			if err := xdr.PutUint64(vals, attr.Size); err != nil {
				return err
			}
		case fattr4Fsid:
			if err := xdr.PutUint64(vals, attr.Fsid); err != nil {
				return err
			}
			if err := xdr.PutUint64(vals, 0); err != nil {
				return err
			}
		case fattr4Fileid:
			if err := xdr.PutUint64(vals, attr.Fileid); err != nil {
				return err
			}
		case fattr4Mode:
			if err := xdr.PutUint32(vals, attr.Mode); err != nil {
				return err
			}
		case fattr4Numlinks:
			if err := xdr.PutUint32(vals, attr.Nlink); err != nil {
				return err
			}
		case fattr4TimeAccess:
			if err := putNfstime4(vals, attr.Atime); err != nil {
				return err
			}
		case fattr4TimeModify:
			if err := putNfstime4(vals, attr.Mtime); err != nil {
				return err
			}
		case fattr4TimeMetadata:
			if err := putNfstime4(vals, attr.Ctime); err != nil {
				return err
			}
		}
	}
	return xdr.PutOpaque(w, vals.Bytes())
}

type timeLike interface {
	Unix() int64
	Nanosecond() int
}

// putNfstime4 encodes nfstime4: a 64-bit signed seconds field followed by a
// 32-bit nanoseconds field.
func putNfstime4(w io.Writer, t timeLike) error {
	if err := xdr.PutInt64(w, t.Unix()); err != nil {
		return err
	}
	return xdr.PutUint32(w, uint32(t.Nanosecond()))
}
