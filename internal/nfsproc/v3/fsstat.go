package v3

import (
	"bytes"

	"github.com/blburns/simple-nfsd-sub001/internal/nfserr"
	"github.com/blburns/simple-nfsd-sub001/internal/nfsproc/common"
	"github.com/blburns/simple-nfsd-sub001/internal/vfs"
	"github.com/blburns/simple-nfsd-sub001/internal/xdr"
)

// handleFsstat implements NFSPROC3_FSSTAT.
func handleFsstat(ctx *common.Context, args []byte) ([]byte, error) {
	r := bytes.NewReader(args)
	handle, err := xdr.GetOpaque(r)
	if err != nil {
		return statusOnly(nfserr.NFS3ErrInval)
	}

	path, status, ok := ctx.ResolveHandle(true, handle)
	if !ok {
		return replyFsstat(status, nil, vfs.Statfs{})
	}
	if _, _, status, ok := ctx.CheckAccess(true, path, false); !ok {
		return replyFsstat(status, nil, vfs.Statfs{})
	}

	attr, attrErr := ctx.FS.Stat(path)
	var attrPtr *vfs.Attr
	if attrErr == nil {
		attrPtr = &attr
	}
	fs, err := ctx.FS.StatFS(path)
	if err != nil {
		return replyFsstat(common.StatusFromErr(true, err), attrPtr, vfs.Statfs{})
	}
	return replyFsstat(nfserr.NFS3OK, attrPtr, fs)
}

func replyFsstat(status uint32, attr *vfs.Attr, fs vfs.Statfs) ([]byte, error) {
	buf := new(bytes.Buffer)
	if err := xdr.PutUint32(buf, status); err != nil {
		return nil, err
	}
	if err := common.PutPostOpAttr(buf, attr); err != nil {
		return nil, err
	}
	if status != nfserr.NFS3OK {
		return buf.Bytes(), nil
	}
	for _, v := range []uint64{fs.TotalBytes, fs.FreeBytes, fs.AvailBytes, fs.TotalFiles, fs.FreeFiles, fs.AvailFiles} {
		if err := xdr.PutUint64(buf, v); err != nil {
			return nil, err
		}
	}
	if err := xdr.PutUint32(buf, 0); err != nil { // invarsec: no guaranteed invariance interval
		return nil, err
	}
	return buf.Bytes(), nil
}

// handleFsinfo implements NFSPROC3_FSINFO.
func handleFsinfo(ctx *common.Context, args []byte) ([]byte, error) {
	r := bytes.NewReader(args)
	handle, err := xdr.GetOpaque(r)
	if err != nil {
		return statusOnly(nfserr.NFS3ErrInval)
	}

	path, status, ok := ctx.ResolveHandle(true, handle)
	if !ok {
		return replyFsinfo(status, nil)
	}

	attr, attrErr := ctx.FS.Stat(path)
	var attrPtr *vfs.Attr
	if attrErr == nil {
		attrPtr = &attr
	}
	return replyFsinfo(nfserr.NFS3OK, attrPtr)
}

func replyFsinfo(status uint32, attr *vfs.Attr) ([]byte, error) {
	buf := new(bytes.Buffer)
	if err := xdr.PutUint32(buf, status); err != nil {
		return nil, err
	}
	if err := common.PutPostOpAttr(buf, attr); err != nil {
		return nil, err
	}
	if status != nfserr.NFS3OK {
		return buf.Bytes(), nil
	}
	for _, v := range []uint32{MaxReadCount, MaxReadCount, 4096, MaxReadCount, MaxReadCount, 4096, 4096} {
		if err := xdr.PutUint32(buf, v); err != nil {
			return nil, err
		}
	}
	if err := xdr.PutUint64(buf, 1<<44); err != nil { // maxfilesize
		return nil, err
	}
	if err := xdr.PutUint32(buf, 1); err != nil { // time_delta.seconds
		return nil, err
	}
	if err := xdr.PutUint32(buf, 0); err != nil { // time_delta.nseconds
		return nil, err
	}
	if err := xdr.PutUint32(buf, 0x0000001B); err != nil { // FSF3_LINK|FSF3_SYMLINK|FSF3_HOMOGENEOUS|FSF3_CANSETTIME
		return nil, err
	}
	return buf.Bytes(), nil
}

// handlePathconf implements NFSPROC3_PATHCONF.
func handlePathconf(ctx *common.Context, args []byte) ([]byte, error) {
	r := bytes.NewReader(args)
	handle, err := xdr.GetOpaque(r)
	if err != nil {
		return statusOnly(nfserr.NFS3ErrInval)
	}

	path, status, ok := ctx.ResolveHandle(true, handle)
	if !ok {
		return replyPathconf(status, nil)
	}

	attr, attrErr := ctx.FS.Stat(path)
	var attrPtr *vfs.Attr
	if attrErr == nil {
		attrPtr = &attr
	}
	return replyPathconf(nfserr.NFS3OK, attrPtr)
}

func replyPathconf(status uint32, attr *vfs.Attr) ([]byte, error) {
	buf := new(bytes.Buffer)
	if err := xdr.PutUint32(buf, status); err != nil {
		return nil, err
	}
	if err := common.PutPostOpAttr(buf, attr); err != nil {
		return nil, err
	}
	if status != nfserr.NFS3OK {
		return buf.Bytes(), nil
	}
	if err := xdr.PutUint32(buf, 32000); err != nil { // linkmax
		return nil, err
	}
	if err := xdr.PutUint32(buf, 255); err != nil { // name_max
		return nil, err
	}
	if err := xdr.PutBool(buf, true); err != nil { // no_trunc
		return nil, err
	}
	if err := xdr.PutBool(buf, false); err != nil { // chown_restricted
		return nil, err
	}
	if err := xdr.PutBool(buf, false); err != nil { // case_insensitive
		return nil, err
	}
	if err := xdr.PutBool(buf, true); err != nil { // case_preserving
		return nil, err
	}
	return buf.Bytes(), nil
}
