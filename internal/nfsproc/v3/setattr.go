package v3

import (
	"bytes"
	"time"

	"github.com/blburns/simple-nfsd-sub001/internal/nfserr"
	"github.com/blburns/simple-nfsd-sub001/internal/nfsproc/common"
	"github.com/blburns/simple-nfsd-sub001/internal/vfs"
	"github.com/blburns/simple-nfsd-sub001/internal/xdr"
)

// time_how3 discriminants (RFC 1813 §2.6 set_mtime).
const (
	dontChange      = 0
	setToServerTime = 1
	setToClientTime = 2
)

func decodeSetAttr3(r *bytes.Reader) (vfs.SetAttr, error) {
	var sa vfs.SetAttr

	setMode, err := xdr.GetBool(r)
	if err != nil {
		return sa, err
	}
	if setMode {
		mode, err := xdr.GetUint32(r)
		if err != nil {
			return sa, err
		}
		sa.Mode = &mode
	}

	setUID, err := xdr.GetBool(r)
	if err != nil {
		return sa, err
	}
	if setUID {
		uid, err := xdr.GetUint32(r)
		if err != nil {
			return sa, err
		}
		sa.UID = &uid
	}

	setGID, err := xdr.GetBool(r)
	if err != nil {
		return sa, err
	}
	if setGID {
		gid, err := xdr.GetUint32(r)
		if err != nil {
			return sa, err
		}
		sa.GID = &gid
	}

	setSize, err := xdr.GetBool(r)
	if err != nil {
		return sa, err
	}
	if setSize {
		size, err := xdr.GetUint64(r)
		if err != nil {
			return sa, err
		}
		sa.Size = &size
	}

	if t, err := decodeSetTime(r); err != nil {
		return sa, err
	} else if t != nil {
		sa.Atime = t
	}
	if t, err := decodeSetTime(r); err != nil {
		return sa, err
	} else if t != nil {
		sa.Mtime = t
	}

	return sa, nil
}

func decodeSetTime(r *bytes.Reader) (*time.Time, error) {
	how, err := xdr.GetUint32(r)
	if err != nil {
		return nil, err
	}
	switch how {
	case setToClientTime:
		sec, err := xdr.GetUint32(r)
		if err != nil {
			return nil, err
		}
		nsec, err := xdr.GetUint32(r)
		if err != nil {
			return nil, err
		}
		t := time.Unix(int64(sec), int64(nsec))
		return &t, nil
	case setToServerTime:
		now := time.Now()
		return &now, nil
	default: // dontChange
		return nil, nil
	}
}

// handleSetattr implements NFSPROC3_SETATTR (RFC 1813 §3.3.2). The optional
// sattrguard3 ctime check is decoded but not enforced against filesystem
// state: the VFS adapter has no race-free compare-and-swap chmod/chown
// primitive to apply it against.
func handleSetattr(ctx *common.Context, args []byte) ([]byte, error) {
	r := bytes.NewReader(args)
	handle, err := xdr.GetOpaque(r)
	if err != nil {
		return statusOnly(nfserr.NFS3ErrInval)
	}
	sa, err := decodeSetAttr3(r)
	if err != nil {
		return statusOnly(nfserr.NFS3ErrInval)
	}
	guarded, err := xdr.GetBool(r)
	if err != nil {
		return statusOnly(nfserr.NFS3ErrInval)
	}
	if guarded {
		if _, err := xdr.GetUint32(r); err != nil { // guard ctime seconds
			return statusOnly(nfserr.NFS3ErrInval)
		}
		if _, err := xdr.GetUint32(r); err != nil { // guard ctime nseconds
			return statusOnly(nfserr.NFS3ErrInval)
		}
	}

	path, status, ok := ctx.ResolveHandle(true, handle)
	if !ok {
		return statusOnly(status)
	}

	pre, preErr := ctx.FS.Stat(path)

	_, _, status, ok = ctx.CheckAccess(true, path, true)
	if !ok {
		return replyWCC(status, pre, preErr, nil)
	}

	post, err := ctx.FS.SetAttr(path, sa)
	if err != nil {
		return replyWCC(common.StatusFromErr(true, err), pre, preErr, nil)
	}
	ctx.InvalidateAttr(path)
	return replyWCC(nfserr.NFS3OK, pre, preErr, &post)
}

// replyWCC encodes {status, wcc_data} where wcc_data's pre_op_attr is
// present only when the pre-operation stat succeeded.
func replyWCC(status uint32, pre vfs.Attr, preErr error, post *vfs.Attr) ([]byte, error) {
	buf := new(bytes.Buffer)
	if err := xdr.PutUint32(buf, status); err != nil {
		return nil, err
	}
	var preAttr *common.WCCAttr
	if preErr == nil {
		preAttr = common.WCCFromAttr(pre)
	}
	if err := common.PutWCCData(buf, preAttr, post); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
