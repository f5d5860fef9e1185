package v3

import (
	"bytes"

	"github.com/blburns/simple-nfsd-sub001/internal/nfserr"
	"github.com/blburns/simple-nfsd-sub001/internal/nfsproc/common"
	"github.com/blburns/simple-nfsd-sub001/internal/xdr"
)

// ACCESS3 bit values (RFC 1813 §3.3.4).
const (
	AccessRead    = 0x0001
	AccessLookup  = 0x0002
	AccessModify  = 0x0004
	AccessExtend  = 0x0008
	AccessDelete  = 0x0010
	AccessExecute = 0x0020
)

// handleAccess implements NFSPROC3_ACCESS. Granted bits are computed by
// running the export/access gate twice -- once for read-only intent, once
// for write intent -- since the gate is a yes/no decision rather than a
// bitmask; any bit the client did not ask for is never set regardless.
func handleAccess(ctx *common.Context, args []byte) ([]byte, error) {
	r := bytes.NewReader(args)
	handle, err := xdr.GetOpaque(r)
	if err != nil {
		return statusOnly(nfserr.NFS3ErrInval)
	}
	requested, err := xdr.GetUint32(r)
	if err != nil {
		return statusOnly(nfserr.NFS3ErrInval)
	}

	path, status, ok := ctx.ResolveHandle(true, handle)
	if !ok {
		return statusOnly(status)
	}

	attr, statErr := ctx.FS.Stat(path)

	var granted uint32
	if _, _, _, ok := ctx.CheckAccess(true, path, false); ok {
		granted |= requested & (AccessRead | AccessLookup | AccessExecute)
	}
	if _, _, _, ok := ctx.CheckAccess(true, path, true); ok {
		granted |= requested & (AccessModify | AccessExtend | AccessDelete)
	}

	buf := new(bytes.Buffer)
	if err := xdr.PutUint32(buf, nfserr.NFS3OK); err != nil {
		return nil, err
	}
	if statErr == nil {
		if err := common.PutPostOpAttr(buf, &attr); err != nil {
			return nil, err
		}
	} else {
		if err := common.PutPostOpAttr(buf, nil); err != nil {
			return nil, err
		}
	}
	if err := xdr.PutUint32(buf, granted); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
