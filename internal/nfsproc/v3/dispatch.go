// Package v3 implements the NFSv3 procedure handlers of RFC 1813 (spec
// §4.6). Each handler decodes its own arguments off the raw call body,
// consults the file-handle table and export gate via common.Context, calls
// into the VFS adapter, and encodes its own reply.
package v3

import (
	"bytes"

	"github.com/blburns/simple-nfsd-sub001/internal/nfsproc/common"
	"github.com/blburns/simple-nfsd-sub001/internal/xdr"
)

// Procedure numbers (RFC 1813 §3.3).
const (
	ProcNull        = 0
	ProcGetattr     = 1
	ProcSetattr     = 2
	ProcLookup      = 3
	ProcAccess      = 4
	ProcReadlink    = 5
	ProcRead        = 6
	ProcWrite       = 7
	ProcCreate      = 8
	ProcMkdir       = 9
	ProcSymlink     = 10
	ProcMknod       = 11
	ProcRemove      = 12
	ProcRmdir       = 13
	ProcRename      = 14
	ProcLink        = 15
	ProcReaddir     = 16
	ProcReaddirplus = 17
	ProcFsstat      = 18
	ProcFsinfo      = 19
	ProcPathconf    = 20
	ProcCommit      = 21

	ProcMax = ProcCommit
)

// Handler decodes args, performs the operation, and returns the already
// XDR-encoded reply body.
type Handler func(ctx *common.Context, args []byte) ([]byte, error)

// Dispatch routes a decoded procedure number to its handler.
func Dispatch(ctx *common.Context, proc uint32, args []byte) ([]byte, bool, error) {
	h, ok := table[proc]
	if !ok {
		return nil, false, nil
	}
	body, err := h(ctx, args)
	return body, true, err
}

var table = map[uint32]Handler{
	ProcNull:        handleNull,
	ProcGetattr:     handleGetattr,
	ProcSetattr:     handleSetattr,
	ProcLookup:      handleLookup,
	ProcAccess:      handleAccess,
	ProcReadlink:    handleReadlink,
	ProcRead:        handleRead,
	ProcWrite:       handleWrite,
	ProcCreate:      handleCreate,
	ProcMkdir:       handleMkdir,
	ProcSymlink:     handleSymlink,
	ProcMknod:       handleMknod,
	ProcRemove:      handleRemove,
	ProcRmdir:       handleRmdir,
	ProcRename:      handleRename,
	ProcLink:        handleLink,
	ProcReaddir:     handleReaddir,
	ProcReaddirplus: handleReaddirplus,
	ProcFsstat:      handleFsstat,
	ProcFsinfo:      handleFsinfo,
	ProcPathconf:    handlePathconf,
	ProcCommit:      handleCommit,
}

// statusOnly encodes a bare {status} reply, used whenever an early failure
// (bad handle, gate denial) leaves nothing else to report.
func statusOnly(status uint32) ([]byte, error) {
	buf := new(bytes.Buffer)
	if err := xdr.PutUint32(buf, status); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
