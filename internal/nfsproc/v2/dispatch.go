// Package v2 implements the NFSv2 procedure set (RFC 1094 §2.2), a thinner
// sibling of v3: 32-bit sizes/offsets, a fixed fattr layout, and no WCC on
// mutating replies. Where the wire shape coincides with v3 the handlers
// below reuse the v3 VFS access pattern directly.
package v2

import "github.com/blburns/simple-nfsd-sub001/internal/nfsproc/common"

// Procedure numbers (RFC 1094 §2.2). ROOT (3) and WRITECACHE (7) are
// obsolete in the protocol and always answered with ErrNotSupp.
const (
	ProcNull        = 0
	ProcGetattr     = 1
	ProcSetattr     = 2
	ProcRoot        = 3
	ProcLookup      = 4
	ProcReadlink    = 5
	ProcRead        = 6
	ProcWritecache  = 7
	ProcWrite       = 8
	ProcCreate      = 9
	ProcRemove      = 10
	ProcRename      = 11
	ProcLink        = 12
	ProcSymlink     = 13
	ProcMkdir       = 14
	ProcRmdir       = 15
	ProcReaddir     = 16
	ProcStatfs      = 17
	ProcMax         = ProcStatfs
)

// MaxTransferSize is the NFSv2 wire limit: READ/WRITE data is capped at
// 8KB per call (RFC 1094 §2.3.5/2.3.6).
const MaxTransferSize = 8192

// Handler decodes a procedure's arguments from a Context and returns the
// encoded reply body.
type Handler func(ctx *common.Context, args []byte) ([]byte, error)

var table = map[uint32]Handler{
	ProcNull:       handleNull,
	ProcGetattr:    handleGetattr,
	ProcSetattr:    handleSetattr,
	ProcRoot:       handleObsolete,
	ProcLookup:     handleLookup,
	ProcReadlink:   handleReadlink,
	ProcRead:       handleRead,
	ProcWritecache: handleObsolete,
	ProcWrite:      handleWrite,
	ProcCreate:     handleCreate,
	ProcRemove:     handleRemove,
	ProcRename:     handleRename,
	ProcLink:       handleLink,
	ProcSymlink:    handleSymlink,
	ProcMkdir:      handleMkdir,
	ProcRmdir:      handleRmdir,
	ProcReaddir:    handleReaddir,
	ProcStatfs:     handleStatfs,
}

// Dispatch routes proc to its handler. ok is false for an unknown
// procedure number, signalling the caller to reply PROC_UNAVAIL.
func Dispatch(ctx *common.Context, proc uint32, args []byte) ([]byte, bool, error) {
	h, ok := table[proc]
	if !ok {
		return nil, false, nil
	}
	reply, err := h(ctx, args)
	return reply, true, err
}

func handleObsolete(ctx *common.Context, args []byte) ([]byte, error) {
	return encodeStatus(nfsErrNotSupp)
}
