// Package v4 implements the stateless subset of NFSv4.0 COMPOUND processing
// (RFC 7530): filehandle and directory/IO operations that map directly onto
// the same VFS and export gate v2/v3 use, plus acknowledge-only stubs for
// operations a client may still send (state management, v4.1 sessions)
// that this server does not implement.
package v4

import (
	"bytes"

	"github.com/blburns/simple-nfsd-sub001/internal/nfserr"
	"github.com/blburns/simple-nfsd-sub001/internal/nfsproc/common"
	"github.com/blburns/simple-nfsd-sub001/internal/xdr"
)

// Operation numbers (RFC 7530 §1.2 / §17; session ops are RFC 5661 and
// answered MINOR_VERS_MISMATCH since this server speaks minorversion 0).
const (
	OpAccess            = 3
	OpClose             = 4
	OpCommit            = 5
	OpCreate            = 6
	OpDelegReturn       = 8
	OpGetattr           = 9
	OpGetfh             = 10
	OpLink              = 11
	OpLock              = 12
	OpLocku             = 14
	OpLookup            = 15
	OpLookupp           = 16
	OpOpen              = 18
	OpPutfh             = 22
	OpPutrootfh         = 24
	OpRead              = 25
	OpReaddir           = 26
	OpReadlink          = 27
	OpRemove            = 28
	OpRename            = 29
	OpRestorefh         = 31
	OpSavefh            = 32
	OpSetattr           = 34
	OpWrite             = 38
	OpBindConnToSession = 41
	OpExchangeID        = 42
	OpCreateSession     = 43
	OpDestroySession    = 44
	OpGetDeviceInfo     = 47
	OpSequence          = 53
	OpDestroyClientID   = 57
	OpReclaimComplete   = 58
)

// state threads the current/saved filehandle across a COMPOUND's operation
// sequence (RFC 7530 §15, "current filehandle").
type state struct {
	curPath   string
	hasCur    bool
	savedPath string
	hasSaved  bool
}

type opHandler func(ctx *common.Context, st *state, r *bytes.Reader) (uint32, []byte, error)

// sessionStub answers session/state-management operations this server
// never establishes. Because the compound loop halts at the first non-OK
// status, it never needs to know these operations' argument shapes to stay
// aligned with the rest of the stream -- the stream simply ends here.
func sessionStub(ctx *common.Context, st *state, r *bytes.Reader) (uint32, []byte, error) {
	return nfserr.NFS4ErrMinorVersMismatch, nil, nil
}

// stateStub answers locking/open-state operations (no lock manager or open
// state table is implemented) with NOTSUPP, halting the compound the same
// way.
func stateStub(ctx *common.Context, st *state, r *bytes.Reader) (uint32, []byte, error) {
	return nfserr.NFS4ErrNotSupp, nil, nil
}

var ops = map[uint32]opHandler{
	OpPutrootfh:         opPutrootfh,
	OpPutfh:             opPutfh,
	OpGetfh:             opGetfh,
	OpSavefh:            opSavefh,
	OpRestorefh:         opRestorefh,
	OpGetattr:           opGetattr,
	OpSetattr:           opSetattr,
	OpAccess:            opAccess,
	OpLookup:            opLookup,
	OpLookupp:           opLookupp,
	OpReadlink:          opReadlink,
	OpRead:              opRead,
	OpWrite:             opWrite,
	OpCreate:            opCreate,
	OpRemove:            opRemove,
	OpRename:            opRename,
	OpLink:              opLink,
	OpReaddir:           opReaddir,
	OpCommit:            opCommit,
	OpSequence:          sessionStub,
	OpExchangeID:        sessionStub,
	OpCreateSession:     sessionStub,
	OpDestroySession:    sessionStub,
	OpBindConnToSession: sessionStub,
	OpDestroyClientID:   sessionStub,
	OpReclaimComplete:   sessionStub,
	OpGetDeviceInfo:     sessionStub,
	OpOpen:              stateStub,
	OpClose:             stateStub,
	OpLock:              stateStub,
	OpLocku:             stateStub,
	OpDelegReturn:       stateStub,
}

// Compound decodes and executes a COMPOUND4args body, stopping at the first
// operation that does not return NFS4_OK (RFC 7530 §15.1).
func Compound(ctx *common.Context, args []byte) ([]byte, error) {
	r := bytes.NewReader(args)
	tag, err := xdr.GetString(r)
	if err != nil {
		return nil, err
	}
	if _, err := xdr.GetUint32(r); err != nil { // minorversion
		return nil, err
	}
	numOps, err := xdr.GetUint32(r)
	if err != nil {
		return nil, err
	}

	st := &state{}
	var results bytes.Buffer
	executed := uint32(0)
	overall := uint32(nfserr.NFS4OK)

	for i := uint32(0); i < numOps; i++ {
		opNum, err := xdr.GetUint32(r)
		if err != nil {
			break
		}
		handler, known := ops[opNum]
		var status uint32
		var body []byte
		if !known {
			status = nfserr.NFS4ErrOpIllegal
		} else {
			status, body, err = handler(ctx, st, r)
			if err != nil {
				return nil, err
			}
		}
		if e := xdr.PutUint32(&results, opNum); e != nil {
			return nil, e
		}
		if e := xdr.PutUint32(&results, status); e != nil {
			return nil, e
		}
		if len(body) > 0 {
			results.Write(body)
		}
		executed++
		overall = status
		if status != nfserr.NFS4OK {
			break
		}
	}

	buf := new(bytes.Buffer)
	if err := xdr.PutUint32(buf, overall); err != nil {
		return nil, err
	}
	if err := xdr.PutString(buf, tag); err != nil {
		return nil, err
	}
	if err := xdr.PutUint32(buf, executed); err != nil {
		return nil, err
	}
	buf.Write(results.Bytes())
	return buf.Bytes(), nil
}
