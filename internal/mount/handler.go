package mount

import (
	"bytes"

	xdr2 "github.com/rasky/go-xdr/xdr2"

	"github.com/blburns/simple-nfsd-sub001/internal/export"
	"github.com/blburns/simple-nfsd-sub001/internal/handle"
	"github.com/blburns/simple-nfsd-sub001/internal/nfserr"
	"github.com/blburns/simple-nfsd-sub001/internal/nfsproc/common"
	"github.com/blburns/simple-nfsd-sub001/internal/xdr"
)

// Mount procedure numbers (RFC 1813 Appendix I).
const (
	ProcNull    = 0
	ProcMnt     = 1
	ProcDump    = 2
	ProcUmnt    = 3
	ProcUmntall = 4
	ProcExport  = 5
	ProcMax     = ProcExport
)

// fhstatus values share the MNT3ERR_* numbering with the NFSv3 status
// space (RFC 1813 Appendix I).
const (
	mntOK          = nfserr.NFS3OK
	mntErrNoEnt    = nfserr.NFS3ErrNoEnt
	mntErrAcces    = nfserr.NFS3ErrAcces
	mntErrNotDir   = nfserr.NFS3ErrNotDir
	mntErrServFlt  = nfserr.NFS3ErrServerFault
)

// mountRequest mirrors the reflection-decoded request shape: a
// single exported field that xdr2.Unmarshal fills positionally.
type mountRequest struct {
	DirPath string
}

// Handler answers the Mount protocol using the same Context the NFS
// procedure handlers use, so export resolution, client matching, and
// squash all come from the one gate instead of a second copy.
type Handler struct {
	Registry *Registry
}

// NewHandler returns a Handler backed by registry.
func NewHandler(registry *Registry) *Handler {
	return &Handler{Registry: registry}
}

// Dispatch routes proc to its handler. ok is false for an unknown
// procedure number.
func (h *Handler) Dispatch(ctx *common.Context, clientHost string, proc uint32, args []byte) ([]byte, bool, error) {
	switch proc {
	case ProcNull:
		return nil, true, nil
	case ProcMnt:
		reply, err := h.handleMnt(ctx, clientHost, args)
		return reply, true, err
	case ProcDump:
		reply, err := h.handleDump()
		return reply, true, err
	case ProcUmnt:
		reply, err := h.handleUmnt(clientHost, args)
		return reply, true, err
	case ProcUmntall:
		h.Registry.RemoveAll(clientHost)
		return nil, true, nil
	case ProcExport:
		reply, err := h.handleExport(ctx)
		return reply, true, err
	default:
		return nil, false, nil
	}
}

func (h *Handler) handleMnt(ctx *common.Context, clientHost string, args []byte) ([]byte, error) {
	var req mountRequest
	if _, err := xdr2.Unmarshal(bytes.NewReader(args), &req); err != nil {
		return encodeFhStatus(ctx.Version, mntErrServFlt, nil)
	}

	clean, cerr := export.Canonicalize(req.DirPath)
	if cerr != nil {
		return encodeFhStatus(ctx.Version, mntErrNoEnt, nil)
	}

	if _, _, err := ctx.Gate.Check(ctx.Principal, ctx.ClientIP, ctx.ClientPort, clean, false); err != nil {
		return encodeFhStatus(ctx.Version, statusForDenial(err), nil)
	}

	handleBytes := ctx.Handles.HandleFor(ctx.Version, clean)
	h.Registry.Add(clientHost, clean)
	return encodeFhStatus(ctx.Version, mntOK, handleBytes)
}

func (h *Handler) handleDump() ([]byte, error) {
	buf := new(bytes.Buffer)
	for _, entry := range h.Registry.All() {
		if err := xdr.PutBool(buf, true); err != nil {
			return nil, err
		}
		if err := xdr.PutString(buf, entry.Hostname); err != nil {
			return nil, err
		}
		if err := xdr.PutString(buf, entry.Directory); err != nil {
			return nil, err
		}
	}
	if err := xdr.PutBool(buf, false); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (h *Handler) handleUmnt(clientHost string, args []byte) ([]byte, error) {
	var req mountRequest
	if _, err := xdr2.Unmarshal(bytes.NewReader(args), &req); err != nil {
		return nil, nil
	}
	clean, err := export.Canonicalize(req.DirPath)
	if err != nil {
		return nil, nil
	}
	h.Registry.Remove(clientHost, clean)
	return nil, nil
}

func (h *Handler) handleExport(ctx *common.Context) ([]byte, error) {
	buf := new(bytes.Buffer)
	for _, exp := range ctx.Gate.Table.All() {
		if err := xdr.PutBool(buf, true); err != nil {
			return nil, err
		}
		if err := xdr.PutString(buf, exp.Path); err != nil {
			return nil, err
		}
		for _, c := range exp.Clients {
			if err := xdr.PutBool(buf, true); err != nil {
				return nil, err
			}
			if err := xdr.PutString(buf, c.String()); err != nil {
				return nil, err
			}
		}
		if err := xdr.PutBool(buf, false); err != nil {
			return nil, err
		}
	}
	if err := xdr.PutBool(buf, false); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// encodeFhStatus writes an fhstatus (mount v1, paired with NFSv2: a fixed
// FHSIZE-byte handle with no length prefix) or a mountres3_ok (mount v3,
// paired with NFSv3: fhandle3 is a variable opaque, length-prefixed same as
// a length-prefixed opaque write).
func encodeFhStatus(v handle.Version, status uint32, handleBytes []byte) ([]byte, error) {
	buf := new(bytes.Buffer)
	if err := xdr.PutUint32(buf, status); err != nil {
		return nil, err
	}
	if status != mntOK {
		return buf.Bytes(), nil
	}
	if v == handle.V3 {
		if err := xdr.PutOpaque(buf, handleBytes); err != nil {
			return nil, err
		}
	} else {
		if err := xdr.PutFixedOpaque(buf, handleBytes); err != nil {
			return nil, err
		}
	}
	if err := xdr.PutUint32Array(buf, []uint32{0}); err != nil { // auth_flavors: AUTH_NONE
		return nil, err
	}
	return buf.Bytes(), nil
}

func statusForDenial(err error) uint32 {
	denied, ok := err.(*export.Denied)
	if !ok {
		return mntErrServFlt
	}
	switch denied.Kind {
	case export.KindOutsideExport:
		return mntErrNoEnt
	case export.KindSubtree:
		return mntErrNotDir
	default:
		return mntErrAcces
	}
}
