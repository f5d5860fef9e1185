package portmap

import (
	"bytes"

	"github.com/blburns/simple-nfsd-sub001/internal/logger"
	"github.com/blburns/simple-nfsd-sub001/internal/xdr"
)

// Portmap v2 procedure numbers (RFC 1057 Appendix A).
const (
	ProcNull    = 0
	ProcSet     = 1
	ProcUnset   = 2
	ProcGetport = 3
	ProcDump    = 4
	ProcCallit  = 5
	ProcMax     = ProcCallit
)

// Handler answers portmap procedures against a Registry.
type Handler struct {
	Registry *Registry
}

// NewHandler returns a Handler backed by registry.
func NewHandler(registry *Registry) *Handler {
	return &Handler{Registry: registry}
}

// Dispatch routes proc to its handler. ok is false for an unknown
// procedure number. clientAddr identifies the caller, used as the owner
// key for SET conflict detection.
func (h *Handler) Dispatch(proc uint32, args []byte, clientAddr string) ([]byte, bool, error) {
	switch proc {
	case ProcNull:
		return nil, true, nil
	case ProcSet:
		reply, err := h.handleSet(args, clientAddr)
		return reply, true, err
	case ProcUnset:
		reply, err := h.handleUnset(args)
		return reply, true, err
	case ProcGetport:
		reply, err := h.handleGetport(args)
		return reply, true, err
	case ProcDump:
		return encodeDumpResponse(h.Registry.Dump()), true, nil
	case ProcCallit:
		reply, err := h.handleCallit(args, clientAddr)
		return reply, true, err
	default:
		return nil, false, nil
	}
}

func (h *Handler) handleSet(args []byte, owner string) ([]byte, error) {
	m, err := decodeMapping(bytes.NewReader(args))
	if err != nil {
		return encodeBoolResponse(false), err
	}
	return encodeBoolResponse(h.Registry.Set(m, owner)), nil
}

func (h *Handler) handleUnset(args []byte) ([]byte, error) {
	m, err := decodeMapping(bytes.NewReader(args))
	if err != nil {
		return encodeBoolResponse(false), err
	}
	return encodeBoolResponse(h.Registry.Unset(m.Prog, m.Vers)), nil
}

func (h *Handler) handleGetport(args []byte) ([]byte, error) {
	m, err := decodeMapping(bytes.NewReader(args))
	if err != nil {
		return encodeGetportResponse(0), err
	}
	return encodeGetportResponse(h.Registry.Getport(m.Prog, m.Vers, m.Prot)), nil
}

// handleCallit implements the minimal CALLIT support: decode the
// indirect-call header, log it, and reply with port 0 meaning "not
// forwarded" rather than opening a connection to the target program and
// relaying -- CALLIT's only legitimate modern use (rpcinfo probing) doesn't
// need the forwarded reply, and a real relay is also a well-known
// amplification vector for portmapper-based DDoS.
func (h *Handler) handleCallit(args []byte, clientAddr string) ([]byte, error) {
	r := bytes.NewReader(args)
	prog, err := xdr.GetUint32(r)
	if err != nil {
		return nil, err
	}
	vers, err := xdr.GetUint32(r)
	if err != nil {
		return nil, err
	}
	proc, err := xdr.GetUint32(r)
	if err != nil {
		return nil, err
	}
	if _, err := xdr.GetOpaque(r); err != nil { // call argument, unused
		return nil, err
	}
	logger.Info("portmap CALLIT not forwarded", "client", clientAddr, "prog", prog, "vers", vers, "proc", proc)

	buf := new(bytes.Buffer)
	if err := xdr.PutUint32(buf, 0); err != nil { // port: not forwarded
		return nil, err
	}
	if err := xdr.PutOpaque(buf, nil); err != nil { // result: empty
		return nil, err
	}
	return buf.Bytes(), nil
}
