package portmap

import (
	"bytes"
	"io"

	"github.com/blburns/simple-nfsd-sub001/internal/xdr"
)

// decodeMapping reads the fixed {prog, vers, prot, port} struct that SET
// and UNSET both send as their argument (RFC 1057 Appendix A), matching
// the fixed, four-field-in-order mapping wire shape.
func decodeMapping(r io.Reader) (Mapping, error) {
	prog, err := xdr.GetUint32(r)
	if err != nil {
		return Mapping{}, err
	}
	vers, err := xdr.GetUint32(r)
	if err != nil {
		return Mapping{}, err
	}
	prot, err := xdr.GetUint32(r)
	if err != nil {
		return Mapping{}, err
	}
	port, err := xdr.GetUint32(r)
	if err != nil {
		return Mapping{}, err
	}
	return Mapping{Prog: prog, Vers: vers, Prot: prot, Port: port}, nil
}

// encodeBoolResponse writes SET/UNSET's XDR boolean reply.
func encodeBoolResponse(ok bool) []byte {
	buf := new(bytes.Buffer)
	_ = xdr.PutBool(buf, ok)
	return buf.Bytes()
}

// encodeGetportResponse writes GETPORT's bare uint32 port reply.
func encodeGetportResponse(port uint32) []byte {
	buf := new(bytes.Buffer)
	_ = xdr.PutUint32(buf, port)
	return buf.Bytes()
}

// encodeDumpResponse writes DUMP's XDR optional-data linked list: for each
// mapping, a true discriminant followed by the mapping struct, then a
// final false discriminant terminating the list.
func encodeDumpResponse(mappings []Mapping) []byte {
	buf := new(bytes.Buffer)
	for _, m := range mappings {
		_ = xdr.PutBool(buf, true)
		_ = xdr.PutUint32(buf, m.Prog)
		_ = xdr.PutUint32(buf, m.Vers)
		_ = xdr.PutUint32(buf, m.Prot)
		_ = xdr.PutUint32(buf, m.Port)
	}
	_ = xdr.PutBool(buf, false)
	return buf.Bytes()
}
