package rpc

import (
	"bytes"
	"io"

	"github.com/blburns/simple-nfsd-sub001/internal/xdr"
)

func decodeOpaqueAuth(r io.Reader) (OpaqueAuth, error) {
	flavor, err := xdr.GetUint32(r)
	if err != nil {
		return OpaqueAuth{}, err
	}
	body, err := xdr.GetOpaque(r)
	if err != nil {
		return OpaqueAuth{}, err
	}
	if len(body) > MaxAuthBodyLen {
		return OpaqueAuth{}, &xdr.GarbageArgsError{Reason: "auth body exceeds 400 bytes"}
	}
	return OpaqueAuth{Flavor: flavor, Body: body}, nil
}

func encodeOpaqueAuth(w io.Writer, a OpaqueAuth) error {
	if err := xdr.PutUint32(w, a.Flavor); err != nil {
		return err
	}
	return xdr.PutOpaque(w, a.Body)
}

// DecodeCallHeader decodes the fixed CALL header fields from a full RPC
// message body and returns the message plus the remaining procedure
// argument bytes.
func DecodeCallHeader(body []byte) (*CallMessage, []byte, error) {
	r := bytes.NewReader(body)

	xid, err := xdr.GetUint32(r)
	if err != nil {
		return nil, nil, err
	}
	msgType, err := xdr.GetUint32(r)
	if err != nil {
		return nil, nil, err
	}
	if msgType != MsgCall {
		return nil, nil, &xdr.GarbageArgsError{Reason: "not a CALL message"}
	}
	rpcvers, err := xdr.GetUint32(r)
	if err != nil {
		return nil, nil, err
	}
	if rpcvers != RPCVersion2 {
		return nil, nil, errRPCMismatch{low: RPCVersion2, high: RPCVersion2}
	}
	prog, err := xdr.GetUint32(r)
	if err != nil {
		return nil, nil, err
	}
	vers, err := xdr.GetUint32(r)
	if err != nil {
		return nil, nil, err
	}
	proc, err := xdr.GetUint32(r)
	if err != nil {
		return nil, nil, err
	}
	cred, err := decodeOpaqueAuth(r)
	if err != nil {
		return nil, nil, err
	}
	verf, err := decodeOpaqueAuth(r)
	if err != nil {
		return nil, nil, err
	}

	rest := make([]byte, r.Len())
	if _, err := io.ReadFull(r, rest); err != nil {
		return nil, nil, err
	}

	return &CallMessage{
		XID:       xid,
		Program:   prog,
		Version:   vers,
		Procedure: proc,
		Cred:      cred,
		Verf:      verf,
	}, rest, nil
}

// errRPCMismatch signals a malformed RPC header (wrong rpcvers), which must
// be reported as MSG_DENIED/RPC_MISMATCH rather than GARBAGE_ARGS.
type errRPCMismatch struct{ low, high uint32 }

func (e errRPCMismatch) Error() string { return "rpc: version mismatch" }

// IsRPCMismatch reports whether err originated from a bad rpcvers field and
// returns the (low, high) range to report.
func IsRPCMismatch(err error) (low, high uint32, ok bool) {
	if m, isM := err.(errRPCMismatch); isM {
		return m.low, m.high, true
	}
	return 0, 0, false
}

// EncodeAcceptedReply encodes a full MSG_ACCEPTED reply for the given xid.
func EncodeAcceptedReply(xid uint32, reply AcceptedReply) ([]byte, error) {
	buf := new(bytes.Buffer)
	if err := xdr.PutUint32(buf, xid); err != nil {
		return nil, err
	}
	if err := xdr.PutUint32(buf, MsgReply); err != nil {
		return nil, err
	}
	if err := xdr.PutUint32(buf, MsgAccepted); err != nil {
		return nil, err
	}
	if err := encodeOpaqueAuth(buf, reply.Verf); err != nil {
		return nil, err
	}
	if err := xdr.PutUint32(buf, reply.Status); err != nil {
		return nil, err
	}
	switch reply.Status {
	case ProgMismatch:
		if err := xdr.PutUint32(buf, reply.MismatchLow); err != nil {
			return nil, err
		}
		if err := xdr.PutUint32(buf, reply.MismatchHigh); err != nil {
			return nil, err
		}
	case Success:
		if len(reply.Data) > 0 {
			if _, err := buf.Write(reply.Data); err != nil {
				return nil, err
			}
		}
	}
	return buf.Bytes(), nil
}

// EncodeDeniedReply encodes a full MSG_DENIED reply for the given xid.
func EncodeDeniedReply(xid uint32, reply DeniedReply) ([]byte, error) {
	buf := new(bytes.Buffer)
	if err := xdr.PutUint32(buf, xid); err != nil {
		return nil, err
	}
	if err := xdr.PutUint32(buf, MsgReply); err != nil {
		return nil, err
	}
	if err := xdr.PutUint32(buf, MsgDenied); err != nil {
		return nil, err
	}
	if err := xdr.PutUint32(buf, reply.Reason); err != nil {
		return nil, err
	}
	if reply.Reason == RPCMismatch {
		if err := xdr.PutUint32(buf, reply.Low); err != nil {
			return nil, err
		}
		if err := xdr.PutUint32(buf, reply.High); err != nil {
			return nil, err
		}
		return buf.Bytes(), nil
	}
	if err := xdr.PutUint32(buf, reply.AuthStat); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// MakeSuccessReply builds a MSG_ACCEPTED/SUCCESS reply carrying data.
func MakeSuccessReply(xid uint32, verf OpaqueAuth, data []byte) ([]byte, error) {
	return EncodeAcceptedReply(xid, AcceptedReply{Verf: verf, Status: Success, Data: data})
}

// MakeErrorReply builds a MSG_ACCEPTED reply with the given non-success
// accept status and no result data (PROG_UNAVAIL, PROC_UNAVAIL,
// GARBAGE_ARGS, SYSTEM_ERR).
func MakeErrorReply(xid uint32, status uint32) ([]byte, error) {
	return EncodeAcceptedReply(xid, AcceptedReply{Status: status})
}

// MakeProgMismatchReply builds a MSG_ACCEPTED/PROG_MISMATCH reply advertising
// the supported version range.
func MakeProgMismatchReply(xid, low, high uint32) ([]byte, error) {
	return EncodeAcceptedReply(xid, AcceptedReply{Status: ProgMismatch, MismatchLow: low, MismatchHigh: high})
}

// MakeAuthErrorReply builds a MSG_DENIED/AUTH_ERROR reply with the given
// sub-reason.
func MakeAuthErrorReply(xid uint32, authStat uint32) ([]byte, error) {
	return EncodeDeniedReply(xid, DeniedReply{Reason: AuthError, AuthStat: authStat})
}

// MakeRPCMismatchReply builds a MSG_DENIED/RPC_MISMATCH reply.
func MakeRPCMismatchReply(xid, low, high uint32) ([]byte, error) {
	return EncodeDeniedReply(xid, DeniedReply{Reason: RPCMismatch, Low: low, High: high})
}
