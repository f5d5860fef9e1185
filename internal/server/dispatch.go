package server

import (
	"encoding/binary"
	"net"
	"time"

	"github.com/blburns/simple-nfsd-sub001/internal/auth"
	"github.com/blburns/simple-nfsd-sub001/internal/handle"
	"github.com/blburns/simple-nfsd-sub001/internal/logger"
	"github.com/blburns/simple-nfsd-sub001/internal/mount"
	"github.com/blburns/simple-nfsd-sub001/internal/nfsproc/common"
	"github.com/blburns/simple-nfsd-sub001/internal/nfsproc/v2"
	"github.com/blburns/simple-nfsd-sub001/internal/nfsproc/v3"
	"github.com/blburns/simple-nfsd-sub001/internal/nfsproc/v4"
	"github.com/blburns/simple-nfsd-sub001/internal/rpc"
	"github.com/blburns/simple-nfsd-sub001/internal/xdr"
)

// compoundProcedure is NFSv4's single RPC procedure number (RFC 7530 §15).
const compoundProcedure = 1

// handleMessage decodes one RPC message, authenticates it, routes it by
// program/version, and returns the encoded reply -- or nil if the reply
// itself could not be encoded. A CALL header that fails to decode is still
// answered, addressed to the xid peekXID recovers (0 if none).
func (s *Server) handleMessage(raw []byte, clientIP net.IP, clientPort int) []byte {
	call, args, err := rpc.DecodeCallHeader(raw)
	if err != nil {
		xid := peekXID(raw)
		if low, high, ok := rpc.IsRPCMismatch(err); ok {
			reply, mkErr := rpc.MakeRPCMismatchReply(xid, low, high)
			if mkErr != nil {
				return nil
			}
			return reply
		}
		logger.Debug("decode CALL header failed", "error", err)
		reply, mkErr := rpc.MakeErrorReply(xid, rpc.GarbageArgs)
		if mkErr != nil {
			return nil
		}
		return reply
	}

	principal, authFail := s.authd.Authenticate(call.Cred)
	if authFail != nil {
		reply, mkErr := rpc.MakeAuthErrorReply(call.XID, authFail.AuthStat)
		if mkErr != nil {
			return nil
		}
		return reply
	}

	start := time.Now()
	var programName, procedureName string
	var reply []byte

	switch call.Program {
	case rpc.ProgramPortmap:
		programName, procedureName = "portmap", ""
		reply = s.dispatchPortmap(call, args, clientIP)
	case rpc.ProgramNFS:
		programName = "nfs"
		reply, procedureName = s.dispatchNFS(call, args, clientIP, clientPort, principal)
	case rpc.ProgramMount:
		programName = "mount"
		reply, procedureName = s.dispatchMount(call, args, clientIP, clientPort, principal)
	default:
		programName = "unknown"
		r, mkErr := rpc.MakeErrorReply(call.XID, rpc.ProgUnavail)
		if mkErr == nil {
			reply = r
		}
	}

	if s.stats != nil {
		s.stats.RecordRequest(programName, procedureName, time.Since(start), "")
	}
	return reply
}

func (s *Server) dispatchPortmap(call *rpc.CallMessage, args []byte, clientIP net.IP) []byte {
	body, ok, err := s.portmapHandler.Dispatch(call.Procedure, args, clientIP.String())
	if !ok {
		reply, _ := rpc.MakeErrorReply(call.XID, rpc.ProcUnavail)
		return reply
	}
	if err != nil {
		logger.Error("portmap handler error", "procedure", call.Procedure, "error", err)
		reply, _ := rpc.MakeErrorReply(call.XID, rpc.SystemErr)
		return reply
	}
	reply, _ := rpc.MakeSuccessReply(call.XID, rpc.OpaqueAuth{}, body)
	return reply
}

func (s *Server) dispatchNFS(call *rpc.CallMessage, args []byte, clientIP net.IP, clientPort int, principal *auth.Principal) ([]byte, string) {
	var version handle.Version
	switch call.Version {
	case rpc.NFSVersion2:
		version = handle.V2
	case rpc.NFSVersion3:
		version = handle.V3
	case rpc.NFSVersion4:
		version = handle.V4
	default:
		reply, _ := rpc.MakeProgMismatchReply(call.XID, rpc.NFSVersion2, rpc.NFSVersion4)
		return reply, ""
	}

	ctx := s.newContext(clientIP, clientPort, principal, version)

	var body []byte
	var ok bool
	var err error
	var procName string

	switch call.Version {
	case rpc.NFSVersion2:
		body, ok, err = v2.Dispatch(ctx, call.Procedure, args)
		procName = "v2"
	case rpc.NFSVersion3:
		body, ok, err = v3.Dispatch(ctx, call.Procedure, args)
		procName = "v3"
	case rpc.NFSVersion4:
		if call.Procedure != compoundProcedure {
			ok = false
		} else {
			body, err = v4.Compound(ctx, args)
			ok = true
		}
		procName = "compound"
	}

	if !ok {
		reply, _ := rpc.MakeErrorReply(call.XID, rpc.ProcUnavail)
		return reply, procName
	}
	if err != nil {
		return s.systemOrGarbage(call.XID, err), procName
	}
	reply, _ := rpc.MakeSuccessReply(call.XID, rpc.OpaqueAuth{}, body)
	return reply, procName
}

func (s *Server) dispatchMount(call *rpc.CallMessage, args []byte, clientIP net.IP, clientPort int, principal *auth.Principal) ([]byte, string) {
	if call.Procedure == mount.ProcMnt && call.Version != rpc.MountVersion3 {
		reply, _ := rpc.MakeProgMismatchReply(call.XID, rpc.MountVersion3, rpc.MountVersion3)
		return reply, "mnt"
	}
	if call.Version != rpc.MountVersion1 && call.Version != rpc.MountVersion3 {
		reply, _ := rpc.MakeProgMismatchReply(call.XID, rpc.MountVersion1, rpc.MountVersion3)
		return reply, ""
	}

	ctx := s.newContext(clientIP, clientPort, principal, handle.V3)
	clientHost := clientIP.String()

	body, ok, err := s.mountHandler.Dispatch(ctx, clientHost, call.Procedure, args)
	if !ok {
		reply, _ := rpc.MakeErrorReply(call.XID, rpc.ProcUnavail)
		return reply, ""
	}
	if err != nil {
		return s.systemOrGarbage(call.XID, err), ""
	}
	reply, _ := rpc.MakeSuccessReply(call.XID, rpc.OpaqueAuth{}, body)
	return reply, ""
}

// systemOrGarbage distinguishes a client-input decode failure
// (GARBAGE_ARGS, any xdr.GarbageArgsError) from an internal/filesystem
// failure (SYSTEM_ERR, every other error).
func (s *Server) systemOrGarbage(xid uint32, err error) []byte {
	if xdr.IsGarbageArgs(err) {
		reply, _ := rpc.MakeErrorReply(xid, rpc.GarbageArgs)
		return reply
	}
	logger.Error("handler returned system error", "error", err)
	reply, _ := rpc.MakeErrorReply(xid, rpc.SystemErr)
	return reply
}

// newContext builds the per-call common.Context from the server's shared
// subsystems. Cache and Quota are left nil when disabled by config,
// degrading every helper to its pre-cache/pre-quota behavior.
func (s *Server) newContext(clientIP net.IP, clientPort int, principal *auth.Principal, version handle.Version) *common.Context {
	return &common.Context{
		ClientIP:      clientIP,
		ClientPort:    clientPort,
		Principal:     principal,
		Handles:       s.handles,
		Gate:          s.gate,
		FS:            s.fs,
		Version:       version,
		WriteVerifier: s.writeVerifier,
		Cache:         s.attrs,
		Content:       s.content,
		Quota:         s.quota,
	}
}

// peekXID reads the first 4 bytes of a raw RPC message as the xid, so a
// CALL header decode failure can still address its error reply. Returns 0
// if the message is too short to carry one.
func peekXID(raw []byte) uint32 {
	if len(raw) < 4 {
		return 0
	}
	return binary.BigEndian.Uint32(raw[:4])
}
