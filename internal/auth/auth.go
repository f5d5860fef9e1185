// Package auth implements the credential dispatcher: given the raw
// {flavor, body} credential and verifier pair off an RPC CALL header, it
// produces a populated Principal or a Failure describing why the call must
// be denied.
package auth

import (
	"bytes"
	"fmt"

	"github.com/blburns/simple-nfsd-sub001/internal/rpc"
	"github.com/blburns/simple-nfsd-sub001/internal/xdr"
)

// Flavor identifies which credential shape was presented.
type Flavor uint32

const (
	FlavorNone Flavor = rpc.AuthFlavorNone
	FlavorSys  Flavor = rpc.AuthFlavorSys
	FlavorDH   Flavor = rpc.AuthFlavorDH
	FlavorGSS  Flavor = rpc.AuthFlavorGSS
)

// MaxGids is the maximum supplementary group count AUTH_SYS may carry,
// capped to 16 supplementary gids.
const MaxGids = 16

// Principal is what the server knows about the caller once authenticated.
type Principal struct {
	Authenticated bool
	Flavor        Flavor
	UID           uint32
	GID           uint32
	Gids          []uint32
	Machine       string
}

// Failure describes why authentication was denied; AuthStat is the RFC 5531
// §8.2 sub-reason to report in the MSG_DENIED/AUTH_ERROR reply.
type Failure struct {
	AuthStat uint32
	Reason   string
}

func (f *Failure) Error() string { return fmt.Sprintf("auth: %s", f.Reason) }

func fail(stat uint32, reason string) (*Principal, *Failure) {
	return nil, &Failure{AuthStat: stat, Reason: reason}
}

// Config controls which flavors the dispatcher accepts and the anonymous
// identity used for AUTH_NONE and squashed AUTH_SYS credentials.
type Config struct {
	AllowAnonymous bool
	AllowSys       bool
	AllowDH        bool
	AllowGSS       bool
	AnonUID        uint32
	AnonGID        uint32

	// GSSVerify decodes and verifies an RPCSEC_GSS token; see auth/gss.
	// When nil, RPCSEC_GSS calls are always rejected with AUTH_ERROR after
	// the credential shape is validated, matching the "decode and
	// reject until crypto is wired" guidance.
	GSSVerify func(token []byte) error
}

// counters is a success/failure tally type. Dispatcher does not hold one,
// Authenticate does not update one, and no other package reads one.
type counters struct {
	Successes uint64
	Failures  uint64
}

// Dispatcher authenticates RPC calls according to Config.
type Dispatcher struct {
	cfg Config
}

// NewDispatcher returns a Dispatcher configured per cfg.
func NewDispatcher(cfg Config) *Dispatcher {
	return &Dispatcher{cfg: cfg}
}

// Authenticate inspects cred (the CALL's credential OpaqueAuth) and returns
// a Principal on success. The CALL's verifier is not passed in and is not
// validated by any flavor this server implements.
func (d *Dispatcher) Authenticate(cred rpc.OpaqueAuth) (*Principal, *Failure) {
	switch Flavor(cred.Flavor) {
	case FlavorNone:
		return d.authNone()
	case FlavorSys:
		return d.authSys(cred.Body)
	case FlavorDH:
		return d.authDH(cred.Body)
	case FlavorGSS:
		return d.authGSS(cred.Body)
	default:
		return fail(rpc.AuthBadCred, fmt.Sprintf("unsupported auth flavor %d", cred.Flavor))
	}
}

func (d *Dispatcher) authNone() (*Principal, *Failure) {
	if !d.cfg.AllowAnonymous {
		return fail(rpc.AuthTooWeak, "AUTH_NONE disabled by server policy")
	}
	return &Principal{
		Authenticated: true,
		Flavor:        FlavorNone,
		UID:           d.cfg.AnonUID,
		GID:           d.cfg.AnonGID,
		Gids:          []uint32{d.cfg.AnonGID},
		Machine:       "anonymous",
	}, nil
}

// authSys decodes {stamp:u32, machine:string<=255, uid:u32, gid:u32,
// gids:array<u32><=16} per RFC 5531 §9.
func (d *Dispatcher) authSys(body []byte) (*Principal, *Failure) {
	if !d.cfg.AllowSys {
		return fail(rpc.AuthTooWeak, "AUTH_SYS disabled by server policy")
	}

	r := bytes.NewReader(body)
	if _, err := xdr.GetUint32(r); err != nil { // stamp
		return fail(rpc.AuthBadCred, "truncated AUTH_SYS stamp")
	}
	machine, err := xdr.GetString(r)
	if err != nil {
		return fail(rpc.AuthBadCred, "truncated AUTH_SYS machine name")
	}
	if machine == "" {
		return fail(rpc.AuthBadCred, "AUTH_SYS machine name is empty")
	}
	if len(machine) > 255 {
		return fail(rpc.AuthBadCred, "AUTH_SYS machine name exceeds 255 bytes")
	}
	uid, err := xdr.GetUint32(r)
	if err != nil {
		return fail(rpc.AuthBadCred, "truncated AUTH_SYS uid")
	}
	gid, err := xdr.GetUint32(r)
	if err != nil {
		return fail(rpc.AuthBadCred, "truncated AUTH_SYS gid")
	}
	gids, err := xdr.GetUint32Array(r, MaxGids)
	if err != nil {
		return fail(rpc.AuthBadCred, "AUTH_SYS gids exceed maximum of 16")
	}

	return &Principal{
		Authenticated: true,
		Flavor:        FlavorSys,
		UID:           uid,
		GID:           gid,
		Gids:          gids,
		Machine:       machine,
	}, nil
}

// authDH decodes the AUTH_DH credential shape only; full Diffie-Hellman key
// exchange is out of scope, so a structurally valid
// credential is still rejected with AUTH_ERROR.
func (d *Dispatcher) authDH(body []byte) (*Principal, *Failure) {
	if !d.cfg.AllowDH {
		return fail(rpc.AuthTooWeak, "AUTH_DH disabled by server policy")
	}
	r := bytes.NewReader(body)
	if _, err := xdr.GetOpaque(r); err != nil { // netname
		return fail(rpc.AuthBadCred, "truncated AUTH_DH netname")
	}
	if _, err := xdr.GetOpaque(r); err != nil { // pubkey
		return fail(rpc.AuthBadCred, "truncated AUTH_DH pubkey")
	}
	if _, err := xdr.GetOpaque(r); err != nil { // enc_timestamp (encrypted window)
		return fail(rpc.AuthBadCred, "truncated AUTH_DH enc_timestamp")
	}
	if _, err := xdr.GetUint32(r); err != nil { // window
		return fail(rpc.AuthBadCred, "truncated AUTH_DH window")
	}
	// Credential shape decoded successfully, but no cryptographic verifier
	// is available: reject rather than silently accept.
	return fail(rpc.AuthFailed, "AUTH_DH verification not available")
}

// GSS procedure values (RFC 2203 §5.3.1).
const (
	gssProcData          = 0
	gssProcInit          = 1
	gssProcContinueInit  = 2
	gssProcDestroy       = 3
)

// authGSS decodes the RPCSEC_GSS credential shape
// {version, procedure, sequence, service, handle, token} and delegates
// cryptographic verification to cfg.GSSVerify.
func (d *Dispatcher) authGSS(body []byte) (*Principal, *Failure) {
	if !d.cfg.AllowGSS {
		return fail(rpc.AuthTooWeak, "RPCSEC_GSS disabled by server policy")
	}
	r := bytes.NewReader(body)
	version, err := xdr.GetUint32(r)
	if err != nil {
		return fail(rpc.AuthBadCred, "truncated RPCSEC_GSS version")
	}
	if version != 1 {
		return fail(rpc.AuthBadCred, "unsupported RPCSEC_GSS version")
	}
	procedure, err := xdr.GetUint32(r)
	if err != nil {
		return fail(rpc.AuthBadCred, "truncated RPCSEC_GSS procedure")
	}
	switch procedure {
	case gssProcData, gssProcInit, gssProcContinueInit, gssProcDestroy:
	default:
		return fail(rpc.AuthBadCred, "unknown RPCSEC_GSS procedure")
	}
	if _, err := xdr.GetUint32(r); err != nil { // sequence
		return fail(rpc.AuthBadCred, "truncated RPCSEC_GSS sequence")
	}
	if _, err := xdr.GetUint32(r); err != nil { // service
		return fail(rpc.AuthBadCred, "truncated RPCSEC_GSS service")
	}
	if _, err := xdr.GetOpaque(r); err != nil { // context handle
		return fail(rpc.AuthBadCred, "truncated RPCSEC_GSS handle")
	}
	token, err := xdr.GetOpaque(r)
	if err != nil {
		return fail(rpc.AuthBadCred, "truncated RPCSEC_GSS token")
	}

	if d.cfg.GSSVerify == nil {
		return fail(rpc.AuthFailed, "RPCSEC_GSS context establishment not available")
	}
	if err := d.cfg.GSSVerify(token); err != nil {
		return fail(rpc.AuthFailed, fmt.Sprintf("RPCSEC_GSS verification failed: %v", err))
	}
	// A real GSS context would populate uid/gid from the verified
	// principal's name mapping; none is configured, so the call is still
	// rejected even on a "successful" decode.
	return fail(rpc.AuthFailed, "RPCSEC_GSS context established but identity mapping not configured")
}
