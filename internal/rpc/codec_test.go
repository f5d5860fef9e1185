package rpc

import (
	"bytes"
	"testing"

	"github.com/blburns/simple-nfsd-sub001/internal/xdr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func buildCallBody(t *testing.T, xid, prog, vers, proc uint32) []byte {
	t.Helper()
	buf := new(bytes.Buffer)
	require.NoError(t, xdr.PutUint32(buf, xid))
	require.NoError(t, xdr.PutUint32(buf, MsgCall))
	require.NoError(t, xdr.PutUint32(buf, RPCVersion2))
	require.NoError(t, xdr.PutUint32(buf, prog))
	require.NoError(t, xdr.PutUint32(buf, vers))
	require.NoError(t, xdr.PutUint32(buf, proc))
	require.NoError(t, xdr.PutUint32(buf, AuthFlavorNone))
	require.NoError(t, xdr.PutOpaque(buf, nil))
	require.NoError(t, xdr.PutUint32(buf, AuthFlavorNone))
	require.NoError(t, xdr.PutOpaque(buf, nil))
	return buf.Bytes()
}

func TestDecodeCallHeaderNullPing(t *testing.T) {
	body := buildCallBody(t, 0x11111111, ProgramNFS, NFSVersion3, 0)
	call, rest, err := DecodeCallHeader(body)
	require.NoError(t, err)
	assert.Empty(t, rest)
	assert.Equal(t, uint32(0x11111111), call.XID)
	assert.Equal(t, uint32(ProgramNFS), call.Program)
	assert.Equal(t, uint32(NFSVersion3), call.Version)
	assert.Equal(t, uint32(0), call.Procedure)
}

func TestDecodeCallHeaderRejectsWrongRPCVersion(t *testing.T) {
	buf := new(bytes.Buffer)
	require.NoError(t, xdr.PutUint32(buf, 1))
	require.NoError(t, xdr.PutUint32(buf, MsgCall))
	require.NoError(t, xdr.PutUint32(buf, 99)) // bad rpcvers
	_, _, err := DecodeCallHeader(buf.Bytes())
	require.Error(t, err)
	low, high, ok := IsRPCMismatch(err)
	require.True(t, ok)
	assert.Equal(t, uint32(2), low)
	assert.Equal(t, uint32(2), high)
}

func TestEncodeAcceptedReplyNullPing(t *testing.T) {
	data, err := MakeSuccessReply(0x11111111, OpaqueAuth{Flavor: AuthFlavorNone}, nil)
	require.NoError(t, err)

	xid, err := xdr.GetUint32(bytes.NewReader(data[0:4]))
	require.NoError(t, err)
	assert.Equal(t, uint32(0x11111111), xid)

	r := bytes.NewReader(data[4:])
	msgType, _ := xdr.GetUint32(r)
	assert.Equal(t, uint32(MsgReply), msgType)
	accState, _ := xdr.GetUint32(r)
	assert.Equal(t, uint32(MsgAccepted), accState)
}

func TestMakeProgMismatchReply(t *testing.T) {
	data, err := MakeProgMismatchReply(42, 3, 4)
	require.NoError(t, err)
	r := bytes.NewReader(data)
	xid, _ := xdr.GetUint32(r)
	assert.Equal(t, uint32(42), xid)
	_, _ = xdr.GetUint32(r) // msg type
	_, _ = xdr.GetUint32(r) // accepted
	_, _ = xdr.GetUint32(r) // verf flavor
	_, _ = xdr.GetOpaque(r)
	status, _ := xdr.GetUint32(r)
	assert.Equal(t, uint32(ProgMismatch), status)
	low, _ := xdr.GetUint32(r)
	high, _ := xdr.GetUint32(r)
	assert.Equal(t, uint32(3), low)
	assert.Equal(t, uint32(4), high)
}
