package v4

import (
	"bytes"
	"net"
	"os"
	"path/filepath"
	"testing"

	"github.com/blburns/simple-nfsd-sub001/internal/auth"
	"github.com/blburns/simple-nfsd-sub001/internal/export"
	"github.com/blburns/simple-nfsd-sub001/internal/handle"
	"github.com/blburns/simple-nfsd-sub001/internal/nfserr"
	"github.com/blburns/simple-nfsd-sub001/internal/nfsproc/common"
	"github.com/blburns/simple-nfsd-sub001/internal/vfs"
	"github.com/blburns/simple-nfsd-sub001/internal/xdr"
	"github.com/stretchr/testify/require"
)

// newScenarioContext builds a common.Context rooted at a temp export, wired
// through the real export gate and handle table (no mocks), matching what
// internal/server wires together for an incoming NFSv4 call.
func newScenarioContext(t *testing.T, root string, principal *auth.Principal, optsfn func(*export.Export)) *common.Context {
	t.Helper()
	wc, _ := export.ParseClientMatcher("*")
	exp := &export.Export{Path: root, Clients: []export.ClientMatcher{wc}, NoSubtreeCheck: true}
	if optsfn != nil {
		optsfn(exp)
	}
	tbl := export.NewTable([]*export.Export{exp})
	return &common.Context{
		ClientIP:   net.ParseIP("192.168.1.1"),
		ClientPort: 700,
		Principal:  principal,
		Handles:    handle.NewTable(),
		Gate:       export.NewGate(tbl),
		FS:         vfs.NewLocal(root),
		Version:    handle.V4,
	}
}

type opArg struct {
	num  uint32
	body []byte
}

// encodeCompound assembles a COMPOUND4args body from a sequence of
// operations, each already encoded by its own wire shape.
func encodeCompound(t *testing.T, ops ...opArg) []byte {
	t.Helper()
	buf := new(bytes.Buffer)
	require.NoError(t, xdr.PutString(buf, ""))
	require.NoError(t, xdr.PutUint32(buf, 0)) // minorversion
	require.NoError(t, xdr.PutUint32(buf, uint32(len(ops))))
	for _, op := range ops {
		require.NoError(t, xdr.PutUint32(buf, op.num))
		buf.Write(op.body)
	}
	return buf.Bytes()
}

func putfhArgs(t *testing.T, wire []byte) []byte {
	t.Helper()
	buf := new(bytes.Buffer)
	require.NoError(t, xdr.PutOpaque(buf, wire))
	return buf.Bytes()
}

func lookupArgs(t *testing.T, name string) []byte {
	t.Helper()
	buf := new(bytes.Buffer)
	require.NoError(t, xdr.PutString(buf, name))
	return buf.Bytes()
}

func getattrArgs(t *testing.T, bits ...int) []byte {
	t.Helper()
	buf := new(bytes.Buffer)
	require.NoError(t, encodeBitmap4(buf, bits))
	return buf.Bytes()
}

func writeArgs(t *testing.T, offset uint64, stable uint32, data []byte) []byte {
	t.Helper()
	buf := new(bytes.Buffer)
	require.NoError(t, xdr.PutFixedOpaque(buf, make([]byte, 16))) // stateid
	require.NoError(t, xdr.PutUint64(buf, offset))
	require.NoError(t, xdr.PutUint32(buf, stable))
	require.NoError(t, xdr.PutOpaque(buf, data))
	return buf.Bytes()
}

func commitArgs(t *testing.T, offset uint64, count uint32) []byte {
	t.Helper()
	buf := new(bytes.Buffer)
	require.NoError(t, xdr.PutUint64(buf, offset))
	require.NoError(t, xdr.PutUint32(buf, count))
	return buf.Bytes()
}

// compoundResult is the decoded head of a COMPOUND4res plus its per-op
// status codes, in execution order.
type compoundResult struct {
	status    uint32
	tag       string
	opStatus  []uint32
	remaining *bytes.Reader
}

// decodeCompoundUpTo walks the COMPOUND4res, recording every executed
// operation's status. Each successful operation's result body (for the ops
// these tests use) is collected in execution order into the returned
// reader, so callers that need an op's result body read it from there.
func decodeCompoundUpTo(t *testing.T, reply []byte, wantOps int) *compoundResult {
	t.Helper()
	r := bytes.NewReader(reply)
	status, err := xdr.GetUint32(r)
	require.NoError(t, err)
	tag, err := xdr.GetString(r)
	require.NoError(t, err)
	executed, err := xdr.GetUint32(r)
	require.NoError(t, err)

	res := &compoundResult{status: status, tag: tag}
	var bodies bytes.Buffer
	for i := uint32(0); i < executed; i++ {
		opNum, err := xdr.GetUint32(r)
		require.NoError(t, err)
		opStatus, err := xdr.GetUint32(r)
		require.NoError(t, err)
		res.opStatus = append(res.opStatus, opStatus)
		if opStatus != nfserr.NFS4OK {
			continue
		}
		start := len(reply) - r.Len()
		switch opNum {
		case OpGetfh:
			_, err = xdr.GetOpaque(r)
		case OpGetattr:
			if _, err = decodeBitmap4(r); err == nil {
				_, err = xdr.GetOpaque(r)
			}
		case OpWrite:
			_, err = xdr.GetFixedOpaque(r, 8+8) // count, committed, verifier
		case OpCommit:
			_, err = xdr.GetFixedOpaque(r, 8) // verifier
		}
		require.NoError(t, err)
		bodies.Write(reply[start : len(reply)-r.Len()])
	}
	require.Equal(t, wantOps, len(res.opStatus))
	res.remaining = bytes.NewReader(bodies.Bytes())
	return res
}

// Scenario 2 -- NFSv4 PUTFH+LOOKUP+GETFH+GETATTR resolves a known file.
func TestScenarioLookupKnownFile(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, "hello"), []byte("Hello world\n"), 0644))

	ctx := newScenarioContext(t, root, &auth.Principal{UID: 0}, nil)
	dirHandle := ctx.Handles.HandleFor(ctx.Version, root)

	args := encodeCompound(t,
		opArg{OpPutfh, putfhArgs(t, dirHandle)},
		opArg{OpLookup, lookupArgs(t, "hello")},
		opArg{OpGetfh, nil},
		opArg{OpGetattr, getattrArgs(t, fattr4Size)},
	)

	reply, err := Compound(ctx, args)
	require.NoError(t, err)

	res := decodeCompoundUpTo(t, reply, 4)
	require.Equal(t, uint32(nfserr.NFS4OK), res.status)
	require.Equal(t, []uint32{nfserr.NFS4OK, nfserr.NFS4OK, nfserr.NFS4OK, nfserr.NFS4OK}, res.opStatus)

	objHandle, err := xdr.GetOpaque(res.remaining)
	require.NoError(t, err)
	require.Equal(t, ctx.Handles.HandleFor(ctx.Version, filepath.Join(root, "hello")), objHandle)

	bitmap, err := decodeBitmap4(res.remaining)
	require.NoError(t, err)
	require.True(t, bitmap[fattr4Size])

	valsOpaque, err := xdr.GetOpaque(res.remaining)
	require.NoError(t, err)
	vr := bytes.NewReader(valsOpaque)
	size, err := xdr.GetUint64(vr)
	require.NoError(t, err)
	require.Equal(t, uint64(12), size)
}

// Scenario 3 -- NFSv4 WRITE with FILE_SYNC then COMMIT.
func TestScenarioWriteFileSyncThenCommit(t *testing.T) {
	root := t.TempDir()
	outPath := filepath.Join(root, "out")
	require.NoError(t, os.WriteFile(outPath, nil, 0644))

	ctx := newScenarioContext(t, root, &auth.Principal{UID: 0}, nil)
	ctx.WriteVerifier = [8]byte{1, 2, 3, 4, 5, 6, 7, 8}
	fileHandle := ctx.Handles.HandleFor(ctx.Version, outPath)

	args := encodeCompound(t,
		opArg{OpPutfh, putfhArgs(t, fileHandle)},
		opArg{OpWrite, writeArgs(t, 0, fileSync4, []byte("hello"))},
		opArg{OpCommit, commitArgs(t, 0, 5)},
	)

	reply, err := Compound(ctx, args)
	require.NoError(t, err)

	res := decodeCompoundUpTo(t, reply, 3)
	require.Equal(t, []uint32{nfserr.NFS4OK, nfserr.NFS4OK, nfserr.NFS4OK}, res.opStatus)

	count, err := xdr.GetUint32(res.remaining)
	require.NoError(t, err)
	committed, err := xdr.GetUint32(res.remaining)
	require.NoError(t, err)
	verf, err := xdr.GetFixedOpaque(res.remaining, 8)
	require.NoError(t, err)
	require.Equal(t, uint32(5), count)
	require.Equal(t, uint32(fileSync4), committed)
	require.Equal(t, ctx.WriteVerifier[:], verf)

	data, err := os.ReadFile(outPath)
	require.NoError(t, err)
	require.Equal(t, "hello", string(data))
}

// Scenario 4 -- PUTFH on a handle the server never issued fails the
// compound at its first operation with STALE.
func TestScenarioNeverIssuedHandleIsStale(t *testing.T) {
	root := t.TempDir()
	ctx := newScenarioContext(t, root, &auth.Principal{UID: 0}, nil)

	wire := handle.Encode(handle.V4, 99999) // never minted by ctx.Handles
	args := encodeCompound(t, opArg{OpPutfh, putfhArgs(t, wire)})

	reply, err := Compound(ctx, args)
	require.NoError(t, err)

	res := decodeCompoundUpTo(t, reply, 1)
	require.Equal(t, uint32(nfserr.NFS4ErrStale), res.status)
	require.Equal(t, []uint32{nfserr.NFS4ErrStale}, res.opStatus)
}

// Scenario 5 -- AUTH_SYS root_squash denies a WRITE to a root-owned,
// owner-only file once the caller has been remapped to the anonymous id.
func TestScenarioRootSquashDeniesWrite(t *testing.T) {
	root := t.TempDir()
	targetPath := filepath.Join(root, "secret")
	require.NoError(t, os.WriteFile(targetPath, []byte("root only"), 0600))

	principal := &auth.Principal{UID: 0, GID: 0}
	ctx := newScenarioContext(t, root, principal, func(e *export.Export) {
		e.RootSquash = true
		e.AnonUID = 65534
		e.AnonGID = 65534
	})
	fileHandle := ctx.Handles.HandleFor(ctx.Version, targetPath)

	args := encodeCompound(t,
		opArg{OpPutfh, putfhArgs(t, fileHandle)},
		opArg{OpWrite, writeArgs(t, 0, fileSync4, []byte("pwn!"))},
	)

	reply, err := Compound(ctx, args)
	require.NoError(t, err)

	res := decodeCompoundUpTo(t, reply, 2)
	require.Equal(t, []uint32{nfserr.NFS4OK, nfserr.NFS4ErrAccess}, res.opStatus)

	data, err := os.ReadFile(targetPath)
	require.NoError(t, err)
	require.Equal(t, "root only", string(data))
}
