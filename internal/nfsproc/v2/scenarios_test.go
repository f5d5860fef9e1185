package v2

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
// internal/server wires together for an incoming NFSv2 call.
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
		Version:    handle.V2,
	}
}

func getUint32(t *testing.T, r *bytes.Reader) uint32 {
	t.Helper()
	v, err := xdr.GetUint32(r)
	require.NoError(t, err)
	return v
}

// Scenario 2 -- NFSv2 LOOKUP of a known file.
func TestScenarioLookupKnownFile(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, "hello"), []byte("Hello world\n"), 0644))

	ctx := newScenarioContext(t, root, &auth.Principal{UID: 0}, nil)
	dirHandle := ctx.Handles.HandleFor(ctx.Version, root)

	buf := new(bytes.Buffer)
	require.NoError(t, xdr.PutFixedOpaque(buf, dirHandle))
	require.NoError(t, xdr.PutString(buf, "hello"))

	reply, err := handleLookup(ctx, buf.Bytes())
	require.NoError(t, err)

	r := bytes.NewReader(reply)
	require.Equal(t, uint32(nfsOK), getUint32(t, r))

	objHandle, err := xdr.GetFixedOpaque(r, 32)
	require.NoError(t, err)
	require.Equal(t, ctx.Handles.HandleFor(ctx.Version, filepath.Join(root, "hello")), objHandle)

	ftype := getUint32(t, r)
	mode := getUint32(t, r)
	require.Equal(t, uint32(nfReg), ftype)
	require.Equal(t, uint32(0644), mode&0777)

	_ = getUint32(t, r) // nlink
	_ = getUint32(t, r) // uid
	_ = getUint32(t, r) // gid
	size := getUint32(t, r)
	require.Equal(t, uint32(12), size)
}

// Scenario 3 -- NFSv2 WRITE then GETATTR confirms the new size.
func TestScenarioWriteThenGetattr(t *testing.T) {
	root := t.TempDir()
	outPath := filepath.Join(root, "out")
	require.NoError(t, os.WriteFile(outPath, nil, 0644))

	ctx := newScenarioContext(t, root, &auth.Principal{UID: 0}, nil)
	fileHandle := ctx.Handles.HandleFor(ctx.Version, outPath)

	writeArgs := new(bytes.Buffer)
	require.NoError(t, xdr.PutFixedOpaque(writeArgs, fileHandle))
	require.NoError(t, xdr.PutUint32(writeArgs, 0)) // beginoffset, unused
	require.NoError(t, xdr.PutUint32(writeArgs, 0)) // offset
	require.NoError(t, xdr.PutUint32(writeArgs, 5)) // totalcount, unused
	require.NoError(t, xdr.PutOpaque(writeArgs, []byte("hello")))

	writeReply, err := handleWrite(ctx, writeArgs.Bytes())
	require.NoError(t, err)
	wr := bytes.NewReader(writeReply)
	require.Equal(t, uint32(nfsOK), getUint32(t, wr))

	data, err := os.ReadFile(outPath)
	require.NoError(t, err)
	require.Equal(t, "hello", string(data))

	getattrArgs := new(bytes.Buffer)
	require.NoError(t, xdr.PutFixedOpaque(getattrArgs, fileHandle))
	getattrReply, err := handleGetattr(ctx, getattrArgs.Bytes())
	require.NoError(t, err)
	gr := bytes.NewReader(getattrReply)
	require.Equal(t, uint32(nfsOK), getUint32(t, gr))
	_ = getUint32(t, gr) // type
	_ = getUint32(t, gr) // mode
	_ = getUint32(t, gr) // nlink
	_ = getUint32(t, gr) // uid
	_ = getUint32(t, gr) // gid
	size := getUint32(t, gr)
	require.Equal(t, uint32(5), size)
}

// Scenario 4 -- a handle this process never minted comes back STALE.
func TestScenarioNeverIssuedHandleIsStale(t *testing.T) {
	root := t.TempDir()
	ctx := newScenarioContext(t, root, &auth.Principal{UID: 0}, nil)

	wire := handle.Encode(handle.V2, 99999) // never minted by ctx.Handles
	args := new(bytes.Buffer)
	require.NoError(t, xdr.PutFixedOpaque(args, wire))

	reply, err := handleGetattr(ctx, args.Bytes())
	require.NoError(t, err)
	r := bytes.NewReader(reply)
	require.Equal(t, uint32(nfserr.NFS3ErrStale), getUint32(t, r))
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

	writeArgs := new(bytes.Buffer)
	require.NoError(t, xdr.PutFixedOpaque(writeArgs, fileHandle))
	require.NoError(t, xdr.PutUint32(writeArgs, 0))
	require.NoError(t, xdr.PutUint32(writeArgs, 0))
	require.NoError(t, xdr.PutUint32(writeArgs, 4))
	require.NoError(t, xdr.PutOpaque(writeArgs, []byte("pwn!")))

	reply, err := handleWrite(ctx, writeArgs.Bytes())
	require.NoError(t, err)
	r := bytes.NewReader(reply)
	require.Equal(t, uint32(nfserr.NFS3ErrAcces), getUint32(t, r))

	data, err := os.ReadFile(targetPath)
	require.NoError(t, err)
	require.Equal(t, "root only", string(data))
}
