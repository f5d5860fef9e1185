package v3

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
	"github.com/blburns/simple-nfsd-sub001/internal/rpc"
	"github.com/blburns/simple-nfsd-sub001/internal/vfs"
	"github.com/blburns/simple-nfsd-sub001/internal/xdr"
	"github.com/stretchr/testify/require"
)

// newScenarioContext builds a common.Context rooted at a temp export, wired
// through the real export gate and handle table (no mocks), matching what
// internal/server wires together for an incoming call.
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
		Version:    handle.V3,
	}
}

func getUint32(t *testing.T, r *bytes.Reader) uint32 {
	t.Helper()
	v, err := xdr.GetUint32(r)
	require.NoError(t, err)
	return v
}

// Scenario 2 -- NFSv3 LOOKUP of a known file.
func TestScenarioLookupKnownFile(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, "hello"), []byte("Hello world\n"), 0644))

	ctx := newScenarioContext(t, root, &auth.Principal{UID: 0}, nil)
	dirHandle := ctx.Handles.HandleFor(ctx.Version, root)

	buf := new(bytes.Buffer)
	require.NoError(t, xdr.PutOpaque(buf, dirHandle))
	require.NoError(t, xdr.PutString(buf, "hello"))

	reply, err := handleLookup(ctx, buf.Bytes())
	require.NoError(t, err)

	r := bytes.NewReader(reply)
	require.Equal(t, uint32(nfserr.NFS3OK), getUint32(t, r))

	objHandle, err := xdr.GetOpaque(r)
	require.NoError(t, err)
	require.Equal(t, ctx.Handles.HandleFor(ctx.Version, filepath.Join(root, "hello")), objHandle)

	present, err := xdr.GetBool(r)
	require.NoError(t, err)
	require.True(t, present)

	ftype := getUint32(t, r)
	mode := getUint32(t, r)
	require.Equal(t, uint32(common.NF3Reg), ftype)
	require.Equal(t, uint32(0644), mode&0777)

	_ = getUint32(t, r) // nlink
	_ = getUint32(t, r) // uid
	_ = getUint32(t, r) // gid
	size, err := xdr.GetUint64(r)
	require.NoError(t, err)
	require.Equal(t, uint64(12), size)
}

// Scenario 3 -- NFSv3 WRITE with FILE_SYNC then COMMIT.
func TestScenarioWriteFileSyncThenCommit(t *testing.T) {
	root := t.TempDir()
	outPath := filepath.Join(root, "out")
	require.NoError(t, os.WriteFile(outPath, nil, 0644))

	ctx := newScenarioContext(t, root, &auth.Principal{UID: 0}, nil)
	ctx.WriteVerifier = [8]byte{1, 2, 3, 4, 5, 6, 7, 8}
	fileHandle := ctx.Handles.HandleFor(ctx.Version, outPath)

	writeArgs := new(bytes.Buffer)
	require.NoError(t, xdr.PutOpaque(writeArgs, fileHandle))
	require.NoError(t, xdr.PutUint64(writeArgs, 0))  // offset
	require.NoError(t, xdr.PutUint32(writeArgs, 5))  // count
	require.NoError(t, xdr.PutUint32(writeArgs, FileSync))
	require.NoError(t, xdr.PutOpaque(writeArgs, []byte("hello")))

	writeReply, err := handleWrite(ctx, writeArgs.Bytes())
	require.NoError(t, err)

	status, count, committed, verf := decodeWriteTail(t, writeReply)
	require.Equal(t, uint32(nfserr.NFS3OK), status)
	require.Equal(t, uint32(5), count)
	require.Equal(t, uint32(FileSync), committed)
	require.Equal(t, ctx.WriteVerifier[:], verf)

	commitArgs := new(bytes.Buffer)
	require.NoError(t, xdr.PutOpaque(commitArgs, fileHandle))
	require.NoError(t, xdr.PutUint64(commitArgs, 0))
	require.NoError(t, xdr.PutUint32(commitArgs, 5))

	commitReply, err := handleCommit(ctx, commitArgs.Bytes())
	require.NoError(t, err)
	cr := bytes.NewReader(commitReply)
	require.Equal(t, uint32(nfserr.NFS3OK), getUint32(t, cr))

	data, err := os.ReadFile(outPath)
	require.NoError(t, err)
	require.Equal(t, "hello", string(data))

	getattrArgs := new(bytes.Buffer)
	require.NoError(t, xdr.PutOpaque(getattrArgs, fileHandle))
	getattrReply, err := handleGetattr(ctx, getattrArgs.Bytes())
	require.NoError(t, err)
	gr := bytes.NewReader(getattrReply)
	require.Equal(t, uint32(nfserr.NFS3OK), getUint32(t, gr))
	_ = getUint32(t, gr) // type
	_ = getUint32(t, gr) // mode
	_ = getUint32(t, gr) // nlink
	_ = getUint32(t, gr) // uid
	_ = getUint32(t, gr) // gid
	size, err := xdr.GetUint64(gr)
	require.NoError(t, err)
	require.Equal(t, uint64(5), size)
}

// decodeWriteTail re-parses a WRITE3res reply to extract count/committed/verf,
// skipping over the leading status and wcc_data by re-walking the same shape
// handleWrite encodes.
func decodeWriteTail(t *testing.T, reply []byte) (status, count, committed uint32, verf []byte) {
	t.Helper()
	r := bytes.NewReader(reply)
	status = getUint32(t, r)

	skipWCCAttr := func(present bool) {
		if !present {
			return
		}
		_, err := xdr.GetUint64(r)
		require.NoError(t, err)
		_ = getUint32(t, r)
		_ = getUint32(t, r)
		_ = getUint32(t, r)
		_ = getUint32(t, r)
	}
	prePresent, err := xdr.GetBool(r)
	require.NoError(t, err)
	skipWCCAttr(prePresent)

	postPresent, err := xdr.GetBool(r)
	require.NoError(t, err)
	if postPresent {
		_ = getUint32(t, r) // type
		_ = getUint32(t, r) // mode
		_ = getUint32(t, r) // nlink
		_ = getUint32(t, r) // uid
		_ = getUint32(t, r) // gid
		_, err = xdr.GetUint64(r) // size
		require.NoError(t, err)
		_, err = xdr.GetUint64(r) // used
		require.NoError(t, err)
		_, err = xdr.GetUint64(r) // rdev
		require.NoError(t, err)
		_, err = xdr.GetUint64(r) // fsid
		require.NoError(t, err)
		_, err = xdr.GetUint64(r) // fileid
		require.NoError(t, err)
		_ = getUint32(t, r) // atime sec
		_ = getUint32(t, r) // atime nsec
		_ = getUint32(t, r) // mtime sec
		_ = getUint32(t, r) // mtime nsec
		_ = getUint32(t, r) // ctime sec
		_ = getUint32(t, r) // ctime nsec
	}

	count = getUint32(t, r)
	committed = getUint32(t, r)
	verf, err = xdr.GetFixedOpaque(r, 8)
	require.NoError(t, err)
	return status, count, committed, verf
}

// Scenario 4 -- export gate rejects a handle the server never issued.
func TestScenarioNeverIssuedHandleIsStale(t *testing.T) {
	root := t.TempDir()
	ctx := newScenarioContext(t, root, &auth.Principal{UID: 0}, nil)

	wire := handle.Encode(handle.V3, 99999) // never minted by ctx.Handles
	args := new(bytes.Buffer)
	require.NoError(t, xdr.PutOpaque(args, wire))

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

	sysCred := new(bytes.Buffer)
	require.NoError(t, xdr.PutUint32(sysCred, 0))              // stamp
	require.NoError(t, xdr.PutString(sysCred, "client"))       // machine
	require.NoError(t, xdr.PutUint32(sysCred, 0))              // uid
	require.NoError(t, xdr.PutUint32(sysCred, 0))              // gid
	require.NoError(t, xdr.PutUint32Array(sysCred, nil))       // gids

	dispatcher := auth.NewDispatcher(auth.Config{AllowSys: true})
	principal, failure := dispatcher.Authenticate(rpc.OpaqueAuth{Flavor: rpc.AuthFlavorSys, Body: sysCred.Bytes()})
	require.Nil(t, failure)
	require.Equal(t, uint32(0), principal.UID)

	ctx := newScenarioContext(t, root, principal, func(e *export.Export) {
		e.RootSquash = true
		e.AnonUID = 65534
		e.AnonGID = 65534
	})
	fileHandle := ctx.Handles.HandleFor(ctx.Version, targetPath)

	writeArgs := new(bytes.Buffer)
	require.NoError(t, xdr.PutOpaque(writeArgs, fileHandle))
	require.NoError(t, xdr.PutUint64(writeArgs, 0))
	require.NoError(t, xdr.PutUint32(writeArgs, 4))
	require.NoError(t, xdr.PutUint32(writeArgs, FileSync))
	require.NoError(t, xdr.PutOpaque(writeArgs, []byte("pwn!")))

	reply, err := handleWrite(ctx, writeArgs.Bytes())
	require.NoError(t, err)
	r := bytes.NewReader(reply)
	require.Equal(t, uint32(nfserr.NFS3ErrAcces), getUint32(t, r))

	data, err := os.ReadFile(targetPath)
	require.NoError(t, err)
	require.Equal(t, "root only", string(data))
}
