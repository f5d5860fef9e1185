package export

import (
	"net"
	"os"
	"path/filepath"
	"testing"

	"github.com/blburns/simple-nfsd-sub001/internal/auth"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func wildcardExport(root string, opts func(*Export)) *Export {
	wc, _ := ParseClientMatcher("*")
	e := &Export{Path: root, Clients: []ClientMatcher{wc}}
	if opts != nil {
		opts(e)
	}
	return e
}

func TestGateRejectsOutsideExport(t *testing.T) {
	tbl := NewTable([]*Export{wildcardExport("/srv/export", nil)})
	g := NewGate(tbl)
	_, _, err := g.Check(&auth.Principal{UID: 1000}, net.ParseIP("1.2.3.4"), 700, "/etc/passwd", false)
	require.Error(t, err)
	var denied *Denied
	require.ErrorAs(t, err, &denied)
	assert.Equal(t, KindOutsideExport, denied.Kind)
}

func TestGateRejectsClientNotInList(t *testing.T) {
	m, _ := ParseClientMatcher("10.0.0.0/24")
	tbl := NewTable([]*Export{{Path: "/srv/export", Clients: []ClientMatcher{m}}})
	g := NewGate(tbl)
	_, _, err := g.Check(&auth.Principal{UID: 1000}, net.ParseIP("192.168.1.1"), 700, "/srv/export/f", false)
	var denied *Denied
	require.ErrorAs(t, err, &denied)
	assert.Equal(t, KindClientDenied, denied.Kind)
}

func TestGateRejectsInsecurePort(t *testing.T) {
	tbl := NewTable([]*Export{wildcardExport("/srv/export", func(e *Export) { e.Secure = true })})
	g := NewGate(tbl)
	_, _, err := g.Check(&auth.Principal{UID: 1000}, net.ParseIP("1.2.3.4"), 2049, "/srv/export/f", false)
	var denied *Denied
	require.ErrorAs(t, err, &denied)
	assert.Equal(t, KindSecurePort, denied.Kind)
}

func TestGateAllowsSecureReservedPort(t *testing.T) {
	dir := t.TempDir()
	mustFile(t, filepath.Join(dir, "f"), 0644)
	tbl := NewTable([]*Export{wildcardExport(dir, func(e *Export) { e.Secure = true; e.NoSubtreeCheck = true })})
	g := NewGate(tbl)
	_, _, err := g.Check(&auth.Principal{UID: 0}, net.ParseIP("1.2.3.4"), 700, filepath.Join(dir, "f"), false)
	assert.NoError(t, err)
}

func TestGateReadOnlyRejectsWrite(t *testing.T) {
	tbl := NewTable([]*Export{wildcardExport("/srv/export", func(e *Export) { e.ReadOnly = true; e.NoSubtreeCheck = true })})
	g := NewGate(tbl)
	_, _, err := g.Check(&auth.Principal{UID: 0}, net.ParseIP("1.2.3.4"), 700, "/srv/export/f", true)
	var denied *Denied
	require.ErrorAs(t, err, &denied)
	assert.Equal(t, KindReadOnly, denied.Kind)
}

func TestGateRootSquashRemapsRootOnly(t *testing.T) {
	tbl := NewTable([]*Export{wildcardExport("/srv/export", func(e *Export) {
		e.RootSquash = true
		e.AnonUID = 65534
		e.AnonGID = 65534
		e.NoSubtreeCheck = true
	})})
	g := NewGate(tbl)
	g.Lstat = func(string) (os.FileInfo, error) { return nil, os.ErrNotExist }

	_, eff, err := g.Check(&auth.Principal{UID: 0, GID: 0}, net.ParseIP("1.2.3.4"), 700, "/srv/export/f", false)
	require.NoError(t, err)
	assert.Equal(t, uint32(65534), eff.UID)

	_, eff2, err := g.Check(&auth.Principal{UID: 1000, GID: 1000}, net.ParseIP("1.2.3.4"), 700, "/srv/export/f", false)
	require.NoError(t, err)
	assert.Equal(t, uint32(1000), eff2.UID)
}

func TestGateAllSquashRemapsEveryone(t *testing.T) {
	tbl := NewTable([]*Export{wildcardExport("/srv/export", func(e *Export) {
		e.AllSquash = true
		e.AnonUID = 65534
		e.AnonGID = 65534
		e.NoSubtreeCheck = true
	})})
	g := NewGate(tbl)
	g.Lstat = func(string) (os.FileInfo, error) { return nil, os.ErrNotExist }
	_, eff, err := g.Check(&auth.Principal{UID: 1000, GID: 1000}, net.ParseIP("1.2.3.4"), 700, "/srv/export/f", false)
	require.NoError(t, err)
	assert.Equal(t, uint32(65534), eff.UID)
}

func TestGateSubtreeCheckRejectsUnreachableAncestor(t *testing.T) {
	innerOnly, _ := ParseClientMatcher("10.0.0.0/24")
	tbl := NewTable([]*Export{
		{Path: "/srv", Clients: []ClientMatcher{innerOnly}},
		wildcardExport("/srv/export", nil),
	})
	g := NewGate(tbl)
	_, _, err := g.Check(&auth.Principal{UID: 1000}, net.ParseIP("192.168.1.1"), 700, "/srv/export/f", false)
	var denied *Denied
	require.ErrorAs(t, err, &denied)
	assert.Equal(t, KindSubtree, denied.Kind)
}

func TestGatePermissionCheckOwnerReadWrite(t *testing.T) {
	dir := t.TempDir()
	p := filepath.Join(dir, "f")
	mustFile(t, p, 0600)
	tbl := NewTable([]*Export{wildcardExport(dir, func(e *Export) { e.NoSubtreeCheck = true })})
	g := NewGate(tbl)

	myUID := uint32(os.Getuid())
	_, _, err := g.Check(&auth.Principal{UID: myUID}, net.ParseIP("1.2.3.4"), 700, p, true)
	assert.NoError(t, err)
}

func TestGatePermissionCheckOthersDeniedOnModeZero(t *testing.T) {
	dir := t.TempDir()
	p := filepath.Join(dir, "f")
	mustFile(t, p, 0600)
	tbl := NewTable([]*Export{wildcardExport(dir, func(e *Export) { e.NoSubtreeCheck = true })})
	g := NewGate(tbl)

	_, _, err := g.Check(&auth.Principal{UID: 99999, GID: 99999}, net.ParseIP("1.2.3.4"), 700, p, false)
	var denied *Denied
	require.ErrorAs(t, err, &denied)
	assert.Equal(t, KindPermission, denied.Kind)
}

func TestGateRootBypassesPermissionCheckButNotExportChecks(t *testing.T) {
	dir := t.TempDir()
	p := filepath.Join(dir, "f")
	mustFile(t, p, 0000)
	tbl := NewTable([]*Export{wildcardExport(dir, func(e *Export) { e.NoSubtreeCheck = true })})
	g := NewGate(tbl)

	_, _, err := g.Check(&auth.Principal{UID: 0, GID: 0}, net.ParseIP("1.2.3.4"), 700, p, true)
	assert.NoError(t, err)
}

func mustFile(t *testing.T, path string, mode os.FileMode) {
	t.Helper()
	f, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR, mode)
	require.NoError(t, err)
	require.NoError(t, f.Close())
	require.NoError(t, os.Chmod(path, mode))
}
