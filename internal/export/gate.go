package export

import (
	"net"
	"os"
	"path"
	"strings"
	"syscall"

	"github.com/blburns/simple-nfsd-sub001/internal/auth"
)

// Kind classifies why the gate rejected a call, so the NFS procedure layer
// can translate it into the version-appropriate status code.
type Kind int

const (
	KindOutsideExport Kind = iota
	KindClientDenied
	KindSecurePort
	KindSubtree
	KindReadOnly
	KindPermission
	KindResolveFailed
)

// Denied is returned by Check when the gate rejects a call.
type Denied struct {
	Kind   Kind
	Reason string
}

func (d *Denied) Error() string { return d.Reason }

func deny(kind Kind, reason string) *Denied { return &Denied{Kind: kind, Reason: reason} }

// HostnameResolver resolves a peer IP to the hostnames it reverse-resolves
// to, for hostname-glob client matching. A failed lookup must fail the
// match, not crash the server.
type HostnameResolver func(ip net.IP) ([]string, error)

// Gate is the export/access decision point.
type Gate struct {
	Table    *Table
	Resolve  HostnameResolver
	Lstat    func(string) (os.FileInfo, error)
}

// NewGate returns a Gate backed by table, using os.Lstat and net.LookupAddr
// by default.
func NewGate(table *Table) *Gate {
	return &Gate{
		Table: table,
		Resolve: func(ip net.IP) ([]string, error) {
			return net.LookupAddr(ip.String())
		},
		Lstat: os.Lstat,
	}
}

// Canonicalize rejects ".." components and returns the cleaned absolute
// path. It does not itself resolve symlinks; callers
// that need loop detection do so via the underlying VFS's own resolution,
// which returns an I/O error this gate does not need to special-case.
func Canonicalize(p string) (string, error) {
	clean := path.Clean("/" + p)
	for _, seg := range strings.Split(p, "/") {
		if seg == ".." {
			return "", deny(KindOutsideExport, "path escapes export root via ..")
		}
	}
	return clean, nil
}

// Check runs the full export/access gate and returns
// the resolved export plus the effective principal (after squash) on
// success, or a *Denied describing the first failing step.
func (g *Gate) Check(p *auth.Principal, clientIP net.IP, clientPort int, rawPath string, wantWrite bool) (*Export, *auth.Principal, error) {
	clean, err := Canonicalize(rawPath)
	if err != nil {
		return nil, nil, err
	}

	exp := g.Table.Resolve(clean)
	if exp == nil {
		return nil, nil, deny(KindOutsideExport, "path matches no configured export")
	}

	if !g.clientAllowed(exp, clientIP) {
		return nil, nil, deny(KindClientDenied, "client not permitted by export's client list")
	}

	if exp.Secure && clientPort >= 1024 {
		return nil, nil, deny(KindSecurePort, "export requires a reserved source port")
	}

	if !exp.NoSubtreeCheck {
		if err := g.subtreeCheck(exp, clientIP, clean); err != nil {
			return nil, nil, err
		}
	}

	if exp.ReadOnly && wantWrite {
		return nil, nil, deny(KindReadOnly, "export is read-only")
	}

	effective := applySquash(exp, p)

	if err := g.permissionCheck(effective, clean, wantWrite); err != nil {
		return nil, nil, err
	}

	return exp, effective, nil
}

func (g *Gate) clientAllowed(exp *Export, clientIP net.IP) bool {
	for _, m := range exp.Clients {
		if m.Matches(clientIP, g.Resolve) {
			return true
		}
	}
	return false
}

// subtreeCheck walks from target to the filesystem root; every ancestor up
// to (and including) the export root must itself be reachable by this
// client through some export.
func (g *Gate) subtreeCheck(exp *Export, clientIP net.IP, target string) error {
	cur := target
	for cur != exp.Path && cur != "/" && cur != "." {
		cur = path.Dir(cur)
		if cur == exp.Path {
			break
		}
		ancestorExp := g.Table.Resolve(cur)
		if ancestorExp == nil || !g.clientAllowed(ancestorExp, clientIP) {
			return deny(KindSubtree, "ancestor path not reachable by this client")
		}
	}
	return nil
}

// applySquash maps the principal's identity per the export's squash policy
// all_squash remaps every caller; root_squash remaps only
// uid==0.
func applySquash(exp *Export, p *auth.Principal) *auth.Principal {
	if exp.AllSquash || (exp.RootSquash && p.UID == 0) {
		squashed := *p
		squashed.UID = exp.AnonUID
		squashed.GID = exp.AnonGID
		squashed.Gids = []uint32{exp.AnonGID}
		return &squashed
	}
	return p
}

// permissionCheck consults Unix mode bits on the target using the
// principal's effective uid/gid/gids. Root (uid==0,
// i.e. not squashed away) bypasses this check entirely.
func (g *Gate) permissionCheck(p *auth.Principal, target string, wantWrite bool) error {
	if p.UID == 0 {
		return nil
	}
	info, err := g.Lstat(target)
	if err != nil {
		return nil // let the VFS layer surface the real fs error (ENOENT etc).
	}
	stat, ok := info.Sys().(*syscall.Stat_t)
	if !ok {
		return nil
	}
	mode := info.Mode()

	var bit os.FileMode
	if wantWrite {
		bit = 0002
	} else {
		bit = 0004
	}

	switch {
	case p.UID == stat.Uid:
		bit <<= 6
	case inGids(p, stat.Gid):
		bit <<= 3
	}

	if mode.Perm()&bit == 0 {
		return deny(KindPermission, "mode bits deny requested access")
	}
	return nil
}

func inGids(p *auth.Principal, gid uint32) bool {
	if p.GID == gid {
		return true
	}
	for _, g := range p.Gids {
		if g == gid {
			return true
		}
	}
	return false
}
