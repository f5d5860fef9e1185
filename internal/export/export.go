// Package export implements the export table: the list of
// paths the server shares, each with its client ACL and options
// (ro/root_squash/all_squash/subtree_check/secure).
package export

import (
	"fmt"
	"net"
	"path"
	"strings"
)

// Export is one exported directory tree and the policy governing it.
type Export struct {
	Path           string
	Clients        []ClientMatcher
	ReadOnly       bool
	RootSquash     bool
	AllSquash      bool
	NoSubtreeCheck bool
	Secure         bool
	AnonUID        uint32
	AnonGID        uint32
	Comment        string
}

// ClientMatcher reports whether a peer address is covered by an export's
// client list. Spec §4.4: literal address, CIDR, hostname glob, or "*".
type ClientMatcher interface {
	Matches(ip net.IP, resolveHostnames func(net.IP) ([]string, error)) bool
	String() string
}

type literalMatcher struct{ ip net.IP }

func (m literalMatcher) Matches(ip net.IP, _ func(net.IP) ([]string, error)) bool {
	return m.ip.Equal(ip)
}
func (m literalMatcher) String() string { return m.ip.String() }

type cidrMatcher struct {
	network *net.IPNet
	raw     string
}

func (m cidrMatcher) Matches(ip net.IP, _ func(net.IP) ([]string, error)) bool {
	return m.network.Contains(ip)
}
func (m cidrMatcher) String() string { return m.raw }

type wildcardMatcher struct{}

func (wildcardMatcher) Matches(net.IP, func(net.IP) ([]string, error)) bool { return true }
func (wildcardMatcher) String() string                                     { return "*" }

type hostnameGlobMatcher struct{ pattern string }

func (m hostnameGlobMatcher) Matches(ip net.IP, resolveHostnames func(net.IP) ([]string, error)) bool {
	if resolveHostnames == nil {
		return false
	}
	names, err := resolveHostnames(ip)
	if err != nil {
		return false
	}
	for _, n := range names {
		if globMatch(m.pattern, strings.TrimSuffix(n, ".")) {
			return true
		}
	}
	return false
}
func (m hostnameGlobMatcher) String() string { return m.pattern }

// globMatch supports a single leading "*." wildcard segment, the common
// `*.example.com` form; anything else requires an exact match.
func globMatch(pattern, name string) bool {
	if pattern == "*" {
		return true
	}
	if strings.HasPrefix(pattern, "*.") {
		suffix := pattern[1:] // ".example.com"
		return strings.HasSuffix(name, suffix) && len(name) > len(suffix)
	}
	return pattern == name
}

// ParseClientMatcher parses one client matcher: a literal IP, a
// CIDR, a hostname glob, or the bare wildcard "*".
func ParseClientMatcher(spec string) (ClientMatcher, error) {
	if spec == "*" {
		return wildcardMatcher{}, nil
	}
	if strings.Contains(spec, "/") {
		_, network, err := net.ParseCIDR(spec)
		if err != nil {
			return nil, fmt.Errorf("export: invalid CIDR client spec %q: %w", spec, err)
		}
		return cidrMatcher{network: network, raw: spec}, nil
	}
	if ip := net.ParseIP(spec); ip != nil {
		return literalMatcher{ip: ip}, nil
	}
	return hostnameGlobMatcher{pattern: spec}, nil
}

// Table holds every configured export, resolved by longest-prefix match.
type Table struct {
	exports []*Export
}

// NewTable builds a Table from a list of exports. The caller is expected to
// have parsed ClientMatchers already (see Config loading in internal/config).
func NewTable(exports []*Export) *Table {
	t := &Table{exports: make([]*Export, len(exports))}
	copy(t.exports, exports)
	return t
}

// Resolve returns the export whose root is the longest prefix of the
// canonical path cleanPath, or nil if no export contains it.
func (t *Table) Resolve(cleanPath string) *Export {
	var best *Export
	for _, e := range t.exports {
		if isWithin(e.Path, cleanPath) {
			if best == nil || len(e.Path) > len(best.Path) {
				best = e
			}
		}
	}
	return best
}

// All returns every configured export, for DUMP/EXPORT (mount protocol).
func (t *Table) All() []*Export {
	out := make([]*Export, len(t.exports))
	copy(out, t.exports)
	return out
}

// isWithin reports whether target is root itself or a descendant of root.
func isWithin(root, target string) bool {
	root = path.Clean(root)
	target = path.Clean(target)
	if target == root {
		return true
	}
	return strings.HasPrefix(target, root+"/")
}
