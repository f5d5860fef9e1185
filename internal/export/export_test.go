package export

import (
	"net"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseClientMatcherLiteralIP(t *testing.T) {
	m, err := ParseClientMatcher("192.168.1.5")
	require.NoError(t, err)
	assert.True(t, m.Matches(net.ParseIP("192.168.1.5"), nil))
	assert.False(t, m.Matches(net.ParseIP("192.168.1.6"), nil))
}

func TestParseClientMatcherCIDR(t *testing.T) {
	m, err := ParseClientMatcher("10.0.0.0/24")
	require.NoError(t, err)
	assert.True(t, m.Matches(net.ParseIP("10.0.0.42"), nil))
	assert.False(t, m.Matches(net.ParseIP("10.0.1.42"), nil))
}

func TestParseClientMatcherWildcard(t *testing.T) {
	m, err := ParseClientMatcher("*")
	require.NoError(t, err)
	assert.True(t, m.Matches(net.ParseIP("8.8.8.8"), nil))
}

func TestParseClientMatcherHostnameGlob(t *testing.T) {
	m, err := ParseClientMatcher("*.example.com")
	require.NoError(t, err)
	resolver := func(net.IP) ([]string, error) { return []string{"host.example.com."}, nil }
	assert.True(t, m.Matches(net.ParseIP("1.2.3.4"), resolver))

	failing := func(net.IP) ([]string, error) { return nil, assertErr{} }
	assert.False(t, m.Matches(net.ParseIP("1.2.3.4"), failing))
}

type assertErr struct{}

func (assertErr) Error() string { return "resolve failed" }

func TestTableResolveLongestPrefix(t *testing.T) {
	tbl := NewTable([]*Export{
		{Path: "/srv"},
		{Path: "/srv/export"},
	})
	got := tbl.Resolve("/srv/export/hello")
	require.NotNil(t, got)
	assert.Equal(t, "/srv/export", got.Path)
}

func TestTableResolveNoMatch(t *testing.T) {
	tbl := NewTable([]*Export{{Path: "/srv/export"}})
	assert.Nil(t, tbl.Resolve("/etc/passwd"))
}

func TestCanonicalizeRejectsDotDot(t *testing.T) {
	_, err := Canonicalize("/srv/export/../../etc/passwd")
	require.Error(t, err)
	var denied *Denied
	require.ErrorAs(t, err, &denied)
	assert.Equal(t, KindOutsideExport, denied.Kind)
}

func TestCanonicalizeCleansPath(t *testing.T) {
	got, err := Canonicalize("/srv//export/./hello")
	require.NoError(t, err)
	assert.Equal(t, "/srv/export/hello", got)
}
