package handle

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHandleForIsStableAndIdempotent(t *testing.T) {
	tbl := NewTable()
	h1 := tbl.HandleFor(V3, "/srv/export/hello")
	h2 := tbl.HandleFor(V3, "/srv/export/hello")
	assert.Equal(t, h1, h2)
}

func TestDistinctPathsNeverShareAHandle(t *testing.T) {
	tbl := NewTable()
	h1 := tbl.HandleFor(V3, "/srv/export/a")
	h2 := tbl.HandleFor(V3, "/srv/export/b")
	assert.NotEqual(t, h1, h2)
}

func TestRoundTripPathForHandleFor(t *testing.T) {
	tbl := NewTable()
	path := "/srv/export/hello"
	h := tbl.HandleFor(V3, path)
	got, err := tbl.PathFor(V3, h)
	require.NoError(t, err)
	assert.Equal(t, path, got)

	// handle_for(path_for(h)) == h
	h2 := tbl.HandleFor(V3, got)
	assert.Equal(t, h, h2)
}

func TestForgottenPathIsStale(t *testing.T) {
	tbl := NewTable()
	h := tbl.HandleFor(V3, "/srv/export/gone")
	tbl.Forget("/srv/export/gone")
	_, err := tbl.PathFor(V3, h)
	assert.ErrorIs(t, err, ErrStale)
}

func TestNeverIssuedHandleIsStale(t *testing.T) {
	tbl := NewTable()
	wire := Encode(V3, 99999)
	_, err := tbl.PathFor(V3, wire)
	assert.ErrorIs(t, err, ErrStale)
}

func TestV2EncodingIsBitExact(t *testing.T) {
	wire := Encode(V2, 1)
	require.Len(t, wire, 32)
	assert.Equal(t, []byte{0, 0, 0, 1}, wire[0:4])
	for _, b := range wire[4:] {
		assert.Equal(t, byte(0), b)
	}
}

func TestV3EncodingIsBitExact(t *testing.T) {
	wire := Encode(V3, 1)
	require.Len(t, wire, 64)
	assert.Equal(t, []byte{0, 0, 0, 0, 0, 0, 0, 1}, wire[0:8])
	for _, b := range wire[8:] {
		assert.Equal(t, byte(0), b)
	}
}

func TestV4EncodingIsBitExact(t *testing.T) {
	wire := Encode(V4, 7)
	require.Len(t, wire, 28)
	assert.Equal(t, uint32(1), beUint32(wire[0:4]))
	assert.Equal(t, uint64(7), beUint64(wire[4:12]))
	for _, b := range wire[12:] {
		assert.Equal(t, byte(0), b)
	}
}

func TestV4ZeroLengthHandleIsStale(t *testing.T) {
	_, err := Decode(V4, nil)
	assert.ErrorIs(t, err, ErrStale)
}

func TestWrongSizeHandleIsMalformed(t *testing.T) {
	_, err := Decode(V2, make([]byte, 31))
	assert.ErrorIs(t, err, ErrMalformed)

	_, err = Decode(V3, make([]byte, 63))
	assert.ErrorIs(t, err, ErrMalformed)
}

func TestRenamePreservesID(t *testing.T) {
	tbl := NewTable()
	h := tbl.HandleFor(V3, "/srv/export/old")
	tbl.Rename("/srv/export/old", "/srv/export/new")

	got, err := tbl.PathFor(V3, h)
	require.NoError(t, err)
	assert.Equal(t, "/srv/export/new", got)

	_, err = tbl.PathFor(V3, tbl.HandleFor(V3, "/srv/export/old"))
	require.NoError(t, err)
	assert.NotEqual(t, "/srv/export/old", got)
}

func beUint32(b []byte) uint32 {
	return uint32(b[0])<<24 | uint32(b[1])<<16 | uint32(b[2])<<8 | uint32(b[3])
}

func beUint64(b []byte) uint64 {
	var v uint64
	for _, c := range b {
		v = v<<8 | uint64(c)
	}
	return v
}
