package xdr

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPutOpaque(t *testing.T) {
	t.Run("EncodesEmptyOpaque", func(t *testing.T) {
		buf := new(bytes.Buffer)
		require.NoError(t, PutOpaque(buf, nil))
		assert.Equal(t, []byte{0, 0, 0, 0}, buf.Bytes())
	})

	t.Run("EncodesWithoutPaddingNeeded", func(t *testing.T) {
		buf := new(bytes.Buffer)
		require.NoError(t, PutOpaque(buf, []byte{1, 2, 3, 4}))
		assert.Equal(t, []byte{0, 0, 0, 4, 1, 2, 3, 4}, buf.Bytes())
	})

	for _, tc := range []struct {
		data []byte
		want []byte
	}{
		{[]byte{1, 2, 3}, []byte{0, 0, 0, 3, 1, 2, 3, 0}},
		{[]byte{1, 2}, []byte{0, 0, 0, 2, 1, 2, 0, 0}},
		{[]byte{1}, []byte{0, 0, 0, 1, 1, 0, 0, 0}},
	} {
		buf := new(bytes.Buffer)
		require.NoError(t, PutOpaque(buf, tc.data))
		assert.Equal(t, tc.want, buf.Bytes())
		assert.Equal(t, 0, buf.Len()%4)
	}
}

func TestPutString(t *testing.T) {
	buf := new(bytes.Buffer)
	require.NoError(t, PutString(buf, "hello"))
	assert.Equal(t, []byte{0, 0, 0, 5, 'h', 'e', 'l', 'l', 'o', 0, 0, 0}, buf.Bytes())
}

func TestPutOptionalOpaque(t *testing.T) {
	t.Run("EmptyIsAbsent", func(t *testing.T) {
		buf := new(bytes.Buffer)
		require.NoError(t, PutOptionalOpaque(buf, nil))
		assert.Equal(t, []byte{0, 0, 0, 0}, buf.Bytes())
	})

	t.Run("NonEmptyIsPresent", func(t *testing.T) {
		buf := new(bytes.Buffer)
		require.NoError(t, PutOptionalOpaque(buf, []byte{0xAB}))
		assert.Equal(t, []byte{0, 0, 0, 1, 0, 0, 0, 1, 0xAB, 0, 0, 0}, buf.Bytes())
	})
}

func TestRoundTripOpaque(t *testing.T) {
	for _, data := range [][]byte{nil, {1}, {1, 2}, {1, 2, 3}, {1, 2, 3, 4}, bytes.Repeat([]byte{0x42}, 513)} {
		buf := new(bytes.Buffer)
		require.NoError(t, PutOpaque(buf, data))
		got, err := GetOpaque(buf)
		require.NoError(t, err)
		if len(data) == 0 {
			assert.Empty(t, got)
		} else {
			assert.Equal(t, data, got)
		}
	}
}

func TestGetOpaqueRejectsExcessiveLength(t *testing.T) {
	buf := new(bytes.Buffer)
	require.NoError(t, PutUint32(buf, 2*1024*1024*1024))
	_, err := GetOpaque(buf)
	require.Error(t, err)
	assert.True(t, IsGarbageArgs(err))
}

func TestGetOpaqueTruncated(t *testing.T) {
	buf := new(bytes.Buffer)
	require.NoError(t, PutUint32(buf, 8))
	buf.WriteByte(1) // only one of eight promised bytes present
	_, err := GetOpaque(buf)
	require.Error(t, err)
	assert.True(t, IsGarbageArgs(err))
}

func TestRoundTripString(t *testing.T) {
	for _, s := range []string{"", "a", "ab", "abc", "/export/test", "hello world"} {
		buf := new(bytes.Buffer)
		require.NoError(t, PutString(buf, s))
		got, err := GetString(buf)
		require.NoError(t, err)
		assert.Equal(t, s, got)
	}
}

func TestRoundTripBool(t *testing.T) {
	for _, b := range []bool{true, false} {
		buf := new(bytes.Buffer)
		require.NoError(t, PutBool(buf, b))
		got, err := GetBool(buf)
		require.NoError(t, err)
		assert.Equal(t, b, got)
	}
}

func TestRoundTripUint64(t *testing.T) {
	buf := new(bytes.Buffer)
	require.NoError(t, PutUint64(buf, 0xDEADBEEFCAFEBABE))
	got, err := GetUint64(buf)
	require.NoError(t, err)
	assert.Equal(t, uint64(0xDEADBEEFCAFEBABE), got)
}

func TestGetUint32ArrayBound(t *testing.T) {
	buf := new(bytes.Buffer)
	require.NoError(t, PutUint32(buf, 17))
	_, err := GetUint32Array(buf, 16)
	require.Error(t, err)
	assert.True(t, IsGarbageArgs(err))
}

func TestRoundTripUint32Array(t *testing.T) {
	buf := new(bytes.Buffer)
	vals := []uint32{1, 2, 3, 4, 5}
	require.NoError(t, PutUint32Array(buf, vals))
	got, err := GetUint32Array(buf, 16)
	require.NoError(t, err)
	assert.Equal(t, vals, got)
}

func TestWriteXDRPaddingLengths(t *testing.T) {
	for _, tc := range []struct {
		length  uint32
		padding int
	}{
		{0, 0}, {1, 3}, {2, 2}, {3, 1}, {4, 0}, {5, 3}, {100, 0}, {101, 3},
	} {
		buf := new(bytes.Buffer)
		require.NoError(t, PutPadding(buf, tc.length))
		assert.Equal(t, tc.padding, buf.Len())
		for _, b := range buf.Bytes() {
			assert.Equal(t, byte(0), b)
		}
	}
}

func TestGarbageArgsOnUnknownBoundaryCase(t *testing.T) {
	// Length equal to remaining bytes decodes fine; one past it is GARBAGE_ARGS.
	buf := new(bytes.Buffer)
	require.NoError(t, PutUint32(buf, 4))
	buf.Write([]byte{1, 2, 3, 4})
	got, err := GetOpaque(bytes.NewReader(buf.Bytes()))
	require.NoError(t, err)
	assert.Equal(t, []byte{1, 2, 3, 4}, got)

	short := bytes.NewReader(buf.Bytes()[:len(buf.Bytes())-1])
	_, err = GetOpaque(short)
	require.Error(t, err)
	assert.True(t, IsGarbageArgs(err))
}
