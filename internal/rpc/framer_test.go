package rpc

import (
	"bytes"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriteReadStreamRecordRoundTrip(t *testing.T) {
	body := []byte("hello nfs")
	buf := new(bytes.Buffer)
	require.NoError(t, WriteStreamRecord(buf, body))

	got, err := ReadStreamRecord(buf)
	require.NoError(t, err)
	assert.Equal(t, body, got)
}

func TestReadStreamRecordMultiFragment(t *testing.T) {
	buf := new(bytes.Buffer)
	require.NoError(t, writeFragmentHeader(buf, 3, false))
	buf.Write([]byte{1, 2, 3})
	require.NoError(t, writeFragmentHeader(buf, 2, true))
	buf.Write([]byte{4, 5})

	got, err := ReadStreamRecord(buf)
	require.NoError(t, err)
	assert.Equal(t, []byte{1, 2, 3, 4, 5}, got)
}

func TestReadStreamRecordCleanEOF(t *testing.T) {
	_, err := ReadStreamRecord(bytes.NewReader(nil))
	assert.ErrorIs(t, err, io.EOF)
}

func TestReadStreamRecordOversizedFragment(t *testing.T) {
	buf := new(bytes.Buffer)
	require.NoError(t, writeFragmentHeader(buf, MaxFragmentSize+1, true))
	_, err := ReadStreamRecord(buf)
	require.Error(t, err)
}

func TestValidateDatagramBounds(t *testing.T) {
	assert.NoError(t, ValidateDatagram(MinCallSize))
	assert.Error(t, ValidateDatagram(MinCallSize-1))
	assert.NoError(t, ValidateDatagram(MaxDatagramSize))
	assert.Error(t, ValidateDatagram(MaxDatagramSize+1))
}
