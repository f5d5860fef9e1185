package common

import (
	"bytes"
	"testing"
	"time"

	"github.com/blburns/simple-nfsd-sub001/internal/vfs"
	"github.com/blburns/simple-nfsd-sub001/internal/xdr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPutFattr3EncodesFixedSize(t *testing.T) {
	a := vfs.Attr{
		Type: vfs.TypeRegular, Mode: 0644, Nlink: 1, UID: 1000, GID: 1000,
		Size: 12, Used: 4096, Fsid: 1, Fileid: 42,
		Atime: time.Unix(1000, 0), Mtime: time.Unix(2000, 0), Ctime: time.Unix(3000, 0),
	}
	buf := &bytes.Buffer{}
	require.NoError(t, PutFattr3(buf, a))
	// 5 u32 fields + 5 u64 fields + 3 nfstime3 (2 u32 each): 5*4 + 5*8 + 3*8 = 84.
	assert.Equal(t, 84, buf.Len())

	r := bytes.NewReader(buf.Bytes())
	typ, err := xdr.GetUint32(r)
	require.NoError(t, err)
	assert.Equal(t, uint32(NF3Reg), typ)
}

func TestPutPostOpAttrAbsent(t *testing.T) {
	buf := &bytes.Buffer{}
	require.NoError(t, PutPostOpAttr(buf, nil))
	r := bytes.NewReader(buf.Bytes())
	present, err := xdr.GetBool(r)
	require.NoError(t, err)
	assert.False(t, present)
}

func TestPutWCCDataBothPresent(t *testing.T) {
	a := vfs.Attr{Size: 10, Mtime: time.Unix(1, 0), Ctime: time.Unix(2, 0)}
	buf := &bytes.Buffer{}
	pre := WCCFromAttr(a)
	require.NoError(t, PutWCCData(buf, pre, &a))

	r := bytes.NewReader(buf.Bytes())
	present, err := xdr.GetBool(r)
	require.NoError(t, err)
	assert.True(t, present)
}
