package gss

import (
	"testing"
	"time"

	"github.com/jcmturner/gokrb5/v8/keytab"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestKeytab(t *testing.T) *keytab.Keytab {
	t.Helper()
	kt := keytab.New()
	require.NoError(t, kt.AddEntry("nfs/server.example.com", "EXAMPLE.COM", "test-password", time.Now(), 1, 17))
	return kt
}

func TestVerifyTokenRejectsEmptyToken(t *testing.T) {
	p := &Provider{Keytab: newTestKeytab(t)}
	err := p.VerifyToken(nil)
	assert.Error(t, err)
}

func TestVerifyTokenRejectsGarbageToken(t *testing.T) {
	p := &Provider{Keytab: newTestKeytab(t)}
	err := p.VerifyToken([]byte{0x01, 0x02, 0x03})
	assert.Error(t, err)
}

func TestVerifyTokenNeverSucceedsWithoutKeytab(t *testing.T) {
	p := &Provider{}
	err := p.VerifyToken([]byte{0x01, 0x02, 0x03})
	assert.Error(t, err)
}

func TestExtractAPReqPassesThroughBareAPReq(t *testing.T) {
	// A token not wrapped in the 0x60 GSS tag is treated as a bare AP-REQ
	// body and passed through unchanged.
	body := []byte{0x6e, 0x00}
	got, err := extractAPReq(body)
	require.NoError(t, err)
	assert.Equal(t, body, got)
}

func TestExtractAPReqRejectsEmptyToken(t *testing.T) {
	_, err := extractAPReq(nil)
	assert.Error(t, err)
}

func TestExtractAPReqRejectsMissingMechOID(t *testing.T) {
	// A 0x60-tagged wrapper with a short length but no Kerberos OID inside.
	token := []byte{0x60, 0x02, 0xaa, 0xbb}
	_, err := extractAPReq(token)
	assert.Error(t, err)
}
