// Package gss implements RPCSEC_GSS token decoding on top of
// github.com/jcmturner/gokrb5: it strips the GSS-API initial context token
// wrapper and parses the enclosed Kerberos AP-REQ, but verification always
// fails unless a keytab has been configured, matching a conservative
// decode-and-reject gate.
package gss

import (
	"fmt"

	"github.com/jcmturner/gokrb5/v8/keytab"
	"github.com/jcmturner/gokrb5/v8/messages"
)

// krb5OID is the DER-encoded Kerberos 5 mechanism OID prefix that precedes
// an AP-REQ inside a GSS-API initial context token (RFC 2743 §3.1).
var krb5OID = []byte{0x06, 0x09, 0x2a, 0x86, 0x48, 0x86, 0xf7, 0x12, 0x01, 0x02, 0x02}

// Provider supplies the keytab used to verify AP-REQ tokens. A nil Keytab
// means the server has no Kerberos identity configured, so every token is
// structurally parsed but never accepted.
type Provider struct {
	Keytab *keytab.Keytab
}

// extractAPReq strips the optional 0x60-tagged GSS wrapper and the
// Kerberos mechanism OID, returning the raw AP-REQ bytes.
func extractAPReq(token []byte) ([]byte, error) {
	if len(token) == 0 {
		return nil, fmt.Errorf("empty GSS token")
	}
	if token[0] != 0x60 {
		// Already a bare AP-REQ.
		return token, nil
	}
	// Skip the outer tag+length; find the OID prefix and step past it.
	body := token[1:]
	// A minimal, defensive length-decode: only support short and
	// single-byte long form, sufficient for the sizes AP-REQ tokens take.
	if len(body) == 0 {
		return nil, fmt.Errorf("truncated GSS token")
	}
	n := int(body[0])
	var rest []byte
	if n < 0x80 {
		rest = body[1:]
	} else {
		nbytes := n & 0x7f
		if len(body) < 1+nbytes {
			return nil, fmt.Errorf("truncated GSS token length")
		}
		rest = body[1+nbytes:]
	}
	idx := indexOf(rest, krb5OID)
	if idx < 0 {
		return nil, fmt.Errorf("GSS token missing Kerberos mechanism OID")
	}
	return rest[idx+len(krb5OID):], nil
}

func indexOf(haystack, needle []byte) int {
	if len(needle) == 0 || len(haystack) < len(needle) {
		return -1
	}
	for i := 0; i+len(needle) <= len(haystack); i++ {
		match := true
		for j := range needle {
			if haystack[i+j] != needle[j] {
				match = false
				break
			}
		}
		if match {
			return i
		}
	}
	return -1
}

// VerifyToken decodes the GSS token into a Kerberos AP-REQ and reports
// whether the structural decode succeeded. It never returns success: full
// ticket verification requires a configured keytab and realm, which the
// stateless core does not carry ("decode and reject until crypto
// is wired").
func (p *Provider) VerifyToken(token []byte) error {
	apReqBytes, err := extractAPReq(token)
	if err != nil {
		return fmt.Errorf("extract AP-REQ: %w", err)
	}
	var apReq messages.APReq
	if err := apReq.Unmarshal(apReqBytes); err != nil {
		return fmt.Errorf("unmarshal AP-REQ: %w", err)
	}
	if p.Keytab == nil {
		return fmt.Errorf("no keytab configured: AP-REQ decoded but not verified")
	}
	// A real implementation calls gokrb5/service.VerifyAPREQ here. Without
	// a realm/keytab wired to an actual KDC-issued ticket this server can
	// never produce a trustworthy identity, so it stops short of that call.
	return fmt.Errorf("RPCSEC_GSS ticket verification not implemented")
}
