package rpc

import (
	"encoding/binary"
	"fmt"
	"io"
)

// MaxFragmentSize bounds a single RPC record-marking fragment. It must be
// comfortably larger than the largest NFS READ/WRITE payload this server
// advertises (1 MiB) to leave room for RPC and NFS envelope overhead.
const MaxFragmentSize = (1 << 20) + (1 << 18)

// MaxDatagramSize is the largest UDP datagram the framer accepts: 65535
// bytes, the ceiling of the UDP length field.
const MaxDatagramSize = 65535

// MinCallSize is the minimum number of bytes a well-formed CALL header can
// occupy: xid, msg_type, rpcvers, prog, vers, proc, two empty OpaqueAuth
// (flavor+len each) = 10*4 bytes.
const MinCallSize = 40

// fragmentHeader is the 4-byte record-marking header: the high bit marks
// the last fragment of a record, the low 31 bits give its length.
type fragmentHeader struct {
	Last   bool
	Length uint32
}

func readFragmentHeader(r io.Reader) (fragmentHeader, error) {
	var b [4]byte
	if _, err := io.ReadFull(r, b[:]); err != nil {
		return fragmentHeader{}, err
	}
	v := binary.BigEndian.Uint32(b[:])
	return fragmentHeader{Last: v&0x80000000 != 0, Length: v & 0x7fffffff}, nil
}

func writeFragmentHeader(w io.Writer, length uint32, last bool) error {
	v := length & 0x7fffffff
	if last {
		v |= 0x80000000
	}
	var b [4]byte
	binary.BigEndian.PutUint32(b[:], v)
	_, err := w.Write(b[:])
	return err
}

// ReadStreamRecord reads one complete RPC record from a stream transport,
// concatenating fragments until the last-fragment bit is observed. It
// returns io.EOF (unwrapped) when the peer has closed the connection before
// any fragment header was read, so callers can distinguish a clean
// disconnect from a framing error.
func ReadStreamRecord(r io.Reader) ([]byte, error) {
	var record []byte
	for {
		hdr, err := readFragmentHeader(r)
		if err != nil {
			if len(record) == 0 {
				return nil, err
			}
			return nil, fmt.Errorf("rpc: read fragment header: %w", err)
		}
		if hdr.Length > MaxFragmentSize {
			return nil, fmt.Errorf("rpc: fragment length %d exceeds maximum %d", hdr.Length, MaxFragmentSize)
		}
		frag := make([]byte, hdr.Length)
		if hdr.Length > 0 {
			if _, err := io.ReadFull(r, frag); err != nil {
				return nil, fmt.Errorf("rpc: read fragment body: %w", err)
			}
		}
		record = append(record, frag...)
		if hdr.Last {
			return record, nil
		}
	}
}

// WriteStreamRecord writes body as a single-fragment RPC record, which is
// the common case: the server never needs to split a reply across
// fragments at the sizes it produces.
func WriteStreamRecord(w io.Writer, body []byte) error {
	if err := writeFragmentHeader(w, uint32(len(body)), true); err != nil {
		return err
	}
	_, err := w.Write(body)
	return err
}

// ValidateDatagram enforces the UDP size bounds of RFC 1122: a datagram
// larger than MaxDatagramSize or smaller than the minimum CALL header is
// rejected without decoding.
func ValidateDatagram(n int) error {
	if n > MaxDatagramSize {
		return fmt.Errorf("rpc: datagram too large: %d bytes", n)
	}
	if n < MinCallSize {
		return fmt.Errorf("rpc: datagram too small: %d bytes", n)
	}
	return nil
}
