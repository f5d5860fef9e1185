// Package xdr implements the subset of RFC 4506 External Data Representation
// used by the RPC framer and the NFS procedure encoders: big-endian fixed
// width integers, booleans, variable-length opaque byte strings, strings,
// and the padding rules that keep every field on a 4-byte boundary.
//
// Decoders read from an io.Reader (normally a *bytes.Reader positioned over
// one already-framed RPC record) and return GarbageArgsError when the wire
// data cannot satisfy the shape being decoded. Callers translate that into
// an RPC GARBAGE_ARGS reply; they must never panic on client input.
package xdr

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
)

// MaxOpaqueLen bounds any single variable-length opaque or string decoded
// from the wire, defending against length-bomb inputs.
const MaxOpaqueLen = 16 * 1024 * 1024

// GarbageArgsError marks a decode failure that must be surfaced to the
// client as MSG_ACCEPTED/GARBAGE_ARGS rather than closing the connection.
type GarbageArgsError struct {
	Reason string
}

func (e *GarbageArgsError) Error() string { return "xdr: garbage args: " + e.Reason }

func garbage(format string, args ...any) error {
	return &GarbageArgsError{Reason: fmt.Sprintf(format, args...)}
}

// IsGarbageArgs reports whether err (or a wrapped cause) is a GarbageArgsError.
func IsGarbageArgs(err error) bool {
	var g *GarbageArgsError
	return errors.As(err, &g)
}

// padLen returns the number of zero bytes required to bring n up to the next
// multiple of 4.
func padLen(n uint32) int {
	if r := n % 4; r != 0 {
		return int(4 - r)
	}
	return 0
}

// ---------------------------------------------------------------------------
// Encoding
// ---------------------------------------------------------------------------

// PutUint32 appends a big-endian u32.
func PutUint32(w io.Writer, v uint32) error {
	var b [4]byte
	binary.BigEndian.PutUint32(b[:], v)
	_, err := w.Write(b[:])
	return err
}

// PutUint64 appends a big-endian u64.
func PutUint64(w io.Writer, v uint64) error {
	var b [8]byte
	binary.BigEndian.PutUint64(b[:], v)
	_, err := w.Write(b[:])
	return err
}

// PutInt32 appends a big-endian signed 32-bit integer.
func PutInt32(w io.Writer, v int32) error { return PutUint32(w, uint32(v)) }

// PutInt64 appends a big-endian signed 64-bit integer.
func PutInt64(w io.Writer, v int64) error { return PutUint64(w, uint64(v)) }

// PutBool appends an XDR boolean: a 4-byte 0 or 1.
func PutBool(w io.Writer, v bool) error {
	if v {
		return PutUint32(w, 1)
	}
	return PutUint32(w, 0)
}

// PutPadding writes the zero bytes needed to align n onto a 4-byte boundary.
func PutPadding(w io.Writer, n uint32) error {
	if p := padLen(n); p > 0 {
		var zero [3]byte
		_, err := w.Write(zero[:p])
		return err
	}
	return nil
}

// PutOpaque writes a variable-length opaque: length prefix, bytes, padding.
func PutOpaque(w io.Writer, data []byte) error {
	if err := PutUint32(w, uint32(len(data))); err != nil {
		return err
	}
	if len(data) > 0 {
		if _, err := w.Write(data); err != nil {
			return err
		}
	}
	return PutPadding(w, uint32(len(data)))
}

// PutFixedOpaque writes data verbatim (already a fixed-width field) followed
// by padding to 4 bytes. No length prefix is written.
func PutFixedOpaque(w io.Writer, data []byte) error {
	if _, err := w.Write(data); err != nil {
		return err
	}
	return PutPadding(w, uint32(len(data)))
}

// PutString writes a UTF-8 string as a variable-length opaque.
func PutString(w io.Writer, s string) error {
	return PutOpaque(w, []byte(s))
}

// PutOptionalOpaque writes the boolean-discriminated optional-opaque form
// used by NFSv3 post_op style fields: a 0/1 discriminant, and when present,
// the length-prefixed, padded bytes.
func PutOptionalOpaque(w io.Writer, data []byte) error {
	if len(data) == 0 {
		return PutBool(w, false)
	}
	if err := PutBool(w, true); err != nil {
		return err
	}
	return PutOpaque(w, data)
}

// ---------------------------------------------------------------------------
// Decoding
// ---------------------------------------------------------------------------

// GetUint32 reads a big-endian u32, returning GarbageArgsError on short reads.
func GetUint32(r io.Reader) (uint32, error) {
	var b [4]byte
	if _, err := io.ReadFull(r, b[:]); err != nil {
		return 0, garbage("truncated uint32: %v", err)
	}
	return binary.BigEndian.Uint32(b[:]), nil
}

// GetUint64 reads a big-endian u64.
func GetUint64(r io.Reader) (uint64, error) {
	var b [8]byte
	if _, err := io.ReadFull(r, b[:]); err != nil {
		return 0, garbage("truncated uint64: %v", err)
	}
	return binary.BigEndian.Uint64(b[:]), nil
}

// GetInt32 reads a signed 32-bit big-endian integer.
func GetInt32(r io.Reader) (int32, error) {
	v, err := GetUint32(r)
	return int32(v), err
}

// GetInt64 reads a signed 64-bit big-endian integer.
func GetInt64(r io.Reader) (int64, error) {
	v, err := GetUint64(r)
	return int64(v), err
}

// GetBool reads an XDR boolean. Any nonzero value decodes true, matching
// common server leniency; the wire always emits exactly 0 or 1.
func GetBool(r io.Reader) (bool, error) {
	v, err := GetUint32(r)
	if err != nil {
		return false, err
	}
	return v != 0, nil
}

// SkipPadding consumes the padding bytes that follow a field of length n.
func SkipPadding(r io.Reader, n uint32) error {
	p := padLen(n)
	if p == 0 {
		return nil
	}
	var buf [3]byte
	if _, err := io.ReadFull(r, buf[:p]); err != nil {
		return garbage("truncated padding: %v", err)
	}
	return nil
}

// GetOpaque reads a length-prefixed opaque and its padding, enforcing
// MaxOpaqueLen.
func GetOpaque(r io.Reader) ([]byte, error) {
	n, err := GetUint32(r)
	if err != nil {
		return nil, err
	}
	if n > MaxOpaqueLen {
		return nil, garbage("opaque length %d exceeds maximum %d", n, MaxOpaqueLen)
	}
	data := make([]byte, n)
	if n > 0 {
		if _, err := io.ReadFull(r, data); err != nil {
			return nil, garbage("truncated opaque body: %v", err)
		}
	}
	if err := SkipPadding(r, n); err != nil {
		return nil, err
	}
	return data, nil
}

// GetFixedOpaque reads exactly n bytes (a fixed-width field, no length
// prefix) followed by its padding.
func GetFixedOpaque(r io.Reader, n uint32) ([]byte, error) {
	if n > MaxOpaqueLen {
		return nil, garbage("fixed opaque length %d exceeds maximum %d", n, MaxOpaqueLen)
	}
	data := make([]byte, n)
	if n > 0 {
		if _, err := io.ReadFull(r, data); err != nil {
			return nil, garbage("truncated fixed opaque: %v", err)
		}
	}
	if err := SkipPadding(r, n); err != nil {
		return nil, err
	}
	return data, nil
}

// GetString reads a variable-length opaque and returns it as a string.
func GetString(r io.Reader) (string, error) {
	data, err := GetOpaque(r)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// GetOptionalOpaque reads the boolean-discriminated optional-opaque form; it
// returns nil, false when the discriminant is absent.
func GetOptionalOpaque(r io.Reader) ([]byte, bool, error) {
	present, err := GetBool(r)
	if err != nil {
		return nil, false, err
	}
	if !present {
		return nil, false, nil
	}
	data, err := GetOpaque(r)
	if err != nil {
		return nil, false, err
	}
	return data, true, nil
}

// GetUint32Array reads a length-prefixed array of u32 values, bounded by max
// to defend against length-bomb inputs (e.g. AUTH_SYS gids, capped at 16).
func GetUint32Array(r io.Reader, max uint32) ([]uint32, error) {
	n, err := GetUint32(r)
	if err != nil {
		return nil, err
	}
	if n > max {
		return nil, garbage("array length %d exceeds maximum %d", n, max)
	}
	out := make([]uint32, n)
	for i := range out {
		v, err := GetUint32(r)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

// PutUint32Array writes a length-prefixed array of u32 values.
func PutUint32Array(w io.Writer, vals []uint32) error {
	if err := PutUint32(w, uint32(len(vals))); err != nil {
		return err
	}
	for _, v := range vals {
		if err := PutUint32(w, v); err != nil {
			return err
		}
	}
	return nil
}
