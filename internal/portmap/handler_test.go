package portmap

import (
	"bytes"
	"testing"

	"github.com/blburns/simple-nfsd-sub001/internal/xdr"
)

func encodeMapping(m Mapping) []byte {
	buf := new(bytes.Buffer)
	_ = xdr.PutUint32(buf, m.Prog)
	_ = xdr.PutUint32(buf, m.Vers)
	_ = xdr.PutUint32(buf, m.Prot)
	_ = xdr.PutUint32(buf, m.Port)
	return buf.Bytes()
}

func TestDispatchNull(t *testing.T) {
	h := NewHandler(NewRegistry(0))
	reply, ok, err := h.Dispatch(ProcNull, nil, "127.0.0.1:700")
	if err != nil || !ok || len(reply) != 0 {
		t.Fatalf("NULL reply = %v, %v, %v", reply, ok, err)
	}
}

func TestDispatchSetThenGetport(t *testing.T) {
	h := NewHandler(NewRegistry(0))
	args := encodeMapping(Mapping{Prog: 100003, Vers: 3, Prot: ProtoTCP, Port: 2049})

	reply, ok, err := h.Dispatch(ProcSet, args, "127.0.0.1:700")
	if err != nil || !ok {
		t.Fatalf("SET dispatch failed: ok=%v err=%v", ok, err)
	}
	success, err := xdr.GetBool(bytes.NewReader(reply))
	if err != nil || !success {
		t.Fatalf("SET should report success, got %v %v", success, err)
	}

	reply, ok, err = h.Dispatch(ProcGetport, args, "127.0.0.1:700")
	if err != nil || !ok {
		t.Fatalf("GETPORT dispatch failed: ok=%v err=%v", ok, err)
	}
	port, err := xdr.GetUint32(bytes.NewReader(reply))
	if err != nil || port != 2049 {
		t.Fatalf("GETPORT = %d, %v, want 2049", port, err)
	}
}

func TestDispatchUnset(t *testing.T) {
	h := NewHandler(NewRegistry(0))
	args := encodeMapping(Mapping{Prog: 100003, Vers: 3, Prot: ProtoTCP, Port: 2049})
	h.Dispatch(ProcSet, args, "127.0.0.1:700")

	reply, _, err := h.Dispatch(ProcUnset, args, "127.0.0.1:700")
	if err != nil {
		t.Fatalf("UNSET dispatch error: %v", err)
	}
	ok, _ := xdr.GetBool(bytes.NewReader(reply))
	if !ok {
		t.Fatal("UNSET should report removal")
	}
	if h.Registry.Getport(100003, 3, ProtoTCP) != 0 {
		t.Fatal("mapping should be gone after UNSET")
	}
}

func TestDispatchDumpTerminator(t *testing.T) {
	h := NewHandler(NewRegistry(0))
	reply, ok, err := h.Dispatch(ProcDump, nil, "127.0.0.1:700")
	if err != nil || !ok {
		t.Fatalf("DUMP dispatch failed: %v %v", ok, err)
	}
	if len(reply) != 4 {
		t.Fatalf("empty DUMP reply should be exactly the 4-byte terminator, got %d bytes", len(reply))
	}
	term, _ := xdr.GetUint32(bytes.NewReader(reply))
	if term != 0 {
		t.Errorf("terminator = %d, want 0", term)
	}
}

func TestDispatchCallitRepliesZeroPort(t *testing.T) {
	h := NewHandler(NewRegistry(0))
	buf := new(bytes.Buffer)
	_ = xdr.PutUint32(buf, 100003)
	_ = xdr.PutUint32(buf, 3)
	_ = xdr.PutUint32(buf, 1)
	_ = xdr.PutOpaque(buf, nil)

	reply, ok, err := h.Dispatch(ProcCallit, buf.Bytes(), "127.0.0.1:700")
	if err != nil || !ok {
		t.Fatalf("CALLIT dispatch failed: %v %v", ok, err)
	}
	port, err := xdr.GetUint32(bytes.NewReader(reply))
	if err != nil || port != 0 {
		t.Fatalf("CALLIT port = %d, %v, want 0 (not forwarded)", port, err)
	}
}

func TestDispatchUnknownProc(t *testing.T) {
	h := NewHandler(NewRegistry(0))
	_, ok, _ := h.Dispatch(99, nil, "127.0.0.1:700")
	if ok {
		t.Fatal("unknown procedure should report ok=false")
	}
}
