package srr

import (
	"testing"
	"time"

	"golang.org/x/sys/unix"

	"github.com/behrlich/go-reactor"
	"github.com/behrlich/go-reactor/internal/buffer"
	"github.com/behrlich/go-reactor/internal/endpoint"
)

func TestTCPSyncSendRecvRoundTrip(t *testing.T) {
	cfd, sfd, cleanup, err := reactor.NewTCPLoopbackPair()
	if err != nil {
		t.Fatalf("NewTCPLoopbackPair: %v", err)
	}
	defer cleanup()

	if _, err := unix.Write(cfd, []byte("hello")); err != nil {
		t.Fatalf("write: %v", err)
	}
	time.Sleep(10 * time.Millisecond)

	e := New(nil, nil)
	buf := buffer.New(make([]byte, 5))
	req := &Request{
		Type:   OpRecv,
		Kind:   OpTypeTCP,
		Src:    endpoint.Socket{FD: sfd},
		Buffer: buf,
	}

	res := e.OperateSync(req)
	if res.Errno != 0 {
		t.Fatalf("unexpected errno: %d", res.Errno)
	}
	if res.BytesOperated != 5 {
		t.Fatalf("expected 5 bytes, got %d", res.BytesOperated)
	}
	if string(buf.Data()) != "hello" {
		t.Fatalf("unexpected payload: %q", buf.Data())
	}
}

func TestTCPSyncEmptyBufferCompletesImmediately(t *testing.T) {
	cfd, sfd, cleanup, err := reactor.NewTCPLoopbackPair()
	if err != nil {
		t.Fatalf("NewTCPLoopbackPair: %v", err)
	}
	defer cleanup()
	_ = cfd

	e := New(nil, nil)
	req := &Request{
		Type:   OpSend,
		Kind:   OpTypeTCP,
		Dst:    endpoint.Socket{FD: sfd},
		Buffer: buffer.New(nil),
	}

	res := e.OperateSync(req)
	if res.Errno != 0 || res.BytesOperated != 0 {
		t.Fatalf("expected a no-op success completion, got %+v", res)
	}
}

func TestTCPAsyncSendRecvRoundTrip(t *testing.T) {
	cfd, sfd, cleanup, err := reactor.NewTCPLoopbackPair()
	if err != nil {
		t.Fatalf("NewTCPLoopbackPair: %v", err)
	}
	defer cleanup()

	r, err := reactor.New(reactor.DefaultConfig())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer r.Close()

	e := New(r, nil)

	payload := []byte("partial-progress-payload")
	sendBuf := buffer.New(payload)
	done := make(chan Result, 1)

	sendReq := &Request{
		Type:   OpSend,
		Kind:   OpTypeTCP,
		Dst:    endpoint.Socket{FD: cfd},
		Buffer: sendBuf,
		Callback: func(res Result) {
			done <- res
		},
	}
	e.Operate(sendReq)

	runErr := make(chan error, 1)
	go func() { runErr <- r.Run() }()

	select {
	case res := <-done:
		if res.Errno != 0 {
			t.Errorf("unexpected send errno: %d", res.Errno)
		}
		if res.BytesOperated != len(payload) {
			t.Errorf("expected %d bytes sent, got %d", len(payload), res.BytesOperated)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for async send completion")
	}

	r.Stop(false)
	<-runErr

	readBack := make([]byte, len(payload))
	n, err := unix.Read(sfd, readBack)
	if err != nil || n != len(payload) {
		t.Fatalf("readback failed: n=%d err=%v", n, err)
	}
	if string(readBack) != string(payload) {
		t.Fatalf("unexpected readback payload: %q", readBack)
	}
}

func TestTCPBytesOperatedMonotonicAndBounded(t *testing.T) {
	cfd, sfd, cleanup, err := reactor.NewTCPLoopbackPair()
	if err != nil {
		t.Fatalf("NewTCPLoopbackPair: %v", err)
	}
	defer cleanup()

	payload := make([]byte, 4096)
	for i := range payload {
		payload[i] = byte(i)
	}
	go unix.Write(cfd, payload)
	time.Sleep(20 * time.Millisecond)

	e := New(nil, nil)
	buf := buffer.New(make([]byte, len(payload)))
	res := e.OperateSync(&Request{Type: OpRecv, Kind: OpTypeTCP, Src: endpoint.Socket{FD: sfd}, Buffer: buf})

	if res.BytesOperated < 0 {
		t.Fatalf("bytes_operated went negative: %d", res.BytesOperated)
	}
	if res.BytesOperated > buf.Size() {
		t.Fatalf("bytes_operated %d exceeds buffer size %d", res.BytesOperated, buf.Size())
	}
}
