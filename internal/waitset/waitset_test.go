package waitset

import (
	"testing"

	"golang.org/x/sys/unix"
)

func TestNewAndClose(t *testing.T) {
	ws, err := New(DefaultConfig())
	if err != nil {
		t.Fatalf("New() failed: %v", err)
	}
	if ws.NotifyFD() < 0 {
		t.Error("expected valid notify fd")
	}
	if err := ws.Close(); err != nil {
		t.Errorf("Close() failed: %v", err)
	}
}

func TestAddModifyDeleteAndWait(t *testing.T) {
	ws, err := New(DefaultConfig())
	if err != nil {
		t.Fatalf("New() failed: %v", err)
	}
	defer ws.Close()

	fds, err := socketpair()
	if err != nil {
		t.Fatalf("socketpair: %v", err)
	}
	defer unix.Close(fds[0])
	defer unix.Close(fds[1])

	if err := ws.Add(fds[0], Readable); err != nil {
		t.Fatalf("Add() failed: %v", err)
	}

	if _, err := unix.Write(fds[1], []byte("hi")); err != nil {
		t.Fatalf("write: %v", err)
	}

	ev, err := ws.Wait()
	if err != nil {
		t.Fatalf("Wait() failed: %v", err)
	}
	if ev.FD != fds[0] {
		t.Errorf("expected event on fd %d, got %d", fds[0], ev.FD)
	}
	if ev.Events&Readable == 0 {
		t.Error("expected Readable flag set")
	}

	if err := ws.Modify(fds[0], Writable); err != nil {
		t.Fatalf("Modify() failed: %v", err)
	}

	if err := ws.Delete(fds[0]); err != nil {
		t.Fatalf("Delete() failed: %v", err)
	}
}

func TestNotifyWakesWait(t *testing.T) {
	ws, err := New(DefaultConfig())
	if err != nil {
		t.Fatalf("New() failed: %v", err)
	}
	defer ws.Close()

	if err := ws.Notify(); err != nil {
		t.Fatalf("Notify() failed: %v", err)
	}

	ev, err := ws.Wait()
	if err != nil {
		t.Fatalf("Wait() failed: %v", err)
	}
	if ev.FD != ws.NotifyFD() {
		t.Errorf("expected wakeup on notify fd %d, got %d", ws.NotifyFD(), ev.FD)
	}

	if _, err := ws.DrainNotifications(); err != nil {
		t.Fatalf("DrainNotifications() failed: %v", err)
	}
}

func socketpair() ([2]int, error) {
	return unix.Socketpair(unix.AF_UNIX, unix.SOCK_STREAM, 0)
}
