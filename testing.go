package reactor

import (
	"sync"

	"golang.org/x/sys/unix"
)

// MockJob is a JobFunc wrapper that records every invocation for assertions
// in reactor tests. It is useful for testing Post/Remove/Run plumbing without
// needing a live socket on the other end.
type MockJob struct {
	mu    sync.Mutex
	calls []MockJobCall
}

// MockJobCall captures the arguments of a single JobFunc invocation.
type MockJobCall struct {
	FD  int
	Dir Direction
	Ctx any
}

// NewMockJob creates a MockJob with no recorded calls.
func NewMockJob() *MockJob {
	return &MockJob{}
}

// Func returns the JobFunc to hand to Reactor.Post.
func (m *MockJob) Func() JobFunc {
	return func(fd int, dir Direction, ctx any) {
		m.mu.Lock()
		defer m.mu.Unlock()
		m.calls = append(m.calls, MockJobCall{FD: fd, Dir: dir, Ctx: ctx})
	}
}

// Calls returns a snapshot of every recorded invocation, in order.
func (m *MockJob) Calls() []MockJobCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]MockJobCall, len(m.calls))
	copy(out, m.calls)
	return out
}

// CallCount returns the number of times the job has fired.
func (m *MockJob) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.calls)
}

// Reset clears all recorded calls.
func (m *MockJob) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = nil
}

// NewTCPLoopbackPair creates a connected pair of non-blocking TCP sockets on
// the loopback interface using raw syscalls (no net.Conn involved, so the fds
// are free of the runtime network poller and safe to hand to a WaitSet).
// It returns (clientFD, serverFD, cleanup, error).
func NewTCPLoopbackPair() (int, int, func(), error) {
	lfd, err := unix.Socket(unix.AF_INET, unix.SOCK_STREAM, 0)
	if err != nil {
		return 0, 0, nil, err
	}
	defer unix.Close(lfd)

	if err := unix.Bind(lfd, &unix.SockaddrInet4{Port: 0, Addr: [4]byte{127, 0, 0, 1}}); err != nil {
		return 0, 0, nil, err
	}
	if err := unix.Listen(lfd, 1); err != nil {
		return 0, 0, nil, err
	}

	sa, err := unix.Getsockname(lfd)
	if err != nil {
		return 0, 0, nil, err
	}
	addr, ok := sa.(*unix.SockaddrInet4)
	if !ok {
		return 0, 0, nil, NewError("loopback_pair", ErrCodeInvalidArgs, "unexpected sockaddr type")
	}

	cfd, err := unix.Socket(unix.AF_INET, unix.SOCK_STREAM, 0)
	if err != nil {
		return 0, 0, nil, err
	}

	if err := unix.Connect(cfd, &unix.SockaddrInet4{Port: addr.Port, Addr: [4]byte{127, 0, 0, 1}}); err != nil {
		unix.Close(cfd)
		return 0, 0, nil, err
	}

	sfd, _, err := unix.Accept(lfd)
	if err != nil {
		unix.Close(cfd)
		return 0, 0, nil, err
	}

	if err := unix.SetNonblock(cfd, true); err != nil {
		unix.Close(cfd)
		unix.Close(sfd)
		return 0, 0, nil, err
	}
	if err := unix.SetNonblock(sfd, true); err != nil {
		unix.Close(cfd)
		unix.Close(sfd)
		return 0, 0, nil, err
	}

	cleanup := func() {
		unix.Close(cfd)
		unix.Close(sfd)
	}

	return cfd, sfd, cleanup, nil
}

// NewUDPPair creates two non-blocking UDP sockets bound to ephemeral ports on
// the loopback interface. Unlike NewTCPLoopbackPair they are not connect()ed,
// matching the SRR UDP path which always addresses datagrams explicitly.
// It returns (fd1, addr1, fd2, addr2, cleanup, error).
func NewUDPPair() (int, *unix.SockaddrInet4, int, *unix.SockaddrInet4, func(), error) {
	fd1, addr1, err := newBoundUDPSocket()
	if err != nil {
		return 0, nil, 0, nil, nil, err
	}

	fd2, addr2, err := newBoundUDPSocket()
	if err != nil {
		unix.Close(fd1)
		return 0, nil, 0, nil, nil, err
	}

	cleanup := func() {
		unix.Close(fd1)
		unix.Close(fd2)
	}

	return fd1, addr1, fd2, addr2, cleanup, nil
}

func newBoundUDPSocket() (int, *unix.SockaddrInet4, error) {
	fd, err := unix.Socket(unix.AF_INET, unix.SOCK_DGRAM, 0)
	if err != nil {
		return 0, nil, err
	}

	if err := unix.Bind(fd, &unix.SockaddrInet4{Port: 0, Addr: [4]byte{127, 0, 0, 1}}); err != nil {
		unix.Close(fd)
		return 0, nil, err
	}

	sa, err := unix.Getsockname(fd)
	if err != nil {
		unix.Close(fd)
		return 0, nil, err
	}
	addr, ok := sa.(*unix.SockaddrInet4)
	if !ok {
		unix.Close(fd)
		return 0, nil, NewError("udp_pair", ErrCodeInvalidArgs, "unexpected sockaddr type")
	}

	if err := unix.SetNonblock(fd, true); err != nil {
		unix.Close(fd)
		return 0, nil, err
	}

	return fd, addr, nil
}
