package srr

import (
	"golang.org/x/sys/unix"

	"github.com/behrlich/go-reactor"
	"github.com/behrlich/go-reactor/internal/endpoint"
)

// tcpSocketAndEndpoint picks the relevant connected socket/endpoint pair for
// a TCP request: the destination for a send, the source for a receive —
// mirroring tcp_send_recv_sync_no_cb's ep_skt_ptr selection.
func tcpSocketAndEndpoint(req *Request) endpoint.Socket {
	if req.Type == OpSend {
		return req.Dst
	}
	return req.Src
}

func tcpIoctlRequest(op Op) int {
	if op == OpSend {
		return unix.SIOCOUTQ
	}
	return unix.SIOCINQ
}

// tcpSync loops sendmsg/recvmsg until the buffer drains or a syscall fails,
// grounded on tcp_send_recv_sync_no_cb.
func tcpSync(req *Request) Result {
	skt := tcpSocketAndEndpoint(req)
	buf := req.Buffer

	bytesOp := 0
	toOp := buf.Size() - req.BytesOperated
	var lastErr error

	for bytesOp < toOp {
		window := buf.Remaining(req.BytesOperated + bytesOp)
		n, err := tcpOperate(req.Type, skt.FD, window, unix.MSG_NOSIGNAL)
		if n < 0 {
			lastErr = err
			break
		}
		if n == 0 {
			// Peer half-closed (or a zero-length window): no further
			// progress is possible, so stop draining instead of spinning.
			break
		}
		bytesOp += n
	}

	req.BytesOperated += bytesOp

	moreBytes, _ := unix.IoctlGetInt(skt.FD, tcpIoctlRequest(req.Type))

	return Result{
		Endpoint:      skt.Endpoint,
		Errno:         errnoOf(lastErr),
		BytesOperated: req.BytesOperated,
		HasMoreBytes:  moreBytes,
		Buffer:        buf,
		Ctx:           req.Ctx,
	}
}

// tcpOperate performs one sendmsg/recvmsg call over the given window,
// returning a negative n on any failure (matching the C oper() contract
// where a negative ssize_t return signals failure, with errno set).
func tcpOperate(op Op, fd int, window []byte, flags int) (int, error) {
	if op == OpSend {
		n, err := unix.SendmsgN(fd, window, nil, nil, flags)
		if err != nil {
			return -1, err
		}
		return n, nil
	}
	n, _, _, _, err := unix.Recvmsg(fd, window, nil, flags)
	if err != nil {
		return -1, err
	}
	return n, nil
}

// tcpAsyncJob is the reactor callback posted for a TCP SEND/RECV request:
// one non-blocking syscall per fire, re-posting itself on partial progress
// or would-block, grounded on tcp_send_recv_async_tpl.
type tcpAsyncJob struct {
	e   *Engine
	req *Request
}

func (e *Engine) tcpAsync(req *Request) {
	skt := tcpSocketAndEndpoint(req)
	dir := tcpDirection(req.Type)
	job := &tcpAsyncJob{e: e, req: req}
	e.r.Post(skt.FD, dir, true, job.fire, nil)
}

func tcpDirection(op Op) reactor.Direction {
	if op == OpSend {
		return reactor.DirWrite
	}
	return reactor.DirRead
}

func (j *tcpAsyncJob) fire(fd int, dir reactor.Direction, ctx any) {
	req := j.req
	skt := tcpSocketAndEndpoint(req)
	window := req.Buffer.Remaining(req.BytesOperated)

	n, err := tcpOperate(req.Type, fd, window, unix.MSG_NOSIGNAL|unix.MSG_DONTWAIT)
	if n < 0 {
		if isWouldBlock(err) {
			j.e.r.Post(fd, dir, true, j.fire, nil)
			return
		}
		j.finish(errnoOf(err), 0)
		return
	}

	req.BytesOperated += n
	if req.BytesOperated < req.Buffer.Size() {
		j.e.r.Post(fd, dir, true, j.fire, nil)
		return
	}

	moreBytes, _ := unix.IoctlGetInt(skt.FD, tcpIoctlRequest(req.Type))
	j.finish(0, moreBytes)
}

func (j *tcpAsyncJob) finish(errno int, hasMoreBytes int) {
	req := j.req
	skt := tcpSocketAndEndpoint(req)
	res := Result{
		Endpoint:      skt.Endpoint,
		Errno:         errno,
		BytesOperated: req.BytesOperated,
		HasMoreBytes:  hasMoreBytes,
		Buffer:        req.Buffer,
		Ctx:           req.Ctx,
	}
	var op reactor.SRROp
	if req.Type == OpSend {
		op = reactor.SRROpSend
	} else {
		op = reactor.SRROpRecv
	}
	j.e.observer.ObserveSRRComplete(op, uint64(req.BytesOperated), 0, res.Success())
	if req.Callback != nil {
		req.Callback(res)
	}
}

func isWouldBlock(err error) bool {
	return err == unix.EAGAIN || err == unix.EWOULDBLOCK
}

func errnoOf(err error) int {
	if err == nil {
		return 0
	}
	if errno, ok := err.(unix.Errno); ok {
		return int(errno)
	}
	return int(unix.EIO)
}
