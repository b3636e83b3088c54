package srr

import (
	"golang.org/x/sys/unix"

	"github.com/behrlich/go-reactor"
	"github.com/behrlich/go-reactor/internal/endpoint"
)

// udpSendSync loops sendmsg against req.Dst until the whole buffer is
// reported sent or a syscall fails, grounded on udp_send_sync_no_cb.
func udpSendSync(req *Request) Result {
	to, err := endpoint.ToSockaddr(req.Dst.Endpoint)
	if err != nil {
		return Result{Endpoint: req.Dst.Endpoint, Errno: int(unix.EINVAL), Buffer: req.Buffer, Ctx: req.Ctx}
	}

	buf := req.Buffer
	bytesOp := 0
	var lastErr error

	for bytesOp < buf.Size() {
		n, sendErr := unix.SendmsgN(req.Dst.FD, buf.Remaining(bytesOp), nil, to, unix.MSG_NOSIGNAL)
		if sendErr != nil {
			lastErr = sendErr
			break
		}
		bytesOp += n
	}

	req.BytesOperated = bytesOp
	moreBytes, _ := unix.IoctlGetInt(req.Dst.FD, unix.SIOCOUTQ)

	return Result{
		Endpoint:      req.Dst.Endpoint,
		Errno:         errnoOf(lastErr),
		BytesOperated: bytesOp,
		HasMoreBytes:  moreBytes,
		Buffer:        buf,
		Ctx:           req.Ctx,
	}
}

// udpSendAsync posts a WRITE oneshot that performs a single non-blocking
// sendmsg per fire, re-posting on would-block or partial progress,
// grounded on udp_send_async/udp_send_async_tpl.
type udpSendJob struct {
	e   *Engine
	req *Request
	to  unix.Sockaddr
}

func (e *Engine) udpSendAsync(req *Request) {
	to, err := endpoint.ToSockaddr(req.Dst.Endpoint)
	if err != nil {
		e.completeUDPSend(req, int(unix.EINVAL), 0)
		return
	}
	req.BytesOperated = 0
	job := &udpSendJob{e: e, req: req, to: to}
	e.r.Post(req.Dst.FD, reactor.DirWrite, true, job.fire, nil)
}

func (j *udpSendJob) fire(fd int, dir reactor.Direction, ctx any) {
	req := j.req
	n, err := unix.SendmsgN(fd, req.Buffer.Remaining(req.BytesOperated), nil, j.to, unix.MSG_NOSIGNAL|unix.MSG_DONTWAIT)
	if err != nil {
		if isWouldBlock(err) {
			j.e.r.Post(fd, reactor.DirWrite, true, j.fire, nil)
			return
		}
		j.e.completeUDPSend(req, errnoOf(err), 0)
		return
	}

	req.BytesOperated += n
	if req.BytesOperated < req.Buffer.Size() {
		j.e.r.Post(fd, reactor.DirWrite, true, j.fire, nil)
		return
	}

	moreBytes, _ := unix.IoctlGetInt(fd, unix.SIOCOUTQ)
	j.e.completeUDPSend(req, 0, moreBytes)
}

func (e *Engine) completeUDPSend(req *Request, errno int, hasMoreBytes int) {
	res := Result{
		Endpoint:      req.Dst.Endpoint,
		Errno:         errno,
		BytesOperated: req.BytesOperated,
		HasMoreBytes:  hasMoreBytes,
		Buffer:        req.Buffer,
		Ctx:           req.Ctx,
	}
	e.observer.ObserveSRRComplete(reactor.SRROpSend, uint64(req.BytesOperated), 0, res.Success())
	if req.Callback != nil {
		req.Callback(res)
	}
}

// udpRecvSync queries the incoming queue length; if it exceeds the
// remaining buffer capacity it peeks (leaving the datagram queued) and
// returns BufferTooSmall, otherwise it performs a normal consuming recv,
// grounded on udp_recv_sync_no_cb.
func udpRecvSync(req *Request) Result {
	buf := req.Buffer
	toOp := buf.Size() - req.BytesOperated

	bytesPending, _ := unix.IoctlGetInt(req.Src.FD, unix.SIOCINQ)
	if bytesPending > toOp {
		n, _, _, _, err := unix.Recvmsg(req.Src.FD, buf.Remaining(req.BytesOperated), nil, unix.MSG_NOSIGNAL|unix.MSG_PEEK)
		peeked := n
		if err != nil {
			peeked = 0
		}
		errno := BufferTooSmall
		if err != nil {
			errno = errnoOf(err)
		}
		return Result{
			Endpoint:      req.Src.Endpoint,
			Errno:         errno,
			BytesOperated: peeked,
			HasMoreBytes:  bytesPending,
			Buffer:        buf,
			Ctx:           req.Ctx,
		}
	}

	n, from, err := recvAndTranslate(req.Src.FD, buf.Remaining(req.BytesOperated))
	bytesOp := 0
	if err == nil {
		bytesOp = n
	}
	req.BytesOperated += bytesOp

	ep := req.Src.Endpoint
	if from.Addr.IsValid() {
		ep = from
	}

	return Result{
		Endpoint:      ep,
		Errno:         errnoOf(err),
		BytesOperated: bytesOp,
		HasMoreBytes:  0,
		Buffer:        buf,
		Ctx:           req.Ctx,
	}
}

// udpRecvAsync posts a single READ oneshot. When it fires, the job performs
// the same truncation check as udpRecvSync and then one peek or one
// consuming recv, and completes the request; it never re-posts itself
// (single-shot: ARMED -> DONE only).
func (e *Engine) udpRecvAsync(req *Request) {
	job := &udpRecvJob{e: e, req: req}
	e.r.Post(req.Src.FD, reactor.DirRead, true, job.fire, nil)
}

type udpRecvJob struct {
	e   *Engine
	req *Request
}

func (j *udpRecvJob) fire(fd int, dir reactor.Direction, ctx any) {
	req := j.req
	buf := req.Buffer

	bytesPending, _ := unix.IoctlGetInt(fd, unix.SIOCINQ)
	if bytesPending > buf.Size()-req.BytesOperated {
		n, _, _, _, err := unix.Recvmsg(fd, buf.Remaining(req.BytesOperated), nil, unix.MSG_NOSIGNAL|unix.MSG_PEEK|unix.MSG_DONTWAIT)
		peeked := req.BytesOperated + n
		errno := BufferTooSmall
		if err != nil {
			peeked = req.BytesOperated
			errno = errnoOf(err)
		}
		j.e.observer.ObserveBufferTooSmall()
		j.complete(errno, peeked, bytesPending, req.Src.Endpoint)
		return
	}

	n, from, err := recvAndTranslate(fd, buf.Remaining(req.BytesOperated))
	bytesOp := 0
	if err == nil {
		bytesOp = n
	}
	req.BytesOperated += bytesOp

	ep := req.Src.Endpoint
	if from.Addr.IsValid() {
		ep = from
	}
	j.complete(errnoOf(err), bytesOp, 0, ep)
}

func (j *udpRecvJob) complete(errno int, bytesOperated int, hasMoreBytes int, ep endpoint.Endpoint) {
	req := j.req
	res := Result{
		Endpoint:      ep,
		Errno:         errno,
		BytesOperated: bytesOperated,
		HasMoreBytes:  hasMoreBytes,
		Buffer:        req.Buffer,
		Ctx:           req.Ctx,
	}
	j.e.observer.ObserveSRRComplete(reactor.SRROpRecv, uint64(bytesOperated), 0, res.Success())
	if req.Callback != nil {
		req.Callback(res)
	}
}

// recvAndTranslate performs a single consuming recvmsg and canonicalizes
// the source address, matching translate_endpoint being applied to
// srb->aux.src.ep after a successful receive.
func recvAndTranslate(fd int, window []byte) (int, endpoint.Endpoint, error) {
	n, _, _, from, err := unix.Recvmsg(fd, window, nil, unix.MSG_NOSIGNAL)
	if err != nil || from == nil {
		return n, endpoint.Endpoint{}, err
	}
	ep, epErr := endpoint.FromSockaddr(from, endpoint.ProtoUDP)
	if epErr != nil {
		return n, endpoint.Endpoint{}, err
	}
	return n, ep, err
}
