// Package srr implements the send/receive request engine: a uniform
// TCP/UDP operate call that runs either synchronously (full drain, no
// reactor) or asynchronously (oneshot reactor intents, partial progress
// across callbacks), mirroring network.c's srb_t/srb_operate machinery.
package srr

import (
	"github.com/behrlich/go-reactor/internal/buffer"
	"github.com/behrlich/go-reactor/internal/endpoint"
)

// OperationType selects the transport the request targets.
type OperationType int

const (
	OpTypeTCP OperationType = iota
	OpTypeUDP
)

// Op selects the direction of a request: send or receive.
type Op int

const (
	OpSend Op = iota
	OpRecv
)

// BufferTooSmall is the reserved synthetic error code for a UDP receive
// whose queued datagram exceeds the remaining buffer capacity. It is never
// a real errno value (errno is always a small positive number), so using a
// negative int as the sentinel keeps it unambiguous alongside real errnos
// reported as Result.Errno.
const BufferTooSmall = -1

// CompletionFunc receives the outcome of an async send/recv request.
type CompletionFunc func(res Result)

// Request describes one send or receive operation against a TCP or UDP
// socket. Src is the local/peer endpoint for a receive, Dst the
// destination endpoint for a UDP send; TCP uses whichever of the two
// matches the request's Op (Dst for send, Src for recv), matching the
// original's aux.src/aux.dst union addressed by operation.op.
type Request struct {
	Type Op
	Kind OperationType

	Src endpoint.Socket
	Dst endpoint.Socket

	Buffer *buffer.Buffer

	// BytesOperated tracks progress across async callback re-arms. Callers
	// constructing a fresh Request should leave this at zero.
	BytesOperated int

	Callback CompletionFunc
	Ctx      any
}

// Result is the uniform completion outcome for both sync and async modes.
type Result struct {
	Endpoint      endpoint.Endpoint
	Errno         int // 0 on success, a positive errno, or BufferTooSmall
	BytesOperated int
	HasMoreBytes  int // residual queue length (SIOCINQ/SIOCOUTQ), or queued datagram size on truncation
	Buffer        *buffer.Buffer
	Ctx           any
}

// Success reports whether the request completed without error.
func (r Result) Success() bool {
	return r.Errno == 0
}
