package srr

import (
	"github.com/behrlich/go-reactor"
)

// Engine dispatches Requests to the TCP/UDP sync or async implementation
// selected by (Kind, Type), exactly as network.c's OPERATORS/OPERATORS_NO_CB
// tables select tcp_send_recv_async/_sync, udp_send_async/_sync, and
// udp_recv_async/_sync by (endpoint type, operation). A nil Reactor means
// sync mode, mirroring the original's null io_service_t pointer check.
type Engine struct {
	r        *reactor.Reactor
	observer reactor.Observer
}

// New creates an Engine. r may be nil for an engine that only ever serves
// OperateSync calls.
func New(r *reactor.Reactor, observer reactor.Observer) *Engine {
	if observer == nil {
		observer = reactor.NoOpObserver{}
	}
	return &Engine{r: r, observer: observer}
}

type opKey struct {
	kind OperationType
	op   Op
}

// Operate is the async entry point (srb_operate): it asserts a reactor is
// attached and dispatches by (Kind, Type) into the oneshot-posting
// implementation. The terminal user callback, if any, fires once the
// request reaches DONE.
func (e *Engine) Operate(req *Request) {
	if e.r == nil {
		panic("srr: Operate called on an engine with no reactor (sync engine)")
	}
	switch (opKey{req.Kind, req.Type}) {
	case opKey{OpTypeTCP, OpSend}, opKey{OpTypeTCP, OpRecv}:
		e.tcpAsync(req)
	case opKey{OpTypeUDP, OpSend}:
		e.udpSendAsync(req)
	case opKey{OpTypeUDP, OpRecv}:
		e.udpRecvAsync(req)
	default:
		panic("srr: unknown (Kind, Type) pair")
	}
}

// OperateSync is the sync entry point (srb_operate_no_cb): it asserts no
// reactor is attached, blocks until the request fully completes, and
// returns the completion result. The request's own Callback, if set, is
// also invoked with the same result (matching tcp_send_recv_sync etc.,
// which call the no-cb variant and then forward its result to srb->cb).
func (e *Engine) OperateSync(req *Request) Result {
	if e.r != nil {
		panic("srr: OperateSync called on an engine with a reactor attached")
	}
	var res Result
	switch (opKey{req.Kind, req.Type}) {
	case opKey{OpTypeTCP, OpSend}, opKey{OpTypeTCP, OpRecv}:
		res = tcpSync(req)
	case opKey{OpTypeUDP, OpSend}:
		res = udpSendSync(req)
	case opKey{OpTypeUDP, OpRecv}:
		res = udpRecvSync(req)
	default:
		panic("srr: unknown (Kind, Type) pair")
	}
	if req.Callback != nil {
		req.Callback(res)
	}
	return res
}
