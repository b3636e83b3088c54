package reactor

import "time"

// Default configuration constants for the reactor and SRR engine.
const (
	// DefaultMaxEvents is the default size of the epoll event batch buffer.
	// The run loop still processes one event per wake (spec: batch size 1);
	// this only bounds the single EpollWait syscall's result buffer.
	DefaultMaxEvents = 64

	// DefaultSRRBufferSize is a default size for SRR buffers. Nothing in this
	// module applies it automatically; callers size their own buffers.
	DefaultSRRBufferSize = 64 * 1024

	// NotifierInitialValue is the eventfd initial counter value.
	NotifierInitialValue = 0
)

// Retry constants for a client dialing a freshly posted listener. No helper
// or example in this module reads them.
const (
	// DialRetryInterval is the interval between connect retries against a
	// freshly posted listener.
	DialRetryInterval = 5 * time.Millisecond

	// DialRetryTimeout bounds the total time spent retrying a dial.
	DialRetryTimeout = 500 * time.Millisecond
)
