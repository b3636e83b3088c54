// Command reactor-echo is a one-connection-at-a-time TCP echo server: it
// accepts a single client, echoes back one buffer's worth of bytes, and
// exits.
// It exists to exercise the reactor and SRR engine together end to end,
// the way oto-server.c exercises io_service against a one-to-one TCP
// server — without that server's connection_acceptor abstraction, which
// has no counterpart in this module (see DESIGN.md).
package main

import (
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"golang.org/x/sys/unix"

	"github.com/behrlich/go-reactor"
	"github.com/behrlich/go-reactor/internal/buffer"
	"github.com/behrlich/go-reactor/internal/endpoint"
	"github.com/behrlich/go-reactor/internal/logging"
	"github.com/behrlich/go-reactor/internal/srr"
)

func main() {
	var (
		addr    = flag.String("addr", "0.0.0.0", "Address to listen on")
		port    = flag.Int("port", 12345, "Port to listen on")
		bufSize = flag.Int("buffer", 10, "Echo buffer size in bytes")
		verbose = flag.Bool("v", false, "Verbose output")
	)
	flag.Parse()

	logConfig := logging.DefaultConfig()
	if *verbose {
		logConfig.Level = logging.LevelDebug
	}
	logger := logging.NewLogger(logConfig)
	logging.SetDefault(logger)

	metrics := reactor.NewMetrics()
	observer := reactor.NewMetricsObserver(metrics)

	r, err := reactor.New(reactor.Config{Observer: observer, Logger: logger})
	if err != nil {
		logger.Error("failed to create reactor", "error", err)
		os.Exit(1)
	}
	defer r.Close()

	engine := srr.New(r, observer)

	lfd, err := listen(*addr, *port)
	if err != nil {
		logger.Error("failed to listen", "addr", *addr, "port", *port, "error", err)
		os.Exit(1)
	}
	defer unix.Close(lfd)

	logger.Info("listening", "addr", *addr, "port", *port)
	fmt.Printf("reactor-echo listening on %s:%d (buffer=%d)\n", *addr, *port, *bufSize)

	acceptOnce(r, engine, lfd, *bufSize, logger)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	runErr := make(chan error, 1)
	go func() { runErr <- r.Run() }()

	select {
	case <-sigCh:
		logger.Info("received shutdown signal")
		r.Stop(false)
		<-runErr
	case err := <-runErr:
		if err != nil {
			logger.Error("reactor run failed", "error", err)
		}
	}

	snap := metrics.Snapshot()
	fmt.Printf("dispatches=%d send_bytes=%d recv_bytes=%d buffer_too_small=%d\n",
		snap.Dispatches, snap.SendBytes, snap.RecvBytes, snap.BufferTooSmall)
}

func listen(addr string, port int) (int, error) {
	fd, err := unix.Socket(unix.AF_INET, unix.SOCK_STREAM, 0)
	if err != nil {
		return -1, err
	}
	if err := unix.SetsockoptInt(fd, unix.SOL_SOCKET, unix.SO_REUSEADDR, 1); err != nil {
		unix.Close(fd)
		return -1, err
	}

	ip4, err := endpointAddrFromString(addr)
	if err != nil {
		unix.Close(fd)
		return -1, err
	}

	if err := unix.Bind(fd, &unix.SockaddrInet4{Port: port, Addr: ip4}); err != nil {
		unix.Close(fd)
		return -1, err
	}
	if err := unix.Listen(fd, 1); err != nil {
		unix.Close(fd)
		return -1, err
	}
	if err := unix.SetNonblock(fd, true); err != nil {
		unix.Close(fd)
		return -1, err
	}
	return fd, nil
}

func endpointAddrFromString(s string) ([4]byte, error) {
	if s == "0.0.0.0" || s == "" {
		return [4]byte{0, 0, 0, 0}, nil
	}
	var a, b, c, d int
	if _, err := fmt.Sscanf(s, "%d.%d.%d.%d", &a, &b, &c, &d); err != nil {
		return [4]byte{}, fmt.Errorf("reactor-echo: invalid address %q: %w", s, err)
	}
	return [4]byte{byte(a), byte(b), byte(c), byte(d)}, nil
}

// acceptOnce posts a READ-readiness oneshot on the listener that accepts a
// single connection and wires up an echo loop for it, mirroring
// connection_accepted/data_received/data_sent from oto-server.c without
// the one-to-one-server collaborator layer.
func acceptOnce(r *reactor.Reactor, engine *srr.Engine, lfd int, bufSize int, logger *logging.Logger) {
	r.Post(lfd, reactor.DirRead, true, func(fd int, dir reactor.Direction, ctx any) {
		cfd, sa, err := unix.Accept(fd)
		if err != nil {
			logger.Error("accept failed", "error", err)
			return
		}
		if err := unix.SetNonblock(cfd, true); err != nil {
			logger.Error("set nonblock failed", "error", err)
			unix.Close(cfd)
			return
		}

		ep, epErr := endpoint.FromSockaddr(sa, endpoint.ProtoTCP)
		if epErr == nil {
			logger.Info("connection accepted", "peer", ep.String())
		}

		echoOnce(r, engine, cfd, bufSize, logger)
	}, nil)
}

// echoOnce reads exactly bufSize bytes (the async TCP receive completes
// only once the buffer is full or the recv fails) and writes them back once,
// then closes the connection — the recv-then-send-then-stop shape of
// data_received/data_sent in oto-server.c.
func echoOnce(r *reactor.Reactor, engine *srr.Engine, cfd int, bufSize int, logger *logging.Logger) {
	buf := buffer.New(make([]byte, bufSize))

	recvReq := &srr.Request{
		Type:   srr.OpRecv,
		Kind:   srr.OpTypeTCP,
		Src:    endpoint.Socket{FD: cfd},
		Buffer: buf,
		Callback: func(res srr.Result) {
			if res.Errno != 0 {
				logger.Error("recv failed", "errno", res.Errno)
				unix.Close(cfd)
				return
			}
			logger.Info("data received", "bytes", res.BytesOperated)

			sendReq := &srr.Request{
				Type:   srr.OpSend,
				Kind:   srr.OpTypeTCP,
				Dst:    endpoint.Socket{FD: cfd},
				Buffer: res.Buffer.Shrink(res.BytesOperated),
				Callback: func(sendRes srr.Result) {
					if sendRes.Errno != 0 {
						logger.Error("send failed", "errno", sendRes.Errno)
					} else {
						logger.Info("data sent", "bytes", sendRes.BytesOperated)
					}
					unix.Close(cfd)
					r.Stop(true)
				},
			}
			engine.Operate(sendReq)
		},
	}
	engine.Operate(recvReq)
}
