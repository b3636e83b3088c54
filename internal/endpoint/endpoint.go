// Package endpoint translates between raw kernel sockaddr values and the
// tagged endpoint representation the SRR engine reasons about: a protocol
// (TCP/UDP), an address family (IPv4/IPv6), and an address.
package endpoint

import (
	"fmt"
	"net/netip"

	"golang.org/x/sys/unix"
)

// Proto is the transport protocol an endpoint is associated with.
type Proto int

const (
	ProtoTCP Proto = iota
	ProtoUDP
)

func (p Proto) String() string {
	if p == ProtoTCP {
		return "tcp"
	}
	return "udp"
}

// Endpoint is an address/port pair tagged with its transport protocol. The
// address family (IPv4 vs IPv6) is carried implicitly by netip.Addr.
type Endpoint struct {
	Proto Proto
	Addr  netip.Addr
	Port  uint16
}

func (e Endpoint) String() string {
	return fmt.Sprintf("%s://%s", e.Proto, netip.AddrPortFrom(e.Addr, e.Port))
}

// Socket pairs a live file descriptor with the endpoint of the remote side:
// the peer of a connected TCP socket, or for UDP the datagram's destination
// (send) or expected source (receive).
type Socket struct {
	FD       int
	Endpoint Endpoint
}

// FromSockaddr translates a raw kernel sockaddr, as returned by
// unix.Getpeername/unix.Getsockname/unix.Recvmsg, into an Endpoint. This is
// the "translate_endpoint" collaborator the spec calls out: it canonicalizes
// the address-family tag carried by the kernel return value.
func FromSockaddr(sa unix.Sockaddr, proto Proto) (Endpoint, error) {
	switch a := sa.(type) {
	case *unix.SockaddrInet4:
		return Endpoint{Proto: proto, Addr: netip.AddrFrom4(a.Addr), Port: uint16(a.Port)}, nil
	case *unix.SockaddrInet6:
		return Endpoint{Proto: proto, Addr: netip.AddrFrom16(a.Addr), Port: uint16(a.Port)}, nil
	default:
		return Endpoint{}, fmt.Errorf("endpoint: unsupported sockaddr type %T", sa)
	}
}

// ToSockaddr converts an Endpoint into the kernel sockaddr needed as the
// destination of a sendmsg call (UDP send).
func ToSockaddr(e Endpoint) (unix.Sockaddr, error) {
	if e.Addr.Is4() {
		return &unix.SockaddrInet4{Port: int(e.Port), Addr: e.Addr.As4()}, nil
	}
	if e.Addr.Is6() {
		return &unix.SockaddrInet6{Port: int(e.Port), Addr: e.Addr.As16()}, nil
	}
	return nil, fmt.Errorf("endpoint: address %v has no recognized family", e.Addr)
}
