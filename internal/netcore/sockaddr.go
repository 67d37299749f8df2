// File: internal/netcore/sockaddr.go
// Author: momentics <momentics@gmail.com>
//
// Conversions between the standard library's net.Addr types and
// golang.org/x/sys/unix.Sockaddr, needed because every adapter here
// drives its sockets directly through unix syscalls rather than
// net.Conn, to keep every blocking point funneled through the single
// shared poller.
package netcore

import (
	"fmt"
	"net"

	"golang.org/x/sys/unix"
)

func tcpToSockaddr(a *net.TCPAddr) (unix.Sockaddr, int, error) {
	ip := a.IP
	if ip == nil {
		ip = net.IPv4zero
	}
	if ip4 := ip.To4(); ip4 != nil {
		sa := &unix.SockaddrInet4{Port: a.Port}
		copy(sa.Addr[:], ip4)
		return sa, unix.AF_INET, nil
	}
	ip16 := ip.To16()
	if ip16 == nil {
		return nil, 0, fmt.Errorf("sockaddr: invalid IP %v", ip)
	}
	sa := &unix.SockaddrInet6{Port: a.Port}
	copy(sa.Addr[:], ip16)
	return sa, unix.AF_INET6, nil
}

func udpToSockaddr(a *net.UDPAddr) (unix.Sockaddr, int, error) {
	return tcpToSockaddr(&net.TCPAddr{IP: a.IP, Port: a.Port, Zone: a.Zone})
}

func sockaddrToNetTCP(sa unix.Sockaddr) *net.TCPAddr {
	switch s := sa.(type) {
	case *unix.SockaddrInet4:
		return &net.TCPAddr{IP: append(net.IP{}, s.Addr[:]...), Port: s.Port}
	case *unix.SockaddrInet6:
		return &net.TCPAddr{IP: append(net.IP{}, s.Addr[:]...), Port: s.Port}
	default:
		return nil
	}
}

func sockaddrToNetUDP(sa unix.Sockaddr) *net.UDPAddr {
	tcp := sockaddrToNetTCP(sa)
	if tcp == nil {
		return nil
	}
	return &net.UDPAddr{IP: tcp.IP, Port: tcp.Port}
}

// joinMulticastGroup issues IP_ADD_MEMBERSHIP for group on the
// any-address interface, so Listen on a multicast address automatically
// joins it per the datagram transport's documented listen semantics.
func joinMulticastGroup(fd int, group net.IP) error {
	ip4 := group.To4()
	if ip4 == nil {
		return fmt.Errorf("sockaddr: only IPv4 multicast groups are supported, got %v", group)
	}
	mreq := &unix.IPMreq{}
	copy(mreq.Multiaddr[:], ip4)
	return unix.SetsockoptIPMreq(fd, unix.IPPROTO_IP, unix.IP_ADD_MEMBERSHIP, mreq)
}

// leaveMulticastGroup issues IP_DROP_MEMBERSHIP, used when a multicast
// listener resource is removed.
func leaveMulticastGroup(fd int, group net.IP) error {
	ip4 := group.To4()
	if ip4 == nil {
		return nil
	}
	mreq := &unix.IPMreq{}
	copy(mreq.Multiaddr[:], ip4)
	return unix.SetsockoptIPMreq(fd, unix.IPPROTO_IP, unix.IP_DROP_MEMBERSHIP, mreq)
}

// localBoundTCPAddr reads back the ephemeral address the kernel bound
// fd to, used after Connect so the caller can report the local side of
// an outbound connection the way Listen reports its bound address.
func localBoundTCPAddr(fd int) net.Addr {
	sa, err := unix.Getsockname(fd)
	if err != nil {
		return nil
	}
	return sockaddrToNetTCP(sa)
}

func localBoundUDPAddr(fd int) net.Addr {
	sa, err := unix.Getsockname(fd)
	if err != nil {
		return nil
	}
	return sockaddrToNetUDP(sa)
}

// newNonblockingSocket creates a CLOEXEC, non-blocking socket of the
// given domain/type, ready for bind/connect.
func newNonblockingSocket(domain, typ int) (int, error) {
	fd, err := unix.Socket(domain, typ|unix.SOCK_NONBLOCK|unix.SOCK_CLOEXEC, 0)
	if err != nil {
		return -1, fmt.Errorf("socket: %w", err)
	}
	if err := unix.SetsockoptInt(fd, unix.SOL_SOCKET, unix.SO_REUSEADDR, 1); err != nil {
		unix.Close(fd)
		return -1, fmt.Errorf("setsockopt reuseaddr: %w", err)
	}
	return fd, nil
}
