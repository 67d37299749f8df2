// File: internal/netcore/options.go
// Author: momentics <momentics@gmail.com>
//
// Per-transport socket options applied at Listen/Connect time, layered
// on top of the zero-option Driver.Listen/Connect paths every adapter
// already implements. The teacher has no keepalive or reuse-address/
// reuse-port concept at all; these knobs are original design, applied
// via golang.org/x/sys/unix.SetsockoptInt against the raw fd the same
// way reactor/reactor_linux.go manipulates its epoll fd directly rather
// than through net.Conn. The UDP reuse-address/port/broadcast knobs
// follow the original source's adapters/udp.rs, which does expose them.
package netcore

import (
	"time"

	"golang.org/x/sys/unix"
)

// TCPOptions configures a Tcp or FramedTcp Listen/Connect call. The zero
// value disables every knob (no keepalive, no explicit source address,
// no bind device), matching the plain Driver.Listen/Connect behavior.
type TCPOptions struct {
	KeepaliveIdle     time.Duration
	KeepaliveInterval time.Duration
	KeepaliveRetries  int
	SourceAddress     string
	BindDevice        string
}

func (o TCPOptions) apply(fd int) error {
	if o.KeepaliveIdle > 0 || o.KeepaliveInterval > 0 || o.KeepaliveRetries > 0 {
		if err := unix.SetsockoptInt(fd, unix.SOL_SOCKET, unix.SO_KEEPALIVE, 1); err != nil {
			return err
		}
		if o.KeepaliveIdle > 0 {
			_ = unix.SetsockoptInt(fd, unix.IPPROTO_TCP, unix.TCP_KEEPIDLE, int(o.KeepaliveIdle.Seconds()))
		}
		if o.KeepaliveInterval > 0 {
			_ = unix.SetsockoptInt(fd, unix.IPPROTO_TCP, unix.TCP_KEEPINTVL, int(o.KeepaliveInterval.Seconds()))
		}
		if o.KeepaliveRetries > 0 {
			_ = unix.SetsockoptInt(fd, unix.IPPROTO_TCP, unix.TCP_KEEPCNT, o.KeepaliveRetries)
		}
	}
	if o.BindDevice != "" {
		_ = unix.BindToDevice(fd, o.BindDevice)
	}
	return nil
}

// UDPOptions configures a Udp Listen/Connect call.
type UDPOptions struct {
	ReuseAddress bool
	ReusePort    bool

	// BroadcastSelfReceive opts into delivering a broadcast this socket
	// itself sent back to its own recvfrom loop. Support for this is
	// platform-dependent; on Linux it is approximated with SO_BROADCAST
	// plus IP_MULTICAST_LOOP-style loopback, which the kernel already
	// grants to broadcast sockets, so this flag's sole effect today is
	// enabling SO_BROADCAST itself.
	BroadcastSelfReceive bool
	SourceAddress        string
}

func (o UDPOptions) apply(fd int) error {
	if o.ReuseAddress {
		if err := unix.SetsockoptInt(fd, unix.SOL_SOCKET, unix.SO_REUSEADDR, 1); err != nil {
			return err
		}
	}
	if o.ReusePort {
		_ = unix.SetsockoptInt(fd, unix.SOL_SOCKET, unix.SO_REUSEPORT, 1)
	}
	if o.BroadcastSelfReceive {
		_ = unix.SetsockoptInt(fd, unix.SOL_SOCKET, unix.SO_BROADCAST, 1)
	}
	return nil
}

// WSOptions configures a Ws Listen/Connect call. TLSConfig is accepted
// for interface completeness only: the frame codec and handshake in
// wsframe.go/wshandshake.go run directly over a non-blocking raw fd, and
// wiring crypto/tls onto that fd would require the blocking-Conn shape
// this adapter deliberately avoids. A non-nil TLSConfig is therefore
// never consulted; wss:// addresses resolve
// and connect in plaintext. See resolve.go's secure flag.
type WSOptions struct {
	TLSConfig interface{}

	// MaxFrameSize overrides api.MaxWSPayloadLen for this connection's
	// codec, 0 keeps the default.
	MaxFrameSize int64
}
