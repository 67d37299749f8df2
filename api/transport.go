// File: api/transport.go
// Author: momentics <momentics@gmail.com>
//
// Transport is the closed set of wire protocols the engine multiplexes.
// Each member carries its adapter id, its theoretical max message size,
// and its connection/packet properties. The engine does not consult
// these properties: each adapter emits its own lifecycle events.

package api

import "math"

type Transport uint8

const (
	Tcp Transport = iota
	FramedTcp
	Udp
	Ws
)

func (t Transport) String() string {
	switch t {
	case Tcp:
		return "Tcp"
	case FramedTcp:
		return "FramedTcp"
	case Udp:
		return "Udp"
	case Ws:
		return "Ws"
	default:
		return "Unknown"
	}
}

// AdapterID returns the fixed dispatch-table slot for this transport.
// It is the same value ResourceID.AdapterID() returns for any resource
// created through this transport's adapter.
func (t Transport) AdapterID() uint8 { return uint8(t) }

// MaxUDPLocalPayloadLen is the safe-MTU payload limit used to decide
// whether a UDP datagram is merely risky (kernel-accepted anyway) or
// unconditionally rejected. 9216 is the smallest common OS MTU (macOS),
// minus the IPv4 and UDP header sizes.
const MaxUDPLocalPayloadLen = 9216 - 20 - 8

// MaxUDPNetworkPayloadLen is the theoretical maximum a UDP payload can
// ever occupy: the 16-bit UDP length field, minus IPv4+UDP headers.
const MaxUDPNetworkPayloadLen = 65535 - 20 - 8

// MaxWSPayloadLen matches the common default frame-size ceiling used by
// WebSocket implementations across the ecosystem (32 MiB).
const MaxWSPayloadLen = 32 << 20

// MaxFramedTcpMessageSize bounds a single FramedTcp message so its
// length prefix never needs the 8-byte width. 4 GiB is already far
// beyond any practical message; this keeps length decoding bounded to
// the uint32 width in the overwhelming majority of traffic.
const MaxFramedTcpMessageSize = math.MaxUint32

// MaxMessageSize returns the theoretical per-packet limit for t. Stream
// transports are unbounded (the sentinel is math.MaxInt64); framed and
// packet transports report the bound a single message must respect.
func (t Transport) MaxMessageSize() int64 {
	switch t {
	case Tcp:
		return math.MaxInt64
	case FramedTcp:
		return MaxFramedTcpMessageSize
	case Udp:
		return MaxUDPLocalPayloadLen
	case Ws:
		return MaxWSPayloadLen
	default:
		return 0
	}
}

// IsConnectionOriented reports whether the transport produces Accepted,
// Connected and Disconnected lifecycle events.
func (t Transport) IsConnectionOriented() bool {
	switch t {
	case Tcp, FramedTcp, Ws:
		return true
	default:
		return false
	}
}

// IsPacketBased reports whether a single Send corresponds to exactly
// one Message event on the receiving side. Tcp is the sole exception:
// it is a raw byte stream with no preserved message boundaries.
func (t Transport) IsPacketBased() bool {
	return t != Tcp
}
