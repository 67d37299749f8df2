// File: api/remoteaddr.go
// Author: momentics <momentics@gmail.com>
//
// RemoteAddr is a sum of a resolved socket address or a free-form
// string (host:port, or a ws(s):// URL for WebSocket). Every adapter
// accepts both forms, per the library's address contract: a Str value
// is resolved lazily, at connect/listen time, against the transport
// that receives it.

package api

import "net"

type RemoteAddr interface {
	// String returns the textual form of the address, resolved or not.
	String() string
	isRemoteAddr()
}

type SocketAddr struct{ Addr net.Addr }

func (SocketAddr) isRemoteAddr()    {}
func (a SocketAddr) String() string { return a.Addr.String() }

type StrAddr struct{ Value string }

func (StrAddr) isRemoteAddr()    {}
func (a StrAddr) String() string { return a.Value }

func Socket(addr net.Addr) RemoteAddr { return SocketAddr{Addr: addr} }
func Str(value string) RemoteAddr     { return StrAddr{Value: value} }
