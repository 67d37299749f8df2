// File: api/endpoint.go
// Author: momentics <momentics@gmail.com>

package api

import "net"

// Endpoint is the user-visible identity of a sender or receiver of
// messages: the resource id of the connection (or, for datagrams
// received on a bound socket, the listener) plus the peer address.
// Endpoints are created exclusively by the engine. Two endpoints are
// equal iff their resource ids are equal; the addr field is carried
// for convenience and display, never compared.
type Endpoint struct {
	id   ResourceID
	addr net.Addr
}

func NewEndpoint(id ResourceID, addr net.Addr) Endpoint {
	return Endpoint{id: id, addr: addr}
}

func (e Endpoint) ResourceID() ResourceID { return e.id }
func (e Endpoint) Addr() net.Addr         { return e.addr }

// Equal compares endpoints by resource id only, per the identity rule.
func (e Endpoint) Equal(other Endpoint) bool { return e.id == other.id }

func (e Endpoint) String() string {
	if e.addr == nil {
		return e.id.String()
	}
	return e.id.String() + "@" + e.addr.String()
}
