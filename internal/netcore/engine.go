// File: internal/netcore/engine.go
// Author: momentics <momentics@gmail.com>
//
// Engine owns the shared poller and the fixed per-transport Driver
// table, and is the single point that turns one poll.Wait call into
// zero or more api.NetEvents. Grounded on the teacher's
// core/concurrency event-loop shape (one poller, a dispatch step, a
// close step) generalized from a single reactor callback to four
// transport-specific drivers addressed by api.Transport.AdapterID.
package netcore

import (
	"fmt"
	"net"
	"time"

	"github.com/momentics/netcore/api"
	"github.com/momentics/netcore/internal/bufpool"
	"github.com/momentics/netcore/internal/poll"
)

// Engine multiplexes every live socket across every supported
// transport through one OS poller. The zero value is not usable;
// construct with NewEngine.
type Engine struct {
	poll   poll.Poll
	waker  poll.Waker
	bufs   *bufpool.Pool
	loader *DriverLoader

	// eventScratch is reused across Poll calls from the single processor
	// thread that owns this Engine; Poll is never called concurrently
	// with itself, so reuse is safe without synchronization. It is an
	// Engine field, not package scope, so that separate nodes (each with
	// their own Engine and processor thread) never alias the same array.
	eventScratch [256]poll.Event
}

// NewEngine creates the shared poller and mounts every transport's
// driver into a fresh DriverLoader.
func NewEngine() (*Engine, error) {
	p, err := poll.New()
	if err != nil {
		return nil, fmt.Errorf("netcore: creating poller: %w", err)
	}
	waker, err := p.Waker()
	if err != nil {
		_ = p.Close()
		return nil, fmt.Errorf("netcore: creating waker: %w", err)
	}
	bufs := bufpool.New()
	loader := newDriverLoader()
	loader.mount(newTCPAdapter(api.Tcp, p, bufs, false))
	loader.mount(newFramedTCPAdapter(p, bufs))
	loader.mount(newUDPAdapter(p, bufs))
	loader.mount(newWSAdapter(p, bufs))
	return &Engine{poll: p, waker: waker, bufs: bufs, loader: loader}, nil
}

func (e *Engine) driverFor(t api.Transport) Driver {
	return e.loader.get(t)
}

func (e *Engine) driverForResource(id api.ResourceID) Driver {
	return e.loader.getByAdapterID(id.AdapterID())
}

// Listen opens a local resource for t at addr.
func (e *Engine) Listen(t api.Transport, addr api.RemoteAddr) (api.ResourceID, net.Addr, error) {
	return e.driverFor(t).Listen(addr)
}

// Connect opens a remote resource for t at addr. For connection-
// oriented transports the connection is not yet established when this
// returns; completion is reported via a Connected event from Poll.
func (e *Engine) Connect(t api.Transport, addr api.RemoteAddr) (api.ResourceID, error) {
	return e.driverFor(t).Connect(addr)
}

// ListenTCP and ListenFramedTCP apply TCPOptions to a stream listener;
// the distinction between the two transports is which adapter instance
// is mounted at that AdapterID, not the options shape itself.
func (e *Engine) ListenTCP(addr api.RemoteAddr, opts TCPOptions) (api.ResourceID, net.Addr, error) {
	return e.driverFor(api.Tcp).(*tcpAdapter).ListenOpts(addr, opts)
}

func (e *Engine) ListenFramedTCP(addr api.RemoteAddr, opts TCPOptions) (api.ResourceID, net.Addr, error) {
	return e.driverFor(api.FramedTcp).(*tcpAdapter).ListenOpts(addr, opts)
}

func (e *Engine) ConnectTCP(addr api.RemoteAddr, opts TCPOptions) (api.ResourceID, error) {
	return e.driverFor(api.Tcp).(*tcpAdapter).ConnectOpts(addr, opts)
}

func (e *Engine) ConnectFramedTCP(addr api.RemoteAddr, opts TCPOptions) (api.ResourceID, error) {
	return e.driverFor(api.FramedTcp).(*tcpAdapter).ConnectOpts(addr, opts)
}

func (e *Engine) ListenUDP(addr api.RemoteAddr, opts UDPOptions) (api.ResourceID, net.Addr, error) {
	return e.driverFor(api.Udp).(*udpAdapter).ListenOpts(addr, opts)
}

func (e *Engine) ConnectUDP(addr api.RemoteAddr, opts UDPOptions) (api.ResourceID, error) {
	return e.driverFor(api.Udp).(*udpAdapter).ConnectOpts(addr, opts)
}

func (e *Engine) ListenWS(addr api.RemoteAddr, opts WSOptions) (api.ResourceID, net.Addr, error) {
	return e.driverFor(api.Ws).(*wsAdapter).ListenOpts(addr, opts)
}

func (e *Engine) ConnectWS(addr api.RemoteAddr, opts WSOptions) (api.ResourceID, error) {
	return e.driverFor(api.Ws).(*wsAdapter).ConnectOpts(addr, opts)
}

// Send enqueues data for id, dispatching to the owning transport's
// driver by id's embedded adapter tag.
func (e *Engine) Send(id api.ResourceID, data []byte) api.SendStatus {
	d := e.driverForResource(id)
	if d == nil {
		return api.SendStatusResourceNotFound
	}
	return d.Send(id, data)
}

// Remove closes and forgets id.
func (e *Engine) Remove(id api.ResourceID) bool {
	d := e.driverForResource(id)
	if d == nil {
		return false
	}
	return d.Remove(id)
}

// LocalAddr returns the address bound to a resource, for example to
// read back the ephemeral port Listen chose.
func (e *Engine) LocalAddr(id api.ResourceID) (net.Addr, bool) {
	d := e.driverForResource(id)
	if d == nil {
		return nil, false
	}
	return d.LocalAddr(id)
}

// LocalBindAddr returns the local address an outbound Connect bound to,
// for reporting back to the caller alongside the resulting Endpoint.
func (e *Engine) LocalBindAddr(id api.ResourceID) (net.Addr, bool) {
	d := e.driverForResource(id)
	if d == nil {
		return nil, false
	}
	return d.LocalBindAddr(id)
}

// IsReady reports whether id is currently usable for Send, and whether
// id is known to the engine at all. See Driver.IsReady.
func (e *Engine) IsReady(id api.ResourceID) (ready bool, known bool) {
	d := e.driverForResource(id)
	if d == nil {
		return false, false
	}
	return d.IsReady(id)
}

// Poll runs one iteration of the event loop: it blocks up to timeout
// waiting for readiness, then dispatches every ready event to its
// owning driver, invoking emit for each api.NetEvent produced. A nil
// timeout blocks until an event (or a Wake) arrives.
func (e *Engine) Poll(timeout *time.Duration, emit func(api.NetEvent)) error {
	events, err := e.poll.Wait(timeout, e.eventScratch[:0])
	if err != nil {
		return fmt.Errorf("netcore: poll wait: %w", err)
	}
	for _, ev := range events {
		id := api.ResourceID(ev.ID)
		d := e.driverForResource(id)
		if d == nil {
			continue
		}
		d.HandleEvent(ev, emit)
	}
	return nil
}

// Wake interrupts a blocked Poll call from any goroutine, used to
// deliver a Stop request to the processor thread promptly.
func (e *Engine) Wake() error { return e.waker.Wake() }

// Close tears down every driver and the shared poller. Safe to call
// once after the processor loop has returned.
func (e *Engine) Close() error {
	for _, d := range e.loader.mounted() {
		_ = d.Close()
	}
	return e.poll.Close()
}
