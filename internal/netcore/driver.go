// File: internal/netcore/driver.go
// Author: momentics <momentics@gmail.com>
//
// Driver is the per-transport implementation plugged into the engine's
// fixed dispatch table. Each adapter (tcpadapter.go, framedtcpadapter.go,
// udpadapter.go, wsadapter.go) implements this interface, grounded on
// the teacher's transport/tcp/listener.go accept/handshake loop and
// protocol/frame_codec.go framing, generalized from a single hard-coded
// listener to the engine's id-addressed resource model.
package netcore

import (
	"net"

	"golang.org/x/sys/unix"

	"github.com/momentics/netcore/api"
	"github.com/momentics/netcore/internal/poll"
)

// Driver owns every live resource for one Transport and mediates
// between the engine's poll loop and that transport's specific I/O.
type Driver interface {
	Transport() api.Transport

	// Listen opens a local resource (a listening socket for
	// connection-oriented transports, a bound socket for Udp) and
	// registers it with the engine's poller.
	Listen(addr api.RemoteAddr) (api.ResourceID, net.Addr, error)

	// Connect opens a remote resource. For connection-oriented
	// transports this issues the OS connect (and, for Ws, also drives
	// the HTTP upgrade handshake) before the resource is usable;
	// completion is signalled by a Connected event once the poller
	// reports writability.
	Connect(addr api.RemoteAddr) (api.ResourceID, error)

	// Send enqueues data for id. It never blocks: data that does not
	// fit in one non-blocking write is queued on the resource's write
	// backlog and drained on subsequent writable readiness.
	Send(id api.ResourceID, data []byte) api.SendStatus

	// Remove closes and forgets id, returning false if id was not a
	// live resource of this driver.
	Remove(id api.ResourceID) bool

	LocalAddr(id api.ResourceID) (net.Addr, bool)

	// LocalBindAddr returns the local address an outbound Connect bound
	// to. Only meaningful for remotes created via Connect; locals and
	// accepted remotes report ok=false.
	LocalBindAddr(id api.ResourceID) (net.Addr, bool)

	// IsReady reports whether id is usable for Send right now (ready),
	// and whether id is known to this driver at all (known). A remote
	// still completing a handshake or TCP connect reports (false,
	// true); an id this driver never saw, or has since removed,
	// reports (false, false).
	IsReady(id api.ResourceID) (ready bool, known bool)

	// HandleEvent processes one readiness notification and invokes
	// emit zero or more times for the NetEvents it produces.
	HandleEvent(ev poll.Event, emit func(api.NetEvent))

	// Close tears down every resource owned by this driver.
	Close() error
}

// baseDriver bundles the bits every concrete driver needs: its
// transport tag, the shared poller, and separate id generators/
// registries for local (listening/bound) and remote (connected/
// accepted) resources, per the adapter-qualified resource id scheme.
type baseDriver struct {
	transport api.Transport
	poll      poll.Poll

	localGen  *api.ResourceIDGenerator
	remoteGen *api.ResourceIDGenerator
	locals    *registry
	remotes   *registry
}

func newBaseDriver(t api.Transport, p poll.Poll) baseDriver {
	return baseDriver{
		transport: t,
		poll:      p,
		localGen:  api.NewResourceIDGenerator(t.AdapterID(), api.ResourceLocal),
		remoteGen: api.NewResourceIDGenerator(t.AdapterID(), api.ResourceRemote),
		locals:    newRegistry(),
		remotes:   newRegistry(),
	}
}

func (b *baseDriver) Transport() api.Transport { return b.transport }

func (b *baseDriver) LocalAddr(id api.ResourceID) (net.Addr, bool) {
	reg := b.remotes
	if id.IsLocal() {
		reg = b.locals
	}
	res, ok := reg.get(id)
	if !ok {
		return nil, false
	}
	return res.addr, true
}

func (b *baseDriver) LocalBindAddr(id api.ResourceID) (net.Addr, bool) {
	res, ok := b.remotes.get(id)
	if !ok || res.bindAddr == nil {
		return nil, false
	}
	return res.bindAddr, true
}

// IsReady is the generic existence-and-not-closed check suitable for
// locals of every transport and for Udp remotes, which have no
// handshake phase. Tcp/FramedTcp/Ws remotes override this to also
// require connect/handshake completion.
func (b *baseDriver) IsReady(id api.ResourceID) (bool, bool) {
	reg := b.remotes
	if id.IsLocal() {
		reg = b.locals
	}
	res, ok := reg.get(id)
	if !ok {
		return false, false
	}
	return !res.closed, true
}

// closeAll closes every resource this driver owns, tolerating
// already-closed sockets, and is used by each adapter's Close.
func (b *baseDriver) closeAll() {
	for _, res := range b.remotes.all() {
		_ = b.poll.Deregister(res.fd)
		closeResource(res)
	}
	for _, res := range b.locals.all() {
		_ = b.poll.Deregister(res.fd)
		closeResource(res)
	}
}

// closeResource closes res's underlying fd exactly once. Callers that
// already took res out of its registry and deregistered it from the
// poller are responsible for both of those steps; closeResource only
// owns the final unix.Close. Takes writeMu first so a concurrent Send/
// drainBacklog from another goroutine cannot land a write on the fd
// after it has been closed and possibly reused by the kernel.
func closeResource(res *netResource) {
	res.writeMu.Lock()
	defer res.writeMu.Unlock()
	if res.closed {
		return
	}
	res.closed = true
	if res.fd != 0 {
		_ = unix.Close(res.fd)
	}
}
