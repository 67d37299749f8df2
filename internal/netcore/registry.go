// File: internal/netcore/registry.go
// Author: momentics <momentics@gmail.com>
//
// Per-adapter resource registry: maps ResourceIDs to the live kernel
// resource (a *netResource) behind them. Grounded on the teacher's
// transport/tcp/listener.go connection table, generalized to cover
// both local (listening/bound) and remote (connected/accepted)
// resources. Each adapter keeps two registries, one for locals and one
// for remotes, and each registry guards its map with its own RWMutex;
// there is no single lock spanning both registries of an adapter.
package netcore

import (
	"net"
	"sync"

	"github.com/momentics/netcore/api"
)

// netResource is the engine-private record behind a ResourceID: the
// raw fd the poller watches and per-resource decode/backlog state.
// Every adapter drives its socket directly through unix syscalls, so
// no net.Conn/net.Listener is kept here.
//
// writeMu is the per-remote write lock the concurrency model calls
// for: Send may be called from any goroutine, while the processor
// thread drains the same resource's backlog on writable readiness.
// writeMu serializes "check backlog, maybe write, else enqueue" across
// both paths so concurrent sends on one remote never interleave bytes
// on its fd; it is never held across a send on a different resource,
// so unrelated remotes never contend.
type netResource struct {
	id   api.ResourceID
	addr net.Addr
	fd   int

	// bindAddr is the local address an outbound Connect bound to (the
	// ephemeral port the kernel picked), distinct from addr which for
	// a remote holds the peer's address. Unset for locals, where addr
	// already is the bound address.
	bindAddr net.Addr

	writeMu sync.Mutex

	decoder frameDecoder // FramedTcp only
	wsCodec *wsConnState // Ws only
	backlog *writeBacklog
	ownerID api.ResourceID // for remotes accepted on a listener, the listener's id

	closed    bool
	connected bool // Tcp/FramedTcp outbound remotes: Connected event already emitted; Udp remotes: a dedicated connect(2)'d socket
}

func (r *netResource) connectedEmitted() bool { return r.connected }
func (r *netResource) markConnected()         { r.connected = true }

// registry holds every live resource for a single adapter.
type registry struct {
	mu    sync.RWMutex
	byID  map[api.ResourceID]*netResource
	byFD  map[int]api.ResourceID
}

func newRegistry() *registry {
	return &registry{
		byID: make(map[api.ResourceID]*netResource),
		byFD: make(map[int]api.ResourceID),
	}
}

func (r *registry) put(res *netResource) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.byID[res.id] = res
	if res.fd != 0 {
		r.byFD[res.fd] = res.id
	}
}

func (r *registry) get(id api.ResourceID) (*netResource, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	res, ok := r.byID[id]
	return res, ok
}

func (r *registry) getByFD(fd int) (*netResource, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	id, ok := r.byFD[fd]
	if !ok {
		return nil, false
	}
	res := r.byID[id]
	return res, res != nil
}

func (r *registry) remove(id api.ResourceID) (*netResource, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	res, ok := r.byID[id]
	if !ok {
		return nil, false
	}
	delete(r.byID, id)
	delete(r.byFD, res.fd)
	return res, true
}

// all returns a snapshot of every resource currently registered,
// used by shutdown to close remaining sockets.
func (r *registry) all() []*netResource {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*netResource, 0, len(r.byID))
	for _, res := range r.byID {
		out = append(out, res)
	}
	return out
}
