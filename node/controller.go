// File: node/controller.go
// Author: momentics <momentics@gmail.com>
//
// NetworkController is the thread-safe facade over internal/netcore.Engine
// handed out by Split, grounded on the teacher's client/client.go split
// between its synchronous ClientConfig-driven command methods and the
// asynchronous ConnEventHandler lifecycle callbacks (OnConnect/OnClose/
// OnError) registered separately. Every method here is safe to call from
// any goroutine: Send, Connect and Remove only ever touch the engine's
// per-resource registries and the per-remote write lock, never the
// processor thread's Poll call.
package node

import (
	"fmt"
	"net"
	"time"

	"github.com/momentics/netcore/api"
	"github.com/momentics/netcore/internal/netcore"
	"github.com/momentics/netcore/internal/signal"
)

// NetworkController is the synchronous half of a node's network surface.
type NetworkController struct {
	engine *netcore.Engine
}

func newNetworkController(e *netcore.Engine) *NetworkController {
	return &NetworkController{engine: e}
}

// Listen opens a local resource for transport t at addr with no extra
// socket configuration. addr may be a resolved net.Addr (api.Socket) or
// a textual host:port / ws(s):// URL (api.Str).
func (c *NetworkController) Listen(t api.Transport, addr api.RemoteAddr) (api.ResourceID, net.Addr, error) {
	return c.engine.Listen(t, addr)
}

// ListenWith opens a local resource using one of the per-transport
// configuration types in config.go.
func (c *NetworkController) ListenWith(cfg ListenConfig) (api.ResourceID, net.Addr, error) {
	switch v := cfg.(type) {
	case TCPListenConfig:
		switch v.Kind {
		case api.Tcp:
			return c.engine.ListenTCP(api.Str(v.Address), v.toOptions())
		case api.FramedTcp:
			return c.engine.ListenFramedTCP(api.Str(v.Address), v.toOptions())
		default:
			return 0, nil, fmt.Errorf("node: TCPListenConfig.Kind must be Tcp or FramedTcp, got %s", v.Kind)
		}
	case UDPListenConfig:
		return c.engine.ListenUDP(api.Str(v.Address), v.toOptions())
	case WSListenConfig:
		return c.engine.ListenWS(api.Str(v.Address), v.toOptions())
	default:
		return 0, nil, fmt.Errorf("node: unknown ListenConfig %T", cfg)
	}
}

// Connect opens a remote resource for transport t at addr with no extra
// socket configuration, returning its Endpoint and the local address
// the outbound socket bound to. For connection-oriented transports the
// connection is not yet established when this returns; completion
// arrives as a Connected NodeEvent from the fusion loop.
func (c *NetworkController) Connect(t api.Transport, addr api.RemoteAddr) (api.Endpoint, net.Addr, error) {
	id, err := c.engine.Connect(t, addr)
	if err != nil {
		return api.Endpoint{}, nil, err
	}
	peer, _ := c.engine.LocalAddr(id) // for a remote resource, the "local addr" table entry holds the peer address
	local, _ := c.engine.LocalBindAddr(id)
	return api.NewEndpoint(id, peer), local, nil
}

// ConnectWith opens a remote resource using one of the per-transport
// configuration types in config.go.
func (c *NetworkController) ConnectWith(cfg ConnectConfig) (api.Endpoint, net.Addr, error) {
	var id api.ResourceID
	var err error
	switch v := cfg.(type) {
	case TCPConnectConfig:
		switch v.Kind {
		case api.Tcp:
			id, err = c.engine.ConnectTCP(api.Str(v.Address), v.toOptions())
		case api.FramedTcp:
			id, err = c.engine.ConnectFramedTCP(api.Str(v.Address), v.toOptions())
		default:
			return api.Endpoint{}, nil, fmt.Errorf("node: TCPConnectConfig.Kind must be Tcp or FramedTcp, got %s", v.Kind)
		}
	case UDPConnectConfig:
		id, err = c.engine.ConnectUDP(api.Str(v.Address), v.toOptions())
	case WSConnectConfig:
		id, err = c.engine.ConnectWS(api.Str(v.Address), v.toOptions())
	default:
		return api.Endpoint{}, nil, fmt.Errorf("node: unknown ConnectConfig %T", cfg)
	}
	if err != nil {
		return api.Endpoint{}, nil, err
	}
	peer, _ := c.engine.LocalAddr(id)
	local, _ := c.engine.LocalBindAddr(id)
	return api.NewEndpoint(id, peer), local, nil
}

// defaultConnectSyncTimeout bounds how long ConnectSync polls IsReady
// before giving up and removing the half-open resource.
const defaultConnectSyncTimeout = 30 * time.Second

// ConnectSync blocks until the outcome of a Connect is known (ready, or
// the resource vanished) or defaultConnectSyncTimeout elapses. It works
// by polling IsReady, which for connection-oriented transports only
// flips true after the handshake (Tcp/FramedTcp: TCP connect; Ws: the
// opening handshake) completes.
func (c *NetworkController) ConnectSync(t api.Transport, addr api.RemoteAddr) (api.Endpoint, net.Addr, error) {
	endpoint, local, err := c.Connect(t, addr)
	if err != nil {
		return api.Endpoint{}, nil, err
	}
	deadline := time.Now().Add(defaultConnectSyncTimeout)
	for {
		ready, known := c.engine.IsReady(endpoint.ResourceID())
		if !known {
			return api.Endpoint{}, nil, api.Wrap(api.ErrKindResourceNotFound, "connect sync", fmt.Errorf("resource vanished before completing"))
		}
		if ready {
			return endpoint, local, nil
		}
		if time.Now().After(deadline) {
			c.engine.Remove(endpoint.ResourceID())
			return api.Endpoint{}, nil, api.Wrap(api.ErrKindConnectFailure, "connect sync", fmt.Errorf("timed out after %s", defaultConnectSyncTimeout))
		}
		time.Sleep(time.Millisecond)
	}
}

// Send enqueues data for e's resource. It never blocks.
func (c *NetworkController) Send(e api.Endpoint, data []byte) api.SendStatus {
	return c.engine.Send(e.ResourceID(), data)
}

// Remove closes and forgets id.
func (c *NetworkController) Remove(id api.ResourceID) bool {
	return c.engine.Remove(id)
}

// IsReady reports whether id is currently usable for Send.
func (c *NetworkController) IsReady(id api.ResourceID) (ready bool, known bool) {
	return c.engine.IsReady(id)
}

// LocalAddr returns the address bound to id.
func (c *NetworkController) LocalAddr(id api.ResourceID) (net.Addr, bool) {
	return c.engine.LocalAddr(id)
}

// SignalSender is the thread-safe facade over internal/signal.Queue
// handed out by Split. The queue's own timer lane is grounded on
// internal/concurrency/scheduler.go's container/heap-backed timerQ;
// SignalSender itself is original design, since the teacher's scheduler
// is driven directly rather than through a separate sender facade.
type SignalSender struct {
	queue *signal.Queue
}

func newSignalSender(q *signal.Queue) *SignalSender {
	return &SignalSender{queue: q}
}

type TimerID = signal.TimerID

// Send enqueues v for immediate, normal-priority, FIFO delivery.
func (s *SignalSender) Send(v any) { s.queue.Send(v) }

// SendWithPriority enqueues v for immediate, high-priority delivery.
func (s *SignalSender) SendWithPriority(v any) { s.queue.SendWithPriority(v) }

// SendWithTimer enqueues v for delivery no earlier than now+dur.
func (s *SignalSender) SendWithTimer(v any, dur time.Duration) TimerID {
	return s.queue.SendWithTimer(v, dur)
}

// Cancel removes a pending timed signal scheduled via SendWithTimer.
func (s *SignalSender) Cancel(id TimerID) bool { return s.queue.Cancel(id) }
