// File: node/node.go
// Author: momentics <momentics@gmail.com>
//
// NodeEvent is the tagged union the fusion loop (ForEach/ForEachAsync)
// hands to the user callback: every network event and every delivered
// signal arrive through this single merged stream, grounded on the
// teacher's highlevel facade pattern of collapsing several event
// sources behind one callback shape.
package node

import "github.com/momentics/netcore/api"

type NodeEventKind int

const (
	NodeEventNetwork NodeEventKind = iota
	NodeEventSignal
)

func (k NodeEventKind) String() string {
	if k == NodeEventSignal {
		return "Signal"
	}
	return "Network"
}

// NodeEvent wraps either an api.NetEvent or an arbitrary signal payload.
// Accessing Network() on a signal event (or vice versa) panics: callers
// are expected to switch on Kind() first, matching Go's own tagged-union
// idiom elsewhere in the module (api.NetEvent, api.RemoteAddr).
type NodeEvent struct {
	kind    NodeEventKind
	network api.NetEvent
	signal  any
}

func NetworkEvent(ev api.NetEvent) NodeEvent {
	return NodeEvent{kind: NodeEventNetwork, network: ev}
}

func SignalEvent(v any) NodeEvent {
	return NodeEvent{kind: NodeEventSignal, signal: v}
}

func (e NodeEvent) Kind() NodeEventKind { return e.kind }

// Network returns the wrapped network event. Panics if Kind() != NodeEventNetwork.
func (e NodeEvent) Network() api.NetEvent {
	if e.kind != NodeEventNetwork {
		panic("node: Network called on a non-network NodeEvent")
	}
	return e.network
}

// Signal returns the wrapped signal payload. Panics if Kind() != NodeEventSignal.
func (e NodeEvent) Signal() any {
	if e.kind != NodeEventSignal {
		panic("node: Signal called on a non-signal NodeEvent")
	}
	return e.signal
}
