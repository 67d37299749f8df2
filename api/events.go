// File: api/events.go
// Author: momentics <momentics@gmail.com>
//
// NetEvent is the tagged variant of network lifecycle and data events
// surfaced to the user callback. Message carries a borrow into the
// owning adapter's internal decode buffer: it is valid only for the
// duration of the callback invocation. Callers that need to keep the
// bytes past the callback must copy them (see NetEvent.Owned) or use the
// owned-bytes Listener.Enqueue mode.

package api

type NetEventKind int

const (
	EventConnected NetEventKind = iota
	EventAccepted
	EventMessage
	EventDisconnected
)

func (k NetEventKind) String() string {
	switch k {
	case EventConnected:
		return "Connected"
	case EventAccepted:
		return "Accepted"
	case EventMessage:
		return "Message"
	case EventDisconnected:
		return "Disconnected"
	default:
		return "Unknown"
	}
}

type NetEvent struct {
	kind     NetEventKind
	endpoint Endpoint
	ok       bool
	listener ResourceID
	data     []byte
}

func ConnectedEvent(e Endpoint, ok bool) NetEvent {
	return NetEvent{kind: EventConnected, endpoint: e, ok: ok}
}

func AcceptedEvent(e Endpoint, listener ResourceID) NetEvent {
	return NetEvent{kind: EventAccepted, endpoint: e, listener: listener}
}

func MessageEvent(e Endpoint, data []byte) NetEvent {
	return NetEvent{kind: EventMessage, endpoint: e, data: data}
}

func DisconnectedEvent(e Endpoint) NetEvent {
	return NetEvent{kind: EventDisconnected, endpoint: e}
}

func (ev NetEvent) Kind() NetEventKind   { return ev.kind }
func (ev NetEvent) Endpoint() Endpoint   { return ev.endpoint }
func (ev NetEvent) Ok() bool             { return ev.ok }
func (ev NetEvent) Listener() ResourceID { return ev.listener }
func (ev NetEvent) Data() []byte         { return ev.data }

// Owned returns a copy of the event with Message data detached from
// the adapter's buffer, safe to keep past the callback that received it.
func (ev NetEvent) Owned() NetEvent {
	if ev.kind != EventMessage || ev.data == nil {
		return ev
	}
	owned := make([]byte, len(ev.data))
	copy(owned, ev.data)
	ev.data = owned
	return ev
}
