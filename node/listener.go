// File: node/listener.go
// Author: momentics <momentics@gmail.com>
//
// Listener is the event half of a node: it runs the single network
// processor goroutine and a signal-forwarder goroutine, merges their
// output into one NodeEvent stream, and hands that stream to the
// caller's callback through ForEach/ForEachAsync/Enqueue. Grounded on
// the teacher's reactor/epoll_reactor.go dispatch loop, generalized
// from "one fd, one callback" to "every fd plus the signal queue, one
// callback", and on the library's requirement that a Message event's
// payload stay valid only for the duration of the callback that
// receives it: the hand-off between the processor goroutine and the
// consumer blocks the processor on a per-event ack channel so the
// underlying pooled buffer is never reused while a callback still holds
// a borrow into it.
package node

import (
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/momentics/netcore/api"
	"github.com/momentics/netcore/internal/netcore"
	"github.com/momentics/netcore/internal/signal"
)

// enqueueBufferSize is the channel depth behind Listener.Enqueue; its
// callback copies every payload via api.NetEvent.Owned before pushing,
// so buffering here carries no zero-copy risk.
const enqueueBufferSize = 64

// handoffItem carries one network event from the processor goroutine to
// the fusion loop, plus the ack channel the processor blocks on so it
// never reuses the event's backing buffer until the consumer is done
// with it.
type handoffItem struct {
	ev   api.NetEvent
	done chan struct{}
}

// Listener is the consuming half of a node returned by Split. ForEach,
// ForEachAsync and Enqueue are mutually exclusive: call exactly one of
// them, exactly once, for the lifetime of a Listener.
type Listener struct {
	engine *netcore.Engine
	queue  *signal.Queue

	running func() bool
	stopCh  chan struct{}

	handoff  chan handoffItem
	signalCh chan any

	processorDone chan struct{}
	signalDone    chan struct{}

	// g supervises the processor and signal-forwarder goroutines as one
	// group, so Wait joins both.
	g *errgroup.Group
}

func newListener(engine *netcore.Engine, queue *signal.Queue, running func() bool, stopCh chan struct{}, cfg nodeConfig) *Listener {
	return &Listener{
		engine:        engine,
		queue:         queue,
		running:       running,
		stopCh:        stopCh,
		handoff:       make(chan handoffItem, cfg.handoffQueueDepth),
		signalCh:      make(chan any, cfg.handoffQueueDepth),
		processorDone: make(chan struct{}),
		signalDone:    make(chan struct{}),
		g:             new(errgroup.Group),
	}
}

// start launches the processor and signal-forwarder goroutines under
// the Listener's errgroup. Called once, from Split.
func (l *Listener) start() {
	l.g.Go(func() error {
		l.runProcessor()
		return nil
	})
	l.g.Go(func() error {
		l.runSignalForwarder()
		return nil
	})
}

// Wait blocks until both the processor and signal-forwarder goroutines
// have exited, which happens once Handler.Stop has been called and all
// due work has drained. Callers that need the background goroutines
// fully stopped before tearing down the engine (Handler.Close) should
// call this after Stop.
func (l *Listener) Wait() error { return l.g.Wait() }

func (l *Listener) runProcessor() {
	defer close(l.processorDone)
	defer close(l.handoff)
	var timeout time.Duration
	for l.running() {
		timeout = 200 * time.Millisecond
		err := l.engine.Poll(&timeout, func(ev api.NetEvent) {
			done := make(chan struct{})
			select {
			case l.handoff <- handoffItem{ev: ev, done: done}:
				<-done
			case <-l.stopCh:
				// Stop has been called and the fusion loop has not taken
				// this event; it is dropped rather than block the
				// processor forever.
			}
		})
		if err != nil {
			return
		}
	}
}

func (l *Listener) runSignalForwarder() {
	defer close(l.signalDone)
	defer close(l.signalCh)
	for {
		v, ok := l.queue.ReceiveOrClosed()
		if !ok {
			return
		}
		select {
		case l.signalCh <- v:
		case <-l.stopCh:
			return
		}
	}
}

// ForEach drives the node's fusion loop on the calling goroutine,
// invoking cb for every network event and every delivered signal until
// both the processor and signal-forwarder goroutines have exited, which
// happens once Handler.Stop has been called and all due work drained.
// It returns only then; there is no way for cb to abort the loop early
// short of calling Handler.Stop itself.
func (l *Listener) ForEach(cb func(NodeEvent)) {
	handoff := l.handoff
	signalCh := l.signalCh
	for handoff != nil || signalCh != nil {
		select {
		case item, ok := <-handoff:
			if !ok {
				handoff = nil
				continue
			}
			cb(NetworkEvent(item.ev))
			close(item.done)
		case v, ok := <-signalCh:
			if !ok {
				signalCh = nil
				continue
			}
			cb(SignalEvent(v))
		}
	}
}

// NodeTask wraps the goroutine ForEachAsync spawns.
type NodeTask struct {
	g *errgroup.Group
}

// Wait blocks until the fusion loop this task wraps has returned.
func (t *NodeTask) Wait() error { return t.g.Wait() }

// ForEachAsync runs ForEach on a new goroutine supervised by an
// errgroup.Group, returning immediately with a handle to wait on.
func (l *Listener) ForEachAsync(cb func(NodeEvent)) *NodeTask {
	var g errgroup.Group
	g.Go(func() error {
		l.ForEach(cb)
		return nil
	})
	return &NodeTask{g: &g}
}

// EnqueuedReceiver is the channel-backed alternative to a callback,
// returned by Enqueue. Every Message payload received through it has
// already been copied out of the adapter's pooled buffer (api.NetEvent.
// Owned), so it is safe to read from any goroutine, at any pace.
type EnqueuedReceiver struct {
	ch <-chan NodeEvent
}

// Recv receives the next event, or ok=false once the stream is
// exhausted (the node has fully stopped).
func (r *EnqueuedReceiver) Recv() (NodeEvent, bool) {
	ev, ok := <-r.ch
	return ev, ok
}

// Chan exposes the underlying channel for use in a select statement.
func (r *EnqueuedReceiver) Chan() <-chan NodeEvent { return r.ch }

// Enqueue runs the fusion loop internally on a supervised goroutine,
// copying every Message payload before it is ever exposed, and returns
// a channel-backed receiver plus the NodeTask for that goroutine. This
// is the appropriate choice when the consumer wants to interleave node
// events with other channel-based work via select, at the cost of the
// copy ForEach's direct callback avoids.
func (l *Listener) Enqueue() (*EnqueuedReceiver, *NodeTask) {
	ch := make(chan NodeEvent, enqueueBufferSize)
	var g errgroup.Group
	g.Go(func() error {
		defer close(ch)
		l.ForEach(func(ev NodeEvent) {
			if ev.Kind() == NodeEventNetwork {
				ev = NetworkEvent(ev.Network().Owned())
			}
			ch <- ev
		})
		return nil
	})
	return &EnqueuedReceiver{ch: ch}, &NodeTask{g: &g}
}
