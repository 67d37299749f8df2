// File: node/handler.go
// Author: momentics <momentics@gmail.com>
//
// Handler is the control half of a node: it owns the engine and signal
// queue, supervises the processor and signal-forwarder goroutines, and
// can stop both. After Stop the processor hands no further network
// events to the fusion loop; an event it is emitting at that moment is
// dropped unless the fusion loop takes it first.
// Grounded on the teacher's facade/hioload.go HioloadWS.Start/Stop pair,
// generalized from one fixed facade owning its own reactor to the split
// Handler/Listener/NetworkController shape this module's external
// interface calls for.
package node

import (
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/momentics/netcore/internal/netcore"
	"github.com/momentics/netcore/internal/signal"
)

// Handler is the lifecycle and command surface of a node. The zero
// value is not usable; construct with Split.
type Handler struct {
	engine *netcore.Engine
	queue  *signal.Queue

	network *NetworkController
	signals *SignalSender

	running  atomic.Bool
	stopOnce sync.Once
	stopCh   chan struct{}
}

// Split creates a new node's engine and signal queue, starts its
// background processor and signal-forwarder goroutines, and returns the
// command half (Handler) and the event half (Listener) separately, so a
// caller can hand Listener to a dedicated consuming goroutine while
// keeping Handler (Listen/Connect/Send/Stop) on whichever goroutines
// issue commands.
func Split(opts ...NodeOption) (*Handler, *Listener, error) {
	cfg := defaultNodeConfig()
	for _, opt := range opts {
		opt(&cfg)
	}

	engine, err := netcore.NewEngine()
	if err != nil {
		return nil, nil, fmt.Errorf("node: creating engine: %w", err)
	}
	queue := signal.New()

	h := &Handler{
		engine:  engine,
		queue:   queue,
		network: newNetworkController(engine),
		signals: newSignalSender(queue),
		stopCh:  make(chan struct{}),
	}
	h.running.Store(true)

	l := newListener(engine, queue, h.running.Load, h.stopCh, cfg)
	l.start()

	return h, l, nil
}

// Network returns the node's synchronous network command surface.
func (h *Handler) Network() *NetworkController { return h.network }

// Signals returns the node's signal-sending surface.
func (h *Handler) Signals() *SignalSender { return h.signals }

// IsRunning reports whether the node's processor is still expected to
// be delivering events. It flips to false as soon as Stop is called,
// even though the processor and signal-forwarder goroutines may still
// be draining already-due work for a moment afterward.
func (h *Handler) IsRunning() bool { return h.running.Load() }

// Stop requests a graceful shutdown: the processor thread's next Poll
// wakes immediately (engine.Wake), and the signal queue's blocked
// Receive is interrupted (queue.Close) only after delivering every
// entry that was already due. Stop does not wait for the fusion loop
// (ForEach/ForEachAsync) to observe the shutdown and return; callers
// that need that should Wait on the NodeTask returned by ForEachAsync.
// Safe to call more than once or concurrently with itself.
func (h *Handler) Stop() {
	h.stopOnce.Do(func() {
		h.running.Store(false)
		close(h.stopCh)
		_ = h.engine.Wake()
		h.queue.Close()
	})
}

// Close tears down the engine after the processor goroutine has
// returned. Callers should Stop, then Wait on the Listener itself (and
// on the NodeTask returned by ForEachAsync/Enqueue, if used), then
// Close.
func (h *Handler) Close() error {
	return h.engine.Close()
}
