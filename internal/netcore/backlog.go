// File: internal/netcore/backlog.go
// Author: momentics <momentics@gmail.com>
//
// writeBacklog buffers outbound bytes that the kernel socket buffer
// could not absorb in one non-blocking write. It is drained on the
// resource's next writable-readiness notification. Grounded on the
// same eapache/queue ring buffer used by the signal queue's FIFO lane
// (internal/signal/queue.go) — here applied to pending write chunks
// instead of user signals.
package netcore

import equeue "github.com/eapache/queue"

// maxBacklogBytes is the adapter-defined soft bound on buffered-but-
// unwritten bytes per resource. Once a resource's backlog has reached
// this, Send stops accepting more data for it and reports
// ResourceNotAvailable rather than let an unresponsive peer grow the
// backlog without limit.
const maxBacklogBytes = 4 << 20

// writeBacklog is a FIFO of not-yet-fully-written byte chunks for one
// resource. It has no lock of its own: Send (from any goroutine) and
// drainBacklog (on the processor thread) reach it under the owning
// netResource's writeMu.
type writeBacklog struct {
	q     *equeue.Queue
	bytes int
}

func newWriteBacklog() *writeBacklog {
	return &writeBacklog{q: equeue.New()}
}

func (b *writeBacklog) empty() bool { return b.q.Length() == 0 }

// full reports whether the queued bytes have reached maxBacklogBytes.
// The chunk that crosses the bound is still accepted, so the backlog
// can exceed it by up to one chunk.
func (b *writeBacklog) full() bool { return b.bytes >= maxBacklogBytes }

func (b *writeBacklog) push(chunk []byte) {
	b.q.Add(chunk)
	b.bytes += len(chunk)
}

// pushFront re-queues a partially-written chunk so it is retried before
// anything enqueued after it.
func (b *writeBacklog) pushFront(chunk []byte) {
	tmp := make([]any, 0, b.q.Length())
	for b.q.Length() > 0 {
		tmp = append(tmp, b.q.Remove())
	}
	b.q.Add(chunk)
	b.bytes += len(chunk)
	for _, v := range tmp {
		b.q.Add(v)
	}
}

func (b *writeBacklog) pop() ([]byte, bool) {
	if b.q.Length() == 0 {
		return nil, false
	}
	chunk := b.q.Remove().([]byte)
	b.bytes -= len(chunk)
	return chunk, true
}
