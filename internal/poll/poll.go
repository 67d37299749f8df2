// File: internal/poll/poll.go
// Author: momentics <momentics@gmail.com>
//
// Poll is the abstract OS readiness primitive the engine multiplexes
// every transport over. Exactly one thread (the node's processor
// thread) calls Wait; Register/Reregister/Deregister may be called
// from any thread but must be serialized per id by the caller. The
// adapters do not hold their registry locks across these calls, and
// the epoll backend only guards its own id/fd tables with a mutex; it
// does not order calls made for the same id.

package poll

import "time"

type Interest uint8

const (
	InterestRead Interest = 1 << iota
	InterestWrite
)

func (i Interest) Readable() bool { return i&InterestRead != 0 }
func (i Interest) Writable() bool { return i&InterestWrite != 0 }

// Event reports which interests fired for a registered id.
type Event struct {
	ID       uint64
	Readable bool
	Writable bool
	Error    bool
}

// Poll registers raw file descriptors under a caller-chosen id and
// blocks until one or more are ready. Readiness is at-least-once per
// change; spurious wakeups are permitted.
type Poll interface {
	// Register starts watching fd for the given interests under id.
	Register(fd int, id uint64, interests Interest) error
	// Reregister changes the watched interests for an already
	// registered id.
	Reregister(fd int, id uint64, interests Interest) error
	// Deregister stops watching fd.
	Deregister(fd int) error
	// Wait blocks up to timeout (nil blocks indefinitely) and appends
	// ready events to dst, returning the extended slice.
	Wait(timeout *time.Duration, dst []Event) ([]Event, error)
	// Waker returns a handle that, when Wake is called from any
	// thread, causes the current or next Wait to return promptly.
	Waker() (Waker, error)
	// Close releases the underlying OS resource.
	Close() error
}

// Waker wakes a blocked Wait call from any thread.
type Waker interface {
	Wake() error
	Close() error
}
