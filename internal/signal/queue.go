// File: internal/signal/queue.go
// Author: momentics <momentics@gmail.com>
//
// Priority- and time-ordered signal queue. Grounded on the timer-heap
// idiom used for event-loop scheduling (a container/heap min-heap keyed
// by deadline, as in the loop's timerHeap) combined with the FIFO lane
// the teacher's go.mod declares but never wires: github.com/eapache/queue
// backs the normal-priority immediate lane here, since it is a ring
// buffer purpose-built for FIFO drain without per-push heap overhead.
//
// Entries due "now" bypass the heap entirely: the normal-priority lane
// is the eapache/queue ring buffer (true FIFO), while the high-priority
// lane is a plain slice used as a stack (LIFO pop from the back) since
// eapache/queue only supports front removal. Only entries with a
// future deadline go through the min-heap.
package signal

import (
	"container/heap"
	"sync"
	"time"

	equeue "github.com/eapache/queue"
)

type Priority int

const (
	PriorityNormal Priority = iota
	PriorityHigh
)

// TimerID identifies a pending timed signal for cancellation.
type TimerID uint64

// entry is the internal representation of one queued signal.
type entry struct {
	deadline time.Time
	priority Priority
	seq      uint64
	timerID  TimerID
	payload  any
	index    int // position in the heap, maintained by heap.Interface
}

// timerHeap is a min-heap ordered by deadline, then by the same
// priority/seq tie-break rule the immediate lanes use.
type timerHeap []*entry

func (h timerHeap) Len() int { return len(h) }

func (h timerHeap) Less(i, j int) bool {
	if !h[i].deadline.Equal(h[j].deadline) {
		return h[i].deadline.Before(h[j].deadline)
	}
	return lessTieBreak(h[i], h[j])
}

func lessTieBreak(a, b *entry) bool {
	if a.priority != b.priority {
		return a.priority == PriorityHigh // high sorts before normal
	}
	if a.priority == PriorityHigh {
		return a.seq > b.seq // LIFO within high
	}
	return a.seq < b.seq // FIFO within normal
}

func (h timerHeap) Swap(i, j int) {
	h[i], h[j] = h[j], h[i]
	h[i].index = i
	h[j].index = j
}

func (h *timerHeap) Push(x any) {
	e := x.(*entry)
	e.index = len(*h)
	*h = append(*h, e)
}

func (h *timerHeap) Pop() any {
	old := *h
	n := len(old)
	e := old[n-1]
	old[n-1] = nil
	*h = old[:n-1]
	e.index = -1
	return e
}

// Queue is a synchronized, priority- and time-ordered queue of
// user-defined signals. The zero value is not usable; construct with
// New.
type Queue struct {
	mu   sync.Mutex
	cond *sync.Cond

	normalDue *equeue.Queue // FIFO lane for due/normal signals
	highDue   []*entry      // LIFO lane for due/high signals (back = newest = next out)
	timers    timerHeap
	byTimer   map[TimerID]*entry

	nextSeq   uint64
	nextTimer uint64
	closed    bool
}

func New() *Queue {
	q := &Queue{byTimer: make(map[TimerID]*entry), normalDue: equeue.New()}
	q.cond = sync.NewCond(&q.mu)
	return q
}

func (q *Queue) allocSeq() uint64 {
	q.nextSeq++
	return q.nextSeq
}

// Send enqueues v for immediate, normal-priority, FIFO delivery.
func (q *Queue) Send(v any) {
	q.mu.Lock()
	e := &entry{deadline: time.Time{}, priority: PriorityNormal, seq: q.allocSeq(), payload: v}
	q.normalDue.Add(e)
	q.mu.Unlock()
	q.cond.Signal()
}

// SendWithPriority enqueues v for immediate, high-priority delivery.
// Successive high-priority sends are delivered most-recent-first.
func (q *Queue) SendWithPriority(v any) {
	q.mu.Lock()
	e := &entry{deadline: time.Time{}, priority: PriorityHigh, seq: q.allocSeq(), payload: v}
	q.highDue = append(q.highDue, e)
	q.mu.Unlock()
	q.cond.Signal()
}

// SendWithTimer enqueues v for delivery no earlier than now+dur. The
// returned TimerID can be passed to Cancel while the signal is still
// pending.
func (q *Queue) SendWithTimer(v any, dur time.Duration) TimerID {
	q.mu.Lock()
	q.nextTimer++
	id := TimerID(q.nextTimer)
	e := &entry{
		deadline: time.Now().Add(dur),
		priority: PriorityNormal,
		seq:      q.allocSeq(),
		timerID:  id,
		payload:  v,
	}
	heap.Push(&q.timers, e)
	q.byTimer[id] = e
	q.mu.Unlock()
	q.cond.Signal()
	return id
}

// Cancel removes a pending timed signal. It returns true iff the
// signal was still in the timer heap. Once its deadline has passed and
// a receive call has moved it to the due lane, Cancel returns false and
// does not remove it, even if it has not been handed out yet.
func (q *Queue) Cancel(id TimerID) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	e, ok := q.byTimer[id]
	if !ok {
		return false
	}
	delete(q.byTimer, id)
	heap.Remove(&q.timers, e.index)
	return true
}

// promoteDueTimers moves any timer entries whose deadline has arrived
// into the immediate lanes. Must be called with q.mu held.
func (q *Queue) promoteDueTimers(now time.Time) {
	for len(q.timers) > 0 && !q.timers[0].deadline.After(now) {
		e := heap.Pop(&q.timers).(*entry)
		delete(q.byTimer, e.timerID)
		if e.priority == PriorityHigh {
			q.highDue = append(q.highDue, e)
		} else {
			q.normalDue.Add(e)
		}
	}
}

// popDue pops the next ready entry (high before normal), or nil if
// none is due. Must be called with q.mu held.
func (q *Queue) popDue() *entry {
	if n := len(q.highDue); n > 0 {
		e := q.highDue[n-1]
		q.highDue = q.highDue[:n-1]
		return e
	}
	if q.normalDue.Length() > 0 {
		return q.normalDue.Remove().(*entry)
	}
	return nil
}

// Close wakes every blocked ReceiveOrClosed call. It does not discard
// pending entries: callers that want every due entry delivered first
// should keep calling ReceiveOrClosed until it reports ok=false.
func (q *Queue) Close() {
	q.mu.Lock()
	q.closed = true
	q.mu.Unlock()
	q.cond.Broadcast()
}

// ReceiveOrClosed behaves like Receive, except it also gives up and
// returns ok=false once Close has been called and nothing is currently
// due — it still drains every due (including just-expired-timer) entry
// first, so a shutdown never silently drops a signal that was already
// ready to fire.
func (q *Queue) ReceiveOrClosed() (v any, ok bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	for {
		now := time.Now()
		q.promoteDueTimers(now)
		if e := q.popDue(); e != nil {
			return e.payload, true
		}
		if q.closed {
			return nil, false
		}
		if len(q.timers) == 0 {
			q.cond.Wait()
			continue
		}
		wait := q.timers[0].deadline.Sub(now)
		if wait <= 0 {
			continue
		}
		q.waitOrTimeout(wait)
	}
}

// Receive blocks until a signal is due and returns its payload. If the
// earliest pending timer is in the future, Receive sleeps up to that
// duration or until a new entry is enqueued.
func (q *Queue) Receive() any {
	q.mu.Lock()
	defer q.mu.Unlock()
	for {
		now := time.Now()
		q.promoteDueTimers(now)
		if e := q.popDue(); e != nil {
			return e.payload
		}
		if len(q.timers) == 0 {
			q.cond.Wait()
			continue
		}
		wait := q.timers[0].deadline.Sub(now)
		if wait <= 0 {
			continue
		}
		q.waitOrTimeout(wait)
	}
}

// ReceiveTimeout behaves like Receive but gives up after timeout,
// returning (nil, false) if nothing became due in time.
func (q *Queue) ReceiveTimeout(timeout time.Duration) (any, bool) {
	deadline := time.Now().Add(timeout)
	q.mu.Lock()
	defer q.mu.Unlock()
	for {
		now := time.Now()
		q.promoteDueTimers(now)
		if e := q.popDue(); e != nil {
			return e.payload, true
		}
		remaining := deadline.Sub(now)
		if remaining <= 0 {
			return nil, false
		}
		wait := remaining
		if len(q.timers) > 0 {
			if untilTimer := q.timers[0].deadline.Sub(now); untilTimer < wait {
				wait = untilTimer
			}
		}
		if wait <= 0 {
			continue
		}
		q.waitOrTimeout(wait)
	}
}

// TryReceive returns the next due signal without blocking.
func (q *Queue) TryReceive() (any, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.promoteDueTimers(time.Now())
	if e := q.popDue(); e != nil {
		return e.payload, true
	}
	return nil, false
}

// waitOrTimeout sleeps up to d on q.cond, waking early if anything is
// signalled in the meantime. Must be called with q.mu held; re-takes
// the lock before returning, matching sync.Cond.Wait's contract.
func (q *Queue) waitOrTimeout(d time.Duration) {
	woken := make(chan struct{}, 1)
	timer := time.AfterFunc(d, func() {
		q.mu.Lock()
		woken <- struct{}{}
		q.cond.Signal()
		q.mu.Unlock()
	})
	defer timer.Stop()
	q.cond.Wait()
	select {
	case <-woken:
	default:
	}
}
