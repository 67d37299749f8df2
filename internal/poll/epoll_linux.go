//go:build linux

// File: internal/poll/epoll_linux.go
// Author: momentics <momentics@gmail.com>
//
// Linux epoll implementation of Poll, grounded on the teacher's
// syscall-level epoll reactor: epoll_create1/epoll_ctl/epoll_wait via
// golang.org/x/sys/unix instead of raw syscall numbers, with an
// eventfd-backed Waker for cross-thread wakeups.

package poll

import (
	"fmt"
	"sync"
	"time"

	"golang.org/x/sys/unix"
)

const maxEpollEvents = 256

type epollPoll struct {
	epfd int

	mu     sync.Mutex
	fds    map[uint64]int // id -> fd, for Deregister's EPOLL_CTL_DEL call
	idByFD map[int]uint64 // fd -> id, since a ResourceID does not fit in the kernel event's Pad word
	raw    []unix.EpollEvent
	waker  *eventfdWaker
}

func New() (Poll, error) {
	epfd, err := unix.EpollCreate1(0)
	if err != nil {
		return nil, fmt.Errorf("epoll_create1: %w", err)
	}
	p := &epollPoll{
		epfd:   epfd,
		fds:    make(map[uint64]int),
		idByFD: make(map[int]uint64),
		raw:    make([]unix.EpollEvent, maxEpollEvents),
	}
	w, err := newEventfdWaker(epfd)
	if err != nil {
		unix.Close(epfd)
		return nil, err
	}
	p.waker = w
	return p, nil
}

func interestsToEvents(i Interest) uint32 {
	var ev uint32
	if i.Readable() {
		ev |= unix.EPOLLIN
	}
	if i.Writable() {
		ev |= unix.EPOLLOUT
	}
	return ev
}

func (p *epollPoll) Register(fd int, id uint64, interests Interest) error {
	ev := unix.EpollEvent{Events: interestsToEvents(interests), Fd: int32(fd)}
	if err := unix.EpollCtl(p.epfd, unix.EPOLL_CTL_ADD, fd, &ev); err != nil {
		return fmt.Errorf("epoll_ctl add: %w", err)
	}
	p.mu.Lock()
	p.fds[id] = fd
	p.idByFD[fd] = id
	p.mu.Unlock()
	return nil
}

func (p *epollPoll) Reregister(fd int, id uint64, interests Interest) error {
	ev := unix.EpollEvent{Events: interestsToEvents(interests), Fd: int32(fd)}
	if err := unix.EpollCtl(p.epfd, unix.EPOLL_CTL_MOD, fd, &ev); err != nil {
		return fmt.Errorf("epoll_ctl mod: %w", err)
	}
	return nil
}

func (p *epollPoll) Deregister(fd int) error {
	if err := unix.EpollCtl(p.epfd, unix.EPOLL_CTL_DEL, fd, nil); err != nil {
		return fmt.Errorf("epoll_ctl del: %w", err)
	}
	p.mu.Lock()
	if id, ok := p.idByFD[fd]; ok {
		delete(p.fds, id)
		delete(p.idByFD, fd)
	}
	p.mu.Unlock()
	return nil
}

func (p *epollPoll) Wait(timeout *time.Duration, dst []Event) ([]Event, error) {
	timeoutMs := -1
	if timeout != nil {
		timeoutMs = int(timeout.Milliseconds())
		if timeoutMs < 0 {
			timeoutMs = 0
		}
	}

	for {
		n, err := unix.EpollWait(p.epfd, p.raw, timeoutMs)
		if err != nil {
			if err == unix.EINTR {
				continue
			}
			return dst, fmt.Errorf("epoll_wait: %w", err)
		}
		for i := 0; i < n; i++ {
			raw := p.raw[i]
			if raw.Fd == int32(p.waker.readFD) {
				p.waker.drain()
				continue
			}
			p.mu.Lock()
			id, ok := p.idByFD[int(raw.Fd)]
			p.mu.Unlock()
			if !ok {
				continue // already deregistered; a stale event from before EPOLL_CTL_DEL
			}
			dst = append(dst, Event{
				ID:       id,
				Readable: raw.Events&(unix.EPOLLIN|unix.EPOLLHUP|unix.EPOLLERR) != 0,
				Writable: raw.Events&unix.EPOLLOUT != 0,
				Error:    raw.Events&(unix.EPOLLERR|unix.EPOLLHUP) != 0,
			})
		}
		return dst, nil
	}
}

func (p *epollPoll) Waker() (Waker, error) {
	return p.waker, nil
}

func (p *epollPoll) Close() error {
	p.waker.Close()
	return unix.Close(p.epfd)
}

// eventfdWaker wakes a blocked epoll_wait by registering an eventfd
// for read readiness and writing to it from another thread.
type eventfdWaker struct {
	readFD int
}

func newEventfdWaker(epfd int) (*eventfdWaker, error) {
	fd, err := unix.Eventfd(0, unix.EFD_NONBLOCK|unix.EFD_CLOEXEC)
	if err != nil {
		return nil, fmt.Errorf("eventfd: %w", err)
	}
	ev := unix.EpollEvent{Events: unix.EPOLLIN, Fd: int32(fd)}
	if err := unix.EpollCtl(epfd, unix.EPOLL_CTL_ADD, fd, &ev); err != nil {
		unix.Close(fd)
		return nil, fmt.Errorf("epoll_ctl add waker: %w", err)
	}
	return &eventfdWaker{readFD: fd}, nil
}

func (w *eventfdWaker) Wake() error {
	buf := [8]byte{1, 0, 0, 0, 0, 0, 0, 0}
	_, err := unix.Write(w.readFD, buf[:])
	if err != nil && err != unix.EAGAIN {
		return err
	}
	return nil
}

func (w *eventfdWaker) drain() {
	var buf [8]byte
	for {
		_, err := unix.Read(w.readFD, buf[:])
		if err != nil {
			return
		}
	}
}

func (w *eventfdWaker) Close() error {
	return unix.Close(w.readFD)
}
