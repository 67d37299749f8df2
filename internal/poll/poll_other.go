//go:build !linux

// File: internal/poll/poll_other.go
// Author: momentics <momentics@gmail.com>
//
// Stub for platforms without an epoll-based Poll implementation. The
// engine's poll primitive is deliberately abstract (spec §1 scope); a
// kqueue/IOCP backend belongs here following the same interface.

package poll

import "errors"

func New() (Poll, error) {
	return nil, errors.New("poll: this platform is not supported")
}
