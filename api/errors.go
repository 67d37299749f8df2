// File: api/errors.go
// Author: momentics <momentics@gmail.com>
//
// Structured error types shared by every adapter and by the node façade.

package api

import "fmt"

// ErrorKind enumerates the fatal-to-the-call-site error categories the
// engine can surface from listen/connect. Transient I/O errors
// (would-block, interrupted) never reach this type: they are retried
// internally by the owning adapter.
type ErrorKind int

const (
	ErrKindAddressResolution ErrorKind = iota
	ErrKindBindFailure
	ErrKindAcceptFailure
	ErrKindConnectFailure
	ErrKindDecode
	ErrKindResourceNotFound
	ErrKindResourceNotAvailable
	ErrKindMaxPacketSizeExceeded
)

func (k ErrorKind) String() string {
	switch k {
	case ErrKindAddressResolution:
		return "address_resolution"
	case ErrKindBindFailure:
		return "bind_failure"
	case ErrKindAcceptFailure:
		return "accept_failure"
	case ErrKindConnectFailure:
		return "connect_failure"
	case ErrKindDecode:
		return "decode"
	case ErrKindResourceNotFound:
		return "resource_not_found"
	case ErrKindResourceNotAvailable:
		return "resource_not_available"
	case ErrKindMaxPacketSizeExceeded:
		return "max_packet_size_exceeded"
	default:
		return "unknown"
	}
}

// Error is a structured error carrying a Kind alongside the usual
// wrapped cause, so callers can branch with errors.As without parsing
// message text.
type Error struct {
	Kind    ErrorKind
	Message string
	Cause   error
}

func NewError(kind ErrorKind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Cause }

// Is reports whether target is a sentinel for the same Kind, so
// errors.Is(err, api.ErrConnectFailure) matches any *Error produced by
// Wrap(ErrKindConnectFailure, ...) rather than only this exact value.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Kind == t.Kind
}

// Wrap returns a new Error of the given kind wrapping cause.
func Wrap(kind ErrorKind, message string, cause error) *Error {
	return &Error{Kind: kind, Message: message, Cause: cause}
}

// Sentinel errors for the common failure kinds, usable with
// errors.Is against any *Error this package or internal/netcore
// produces of the matching Kind.
var (
	ErrResourceNotFound      error = &Error{Kind: ErrKindResourceNotFound, Message: "resource not found"}
	ErrResourceNotAvailable  error = &Error{Kind: ErrKindResourceNotAvailable, Message: "resource not available"}
	ErrMaxPacketSizeExceeded error = &Error{Kind: ErrKindMaxPacketSizeExceeded, Message: "max packet size exceeded"}
	ErrAddressResolution     error = &Error{Kind: ErrKindAddressResolution, Message: "address resolution failed"}
	ErrConnectFailure        error = &Error{Kind: ErrKindConnectFailure, Message: "connect failed"}
)

// SendStatus is the outcome of a NetworkController.Send call. It is a
// value type, not an error: most send failures are expected operating
// conditions (peer gone, backlog full) rather than exceptional ones.
type SendStatus int

const (
	SendStatusSent SendStatus = iota
	SendStatusResourceNotFound
	SendStatusResourceNotAvailable
	SendStatusMaxPacketSizeExceeded
)

func (s SendStatus) String() string {
	switch s {
	case SendStatusSent:
		return "sent"
	case SendStatusResourceNotFound:
		return "resource_not_found"
	case SendStatusResourceNotAvailable:
		return "resource_not_available"
	case SendStatusMaxPacketSizeExceeded:
		return "max_packet_size_exceeded"
	default:
		return "unknown"
	}
}
