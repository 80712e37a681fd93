package tea

import (
	"errors"
	"strconv"
)

var (
	// ErrInvalidHandleType is returned when input or output is not a
	// terminal.
	ErrInvalidHandleType = errors.New("invalid handle type")

	// ErrProtocol is returned when the terminal does not answer the cursor
	// position query with a well-formed report.
	ErrProtocol = errors.New("protocol error")

	// ErrIO wraps read and write failures while running.
	ErrIO = errors.New("i/o error")

	// ErrAllocation marks resource exhaustion. It is never recoverable.
	ErrAllocation = errors.New("allocation failure")

	// ErrSubscriptionsSealed is returned when subscribing after Run began.
	ErrSubscriptionsSealed = errors.New("subscriptions are sealed once the program runs")
)

// ErrorKind is the error taxonomy used by ErrorMsg.
type ErrorKind int

const (
	UnknownError ErrorKind = iota
	InvalidHandleType
	ProtocolError
	IOError
	AllocationFailure
)

func (k ErrorKind) String() string {
	switch k {
	case InvalidHandleType:
		return "InvalidHandleType"
	case ProtocolError:
		return "ProtocolError"
	case IOError:
		return "IOError"
	case AllocationFailure:
		return "AllocationFailure"
	case UnknownError:
		return "Unknown"
	default:
		return "ErrorKind(" + strconv.Itoa(int(k)) + ")"
	}
}

// Fatal reports whether errors of this kind cannot be recovered from.
func (k ErrorKind) Fatal() bool {
	return k == InvalidHandleType || k == ProtocolError || k == AllocationFailure
}

// KindOf classifies err by the sentinel it wraps.
func KindOf(err error) ErrorKind {
	switch {
	case errors.Is(err, ErrInvalidHandleType):
		return InvalidHandleType
	case errors.Is(err, ErrProtocol):
		return ProtocolError
	case errors.Is(err, ErrIO):
		return IOError
	case errors.Is(err, ErrAllocation):
		return AllocationFailure
	default:
		return UnknownError
	}
}
