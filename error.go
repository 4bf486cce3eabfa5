package asock

import (
	"errors"
	"fmt"
)

var (
	ErrClosedPermanently = errors.New("asock: client is closed permanently")
	ErrNotConnected      = errors.New("asock: not connected")
)

// An inbound frame that couldn't be decoded. The frame is dropped.
type FrameError struct {
	Data []byte
	err  error
}

func (e *FrameError) Error() string {
	return "asock: malformed frame: " + e.err.Error()
}

func (e *FrameError) Unwrap() error { return e.err }

// A subscriber that failed while handling an event.
// This covers decoding the payload, a returned error and a panic.
type HandlerError struct {
	Event string
	err   error
}

func (e *HandlerError) Error() string {
	return fmt.Sprintf("asock: handler for event `%s` failed: %s", e.Event, e.err)
}

func (e *HandlerError) Unwrap() error { return e.err }

// Closing the transport failed during Disconnect.
// The client is closed regardless.
type DisconnectError struct {
	err error
}

func (e *DisconnectError) Error() string {
	return "asock: disconnect: " + e.err.Error()
}

func (e *DisconnectError) Unwrap() error { return e.err }

func recoveredError(r any) error {
	if err, ok := r.(error); ok {
		return err
	}
	return fmt.Errorf("panic: %v", r)
}
