package adapter

import "errors"

// Domain errors shared by all backend adapters.
//
// These errors can be checked using errors.Is():
//
//	if errors.Is(err, adapter.ErrTimeout) {
//	    // backend did not respond in time
//	}
var (
	// ErrNotConnected is returned when an operation is attempted
	// before Connect or after Close.
	ErrNotConnected = errors.New("adapter: not connected")

	// ErrTimeout is returned when the backend does not respond within
	// the context deadline.
	ErrTimeout = errors.New("adapter: operation timed out")

	// ErrRejected is returned when the backend actively refuses a
	// command (exception response, negative acknowledgement).
	ErrRejected = errors.New("adapter: command rejected")

	// ErrDisconnected is returned when the connection is lost during
	// an operation.
	ErrDisconnected = errors.New("adapter: connection lost")

	// ErrUnknownDevice is returned when a reference does not resolve
	// on the backend.
	ErrUnknownDevice = errors.New("adapter: unknown device")
)
