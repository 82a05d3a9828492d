package engine

import "errors"

// Command errors surfaced to SetDevice/ToggleDevice callers. The cache
// is never modified when one of these is returned.
//
// These errors can be checked using errors.Is():
//
//	if errors.Is(err, engine.ErrBackendUnreachable) {
//	    // device command could not reach the fieldbus
//	}
var (
	// ErrUnknownDevice is returned for a (room, device) pair outside
	// the loaded topology.
	ErrUnknownDevice = errors.New("engine: unknown device")

	// ErrBackendUnreachable is returned when the fieldbus write could
	// not be delivered.
	ErrBackendUnreachable = errors.New("engine: backend unreachable")

	// ErrTimeout is returned when the fieldbus write was delivered
	// but not confirmed within the deadline.
	ErrTimeout = errors.New("engine: command timed out")
)
