package topology

import "errors"

// Domain errors for the topology package.
//
// These errors can be checked using errors.Is():
//
//	if errors.Is(err, topology.ErrDeviceNotFound) {
//	    // handle unknown device
//	}
var (
	// ErrRoomNotFound is returned when a room ID does not exist.
	ErrRoomNotFound = errors.New("topology: room not found")

	// ErrDeviceNotFound is returned when a device ID does not exist in a room.
	ErrDeviceNotFound = errors.New("topology: device not found")

	// ErrInvalidTopology is returned when topology validation fails.
	ErrInvalidTopology = errors.New("topology: invalid")
)
