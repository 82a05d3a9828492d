package adapter

import (
	"context"
	"time"

	"github.com/nvqhuy/homewatt/internal/topology"
)

// Origin identifies which source produced a device state observation.
type Origin int

const (
	// OriginUnknown marks a cache entry that has never been written.
	OriginUnknown Origin = iota

	// OriginLocal marks a state produced by a local command (API, UI).
	OriginLocal

	// OriginFieldbus marks a state read from the fieldbus.
	OriginFieldbus

	// OriginCloud marks a state received from the cloud sync channel.
	OriginCloud
)

// String returns the origin name for log output.
func (o Origin) String() string {
	switch o {
	case OriginLocal:
		return "local"
	case OriginFieldbus:
		return "fieldbus"
	case OriginCloud:
		return "cloud"
	default:
		return "unknown"
	}
}

// Event is a single device state observation from a backend.
//
// A terminal event carries Err and signals that the stream has ended;
// no further events follow on the same channel.
type Event struct {
	// Ref identifies the device the observation is about.
	Ref topology.DeviceRef

	// On is the observed switch state.
	On bool

	// Origin records which backend produced the observation.
	Origin Origin

	// InitialLoad marks observations replayed during stream
	// establishment rather than produced by a live change. They are
	// applied only to cache entries no source has written yet.
	InitialLoad bool

	// At is the local arrival time of the observation.
	At time.Time

	// Err, when non-nil, marks the terminal event of a failed stream.
	Err error
}

// Backend is a device state source and sink.
//
// Implementations must be safe for concurrent use. WriteState and
// ReadState honour the context deadline and return ErrTimeout when it
// expires before the backend responds.
type Backend interface {
	// Connect establishes the backend connection.
	Connect(ctx context.Context) error

	// ReadState reads the current switch state of one device.
	ReadState(ctx context.Context, ref topology.DeviceRef) (bool, error)

	// WriteState commands one device to the given state. The write is
	// confirmed by the backend before the call returns.
	WriteState(ctx context.Context, ref topology.DeviceRef, on bool) error

	// Connected reports whether the backend is currently reachable.
	Connected() bool

	// Close releases the connection. Safe to call more than once.
	Close() error
}

// Poller reads the full device population in one pass. Backends that
// support batched reads (the fieldbus) implement it so the reconcile
// loop does not issue one transaction per device.
type Poller interface {
	// PollAll reads every known device and returns observations in
	// topology order. A partial result with an error means the
	// returned observations are valid and the rest failed.
	PollAll(ctx context.Context) ([]Event, error)
}

// Streamer delivers backend-initiated changes as they happen.
//
// The returned channel is closed after a terminal Event (Err != nil)
// or when ctx is cancelled. Callers restart the stream with backoff.
type Streamer interface {
	StreamChanges(ctx context.Context) (<-chan Event, error)
}
