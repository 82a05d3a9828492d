package adapter

import (
	"context"
	"sync"
	"time"

	"github.com/nvqhuy/homewatt/internal/topology"
)

// Simulator is an in-memory backend used when no fieldbus hardware is
// reachable. It keeps the rest of the system exercisable on a
// development machine: writes succeed instantly and reads return the
// last written state.
type Simulator struct {
	mu        sync.RWMutex
	states    map[string]bool
	refs      []topology.DeviceRef
	connected bool
}

// NewSimulator creates a simulator covering the given devices, all
// initially off.
func NewSimulator(refs []topology.DeviceRef) *Simulator {
	states := make(map[string]bool, len(refs))
	for _, ref := range refs {
		states[ref.Key()] = false
	}
	return &Simulator{
		states: states,
		refs:   refs,
	}
}

// Connect marks the simulator as connected. It never fails.
func (s *Simulator) Connect(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.connected = true
	return nil
}

// ReadState returns the last written state of the device.
func (s *Simulator) ReadState(ctx context.Context, ref topology.DeviceRef) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if !s.connected {
		return false, ErrNotConnected
	}
	on, ok := s.states[ref.Key()]
	if !ok {
		return false, ErrUnknownDevice
	}
	return on, nil
}

// WriteState records the commanded state.
func (s *Simulator) WriteState(ctx context.Context, ref topology.DeviceRef, on bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.connected {
		return ErrNotConnected
	}
	if _, ok := s.states[ref.Key()]; !ok {
		return ErrUnknownDevice
	}
	s.states[ref.Key()] = on
	return nil
}

// PollAll returns the current state of every device in topology order.
func (s *Simulator) PollAll(ctx context.Context) ([]Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if !s.connected {
		return nil, ErrNotConnected
	}

	now := time.Now()
	events := make([]Event, 0, len(s.refs))
	for _, ref := range s.refs {
		events = append(events, Event{
			Ref:    ref,
			On:     s.states[ref.Key()],
			Origin: OriginFieldbus,
			At:     now,
		})
	}
	return events, nil
}

// Connected reports whether Connect has been called.
func (s *Simulator) Connected() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.connected
}

// Close marks the simulator as disconnected.
func (s *Simulator) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.connected = false
	return nil
}
