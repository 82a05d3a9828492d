package engine

import (
	"sync"
	"time"

	"github.com/nvqhuy/homewatt/internal/adapter"
	"github.com/nvqhuy/homewatt/internal/topology"
)

// DeviceState is the cached view of one device.
type DeviceState struct {
	// On is the last known switch state.
	On bool

	// PowerWatts is the current draw: rated power when on, zero off.
	PowerWatts float64

	// LastUpdated is the local arrival time of the last applied
	// observation. Zero for entries no source has written yet.
	LastUpdated time.Time

	// Origin records which source wrote the entry last.
	Origin adapter.Origin

	// Stale marks the entry as last-known rather than current: the
	// backend that owns it is unreachable.
	Stale bool
}

// entry is one cache slot. Each device has its own lock so commands to
// different devices never serialize on shared state.
type entry struct {
	mu         sync.Mutex
	ref        topology.DeviceRef
	ratedWatts float64
	state      DeviceState
}

// cache maps device keys to entries. The map itself is immutable after
// construction; only entry contents change.
type cache struct {
	entries map[string]*entry
	order   []string
}

func newCache(reg *topology.Registry) *cache {
	c := &cache{entries: make(map[string]*entry)}
	for _, room := range reg.Rooms() {
		for _, dev := range room.Devices {
			ref, _ := reg.Ref(room.ID, dev.ID)
			key := ref.Key()
			c.entries[key] = &entry{
				ref:        ref,
				ratedWatts: dev.PowerWatts,
			}
			c.order = append(c.order, key)
		}
	}
	return c
}

func (c *cache) get(key string) (*entry, bool) {
	e, ok := c.entries[key]
	return e, ok
}

// snapshot returns a copy of one entry's state.
func (e *entry) snapshot() DeviceState {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state
}

// applyResult describes the outcome of an apply.
type applyResult struct {
	applied  bool
	changed  bool
	newState DeviceState
}

// apply writes an observation into the entry under its lock.
//
// Observations apply in arrival order; the last writer wins. An
// initial-load observation applies only while no source has written
// the entry, so replayed snapshots never clobber fresher state.
func (e *entry) apply(on bool, origin adapter.Origin, initialLoad bool, at time.Time) applyResult {
	e.mu.Lock()
	defer e.mu.Unlock()

	if initialLoad && e.state.Origin != adapter.OriginUnknown {
		return applyResult{newState: e.state}
	}

	old := e.state
	next := DeviceState{
		On:          on,
		LastUpdated: at,
		Origin:      origin,
	}
	if on {
		next.PowerWatts = e.ratedWatts
	}
	e.state = next

	return applyResult{
		applied:  true,
		changed:  old.On != next.On,
		newState: next,
	}
}

// markStale flags the entry as last-known without touching its value.
func (e *entry) markStale() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.state.Stale = true
}

// clearStale marks the entry current again after a confirming read.
func (e *entry) clearStale() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.state.Stale = false
}

// markStaleByOrigin flags every entry last written by the given source.
func (c *cache) markStaleByOrigin(origin adapter.Origin) {
	for _, ent := range c.entries {
		ent.mu.Lock()
		if ent.state.Origin == origin {
			ent.state.Stale = true
		}
		ent.mu.Unlock()
	}
}
