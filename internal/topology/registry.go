package topology

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Registry is the immutable room/device topology.
//
// It is loaded once at process start and never mutated, so all methods
// are safe for concurrent use without locking. Lookups are backed by a
// map built at load time.
type Registry struct {
	rooms []Room
	index map[string]DeviceRef
}

// topologyFile is the YAML document shape of the topology file.
type topologyFile struct {
	Rooms []Room `yaml:"rooms"`
}

// Load reads and validates the topology from a YAML file.
func Load(path string) (*Registry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading topology file: %w", err)
	}

	var doc topologyFile
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parsing topology file: %w", err)
	}

	return New(doc.Rooms)
}

// New builds a validated Registry from a room list.
// Exposed separately from Load so tests can construct topologies directly.
func New(rooms []Room) (*Registry, error) {
	if err := validate(rooms); err != nil {
		return nil, err
	}

	index := make(map[string]DeviceRef)
	for _, room := range rooms {
		for _, dev := range room.Devices {
			ref := DeviceRef{
				RoomID:    room.ID,
				DeviceID:  dev.ID,
				SlaveAddr: room.SlaveAddr,
				Register:  dev.Register,
			}
			index[ref.Key()] = ref
		}
	}

	return &Registry{
		rooms: rooms,
		index: index,
	}, nil
}

// validate checks topology invariants: non-empty unique IDs, unique
// slave addresses, unique registers within a room, non-negative power.
func validate(rooms []Room) error {
	var errs []string

	if len(rooms) == 0 {
		errs = append(errs, "at least one room is required")
	}

	seenRooms := make(map[string]bool)
	seenSlaves := make(map[uint8]string)

	for _, room := range rooms {
		switch {
		case room.ID == "":
			errs = append(errs, "room with empty id")
			continue
		case seenRooms[room.ID]:
			errs = append(errs, fmt.Sprintf("duplicate room id %q", room.ID))
			continue
		}
		seenRooms[room.ID] = true

		if prev, ok := seenSlaves[room.SlaveAddr]; ok {
			errs = append(errs, fmt.Sprintf("rooms %q and %q share slave address %d", prev, room.ID, room.SlaveAddr))
		}
		seenSlaves[room.SlaveAddr] = room.ID

		if len(room.Devices) == 0 {
			errs = append(errs, fmt.Sprintf("room %q has no devices", room.ID))
		}

		seenDevices := make(map[string]bool)
		seenRegisters := make(map[uint16]bool)
		for _, dev := range room.Devices {
			switch {
			case dev.ID == "":
				errs = append(errs, fmt.Sprintf("room %q has device with empty id", room.ID))
				continue
			case seenDevices[dev.ID]:
				errs = append(errs, fmt.Sprintf("room %q has duplicate device id %q", room.ID, dev.ID))
				continue
			}
			seenDevices[dev.ID] = true

			if seenRegisters[dev.Register] {
				errs = append(errs, fmt.Sprintf("room %q has duplicate register %d", room.ID, dev.Register))
			}
			seenRegisters[dev.Register] = true

			if dev.PowerWatts < 0 {
				errs = append(errs, fmt.Sprintf("device %s/%s has negative rated power", room.ID, dev.ID))
			}
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("%w: %s", ErrInvalidTopology, strings.Join(errs, "; "))
	}
	return nil
}

// Rooms returns all rooms in file order.
// The returned slice must not be modified.
func (r *Registry) Rooms() []Room {
	return r.rooms
}

// Room returns the room with the given ID.
func (r *Registry) Room(roomID string) (Room, error) {
	for _, room := range r.rooms {
		if room.ID == roomID {
			return room, nil
		}
	}
	return Room{}, fmt.Errorf("%w: %s", ErrRoomNotFound, roomID)
}

// Device returns the device definition and its backend reference.
func (r *Registry) Device(roomID, deviceID string) (Device, DeviceRef, error) {
	room, err := r.Room(roomID)
	if err != nil {
		return Device{}, DeviceRef{}, err
	}
	for _, dev := range room.Devices {
		if dev.ID == deviceID {
			return dev, r.index[roomID+"/"+deviceID], nil
		}
	}
	return Device{}, DeviceRef{}, fmt.Errorf("%w: %s/%s", ErrDeviceNotFound, roomID, deviceID)
}

// Ref returns the backend reference for a device.
func (r *Registry) Ref(roomID, deviceID string) (DeviceRef, error) {
	ref, ok := r.index[roomID+"/"+deviceID]
	if !ok {
		return DeviceRef{}, fmt.Errorf("%w: %s/%s", ErrDeviceNotFound, roomID, deviceID)
	}
	return ref, nil
}

// Refs returns backend references for every device in topology order.
func (r *Registry) Refs() []DeviceRef {
	refs := make([]DeviceRef, 0, len(r.index))
	for _, room := range r.rooms {
		for _, dev := range room.Devices {
			refs = append(refs, r.index[room.ID+"/"+dev.ID])
		}
	}
	return refs
}

// DeviceCount returns the total number of devices across all rooms.
func (r *Registry) DeviceCount() int {
	return len(r.index)
}
