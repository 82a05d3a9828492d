package topology

import "fmt"

// Room is a physical room containing switchable devices.
// Rooms are immutable after the topology file is loaded.
type Room struct {
	// ID is the stable room identifier (e.g., "room-1").
	ID string `yaml:"id" json:"id"`

	// Name is the human-readable display name.
	Name string `yaml:"name" json:"name"`

	// SlaveAddr is the Modbus slave address of the room's controller board.
	SlaveAddr uint8 `yaml:"slave_addr" json:"slave_addr"`

	// Devices are the switchable loads wired to this room's board.
	Devices []Device `yaml:"devices" json:"devices"`
}

// Device is a single switchable load (light, fan, air conditioner).
// Devices are immutable after the topology file is loaded.
type Device struct {
	// ID is unique within the owning room (e.g., "light").
	ID string `yaml:"id" json:"id"`

	// Name is the human-readable display name.
	Name string `yaml:"name" json:"name"`

	// PowerWatts is the rated power draw when the device is on.
	PowerWatts float64 `yaml:"power_watts" json:"power_watts"`

	// Register is the coil index on the room's slave board.
	Register uint16 `yaml:"register" json:"register"`
}

// DeviceRef identifies a device across both backends: room/device IDs
// for the cloud namespace, slave address and coil register for the
// fieldbus.
type DeviceRef struct {
	RoomID    string
	DeviceID  string
	SlaveAddr uint8
	Register  uint16
}

// Key returns the cache key for this reference.
func (r DeviceRef) Key() string {
	return r.RoomID + "/" + r.DeviceID
}

// String implements fmt.Stringer for log output.
func (r DeviceRef) String() string {
	return fmt.Sprintf("%s/%s (slave %d coil %d)", r.RoomID, r.DeviceID, r.SlaveAddr, r.Register)
}
