package topology

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func testRooms() []Room {
	return []Room{
		{
			ID:        "room-1",
			Name:      "Room 1",
			SlaveAddr: 1,
			Devices: []Device{
				{ID: "light", Name: "Light", PowerWatts: 15, Register: 0},
				{ID: "fan", Name: "Fan", PowerWatts: 45, Register: 1},
			},
		},
		{
			ID:        "room-2",
			Name:      "Room 2",
			SlaveAddr: 2,
			Devices: []Device{
				{ID: "light", Name: "Light", PowerWatts: 12, Register: 0},
				{ID: "ac", Name: "Air Conditioner", PowerWatts: 850, Register: 1},
			},
		},
	}
}

func TestNewValid(t *testing.T) {
	reg, err := New(testRooms())
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	if got := reg.DeviceCount(); got != 4 {
		t.Errorf("DeviceCount() = %d, want 4", got)
	}

	rooms := reg.Rooms()
	if len(rooms) != 2 || rooms[0].ID != "room-1" || rooms[1].ID != "room-2" {
		t.Errorf("Rooms() order not preserved: %+v", rooms)
	}
}

func TestDeviceLookup(t *testing.T) {
	reg, err := New(testRooms())
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	dev, ref, err := reg.Device("room-2", "ac")
	if err != nil {
		t.Fatalf("Device() error = %v", err)
	}
	if dev.PowerWatts != 850 {
		t.Errorf("PowerWatts = %v, want 850", dev.PowerWatts)
	}
	if ref.SlaveAddr != 2 || ref.Register != 1 {
		t.Errorf("ref = %+v, want slave 2 register 1", ref)
	}

	if _, _, err := reg.Device("room-9", "light"); !errors.Is(err, ErrRoomNotFound) {
		t.Errorf("unknown room error = %v, want ErrRoomNotFound", err)
	}
	if _, _, err := reg.Device("room-1", "heater"); !errors.Is(err, ErrDeviceNotFound) {
		t.Errorf("unknown device error = %v, want ErrDeviceNotFound", err)
	}
}

func TestRefs(t *testing.T) {
	reg, err := New(testRooms())
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	refs := reg.Refs()
	if len(refs) != 4 {
		t.Fatalf("Refs() len = %d, want 4", len(refs))
	}
	if refs[0].Key() != "room-1/light" || refs[3].Key() != "room-2/ac" {
		t.Errorf("Refs() order unexpected: %v, %v", refs[0], refs[3])
	}
}

func TestValidateRejections(t *testing.T) {
	tests := []struct {
		name   string
		mutate func([]Room) []Room
	}{
		{
			name:   "no rooms",
			mutate: func(r []Room) []Room { return nil },
		},
		{
			name: "empty room id",
			mutate: func(r []Room) []Room {
				r[0].ID = ""
				return r
			},
		},
		{
			name: "duplicate room id",
			mutate: func(r []Room) []Room {
				r[1].ID = r[0].ID
				return r
			},
		},
		{
			name: "duplicate slave address",
			mutate: func(r []Room) []Room {
				r[1].SlaveAddr = r[0].SlaveAddr
				return r
			},
		},
		{
			name: "room without devices",
			mutate: func(r []Room) []Room {
				r[0].Devices = nil
				return r
			},
		},
		{
			name: "duplicate device id in room",
			mutate: func(r []Room) []Room {
				r[0].Devices[1].ID = r[0].Devices[0].ID
				return r
			},
		},
		{
			name: "duplicate register in room",
			mutate: func(r []Room) []Room {
				r[0].Devices[1].Register = r[0].Devices[0].Register
				return r
			},
		},
		{
			name: "negative rated power",
			mutate: func(r []Room) []Room {
				r[0].Devices[0].PowerWatts = -1
				return r
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(tt.mutate(testRooms()))
			if !errors.Is(err, ErrInvalidTopology) {
				t.Errorf("New() error = %v, want ErrInvalidTopology", err)
			}
		})
	}
}

func TestLoadFile(t *testing.T) {
	yaml := `rooms:
  - id: room-1
    name: Room 1
    slave_addr: 1
    devices:
      - id: light
        name: Light
        power_watts: 15
        register: 0
`
	path := filepath.Join(t.TempDir(), "topology.yaml")
	if err := os.WriteFile(path, []byte(yaml), 0600); err != nil {
		t.Fatalf("writing fixture: %v", err)
	}

	reg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if reg.DeviceCount() != 1 {
		t.Errorf("DeviceCount() = %d, want 1", reg.DeviceCount())
	}

	dev, _, err := reg.Device("room-1", "light")
	if err != nil {
		t.Fatalf("Device() error = %v", err)
	}
	if dev.PowerWatts != 15 {
		t.Errorf("PowerWatts = %v, want 15", dev.PowerWatts)
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("Load() with missing file should fail")
	}
}
