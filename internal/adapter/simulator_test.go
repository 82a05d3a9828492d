package adapter

import (
	"context"
	"errors"
	"testing"

	"github.com/nvqhuy/homewatt/internal/topology"
)

func testRefs() []topology.DeviceRef {
	return []topology.DeviceRef{
		{RoomID: "room-1", DeviceID: "light", SlaveAddr: 1, Register: 0},
		{RoomID: "room-1", DeviceID: "fan", SlaveAddr: 1, Register: 1},
	}
}

func TestSimulatorReadWrite(t *testing.T) {
	sim := NewSimulator(testRefs())
	ctx := context.Background()

	if err := sim.Connect(ctx); err != nil {
		t.Fatalf("Connect() error = %v", err)
	}
	if !sim.Connected() {
		t.Error("Connected() = false after Connect")
	}

	ref := testRefs()[0]
	on, err := sim.ReadState(ctx, ref)
	if err != nil {
		t.Fatalf("ReadState() error = %v", err)
	}
	if on {
		t.Error("initial state should be off")
	}

	if err := sim.WriteState(ctx, ref, true); err != nil {
		t.Fatalf("WriteState() error = %v", err)
	}
	on, err = sim.ReadState(ctx, ref)
	if err != nil {
		t.Fatalf("ReadState() error = %v", err)
	}
	if !on {
		t.Error("state not retained after write")
	}
}

func TestSimulatorNotConnected(t *testing.T) {
	sim := NewSimulator(testRefs())
	ctx := context.Background()
	ref := testRefs()[0]

	if _, err := sim.ReadState(ctx, ref); !errors.Is(err, ErrNotConnected) {
		t.Errorf("ReadState() error = %v, want ErrNotConnected", err)
	}
	if err := sim.WriteState(ctx, ref, true); !errors.Is(err, ErrNotConnected) {
		t.Errorf("WriteState() error = %v, want ErrNotConnected", err)
	}
	if _, err := sim.PollAll(ctx); !errors.Is(err, ErrNotConnected) {
		t.Errorf("PollAll() error = %v, want ErrNotConnected", err)
	}
}

func TestSimulatorUnknownDevice(t *testing.T) {
	sim := NewSimulator(testRefs())
	ctx := context.Background()
	if err := sim.Connect(ctx); err != nil {
		t.Fatalf("Connect() error = %v", err)
	}

	bad := topology.DeviceRef{RoomID: "room-9", DeviceID: "heater"}
	if _, err := sim.ReadState(ctx, bad); !errors.Is(err, ErrUnknownDevice) {
		t.Errorf("ReadState() error = %v, want ErrUnknownDevice", err)
	}
	if err := sim.WriteState(ctx, bad, true); !errors.Is(err, ErrUnknownDevice) {
		t.Errorf("WriteState() error = %v, want ErrUnknownDevice", err)
	}
}

func TestSimulatorPollAll(t *testing.T) {
	sim := NewSimulator(testRefs())
	ctx := context.Background()
	if err := sim.Connect(ctx); err != nil {
		t.Fatalf("Connect() error = %v", err)
	}
	if err := sim.WriteState(ctx, testRefs()[1], true); err != nil {
		t.Fatalf("WriteState() error = %v", err)
	}

	events, err := sim.PollAll(ctx)
	if err != nil {
		t.Fatalf("PollAll() error = %v", err)
	}
	if len(events) != 2 {
		t.Fatalf("PollAll() len = %d, want 2", len(events))
	}
	if events[0].On || !events[1].On {
		t.Errorf("PollAll() states = %v/%v, want off/on", events[0].On, events[1].On)
	}
	for _, ev := range events {
		if ev.Origin != OriginFieldbus {
			t.Errorf("Origin = %v, want fieldbus", ev.Origin)
		}
		if ev.At.IsZero() {
			t.Error("At should be set")
		}
	}
}

func TestSimulatorClose(t *testing.T) {
	sim := NewSimulator(testRefs())
	ctx := context.Background()
	if err := sim.Connect(ctx); err != nil {
		t.Fatalf("Connect() error = %v", err)
	}
	if err := sim.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if sim.Connected() {
		t.Error("Connected() = true after Close")
	}
	if err := sim.Close(); err != nil {
		t.Errorf("second Close() error = %v", err)
	}
}

func TestOriginString(t *testing.T) {
	tests := []struct {
		origin Origin
		want   string
	}{
		{OriginUnknown, "unknown"},
		{OriginLocal, "local"},
		{OriginFieldbus, "fieldbus"},
		{OriginCloud, "cloud"},
	}
	for _, tt := range tests {
		if got := tt.origin.String(); got != tt.want {
			t.Errorf("%d.String() = %q, want %q", tt.origin, got, tt.want)
		}
	}
}
