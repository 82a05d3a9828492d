package threshold

import (
	"errors"
	"testing"
)

func TestEvaluateTotalLevels(t *testing.T) {
	cfg := DefaultConfig()

	tests := []struct {
		name  string
		total float64
		want  Level
	}{
		{"well below warning", 120, LevelNormal},
		{"just below warning", 499.9, LevelNormal},
		{"at warning", 500, LevelWarning},
		{"between thresholds", 750, LevelWarning},
		{"at critical", 1000, LevelCritical},
		{"above critical", 1800, LevelCritical},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := cfg.Evaluate(tt.total, nil)
			if res.Level != tt.want {
				t.Errorf("Evaluate(%v) level = %v, want %v", tt.total, res.Level, tt.want)
			}
			if tt.want == LevelNormal && res.Message != "" {
				t.Errorf("normal result carries message %q", res.Message)
			}
			if tt.want != LevelNormal && res.Message == "" {
				t.Error("non-normal result should carry a message")
			}
		})
	}
}

func TestEvaluateRoomOverageBelowGlobalWarning(t *testing.T) {
	cfg := Config{WarningWatts: 500, CriticalWatts: 1000, RoomCeilingWatts: 200}

	res := cfg.Evaluate(300, map[string]float64{
		"room-1": 250,
		"room-2": 50,
	})
	if res.Level != LevelWarning {
		t.Errorf("level = %v, want warning", res.Level)
	}
	if len(res.OverageRooms) != 1 || res.OverageRooms[0] != "room-1" {
		t.Errorf("OverageRooms = %v, want [room-1]", res.OverageRooms)
	}
}

func TestEvaluateRoomOverageTakesPrecedenceOverCritical(t *testing.T) {
	cfg := Config{WarningWatts: 500, CriticalWatts: 1000, RoomCeilingWatts: 600}

	res := cfg.Evaluate(1400, map[string]float64{
		"room-2": 850,
		"room-4": 550,
	})
	if res.Level != LevelWarning {
		t.Errorf("level = %v, want warning (room overage wins)", res.Level)
	}
	if len(res.OverageRooms) != 1 || res.OverageRooms[0] != "room-2" {
		t.Errorf("OverageRooms = %v, want [room-2]", res.OverageRooms)
	}
}

func TestEvaluateOverageListOrderedAndCapped(t *testing.T) {
	cfg := Config{WarningWatts: 500, CriticalWatts: 1000, RoomCeilingWatts: 100}

	res := cfg.Evaluate(400, map[string]float64{
		"room-1": 110,
		"room-2": 150,
		"room-3": 140,
		"room-4": 130,
		"room-5": 120,
		"room-6": 115,
	})
	want := []string{"room-2", "room-3", "room-4", "room-5"}
	if len(res.OverageRooms) != len(want) {
		t.Fatalf("OverageRooms = %v, want %v", res.OverageRooms, want)
	}
	for i := range want {
		if res.OverageRooms[i] != want[i] {
			t.Errorf("OverageRooms[%d] = %s, want %s", i, res.OverageRooms[i], want[i])
		}
	}
}

func TestEvaluateCeilingDisabled(t *testing.T) {
	cfg := DefaultConfig()

	res := cfg.Evaluate(300, map[string]float64{"room-2": 290})
	if res.Level != LevelNormal {
		t.Errorf("level = %v, want normal with ceiling disabled", res.Level)
	}
	if len(res.OverageRooms) != 0 {
		t.Errorf("OverageRooms = %v, want empty", res.OverageRooms)
	}
}

func TestEvaluatePure(t *testing.T) {
	cfg := Config{WarningWatts: 500, CriticalWatts: 1000, RoomCeilingWatts: 100}
	rooms := map[string]float64{"room-1": 150}

	first := cfg.Evaluate(150, rooms)
	second := cfg.Evaluate(150, rooms)
	if first.Level != second.Level || first.Message != second.Message {
		t.Errorf("repeated Evaluate diverged: %+v vs %+v", first, second)
	}
	if rooms["room-1"] != 150 {
		t.Error("Evaluate mutated its input map")
	}
}

func TestValidateRejections(t *testing.T) {
	tests := []struct {
		name string
		cfg  Config
	}{
		{"zero warning", Config{WarningWatts: 0, CriticalWatts: 1000}},
		{"critical below warning", Config{WarningWatts: 500, CriticalWatts: 400}},
		{"critical equals warning", Config{WarningWatts: 500, CriticalWatts: 500}},
		{"negative ceiling", Config{WarningWatts: 500, CriticalWatts: 1000, RoomCeilingWatts: -1}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := tt.cfg.Validate(); !errors.Is(err, ErrInvalidConfig) {
				t.Errorf("Validate() error = %v, want ErrInvalidConfig", err)
			}
		})
	}

	if err := DefaultConfig().Validate(); err != nil {
		t.Errorf("DefaultConfig().Validate() error = %v", err)
	}
}

func TestLevelString(t *testing.T) {
	if LevelNormal.String() != "normal" || LevelWarning.String() != "warning" || LevelCritical.String() != "critical" {
		t.Error("Level.String() names wrong")
	}
}
