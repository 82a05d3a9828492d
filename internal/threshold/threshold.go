package threshold

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// Default power thresholds in watts.
const (
	DefaultWarningWatts  = 500
	DefaultCriticalWatts = 1000
)

// maxListedRooms caps the rooms named in an overage alert so a large
// site cannot produce an unbounded message.
const maxListedRooms = 4

// ErrInvalidConfig is returned when threshold validation fails.
var ErrInvalidConfig = errors.New("threshold: invalid config")

// Level classifies a threshold evaluation.
type Level int

const (
	// LevelNormal means no threshold is breached.
	LevelNormal Level = iota

	// LevelWarning means total draw is at or above the warning
	// threshold, or a room exceeds its ceiling.
	LevelWarning

	// LevelCritical means total draw is at or above the critical
	// threshold.
	LevelCritical
)

// String returns the level name for payloads and log output.
func (l Level) String() string {
	switch l {
	case LevelWarning:
		return "warning"
	case LevelCritical:
		return "critical"
	default:
		return "normal"
	}
}

// Config holds the evaluated thresholds.
type Config struct {
	// WarningWatts and CriticalWatts apply to the site total.
	WarningWatts  float64
	CriticalWatts float64

	// RoomCeilingWatts, when positive, caps any single room's draw.
	// Zero disables the per-room check.
	RoomCeilingWatts float64
}

// DefaultConfig returns the stock thresholds with no per-room ceiling.
func DefaultConfig() Config {
	return Config{
		WarningWatts:  DefaultWarningWatts,
		CriticalWatts: DefaultCriticalWatts,
	}
}

// Validate checks threshold ordering and positivity.
func (c Config) Validate() error {
	if c.WarningWatts <= 0 {
		return fmt.Errorf("%w: warning threshold %v", ErrInvalidConfig, c.WarningWatts)
	}
	if c.CriticalWatts <= c.WarningWatts {
		return fmt.Errorf("%w: critical %v must exceed warning %v", ErrInvalidConfig, c.CriticalWatts, c.WarningWatts)
	}
	if c.RoomCeilingWatts < 0 {
		return fmt.Errorf("%w: room ceiling %v", ErrInvalidConfig, c.RoomCeilingWatts)
	}
	return nil
}

// Result is one evaluation of the site against the thresholds.
type Result struct {
	// Level is the overall severity.
	Level Level

	// TotalWatts is the evaluated site draw.
	TotalWatts float64

	// OverageRooms lists rooms above the per-room ceiling, highest
	// draw first, capped at maxListedRooms entries.
	OverageRooms []string

	// Message is a human-readable summary, empty at LevelNormal.
	Message string
}

// Evaluate classifies a site's power draw against the thresholds.
//
// A room above its ceiling reports as a Warning-class room overage and
// takes precedence over the total-based levels, even when the total
// also crosses the critical threshold: the overage names the rooms the
// user can act on. With no overage, the total decides the level.
//
// Evaluate is pure: it never mutates its inputs and has no side
// effects.
func (c Config) Evaluate(totalWatts float64, roomWatts map[string]float64) Result {
	res := Result{TotalWatts: totalWatts}

	if c.RoomCeilingWatts > 0 {
		type roomDraw struct {
			id    string
			watts float64
		}
		var over []roomDraw
		for id, watts := range roomWatts {
			if watts > c.RoomCeilingWatts {
				over = append(over, roomDraw{id, watts})
			}
		}
		sort.Slice(over, func(i, j int) bool {
			if over[i].watts != over[j].watts {
				return over[i].watts > over[j].watts
			}
			return over[i].id < over[j].id
		})
		for i, rd := range over {
			if i == maxListedRooms {
				break
			}
			res.OverageRooms = append(res.OverageRooms, rd.id)
		}
		if len(res.OverageRooms) > 0 {
			res.Level = LevelWarning
			res.Message = fmt.Sprintf("room overage above %.0f W: %s",
				c.RoomCeilingWatts, strings.Join(res.OverageRooms, ", "))
			return res
		}
	}

	switch {
	case totalWatts >= c.CriticalWatts:
		res.Level = LevelCritical
		res.Message = fmt.Sprintf("total power %.0f W at or above critical threshold %.0f W", totalWatts, c.CriticalWatts)
	case totalWatts >= c.WarningWatts:
		res.Level = LevelWarning
		res.Message = fmt.Sprintf("total power %.0f W at or above warning threshold %.0f W", totalWatts, c.WarningWatts)
	default:
		res.Level = LevelNormal
	}

	return res
}
