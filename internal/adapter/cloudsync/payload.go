package cloudsync

import "time"

// statePayload is the JSON document published to a device state topic
// and replayed to late subscribers via the retained flag.
type statePayload struct {
	On         bool      `json:"on"`
	PowerWatts float64   `json:"power_watts"`
	Origin     string    `json:"origin"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// controlPayload is the JSON document a remote client publishes to a
// control topic to command a device.
type controlPayload struct {
	On bool `json:"on"`
}

// roomPowerPayload is published to a room power topic.
type roomPowerPayload struct {
	PowerWatts float64   `json:"power_watts"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// totalsPayload is published to the site total topics.
type totalsPayload struct {
	PowerWatts     float64   `json:"power_watts"`
	EnergyKWh      float64   `json:"energy_kwh"`
	MonthlyCostVND float64   `json:"monthly_cost_vnd"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// thresholdsPayload mirrors the persisted power thresholds.
type thresholdsPayload struct {
	WarningWatts  float64 `json:"warning_watts"`
	CriticalWatts float64 `json:"critical_watts"`
}

// tierPricesPayload mirrors the persisted electricity tier prices.
type tierPricesPayload struct {
	Prices []float64 `json:"prices"`
}

// vatPayload mirrors the persisted VAT rate.
type vatPayload struct {
	Rate float64 `json:"rate"`
}

// alertPayload is published once per threshold alert.
type alertPayload struct {
	ID         string    `json:"id"`
	Level      string    `json:"level"`
	Message    string    `json:"message"`
	RoomID     string    `json:"room_id,omitempty"`
	PowerWatts float64   `json:"power_watts"`
	At         time.Time `json:"at"`
}
