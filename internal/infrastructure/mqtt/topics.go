package mqtt

import (
	"fmt"
	"strings"
)

// Topic prefixes for the HomeWatt cloud namespace.
//
// The namespace mirrors the hierarchical store layout that remote
// dashboards and companion apps read and write:
//
//	homewatt/rooms/{roomID}/devices/{deviceID}/state   last observed/reported state (retained)
//	homewatt/rooms/{roomID}/devices/{deviceID}/power   rated power, informational (retained)
//	homewatt/rooms/{roomID}/power                      live room power draw (retained)
//	homewatt/control/{roomID}/{deviceID}               requested state from remote users (retained)
//	homewatt/total/{power,energy,monthly_cost}         aggregate figures (retained)
//	homewatt/settings/{thresholds,tier_prices,vat}     shared configuration (retained)
//	homewatt/alerts/{alertID}                          threshold alerts (not retained)
//	homewatt/system/status                             controller online/offline (retained, LWT)
//
// The control subtree carries requested state; the rooms subtree carries
// last observed state. Both are authoritative for a device's on flag, but
// power entries under rooms/* are informational only.
const (
	// TopicPrefix is the base for all HomeWatt cloud topics.
	TopicPrefix = "homewatt"

	// TopicPrefixRooms is the base for per-room observed state.
	TopicPrefixRooms = "homewatt/rooms"

	// TopicPrefixControl is the base for remote command topics.
	TopicPrefixControl = "homewatt/control"

	// TopicPrefixTotal is the base for aggregate figures.
	TopicPrefixTotal = "homewatt/total"

	// TopicPrefixSettings is the base for shared settings.
	TopicPrefixSettings = "homewatt/settings"

	// TopicPrefixAlerts is the base for threshold alerts.
	TopicPrefixAlerts = "homewatt/alerts"
)

// Topics provides builders for HomeWatt cloud topics.
// Using these helpers ensures consistent topic naming across the codebase.
//
//	topics := mqtt.Topics{}
//	stateTopic := topics.DeviceState("room-1", "fan")
//	// Returns: "homewatt/rooms/room-1/devices/fan/state"
type Topics struct{}

// DeviceState returns the topic for a device's last observed state.
func (Topics) DeviceState(roomID, deviceID string) string {
	return fmt.Sprintf("%s/%s/devices/%s/state", TopicPrefixRooms, roomID, deviceID)
}

// DevicePower returns the topic for a device's rated power.
// Informational only; never written by ON/OFF logic.
func (Topics) DevicePower(roomID, deviceID string) string {
	return fmt.Sprintf("%s/%s/devices/%s/power", TopicPrefixRooms, roomID, deviceID)
}

// RoomPower returns the topic for a room's live power draw.
func (Topics) RoomPower(roomID string) string {
	return fmt.Sprintf("%s/%s/power", TopicPrefixRooms, roomID)
}

// Control returns the topic carrying requested state for a device.
func (Topics) Control(roomID, deviceID string) string {
	return fmt.Sprintf("%s/%s/%s", TopicPrefixControl, roomID, deviceID)
}

// AllDeviceStates returns the wildcard subscription for all observed states.
func (Topics) AllDeviceStates() string {
	return TopicPrefixRooms + "/+/devices/+/state"
}

// AllControl returns the wildcard subscription for all control topics.
func (Topics) AllControl() string {
	return TopicPrefixControl + "/+/+"
}

// TotalPower returns the topic for total live power draw.
func (Topics) TotalPower() string {
	return TopicPrefixTotal + "/power"
}

// TotalEnergy returns the topic for accumulated energy.
func (Topics) TotalEnergy() string {
	return TopicPrefixTotal + "/energy"
}

// TotalMonthlyCost returns the topic for the estimated monthly cost.
func (Topics) TotalMonthlyCost() string {
	return TopicPrefixTotal + "/monthly_cost"
}

// SettingsThresholds returns the topic for shared threshold settings.
func (Topics) SettingsThresholds() string {
	return TopicPrefixSettings + "/thresholds"
}

// SettingsTierPrices returns the topic for shared tariff prices.
func (Topics) SettingsTierPrices() string {
	return TopicPrefixSettings + "/tier_prices"
}

// SettingsVAT returns the topic for the shared VAT rate.
func (Topics) SettingsVAT() string {
	return TopicPrefixSettings + "/vat"
}

// Alert returns the topic for a single threshold alert.
func (Topics) Alert(alertID string) string {
	return fmt.Sprintf("%s/%s", TopicPrefixAlerts, alertID)
}

// SystemStatus returns the controller online/offline status topic.
func (Topics) SystemStatus() string {
	return TopicPrefix + "/system/status"
}

// ParseDeviceState extracts room and device IDs from an observed-state topic.
// Returns ok=false for topics outside the rooms/*/devices/*/state shape.
func ParseDeviceState(topic string) (roomID, deviceID string, ok bool) {
	parts := strings.Split(topic, "/")
	// homewatt/rooms/{room}/devices/{dev}/state
	if len(parts) != 6 || parts[0] != TopicPrefix || parts[1] != "rooms" ||
		parts[3] != "devices" || parts[5] != "state" {
		return "", "", false
	}
	return parts[2], parts[4], true
}

// ParseControl extracts room and device IDs from a control topic.
// Returns ok=false for topics outside the control/*/* shape.
func ParseControl(topic string) (roomID, deviceID string, ok bool) {
	parts := strings.Split(topic, "/")
	// homewatt/control/{room}/{dev}
	if len(parts) != 4 || parts[0] != TopicPrefix || parts[1] != "control" {
		return "", "", false
	}
	return parts[2], parts[3], true
}
