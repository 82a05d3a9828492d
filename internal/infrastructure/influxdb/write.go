package influxdb

import (
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"
)

// WriteDevicePower records one device's cached state and power draw.
//
// The write is non-blocking; data is batched and sent asynchronously.
//
// Example:
//
//	client.WriteDevicePower("room-2", "ac", true, 850)
func (c *Client) WriteDevicePower(roomID, deviceID string, on bool, powerWatts float64) {
	if !c.IsConnected() {
		return
	}

	onValue := 0
	if on {
		onValue = 1
	}

	point := write.NewPoint(
		"device_power",
		map[string]string{
			"room_id":   roomID,
			"device_id": deviceID,
		},
		map[string]interface{}{
			"on":          onValue,
			"power_watts": powerWatts,
		},
		time.Now(),
	)

	c.writeAPI.WritePoint(point)
}

// WriteRoomPower records a room's aggregate power draw.
func (c *Client) WriteRoomPower(roomID string, powerWatts float64) {
	if !c.IsConnected() {
		return
	}

	point := write.NewPoint(
		"room_power",
		map[string]string{
			"room_id": roomID,
		},
		map[string]interface{}{
			"power_watts": powerWatts,
		},
		time.Now(),
	)

	c.writeAPI.WritePoint(point)
}

// WriteTotalPower records the whole-site power draw and, when known,
// the estimated monthly cost derived from it.
func (c *Client) WriteTotalPower(powerWatts float64, estimatedMonthlyCost float64) {
	if !c.IsConnected() {
		return
	}

	fields := map[string]interface{}{
		"power_watts": powerWatts,
	}
	if estimatedMonthlyCost > 0 {
		fields["monthly_cost"] = estimatedMonthlyCost
	}

	point := write.NewPoint(
		"total_power",
		map[string]string{},
		fields,
		time.Now(),
	)

	c.writeAPI.WritePoint(point)
}

// WritePoint writes a custom point with full control over tags and fields.
//
// Use this for measurements that don't fit the helper methods.
func (c *Client) WritePoint(measurement string, tags map[string]string, fields map[string]interface{}) {
	if !c.IsConnected() {
		return
	}

	point := write.NewPoint(measurement, tags, fields, time.Now())
	c.writeAPI.WritePoint(point)
}
