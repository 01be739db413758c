package influxdb

import (
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"
)

// WriteDeviceState writes a device state snapshot to InfluxDB.
//
// Called after every refresh merge and every optimistic command, so the
// series records both confirmed and predicted state transitions. The write
// is non-blocking; data is batched and sent asynchronously.
//
// Parameters:
//   - deviceID: Unique identifier for the device
//   - online: Whether the cloud reports the device reachable
//   - power: Current power state
//   - brightness: Current brightness (canonical 0-255 scale)
//   - source: State provenance ("api", "optimistic" or "stale")
//
// Example:
//
//	client.WriteDeviceState("AA:BB:CC:DD:EE:FF:11:22", true, true, 128, "api")
func (c *Client) WriteDeviceState(deviceID string, online, power bool, brightness int, source string) {
	if !c.IsConnected() {
		return
	}

	point := write.NewPoint(
		"device_state",
		map[string]string{
			"device_id": deviceID,
			"source":    source,
		},
		map[string]interface{}{
			"online":     online,
			"power":      power,
			"brightness": brightness,
		},
		time.Now(),
	)

	c.writeAPI.WritePoint(point)
}

// WriteRefreshCycle writes a summary of one refresh cycle.
//
// Used for tracking batch health: how many devices refreshed cleanly,
// how many fell back to stale state, and how long the cycle took.
//
// Parameters:
//   - total: Number of devices in the batch
//   - refreshed: Devices whose state came back from the cloud
//   - stale: Devices that kept their previous state
//   - duration: Wall time of the whole cycle
func (c *Client) WriteRefreshCycle(total, refreshed, stale int, duration time.Duration) {
	if !c.IsConnected() {
		return
	}

	point := write.NewPoint(
		"refresh_cycle",
		nil,
		map[string]interface{}{
			"total":       total,
			"refreshed":   refreshed,
			"stale":       stale,
			"duration_ms": duration.Milliseconds(),
		},
		time.Now(),
	)

	c.writeAPI.WritePoint(point)
}

// WriteRateLimit writes the current rate limiter quota snapshot.
//
// Graphing this series shows how close the deployment runs to the
// per-minute and per-day API quotas.
//
// Parameters:
//   - remainingMinute: Requests left in the sliding minute window
//   - remainingDay: Requests left in the sliding day window
func (c *Client) WriteRateLimit(remainingMinute, remainingDay int) {
	if !c.IsConnected() {
		return
	}

	point := write.NewPoint(
		"rate_limit",
		nil,
		map[string]interface{}{
			"remaining_minute": remainingMinute,
			"remaining_day":    remainingDay,
		},
		time.Now(),
	)

	c.writeAPI.WritePoint(point)
}

// WritePoint writes a custom point with full control over tags and fields.
//
// Use this for custom measurements that don't fit the helper methods.
//
// Parameters:
//   - measurement: The measurement name (table)
//   - tags: Key-value pairs for indexing (low cardinality)
//   - fields: Key-value pairs for the actual data
//
// Example:
//
//	client.WritePoint("system_stats",
//	    map[string]string{"host": "lumen-01"},
//	    map[string]interface{}{"cpu_percent": 45.2, "memory_mb": 512})
func (c *Client) WritePoint(measurement string, tags map[string]string, fields map[string]interface{}) {
	if !c.IsConnected() {
		return
	}

	point := write.NewPoint(measurement, tags, fields, time.Now())
	c.writeAPI.WritePoint(point)
}

// WritePointWithTime writes a custom point with a specific timestamp.
//
// Use this when the timestamp is not "now" (e.g., delayed data).
//
// Parameters:
//   - measurement: The measurement name
//   - tags: Key-value pairs for indexing
//   - fields: Key-value pairs for the data
//   - timestamp: The exact time for this data point
func (c *Client) WritePointWithTime(measurement string, tags map[string]string, fields map[string]interface{}, timestamp time.Time) {
	if !c.IsConnected() {
		return
	}

	point := write.NewPoint(measurement, tags, fields, timestamp)
	c.writeAPI.WritePoint(point)
}
