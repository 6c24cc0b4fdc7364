package influxdb

import (
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"
)

// WriteDeviceEvent records a device lifecycle event.
//
// The write is non-blocking; data is batched and sent asynchronously.
//
// Parameters:
//   - action: "connect" or "disconnect"
//   - kind: Device kind ("gamepad" or "keyboard")
//   - slot: The slot held by the device (-1 if unassigned)
//   - connected: Total connected devices after the event
//
// Example:
//
//	client.WriteDeviceEvent("connect", "gamepad", 0, 2)
func (c *Client) WriteDeviceEvent(action string, kind string, slot int, connected int) {
	if !c.IsConnected() {
		return
	}

	point := write.NewPoint(
		"input_device_event",
		map[string]string{
			"action": action,
			"kind":   kind,
		},
		map[string]interface{}{
			"slot":      slot,
			"connected": connected,
		},
		time.Now(),
	)

	c.writeAPI.WritePoint(point)
}

// WriteFocusEvent records a keyboard focus transition on a surface.
//
// Parameters:
//   - surface: Identifier of the surface whose focus changed
func (c *Client) WriteFocusEvent(surface string) {
	if !c.IsConnected() {
		return
	}

	point := write.NewPoint(
		"input_focus_event",
		map[string]string{
			"surface": surface,
		},
		map[string]interface{}{
			"count": 1,
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
//	client.WritePoint("discovery_poll",
//	    map[string]string{"backend": "hid"},
//	    map[string]interface{}{"duration_ms": 4.2, "devices": 3})
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
func (c *Client) WritePointWithTime(measurement string, tags map[string]string, fields map[string]interface{}, timestamp time.Time) {
	if !c.IsConnected() {
		return
	}

	point := write.NewPoint(measurement, tags, fields, timestamp)
	c.writeAPI.WritePoint(point)
}
