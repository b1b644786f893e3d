package influxdb

import (
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"
)

// Measurement names.
const (
	MeasurementBridgeState   = "bridge_state"
	MeasurementBridgeEvents  = "bridge_events"
	MeasurementBridgeDropped = "bridge_dropped"
)

// WriteBridgeState records a bridge state transition.
func (c *Client) WriteBridgeState(state string, connected bool) {
	c.writePoint(bridgeStatePoint(state, connected, c.now()))
}

// WriteBridgeEvent records one delivered event. event is the flow event
// type ("created", "updated", ...) or "unknown".
func (c *Client) WriteBridgeEvent(topic, event string) {
	c.writePoint(bridgeEventPoint(topic, event, c.now()))
}

// WriteBridgeDropped records a frame discarded as malformed.
func (c *Client) WriteBridgeDropped(topic, reason string) {
	c.writePoint(bridgeDroppedPoint(topic, reason, c.now()))
}

// WritePoint writes an arbitrary point stamped with the current time.
func (c *Client) WritePoint(measurement string, tags map[string]string, fields map[string]interface{}) {
	c.writePoint(write.NewPoint(measurement, tags, fields, c.now()))
}

func (c *Client) writePoint(p *write.Point) {
	if !c.IsConnected() {
		return
	}
	c.writer.WritePoint(p)
}

func bridgeStatePoint(state string, connected bool, ts time.Time) *write.Point {
	return write.NewPoint(
		MeasurementBridgeState,
		map[string]string{"state": state},
		map[string]interface{}{
			"value":     1,
			"connected": connected,
		},
		ts,
	)
}

func bridgeEventPoint(topic, event string, ts time.Time) *write.Point {
	if event == "" {
		event = "unknown"
	}
	return write.NewPoint(
		MeasurementBridgeEvents,
		map[string]string{"topic": topic, "event": event},
		map[string]interface{}{"count": 1},
		ts,
	)
}

func bridgeDroppedPoint(topic, reason string, ts time.Time) *write.Point {
	return write.NewPoint(
		MeasurementBridgeDropped,
		map[string]string{"topic": topic},
		map[string]interface{}{"count": 1, "reason": reason},
		ts,
	)
}
