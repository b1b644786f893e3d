package dashboard

import (
	"context"
	"encoding/json"
	"time"

	"github.com/nerrad567/nmos-dashboard/internal/api"
	"github.com/nerrad567/nmos-dashboard/internal/eventbridge"
)

// WebSocket channels the dashboard publishes on.
const (
	channelFlowEvent     = api.ChannelFlowEvent
	channelFlowsSummary  = api.ChannelFlowsSummary
	channelNotifications = api.ChannelNotifications
	channelBridgeState   = api.ChannelBridgeState
)

// resyncTimeout bounds the flow summary fetch after a reconnect.
const resyncTimeout = 15 * time.Second

// RelayedEvent is the flow.event payload sent to browsers.
type RelayedEvent struct {
	Topic      string          `json:"topic"`
	Seq        uint64          `json:"seq"`
	ReceivedAt time.Time       `json:"received_at"`
	Payload    json.RawMessage `json:"payload"`
}

// handleEvent is the bridge's event handler. The Manager calls it once per
// event, in arrival order, never concurrently.
func (d *Dashboard) handleEvent(ev eventbridge.Event) {
	if d.hub != nil {
		d.hub.Broadcast(channelFlowEvent, RelayedEvent{
			Topic:      ev.Topic,
			Seq:        ev.Seq,
			ReceivedAt: ev.ReceivedAt,
			Payload:    json.RawMessage(ev.Raw),
		})
	}

	fe, ok := decodeFlowEvent(ev.Raw)
	if d.telemetry != nil {
		d.telemetry.WriteBridgeEvent(ev.Topic, fe.Event)
	}
	if !ok {
		d.logger.Debug("event is not a flow event", "topic", ev.Topic, "seq", ev.Seq)
		return
	}

	kind, message, notifiable := fe.notification()
	if !notifiable {
		return
	}
	if !d.limiter.AllowN(d.clock.Now(), 1) {
		d.suppressed.Add(1)
		d.logger.Debug("flow notification suppressed", "event", fe.Event, "flow_id", fe.FlowID)
		return
	}
	d.notes.AddWithTimeout(kind, message, d.cfg.NotificationTTL)
}

// resyncAsync refreshes the flow summary in the background.
func (d *Dashboard) resyncAsync() {
	if d.registry == nil || d.hub == nil {
		return
	}

	d.mu.Lock()
	if d.closed || d.ctx == nil {
		d.mu.Unlock()
		return
	}
	ctx := d.ctx
	d.wg.Add(1)
	d.mu.Unlock()

	go func() {
		defer d.wg.Done()
		d.resync(ctx)
	}()
}

// resync fetches the flow summary and pushes it to browsers, so state
// missed while disconnected is repainted.
func (d *Dashboard) resync(ctx context.Context) {
	ctx, cancel := context.WithTimeout(ctx, resyncTimeout)
	defer cancel()

	var summary json.RawMessage
	err := d.withToken(ctx, func(token string) error {
		var err error
		summary, err = d.registry.FlowsSummary(ctx, token)
		return err
	})
	if err != nil {
		d.logger.Warn("flow summary resync failed", "error", err)
		return
	}

	d.hub.Broadcast(channelFlowsSummary, summary)
	d.logger.Debug("flow summary resynced", "bytes", len(summary))
}
