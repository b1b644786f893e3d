package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"github.com/nerrad567/nmos-dashboard/internal/infrastructure/config"
	"github.com/nerrad567/nmos-dashboard/internal/infrastructure/logging"
)

// Message types exchanged with browsers.
const (
	WSTypeSubscribe   = "subscribe"
	WSTypeUnsubscribe = "unsubscribe"
	WSTypePing        = "ping"
	WSTypePong        = "pong"
	WSTypeEvent       = "event"
	WSTypeResponse    = "response"
	WSTypeError       = "error"

	// wsSendBufferSize is the per-client outbound queue length.
	wsSendBufferSize = 256
)

// Channels pushed to browsers.
const (
	ChannelFlowEvent     = "flow.event"
	ChannelFlowsSummary  = "flows.summary"
	ChannelNotifications = "notifications"
	ChannelBridgeState   = "bridge.state"
)

var knownChannels = map[string]struct{}{
	ChannelFlowEvent:     {},
	ChannelFlowsSummary:  {},
	ChannelNotifications: {},
	ChannelBridgeState:   {},
}

// WSMessage is one frame in either direction. Events carry the channel in
// EventType.
type WSMessage struct {
	Type      string `json:"type"`
	ID        string `json:"id,omitempty"`
	EventType string `json:"event_type,omitempty"`
	Timestamp string `json:"timestamp,omitempty"`
	Payload   any    `json:"payload,omitempty"`
}

// WSSubscribePayload lists the channels of a subscribe or unsubscribe request.
type WSSubscribePayload struct {
	Channels []string `json:"channels"`
}

// Hub fans dashboard events out to subscribed browsers.
//
// Publishers never block: a client whose queue is full misses the frame and
// the miss is counted.
//
// Thread Safety: All methods are safe for concurrent use.
type Hub struct {
	timings wsTimings
	logger  *logging.Logger

	mu        sync.RWMutex
	clients   map[*WSClient]struct{}
	snapshots map[string]func() any

	dropped atomic.Uint64
}

// WSClient is one browser connection.
type WSClient struct {
	hub  *Hub
	conn *websocket.Conn

	sendMu sync.Mutex
	send   chan []byte
	closed bool

	mu            sync.RWMutex
	subscriptions map[string]struct{}
}

// wsTimings holds the keepalive periods derived from config.
type wsTimings struct {
	maxMessage int64
	ping       time.Duration
	pongWait   time.Duration
}

func timingsFrom(cfg config.WebSocketConfig) wsTimings {
	return wsTimings{
		maxMessage: int64(cfg.MaxMessageSize),
		ping:       time.Duration(cfg.PingInterval) * time.Second,
		pongWait:   time.Duration(cfg.PongTimeout) * time.Second,
	}
}

// readDeadline is how long a silent client is kept.
func (t wsTimings) readDeadline() time.Time {
	return time.Now().Add(t.ping + t.pongWait)
}

func (t wsTimings) writeDeadline() time.Time {
	return time.Now().Add(t.pongWait)
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(_ *http.Request) bool {
		// Origins are enforced by the CORS middleware
		return true
	},
}

// NewHub creates a hub with no clients.
func NewHub(cfg config.WebSocketConfig, logger *logging.Logger) *Hub {
	return &Hub{
		timings:   timingsFrom(cfg),
		logger:    logger,
		clients:   make(map[*WSClient]struct{}),
		snapshots: make(map[string]func() any),
	}
}

// Run blocks until ctx is done, then disconnects every client.
func (h *Hub) Run(ctx context.Context) {
	<-ctx.Done()

	h.mu.Lock()
	clients := h.clients
	h.clients = make(map[*WSClient]struct{})
	h.mu.Unlock()

	for client := range clients {
		client.close()
		if client.conn != nil {
			client.conn.Close()
		}
	}
	if len(clients) > 0 {
		h.logger.Info("websocket clients disconnected", "clients", len(clients))
	}
}

// SetSnapshot registers fn as the current value of channel. A client that
// subscribes to channel receives fn's result straight away.
func (h *Hub) SetSnapshot(channel string, fn func() any) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.snapshots[channel] = fn
}

// Register adds a client.
func (h *Hub) Register(client *WSClient) {
	h.mu.Lock()
	h.clients[client] = struct{}{}
	n := len(h.clients)
	h.mu.Unlock()
	h.logger.Debug("websocket client connected", "clients", n)
}

// Unregister removes a client and closes its queue. Safe to repeat.
func (h *Hub) Unregister(client *WSClient) {
	h.mu.Lock()
	delete(h.clients, client)
	n := len(h.clients)
	h.mu.Unlock()

	client.close()
	h.logger.Debug("websocket client disconnected", "clients", n)
}

// Broadcast sends payload on channel to every subscribed client.
func (h *Hub) Broadcast(channel string, payload any) {
	data, err := eventMessage(channel, payload)
	if err != nil {
		h.logger.Error("websocket event not encodable", "channel", channel, "error", err)
		return
	}

	h.mu.RLock()
	targets := make([]*WSClient, 0, len(h.clients))
	for client := range h.clients {
		targets = append(targets, client)
	}
	h.mu.RUnlock()

	delivered, missed := 0, 0
	for _, client := range targets {
		if !client.isSubscribed(channel) {
			continue
		}
		if client.trySend(data) {
			delivered++
		} else {
			missed++
		}
	}
	if missed > 0 {
		h.logger.Warn("slow websocket clients missed an event", "channel", channel, "clients", missed)
	}
	if delivered > 0 {
		h.logger.Debug("websocket event sent", "channel", channel, "recipients", delivered)
	}
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Dropped returns how many frames were not queued because a client was slow
// or already gone.
func (h *Hub) Dropped() uint64 {
	return h.dropped.Load()
}

func (h *Hub) snapshot(channel string) (func() any, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	fn, ok := h.snapshots[channel]
	return fn, ok
}

func eventMessage(channel string, payload any) ([]byte, error) {
	return json.Marshal(WSMessage{
		Type:      WSTypeEvent,
		EventType: channel,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Payload:   payload,
	})
}

// handleWebSocket upgrades the request and starts the client's pumps.
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	if s.hub == nil {
		writeUnavailable(w, "websocket hub not running")
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("websocket upgrade failed", "remote", r.RemoteAddr, "error", err)
		return
	}

	client := &WSClient{
		hub:           s.hub,
		conn:          conn,
		send:          make(chan []byte, wsSendBufferSize),
		subscriptions: make(map[string]struct{}),
	}
	s.hub.Register(client)

	go client.writePump()
	go client.readPump()
}

// close shuts the outbound queue once.
func (c *WSClient) close() {
	c.sendMu.Lock()
	defer c.sendMu.Unlock()
	if c.closed {
		return
	}
	c.closed = true
	close(c.send)
}

// trySend queues data without blocking. It reports false when the queue is
// full or closed.
func (c *WSClient) trySend(data []byte) bool {
	c.sendMu.Lock()
	defer c.sendMu.Unlock()
	if c.closed {
		c.hub.dropped.Add(1)
		return false
	}
	select {
	case c.send <- data:
		return true
	default:
		c.hub.dropped.Add(1)
		return false
	}
}

func (c *WSClient) readPump() {
	defer func() {
		c.hub.Unregister(c)
		c.conn.Close()
	}()

	t := c.hub.timings
	c.conn.SetReadLimit(t.maxMessage)
	c.conn.SetReadDeadline(t.readDeadline()) //nolint:errcheck // Next read fails if this did
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(t.readDeadline())
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.hub.logger.Warn("websocket read failed", "error", err)
			}
			return
		}
		// Browsers do not always answer protocol pings; app traffic counts too.
		c.conn.SetReadDeadline(t.readDeadline()) //nolint:errcheck // Next read fails if this did
		c.handleMessage(data)
	}
}

func (c *WSClient) writePump() {
	t := c.hub.timings
	ticker := time.NewTicker(t.ping)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case data, ok := <-c.send:
			c.conn.SetWriteDeadline(t.writeDeadline()) //nolint:errcheck // Write below fails if this did
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, nil) //nolint:errcheck // Connection is going away
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(t.writeDeadline()) //nolint:errcheck // Ping below fails if this did
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (c *WSClient) handleMessage(data []byte) {
	var msg WSMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		c.sendError("", "invalid JSON message")
		return
	}

	switch msg.Type {
	case WSTypeSubscribe:
		c.handleSubscribe(msg)
	case WSTypeUnsubscribe:
		c.handleUnsubscribe(msg)
	case WSTypePing:
		c.reply(msg.ID, WSTypePong, nil)
	default:
		c.sendError(msg.ID, "unknown message type: "+msg.Type)
	}
}

// handleSubscribe adds channels, acknowledges, then sends the current value
// of each channel that has a snapshot. Unknown channels reject the request.
func (c *WSClient) handleSubscribe(msg WSMessage) {
	channels, err := requestedChannels(msg.Payload)
	if err != nil {
		c.sendError(msg.ID, err.Error())
		return
	}

	c.mu.Lock()
	for _, ch := range channels {
		c.subscriptions[ch] = struct{}{}
	}
	c.mu.Unlock()

	c.hub.logger.Debug("websocket client subscribed", "channels", channels)
	c.reply(msg.ID, WSTypeResponse, map[string]any{"subscribed": channels})

	for _, ch := range channels {
		fn, ok := c.hub.snapshot(ch)
		if !ok {
			continue
		}
		data, err := eventMessage(ch, fn())
		if err != nil {
			c.hub.logger.Error("websocket snapshot not encodable", "channel", ch, "error", err)
			continue
		}
		c.trySend(data)
	}
}

func (c *WSClient) handleUnsubscribe(msg WSMessage) {
	channels, err := requestedChannels(msg.Payload)
	if err != nil {
		c.sendError(msg.ID, err.Error())
		return
	}

	c.mu.Lock()
	for _, ch := range channels {
		delete(c.subscriptions, ch)
	}
	c.mu.Unlock()

	c.reply(msg.ID, WSTypeResponse, map[string]any{"unsubscribed": channels})
}

// requestedChannels reads {"channels": [...]} from a decoded payload.
func requestedChannels(payload any) ([]string, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("invalid payload")
	}
	var sub WSSubscribePayload
	if err := json.Unmarshal(raw, &sub); err != nil || len(sub.Channels) == 0 {
		return nil, fmt.Errorf("payload must list channels")
	}
	for _, ch := range sub.Channels {
		if _, ok := knownChannels[ch]; !ok {
			return nil, fmt.Errorf("unknown channel: %s", ch)
		}
	}
	return sub.Channels, nil
}

func (c *WSClient) isSubscribed(channel string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	_, ok := c.subscriptions[channel]
	return ok
}

func (c *WSClient) reply(id, msgType string, payload any) {
	data, err := json.Marshal(WSMessage{
		Type:      msgType,
		ID:        id,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Payload:   payload,
	})
	if err != nil {
		return
	}
	c.trySend(data)
}

func (c *WSClient) sendError(id, message string) {
	c.reply(id, WSTypeError, map[string]string{"message": message})
}
