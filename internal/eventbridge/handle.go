package eventbridge

import "time"

// Handle refers to one connection created by Connect. It stays valid after
// the connection is released; it then reports StateIdle.
//
// A nil *Handle is safe to query and reports an idle, unconnected bridge.
type Handle struct {
	m *Manager
	c *connection
}

// State returns the connection's state, or StateIdle once it has been
// released by Disconnect or superseded by a new Connect.
func (h *Handle) State() State {
	if h == nil {
		return StateIdle
	}
	h.m.mu.Lock()
	defer h.m.mu.Unlock()
	if h.m.conn != h.c {
		return StateIdle
	}
	return h.m.state
}

// IsConnected reports whether this connection is live.
func (h *Handle) IsConnected() bool {
	return h.State() == StateConnected
}

// Subscribed reports whether the event subscription was acknowledged on
// the current transport.
func (h *Handle) Subscribed() bool {
	if h == nil {
		return false
	}
	h.m.mu.Lock()
	defer h.m.mu.Unlock()
	return h.m.conn == h.c && h.c.subscribed
}

// ClientID returns the id presented to the broker. It does not change across reconnects.
func (h *Handle) ClientID() string {
	if h == nil {
		return ""
	}
	return h.c.clientID
}

// Endpoint returns the broker URL.
func (h *Handle) Endpoint() string {
	if h == nil {
		return ""
	}
	return h.c.endpoint
}

// TopicPrefix returns the prefix passed to Connect.
func (h *Handle) TopicPrefix() string {
	if h == nil {
		return ""
	}
	return h.c.topicPrefix
}

// Topic returns the subscribed topic, TopicPrefix + "/all".
func (h *Handle) Topic() string {
	if h == nil {
		return ""
	}
	return h.c.topic
}

// Status is a point-in-time view of the bridge.
type Status struct {
	State       State      `json:"state"`
	Endpoint    string     `json:"endpoint,omitempty"`
	ClientID    string     `json:"client_id,omitempty"`
	Topic       string     `json:"topic,omitempty"`
	Subscribed  bool       `json:"subscribed"`
	Attempts    int        `json:"reconnect_attempts"`
	Events      uint64     `json:"events"`
	Dropped     uint64     `json:"dropped"`
	LastError   string     `json:"last_error,omitempty"`
	ConnectedAt *time.Time `json:"connected_at,omitempty"`
}
