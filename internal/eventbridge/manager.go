package eventbridge

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/benbjohnson/clock"

	"github.com/nerrad567/nmos-dashboard/internal/infrastructure/mqtt"
)

// Logger interface for optional logging support.
// Compatible with logging.Logger and slog.Logger.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// noopLogger is a logger that does nothing.
type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// connection is the single logical broker session. Reconnects keep the
// same connection (client id, topic, handler) and swap the transport.
type connection struct {
	endpoint    string
	topicPrefix string
	topic       string
	clientID    string
	handler     Handler
	handle      *Handle

	transport Transport
	// gen identifies the current transport. Callbacks carrying an older
	// gen belong to a superseded socket and are ignored.
	gen    uint64
	timer  *clock.Timer
	closed bool

	attempts    int
	subscribed  bool
	lastErr     error
	connectedAt time.Time
	lost        bool
	events      uint64
	discarded   uint64
}

// Manager owns the bridge connection.
//
// Thread Safety:
//   - All methods are safe for concurrent use.
//   - State observers run after the lock is released, one at a time and in
//     transition order. They may query the Manager but must not call
//     Connect or Disconnect synchronously.
type Manager struct {
	cfg    Config
	clock  clock.Clock
	logger Logger

	mu         sync.Mutex
	conn       *connection
	state      State
	failErr    error
	nextTicket uint64

	observerMu    sync.Mutex
	onStateChange func(from, to State)
	onDrop        func(topic string, err error)

	// Transition batches are stamped under mu and delivered in stamp order.
	notifyMu   sync.Mutex
	notifyCond *sync.Cond
	doneTicket uint64

	dispatchMu sync.Mutex
	seq        uint64
}

// New creates a Manager in StateIdle.
func New(cfg Config) *Manager {
	cfg = cfg.withDefaults()
	m := &Manager{
		cfg:    cfg,
		clock:  cfg.Clock,
		logger: noopLogger{},
		state:  StateIdle,
	}
	m.notifyCond = sync.NewCond(&m.notifyMu)
	return m
}

// SetLogger sets the logger for the manager.
func (m *Manager) SetLogger(logger Logger) {
	if logger == nil {
		logger = noopLogger{}
	}
	m.mu.Lock()
	m.logger = logger
	m.mu.Unlock()
}

// SetOnStateChange registers an observer for state transitions.
func (m *Manager) SetOnStateChange(fn func(from, to State)) {
	m.observerMu.Lock()
	m.onStateChange = fn
	m.observerMu.Unlock()
}

// SetOnDrop registers an observer for frames discarded as malformed.
func (m *Manager) SetOnDrop(fn func(topic string, err error)) {
	m.observerMu.Lock()
	m.onDrop = fn
	m.observerMu.Unlock()
}

// Connect starts (or returns) the bridge connection.
//
// When already connected the existing handle is returned unchanged and the
// arguments are ignored. Any other existing connection is closed first and a
// fresh one is created. Connect never waits for the network: the first
// attempt runs in the background and failures lead to retries every
// ReconnectInterval.
//
// Returns:
//   - *Handle: Reference to the connection
//   - error: Only for misconfiguration; the manager is then in StateFailed
func (m *Manager) Connect(endpoint, topicPrefix string, onEvent Handler) (*Handle, error) {
	m.mu.Lock()

	if m.conn != nil && m.state == StateConnected {
		h := m.conn.handle
		m.mu.Unlock()
		return h, nil
	}

	var changes []transition
	old := m.detachLocked()
	m.setStateLocked(StateIdle, &changes)

	c, err := m.newConnectionLocked(endpoint, topicPrefix, onEvent)
	if err != nil {
		m.failErr = err
		m.setStateLocked(StateFailed, &changes)
		logger := m.logger
		m.unlockAndNotify(changes)
		closeTransport(old)
		logger.Error("event bridge setup failed",
			"endpoint", endpoint,
			"topic_prefix", topicPrefix,
			"error", err,
		)
		return nil, err
	}

	m.conn = c
	m.failErr = nil
	m.setStateLocked(StateConnecting, &changes)
	gen, t := c.gen, c.transport
	logger := m.logger
	m.unlockAndNotify(changes)

	closeTransport(old)

	logger.Info("event bridge connecting",
		"endpoint", endpoint,
		"client_id", c.clientID,
		"topic", c.topic,
	)

	go m.attempt(c, gen, t)
	return c.handle, nil
}

// Disconnect closes the connection and cancels any pending reconnect.
// Calling it with no connection is a no-op. A Failed manager returns to Idle.
func (m *Manager) Disconnect() {
	m.mu.Lock()
	var changes []transition

	if m.conn == nil {
		if m.state == StateFailed {
			m.failErr = nil
			m.setStateLocked(StateIdle, &changes)
		}
		m.unlockAndNotify(changes)
		return
	}

	clientID := m.conn.clientID
	t := m.detachLocked()
	m.setStateLocked(StateDisconnecting, &changes)
	logger := m.logger
	m.unlockAndNotify(changes)

	closeTransport(t)

	m.mu.Lock()
	changes = nil
	if m.conn == nil && m.state == StateDisconnecting {
		m.setStateLocked(StateIdle, &changes)
	}
	m.unlockAndNotify(changes)

	logger.Info("event bridge disconnected", "client_id", clientID)
}

// Reconnect skips the remaining reconnect delay and attempts immediately.
// It reports whether an attempt was started; it does nothing unless the
// connection is Disconnected.
func (m *Manager) Reconnect() bool {
	m.mu.Lock()
	c := m.conn
	if c == nil || m.state != StateDisconnected {
		m.mu.Unlock()
		return false
	}
	if c.timer != nil {
		c.timer.Stop()
		c.timer = nil
	}
	gen := c.gen
	m.mu.Unlock()

	go m.reconnect(c, gen)
	return true
}

// IsConnected reports whether the bridge is connected.
func (m *Manager) IsConnected() bool {
	return m.State() == StateConnected
}

// State returns the current state.
func (m *Manager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Handle returns the current connection handle, or nil when there is none.
func (m *Manager) Handle() *Handle {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.conn == nil {
		return nil
	}
	return m.conn.handle
}

// Status returns a snapshot of the connection for display.
func (m *Manager) Status() Status {
	m.mu.Lock()
	defer m.mu.Unlock()

	st := Status{State: m.state}
	if m.failErr != nil {
		st.LastError = m.failErr.Error()
	}

	c := m.conn
	if c == nil {
		return st
	}

	st.Endpoint = c.endpoint
	st.ClientID = c.clientID
	st.Topic = c.topic
	st.Subscribed = c.subscribed
	st.Attempts = c.attempts
	st.Events = c.events
	st.Dropped = c.discarded
	if c.lastErr != nil {
		st.LastError = c.lastErr.Error()
	}
	if m.state == StateConnected && !c.connectedAt.IsZero() {
		at := c.connectedAt
		st.ConnectedAt = &at
	}
	return st
}

// =============================================================================
// Internals
// =============================================================================

func (m *Manager) newConnectionLocked(endpoint, topicPrefix string, onEvent Handler) (*connection, error) {
	if topicPrefix == "" {
		return nil, ErrEmptyTopicPrefix
	}
	if onEvent == nil {
		return nil, ErrNilHandler
	}
	if _, _, err := mqtt.ParseBroker(endpoint); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidEndpoint, err)
	}

	c := &connection{
		endpoint:    endpoint,
		topicPrefix: topicPrefix,
		topic:       mqtt.Topics{}.All(topicPrefix),
		clientID:    fmt.Sprintf("%s-%d", m.cfg.ClientIDPrefix, m.clock.Now().UnixMilli()),
		handler:     onEvent,
		gen:         1,
	}
	c.handle = &Handle{m: m, c: c}

	t, err := m.dialLocked(c, c.gen)
	if err != nil {
		return nil, err
	}
	c.transport = t
	return c, nil
}

// dialLocked builds a transport for generation gen of c.
func (m *Manager) dialLocked(c *connection, gen uint64) (Transport, error) {
	opts := mqtt.Options{
		Broker:         c.endpoint,
		ClientID:       c.clientID,
		ConnectTimeout: m.cfg.ConnectTimeout,
		KeepAlive:      m.cfg.KeepAlive,
		Logger:         m.logger,
		OnConnectionLost: func(err error) {
			m.handleLost(c, gen, err)
		},
	}
	if m.cfg.Username != "" {
		opts.Username = m.cfg.Username
		if m.cfg.Tokens != nil {
			opts.Password = m.cfg.Tokens.Token()
		}
	}

	t, err := m.cfg.Dialer(opts)
	if err != nil {
		if errors.Is(err, mqtt.ErrInvalidBroker) {
			return nil, fmt.Errorf("%w: %w", ErrInvalidEndpoint, err)
		}
		return nil, fmt.Errorf("%w: %w", ErrDialFailed, err)
	}
	if t == nil {
		return nil, fmt.Errorf("%w: dialer returned no transport", ErrDialFailed)
	}
	return t, nil
}

// detachLocked releases the current connection and returns its transport
// for closing outside the lock.
func (m *Manager) detachLocked() Transport {
	c := m.conn
	if c == nil {
		return nil
	}
	c.closed = true
	c.gen++
	if c.timer != nil {
		c.timer.Stop()
		c.timer = nil
	}
	t := c.transport
	c.transport = nil
	c.subscribed = false
	m.conn = nil
	return t
}

// currentLocked reports whether (c, gen) is still the live transport.
func (m *Manager) currentLocked(c *connection, gen uint64) bool {
	return m.conn == c && !c.closed && c.gen == gen
}

func (m *Manager) setStateLocked(to State, changes *[]transition) {
	if m.state == to {
		return
	}
	*changes = append(*changes, transition{from: m.state, to: to})
	m.state = to
}

// unlockAndNotify releases m.mu and delivers changes to the observer.
// Batches are numbered while m.mu is held so concurrent callers deliver in
// the order their transitions happened.
func (m *Manager) unlockAndNotify(changes []transition) {
	if len(changes) == 0 {
		m.mu.Unlock()
		return
	}
	ticket := m.nextTicket
	m.nextTicket++
	logger := m.logger
	m.mu.Unlock()

	m.notifyMu.Lock()
	defer m.notifyMu.Unlock()
	for m.doneTicket != ticket {
		m.notifyCond.Wait()
	}

	m.observerMu.Lock()
	fn := m.onStateChange
	m.observerMu.Unlock()

	for _, ch := range changes {
		logger.Debug("event bridge state changed", "from", ch.from.String(), "to", ch.to.String())
		if fn != nil {
			observe(fn, ch, logger)
		}
	}

	m.doneTicket++
	m.notifyCond.Broadcast()
}

func observe(fn func(from, to State), ch transition, logger Logger) {
	defer func() {
		if r := recover(); r != nil {
			logger.Error("state observer panic recovered", "to", ch.to.String(), "panic", r)
		}
	}()
	fn(ch.from, ch.to)
}

func (m *Manager) scheduleLocked(c *connection, gen uint64) {
	if c.timer != nil {
		c.timer.Stop()
	}
	c.timer = m.clock.AfterFunc(m.cfg.ReconnectInterval, func() {
		m.reconnect(c, gen)
	})
}

// attempt runs one connect handshake on t and records the outcome.
func (m *Manager) attempt(c *connection, gen uint64, t Transport) {
	err := m.connectWithTimeout(t)

	m.mu.Lock()
	if !m.currentLocked(c, gen) || m.state != StateConnecting || c.transport != t {
		m.mu.Unlock()
		t.Close()
		return
	}

	var changes []transition
	logger := m.logger

	if err != nil {
		c.lastErr = err
		c.transport = nil
		m.setStateLocked(StateDisconnected, &changes)
		m.scheduleLocked(c, gen)
		attempts := c.attempts
		m.unlockAndNotify(changes)

		t.Close()
		logger.Warn("event bridge connect failed",
			"endpoint", c.endpoint,
			"client_id", c.clientID,
			"attempt", attempts,
			"retry_in", m.cfg.ReconnectInterval.String(),
			"error", err,
		)
		return
	}

	c.lastErr = nil
	c.attempts = 0
	c.connectedAt = m.clock.Now()
	recovered := c.lost
	c.lost = false
	m.setStateLocked(StateConnected, &changes)
	m.unlockAndNotify(changes)

	if recovered {
		logger.Info("event bridge reconnected", "client_id", c.clientID)
	} else {
		logger.Info("event bridge connected", "client_id", c.clientID)
	}

	subErr := t.Subscribe(c.topic, m.cfg.QoS, func(topic string, payload []byte) error {
		m.handleFrame(c, gen, topic, payload)
		return nil
	})

	m.mu.Lock()
	current := m.currentLocked(c, gen) && m.state == StateConnected
	if current {
		c.subscribed = subErr == nil
		if subErr != nil {
			c.lastErr = subErr
		}
	}
	m.mu.Unlock()

	if !current {
		return
	}
	if subErr != nil {
		logger.Error("event bridge subscribe failed",
			"topic", c.topic,
			"client_id", c.clientID,
			"error", subErr,
		)
		return
	}
	logger.Debug("event bridge subscribed", "topic", c.topic)
}

func (m *Manager) connectWithTimeout(t Transport) error {
	timer := m.clock.Timer(m.cfg.ConnectTimeout)
	defer timer.Stop()

	done := make(chan error, 1)
	go func() {
		done <- t.Connect()
	}()

	select {
	case err := <-done:
		return err
	case <-timer.C:
		t.Close()
		return fmt.Errorf("%w after %v", ErrConnectTimeout, m.cfg.ConnectTimeout)
	}
}

// handleLost runs when an established transport drops unexpectedly.
func (m *Manager) handleLost(c *connection, gen uint64, cause error) {
	m.mu.Lock()
	if !m.currentLocked(c, gen) {
		m.mu.Unlock()
		return
	}

	var changes []transition
	t := c.transport
	c.transport = nil
	c.subscribed = false
	c.lost = true
	c.lastErr = cause
	// Retire the lost socket so an in-flight attempt or late frame on it
	// cannot revive the connection.
	c.gen++
	m.setStateLocked(StateDisconnected, &changes)
	m.scheduleLocked(c, c.gen)
	logger := m.logger
	m.unlockAndNotify(changes)

	closeTransport(t)
	logger.Warn("event bridge connection lost",
		"client_id", c.clientID,
		"retry_in", m.cfg.ReconnectInterval.String(),
		"error", cause,
	)
}

// reconnect dials a fresh transport for c if gen is still current.
func (m *Manager) reconnect(c *connection, gen uint64) {
	m.mu.Lock()
	if !m.currentLocked(c, gen) || m.state != StateDisconnected {
		m.mu.Unlock()
		return
	}

	c.timer = nil
	c.attempts++
	c.gen++
	gen = c.gen

	t, err := m.dialLocked(c, gen)
	if err != nil {
		c.lastErr = err
		m.scheduleLocked(c, gen)
		logger := m.logger
		m.mu.Unlock()
		logger.Error("event bridge redial failed", "client_id", c.clientID, "error", err)
		return
	}

	var changes []transition
	c.transport = t
	m.setStateLocked(StateConnecting, &changes)
	attempts := c.attempts
	logger := m.logger
	m.unlockAndNotify(changes)

	logger.Debug("event bridge reconnecting", "client_id", c.clientID, "attempt", attempts)
	m.attempt(c, gen, t)
}

// handleFrame parses one frame and delivers it. Frames from superseded
// transports are ignored.
func (m *Manager) handleFrame(c *connection, gen uint64, topic string, payload []byte) {
	m.mu.Lock()
	if !m.currentLocked(c, gen) {
		m.mu.Unlock()
		return
	}
	handler := c.handler
	m.mu.Unlock()

	value, err := decodePayload(payload)
	if err != nil {
		m.drop(c, topic, err)
		return
	}

	m.dispatchMu.Lock()
	defer m.dispatchMu.Unlock()

	m.seq++
	ev := Event{
		Topic:      topic,
		Payload:    value,
		Raw:        bytes.Clone(payload),
		ReceivedAt: m.clock.Now(),
		Seq:        m.seq,
	}

	m.mu.Lock()
	c.events++
	m.mu.Unlock()

	m.deliver(handler, ev)
}

func decodePayload(payload []byte) (any, error) {
	if !utf8.Valid(payload) {
		return nil, fmt.Errorf("%w: invalid utf-8", ErrMalformedPayload)
	}
	var v any
	if err := json.Unmarshal(payload, &v); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMalformedPayload, err)
	}
	return v, nil
}

func (m *Manager) drop(c *connection, topic string, err error) {
	m.mu.Lock()
	c.discarded++
	total := c.discarded
	logger := m.logger
	m.mu.Unlock()

	logger.Warn("event bridge dropped frame",
		"topic", topic,
		"dropped_total", total,
		"error", err,
	)

	m.observerMu.Lock()
	fn := m.onDrop
	m.observerMu.Unlock()
	if fn != nil {
		fn(topic, err)
	}
}

func (m *Manager) deliver(handler Handler, ev Event) {
	defer func() {
		if r := recover(); r != nil {
			m.mu.Lock()
			logger := m.logger
			m.mu.Unlock()
			logger.Error("event handler panic recovered",
				"topic", ev.Topic,
				"seq", ev.Seq,
				"panic", r,
			)
		}
	}()
	handler(ev)
}

func closeTransport(t Transport) {
	if t != nil {
		t.Close()
	}
}
