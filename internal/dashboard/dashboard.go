package dashboard

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/benbjohnson/clock"
	"golang.org/x/time/rate"

	"github.com/nerrad567/nmos-dashboard/internal/eventbridge"
	"github.com/nerrad567/nmos-dashboard/internal/notify"
	"github.com/nerrad567/nmos-dashboard/internal/registry"
	"github.com/nerrad567/nmos-dashboard/internal/session"
)

// Logger is the logging interface used by the dashboard.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// WSHub is the interface for broadcasting WebSocket events.
type WSHub interface {
	// Broadcast sends an event to all clients subscribed to the given channel.
	Broadcast(channel string, payload any)
}

// Telemetry records bridge activity.
type Telemetry interface {
	WriteBridgeState(state string, connected bool)
	WriteBridgeEvent(topic, event string)
	WriteBridgeDropped(topic, reason string)
}

// Deps holds the dashboard's collaborators.
type Deps struct {
	Config        Config
	Bridge        *eventbridge.Manager // required when Config.Enabled
	Notifications *notify.Channel
	Registry      *registry.Client // optional
	Sessions      *session.Store   // optional
	Hub           WSHub            // optional
	Telemetry     Telemetry        // optional
	Logger        Logger
	Clock         clock.Clock
}

// Dashboard connects the event bridge to notifications, the WebSocket hub,
// the registry and telemetry.
//
// Thread Safety:
//   - All methods are safe for concurrent use.
//   - Bridge callbacks never call back into the Manager synchronously.
type Dashboard struct {
	cfg       Config
	bridge    *eventbridge.Manager
	notes     *notify.Channel
	registry  *registry.Client
	sessions  *session.Store
	hub       WSHub
	telemetry Telemetry
	logger    Logger
	clock     clock.Clock
	limiter   *rate.Limiter

	suppressed atomic.Uint64

	mu          sync.Mutex
	started     bool
	closed      bool
	ctx         context.Context
	cancel      context.CancelFunc
	unsubscribe func()
	lostID      uint64 // "interrupted" warning, 0 when none is shown
	wg          sync.WaitGroup

	loginMu sync.Mutex
}

// New creates a Dashboard. Nothing connects until Start.
func New(deps Deps) (*Dashboard, error) {
	if deps.Notifications == nil {
		return nil, fmt.Errorf("notification channel is required")
	}
	if deps.Config.Enabled && deps.Bridge == nil {
		return nil, fmt.Errorf("event bridge manager is required when the bridge is enabled")
	}

	d := &Dashboard{
		cfg:       deps.Config,
		bridge:    deps.Bridge,
		notes:     deps.Notifications,
		registry:  deps.Registry,
		sessions:  deps.Sessions,
		hub:       deps.Hub,
		telemetry: deps.Telemetry,
		logger:    deps.Logger,
		clock:     deps.Clock,
	}
	if d.logger == nil {
		d.logger = noopLogger{}
	}
	if d.clock == nil {
		d.clock = clock.New()
	}
	d.limiter = newLimiter(d.cfg.EventRate, d.cfg.EventBurst)
	return d, nil
}

func newLimiter(perSecond float64, burst int) *rate.Limiter {
	if perSecond <= 0 {
		return rate.NewLimiter(rate.Inf, 0)
	}
	if burst < 1 {
		burst = 1
	}
	return rate.NewLimiter(rate.Limit(perSecond), burst)
}

// Start loads the stored session, logs in if needed and connects the bridge.
//
// Bridge setup and connectivity problems are reported as notifications and
// never fail Start. Only a broken session store does.
func (d *Dashboard) Start(ctx context.Context) error {
	d.mu.Lock()
	if d.started || d.closed {
		d.mu.Unlock()
		return nil
	}
	d.started = true
	d.ctx, d.cancel = context.WithCancel(context.WithoutCancel(ctx))
	d.mu.Unlock()

	if d.hub != nil {
		unsubscribe := d.notes.Subscribe(func(list []notify.Notification) {
			d.hub.Broadcast(channelNotifications, list)
		})
		d.mu.Lock()
		d.unsubscribe = unsubscribe
		d.mu.Unlock()
	}

	if d.sessions != nil {
		if err := d.sessions.Load(ctx); err != nil {
			return fmt.Errorf("loading session: %w", err)
		}
	}
	d.ensureLogin(ctx)

	if !d.cfg.Enabled {
		d.logger.Info("event bridge disabled")
		return nil
	}

	d.bridge.SetOnStateChange(d.onStateChange)
	d.bridge.SetOnDrop(d.onDrop)

	if err := d.connect(ctx); err != nil {
		d.logger.Warn("event bridge not started", "error", err)
	}
	return nil
}

// Close disconnects the bridge and waits for background work.
func (d *Dashboard) Close() error {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return nil
	}
	d.closed = true
	cancel := d.cancel
	unsubscribe := d.unsubscribe
	d.mu.Unlock()

	if d.cfg.Enabled {
		d.bridge.Disconnect()
	}
	if cancel != nil {
		cancel()
	}
	d.wg.Wait()
	if unsubscribe != nil {
		unsubscribe()
	}
	return nil
}

// Status returns the bridge status.
func (d *Dashboard) Status() eventbridge.Status {
	if !d.cfg.Enabled {
		return eventbridge.Status{State: eventbridge.StateIdle}
	}
	return d.bridge.Status()
}

// Reconnect attempts a connection now. A Disconnected bridge skips its
// remaining retry delay; an Idle or Failed one connects from scratch with
// freshly resolved settings. It is a no-op while connecting or connected.
func (d *Dashboard) Reconnect(ctx context.Context) error {
	if !d.cfg.Enabled {
		return ErrBridgeDisabled
	}

	switch d.bridge.State() {
	case eventbridge.StateConnected, eventbridge.StateConnecting:
		return nil
	case eventbridge.StateDisconnected:
		if d.bridge.Reconnect() {
			d.logger.Info("manual reconnect requested")
		}
		return nil
	default:
		return d.connect(ctx)
	}
}

// Disconnect closes the bridge connection. Safe to repeat.
func (d *Dashboard) Disconnect() {
	if !d.cfg.Enabled {
		return
	}
	d.bridge.Disconnect()
}

// SuppressedNotifications returns how many flow notifications the rate
// limiter has dropped.
func (d *Dashboard) SuppressedNotifications() uint64 {
	return d.suppressed.Load()
}

// connect resolves the broker settings and hands them to the Manager.
func (d *Dashboard) connect(ctx context.Context) error {
	endpoint, prefix, err := d.resolveRealtime(ctx)
	if err != nil {
		if errors.Is(err, ErrRealtimeDisabled) {
			d.logger.Info("registry reports realtime events disabled")
			d.notes.Add(notify.KindWarning, "Live updates are disabled on the registry")
		}
		return err
	}

	if _, err := d.bridge.Connect(endpoint, prefix, d.handleEvent); err != nil {
		d.logger.Error("event bridge setup failed", "endpoint", endpoint, "topic_prefix", prefix, "error", err)
		d.notes.Add(notify.KindError, "Live updates unavailable: "+err.Error())
		return err
	}

	d.logger.Info("event bridge connecting", "endpoint", endpoint, "topic_prefix", prefix)
	return nil
}

// onStateChange mirrors bridge transitions to the UI and telemetry.
func (d *Dashboard) onStateChange(from, to eventbridge.State) {
	d.logger.Debug("event bridge state", "from", from, "to", to)

	if d.hub != nil {
		d.hub.Broadcast(channelBridgeState, d.bridge.Status())
	}
	if d.telemetry != nil {
		d.telemetry.WriteBridgeState(to.String(), to == eventbridge.StateConnected)
	}

	switch to {
	case eventbridge.StateDisconnected:
		message := "Cannot reach the event broker, retrying"
		if from == eventbridge.StateConnected {
			message = "Live updates interrupted, reconnecting"
		}
		d.mu.Lock()
		if d.lostID == 0 {
			d.lostID = d.notes.Add(notify.KindWarning, message)
		}
		d.mu.Unlock()

	case eventbridge.StateConnected:
		lost := d.takeLost()
		if lost == 0 {
			return
		}
		d.notes.Dismiss(lost)
		d.notes.AddWithTimeout(notify.KindSuccess, "Live updates restored", d.cfg.NotificationTTL)
		d.resyncAsync()

	case eventbridge.StateIdle:
		if lost := d.takeLost(); lost != 0 {
			d.notes.Dismiss(lost)
		}
	}
}

func (d *Dashboard) takeLost() uint64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	lost := d.lostID
	d.lostID = 0
	return lost
}

// onDrop records a discarded frame.
func (d *Dashboard) onDrop(topic string, err error) {
	if d.telemetry != nil {
		d.telemetry.WriteBridgeDropped(topic, err.Error())
	}
}
