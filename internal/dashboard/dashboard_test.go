package dashboard

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/benbjohnson/clock"

	"github.com/nerrad567/nmos-dashboard/internal/eventbridge"
	"github.com/nerrad567/nmos-dashboard/internal/infrastructure/config"
	"github.com/nerrad567/nmos-dashboard/internal/infrastructure/database"
	"github.com/nerrad567/nmos-dashboard/internal/notify"
	"github.com/nerrad567/nmos-dashboard/internal/registry"
	"github.com/nerrad567/nmos-dashboard/internal/session"
	"github.com/nerrad567/nmos-dashboard/migrations"
)

const (
	testEndpoint = "ws://localhost:9001"
	testPrefix   = "go-nmos/flows/events"

	createdPayload = `{"event":"created","flow_id":"f1","flow":{"label":"Camera 1"},"timestamp":"2026-10-19T12:00:00Z"}`
)

// =============================================================================
// Harness
// =============================================================================

type harness struct {
	d      *Dashboard
	bridge *eventbridge.Manager
	dialer *fakeDialer
	hub    *fakeHub
	tel    *fakeTelemetry
	notes  *notify.Channel
	mock   *clock.Mock
}

func defaultConfig() Config {
	return Config{
		Enabled:         true,
		Endpoint:        testEndpoint,
		TopicPrefix:     testPrefix,
		NotificationTTL: 5 * time.Second,
	}
}

func newHarness(t *testing.T, cfg Config, extra func(*Deps)) *harness {
	t.Helper()

	mock := clock.NewMock()
	mock.Set(time.Date(2026, 10, 19, 12, 0, 0, 0, time.UTC))

	h := &harness{
		dialer: &fakeDialer{},
		hub:    newFakeHub(),
		tel:    &fakeTelemetry{},
		notes:  notify.New(notify.WithClock(mock)),
		mock:   mock,
	}
	h.bridge = eventbridge.New(eventbridge.Config{Dialer: h.dialer.Dial, Clock: mock})

	deps := Deps{
		Config:        cfg,
		Bridge:        h.bridge,
		Notifications: h.notes,
		Hub:           h.hub,
		Telemetry:     h.tel,
		Clock:         mock,
	}
	if extra != nil {
		extra(&deps)
	}

	d, err := New(deps)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	h.d = d
	t.Cleanup(func() {
		d.Close() //nolint:errcheck // Test cleanup
		h.notes.Close()
	})
	return h
}

func (h *harness) start(t *testing.T) {
	t.Helper()
	if err := h.d.Start(context.Background()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
}

func (h *harness) waitConnected(t *testing.T, transport int) *fakeTransport {
	t.Helper()
	waitFor(t, "bridge connected", func() bool {
		if h.dialer.count() <= transport || !h.bridge.IsConnected() {
			return false
		}
		_, handler := h.dialer.get(t, transport).subscribed()
		return handler != nil
	})
	return h.dialer.get(t, transport)
}

func (h *harness) hasNote(kind notify.Kind, message string) bool {
	for _, n := range h.notes.List() {
		if n.Kind == kind && n.Message == message {
			return true
		}
	}
	return false
}

func event(seq uint64, raw string) eventbridge.Event {
	var payload any
	_ = json.Unmarshal([]byte(raw), &payload) //nolint:errcheck // Test fixture
	return eventbridge.Event{
		Topic:      testPrefix + "/all",
		Payload:    payload,
		Raw:        []byte(raw),
		ReceivedAt: time.Date(2026, 10, 19, 12, 0, 0, 0, time.UTC),
		Seq:        seq,
	}
}

// fakeRegistry serves the registry endpoints the dashboard uses.
type fakeRegistry struct {
	mu             sync.Mutex
	realtime       map[string]any
	realtimeStatus int
	validToken     string // when set, other tokens get 401
	loginToken     string
	logins         int
	summaries      int
}

func (f *fakeRegistry) authorised(r *http.Request) bool {
	return f.validToken == "" || r.Header.Get("Authorization") == "Bearer "+f.validToken
}

func (f *fakeRegistry) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()

	w.Header().Set("Content-Type", "application/json")
	switch r.URL.Path {
	case "/api/login":
		f.logins++
		var body map[string]string
		_ = json.NewDecoder(r.Body).Decode(&body) //nolint:errcheck // Test server
		if body["password"] != "secret" {
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = w.Write([]byte(`{"error":"invalid credentials"}`)) //nolint:errcheck // Test server
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]any{ //nolint:errcheck // Test server
			"token": f.loginToken,
			"user":  map[string]string{"username": body["username"], "role": "admin"},
		})
	case "/api/realtime/config":
		if !f.authorised(r) {
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = w.Write([]byte(`{"error":"unauthorized"}`)) //nolint:errcheck // Test server
			return
		}
		if f.realtimeStatus != 0 {
			w.WriteHeader(f.realtimeStatus)
			return
		}
		_ = json.NewEncoder(w).Encode(f.realtime) //nolint:errcheck // Test server
	case "/api/flows/summary":
		f.summaries++
		_, _ = w.Write([]byte(`{"total":3,"active":2}`)) //nolint:errcheck // Test server
	default:
		http.NotFound(w, r)
	}
}

func (f *fakeRegistry) counts() (logins, summaries int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.logins, f.summaries
}

func withRegistry(t *testing.T, fr *fakeRegistry, store **session.Store) func(*Deps) {
	t.Helper()

	ts := httptest.NewServer(fr)
	t.Cleanup(ts.Close)

	client, err := registry.New(registry.Config{BaseURL: ts.URL + "/api", Timeout: 2 * time.Second})
	if err != nil {
		t.Fatalf("registry.New() error = %v", err)
	}

	db, err := database.Open(database.Config{Path: database.MemoryPath})
	if err != nil {
		t.Fatalf("database.Open() error = %v", err)
	}
	t.Cleanup(func() { db.Close() }) //nolint:errcheck // Test cleanup
	if err := db.Migrate(context.Background(), migrations.FS); err != nil {
		t.Fatalf("Migrate() error = %v", err)
	}
	sessions := session.New(db)
	if store != nil {
		*store = sessions
	}

	return func(deps *Deps) {
		deps.Registry = client
		deps.Sessions = sessions
	}
}

// =============================================================================
// Construction Tests
// =============================================================================

func TestNew_Validation(t *testing.T) {
	if _, err := New(Deps{Config: Config{}}); err == nil {
		t.Error("New() without notifications should fail")
	}
	if _, err := New(Deps{Config: Config{Enabled: true}, Notifications: notify.New()}); err == nil {
		t.Error("New() with bridge enabled and no manager should fail")
	}
	if _, err := New(Deps{Notifications: notify.New()}); err != nil {
		t.Errorf("New() with bridge disabled error = %v", err)
	}
}

func TestConfigFrom(t *testing.T) {
	cfg := config.Default()
	cfg.Notifications.TTL = 8
	cfg.Registry.Username = "admin"

	got := ConfigFrom(cfg)
	if got.Endpoint != cfg.Bridge.URL || got.TopicPrefix != cfg.Bridge.TopicPrefix {
		t.Errorf("bridge settings = %q %q", got.Endpoint, got.TopicPrefix)
	}
	if got.NotificationTTL != 8*time.Second {
		t.Errorf("NotificationTTL = %v, want 8s", got.NotificationTTL)
	}
	if got.Username != "admin" || !got.Enabled {
		t.Errorf("config = %+v", got)
	}
}

// =============================================================================
// Event Dispatch Tests
// =============================================================================

func TestStart_ConnectsAndRelaysEvents(t *testing.T) {
	h := newHarness(t, defaultConfig(), nil)
	h.start(t)

	ft := h.waitConnected(t, 0)
	if topic, _ := ft.subscribed(); topic != testPrefix+"/all" {
		t.Errorf("subscribed topic = %q", topic)
	}

	ft.send(t, createdPayload)

	waitFor(t, "flow notification", func() bool {
		return h.hasNote(notify.KindSuccess, "Flow created: Camera 1")
	})

	relayed := h.hub.on(channelFlowEvent)
	if len(relayed) != 1 {
		t.Fatalf("flow.event broadcasts = %d, want 1", len(relayed))
	}
	ev, ok := relayed[0].(RelayedEvent)
	if !ok {
		t.Fatalf("payload type = %T", relayed[0])
	}
	if ev.Seq != 1 || ev.Topic != testPrefix+"/all" || string(ev.Payload) != createdPayload {
		t.Errorf("relayed = %+v", ev)
	}

	_, events, _ := h.tel.snapshot()
	if len(events) != 1 || events[0] != FlowCreated {
		t.Errorf("telemetry events = %v", events)
	}
}

func TestHandleEvent_NotificationKinds(t *testing.T) {
	tests := []struct {
		raw     string
		kind    notify.Kind
		message string
	}{
		{createdPayload, notify.KindSuccess, "Flow created: Camera 1"},
		{`{"event":"updated","flow_id":"f2","diff":{"label":["a","b"]}}`, notify.KindSuccess, "Flow updated: f2"},
		{`{"event":"deleted","flow_id":"f3","flow":{"label":""}}`, notify.KindWarning, "Flow deleted: f3"},
		{`{"event":"hard_deleted","flow_id":"f4"}`, notify.KindWarning, "Flow permanently deleted: f4"},
		{`{"event":"created"}`, notify.KindSuccess, "Flow created: unknown flow"},
	}
	for _, tt := range tests {
		t.Run(tt.message, func(t *testing.T) {
			h := newHarness(t, Config{}, nil)
			h.d.handleEvent(event(1, tt.raw))

			list := h.notes.List()
			if len(list) != 1 {
				t.Fatalf("notifications = %d, want 1", len(list))
			}
			if list[0].Kind != tt.kind || list[0].Message != tt.message {
				t.Errorf("got %s %q, want %s %q", list[0].Kind, list[0].Message, tt.kind, tt.message)
			}
		})
	}
}

func TestHandleEvent_NonFlowEventsRelayedOnly(t *testing.T) {
	h := newHarness(t, Config{}, nil)

	for i, raw := range []string{`[1,2,3]`, `"hello"`, `{"flow_id":"x"}`, `{"event":"renamed"}`} {
		h.d.handleEvent(event(uint64(i+1), raw))
	}

	if h.notes.Len() != 0 {
		t.Errorf("notifications = %+v, want none", h.notes.List())
	}
	if got := len(h.hub.on(channelFlowEvent)); got != 4 {
		t.Errorf("relayed = %d, want 4", got)
	}
	_, events, _ := h.tel.snapshot()
	if len(events) != 4 || events[0] != "" || events[3] != "renamed" {
		t.Errorf("telemetry events = %q", events)
	}
}

func TestHandleEvent_RateLimitsNotificationsNotEvents(t *testing.T) {
	cfg := Config{EventRate: 1, EventBurst: 2}
	h := newHarness(t, cfg, nil)

	for i := 1; i <= 5; i++ {
		h.d.handleEvent(event(uint64(i), createdPayload))
	}

	if got := h.notes.Len(); got != 2 {
		t.Errorf("notifications = %d, want 2 (burst)", got)
	}
	if got := h.d.SuppressedNotifications(); got != 3 {
		t.Errorf("SuppressedNotifications() = %d, want 3", got)
	}
	if got := len(h.hub.on(channelFlowEvent)); got != 5 {
		t.Errorf("relayed events = %d, want 5", got)
	}

	h.mock.Add(time.Second)
	h.d.handleEvent(event(6, createdPayload))
	if got := h.notes.Len(); got != 3 {
		t.Errorf("notifications after refill = %d, want 3", got)
	}
}

func TestHandleEvent_NotificationsExpire(t *testing.T) {
	h := newHarness(t, Config{NotificationTTL: 5 * time.Second}, nil)

	h.d.handleEvent(event(1, createdPayload))
	if h.notes.Len() != 1 {
		t.Fatalf("notifications = %d, want 1", h.notes.Len())
	}

	h.mock.Add(6 * time.Second)
	waitFor(t, "notification expiry", func() bool { return h.notes.Len() == 0 })
}

func TestOnDrop_RecordsTelemetry(t *testing.T) {
	h := newHarness(t, defaultConfig(), nil)
	h.start(t)
	ft := h.waitConnected(t, 0)

	ft.send(t, `{not json`)

	waitFor(t, "drop telemetry", func() bool {
		_, _, dropped := h.tel.snapshot()
		return len(dropped) == 1
	})
	if got := h.bridge.Status().Dropped; got != 1 {
		t.Errorf("Status().Dropped = %d, want 1", got)
	}
	if h.notes.Len() != 0 {
		t.Errorf("malformed frame produced notifications: %+v", h.notes.List())
	}
}

// =============================================================================
// Bridge Lifecycle Tests
// =============================================================================

func TestStart_MirrorsStateAndNotifications(t *testing.T) {
	h := newHarness(t, defaultConfig(), nil)
	h.start(t)
	h.waitConnected(t, 0)

	waitFor(t, "connected state broadcast", func() bool {
		states := h.hub.on(channelBridgeState)
		if len(states) == 0 {
			return false
		}
		last, ok := states[len(states)-1].(eventbridge.Status)
		return ok && last.State == eventbridge.StateConnected
	})

	states, _, _ := h.tel.snapshot()
	if len(states) < 2 || states[0] != "connecting" || states[len(states)-1] != "connected" {
		t.Errorf("telemetry states = %v", states)
	}

	before := len(h.hub.on(channelNotifications))
	if before == 0 {
		t.Error("no initial notifications snapshot")
	}
	h.notes.Add(notify.KindError, "x")
	if got := len(h.hub.on(channelNotifications)); got != before+1 {
		t.Errorf("notifications broadcasts = %d, want %d", got, before+1)
	}
}

func TestStart_SetupFailureNotifies(t *testing.T) {
	cfg := defaultConfig()
	cfg.Endpoint = "http://localhost:9001"
	h := newHarness(t, cfg, nil)

	h.start(t)

	if got := h.bridge.State(); got != eventbridge.StateFailed {
		t.Errorf("State() = %v, want failed", got)
	}
	list := h.notes.List()
	if len(list) != 1 || list[0].Kind != notify.KindError || !strings.HasPrefix(list[0].Message, "Live updates unavailable: ") {
		t.Errorf("notifications = %+v", list)
	}
	if h.dialer.count() != 0 {
		t.Errorf("dialed %d transports for an invalid endpoint", h.dialer.count())
	}
}

func TestStart_BridgeDisabled(t *testing.T) {
	cfg := defaultConfig()
	cfg.Enabled = false
	h := newHarness(t, cfg, nil)

	h.start(t)

	if h.dialer.count() != 0 {
		t.Error("disabled bridge dialed")
	}
	if !errors.Is(h.d.Reconnect(context.Background()), ErrBridgeDisabled) {
		t.Error("Reconnect() should report ErrBridgeDisabled")
	}
	if h.d.Status().State != eventbridge.StateIdle {
		t.Errorf("Status().State = %v", h.d.Status().State)
	}
	h.d.Disconnect()
}

func TestConnectionLost_WarnsThenRestoresAndResyncs(t *testing.T) {
	fr := &fakeRegistry{}
	h := newHarness(t, defaultConfig(), withRegistry(t, fr, nil))
	h.start(t)

	h.waitConnected(t, 0).lose()

	waitFor(t, "interruption warning", func() bool {
		return h.hasNote(notify.KindWarning, "Live updates interrupted, reconnecting")
	})
	if h.bridge.State() != eventbridge.StateDisconnected {
		t.Fatalf("State() = %v, want disconnected", h.bridge.State())
	}

	h.mock.Add(5 * time.Second)
	h.waitConnected(t, 1)

	waitFor(t, "restored notification", func() bool {
		return h.hasNote(notify.KindSuccess, "Live updates restored")
	})
	if h.hasNote(notify.KindWarning, "Live updates interrupted, reconnecting") {
		t.Error("interruption warning not dismissed")
	}

	waitFor(t, "flow summary resync", func() bool {
		return len(h.hub.on(channelFlowsSummary)) == 1
	})
	summary, ok := h.hub.on(channelFlowsSummary)[0].(json.RawMessage)
	if !ok || string(summary) != `{"total":3,"active":2}` {
		t.Errorf("summary = %v", h.hub.on(channelFlowsSummary)[0])
	}

	first := h.dialer.get(t, 0).opts.ClientID
	if second := h.dialer.get(t, 1).opts.ClientID; second != first {
		t.Errorf("reconnect client id = %q, want %q", second, first)
	}
}

func TestInitialConnectFailure_Warns(t *testing.T) {
	h := newHarness(t, defaultConfig(), nil)
	h.dialer.failFirst = 1
	h.start(t)

	waitFor(t, "retry warning", func() bool {
		return h.hasNote(notify.KindWarning, "Cannot reach the event broker, retrying")
	})

	if err := h.d.Reconnect(context.Background()); err != nil {
		t.Fatalf("Reconnect() error = %v", err)
	}
	h.waitConnected(t, 1)
	waitFor(t, "restored notification", func() bool {
		return h.hasNote(notify.KindSuccess, "Live updates restored")
	})
}

func TestReconnect_States(t *testing.T) {
	h := newHarness(t, defaultConfig(), nil)
	h.start(t)
	h.waitConnected(t, 0)

	if err := h.d.Reconnect(context.Background()); err != nil {
		t.Fatalf("Reconnect() while connected error = %v", err)
	}
	if h.dialer.count() != 1 {
		t.Errorf("Reconnect() while connected dialed again")
	}

	h.d.Disconnect()
	h.d.Disconnect()
	if got := h.d.Status().State; got != eventbridge.StateIdle {
		t.Fatalf("State after Disconnect = %v, want idle", got)
	}

	if err := h.d.Reconnect(context.Background()); err != nil {
		t.Fatalf("Reconnect() from idle error = %v", err)
	}
	h.waitConnected(t, 1)
}

func TestDisconnect_DismissesInterruptionWarning(t *testing.T) {
	h := newHarness(t, defaultConfig(), nil)
	h.start(t)
	h.waitConnected(t, 0).lose()

	waitFor(t, "interruption warning", func() bool { return h.notes.Len() == 1 })

	h.d.Disconnect()
	waitFor(t, "warning dismissed", func() bool { return h.notes.Len() == 0 })

	h.mock.Add(10 * time.Second)
	time.Sleep(20 * time.Millisecond)
	if h.dialer.count() != 1 {
		t.Errorf("transports dialed after Disconnect = %d, want 1", h.dialer.count())
	}
}

func TestClose_Idempotent(t *testing.T) {
	h := newHarness(t, defaultConfig(), nil)
	h.start(t)
	h.waitConnected(t, 0)

	if err := h.d.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if err := h.d.Close(); err != nil {
		t.Errorf("second Close() error = %v", err)
	}
	if h.bridge.State() != eventbridge.StateIdle {
		t.Errorf("State() after Close = %v, want idle", h.bridge.State())
	}
	if err := h.d.Start(context.Background()); err != nil {
		t.Errorf("Start() after Close error = %v", err)
	}
	if h.dialer.count() != 1 {
		t.Error("Start() after Close reconnected")
	}
}

// =============================================================================
// Realtime Discovery Tests
// =============================================================================

func TestDiscovery_UsesRegistrySettings(t *testing.T) {
	fr := &fakeRegistry{realtime: map[string]any{
		"mqtt_enabled": true,
		"ws_url":       "ws://discovered:9001",
		"topic_prefix": "studio/flows",
		"broker_url":   "tcp://mosquitto:1883",
	}}
	cfg := defaultConfig()
	cfg.Discover = true
	h := newHarness(t, cfg, withRegistry(t, fr, nil))

	h.start(t)
	ft := h.waitConnected(t, 0)

	if ft.opts.Broker != "ws://discovered:9001" {
		t.Errorf("broker = %q", ft.opts.Broker)
	}
	if topic, _ := ft.subscribed(); topic != "studio/flows/all" {
		t.Errorf("topic = %q", topic)
	}
}

func TestDiscovery_FallsBackOnError(t *testing.T) {
	fr := &fakeRegistry{realtimeStatus: http.StatusInternalServerError}
	cfg := defaultConfig()
	cfg.Discover = true
	h := newHarness(t, cfg, withRegistry(t, fr, nil))

	h.start(t)
	ft := h.waitConnected(t, 0)

	if ft.opts.Broker != testEndpoint {
		t.Errorf("broker = %q, want configured %q", ft.opts.Broker, testEndpoint)
	}
}

func TestDiscovery_RegistryDisabledRealtime(t *testing.T) {
	fr := &fakeRegistry{realtime: map[string]any{"mqtt_enabled": false}}
	cfg := defaultConfig()
	cfg.Discover = true
	h := newHarness(t, cfg, withRegistry(t, fr, nil))

	h.start(t)

	if h.dialer.count() != 0 {
		t.Error("bridge dialed although the registry disabled realtime")
	}
	if !h.hasNote(notify.KindWarning, "Live updates are disabled on the registry") {
		t.Errorf("notifications = %+v", h.notes.List())
	}
	if !errors.Is(h.d.Reconnect(context.Background()), ErrRealtimeDisabled) {
		t.Error("Reconnect() should report ErrRealtimeDisabled")
	}
}

// =============================================================================
// Session Tests
// =============================================================================

func TestStart_LogsInWithConfiguredCredentials(t *testing.T) {
	fr := &fakeRegistry{loginToken: "fresh"}
	cfg := defaultConfig()
	cfg.Enabled = false
	cfg.Username, cfg.Password = "admin", "secret"
	h := newHarness(t, cfg, withRegistry(t, fr, nil))

	h.start(t)

	if logins, _ := fr.counts(); logins != 1 {
		t.Errorf("logins = %d, want 1", logins)
	}
	if h.d.Token() != "fresh" {
		t.Errorf("Token() = %q, want fresh", h.d.Token())
	}
	user, ok := h.d.User()
	if !ok || user.Username != "admin" || user.Role != "admin" {
		t.Errorf("User() = %+v, %v", user, ok)
	}
}

func TestStart_LoginFailureNotifies(t *testing.T) {
	fr := &fakeRegistry{loginToken: "fresh"}
	cfg := defaultConfig()
	cfg.Enabled = false
	cfg.Username, cfg.Password = "admin", "wrong"
	h := newHarness(t, cfg, withRegistry(t, fr, nil))

	h.start(t)

	if !h.hasNote(notify.KindError, "Registry login failed: invalid credentials") {
		t.Errorf("notifications = %+v", h.notes.List())
	}
	if _, ok := h.d.User(); ok {
		t.Error("User() reported a session after failed login")
	}
}

func TestWithToken_RelogsInOnUnauthorized(t *testing.T) {
	fr := &fakeRegistry{
		validToken: "fresh",
		loginToken: "fresh",
		realtime:   map[string]any{"mqtt_enabled": true, "ws_url": "ws://discovered:9001"},
	}
	var store *session.Store
	cfg := defaultConfig()
	cfg.Discover = true
	cfg.Username, cfg.Password = "admin", "secret"
	h := newHarness(t, cfg, withRegistry(t, fr, &store))

	if err := store.Set(context.Background(), "stale", session.User{Username: "admin"}); err != nil {
		t.Fatalf("Set() error = %v", err)
	}

	h.start(t)
	ft := h.waitConnected(t, 0)

	if ft.opts.Broker != "ws://discovered:9001" {
		t.Errorf("broker = %q, want discovered endpoint after re-login", ft.opts.Broker)
	}
	if logins, _ := fr.counts(); logins != 1 {
		t.Errorf("logins = %d, want 1", logins)
	}
	if h.d.Token() != "fresh" {
		t.Errorf("Token() = %q", h.d.Token())
	}
}

func TestLoginLogout(t *testing.T) {
	fr := &fakeRegistry{loginToken: "tok"}
	cfg := Config{}
	h := newHarness(t, cfg, withRegistry(t, fr, nil))

	user, err := h.d.Login(context.Background(), "operator", "secret")
	if err != nil {
		t.Fatalf("Login() error = %v", err)
	}
	if user.Username != "operator" {
		t.Errorf("user = %+v", user)
	}

	_, err = h.d.Login(context.Background(), "operator", "bad")
	if !registry.IsUnauthorized(err) {
		t.Errorf("Login(bad) error = %v, want 401", err)
	}

	if err := h.d.Logout(context.Background()); err != nil {
		t.Fatalf("Logout() error = %v", err)
	}
	if _, ok := h.d.User(); ok {
		t.Error("User() after Logout")
	}
}

func TestLogin_WithoutCollaborators(t *testing.T) {
	h := newHarness(t, Config{}, nil)

	if _, err := h.d.Login(context.Background(), "a", "b"); !errors.Is(err, ErrNoRegistry) {
		t.Errorf("Login() error = %v, want ErrNoRegistry", err)
	}
	if err := h.d.Logout(context.Background()); !errors.Is(err, ErrNoSessionStore) {
		t.Errorf("Logout() error = %v, want ErrNoSessionStore", err)
	}
	if h.d.Token() != "" {
		t.Error("Token() without a store should be empty")
	}
}
