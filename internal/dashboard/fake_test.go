package dashboard

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/nerrad567/nmos-dashboard/internal/eventbridge"
	"github.com/nerrad567/nmos-dashboard/internal/infrastructure/mqtt"
)

// waitFor polls cond until it holds or the deadline passes.
func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

// fakeTransport is an always-available broker socket.
type fakeTransport struct {
	opts       mqtt.Options
	connectErr error

	mu      sync.Mutex
	topic   string
	handler mqtt.MessageHandler
	closed  bool
}

func (f *fakeTransport) Connect() error { return f.connectErr }

func (f *fakeTransport) Subscribe(topic string, _ byte, handler mqtt.MessageHandler) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.topic = topic
	f.handler = handler
	return nil
}

func (f *fakeTransport) Close() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
}

func (f *fakeTransport) subscribed() (string, mqtt.MessageHandler) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.topic, f.handler
}

// send delivers a frame on the subscribed topic.
func (f *fakeTransport) send(t *testing.T, payload string) {
	t.Helper()
	topic, handler := f.subscribed()
	if handler == nil {
		t.Fatal("send before subscribe")
	}
	if err := handler(topic, []byte(payload)); err != nil {
		t.Fatalf("handler error = %v", err)
	}
}

func (f *fakeTransport) lose() {
	f.opts.OnConnectionLost(errors.New("fake: connection reset"))
}

// fakeDialer hands out fakeTransports and remembers them.
type fakeDialer struct {
	mu         sync.Mutex
	transports []*fakeTransport
	failFirst  int // the first n transports fail to connect
}

func (d *fakeDialer) Dial(opts mqtt.Options) (eventbridge.Transport, error) {
	if _, _, err := mqtt.ParseBroker(opts.Broker); err != nil {
		return nil, err
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	ft := &fakeTransport{opts: opts}
	if len(d.transports) < d.failFirst {
		ft.connectErr = errors.New("fake: connection refused")
	}
	d.transports = append(d.transports, ft)
	return ft, nil
}

func (d *fakeDialer) count() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.transports)
}

func (d *fakeDialer) get(t *testing.T, i int) *fakeTransport {
	t.Helper()
	d.mu.Lock()
	defer d.mu.Unlock()
	if i >= len(d.transports) {
		t.Fatalf("transport %d not dialed (have %d)", i, len(d.transports))
	}
	return d.transports[i]
}

// fakeHub records broadcasts per channel.
type fakeHub struct {
	mu       sync.Mutex
	messages map[string][]any
}

func newFakeHub() *fakeHub {
	return &fakeHub{messages: make(map[string][]any)}
}

func (h *fakeHub) Broadcast(channel string, payload any) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.messages[channel] = append(h.messages[channel], payload)
}

func (h *fakeHub) on(channel string) []any {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]any, len(h.messages[channel]))
	copy(out, h.messages[channel])
	return out
}

// fakeTelemetry records telemetry calls.
type fakeTelemetry struct {
	mu      sync.Mutex
	states  []string
	events  []string
	dropped []string
}

func (f *fakeTelemetry) WriteBridgeState(state string, _ bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.states = append(f.states, state)
}

func (f *fakeTelemetry) WriteBridgeEvent(_, event string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, event)
}

func (f *fakeTelemetry) WriteBridgeDropped(topic, _ string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.dropped = append(f.dropped, topic)
}

func (f *fakeTelemetry) snapshot() (states, events, dropped []string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.states...), append([]string(nil), f.events...), append([]string(nil), f.dropped...)
}
