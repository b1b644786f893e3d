package eventbridge

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/nerrad567/nmos-dashboard/internal/infrastructure/mqtt"
)

var errFakeClosed = errors.New("fake: closed")

// fakeTransport stands in for a broker socket.
type fakeTransport struct {
	opts mqtt.Options

	connectErr   error
	subscribeErr error
	block        chan struct{} // when set, Connect waits for it or Close
	// loseOnConnect reports a connection loss from inside Connect, which
	// then still returns nil.
	loseOnConnect error
	onSubscribe   func() // runs inside Subscribe before it returns

	mu         sync.Mutex
	entered    chan struct{}
	closedCh   chan struct{}
	closed     bool
	closeCount int
	topic      string
	qos        byte
	handler    mqtt.MessageHandler
}

func newFakeTransport(opts mqtt.Options) *fakeTransport {
	return &fakeTransport{
		opts:     opts,
		entered:  make(chan struct{}),
		closedCh: make(chan struct{}),
	}
}

func (f *fakeTransport) Connect() error {
	close(f.entered)
	if f.loseOnConnect != nil {
		f.lose(f.loseOnConnect)
		return nil
	}
	if f.block != nil {
		select {
		case <-f.block:
		case <-f.closedCh:
			return errFakeClosed
		}
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return errFakeClosed
	}
	return f.connectErr
}

func (f *fakeTransport) Subscribe(topic string, qos byte, handler mqtt.MessageHandler) error {
	f.mu.Lock()
	f.topic = topic
	f.qos = qos
	err := f.subscribeErr
	if err == nil {
		f.handler = handler
	}
	hook := f.onSubscribe
	f.mu.Unlock()

	if hook != nil {
		hook()
	}
	return err
}

func (f *fakeTransport) Close() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closeCount++
	if !f.closed {
		f.closed = true
		close(f.closedCh)
	}
}

func (f *fakeTransport) isClosed() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closed
}

func (f *fakeTransport) subscribedTopic() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.topic
}

// push delivers a frame as the broker would.
func (f *fakeTransport) push(payload []byte) error {
	f.mu.Lock()
	h, topic := f.handler, f.topic
	f.mu.Unlock()
	if h == nil {
		return errors.New("fake: push before subscribe")
	}
	return h(topic, payload)
}

func (f *fakeTransport) send(t *testing.T, payload []byte) {
	t.Helper()
	if err := f.push(payload); err != nil {
		t.Fatalf("push: %v", err)
	}
}

// lose simulates an unexpected socket drop.
func (f *fakeTransport) lose(err error) {
	if f.opts.OnConnectionLost != nil {
		f.opts.OnConnectionLost(err)
	}
}

// fakeDialer records every transport it builds. prepare, when set,
// configures the nth transport (0-based) before it is returned.
type fakeDialer struct {
	mu         sync.Mutex
	transports []*fakeTransport
	prepare    func(n int, t *fakeTransport)
	err        error
}

func (d *fakeDialer) Dial(opts mqtt.Options) (Transport, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.err != nil {
		return nil, d.err
	}
	t := newFakeTransport(opts)
	if d.prepare != nil {
		d.prepare(len(d.transports), t)
	}
	d.transports = append(d.transports, t)
	return t, nil
}

func (d *fakeDialer) count() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.transports)
}

func (d *fakeDialer) get(t *testing.T, i int) *fakeTransport {
	t.Helper()
	waitFor(t, "dial", func() bool { return d.count() > i })
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.transports[i]
}

// waitFor polls cond until it holds or the deadline passes.
// Mock clock timers fire on their own goroutine.
func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

// stateLog records observer transitions.
type stateLog struct {
	mu   sync.Mutex
	seen []transition
}

func (l *stateLog) record(from, to State) {
	l.mu.Lock()
	l.seen = append(l.seen, transition{from: from, to: to})
	l.mu.Unlock()
}

func (l *stateLog) list() []transition {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]transition, len(l.seen))
	copy(out, l.seen)
	return out
}

// logRecorder keeps every log line as "LEVEL msg".
type logRecorder struct {
	mu    sync.Mutex
	lines []string
}

func (l *logRecorder) add(level, msg string) {
	l.mu.Lock()
	l.lines = append(l.lines, level+" "+msg)
	l.mu.Unlock()
}

func (l *logRecorder) Debug(msg string, _ ...any) { l.add("DEBUG", msg) }
func (l *logRecorder) Info(msg string, _ ...any)  { l.add("INFO", msg) }
func (l *logRecorder) Warn(msg string, _ ...any)  { l.add("WARN", msg) }
func (l *logRecorder) Error(msg string, _ ...any) { l.add("ERROR", msg) }

func (l *logRecorder) has(line string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, got := range l.lines {
		if got == line {
			return true
		}
	}
	return false
}

// eventSink collects delivered events.
type eventSink struct {
	mu     sync.Mutex
	events []Event
}

func (s *eventSink) handle(ev Event) {
	s.mu.Lock()
	s.events = append(s.events, ev)
	s.mu.Unlock()
}

func (s *eventSink) len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.events)
}

func (s *eventSink) list() []Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Event, len(s.events))
	copy(out, s.events)
	return out
}

type staticTokens string

func (s staticTokens) Token() string { return string(s) }
