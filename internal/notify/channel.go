package notify

import (
	"sync"
	"time"

	"github.com/benbjohnson/clock"
)

// Kind is the severity of a notification.
type Kind string

// Notification kinds understood by the UI.
const (
	KindSuccess Kind = "success"
	KindError   Kind = "error"
	KindWarning Kind = "warning"
)

// Valid reports whether k is one of the known kinds.
func (k Kind) Valid() bool {
	switch k {
	case KindSuccess, KindError, KindWarning:
		return true
	}
	return false
}

// Notification is one transient, user-facing message.
type Notification struct {
	ID        uint64    `json:"id"`
	Kind      Kind      `json:"type"`
	Message   string    `json:"message"`
	CreatedAt time.Time `json:"created_at"`
}

// Listener receives a snapshot of the visible notifications after each change.
type Listener func([]Notification)

// Channel is an ordered, in-memory list of visible notifications.
//
// Ids start at 1 and are never reused. Entries are kept in insertion order
// and never reordered.
//
// Thread Safety:
//   - All methods are safe for concurrent use.
//   - Listeners run on the mutating goroutine after the lock is released and
//     must not block or mutate the channel.
//   - Snapshots reach listeners in mutation order, so the last one a listener
//     sees always matches List.
type Channel struct {
	clock clock.Clock

	mu         sync.Mutex
	nextID     uint64
	items      []Notification
	timers     map[uint64]*clock.Timer
	nextTicket uint64

	// publishMu orders deliveries by ticket.
	publishMu   sync.Mutex
	publishCond *sync.Cond
	doneTicket  uint64

	listenerMu sync.RWMutex
	listeners  map[uint64]Listener
	nextListen uint64
}

// Option configures a Channel.
type Option func(*Channel)

// WithClock sets the clock used for timestamps and auto-dismiss timers.
func WithClock(c clock.Clock) Option {
	return func(ch *Channel) {
		ch.clock = c
	}
}

// New creates an empty Channel.
func New(opts ...Option) *Channel {
	ch := &Channel{
		clock:     clock.New(),
		nextID:    1,
		timers:    make(map[uint64]*clock.Timer),
		listeners: make(map[uint64]Listener),
	}
	ch.publishCond = sync.NewCond(&ch.publishMu)
	for _, opt := range opts {
		opt(ch)
	}
	return ch
}

// Add appends a notification and returns its id.
func (c *Channel) Add(kind Kind, message string) uint64 {
	return c.add(kind, message, 0)
}

// AddWithTimeout appends a notification that dismisses itself after ttl.
// A non-positive ttl behaves like Add.
func (c *Channel) AddWithTimeout(kind Kind, message string, ttl time.Duration) uint64 {
	return c.add(kind, message, ttl)
}

func (c *Channel) add(kind Kind, message string, ttl time.Duration) uint64 {
	c.mu.Lock()
	id := c.nextID
	c.nextID++
	c.items = append(c.items, Notification{
		ID:        id,
		Kind:      kind,
		Message:   message,
		CreatedAt: c.clock.Now().UTC(),
	})
	if ttl > 0 {
		c.timers[id] = c.clock.AfterFunc(ttl, func() {
			c.Dismiss(id)
		})
	}
	c.unlockAndPublish()
	return id
}

// Dismiss removes the notification with the given id. Unknown ids are ignored,
// so a timeout racing a manual dismiss is harmless.
func (c *Channel) Dismiss(id uint64) {
	c.mu.Lock()
	if t, ok := c.timers[id]; ok {
		t.Stop()
		delete(c.timers, id)
	}

	idx := -1
	for i := range c.items {
		if c.items[i].ID == id {
			idx = i
			break
		}
	}
	if idx < 0 {
		c.mu.Unlock()
		return
	}

	c.items = append(c.items[:idx], c.items[idx+1:]...)
	c.unlockAndPublish()
}

// List returns a copy of the visible notifications, oldest first.
func (c *Channel) List() []Notification {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snapshotLocked()
}

// Len returns the number of visible notifications.
func (c *Channel) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.items)
}

// Subscribe registers fn and calls it immediately with the current list.
// The returned function removes the listener; calling it twice is safe.
func (c *Channel) Subscribe(fn Listener) (cancel func()) {
	c.mu.Lock()
	snapshot := c.snapshotLocked()
	ticket := c.takeTicketLocked()
	c.mu.Unlock()

	// Registering in turn means fn sees every later change and none it
	// already has in snapshot.
	id := c.register(ticket, fn, snapshot)

	return func() {
		c.listenerMu.Lock()
		delete(c.listeners, id)
		c.listenerMu.Unlock()
	}
}

func (c *Channel) register(ticket uint64, fn Listener, snapshot []Notification) uint64 {
	c.waitTurn(ticket)
	defer c.endTurn()

	c.listenerMu.Lock()
	id := c.nextListen
	c.nextListen++
	c.listeners[id] = fn
	c.listenerMu.Unlock()

	fn(snapshot)
	return id
}

// Close stops all pending auto-dismiss timers. Visible entries are kept.
func (c *Channel) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	for id, t := range c.timers {
		t.Stop()
		delete(c.timers, id)
	}
}

func (c *Channel) snapshotLocked() []Notification {
	out := make([]Notification, len(c.items))
	copy(out, c.items)
	return out
}

func (c *Channel) takeTicketLocked() uint64 {
	t := c.nextTicket
	c.nextTicket++
	return t
}

// waitTurn blocks until every earlier ticket has been delivered.
// It returns with publishMu held.
func (c *Channel) waitTurn(ticket uint64) {
	c.publishMu.Lock()
	for c.doneTicket != ticket {
		c.publishCond.Wait()
	}
}

func (c *Channel) endTurn() {
	c.doneTicket++
	c.publishCond.Broadcast()
	c.publishMu.Unlock()
}

// unlockAndPublish releases mu and delivers the list as it stood, after
// every earlier change has been delivered.
func (c *Channel) unlockAndPublish() {
	snapshot := c.snapshotLocked()
	ticket := c.takeTicketLocked()
	c.mu.Unlock()

	c.waitTurn(ticket)
	defer c.endTurn()
	c.publish(snapshot)
}

func (c *Channel) publish(snapshot []Notification) {
	c.listenerMu.RLock()
	listeners := make([]Listener, 0, len(c.listeners))
	for _, fn := range c.listeners {
		listeners = append(listeners, fn)
	}
	c.listenerMu.RUnlock()

	for _, fn := range listeners {
		fn(snapshot)
	}
}
