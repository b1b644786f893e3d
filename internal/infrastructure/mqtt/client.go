package mqtt

import (
	"fmt"
	"sync"
	"sync/atomic"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"
)

// Logger interface for optional logging support.
// Compatible with logging.Logger and slog.Logger.
type Logger interface {
	Error(msg string, args ...any)
	Warn(msg string, args ...any)
}

// MessageHandler is the callback signature for received messages.
//
// With order-preserving delivery the handler runs on paho's router
// goroutine, one message at a time. It must not block for long.
//
// Parameters:
//   - topic: The topic the message was received on
//   - payload: The raw message payload (expected to be JSON)
//
// Returns:
//   - error: Logged at warn level; the message is not redelivered
type MessageHandler func(topic string, payload []byte) error

// Conn is one broker socket.
//
// Thread Safety:
//   - All methods are safe for concurrent use from multiple goroutines.
//   - Close may be called while Connect is blocked; Connect then fails.
type Conn struct {
	client pahomqtt.Client
	opts   Options

	closed    atomic.Bool
	closeOnce sync.Once
}

// Dial validates opts and prepares a socket without touching the network.
//
// Returns:
//   - *Conn: Ready for Connect
//   - error: ErrInvalidBroker if the endpoint cannot be used
func Dial(opts Options) (*Conn, error) {
	_, secure, err := ParseBroker(opts.Broker)
	if err != nil {
		return nil, err
	}

	c := &Conn{opts: opts}

	po := buildClientOptions(opts, secure)
	po.SetConnectionLostHandler(func(_ pahomqtt.Client, err error) {
		c.handleConnectionLost(err)
	})

	c.client = pahomqtt.NewClient(po)
	return c, nil
}

// Connect performs the CONNECT handshake and blocks until it is
// acknowledged, refused, or the connect timeout passes.
func (c *Conn) Connect() error {
	if c.closed.Load() {
		return ErrClosed
	}

	timeout := c.opts.ConnectTimeout
	if timeout <= 0 {
		timeout = DefaultConnectTimeout
	}

	token := c.client.Connect()
	if !token.WaitTimeout(timeout) {
		return fmt.Errorf("%w: %w after %v", ErrConnectionFailed, ErrTimeout, timeout)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("%w: %w", ErrConnectionFailed, err)
	}
	if c.closed.Load() {
		// Closed while the handshake was in flight.
		c.client.Disconnect(0)
		return ErrClosed
	}
	return nil
}

// Subscribe registers a handler for messages on the specified topic and
// waits for the broker's acknowledgement.
//
// Parameters:
//   - topic: The topic pattern to subscribe to
//   - qos: Maximum QoS level for received messages (0, 1, or 2)
//   - handler: Callback function invoked for each message
//
// Returns:
//   - error: nil on success, or wrapped error describing the failure
func (c *Conn) Subscribe(topic string, qos byte, handler MessageHandler) error {
	if topic == "" {
		return ErrInvalidTopic
	}
	if qos > maxQoS {
		return ErrInvalidQoS
	}
	if handler == nil {
		return fmt.Errorf("%w: handler cannot be nil", ErrSubscribeFailed)
	}
	if c.closed.Load() {
		return ErrClosed
	}
	if !c.client.IsConnected() {
		return ErrNotConnected
	}

	token := c.client.Subscribe(topic, qos, c.wrapHandler(handler))
	if !token.WaitTimeout(defaultSubscribeTimeout) {
		return fmt.Errorf("%w: timeout after %v", ErrSubscribeFailed, defaultSubscribeTimeout)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("%w: %w", ErrSubscribeFailed, err)
	}

	// MQTT 3.1.1 SUBACK carries 0x80 for a rejected filter.
	if st, ok := token.(*pahomqtt.SubscribeToken); ok {
		if granted, found := st.Result()[topic]; found && granted == 0x80 {
			return fmt.Errorf("%w: broker rejected %q", ErrSubscribeFailed, topic)
		}
	}
	return nil
}

// Close disconnects the socket. Safe to call more than once and before
// Connect has returned.
func (c *Conn) Close() {
	c.closeOnce.Do(func() {
		c.closed.Store(true)
		c.client.Disconnect(defaultDisconnectQuiesce)
	})
}

// IsConnected reports whether the socket is currently up.
func (c *Conn) IsConnected() bool {
	return !c.closed.Load() && c.client.IsConnected()
}

// ClientID returns the id presented to the broker.
func (c *Conn) ClientID() string {
	return c.opts.ClientID
}

func (c *Conn) handleConnectionLost(err error) {
	if c.closed.Load() {
		return
	}
	if c.opts.OnConnectionLost != nil {
		c.opts.OnConnectionLost(err)
	}
}

// wrapHandler wraps a MessageHandler with panic recovery and optional logging.
func (c *Conn) wrapHandler(handler MessageHandler) pahomqtt.MessageHandler {
	return func(_ pahomqtt.Client, msg pahomqtt.Message) {
		defer func() {
			if r := recover(); r != nil {
				if logger := c.opts.Logger; logger != nil {
					logger.Error("MQTT handler panic recovered",
						"topic", msg.Topic(),
						"panic", r,
					)
				}
			}
		}()

		if err := handler(msg.Topic(), msg.Payload()); err != nil {
			if logger := c.opts.Logger; logger != nil {
				logger.Warn("MQTT handler returned error",
					"topic", msg.Topic(),
					"error", err,
				)
			}
		}
	}
}
