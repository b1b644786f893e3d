package eventbridge

import (
	"time"

	"github.com/benbjohnson/clock"
)

// Defaults applied by New for zero-valued Config fields.
const (
	DefaultClientIDPrefix    = "go-nmos-frontend"
	DefaultReconnectInterval = 5 * time.Second
	DefaultConnectTimeout    = 10 * time.Second
	DefaultKeepAlive         = 60 * time.Second
)

// TokenSource supplies the current registry token. It is consulted on every
// attempt so a refreshed login is picked up by the next reconnect.
type TokenSource interface {
	Token() string
}

// Config configures a Manager.
type Config struct {
	// ClientIDPrefix is joined with the creation time in milliseconds.
	ClientIDPrefix string

	// ReconnectInterval is the fixed delay between a drop and the next attempt.
	ReconnectInterval time.Duration

	// ConnectTimeout bounds each attempt.
	ConnectTimeout time.Duration

	// KeepAlive is passed to the transport.
	KeepAlive time.Duration

	// QoS for the event subscription (0, 1 or 2).
	QoS byte

	// Username is sent to the broker when set. The password is the current
	// token from Tokens.
	Username string
	Tokens   TokenSource

	// Dialer builds transports. Defaults to PahoDialer.
	Dialer Dialer

	// Clock drives timestamps and timers. Defaults to the wall clock.
	Clock clock.Clock
}

func (c Config) withDefaults() Config {
	if c.ClientIDPrefix == "" {
		c.ClientIDPrefix = DefaultClientIDPrefix
	}
	if c.ReconnectInterval <= 0 {
		c.ReconnectInterval = DefaultReconnectInterval
	}
	if c.ConnectTimeout <= 0 {
		c.ConnectTimeout = DefaultConnectTimeout
	}
	if c.KeepAlive <= 0 {
		c.KeepAlive = DefaultKeepAlive
	}
	if c.QoS > 2 {
		c.QoS = 0
	}
	if c.Dialer == nil {
		c.Dialer = PahoDialer
	}
	if c.Clock == nil {
		c.Clock = clock.New()
	}
	return c
}
