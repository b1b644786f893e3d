package mqtt

import (
	"crypto/tls"
	"fmt"
	"net/url"
	"strings"
	"time"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"
)

// Connection constants.
const (
	// DefaultConnectTimeout bounds a single connect attempt.
	DefaultConnectTimeout = 10 * time.Second

	// defaultSubscribeTimeout is the maximum time to wait for a SUBACK.
	defaultSubscribeTimeout = 5 * time.Second

	// defaultDisconnectQuiesce is the time to wait for pending operations on disconnect.
	defaultDisconnectQuiesce = 250 // milliseconds

	// DefaultKeepAlive is the keepalive interval for the connection.
	DefaultKeepAlive = 60 * time.Second

	// maxQoS is the maximum QoS level supported.
	maxQoS = 2

	// tlsMinVersion is the minimum TLS version for secure connections.
	tlsMinVersion = tls.VersionTLS12
)

// Options describes one broker socket.
type Options struct {
	// Broker is the endpoint URL, e.g. ws://localhost:9001.
	Broker string

	// ClientID identifies the session to the broker.
	ClientID string

	// Username and Password are sent when Username is non-empty.
	Username string
	Password string

	// ConnectTimeout bounds the connect handshake. Zero means DefaultConnectTimeout.
	ConnectTimeout time.Duration

	// KeepAlive is the PINGREQ interval. Zero means DefaultKeepAlive.
	KeepAlive time.Duration

	// OnConnectionLost is called once when an established socket drops.
	// It is not called after Close.
	OnConnectionLost func(err error)

	// Logger receives handler errors and recovered panics. Optional.
	Logger Logger
}

// schemes maps accepted URL schemes to whether they use TLS.
var schemes = map[string]bool{
	"tcp":   false,
	"mqtt":  false,
	"ws":    false,
	"ssl":   true,
	"tls":   true,
	"mqtts": true,
	"wss":   true,
}

// ParseBroker validates a broker URL and reports whether it needs TLS.
func ParseBroker(raw string) (*url.URL, bool, error) {
	if strings.TrimSpace(raw) == "" {
		return nil, false, fmt.Errorf("%w: empty", ErrInvalidBroker)
	}
	u, err := url.Parse(raw)
	if err != nil {
		return nil, false, fmt.Errorf("%w: %w", ErrInvalidBroker, err)
	}
	secure, ok := schemes[strings.ToLower(u.Scheme)]
	if !ok {
		return nil, false, fmt.Errorf("%w: unsupported scheme %q", ErrInvalidBroker, u.Scheme)
	}
	if u.Hostname() == "" {
		return nil, false, fmt.Errorf("%w: missing host in %q", ErrInvalidBroker, raw)
	}
	return u, secure, nil
}

// buildClientOptions creates paho options for a single attempt.
//
// This configures:
//   - Broker URL and client id
//   - Credentials (if provided)
//   - Clean session, no paho-level reconnect or retry
//   - In-order handler delivery
//   - TLS for ssl/tls/mqtts/wss
func buildClientOptions(opts Options, secure bool) *pahomqtt.ClientOptions {
	po := pahomqtt.NewClientOptions()

	po.AddBroker(opts.Broker)
	po.SetClientID(opts.ClientID)

	if opts.Username != "" {
		po.SetUsername(opts.Username)
		po.SetPassword(opts.Password)
	}

	po.SetCleanSession(true)

	// The caller owns retry policy.
	po.SetAutoReconnect(false)
	po.SetConnectRetry(false)

	po.SetOrderMatters(true)

	connectTimeout := opts.ConnectTimeout
	if connectTimeout <= 0 {
		connectTimeout = DefaultConnectTimeout
	}
	po.SetConnectTimeout(connectTimeout)

	keepAlive := opts.KeepAlive
	if keepAlive <= 0 {
		keepAlive = DefaultKeepAlive
	}
	po.SetKeepAlive(keepAlive)

	if secure {
		po.SetTLSConfig(&tls.Config{
			MinVersion: tlsMinVersion,
		})
	}

	return po
}
