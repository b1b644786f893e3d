package eventbridge

import (
	"github.com/nerrad567/nmos-dashboard/internal/infrastructure/mqtt"
)

// Transport is a single broker socket. A new Transport is dialed for every
// connect attempt; it is never reused after Close.
type Transport interface {
	// Connect blocks until the broker acknowledges the session or the attempt fails.
	Connect() error

	// Subscribe registers handler for topic and waits for the broker's answer.
	Subscribe(topic string, qos byte, handler mqtt.MessageHandler) error

	// Close tears the socket down. It must be safe to call more than once
	// and while Connect is in flight.
	Close()
}

// Dialer builds a Transport from options without performing network I/O.
type Dialer func(opts mqtt.Options) (Transport, error)

// PahoDialer dials transports backed by paho.mqtt.golang.
func PahoDialer(opts mqtt.Options) (Transport, error) {
	conn, err := mqtt.Dial(opts)
	if err != nil {
		return nil, err
	}
	return conn, nil
}
