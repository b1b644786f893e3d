// Package mqtt wraps paho.mqtt.golang as a single broker socket.
//
// A Conn is one transport attempt: it connects once, subscribes, delivers
// frames and reports an unexpected loss. It never reconnects on its own and
// never publishes. Retry policy lives in the eventbridge package, which dials
// a fresh Conn for every attempt.
//
// # Supported endpoints
//
//	tcp://host:1883   mqtt://host:1883
//	ssl://host:8883   tls://host:8883   mqtts://host:8883
//	ws://host:9001    wss://host:443/mqtt
//
// # Usage
//
//	conn, err := mqtt.Dial(mqtt.Options{
//	    Broker:   "ws://localhost:9001",
//	    ClientID: "go-nmos-frontend-1739000000000",
//	    OnConnectionLost: func(err error) { ... },
//	})
//	if err != nil {
//	    return err // malformed endpoint, nothing was sent
//	}
//	if err := conn.Connect(); err != nil {
//	    return err
//	}
//	defer conn.Close()
//
//	err = conn.Subscribe(mqtt.Topics{}.All("go-nmos/flows/events"), 0,
//	    func(topic string, payload []byte) error {
//	        return nil
//	    })
package mqtt
