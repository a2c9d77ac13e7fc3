// Package bus abstracts the message-bus connection. The ingestion
// worker depends on the narrow Client interface so it can be tested
// against a fake; the one real implementation speaks MQTT via paho.
package bus

import (
	"errors"
	"time"
)

// ErrConnection wraps transport failures: broker unreachable or the
// connection dropped. Never fatal; callers retry.
var ErrConnection = errors.New("bus connection error")

// InboundMessage is one event delivered by the broker.
type InboundMessage struct {
	Topic    string
	Payload  []byte
	Received time.Time
}

// Handler consumes inbound messages. It is called from the client's
// network goroutine and must not block for long.
type Handler func(msg InboundMessage)

// Client is a connection to the message bus.
type Client interface {
	// Connect establishes the connection. Blocks until connected or
	// failed; failures are ErrConnection-wrapped.
	Connect() error

	// Subscribe registers handler for every topic matching pattern.
	// "#" subscribes to all topics.
	Subscribe(pattern string, handler Handler) error

	// Disconnect closes the connection, flushing in-flight work
	// briefly. Safe to call when not connected.
	Disconnect()

	// OnConnectionLost registers a callback fired when an established
	// connection drops. Must be set before Connect.
	OnConnectionLost(fn func(err error))
}
