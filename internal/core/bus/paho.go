package bus

import (
	"fmt"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/rs/zerolog"
)

const (
	connectTimeout    = 30 * time.Second
	disconnectQuiesce = 250 // milliseconds, paho's unit
)

// MQTTClient implements Client over an MQTT broker.
type MQTTClient struct {
	client mqtt.Client
	log    zerolog.Logger
	lost   func(err error)
}

// NewMQTTClient configures a client for the given broker address
// (host or host:port; the standard port 1883 is assumed when absent).
// Automatic reconnection is left to the worker, which owns backoff.
func NewMQTTClient(host, clientID string, log zerolog.Logger) *MQTTClient {
	c := &MQTTClient{log: log}

	opts := mqtt.NewClientOptions().
		AddBroker(fmt.Sprintf("tcp://%s", host)).
		SetClientID(clientID).
		SetAutoReconnect(false).
		SetConnectTimeout(connectTimeout).
		SetConnectionLostHandler(func(_ mqtt.Client, err error) {
			c.log.Warn().Err(err).Msg("connection lost")
			if c.lost != nil {
				c.lost(fmt.Errorf("%w: %v", ErrConnection, err))
			}
		})

	c.client = mqtt.NewClient(opts)
	return c
}

func (c *MQTTClient) OnConnectionLost(fn func(err error)) {
	c.lost = fn
}

func (c *MQTTClient) Connect() error {
	token := c.client.Connect()
	if !token.WaitTimeout(connectTimeout) {
		return fmt.Errorf("%w: connect timed out", ErrConnection)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("%w: %v", ErrConnection, err)
	}
	return nil
}

func (c *MQTTClient) Subscribe(pattern string, handler Handler) error {
	token := c.client.Subscribe(pattern, 0, func(_ mqtt.Client, m mqtt.Message) {
		handler(InboundMessage{
			Topic:    m.Topic(),
			Payload:  m.Payload(),
			Received: time.Now(),
		})
	})
	token.Wait()
	if err := token.Error(); err != nil {
		return fmt.Errorf("%w: subscribe %q: %v", ErrConnection, pattern, err)
	}
	return nil
}

func (c *MQTTClient) Disconnect() {
	if c.client.IsConnected() {
		c.client.Disconnect(disconnectQuiesce)
	}
}
