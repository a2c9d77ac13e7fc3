// Package ingest runs the background worker that turns inbound bus
// events into store writes and refresh notifications. It owns the
// connection lifecycle: the UI goroutine never touches the network.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"
	"unicode/utf8"

	"github.com/rs/zerolog"

	"github.com/mqtty/mqtty/internal/core/bus"
	"github.com/mqtty/mqtty/internal/core/feed"
	"github.com/mqtty/mqtty/internal/notify"
	"github.com/mqtty/mqtty/internal/store"
)

// ErrMalformedEvent marks an inbound payload that cannot be persisted.
// The event is dropped and logged; the connection stays up.
var ErrMalformedEvent = errors.New("malformed event")

// Reconnect backoff bounds.
const (
	initialBackoff = time.Second
	maxBackoff     = 2 * time.Minute
)

// State is the worker's connection state.
type State int32

const (
	Disconnected State = iota
	Connecting
	Subscribed
)

func (s State) String() string {
	switch s {
	case Connecting:
		return "connecting"
	case Subscribed:
		return "subscribed"
	default:
		return "disconnected"
	}
}

// Worker receives bus events and persists them. One Worker runs per
// process, on its own goroutine; per-event failures never terminate
// the connection loop.
type Worker struct {
	db       *store.DB
	client   bus.Client
	notifier *notify.Notifier
	log      zerolog.Logger

	state   atomic.Int32
	offline atomic.Bool
}

func NewWorker(db *store.DB, client bus.Client, notifier *notify.Notifier, log zerolog.Logger) *Worker {
	w := &Worker{
		db:       db,
		client:   client,
		notifier: notifier,
		log:      log,
	}
	w.offline.Store(true)
	return w
}

// Offline reports whether the worker is currently without a broker
// connection. Starts true; the status header shows it.
func (w *Worker) Offline() bool {
	return w.offline.Load()
}

// State returns the current connection state.
func (w *Worker) State() State {
	return State(w.state.Load())
}

// SetOffline forces the offline flag. Used by --no-sync startup, where
// the worker is never run.
func (w *Worker) SetOffline(offline bool) {
	w.offline.Store(offline)
}

// Run drives the connection loop until ctx is cancelled: connect,
// subscribe to the wildcard pattern, then sit in the message callbacks
// until the connection drops. Reconnects with exponential backoff.
// Messages published while disconnected are not recovered.
func (w *Worker) Run(ctx context.Context) {
	lost := make(chan error, 1)
	w.client.OnConnectionLost(func(err error) {
		select {
		case lost <- err:
		default:
		}
	})

	backoff := initialBackoff
	for {
		w.setState(Connecting)
		err := w.connect()
		if err != nil {
			w.setState(Disconnected)
			w.log.Warn().Err(err).Dur("retry_in", backoff).Msg("connect failed")
			select {
			case <-ctx.Done():
				return
			case <-time.After(backoff):
			}
			backoff = min(backoff*2, maxBackoff)
			continue
		}

		w.setState(Subscribed)
		backoff = initialBackoff
		w.log.Info().Msg("subscribed to bus")

		select {
		case <-ctx.Done():
			w.client.Disconnect()
			w.setState(Disconnected)
			return
		case err := <-lost:
			w.setState(Disconnected)
			w.log.Warn().Err(err).Msg("bus connection dropped")
		}
	}
}

func (w *Worker) connect() error {
	if err := w.client.Connect(); err != nil {
		return err
	}
	if err := w.client.Subscribe("#", w.HandleEvent); err != nil {
		w.client.Disconnect()
		return err
	}
	return nil
}

// HandleEvent persists one inbound event: find-or-create the topic,
// create the message under it, commit, then publish a refresh
// notification. Any failure is logged and isolated to this event.
func (w *Worker) HandleEvent(msg bus.InboundMessage) {
	if err := w.handle(msg); err != nil {
		w.log.Error().Err(err).Str("topic", msg.Topic).Msg("event dropped")
	}
}

func (w *Worker) handle(msg bus.InboundMessage) error {
	if msg.Topic == "" || !utf8.Valid(msg.Payload) {
		return fmt.Errorf("%w: topic=%q payload_len=%d", ErrMalformedEvent, msg.Topic, len(msg.Payload))
	}

	var event feed.MessageAdded
	err := w.db.Update(context.Background(), func(tx *store.Tx) error {
		topic, err := tx.TopicByName(msg.Topic)
		if errors.Is(err, store.ErrNotFound) {
			topic, err = tx.CreateTopic(msg.Topic)
		}
		if err != nil {
			return err
		}

		created, err := tx.CreateMessage(string(msg.Payload), topic)
		if err != nil {
			return err
		}
		event = feed.MessageAdded{
			TopicKey:   topic.Key,
			TopicName:  topic.Name,
			MessageKey: created.Key,
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("persist event: %w", err)
	}

	w.notifier.Publish(event)
	return nil
}

func (w *Worker) setState(s State) {
	w.state.Store(int32(s))
	w.offline.Store(s != Subscribed)
}
