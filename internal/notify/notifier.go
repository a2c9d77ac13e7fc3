// Package notify carries refresh notifications from the ingestion
// worker to the UI loop, and provides the priority queue reserved for
// outbound work scheduling.
package notify

import (
	"sync"

	"github.com/mqtty/mqtty/internal/core/feed"
)

// Notifier is a single-producer, single-consumer refresh channel with
// coalescing wakeups: any number of Publish calls before the consumer
// drains collapse into one pending wake, but every published event is
// retained so screens can filter by interest. Publish never blocks.
type Notifier struct {
	mu      sync.Mutex
	pending []feed.Event
	wake    chan struct{}
}

func NewNotifier() *Notifier {
	return &Notifier{wake: make(chan struct{}, 1)}
}

// Publish records an event and wakes the consumer. The wake is a
// non-blocking send on a one-slot channel, so floods of writes cost at
// most one pending wakeup.
func (n *Notifier) Publish(ev feed.Event) {
	n.mu.Lock()
	n.pending = append(n.pending, ev)
	n.mu.Unlock()

	select {
	case n.wake <- struct{}{}:
	default:
	}
}

// Drain returns all pending events and clears the list. Called once
// per UI iteration.
func (n *Notifier) Drain() []feed.Event {
	n.mu.Lock()
	defer n.mu.Unlock()
	events := n.pending
	n.pending = nil
	return events
}

// Wake exposes the wakeup channel for the UI's select loop. Receiving
// from it means at least one event is (or was) pending.
func (n *Notifier) Wake() <-chan struct{} {
	return n.wake
}
