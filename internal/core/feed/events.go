package feed

// Event is a refresh notification emitted after a store write. Screens
// use the topic key to decide whether their visible data could have
// changed before paying the cost of a re-query.
type Event interface {
	// EventTopicKey returns the key of the topic the write affected,
	// or 0 when the event is not scoped to a single topic.
	EventTopicKey() int64
}

// MessageAdded is published when a new message has been persisted.
type MessageAdded struct {
	TopicKey   int64
	TopicName  string
	MessageKey int64
}

func (e MessageAdded) EventTopicKey() int64 { return e.TopicKey }

// TopicChanged is published when a topic row changed: created, renamed,
// subscription toggled, or its message links were modified.
type TopicChanged struct {
	TopicKey  int64
	TopicName string
}

func (e TopicChanged) EventTopicKey() int64 { return e.TopicKey }

// HeldChanged signals that global status (counts shown in the header)
// must be recomputed regardless of which screen is visible.
type HeldChanged struct{}

func (HeldChanged) EventTopicKey() int64 { return 0 }
