// Package feed defines the domain types shared by the store, the
// ingestion worker, and the TUI: topics, messages, and the refresh
// events that flow between them.
package feed

import "time"

// Topic is a named channel that owns an ordered history of messages.
type Topic struct {
	Key         int64
	Name        string
	Subscribed  bool
	Description string
	Updated     time.Time
}

// Message is an immutable payload record. It is created under one
// originating topic and may later be linked to additional topics.
type Message struct {
	Key      int64
	TopicKey int64
	Text     string
	Updated  time.Time
}

// TopicMessage links a message to a topic. Sequence records the order
// in which the message was filed under successive topics, starting at 1.
type TopicMessage struct {
	Key        int64
	TopicKey   int64
	MessageKey int64
	Sequence   int
}

// SortKey selects the ordering of a topic or message listing.
type SortKey string

const (
	SortByKey     SortKey = "key"
	SortByUpdated SortKey = "updated"
	SortByName    SortKey = "name"
)
