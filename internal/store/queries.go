package store

import (
	"fmt"
	"strings"
	"time"

	"zombiezen.com/go/sqlite"
	"zombiezen.com/go/sqlite/sqlitex"

	"github.com/mqtty/mqtty/internal/core/feed"
)

// TopicQuery selects and orders a topic listing.
type TopicQuery struct {
	SubscribedOnly bool
	Sort           []feed.SortKey
}

// topicOrderColumns whitelists sort keys onto topic columns.
var topicOrderColumns = map[feed.SortKey]string{
	feed.SortByKey:     "key",
	feed.SortByUpdated: "updated",
	feed.SortByName:    "name",
}

// messageOrderColumns whitelists sort keys onto message columns.
var messageOrderColumns = map[feed.SortKey]string{
	feed.SortByKey:     "m.key",
	feed.SortByUpdated: "m.updated",
}

func orderClause(sorts []feed.SortKey, columns map[feed.SortKey]string, tiebreak string) string {
	var cols []string
	for _, s := range sorts {
		if col, ok := columns[s]; ok {
			cols = append(cols, col)
		}
	}
	cols = append(cols, tiebreak)
	return " ORDER BY " + strings.Join(cols, ", ")
}

// Topics returns a snapshot of topics ordered by the query's sort keys
// in priority order, ties broken by key ascending.
func (tx *Tx) Topics(q TopicQuery) ([]feed.Topic, error) {
	query := `SELECT key, name, subscribed, description, updated FROM topic`
	if q.SubscribedOnly {
		query += ` WHERE subscribed = 1`
	}
	query += orderClause(q.Sort, topicOrderColumns, "key")

	var topics []feed.Topic
	err := sqlitex.ExecuteTransient(tx.db.conn, query, &sqlitex.ExecOptions{
		ResultFunc: func(stmt *sqlite.Stmt) error {
			topics = append(topics, scanTopic(stmt))
			return nil
		},
	})
	if err != nil {
		return nil, fmt.Errorf("list topics: %w", err)
	}
	return topics, nil
}

// TopicByName looks a topic up by its unique name.
// Returns ErrNotFound when no topic has that name.
func (tx *Tx) TopicByName(name string) (feed.Topic, error) {
	return tx.oneTopic(`SELECT key, name, subscribed, description, updated FROM topic WHERE name = ?`, name)
}

// TopicByKey looks a topic up by key. Returns ErrNotFound on a miss.
func (tx *Tx) TopicByKey(key int64) (feed.Topic, error) {
	return tx.oneTopic(`SELECT key, name, subscribed, description, updated FROM topic WHERE key = ?`, key)
}

func (tx *Tx) oneTopic(query string, arg any) (feed.Topic, error) {
	var topic feed.Topic
	found := false
	err := sqlitex.ExecuteTransient(tx.db.conn, query, &sqlitex.ExecOptions{
		Args: []any{arg},
		ResultFunc: func(stmt *sqlite.Stmt) error {
			topic = scanTopic(stmt)
			found = true
			return nil
		},
	})
	if err != nil {
		return feed.Topic{}, fmt.Errorf("get topic: %w", err)
	}
	if !found {
		return feed.Topic{}, ErrNotFound
	}
	return topic, nil
}

// MessagesByTopic returns every message filed under the topic — the
// projection of its topic_message rows — ordered by the given sort
// keys, ties broken by message key ascending.
func (tx *Tx) MessagesByTopic(topicKey int64, sorts ...feed.SortKey) ([]feed.Message, error) {
	query := `SELECT DISTINCT m.key, m.topic_key, m.message, m.updated
FROM message m
JOIN topic_message tm ON tm.message_key = m.key
WHERE tm.topic_key = ?` + orderClause(sorts, messageOrderColumns, "m.key")

	var messages []feed.Message
	err := sqlitex.ExecuteTransient(tx.db.conn, query, &sqlitex.ExecOptions{
		Args: []any{topicKey},
		ResultFunc: func(stmt *sqlite.Stmt) error {
			messages = append(messages, scanMessage(stmt))
			return nil
		},
	})
	if err != nil {
		return nil, fmt.Errorf("list topic messages: %w", err)
	}
	return messages, nil
}

// MessageByKey looks a message up by key. Returns ErrNotFound on a miss.
func (tx *Tx) MessageByKey(key int64) (feed.Message, error) {
	var msg feed.Message
	found := false
	err := sqlitex.ExecuteTransient(tx.db.conn,
		`SELECT key, topic_key, message, updated FROM message WHERE key = ?`,
		&sqlitex.ExecOptions{
			Args: []any{key},
			ResultFunc: func(stmt *sqlite.Stmt) error {
				msg = scanMessage(stmt)
				found = true
				return nil
			},
		})
	if err != nil {
		return feed.Message{}, fmt.Errorf("get message: %w", err)
	}
	if !found {
		return feed.Message{}, ErrNotFound
	}
	return msg, nil
}

// LinksByMessage returns the topic_message rows for a message in
// sequence order. Exposes the filing history for tests and the UI.
func (tx *Tx) LinksByMessage(messageKey int64) ([]feed.TopicMessage, error) {
	var links []feed.TopicMessage
	err := sqlitex.ExecuteTransient(tx.db.conn,
		`SELECT key, topic_key, message_key, sequence FROM topic_message WHERE message_key = ? ORDER BY sequence`,
		&sqlitex.ExecOptions{
			Args: []any{messageKey},
			ResultFunc: func(stmt *sqlite.Stmt) error {
				links = append(links, feed.TopicMessage{
					Key:        stmt.ColumnInt64(0),
					TopicKey:   stmt.ColumnInt64(1),
					MessageKey: stmt.ColumnInt64(2),
					Sequence:   stmt.ColumnInt(3),
				})
				return nil
			},
		})
	if err != nil {
		return nil, fmt.Errorf("list message links: %w", err)
	}
	return links, nil
}

// MessageCount returns the number of messages filed under the topic.
func (tx *Tx) MessageCount(topicKey int64) (int, error) {
	count := 0
	err := sqlitex.ExecuteTransient(tx.db.conn,
		`SELECT COUNT(DISTINCT message_key) FROM topic_message WHERE topic_key = ?`,
		&sqlitex.ExecOptions{
			Args: []any{topicKey},
			ResultFunc: func(stmt *sqlite.Stmt) error {
				count = stmt.ColumnInt(0)
				return nil
			},
		})
	if err != nil {
		return 0, fmt.Errorf("count topic messages: %w", err)
	}
	return count, nil
}

func scanTopic(stmt *sqlite.Stmt) feed.Topic {
	return feed.Topic{
		Key:         stmt.ColumnInt64(0),
		Name:        stmt.ColumnText(1),
		Subscribed:  stmt.ColumnInt(2) != 0,
		Description: stmt.ColumnText(3),
		Updated:     time.Unix(0, stmt.ColumnInt64(4)),
	}
}

func scanMessage(stmt *sqlite.Stmt) feed.Message {
	return feed.Message{
		Key:      stmt.ColumnInt64(0),
		TopicKey: stmt.ColumnInt64(1),
		Text:     stmt.ColumnText(2),
		Updated:  time.Unix(0, stmt.ColumnInt64(3)),
	}
}
