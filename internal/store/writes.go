package store

import (
	"fmt"
	"time"

	"zombiezen.com/go/sqlite"
	"zombiezen.com/go/sqlite/sqlitex"

	"github.com/mqtty/mqtty/internal/core/feed"
)

// CreateTopic inserts a new topic. Returns ErrConstraint if the name is
// already taken.
func (tx *Tx) CreateTopic(name string) (feed.Topic, error) {
	now := time.Now()
	err := sqlitex.ExecuteTransient(tx.db.conn,
		`INSERT INTO topic (name, subscribed, description, updated) VALUES (?, 0, '', ?)`,
		&sqlitex.ExecOptions{Args: []any{name, now.UnixNano()}})
	if err != nil {
		return feed.Topic{}, wrapSQLiteError("create topic", err)
	}

	topic := feed.Topic{
		Key:     tx.db.conn.LastInsertRowID(),
		Name:    name,
		Updated: now,
	}
	tx.touch(topic.Key)
	return topic, nil
}

// CreateMessage inserts a message under its originating topic and files
// it there with sequence 1, atomically within the open transaction.
// The topic's updated time is refreshed.
func (tx *Tx) CreateMessage(text string, topic feed.Topic) (feed.Message, error) {
	now := time.Now()
	err := sqlitex.ExecuteTransient(tx.db.conn,
		`INSERT INTO message (topic_key, message, updated) VALUES (?, ?, ?)`,
		&sqlitex.ExecOptions{Args: []any{topic.Key, text, now.UnixNano()}})
	if err != nil {
		return feed.Message{}, wrapSQLiteError("create message", err)
	}

	msg := feed.Message{
		Key:      tx.db.conn.LastInsertRowID(),
		TopicKey: topic.Key,
		Text:     text,
		Updated:  now,
	}
	if err := tx.insertLink(topic.Key, msg.Key); err != nil {
		return feed.Message{}, err
	}
	if err := tx.bumpTopic(topic.Key, now); err != nil {
		return feed.Message{}, err
	}
	return msg, nil
}

// AddTopicLink files an existing message under an additional topic. The
// sequence number is assigned as max(existing for this message)+1, so
// the filing history stays strictly increasing. Returns ErrConstraint
// when the message is already filed under the topic.
func (tx *Tx) AddTopicLink(msg feed.Message, topic feed.Topic) error {
	exists := false
	err := sqlitex.ExecuteTransient(tx.db.conn,
		`SELECT 1 FROM topic_message WHERE topic_key = ? AND message_key = ?`,
		&sqlitex.ExecOptions{
			Args: []any{topic.Key, msg.Key},
			ResultFunc: func(*sqlite.Stmt) error {
				exists = true
				return nil
			},
		})
	if err != nil {
		return fmt.Errorf("check topic link: %w", err)
	}
	if exists {
		return fmt.Errorf("add topic link: %w", ErrConstraint)
	}
	if err := tx.insertLink(topic.Key, msg.Key); err != nil {
		return err
	}
	return tx.bumpTopic(topic.Key, time.Now())
}

// RemoveTopicLink deletes the filing of a message under a topic.
// Surviving links keep their sequence numbers. Returns ErrNotFound if
// the message was not filed under the topic. The message row itself is
// never deleted here.
func (tx *Tx) RemoveTopicLink(msg feed.Message, topic feed.Topic) error {
	err := sqlitex.ExecuteTransient(tx.db.conn,
		`DELETE FROM topic_message WHERE topic_key = ? AND message_key = ?`,
		&sqlitex.ExecOptions{Args: []any{topic.Key, msg.Key}})
	if err != nil {
		return wrapSQLiteError("remove topic link", err)
	}
	if tx.db.conn.Changes() == 0 {
		return fmt.Errorf("remove topic link: %w", ErrNotFound)
	}
	return tx.bumpTopic(topic.Key, time.Now())
}

// DeleteMessage removes a message and all its topic_message rows in the
// same transaction. Every topic it was filed under is touched.
func (tx *Tx) DeleteMessage(messageKey int64) error {
	links, err := tx.LinksByMessage(messageKey)
	if err != nil {
		return err
	}
	err = sqlitex.ExecuteTransient(tx.db.conn,
		`DELETE FROM topic_message WHERE message_key = ?`,
		&sqlitex.ExecOptions{Args: []any{messageKey}})
	if err != nil {
		return wrapSQLiteError("delete message links", err)
	}
	err = sqlitex.ExecuteTransient(tx.db.conn,
		`DELETE FROM message WHERE key = ?`,
		&sqlitex.ExecOptions{Args: []any{messageKey}})
	if err != nil {
		return wrapSQLiteError("delete message", err)
	}
	if tx.db.conn.Changes() == 0 {
		return fmt.Errorf("delete message: %w", ErrNotFound)
	}
	for _, link := range links {
		tx.touch(link.TopicKey)
	}
	return nil
}

// DeleteTopic removes a topic and its topic_message rows. Messages
// filed under the topic survive; only the filings are removed.
func (tx *Tx) DeleteTopic(topicKey int64) error {
	err := sqlitex.ExecuteTransient(tx.db.conn,
		`DELETE FROM topic_message WHERE topic_key = ?`,
		&sqlitex.ExecOptions{Args: []any{topicKey}})
	if err != nil {
		return wrapSQLiteError("delete topic links", err)
	}
	err = sqlitex.ExecuteTransient(tx.db.conn,
		`DELETE FROM topic WHERE key = ?`,
		&sqlitex.ExecOptions{Args: []any{topicKey}})
	if err != nil {
		return wrapSQLiteError("delete topic", err)
	}
	if tx.db.conn.Changes() == 0 {
		return fmt.Errorf("delete topic: %w", ErrNotFound)
	}
	tx.touch(topicKey)
	return nil
}

// RenameTopic changes a topic's unique name.
func (tx *Tx) RenameTopic(topicKey int64, name string) error {
	err := sqlitex.ExecuteTransient(tx.db.conn,
		`UPDATE topic SET name = ?, updated = ? WHERE key = ?`,
		&sqlitex.ExecOptions{Args: []any{name, time.Now().UnixNano(), topicKey}})
	if err != nil {
		return wrapSQLiteError("rename topic", err)
	}
	if tx.db.conn.Changes() == 0 {
		return fmt.Errorf("rename topic: %w", ErrNotFound)
	}
	tx.touch(topicKey)
	return nil
}

// SetSubscribed toggles the topic's subscription flag.
func (tx *Tx) SetSubscribed(topicKey int64, subscribed bool) error {
	err := sqlitex.ExecuteTransient(tx.db.conn,
		`UPDATE topic SET subscribed = ?, updated = ? WHERE key = ?`,
		&sqlitex.ExecOptions{Args: []any{boolInt(subscribed), time.Now().UnixNano(), topicKey}})
	if err != nil {
		return wrapSQLiteError("set subscribed", err)
	}
	if tx.db.conn.Changes() == 0 {
		return fmt.Errorf("set subscribed: %w", ErrNotFound)
	}
	tx.touch(topicKey)
	return nil
}

// SetDescription replaces the topic's free-text description.
func (tx *Tx) SetDescription(topicKey int64, description string) error {
	err := sqlitex.ExecuteTransient(tx.db.conn,
		`UPDATE topic SET description = ?, updated = ? WHERE key = ?`,
		&sqlitex.ExecOptions{Args: []any{description, time.Now().UnixNano(), topicKey}})
	if err != nil {
		return wrapSQLiteError("set description", err)
	}
	if tx.db.conn.Changes() == 0 {
		return fmt.Errorf("set description: %w", ErrNotFound)
	}
	tx.touch(topicKey)
	return nil
}

// insertLink files a message under a topic at the next sequence number
// for that message.
func (tx *Tx) insertLink(topicKey, messageKey int64) error {
	seq := 0
	err := sqlitex.ExecuteTransient(tx.db.conn,
		`SELECT COALESCE(MAX(sequence), 0) FROM topic_message WHERE message_key = ?`,
		&sqlitex.ExecOptions{
			Args: []any{messageKey},
			ResultFunc: func(stmt *sqlite.Stmt) error {
				seq = stmt.ColumnInt(0)
				return nil
			},
		})
	if err != nil {
		return fmt.Errorf("next sequence: %w", err)
	}

	err = sqlitex.ExecuteTransient(tx.db.conn,
		`INSERT INTO topic_message (topic_key, message_key, sequence) VALUES (?, ?, ?)`,
		&sqlitex.ExecOptions{Args: []any{topicKey, messageKey, seq + 1}})
	if err != nil {
		return wrapSQLiteError("insert topic link", err)
	}
	tx.touch(topicKey)
	return nil
}

// bumpTopic refreshes a topic's updated timestamp after an owned-message
// write.
func (tx *Tx) bumpTopic(topicKey int64, now time.Time) error {
	err := sqlitex.ExecuteTransient(tx.db.conn,
		`UPDATE topic SET updated = ? WHERE key = ?`,
		&sqlitex.ExecOptions{Args: []any{now.UnixNano(), topicKey}})
	if err != nil {
		return fmt.Errorf("bump topic: %w", err)
	}
	tx.touch(topicKey)
	return nil
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
