package store

import (
	"fmt"

	"zombiezen.com/go/sqlite"
	"zombiezen.com/go/sqlite/sqlitex"
)

// A migration is one ordered schema step. Revisions are opaque ids; the
// database is stamped with the id of the last applied step and upgraded
// step-by-step on open.
type migration struct {
	revision string
	script   string
}

var migrations = []migration{
	{
		revision: "66918e5b789b",
		script: `
CREATE TABLE topic (
	key INTEGER PRIMARY KEY,
	name TEXT NOT NULL,
	subscribed INTEGER NOT NULL DEFAULT 0,
	description TEXT NOT NULL DEFAULT '',
	updated INTEGER NOT NULL
);
CREATE UNIQUE INDEX ix_topic_name ON topic (name);
CREATE INDEX ix_topic_subscribed ON topic (subscribed);
CREATE INDEX ix_topic_updated ON topic (updated);

CREATE TABLE message (
	key INTEGER PRIMARY KEY,
	topic_key INTEGER NOT NULL REFERENCES topic (key),
	message TEXT NOT NULL,
	updated INTEGER NOT NULL
);
CREATE INDEX ix_message_topic_key ON message (topic_key);
CREATE INDEX ix_message_updated ON message (updated);

CREATE TABLE topic_message (
	key INTEGER PRIMARY KEY,
	topic_key INTEGER NOT NULL REFERENCES topic (key),
	message_key INTEGER NOT NULL REFERENCES message (key),
	sequence INTEGER NOT NULL,
	CONSTRAINT message_key_sequence_const UNIQUE (message_key, sequence)
);
CREATE INDEX ix_topic_message_topic_key ON topic_message (topic_key);
CREATE INDEX ix_topic_message_message_key ON topic_message (message_key);
`,
	},
}

// migrate brings the database to the latest revision. A fresh database
// runs every step; an older one resumes after its stamped revision.
// Each step commits atomically together with its revision stamp.
func migrate(conn *sqlite.Conn) error {
	err := sqlitex.ExecuteTransient(conn, `CREATE TABLE IF NOT EXISTS schema_revision (revision TEXT NOT NULL)`, nil)
	if err != nil {
		return fmt.Errorf("create revision table: %w", err)
	}

	var current string
	err = sqlitex.ExecuteTransient(conn, `SELECT revision FROM schema_revision LIMIT 1`, &sqlitex.ExecOptions{
		ResultFunc: func(stmt *sqlite.Stmt) error {
			current = stmt.ColumnText(0)
			return nil
		},
	})
	if err != nil {
		return fmt.Errorf("read revision: %w", err)
	}

	pending := migrations
	if current != "" {
		idx := -1
		for i, m := range migrations {
			if m.revision == current {
				idx = i
				break
			}
		}
		if idx < 0 {
			return fmt.Errorf("unknown schema revision %q", current)
		}
		pending = migrations[idx+1:]
	}

	for _, m := range pending {
		if err := applyMigration(conn, m); err != nil {
			return fmt.Errorf("migrate to %s: %w", m.revision, err)
		}
	}
	return nil
}

func applyMigration(conn *sqlite.Conn, m migration) (err error) {
	endFn, err := sqlitex.ImmediateTransaction(conn)
	if err != nil {
		return err
	}
	defer endFn(&err)

	if err := sqlitex.ExecuteScript(conn, m.script, nil); err != nil {
		return err
	}
	if err := sqlitex.ExecuteTransient(conn, `DELETE FROM schema_revision`, nil); err != nil {
		return err
	}
	return sqlitex.ExecuteTransient(conn, `INSERT INTO schema_revision (revision) VALUES (?)`, &sqlitex.ExecOptions{
		Args: []any{m.revision},
	})
}
