// Package store owns all persisted state: topics, messages, and the
// links that file messages under topics. It is backed by a single
// SQLite connection serialized by a process-wide lock, so at most one
// transaction (read or write) is active at any instant.
//
// That single-writer discipline is deliberate. The tool serves one
// interactive operator per process; giving up read/write concurrency
// buys an ordered-sequence invariant that holds with no further
// coordination. Do not replace the lock with finer-grained locking
// without an equivalent guarantee.
package store

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"zombiezen.com/go/sqlite"
	"zombiezen.com/go/sqlite/sqlitex"
)

// warnHoldDefault is the lock hold time above which a release is logged
// at warn level instead of debug. Diagnostic only, not a deadline.
const warnHoldDefault = 500 * time.Millisecond

// DB is the handle to the persistent store. Safe for concurrent use;
// all access is serialized through Begin.
type DB struct {
	conn *sqlite.Conn
	path string

	// lock serializes transactions across every goroutine in the
	// process. Channel-based so acquisition can honor a timeout.
	lock chan struct{}

	busyTimeout time.Duration // 0 means block until the lock frees
	warnHold    time.Duration
	log         zerolog.Logger

	onTopicChange func(topicKey int64)
}

// Option configures a DB at open time.
type Option func(*DB)

// WithBusyTimeout bounds how long Begin waits for the transaction lock
// before returning ErrBusy. The default (zero) blocks indefinitely,
// which matches the single-process nature of the tool.
func WithBusyTimeout(d time.Duration) Option {
	return func(db *DB) { db.busyTimeout = d }
}

// WithLogger sets the logger used for lock-hold diagnostics.
func WithLogger(log zerolog.Logger) Option {
	return func(db *DB) { db.log = log }
}

// Open opens or creates the database at path and brings its schema to
// the latest revision. Use ":memory:" for tests.
func Open(path string, opts ...Option) (*DB, error) {
	conn, err := sqlite.OpenConn(path, sqlite.OpenReadWrite|sqlite.OpenCreate|sqlite.OpenWAL)
	if err != nil {
		return nil, fmt.Errorf("open database %s: %w", path, err)
	}

	if err := sqlitex.ExecuteTransient(conn, `PRAGMA foreign_keys = ON`, nil); err != nil {
		conn.Close()
		return nil, fmt.Errorf("enable foreign keys: %w", err)
	}

	db := &DB{
		conn:     conn,
		path:     path,
		lock:     make(chan struct{}, 1),
		warnHold: warnHoldDefault,
		log:      zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(db)
	}

	if err := migrate(conn); err != nil {
		conn.Close()
		return nil, err
	}
	return db, nil
}

// Close closes the underlying connection. Callers must ensure no
// transaction is in flight.
func (db *DB) Close() error {
	return db.conn.Close()
}

// OnTopicChange registers a hook invoked after commit for every topic
// whose rows were touched by the transaction. Used to invalidate
// derived-count caches. Must be set before concurrent use begins.
func (db *DB) OnTopicChange(fn func(topicKey int64)) {
	db.onTopicChange = fn
}

// Tx is an open unit of work. All reads and writes happen through it.
// A Tx must be finished with exactly one of Commit or Rollback; both
// release the process-wide lock unconditionally.
type Tx struct {
	db       *DB
	acquired time.Time
	done     bool
	touched  map[int64]struct{}
}

// Begin acquires the process-wide transaction lock and opens a unit of
// work. Returns ErrBusy if the lock cannot be obtained within the
// configured busy timeout, or ctx.Err if the context ends first.
func (db *DB) Begin(ctx context.Context) (*Tx, error) {
	if err := db.acquire(ctx); err != nil {
		return nil, err
	}

	if err := sqlitex.ExecuteTransient(db.conn, `BEGIN IMMEDIATE`, nil); err != nil {
		db.release(time.Now())
		return nil, fmt.Errorf("begin: %w", err)
	}

	return &Tx{
		db:       db,
		acquired: time.Now(),
		touched:  make(map[int64]struct{}),
	}, nil
}

func (db *DB) acquire(ctx context.Context) error {
	if db.busyTimeout <= 0 {
		select {
		case db.lock <- struct{}{}:
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	timer := time.NewTimer(db.busyTimeout)
	defer timer.Stop()
	select {
	case db.lock <- struct{}{}:
		return nil
	case <-timer.C:
		return fmt.Errorf("lock wait exceeded %s: %w", db.busyTimeout, ErrBusy)
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (db *DB) release(acquired time.Time) {
	held := time.Since(acquired)
	ev := db.log.Debug()
	if held > db.warnHold {
		ev = db.log.Warn()
	}
	ev.Dur("held", held).Msg("database lock released")
	<-db.lock
}

// Commit persists the unit of work, fires topic-change hooks for every
// touched topic, and releases the lock.
func (tx *Tx) Commit() error {
	if tx.done {
		return fmt.Errorf("commit: transaction already finished")
	}
	tx.done = true
	defer tx.db.release(tx.acquired)

	if err := sqlitex.ExecuteTransient(tx.db.conn, `COMMIT`, nil); err != nil {
		// A failed COMMIT leaves the transaction open; roll it back so
		// the connection is reusable.
		_ = sqlitex.ExecuteTransient(tx.db.conn, `ROLLBACK`, nil)
		return fmt.Errorf("commit: %w", err)
	}

	if tx.db.onTopicChange != nil {
		for key := range tx.touched {
			tx.db.onTopicChange(key)
		}
	}
	return nil
}

// Rollback discards the unit of work and releases the lock. Safe to
// call after Commit; it is a no-op then, which makes `defer
// tx.Rollback()` the standard guaranteed-release pattern.
func (tx *Tx) Rollback() error {
	if tx.done {
		return nil
	}
	tx.done = true
	defer tx.db.release(tx.acquired)

	if err := sqlitex.ExecuteTransient(tx.db.conn, `ROLLBACK`, nil); err != nil {
		return fmt.Errorf("rollback: %w", err)
	}
	return nil
}

// touch records that a topic's rows changed in this transaction.
func (tx *Tx) touch(topicKey int64) {
	tx.touched[topicKey] = struct{}{}
}

// Update runs fn inside a transaction, committing on success and
// rolling back on error.
func (db *DB) Update(ctx context.Context, fn func(tx *Tx) error) error {
	tx, err := db.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if err := fn(tx); err != nil {
		return err
	}
	return tx.Commit()
}

// View runs fn inside a read transaction. Writes made through fn are
// still committed (the lock admits one transaction of any kind), but
// View documents intent at call sites.
func (db *DB) View(ctx context.Context, fn func(tx *Tx) error) error {
	return db.Update(ctx, fn)
}

// Vacuum reclaims free space. It takes the transaction lock itself and
// must not be called with a transaction open.
func (db *DB) Vacuum(ctx context.Context) error {
	if err := db.acquire(ctx); err != nil {
		return err
	}
	defer db.release(time.Now())

	if err := sqlitex.ExecuteTransient(db.conn, `VACUUM`, nil); err != nil {
		return fmt.Errorf("vacuum: %w", err)
	}
	return nil
}
