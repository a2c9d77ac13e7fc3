package store

import (
	"errors"
	"fmt"

	"zombiezen.com/go/sqlite"
)

var (
	// ErrNotFound is returned by single-row lookups that matched nothing.
	// List queries return empty slices instead.
	ErrNotFound = errors.New("not found")

	// ErrConstraint is returned when a write violates a schema
	// constraint (duplicate topic name, duplicate message/sequence
	// pair). The enclosing transaction is rolled back by the caller.
	ErrConstraint = errors.New("constraint violation")

	// ErrBusy is returned when the transaction lock could not be
	// acquired within the configured busy timeout.
	ErrBusy = errors.New("database busy")
)

// wrapSQLiteError maps sqlite constraint failures onto ErrConstraint so
// callers can match with errors.Is without importing the driver.
func wrapSQLiteError(op string, err error) error {
	if err == nil {
		return nil
	}
	if code := sqlite.ErrCode(err); code.ToPrimary() == sqlite.ResultConstraint {
		return fmt.Errorf("%s: %w: %v", op, ErrConstraint, err)
	}
	return fmt.Errorf("%s: %w", op, err)
}
