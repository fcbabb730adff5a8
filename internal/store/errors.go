package store

import (
	"errors"
	"fmt"
	"strings"

	sqlite "modernc.org/sqlite"
)

// ErrStorageExhausted is returned when the underlying database reports it
// is out of space. The triggering mutation is rolled back, never partially
// persisted; the caller must surface this to the user.
var ErrStorageExhausted = errors.New("storage exhausted")

// ErrVersionRegression is returned when a cached-entity write would move
// its version backwards. Versions are server-assigned and monotonic.
var ErrVersionRegression = errors.New("version regression")

// ErrNotFound is returned for lookups of rows that do not exist.
var ErrNotFound = errors.New("not found")

const sqliteFull = 13 // SQLITE_FULL

// mapStorageErr translates SQLITE_FULL into ErrStorageExhausted so callers
// can match it with errors.Is. Other errors pass through unchanged.
func mapStorageErr(err error) error {
	if err == nil {
		return nil
	}
	var se *sqlite.Error
	if errors.As(err, &se) && se.Code() == sqliteFull {
		return fmt.Errorf("%w: %v", ErrStorageExhausted, err)
	}
	if strings.Contains(err.Error(), "database or disk is full") {
		return fmt.Errorf("%w: %v", ErrStorageExhausted, err)
	}
	return err
}
