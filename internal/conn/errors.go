package conn

import (
	"errors"

	"github.com/mattn/go-sqlite3"
)

var (
	// ErrBlocked is returned when the underlying file is locked by another
	// connection while opening or upgrading. The cache entry is evicted so a
	// retry re-opens.
	ErrBlocked = errors.New("connection blocked")

	// ErrVersionConflict is returned when the requested schema version is
	// lower than the stored one, or higher than the version of a live handle.
	ErrVersionConflict = errors.New("schema version conflict")

	// ErrClosed is returned by a handle after it has been closed.
	ErrClosed = errors.New("connection closed")

	// ErrInvalidName is returned for empty or path-like logical names.
	ErrInvalidName = errors.New("invalid database name")
)

// isBlocked reports whether err is SQLite lock contention.
func isBlocked(err error) bool {
	var se sqlite3.Error
	if errors.As(err, &se) {
		return se.Code == sqlite3.ErrBusy || se.Code == sqlite3.ErrLocked
	}
	return false
}
