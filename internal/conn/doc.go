// Package conn manages the logical databases shared by every persistence
// component.
//
// A logical database is a named SQLite file under the manager's data
// directory. Its schema version is the file's PRAGMA user_version:
//
//   - Created on first open (version 0)
//   - Upgraded in place when a caller asks for a higher version
//   - Never deleted during normal operation
//
// # Single-Flight Acquisition
//
// Manager caches the pending acquisition for a name, not only the finished
// handle. Callers that arrive while an open is in progress wait on the same
// acquisition, so two live opens for one name never exist and the upgrade
// procedure runs exactly once per version transition.
//
// # Eviction
//
// A cache entry is dropped when:
//   - The open fails (ErrBlocked when another connection holds the write lock)
//   - The handle is closed from outside the manager (ErrClosed afterwards)
//
// The next caller re-opens.
//
// # Database Configuration
//
//   - WAL mode: concurrent reads during writes
//   - synchronous=NORMAL
//   - busy_timeout: configurable, 5 seconds by default
//   - IMMEDIATE transactions: writers take the lock at BEGIN
//   - One pooled connection per handle: transactions on a handle are serialized
package conn
