// Package activity is the write-mostly audit trail of catalog changes.
//
// Entries live in the "activity" logical database, table activities, with a
// secondary index on timestamp. Timestamps are Unix milliseconds.
package activity

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/roach88/pantry/internal/conn"
)

// DatabaseName is the logical database holding the activity log.
const DatabaseName = "activity"

// SchemaVersion is the current activity schema version.
const SchemaVersion = 1

const (
	// DefaultRecentLimit is the number of entries Recent returns for a
	// non-positive limit.
	DefaultRecentLimit = 5

	// DefaultRetentionDays is how long entries are kept by default.
	DefaultRetentionDays = 30
)

// Type is the kind of change an entry records.
type Type string

const (
	TypeAdd    Type = "add"
	TypeUpdate Type = "update"
	TypeRemove Type = "remove"
)

// ErrInvalidType is returned by Add for an unknown entry type.
var ErrInvalidType = errors.New("invalid activity type")

// Entry is one recorded change.
type Entry struct {
	ID          int64  `json:"id"`
	Type        Type   `json:"type"`
	Description string `json:"description"`
	Timestamp   int64  `json:"timestamp"`
	ProductName string `json:"productName"`
	ProductID   *int64 `json:"productId,omitempty"`

	// Ref correlates the entry with the catalog item it concerns.
	Ref string `json:"ref,omitempty"`
}

// Time returns the entry timestamp as a time.Time.
func (e Entry) Time() time.Time { return time.UnixMilli(e.Timestamp) }

// Schema returns the connection schema for the activity database.
func Schema() conn.Schema {
	return conn.Schema{
		Name:    DatabaseName,
		Version: SchemaVersion,
		Upgrade: func(ctx context.Context, tx *sql.Tx, oldVersion, newVersion int) error {
			_, err := tx.ExecContext(ctx, `
				CREATE TABLE IF NOT EXISTS activities (
					id           INTEGER PRIMARY KEY AUTOINCREMENT,
					type         TEXT NOT NULL,
					description  TEXT NOT NULL,
					timestamp    INTEGER NOT NULL,
					product_name TEXT NOT NULL,
					product_id   INTEGER,
					ref          TEXT NOT NULL DEFAULT ''
				);

				CREATE INDEX IF NOT EXISTS idx_activities_timestamp ON activities(timestamp);
			`)
			if err != nil {
				return fmt.Errorf("create activities: %w", err)
			}
			return nil
		},
	}
}

// Log appends and reads activity entries.
//
// Thread-safety: Log is safe for concurrent use.
type Log struct {
	m      *conn.Manager
	now    func() time.Time
	logger *slog.Logger
}

// Option configures a Log.
type Option func(*Log)

// WithClock sets the time source used to stamp entries.
func WithClock(now func() time.Time) Option {
	return func(l *Log) {
		l.now = now
	}
}

// WithLogger sets the logger. Nil keeps slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(l *Log) {
		if logger != nil {
			l.logger = logger
		}
	}
}

// New returns an activity log backed by m.
func New(m *conn.Manager, opts ...Option) *Log {
	l := &Log{
		m:      m,
		now:    time.Now,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(l)
	}
	l.logger = l.logger.With("component", "activity")
	return l
}

func (l *Log) db(ctx context.Context) (*conn.DB, error) {
	s := Schema()
	return l.m.Get(ctx, s.Name, s.Version, s.Upgrade)
}

// Add stamps e with the current time and appends it. ID and Timestamp of e
// are ignored; the stored entry is returned.
func (l *Log) Add(ctx context.Context, e Entry) (Entry, error) {
	switch e.Type {
	case TypeAdd, TypeUpdate, TypeRemove:
	default:
		return Entry{}, fmt.Errorf("add activity: %w: %q", ErrInvalidType, e.Type)
	}

	db, err := l.db(ctx)
	if err != nil {
		return Entry{}, fmt.Errorf("add activity: %w", err)
	}

	e.Timestamp = l.now().UnixMilli()
	err = db.Tx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `
			INSERT INTO activities (type, description, timestamp, product_name, product_id, ref)
			VALUES (?, ?, ?, ?, ?, ?)
		`, string(e.Type), e.Description, e.Timestamp, e.ProductName, e.ProductID, e.Ref)
		if err != nil {
			return err
		}
		e.ID, err = res.LastInsertId()
		return err
	})
	if err != nil {
		return Entry{}, fmt.Errorf("add activity: %w", err)
	}

	l.logger.Debug("activity recorded", "id", e.ID, "type", e.Type, "product", e.ProductName)
	return e, nil
}

// Recent returns up to limit entries, newest first. A non-positive limit
// uses DefaultRecentLimit.
func (l *Log) Recent(ctx context.Context, limit int) ([]Entry, error) {
	if limit <= 0 {
		limit = DefaultRecentLimit
	}

	db, err := l.db(ctx)
	if err != nil {
		return nil, fmt.Errorf("recent activities: %w", err)
	}

	rows, err := db.SQL().QueryContext(ctx, `
		SELECT id, type, description, timestamp, product_name, product_id, ref
		FROM activities
		ORDER BY timestamp DESC, id DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("recent activities: %w", err)
	}
	defer rows.Close()

	entries := []Entry{}
	for rows.Next() {
		var (
			e         Entry
			typ       string
			productID sql.NullInt64
		)
		if err := rows.Scan(&e.ID, &typ, &e.Description, &e.Timestamp, &e.ProductName, &productID, &e.Ref); err != nil {
			return nil, fmt.Errorf("scan activity: %w", err)
		}
		e.Type = Type(typ)
		if productID.Valid {
			id := productID.Int64
			e.ProductID = &id
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("recent activities: %w", err)
	}
	return entries, nil
}

// Prune deletes entries older than daysToKeep days and returns how many
// were removed.
func (l *Log) Prune(ctx context.Context, daysToKeep int) (int64, error) {
	if daysToKeep < 0 {
		return 0, fmt.Errorf("prune activities: negative retention %d", daysToKeep)
	}

	db, err := l.db(ctx)
	if err != nil {
		return 0, fmt.Errorf("prune activities: %w", err)
	}

	cutoff := l.now().Add(-time.Duration(daysToKeep) * 24 * time.Hour).UnixMilli()
	var removed int64
	err = db.Tx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `DELETE FROM activities WHERE timestamp < ?`, cutoff)
		if err != nil {
			return err
		}
		removed, err = res.RowsAffected()
		return err
	})
	if err != nil {
		return 0, fmt.Errorf("prune activities: %w", err)
	}

	if removed > 0 {
		l.logger.Info("activities pruned", "removed", removed, "days_kept", daysToKeep)
	}
	return removed, nil
}
