// Package settings stores the expiry-warning configuration blob.
package settings

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/roach88/pantry/internal/conn"
)

// DatabaseName is the logical database holding settings.
const DatabaseName = "settings"

// Schema version tracking:
// 1 - settings table holding a single expiryWarningDays number
// 2 - expirySettings blob with per-category warnings
const SchemaVersion = 2

const (
	expiryKey = "expirySettings"
	legacyKey = "expiryWarningDays"
)

// ErrInvalid is returned by Update for settings that fail validation.
var ErrInvalid = errors.New("invalid settings")

// Warning configures the expiry warning of one product category.
type Warning struct {
	WarningDays int  `json:"warningDays"`
	Enabled     bool `json:"enabled"`
}

// Expiry holds the expiry warnings for fresh and other products.
type Expiry struct {
	FreshProducts Warning `json:"freshProducts"`
	OtherProducts Warning `json:"otherProducts"`
}

// Defaults returns the settings used until the user changes them.
func Defaults() Expiry {
	return Expiry{
		FreshProducts: Warning{WarningDays: 2, Enabled: true},
		OtherProducts: Warning{WarningDays: 7, Enabled: true},
	}
}

// Validate reports whether e can be stored.
func (e Expiry) Validate() error {
	if e.FreshProducts.WarningDays < 0 {
		return fmt.Errorf("%w: freshProducts.warningDays must be >= 0, got %d", ErrInvalid, e.FreshProducts.WarningDays)
	}
	if e.OtherProducts.WarningDays < 0 {
		return fmt.Errorf("%w: otherProducts.warningDays must be >= 0, got %d", ErrInvalid, e.OtherProducts.WarningDays)
	}
	return nil
}

// Schema returns the connection schema for the settings database.
func Schema() conn.Schema {
	return conn.Schema{
		Name:    DatabaseName,
		Version: SchemaVersion,
		Upgrade: upgrade,
	}
}

func upgrade(ctx context.Context, tx *sql.Tx, oldVersion, newVersion int) error {
	if _, err := tx.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS settings (
			key   TEXT PRIMARY KEY,
			value TEXT NOT NULL
		)
	`); err != nil {
		return fmt.Errorf("create settings: %w", err)
	}

	if oldVersion < 1 {
		return put(ctx, tx, Defaults())
	}
	if oldVersion == 1 {
		return migrateLegacy(ctx, tx)
	}
	return nil
}

// migrateLegacy folds a version 1 expiryWarningDays value into the
// otherProducts warning. A zero or missing value leaves settings unset.
func migrateLegacy(ctx context.Context, tx *sql.Tx) error {
	var raw string
	err := tx.QueryRowContext(ctx, `SELECT value FROM settings WHERE key = ?`, legacyKey).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("read %s: %w", legacyKey, err)
	}

	var days int
	if err := json.Unmarshal([]byte(raw), &days); err != nil {
		return fmt.Errorf("decode %s: %w", legacyKey, err)
	}
	if days == 0 {
		return nil
	}

	migrated := Defaults()
	migrated.OtherProducts.WarningDays = days
	return put(ctx, tx, migrated)
}

func put(ctx context.Context, tx *sql.Tx, e Expiry) error {
	raw, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("encode %s: %w", expiryKey, err)
	}
	if _, err := tx.ExecContext(ctx, `
		INSERT INTO settings (key, value) VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value
	`, expiryKey, string(raw)); err != nil {
		return fmt.Errorf("write %s: %w", expiryKey, err)
	}
	return nil
}

// Store reads and writes the expirySettings blob.
type Store struct {
	m      *conn.Manager
	logger *slog.Logger
}

// New returns a settings store backed by m. A nil logger uses slog.Default().
func New(m *conn.Manager, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{m: m, logger: logger.With("component", "settings")}
}

func (s *Store) db(ctx context.Context) (*conn.DB, error) {
	sc := Schema()
	return s.m.Get(ctx, sc.Name, sc.Version, sc.Upgrade)
}

// Get returns the stored settings, or Defaults when none are stored.
func (s *Store) Get(ctx context.Context) (Expiry, error) {
	db, err := s.db(ctx)
	if err != nil {
		return Expiry{}, fmt.Errorf("get settings: %w", err)
	}

	var raw string
	err = db.SQL().QueryRowContext(ctx, `SELECT value FROM settings WHERE key = ?`, expiryKey).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return Defaults(), nil
	}
	if err != nil {
		return Expiry{}, fmt.Errorf("get settings: %w", err)
	}

	var e Expiry
	if err := json.Unmarshal([]byte(raw), &e); err != nil {
		return Expiry{}, fmt.Errorf("get settings: decode: %w", err)
	}
	return e, nil
}

// Update replaces the stored settings.
func (s *Store) Update(ctx context.Context, e Expiry) error {
	if err := e.Validate(); err != nil {
		return fmt.Errorf("update settings: %w", err)
	}

	db, err := s.db(ctx)
	if err != nil {
		return fmt.Errorf("update settings: %w", err)
	}
	if err := db.Tx(ctx, func(tx *sql.Tx) error { return put(ctx, tx, e) }); err != nil {
		return fmt.Errorf("update settings: %w", err)
	}

	s.logger.Debug("settings updated",
		"fresh_days", e.FreshProducts.WarningDays,
		"other_days", e.OtherProducts.WarningDays)
	return nil
}
