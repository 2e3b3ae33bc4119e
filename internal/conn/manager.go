package conn

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// UpgradeFunc brings a logical database from oldVersion to newVersion.
//
// It runs inside the transaction that bumps PRAGMA user_version, so a failed
// upgrade leaves the stored version untouched. Implementations must create
// only what is missing (CREATE TABLE IF NOT EXISTS) so a retry after a
// partial failure is safe.
type UpgradeFunc func(ctx context.Context, tx *sql.Tx, oldVersion, newVersion int) error

// Schema describes a well-known logical database opened by Initialize.
type Schema struct {
	Name    string
	Version int
	Upgrade UpgradeFunc
}

// DefaultBusyTimeout is how long a writer waits for another connection's
// lock before the open or transaction fails with ErrBlocked.
const DefaultBusyTimeout = 5 * time.Second

// acquisition is a future for one open. done is closed once db/err are set.
type acquisition struct {
	done chan struct{}
	db   *DB
	err  error
}

// Manager owns one handle per logical database name.
//
// It is constructed once at start-up and passed to every persistence
// component; there is no package-level instance.
type Manager struct {
	dir         string
	busyTimeout time.Duration
	schemas     []Schema
	logger      *slog.Logger

	mu    sync.Mutex
	conns map[string]*acquisition

	initMu   sync.Mutex
	initDone chan struct{}
	initErr  error
}

// Option configures a Manager.
type Option func(*Manager)

// WithSchemas registers the well-known databases opened by Initialize.
func WithSchemas(schemas ...Schema) Option {
	return func(m *Manager) {
		m.schemas = append(m.schemas, schemas...)
	}
}

// WithBusyTimeout overrides DefaultBusyTimeout.
func WithBusyTimeout(d time.Duration) Option {
	return func(m *Manager) {
		m.busyTimeout = d
	}
}

// WithLogger sets the logger. Defaults to slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(m *Manager) {
		m.logger = l
	}
}

// NewManager creates a manager storing its databases under dir.
// The directory is created on first open.
func NewManager(dir string, opts ...Option) *Manager {
	m := &Manager{
		dir:         dir,
		busyTimeout: DefaultBusyTimeout,
		conns:       make(map[string]*acquisition),
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.logger == nil {
		m.logger = slog.Default()
	}
	m.logger = m.logger.With("component", "conn")
	return m
}

// Dir returns the data directory.
func (m *Manager) Dir() string { return m.dir }

// Initialize opens every registered schema exactly once. Repeated and
// concurrent calls share the first call's result.
func (m *Manager) Initialize(ctx context.Context) error {
	m.initMu.Lock()
	if m.initDone != nil {
		done := m.initDone
		m.initMu.Unlock()
		select {
		case <-done:
			return m.initErr
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	m.initDone = make(chan struct{})
	m.initMu.Unlock()

	var (
		wg   sync.WaitGroup
		errs = make([]error, len(m.schemas))
	)
	for i, s := range m.schemas {
		wg.Add(1)
		go func(i int, s Schema) {
			defer wg.Done()
			_, errs[i] = m.Get(ctx, s.Name, s.Version, s.Upgrade)
		}(i, s)
	}
	wg.Wait()

	m.initErr = errors.Join(errs...)
	close(m.initDone)
	return m.initErr
}

// Get returns the handle for name, opening it if needed.
//
// The acquisition is cached before the open starts, so concurrent callers
// share one open and upgrade runs at most once. A cached handle serves any
// version up to its own; asking a live handle for a higher version returns
// ErrVersionConflict.
//
// The open itself is not cancelled by ctx. ctx only bounds how long a late
// caller waits for an open already in progress.
func (m *Manager) Get(ctx context.Context, name string, version int, upgrade UpgradeFunc) (*DB, error) {
	if err := validateName(name); err != nil {
		return nil, err
	}
	if version < 1 {
		return nil, fmt.Errorf("get %s: version %d must be positive", name, version)
	}

	m.mu.Lock()
	if a, ok := m.conns[name]; ok {
		m.mu.Unlock()
		return awaitAcquisition(ctx, a, name, version)
	}
	a := &acquisition{done: make(chan struct{})}
	m.conns[name] = a
	m.mu.Unlock()

	a.db, a.err = m.open(context.WithoutCancel(ctx), name, version, upgrade)
	if a.err != nil {
		m.evict(name, a)
		m.logger.Warn("open failed, evicted", "name", name, "version", version, "error", a.err)
	}
	close(a.done)

	return a.db, a.err
}

func awaitAcquisition(ctx context.Context, a *acquisition, name string, version int) (*DB, error) {
	select {
	case <-a.done:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	if a.err != nil {
		return nil, a.err
	}
	if version > a.db.version {
		return nil, fmt.Errorf("get %s: live handle is at version %d, requested %d: %w",
			name, a.db.version, version, ErrVersionConflict)
	}
	return a.db, nil
}

// evict drops the cache entry for name if it still points at a.
func (m *Manager) evict(name string, a *acquisition) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if cur, ok := m.conns[name]; ok && cur == a {
		delete(m.conns, name)
	}
}

// evictHandle drops the cache entry holding d. Called when d is closed.
func (m *Manager) evictHandle(d *DB) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.conns[d.name]
	if !ok {
		return
	}
	select {
	case <-a.done:
		if a.db == d {
			delete(m.conns, d.name)
			m.logger.Info("handle closed, evicted", "name", d.name)
		}
	default:
	}
}

// CloseAll closes every cached handle and clears the cache. Opens still in
// progress are waited for and then closed.
func (m *Manager) CloseAll() error {
	m.mu.Lock()
	pending := make([]*acquisition, 0, len(m.conns))
	for _, a := range m.conns {
		pending = append(pending, a)
	}
	m.conns = make(map[string]*acquisition)
	m.mu.Unlock()

	var errs []error
	for _, a := range pending {
		<-a.done
		if a.err != nil || a.db == nil {
			continue
		}
		if err := a.db.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close %s: %w", a.db.name, err))
		}
	}
	m.logger.Debug("closed all handles", "count", len(pending))
	return errors.Join(errs...)
}

// Names returns the names with a cached acquisition, sorted.
func (m *Manager) Names() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	names := make([]string, 0, len(m.conns))
	for name := range m.conns {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// open creates or opens the SQLite file for name and upgrades it.
func (m *Manager) open(ctx context.Context, name string, version int, upgrade UpgradeFunc) (*DB, error) {
	path := filepath.Join(m.dir, name+".db")
	if err := os.MkdirAll(m.dir, 0o755); err != nil {
		return nil, fmt.Errorf("open %s: create data dir: %w", name, err)
	}

	dsn := fmt.Sprintf("file:%s?_busy_timeout=%d&_txlock=immediate&_foreign_keys=on",
		path, m.busyTimeout.Milliseconds())
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", name, err)
	}

	// SQLite only supports one writer at a time, so limit connections
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, classify(name, "connect", err)
	}

	if err := applyPragmas(ctx, db); err != nil {
		db.Close()
		return nil, classify(name, "apply pragmas", err)
	}

	old, err := upgradeSchema(ctx, db, version, upgrade)
	if err != nil {
		db.Close()
		return nil, classify(name, "upgrade", err)
	}

	d := &DB{
		name:    name,
		version: version,
		path:    path,
		db:      db,
		onClose: m.evictHandle,
	}
	if old < version {
		m.logger.Info("upgraded database", "name", name, "from", old, "to", version)
	}
	m.logger.Debug("opened database", "name", name, "version", version, "path", path)
	return d, nil
}

// applyPragmas sets the pragmas that persist in the file or apply to the
// single pooled connection.
func applyPragmas(ctx context.Context, db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
	}

	for _, pragma := range pragmas {
		if _, err := db.ExecContext(ctx, pragma); err != nil {
			return fmt.Errorf("failed to execute %q: %w", pragma, err)
		}
	}

	return nil
}

// upgradeSchema runs upgrade when the stored user_version is behind version.
// Returns the version found before upgrading.
func upgradeSchema(ctx context.Context, db *sql.DB, version int, upgrade UpgradeFunc) (int, error) {
	stored, err := userVersion(ctx, db)
	if err != nil {
		return 0, err
	}
	if stored > version {
		return stored, fmt.Errorf("stored version %d is newer than requested %d: %w", stored, version, ErrVersionConflict)
	}
	if stored == version {
		return stored, nil
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return stored, fmt.Errorf("begin upgrade: %w", err)
	}
	defer tx.Rollback() // No-op if committed

	// Re-read under the write lock: another process may have upgraded first.
	if err := tx.QueryRowContext(ctx, "PRAGMA user_version").Scan(&stored); err != nil {
		return 0, fmt.Errorf("get user_version: %w", err)
	}
	if stored >= version {
		return stored, nil
	}

	if upgrade != nil {
		if err := upgrade(ctx, tx, stored, version); err != nil {
			return stored, fmt.Errorf("upgrade %d -> %d: %w", stored, version, err)
		}
	}

	if _, err := tx.ExecContext(ctx, fmt.Sprintf("PRAGMA user_version = %d", version)); err != nil {
		return stored, fmt.Errorf("set user_version: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return stored, fmt.Errorf("commit upgrade: %w", err)
	}
	return stored, nil
}

func userVersion(ctx context.Context, db *sql.DB) (int, error) {
	var v int
	if err := db.QueryRowContext(ctx, "PRAGMA user_version").Scan(&v); err != nil {
		return 0, fmt.Errorf("get user_version: %w", err)
	}
	return v, nil
}

func classify(name, step string, err error) error {
	if isBlocked(err) && !errors.Is(err, ErrBlocked) {
		return fmt.Errorf("open %s: %s: %w: %w", name, step, ErrBlocked, err)
	}
	return fmt.Errorf("open %s: %s: %w", name, step, err)
}

func validateName(name string) error {
	if name == "" || strings.ContainsAny(name, `/\`) || name == "." || name == ".." {
		return fmt.Errorf("%q: %w", name, ErrInvalidName)
	}
	return nil
}
