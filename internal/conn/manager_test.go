package conn

import (
	"context"
	"database/sql"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// countingUpgrade creates a single table and records every call.
type countingUpgrade struct {
	calls atomic.Int32
	mu    sync.Mutex
	seen  [][2]int
	delay time.Duration
}

func (u *countingUpgrade) fn(ctx context.Context, tx *sql.Tx, oldVersion, newVersion int) error {
	u.calls.Add(1)
	u.mu.Lock()
	u.seen = append(u.seen, [2]int{oldVersion, newVersion})
	u.mu.Unlock()
	if u.delay > 0 {
		time.Sleep(u.delay)
	}
	_, err := tx.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS things (id TEXT PRIMARY KEY)`)
	return err
}

func newTestManager(t *testing.T, opts ...Option) *Manager {
	t.Helper()
	m := NewManager(t.TempDir(), opts...)
	t.Cleanup(func() { m.CloseAll() })
	return m
}

func tableExists(t *testing.T, db *sql.DB, name string) bool {
	t.Helper()
	var n int
	err := db.QueryRow(`SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name=?`, name).Scan(&n)
	require.NoError(t, err)
	return n == 1
}

func TestGet_CreatesDatabaseAndRunsUpgrade(t *testing.T) {
	m := newTestManager(t)
	u := &countingUpgrade{}

	db, err := m.Get(context.Background(), "hierarchy", 1, u.fn)
	require.NoError(t, err)

	assert.Equal(t, "hierarchy", db.Name())
	assert.Equal(t, 1, db.Version())
	assert.Equal(t, int32(1), u.calls.Load())
	assert.Equal(t, [][2]int{{0, 1}}, u.seen)
	assert.True(t, tableExists(t, db.SQL(), "things"))

	_, err = os.Stat(filepath.Join(m.Dir(), "hierarchy.db"))
	assert.NoError(t, err, "database file should exist")
}

func TestGet_ReusesCachedHandle(t *testing.T) {
	m := newTestManager(t)
	u := &countingUpgrade{}
	ctx := context.Background()

	first, err := m.Get(ctx, "items", 3, u.fn)
	require.NoError(t, err)
	second, err := m.Get(ctx, "items", 3, u.fn)
	require.NoError(t, err)
	lower, err := m.Get(ctx, "items", 1, u.fn)
	require.NoError(t, err)

	assert.Same(t, first, second)
	assert.Same(t, first, lower, "a handle serves lower versions")
	assert.Equal(t, int32(1), u.calls.Load())
}

func TestGet_ConcurrentCallersShareOneOpen(t *testing.T) {
	m := newTestManager(t)
	u := &countingUpgrade{delay: 50 * time.Millisecond}

	const callers = 32
	var (
		wg      sync.WaitGroup
		start   = make(chan struct{})
		handles = make([]*DB, callers)
		errs    = make([]error, callers)
	)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			<-start
			handles[i], errs[i] = m.Get(context.Background(), "hierarchy", 1, u.fn)
		}(i)
	}
	close(start)
	wg.Wait()

	for i := 0; i < callers; i++ {
		require.NoError(t, errs[i])
		assert.Same(t, handles[0], handles[i])
	}
	assert.Equal(t, int32(1), u.calls.Load(), "upgrade must run exactly once")
}

func TestGet_UpgradesOnlyWhenBehind(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	u1 := &countingUpgrade{}
	m1 := NewManager(dir)
	_, err := m1.Get(ctx, "settings", 1, u1.fn)
	require.NoError(t, err)
	require.NoError(t, m1.CloseAll())

	u2 := &countingUpgrade{}
	m2 := NewManager(dir)
	db, err := m2.Get(ctx, "settings", 2, u2.fn)
	require.NoError(t, err)
	assert.Equal(t, [][2]int{{1, 2}}, u2.seen)
	assert.Equal(t, 2, db.Version())
	require.NoError(t, m2.CloseAll())

	u3 := &countingUpgrade{}
	m3 := NewManager(dir)
	defer m3.CloseAll()
	_, err = m3.Get(ctx, "settings", 2, u3.fn)
	require.NoError(t, err)
	assert.Equal(t, int32(0), u3.calls.Load(), "no upgrade when stored version matches")
}

func TestGet_FailedUpgradeRollsBackAndEvicts(t *testing.T) {
	m := newTestManager(t)
	ctx := context.Background()

	failing := func(ctx context.Context, tx *sql.Tx, oldVersion, newVersion int) error {
		if _, err := tx.ExecContext(ctx, `CREATE TABLE half (id TEXT)`); err != nil {
			return err
		}
		return errors.New("boom")
	}

	_, err := m.Get(ctx, "activity", 1, failing)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "boom")
	assert.Empty(t, m.Names(), "failed open must not stay cached")

	u := &countingUpgrade{}
	db, err := m.Get(ctx, "activity", 1, u.fn)
	require.NoError(t, err)
	assert.Equal(t, [][2]int{{0, 1}}, u.seen, "version was not bumped by the failed upgrade")
	assert.False(t, tableExists(t, db.SQL(), "half"), "partial upgrade must be rolled back")
}

func TestGet_StoredVersionNewerThanRequested(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	m1 := NewManager(dir)
	_, err := m1.Get(ctx, "items", 3, nil)
	require.NoError(t, err)
	require.NoError(t, m1.CloseAll())

	m2 := NewManager(dir)
	defer m2.CloseAll()
	_, err = m2.Get(ctx, "items", 2, nil)
	assert.ErrorIs(t, err, ErrVersionConflict)
}

func TestGet_HigherVersionThanLiveHandle(t *testing.T) {
	m := newTestManager(t)
	ctx := context.Background()

	_, err := m.Get(ctx, "items", 1, nil)
	require.NoError(t, err)

	_, err = m.Get(ctx, "items", 2, nil)
	assert.ErrorIs(t, err, ErrVersionConflict)
}

func TestGet_BlockedByAnotherConnectionEvicts(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	holder := NewManager(dir)
	defer holder.CloseAll()
	u := &countingUpgrade{}
	held, err := holder.Get(ctx, "hierarchy", 1, u.fn)
	require.NoError(t, err)

	// Hold the write lock.
	tx, err := held.SQL().BeginTx(ctx, nil)
	require.NoError(t, err)
	_, err = tx.ExecContext(ctx, `INSERT INTO things (id) VALUES ('x')`)
	require.NoError(t, err)

	m := NewManager(dir, WithBusyTimeout(50*time.Millisecond))
	defer m.CloseAll()

	_, err = m.Get(ctx, "hierarchy", 2, u.fn)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrBlocked)
	assert.Empty(t, m.Names(), "blocked open must be evicted")

	require.NoError(t, tx.Rollback())

	db, err := m.Get(ctx, "hierarchy", 2, u.fn)
	require.NoError(t, err)
	assert.Equal(t, 2, db.Version())
}

func TestClose_EvictsHandle(t *testing.T) {
	m := newTestManager(t)
	ctx := context.Background()

	db, err := m.Get(ctx, "activity", 1, nil)
	require.NoError(t, err)
	require.NoError(t, db.Close())
	require.NoError(t, db.Close(), "Close is idempotent")

	assert.True(t, db.Closed())
	assert.Empty(t, m.Names())

	err = db.Tx(ctx, func(tx *sql.Tx) error { return nil })
	assert.ErrorIs(t, err, ErrClosed)

	reopened, err := m.Get(ctx, "activity", 1, nil)
	require.NoError(t, err)
	assert.NotSame(t, db, reopened)
}

func TestInitialize_OpensSchemasOnce(t *testing.T) {
	hier := &countingUpgrade{}
	items := &countingUpgrade{}
	m := newTestManager(t, WithSchemas(
		Schema{Name: "hierarchy", Version: 1, Upgrade: hier.fn},
		Schema{Name: "items", Version: 3, Upgrade: items.fn},
	))

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.NoError(t, m.Initialize(context.Background()))
		}()
	}
	wg.Wait()
	require.NoError(t, m.Initialize(context.Background()))

	assert.Equal(t, []string{"hierarchy", "items"}, m.Names())
	assert.Equal(t, int32(1), hier.calls.Load())
	assert.Equal(t, int32(1), items.calls.Load())
}

func TestCloseAll_ClearsCache(t *testing.T) {
	m := newTestManager(t)
	ctx := context.Background()

	a, err := m.Get(ctx, "a", 1, nil)
	require.NoError(t, err)
	b, err := m.Get(ctx, "b", 1, nil)
	require.NoError(t, err)

	require.NoError(t, m.CloseAll())
	assert.Empty(t, m.Names())
	assert.True(t, a.Closed())
	assert.True(t, b.Closed())
}

func TestGet_InvalidArguments(t *testing.T) {
	m := newTestManager(t)
	ctx := context.Background()

	for _, name := range []string{"", "../escape", `a\b`, ".."} {
		_, err := m.Get(ctx, name, 1, nil)
		assert.ErrorIs(t, err, ErrInvalidName, "name %q", name)
	}

	_, err := m.Get(ctx, "ok", 0, nil)
	assert.Error(t, err)
}

func TestTx_RollsBackOnError(t *testing.T) {
	m := newTestManager(t)
	ctx := context.Background()
	u := &countingUpgrade{}

	db, err := m.Get(ctx, "hierarchy", 1, u.fn)
	require.NoError(t, err)

	err = db.Tx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `INSERT INTO things (id) VALUES ('a')`); err != nil {
			return err
		}
		return errors.New("abort")
	})
	require.EqualError(t, err, "abort")

	var n int
	require.NoError(t, db.SQL().QueryRow(`SELECT COUNT(*) FROM things`).Scan(&n))
	assert.Equal(t, 0, n)
}

func TestRead_DoesNotWaitForWriter(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()
	u := &countingUpgrade{}

	holder := NewManager(dir)
	defer holder.CloseAll()
	held, err := holder.Get(ctx, "hierarchy", 1, u.fn)
	require.NoError(t, err)

	m := NewManager(dir, WithBusyTimeout(50*time.Millisecond))
	defer m.CloseAll()
	db, err := m.Get(ctx, "hierarchy", 1, u.fn)
	require.NoError(t, err)
	require.NoError(t, db.Tx(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `INSERT INTO things (id) VALUES ('a')`)
		return err
	}))

	// Hold the write lock with an uncommitted row.
	tx, err := held.SQL().BeginTx(ctx, nil)
	require.NoError(t, err)
	defer tx.Rollback()
	_, err = tx.ExecContext(ctx, `INSERT INTO things (id) VALUES ('b')`)
	require.NoError(t, err)

	var n int
	err = db.Read(ctx, func(q Querier) error {
		return q.QueryRowContext(ctx, `SELECT COUNT(*) FROM things`).Scan(&n)
	})
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	err = db.Tx(ctx, func(tx *sql.Tx) error { return nil })
	assert.ErrorIs(t, err, ErrBlocked)
}

func TestRead_DiscardsWritesAndReturnsError(t *testing.T) {
	m := newTestManager(t)
	ctx := context.Background()
	u := &countingUpgrade{}

	db, err := m.Get(ctx, "hierarchy", 1, u.fn)
	require.NoError(t, err)

	err = db.Read(ctx, func(q Querier) error {
		return errors.New("stop")
	})
	require.EqualError(t, err, "stop")

	err = db.Read(ctx, func(q Querier) error {
		c := q.(*sql.Conn)
		_, err := c.ExecContext(ctx, `INSERT INTO things (id) VALUES ('a')`)
		return err
	})
	require.NoError(t, err)

	var n int
	require.NoError(t, db.SQL().QueryRow(`SELECT COUNT(*) FROM things`).Scan(&n))
	assert.Equal(t, 0, n)

	require.NoError(t, db.Close())
	err = db.Read(ctx, func(q Querier) error { return nil })
	assert.ErrorIs(t, err, ErrClosed)
}
