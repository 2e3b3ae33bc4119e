package settings

import (
	"context"
	"database/sql"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/pantry/internal/conn"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	m := conn.NewManager(t.TempDir())
	t.Cleanup(func() { m.CloseAll() })
	return New(m, nil)
}

func TestGet_DefaultsOnCreate(t *testing.T) {
	s := newTestStore(t)

	got, err := s.Get(context.Background())
	require.NoError(t, err)
	assert.Equal(t, Defaults(), got)
	assert.Equal(t, 2, got.FreshProducts.WarningDays)
	assert.Equal(t, 7, got.OtherProducts.WarningDays)
}

func TestUpdate_ReplacesBlob(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	want := Expiry{
		FreshProducts: Warning{WarningDays: 1, Enabled: false},
		OtherProducts: Warning{WarningDays: 14, Enabled: true},
	}
	require.NoError(t, s.Update(ctx, want))

	got, err := s.Get(ctx)
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestUpdate_RejectsNegativeDays(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	bad := Defaults()
	bad.OtherProducts.WarningDays = -3
	err := s.Update(ctx, bad)
	assert.ErrorIs(t, err, ErrInvalid)

	got, err := s.Get(ctx)
	require.NoError(t, err)
	assert.Equal(t, Defaults(), got)
}

// createV1 writes a version 1 settings database holding a legacy value.
func createV1(t *testing.T, dir, legacy string) {
	t.Helper()
	m := conn.NewManager(dir)
	v1 := func(ctx context.Context, tx *sql.Tx, oldVersion, newVersion int) error {
		if _, err := tx.ExecContext(ctx, `CREATE TABLE settings (key TEXT PRIMARY KEY, value TEXT NOT NULL)`); err != nil {
			return err
		}
		if legacy == "" {
			return nil
		}
		_, err := tx.ExecContext(ctx, `INSERT INTO settings (key, value) VALUES ('expiryWarningDays', ?)`, legacy)
		return err
	}
	_, err := m.Get(context.Background(), DatabaseName, 1, v1)
	require.NoError(t, err)
	require.NoError(t, m.CloseAll())
}

func TestUpgrade_MigratesLegacyWarningDays(t *testing.T) {
	dir := t.TempDir()
	createV1(t, dir, "5")

	m := conn.NewManager(dir)
	defer m.CloseAll()

	got, err := New(m, nil).Get(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 5, got.OtherProducts.WarningDays)
	assert.Equal(t, Defaults().FreshProducts, got.FreshProducts)
}

func TestUpgrade_WithoutLegacyValueUsesDefaults(t *testing.T) {
	dir := t.TempDir()
	createV1(t, dir, "")

	m := conn.NewManager(dir)
	defer m.CloseAll()

	got, err := New(m, nil).Get(context.Background())
	require.NoError(t, err)
	assert.Equal(t, Defaults(), got)
}

func TestUpgrade_CorruptLegacyValueFails(t *testing.T) {
	dir := t.TempDir()
	createV1(t, dir, "soon")

	m := conn.NewManager(dir)
	defer m.CloseAll()

	_, err := New(m, nil).Get(context.Background())
	assert.Error(t, err)
	assert.Empty(t, m.Names())
}
