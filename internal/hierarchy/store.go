package hierarchy

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strconv"

	"github.com/roach88/pantry/internal/conn"
	"github.com/roach88/pantry/internal/location"
)

// Store is the storage-location hierarchy on top of a connection manager.
//
// Thread-safety: Store is safe for concurrent use. Every operation runs in
// its own transaction; operations issued separately are not ordered.
type Store struct {
	m                *conn.Manager
	schema           conn.Schema
	rejectDuplicates bool
	logger           *slog.Logger
}

// Option configures a Store.
type Option func(*Store)

// WithSeedRooms sets the rooms inserted when the database is created.
func WithSeedRooms(rooms []string) Option {
	return func(s *Store) {
		s.schema = Schema(rooms)
	}
}

// WithRejectDuplicates makes AddRoom, AddStorageSpace and AddCompartment
// return ErrConflict for existing names instead of overwriting or appending.
func WithRejectDuplicates(reject bool) Option {
	return func(s *Store) {
		s.rejectDuplicates = reject
	}
}

// WithLogger sets the logger. Nil keeps slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(s *Store) {
		if l != nil {
			s.logger = l
		}
	}
}

// New returns a hierarchy store backed by m.
func New(m *conn.Manager, opts ...Option) *Store {
	s := &Store{
		m:      m,
		schema: Schema(DefaultRooms),
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.With("component", "hierarchy")
	return s
}

// tx runs fn in one transaction against the hierarchy database.
func (s *Store) tx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	db, err := s.m.Get(ctx, s.schema.Name, s.schema.Version, s.schema.Upgrade)
	if err != nil {
		return err
	}
	return db.Tx(ctx, fn)
}

// read runs fn against one consistent snapshot without taking the write lock.
func (s *Store) read(ctx context.Context, fn func(q conn.Querier) error) error {
	db, err := s.m.Get(ctx, s.schema.Name, s.schema.Version, s.schema.Upgrade)
	if err != nil {
		return err
	}
	return db.Read(ctx, fn)
}

// opError wraps err with op and target unless it already carries them.
func opError(op, target string, err error) error {
	var he *Error
	if errors.As(err, &he) {
		return err
	}
	return &Error{Op: op, Target: target, Err: err}
}

// getRoom reads a room row. A missing row returns ErrNotFound.
func getRoom(ctx context.Context, q conn.Querier, name string) (*Room, error) {
	var raw string
	err := q.QueryRowContext(ctx,
		`SELECT storage_spaces FROM rooms WHERE name = ?`, name,
	).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("read room: %w", err)
	}

	r := &Room{Name: name}
	if err := json.Unmarshal([]byte(raw), &r.StorageSpaces); err != nil {
		return nil, fmt.Errorf("decode room %q: %w", name, err)
	}
	if r.StorageSpaces == nil {
		r.StorageSpaces = []SpaceRef{}
	}
	return r, nil
}

func roomExists(ctx context.Context, tx *sql.Tx, name string) (bool, error) {
	var n int
	if err := tx.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM rooms WHERE name = ?`, name,
	).Scan(&n); err != nil {
		return false, fmt.Errorf("read room: %w", err)
	}
	return n > 0, nil
}

// putRoom inserts or replaces a room row.
func putRoom(ctx context.Context, tx *sql.Tx, r *Room) error {
	refs := r.StorageSpaces
	if refs == nil {
		refs = []SpaceRef{}
	}
	raw, err := json.Marshal(refs)
	if err != nil {
		return fmt.Errorf("encode room %q: %w", r.Name, err)
	}
	if _, err := tx.ExecContext(ctx, `
		INSERT INTO rooms (name, storage_spaces) VALUES (?, ?)
		ON CONFLICT(name) DO UPDATE SET storage_spaces = excluded.storage_spaces
	`, r.Name, string(raw)); err != nil {
		return fmt.Errorf("write room %q: %w", r.Name, err)
	}
	return nil
}

func deleteRoomRow(ctx context.Context, tx *sql.Tx, name string) error {
	if _, err := tx.ExecContext(ctx, `DELETE FROM rooms WHERE name = ?`, name); err != nil {
		return fmt.Errorf("delete room %q: %w", name, err)
	}
	return nil
}

// getSpace reads a storage row. A missing row returns ErrNotFound.
func getSpace(ctx context.Context, q conn.Querier, key location.SpaceKey) (*StorageSpace, error) {
	var (
		sp     StorageSpace
		floors string
	)
	err := q.QueryRowContext(ctx, `
		SELECT id, name, has_floors, has_compartments, floors, floor_seq
		FROM storage_spaces WHERE id = ?
	`, key.String()).Scan(&sp.ID, &sp.Name, &sp.HasFloors, &sp.HasCompartments, &floors, &sp.floorSeq)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("read space: %w", err)
	}

	sp.Floors, err = decodeFloors(floors)
	if err != nil {
		return nil, fmt.Errorf("decode space %q: %w", key, err)
	}
	return &sp, nil
}

// putSpace writes sp under key, replacing any existing row.
func putSpace(ctx context.Context, tx *sql.Tx, key location.SpaceKey, sp *StorageSpace) error {
	sp.ID = key.String()
	floors, err := encodeFloors(sp.Floors)
	if err != nil {
		return fmt.Errorf("encode space %q: %w", key, err)
	}
	if _, err := tx.ExecContext(ctx, `
		INSERT INTO storage_spaces (id, name, has_floors, has_compartments, floors, floor_seq)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			has_floors = excluded.has_floors,
			has_compartments = excluded.has_compartments,
			floors = excluded.floors,
			floor_seq = excluded.floor_seq
	`, sp.ID, sp.Name, sp.HasFloors, sp.HasCompartments, floors, sp.floorSeq); err != nil {
		return fmt.Errorf("write space %q: %w", key, err)
	}
	return nil
}

func deleteSpaceRow(ctx context.Context, tx *sql.Tx, key location.SpaceKey) error {
	if _, err := tx.ExecContext(ctx, `DELETE FROM storage_spaces WHERE id = ?`, key.String()); err != nil {
		return fmt.Errorf("delete space %q: %w", key, err)
	}
	return nil
}

// encodeFloors renders floors as a JSON object keyed by decimal index.
func encodeFloors(f Floors) (string, error) {
	out := make(map[string][]string, len(f))
	for k, v := range f {
		if v == nil {
			v = []string{}
		}
		out[strconv.Itoa(k)] = v
	}
	raw, err := json.Marshal(out)
	if err != nil {
		return "", err
	}
	return string(raw), nil
}

func decodeFloors(raw string) (Floors, error) {
	var in map[string][]string
	if err := json.Unmarshal([]byte(raw), &in); err != nil {
		return nil, err
	}
	out := make(Floors, len(in))
	for k, v := range in {
		idx, err := strconv.Atoi(k)
		if err != nil || idx < 0 {
			return nil, fmt.Errorf("invalid floor index %q", k)
		}
		if v == nil {
			v = []string{}
		}
		out[idx] = v
	}
	return out, nil
}
