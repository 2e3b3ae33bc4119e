package hierarchy

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/roach88/pantry/internal/conn"
	"github.com/roach88/pantry/internal/location"
)

// ListRooms returns every room name in ascending order.
func (s *Store) ListRooms(ctx context.Context) ([]string, error) {
	var names []string
	err := s.read(ctx, func(q conn.Querier) error {
		rows, err := q.QueryContext(ctx, `SELECT name FROM rooms ORDER BY name`)
		if err != nil {
			return fmt.Errorf("query rooms: %w", err)
		}
		defer rows.Close()

		for rows.Next() {
			var name string
			if err := rows.Scan(&name); err != nil {
				return fmt.Errorf("scan room: %w", err)
			}
			names = append(names, name)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, opError("list rooms", "", err)
	}
	if names == nil {
		names = []string{}
	}
	return names, nil
}

// GetRoom returns a room with its space summaries.
func (s *Store) GetRoom(ctx context.Context, name string) (*Room, error) {
	const op = "get room"
	name, err := location.Name(name)
	if err != nil {
		return nil, opError(op, roomTarget(name), err)
	}

	var r *Room
	err = s.read(ctx, func(q conn.Querier) error {
		r, err = getRoom(ctx, q, name)
		return err
	})
	if err != nil {
		return nil, opError(op, roomTarget(name), err)
	}
	return r, nil
}

// AddRoom creates a room with no storage spaces.
//
// An existing room of the same name is replaced by an empty one and its
// storage rows are deleted in the same transaction, unless the store rejects
// duplicates, in which case ErrConflict is returned.
func (s *Store) AddRoom(ctx context.Context, name string) error {
	const op = "add room"
	name, err := location.Name(name)
	if err != nil {
		return opError(op, roomTarget(name), err)
	}

	var replaced int
	err = s.tx(ctx, func(tx *sql.Tx) error {
		existing, err := getRoom(ctx, tx, name)
		switch {
		case errors.Is(err, ErrNotFound):
		case err != nil:
			return err
		case s.rejectDuplicates:
			return ErrConflict
		default:
			if err := deleteSpaces(ctx, tx, existing); err != nil {
				return err
			}
			replaced = len(existing.StorageSpaces)
		}
		return putRoom(ctx, tx, &Room{Name: name})
	})
	if err != nil {
		return opError(op, roomTarget(name), err)
	}

	s.logger.Debug("room added", "room", name, "replaced_spaces", replaced)
	return nil
}

// DeleteRoom deletes a room and every storage row it references.
func (s *Store) DeleteRoom(ctx context.Context, name string) error {
	const op = "delete room"
	name, err := location.Name(name)
	if err != nil {
		return opError(op, roomTarget(name), err)
	}

	err = s.tx(ctx, func(tx *sql.Tx) error {
		r, err := getRoom(ctx, tx, name)
		if err != nil {
			return err
		}
		if err := deleteSpaces(ctx, tx, r); err != nil {
			return err
		}
		return deleteRoomRow(ctx, tx, name)
	})
	if err != nil {
		return opError(op, roomTarget(name), err)
	}

	s.logger.Debug("room deleted", "room", name)
	return nil
}

// RenameRoom moves a room and re-keys the storage row of each of its spaces.
// Renaming onto an existing room returns ErrConflict.
func (s *Store) RenameRoom(ctx context.Context, oldName, newName string) error {
	const op = "rename room"
	oldName, err := location.Name(oldName)
	if err != nil {
		return opError(op, roomTarget(oldName), err)
	}
	newName, err = location.Name(newName)
	if err != nil {
		return opError(op, roomTarget(newName), err)
	}

	err = s.tx(ctx, func(tx *sql.Tx) error {
		r, err := getRoom(ctx, tx, oldName)
		if err != nil {
			return err
		}
		if oldName == newName {
			return nil
		}

		taken, err := roomExists(ctx, tx, newName)
		if err != nil {
			return err
		}
		if taken {
			return &Error{Op: op, Target: roomTarget(newName), Err: ErrConflict}
		}

		if err := putRoom(ctx, tx, &Room{Name: newName, StorageSpaces: r.StorageSpaces}); err != nil {
			return err
		}
		if err := deleteRoomRow(ctx, tx, oldName); err != nil {
			return err
		}

		for _, ref := range r.StorageSpaces {
			from, err := location.NewSpaceKey(oldName, ref.Name)
			if err != nil {
				return err
			}
			to := from.WithRoom(newName)

			sp, err := getSpace(ctx, tx, from)
			if errors.Is(err, ErrNotFound) {
				s.logger.Warn("room references a missing space row", "room", oldName, "space", ref.Name)
				continue
			}
			if err != nil {
				return err
			}
			if err := putSpace(ctx, tx, to, sp); err != nil {
				return err
			}
			if err := deleteSpaceRow(ctx, tx, from); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return opError(op, roomTarget(oldName), err)
	}

	s.logger.Debug("room renamed", "from", oldName, "to", newName)
	return nil
}

// deleteSpaces deletes the storage row of every space r references.
func deleteSpaces(ctx context.Context, tx *sql.Tx, r *Room) error {
	for _, ref := range r.StorageSpaces {
		key, err := location.NewSpaceKey(r.Name, ref.Name)
		if err != nil {
			return err
		}
		if err := deleteSpaceRow(ctx, tx, key); err != nil {
			return err
		}
	}
	return nil
}
