package hierarchy

import (
	"context"
	"database/sql"
	"errors"

	"github.com/roach88/pantry/internal/conn"
	"github.com/roach88/pantry/internal/location"
)

// ListStorageSpaces returns the space summaries of a room in insertion order.
func (s *Store) ListStorageSpaces(ctx context.Context, room string) ([]SpaceRef, error) {
	const op = "list storage spaces"
	room, err := location.Name(room)
	if err != nil {
		return nil, opError(op, roomTarget(room), err)
	}

	var r *Room
	err = s.read(ctx, func(q conn.Querier) error {
		r, err = getRoom(ctx, q, room)
		return err
	})
	if err != nil {
		return nil, opError(op, roomTarget(room), err)
	}
	return r.StorageSpaces, nil
}

// GetStorageSpace returns the authoritative row of a space.
func (s *Store) GetStorageSpace(ctx context.Context, room, space string) (*StorageSpace, error) {
	const op = "get storage space"
	key, err := location.NewSpaceKey(room, space)
	if err != nil {
		return nil, opError(op, "", err)
	}

	var sp *StorageSpace
	err = s.read(ctx, func(q conn.Querier) error {
		sp, err = getSpace(ctx, q, key)
		return err
	})
	if err != nil {
		return nil, opError(op, spaceTarget(key), err)
	}
	return sp, nil
}

// AddStorageSpace adds a space to a room, writing its row and its summary in
// one transaction.
//
// A space of the same name is replaced in place, unless the store rejects
// duplicates, in which case ErrConflict is returned.
func (s *Store) AddStorageSpace(ctx context.Context, room string, ns NewSpace) (*StorageSpace, error) {
	const op = "add storage space"
	key, err := location.NewSpaceKey(room, ns.Name)
	if err != nil {
		return nil, opError(op, "", err)
	}
	if err := validateFloors(ns.Floors); err != nil {
		return nil, opError(op, spaceTarget(key), err)
	}

	floors := ns.Floors.clone()
	if ns.Floors == nil && ns.HasFloors {
		floors[1] = []string{}
	}
	sp := &StorageSpace{
		Name:            key.Space(),
		HasFloors:       ns.HasFloors,
		HasCompartments: ns.HasCompartments,
		Floors:          floors,
		floorSeq:        floors.maxIndex(),
	}

	err = s.tx(ctx, func(tx *sql.Tx) error {
		r, err := getRoom(ctx, tx, key.Room())
		if err != nil {
			return &Error{Op: op, Target: roomTarget(key.Room()), Err: err}
		}

		if i := r.indexOf(key.Space()); i >= 0 {
			if s.rejectDuplicates {
				return ErrConflict
			}
			r.StorageSpaces[i] = sp.ref()
		} else {
			r.StorageSpaces = append(r.StorageSpaces, sp.ref())
		}

		if err := putSpace(ctx, tx, key, sp); err != nil {
			return err
		}
		return putRoom(ctx, tx, r)
	})
	if err != nil {
		return nil, opError(op, spaceTarget(key), err)
	}

	s.logger.Debug("storage space added", "space", key.String(), "floors", len(sp.Floors))
	return sp, nil
}

// DeleteStorageSpace removes a space's summary and row in one transaction.
func (s *Store) DeleteStorageSpace(ctx context.Context, room, space string) error {
	const op = "delete storage space"
	key, err := location.NewSpaceKey(room, space)
	if err != nil {
		return opError(op, "", err)
	}

	err = s.tx(ctx, func(tx *sql.Tx) error {
		r, i, err := getRoomWithSpace(ctx, tx, key)
		if err != nil {
			return err
		}
		r.StorageSpaces = append(r.StorageSpaces[:i], r.StorageSpaces[i+1:]...)
		if err := putRoom(ctx, tx, r); err != nil {
			return err
		}
		return deleteSpaceRow(ctx, tx, key)
	})
	if err != nil {
		return opError(op, spaceTarget(key), err)
	}

	s.logger.Debug("storage space deleted", "space", key.String())
	return nil
}

// RenameStorageSpace renames a space's summary and re-keys its row in one
// transaction. Renaming onto an existing space returns ErrConflict.
func (s *Store) RenameStorageSpace(ctx context.Context, room, oldName, newName string) error {
	const op = "rename storage space"
	from, err := location.NewSpaceKey(room, oldName)
	if err != nil {
		return opError(op, "", err)
	}
	to, err := location.NewSpaceKey(room, newName)
	if err != nil {
		return opError(op, "", err)
	}

	err = s.tx(ctx, func(tx *sql.Tx) error {
		r, i, err := getRoomWithSpace(ctx, tx, from)
		if err != nil {
			return err
		}
		if from == to {
			return nil
		}
		if r.indexOf(to.Space()) >= 0 {
			return &Error{Op: op, Target: spaceTarget(to), Err: ErrConflict}
		}

		sp, err := s.spaceOrRebuild(ctx, tx, from, r.StorageSpaces[i])
		if err != nil {
			return err
		}
		sp.Name = to.Space()
		if err := putSpace(ctx, tx, to, sp); err != nil {
			return err
		}
		if err := deleteSpaceRow(ctx, tx, from); err != nil {
			return err
		}

		r.StorageSpaces[i].Name = to.Space()
		return putRoom(ctx, tx, r)
	})
	if err != nil {
		return opError(op, spaceTarget(from), err)
	}

	s.logger.Debug("storage space renamed", "from", from.String(), "to", to.String())
	return nil
}

// UpdateStorageSpace merges patch into a space's row and refreshes its
// summary in the same transaction.
func (s *Store) UpdateStorageSpace(ctx context.Context, room, space string, patch Patch) (*StorageSpace, error) {
	const op = "update storage space"
	key, err := location.NewSpaceKey(room, space)
	if err != nil {
		return nil, opError(op, "", err)
	}
	if err := validateFloors(patch.Floors); err != nil {
		return nil, opError(op, spaceTarget(key), err)
	}

	var sp *StorageSpace
	err = s.tx(ctx, func(tx *sql.Tx) error {
		r, i, err := getRoomWithSpace(ctx, tx, key)
		if err != nil {
			return err
		}
		sp, err = s.spaceOrRebuild(ctx, tx, key, r.StorageSpaces[i])
		if err != nil {
			return err
		}

		if patch.HasFloors != nil {
			sp.HasFloors = *patch.HasFloors
		}
		if patch.HasCompartments != nil {
			sp.HasCompartments = *patch.HasCompartments
		}
		if patch.Floors != nil {
			sp.Floors = patch.Floors.clone()
			sp.floorSeq = max(sp.floorSeq, sp.Floors.maxIndex())
		}

		if err := putSpace(ctx, tx, key, sp); err != nil {
			return err
		}
		r.StorageSpaces[i] = sp.ref()
		return putRoom(ctx, tx, r)
	})
	if err != nil {
		return nil, opError(op, spaceTarget(key), err)
	}
	return sp, nil
}

// getRoomWithSpace reads the room of key and the index of its summary.
// A missing room or summary returns ErrNotFound.
func getRoomWithSpace(ctx context.Context, tx *sql.Tx, key location.SpaceKey) (*Room, int, error) {
	r, err := getRoom(ctx, tx, key.Room())
	if err != nil {
		return nil, -1, err
	}
	i := r.indexOf(key.Space())
	if i < 0 {
		return nil, -1, ErrNotFound
	}
	return r, i, nil
}

// spaceOrRebuild reads the row of key. A summary without a row is repaired
// from the summary with an empty layout.
func (s *Store) spaceOrRebuild(ctx context.Context, tx *sql.Tx, key location.SpaceKey, ref SpaceRef) (*StorageSpace, error) {
	sp, err := getSpace(ctx, tx, key)
	if !errors.Is(err, ErrNotFound) {
		return sp, err
	}

	s.logger.Warn("rebuilding missing space row", "space", key.String())
	floors := Floors{}
	if ref.HasFloors {
		floors[1] = []string{}
	}
	return &StorageSpace{
		ID:              key.String(),
		Name:            ref.Name,
		HasFloors:       ref.HasFloors,
		HasCompartments: ref.HasCompartments,
		Floors:          floors,
		floorSeq:        floors.maxIndex(),
	}, nil
}

func validateFloors(f Floors) error {
	for idx := range f {
		if idx < 0 {
			return ErrInvalidFloor
		}
	}
	return nil
}
