package hierarchy

import (
	"context"
	"database/sql"
	"slices"

	"github.com/roach88/pantry/internal/location"
)

// mutateSpace runs a read-modify-write of one storage row. Only the row is
// touched; the room summary is left as is.
func (s *Store) mutateSpace(ctx context.Context, op, room, space string, fn func(key location.SpaceKey, sp *StorageSpace) error) error {
	key, err := location.NewSpaceKey(room, space)
	if err != nil {
		return opError(op, "", err)
	}

	err = s.tx(ctx, func(tx *sql.Tx) error {
		sp, err := getSpace(ctx, tx, key)
		if err != nil {
			return err
		}
		if err := fn(key, sp); err != nil {
			return err
		}
		return putSpace(ctx, tx, key, sp)
	})
	if err != nil {
		return opError(op, spaceTarget(key), err)
	}
	return nil
}

// AddFloor appends an empty floor and returns its index.
//
// The index is one past the highest index the space has ever had, so a
// deleted floor's index is never handed out again.
func (s *Store) AddFloor(ctx context.Context, room, space string) (int, error) {
	var next int
	err := s.mutateSpace(ctx, "add floor", room, space, func(_ location.SpaceKey, sp *StorageSpace) error {
		next = max(sp.Floors.maxIndex(), sp.floorSeq) + 1
		sp.Floors[next] = []string{}
		sp.floorSeq = next
		return nil
	})
	if err != nil {
		return 0, err
	}

	s.logger.Debug("floor added", "room", room, "space", space, "floor", next)
	return next, nil
}

// DeleteFloor removes a floor and its compartments. The virtual floor of a
// space without real floors cannot be deleted.
func (s *Store) DeleteFloor(ctx context.Context, room, space string, floor int) error {
	const op = "delete floor"
	return s.mutateSpace(ctx, op, room, space, func(key location.SpaceKey, sp *StorageSpace) error {
		if floor == VirtualFloor && !sp.HasFloors {
			return &Error{Op: op, Target: floorTarget(key, floor), Err: ErrVirtualFloor}
		}
		if _, ok := sp.Floors[floor]; !ok {
			return &Error{Op: op, Target: floorTarget(key, floor), Err: ErrNotFound}
		}
		delete(sp.Floors, floor)
		return nil
	})
}

// AddCompartment appends a compartment to a floor. The virtual floor is
// created on first use, and only for a space without real floors. Duplicate
// names are appended unless the store rejects duplicates.
func (s *Store) AddCompartment(ctx context.Context, room, space string, floor int, name string) error {
	const op = "add compartment"
	name, err := location.CompartmentName(name)
	if err != nil {
		return opError(op, "", err)
	}

	return s.mutateSpace(ctx, op, room, space, func(key location.SpaceKey, sp *StorageSpace) error {
		list, ok := sp.Floors[floor]
		if !ok {
			if floor != VirtualFloor || sp.HasFloors {
				return &Error{Op: op, Target: floorTarget(key, floor), Err: ErrNotFound}
			}
			list = []string{}
		}
		if s.rejectDuplicates && slices.Contains(list, name) {
			return &Error{Op: op, Target: compartmentTarget(key, floor, name), Err: ErrConflict}
		}
		sp.Floors[floor] = append(list, name)
		return nil
	})
}

// DeleteCompartment removes every compartment of a floor named name.
func (s *Store) DeleteCompartment(ctx context.Context, room, space string, floor int, name string) error {
	const op = "delete compartment"
	name, err := location.CompartmentName(name)
	if err != nil {
		return opError(op, "", err)
	}

	return s.mutateSpace(ctx, op, room, space, func(key location.SpaceKey, sp *StorageSpace) error {
		list, ok := sp.Floors[floor]
		if !ok {
			return &Error{Op: op, Target: floorTarget(key, floor), Err: ErrNotFound}
		}
		kept := slices.DeleteFunc(slices.Clone(list), func(c string) bool { return c == name })
		if len(kept) == len(list) {
			return &Error{Op: op, Target: compartmentTarget(key, floor, name), Err: ErrNotFound}
		}
		sp.Floors[floor] = kept
		return nil
	})
}

// RenameCompartment renames every compartment of a floor named oldName.
func (s *Store) RenameCompartment(ctx context.Context, room, space string, floor int, oldName, newName string) error {
	const op = "rename compartment"
	oldName, err := location.CompartmentName(oldName)
	if err != nil {
		return opError(op, "", err)
	}
	newName, err = location.CompartmentName(newName)
	if err != nil {
		return opError(op, "", err)
	}

	return s.mutateSpace(ctx, op, room, space, func(key location.SpaceKey, sp *StorageSpace) error {
		list, ok := sp.Floors[floor]
		if !ok {
			return &Error{Op: op, Target: floorTarget(key, floor), Err: ErrNotFound}
		}
		if !slices.Contains(list, oldName) {
			return &Error{Op: op, Target: compartmentTarget(key, floor, oldName), Err: ErrNotFound}
		}
		if oldName != newName && s.rejectDuplicates && slices.Contains(list, newName) {
			return &Error{Op: op, Target: compartmentTarget(key, floor, newName), Err: ErrConflict}
		}
		for i, c := range list {
			if c == oldName {
				list[i] = newName
			}
		}
		return nil
	})
}
