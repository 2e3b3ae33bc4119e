package hierarchy

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound is returned when the addressed room, space, floor or
	// compartment does not exist.
	ErrNotFound = errors.New("not found")

	// ErrConflict is returned when a rename targets an existing name, or an
	// add duplicates one while duplicates are rejected.
	ErrConflict = errors.New("already exists")

	// ErrVirtualFloor is returned when deleting floor 0 of a space without
	// real floors.
	ErrVirtualFloor = errors.New("virtual floor cannot be deleted")

	// ErrInvalidFloor is returned for a negative floor index.
	ErrInvalidFloor = errors.New("invalid floor index")
)

// Error describes a failed hierarchy operation.
//
// Err is one of the package sentinels (or location.ErrInvalidName), so
// callers test with errors.Is.
type Error struct {
	// Op is the operation, e.g. "rename room".
	Op string

	// Target describes what was addressed, e.g. `space "Cuisine_Frigo"`.
	Target string

	Err error
}

func (e *Error) Error() string {
	if e.Target == "" {
		return fmt.Sprintf("%s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("%s: %s: %v", e.Op, e.Target, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// IsNotFound reports whether err is a missing-target error.
func IsNotFound(err error) bool { return errors.Is(err, ErrNotFound) }

// IsConflict reports whether err is a name conflict.
func IsConflict(err error) bool { return errors.Is(err, ErrConflict) }

func roomTarget(name string) string { return fmt.Sprintf("room %q", name) }

func spaceTarget(key fmt.Stringer) string { return fmt.Sprintf("space %q", key.String()) }

func floorTarget(key fmt.Stringer, floor int) string {
	return fmt.Sprintf("floor %d of space %q", floor, key.String())
}

func compartmentTarget(key fmt.Stringer, floor int, name string) string {
	return fmt.Sprintf("compartment %q on floor %d of space %q", name, floor, key.String())
}
