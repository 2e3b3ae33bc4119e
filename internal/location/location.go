// Package location names places in the storage hierarchy.
//
// Room and storage-space names are part of the storageSpaces key surface, so
// they are validated and NFC-normalized before any key is derived from them.
// A name that is composed differently ("Congélateur" as e + U+0301) maps to
// the same key as its precomposed form.
package location

import (
	"errors"
	"fmt"
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"
)

// Separator joins the room and space components of a SpaceKey.
const Separator = "_"

// ErrInvalidName is returned for names that cannot be part of a key.
var ErrInvalidName = errors.New("invalid name")

// Name validates and normalizes a room or storage-space name.
//
// Names are NFC-normalized and trimmed. Empty names, names containing the
// key separator and names containing control characters are rejected.
func Name(raw string) (string, error) {
	name := strings.TrimSpace(norm.NFC.String(raw))
	if name == "" {
		return "", fmt.Errorf("%w: empty", ErrInvalidName)
	}
	if strings.Contains(name, Separator) {
		return "", fmt.Errorf("%w: %q contains %q", ErrInvalidName, name, Separator)
	}
	for _, r := range name {
		if unicode.IsControl(r) {
			return "", fmt.Errorf("%w: %q contains a control character", ErrInvalidName, name)
		}
	}
	return name, nil
}

// CompartmentName validates and normalizes a compartment name.
// Compartments are not part of any key, so the separator is allowed.
func CompartmentName(raw string) (string, error) {
	name := strings.TrimSpace(norm.NFC.String(raw))
	if name == "" {
		return "", fmt.Errorf("%w: empty", ErrInvalidName)
	}
	return name, nil
}

// SpaceKey identifies a storage space by its room and its own name.
// The zero value is not a valid key; construct with NewSpaceKey.
type SpaceKey struct {
	room  string
	space string
}

// NewSpaceKey validates both names and returns their composite key.
func NewSpaceKey(room, space string) (SpaceKey, error) {
	r, err := Name(room)
	if err != nil {
		return SpaceKey{}, fmt.Errorf("room: %w", err)
	}
	s, err := Name(space)
	if err != nil {
		return SpaceKey{}, fmt.Errorf("space: %w", err)
	}
	return SpaceKey{room: r, space: s}, nil
}

// MustSpaceKey is NewSpaceKey for names already known to be valid.
// Panics on invalid input.
func MustSpaceKey(room, space string) SpaceKey {
	k, err := NewSpaceKey(room, space)
	if err != nil {
		panic(err)
	}
	return k
}

// Room returns the room component.
func (k SpaceKey) Room() string { return k.room }

// Space returns the storage-space component.
func (k SpaceKey) Space() string { return k.space }

// String renders the key as stored: "<room>_<space>".
func (k SpaceKey) String() string { return k.room + Separator + k.space }

// WithRoom returns the key re-rooted under room. room must already be a
// normalized name.
func (k SpaceKey) WithRoom(room string) SpaceKey { return SpaceKey{room: room, space: k.space} }

// WithSpace returns the key for a renamed space. space must already be a
// normalized name.
func (k SpaceKey) WithSpace(space string) SpaceKey { return SpaceKey{room: k.room, space: space} }

// ParseSpaceKey splits a stored key back into its components.
func ParseSpaceKey(s string) (SpaceKey, error) {
	room, space, ok := strings.Cut(s, Separator)
	if !ok {
		return SpaceKey{}, fmt.Errorf("%w: key %q has no separator", ErrInvalidName, s)
	}
	return NewSpaceKey(room, space)
}

// Label renders the free-text location stored on catalog items.
// The label is a snapshot: renaming the room or space later does not update it.
func Label(room, space string) string {
	room = strings.TrimSpace(norm.NFC.String(room))
	space = strings.TrimSpace(norm.NFC.String(space))
	switch {
	case room == "":
		return space
	case space == "":
		return room
	default:
		return room + " - " + space
	}
}
