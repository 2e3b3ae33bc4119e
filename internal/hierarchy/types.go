package hierarchy

import (
	"sort"
)

// VirtualFloor is the floor index holding compartments of a space that has
// compartments but no real floors.
const VirtualFloor = 0

// SpaceRef is the summary of a storage space cached on its room.
type SpaceRef struct {
	Name            string `json:"name"`
	HasFloors       bool   `json:"hasFloors"`
	HasCompartments bool   `json:"hasCompartments"`
}

// Room is a row of the rooms table.
type Room struct {
	Name          string     `json:"name"`
	StorageSpaces []SpaceRef `json:"storageSpaces"`
}

// indexOf returns the position of the summary named name, or -1.
func (r *Room) indexOf(name string) int {
	for i, ref := range r.StorageSpaces {
		if ref.Name == name {
			return i
		}
	}
	return -1
}

// Floors maps a floor index to its ordered compartment names.
type Floors map[int][]string

// Indices returns the floor indices in ascending order.
func (f Floors) Indices() []int {
	idx := make([]int, 0, len(f))
	for k := range f {
		idx = append(idx, k)
	}
	sort.Ints(idx)
	return idx
}

// maxIndex returns the highest index, or 0 when there are none.
func (f Floors) maxIndex() int {
	m := 0
	for k := range f {
		if k > m {
			m = k
		}
	}
	return m
}

// clone deep-copies f. Nil compartment lists become empty lists so they
// encode as [] rather than null.
func (f Floors) clone() Floors {
	out := make(Floors, len(f))
	for k, v := range f {
		c := make([]string, len(v))
		copy(c, v)
		out[k] = c
	}
	return out
}

// StorageSpace is a row of the storage_spaces table: the authoritative
// record of a space's floors and compartments.
type StorageSpace struct {
	ID              string `json:"id"`
	Name            string `json:"name"`
	HasFloors       bool   `json:"hasFloors"`
	HasCompartments bool   `json:"hasCompartments"`
	Floors          Floors `json:"floors"`

	// floorSeq is the highest floor index ever allocated.
	floorSeq int
}

func (s *StorageSpace) ref() SpaceRef {
	return SpaceRef{Name: s.Name, HasFloors: s.HasFloors, HasCompartments: s.HasCompartments}
}

// NewSpace describes a storage space to add.
type NewSpace struct {
	Name            string
	HasFloors       bool
	HasCompartments bool

	// Floors is the initial layout. When nil, a space with floors starts with
	// floor 1 empty and a space without floors starts with none.
	Floors Floors
}

// Patch lists the fields UpdateStorageSpace changes. Nil fields are kept.
type Patch struct {
	HasFloors       *bool
	HasCompartments *bool
	Floors          Floors
}

// RoomView is a room with its storage spaces fully loaded.
type RoomView struct {
	Name   string         `json:"name"`
	Spaces []StorageSpace `json:"spaces"`
}
