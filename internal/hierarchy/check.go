package hierarchy

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/roach88/pantry/internal/conn"
	"github.com/roach88/pantry/internal/location"
)

// Report lists the places where rooms and storage rows disagree.
type Report struct {
	// Dangling are keys of summaries with no storage row.
	Dangling []string `json:"dangling"`

	// Orphans are storage row keys no summary refers to.
	Orphans []string `json:"orphans"`

	// Mismatched are keys whose summary flags differ from the row.
	Mismatched []string `json:"mismatched"`
}

// OK reports whether the hierarchy is consistent.
func (r Report) OK() bool {
	return len(r.Dangling) == 0 && len(r.Orphans) == 0 && len(r.Mismatched) == 0
}

// Check compares every room summary with the storage rows in both
// directions.
func (s *Store) Check(ctx context.Context) (Report, error) {
	report := Report{Dangling: []string{}, Orphans: []string{}, Mismatched: []string{}}

	err := s.read(ctx, func(q conn.Querier) error {
		rooms, err := allRooms(ctx, q)
		if err != nil {
			return err
		}
		rows, err := allSpaces(ctx, q)
		if err != nil {
			return err
		}

		referenced := make(map[string]bool)
		for _, r := range rooms {
			for _, ref := range r.StorageSpaces {
				key := r.Name + location.Separator + ref.Name
				referenced[key] = true

				sp, ok := rows[key]
				switch {
				case !ok:
					report.Dangling = append(report.Dangling, key)
				case sp.Name != ref.Name || sp.HasFloors != ref.HasFloors || sp.HasCompartments != ref.HasCompartments:
					report.Mismatched = append(report.Mismatched, key)
				}
			}
		}
		for key := range rows {
			if !referenced[key] {
				report.Orphans = append(report.Orphans, key)
			}
		}
		return nil
	})
	if err != nil {
		return Report{}, opError("check", "", err)
	}

	sort.Strings(report.Dangling)
	sort.Strings(report.Orphans)
	sort.Strings(report.Mismatched)

	if !report.OK() {
		s.logger.Warn("hierarchy inconsistent",
			"dangling", len(report.Dangling),
			"orphans", len(report.Orphans),
			"mismatched", len(report.Mismatched))
	}
	return report, nil
}

// Snapshot returns every room, in name order, with its spaces fully loaded
// in summary order. Summaries without a row are skipped.
func (s *Store) Snapshot(ctx context.Context) ([]RoomView, error) {
	var views []RoomView
	err := s.read(ctx, func(q conn.Querier) error {
		rooms, err := allRooms(ctx, q)
		if err != nil {
			return err
		}

		views = make([]RoomView, 0, len(rooms))
		for _, r := range rooms {
			v := RoomView{Name: r.Name, Spaces: []StorageSpace{}}
			for _, ref := range r.StorageSpaces {
				key, err := location.NewSpaceKey(r.Name, ref.Name)
				if err != nil {
					return err
				}
				sp, err := getSpace(ctx, q, key)
				if errors.Is(err, ErrNotFound) {
					continue
				}
				if err != nil {
					return err
				}
				v.Spaces = append(v.Spaces, *sp)
			}
			views = append(views, v)
		}
		return nil
	})
	if err != nil {
		return nil, opError("snapshot", "", err)
	}
	return views, nil
}

func allRooms(ctx context.Context, q conn.Querier) ([]*Room, error) {
	rows, err := q.QueryContext(ctx, `SELECT name FROM rooms ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("query rooms: %w", err)
	}
	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			rows.Close()
			return nil, fmt.Errorf("scan room: %w", err)
		}
		names = append(names, name)
	}
	if err := rows.Close(); err != nil {
		return nil, err
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	rooms := make([]*Room, 0, len(names))
	for _, name := range names {
		r, err := getRoom(ctx, q, name)
		if err != nil {
			return nil, err
		}
		rooms = append(rooms, r)
	}
	return rooms, nil
}

// allSpaces reads every storage row keyed by id.
func allSpaces(ctx context.Context, q conn.Querier) (map[string]*StorageSpace, error) {
	rows, err := q.QueryContext(ctx, `SELECT id, name, has_floors, has_compartments FROM storage_spaces`)
	if err != nil {
		return nil, fmt.Errorf("query spaces: %w", err)
	}
	defer rows.Close()

	out := make(map[string]*StorageSpace)
	for rows.Next() {
		var sp StorageSpace
		if err := rows.Scan(&sp.ID, &sp.Name, &sp.HasFloors, &sp.HasCompartments); err != nil {
			return nil, fmt.Errorf("scan space: %w", err)
		}
		out[sp.ID] = &sp
	}
	return out, rows.Err()
}
