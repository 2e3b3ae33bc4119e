package hierarchy

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/roach88/pantry/internal/conn"
	"github.com/roach88/pantry/internal/location"
)

// DatabaseName is the logical database holding the hierarchy.
const DatabaseName = "hierarchy"

// Schema version tracking:
// 1 - rooms and storage_spaces tables, default rooms seeded
// 2 - storage_spaces.floor_seq high-water mark for floor indices
const SchemaVersion = 2

// DefaultRooms are seeded when the hierarchy database is created.
var DefaultRooms = []string{"Cuisine", "Salle à manger", "Chambre", "Salle de bain", "Garage", "Salon", "Cave"}

// Schema returns the connection schema for the hierarchy database.
// seedRooms are inserted when the database is first created.
func Schema(seedRooms []string) conn.Schema {
	return conn.Schema{
		Name:    DatabaseName,
		Version: SchemaVersion,
		Upgrade: func(ctx context.Context, tx *sql.Tx, oldVersion, newVersion int) error {
			if oldVersion < 1 {
				if err := migrateToV1(ctx, tx, seedRooms); err != nil {
					return err
				}
			}
			if oldVersion < 2 {
				if err := migrateToV2(ctx, tx); err != nil {
					return err
				}
			}
			return nil
		},
	}
}

// migrateToV1 creates both tables and seeds the default rooms.
func migrateToV1(ctx context.Context, tx *sql.Tx, seedRooms []string) error {
	_, err := tx.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS rooms (
			name           TEXT PRIMARY KEY,
			storage_spaces TEXT NOT NULL DEFAULT '[]'
		);

		CREATE TABLE IF NOT EXISTS storage_spaces (
			id               TEXT PRIMARY KEY,
			name             TEXT NOT NULL,
			has_floors       INTEGER NOT NULL DEFAULT 0,
			has_compartments INTEGER NOT NULL DEFAULT 0,
			floors           TEXT NOT NULL DEFAULT '{}'
		);
	`)
	if err != nil {
		return fmt.Errorf("migrate to v1: %w", err)
	}

	for _, raw := range seedRooms {
		name, err := location.Name(raw)
		if err != nil {
			return fmt.Errorf("migrate to v1: seed room: %w", err)
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT OR IGNORE INTO rooms (name, storage_spaces) VALUES (?, '[]')`, name,
		); err != nil {
			return fmt.Errorf("migrate to v1: seed room %q: %w", name, err)
		}
	}
	return nil
}

// migrateToV2 adds the floor_seq column. SQLite has no ADD COLUMN IF NOT
// EXISTS, so the column is checked first.
func migrateToV2(ctx context.Context, tx *sql.Tx) error {
	var exists int
	err := tx.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM pragma_table_info('storage_spaces') WHERE name = 'floor_seq'`,
	).Scan(&exists)
	if err != nil {
		return fmt.Errorf("migrate to v2: %w", err)
	}
	if exists > 0 {
		return nil
	}
	if _, err := tx.ExecContext(ctx,
		`ALTER TABLE storage_spaces ADD COLUMN floor_seq INTEGER NOT NULL DEFAULT 0`,
	); err != nil {
		return fmt.Errorf("migrate to v2: %w", err)
	}
	return nil
}
