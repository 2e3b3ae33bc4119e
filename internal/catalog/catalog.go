package catalog

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/roach88/pantry/internal/activity"
	"github.com/roach88/pantry/internal/conn"
)

// DatabaseName is the logical database holding the catalog.
const DatabaseName = "items"

// SchemaVersion is the current catalog schema version. Versions 1 to 3 share
// one table layout.
const SchemaVersion = 3

// Schema returns the connection schema for the catalog database.
func Schema() conn.Schema {
	return conn.Schema{
		Name:    DatabaseName,
		Version: SchemaVersion,
		Upgrade: func(ctx context.Context, tx *sql.Tx, oldVersion, newVersion int) error {
			_, err := tx.ExecContext(ctx, `
				CREATE TABLE IF NOT EXISTS foodItems (
					id               INTEGER PRIMARY KEY AUTOINCREMENT,
					ref              TEXT NOT NULL UNIQUE,
					name             TEXT NOT NULL,
					brand            TEXT NOT NULL DEFAULT '',
					category         TEXT NOT NULL DEFAULT '',
					barcode          TEXT NOT NULL DEFAULT '',
					quantity         INTEGER NOT NULL DEFAULT 0,
					expiration_date  TEXT NOT NULL DEFAULT '',
					storage_location TEXT NOT NULL DEFAULT '',
					image_url        TEXT NOT NULL DEFAULT '',
					nutritional_info TEXT,
					consumed         INTEGER NOT NULL DEFAULT 0,
					consumed_date    TEXT NOT NULL DEFAULT ''
				);

				CREATE INDEX IF NOT EXISTS idx_food_items_barcode ON foodItems(barcode);
			`)
			if err != nil {
				return fmt.Errorf("create foodItems: %w", err)
			}
			return nil
		},
	}
}

// Catalog stores food items.
//
// Thread-safety: Catalog is safe for concurrent use.
type Catalog struct {
	m        *conn.Manager
	activity *activity.Log
	refs     RefGenerator
	logger   *slog.Logger
}

// Option configures a Catalog.
type Option func(*Catalog)

// WithActivityLog records every mutation in log.
func WithActivityLog(log *activity.Log) Option {
	return func(c *Catalog) {
		c.activity = log
	}
}

// WithRefGenerator sets the generator for item references.
func WithRefGenerator(g RefGenerator) Option {
	return func(c *Catalog) {
		c.refs = g
	}
}

// WithLogger sets the logger. Nil keeps slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(c *Catalog) {
		if l != nil {
			c.logger = l
		}
	}
}

// New returns a catalog backed by m.
func New(m *conn.Manager, opts ...Option) *Catalog {
	c := &Catalog{
		m:      m,
		refs:   UUIDv7Generator{},
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.logger = c.logger.With("component", "catalog")
	return c
}

func (c *Catalog) db(ctx context.Context) (*conn.DB, error) {
	s := Schema()
	return c.m.Get(ctx, s.Name, s.Version, s.Upgrade)
}

const selectColumns = `
	SELECT id, ref, name, brand, category, barcode, quantity, expiration_date,
	       storage_location, image_url, nutritional_info, consumed, consumed_date
	FROM foodItems`

type scanner interface {
	Scan(dest ...any) error
}

func scanItem(row scanner) (Item, error) {
	var (
		it       Item
		category string
		info     sql.NullString
	)
	err := row.Scan(&it.ID, &it.Ref, &it.Name, &it.Brand, &category, &it.Barcode, &it.Quantity,
		&it.ExpirationDate, &it.StorageLocation, &it.ImageURL, &info, &it.Consumed, &it.ConsumedDate)
	if err != nil {
		return Item{}, err
	}
	it.Category = Category(category)
	if info.Valid {
		it.NutritionalInfo = &NutritionalInfo{}
		if err := json.Unmarshal([]byte(info.String), it.NutritionalInfo); err != nil {
			return Item{}, fmt.Errorf("decode nutritional info of item %d: %w", it.ID, err)
		}
	}
	return it, nil
}

func encodeInfo(info *NutritionalInfo) (sql.NullString, error) {
	if info == nil {
		return sql.NullString{}, nil
	}
	raw, err := json.Marshal(info)
	if err != nil {
		return sql.NullString{}, err
	}
	return sql.NullString{String: string(raw), Valid: true}, nil
}

// Add stores a new item and returns it with its ID and Ref assigned.
func (c *Catalog) Add(ctx context.Context, it Item) (Item, error) {
	if err := it.Validate(); err != nil {
		return Item{}, fmt.Errorf("add item: %w", err)
	}
	db, err := c.db(ctx)
	if err != nil {
		return Item{}, fmt.Errorf("add item: %w", err)
	}

	it.Ref = c.refs.Generate()
	info, err := encodeInfo(it.NutritionalInfo)
	if err != nil {
		return Item{}, fmt.Errorf("add item: %w", err)
	}

	err = db.Tx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `
			INSERT INTO foodItems
			(ref, name, brand, category, barcode, quantity, expiration_date,
			 storage_location, image_url, nutritional_info, consumed, consumed_date)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		`, it.Ref, it.Name, it.Brand, string(it.Category), it.Barcode, it.Quantity, it.ExpirationDate,
			it.StorageLocation, it.ImageURL, info, it.Consumed, it.ConsumedDate)
		if err != nil {
			return err
		}
		it.ID, err = res.LastInsertId()
		return err
	})
	if err != nil {
		return Item{}, fmt.Errorf("add item: %w", err)
	}

	c.record(ctx, activity.TypeAdd, "Nouveau produit ajouté: "+it.Name, it)
	return it, nil
}

// List returns every item in insertion order.
func (c *Catalog) List(ctx context.Context) ([]Item, error) {
	db, err := c.db(ctx)
	if err != nil {
		return nil, fmt.Errorf("list items: %w", err)
	}

	rows, err := db.SQL().QueryContext(ctx, selectColumns+` ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("list items: %w", err)
	}
	defer rows.Close()

	items := []Item{}
	for rows.Next() {
		it, err := scanItem(rows)
		if err != nil {
			return nil, fmt.Errorf("list items: %w", err)
		}
		items = append(items, it)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list items: %w", err)
	}
	return items, nil
}

// Get returns the item with id.
func (c *Catalog) Get(ctx context.Context, id int64) (Item, error) {
	db, err := c.db(ctx)
	if err != nil {
		return Item{}, fmt.Errorf("get item %d: %w", id, err)
	}
	it, err := scanItem(db.SQL().QueryRowContext(ctx, selectColumns+` WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return Item{}, fmt.Errorf("get item %d: %w", id, ErrNotFound)
	}
	if err != nil {
		return Item{}, fmt.Errorf("get item %d: %w", id, err)
	}
	return it, nil
}

// GetByBarcode returns the first item stored with barcode.
func (c *Catalog) GetByBarcode(ctx context.Context, barcode string) (Item, error) {
	if barcode == "" {
		return Item{}, fmt.Errorf("get item by barcode: %w: empty barcode", ErrNotFound)
	}
	db, err := c.db(ctx)
	if err != nil {
		return Item{}, fmt.Errorf("get item by barcode: %w", err)
	}
	it, err := scanItem(db.SQL().QueryRowContext(ctx,
		selectColumns+` WHERE barcode = ? ORDER BY id LIMIT 1`, barcode))
	if errors.Is(err, sql.ErrNoRows) {
		return Item{}, fmt.Errorf("get item by barcode %q: %w", barcode, ErrNotFound)
	}
	if err != nil {
		return Item{}, fmt.Errorf("get item by barcode %q: %w", barcode, err)
	}
	return it, nil
}

// Update merges p into the item with id and returns the result.
func (c *Catalog) Update(ctx context.Context, id int64, p Patch) (Item, error) {
	db, err := c.db(ctx)
	if err != nil {
		return Item{}, fmt.Errorf("update item %d: %w", id, err)
	}

	var before, after Item
	err = db.Tx(ctx, func(tx *sql.Tx) error {
		before, err = scanItem(tx.QueryRowContext(ctx, selectColumns+` WHERE id = ?`, id))
		if errors.Is(err, sql.ErrNoRows) {
			return ErrNotFound
		}
		if err != nil {
			return err
		}

		after = p.apply(before)
		if err := after.Validate(); err != nil {
			return err
		}
		info, err := encodeInfo(after.NutritionalInfo)
		if err != nil {
			return err
		}
		_, err = tx.ExecContext(ctx, `
			UPDATE foodItems SET
				name = ?, brand = ?, category = ?, barcode = ?, quantity = ?, expiration_date = ?,
				storage_location = ?, image_url = ?, nutritional_info = ?, consumed = ?, consumed_date = ?
			WHERE id = ?
		`, after.Name, after.Brand, string(after.Category), after.Barcode, after.Quantity, after.ExpirationDate,
			after.StorageLocation, after.ImageURL, info, after.Consumed, after.ConsumedDate, id)
		return err
	})
	if err != nil {
		return Item{}, fmt.Errorf("update item %d: %w", id, err)
	}

	c.record(ctx, activity.TypeUpdate, "Produit modifié: "+before.Name, before)
	return after, nil
}

// Delete removes the item with id.
func (c *Catalog) Delete(ctx context.Context, id int64) error {
	db, err := c.db(ctx)
	if err != nil {
		return fmt.Errorf("delete item %d: %w", id, err)
	}

	var removed Item
	err = db.Tx(ctx, func(tx *sql.Tx) error {
		removed, err = scanItem(tx.QueryRowContext(ctx, selectColumns+` WHERE id = ?`, id))
		if errors.Is(err, sql.ErrNoRows) {
			return ErrNotFound
		}
		if err != nil {
			return err
		}
		_, err = tx.ExecContext(ctx, `DELETE FROM foodItems WHERE id = ?`, id)
		return err
	})
	if err != nil {
		return fmt.Errorf("delete item %d: %w", id, err)
	}

	c.record(ctx, activity.TypeRemove, "Produit supprimé: "+removed.Name, removed)
	return nil
}

// record appends an activity entry for it. Failures are logged only.
func (c *Catalog) record(ctx context.Context, typ activity.Type, description string, it Item) {
	if c.activity == nil {
		return
	}
	id := it.ID
	_, err := c.activity.Add(ctx, activity.Entry{
		Type:        typ,
		Description: description,
		ProductName: it.Name,
		ProductID:   &id,
		Ref:         it.Ref,
	})
	if err != nil {
		c.logger.Warn("failed to record activity", "type", typ, "item", it.ID, "error", err)
	}
}
