// Package catalog is the flat table of food items.
//
// Items live in the "items" logical database, table foodItems. An item refers
// to its place in the hierarchy only through StorageLocation, a free-text
// label such as "Cuisine - Frigo". Renaming or deleting a room or space does
// not update existing labels.
//
// Every mutation appends an entry to the activity log when one is configured.
// The log is a separate database, so the entry is written after the item
// commits; a failed entry is logged and does not fail the mutation.
package catalog
