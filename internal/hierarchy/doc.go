// Package hierarchy stores the storage-location tree: rooms, the storage
// spaces inside them, and the floors and compartments inside each space.
//
// Two tables hold the tree:
//   - rooms: keyed by room name, with a cached list of space summaries
//   - storage_spaces: keyed by "<room>_<space>", the authoritative floors
//
// # Invariant
//
// Every summary in rooms.storage_spaces has exactly one storage_spaces row
// keyed by location.NewSpaceKey(room, summary.Name), and every row has a
// summary. Each operation that touches both tables does so in one
// transaction, so a failure leaves the previous consistent state.
//
// # Floors
//
// Floor indices start at 1 and only grow; a deleted index is never handed out
// again. Index 0 is the virtual floor holding compartments of a space that has
// compartments but no floors.
//
// # Errors
//
// Missing targets return ErrNotFound rather than a silent no-op. Renames onto
// an existing name return ErrConflict. Duplicate adds follow the store's
// duplicate policy (see WithRejectDuplicates).
package hierarchy
