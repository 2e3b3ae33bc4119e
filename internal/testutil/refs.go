package testutil

import (
	"fmt"
	"sync"
)

// SequentialRefs generates predictable UUID-shaped references.
//
// The nth call returns "00000000-0000-7000-8000-<n as 12 hex digits>", so
// golden output that contains references is stable across runs.
//
// Thread-safety: SequentialRefs is safe for concurrent use via internal mutex.
type SequentialRefs struct {
	mu sync.Mutex
	n  int64
}

// NewSequentialRefs creates a generator whose first reference ends in 1.
func NewSequentialRefs() *SequentialRefs {
	return &SequentialRefs{}
}

// Generate returns the next reference.
func (g *SequentialRefs) Generate() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.n++
	return fmt.Sprintf("00000000-0000-7000-8000-%012x", g.n)
}
