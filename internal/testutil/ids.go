package testutil

import (
	"fmt"
	"sync"
)

// SequentialIDs generates predictable UUID-shaped identifiers for tests:
// 00000000-0000-7000-8000-000000000001, ...002, and so on.
//
// It implements graphstore.IDGenerator.
//
// Thread-safety: SequentialIDs is safe for concurrent use via internal mutex.
type SequentialIDs struct {
	mu sync.Mutex
	n  int
}

// NewSequentialIDs creates a generator whose first id ends in 1.
func NewSequentialIDs() *SequentialIDs {
	return &SequentialIDs{}
}

// Generate returns the next identifier.
func (g *SequentialIDs) Generate() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.n++
	return SequentialID(g.n)
}

// SequentialID formats the n-th identifier SequentialIDs produces.
func SequentialID(n int) string {
	return fmt.Sprintf("00000000-0000-7000-8000-%012d", n)
}
