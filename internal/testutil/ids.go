package testutil

import (
	"fmt"
	"sync"

	"github.com/roach88/kiosk/internal/ir"
)

// SequentialIDs generates "<prefix>_<n>" ids, counting per kind, with n
// zero-padded so ids sort in generation order.
//
// Thread-safety: all methods are safe for concurrent use.
type SequentialIDs struct {
	mu   sync.Mutex
	next map[ir.Kind]int
}

// NewSequentialIDs creates a generator whose first id per kind ends in 0001.
func NewSequentialIDs() *SequentialIDs {
	return &SequentialIDs{next: make(map[ir.Kind]int)}
}

// NewID returns the next id for kind.
func (g *SequentialIDs) NewID(kind ir.Kind) string {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.next[kind]++
	return fmt.Sprintf("%s_%04d", kind.Prefix(), g.next[kind])
}
