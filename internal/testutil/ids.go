// Package testutil holds deterministic helpers shared by tests and the
// scenario harness.
package testutil

import (
	"fmt"
	"sync"

	"github.com/roach88/offsync/internal/ir"
)

// SequentialIDs generates "<prefix>-1", "<prefix>-2", ... string ids.
//
// It can be reset so the same scenario run twice produces identical ids.
//
// Thread-safety: All methods are safe for concurrent use via internal mutex.
type SequentialIDs struct {
	mu     sync.Mutex
	prefix string
	seq    int64
}

// NewSequentialIDs creates a generator. An empty prefix defaults to "id".
func NewSequentialIDs(prefix string) *SequentialIDs {
	if prefix == "" {
		prefix = "id"
	}
	return &SequentialIDs{prefix: prefix}
}

// Next returns the next id. Its method value satisfies engine.IDGenerator.
func (g *SequentialIDs) Next() ir.ID {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.seq++
	return ir.StringID(fmt.Sprintf("%s-%d", g.prefix, g.seq))
}

// Issued returns how many ids were generated since the last reset.
func (g *SequentialIDs) Issued() int64 {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.seq
}

// Reset restarts the sequence at 1.
func (g *SequentialIDs) Reset() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.seq = 0
}
