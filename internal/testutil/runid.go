package testutil

import (
	"fmt"
	"sync/atomic"
)

// SequenceRunIDGenerator generates "prefix-1", "prefix-2", ... in order.
//
// Run ids appear in journal rows and golden traces, so tests need them
// predictable. Unlike a fixed list it never runs out.
//
// Thread-safety: safe for concurrent use.
type SequenceRunIDGenerator struct {
	prefix string
	next   atomic.Int64
}

// NewSequenceRunIDGenerator creates a generator for the given prefix.
// If prefix is empty, "run" is used.
func NewSequenceRunIDGenerator(prefix string) *SequenceRunIDGenerator {
	if prefix == "" {
		prefix = "run"
	}
	return &SequenceRunIDGenerator{prefix: prefix}
}

// Generate returns the next run id.
//
// Implements engine.RunIDGenerator.
func (g *SequenceRunIDGenerator) Generate() string {
	return fmt.Sprintf("%s-%d", g.prefix, g.next.Add(1))
}
