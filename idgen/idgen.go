// Package idgen hands out process identifiers. IDs are sequential per
// generator so that two runs activating the same processes in the same order
// see the same identifiers.
package idgen

import (
	"strconv"
	"sync/atomic"
)

// ID identifies one activated process within a scheduler.
type ID uint64

// String returns the decimal form of the ID.
func (id ID) String() string {
	return strconv.FormatUint(uint64(id), 10)
}

// Label joins a prefix and the ID, e.g. "proc-3".
func (id ID) Label(prefix string) string {
	return prefix + "-" + id.String()
}

// Generator produces unique identifiers.
type Generator interface {
	Generate() ID
}

// New returns a sequential generator whose first emitted ID is 1.
func New() Generator {
	return &sequentialGenerator{}
}

type sequentialGenerator struct {
	next atomic.Uint64
}

func (g *sequentialGenerator) Generate() ID {
	return ID(g.next.Add(1))
}
