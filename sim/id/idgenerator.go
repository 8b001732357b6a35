// Package id generates identifiers for recorded simulation events.
package id

import (
	"strconv"
	"sync/atomic"

	"github.com/rs/xid"
)

// IDGenerator can generate IDs.
type IDGenerator interface {
	Generate() string
}

// NewIDGenerator returns a generator that produces 1, 2, 3, ... Sequential ids
// make traces of the same command script identical across runs.
func NewIDGenerator() IDGenerator {
	return &sequentialIDGenerator{}
}

// NewGlobalIDGenerator returns a generator of globally unique ids. Use it when
// records from several runs end up in the same database.
func NewGlobalIDGenerator() IDGenerator {
	return globalIDGenerator{}
}

type sequentialIDGenerator struct {
	nextID uint64
}

func (g *sequentialIDGenerator) Generate() string {
	idNumber := atomic.AddUint64(&g.nextID, 1)
	id := strconv.FormatUint(idNumber, 10)

	return id
}

type globalIDGenerator struct {
}

func (g globalIDGenerator) Generate() string {
	return xid.New().String()
}
