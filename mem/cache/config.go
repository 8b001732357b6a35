package cache

import (
	"fmt"
	"strings"

	"github.com/pkg/errors"
	"github.com/sarchlab/memsim/mem/cache/internal/tagging"
)

// ReplacementPolicy selects the line to evict when a set is full.
type ReplacementPolicy = tagging.Policy

// The supported replacement policies.
const (
	FIFO = tagging.FIFO
	LRU  = tagging.LRU
)

// ParsePolicy converts "fifo" or "lru", in any case, to a ReplacementPolicy.
func ParsePolicy(name string) (ReplacementPolicy, error) {
	p, ok := tagging.ParsePolicy(name)
	if !ok {
		return FIFO, errors.Wrapf(ErrInvalidConfig,
			"unknown replacement policy %q, available: fifo, lru", name)
	}

	return p, nil
}

// DefaultLatency is the access latency, in cycles, of a level that does not
// specify one.
const DefaultLatency = 1

// LevelConfig describes the geometry and timing of one cache level.
type LevelConfig struct {
	Name          string            `json:"name"`
	Size          uint64            `json:"size"`
	BlockSize     uint64            `json:"block_size"`
	Associativity int               `json:"associativity"`
	Policy        ReplacementPolicy `json:"policy"`

	// Latency is charged on every probe of the level, hit or miss.
	Latency uint64 `json:"latency"`
}

// NumLines returns the number of lines in the level.
func (c LevelConfig) NumLines() uint64 {
	return c.Size / c.BlockSize
}

// NumSets returns the number of sets in the level.
func (c LevelConfig) NumSets() int {
	return int(c.NumLines() / uint64(c.Associativity))
}

// Validate checks that the geometry divides evenly. The block size and the
// resulting number of sets must be powers of two, since they are selected by
// address bits.
func (c LevelConfig) Validate() error {
	switch {
	case c.Name == "":
		return errors.Wrap(ErrInvalidConfig, "level name is empty")
	case strings.ContainsAny(c.Name, " \t\r\n/"):
		return errors.Wrapf(ErrInvalidConfig,
			"level name %q must not contain spaces or slashes", c.Name)
	case c.Size == 0 || c.BlockSize == 0 || c.Associativity <= 0:
		return errors.Wrapf(ErrInvalidConfig,
			"%s: size, block size and associativity must be positive", c.Name)
	case !c.Policy.Valid():
		return errors.Wrapf(ErrInvalidConfig, "%s: unknown replacement policy", c.Name)
	case !tagging.IsPowerOfTwo(c.BlockSize):
		return errors.Wrapf(ErrInvalidConfig,
			"%s: block size %d is not a power of two", c.Name, c.BlockSize)
	case c.Size%c.BlockSize != 0:
		return errors.Wrapf(ErrInvalidConfig,
			"%s: size %d is not a multiple of block size %d", c.Name, c.Size, c.BlockSize)
	case c.NumLines()%uint64(c.Associativity) != 0:
		return errors.Wrapf(ErrInvalidConfig,
			"%s: %d lines cannot be split into %d-way sets",
			c.Name, c.NumLines(), c.Associativity)
	case !tagging.IsPowerOfTwo(uint64(c.NumSets())):
		return errors.Wrapf(ErrInvalidConfig,
			"%s: number of sets %d is not a power of two", c.Name, c.NumSets())
	}

	return nil
}

// String describes the level in one line, e.g.
// "L1: 256 bytes, 16B blocks, 4-way, LRU, 1 cycles".
func (c LevelConfig) String() string {
	return fmt.Sprintf("%s: %d bytes, %dB blocks, %d-way, %s, %d cycles",
		c.Name, c.Size, c.BlockSize, c.Associativity, c.Policy, c.Latency)
}
