// Package cache simulates a multilevel, set-associative cache hierarchy.
//
// Levels are probed in order. The first level that hits ends the probe; if
// every level misses, the access goes to main memory. Each probed level
// charges its latency, so an access that hits in L2 costs the L1 latency plus
// the L2 latency.
package cache

import (
	"sync"

	"github.com/pkg/errors"
	"github.com/sarchlab/memsim/sim/hooking"
)

// MainMemory is the HitLevel of accesses that miss in every level.
const MainMemory = "memory"

// DefaultMemoryLatency is the main memory latency in cycles.
const DefaultMemoryLatency = 100

// Positions where the Hierarchy invokes its hooks.
var (
	// HookPosLevelAccess is invoked once per probed level. The item is the
	// level name and the detail is the LevelAccess.
	HookPosLevelAccess = &hooking.HookPos{Name: "Cache.LevelAccess"}

	// HookPosAccess is invoked once per access, after the level hooks. The
	// item is the address and the detail is the AccessResult.
	HookPosAccess = &hooking.HookPos{Name: "Cache.Access"}
)

// AccessResult is the outcome of one access through the hierarchy.
type AccessResult struct {
	Address uint64 `json:"address"`
	IsWrite bool   `json:"is_write"`

	// Path lists the probed levels in order. Only the last entry can be a
	// hit.
	Path []LevelAccess `json:"path"`

	// Cycles is the latency of all probed levels, plus the memory latency
	// if no level hit.
	Cycles uint64 `json:"cycles"`

	// HitLevel is the name of the level that hit, or MainMemory.
	HitLevel string `json:"hit_level"`
}

// Hit tells if any cache level hit.
func (r AccessResult) Hit() bool {
	return r.HitLevel != MainMemory
}

// Hierarchy is an ordered list of cache levels in front of main memory. It is
// safe for concurrent use; each operation holds the hierarchy's lock for its
// whole duration. Hooks are invoked after the lock is released.
type Hierarchy struct {
	hooking.HookableBase

	lock            sync.Mutex
	levels          []*Level
	memoryLatency   uint64
	totalAccessTime uint64
	numAccesses     uint64
	memoryAccesses  uint64
}

// NewHierarchy creates a hierarchy without levels.
func NewHierarchy(memoryLatency uint64) *Hierarchy {
	return &Hierarchy{
		memoryLatency: memoryLatency,
	}
}

// AddLevel appends a level below the existing ones.
func (h *Hierarchy) AddLevel(config LevelConfig) error {
	l, err := NewLevel(config)
	if err != nil {
		return err
	}

	h.lock.Lock()
	defer h.lock.Unlock()

	for _, existing := range h.levels {
		if existing.Name() == config.Name {
			return errors.Wrapf(ErrInvalidConfig, "level %s already exists", config.Name)
		}
	}

	h.levels = append(h.levels, l)

	return nil
}

// Replace swaps all levels for new ones built from configs and clears the
// cumulative counters. If any level is invalid or two levels share a name,
// the hierarchy is left unchanged.
func (h *Hierarchy) Replace(configs []LevelConfig) error {
	levels := make([]*Level, 0, len(configs))
	names := make(map[string]bool, len(configs))

	for _, c := range configs {
		if names[c.Name] {
			return errors.Wrapf(ErrInvalidConfig, "level %s already exists", c.Name)
		}

		names[c.Name] = true

		l, err := NewLevel(c)
		if err != nil {
			return err
		}

		levels = append(levels, l)
	}

	h.lock.Lock()
	defer h.lock.Unlock()

	h.levels = levels
	h.totalAccessTime = 0
	h.numAccesses = 0
	h.memoryAccesses = 0

	return nil
}

// Clear removes all levels and the cumulative counters, leaving the memory
// latency.
func (h *Hierarchy) Clear() {
	h.lock.Lock()
	defer h.lock.Unlock()

	h.levels = nil
	h.totalAccessTime = 0
	h.numAccesses = 0
	h.memoryAccesses = 0
}

// IsInitialized tells if the hierarchy has at least one level.
func (h *Hierarchy) IsInitialized() bool {
	h.lock.Lock()
	defer h.lock.Unlock()

	return len(h.levels) > 0
}

// NumLevels returns the number of cache levels.
func (h *Hierarchy) NumLevels() int {
	h.lock.Lock()
	defer h.lock.Unlock()

	return len(h.levels)
}

// MemoryLatency returns the main memory latency in cycles.
func (h *Hierarchy) MemoryLatency() uint64 {
	return h.memoryLatency
}

// Read accesses addr without modifying it.
func (h *Hierarchy) Read(addr uint64) (AccessResult, error) {
	return h.Access(addr, false)
}

// Write accesses addr and marks the line dirty in every level it is
// installed in or found in.
func (h *Hierarchy) Write(addr uint64) (AccessResult, error) {
	return h.Access(addr, true)
}

// Access sends one access through the levels.
func (h *Hierarchy) Access(addr uint64, isWrite bool) (AccessResult, error) {
	h.lock.Lock()
	result, err := h.access(addr, isWrite)
	h.lock.Unlock()

	if err != nil {
		return result, err
	}

	for _, levelAccess := range result.Path {
		h.InvokeHook(hooking.HookCtx{
			Domain: h,
			Pos:    HookPosLevelAccess,
			Item:   levelAccess.Level,
			Detail: levelAccess,
		})
	}

	h.InvokeHook(hooking.HookCtx{
		Domain: h,
		Pos:    HookPosAccess,
		Item:   addr,
		Detail: result,
	})

	return result, nil
}

func (h *Hierarchy) access(addr uint64, isWrite bool) (AccessResult, error) {
	result := AccessResult{
		Address:  addr,
		IsWrite:  isWrite,
		HitLevel: MainMemory,
	}

	if len(h.levels) == 0 {
		return result, ErrNotInitialized
	}

	for _, l := range h.levels {
		levelAccess := l.Access(addr, isWrite)
		result.Path = append(result.Path, levelAccess)
		result.Cycles += levelAccess.Latency

		if levelAccess.Hit {
			result.HitLevel = l.Name()
			break
		}
	}

	if !result.Hit() {
		result.Cycles += h.memoryLatency
		h.memoryAccesses++
	}

	h.numAccesses++
	h.totalAccessTime += result.Cycles

	return result, nil
}

// Stats returns a snapshot of the counters of all levels and of the
// hierarchy.
func (h *Hierarchy) Stats() HierarchyStats {
	h.lock.Lock()
	defer h.lock.Unlock()

	stats := HierarchyStats{
		Levels:          make([]LevelStats, 0, len(h.levels)),
		TotalAccessTime: h.totalAccessTime,
		MemoryLatency:   h.memoryLatency,
		NumAccesses:     h.numAccesses,
		MemoryAccesses:  h.memoryAccesses,
	}

	for _, l := range h.levels {
		stats.Levels = append(stats.Levels, LevelStats{
			Name:  l.Name(),
			Stats: l.Stats(),
		})
	}

	return stats
}

// ResetStats zeroes the counters of every level. The configuration, the cached
// lines and the cumulative counters of the hierarchy are kept.
func (h *Hierarchy) ResetStats() {
	h.lock.Lock()
	defer h.lock.Unlock()

	for _, l := range h.levels {
		l.ResetStats()
	}
}

// Config returns the configuration of every level, in probe order.
func (h *Hierarchy) Config() []LevelConfig {
	h.lock.Lock()
	defer h.lock.Unlock()

	configs := make([]LevelConfig, 0, len(h.levels))
	for _, l := range h.levels {
		configs = append(configs, l.Config())
	}

	return configs
}

// Describe returns a one-line description of every level.
func (h *Hierarchy) Describe() []string {
	configs := h.Config()

	lines := make([]string, 0, len(configs))
	for _, c := range configs {
		lines = append(lines, c.String())
	}

	return lines
}

// Resident tells if the block holding addr is cached in the named level.
func (h *Hierarchy) Resident(levelName string, addr uint64) (bool, error) {
	h.lock.Lock()
	defer h.lock.Unlock()

	l, err := h.findLevel(levelName)
	if err != nil {
		return false, err
	}

	return l.Resident(addr), nil
}

// Lines returns a copy of one set of the named level.
func (h *Hierarchy) Lines(levelName string, setID int) ([]Line, error) {
	h.lock.Lock()
	defer h.lock.Unlock()

	l, err := h.findLevel(levelName)
	if err != nil {
		return nil, err
	}

	if setID < 0 || setID >= l.Config().NumSets() {
		return nil, errors.Errorf("%s has no set %d", levelName, setID)
	}

	return l.Lines(setID), nil
}

func (h *Hierarchy) findLevel(name string) (*Level, error) {
	for _, l := range h.levels {
		if l.Name() == name {
			return l, nil
		}
	}

	return nil, errors.Wrapf(ErrLevelNotFound, "%q", name)
}
