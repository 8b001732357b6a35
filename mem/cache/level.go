package cache

import (
	"github.com/sarchlab/memsim/mem/cache/internal/tagging"
	"github.com/sarchlab/memsim/sim/naming"
)

// Line is the bookkeeping kept for one cached block.
type Line = tagging.Line

// LevelAccess is the outcome of probing one level.
type LevelAccess struct {
	Level   string `json:"level"`
	Address uint64 `json:"address"`
	IsWrite bool   `json:"is_write"`
	Hit     bool   `json:"hit"`
	SetID   int    `json:"set"`
	WayID   int    `json:"way"`
	Tag     uint64 `json:"tag"`

	// WriteBack is set when a miss evicted a dirty line.
	WriteBack bool `json:"write_back"`

	// Latency is the number of cycles charged by this level.
	Latency uint64 `json:"latency"`
}

// A Level is one set-associative, write-back cache. A Level is not safe for
// concurrent use on its own; the Hierarchy owning it serializes accesses.
type Level struct {
	naming.NamedBase

	config  LevelConfig
	tags    *tagging.TagArray
	stats   Stats
	counter uint64
}

// NewLevel creates a level with all lines invalid. A zero latency is replaced
// by DefaultLatency.
func NewLevel(config LevelConfig) (*Level, error) {
	if config.Latency == 0 {
		config.Latency = DefaultLatency
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}

	l := &Level{
		NamedBase: naming.MakeNamedBase(config.Name),
		config:    config,
		tags: tagging.NewTagArray(
			config.NumSets(), config.Associativity, config.BlockSize),
	}

	return l, nil
}

// Config returns the configuration of the level.
func (l *Level) Config() LevelConfig {
	return l.config
}

// Latency returns the number of cycles charged per access.
func (l *Level) Latency() uint64 {
	return l.config.Latency
}

// Access looks up addr. A miss installs the block, evicting a victim chosen by
// the replacement policy. A write marks the line dirty; evicting a dirty line
// counts as a write-back.
func (l *Level) Access(addr uint64, isWrite bool) LevelAccess {
	l.counter++
	l.stats.Accesses++
	l.stats.TotalAccessTime += l.config.Latency

	setID, tag := l.tags.Decompose(addr)
	set := &l.tags.Sets[setID]

	result := LevelAccess{
		Level:   l.Name(),
		Address: addr,
		IsWrite: isWrite,
		SetID:   setID,
		Tag:     tag,
		Latency: l.config.Latency,
	}

	if way, found := set.Find(tag); found {
		line := &set.Lines[way]
		line.LastAccess = l.counter

		if isWrite {
			line.Dirty = true
		}

		l.stats.Hits++
		result.Hit = true
		result.WayID = way

		return result
	}

	l.stats.Misses++

	victim := set.FindVictim(l.config.Policy)
	if old := set.Lines[victim]; old.Valid && old.Dirty {
		l.stats.WriteBacks++
		result.WriteBack = true
	}

	set.Fill(victim, tag, l.counter, isWrite, l.config.Policy)
	result.WayID = victim

	return result
}

// Resident tells if the block holding addr is cached in this level.
func (l *Level) Resident(addr uint64) bool {
	_, _, found := l.tags.Lookup(addr)
	return found
}

// Lines returns a copy of the lines of a set.
func (l *Level) Lines(setID int) []Line {
	lines := make([]Line, len(l.tags.Sets[setID].Lines))
	copy(lines, l.tags.Sets[setID].Lines)

	return lines
}

// Stats returns the counters of the level.
func (l *Level) Stats() Stats {
	return l.stats
}

// ResetStats zeroes the counters. Cached lines are kept.
func (l *Level) ResetStats() {
	l.stats = Stats{}
}

// Invalidate drops all cached lines without writing back dirty ones.
func (l *Level) Invalidate() {
	l.tags.Reset()
}
