package shell

import (
	"strconv"
	"strings"

	"github.com/pkg/errors"

	"github.com/sarchlab/memsim/mem"
	"github.com/sarchlab/memsim/mem/cache"
)

func (s *Shell) cacheAccess(addr uint64, isWrite bool) {
	if isWrite {
		s.printf("Writing address: 0x%x\n", addr)
	} else {
		s.printf("Reading address: 0x%x\n", addr)
	}

	result, err := s.session.Cache().Access(addr, isWrite)
	if err != nil {
		s.reportModelError(err)
		return
	}

	for _, la := range result.Path {
		outcome := "MISS"
		if la.Hit {
			outcome = "HIT"
		}

		s.printf("  %s %s (set %d, %d cycles)", la.Level, outcome, la.SetID, la.Latency)

		if la.WriteBack {
			s.printf(", dirty line written back")
		}

		s.printf("\n")
	}

	if !result.Hit() {
		s.printf("  %s (%d cycles)\n", cache.MainMemory, s.session.Cache().MemoryLatency())
	}

	s.printf("Total: %d cycles\n", result.Cycles)
}

func (s *Shell) cacheStats() {
	h := s.session.Cache()
	if !h.IsInitialized() {
		s.reportModelError(cache.ErrNotInitialized)
		return
	}

	stats := h.Stats()

	s.printf("\n=== Cache Statistics ===\n")

	for _, l := range stats.Levels {
		s.printf("%s:\n", l.Name)
		s.printf("  Accesses:   %d\n", l.Accesses)
		s.printf("  Hits:       %d\n", l.Hits)
		s.printf("  Misses:     %d\n", l.Misses)
		s.printf("  Hit Rate:   %.2f%%\n", l.HitRatio())
		s.printf("  Write-backs: %d\n", l.WriteBacks)
	}

	s.printf("Memory accesses:     %d\n", stats.MemoryAccesses)
	s.printf("Total access time:   %d cycles\n", stats.TotalAccessTime)
	s.printf("Average access time: %.2f cycles\n", stats.AverageAccessTime())
	s.printf("========================\n\n")
}

func (s *Shell) cacheConfig() {
	h := s.session.Cache()
	if !h.IsInitialized() {
		s.reportModelError(cache.ErrNotInitialized)
		return
	}

	s.printf("\n=== Cache Configuration ===\n")

	for _, info := range h.Describe() {
		s.printf("  %s\n", info)
	}

	s.printf("  Main memory latency: %d cycles\n", h.MemoryLatency())
	s.printf("===========================\n\n")
}

func (s *Shell) initCache() {
	levels, err := s.session.Config().CacheLevels()
	if err != nil {
		s.reportModelError(err)
		return
	}

	if s.interactive {
		levels, err = s.promptLevels(levels)
		if err != nil {
			s.printf("Error: %v\n", err)
			return
		}
	}

	if err := s.session.ReconfigureCache(levels); err != nil {
		s.reportModelError(err)
		return
	}

	for _, l := range levels {
		s.printf("Added cache level: %s\n", l)
	}

	s.printf("Cache hierarchy initialized (Memory latency: %d cycles)\n",
		s.session.Cache().MemoryLatency())
}

// promptLevels asks for the geometry of every level, offering the given
// levels as defaults. An empty answer keeps the default.
func (s *Shell) promptLevels(defaults []cache.LevelConfig) ([]cache.LevelConfig, error) {
	levels := make([]cache.LevelConfig, 0, len(defaults))

	for _, d := range defaults {
		s.printf("\n-- %s Cache --\n", d.Name)

		l := d

		var err error

		if l.Size, err = s.promptSize("Size (bytes)", d.Size); err != nil {
			return nil, err
		}

		if l.BlockSize, err = s.promptSize("Block size (bytes)", d.BlockSize); err != nil {
			return nil, err
		}

		assoc, err := s.promptPositive("Associativity", uint64(d.Associativity))
		if err != nil {
			return nil, err
		}

		l.Associativity = int(assoc)

		if l.Policy, err = s.promptPolicy(d.Policy); err != nil {
			return nil, err
		}

		if l.Latency, err = s.promptPositive("Access latency (cycles)", d.Latency); err != nil {
			return nil, err
		}

		levels = append(levels, l)
	}

	return levels, nil
}

func (s *Shell) prompt(label, def string) (string, error) {
	answer, ok := s.readLine("  " + label + " [default " + def + "]: ")
	if !ok {
		return "", errors.New("input ended during cache configuration")
	}

	answer = strings.TrimSpace(answer)
	if answer == "" {
		return def, nil
	}

	return answer, nil
}

func (s *Shell) promptSize(label string, def uint64) (uint64, error) {
	answer, err := s.prompt(label, strconv.FormatUint(def, 10))
	if err != nil {
		return 0, err
	}

	v, err := mem.ParseSize(answer)
	if err != nil {
		return 0, errors.Wrapf(err, "invalid %s", strings.ToLower(label))
	}

	return v, nil
}

func (s *Shell) promptUint(label string, def uint64) (uint64, error) {
	answer, err := s.prompt(label, strconv.FormatUint(def, 10))
	if err != nil {
		return 0, err
	}

	v, err := strconv.ParseUint(answer, 10, 32)
	if err != nil {
		return 0, errors.Errorf("invalid %s: %s", strings.ToLower(label), answer)
	}

	return v, nil
}

func (s *Shell) promptPositive(label string, def uint64) (uint64, error) {
	v, err := s.promptUint(label, def)
	if err != nil {
		return 0, err
	}

	if v == 0 {
		return 0, errors.Errorf("invalid %s: must be at least 1", strings.ToLower(label))
	}

	return v, nil
}

func (s *Shell) promptPolicy(def cache.ReplacementPolicy) (cache.ReplacementPolicy, error) {
	answer, err := s.prompt("Replacement policy (lru/fifo)", strings.ToLower(def.String()))
	if err != nil {
		return def, err
	}

	return cache.ParsePolicy(answer)
}
