package cache

// Stats holds the counters of one cache level.
type Stats struct {
	Hits       uint64 `json:"hits"`
	Misses     uint64 `json:"misses"`
	Accesses   uint64 `json:"accesses"`
	WriteBacks uint64 `json:"write_backs"`

	// TotalAccessTime is the sum of the latency charged by this level.
	TotalAccessTime uint64 `json:"total_access_time"`
}

// HitRatio returns the share of accesses that hit, in percent.
func (s Stats) HitRatio() float64 {
	if s.Accesses == 0 {
		return 0
	}

	return float64(s.Hits) / float64(s.Accesses) * 100
}

// MissRatio returns the share of accesses that missed, in percent.
func (s Stats) MissRatio() float64 {
	if s.Accesses == 0 {
		return 0
	}

	return float64(s.Misses) / float64(s.Accesses) * 100
}

// LevelStats names the Stats of a level.
type LevelStats struct {
	Name string `json:"name"`
	Stats
}

// HierarchyStats is a snapshot of the whole hierarchy.
type HierarchyStats struct {
	Levels []LevelStats `json:"levels"`

	TotalAccessTime uint64 `json:"total_access_time"`
	MemoryLatency   uint64 `json:"memory_latency"`
	NumAccesses     uint64 `json:"num_accesses"`
	MemoryAccesses  uint64 `json:"memory_accesses"`
}

// AverageAccessTime returns the mean number of cycles per access.
func (s HierarchyStats) AverageAccessTime() float64 {
	if s.NumAccesses == 0 {
		return 0
	}

	return float64(s.TotalAccessTime) / float64(s.NumAccesses)
}
