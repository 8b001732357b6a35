package cache

// Builder can build cache hierarchies.
type Builder struct {
	memoryLatency uint64
	levels        []LevelConfig
}

// MakeBuilder creates a new builder.
func MakeBuilder() Builder {
	return Builder{
		memoryLatency: DefaultMemoryLatency,
	}
}

// WithMemoryLatency sets the latency of main memory in cycles.
func (b Builder) WithMemoryLatency(cycles uint64) Builder {
	b.memoryLatency = cycles
	return b
}

// WithLevel appends a level below the ones already added. A zero latency is
// replaced by DefaultLatency.
func (b Builder) WithLevel(config LevelConfig) Builder {
	if config.Latency == 0 {
		config.Latency = DefaultLatency
	}

	levels := make([]LevelConfig, len(b.levels), len(b.levels)+1)
	copy(levels, b.levels)
	b.levels = append(levels, config)

	return b
}

// WithLevels appends several levels in order.
func (b Builder) WithLevels(configs ...LevelConfig) Builder {
	for _, c := range configs {
		b = b.WithLevel(c)
	}

	return b
}

// Build creates the hierarchy. It fails if any level has an invalid
// configuration.
func (b Builder) Build() (*Hierarchy, error) {
	h := NewHierarchy(b.memoryLatency)

	for _, c := range b.levels {
		if err := h.AddLevel(c); err != nil {
			return nil, err
		}
	}

	return h, nil
}

// DefaultL1Config is the L1 configuration used when nothing else is given.
func DefaultL1Config() LevelConfig {
	return LevelConfig{
		Name:          "L1",
		Size:          256,
		BlockSize:     16,
		Associativity: 4,
		Policy:        LRU,
		Latency:       1,
	}
}

// DefaultL2Config is the L2 configuration used when nothing else is given.
func DefaultL2Config() LevelConfig {
	return LevelConfig{
		Name:          "L2",
		Size:          1024,
		BlockSize:     32,
		Associativity: 8,
		Policy:        FIFO,
		Latency:       10,
	}
}
