// Package config loads the settings of a memsim session from YAML files and
// environment variables.
package config

import (
	"bytes"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"

	"github.com/sarchlab/memsim/mem"
	"github.com/sarchlab/memsim/mem/alloc"
	"github.com/sarchlab/memsim/mem/cache"
)

// Environment variables that override the file settings.
const (
	EnvLogLevel      = "MEMSIM_LOG_LEVEL"
	EnvMemorySize    = "MEMSIM_MEMORY_SIZE"
	EnvStrategy      = "MEMSIM_STRATEGY"
	EnvMemoryLatency = "MEMSIM_MEMORY_LATENCY"
	EnvMonitorPort   = "MEMSIM_MONITOR_PORT"
	EnvTraceFile     = "MEMSIM_TRACE_FILE"
)

// ErrInvalidConfig is returned when a setting cannot be used.
var ErrInvalidConfig = errors.New("invalid configuration")

// Config is the full configuration file. All sections must be listed here,
// since unknown keys are rejected.
type Config struct {
	LogLevel string        `yaml:"log_level"`
	Memory   MemoryConfig  `yaml:"memory"`
	Cache    CacheConfig   `yaml:"cache"`
	Monitor  MonitorConfig `yaml:"monitor"`
	Trace    TraceConfig   `yaml:"trace"`
}

// MemoryConfig configures the allocator. An empty size leaves the memory
// uninitialized until "init memory" is issued.
type MemoryConfig struct {
	Size     string `yaml:"size"`
	Strategy string `yaml:"strategy"`
}

// CacheConfig configures the cache hierarchy. The levels are also the
// defaults proposed by "init cache". Unless Initialize is set, the hierarchy
// starts without levels.
type CacheConfig struct {
	Initialize    bool          `yaml:"initialize"`
	MemoryLatency uint64        `yaml:"memory_latency"`
	Levels        []LevelConfig `yaml:"levels"`
}

// LevelConfig configures one cache level. Sizes accept the same syntax as the
// shell, such as "256", "1K" or "0x100".
type LevelConfig struct {
	Name          string `yaml:"name"`
	Size          string `yaml:"size"`
	BlockSize     string `yaml:"block_size"`
	Associativity int    `yaml:"associativity"`
	Policy        string `yaml:"policy"`
	Latency       uint64 `yaml:"latency"`
}

// MonitorConfig configures the HTTP monitor.
type MonitorConfig struct {
	Enabled     bool `yaml:"enabled"`
	Port        int  `yaml:"port"`
	OpenBrowser bool `yaml:"open_browser"`
}

// TraceConfig configures event recording. File is the database name without
// the .sqlite3 extension; a random name is used if it is empty.
type TraceConfig struct {
	Enabled bool   `yaml:"enabled"`
	File    string `yaml:"file"`
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	return &Config{
		LogLevel: "info",
		Memory: MemoryConfig{
			Strategy: alloc.FirstFit.String(),
		},
		Cache: CacheConfig{
			MemoryLatency: cache.DefaultMemoryLatency,
			Levels: []LevelConfig{
				{
					Name: "L1", Size: "256", BlockSize: "16",
					Associativity: 4, Policy: "lru", Latency: 1,
				},
				{
					Name: "L2", Size: "1024", BlockSize: "32",
					Associativity: 8, Policy: "fifo", Latency: 10,
				},
			},
		},
	}
}

// Load reads a configuration file on top of the defaults, then applies the
// environment overrides. An empty path only applies the overrides. Keys that
// do not exist in Config are rejected.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, errors.Wrap(err, "reading config")
		}

		if err := cfg.decode(data); err != nil {
			return nil, err
		}
	}

	if err := cfg.ApplyEnv(); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) decode(data []byte) error {
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)

	if err := decoder.Decode(c); err != nil {
		return errors.Wrap(err, "parsing config")
	}

	return nil
}

// LoadDotEnv loads environment variables from a .env file. Variables already
// set are kept. A missing file is not an error.
func LoadDotEnv(path string) error {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil
	}

	return errors.Wrapf(godotenv.Load(path), "loading %s", path)
}

// ApplyEnv overrides the settings with the MEMSIM_* environment variables.
// Setting the monitor port also enables the monitor, and setting the trace
// file enables tracing.
func (c *Config) ApplyEnv() error {
	if v, ok := os.LookupEnv(EnvLogLevel); ok {
		c.LogLevel = v
	}

	if v, ok := os.LookupEnv(EnvMemorySize); ok {
		c.Memory.Size = v
	}

	if v, ok := os.LookupEnv(EnvStrategy); ok {
		c.Memory.Strategy = v
	}

	if v, ok := os.LookupEnv(EnvMemoryLatency); ok {
		latency, err := strconv.ParseUint(strings.TrimSpace(v), 10, 64)
		if err != nil {
			return errors.Wrapf(ErrInvalidConfig, "%s=%q", EnvMemoryLatency, v)
		}

		c.Cache.MemoryLatency = latency
	}

	if v, ok := os.LookupEnv(EnvMonitorPort); ok {
		port, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			return errors.Wrapf(ErrInvalidConfig, "%s=%q", EnvMonitorPort, v)
		}

		c.Monitor.Enabled = true
		c.Monitor.Port = port
	}

	if v, ok := os.LookupEnv(EnvTraceFile); ok {
		c.Trace.Enabled = true
		c.Trace.File = v
	}

	return nil
}

// Validate checks that every setting can be converted for the models.
func (c *Config) Validate() error {
	if _, err := c.LogrusLevel(); err != nil {
		return err
	}

	if _, err := c.MemorySize(); err != nil {
		return err
	}

	if _, err := c.AllocStrategy(); err != nil {
		return err
	}

	levels, err := c.CacheLevels()
	if err != nil {
		return err
	}

	names := make(map[string]bool, len(levels))

	for _, l := range levels {
		if err := l.Validate(); err != nil {
			return err
		}

		if names[l.Name] {
			return errors.Wrapf(ErrInvalidConfig, "cache level %s is defined twice", l.Name)
		}

		names[l.Name] = true
	}

	if c.Monitor.Port < 0 || c.Monitor.Port > 65535 {
		return errors.Wrapf(ErrInvalidConfig, "monitor port %d", c.Monitor.Port)
	}

	return nil
}

// LogrusLevel returns the parsed log level.
func (c *Config) LogrusLevel() (logrus.Level, error) {
	level, err := logrus.ParseLevel(c.LogLevel)
	if err != nil {
		return logrus.InfoLevel, errors.Wrap(ErrInvalidConfig, err.Error())
	}

	return level, nil
}

// MemorySize returns the memory size in bytes, or 0 if no size is set.
func (c *Config) MemorySize() (uint64, error) {
	if strings.TrimSpace(c.Memory.Size) == "" {
		return 0, nil
	}

	size, err := mem.ParseSize(c.Memory.Size)
	if err != nil {
		return 0, errors.Wrapf(ErrInvalidConfig, "memory size: %v", err)
	}

	return size, nil
}

// AllocStrategy returns the parsed allocation strategy.
func (c *Config) AllocStrategy() (alloc.Strategy, error) {
	s, err := alloc.ParseStrategy(c.Memory.Strategy)
	if err != nil {
		return alloc.FirstFit, errors.Wrap(ErrInvalidConfig, err.Error())
	}

	return s, nil
}

// CacheLevels converts the configured levels for the cache package. A zero
// latency becomes cache.DefaultLatency.
func (c *Config) CacheLevels() ([]cache.LevelConfig, error) {
	levels := make([]cache.LevelConfig, 0, len(c.Cache.Levels))

	for _, l := range c.Cache.Levels {
		converted, err := l.convert()
		if err != nil {
			return nil, err
		}

		levels = append(levels, converted)
	}

	return levels, nil
}

func (l LevelConfig) convert() (cache.LevelConfig, error) {
	size, err := mem.ParseSize(l.Size)
	if err != nil {
		return cache.LevelConfig{}, errors.Wrapf(ErrInvalidConfig,
			"cache level %s size: %v", l.Name, err)
	}

	blockSize, err := mem.ParseSize(l.BlockSize)
	if err != nil {
		return cache.LevelConfig{}, errors.Wrapf(ErrInvalidConfig,
			"cache level %s block size: %v", l.Name, err)
	}

	policy, err := cache.ParsePolicy(l.Policy)
	if err != nil {
		return cache.LevelConfig{}, errors.Wrapf(ErrInvalidConfig,
			"cache level %s: %v", l.Name, err)
	}

	latency := l.Latency
	if latency == 0 {
		latency = cache.DefaultLatency
	}

	return cache.LevelConfig{
		Name:          l.Name,
		Size:          size,
		BlockSize:     blockSize,
		Associativity: l.Associativity,
		Policy:        policy,
		Latency:       latency,
	}, nil
}
