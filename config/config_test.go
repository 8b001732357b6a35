package config_test

import (
	"errors"
	"os"
	"path/filepath"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/sirupsen/logrus"

	"github.com/sarchlab/memsim/config"
	"github.com/sarchlab/memsim/mem/alloc"
	"github.com/sarchlab/memsim/mem/cache"
)

func writeFile(name, content string) string {
	path := filepath.Join(GinkgoT().TempDir(), name)
	Expect(os.WriteFile(path, []byte(content), 0o600)).To(Succeed())

	return path
}

func setenv(key, value string) {
	Expect(os.Setenv(key, value)).To(Succeed())
	DeferCleanup(os.Unsetenv, key)
}

var _ = Describe("Config", func() {
	It("should provide defaults", func() {
		cfg, err := config.Load("")
		Expect(err).ToNot(HaveOccurred())

		size, err := cfg.MemorySize()
		Expect(err).ToNot(HaveOccurred())
		Expect(size).To(Equal(uint64(0)))

		strategy, err := cfg.AllocStrategy()
		Expect(err).ToNot(HaveOccurred())
		Expect(strategy).To(Equal(alloc.FirstFit))

		levels, err := cfg.CacheLevels()
		Expect(err).ToNot(HaveOccurred())
		Expect(levels).To(Equal([]cache.LevelConfig{
			cache.DefaultL1Config(),
			cache.DefaultL2Config(),
		}))

		Expect(cfg.Cache.MemoryLatency).To(Equal(uint64(cache.DefaultMemoryLatency)))
		Expect(cfg.Monitor.Enabled).To(BeFalse())
		Expect(cfg.Trace.Enabled).To(BeFalse())
	})

	It("should read a file", func() {
		path := writeFile("memsim.yaml", `
log_level: debug
memory:
  size: 4K
  strategy: best-fit
cache:
  memory_latency: 50
  levels:
    - name: L1
      size: 0x80
      block_size: 16
      associativity: 2
      policy: FIFO
trace:
  enabled: true
  file: run1
`)

		cfg, err := config.Load(path)
		Expect(err).ToNot(HaveOccurred())

		level, err := cfg.LogrusLevel()
		Expect(err).ToNot(HaveOccurred())
		Expect(level).To(Equal(logrus.DebugLevel))

		size, _ := cfg.MemorySize()
		Expect(size).To(Equal(uint64(4096)))

		strategy, _ := cfg.AllocStrategy()
		Expect(strategy).To(Equal(alloc.BestFit))

		levels, err := cfg.CacheLevels()
		Expect(err).ToNot(HaveOccurred())
		Expect(levels).To(Equal([]cache.LevelConfig{{
			Name: "L1", Size: 128, BlockSize: 16, Associativity: 2,
			Policy: cache.FIFO, Latency: cache.DefaultLatency,
		}}))

		Expect(cfg.Cache.MemoryLatency).To(Equal(uint64(50)))
		Expect(cfg.Trace).To(Equal(config.TraceConfig{Enabled: true, File: "run1"}))
	})

	It("should reject unknown keys", func() {
		path := writeFile("typo.yaml", `
memory:
  sise: 4K
`)

		_, err := config.Load(path)
		Expect(err).To(HaveOccurred())
	})

	It("should reject a missing file", func() {
		_, err := config.Load(filepath.Join(GinkgoT().TempDir(), "missing.yaml"))
		Expect(err).To(HaveOccurred())
	})

	DescribeTable("invalid settings",
		func(content string) {
			_, err := config.Load(writeFile("bad.yaml", content))
			Expect(err).To(HaveOccurred())
		},
		Entry("log level", "log_level: loud\n"),
		Entry("memory size", "memory:\n  size: lots\n"),
		Entry("strategy", "memory:\n  strategy: next_fit\n"),
		Entry("policy", "cache:\n  levels:\n    - {name: L1, size: 64, block_size: 16, associativity: 1, policy: random}\n"),
		Entry("geometry", "cache:\n  levels:\n    - {name: L1, size: 60, block_size: 16, associativity: 1, policy: lru}\n"),
		Entry("port", "monitor:\n  port: 70000\n"),
		Entry("duplicated level", "cache:\n  levels:\n"+
			"    - {name: L1, size: 64, block_size: 16, associativity: 1, policy: lru}\n"+
			"    - {name: L1, size: 128, block_size: 16, associativity: 1, policy: lru}\n"),
	)

	Context("with environment overrides", func() {
		It("should override the file", func() {
			path := writeFile("memsim.yaml", "memory:\n  size: 1K\n")

			setenv(config.EnvMemorySize, "2K")
			setenv(config.EnvStrategy, "worst_fit")
			setenv(config.EnvMemoryLatency, "200")
			setenv(config.EnvMonitorPort, "8080")
			setenv(config.EnvLogLevel, "warn")
			setenv(config.EnvTraceFile, "out")

			cfg, err := config.Load(path)
			Expect(err).ToNot(HaveOccurred())

			size, _ := cfg.MemorySize()
			Expect(size).To(Equal(uint64(2048)))

			strategy, _ := cfg.AllocStrategy()
			Expect(strategy).To(Equal(alloc.WorstFit))

			Expect(cfg.Cache.MemoryLatency).To(Equal(uint64(200)))
			Expect(cfg.Monitor).To(Equal(config.MonitorConfig{Enabled: true, Port: 8080}))
			Expect(cfg.LogLevel).To(Equal("warn"))
			Expect(cfg.Trace).To(Equal(config.TraceConfig{Enabled: true, File: "out"}))
		})

		It("should reject malformed numbers", func() {
			setenv(config.EnvMemoryLatency, "slow")

			_, err := config.Load("")
			Expect(errors.Is(err, config.ErrInvalidConfig)).To(BeTrue())
		})

		It("should load a .env file without replacing set variables", func() {
			path := writeFile(".env",
				config.EnvStrategy+"=best_fit\n"+config.EnvMemorySize+"=8K\n")

			setenv(config.EnvMemorySize, "1K")
			DeferCleanup(os.Unsetenv, config.EnvStrategy)

			Expect(config.LoadDotEnv(path)).To(Succeed())

			cfg, err := config.Load("")
			Expect(err).ToNot(HaveOccurred())

			size, _ := cfg.MemorySize()
			Expect(size).To(Equal(uint64(1024)))

			strategy, _ := cfg.AllocStrategy()
			Expect(strategy).To(Equal(alloc.BestFit))
		})

		It("should ignore a missing .env file", func() {
			Expect(config.LoadDotEnv(filepath.Join(GinkgoT().TempDir(), ".env"))).
				To(Succeed())
		})
	})
})
