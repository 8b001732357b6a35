package cmd

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/memsim/mem/trace"
)

var _ = Describe("Commands", func() {
	var (
		dir string
		out *bytes.Buffer
	)

	BeforeEach(func() {
		dir = GinkgoT().TempDir()
		out = new(bytes.Buffer)

		rootFlags.configFile = ""
		rootFlags.envFile = filepath.Join(dir, "missing.env")
		rootFlags.logLevel = "error"
		rootFlags.traceFile = ""
		traceFlags.where = ""
		traceFlags.limit = 0
		traceFlags.offset = 0

		rootCmd.SetOut(out)
		rootCmd.SetIn(strings.NewReader(""))
		DeferCleanup(func() {
			rootCmd.SetOut(nil)
			rootCmd.SetIn(nil)
			rootCmd.SetArgs(nil)
		})
	})

	execute := func(args ...string) error {
		rootCmd.SetArgs(args)
		return rootCmd.Execute()
	}

	writeScript := func(content string) string {
		path := filepath.Join(dir, "script.txt")
		Expect(os.WriteFile(path, []byte(content), 0o600)).To(Succeed())

		return path
	}

	It("should print the version", func() {
		Expect(execute("version")).To(Succeed())
		Expect(out.String()).To(Equal("memsim dev\n"))
	})

	It("should run a script", func() {
		script := writeScript("init memory 1K\nmalloc 100\nexit\nmalloc 1\n")

		Expect(execute("run", script, "--env", rootFlags.envFile,
			"--log", "error")).To(Succeed())
		Expect(out.String()).To(Equal("Memory initialized: 1024 bytes\n" +
			"Allocated block id=1 at address=0x0000 size=100\n" +
			"Goodbye!\n"))
	})

	It("should fail on a missing script", func() {
		Expect(execute("run", filepath.Join(dir, "nothing.txt"))).
			To(MatchError(ContainSubstring("reading script")))
	})

	It("should use the configuration file", func() {
		cfg := filepath.Join(dir, "memsim.yaml")
		Expect(os.WriteFile(cfg, []byte("memory:\n  size: 512\n"), 0o600)).
			To(Succeed())

		script := writeScript("stats\n")

		Expect(execute("run", script, "--config", cfg)).To(Succeed())
		Expect(out.String()).To(ContainSubstring("Total memory:           512 bytes"))
	})

	It("should record and print a trace", func() {
		db := filepath.Join(dir, "events")
		script := writeScript("init memory 256\nmalloc 16\ninit cache\ncache read 0x40\n")

		Expect(execute("run", script, "--trace", db)).To(Succeed())

		out.Reset()
		Expect(execute("trace", db+".sqlite3")).To(Succeed())
		Expect(out.String()).To(ContainSubstring(trace.AllocTable))
		Expect(out.String()).To(ContainSubstring(trace.LevelAccessTable))
		Expect(out.String()).To(ContainSubstring(trace.AccessTable))

		out.Reset()
		Expect(execute("trace", db+".sqlite3", trace.AllocTable)).To(Succeed())

		lines := strings.Split(strings.TrimSpace(out.String()), "\n")
		Expect(lines).To(HaveLen(4))
		Expect(lines[0]).To(HavePrefix("Seq"))
		Expect(lines[1]).To(ContainSubstring(trace.KindInit))
		Expect(lines[2]).To(ContainSubstring(trace.KindAllocate))
		Expect(lines[3]).To(Equal("(2 of 2 rows)"))

		out.Reset()
		Expect(execute("trace", db+".sqlite3", trace.AccessTable,
			"--where", "HitLevel = 'memory'")).To(Succeed())
		Expect(out.String()).To(ContainSubstring("111"))
		Expect(out.String()).To(ContainSubstring("(1 of 1 rows)"))
	})
})
