// Package cmd provides the command-line interface of memsim.
package cmd

import (
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/tebeka/atexit"

	"github.com/sarchlab/memsim/config"
	"github.com/sarchlab/memsim/shell"
	"github.com/sarchlab/memsim/simulation"
)

var _ shell.Session = (*simulation.Simulation)(nil)

// rootCmd represents the base command when called without any subcommands.
// Without a subcommand it starts the interactive shell.
var rootCmd = &cobra.Command{
	Use:   "memsim",
	Short: "memsim simulates a memory allocator and a multilevel cache.",
	Long: `memsim simulates the placement of blocks in a fixed-size memory ` +
		`with first, best or worst fit, and the accesses to a hierarchy of ` +
		`set-associative caches in front of main memory.`,
	SilenceUsage: true,
	Args:         cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		return runShell(cmd)
	},
}

var rootFlags struct {
	configFile  string
	envFile     string
	logLevel    string
	traceFile   string
	monitorPort int
}

func init() {
	flags := rootCmd.PersistentFlags()
	flags.StringVar(&rootFlags.configFile, "config", "",
		"YAML configuration file")
	flags.StringVar(&rootFlags.envFile, "env", ".env",
		"file with environment overrides, ignored if missing")
	flags.StringVar(&rootFlags.logLevel, "log", "",
		"log level (panic, fatal, error, warn, info, debug, trace)")
	flags.StringVar(&rootFlags.traceFile, "trace", "",
		"record every allocator and cache event into <trace>.sqlite3")
	flags.IntVar(&rootFlags.monitorPort, "monitor", 0,
		"serve the monitor on this port, 0 picks a free port")
}

// Execute adds all child commands to the root command and sets flags
// appropriately.
func Execute() {
	err := rootCmd.Execute()
	if err != nil {
		atexit.Exit(1)
	}

	atexit.Exit(0)
}

func loadConfig() (*config.Config, error) {
	if err := config.LoadDotEnv(rootFlags.envFile); err != nil {
		return nil, err
	}

	cfg, err := config.Load(rootFlags.configFile)
	if err != nil {
		return nil, err
	}

	if rootFlags.logLevel != "" {
		cfg.LogLevel = rootFlags.logLevel
	}

	return cfg, nil
}

func newLogger(cfg *config.Config) (*logrus.Logger, error) {
	level, err := cfg.LogrusLevel()
	if err != nil {
		return nil, err
	}

	logger := logrus.New()
	logger.SetOutput(os.Stderr)
	logger.SetLevel(level)

	return logger, nil
}

// withSimulation builds a simulation from the configuration and the flags,
// runs f on it and terminates it. The simulation is also terminated if the
// program exits while f runs.
func withSimulation(
	cmd *cobra.Command,
	f func(sim *simulation.Simulation) error,
) error {
	sim, err := buildSimulation(cmd)
	if err != nil {
		return err
	}

	atexit.Register(func() {
		if err := sim.Terminate(); err != nil {
			sim.Logger().WithError(err).Error("terminating simulation")
		}
	})

	err = f(sim)

	if termErr := sim.Terminate(); err == nil {
		err = termErr
	}

	return err
}

func buildSimulation(cmd *cobra.Command) (*simulation.Simulation, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}

	logger, err := newLogger(cfg)
	if err != nil {
		return nil, err
	}

	builder := simulation.MakeBuilder().
		WithConfig(cfg).
		WithLogger(logger)

	if rootFlags.traceFile != "" {
		builder = builder.WithTraceFile(rootFlags.traceFile)
	}

	if cmd.Flags().Changed("monitor") {
		builder = builder.WithMonitor(rootFlags.monitorPort)
	}

	return builder.Build()
}
