package cmd

import (
	"bufio"
	"bytes"
	"os"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/sarchlab/memsim/shell"
	"github.com/sarchlab/memsim/simulation"
)

var runCmd = &cobra.Command{
	Use:   "run <script>",
	Short: "Run the commands of a script file.",
	Long: `Run executes a file of shell commands, one per line, without ` +
		`prompting. "init cache" uses the configured cache levels.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runScript(cmd, args[0])
	},
}

func init() {
	rootCmd.AddCommand(runCmd)
}

func runScript(cmd *cobra.Command, path string) error {
	script, err := os.ReadFile(path)
	if err != nil {
		return errors.Wrap(err, "reading script")
	}

	return withSimulation(cmd, func(sim *simulation.Simulation) error {
		sh := shell.NewShell(sim, bytes.NewReader(script), cmd.OutOrStdout()).
			WithLogger(sim.Logger())

		if m := sim.Monitor(); m != nil {
			bar := m.CreateProgressBar(path, countLines(script))
			defer m.CompleteProgressBar(bar)

			sh = sh.WithProgressBar(bar)
		}

		return sh.Run(cmd.Context())
	})
}

func countLines(script []byte) uint64 {
	var n uint64

	scanner := bufio.NewScanner(bytes.NewReader(script))
	for scanner.Scan() {
		n++
	}

	return n
}
