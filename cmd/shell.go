package cmd

import (
	"github.com/spf13/cobra"

	"github.com/sarchlab/memsim/shell"
	"github.com/sarchlab/memsim/simulation"
)

var shellCmd = &cobra.Command{
	Use:   "shell",
	Short: "Start the interactive shell.",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		return runShell(cmd)
	},
}

func init() {
	rootCmd.AddCommand(shellCmd)
}

func runShell(cmd *cobra.Command) error {
	return withSimulation(cmd, func(sim *simulation.Simulation) error {
		sh := shell.NewShell(sim, cmd.InOrStdin(), cmd.OutOrStdout()).
			WithLogger(sim.Logger()).
			WithInteractive(true)

		return sh.Run(cmd.Context())
	})
}
