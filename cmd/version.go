package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

// Version is set at link time.
var Version = "dev"

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version of memsim.",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, _ []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "memsim %s\n", Version)
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
