package main

import (
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "sitewright",
	Short: "LLM-backed website editing coordinator",
	Long: `Sitewright turns natural-language editing requests into reviewed
code changes. A coordinator routes each task to file-type specialists
(templates, scripts, styles, config), budgets the context it sends them,
resolves conflicting proposals, gates the result through structural and
model review, and remembers outcomes to inform future tasks.`,
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(memoryCmd)
	rootCmd.AddCommand(rulesCmd)
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(versionCmd)
}
