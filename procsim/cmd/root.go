// Package cmd provides the command-line interface for procsim.
package cmd

import (
	"github.com/spf13/cobra"
	"github.com/tebeka/atexit"
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "procsim",
	Short: "procsim runs process-oriented discrete-event simulations.",
	Long: `procsim runs process-oriented discrete-event simulations. ` +
		`Scenarios are described in YAML files; without a file, the built-in ` +
		`round-robin scenario runs.`,
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
