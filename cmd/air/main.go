// Command air is the CLI for the AIR choreography interpreter: parse and
// print a script's AST, lint it statically, run one hop locally, run a
// local peer-relay network simulation, or serve hops as a daemon.
//
// Grounded in the teacher's cmd/nova/main.go cobra wiring: a root command
// with persistent flags and one subcommand per concern, dispatched via
// cobra.Command.RunE.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var configFile string

func main() {
	rootCmd := &cobra.Command{
		Use:   "air",
		Short: "AIR - distributed choreography script interpreter",
		Long:  "A CLI for parsing, linting, running, and simulating AIR choreography scripts",
	}

	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "Path to config file (optional, flags override)")

	rootCmd.AddCommand(
		astCmd(),
		lintCmd(),
		runCmd(),
		networkCmd(),
		daemonCmd(),
		versionCmd(),
	)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
