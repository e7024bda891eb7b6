package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/oriys/airvm/internal/air/lint"
	"github.com/oriys/airvm/internal/air/parser"
)

// lintCmd exposes internal/air/lint's structural validator, catching a
// subset of spec.md §7's execution errors statically before a script is
// ever run against a peer network.
func lintCmd() *cobra.Command {
	var scriptPath string

	cmd := &cobra.Command{
		Use:   "lint",
		Short: "Statically validate a script's structure",
		RunE: func(cmd *cobra.Command, args []string) error {
			script, err := readScript(scriptPath, args)
			if err != nil {
				return err
			}

			instr, err := parser.Parse(script)
			if err != nil {
				return fmt.Errorf("parse error: %w", err)
			}

			diags := lint.Check(instr)
			if len(diags) == 0 {
				fmt.Println("no findings")
				return nil
			}
			errCount := 0
			for _, d := range diags {
				fmt.Printf("[%s] %s\n", d.Severity, d.Message)
				if d.Severity == lint.SeverityError {
					errCount++
				}
			}
			if errCount > 0 {
				return fmt.Errorf("%d lint error(s)", errCount)
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&scriptPath, "script", "s", "", "Path to an AIR script file (or pass the script text as the sole argument)")
	return cmd
}
