package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/oriys/airvm/internal/air/ast"
	"github.com/oriys/airvm/internal/air/parser"
)

// astCmd reproduces the AquaVM wasm_bindgen `ast` export recovered from
// original_source/stepper/src/wasm_bindgen.rs: parse a script and print
// its AST as indented JSON.
func astCmd() *cobra.Command {
	var scriptPath string

	cmd := &cobra.Command{
		Use:   "ast",
		Short: "Parse a script and print its AST as JSON",
		RunE: func(cmd *cobra.Command, args []string) error {
			script, err := readScript(scriptPath, args)
			if err != nil {
				return err
			}

			instr, err := parser.Parse(script)
			if err != nil {
				return fmt.Errorf("parse error: %w", err)
			}

			data, err := json.MarshalIndent(ast.ToJSON(instr), "", "  ")
			if err != nil {
				return fmt.Errorf("marshal ast: %w", err)
			}
			fmt.Println(string(data))
			return nil
		},
	}

	cmd.Flags().StringVarP(&scriptPath, "script", "s", "", "Path to an AIR script file (or pass the script text as the sole argument)")
	return cmd
}

// readScript resolves a script either from the --script flag's file path
// or from the first positional argument, matching cmd/nova's pattern of
// accepting either a flag or a positional where both are unambiguous.
func readScript(path string, args []string) (string, error) {
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return "", fmt.Errorf("read script file: %w", err)
		}
		return string(data), nil
	}
	if len(args) > 0 {
		return args[0], nil
	}
	data, err := os.ReadFile("/dev/stdin")
	if err != nil {
		return "", fmt.Errorf("no script provided: pass --script, a positional argument, or pipe to stdin")
	}
	return string(data), nil
}
