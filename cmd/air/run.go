package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/oriys/airvm/internal/air/interpreter"
	"github.com/oriys/airvm/internal/stub"
)

// runCmd executes one hop locally: parse the script, decode the two input
// traces, merge and walk them, and print the resulting outcome — the same
// (init_peer_id, script, prev_trace, current_trace) -> outcome contract
// spec.md §6 describes as the invocation ABI, driven from argv instead of
// a host-language binding.
func runCmd() *cobra.Command {
	var (
		scriptPath    string
		prevTracePath string
		currTracePath string
		initPeerID    string
		currentPeerID string
		stubPath      string
	)

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run one hop of a script locally",
		RunE: func(cmd *cobra.Command, args []string) error {
			script, err := readScript(scriptPath, args)
			if err != nil {
				return err
			}

			prevTrace, err := readTraceFile(prevTracePath)
			if err != nil {
				return fmt.Errorf("read prev trace: %w", err)
			}
			currTrace, err := readTraceFile(currTracePath)
			if err != nil {
				return fmt.Errorf("read current trace: %w", err)
			}

			reg := stub.NewRegistry()
			if stubPath != "" {
				reg, err = stub.ParseFile(stubPath)
				if err != nil {
					return fmt.Errorf("load stub file: %w", err)
				}
			}

			outcome := interpreter.Run(script, prevTrace, currTrace, initPeerID, currentPeerID, reg.Call, interpreter.Options{})

			fmt.Printf("ret_code: %d\n", outcome.RetCode)
			if outcome.ErrorMessage != "" {
				fmt.Printf("error: %s\n", outcome.ErrorMessage)
			}
			fmt.Printf("next_peer_pks: %v\n", outcome.NextPeerPKs)
			fmt.Printf("trace: %s\n", string(outcome.Data))

			if outcome.RetCode != interpreter.RetOK {
				os.Exit(outcome.RetCode)
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&scriptPath, "script", "s", "", "Path to an AIR script file (or pass the script text as the sole argument)")
	cmd.Flags().StringVar(&prevTracePath, "prev-trace", "", "Path to the previous peer's trace JSON file (default: empty trace)")
	cmd.Flags().StringVar(&currTracePath, "current-trace", "", "Path to this peer's own replayed trace JSON file (default: empty trace)")
	cmd.Flags().StringVar(&initPeerID, "init-peer", "", "init_peer_id bound for %init_peer_id% resolution")
	cmd.Flags().StringVar(&currentPeerID, "current-peer", "", "current_peer_id this hop executes as")
	cmd.Flags().StringVar(&stubPath, "stub", "", "Path to a YAML call_service stub registry (default: echo stub)")

	return cmd
}

func readTraceFile(path string) ([]byte, error) {
	if path == "" {
		return []byte("[]"), nil
	}
	return os.ReadFile(path)
}
