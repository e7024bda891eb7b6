package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/oriys/airvm/internal/air/parser"
	"github.com/oriys/airvm/internal/network"
	"github.com/oriys/airvm/internal/stub"
)

// networkCmd runs internal/network's redis-backed peer-relay simulator
// locally: seed a script instance at init-peer and let the listed peers
// relay hops among themselves until nothing is left to deliver.
func networkCmd() *cobra.Command {
	var (
		scriptPath string
		redisAddr  string
		peers      []string
		initPeerID string
		stubPath   string
	)

	cmd := &cobra.Command{
		Use:   "network",
		Short: "Simulate a script choreography across a local peer network",
		RunE: func(cmd *cobra.Command, args []string) error {
			scriptText, err := readScript(scriptPath, args)
			if err != nil {
				return err
			}
			instr, err := parser.Parse(scriptText)
			if err != nil {
				return fmt.Errorf("parse error: %w", err)
			}
			if len(peers) == 0 {
				return fmt.Errorf("at least one --peer is required")
			}
			if initPeerID == "" {
				initPeerID = peers[0]
			}

			reg := stub.NewRegistry()
			if stubPath != "" {
				reg, err = stub.ParseFile(stubPath)
				if err != nil {
					return fmt.Errorf("load stub file: %w", err)
				}
			}

			sim, err := network.New(network.Config{RedisAddr: redisAddr}, scriptText, instr, reg.Call)
			if err != nil {
				return fmt.Errorf("connect to redis: %w", err)
			}
			defer sim.Close()

			ctx := context.Background()
			if err := sim.Seed(ctx, initPeerID); err != nil {
				return fmt.Errorf("seed network: %w", err)
			}

			traces, err := sim.Run(ctx, peers)
			if err != nil {
				return fmt.Errorf("run simulation: %w", err)
			}
			for _, p := range peers {
				fmt.Printf("%s: %s\n", p, string(traces[p]))
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&scriptPath, "script", "s", "", "Path to an AIR script file (or pass the script text as the sole argument)")
	cmd.Flags().StringVar(&redisAddr, "redis", "localhost:6379", "Redis address backing the simulated inboxes")
	cmd.Flags().StringSliceVar(&peers, "peer", nil, "Peer id to run in the simulation (repeatable)")
	cmd.Flags().StringVar(&initPeerID, "init-peer", "", "init_peer_id for this script instance (default: first --peer)")
	cmd.Flags().StringVar(&stubPath, "stub", "", "Path to a YAML call_service stub registry (default: echo stub)")

	return cmd
}
