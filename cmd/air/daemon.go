package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"google.golang.org/grpc"

	"github.com/oriys/airvm/internal/config"
	"github.com/oriys/airvm/internal/hostrpc"
	"github.com/oriys/airvm/internal/logging"
	"github.com/oriys/airvm/internal/metrics"
	"github.com/oriys/airvm/internal/observability"
	"github.com/oriys/airvm/internal/stub"
)

// daemonCmd runs AIR's host-side call_service bridge as a long-lived
// process: a gRPC server answering internal/hostrpc requests from a
// stub registry, plus a Prometheus metrics endpoint, shut down
// gracefully on SIGINT/SIGTERM. Grounded in cmd/nova/daemon.go's
// config-load -> observability-init -> serve -> graceful-shutdown shape.
func daemonCmd() *cobra.Command {
	var stubPath string

	cmd := &cobra.Command{
		Use:   "daemon",
		Short: "Run the AIR host-RPC bridge daemon",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.DefaultConfig()
			if configFile != "" {
				var err error
				cfg, err = config.LoadFromFile(configFile)
				if err != nil {
					return fmt.Errorf("load config: %w", err)
				}
			}
			config.LoadFromEnv(cfg)

			logging.SetLevelFromString(cfg.Logging.Level)
			logging.InitStructured(cfg.Logging.Format, cfg.Logging.Level)

			ctx := context.Background()
			if err := observability.Init(ctx, observability.Config{
				Enabled:     cfg.Tracing.Enabled,
				Exporter:    cfg.Tracing.Exporter,
				Endpoint:    cfg.Tracing.Endpoint,
				ServiceName: cfg.Tracing.ServiceName,
				SampleRate:  cfg.Tracing.SampleRate,
			}); err != nil {
				return fmt.Errorf("init tracing: %w", err)
			}
			defer observability.Shutdown(context.Background())

			if cfg.Metrics.Enabled {
				metrics.InitPrometheus(cfg.Metrics.Namespace, nil)
				go serveMetrics(cfg.Metrics.Addr)
			}

			reg := stub.NewRegistry()
			if stubPath != "" {
				var err error
				reg, err = stub.ParseFile(stubPath)
				if err != nil {
					return fmt.Errorf("load stub file: %w", err)
				}
			}

			lis, err := net.Listen("tcp", cfg.HostRPC.Addr)
			if err != nil {
				return fmt.Errorf("listen on %s: %w", cfg.HostRPC.Addr, err)
			}

			grpcServer := grpc.NewServer()
			hostrpc.Register(grpcServer, func(serviceID, functionName string, args []json.RawMessage) (int, string) {
				decoded := make([]any, len(args))
				for i, a := range args {
					_ = json.Unmarshal(a, &decoded[i])
				}
				return reg.Call(serviceID, functionName, decoded)
			})

			logging.Op().Info("air daemon listening", "addr", cfg.HostRPC.Addr)
			errCh := make(chan error, 1)
			go func() { errCh <- grpcServer.Serve(lis) }()

			sigCh := make(chan os.Signal, 1)
			signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

			select {
			case err := <-errCh:
				if err != nil {
					return fmt.Errorf("grpc serve: %w", err)
				}
			case <-sigCh:
				logging.Op().Info("shutting down", "grace", cfg.Daemon.ShutdownGrace)
				stopped := make(chan struct{})
				go func() { grpcServer.GracefulStop(); close(stopped) }()
				select {
				case <-stopped:
				case <-time.After(cfg.Daemon.ShutdownGrace):
					grpcServer.Stop()
				}
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&stubPath, "stub", "", "Path to a YAML call_service stub registry (default: echo stub)")
	return cmd
}

func serveMetrics(addr string) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.PrometheusHandler())
	if err := http.ListenAndServe(addr, mux); err != nil {
		logging.Op().Warn("metrics server stopped", "error", err)
	}
}
