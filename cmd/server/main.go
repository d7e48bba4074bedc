package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
	"google.golang.org/grpc"

	"github.com/rl1809/digital-kanban/internal/adapter/handler"
	"github.com/rl1809/digital-kanban/internal/config"
	"github.com/rl1809/digital-kanban/internal/core/domain"
	"github.com/rl1809/digital-kanban/internal/metrics"
)

var configPath string

func main() {
	if err := newRootCmd().Execute(); err != nil {
		log.WithError(err).Fatal("command failed")
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "kanban",
		Short:         "Digital kanban workflow engine",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVarP(&configPath, "config", "c", "", "path to a YAML config file")

	root.AddCommand(serveCmd(), workflowsCmd())
	return root
}

func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	if err := config.ConfigureLogging(cfg.Logging); err != nil {
		return nil, err
	}
	return cfg, nil
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP and gRPC servers",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return serve(ctx, cfg)
		},
	}
}

func serve(ctx context.Context, cfg *config.Config) (err error) {
	a, err := buildApp(ctx, cfg)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := a.Close(); closeErr != nil {
			log.WithError(closeErr).Error("failed to close connections")
		}
		log.Info("connections closed")
	}()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	metrics.Register(reg)

	g, ctx := errgroup.WithContext(ctx)

	if cfg.Server.GRPCAddr != "" {
		grpcServer := grpc.NewServer()
		handler.RegisterKanbanServer(grpcServer, handler.NewGRPCHandler(a.kanbans, a.workflows))

		lis, err := net.Listen("tcp", cfg.Server.GRPCAddr)
		if err != nil {
			return fmt.Errorf("failed to listen: %w", err)
		}

		g.Go(func() error {
			log.WithField("addr", cfg.Server.GRPCAddr).Info("gRPC server listening")
			return grpcServer.Serve(lis)
		})
		g.Go(func() error {
			<-ctx.Done()
			grpcServer.GracefulStop()
			log.Info("gRPC server stopped")
			return nil
		})
	}

	if cfg.Server.HTTPAddr != "" {
		mux := http.NewServeMux()
		handler.NewHTTPHandler(a.kanbans, a.containers, a.workflows, a.jobs, a.orders).Register(mux)
		mux.Handle("GET /metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))

		httpServer := &http.Server{
			Addr:    cfg.Server.HTTPAddr,
			Handler: mux,
		}

		g.Go(func() error {
			log.WithField("addr", cfg.Server.HTTPAddr).Info("HTTP server listening")
			if err := httpServer.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		})
		g.Go(func() error {
			<-ctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
			defer cancel()
			if err := httpServer.Shutdown(shutdownCtx); err != nil {
				return fmt.Errorf("http shutdown: %w", err)
			}
			log.Info("HTTP server stopped")
			return nil
		})
	}

	log.Info("kanban service started")
	return g.Wait()
}

func workflowsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "workflows",
		Short: "Inspect and run workflows without starting the servers",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List the configured workflows",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			workflows, err := config.LoadWorkflows(cfg.Workflows.File)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			for _, wf := range workflows {
				fmt.Fprintf(out, "%s\t%s\tactive=%t\tsteps=%d\n", wf.ID, wf.Name, wf.Active, len(wf.Steps))
			}
			return nil
		},
	})

	var inputJSON string
	run := &cobra.Command{
		Use:   "run <workflow-id>",
		Short: "Execute a workflow once against the configured backends",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}

			var input domain.WorkflowInput
			if inputJSON != "" {
				if err := json.Unmarshal([]byte(inputJSON), &input); err != nil {
					return fmt.Errorf("invalid --input: %w", err)
				}
			}

			a, err := buildApp(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer a.Close()

			result, runErr := a.workflows.ExecuteWorkflow(cmd.Context(), args[0], input)
			if result != nil {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				if err := enc.Encode(result); err != nil {
					return err
				}
			}
			return runErr
		},
	}
	run.Flags().StringVar(&inputJSON, "input", "", `runtime input as JSON, e.g. '{"partNumber":"PART-001","quantity":50}'`)
	cmd.AddCommand(run)

	return cmd
}
