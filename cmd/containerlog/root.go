package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/vbonduro/containerlog/internal/config"
	"github.com/vbonduro/containerlog/internal/format"
	"github.com/vbonduro/containerlog/internal/logging"
	"github.com/vbonduro/containerlog/internal/web"
	"github.com/vbonduro/containerlog/internal/web/templates"
)

type contextKey string

const (
	configKey = contextKey("config")
	loggerKey = contextKey("logger")
)

var rootCmd = &cobra.Command{
	Use:   "containerlog",
	Short: "Live dashboard for warehouse container jobs",
	Long:  "Serves the container dashboard: log containers, assign crew and track start and finish times.",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(cmd.Flags())
		if err != nil {
			return err
		}
		logger, cleanup, err := logging.New(cfg.LogLevel, cfg.LogFormat, cfg.LogFile)
		if err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}
		cobra.OnFinalize(cleanup)

		ctx := context.WithValue(cmd.Context(), configKey, cfg)
		ctx = context.WithValue(ctx, loggerKey, logger)
		cmd.SetContext(ctx)
		return nil
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, logger := fromContext(cmd)

		loc, err := cfg.Location()
		if err != nil {
			return err
		}

		b, err := openBackend(cfg, logger)
		if err != nil {
			return err
		}
		defer b.close()

		// Cancel on SIGINT or SIGTERM for graceful shutdown.
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		server := web.NewServer(b.service, templates.FS, format.New(loc), logger)
		if err := server.Run(ctx, cfg.ListenAddr); err != nil {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	},
}

func init() {
	flags := rootCmd.PersistentFlags()
	flags.String("listen", ":8080", "address to serve the dashboard on")
	flags.String("log-level", "info", "set log level (debug, info, warn, error)")
	flags.String("db", "/data/containerlog.db", "SQLite database path")
	flags.String("backend", config.BackendSQLite, "document store backend (sqlite or etcd)")

	rootCmd.AddCommand(crewCmd)
}

func fromContext(cmd *cobra.Command) (*config.Config, *slog.Logger) {
	return cmd.Context().Value(configKey).(*config.Config), cmd.Context().Value(loggerKey).(*slog.Logger)
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintf(os.Stderr, "Execution error: %v\n", err)
		os.Exit(1)
	}
}
