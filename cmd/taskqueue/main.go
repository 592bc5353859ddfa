package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/spf13/cobra"
	clientcmd "github.com/teroku/taskqueue/internal/cmd/client"
	serverrun "github.com/teroku/taskqueue/internal/cmd/server"
	cfgpkg "github.com/teroku/taskqueue/internal/config"
	logpkg "github.com/teroku/taskqueue/pkg/log"
)

// exitConfig is the exit status for configuration errors.
const exitConfig = 2

func main() {
	level, err := logpkg.ParseLevel(os.Getenv("TASKQ_LOG_LEVEL"))
	if err != nil {
		level = logpkg.InfoLevel
	}
	logger := logpkg.NewLogger(
		logpkg.WithLevel(level),
		logpkg.WithFormatter(&logpkg.TextFormatter{}),
		logpkg.WithOutput(logpkg.NewConsoleOutput()),
	)

	rootCmd := newRootCommand()
	if err := rootCmd.Execute(); err != nil {
		if errors.Is(err, cfgpkg.ErrInvalid) {
			logger.Error("invalid configuration", logpkg.Err(err))
			os.Exit(exitConfig)
		}
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:          "taskqueue",
		Short:        "Persistent lease-based task queue",
		Long:         "taskqueue serves named task queues over a one-command-per-connection text protocol.",
		SilenceUsage: true,
	}

	serverCmd := &cobra.Command{Use: "server", Short: "Server commands"}
	serverCmd.AddCommand(newServerStartCommand())
	rootCmd.AddCommand(serverCmd)
	rootCmd.AddCommand(clientcmd.NewRoot(clientcmd.AddrFromEnv))
	return rootCmd
}

func newServerStartCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "start [port] [lease_timeout_minutes] [bind_address]",
		Short:   "Start the task queue server",
		Aliases: []string{"run"},
		Args:    cobra.MaximumNArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := buildConfig(cmd, args)
			if err != nil {
				return err
			}
			ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer cancel()
			if err := serverrun.Run(ctx, serverrun.Options{Config: cfg}); err != nil {
				return fmt.Errorf("server error: %w", err)
			}
			return nil
		},
	}
	f := cmd.Flags()
	f.String("config", os.Getenv("TASKQ_CONFIG"), "JSON config file")
	f.String("env-file", ".env", "Optional .env file loaded before reading TASKQ_* variables")
	f.String("data-dir", "", "Data directory (if not specified, uses OS-specific application data directory)")
	f.String("fsync", "", "Fsync mode: always|interval|never")
	f.Int("fsync-interval-ms", 0, "When --fsync=interval, group-commit window in ms")
	f.String("log-level", "", "Log level: debug|info|warn|error")
	f.String("log-format", "", "Log format: text|json")
	f.String("log-file", "", "Also write logs to this file, rotated by size")
	f.Int("sweep-interval-ms", 0, "Clear expired leases in the background every N ms (0 keeps lazy expiry only)")
	f.String("health-grpc", "", "gRPC health listen address (disabled when empty)")
	f.String("health-http", "", "HTTP health listen address (disabled when empty)")
	return cmd
}

// buildConfig layers defaults, file, env, flags and positional arguments.
func buildConfig(cmd *cobra.Command, args []string) (cfgpkg.Config, error) {
	f := cmd.Flags()
	path, _ := f.GetString("config")
	cfg, err := cfgpkg.Load(path)
	if err != nil {
		return cfgpkg.Config{}, fmt.Errorf("%w: %v", cfgpkg.ErrInvalid, err)
	}
	envFile, _ := f.GetString("env-file")
	if err := cfgpkg.LoadDotEnv(envFile); err != nil {
		return cfgpkg.Config{}, fmt.Errorf("%w: env file: %v", cfgpkg.ErrInvalid, err)
	}
	if err := cfgpkg.FromEnv(&cfg); err != nil {
		return cfgpkg.Config{}, fmt.Errorf("%w: %v", cfgpkg.ErrInvalid, err)
	}

	if f.Changed("data-dir") {
		cfg.DataDir, _ = f.GetString("data-dir")
	}
	if f.Changed("fsync") {
		cfg.Fsync, _ = f.GetString("fsync")
	}
	if f.Changed("fsync-interval-ms") {
		cfg.FsyncIntervalMs, _ = f.GetInt("fsync-interval-ms")
	}
	if f.Changed("log-level") {
		cfg.Log.Level, _ = f.GetString("log-level")
	}
	if f.Changed("log-format") {
		cfg.Log.Format, _ = f.GetString("log-format")
	}
	if f.Changed("log-file") {
		cfg.Log.File, _ = f.GetString("log-file")
	}
	if f.Changed("sweep-interval-ms") {
		cfg.SweepIntervalMs, _ = f.GetInt("sweep-interval-ms")
	}
	if f.Changed("health-grpc") {
		cfg.HealthGRPCAddr, _ = f.GetString("health-grpc")
	}
	if f.Changed("health-http") {
		cfg.HealthHTTPAddr, _ = f.GetString("health-http")
	}

	if len(args) > 0 {
		if cfg.Port, err = strconv.Atoi(args[0]); err != nil {
			return cfgpkg.Config{}, fmt.Errorf("%w: port %q is not an integer", cfgpkg.ErrInvalid, args[0])
		}
	}
	if len(args) > 1 {
		if cfg.LeaseTimeoutMinutes, err = strconv.Atoi(args[1]); err != nil {
			return cfgpkg.Config{}, fmt.Errorf("%w: lease timeout %q is not an integer", cfgpkg.ErrInvalid, args[1])
		}
	}
	if len(args) > 2 {
		cfg.BindAddress = args[2]
	}
	return cfg, cfg.Validate()
}
