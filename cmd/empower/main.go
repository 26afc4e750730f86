// Command empower runs the SD-RAN controller: the southbound device
// servers, the northbound REST API, the energy feed ingest and the
// Prometheus and NATS exporters, all around one event loop.
package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	goruntime "runtime"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/5g-empower/empower-runtime-sub001/config"
	"github.com/5g-empower/empower-runtime-sub001/controller"
	"github.com/5g-empower/empower-runtime-sub001/metric"
	"github.com/5g-empower/empower-runtime-sub001/persistence"
	"github.com/5g-empower/empower-runtime-sub001/service"
)

// Build information, overridden with -ldflags.
var (
	Version   = "2.0.0"
	BuildTime = "dev"
)

const appName = "empower"

func main() {
	defer func() {
		if r := recover(); r != nil {
			buf := make([]byte, 4096)
			n := goruntime.Stack(buf, false)
			_, _ = fmt.Fprintf(os.Stderr, "PANIC: %v\nStack trace:\n%s\n", r, string(buf[:n]))
			os.Exit(2)
		}
	}()

	if err := newRootCommand(os.Stdout).Execute(); err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		os.Exit(1)
	}
}

// newRootCommand runs the controller when called without a subcommand.
func newRootCommand(out io.Writer) *cobra.Command {
	cli := &CLIConfig{}
	runE := func(cmd *cobra.Command, _ []string) error {
		if err := validateFlags(cli); err != nil {
			return err
		}
		cmd.SilenceUsage = true
		return run(cmd.Context(), cli, out)
	}
	cmd := &cobra.Command{
		Use:   filepath.Base(os.Args[0]),
		Short: "EmPOWER SD-RAN controller",
		Args:  cobra.NoArgs,
		// Errors are printed by main.
		SilenceErrors: true,
		RunE:          runE,
	}
	bindFlags(cmd.PersistentFlags(), cli)
	cmd.AddCommand(
		&cobra.Command{
			Use:   "run",
			Short: "Run the controller",
			Args:  cobra.NoArgs,
			RunE:  runE,
		},
		newVersion(out),
	)
	return cmd
}

func newVersion(out io.Writer) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show the controller version",
		Args:  cobra.NoArgs,
		Run: func(_ *cobra.Command, _ []string) {
			_, _ = fmt.Fprintf(out, "%s version %s (build %s, %s)\n", appName, Version, BuildTime, goruntime.Version())
		},
	}
}

// loadConfig layers path, when set, over the defaults and applies the
// environment overrides.
func loadConfig(path string) (*config.Config, error) {
	loader := config.NewLoader()
	loader.EnableValidation(true)
	if path != "" {
		loader.AddLayer(path)
	}
	cfg, err := loader.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	return cfg, nil
}

func openStore(ctx context.Context, cfg config.StorageConfig, logger *slog.Logger) (persistence.Session, error) {
	switch cfg.Driver {
	case config.StorageSQLite:
		return persistence.OpenSQLite(ctx, cfg.Path, logger)
	default:
		return persistence.NewMemory(), nil
	}
}

func run(ctx context.Context, cli *CLIConfig, out io.Writer) error {
	if ctx == nil {
		ctx = context.Background()
	}
	logger := setupLogger(out, cli.LogLevel, cli.LogFormat)
	slog.SetDefault(logger)

	cfg, err := loadConfig(cli.ConfigPath)
	if err != nil {
		return err
	}
	if cli.Validate {
		logger.Info("Configuration is valid", "config_path", cli.ConfigPath)
		return nil
	}
	logger.Info("Starting EmPOWER runtime", "build_time", BuildTime, "config_path", cli.ConfigPath)

	store, err := openStore(ctx, cfg.Storage, logger)
	if err != nil {
		return fmt.Errorf("open storage: %w", err)
	}
	defer func() {
		if err := store.Close(); err != nil {
			logger.Warn("Closing storage failed", "error", err)
		}
	}()

	metricsRegistry := metric.NewMetricsRegistry()
	ctrl, err := controller.New(store,
		controller.WithLogger(logger),
		controller.WithMetrics(metricsRegistry),
		controller.WithLoopQueue(cfg.Runtime.LoopQueue),
		controller.WithAdmin(cfg.Admin.Username, cfg.Admin.Password),
	)
	if err != nil {
		return fmt.Errorf("create controller: %w", err)
	}

	signalCtx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := ctrl.Start(signalCtx); err != nil {
		return fmt.Errorf("start controller: %w", err)
	}
	defer func() {
		if err := ctrl.Stop(cli.ShutdownTimeout); err != nil {
			logger.Error("Stopping controller failed", "error", err)
		}
	}()

	registry := service.NewServiceRegistry()
	if err := service.RegisterAll(registry); err != nil {
		return fmt.Errorf("register services: %w", err)
	}
	manager := service.NewServiceManager(registry, service.WithLogger(logger))
	deps := &service.Dependencies{
		Config:          cfg,
		Controller:      ctrl,
		MetricsRegistry: metricsRegistry,
		Logger:          logger,
		Health:          manager.Monitor(),
	}
	if err := manager.Configure(cfg, deps); err != nil {
		return fmt.Errorf("configure services: %w", err)
	}
	manager.Monitor().Register("controller", ctrl.Health)

	if err := manager.StartAll(signalCtx); err != nil {
		_ = manager.StopAll(cli.ShutdownTimeout)
		return fmt.Errorf("start services: %w", err)
	}
	logger.Info("EmPOWER runtime started", "services", manager.Names())

	<-signalCtx.Done()
	logger.Info("Received shutdown signal")

	if err := manager.StopAll(cli.ShutdownTimeout); err != nil {
		return fmt.Errorf("graceful shutdown failed: %w", err)
	}
	logger.Info("EmPOWER runtime shutdown complete")
	return nil
}
