package main

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/spf13/cobra"

	"github.com/prometheus/client_golang/prometheus"

	"ccproxy/pkg/cli"
	"ccproxy/pkg/config"
	"ccproxy/pkg/fallback"
	"ccproxy/pkg/manager"
	"ccproxy/pkg/server"
	"ccproxy/pkg/telemetry/logging"
	"ccproxy/pkg/telemetry/metrics"
)

var runFlags struct {
	listenAddress string
	logLevel      string
	dryRun        bool
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Start the proxy server",
	Long: `Start the proxy server with the configured providers.

Examples:
  # Start with the default provider config
  ccproxy run

  # Start with a custom provider config file
  ccproxy run --config /etc/ccproxy/providers.json

  # Override the listen address
  ccproxy run --listen 0.0.0.0:8080

  # Validate config without starting the server
  ccproxy run --dry-run`,
	RunE: runServer,
}

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().StringVarP(&runFlags.listenAddress, "listen", "l", "", "override listen address")
	runCmd.Flags().StringVar(&runFlags.logLevel, "log-level", "", "override log level (debug, info, warn, error)")
	runCmd.Flags().BoolVar(&runFlags.dryRun, "dry-run", false, "validate config without starting the server")
}

func runServer(cmd *cobra.Command, args []string) error {
	if err := config.Initialize(cfgFile); err != nil {
		return cli.NewConfigError(cfgFile, err.Error())
	}
	cfg := config.GetConfig()

	if runFlags.listenAddress != "" {
		cfg.Server.ListenAddress = runFlags.listenAddress
	}
	if runFlags.logLevel != "" {
		cfg.Logging.Level = runFlags.logLevel
	}

	logger, err := newLogger(cfg.Logging)
	if err != nil {
		return cli.NewConfigError("logging", err.Error())
	}
	slog.SetDefault(logger)

	if err := config.ValidateProviderManagerConfig(&cfg.Providers); err != nil {
		return cli.NewConfigError(cfgFile, err.Error())
	}

	if runFlags.dryRun {
		fmt.Println("configuration valid")
		return nil
	}

	logger.Info("providers loaded", "count", len(cfg.Providers.Providers))

	m := metrics.New(prometheus.NewRegistry())

	mgr := manager.New(&cfg.Providers, m, logger)
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Duration(cfg.Server.ShutdownTimeoutSecs)*time.Second)
		defer cancel()
		mgr.Close(shutdownCtx)
	}()
	holder := manager.NewHolder(mgr)

	controller := fallback.New(holder, cfg.TokenLimits.Min, cfg.TokenLimits.Max, logger, m)

	srv := server.New(&cfg.Server, holder, controller, cfgFile, cfg.AnthropicAPIKey, m, logger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		err := config.Watch(ctx, cfgFile, config.DefaultWatchOptions(), func() error {
			pmc, err := config.LoadProviderManagerConfig(cfgFile)
			if err != nil {
				return err
			}
			if err := config.ValidateProviderManagerConfig(pmc); err != nil {
				return err
			}
			oldMgr := holder.Get()
			newMgr := manager.New(pmc, m, logger)
			holder.Swap(newMgr)
			go func() {
				closeCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
				defer cancel()
				if err := oldMgr.Close(closeCtx); err != nil {
					logger.Warn("error closing superseded manager", "error", err)
				}
			}()
			logger.Info("providers reloaded from file change", "count", len(pmc.Providers))
			return nil
		})
		if err != nil {
			logger.Warn("config watcher exited", "error", err)
		}
	}()

	errChan := make(chan error, 1)
	go func() {
		if err := srv.Start(ctx); err != nil {
			errChan <- err
		}
	}()

	fmt.Printf("ccproxy listening on %s\n", cfg.Server.ListenAddress)
	fmt.Printf("health:  http://%s/health\n", cfg.Server.ListenAddress)
	fmt.Printf("metrics: http://%s/metrics\n", cfg.Server.ListenAddress)

	sigChan := cli.WaitForShutdown()
	select {
	case err := <-errChan:
		return cli.NewCommandError("run", err)
	case sig := <-sigChan:
		fmt.Printf("received signal %s, shutting down\n", sig)
		cancel()
		if err := srv.Shutdown(context.Background()); err != nil {
			return cli.NewCommandError("run", err)
		}
		return nil
	}
}

// newLogger builds the process logger via the shared telemetry/logging
// package. "console" is accepted as a LOG_FORMAT value (§ ambient
// logging section) but renders the same as "text": no pretty-console
// slog formatter is part of this codebase's dependency stack.
func newLogger(cfg config.LoggingConfig) (*slog.Logger, error) {
	format := cfg.Format
	if format == "console" {
		format = "text"
	}
	l, err := logging.New(logging.Config{Level: cfg.Level, Format: format})
	if err != nil {
		return nil, err
	}
	return l.Slog(), nil
}
