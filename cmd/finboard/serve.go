package main

import (
	"context"
	"errors"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/jpalmerr/finboard"
	"github.com/jpalmerr/finboard/config"
)

const (
	shutdownTimeout = 10 * time.Second
)

// serveCmd keeps the synchronizer running and serves the status API.
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Synchronize continuously and serve the status API",
	Long: `Start the synchronizer and the status API.

The command will:
  - Load configuration from the specified YAML file
  - Fetch the three dashboard resources, retrying while the backend warms up
  - Serve /api/dashboard, /api/forecast, /api/refetch and /api/sse

The server runs until interrupted (Ctrl+C) or receives SIGTERM.

Example:
  finboard serve -c config.yaml
  finboard serve -c config.yaml --listen :9090`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().StringP("config", "c", "", "path to config file (required)")
	serveCmd.Flags().String("listen", "", "status API address, overrides the config file")
	_ = serveCmd.MarkFlagRequired("config")
}

func runServe(cmd *cobra.Command, args []string) error {
	logger, err := loggerFromFlags(cmd)
	if err != nil {
		return err
	}

	configFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(configFile)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if listen, _ := cmd.Flags().GetString("listen"); listen != "" {
		cfg.Listen = listen
	}
	if cfg.Listen == "" {
		return errors.New("no status API address: set listen in the config or pass --listen")
	}

	logger.Info("config loaded",
		"base_url", cfg.BaseURL,
		"warm_interval", cfg.WarmInterval.Duration().String(),
		"listen", cfg.Listen,
	)

	opts := append(config.BuildOptions(cfg), finboard.WithLogger(logger))
	synchronizer, err := finboard.New(cfg.BaseURL, opts...)
	if err != nil {
		return fmt.Errorf("failed to create synchronizer: %w", err)
	}

	// cancel on SIGINT/SIGTERM
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	errChan := make(chan error, 1)
	go func() {
		errChan <- synchronizer.Run(ctx)
	}()

	return awaitShutdown(ctx, errChan, func(msg string, args ...any) {
		logger.Warn(msg, args...)
	})
}

// awaitShutdown waits for Run to return, bounding the wait once ctx is
// cancelled.
func awaitShutdown(ctx context.Context, errChan <-chan error, warn func(string, ...any)) error {
	select {
	case err := <-errChan:
		if err != nil {
			return fmt.Errorf("synchronizer error: %w", err)
		}
		return nil

	case <-ctx.Done():
		select {
		case err := <-errChan:
			if err != nil {
				return fmt.Errorf("synchronizer error: %w", err)
			}
			return nil
		case <-time.After(shutdownTimeout):
			warn("shutdown timed out",
				"timeout", shutdownTimeout.String(),
				"action", "forcing exit",
			)
			return nil
		}
	}
}
