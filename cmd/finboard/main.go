// Package main is the entry point for the finboard CLI.
//
// finboard can be used as a library (SDK) or run as a standalone binary
// driven by a YAML configuration. This CLI provides the standalone binary.
//
// Usage:
//
//	finboard watch -c config.yaml        # Wait for data, print summary and forecast
//	finboard serve -c config.yaml        # Keep synchronizing and serve the status API
//	finboard mock-backend --warmup 3     # Run a backend that cold-starts
//	finboard validate -c config.yaml     # Validate configuration
//	finboard version                     # Show version info
package main

import (
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"
)

// Version information - set at build time via ldflags.
// Example: go build -ldflags "-X main.version=1.0.0"
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

// rootCmd is the base command when called without subcommands.
var rootCmd = &cobra.Command{
	Use:   "finboard",
	Short: "Data-readiness client for the finance dashboard backend",
	Long: `finboard keeps the finance dashboard's KPI, product and transaction data
in sync with a backend that cold-starts.

While the backend is still connecting to its datastore it answers 202 and
finboard retries at the warm interval. Once every resource holds data or a
terminal error the dashboard is ready and revenue can be forecast.

Quick start:
  1. Run: finboard mock-backend --warmup 3
  2. Create a config file (finboard.yaml)
  3. Run: finboard watch -c finboard.yaml

Example config:
  base_url: http://localhost:1337
  warm_interval: 1500ms
  forecast:
    horizon: 12`,
	SilenceUsage: true,
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		// cobra already prints the error
		os.Exit(1)
	}
}

func main() {
	Execute()
}

// versionCmd prints version information.
var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Long:  `Print the version, commit hash, and build date of this finboard binary.`,
	Run: func(cmd *cobra.Command, args []string) {
		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "finboard %s\n", version)
		fmt.Fprintf(out, "  commit: %s\n", commit)
		fmt.Fprintf(out, "  built:  %s\n", date)
	},
}

func init() {
	rootCmd.PersistentFlags().String("log-level", "info", "log level: debug, info, warn or error")
	rootCmd.AddCommand(versionCmd)
}

// newLogger creates a JSON logger on stderr for CLI use.
func newLogger(level string) (*slog.Logger, error) {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(strings.ToUpper(level))); err != nil {
		return nil, fmt.Errorf("invalid log level %q", level)
	}
	return slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: lvl,
	})), nil
}

// loggerFromFlags builds the logger selected by --log-level.
func loggerFromFlags(cmd *cobra.Command) (*slog.Logger, error) {
	level, _ := cmd.Flags().GetString("log-level")
	return newLogger(level)
}
