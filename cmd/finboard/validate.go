package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jpalmerr/finboard/config"
)

// validateCmd validates a config file without contacting the backend.
var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate a config file",
	Long: `Validate a finboard configuration file without contacting the backend.

This command parses the YAML, expands environment variables, and validates
all fields. It's useful for CI/CD pipelines or pre-deployment checks.

Exit codes:
  0 - Config is valid
  1 - Config is invalid (error details printed to stderr)

Example:
  finboard validate -c config.yaml`,
	RunE: runValidate,
}

func init() {
	rootCmd.AddCommand(validateCmd)

	validateCmd.Flags().StringP("config", "c", "", "path to config file (required)")
	_ = validateCmd.MarkFlagRequired("config")
}

func runValidate(cmd *cobra.Command, args []string) error {
	configFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(configFile)
	if err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	listen := cfg.Listen
	if listen == "" {
		listen = "disabled"
	}
	precision := "unrounded"
	if p := cfg.Forecast.Precision; p != nil {
		precision = fmt.Sprintf("%d places", *p)
	}

	fmt.Printf("Config is valid!\n")
	fmt.Printf("  Base URL:      %s\n", cfg.BaseURL)
	fmt.Printf("  Warm interval: %s\n", cfg.WarmInterval.Duration())
	fmt.Printf("  Timeout:       %s\n", cfg.Timeout.Duration())
	fmt.Printf("  Status API:    %s\n", listen)
	fmt.Printf("  Forecast:      %d months, %s\n", cfg.Forecast.HorizonOrDefault(), precision)
	for _, name := range cfg.ResourceNames() {
		rc := cfg.Resources[name]
		path := rc.Path
		if path == "" {
			path = "default path"
		}
		fmt.Printf("  Resource %-13s %s (refetch on focus: %t, on reconnect: %t)\n",
			name+":", path, rc.RefetchOnFocus, rc.RefetchOnReconnect)
	}

	return nil
}
