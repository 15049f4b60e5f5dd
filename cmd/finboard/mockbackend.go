package main

import (
	"context"
	"fmt"
	"os/signal"
	"strconv"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/jpalmerr/finboard/internal/mockbackend"
)

// mockBackendCmd runs an in-memory backend that honours the readiness
// contract.
var mockBackendCmd = &cobra.Command{
	Use:   "mock-backend",
	Short: "Run a local backend that cold-starts",
	Long: `Run an in-memory backend serving the KPI, product and transaction routes.

Each resource answers 202 {"message":"loading"} for its first --warmup
requests and then 200 with bundled fixture data. --fail pins a resource to a
terminal status once its warmup is spent.

Example:
  finboard mock-backend --warmup 3
  finboard mock-backend --addr :1337 --fail products=500
  finboard mock-backend --fail "kpis=503:maintenance window"`,
	RunE: runMockBackend,
}

func init() {
	rootCmd.AddCommand(mockBackendCmd)

	mockBackendCmd.Flags().String("addr", ":1337", "address to listen on")
	mockBackendCmd.Flags().Int("warmup", 2, "requests answered with 202 before data")
	mockBackendCmd.Flags().StringArray("fail", nil, "resource=code[:message] terminal status (repeatable)")
	mockBackendCmd.Flags().Duration("delay", 0, "latency added to every response")
}

func runMockBackend(cmd *cobra.Command, args []string) error {
	logger, err := loggerFromFlags(cmd)
	if err != nil {
		return err
	}

	addr, _ := cmd.Flags().GetString("addr")
	warmup, _ := cmd.Flags().GetInt("warmup")
	failures, _ := cmd.Flags().GetStringArray("fail")
	delay, _ := cmd.Flags().GetDuration("delay")

	opts := []mockbackend.Option{
		mockbackend.WithWarmup(warmup),
		mockbackend.WithDelay(delay),
		mockbackend.WithLogger(logger),
	}
	for _, f := range failures {
		name, code, message, err := parseFailure(f)
		if err != nil {
			return err
		}
		opts = append(opts, mockbackend.WithTerminalStatus(name, code, message))
	}

	backend, err := mockbackend.New(opts...)
	if err != nil {
		return fmt.Errorf("failed to create mock backend: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	return backend.ListenAndServe(ctx, addr)
}

// parseFailure parses "resource=code" or "resource=code:message". The
// message defaults to the status text.
func parseFailure(s string) (name string, code int, message string, err error) {
	name, rest, ok := strings.Cut(s, "=")
	if !ok || name == "" || rest == "" {
		return "", 0, "", fmt.Errorf("invalid --fail %q: expected resource=code[:message]", s)
	}
	if _, known := mockbackend.Paths[name]; !known {
		return "", 0, "", fmt.Errorf("invalid --fail %q: unknown resource %q", s, name)
	}

	codeStr, message, _ := strings.Cut(rest, ":")
	code, err = strconv.Atoi(codeStr)
	if err != nil {
		return "", 0, "", fmt.Errorf("invalid --fail %q: status code must be a number", s)
	}
	if message == "" {
		message = fmt.Sprintf("status %d", code)
	}
	return name, code, message, nil
}
