package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jpalmerr/finboard"
	"github.com/jpalmerr/finboard/forecast"
	"github.com/jpalmerr/finboard/internal/mockbackend"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// backend that answers 202 three times per resource before serving data
	backend, err := mockbackend.New(mockbackend.WithWarmup(3))
	if err != nil {
		slog.Error("failed to create mock backend", "error", err)
		os.Exit(1)
	}
	go func() {
		if err := backend.ListenAndServe(ctx, "127.0.0.1:9999"); err != nil {
			slog.Error("mock backend error", "error", err)
		}
	}()
	time.Sleep(100 * time.Millisecond)

	sync, err := finboard.New("http://127.0.0.1:9999",
		finboard.WithWarmInterval(500*time.Millisecond),
		finboard.WithListenAddr(":8080"),
		finboard.WithForecastOptions(forecast.WithPrecision(2)),
		finboard.WithSnapshotCallback(func(s finboard.Snapshot) {
			fmt.Printf("  kpis=%-8s products=%-8s transactions=%-8s warming=%t\n",
				s.KPIs.Phase, s.Products.Phase, s.Transactions.Phase, s.OverallWarming)
		}),
	)
	if err != nil {
		slog.Error("failed to create synchronizer", "error", err)
		os.Exit(1)
	}

	fmt.Println()
	fmt.Println("  ╔═══════════════════════════════════════════════════════╗")
	fmt.Println("  ║                                                       ║")
	fmt.Println("  ║   finboard demo                                       ║")
	fmt.Println("  ║                                                       ║")
	fmt.Println("  ║   Status API: http://localhost:8080/api/dashboard     ║")
	fmt.Println("  ║   Live:       http://localhost:8080/api/sse           ║")
	fmt.Println("  ║                                                       ║")
	fmt.Println("  ║   Press Ctrl+C to stop                                ║")
	fmt.Println("  ║                                                       ║")
	fmt.Println("  ╚═══════════════════════════════════════════════════════╝")
	fmt.Println()

	go func() {
		if err := sync.WaitReady(ctx); err != nil {
			return
		}
		res, err := sync.Forecast(6)
		if err != nil {
			slog.Error("forecast failed", "error", err)
			return
		}
		fmt.Printf("\n  revenue trend: %+.2f/month (R² %.3f)\n", res.Model.Slope, res.Model.R2)
		for _, row := range res.Predictions() {
			fmt.Printf("    %s  %12.2f\n", row.Label, *row.Predicted)
		}
	}()

	if err := sync.Run(ctx); err != nil {
		slog.Error("synchronizer error", "error", err)
		os.Exit(1)
	}
}
