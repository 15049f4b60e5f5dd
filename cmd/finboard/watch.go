package main

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os/signal"
	"strconv"
	"sync"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/jpalmerr/finboard"
	"github.com/jpalmerr/finboard/config"
	"github.com/jpalmerr/finboard/forecast"
	"github.com/jpalmerr/finboard/resource"
)

// watchCmd waits for the dashboard to become ready and prints a report.
var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Wait for the dashboard data and print a revenue forecast",
	Long: `Fetch the dashboard resources, print each readiness transition, and once
nothing is warming print a revenue summary and forecast.

Resources answering 202 are retried at the warm interval; a terminal error
is reported and not retried.

Example:
  finboard watch -c config.yaml
  finboard watch -c config.yaml --horizon 6
  finboard watch -c config.yaml --follow`,
	RunE: runWatch,
}

func init() {
	rootCmd.AddCommand(watchCmd)

	watchCmd.Flags().StringP("config", "c", "", "path to config file (required)")
	watchCmd.Flags().Int("horizon", 0, "months to forecast, overrides the config file")
	watchCmd.Flags().Bool("follow", false, "keep printing transitions after the report")
	_ = watchCmd.MarkFlagRequired("config")
}

func runWatch(cmd *cobra.Command, args []string) error {
	logger, err := loggerFromFlags(cmd)
	if err != nil {
		return err
	}

	configFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(configFile)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	horizon := cfg.Forecast.HorizonOrDefault()
	if cmd.Flags().Changed("horizon") {
		horizon, _ = cmd.Flags().GetInt("horizon")
	}
	if horizon < 0 {
		return errors.New("horizon cannot be negative")
	}
	follow, _ := cmd.Flags().GetBool("follow")

	out := &lockedWriter{w: cmd.OutOrStdout()}
	transitions := newTransitionPrinter(out)

	opts := append(config.BuildOptions(cfg),
		finboard.WithLogger(logger),
		finboard.WithSnapshotCallback(transitions.observe),
	)
	synchronizer, err := finboard.New(cfg.BaseURL, opts...)
	if err != nil {
		return fmt.Errorf("failed to create synchronizer: %w", err)
	}

	sigCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithCancel(sigCtx)
	defer cancel()

	errChan := make(chan error, 1)
	go func() {
		errChan <- synchronizer.Run(ctx)
		cancel()
	}()

	if err := synchronizer.WaitReady(ctx); err != nil {
		// interrupted, or Run failed before the dashboard was ready
		cancel()
		if runErr := <-errChan; runErr != nil {
			return fmt.Errorf("synchronizer error: %w", runErr)
		}
		return nil
	}

	var report bytes.Buffer
	printReport(&report, synchronizer.Snapshot(), synchronizer.Forecast, horizon)
	_, _ = out.Write(report.Bytes())

	if !follow {
		cancel()
	}
	return awaitShutdown(ctx, errChan, func(msg string, args ...any) {
		logger.Warn(msg, args...)
	})
}

// lockedWriter serializes writes from snapshot callbacks and the report.
type lockedWriter struct {
	mu sync.Mutex
	w  io.Writer
}

func (l *lockedWriter) Write(p []byte) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.w.Write(p)
}

// transitionPrinter prints a line whenever a resource's readiness changes.
// Snapshot callbacks are serialized, so its state needs no locking.
type transitionPrinter struct {
	out   io.Writer
	last  map[string]string
	ready bool
}

func newTransitionPrinter(out io.Writer) *transitionPrinter {
	return &transitionPrinter{out: out, last: make(map[string]string)}
}

func (p *transitionPrinter) observe(snap finboard.Snapshot) {
	for _, r := range resourceRows(snap) {
		if p.last[r.name] == r.status {
			continue
		}
		p.last[r.name] = r.status
		fmt.Fprintf(p.out, "%-13s %s\n", r.name, r.styled())
	}
	if !snap.OverallWarming && !p.ready {
		p.ready = true
		fmt.Fprintln(p.out, readyStyle.Render("dashboard ready"))
	}
}

// resourceRow is one resource's readiness summary.
type resourceRow struct {
	name    string
	status  string
	fetches int
	class   string
}

func (r resourceRow) styled() string {
	switch r.class {
	case "ready":
		return readyStyle.Render(r.status)
	case "warming":
		return warmStyle.Render(r.status)
	case "failed":
		return failStyle.Render(r.status)
	}
	return dimStyle.Render(r.status)
}

func resourceRows(snap finboard.Snapshot) []resourceRow {
	return []resourceRow{
		rowOf(snap.KPIs, lenOf(snap.KPIs.State.Data)),
		rowOf(snap.Products, lenOf(snap.Products.State.Data)),
		rowOf(snap.Transactions, lenOf(snap.Transactions.State.Data)),
	}
}

func lenOf[T any](data *[]T) int {
	if data == nil {
		return 0
	}
	return len(*data)
}

func rowOf[T any](v finboard.ResourceView[T], records int) resourceRow {
	row := resourceRow{name: v.Name, fetches: v.Fetches}
	switch {
	case v.Ready():
		row.class, row.status = "ready", fmt.Sprintf("ready (%d records)", records)
	case v.State.Err != nil:
		row.class, row.status = "failed", "failed: "+describeError(v.State.Err)
	case v.Phase == finboard.PhaseWarming:
		row.class, row.status = "warming", fmt.Sprintf("warming (retry every %s)", v.Interval)
	default:
		row.class, row.status = "pending", "pending"
	}
	return row
}

func describeError(e *resource.ErrorInfo) string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("status %d: %s", e.StatusCode, e.Message)
	}
	return e.Message
}

// printReport writes the resource table, the revenue summary and the
// forecast. Sections whose data is missing are reported instead of printed.
func printReport(w io.Writer, snap finboard.Snapshot, forecastFn func(int) (forecast.Result, error), horizon int) {
	fmt.Fprintln(w)
	fmt.Fprintln(w, renderTitle("FINBOARD "+snap.SessionID))
	fmt.Fprintln(w)

	rows := resourceRows(snap)
	statusRows := make([][]string, len(rows))
	for i, r := range rows {
		statusRows[i] = []string{r.name, r.status, strconv.Itoa(r.fetches)}
	}
	fmt.Fprint(w, renderTable(table{
		title:   "Resources",
		headers: []string{"Resource", "Status", "Fetches"},
		rows:    statusRows,
	}))

	if !snap.KPIs.Ready() {
		fmt.Fprintln(w, "\n  revenue unavailable: KPI data did not load")
		return
	}
	kpis := *snap.KPIs.State.Data

	profit := finboard.RevenueProfit(kpis)
	revenue := make([]float64, len(profit))
	revenueRows := make([][]string, len(profit))
	for i, p := range profit {
		revenue[i] = p.Revenue
		revenueRows[i] = []string{p.Month, formatMoney(p.Revenue), formatMoney(p.Profit.InexactFloat64())}
	}
	fmt.Fprintln(w)
	fmt.Fprint(w, renderTable(table{
		title:   "Monthly revenue " + renderSparkline(revenue),
		headers: []string{"Month", "Revenue", "Profit"},
		rows:    revenueRows,
	}))

	res, err := forecastFn(horizon)
	if err != nil {
		fmt.Fprintf(w, "\n  forecast unavailable: %v\n", err)
		return
	}

	fmt.Fprintf(w, "\n  trend: %s/month from %s, R² %.3f\n",
		formatMoney(res.Model.Slope), formatMoney(res.Model.Intercept), res.Model.R2)

	predictions := res.Predictions()
	if len(predictions) == 0 {
		return
	}
	forecastRows := make([][]string, len(predictions))
	for i, row := range predictions {
		forecastRows[i] = []string{row.Label, strconv.Itoa(row.Index), formatMoney(*row.Predicted)}
	}
	fmt.Fprint(w, renderTable(table{
		title:   fmt.Sprintf("Forecast (%d months)", len(predictions)),
		headers: []string{"Month", "Index", "Predicted"},
		rows:    forecastRows,
	}))
}
