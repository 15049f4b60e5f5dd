package main

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jpalmerr/finboard"
	"github.com/jpalmerr/finboard/forecast"
	"github.com/jpalmerr/finboard/internal/mockbackend"
	"github.com/jpalmerr/finboard/resource"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func startBackend(t *testing.T, opts ...mockbackend.Option) string {
	t.Helper()
	opts = append([]mockbackend.Option{
		mockbackend.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
	}, opts...)
	b, err := mockbackend.New(opts...)
	require.NoError(t, err)

	ts := httptest.NewServer(b.Handler())
	t.Cleanup(ts.Close)
	return ts.URL
}

// executeWatchCmd runs watch against baseURL and returns what it printed.
func executeWatchCmd(t *testing.T, baseURL string, horizon int) (string, error) {
	t.Helper()
	configPath := writeConfig(t, fmt.Sprintf("base_url: %s\nwarm_interval: 100ms\ntimeout: 2s\n", baseURL))

	var buf bytes.Buffer
	rootCmd.SetOut(&buf)
	t.Cleanup(func() { rootCmd.SetOut(nil) })

	rootCmd.SetArgs([]string{
		"watch", "-c", configPath,
		"--horizon", fmt.Sprint(horizon),
		"--follow=false",
		"--log-level", "error",
	})

	done := make(chan error, 1)
	go func() { done <- rootCmd.Execute() }()

	select {
	case err := <-done:
		return buf.String(), err
	case <-time.After(10 * time.Second):
		t.Fatal("watch did not return")
		return "", nil
	}
}

// TestWatch_ColdStartThenReport verifies that watch prints the warming
// transition, waits for data, and then prints the revenue and forecast
// tables.
func TestWatch_ColdStartThenReport(t *testing.T) {
	baseURL := startBackend(t, mockbackend.WithWarmup(1))

	output, err := executeWatchCmd(t, baseURL, 3)
	require.NoError(t, err)

	for _, phrase := range []string{
		"warming (retry every 100ms)",
		"ready (1 records)",
		"dashboard ready",
		"Monthly revenue",
		"Jan",
		"Forecast (3 months)",
		"trend:",
	} {
		assert.Contains(t, output, phrase)
	}
	assert.Less(t, strings.Index(output, "warming"), strings.Index(output, "dashboard ready"))
}

// TestWatch_TerminalErrorIsReported verifies that a resource failing with a
// terminal status is reported while the rest of the report still prints.
func TestWatch_TerminalErrorIsReported(t *testing.T) {
	baseURL := startBackend(t, mockbackend.WithTerminalStatus(mockbackend.Products, 500, "boom"))

	output, err := executeWatchCmd(t, baseURL, 2)
	require.NoError(t, err)

	assert.Contains(t, output, "failed: status 500: boom")
	assert.Contains(t, output, "dashboard ready")
	assert.Contains(t, output, "Forecast (2 months)")
}

// TestWatch_ZeroHorizon verifies that a zero horizon prints the trend
// without a forecast table.
func TestWatch_ZeroHorizon(t *testing.T) {
	baseURL := startBackend(t)

	output, err := executeWatchCmd(t, baseURL, 0)
	require.NoError(t, err)

	assert.Contains(t, output, "trend:")
	assert.NotContains(t, output, "Forecast (")
}

func TestPrintReport_KPIsUnavailable(t *testing.T) {
	snap := finboard.Snapshot{
		SessionID: "s1",
		KPIs: finboard.ResourceView[[]finboard.KPI]{
			Name:  finboard.ResourceKPIs,
			State: resource.State[[]finboard.KPI]{Err: &resource.ErrorInfo{StatusCode: 404, Kind: resource.KindTerminalHTTP, Message: "not found"}},
		},
		Products:     finboard.ResourceView[[]finboard.Product]{Name: finboard.ResourceProducts},
		Transactions: finboard.ResourceView[[]finboard.Transaction]{Name: finboard.ResourceTransactions},
	}

	called := false
	fn := func(int) (forecast.Result, error) {
		called = true
		return forecast.Result{}, errors.New("unexpected")
	}

	var buf bytes.Buffer
	printReport(&buf, snap, fn, 3)

	out := buf.String()
	assert.Contains(t, out, "failed: status 404: not found")
	assert.Contains(t, out, "pending")
	assert.Contains(t, out, "revenue unavailable")
	assert.False(t, called)
}

func TestPrintReport_ForecastError(t *testing.T) {
	kpis := []finboard.KPI{{MonthlyData: []finboard.Month{{Month: "january", Revenue: 100, Expenses: 40}}}}
	snap := finboard.Snapshot{
		KPIs: finboard.ResourceView[[]finboard.KPI]{
			Name:  finboard.ResourceKPIs,
			State: resource.State[[]finboard.KPI]{Data: &kpis},
		},
	}
	fn := func(int) (forecast.Result, error) {
		return forecast.Result{}, &forecast.InsufficientDataError{Points: 1}
	}

	var buf bytes.Buffer
	printReport(&buf, snap, fn, 3)

	out := buf.String()
	assert.Contains(t, out, "$100.00")
	assert.Contains(t, out, "$60.00")
	assert.Contains(t, out, "forecast unavailable")
}

func TestTransitionPrinter(t *testing.T) {
	var buf bytes.Buffer
	p := newTransitionPrinter(&buf)

	warming := finboard.Snapshot{
		KPIs:           finboard.ResourceView[[]finboard.KPI]{Name: "kpis", Phase: finboard.PhaseWarming, Interval: 1500 * time.Millisecond},
		Products:       finboard.ResourceView[[]finboard.Product]{Name: "products"},
		Transactions:   finboard.ResourceView[[]finboard.Transaction]{Name: "transactions"},
		OverallWarming: true,
	}
	p.observe(warming)
	p.observe(warming)

	out := buf.String()
	assert.Equal(t, 1, strings.Count(out, "warming (retry every 1.5s)"))
	assert.Equal(t, 1, strings.Count(out, "products"))
	assert.NotContains(t, out, "dashboard ready")

	products := []finboard.Product{{ID: "p1"}}
	ready := warming
	ready.KPIs.Phase = finboard.PhaseSettled
	ready.KPIs.State = resource.State[[]finboard.KPI]{Err: &resource.ErrorInfo{Kind: resource.KindTransport, Message: "connection refused"}}
	ready.Products.State = resource.State[[]finboard.Product]{Data: &products}
	ready.Transactions.State = resource.State[[]finboard.Transaction]{Err: &resource.ErrorInfo{StatusCode: 503, Kind: resource.KindTerminalHTTP, Message: "down"}}
	ready.OverallWarming = false
	p.observe(ready)
	p.observe(ready)

	out = buf.String()
	assert.Contains(t, out, "failed: connection refused")
	assert.Contains(t, out, "ready (1 records)")
	assert.Contains(t, out, "failed: status 503: down")
	assert.Equal(t, 1, strings.Count(out, "dashboard ready"))
}

func TestParseFailure(t *testing.T) {
	tests := []struct {
		in      string
		name    string
		code    int
		message string
		wantErr string
	}{
		{in: "products=500", name: "products", code: 500, message: "status 500"},
		{in: "kpis=503:maintenance window", name: "kpis", code: 503, message: "maintenance window"},
		{in: "products", wantErr: "expected resource=code"},
		{in: "=500", wantErr: "expected resource=code"},
		{in: "invoices=500", wantErr: "unknown resource"},
		{in: "kpis=abc", wantErr: "must be a number"},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			name, code, message, err := parseFailure(tt.in)
			if tt.wantErr != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.name, name)
			assert.Equal(t, tt.code, code)
			assert.Equal(t, tt.message, message)
		})
	}
}

func TestFormatMoney(t *testing.T) {
	tests := map[float64]string{
		0:           "$0.00",
		15000:       "$15,000.00",
		1234567.891: "$1,234,567.89",
		999.5:       "$999.50",
		-2500.25:    "-$2,500.25",
	}
	for in, want := range tests {
		assert.Equal(t, want, formatMoney(in), "formatMoney(%v)", in)
	}
}

func TestRenderSparkline(t *testing.T) {
	assert.Equal(t, "", renderSparkline(nil))
	assert.Equal(t, "▁▁▁", renderSparkline([]float64{5, 5, 5}))
	assert.Equal(t, "▁█", renderSparkline([]float64{1, 2}))
}

func TestNewLogger(t *testing.T) {
	for _, level := range []string{"debug", "info", "WARN", "error"} {
		_, err := newLogger(level)
		assert.NoError(t, err, level)
	}
	_, err := newLogger("verbose")
	assert.Error(t, err)
}
