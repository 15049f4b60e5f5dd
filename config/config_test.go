package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestParse_MinimalConfig(t *testing.T) {
	yaml := `
base_url: http://localhost:1337
`
	cfg, err := Parse([]byte(yaml))
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}

	// check defaults applied
	if cfg.WarmInterval.Duration() != 1500*time.Millisecond {
		t.Errorf("WarmInterval = %v, want 1.5s", cfg.WarmInterval.Duration())
	}
	if cfg.Timeout.Duration() != 10*time.Second {
		t.Errorf("Timeout = %v, want 10s", cfg.Timeout.Duration())
	}
	if cfg.PauseWhenUnfocused != nil {
		t.Errorf("PauseWhenUnfocused = %v, want nil", *cfg.PauseWhenUnfocused)
	}
	if cfg.Forecast.HorizonOrDefault() != 12 {
		t.Errorf("Forecast.HorizonOrDefault() = %d, want 12", cfg.Forecast.HorizonOrDefault())
	}
	if cfg.Listen != "" {
		t.Errorf("Listen = %q, want empty", cfg.Listen)
	}
}

func TestParse_FullConfig(t *testing.T) {
	yaml := `
base_url: https://finance.example.com
warm_interval: 2s
timeout: 5s
pause_when_unfocused: false
listen: ":9090"
headers:
  X-Client: finboard
resources:
  kpis:
    path: /v2/kpi/kpis
    refetch_on_focus: true
    refetch_on_reconnect: true
  transactions:
    refetch_on_reconnect: true
forecast:
  horizon: 6
  precision: 2
`
	cfg, err := Parse([]byte(yaml))
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}

	if cfg.BaseURL != "https://finance.example.com" {
		t.Errorf("BaseURL = %q", cfg.BaseURL)
	}
	if cfg.WarmInterval.Duration() != 2*time.Second {
		t.Errorf("WarmInterval = %v, want 2s", cfg.WarmInterval.Duration())
	}
	if cfg.Timeout.Duration() != 5*time.Second {
		t.Errorf("Timeout = %v, want 5s", cfg.Timeout.Duration())
	}
	if cfg.PauseWhenUnfocused == nil || *cfg.PauseWhenUnfocused {
		t.Errorf("PauseWhenUnfocused = %v, want false", cfg.PauseWhenUnfocused)
	}
	if cfg.Listen != ":9090" {
		t.Errorf("Listen = %q, want :9090", cfg.Listen)
	}
	if cfg.Headers["X-Client"] != "finboard" {
		t.Errorf("Headers[X-Client] = %q", cfg.Headers["X-Client"])
	}

	kpis := cfg.Resources["kpis"]
	if kpis.Path != "/v2/kpi/kpis" || !kpis.RefetchOnFocus || !kpis.RefetchOnReconnect {
		t.Errorf("Resources[kpis] = %+v", kpis)
	}
	if got := cfg.ResourceNames(); strings.Join(got, ",") != "kpis,transactions" {
		t.Errorf("ResourceNames() = %v", got)
	}

	if cfg.Forecast.HorizonOrDefault() != 6 {
		t.Errorf("Forecast.HorizonOrDefault() = %d, want 6", cfg.Forecast.HorizonOrDefault())
	}
	if cfg.Forecast.Precision == nil || *cfg.Forecast.Precision != 2 {
		t.Errorf("Forecast.Precision = %v, want 2", cfg.Forecast.Precision)
	}
}

func TestParse_ZeroHorizonIsKept(t *testing.T) {
	cfg, err := Parse([]byte("base_url: http://x\nforecast:\n  horizon: 0\n"))
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if cfg.Forecast.HorizonOrDefault() != 0 {
		t.Errorf("HorizonOrDefault() = %d, want 0", cfg.Forecast.HorizonOrDefault())
	}
}

func TestParse_EnvVarExpansion(t *testing.T) {
	t.Setenv("FINBOARD_TEST_BACKEND", "http://backend.internal:1337")
	t.Setenv("FINBOARD_TEST_TOKEN", "secret")

	yaml := `
base_url: ${FINBOARD_TEST_BACKEND}
listen: ${FINBOARD_TEST_LISTEN:-127.0.0.1:8080}
headers:
  X-Token: ${FINBOARD_TEST_TOKEN}
`
	cfg, err := Parse([]byte(yaml))
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}

	if cfg.BaseURL != "http://backend.internal:1337" {
		t.Errorf("BaseURL = %q", cfg.BaseURL)
	}
	if cfg.Listen != "127.0.0.1:8080" {
		t.Errorf("Listen = %q, want default", cfg.Listen)
	}
	if cfg.Headers["X-Token"] != "secret" {
		t.Errorf("Headers[X-Token] = %q", cfg.Headers["X-Token"])
	}
}

func TestParse_Errors(t *testing.T) {
	tests := []struct {
		name    string
		yaml    string
		wantErr string
	}{
		{
			name:    "invalid yaml",
			yaml:    "base_url: [",
			wantErr: "failed to parse YAML",
		},
		{
			name:    "missing base_url",
			yaml:    "timeout: 5s",
			wantErr: "base_url is required",
		},
		{
			name:    "unset env var",
			yaml:    "base_url: ${FINBOARD_DEFINITELY_UNSET_VAR}",
			wantErr: "not set",
		},
		{
			name:    "no scheme",
			yaml:    "base_url: localhost:1337",
			wantErr: "scheme",
		},
		{
			name:    "bad scheme",
			yaml:    "base_url: ftp://example.com",
			wantErr: "scheme must be http or https",
		},
		{
			name:    "invalid duration",
			yaml:    "base_url: http://x\nwarm_interval: soon",
			wantErr: "invalid duration",
		},
		{
			name:    "warm interval too short",
			yaml:    "base_url: http://x\nwarm_interval: 10ms",
			wantErr: "warm_interval must be between",
		},
		{
			name:    "warm interval too long",
			yaml:    "base_url: http://x\nwarm_interval: 2m",
			wantErr: "warm_interval must be between",
		},
		{
			name:    "timeout too short",
			yaml:    "base_url: http://x\ntimeout: 1ms",
			wantErr: "timeout must be at least",
		},
		{
			name:    "unknown resource",
			yaml:    "base_url: http://x\nresources:\n  invoices:\n    path: /inv",
			wantErr: "resources[invoices]: unknown resource",
		},
		{
			name:    "relative path",
			yaml:    "base_url: http://x\nresources:\n  kpis:\n    path: kpi/kpis",
			wantErr: "path must start with /",
		},
		{
			name:    "negative horizon",
			yaml:    "base_url: http://x\nforecast:\n  horizon: -1",
			wantErr: "forecast.horizon",
		},
		{
			name:    "precision too large",
			yaml:    "base_url: http://x\nforecast:\n  precision: 11",
			wantErr: "forecast.precision",
		},
		{
			name:    "header env unset",
			yaml:    "base_url: http://x\nheaders:\n  X-Token: ${FINBOARD_DEFINITELY_UNSET_VAR}",
			wantErr: "headers[X-Token]",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.yaml))
			if err == nil {
				t.Fatal("Parse() error = nil, want error")
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Parse() error = %q, want containing %q", err.Error(), tt.wantErr)
			}
		})
	}
}

func TestExpandEnvVars(t *testing.T) {
	t.Setenv("FINBOARD_TEST_HOST", "example.com")

	tests := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{"plain", "plain", false},
		{"https://${FINBOARD_TEST_HOST}/x", "https://example.com/x", false},
		{"${FINBOARD_TEST_MISSING:-fallback}", "fallback", false},
		{"${FINBOARD_TEST_MISSING:-}", "", false},
		{"${FINBOARD_TEST_MISSING}", "", true},
	}

	for _, tt := range tests {
		got, err := expandEnvVars(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("expandEnvVars(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			continue
		}
		if !tt.wantErr && got != tt.want {
			t.Errorf("expandEnvVars(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "finboard.yaml")
	if err := os.WriteFile(path, []byte("base_url: http://localhost:1337\n"), 0o600); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.BaseURL != "http://localhost:1337" {
		t.Errorf("BaseURL = %q", cfg.BaseURL)
	}

	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("Load(missing) error = nil, want error")
	}
}
