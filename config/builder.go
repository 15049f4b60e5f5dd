package config

import (
	"sort"

	"github.com/jpalmerr/finboard"
	"github.com/jpalmerr/finboard/forecast"
)

// BuildOptions converts parsed configuration into SDK options for
// [finboard.New]. The base URL is passed separately as cfg.BaseURL.
func BuildOptions(cfg *Config) []finboard.Option {
	opts := []finboard.Option{
		finboard.WithWarmInterval(cfg.WarmInterval.Duration()),
		finboard.WithTimeout(cfg.Timeout.Duration()),
	}

	if cfg.PauseWhenUnfocused != nil {
		opts = append(opts, finboard.WithPauseWhenUnfocused(*cfg.PauseWhenUnfocused))
	}

	if len(cfg.Headers) > 0 {
		opts = append(opts, finboard.WithHeaders(mapToKeyValuePairs(cfg.Headers)...))
	}

	if cfg.Listen != "" {
		opts = append(opts, finboard.WithListenAddr(cfg.Listen))
	}

	for _, name := range cfg.ResourceNames() {
		rc := cfg.Resources[name]
		if rc.Path != "" {
			opts = append(opts, finboard.WithResourcePath(name, rc.Path))
		}
		if rc.RefetchOnFocus {
			opts = append(opts, finboard.WithRefetchOnFocus(name))
		}
		if rc.RefetchOnReconnect {
			opts = append(opts, finboard.WithRefetchOnReconnect(name))
		}
	}

	if p := cfg.Forecast.Precision; p != nil {
		opts = append(opts, finboard.WithForecastOptions(forecast.WithPrecision(int32(*p))))
	}

	return opts
}

// mapToKeyValuePairs converts a map to a sorted slice of key-value pairs.
func mapToKeyValuePairs(m map[string]string) []string {
	// sort keys for deterministic ordering
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	pairs := make([]string, 0, len(m)*2)
	for _, k := range keys {
		pairs = append(pairs, k, m[k])
	}
	return pairs
}
