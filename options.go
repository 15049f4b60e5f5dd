package finboard

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/jpalmerr/finboard/forecast"
	"github.com/jpalmerr/finboard/presence"
)

// syncConfig holds mutable state during Synchronizer construction.
type syncConfig struct {
	paths              map[string]string
	warmInterval       time.Duration
	timeout            time.Duration
	headers            map[string]string
	httpClient         *http.Client
	pauseWhenUnfocused bool
	refetchOnFocus     map[string]bool
	refetchOnReconnect map[string]bool
	env                presence.Environment
	listenAddr         string
	logger             *slog.Logger
	callbacks          []func(Snapshot)
	forecastOpts       []forecast.Option
}

func newSyncConfig() *syncConfig {
	return &syncConfig{
		paths: map[string]string{
			ResourceKPIs:         DefaultKPIPath,
			ResourceProducts:     DefaultProductPath,
			ResourceTransactions: DefaultTransactionPath,
		},
		warmInterval:       DefaultWarmInterval,
		timeout:            DefaultTimeout,
		headers:            make(map[string]string),
		pauseWhenUnfocused: true,
		refetchOnFocus:     make(map[string]bool),
		refetchOnReconnect: make(map[string]bool),
	}
}

// Option is a function that configures a [Synchronizer] during construction.
//
// Options return an error if validation fails.
type Option func(*syncConfig) error

// WithWarmInterval sets how often a warming resource is re-fetched while the
// backend answers 202. Defaults to 1500ms.
//
// Returns an error if the duration is zero or negative.
func WithWarmInterval(d time.Duration) Option {
	return func(cfg *syncConfig) error {
		if d <= 0 {
			return errors.New("warm interval must be positive")
		}
		cfg.warmInterval = d
		return nil
	}
}

// WithTimeout sets the per-request transport timeout. A request that exceeds
// it settles the resource with a transport error. Defaults to 10 seconds.
func WithTimeout(d time.Duration) Option {
	return func(cfg *syncConfig) error {
		if d <= 0 {
			return errors.New("timeout must be positive")
		}
		cfg.timeout = d
		return nil
	}
}

// WithHeaders adds HTTP headers to every resource request.
//
// Headers are specified as key-value pairs:
//
//	finboard.WithHeaders("X-Request-Source", "cli")
//
// Returns an error if an odd number of arguments is provided.
func WithHeaders(kvs ...string) Option {
	return func(cfg *syncConfig) error {
		if len(kvs)%2 != 0 {
			return errors.New("headers must be key-value pairs")
		}
		for i := 0; i < len(kvs); i += 2 {
			if kvs[i] == "" {
				return errors.New("header name cannot be empty")
			}
			cfg.headers[kvs[i]] = kvs[i+1]
		}
		return nil
	}
}

// WithHTTPClient sets the HTTP client shared by the three resources.
func WithHTTPClient(hc *http.Client) Option {
	return func(cfg *syncConfig) error {
		if hc == nil {
			return errors.New("http client cannot be nil")
		}
		cfg.httpClient = hc
		return nil
	}
}

// WithResourcePath overrides the path a resource is fetched from, relative to
// the base URL.
func WithResourcePath(name, path string) Option {
	return func(cfg *syncConfig) error {
		if _, ok := cfg.paths[name]; !ok {
			return fmt.Errorf("%w: %q", ErrUnknownResource, name)
		}
		if !strings.HasPrefix(path, "/") {
			return fmt.Errorf("path for %s must start with /, got %q", name, path)
		}
		cfg.paths[name] = path
		return nil
	}
}

// WithPauseWhenUnfocused controls whether warm-retry ticks are skipped while
// the environment is unfocused. Defaults to true.
func WithPauseWhenUnfocused(pause bool) Option {
	return func(cfg *syncConfig) error {
		cfg.pauseWhenUnfocused = pause
		return nil
	}
}

// WithRefetchOnFocus re-fetches the named resources whenever focus is
// regained, even after they settled. With no names it applies to all three.
func WithRefetchOnFocus(names ...string) Option {
	return func(cfg *syncConfig) error {
		return markResources(cfg.paths, cfg.refetchOnFocus, names)
	}
}

// WithRefetchOnReconnect re-fetches the named resources whenever connectivity
// returns, even after they settled. With no names it applies to all three.
func WithRefetchOnReconnect(names ...string) Option {
	return func(cfg *syncConfig) error {
		return markResources(cfg.paths, cfg.refetchOnReconnect, names)
	}
}

func markResources(known map[string]string, set map[string]bool, names []string) error {
	if len(names) == 0 {
		for name := range known {
			set[name] = true
		}
		return nil
	}
	for _, name := range names {
		if _, ok := known[name]; !ok {
			return fmt.Errorf("%w: %q", ErrUnknownResource, name)
		}
		set[name] = true
	}
	return nil
}

// WithEnvironment sets the focus and connectivity source. Defaults to an
// environment that is always focused and never signals.
func WithEnvironment(env presence.Environment) Option {
	return func(cfg *syncConfig) error {
		if env == nil {
			return errors.New("environment cannot be nil")
		}
		cfg.env = env
		return nil
	}
}

// WithListenAddr enables the status API on addr (e.g. ":8080"). Disabled by
// default.
func WithListenAddr(addr string) Option {
	return func(cfg *syncConfig) error {
		if addr == "" {
			return errors.New("listen address cannot be empty")
		}
		cfg.listenAddr = addr
		return nil
	}
}

// WithForecastOptions sets the options [Synchronizer.Forecast] passes to
// [forecast.Forecast].
func WithForecastOptions(opts ...forecast.Option) Option {
	return func(cfg *syncConfig) error {
		cfg.forecastOpts = append(cfg.forecastOpts, opts...)
		return nil
	}
}

// WithLogger sets a custom [slog.Logger]. If not specified, [slog.Default]
// is used.
//
// Returns an error if the logger is nil.
func WithLogger(logger *slog.Logger) Option {
	return func(cfg *syncConfig) error {
		if logger == nil {
			return errors.New("logger cannot be nil")
		}
		cfg.logger = logger
		return nil
	}
}

// WithSnapshotCallback registers a function called with a fresh [Snapshot]
// after every change to any resource.
//
// Callbacks are invoked one at a time in registration order and must not
// block. Panics within callbacks are recovered and logged.
//
// Nil callbacks are silently ignored.
func WithSnapshotCallback(cb func(Snapshot)) Option {
	return func(cfg *syncConfig) error {
		if cb == nil {
			return nil
		}
		cfg.callbacks = append(cfg.callbacks, cb)
		return nil
	}
}
