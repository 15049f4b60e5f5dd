// Package config provides YAML configuration parsing for finboard.
//
// This package enables running the synchronizer as a standalone binary with a
// configuration file, as an alternative to the programmatic SDK approach.
//
// Example configuration:
//
//	base_url: ${FINBOARD_BACKEND:-http://localhost:1337}
//	warm_interval: 1500ms
//	timeout: 10s
//	listen: ":8080"
//
//	headers:
//	  X-Client: finboard
//
//	resources:
//	  kpis:
//	    refetch_on_focus: true
//	    refetch_on_reconnect: true
//	  products:
//	    path: /product/products
//
//	forecast:
//	  horizon: 12
//	  precision: 2
package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"regexp"
	"sort"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	// minWarmInterval keeps a misconfigured dashboard from hammering a
	// backend that is still starting.
	minWarmInterval = 100 * time.Millisecond
	maxWarmInterval = time.Minute

	minTimeout = 100 * time.Millisecond

	defaultHorizon = 12
	maxHorizon     = 120
	maxPrecision   = 10
)

// knownResources lists the resource keys accepted under resources.
var knownResources = []string{"kpis", "products", "transactions"}

// Config is the root configuration structure for finboard.
//
// It maps directly to the YAML configuration file structure.
// Use [Load] or [Parse] to create a Config from YAML.
type Config struct {
	// BaseURL is the backend's base URL. Required.
	// Supports environment variable substitution: ${VAR} or ${VAR:-default}
	BaseURL string `yaml:"base_url"`

	// WarmInterval is the retry interval while a resource is warming.
	// Defaults to 1500ms.
	WarmInterval Duration `yaml:"warm_interval"`

	// Timeout is the per-request transport timeout. Defaults to 10s.
	Timeout Duration `yaml:"timeout"`

	// PauseWhenUnfocused skips warm retries while unfocused. Defaults to true.
	PauseWhenUnfocused *bool `yaml:"pause_when_unfocused"`

	// Listen enables the status API on this address. Empty disables it.
	Listen string `yaml:"listen"`

	// Headers are custom HTTP headers sent with every request.
	// Values support environment variable substitution.
	Headers map[string]string `yaml:"headers"`

	// Resources holds per-resource settings keyed by resource name.
	Resources map[string]ResourceConfig `yaml:"resources"`

	Forecast ForecastConfig `yaml:"forecast"`
}

// ResourceConfig holds settings for one resource.
type ResourceConfig struct {
	// Path overrides the resource path, relative to base_url.
	Path string `yaml:"path"`

	// RefetchOnFocus re-fetches when focus returns, even once settled.
	RefetchOnFocus bool `yaml:"refetch_on_focus"`

	// RefetchOnReconnect re-fetches when connectivity returns, even once
	// settled.
	RefetchOnReconnect bool `yaml:"refetch_on_reconnect"`
}

// ForecastConfig holds revenue forecast settings.
type ForecastConfig struct {
	// Horizon is how many months to project. Defaults to 12.
	Horizon *int `yaml:"horizon"`

	// Precision rounds results to this many decimal places. Unrounded when
	// unset.
	Precision *int `yaml:"precision"`
}

// HorizonOrDefault returns the configured horizon, or 12.
func (f ForecastConfig) HorizonOrDefault() int {
	if f.Horizon == nil {
		return defaultHorizon
	}
	return *f.Horizon
}

// Duration wraps time.Duration for YAML unmarshalling.
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler for Duration.
func (d *Duration) UnmarshalYAML(node *yaml.Node) error {
	var s string
	if err := node.Decode(&s); err != nil {
		return err
	}

	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}

	*d = Duration(parsed)
	return nil
}

// Duration returns the underlying time.Duration value.
func (d Duration) Duration() time.Duration {
	return time.Duration(d)
}

// envVarPattern matches ${VAR} and ${VAR:-default} patterns.
// Group 1: variable name
// Group 2: the ":-default" part (if present, indicates a default was specified)
// Group 3: the default value (may be empty for ${VAR:-})
var envVarPattern = regexp.MustCompile(`\$\{([^}:]+)(:-([^}]*))?\}`)

// expandEnvVars replaces ${VAR} and ${VAR:-default} patterns with environment values.
func expandEnvVars(s string) (string, error) {
	var firstErr error

	result := envVarPattern.ReplaceAllStringFunc(s, func(match string) string {
		if firstErr != nil {
			return match
		}

		submatches := envVarPattern.FindStringSubmatch(match)
		if len(submatches) < 2 {
			return match
		}

		varName := submatches[1]
		hasDefault := len(submatches) > 2 && submatches[2] != ""
		defaultVal := ""
		if hasDefault && len(submatches) > 3 {
			defaultVal = submatches[3]
		}

		value, exists := os.LookupEnv(varName)
		if !exists {
			if hasDefault {
				return defaultVal
			}
			firstErr = fmt.Errorf("environment variable %q is not set", varName)
			return match
		}
		return value
	})

	if firstErr != nil {
		return "", firstErr
	}
	return result, nil
}

// Load reads and parses a YAML configuration file.
//
// Environment variables in the file are expanded before parsing.
// Returns an error if the file cannot be read or parsed.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	return Parse(data)
}

// Parse parses YAML configuration data.
//
// Environment variables are expanded in base_url, listen and header values.
// Defaults are applied for warm_interval (1500ms) and timeout (10s).
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if cfg.WarmInterval == 0 {
		cfg.WarmInterval = Duration(1500 * time.Millisecond)
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = Duration(10 * time.Second)
	}

	if err := cfg.expandAndValidate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// expandAndValidate expands environment variables and validates the config.
func (c *Config) expandAndValidate() error {
	if c.BaseURL == "" {
		return errors.New("base_url is required")
	}
	expanded, err := expandEnvVars(c.BaseURL)
	if err != nil {
		return fmt.Errorf("base_url: %w", err)
	}
	c.BaseURL = expanded

	parsedURL, err := url.Parse(c.BaseURL)
	if err != nil {
		return fmt.Errorf("invalid base_url: %w", err)
	}
	if parsedURL.Scheme == "" {
		return errors.New("base_url must have a scheme (http:// or https://)")
	}
	if parsedURL.Scheme != "http" && parsedURL.Scheme != "https" {
		return fmt.Errorf("base_url scheme must be http or https, got %q", parsedURL.Scheme)
	}

	if w := c.WarmInterval.Duration(); w < minWarmInterval || w > maxWarmInterval {
		return fmt.Errorf("warm_interval must be between %s and %s, got %s", minWarmInterval, maxWarmInterval, w)
	}
	if t := c.Timeout.Duration(); t < minTimeout {
		return fmt.Errorf("timeout must be at least %s, got %s", minTimeout, t)
	}

	if c.Listen != "" {
		expanded, err := expandEnvVars(c.Listen)
		if err != nil {
			return fmt.Errorf("listen: %w", err)
		}
		c.Listen = expanded
	}

	for k, v := range c.Headers {
		if strings.TrimSpace(k) == "" {
			return errors.New("headers: name cannot be empty")
		}
		expanded, err := expandEnvVars(v)
		if err != nil {
			return fmt.Errorf("headers[%s]: %w", k, err)
		}
		c.Headers[k] = expanded
	}

	for _, name := range c.ResourceNames() {
		if !isKnownResource(name) {
			return fmt.Errorf("resources[%s]: unknown resource (expected one of %s)", name, strings.Join(knownResources, ", "))
		}
		rc := c.Resources[name]
		if rc.Path != "" && !strings.HasPrefix(rc.Path, "/") {
			return fmt.Errorf("resources[%s]: path must start with /, got %q", name, rc.Path)
		}
	}

	if h := c.Forecast.HorizonOrDefault(); h < 0 || h > maxHorizon {
		return fmt.Errorf("forecast.horizon must be between 0 and %d, got %d", maxHorizon, h)
	}
	if p := c.Forecast.Precision; p != nil && (*p < 0 || *p > maxPrecision) {
		return fmt.Errorf("forecast.precision must be between 0 and %d, got %d", maxPrecision, *p)
	}

	return nil
}

// ResourceNames returns the configured resource keys in sorted order.
func (c *Config) ResourceNames() []string {
	names := make([]string, 0, len(c.Resources))
	for name := range c.Resources {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func isKnownResource(name string) bool {
	for _, known := range knownResources {
		if name == known {
			return true
		}
	}
	return false
}
