package resource

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const (
	// DefaultTimeout bounds a single fetch, including reading the body.
	DefaultTimeout = 10 * time.Second

	maxResponseBodySize = 8 << 20 // 8MB
)

// connection pooling limits shared by the three dashboard resources
const (
	defaultMaxIdleConns        = 20
	defaultMaxIdleConnsPerHost = 6
	defaultMaxConnsPerHost     = 6
	defaultIdleConnTimeout     = 60 * time.Second
)

// NewHTTPClient returns an *http.Client with connection pooling suitable for
// sharing between several resource clients pointing at the same backend.
//
// The client has no global timeout; each fetch applies its own via context.
func NewHTTPClient() *http.Client {
	return &http.Client{
		Transport: &http.Transport{
			Proxy:               http.ProxyFromEnvironment,
			MaxIdleConns:        defaultMaxIdleConns,
			MaxIdleConnsPerHost: defaultMaxIdleConnsPerHost,
			MaxConnsPerHost:     defaultMaxConnsPerHost,
			IdleConnTimeout:     defaultIdleConnTimeout,
		},
	}
}

type clientConfig struct {
	httpClient *http.Client
	timeout    time.Duration
	headers    map[string]string
}

// Option configures a [Client] during construction.
type Option func(*clientConfig) error

// WithTimeout sets the per-fetch transport timeout. Defaults to [DefaultTimeout].
//
// Returns an error if d is zero or negative.
func WithTimeout(d time.Duration) Option {
	return func(cfg *clientConfig) error {
		if d <= 0 {
			return errors.New("timeout must be positive")
		}
		cfg.timeout = d
		return nil
	}
}

// WithHTTPClient makes the Client issue requests through hc, typically one
// returned by [NewHTTPClient] and shared between resources.
func WithHTTPClient(hc *http.Client) Option {
	return func(cfg *clientConfig) error {
		if hc == nil {
			return errors.New("http client cannot be nil")
		}
		cfg.httpClient = hc
		return nil
	}
}

// WithHeaders adds headers sent with every request. Later values for the same
// key replace earlier ones.
func WithHeaders(headers map[string]string) Option {
	return func(cfg *clientConfig) error {
		for k, v := range headers {
			if strings.TrimSpace(k) == "" {
				return errors.New("header name cannot be empty")
			}
			cfg.headers[k] = v
		}
		return nil
	}
}

// Client fetches one backend collection and decodes it into T.
//
// Client is safe for concurrent use. It keeps no state between calls: the
// latest [State] is owned by whoever drives the Client.
type Client[T any] struct {
	name       string
	url        string
	httpClient *http.Client
	timeout    time.Duration
	headers    map[string]string
}

// NewClient creates a [Client] for the collection served at rawURL.
//
// Returns an error if name is empty, rawURL is not an absolute http(s) URL, or
// any option is invalid.
func NewClient[T any](name, rawURL string, opts ...Option) (*Client[T], error) {
	if name == "" {
		return nil, errors.New("resource name cannot be empty")
	}

	parsed, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("invalid URL: %w", err)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return nil, fmt.Errorf("URL scheme must be http or https, got %q", parsed.Scheme)
	}

	cfg := &clientConfig{
		timeout: DefaultTimeout,
		headers: make(map[string]string),
	}
	for _, opt := range opts {
		if err := opt(cfg); err != nil {
			return nil, err
		}
	}
	if cfg.httpClient == nil {
		cfg.httpClient = NewHTTPClient()
	}

	return &Client[T]{
		name:       name,
		url:        rawURL,
		httpClient: cfg.httpClient,
		timeout:    cfg.timeout,
		headers:    cfg.headers,
	}, nil
}

// Name returns the resource name used in logs and snapshots.
func (c *Client[T]) Name() string {
	return c.name
}

// URL returns the collection URL.
func (c *Client[T]) URL() string {
	return c.url
}

// Fetch issues one GET request and returns the resulting [State].
//
// Fetch never returns an error separately; failures are reported in
// State.Err. The returned state always has IsFetching false.
func (c *Client[T]) Fetch(ctx context.Context) State[T] {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.url, nil)
	if err != nil {
		return transportFailure[T](fmt.Errorf("failed to create request: %w", err))
	}
	req.Header.Set("Accept", "application/json")
	for key, value := range c.headers {
		req.Header.Set(key, value)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return transportFailure[T](fmt.Errorf("request failed: %w", err))
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBodySize+1))
	if err != nil {
		return transportFailure[T](fmt.Errorf("failed to read response body: %w", err))
	}
	if len(body) > maxResponseBodySize {
		return transportFailure[T](fmt.Errorf("response body exceeds %d bytes", maxResponseBodySize))
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 || resp.StatusCode == StatusColdStart {
		return State[T]{Err: &ErrorInfo{
			StatusCode: resp.StatusCode,
			Kind:       classifyStatus(resp.StatusCode),
			Message:    errorMessage(body, resp.StatusCode),
		}}
	}

	var data T
	if err := json.Unmarshal(body, &data); err != nil {
		return transportFailure[T](fmt.Errorf("failed to decode response body: %w", err))
	}
	return State[T]{Data: &data}
}

// Close releases idle connections held by the underlying transport.
// Safe to call multiple times and on a nil Client.
func (c *Client[T]) Close() {
	if c == nil || c.httpClient == nil {
		return
	}
	c.httpClient.CloseIdleConnections()
}

func transportFailure[T any](err error) State[T] {
	return State[T]{Err: &ErrorInfo{
		Kind:    KindTransport,
		Message: err.Error(),
	}}
}

// errorMessage prefers the backend's {"message": "..."} body and falls back to
// the status text.
func errorMessage(body []byte, code int) string {
	var payload struct {
		Message string `json:"message"`
	}
	if err := json.Unmarshal(body, &payload); err == nil && payload.Message != "" {
		return payload.Message
	}
	if text := http.StatusText(code); text != "" {
		return text
	}
	return fmt.Sprintf("unexpected status %d", code)
}
