// Package mockbackend serves the dashboard's three resources with the
// backend readiness contract: 202 {"message":"loading"} while the datastore
// is "connecting", then 200 with a JSON array. A resource can instead be
// pinned to any terminal status.
//
// It backs the mock-backend command and end-to-end tests.
package mockbackend

import (
	"context"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
)

// Resource names, matching the synchronizer's.
const (
	KPIs         = "kpis"
	Products     = "products"
	Transactions = "transactions"
)

// Paths maps each resource to its route.
var Paths = map[string]string{
	KPIs:         "/kpi/kpis",
	Products:     "/product/products",
	Transactions: "/transaction/transactions",
}

//go:embed fixtures/*.json
var fixtures embed.FS

type resourceState struct {
	warmup   int
	terminal int
	message  string
	requests int
	body     json.RawMessage
}

// Backend is an in-memory implementation of the dashboard backend.
type Backend struct {
	mu        sync.Mutex
	resources map[string]*resourceState
	delay     time.Duration
	logger    *slog.Logger
}

// Option configures a [Backend].
type Option func(*Backend) error

// WithWarmup makes every resource answer 202 for its first n requests.
func WithWarmup(n int) Option {
	return func(b *Backend) error {
		if n < 0 {
			return fmt.Errorf("warmup must not be negative, got %d", n)
		}
		for _, r := range b.resources {
			r.warmup = n
		}
		return nil
	}
}

// WithResourceWarmup overrides the warmup for one resource.
func WithResourceWarmup(name string, n int) Option {
	return func(b *Backend) error {
		r, ok := b.resources[name]
		if !ok {
			return fmt.Errorf("unknown resource %q", name)
		}
		if n < 0 {
			return fmt.Errorf("warmup must not be negative, got %d", n)
		}
		r.warmup = n
		return nil
	}
}

// WithTerminalStatus makes a resource answer code with {"message": ...} once
// its warmup is spent.
func WithTerminalStatus(name string, code int, message string) Option {
	return func(b *Backend) error {
		r, ok := b.resources[name]
		if !ok {
			return fmt.Errorf("unknown resource %q", name)
		}
		if code < 100 || code > 599 {
			return fmt.Errorf("invalid status code %d", code)
		}
		r.terminal = code
		r.message = message
		return nil
	}
}

// WithData replaces a resource's fixture. body must be a JSON array.
func WithData(name string, body json.RawMessage) Option {
	return func(b *Backend) error {
		r, ok := b.resources[name]
		if !ok {
			return fmt.Errorf("unknown resource %q", name)
		}
		var probe []json.RawMessage
		if err := json.Unmarshal(body, &probe); err != nil {
			return fmt.Errorf("data for %q must be a JSON array: %w", name, err)
		}
		r.body = body
		return nil
	}
}

// WithDelay adds latency to every response.
func WithDelay(d time.Duration) Option {
	return func(b *Backend) error {
		if d < 0 {
			return fmt.Errorf("delay must not be negative, got %v", d)
		}
		b.delay = d
		return nil
	}
}

// WithLogger sets the request logger. Defaults to slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(b *Backend) error {
		b.logger = l
		return nil
	}
}

// New creates a [Backend] serving the bundled fixtures.
func New(opts ...Option) (*Backend, error) {
	b := &Backend{resources: make(map[string]*resourceState, len(Paths))}
	for name := range Paths {
		body, err := fixtures.ReadFile("fixtures/" + name + ".json")
		if err != nil {
			return nil, fmt.Errorf("read fixture %s: %w", name, err)
		}
		b.resources[name] = &resourceState{body: body}
	}

	for _, opt := range opts {
		if err := opt(b); err != nil {
			return nil, err
		}
	}

	if b.logger == nil {
		b.logger = slog.Default()
	}
	return b, nil
}

// Handler returns the gin engine serving the backend routes.
func (b *Backend) Handler() http.Handler {
	r := gin.New()
	r.Use(gin.Recovery())

	r.GET("/kpi/", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"route": "kpi root ok"})
	})
	for name, path := range Paths {
		r.GET(path, b.handleResource(name))
	}

	return r
}

func (b *Backend) handleResource(name string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if b.delay > 0 {
			select {
			case <-time.After(b.delay):
			case <-c.Request.Context().Done():
				return
			}
		}

		b.mu.Lock()
		r := b.resources[name]
		r.requests++
		n := r.requests
		warm := n <= r.warmup
		terminal, message, body := r.terminal, r.message, r.body
		b.mu.Unlock()

		switch {
		case warm:
			b.logger.Debug("mock backend cold start", "resource", name, "request", n)
			c.JSON(http.StatusAccepted, gin.H{"message": "loading"})
		case terminal != 0:
			b.logger.Debug("mock backend terminal", "resource", name, "status_code", terminal)
			c.JSON(terminal, gin.H{"message": message})
		default:
			c.Data(http.StatusOK, "application/json; charset=utf-8", body)
		}
	}
}

// Requests returns how many requests a resource has received.
func (b *Backend) Requests(name string) int {
	b.mu.Lock()
	defer b.mu.Unlock()

	if r, ok := b.resources[name]; ok {
		return r.requests
	}
	return 0
}

// SetTerminalStatus pins a resource to code from the next request on.
// A code of 0 restores normal answers.
func (b *Backend) SetTerminalStatus(name string, code int, message string) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	r, ok := b.resources[name]
	if !ok {
		return fmt.Errorf("unknown resource %q", name)
	}
	r.terminal = code
	r.message = message
	return nil
}

// Rewarm makes a resource answer 202 for its next n requests.
func (b *Backend) Rewarm(name string, n int) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	r, ok := b.resources[name]
	if !ok {
		return fmt.Errorf("unknown resource %q", name)
	}
	r.warmup = r.requests + n
	return nil
}

// ListenAndServe serves on addr until ctx is cancelled.
func (b *Backend) ListenAndServe(ctx context.Context, addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to bind to %s: %w", addr, err)
	}

	srv := &http.Server{
		Handler:           b.Handler(),
		BaseContext:       func(_ net.Listener) context.Context { return ctx },
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() { errCh <- srv.Serve(ln) }()

	b.logger.Info("mock backend listening", "addr", ln.Addr().String())

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
