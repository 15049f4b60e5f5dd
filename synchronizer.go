package finboard

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/jpalmerr/finboard/forecast"
	"github.com/jpalmerr/finboard/internal/poller"
	"github.com/jpalmerr/finboard/internal/server"
	"github.com/jpalmerr/finboard/internal/store"
	"github.com/jpalmerr/finboard/resource"
)

// Resource names.
const (
	ResourceKPIs         = "kpis"
	ResourceProducts     = "products"
	ResourceTransactions = "transactions"
)

// Default resource paths, relative to the base URL.
const (
	DefaultKPIPath         = "/kpi/kpis"
	DefaultProductPath     = "/product/products"
	DefaultTransactionPath = "/transaction/transactions"
)

const (
	// DefaultWarmInterval is the retry interval while a resource is warming.
	DefaultWarmInterval = poller.DefaultWarmInterval

	// DefaultTimeout is the per-request transport timeout.
	DefaultTimeout = resource.DefaultTimeout
)

var (
	// ErrNotReady is returned by [Synchronizer.Forecast] before KPI data has
	// arrived.
	ErrNotReady = server.ErrNotReady

	// ErrUnknownResource is returned for a resource name other than
	// kpis, products or transactions.
	ErrUnknownResource = server.ErrUnknownResource

	// ErrAlreadyRunning is returned by [Synchronizer.Run] when called more
	// than once.
	ErrAlreadyRunning = errors.New("synchronizer already running")
)

// Synchronizer keeps a consistent view of the dashboard's three backend
// resources while the backend warms up.
//
// Each resource is driven by its own poller: fetched once on start, re-fetched
// at the warm interval while the backend answers 202, and left alone once it
// holds data or a terminal error. [Synchronizer.Snapshot] combines the three
// into one view with an overall warming flag.
//
// The typical lifecycle is:
//
//	sync, err := finboard.New("http://localhost:1337")
//	if err != nil {
//	    return err
//	}
//
//	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
//	defer cancel()
//
//	go sync.Run(ctx) // blocks until ctx is cancelled
//	if err := sync.WaitReady(ctx); err != nil {
//	    return err
//	}
//	snap := sync.Snapshot()
type Synchronizer struct {
	sessionID    string
	baseURL      string
	logger       *slog.Logger
	callbacks    []func(Snapshot)
	forecastOpts []forecast.Option

	kpis         *poller.Poller[[]KPI]
	products     *poller.Poller[[]Product]
	transactions *poller.Poller[[]Transaction]
	clients      []interface{ Close() }

	store  *store.MemoryStore
	server *server.Server

	running atomic.Bool
	cbMu    sync.Mutex

	readyOnce sync.Once
	ready     chan struct{}

	fcMu      sync.Mutex
	fcVersion uint64
	fcCache   map[int]forecast.Result
}

// New creates a [Synchronizer] for the backend at baseURL.
//
// Returns an error if baseURL is not an absolute http(s) URL or any option is
// invalid.
func New(baseURL string, opts ...Option) (*Synchronizer, error) {
	cfg := newSyncConfig()
	for _, opt := range opts {
		if err := opt(cfg); err != nil {
			return nil, err
		}
	}

	parsed, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid base URL: %w", err)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return nil, fmt.Errorf("base URL scheme must be http or https, got %q", parsed.Scheme)
	}
	if parsed.Host == "" {
		return nil, errors.New("base URL must include a host")
	}
	base := strings.TrimRight(baseURL, "/")

	sessionID := uuid.NewString()

	// default to slog.Default() if no logger provided
	logger := cfg.logger
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("session_id", sessionID)

	s := &Synchronizer{
		sessionID:    sessionID,
		baseURL:      base,
		logger:       logger,
		callbacks:    cfg.callbacks,
		forecastOpts: cfg.forecastOpts,
		store:        store.NewMemoryStore(ResourceKPIs, ResourceProducts, ResourceTransactions),
		ready:        make(chan struct{}),
	}

	if s.kpis, err = newResourcePoller[[]KPI](s, cfg, ResourceKPIs); err != nil {
		return nil, err
	}
	if s.products, err = newResourcePoller[[]Product](s, cfg, ResourceProducts); err != nil {
		return nil, err
	}
	if s.transactions, err = newResourcePoller[[]Transaction](s, cfg, ResourceTransactions); err != nil {
		return nil, err
	}

	if cfg.listenAddr != "" {
		s.server = server.NewServer(s.store, s, cfg.listenAddr, sessionID, logger)
	}

	return s, nil
}

// newResourcePoller builds the client and poller for one resource and wires
// the poller's observer to the synchronizer.
func newResourcePoller[T any](s *Synchronizer, cfg *syncConfig, name string) (*poller.Poller[T], error) {
	clientOpts := []resource.Option{
		resource.WithTimeout(cfg.timeout),
		resource.WithHeaders(cfg.headers),
	}
	if cfg.httpClient != nil {
		clientOpts = append(clientOpts, resource.WithHTTPClient(cfg.httpClient))
	}

	client, err := resource.NewClient[T](name, s.baseURL+cfg.paths[name], clientOpts...)
	if err != nil {
		return nil, fmt.Errorf("resource %s: %w", name, err)
	}

	pollerOpts := []poller.Option{
		poller.WithWarmInterval(cfg.warmInterval),
		poller.WithPauseWhenUnfocused(cfg.pauseWhenUnfocused),
		poller.WithRefetchOnFocus(cfg.refetchOnFocus[name]),
		poller.WithRefetchOnReconnect(cfg.refetchOnReconnect[name]),
		poller.WithLogger(s.logger),
	}
	if cfg.env != nil {
		pollerOpts = append(pollerOpts, poller.WithEnvironment(cfg.env))
	}

	p, err := poller.New[T](name, client, poller.ClassifyStatus[T], pollerOpts...)
	if err != nil {
		return nil, err
	}
	p.Observe(func(snap poller.Snapshot[T]) {
		s.publish(statusOf(snap))
	})

	s.clients = append(s.clients, client)
	return p, nil
}

// SessionID returns the identifier attached to this synchronizer's logs and
// snapshots.
func (s *Synchronizer) SessionID() string {
	return s.sessionID
}

// Addr returns the status API address, or "" when the API is disabled. After
// Run has started it reports the bound address.
func (s *Synchronizer) Addr() string {
	if s.server == nil {
		return ""
	}
	return s.server.Addr()
}

// Run starts the three pollers, and the status API when configured, and
// blocks until ctx is cancelled.
//
// Cancelling ctx stops every warm timer; fetches still in flight have their
// results discarded. Returns nil on graceful shutdown, an error if the status
// API cannot bind, and [ErrAlreadyRunning] on a second call.
func (s *Synchronizer) Run(ctx context.Context) error {
	if !s.running.CompareAndSwap(false, true) {
		return ErrAlreadyRunning
	}
	defer s.closeClients()

	if s.server != nil {
		if err := s.server.Listen(); err != nil {
			return fmt.Errorf("failed to start status API: %w", err)
		}
	}

	s.logger.Info("synchronizer starting", "base_url", s.baseURL)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return s.kpis.Run(gctx) })
	g.Go(func() error { return s.products.Run(gctx) })
	g.Go(func() error { return s.transactions.Run(gctx) })
	if s.server != nil {
		g.Go(func() error { return s.server.Serve(gctx) })
	}

	err := g.Wait()
	s.logger.Info("synchronizer stopped")
	return err
}

func (s *Synchronizer) closeClients() {
	for _, c := range s.clients {
		c.Close()
	}
}

// Snapshot returns the current combined view.
func (s *Synchronizer) Snapshot() Snapshot {
	k := viewOf(s.kpis.Snapshot())
	p := viewOf(s.products.Snapshot())
	t := viewOf(s.transactions.Snapshot())

	return Snapshot{
		SessionID:      s.sessionID,
		KPIs:           k,
		Products:       p,
		Transactions:   t,
		OverallWarming: overallWarming(k.State.Resolved(), p.State.Resolved(), t.State.Resolved()),
	}
}

// Refetch asks the named resource to fetch now, in any phase. This is the
// only way to retry a resource that settled on a terminal error.
func (s *Synchronizer) Refetch(name string) error {
	switch name {
	case ResourceKPIs:
		s.kpis.Refetch()
	case ResourceProducts:
		s.products.Refetch()
	case ResourceTransactions:
		s.transactions.Refetch()
	default:
		return fmt.Errorf("%w: %q", ErrUnknownResource, name)
	}
	return nil
}

// WaitReady blocks until no resource is warming or ctx is done.
//
// Ready means every resource holds data or a terminal error; inspect the
// [Snapshot] to tell which.
func (s *Synchronizer) WaitReady(ctx context.Context) error {
	select {
	case <-s.ready:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Forecast projects KPI monthly revenue horizon months ahead.
//
// Results are cached per KPI version and horizon. Returns [ErrNotReady] until
// KPI data has arrived, and the forecaster's errors otherwise.
func (s *Synchronizer) Forecast(horizon int) (forecast.Result, error) {
	snap := s.kpis.Snapshot()
	if !snap.State.HasData() {
		if snap.State.Err != nil {
			return forecast.Result{}, fmt.Errorf("%w: %s", ErrNotReady, snap.State.Err.Error())
		}
		return forecast.Result{}, ErrNotReady
	}

	s.fcMu.Lock()
	defer s.fcMu.Unlock()

	if s.fcCache == nil || s.fcVersion != snap.Version {
		s.fcCache = make(map[int]forecast.Result)
		s.fcVersion = snap.Version
	}
	if res, ok := s.fcCache[horizon]; ok {
		return res, nil
	}

	res, err := forecast.Forecast(RevenueSeries(*snap.State.Data), horizon, s.forecastOpts...)
	if err != nil {
		return forecast.Result{}, err
	}
	s.fcCache[horizon] = res
	return res, nil
}

// publish records a resource change, notifies callbacks, and releases
// WaitReady once nothing is warming.
func (s *Synchronizer) publish(status store.ResourceStatus) {
	s.store.Update(status)

	if len(s.callbacks) == 0 && s.isReady() {
		return
	}

	snap := s.Snapshot()

	// callbacks see the ready snapshot before WaitReady returns
	if len(s.callbacks) > 0 {
		s.cbMu.Lock()
		for _, cb := range s.callbacks {
			s.invokeCallbackSafe(cb, snap)
		}
		s.cbMu.Unlock()
	}

	if !snap.OverallWarming {
		s.readyOnce.Do(func() {
			s.logger.Info("dashboard ready")
			close(s.ready)
		})
	}
}

func (s *Synchronizer) isReady() bool {
	select {
	case <-s.ready:
		return true
	default:
		return false
	}
}

// invokeCallbackSafe calls a snapshot callback with panic recovery.
// Panics are logged but do not propagate.
func (s *Synchronizer) invokeCallbackSafe(cb func(Snapshot), snap Snapshot) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("snapshot callback panicked", "panic", r)
		}
	}()
	cb(snap)
}

// statusOf converts a poller snapshot to its stored form.
func statusOf[T any](snap poller.Snapshot[T]) store.ResourceStatus {
	status := store.ResourceStatus{
		Name:       snap.Name,
		Phase:      snap.Phase.String(),
		IntervalMs: snap.Policy.Interval.Milliseconds(),
		IsFetching: snap.State.IsFetching,
		Fetches:    uint64(snap.Fetches),
		Version:    snap.Version,
		UpdatedAt:  snap.UpdatedAt,
	}
	if e := snap.State.Err; e != nil {
		status.Error = &store.ErrorView{
			StatusCode: e.StatusCode,
			Kind:       string(e.Kind),
			Message:    e.Message,
		}
	}
	if snap.State.Data != nil {
		if data, err := json.Marshal(*snap.State.Data); err == nil {
			status.Data = data
		}
	}
	if status.UpdatedAt.IsZero() {
		status.UpdatedAt = time.Now()
	}
	return status
}
