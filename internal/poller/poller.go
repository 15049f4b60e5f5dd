package poller

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync"
	"sync/atomic"
	"time"

	"github.com/jpalmerr/finboard/presence"
	"github.com/jpalmerr/finboard/resource"
)

// DefaultWarmInterval is the retry interval while a resource is warming.
const DefaultWarmInterval = 1500 * time.Millisecond

// ErrAlreadyStarted is returned by [Poller.Run] when called more than once.
var ErrAlreadyStarted = errors.New("poller already started")

// Phase is the timer state of a [Poller].
type Phase int

const (
	// PhaseSettled means no timer is active.
	PhaseSettled Phase = iota
	// PhaseWarming means the warm-retry timer is active.
	PhaseWarming
)

// String returns "settled" or "warming".
func (p Phase) String() string {
	if p == PhaseWarming {
		return "warming"
	}
	return "settled"
}

// Outcome is the classification of a completed fetch.
type Outcome int

const (
	// OutcomeReady means the fetch produced data.
	OutcomeReady Outcome = iota
	// OutcomeColdStart means the backend is not ready yet and the fetch
	// should be retried on the warm timer.
	OutcomeColdStart
	// OutcomeFailed means a terminal or transport failure.
	OutcomeFailed
)

// Source fetches one resource. [resource.Client] implements it.
type Source[T any] interface {
	Fetch(ctx context.Context) resource.State[T]
}

// SourceFunc adapts a function to [Source].
type SourceFunc[T any] func(ctx context.Context) resource.State[T]

// Fetch calls f(ctx).
func (f SourceFunc[T]) Fetch(ctx context.Context) resource.State[T] {
	return f(ctx)
}

// Classifier maps a completed fetch to an [Outcome].
type Classifier[T any] func(resource.State[T]) Outcome

// ClassifyStatus is the default [Classifier]: data is ready, a 202 is a cold
// start, anything else failed.
func ClassifyStatus[T any](st resource.State[T]) Outcome {
	switch {
	case st.Data != nil:
		return OutcomeReady
	case st.Err.IsColdStart():
		return OutcomeColdStart
	default:
		return OutcomeFailed
	}
}

// Policy is the polling policy currently applied by a Poller. Only the
// Poller that owns it changes it.
type Policy struct {
	// Interval is the warm-retry interval; zero means no polling.
	Interval time.Duration `json:"interval"`

	// PauseWhenUnfocused skips timer fetches while the environment is not
	// focused.
	PauseWhenUnfocused bool `json:"pause_when_unfocused"`
}

// Snapshot is a point-in-time copy of a Poller's state.
type Snapshot[T any] struct {
	Name   string
	State  resource.State[T]
	Phase  Phase
	Policy Policy

	// Fetches counts fetches issued since Run started.
	Fetches int

	// Version is the sequence number of the fetch whose result is in State.
	// Zero until the first fetch completes.
	Version uint64

	UpdatedAt time.Time
}

type config struct {
	warmInterval       time.Duration
	pauseWhenUnfocused bool
	refetchOnFocus     bool
	refetchOnReconnect bool
	env                presence.Environment
	clock              Clock
	logger             *slog.Logger
}

// Option configures a Poller.
type Option func(*config) error

// WithWarmInterval sets the retry interval used while warming.
// Defaults to [DefaultWarmInterval].
func WithWarmInterval(d time.Duration) Option {
	return func(cfg *config) error {
		if d <= 0 {
			return errors.New("warm interval must be positive")
		}
		cfg.warmInterval = d
		return nil
	}
}

// WithPauseWhenUnfocused controls whether timer fetches are skipped while
// the environment is unfocused. Defaults to true.
func WithPauseWhenUnfocused(pause bool) Option {
	return func(cfg *config) error {
		cfg.pauseWhenUnfocused = pause
		return nil
	}
}

// WithRefetchOnFocus makes every FocusGained signal trigger a fetch,
// whatever the phase.
func WithRefetchOnFocus(enabled bool) Option {
	return func(cfg *config) error {
		cfg.refetchOnFocus = enabled
		return nil
	}
}

// WithRefetchOnReconnect makes every Reconnected signal trigger a fetch,
// whatever the phase. While warming, reconnects always trigger a fetch.
func WithRefetchOnReconnect(enabled bool) Option {
	return func(cfg *config) error {
		cfg.refetchOnReconnect = enabled
		return nil
	}
}

// WithEnvironment sets the focus and connectivity source.
// Defaults to [presence.Static].
func WithEnvironment(env presence.Environment) Option {
	return func(cfg *config) error {
		if env == nil {
			return errors.New("environment cannot be nil")
		}
		cfg.env = env
		return nil
	}
}

// WithClock replaces the clock used for the warm timer.
func WithClock(c Clock) Option {
	return func(cfg *config) error {
		if c == nil {
			return errors.New("clock cannot be nil")
		}
		cfg.clock = c
		return nil
	}
}

// WithLogger sets the logger. Defaults to slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(cfg *config) error {
		cfg.logger = l
		return nil
	}
}

type completion[T any] struct {
	seq   uint64
	state resource.State[T]
}

// Poller re-fetches one resource while its backend reports a cold start.
//
// Create with [New], register observers with [Poller.Observe], then call
// [Poller.Run]. Snapshot, Phase, Policy, and Refetch are safe for concurrent
// use.
type Poller[T any] struct {
	name               string
	source             Source[T]
	classify           Classifier[T]
	warmInterval       time.Duration
	refetchOnFocus     bool
	refetchOnReconnect bool
	env                presence.Environment
	clock              Clock
	logger             *slog.Logger

	completions chan completion[T]
	refetch     chan struct{}
	started     atomic.Bool

	obsMu     sync.RWMutex
	observers []func(Snapshot[T])

	mu         sync.RWMutex
	state      resource.State[T]
	phase      Phase
	policy     Policy
	seq        uint64 // last issued
	applied    uint64 // last applied
	inFlight   int
	fetches    int
	missedTick bool
	updatedAt  time.Time
}

// New creates a Poller for src. A nil classify uses [ClassifyStatus].
//
// The Poller starts settled with a zero interval; nothing is fetched until
// [Poller.Run] is called.
func New[T any](name string, src Source[T], classify Classifier[T], opts ...Option) (*Poller[T], error) {
	if name == "" {
		return nil, errors.New("poller name cannot be empty")
	}
	if src == nil {
		return nil, errors.New("source cannot be nil")
	}

	cfg := &config{
		warmInterval:       DefaultWarmInterval,
		pauseWhenUnfocused: true,
	}
	for _, opt := range opts {
		if err := opt(cfg); err != nil {
			return nil, fmt.Errorf("poller %s: %w", name, err)
		}
	}
	if cfg.env == nil {
		cfg.env = presence.Static{}
	}
	if cfg.clock == nil {
		cfg.clock = SystemClock()
	}
	if cfg.logger == nil {
		cfg.logger = slog.Default()
	}
	if classify == nil {
		classify = ClassifyStatus[T]
	}

	return &Poller[T]{
		name:               name,
		source:             src,
		classify:           classify,
		warmInterval:       cfg.warmInterval,
		refetchOnFocus:     cfg.refetchOnFocus,
		refetchOnReconnect: cfg.refetchOnReconnect,
		env:                cfg.env,
		clock:              cfg.clock,
		logger:             cfg.logger.With("resource", name),
		completions:        make(chan completion[T]),
		refetch:            make(chan struct{}, 1),
		policy:             Policy{PauseWhenUnfocused: cfg.pauseWhenUnfocused},
	}, nil
}

// Name returns the resource name.
func (p *Poller[T]) Name() string {
	return p.name
}

// Observe registers fn to receive a Snapshot after every state change.
//
// Observers run on the poller goroutine and must not block. A panicking
// observer is logged and skipped.
func (p *Poller[T]) Observe(fn func(Snapshot[T])) {
	p.obsMu.Lock()
	p.observers = append(p.observers, fn)
	p.obsMu.Unlock()
}

// Snapshot returns a copy of the current state.
func (p *Poller[T]) Snapshot() Snapshot[T] {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.snapshotLocked()
}

// Phase returns the current timer state.
func (p *Poller[T]) Phase() Phase {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.phase
}

// Policy returns the current polling policy.
func (p *Poller[T]) Policy() Policy {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.policy
}

// Refetch asks the running Poller to fetch now, in any phase. It is the
// external trigger that retries a terminal error. Requests made while one is
// already queued are coalesced. Refetch never blocks.
func (p *Poller[T]) Refetch() {
	select {
	case p.refetch <- struct{}{}:
	default:
	}
}

// Run issues the initial fetch and processes events until ctx is cancelled.
//
// Run blocks. On return the warm timer is stopped and every fetch goroutine
// has exited; results arriving after cancellation are dropped. Run returns
// nil on cancellation and [ErrAlreadyStarted] if called more than once.
func (p *Poller[T]) Run(ctx context.Context) error {
	if !p.started.CompareAndSwap(false, true) {
		return ErrAlreadyStarted
	}

	signals, release := p.env.Subscribe()
	defer release()

	var wg sync.WaitGroup
	defer wg.Wait()

	var ticker Ticker
	defer func() {
		if ticker != nil {
			ticker.Stop()
		}
	}()

	p.issue(ctx, &wg, "initial")

	for {
		var tickC <-chan time.Time
		if ticker != nil {
			tickC = ticker.C()
		}

		select {
		case <-ctx.Done():
			p.logger.Debug("poller stopped")
			return nil

		case c := <-p.completions:
			p.apply(c)
			ticker = p.reconcileTimer(ticker)

		case <-tickC:
			p.onTick(ctx, &wg)

		case sig, ok := <-signals:
			if !ok {
				signals = nil
				continue
			}
			p.onSignal(ctx, &wg, sig)

		case <-p.refetch:
			p.issue(ctx, &wg, "manual")
		}
	}
}

// issue starts one fetch in its own goroutine.
func (p *Poller[T]) issue(ctx context.Context, wg *sync.WaitGroup, trigger string) {
	p.mu.Lock()
	p.seq++
	seq := p.seq
	p.inFlight++
	p.fetches++
	p.missedTick = false
	p.state.IsFetching = true
	snap := p.snapshotLocked()
	p.mu.Unlock()

	p.logger.Debug("fetch issued", "trigger", trigger, "seq", seq)
	p.notify(snap)

	wg.Add(1)
	go func() {
		defer wg.Done()
		st := p.source.Fetch(ctx)
		select {
		case p.completions <- completion[T]{seq: seq, state: st}:
		case <-ctx.Done():
		}
	}()
}

// apply folds a completed fetch into the state and performs the phase
// transition. Completions older than the last applied one are discarded.
func (p *Poller[T]) apply(c completion[T]) {
	p.mu.Lock()
	p.inFlight--

	if c.seq < p.applied {
		p.state.IsFetching = p.inFlight > 0
		snap := p.snapshotLocked()
		p.mu.Unlock()
		p.logger.Debug("stale fetch discarded", "seq", c.seq, "applied", snap.Version)
		p.notify(snap)
		return
	}

	p.applied = c.seq
	prev := p.phase
	outcome := p.classify(c.state)

	switch outcome {
	case OutcomeColdStart:
		// previously loaded data is kept; a cold start never blanks it
		if p.state.Data == nil {
			p.state = resource.State[T]{}
			p.phase = PhaseWarming
			p.policy.Interval = p.warmInterval
		}
	default:
		p.state = c.state
		p.phase = PhaseSettled
		p.policy.Interval = 0
		p.missedTick = false
	}
	p.state.IsFetching = p.inFlight > 0
	p.updatedAt = time.Now()
	snap := p.snapshotLocked()
	p.mu.Unlock()

	if prev != snap.Phase {
		p.logger.Info("readiness changed",
			"from", prev.String(),
			"to", snap.Phase.String(),
			"interval_ms", snap.Policy.Interval.Milliseconds(),
		)
	}
	if outcome == OutcomeFailed && snap.State.Err != nil {
		p.logger.Warn("fetch failed",
			"kind", string(snap.State.Err.Kind),
			"status_code", snap.State.Err.StatusCode,
			"error", snap.State.Err.Message,
		)
	}
	p.notify(snap)
}

// reconcileTimer starts or stops the ticker to match the current policy.
func (p *Poller[T]) reconcileTimer(t Ticker) Ticker {
	interval := p.Policy().Interval
	switch {
	case interval > 0 && t == nil:
		return p.clock.NewTicker(interval)
	case interval == 0 && t != nil:
		t.Stop()
		return nil
	default:
		return t
	}
}

func (p *Poller[T]) onTick(ctx context.Context, wg *sync.WaitGroup) {
	p.mu.Lock()
	if p.phase != PhaseWarming {
		p.mu.Unlock()
		return
	}
	if p.inFlight > 0 {
		p.mu.Unlock()
		p.logger.Debug("tick suppressed, fetch in flight")
		return
	}
	if p.policy.PauseWhenUnfocused && !p.env.Focused() {
		p.missedTick = true
		p.mu.Unlock()
		p.logger.Debug("tick skipped, not focused")
		return
	}
	p.mu.Unlock()

	p.issue(ctx, wg, "timer")
}

func (p *Poller[T]) onSignal(ctx context.Context, wg *sync.WaitGroup, sig presence.Signal) {
	p.mu.RLock()
	warming := p.phase == PhaseWarming
	missed := p.missedTick
	busy := p.inFlight > 0
	p.mu.RUnlock()

	var fetch bool
	switch sig {
	case presence.FocusGained:
		fetch = (warming && missed) || p.refetchOnFocus
	case presence.Reconnected:
		fetch = warming || p.refetchOnReconnect
	}
	if !fetch {
		return
	}
	if busy {
		p.logger.Debug("signal fetch suppressed, fetch in flight", "signal", sig.String())
		return
	}
	p.issue(ctx, wg, sig.String())
}

func (p *Poller[T]) snapshotLocked() Snapshot[T] {
	return Snapshot[T]{
		Name:      p.name,
		State:     p.state,
		Phase:     p.phase,
		Policy:    p.policy,
		Fetches:   p.fetches,
		Version:   p.applied,
		UpdatedAt: p.updatedAt,
	}
}

func (p *Poller[T]) notify(snap Snapshot[T]) {
	p.obsMu.RLock()
	observers := p.observers
	p.obsMu.RUnlock()

	for _, fn := range observers {
		p.invokeObserverSafe(fn, snap)
	}
}

// invokeObserverSafe calls an observer with panic recovery.
func (p *Poller[T]) invokeObserverSafe(fn func(Snapshot[T]), snap Snapshot[T]) {
	defer func() {
		if r := recover(); r != nil {
			p.logger.Error("observer panicked",
				"panic", fmt.Sprintf("%v", r),
				"stack", string(debug.Stack()),
			)
		}
	}()
	fn(snap)
}
