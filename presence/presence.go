// Package presence models the focus and connectivity signals a dashboard
// session reacts to.
//
// Pollers never read focus or network state from globals; they receive an
// [Environment] so the same state machine runs under a real UI shell, a CLI,
// or a test.
package presence

import "sync"

// Signal is a change in focus or connectivity.
type Signal int

const (
	// FocusGained is emitted when the dashboard regains focus.
	FocusGained Signal = iota + 1
	// FocusLost is emitted when the dashboard loses focus.
	FocusLost
	// Reconnected is emitted when network connectivity is restored.
	Reconnected
	// Offline is emitted when network connectivity is lost.
	Offline
)

// String returns a lowercase name for logs.
func (s Signal) String() string {
	switch s {
	case FocusGained:
		return "focus_gained"
	case FocusLost:
		return "focus_lost"
	case Reconnected:
		return "reconnected"
	case Offline:
		return "offline"
	default:
		return "unknown"
	}
}

// Environment reports whether the dashboard is focused and delivers focus and
// connectivity changes.
//
// Subscribe returns a channel of signals and a function that releases the
// subscription. Implementations must not block on slow subscribers.
type Environment interface {
	Focused() bool
	Subscribe() (<-chan Signal, func())
}

// Static is an Environment that is always focused and never signals.
// It suits headless use such as the CLI.
type Static struct{}

// Focused always returns true.
func (Static) Focused() bool { return true }

// Subscribe returns a nil channel, which never delivers.
func (Static) Subscribe() (<-chan Signal, func()) { return nil, func() {} }

const subscriberBuffer = 16

// Manual is an Environment whose focus and connectivity are set by the caller.
// The zero value is not usable; create one with [NewManual].
type Manual struct {
	mu      sync.RWMutex
	focused bool
	online  bool
	subs    map[chan Signal]struct{}
}

// NewManual returns a Manual environment that starts online with the given
// focus.
func NewManual(focused bool) *Manual {
	return &Manual{
		focused: focused,
		online:  true,
		subs:    make(map[chan Signal]struct{}),
	}
}

// Focused reports the current focus.
func (m *Manual) Focused() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.focused
}

// Online reports the current connectivity.
func (m *Manual) Online() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.online
}

// SetFocused changes focus and emits FocusGained or FocusLost. Setting the
// current value again emits nothing.
func (m *Manual) SetFocused(focused bool) {
	m.mu.Lock()
	if m.focused == focused {
		m.mu.Unlock()
		return
	}
	m.focused = focused
	m.mu.Unlock()

	if focused {
		m.emit(FocusGained)
	} else {
		m.emit(FocusLost)
	}
}

// SetOnline changes connectivity and emits Reconnected or Offline. Setting the
// current value again emits nothing.
func (m *Manual) SetOnline(online bool) {
	m.mu.Lock()
	if m.online == online {
		m.mu.Unlock()
		return
	}
	m.online = online
	m.mu.Unlock()

	if online {
		m.emit(Reconnected)
	} else {
		m.emit(Offline)
	}
}

// Subscribe registers a buffered channel for signals. The returned function
// removes and closes it; calling it more than once is safe.
func (m *Manual) Subscribe() (<-chan Signal, func()) {
	ch := make(chan Signal, subscriberBuffer)
	m.mu.Lock()
	m.subs[ch] = struct{}{}
	m.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			m.mu.Lock()
			delete(m.subs, ch)
			m.mu.Unlock()
			close(ch)
		})
	}
}

// emit delivers s without blocking; a full subscriber misses the signal.
func (m *Manual) emit(s Signal) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for ch := range m.subs {
		select {
		case ch <- s:
		default:
		}
	}
}
