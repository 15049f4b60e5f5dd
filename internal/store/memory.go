package store

import (
	"sync"
)

const subscriberBuffer = 100

// MemoryStore is an in-memory implementation of [Store].
//
// Resources passed to [NewMemoryStore] are expected: until each of them has
// resolved, [MemoryStore.OverallWarming] reports true. Unknown names may still
// be stored and are appended in first-seen order.
//
// Subscribers receive updates via buffered channels (buffer size 100). Updates
// are sent non-blocking; if a subscriber's buffer is full, the update is dropped
// for that subscriber.
type MemoryStore struct {
	mu          sync.RWMutex
	order       []string
	expected    map[string]struct{}
	statuses    map[string]ResourceStatus
	subscribers map[chan ResourceStatus]struct{}
	subMu       sync.RWMutex
}

// NewMemoryStore creates a new in-memory [Store] expecting the named resources.
func NewMemoryStore(expected ...string) *MemoryStore {
	m := &MemoryStore{
		expected:    make(map[string]struct{}, len(expected)),
		statuses:    make(map[string]ResourceStatus, len(expected)),
		subscribers: make(map[chan ResourceStatus]struct{}),
	}
	for _, name := range expected {
		if _, dup := m.expected[name]; dup {
			continue
		}
		m.expected[name] = struct{}{}
		m.order = append(m.order, name)
	}
	return m
}

// Update stores a [ResourceStatus] and notifies all subscribers.
//
// An update whose Version is older than the stored one is ignored, so
// out-of-order publishers cannot roll a resource back.
func (m *MemoryStore) Update(status ResourceStatus) {
	m.mu.Lock()
	prev, exists := m.statuses[status.Name]
	if exists && status.Version != 0 && status.Version < prev.Version {
		m.mu.Unlock()
		return
	}
	if !exists {
		if _, ok := m.expected[status.Name]; !ok {
			m.order = append(m.order, status.Name)
		}
	}
	m.statuses[status.Name] = status
	m.mu.Unlock()

	m.notifySubscribers(status)
}

// GetAll returns a snapshot of stored statuses in registration order.
// Expected resources with no update yet are omitted.
func (m *MemoryStore) GetAll() []ResourceStatus {
	m.mu.RLock()
	defer m.mu.RUnlock()

	results := make([]ResourceStatus, 0, len(m.statuses))
	for _, name := range m.order {
		if status, ok := m.statuses[name]; ok {
			results = append(results, status)
		}
	}
	return results
}

// Get returns the stored status for name.
func (m *MemoryStore) Get(name string) (ResourceStatus, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	status, ok := m.statuses[name]
	return status, ok
}

// OverallWarming reports whether any expected resource is missing or has
// neither data nor a terminal error. A store with no expected resources
// reports false.
func (m *MemoryStore) OverallWarming() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for name := range m.expected {
		status, ok := m.statuses[name]
		if !ok || !status.Resolved() {
			return true
		}
	}
	return false
}

// Subscribe creates a new subscription and returns a channel for receiving updates.
//
// Caller must call [MemoryStore.Unsubscribe] when done to prevent resource leaks.
func (m *MemoryStore) Subscribe() <-chan ResourceStatus {
	ch := make(chan ResourceStatus, subscriberBuffer)

	m.subMu.Lock()
	m.subscribers[ch] = struct{}{}
	m.subMu.Unlock()

	return ch
}

// Unsubscribe removes a subscription and closes its channel.
// Safe to call multiple times or with an unknown channel.
func (m *MemoryStore) Unsubscribe(ch <-chan ResourceStatus) {
	m.subMu.Lock()
	defer m.subMu.Unlock()

	for subCh := range m.subscribers {
		if subCh == ch {
			delete(m.subscribers, subCh)
			close(subCh)
			break
		}
	}
}

// notifySubscribers sends the status to all active subscribers without blocking.
func (m *MemoryStore) notifySubscribers(status ResourceStatus) {
	m.subMu.RLock()
	defer m.subMu.RUnlock()

	for ch := range m.subscribers {
		select {
		case ch <- status:
		default:
			// subscriber is slow, drop the message
		}
	}
}
