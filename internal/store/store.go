package store

import (
	"encoding/json"
	"time"
)

// kindColdStart mirrors resource.KindColdStart without importing it.
const kindColdStart = "cold_start"

// ErrorView is the serialized form of a resource error.
type ErrorView struct {
	// StatusCode is the HTTP status, or 0 when no response was received.
	StatusCode int    `json:"status_code"`
	Kind       string `json:"kind"`
	Message    string `json:"message"`
}

// ResourceStatus represents the current state of one resource in storage.
//
// ResourceStatus is decoupled from the poller's generic types so the REST API
// and SSE stream can serialize every resource the same way.
type ResourceStatus struct {
	// Name identifies the resource (e.g. "kpis").
	Name string `json:"name"`

	// Phase is "warming" while the backend answers cold-start, else "settled".
	Phase string `json:"phase"`

	// IntervalMs is the active polling interval; 0 when no timer is armed.
	IntervalMs int64 `json:"interval_ms"`

	IsFetching bool `json:"is_fetching"`

	// Fetches counts requests issued for the resource.
	Fetches uint64 `json:"fetches"`

	// Version increments on every state change.
	Version uint64 `json:"version"`

	// Error is nil when the last settled fetch succeeded.
	Error *ErrorView `json:"error"`

	// Data is the raw JSON array last received; nil until data arrives.
	Data json.RawMessage `json:"data"`

	UpdatedAt time.Time `json:"updated_at"`
}

// Resolved reports whether the resource holds data or a terminal error.
func (r ResourceStatus) Resolved() bool {
	if len(r.Data) > 0 {
		return true
	}
	return r.Error != nil && r.Error.Kind != kindColdStart
}

// Store defines the interface for storing and subscribing to resource updates.
//
// Store implementations must be safe for concurrent access.
type Store interface {
	// Update stores a new status and notifies all subscribers.
	// Statuses are keyed by Name; later updates replace earlier ones.
	Update(status ResourceStatus)

	// GetAll returns the stored statuses in registration order.
	GetAll() []ResourceStatus

	// Get returns the status for name, if any.
	Get(name string) (ResourceStatus, bool)

	// OverallWarming reports whether any registered resource is unresolved.
	OverallWarming() bool

	// Subscribe returns a channel that receives status updates.
	// Slow consumers may miss updates.
	// Caller must call Unsubscribe when done to prevent resource leaks.
	Subscribe() <-chan ResourceStatus

	// Unsubscribe removes a subscription and closes the channel.
	// Safe to call with a channel that was already unsubscribed.
	Unsubscribe(ch <-chan ResourceStatus)
}
