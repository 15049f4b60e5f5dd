package finboard

import (
	"time"

	"github.com/jpalmerr/finboard/internal/poller"
	"github.com/jpalmerr/finboard/resource"
)

// Phase is a resource's readiness phase.
type Phase string

const (
	// PhaseSettled means no retry timer is armed: the resource holds data, a
	// terminal error, or has not been fetched yet.
	PhaseSettled Phase = "settled"

	// PhaseWarming means the backend answered 202 and the resource is being
	// re-fetched at the warm interval.
	PhaseWarming Phase = "warming"
)

// String returns the string representation of the phase.
func (p Phase) String() string {
	return string(p)
}

// ResourceView is one resource's state as seen by a consumer.
type ResourceView[T any] struct {
	Name  string            `json:"name"`
	State resource.State[T] `json:"state"`
	Phase Phase             `json:"phase"`

	// Interval is the active warm-retry interval; zero when settled.
	Interval time.Duration `json:"interval"`

	// Fetches counts requests issued for the resource.
	Fetches int `json:"fetches"`

	// Version identifies the fetch whose result is in State.
	Version uint64 `json:"version"`

	UpdatedAt time.Time `json:"updated_at"`
}

// Ready reports whether the resource holds data.
func (v ResourceView[T]) Ready() bool {
	return v.State.HasData()
}

// Snapshot is the dashboard's combined view of its three resources.
type Snapshot struct {
	SessionID    string                      `json:"session_id"`
	KPIs         ResourceView[[]KPI]         `json:"kpis"`
	Products     ResourceView[[]Product]     `json:"products"`
	Transactions ResourceView[[]Transaction] `json:"transactions"`

	// OverallWarming is true while any resource has neither data nor a
	// terminal error.
	OverallWarming bool `json:"overall_warming"`
}

// overallWarming reports whether any of the states is still unresolved.
func overallWarming(resolved ...bool) bool {
	for _, r := range resolved {
		if !r {
			return true
		}
	}
	return false
}

func viewOf[T any](s poller.Snapshot[T]) ResourceView[T] {
	return ResourceView[T]{
		Name:      s.Name,
		State:     s.State,
		Phase:     Phase(s.Phase.String()),
		Interval:  s.Policy.Interval,
		Fetches:   s.Fetches,
		Version:   s.Version,
		UpdatedAt: s.UpdatedAt,
	}
}
