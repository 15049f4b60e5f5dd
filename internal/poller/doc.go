// Package poller drives a resource fetcher while its backend warms up.
//
// A [Poller] is a small state machine with two timer states:
//
//   - settled: no timer; nothing is fetched unless explicitly requested
//   - warming: a ticker fires at the warm interval and re-fetches
//
// Fetching is orthogonal to both. The machine moves to warming when a fetch
// completes with the backend's 202 "loading" answer and back to settled as
// soon as a fetch returns data or any other error. Terminal errors are never
// retried automatically.
//
// Transitions are driven only by fetch completions, timer ticks, presence
// signals, and explicit [Poller.Refetch] calls, all processed sequentially
// by the goroutine running [Poller.Run]. The poller owns its resource state
// exclusively; readers get copies via [Poller.Snapshot] or observers.
//
// The package is internal; the dashboard synchronizer composes one Poller per
// resource kind.
package poller
