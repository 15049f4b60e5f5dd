// Package resource fetches a single backend collection over HTTP and reports
// the outcome as a [State].
//
// A [Client] issues exactly one request per [Client.Fetch] call and never
// retries. The numeric HTTP status is preserved in [ErrorInfo] so callers can
// tell the backend's 202 "still connecting to its datastore" answer apart from
// real failures:
//
//   - 2xx (except 202) with a JSON array body: State.Data is populated
//   - 202: State.Err with Kind [KindColdStart]
//   - any other status: State.Err with Kind [KindTerminalHTTP]
//   - transport, timeout, or decode failure: State.Err with Kind [KindTransport]
//     and StatusCode 0
//
// Deciding whether to fetch again is left to the caller; see the poller that
// drives a Client while the backend warms up.
package resource
