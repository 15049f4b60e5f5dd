package resource

import (
	"fmt"
	"net/http"
)

// StatusColdStart is the status code the backend answers with while it is
// still establishing its datastore connection.
const StatusColdStart = http.StatusAccepted

// ErrorKind classifies why a fetch did not produce data.
type ErrorKind string

const (
	// KindColdStart means the backend answered 202: not ready yet, retry later.
	KindColdStart ErrorKind = "cold_start"

	// KindTerminalHTTP means any other non-2xx answer. It is not expected to
	// resolve without an external trigger.
	KindTerminalHTTP ErrorKind = "terminal_http"

	// KindTransport means the request never produced a usable response:
	// connection failure, timeout, oversized or undecodable body.
	KindTransport ErrorKind = "transport"
)

// ErrorInfo describes a failed fetch.
type ErrorInfo struct {
	// StatusCode is the HTTP status verbatim. Zero if no response was received
	// or the body could not be decoded.
	StatusCode int `json:"status_code,omitempty"`

	// Kind is the error classification derived from StatusCode.
	Kind ErrorKind `json:"kind"`

	// Message is the backend's "message" field when present, otherwise a
	// description of the failure.
	Message string `json:"message"`
}

// Error implements the error interface so an ErrorInfo can be logged or
// wrapped like any other error.
func (e *ErrorInfo) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s (status %d): %s", e.Kind, e.StatusCode, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// IsColdStart reports whether the error is the backend's not-ready sentinel.
func (e *ErrorInfo) IsColdStart() bool {
	return e != nil && e.StatusCode == StatusColdStart
}

// State is the observable state of one resource.
//
// Once a fetch has completed exactly one of Data and Err is non-nil. Both are
// nil before the first fetch resolves.
type State[T any] struct {
	Data       *T         `json:"data"`
	Err        *ErrorInfo `json:"error"`
	IsFetching bool       `json:"is_fetching"`
}

// HasData reports whether the state holds a decoded payload.
func (s State[T]) HasData() bool {
	return s.Data != nil
}

// Resolved reports whether the state has left its cold-start phase: it holds
// data or an error other than the 202 sentinel.
func (s State[T]) Resolved() bool {
	if s.Data != nil {
		return true
	}
	return s.Err != nil && !s.Err.IsColdStart()
}

// classifyStatus maps an HTTP status code to an error kind. It is only called
// for responses that do not carry data.
func classifyStatus(code int) ErrorKind {
	if code == StatusColdStart {
		return KindColdStart
	}
	return KindTerminalHTTP
}
