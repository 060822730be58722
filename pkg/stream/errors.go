package stream

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrCanceled is returned by Handle.Wait when the stream was canceled or
// superseded by a newer one. It is not a failure and is never shown to users.
var ErrCanceled = errors.New("stream canceled")

// TransportError reports a network failure or a non-2xx response.
type TransportError struct {
	// StatusCode is the HTTP status, or zero for network failures.
	StatusCode int

	Message string
	Err     error

	// partial is set once any response byte had been received.
	partial bool
}

func (e *TransportError) Error() string {
	switch {
	case e.StatusCode != 0:
		return fmt.Sprintf("transport: HTTP %d: %s", e.StatusCode, e.Message)
	case e.Err != nil:
		return fmt.Sprintf("transport: %s: %v", e.Message, e.Err)
	default:
		return "transport: " + e.Message
	}
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// BeforeFirstByte reports whether the failure happened before any response
// byte arrived, in which case a non-streaming retry is safe.
func (e *TransportError) BeforeFirstByte() bool {
	return !e.partial
}

// Retryable reports whether repeating the request may succeed: network
// failures, rate limiting and server errors.
func (e *TransportError) Retryable() bool {
	switch e.StatusCode {
	case 0,
		http.StatusTooManyRequests,
		http.StatusInternalServerError,
		http.StatusBadGateway,
		http.StatusServiceUnavailable,
		http.StatusGatewayTimeout,
		529:
		return true
	default:
		return false
	}
}
