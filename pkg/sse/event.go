// Package sse decodes the restricted server-sent events framing produced by
// the chat backend's streaming endpoint.
//
// Only two fields are recognized:
//
//	event: <name>   applies to the next data line only
//	data: <json-or-string-or-[DONE]>
//
// Each data line becomes at most one Event. "[DONE]" ends the stream
// successfully and a data line following "event: error" ends it with an
// error. Anything else ("id:", "retry:", comments) is ignored.
package sse

// Kind identifies what a decoded Event carries.
type Kind int

const (
	// KindDelta is an incremental fragment of response text.
	KindDelta Kind = iota

	// KindDone marks successful completion of the stream.
	KindDone

	// KindError marks a terminal failure reported by the backend.
	KindError
)

func (k Kind) String() string {
	switch k {
	case KindDelta:
		return "delta"
	case KindDone:
		return "done"
	case KindError:
		return "error"
	default:
		return "unknown"
	}
}

// Event is one decoded application event.
type Event struct {
	Kind Kind

	// Text is the delta text. Only set for KindDelta.
	Text string

	// Message is the backend's error message. Only set for KindError.
	Message string
}

// Terminal reports whether no further events can follow e.
func (e Event) Terminal() bool {
	return e.Kind == KindDone || e.Kind == KindError
}

// Err returns a *ProtocolError for error events and nil otherwise.
func (e Event) Err() error {
	if e.Kind != KindError {
		return nil
	}
	return &ProtocolError{Message: e.Message}
}
